// Package reports holds the query engine: every report is a pure function of
// the posting set plus the account initial balances, and all reports agree
// numerically on shared totals. Overdue-ness is derived from due date vs the
// as-of date, so no report depends on a prior state refresh.
package reports

import (
	"context"
	"sort"
	"time"

	"github.com/datafluxo/financas_backend/models"
	"github.com/datafluxo/financas_backend/store"
)

// AllAccounts selects every account, deactivated ones included, so the
// account-filtered reports agree with DRE and the party summary on totals.
const AllAccounts = "*"

type CashFlowResponse struct {
	OpeningBalance models.Money  `json:"opening_balance"`
	TotalIn        models.Money  `json:"total_in"`
	TotalOut       models.Money  `json:"total_out"`
	ClosingBalance models.Money  `json:"closing_balance"`
	Rows           []CashFlowRow `json:"rows"`
}

type CashFlowRow struct {
	PostingID    int                `json:"posting_id"`
	SettleDate   time.Time          `json:"settle_date"`
	Description  string             `json:"description"`
	Kind         models.PostingKind `json:"kind"`
	CategoryName string             `json:"category_name"`
	PartyName    string             `json:"party_name"`
	AccountName  string             `json:"account_name"`
	Effect       models.Money       `json:"effect"`
}

// GetCashFlowReport lists every settlement inside [fromDate, toDate] on the
// selected accounts, newest first. The closing balance always equals
// opening + totalIn - totalOut.
func GetCashFlowReport(ctx context.Context, st store.Store, accountFilter string, fromDate, toDate models.Date) (*CashFlowResponse, error) {
	selected, opening, err := selectAccounts(ctx, st, accountFilter)
	if err != nil {
		return nil, err
	}

	settled, err := st.Postings().Fetch(ctx, store.PostingFilter{
		States:   []models.PostingState{models.PostingStateSettled},
		SettleTo: &toDate,
	})
	if err != nil {
		return nil, err
	}

	resp := &CashFlowResponse{
		OpeningBalance: opening,
		TotalIn:        models.ZeroMoney(),
		TotalOut:       models.ZeroMoney(),
		Rows:           []CashFlowRow{},
	}
	for _, p := range settled {
		if p.AccountName == nil {
			continue
		}
		if _, ok := selected[*p.AccountName]; !ok {
			continue
		}
		settleDay, ok := p.SettleDateOnly()
		if !ok {
			continue
		}
		if settleDay.Before(fromDate) {
			resp.OpeningBalance = resp.OpeningBalance.Add(p.SignedEffect())
			continue
		}
		if p.Kind == models.PostingKindIncome {
			resp.TotalIn = resp.TotalIn.Add(p.SettledEffect())
		} else {
			resp.TotalOut = resp.TotalOut.Add(p.SettledEffect())
		}
		resp.Rows = append(resp.Rows, CashFlowRow{
			PostingID:    p.ID,
			SettleDate:   *p.SettleDate,
			Description:  p.Description,
			Kind:         p.Kind,
			CategoryName: p.CategoryName,
			PartyName:    p.PartyName,
			AccountName:  *p.AccountName,
			Effect:       p.SignedEffect(),
		})
	}

	// newest settlement first; same-day rows fall back to insertion order,
	// newest id first
	sort.SliceStable(resp.Rows, func(i, j int) bool {
		di := models.DateOf(resp.Rows[i].SettleDate)
		dj := models.DateOf(resp.Rows[j].SettleDate)
		if !di.Equal(dj) {
			return dj.Before(di)
		}
		return resp.Rows[i].PostingID > resp.Rows[j].PostingID
	})

	resp.ClosingBalance = resp.OpeningBalance.Add(resp.TotalIn).Sub(resp.TotalOut)
	return resp, nil
}

// selectAccounts resolves the account filter to a name set and sums the
// selected initial balances.
func selectAccounts(ctx context.Context, st store.Store, accountFilter string) (map[string]struct{}, models.Money, error) {
	opening := models.ZeroMoney()
	selected := map[string]struct{}{}
	if accountFilter == AllAccounts || accountFilter == "" {
		accounts, err := st.Accounts().FetchAll(ctx)
		if err != nil {
			return nil, models.Money{}, err
		}
		for _, a := range accounts {
			selected[a.Name] = struct{}{}
			opening = opening.Add(a.InitialBalance)
		}
		return selected, opening, nil
	}
	account, err := st.Accounts().FetchByName(ctx, accountFilter)
	if err != nil {
		return nil, models.Money{}, err
	}
	selected[account.Name] = struct{}{}
	return selected, account.InitialBalance, nil
}

package reports

import (
	"context"
	"sort"

	"github.com/datafluxo/financas_backend/models"
	"github.com/datafluxo/financas_backend/store"
)

// UnattributedParty collects postings whose party name is empty.
const UnattributedParty = "(unattributed)"

type PartySummaryRow struct {
	PartyName      string       `json:"party_name"`
	SettledTotal   models.Money `json:"settled_total"`
	UnsettledTotal models.Money `json:"unsettled_total"`
	GrandTotal     models.Money `json:"grand_total"`
}

type PartySummaryResponse struct {
	Rows []PartySummaryRow `json:"rows"`
}

// GetPartySummaryReport totals postings of the party's trading side grouped
// by party name. Settled totals count settlements up to asOf; unsettled
// totals cover the open postings. Cancelled postings never contribute.
func GetPartySummaryReport(ctx context.Context, st store.Store, kind models.PartyKind, asOf models.Date) (*PartySummaryResponse, error) {
	postingKind := kind.PostingKind()
	postings, err := st.Postings().Fetch(ctx, store.PostingFilter{
		States: []models.PostingState{
			models.PostingStatePending,
			models.PostingStateOverdue,
			models.PostingStateSettled,
		},
		Kind: &postingKind,
	})
	if err != nil {
		return nil, err
	}

	byParty := map[string]*PartySummaryRow{}
	for _, p := range postings {
		name := p.PartyName
		if name == "" {
			name = UnattributedParty
		}
		row, ok := byParty[name]
		if !ok {
			row = &PartySummaryRow{
				PartyName:      name,
				SettledTotal:   models.ZeroMoney(),
				UnsettledTotal: models.ZeroMoney(),
			}
			byParty[name] = row
		}
		if p.State == models.PostingStateSettled {
			settleDay, ok := p.SettleDateOnly()
			if !ok || settleDay.After(asOf) {
				continue
			}
			row.SettledTotal = row.SettledTotal.Add(p.SettledEffect())
		} else {
			row.UnsettledTotal = row.UnsettledTotal.Add(p.Amount)
		}
	}

	resp := &PartySummaryResponse{Rows: []PartySummaryRow{}}
	for _, row := range byParty {
		row.GrandTotal = row.SettledTotal.Add(row.UnsettledTotal)
		if row.GrandTotal.IsZero() {
			continue
		}
		resp.Rows = append(resp.Rows, *row)
	}
	sort.Slice(resp.Rows, func(i, j int) bool {
		cmp := resp.Rows[i].GrandTotal.Cmp(resp.Rows[j].GrandTotal)
		if cmp != 0 {
			return cmp > 0
		}
		return resp.Rows[i].PartyName < resp.Rows[j].PartyName
	})
	return resp, nil
}

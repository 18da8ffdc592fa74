package reports

import (
	"context"
	"sort"

	"github.com/datafluxo/financas_backend/models"
	"github.com/datafluxo/financas_backend/store"
	"github.com/shopspring/decimal"
)

type InadimplenciaRow struct {
	PostingID   int          `json:"posting_id"`
	PartyName   string       `json:"party_name"`
	Description string       `json:"description"`
	DueDate     models.Date  `json:"due_date"`
	DaysLate    int          `json:"days_late"`
	Amount      models.Money `json:"amount"`
}

type InadimplenciaResponse struct {
	OverdueTotal models.Money       `json:"overdue_total"`
	OverdueCount int                `json:"overdue_count"`
	OverdueRatio decimal.Decimal    `json:"overdue_ratio"`
	Rows         []InadimplenciaRow `json:"rows"`
}

// GetInadimplenciaReport lists receivables past their due date as of asOf,
// latest first. The ratio weighs the overdue total against every open
// receivable; it is zero when nothing is open.
func GetInadimplenciaReport(ctx context.Context, st store.Store, asOf models.Date) (*InadimplenciaResponse, error) {
	kind := models.PostingKindIncome
	open, err := st.Postings().Fetch(ctx, store.PostingFilter{
		States: []models.PostingState{models.PostingStatePending, models.PostingStateOverdue},
		Kind:   &kind,
	})
	if err != nil {
		return nil, err
	}

	resp := &InadimplenciaResponse{
		OverdueTotal: models.ZeroMoney(),
		Rows:         []InadimplenciaRow{},
	}
	notYetDue := models.ZeroMoney()
	for _, p := range open {
		if p.DueDate.Before(asOf) {
			resp.OverdueTotal = resp.OverdueTotal.Add(p.Amount)
			resp.OverdueCount++
			resp.Rows = append(resp.Rows, InadimplenciaRow{
				PostingID:   p.ID,
				PartyName:   p.PartyName,
				Description: p.Description,
				DueDate:     p.DueDate,
				DaysLate:    p.DueDate.DaysUntil(asOf),
				Amount:      p.Amount,
			})
		} else {
			notYetDue = notYetDue.Add(p.Amount)
		}
	}
	sort.Slice(resp.Rows, func(i, j int) bool {
		if resp.Rows[i].DaysLate != resp.Rows[j].DaysLate {
			return resp.Rows[i].DaysLate > resp.Rows[j].DaysLate
		}
		return resp.Rows[i].PostingID < resp.Rows[j].PostingID
	})

	denominator := resp.OverdueTotal.Add(notYetDue)
	if denominator.IsPositive() {
		resp.OverdueRatio = resp.OverdueTotal.Decimal().DivRound(denominator.Decimal(), 4)
	}
	return resp, nil
}

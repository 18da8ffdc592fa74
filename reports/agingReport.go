package reports

import (
	"context"
	"fmt"

	"github.com/datafluxo/financas_backend/models"
	"github.com/datafluxo/financas_backend/store"
)

type AgingSide string

const (
	AgingReceivables AgingSide = "receivables"
	AgingPayables    AgingSide = "payables"
)

func ParseAgingSide(s string) (AgingSide, error) {
	switch AgingSide(s) {
	case AgingReceivables, AgingPayables:
		return AgingSide(s), nil
	}
	return "", fmt.Errorf("invalid aging side %q", s)
}

func (s AgingSide) postingKind() models.PostingKind {
	if s == AgingReceivables {
		return models.PostingKindIncome
	}
	return models.PostingKindExpense
}

type AgingBucket struct {
	Total models.Money `json:"total"`
	Count int          `json:"count"`
}

type AgingResponse struct {
	Current    AgingBucket  `json:"current"`
	Days31To60 AgingBucket  `json:"days_31_60"`
	Days61To90 AgingBucket  `json:"days_61_90"`
	Days90Plus AgingBucket  `json:"days_90_plus"`
	Total      models.Money `json:"total"`
}

// GetAgingReport partitions every open posting of the requested side by how
// late it is as of asOf. Lateness is asOf minus due date in days; not-yet-due
// postings land in the current bucket. The bucket totals always sum to the
// unsettled total of the side.
func GetAgingReport(ctx context.Context, st store.Store, side AgingSide, asOf models.Date) (*AgingResponse, error) {
	kind := side.postingKind()
	open, err := st.Postings().Fetch(ctx, store.PostingFilter{
		States: []models.PostingState{models.PostingStatePending, models.PostingStateOverdue},
		Kind:   &kind,
	})
	if err != nil {
		return nil, err
	}

	resp := &AgingResponse{Total: models.ZeroMoney()}
	for _, bucket := range []*AgingBucket{&resp.Current, &resp.Days31To60, &resp.Days61To90, &resp.Days90Plus} {
		bucket.Total = models.ZeroMoney()
	}
	for _, p := range open {
		late := p.DueDate.DaysUntil(asOf)
		bucket := &resp.Current
		switch {
		case late > 90:
			bucket = &resp.Days90Plus
		case late > 60:
			bucket = &resp.Days61To90
		case late > 30:
			bucket = &resp.Days31To60
		}
		bucket.Total = bucket.Total.Add(p.Amount)
		bucket.Count++
		resp.Total = resp.Total.Add(p.Amount)
	}
	return resp, nil
}

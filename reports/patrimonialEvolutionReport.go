package reports

import (
	"context"

	"github.com/datafluxo/financas_backend/models"
	"github.com/datafluxo/financas_backend/store"
)

type EvolutionRow struct {
	Period  string       `json:"period"`
	Opening models.Money `json:"opening"`
	Inflow  models.Money `json:"inflow"`
	Outflow models.Money `json:"outflow"`
	Closing models.Money `json:"closing"`
}

type PatrimonialEvolutionResponse struct {
	Rows []EvolutionRow `json:"rows"`
}

// GetPatrimonialEvolutionReport walks the last monthsBack calendar months
// ending at the asOf month, one row each. Each row's opening equals the
// previous row's closing, and closing minus opening equals inflow minus
// outflow.
func GetPatrimonialEvolutionReport(ctx context.Context, st store.Store, monthsBack int, asOf models.Date) (*PatrimonialEvolutionResponse, error) {
	if monthsBack < 1 {
		monthsBack = 1
	}
	selected, opening, err := selectAccounts(ctx, st, AllAccounts)
	if err != nil {
		return nil, err
	}
	settled, err := st.Postings().Fetch(ctx, store.PostingFilter{
		States: []models.PostingState{models.PostingStateSettled},
	})
	if err != nil {
		return nil, err
	}

	firstMonth := asOf.FirstOfMonth().AddMonths(-(monthsBack - 1))
	for _, p := range settled {
		if p.AccountName == nil {
			continue
		}
		if _, ok := selected[*p.AccountName]; !ok {
			continue
		}
		if settleDay, ok := p.SettleDateOnly(); ok && settleDay.Before(firstMonth) {
			opening = opening.Add(p.SignedEffect())
		}
	}

	resp := &PatrimonialEvolutionResponse{Rows: make([]EvolutionRow, 0, monthsBack)}
	running := opening
	for i := 0; i < monthsBack; i++ {
		monthStart := firstMonth.AddMonths(i)
		monthEnd := monthStart.LastOfMonth()
		row := EvolutionRow{
			Period:  monthStart.Time().Format("2006-01"),
			Opening: running,
			Inflow:  models.ZeroMoney(),
			Outflow: models.ZeroMoney(),
		}
		for _, p := range settled {
			if p.AccountName == nil {
				continue
			}
			if _, ok := selected[*p.AccountName]; !ok {
				continue
			}
			settleDay, ok := p.SettleDateOnly()
			if !ok || settleDay.Before(monthStart) || settleDay.After(monthEnd) {
				continue
			}
			if p.Kind == models.PostingKindIncome {
				row.Inflow = row.Inflow.Add(p.SettledEffect())
			} else {
				row.Outflow = row.Outflow.Add(p.SettledEffect())
			}
		}
		row.Closing = row.Opening.Add(row.Inflow).Sub(row.Outflow)
		running = row.Closing
		resp.Rows = append(resp.Rows, row)
	}
	return resp, nil
}

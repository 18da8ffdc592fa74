package reports

import (
	"context"
	"sort"

	"github.com/datafluxo/financas_backend/models"
	"github.com/datafluxo/financas_backend/store"
	"github.com/shopspring/decimal"
)

// UnspecifiedLine groups postings that carry no subcategory inside their
// category block.
const UnspecifiedLine = "(unspecified)"

type DREResponse struct {
	Income       []DRECategory    `json:"income"`
	Expense      []DRECategory    `json:"expense"`
	TotalIncome  models.Money     `json:"total_income"`
	TotalExpense models.Money     `json:"total_expense"`
	Result       models.Money     `json:"result"`
	Margin       *decimal.Decimal `json:"margin"`
}

type DRECategory struct {
	Name          string       `json:"name"`
	Total         models.Money `json:"total"`
	Subcategories []DRELine    `json:"subcategories"`
}

type DRELine struct {
	Name   string       `json:"name"`
	Amount models.Money `json:"amount"`
}

// GetDREReport builds the result-of-exercise tree over settled postings with
// settle date inside [fromDate, toDate]. Categories and subcategory lines
// with zero total are suppressed; margin is result over income, nil when
// there is no income.
func GetDREReport(ctx context.Context, st store.Store, fromDate, toDate models.Date) (*DREResponse, error) {
	settled, err := st.Postings().Fetch(ctx, store.PostingFilter{
		States:     []models.PostingState{models.PostingStateSettled},
		SettleFrom: &fromDate,
		SettleTo:   &toDate,
	})
	if err != nil {
		return nil, err
	}

	incomeTree := map[string]map[string]models.Money{}
	expenseTree := map[string]map[string]models.Money{}
	for _, p := range settled {
		tree := incomeTree
		if p.Kind == models.PostingKindExpense {
			tree = expenseTree
		}
		lines, ok := tree[p.CategoryName]
		if !ok {
			lines = map[string]models.Money{}
			tree[p.CategoryName] = lines
		}
		line := p.SubcategoryName
		if line == "" {
			line = UnspecifiedLine
		}
		lines[line] = lines[line].Add(p.SettledEffect())
	}

	resp := &DREResponse{
		Income:       buildDRECategories(incomeTree),
		Expense:      buildDRECategories(expenseTree),
		TotalIncome:  models.ZeroMoney(),
		TotalExpense: models.ZeroMoney(),
	}
	for _, c := range resp.Income {
		resp.TotalIncome = resp.TotalIncome.Add(c.Total)
	}
	for _, c := range resp.Expense {
		resp.TotalExpense = resp.TotalExpense.Add(c.Total)
	}
	resp.Result = resp.TotalIncome.Sub(resp.TotalExpense)
	if resp.TotalIncome.IsPositive() {
		margin := resp.Result.Decimal().DivRound(resp.TotalIncome.Decimal(), 4)
		resp.Margin = &margin
	}
	return resp, nil
}

// buildDRECategories flattens a category tree into the report ordering:
// categories by descending total, lines by descending amount, names break
// ties so the output is stable.
func buildDRECategories(tree map[string]map[string]models.Money) []DRECategory {
	out := []DRECategory{}
	for name, lines := range tree {
		category := DRECategory{Name: name, Total: models.ZeroMoney()}
		for lineName, amount := range lines {
			if amount.IsZero() {
				continue
			}
			category.Total = category.Total.Add(amount)
			category.Subcategories = append(category.Subcategories, DRELine{Name: lineName, Amount: amount})
		}
		if category.Total.IsZero() {
			continue
		}
		sort.Slice(category.Subcategories, func(i, j int) bool {
			cmp := category.Subcategories[i].Amount.Cmp(category.Subcategories[j].Amount)
			if cmp != 0 {
				return cmp > 0
			}
			return category.Subcategories[i].Name < category.Subcategories[j].Name
		})
		out = append(out, category)
	}
	sort.Slice(out, func(i, j int) bool {
		cmp := out[i].Total.Cmp(out[j].Total)
		if cmp != 0 {
			return cmp > 0
		}
		return out[i].Name < out[j].Name
	})
	return out
}

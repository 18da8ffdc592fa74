package reports

import (
	"context"
	"testing"
	"time"

	"github.com/datafluxo/financas_backend/models"
	"github.com/datafluxo/financas_backend/store/memstore"
	"github.com/datafluxo/financas_backend/utils"
)

func seedStore(t *testing.T) *memstore.Mem {
	t.Helper()
	ctx := context.Background()
	m := memstore.New()
	accounts := []*models.Account{
		{Name: "Caixa", InitialBalance: models.MustMoney("1000.00"), IsActive: utils.NewTrue()},
		{Name: "Poupanca", InitialBalance: models.MustMoney("500.00"), IsActive: utils.NewTrue()},
	}
	for _, a := range accounts {
		if err := m.Accounts().Insert(ctx, a); err != nil {
			t.Fatalf("seed account: %v", err)
		}
	}
	return m
}

func insertPosting(t *testing.T, m *memstore.Mem, p *models.Posting) *models.Posting {
	t.Helper()
	if p.Interest.IsZero() {
		p.Interest = models.ZeroMoney()
	}
	if err := m.Postings().Insert(context.Background(), p); err != nil {
		t.Fatalf("seed posting: %v", err)
	}
	return p
}

func settledPosting(kind models.PostingKind, amount, interest, category, subcategory, account string, settleDay models.Date) *models.Posting {
	settleAt := settleDay.Time()
	return &models.Posting{
		Kind:            kind,
		Description:     "settled fixture",
		Amount:          models.MustMoney(amount),
		DueDate:         settleDay,
		SettleDate:      &settleAt,
		State:           models.PostingStateSettled,
		CategoryName:    category,
		SubcategoryName: subcategory,
		AccountName:     &account,
		Interest:        models.MustMoney(interest),
	}
}

func openPosting(kind models.PostingKind, amount, category, party string, due models.Date) *models.Posting {
	return &models.Posting{
		Kind:         kind,
		Description:  "open fixture",
		Amount:       models.MustMoney(amount),
		DueDate:      due,
		State:        models.PostingStatePending,
		CategoryName: category,
		PartyName:    party,
		Interest:     models.ZeroMoney(),
	}
}

func TestCashFlowIdentityAndTotals(t *testing.T) {
	ctx := context.Background()
	m := seedStore(t)
	jan := func(day int) models.Date { return models.NewDate(2026, time.January, day) }

	// before the window: moves opening, not the rows
	insertPosting(t, m, settledPosting(models.PostingKindIncome, "300.00", "0.00", "Vendas", "", "Caixa", models.NewDate(2025, time.December, 20)))
	insertPosting(t, m, settledPosting(models.PostingKindIncome, "250.00", "0.00", "Vendas", "", "Caixa", jan(10)))
	insertPosting(t, m, settledPosting(models.PostingKindExpense, "100.00", "5.00", "Moradia", "", "Caixa", jan(20)))
	// after the window: invisible
	insertPosting(t, m, settledPosting(models.PostingKindIncome, "999.00", "0.00", "Vendas", "", "Caixa", models.NewDate(2026, time.February, 2)))

	flow, err := GetCashFlowReport(ctx, m, AllAccounts, jan(1), jan(31))
	if err != nil {
		t.Fatalf("GetCashFlowReport: %v", err)
	}
	if flow.OpeningBalance.String() != "1800.00" {
		t.Fatalf("opening = %s, want 1800.00", flow.OpeningBalance)
	}
	if flow.TotalIn.String() != "250.00" || flow.TotalOut.String() != "105.00" {
		t.Fatalf("totals = in %s out %s", flow.TotalIn, flow.TotalOut)
	}
	expected := flow.OpeningBalance.Add(flow.TotalIn).Sub(flow.TotalOut)
	if !flow.ClosingBalance.Equal(expected) {
		t.Fatalf("closing identity broken: %s vs %s", flow.ClosingBalance, expected)
	}
	if len(flow.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(flow.Rows))
	}
	// newest settlement first
	if flow.Rows[0].SettleDate.Before(flow.Rows[1].SettleDate) {
		t.Fatalf("rows not ordered newest first: %+v", flow.Rows)
	}
}

func TestCashFlowSingleAccountFilter(t *testing.T) {
	ctx := context.Background()
	m := seedStore(t)
	jan := func(day int) models.Date { return models.NewDate(2026, time.January, day) }
	insertPosting(t, m, settledPosting(models.PostingKindIncome, "250.00", "0.00", "Vendas", "", "Caixa", jan(10)))
	insertPosting(t, m, settledPosting(models.PostingKindIncome, "80.00", "0.00", "Vendas", "", "Poupanca", jan(12)))

	flow, err := GetCashFlowReport(ctx, m, "Caixa", jan(1), jan(31))
	if err != nil {
		t.Fatalf("GetCashFlowReport: %v", err)
	}
	if flow.OpeningBalance.String() != "1000.00" {
		t.Fatalf("opening = %s", flow.OpeningBalance)
	}
	if len(flow.Rows) != 1 || flow.Rows[0].AccountName != "Caixa" {
		t.Fatalf("rows = %+v", flow.Rows)
	}
	if flow.ClosingBalance.String() != "1250.00" {
		t.Fatalf("closing = %s, want 1250.00", flow.ClosingBalance)
	}
}

func TestAgingBucketsAndCompleteness(t *testing.T) {
	ctx := context.Background()
	m := seedStore(t)
	asOf := models.NewDate(2026, time.February, 28)

	notYetDue := openPosting(models.PostingKindIncome, "100.00", "Vendas", "", models.NewDate(2026, time.March, 10))
	within30 := openPosting(models.PostingKindIncome, "200.00", "Vendas", "", models.NewDate(2026, time.February, 1))
	// scenario boundary: due 2026-01-15 is 44 days late, bucket 31-60
	days44 := openPosting(models.PostingKindIncome, "500.00", "Vendas", "", models.NewDate(2026, time.January, 15))
	days75 := openPosting(models.PostingKindIncome, "300.00", "Vendas", "", models.NewDate(2025, time.December, 15))
	days97 := openPosting(models.PostingKindIncome, "400.00", "Vendas", "", models.NewDate(2025, time.November, 23))
	for _, p := range []*models.Posting{notYetDue, within30, days44, days75, days97} {
		insertPosting(t, m, p)
	}
	// payables and cancelled rows never leak into receivables
	insertPosting(t, m, openPosting(models.PostingKindExpense, "999.00", "Moradia", "", models.NewDate(2026, time.January, 1)))
	cancelled := openPosting(models.PostingKindIncome, "888.00", "Vendas", "", models.NewDate(2026, time.January, 1))
	cancelled.State = models.PostingStateCancelled
	insertPosting(t, m, cancelled)

	aging, err := GetAgingReport(ctx, m, AgingReceivables, asOf)
	if err != nil {
		t.Fatalf("GetAgingReport: %v", err)
	}
	if aging.Current.Total.String() != "300.00" || aging.Current.Count != 2 {
		t.Fatalf("current = %+v", aging.Current)
	}
	if aging.Days31To60.Total.String() != "500.00" {
		t.Fatalf("31-60 = %+v", aging.Days31To60)
	}
	if aging.Days61To90.Total.String() != "300.00" {
		t.Fatalf("61-90 = %+v", aging.Days61To90)
	}
	if aging.Days90Plus.Total.String() != "400.00" {
		t.Fatalf("90+ = %+v", aging.Days90Plus)
	}

	bucketSum := aging.Current.Total.
		Add(aging.Days31To60.Total).
		Add(aging.Days61To90.Total).
		Add(aging.Days90Plus.Total)
	if !bucketSum.Equal(aging.Total) {
		t.Fatalf("bucket sum %s != total %s", bucketSum, aging.Total)
	}
	if aging.Total.String() != "1500.00" {
		t.Fatalf("total = %s", aging.Total)
	}
}

func TestAgingExactly30DaysLateIsCurrent(t *testing.T) {
	ctx := context.Background()
	m := seedStore(t)
	asOf := models.NewDate(2026, time.March, 2)
	insertPosting(t, m, openPosting(models.PostingKindIncome, "10.00", "Vendas", "", models.NewDate(2026, time.January, 31)))

	aging, err := GetAgingReport(ctx, m, AgingReceivables, asOf)
	if err != nil {
		t.Fatalf("GetAgingReport: %v", err)
	}
	if aging.Current.Count != 1 || aging.Days31To60.Count != 0 {
		t.Fatalf("30-day boundary misplaced: %+v", aging)
	}
}

func TestDREMatchesCashFlow(t *testing.T) {
	ctx := context.Background()
	m := seedStore(t)
	jan := func(day int) models.Date { return models.NewDate(2026, time.January, day) }
	insertPosting(t, m, settledPosting(models.PostingKindIncome, "250.00", "0.00", "Vendas", "Servicos", "Caixa", jan(10)))
	insertPosting(t, m, settledPosting(models.PostingKindIncome, "150.00", "0.00", "Outras Receitas", "", "Caixa", jan(15)))
	insertPosting(t, m, settledPosting(models.PostingKindExpense, "100.00", "5.00", "Moradia", "", "Caixa", jan(20)))

	dre, err := GetDREReport(ctx, m, jan(1), jan(31))
	if err != nil {
		t.Fatalf("GetDREReport: %v", err)
	}
	flow, err := GetCashFlowReport(ctx, m, AllAccounts, jan(1), jan(31))
	if err != nil {
		t.Fatalf("GetCashFlowReport: %v", err)
	}
	if !dre.TotalIncome.Equal(flow.TotalIn) {
		t.Fatalf("DRE income %s != cash flow in %s", dre.TotalIncome, flow.TotalIn)
	}
	if !dre.TotalExpense.Equal(flow.TotalOut) {
		t.Fatalf("DRE expense %s != cash flow out %s", dre.TotalExpense, flow.TotalOut)
	}
	if dre.Result.String() != "295.00" {
		t.Fatalf("result = %s", dre.Result)
	}
	if dre.Margin == nil {
		t.Fatal("margin missing with positive income")
	}

	// categories ordered by descending total
	if len(dre.Income) != 2 || dre.Income[0].Name != "Vendas" {
		t.Fatalf("income ordering = %+v", dre.Income)
	}
	if dre.Income[0].Subcategories[0].Name != "Servicos" {
		t.Fatalf("subcategory lines = %+v", dre.Income[0].Subcategories)
	}
}

func TestReportsAgreeAfterAccountDeactivation(t *testing.T) {
	ctx := context.Background()
	m := seedStore(t)
	jan := func(day int) models.Date { return models.NewDate(2026, time.January, day) }

	velha := &models.Account{Name: "Velha", InitialBalance: models.MustMoney("100.00"), IsActive: utils.NewTrue()}
	if err := m.Accounts().Insert(ctx, velha); err != nil {
		t.Fatalf("seed account: %v", err)
	}
	insertPosting(t, m, settledPosting(models.PostingKindIncome, "250.00", "0.00", "Vendas", "", "Velha", jan(10)))
	if err := m.Accounts().Deactivate(ctx, "Velha"); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}

	flow, err := GetCashFlowReport(ctx, m, AllAccounts, jan(1), jan(31))
	if err != nil {
		t.Fatalf("GetCashFlowReport: %v", err)
	}
	dre, err := GetDREReport(ctx, m, jan(1), jan(31))
	if err != nil {
		t.Fatalf("GetDREReport: %v", err)
	}

	// the deactivated account's settled history stays visible everywhere
	if !dre.TotalIncome.Equal(flow.TotalIn) {
		t.Fatalf("DRE income %s != cash flow in %s after deactivation", dre.TotalIncome, flow.TotalIn)
	}
	if flow.TotalIn.String() != "250.00" {
		t.Fatalf("cash flow dropped the deactivated account: in = %s", flow.TotalIn)
	}
	if flow.OpeningBalance.String() != "1600.00" {
		t.Fatalf("opening = %s, want 1600.00", flow.OpeningBalance)
	}

	evolution, err := GetPatrimonialEvolutionReport(ctx, m, 1, jan(31))
	if err != nil {
		t.Fatalf("GetPatrimonialEvolutionReport: %v", err)
	}
	if !evolution.Rows[0].Inflow.Equal(flow.TotalIn) {
		t.Fatalf("evolution inflow %s != cash flow in %s", evolution.Rows[0].Inflow, flow.TotalIn)
	}
}

func TestDREReflectsCategoryRename(t *testing.T) {
	ctx := context.Background()
	m := seedStore(t)
	jan := func(day int) models.Date { return models.NewDate(2026, time.January, day) }
	if err := m.Categories().Insert(ctx, &models.Category{Name: "Vendas", Kind: models.CategoryKindIncome}); err != nil {
		t.Fatalf("seed category: %v", err)
	}
	insertPosting(t, m, settledPosting(models.PostingKindIncome, "250.00", "0.00", "Vendas", "", "Caixa", jan(10)))

	if err := m.Categories().Rename(ctx, "Vendas", "Receitas de Vendas"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	dre, err := GetDREReport(ctx, m, jan(1), jan(31))
	if err != nil {
		t.Fatalf("GetDREReport: %v", err)
	}
	if len(dre.Income) != 1 || dre.Income[0].Name != "Receitas de Vendas" {
		t.Fatalf("renamed category missing: %+v", dre.Income)
	}
}

func TestDREWithoutIncomeHasNoMargin(t *testing.T) {
	ctx := context.Background()
	m := seedStore(t)
	jan := func(day int) models.Date { return models.NewDate(2026, time.January, day) }
	insertPosting(t, m, settledPosting(models.PostingKindExpense, "100.00", "0.00", "Moradia", "", "Caixa", jan(20)))

	dre, err := GetDREReport(ctx, m, jan(1), jan(31))
	if err != nil {
		t.Fatalf("GetDREReport: %v", err)
	}
	if dre.Margin != nil {
		t.Fatalf("margin should be nil, got %v", dre.Margin)
	}
	if dre.Result.String() != "-100.00" {
		t.Fatalf("result = %s", dre.Result)
	}
}

func TestPartySummaryGroupsAndBuckets(t *testing.T) {
	ctx := context.Background()
	m := seedStore(t)
	asOf := models.NewDate(2026, time.March, 31)
	jan := func(day int) models.Date { return models.NewDate(2026, time.January, day) }

	settled := settledPosting(models.PostingKindIncome, "250.00", "0.00", "Vendas", "", "Caixa", jan(10))
	settled.PartyName = "Acme"
	insertPosting(t, m, settled)
	insertPosting(t, m, openPosting(models.PostingKindIncome, "100.00", "Vendas", "Acme", jan(25)))
	insertPosting(t, m, openPosting(models.PostingKindIncome, "40.00", "Vendas", "", jan(25)))

	resp, err := GetPartySummaryReport(ctx, m, models.PartyKindClient, asOf)
	if err != nil {
		t.Fatalf("GetPartySummaryReport: %v", err)
	}
	if len(resp.Rows) != 2 {
		t.Fatalf("rows = %+v", resp.Rows)
	}
	acme := resp.Rows[0]
	if acme.PartyName != "Acme" || acme.SettledTotal.String() != "250.00" ||
		acme.UnsettledTotal.String() != "100.00" || acme.GrandTotal.String() != "350.00" {
		t.Fatalf("acme row = %+v", acme)
	}
	if resp.Rows[1].PartyName != UnattributedParty {
		t.Fatalf("unattributed bucket missing: %+v", resp.Rows[1])
	}
}

func TestPatrimonialEvolutionContinuity(t *testing.T) {
	ctx := context.Background()
	m := seedStore(t)
	insertPosting(t, m, settledPosting(models.PostingKindIncome, "250.00", "0.00", "Vendas", "", "Caixa", models.NewDate(2026, time.January, 10)))
	insertPosting(t, m, settledPosting(models.PostingKindExpense, "100.00", "0.00", "Moradia", "", "Caixa", models.NewDate(2026, time.February, 5)))
	insertPosting(t, m, settledPosting(models.PostingKindIncome, "80.00", "0.00", "Vendas", "", "Poupanca", models.NewDate(2026, time.March, 1)))

	resp, err := GetPatrimonialEvolutionReport(ctx, m, 3, models.NewDate(2026, time.March, 15))
	if err != nil {
		t.Fatalf("GetPatrimonialEvolutionReport: %v", err)
	}
	if len(resp.Rows) != 3 {
		t.Fatalf("rows = %d", len(resp.Rows))
	}
	if resp.Rows[0].Period != "2026-01" || resp.Rows[2].Period != "2026-03" {
		t.Fatalf("periods = %+v", resp.Rows)
	}
	for i := 1; i < len(resp.Rows); i++ {
		if !resp.Rows[i].Opening.Equal(resp.Rows[i-1].Closing) {
			t.Fatalf("continuity broken at row %d: %+v", i, resp.Rows)
		}
	}
	for _, row := range resp.Rows {
		expected := row.Opening.Add(row.Inflow).Sub(row.Outflow)
		if !row.Closing.Equal(expected) {
			t.Fatalf("row identity broken: %+v", row)
		}
	}
	if resp.Rows[0].Opening.String() != "1500.00" {
		t.Fatalf("first opening = %s", resp.Rows[0].Opening)
	}
	if resp.Rows[2].Closing.String() != "1730.00" {
		t.Fatalf("last closing = %s", resp.Rows[2].Closing)
	}
}

func TestInadimplenciaRatio(t *testing.T) {
	ctx := context.Background()
	m := seedStore(t)
	asOf := models.NewDate(2026, time.March, 1)

	overdue := openPosting(models.PostingKindIncome, "300.00", "Vendas", "Acme", models.NewDate(2026, time.January, 15))
	insertPosting(t, m, overdue)
	insertPosting(t, m, openPosting(models.PostingKindIncome, "100.00", "Vendas", "", models.NewDate(2026, time.April, 1)))
	// payables never count as inadimplencia
	insertPosting(t, m, openPosting(models.PostingKindExpense, "500.00", "Moradia", "", models.NewDate(2026, time.January, 1)))

	resp, err := GetInadimplenciaReport(ctx, m, asOf)
	if err != nil {
		t.Fatalf("GetInadimplenciaReport: %v", err)
	}
	if resp.OverdueCount != 1 || resp.OverdueTotal.String() != "300.00" {
		t.Fatalf("overdue = %d / %s", resp.OverdueCount, resp.OverdueTotal)
	}
	if resp.OverdueRatio.String() != "0.75" {
		t.Fatalf("ratio = %s, want 0.75", resp.OverdueRatio)
	}
	if len(resp.Rows) != 1 || resp.Rows[0].DaysLate != 45 {
		t.Fatalf("rows = %+v", resp.Rows)
	}
}

func TestInadimplenciaEmptyDenominator(t *testing.T) {
	ctx := context.Background()
	m := seedStore(t)
	resp, err := GetInadimplenciaReport(ctx, m, models.NewDate(2026, time.March, 1))
	if err != nil {
		t.Fatalf("GetInadimplenciaReport: %v", err)
	}
	if !resp.OverdueRatio.IsZero() {
		t.Fatalf("ratio = %s, want 0", resp.OverdueRatio)
	}
}

func TestCancelledPostingsNeverInfluenceReports(t *testing.T) {
	ctx := context.Background()
	m := seedStore(t)
	jan := func(day int) models.Date { return models.NewDate(2026, time.January, day) }
	insertPosting(t, m, settledPosting(models.PostingKindIncome, "250.00", "0.00", "Vendas", "", "Caixa", jan(10)))
	insertPosting(t, m, openPosting(models.PostingKindIncome, "100.00", "Vendas", "Acme", jan(25)))

	before, err := GetCashFlowReport(ctx, m, AllAccounts, jan(1), jan(31))
	if err != nil {
		t.Fatalf("GetCashFlowReport: %v", err)
	}
	agingBefore, err := GetAgingReport(ctx, m, AgingReceivables, models.NewDate(2026, time.February, 28))
	if err != nil {
		t.Fatalf("GetAgingReport: %v", err)
	}

	cancelled := openPosting(models.PostingKindIncome, "9999.00", "Vendas", "Acme", jan(5))
	cancelled.State = models.PostingStateCancelled
	insertPosting(t, m, cancelled)

	after, err := GetCashFlowReport(ctx, m, AllAccounts, jan(1), jan(31))
	if err != nil {
		t.Fatalf("GetCashFlowReport: %v", err)
	}
	agingAfter, err := GetAgingReport(ctx, m, AgingReceivables, models.NewDate(2026, time.February, 28))
	if err != nil {
		t.Fatalf("GetAgingReport: %v", err)
	}

	if !before.ClosingBalance.Equal(after.ClosingBalance) || len(before.Rows) != len(after.Rows) {
		t.Fatal("cancelled posting changed the cash flow")
	}
	if !agingBefore.Total.Equal(agingAfter.Total) {
		t.Fatal("cancelled posting changed the aging totals")
	}
}

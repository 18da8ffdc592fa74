package workflow

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/datafluxo/financas_backend/models"
	"github.com/datafluxo/financas_backend/store/memstore"
	"github.com/datafluxo/financas_backend/utils"
	"github.com/sirupsen/logrus"
)

var testNow = time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

func newTestLedger(t *testing.T) (*Ledger, *memstore.Mem) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	m := memstore.New()
	ledger := NewLedger(m, logger, nil, nil).WithClock(func() time.Time { return testNow })

	ctx := context.Background()
	accounts := []*models.Account{
		{Name: "Caixa", InitialBalance: models.MustMoney("1000.00"), IsActive: utils.NewTrue()},
		{Name: "Poupanca", InitialBalance: models.MustMoney("500.00"), IsActive: utils.NewTrue()},
		{Name: "Antiga", InitialBalance: models.ZeroMoney(), IsActive: utils.NewFalse()},
	}
	for _, a := range accounts {
		if err := m.Accounts().Insert(ctx, a); err != nil {
			t.Fatalf("seed account: %v", err)
		}
	}
	categories := []*models.Category{
		{Name: "Vendas", Kind: models.CategoryKindIncome, Subcategories: models.StringList{"Servicos"}},
		{Name: "Moradia", Kind: models.CategoryKindExpense},
	}
	for _, c := range categories {
		if err := m.Categories().Insert(ctx, c); err != nil {
			t.Fatalf("seed category: %v", err)
		}
	}
	return ledger, m
}

func post(t *testing.T, ledger *Ledger, kind models.PostingKind, amount, category string, due models.Date) *models.Posting {
	t.Helper()
	p, err := ledger.Post(context.Background(), &models.NewPosting{
		Kind:         kind,
		Description:  "test posting",
		Amount:       models.MustMoney(amount),
		DueDate:      due,
		CategoryName: category,
	})
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	return p
}

func TestPostAndSettleIncomeUpdatesBalance(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	p := post(t, ledger, models.PostingKindIncome, "250.00", "Vendas", models.NewDate(2026, time.January, 10))

	settleAt := time.Date(2026, time.January, 10, 0, 0, 0, 0, time.UTC)
	settled, err := ledger.Settle(ctx, p.ID, "Caixa", settleAt, models.ZeroMoney())
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if settled.State != models.PostingStateSettled {
		t.Fatalf("state = %q", settled.State)
	}

	balance, err := ledger.Balance(ctx, "Caixa", models.NewDate(2026, time.January, 10))
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if balance.String() != "1250.00" {
		t.Fatalf("balance = %s, want 1250.00", balance)
	}
}

func TestSettleExpenseWithInterest(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	income := post(t, ledger, models.PostingKindIncome, "250.00", "Vendas", models.NewDate(2026, time.January, 10))
	if _, err := ledger.Settle(ctx, income.ID, "Caixa", time.Date(2026, time.January, 10, 0, 0, 0, 0, time.UTC), models.ZeroMoney()); err != nil {
		t.Fatalf("settle income: %v", err)
	}
	expense := post(t, ledger, models.PostingKindExpense, "100.00", "Moradia", models.NewDate(2026, time.January, 20))
	if _, err := ledger.Settle(ctx, expense.ID, "Caixa", time.Date(2026, time.January, 20, 0, 0, 0, 0, time.UTC), models.MustMoney("5.00")); err != nil {
		t.Fatalf("settle expense: %v", err)
	}

	balance, err := ledger.Balance(ctx, "Caixa", models.NewDate(2026, time.January, 31))
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if balance.String() != "1145.00" {
		t.Fatalf("balance = %s, want 1145.00", balance)
	}
}

func TestSettleRejectsUnknownAndInactiveAccounts(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()
	p := post(t, ledger, models.PostingKindIncome, "10.00", "Vendas", models.NewDate(2026, time.March, 1))

	if _, err := ledger.Settle(ctx, p.ID, "Inexistente", testNow, models.ZeroMoney()); !errors.Is(err, models.ErrorAccountUnknown) {
		t.Fatalf("expected ErrorAccountUnknown, got %v", err)
	}
	if _, err := ledger.Settle(ctx, p.ID, "Antiga", testNow, models.ZeroMoney()); !errors.Is(err, models.ErrorAccountInactive) {
		t.Fatalf("expected ErrorAccountInactive, got %v", err)
	}
}

func TestSettleDateTolerance(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	// one calendar day ahead is tolerated clock skew
	p := post(t, ledger, models.PostingKindIncome, "10.00", "Vendas", models.NewDate(2026, time.March, 1))
	if _, err := ledger.Settle(ctx, p.ID, "Caixa", testNow.AddDate(0, 0, 1), models.ZeroMoney()); err != nil {
		t.Fatalf("next-day settle rejected: %v", err)
	}

	p = post(t, ledger, models.PostingKindIncome, "10.00", "Vendas", models.NewDate(2026, time.March, 1))
	if _, err := ledger.Settle(ctx, p.ID, "Caixa", testNow.AddDate(0, 0, 2), models.ZeroMoney()); !errors.Is(err, models.ErrorSettlementInFuture) {
		t.Fatalf("expected ErrorSettlementInFuture, got %v", err)
	}

	// past-dated settlement is legitimate book-keeping
	p = post(t, ledger, models.PostingKindIncome, "10.00", "Vendas", models.NewDate(2026, time.March, 1))
	if _, err := ledger.Settle(ctx, p.ID, "Caixa", testNow.AddDate(0, -6, 0), models.ZeroMoney()); err != nil {
		t.Fatalf("past settle rejected: %v", err)
	}
}

func TestSettleUnsettleRoundTrip(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	// due in the future relative to the pinned clock
	p := post(t, ledger, models.PostingKindIncome, "77.70", "Vendas", models.NewDate(2026, time.April, 1))
	before := *p

	if _, err := ledger.Settle(ctx, p.ID, "Caixa", testNow, models.MustMoney("2.00")); err != nil {
		t.Fatalf("Settle: %v", err)
	}
	after, err := ledger.Unsettle(ctx, p.ID)
	if err != nil {
		t.Fatalf("Unsettle: %v", err)
	}

	if after.State != models.PostingStatePending {
		t.Fatalf("state after round trip = %q", after.State)
	}
	if after.SettleDate != nil || after.AccountName != nil || !after.Interest.IsZero() {
		t.Fatalf("settlement fields not cleared: %+v", after)
	}
	if !after.Amount.Equal(before.Amount) || after.Description != before.Description ||
		!after.DueDate.Equal(before.DueDate) || after.CategoryName != before.CategoryName {
		t.Fatalf("round trip changed observables: %+v vs %+v", after, before)
	}

	// past-due posting returns to overdue instead
	p = post(t, ledger, models.PostingKindIncome, "10.00", "Vendas", models.NewDate(2026, time.January, 2))
	if _, err := ledger.Settle(ctx, p.ID, "Caixa", testNow, models.ZeroMoney()); err != nil {
		t.Fatalf("Settle: %v", err)
	}
	after, err = ledger.Unsettle(ctx, p.ID)
	if err != nil {
		t.Fatalf("Unsettle: %v", err)
	}
	if after.State != models.PostingStateOverdue {
		t.Fatalf("past-due posting state = %q, want overdue", after.State)
	}
}

func TestEditRules(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	p := post(t, ledger, models.PostingKindIncome, "100.00", "Vendas", models.NewDate(2026, time.April, 1))
	if _, err := ledger.Settle(ctx, p.ID, "Caixa", testNow, models.ZeroMoney()); err != nil {
		t.Fatalf("Settle: %v", err)
	}

	amount := models.MustMoney("200.00")
	if _, err := ledger.Edit(ctx, p.ID, &models.PostingPatch{Amount: &amount}); !errors.Is(err, models.ErrorPostingSettled) {
		t.Fatalf("amount edit on settled posting: %v", err)
	}
	description := "adjusted description"
	if _, err := ledger.Edit(ctx, p.ID, &models.PostingPatch{Description: &description}); err != nil {
		t.Fatalf("description edit on settled posting rejected: %v", err)
	}

	cancelled := post(t, ledger, models.PostingKindIncome, "10.00", "Vendas", models.NewDate(2026, time.April, 1))
	if _, err := ledger.Cancel(ctx, cancelled.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if _, err := ledger.Edit(ctx, cancelled.ID, &models.PostingPatch{Description: &description}); !errors.Is(err, models.ErrorPostingCancelled) {
		t.Fatalf("edit on cancelled posting: %v", err)
	}
}

func TestPostRejectsCategoryMismatch(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	_, err := ledger.Post(ctx, &models.NewPosting{
		Kind:         models.PostingKindExpense,
		Description:  "wrong side",
		Amount:       models.MustMoney("10.00"),
		DueDate:      models.NewDate(2026, time.April, 1),
		CategoryName: "Vendas",
	})
	if !errors.Is(err, models.ErrorCategoryKindConflict) {
		t.Fatalf("expected ErrorCategoryKindConflict, got %v", err)
	}

	_, err = ledger.Post(ctx, &models.NewPosting{
		Kind:            models.PostingKindIncome,
		Description:     "bad subcategory",
		Amount:          models.MustMoney("10.00"),
		DueDate:         models.NewDate(2026, time.April, 1),
		CategoryName:    "Vendas",
		SubcategoryName: "Inexistente",
	})
	if err == nil {
		t.Fatal("unknown subcategory accepted")
	}
}

func TestCancelAndDeleteRules(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	p := post(t, ledger, models.PostingKindIncome, "10.00", "Vendas", models.NewDate(2026, time.April, 1))
	if _, err := ledger.Settle(ctx, p.ID, "Caixa", testNow, models.ZeroMoney()); err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if _, err := ledger.Cancel(ctx, p.ID); !errors.Is(err, models.ErrorPostingSettled) {
		t.Fatalf("cancel of settled posting: %v", err)
	}
	if err := ledger.Delete(ctx, p.ID); !errors.Is(err, models.ErrorPostingSettled) {
		t.Fatalf("delete of settled posting: %v", err)
	}

	open := post(t, ledger, models.PostingKindIncome, "10.00", "Vendas", models.NewDate(2026, time.April, 1))
	if _, err := ledger.Cancel(ctx, open.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	// cancelling again is a no-op
	if _, err := ledger.Cancel(ctx, open.ID); err != nil {
		t.Fatalf("repeated Cancel: %v", err)
	}
	if err := ledger.Delete(ctx, open.ID); err != nil {
		t.Fatalf("delete of cancelled posting: %v", err)
	}
}

func TestConcurrentSettleThroughEngine(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()
	p := post(t, ledger, models.PostingKindIncome, "500.00", "Vendas", models.NewDate(2026, time.January, 15))

	const callers = 8
	var wg sync.WaitGroup
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.Settle(ctx, p.ID, "Caixa", testNow, models.ZeroMoney())
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var wins int
	for err := range results {
		if err == nil {
			wins++
		} else if !errors.Is(err, models.ErrorPostingNotPending) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("wins = %d, want 1", wins)
	}

	balance, err := ledger.Balance(ctx, "Caixa", models.DateOf(testNow))
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if balance.String() != "1500.00" {
		t.Fatalf("balance = %s, want one 500.00 increment over 1000.00", balance)
	}
}

func TestBalanceCacheInvalidation(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	m := memstore.New()
	cache := NewMemoryBalanceCache()
	ledger := NewLedger(m, logger, cache, nil).WithClock(func() time.Time { return testNow })
	ctx := context.Background()

	if err := m.Accounts().Insert(ctx, &models.Account{Name: "Caixa", InitialBalance: models.MustMoney("1000.00"), IsActive: utils.NewTrue()}); err != nil {
		t.Fatalf("seed account: %v", err)
	}
	if err := m.Categories().Insert(ctx, &models.Category{Name: "Vendas", Kind: models.CategoryKindIncome}); err != nil {
		t.Fatalf("seed category: %v", err)
	}

	today := models.DateOf(testNow)
	first, err := ledger.Balance(ctx, "Caixa", today)
	if err != nil || first.String() != "1000.00" {
		t.Fatalf("initial balance = %s, %v", first, err)
	}

	p := post(t, ledger, models.PostingKindIncome, "250.00", "Vendas", today)
	if _, err := ledger.Settle(ctx, p.ID, "Caixa", testNow, models.ZeroMoney()); err != nil {
		t.Fatalf("Settle: %v", err)
	}

	// no stale read after a committed write in the same process
	second, err := ledger.Balance(ctx, "Caixa", today)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if second.String() != "1250.00" {
		t.Fatalf("balance after settle = %s, want 1250.00", second)
	}
}

func TestRecomputeBalancesFillsCache(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	m := memstore.New()
	cache := NewMemoryBalanceCache()
	ledger := NewLedger(m, logger, cache, nil).WithClock(func() time.Time { return testNow })
	ctx := context.Background()

	if err := m.Accounts().Insert(ctx, &models.Account{Name: "Caixa", InitialBalance: models.MustMoney("300.00"), IsActive: utils.NewTrue()}); err != nil {
		t.Fatalf("seed account: %v", err)
	}
	if err := ledger.RecomputeBalances(ctx); err != nil {
		t.Fatalf("RecomputeBalances: %v", err)
	}
	cached, ok, err := cache.Get(ctx, "Caixa")
	if err != nil || !ok {
		t.Fatalf("cache miss after recompute: %v", err)
	}
	if cached.String() != "300.00" {
		t.Fatalf("cached balance = %s", cached)
	}
}

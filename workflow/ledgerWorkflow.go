// Package workflow holds the ledger engine: the sole writer of posting state
// and the sole computer of account balances. Reads may run concurrently;
// writes serialize in-process, and the repository's guarded settle covers
// multi-process races.
package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/datafluxo/financas_backend/config"
	"github.com/datafluxo/financas_backend/models"
	"github.com/datafluxo/financas_backend/store"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const recomputeLockKey = "financas:recompute-balances"

type Ledger struct {
	store  store.Store
	logger *logrus.Logger
	cache  BalanceCache
	locker *redislock.Client

	mu  sync.Mutex
	now func() time.Time
}

// NewLedger builds the engine over an explicit store. cache and locker may be
// nil; without them every balance read derives from scratch and the recompute
// runs unlocked.
func NewLedger(st store.Store, logger *logrus.Logger, cache BalanceCache, locker *redislock.Client) *Ledger {
	return &Ledger{
		store:  st,
		logger: logger,
		cache:  cache,
		locker: locker,
		now:    time.Now,
	}
}

// WithClock overrides the engine clock. Tests pin it to a fixed instant.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

func (l *Ledger) today() models.Date {
	return models.DateOf(l.now())
}

// Post validates the input and inserts a new pending posting. The category
// must exist with a matching kind, and the subcategory, when given, must
// belong to the category at this moment; later category edits do not
// retroactively invalidate the posting.
func (l *Ledger) Post(ctx context.Context, input *models.NewPosting) (*models.Posting, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	correlationId := uuid.NewString()
	l.mu.Lock()
	defer l.mu.Unlock()

	var posting *models.Posting
	err := l.store.Atomically(ctx, func(tx store.Store) error {
		if err := l.checkCategoryRef(ctx, tx, input.Kind, input.CategoryName, input.SubcategoryName); err != nil {
			return err
		}
		posting = input.Posting()
		return tx.Postings().Insert(ctx, posting)
	})
	if err != nil {
		config.LogError(l.logger, "ledgerWorkflow.go", "Post", "Insert", input, err)
		return nil, err
	}
	l.logger.WithFields(logrus.Fields{
		"correlationId": correlationId,
		"postingId":     posting.ID,
		"kind":          posting.Kind,
		"amount":        posting.Amount.String(),
	}).Info("posting created")
	return posting, nil
}

// Edit mutates non-settlement fields. Amount and kind are frozen while the
// posting is settled; a cancelled posting cannot be edited at all.
func (l *Ledger) Edit(ctx context.Context, id int, patch *models.PostingPatch) (*models.Posting, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	correlationId := uuid.NewString()
	l.mu.Lock()
	defer l.mu.Unlock()

	var updated *models.Posting
	err := l.store.Atomically(ctx, func(tx store.Store) error {
		current, err := tx.Postings().FetchByID(ctx, id)
		if err != nil {
			return err
		}
		if current.State == models.PostingStateCancelled {
			return models.ErrorPostingCancelled
		}
		if current.State == models.PostingStateSettled && patch.TouchesSettlementFields() {
			return models.ErrorPostingSettled
		}
		if patch.CategoryName != nil || patch.SubcategoryName != nil {
			kind := current.Kind
			if patch.Kind != nil {
				kind = *patch.Kind
			}
			categoryName := current.CategoryName
			if patch.CategoryName != nil {
				categoryName = *patch.CategoryName
			}
			subcategoryName := current.SubcategoryName
			if patch.SubcategoryName != nil {
				subcategoryName = *patch.SubcategoryName
			}
			if err := l.checkCategoryRef(ctx, tx, kind, categoryName, subcategoryName); err != nil {
				return err
			}
		}
		updated, err = tx.Postings().Update(ctx, id, patch)
		return err
	})
	if err != nil {
		config.LogError(l.logger, "ledgerWorkflow.go", "Edit", "Update", id, err)
		return nil, err
	}
	l.logger.WithFields(logrus.Fields{
		"correlationId": correlationId,
		"postingId":     id,
	}).Info("posting edited")
	return updated, nil
}

// Settle attaches an account, a date and an optional interest to an open
// posting. Past-dated settlement is legitimate book-keeping and always
// permitted; a settle date more than one calendar day ahead is rejected.
// Overdraft is permitted and surfaced by reports, never by this write.
func (l *Ledger) Settle(ctx context.Context, id int, accountName string, settleDate time.Time, interest models.Money) (*models.Posting, error) {
	if interest.IsNegative() {
		return nil, errors.New("interest must be non-negative")
	}
	// one day of tolerance absorbs clock skew between caller and engine
	if models.DateOf(settleDate).After(l.today().AddDays(1)) {
		return nil, models.ErrorSettlementInFuture
	}
	correlationId := uuid.NewString()
	l.mu.Lock()
	defer l.mu.Unlock()

	var settled *models.Posting
	err := l.store.Atomically(ctx, func(tx store.Store) error {
		account, err := tx.Accounts().FetchByName(ctx, accountName)
		if err != nil {
			if errors.Is(err, models.ErrorRecordNotFound) {
				return models.ErrorAccountUnknown
			}
			return err
		}
		if !account.Active() {
			return models.ErrorAccountInactive
		}
		settled, err = tx.Postings().Settle(ctx, id, accountName, settleDate, interest)
		return err
	})
	if err != nil {
		config.LogError(l.logger, "ledgerWorkflow.go", "Settle", "Settle", id, err)
		return nil, err
	}
	l.invalidateBalance(ctx, accountName)
	l.logger.WithFields(logrus.Fields{
		"correlationId": correlationId,
		"postingId":     id,
		"account":       accountName,
		"effect":        settled.SignedEffect().String(),
	}).Info("posting settled")
	return settled, nil
}

// Unsettle reverses a settlement: settlement fields are cleared and the state
// returns to pending, or overdue when the due date has already passed.
func (l *Ledger) Unsettle(ctx context.Context, id int) (*models.Posting, error) {
	correlationId := uuid.NewString()
	l.mu.Lock()
	defer l.mu.Unlock()

	var reverted *models.Posting
	var touchedAccount string
	err := l.store.Atomically(ctx, func(tx store.Store) error {
		current, err := tx.Postings().FetchByID(ctx, id)
		if err != nil {
			return err
		}
		if current.State != models.PostingStateSettled {
			return models.ErrorPostingNotSettled
		}
		if current.AccountName != nil {
			touchedAccount = *current.AccountName
		}
		newState := models.PostingStatePending
		if current.DueDate.Before(l.today()) {
			newState = models.PostingStateOverdue
		}
		reverted, err = tx.Postings().Unsettle(ctx, id, newState)
		return err
	})
	if err != nil {
		config.LogError(l.logger, "ledgerWorkflow.go", "Unsettle", "Unsettle", id, err)
		return nil, err
	}
	if touchedAccount != "" {
		l.invalidateBalance(ctx, touchedAccount)
	}
	l.logger.WithFields(logrus.Fields{
		"correlationId": correlationId,
		"postingId":     id,
		"state":         reverted.State,
	}).Info("posting unsettled")
	return reverted, nil
}

// Cancel moves an open posting to its terminal state. A settled posting must
// be unsettled first; cancelling a cancelled posting is a no-op.
func (l *Ledger) Cancel(ctx context.Context, id int) (*models.Posting, error) {
	correlationId := uuid.NewString()
	l.mu.Lock()
	defer l.mu.Unlock()

	var cancelled *models.Posting
	err := l.store.Atomically(ctx, func(tx store.Store) error {
		current, err := tx.Postings().FetchByID(ctx, id)
		if err != nil {
			return err
		}
		switch current.State {
		case models.PostingStateSettled:
			return models.ErrorPostingSettled
		case models.PostingStateCancelled:
			cancelled = current
			return nil
		}
		cancelled, err = tx.Postings().Cancel(ctx, id)
		return err
	})
	if err != nil {
		config.LogError(l.logger, "ledgerWorkflow.go", "Cancel", "Cancel", id, err)
		return nil, err
	}
	l.logger.WithFields(logrus.Fields{
		"correlationId": correlationId,
		"postingId":     id,
	}).Info("posting cancelled")
	return cancelled, nil
}

// Delete removes a pending, overdue or cancelled posting. Settled postings
// are never deleted directly; past cash movements stay auditable.
func (l *Ledger) Delete(ctx context.Context, id int) error {
	correlationId := uuid.NewString()
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.store.Postings().Delete(ctx, id); err != nil {
		config.LogError(l.logger, "ledgerWorkflow.go", "Delete", "Delete", id, err)
		return err
	}
	l.logger.WithFields(logrus.Fields{
		"correlationId": correlationId,
		"postingId":     id,
	}).Info("posting deleted")
	return nil
}

// RefreshStates flips pending/overdue according to asOf. Idempotent; writes
// nothing when nothing changes.
func (l *Ledger) RefreshStates(ctx context.Context, asOf models.Date) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	touched, err := l.store.Postings().RefreshStates(ctx, asOf)
	if err != nil {
		config.LogError(l.logger, "ledgerWorkflow.go", "RefreshStates", "RefreshStates", asOf.String(), err)
		return 0, err
	}
	if touched > 0 {
		l.logger.WithFields(logrus.Fields{
			"asOf":    asOf.String(),
			"touched": touched,
		}).Info("posting states refreshed")
	}
	return touched, nil
}

// Balance derives the account balance as of a date: initial balance plus the
// signed effect of every settled posting with settle date up to asOf. No
// column stores this; the cache only short-cuts the as-of-today read.
func (l *Ledger) Balance(ctx context.Context, accountName string, asOf models.Date) (models.Money, error) {
	cacheable := l.cache != nil && asOf.Equal(l.today())
	if cacheable {
		if cached, ok, err := l.cache.Get(ctx, accountName); err == nil && ok {
			return cached, nil
		}
	}
	balance, err := deriveBalance(ctx, l.store, accountName, asOf)
	if err != nil {
		config.LogError(l.logger, "ledgerWorkflow.go", "Balance", "deriveBalance", accountName, err)
		return models.Money{}, err
	}
	if cacheable {
		if err := l.cache.Set(ctx, accountName, balance); err != nil {
			l.logger.WithField("account", accountName).Warnf("balance cache write failed: %v", err)
		}
	}
	return balance, nil
}

// RecomputeBalances re-derives every active account's displayed balance into
// the cache. Safe to run anytime; postings are untouched. When a locker is
// configured the recompute is serialized across processes.
func (l *Ledger) RecomputeBalances(ctx context.Context) error {
	if l.locker != nil {
		lock, err := l.locker.Obtain(ctx, recomputeLockKey, 30*time.Second, nil)
		if err == redislock.ErrNotObtained {
			l.logger.Info("balance recompute already running elsewhere")
			return nil
		}
		if err != nil {
			return err
		}
		defer lock.Release(ctx)
	}

	accounts, err := l.store.Accounts().FetchActive(ctx)
	if err != nil {
		config.LogError(l.logger, "ledgerWorkflow.go", "RecomputeBalances", "FetchActive", nil, err)
		return err
	}
	asOf := l.today()
	for _, account := range accounts {
		balance, err := deriveBalance(ctx, l.store, account.Name, asOf)
		if err != nil {
			config.LogError(l.logger, "ledgerWorkflow.go", "RecomputeBalances", "deriveBalance", account.Name, err)
			return err
		}
		if l.cache != nil {
			if err := l.cache.Set(ctx, account.Name, balance); err != nil {
				return err
			}
		}
		l.logger.WithFields(logrus.Fields{
			"account": account.Name,
			"balance": balance.String(),
		}).Debug("balance recomputed")
	}
	return nil
}

func (l *Ledger) invalidateBalance(ctx context.Context, accountName string) {
	if l.cache == nil {
		return
	}
	if err := l.cache.Invalidate(ctx, accountName); err != nil {
		l.logger.WithField("account", accountName).Warnf("balance cache invalidation failed: %v", err)
	}
}

func (l *Ledger) checkCategoryRef(ctx context.Context, tx store.Store, kind models.PostingKind, categoryName, subcategoryName string) error {
	category, err := tx.Categories().FetchByName(ctx, categoryName)
	if err != nil {
		return err
	}
	if !category.Kind.Matches(kind) {
		return models.ErrorCategoryKindConflict
	}
	if subcategoryName != "" && !category.Subcategories.Contains(subcategoryName) {
		return errors.New("subcategory does not belong to the category")
	}
	return nil
}

// deriveBalance is the I6 aggregate shared by Balance and RecomputeBalances.
func deriveBalance(ctx context.Context, st store.Store, accountName string, asOf models.Date) (models.Money, error) {
	account, err := st.Accounts().FetchByName(ctx, accountName)
	if err != nil {
		if errors.Is(err, models.ErrorRecordNotFound) {
			return models.Money{}, models.ErrorAccountUnknown
		}
		return models.Money{}, err
	}
	settled, err := st.Postings().Fetch(ctx, store.PostingFilter{
		States:      []models.PostingState{models.PostingStateSettled},
		AccountName: &accountName,
		SettleTo:    &asOf,
	})
	if err != nil {
		return models.Money{}, err
	}
	balance := account.InitialBalance
	for _, p := range settled {
		balance = balance.Add(p.SignedEffect())
	}
	return balance, nil
}

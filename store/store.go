// Package store defines the abstract persistent store the ledger engine and
// the analytics queries are written against. One adapter exists per store
// family: gormstore (MySQL, SQLite, Postgres dialects) and memstore.
package store

import (
	"context"
	"time"

	"github.com/datafluxo/financas_backend/models"
)

type Store interface {
	Accounts() AccountRepository
	Categories() CategoryRepository
	Parties() PartyRepository
	Postings() PostingRepository
	ImportMarks() ImportMarkRepository

	// Atomically runs fn inside one transaction: either the store reflects
	// the full effect or none of it. The Store handed to fn is bound to the
	// transaction; no reader observes a partial effect.
	Atomically(ctx context.Context, fn func(Store) error) error

	Ping(ctx context.Context) error
}

type AccountRepository interface {
	Insert(ctx context.Context, account *models.Account) error
	FetchActive(ctx context.Context) ([]*models.Account, error)
	// FetchAll includes deactivated accounts; reports and the importer need
	// them because settled history survives deactivation.
	FetchAll(ctx context.Context) ([]*models.Account, error)
	FetchByName(ctx context.Context, name string) (*models.Account, error)
	// UpdateByName rejects a rename that collides with a distinct active row.
	UpdateByName(ctx context.Context, oldName string, input *models.NewAccount) (*models.Account, error)
	Deactivate(ctx context.Context, name string) error
}

type CategoryRepository interface {
	// Insert rejects a case-insensitive duplicate name.
	Insert(ctx context.Context, category *models.Category) error
	FetchAll(ctx context.Context) ([]*models.Category, error)
	FetchByName(ctx context.Context, name string) (*models.Category, error)
	Update(ctx context.Context, id int, input *models.NewCategory) (*models.Category, error)
	// Rename also rewrites the category name of every posting that pointed
	// at oldName, atomically.
	Rename(ctx context.Context, oldName, newName string) error
	Delete(ctx context.Context, name string) error
}

type PartyRepository interface {
	Insert(ctx context.Context, party *models.Party) error
	// Fetch returns parties filtered by active flag; nil means all.
	Fetch(ctx context.Context, active *bool) ([]*models.Party, error)
	FetchByName(ctx context.Context, kind models.PartyKind, name string) (*models.Party, error)
	// Update renames atomically: postings of the matching kind that
	// referenced the old name are rewritten in the same transaction.
	Update(ctx context.Context, oldName string, input *models.NewParty) (*models.Party, error)
	Deactivate(ctx context.Context, name string, reason string) error
	Reactivate(ctx context.Context, name string) error
	// DeleteIfUnreferenced fails with ErrorPartyHasReferences when any
	// posting still names the party.
	DeleteIfUnreferenced(ctx context.Context, name string) error
}

type PostingRepository interface {
	Insert(ctx context.Context, posting *models.Posting) error
	Fetch(ctx context.Context, filter PostingFilter) ([]*models.Posting, error)
	FetchByID(ctx context.Context, id int) (*models.Posting, error)
	Update(ctx context.Context, id int, patch *models.PostingPatch) (*models.Posting, error)

	// Settle is the guarded transactional settlement primitive: the state is
	// re-checked inside the same write, so two concurrent settles of one
	// posting yield one success and one ErrorPostingNotPending.
	Settle(ctx context.Context, id int, accountName string, settleDate time.Time, interest models.Money) (*models.Posting, error)
	// Unsettle clears settlement fields; newState is pending or overdue,
	// recomputed by the caller from the due date.
	Unsettle(ctx context.Context, id int, newState models.PostingState) (*models.Posting, error)
	Cancel(ctx context.Context, id int) (*models.Posting, error)
	// Delete only removes pending, overdue or cancelled postings.
	Delete(ctx context.Context, id int) error

	// RefreshStates flips pending/overdue according to asOf; it writes
	// nothing when nothing changes and returns the number of rows touched.
	RefreshStates(ctx context.Context, asOf models.Date) (int64, error)
}

type ImportMarkRepository interface {
	Seen(ctx context.Context, contentHash string) (bool, error)
	Record(ctx context.Context, contentHash string) error
}

// PostingFilter narrows Fetch. Date bounds are inclusive and compare the
// date portion of settle timestamps.
type PostingFilter struct {
	States       []models.PostingState
	Kind         *models.PostingKind
	AccountName  *string
	CategoryName *string
	PartyName    *string
	SettleFrom   *models.Date
	SettleTo     *models.Date
	DueFrom      *models.Date
	DueTo        *models.Date
}

// Matches applies the filter in memory; memstore and report helpers share it
// so both adapters agree on the semantics.
func (f PostingFilter) Matches(p *models.Posting) bool {
	if len(f.States) > 0 {
		found := false
		for _, s := range f.States {
			if p.State == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Kind != nil && p.Kind != *f.Kind {
		return false
	}
	if f.AccountName != nil {
		if p.AccountName == nil || *p.AccountName != *f.AccountName {
			return false
		}
	}
	if f.CategoryName != nil && p.CategoryName != *f.CategoryName {
		return false
	}
	if f.PartyName != nil && p.PartyName != *f.PartyName {
		return false
	}
	if f.SettleFrom != nil || f.SettleTo != nil {
		settleDay, ok := p.SettleDateOnly()
		if !ok {
			return false
		}
		if f.SettleFrom != nil && settleDay.Before(*f.SettleFrom) {
			return false
		}
		if f.SettleTo != nil && settleDay.After(*f.SettleTo) {
			return false
		}
	}
	if f.DueFrom != nil && p.DueDate.Before(*f.DueFrom) {
		return false
	}
	if f.DueTo != nil && p.DueDate.After(*f.DueTo) {
		return false
	}
	return true
}

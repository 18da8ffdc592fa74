// Package memstore is the in-memory store adapter. It is the reference
// semantics for the repository contract and backs the DB-free tests.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/datafluxo/financas_backend/models"
	"github.com/datafluxo/financas_backend/store"
)

type dataset struct {
	accounts   map[int]*models.Account
	categories map[int]*models.Category
	parties    map[int]*models.Party
	postings   map[int]*models.Posting
	marks      map[string]time.Time

	nextAccountID  int
	nextCategoryID int
	nextPartyID    int
	nextPostingID  int
}

func newDataset() *dataset {
	return &dataset{
		accounts:       map[int]*models.Account{},
		categories:     map[int]*models.Category{},
		parties:        map[int]*models.Party{},
		postings:       map[int]*models.Posting{},
		marks:          map[string]time.Time{},
		nextAccountID:  1,
		nextCategoryID: 1,
		nextPartyID:    1,
		nextPostingID:  1,
	}
}

func (d *dataset) clone() *dataset {
	out := newDataset()
	out.nextAccountID = d.nextAccountID
	out.nextCategoryID = d.nextCategoryID
	out.nextPartyID = d.nextPartyID
	out.nextPostingID = d.nextPostingID
	for id, a := range d.accounts {
		out.accounts[id] = copyAccount(a)
	}
	for id, c := range d.categories {
		out.categories[id] = copyCategory(c)
	}
	for id, p := range d.parties {
		out.parties[id] = copyParty(p)
	}
	for id, p := range d.postings {
		out.postings[id] = copyPosting(p)
	}
	for h, t := range d.marks {
		out.marks[h] = t
	}
	return out
}

func copyAccount(a *models.Account) *models.Account {
	out := *a
	out.IsActive = copyBool(a.IsActive)
	return &out
}

func copyCategory(c *models.Category) *models.Category {
	out := *c
	out.Subcategories = append(models.StringList(nil), c.Subcategories...)
	return &out
}

func copyParty(p *models.Party) *models.Party {
	out := *p
	out.IsActive = copyBool(p.IsActive)
	out.InactivatedAt = copyTime(p.InactivatedAt)
	return &out
}

func copyPosting(p *models.Posting) *models.Posting {
	out := *p
	out.SettleDate = copyTime(p.SettleDate)
	out.AccountName = copyString(p.AccountName)
	return &out
}

func copyBool(b *bool) *bool {
	if b == nil {
		return nil
	}
	v := *b
	return &v
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// Mem is the root store. Each repository call is its own transaction; the
// mutex also serializes Atomically blocks, so readers never observe a
// half-applied write.
type Mem struct {
	mu   sync.Mutex
	data *dataset
}

func New() *Mem {
	return &Mem{data: newDataset()}
}

// session is a repository's handle on the data: locking at the root, lock-free
// inside a transaction (the transaction owns the working copy).
type session struct {
	root *Mem
	data *dataset
}

func (s *session) begin() (*dataset, func()) {
	if s.root != nil {
		s.root.mu.Lock()
		root := s.root
		return root.data, func() { root.mu.Unlock() }
	}
	return s.data, func() {}
}

func (m *Mem) Accounts() store.AccountRepository {
	return &accountsRepo{s: &session{root: m}}
}

func (m *Mem) Categories() store.CategoryRepository {
	return &categoriesRepo{s: &session{root: m}}
}

func (m *Mem) Parties() store.PartyRepository {
	return &partiesRepo{s: &session{root: m}}
}

func (m *Mem) Postings() store.PostingRepository {
	return &postingsRepo{s: &session{root: m}}
}

func (m *Mem) ImportMarks() store.ImportMarkRepository {
	return &marksRepo{s: &session{root: m}}
}

func (m *Mem) Atomically(ctx context.Context, fn func(store.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	work := m.data.clone()
	if err := fn(&txStore{data: work}); err != nil {
		return err
	}
	m.data = work
	return nil
}

func (m *Mem) Ping(ctx context.Context) error {
	return ctx.Err()
}

// txStore is the transaction-bound store: all repositories share the working
// copy and a nested Atomically joins the outer transaction.
type txStore struct {
	data *dataset
}

func (t *txStore) Accounts() store.AccountRepository {
	return &accountsRepo{s: &session{data: t.data}}
}

func (t *txStore) Categories() store.CategoryRepository {
	return &categoriesRepo{s: &session{data: t.data}}
}

func (t *txStore) Parties() store.PartyRepository {
	return &partiesRepo{s: &session{data: t.data}}
}

func (t *txStore) Postings() store.PostingRepository {
	return &postingsRepo{s: &session{data: t.data}}
}

func (t *txStore) ImportMarks() store.ImportMarkRepository {
	return &marksRepo{s: &session{data: t.data}}
}

func (t *txStore) Atomically(ctx context.Context, fn func(store.Store) error) error {
	return fn(t)
}

func (t *txStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

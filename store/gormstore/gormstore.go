// Package gormstore adapts the repository contract onto a relational store
// through gorm. The same adapter serves the MySQL, SQLite and Postgres
// families; the dialector is chosen at connection time (see config).
package gormstore

import (
	"context"
	"errors"

	"github.com/datafluxo/financas_backend/models"
	"github.com/datafluxo/financas_backend/store"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Gorm struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

func (g *Gorm) Accounts() store.AccountRepository {
	return &accountsRepo{db: g.db}
}

func (g *Gorm) Categories() store.CategoryRepository {
	return &categoriesRepo{db: g.db}
}

func (g *Gorm) Parties() store.PartyRepository {
	return &partiesRepo{db: g.db}
}

func (g *Gorm) Postings() store.PostingRepository {
	return &postingsRepo{db: g.db}
}

func (g *Gorm) ImportMarks() store.ImportMarkRepository {
	return &marksRepo{db: g.db}
}

func (g *Gorm) Atomically(ctx context.Context, fn func(store.Store) error) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Gorm{db: tx})
	})
}

func (g *Gorm) Ping(ctx context.Context) error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return models.ErrorStoreUnavailable
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return models.ErrorStoreUnavailable
	}
	return nil
}

func lockingClause() clause.Locking {
	return clause.Locking{Strength: "UPDATE"}
}

func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return models.ErrorRecordNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return models.ErrorDuplicateName
	case errors.Is(err, gorm.ErrInvalidTransaction):
		return models.ErrorStoreUnavailable
	}
	return err
}

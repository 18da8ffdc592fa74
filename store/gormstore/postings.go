package gormstore

import (
	"context"
	"time"

	"github.com/datafluxo/financas_backend/models"
	"github.com/datafluxo/financas_backend/store"
	"gorm.io/gorm"
)

type postingsRepo struct {
	db *gorm.DB
}

func (r *postingsRepo) Insert(ctx context.Context, posting *models.Posting) error {
	return mapErr(r.db.WithContext(ctx).Create(posting).Error)
}

func (r *postingsRepo) Fetch(ctx context.Context, filter store.PostingFilter) ([]*models.Posting, error) {
	dbCtx := r.db.WithContext(ctx).Model(&models.Posting{})
	if len(filter.States) > 0 {
		states := make([]string, 0, len(filter.States))
		for _, s := range filter.States {
			states = append(states, string(s))
		}
		dbCtx = dbCtx.Where("state IN ?", states)
	}
	if filter.Kind != nil {
		dbCtx = dbCtx.Where("kind = ?", string(*filter.Kind))
	}
	if filter.AccountName != nil {
		dbCtx = dbCtx.Where("account_name = ?", *filter.AccountName)
	}
	if filter.CategoryName != nil {
		dbCtx = dbCtx.Where("category_name = ?", *filter.CategoryName)
	}
	if filter.PartyName != nil {
		dbCtx = dbCtx.Where("party_name = ?", *filter.PartyName)
	}
	// settle bounds compare the date portion of the timestamp
	if filter.SettleFrom != nil {
		dbCtx = dbCtx.Where("settle_date >= ?", filter.SettleFrom.Time())
	}
	if filter.SettleTo != nil {
		dbCtx = dbCtx.Where("settle_date < ?", filter.SettleTo.AddDays(1).Time())
	}
	if filter.DueFrom != nil {
		dbCtx = dbCtx.Where("due_date >= ?", filter.DueFrom.Time())
	}
	if filter.DueTo != nil {
		dbCtx = dbCtx.Where("due_date <= ?", filter.DueTo.Time())
	}
	var out []*models.Posting
	err := dbCtx.Order("id").Find(&out).Error
	return out, mapErr(err)
}

func (r *postingsRepo) FetchByID(ctx context.Context, id int) (*models.Posting, error) {
	var posting models.Posting
	err := r.db.WithContext(ctx).First(&posting, id).Error
	if err != nil {
		return nil, mapErr(err)
	}
	return &posting, nil
}

func (r *postingsRepo) Update(ctx context.Context, id int, patch *models.PostingPatch) (*models.Posting, error) {
	var updated *models.Posting
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var posting models.Posting
		if err := tx.Clauses(lockingClause()).First(&posting, id).Error; err != nil {
			return mapErr(err)
		}
		patch.Apply(&posting)
		if err := tx.Save(&posting).Error; err != nil {
			return mapErr(err)
		}
		updated = &posting
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *postingsRepo) Settle(ctx context.Context, id int, accountName string, settleDate time.Time, interest models.Money) (*models.Posting, error) {
	var settled *models.Posting
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// conditional write: the state is re-checked by the same statement
		// that sets it, so a concurrent settle loses with zero rows affected
		res := tx.Model(&models.Posting{}).
			Where("id = ? AND state IN ?", id, openStates()).
			Updates(map[string]interface{}{
				"state":        models.PostingStateSettled,
				"settle_date":  settleDate,
				"account_name": accountName,
				"interest":     interest,
			})
		if res.Error != nil {
			return mapErr(res.Error)
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.Posting{}).Where("id = ?", id).Count(&count).Error; err != nil {
				return mapErr(err)
			}
			if count == 0 {
				return models.ErrorRecordNotFound
			}
			return models.ErrorPostingNotPending
		}
		var posting models.Posting
		if err := tx.First(&posting, id).Error; err != nil {
			return mapErr(err)
		}
		settled = &posting
		return nil
	})
	if err != nil {
		return nil, err
	}
	return settled, nil
}

func (r *postingsRepo) Unsettle(ctx context.Context, id int, newState models.PostingState) (*models.Posting, error) {
	var reverted *models.Posting
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Posting{}).
			Where("id = ? AND state = ?", id, models.PostingStateSettled).
			Updates(map[string]interface{}{
				"state":        newState,
				"settle_date":  nil,
				"account_name": nil,
				"interest":     models.ZeroMoney(),
			})
		if res.Error != nil {
			return mapErr(res.Error)
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.Posting{}).Where("id = ?", id).Count(&count).Error; err != nil {
				return mapErr(err)
			}
			if count == 0 {
				return models.ErrorRecordNotFound
			}
			return models.ErrorPostingNotSettled
		}
		var posting models.Posting
		if err := tx.First(&posting, id).Error; err != nil {
			return mapErr(err)
		}
		reverted = &posting
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reverted, nil
}

func (r *postingsRepo) Cancel(ctx context.Context, id int) (*models.Posting, error) {
	var cancelled *models.Posting
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Posting{}).
			Where("id = ? AND state IN ?", id, openStates()).
			Update("state", models.PostingStateCancelled)
		if res.Error != nil {
			return mapErr(res.Error)
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.Posting{}).Where("id = ?", id).Count(&count).Error; err != nil {
				return mapErr(err)
			}
			if count == 0 {
				return models.ErrorRecordNotFound
			}
			return models.ErrorPostingNotPending
		}
		var posting models.Posting
		if err := tx.First(&posting, id).Error; err != nil {
			return mapErr(err)
		}
		cancelled = &posting
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

func (r *postingsRepo) Delete(ctx context.Context, id int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND state <> ?", id, models.PostingStateSettled).
			Delete(&models.Posting{})
		if res.Error != nil {
			return mapErr(res.Error)
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.Posting{}).Where("id = ?", id).Count(&count).Error; err != nil {
				return mapErr(err)
			}
			if count == 0 {
				return models.ErrorRecordNotFound
			}
			return models.ErrorPostingSettled
		}
		return nil
	})
}

func (r *postingsRepo) RefreshStates(ctx context.Context, asOf models.Date) (int64, error) {
	var touched int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		overdue := tx.Model(&models.Posting{}).
			Where("state = ? AND due_date < ?", models.PostingStatePending, asOf.Time()).
			Update("state", models.PostingStateOverdue)
		if overdue.Error != nil {
			return mapErr(overdue.Error)
		}
		back := tx.Model(&models.Posting{}).
			Where("state = ? AND due_date >= ?", models.PostingStateOverdue, asOf.Time()).
			Update("state", models.PostingStatePending)
		if back.Error != nil {
			return mapErr(back.Error)
		}
		touched = overdue.RowsAffected + back.RowsAffected
		return nil
	})
	return touched, err
}

func openStates() []string {
	return []string{
		string(models.PostingStatePending),
		string(models.PostingStateOverdue),
	}
}

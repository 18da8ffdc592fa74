package gormstore

import (
	"context"

	"github.com/datafluxo/financas_backend/models"
	"gorm.io/gorm"
)

type accountsRepo struct {
	db *gorm.DB
}

func (r *accountsRepo) Insert(ctx context.Context, account *models.Account) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Account{}).
			Where("LOWER(name) = LOWER(?) AND is_active = ?", account.Name, true).
			Count(&count).Error; err != nil {
			return mapErr(err)
		}
		if count > 0 {
			return models.ErrorDuplicateName
		}
		return mapErr(tx.Create(account).Error)
	})
}

func (r *accountsRepo) FetchActive(ctx context.Context) ([]*models.Account, error) {
	var out []*models.Account
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("name").
		Find(&out).Error
	return out, mapErr(err)
}

func (r *accountsRepo) FetchAll(ctx context.Context) ([]*models.Account, error) {
	var out []*models.Account
	err := r.db.WithContext(ctx).Order("name").Find(&out).Error
	return out, mapErr(err)
}

func (r *accountsRepo) FetchByName(ctx context.Context, name string) (*models.Account, error) {
	var account models.Account
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&account).Error
	if err != nil {
		return nil, mapErr(err)
	}
	return &account, nil
}

func (r *accountsRepo) UpdateByName(ctx context.Context, oldName string, input *models.NewAccount) (*models.Account, error) {
	var updated *models.Account
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var account models.Account
		if err := tx.Where("name = ?", oldName).First(&account).Error; err != nil {
			return mapErr(err)
		}
		var count int64
		if err := tx.Model(&models.Account{}).
			Where("LOWER(name) = LOWER(?) AND is_active = ? AND id <> ?", input.Name, true, account.ID).
			Count(&count).Error; err != nil {
			return mapErr(err)
		}
		if count > 0 {
			return models.ErrorDuplicateName
		}
		if err := tx.Model(&account).Updates(map[string]interface{}{
			"name":            input.Name,
			"bank":            input.Bank,
			"branch":          input.Branch,
			"number":          input.Number,
			"initial_balance": input.InitialBalance,
		}).Error; err != nil {
			return mapErr(err)
		}
		if oldName != input.Name {
			// settled postings reference the account by name
			if err := tx.Model(&models.Posting{}).
				Where("account_name = ?", oldName).
				Update("account_name", input.Name).Error; err != nil {
				return mapErr(err)
			}
		}
		updated = &account
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *accountsRepo) Deactivate(ctx context.Context, name string) error {
	res := r.db.WithContext(ctx).Model(&models.Account{}).
		Where("name = ?", name).
		Update("is_active", false)
	if res.Error != nil {
		return mapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrorRecordNotFound
	}
	return nil
}

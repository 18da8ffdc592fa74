package gormstore

import (
	"context"
	"time"

	"github.com/datafluxo/financas_backend/models"
	"gorm.io/gorm"
)

type partiesRepo struct {
	db *gorm.DB
}

func (r *partiesRepo) Insert(ctx context.Context, party *models.Party) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if party.TaxId != "" {
			var count int64
			if err := tx.Model(&models.Party{}).
				Where("kind = ? AND tax_id = ?", party.Kind, party.TaxId).
				Count(&count).Error; err != nil {
				return mapErr(err)
			}
			if count > 0 {
				return models.ErrorDuplicateName
			}
		}
		return mapErr(tx.Create(party).Error)
	})
}

func (r *partiesRepo) Fetch(ctx context.Context, active *bool) ([]*models.Party, error) {
	dbCtx := r.db.WithContext(ctx)
	if active != nil {
		dbCtx = dbCtx.Where("is_active = ?", *active)
	}
	var out []*models.Party
	err := dbCtx.Order("legal_name").Find(&out).Error
	return out, mapErr(err)
}

func (r *partiesRepo) FetchByName(ctx context.Context, kind models.PartyKind, name string) (*models.Party, error) {
	var party models.Party
	err := r.db.WithContext(ctx).
		Where("kind = ? AND legal_name = ?", kind, name).
		First(&party).Error
	if err != nil {
		return nil, mapErr(err)
	}
	return &party, nil
}

func (r *partiesRepo) Update(ctx context.Context, oldName string, input *models.NewParty) (*models.Party, error) {
	var updated *models.Party
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var party models.Party
		if err := tx.Where("kind = ? AND legal_name = ?", input.Kind, oldName).
			First(&party).Error; err != nil {
			return mapErr(err)
		}
		if input.TaxId != "" {
			var count int64
			if err := tx.Model(&models.Party{}).
				Where("kind = ? AND tax_id = ? AND id <> ?", input.Kind, input.TaxId, party.ID).
				Count(&count).Error; err != nil {
				return mapErr(err)
			}
			if count > 0 {
				return models.ErrorDuplicateName
			}
		}
		if err := tx.Model(&party).Updates(map[string]interface{}{
			"legal_name": input.LegalName,
			"trade_name": input.TradeName,
			"tax_id":     input.TaxId,
			"address":    input.Address,
			"city":       input.City,
			"state":      input.State,
			"zip_code":   input.ZipCode,
			"contact":    input.Contact,
			"email":      input.Email,
		}).Error; err != nil {
			return mapErr(err)
		}
		if oldName != input.LegalName {
			if err := tx.Model(&models.Posting{}).
				Where("kind = ? AND party_name = ?", input.Kind.PostingKind(), oldName).
				Update("party_name", input.LegalName).Error; err != nil {
				return mapErr(err)
			}
		}
		updated = &party
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *partiesRepo) Deactivate(ctx context.Context, name string, reason string) error {
	res := r.db.WithContext(ctx).Model(&models.Party{}).
		Where("legal_name = ?", name).
		Updates(map[string]interface{}{
			"is_active":           false,
			"inactivated_at":      time.Now(),
			"inactivation_reason": reason,
		})
	if res.Error != nil {
		return mapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrorRecordNotFound
	}
	return nil
}

func (r *partiesRepo) Reactivate(ctx context.Context, name string) error {
	res := r.db.WithContext(ctx).Model(&models.Party{}).
		Where("legal_name = ?", name).
		Updates(map[string]interface{}{
			"is_active":           true,
			"inactivated_at":      nil,
			"inactivation_reason": "",
		})
	if res.Error != nil {
		return mapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrorRecordNotFound
	}
	return nil
}

func (r *partiesRepo) DeleteIfUnreferenced(ctx context.Context, name string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var party models.Party
		if err := tx.Where("legal_name = ?", name).First(&party).Error; err != nil {
			return mapErr(err)
		}
		var count int64
		if err := tx.Model(&models.Posting{}).
			Where("party_name = ?", name).
			Count(&count).Error; err != nil {
			return mapErr(err)
		}
		if count > 0 {
			return models.ErrorPartyHasReferences
		}
		return mapErr(tx.Delete(&party).Error)
	})
}

package gormstore

import (
	"context"
	"time"

	"github.com/datafluxo/financas_backend/models"
	"gorm.io/gorm"
)

type marksRepo struct {
	db *gorm.DB
}

func (r *marksRepo) Seen(ctx context.Context, contentHash string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ImportMark{}).
		Where("content_hash = ?", contentHash).
		Count(&count).Error
	if err != nil {
		return false, mapErr(err)
	}
	return count > 0, nil
}

func (r *marksRepo) Record(ctx context.Context, contentHash string) error {
	mark := models.ImportMark{
		ContentHash: contentHash,
		ImportedAt:  time.Now(),
	}
	return mapErr(r.db.WithContext(ctx).Create(&mark).Error)
}

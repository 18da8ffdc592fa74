package gormstore

import (
	"context"

	"github.com/datafluxo/financas_backend/models"
	"gorm.io/gorm"
)

type categoriesRepo struct {
	db *gorm.DB
}

func (r *categoriesRepo) Insert(ctx context.Context, category *models.Category) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Category{}).
			Where("LOWER(TRIM(name)) = ?", models.FoldCategoryName(category.Name)).
			Count(&count).Error; err != nil {
			return mapErr(err)
		}
		if count > 0 {
			return models.ErrorDuplicateName
		}
		return mapErr(tx.Create(category).Error)
	})
}

func (r *categoriesRepo) FetchAll(ctx context.Context) ([]*models.Category, error) {
	var out []*models.Category
	err := r.db.WithContext(ctx).Order("name").Find(&out).Error
	return out, mapErr(err)
}

func (r *categoriesRepo) FetchByName(ctx context.Context, name string) (*models.Category, error) {
	var category models.Category
	err := r.db.WithContext(ctx).
		Where("LOWER(TRIM(name)) = ?", models.FoldCategoryName(name)).
		First(&category).Error
	if err != nil {
		return nil, mapErr(err)
	}
	return &category, nil
}

func (r *categoriesRepo) Update(ctx context.Context, id int, input *models.NewCategory) (*models.Category, error) {
	var updated *models.Category
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var category models.Category
		if err := tx.First(&category, id).Error; err != nil {
			return mapErr(err)
		}
		var count int64
		if err := tx.Model(&models.Category{}).
			Where("LOWER(TRIM(name)) = ? AND id <> ?", models.FoldCategoryName(input.Name), id).
			Count(&count).Error; err != nil {
			return mapErr(err)
		}
		if count > 0 {
			return models.ErrorDuplicateName
		}
		if err := tx.Model(&category).Updates(map[string]interface{}{
			"name":          input.Name,
			"kind":          input.Kind,
			"subcategories": models.StringList(input.Subcategories),
		}).Error; err != nil {
			return mapErr(err)
		}
		updated = &category
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *categoriesRepo) Rename(ctx context.Context, oldName, newName string) error {
	// the category row and every posting pointing at it move together;
	// no reader sees a half-renamed posting set
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var category models.Category
		if err := tx.Where("LOWER(TRIM(name)) = ?", models.FoldCategoryName(oldName)).
			First(&category).Error; err != nil {
			return mapErr(err)
		}
		var count int64
		if err := tx.Model(&models.Category{}).
			Where("LOWER(TRIM(name)) = ? AND id <> ?", models.FoldCategoryName(newName), category.ID).
			Count(&count).Error; err != nil {
			return mapErr(err)
		}
		if count > 0 {
			return models.ErrorDuplicateName
		}
		if err := tx.Model(&category).Update("name", newName).Error; err != nil {
			return mapErr(err)
		}
		return mapErr(tx.Model(&models.Posting{}).
			Where("category_name = ?", oldName).
			Update("category_name", newName).Error)
	})
}

func (r *categoriesRepo) Delete(ctx context.Context, name string) error {
	res := r.db.WithContext(ctx).
		Where("LOWER(TRIM(name)) = ?", models.FoldCategoryName(name)).
		Delete(&models.Category{})
	if res.Error != nil {
		return mapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrorRecordNotFound
	}
	return nil
}

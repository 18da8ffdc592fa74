package models

import (
	"errors"
	"strings"
	"time"

	"github.com/datafluxo/financas_backend/utils"
)

// Category groups postings for the DRE. Names are unique after case-folding
// and trimming; subcategories are an ordered list of names.
type Category struct {
	ID            int          `gorm:"primary_key" json:"id"`
	Name          string       `gorm:"size:100;not null;index" json:"name"`
	Kind          CategoryKind `gorm:"size:10;not null" json:"kind"`
	Subcategories StringList   `gorm:"type:json" json:"subcategories"`
	CreatedAt     time.Time    `gorm:"autoCreateTime" json:"created_at"`
}

// FoldCategoryName is the uniqueness key: case-folded and trimmed.
func FoldCategoryName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (c *Category) HasSubcategory(name string) bool {
	return c.Subcategories.Contains(name)
}

type NewCategory struct {
	Name          string       `json:"name" validate:"required"`
	Kind          CategoryKind `json:"kind" validate:"required"`
	Subcategories []string     `json:"subcategories"`
}

func (input *NewCategory) Validate() error {
	input.Name = strings.TrimSpace(input.Name)
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if !input.Kind.Valid() {
		return errors.New("invalid category kind")
	}
	var subs []string
	for _, s := range input.Subcategories {
		s = strings.TrimSpace(s)
		if s == "" {
			return errors.New("subcategory name must not be empty")
		}
		subs = append(subs, s)
	}
	if len(utils.UniqueSlice(subs)) != len(subs) {
		return errors.New("duplicate subcategory name")
	}
	input.Subcategories = subs
	return nil
}

func (input *NewCategory) Category() *Category {
	return &Category{
		Name:          input.Name,
		Kind:          input.Kind,
		Subcategories: StringList(input.Subcategories),
	}
}

package memstore

import (
	"context"
	"sort"

	"github.com/datafluxo/financas_backend/models"
)

type categoriesRepo struct {
	s *session
}

func (r *categoriesRepo) Insert(ctx context.Context, category *models.Category) error {
	data, done := r.s.begin()
	defer done()

	if findCategoryFolded(data, category.Name) != nil {
		return models.ErrorDuplicateName
	}
	category.ID = data.nextCategoryID
	data.nextCategoryID++
	data.categories[category.ID] = copyCategory(category)
	return nil
}

func (r *categoriesRepo) FetchAll(ctx context.Context) ([]*models.Category, error) {
	data, done := r.s.begin()
	defer done()

	var out []*models.Category
	for _, c := range data.categories {
		out = append(out, copyCategory(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *categoriesRepo) FetchByName(ctx context.Context, name string) (*models.Category, error) {
	data, done := r.s.begin()
	defer done()

	c := findCategoryFolded(data, name)
	if c == nil {
		return nil, models.ErrorRecordNotFound
	}
	return copyCategory(c), nil
}

func (r *categoriesRepo) Update(ctx context.Context, id int, input *models.NewCategory) (*models.Category, error) {
	data, done := r.s.begin()
	defer done()

	c, ok := data.categories[id]
	if !ok {
		return nil, models.ErrorRecordNotFound
	}
	if other := findCategoryFolded(data, input.Name); other != nil && other.ID != id {
		return nil, models.ErrorDuplicateName
	}
	c.Name = input.Name
	c.Kind = input.Kind
	c.Subcategories = models.StringList(input.Subcategories)
	return copyCategory(c), nil
}

func (r *categoriesRepo) Rename(ctx context.Context, oldName, newName string) error {
	data, done := r.s.begin()
	defer done()

	c := findCategoryFolded(data, oldName)
	if c == nil {
		return models.ErrorRecordNotFound
	}
	if other := findCategoryFolded(data, newName); other != nil && other.ID != c.ID {
		return models.ErrorDuplicateName
	}
	c.Name = newName
	for _, p := range data.postings {
		if p.CategoryName == oldName {
			p.CategoryName = newName
		}
	}
	return nil
}

func (r *categoriesRepo) Delete(ctx context.Context, name string) error {
	data, done := r.s.begin()
	defer done()

	c := findCategoryFolded(data, name)
	if c == nil {
		return models.ErrorRecordNotFound
	}
	delete(data.categories, c.ID)
	return nil
}

func findCategoryFolded(data *dataset, name string) *models.Category {
	folded := models.FoldCategoryName(name)
	for _, c := range data.categories {
		if models.FoldCategoryName(c.Name) == folded {
			return c
		}
	}
	return nil
}

package memstore

import (
	"context"
	"sort"
	"strings"

	"github.com/datafluxo/financas_backend/models"
)

type accountsRepo struct {
	s *session
}

func (r *accountsRepo) Insert(ctx context.Context, account *models.Account) error {
	data, done := r.s.begin()
	defer done()

	for _, a := range data.accounts {
		if a.Active() && strings.EqualFold(a.Name, account.Name) {
			return models.ErrorDuplicateName
		}
	}
	account.ID = data.nextAccountID
	data.nextAccountID++
	data.accounts[account.ID] = copyAccount(account)
	return nil
}

func (r *accountsRepo) FetchActive(ctx context.Context) ([]*models.Account, error) {
	data, done := r.s.begin()
	defer done()

	var out []*models.Account
	for _, a := range data.accounts {
		if a.Active() {
			out = append(out, copyAccount(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *accountsRepo) FetchAll(ctx context.Context) ([]*models.Account, error) {
	data, done := r.s.begin()
	defer done()

	var out []*models.Account
	for _, a := range data.accounts {
		out = append(out, copyAccount(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *accountsRepo) FetchByName(ctx context.Context, name string) (*models.Account, error) {
	data, done := r.s.begin()
	defer done()

	a := findAccount(data, name)
	if a == nil {
		return nil, models.ErrorRecordNotFound
	}
	return copyAccount(a), nil
}

func (r *accountsRepo) UpdateByName(ctx context.Context, oldName string, input *models.NewAccount) (*models.Account, error) {
	data, done := r.s.begin()
	defer done()

	a := findAccount(data, oldName)
	if a == nil {
		return nil, models.ErrorRecordNotFound
	}
	if !strings.EqualFold(oldName, input.Name) {
		for _, other := range data.accounts {
			if other.ID != a.ID && other.Active() && strings.EqualFold(other.Name, input.Name) {
				return nil, models.ErrorDuplicateName
			}
		}
	}
	renamed := a.Name != input.Name
	a.Name = input.Name
	a.Bank = input.Bank
	a.Branch = input.Branch
	a.Number = input.Number
	a.InitialBalance = input.InitialBalance
	if renamed {
		for _, p := range data.postings {
			if p.AccountName != nil && *p.AccountName == oldName {
				name := input.Name
				p.AccountName = &name
			}
		}
	}
	return copyAccount(a), nil
}

func (r *accountsRepo) Deactivate(ctx context.Context, name string) error {
	data, done := r.s.begin()
	defer done()

	a := findAccount(data, name)
	if a == nil {
		return models.ErrorRecordNotFound
	}
	active := false
	a.IsActive = &active
	return nil
}

func findAccount(data *dataset, name string) *models.Account {
	for _, a := range data.accounts {
		if a.Name == name {
			return a
		}
	}
	return nil
}

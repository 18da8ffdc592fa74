package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/datafluxo/financas_backend/models"
)

type partiesRepo struct {
	s *session
}

func (r *partiesRepo) Insert(ctx context.Context, party *models.Party) error {
	data, done := r.s.begin()
	defer done()

	if party.TaxId != "" {
		for _, p := range data.parties {
			if p.Kind == party.Kind && p.TaxId == party.TaxId {
				return models.ErrorDuplicateName
			}
		}
	}
	party.ID = data.nextPartyID
	data.nextPartyID++
	data.parties[party.ID] = copyParty(party)
	return nil
}

func (r *partiesRepo) Fetch(ctx context.Context, active *bool) ([]*models.Party, error) {
	data, done := r.s.begin()
	defer done()

	var out []*models.Party
	for _, p := range data.parties {
		if active != nil && p.Active() != *active {
			continue
		}
		out = append(out, copyParty(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LegalName < out[j].LegalName })
	return out, nil
}

func (r *partiesRepo) FetchByName(ctx context.Context, kind models.PartyKind, name string) (*models.Party, error) {
	data, done := r.s.begin()
	defer done()

	p := findParty(data, kind, name)
	if p == nil {
		return nil, models.ErrorRecordNotFound
	}
	return copyParty(p), nil
}

func (r *partiesRepo) Update(ctx context.Context, oldName string, input *models.NewParty) (*models.Party, error) {
	data, done := r.s.begin()
	defer done()

	p := findParty(data, input.Kind, oldName)
	if p == nil {
		return nil, models.ErrorRecordNotFound
	}
	if input.TaxId != "" {
		for _, other := range data.parties {
			if other.ID != p.ID && other.Kind == input.Kind && other.TaxId == input.TaxId {
				return nil, models.ErrorDuplicateName
			}
		}
	}
	renamed := p.LegalName != input.LegalName
	p.LegalName = input.LegalName
	p.TradeName = input.TradeName
	p.TaxId = input.TaxId
	p.Address = input.Address
	p.City = input.City
	p.State = input.State
	p.ZipCode = input.ZipCode
	p.Contact = input.Contact
	p.Email = input.Email
	if renamed {
		postingKind := p.Kind.PostingKind()
		for _, posting := range data.postings {
			if posting.Kind == postingKind && posting.PartyName == oldName {
				posting.PartyName = input.LegalName
			}
		}
	}
	return copyParty(p), nil
}

func (r *partiesRepo) Deactivate(ctx context.Context, name string, reason string) error {
	data, done := r.s.begin()
	defer done()

	p := findPartyAnyKind(data, name)
	if p == nil {
		return models.ErrorRecordNotFound
	}
	active := false
	now := time.Now()
	p.IsActive = &active
	p.InactivatedAt = &now
	p.InactivationReason = reason
	return nil
}

func (r *partiesRepo) Reactivate(ctx context.Context, name string) error {
	data, done := r.s.begin()
	defer done()

	p := findPartyAnyKind(data, name)
	if p == nil {
		return models.ErrorRecordNotFound
	}
	active := true
	p.IsActive = &active
	p.InactivatedAt = nil
	p.InactivationReason = ""
	return nil
}

func (r *partiesRepo) DeleteIfUnreferenced(ctx context.Context, name string) error {
	data, done := r.s.begin()
	defer done()

	p := findPartyAnyKind(data, name)
	if p == nil {
		return models.ErrorRecordNotFound
	}
	for _, posting := range data.postings {
		if posting.PartyName == name {
			return models.ErrorPartyHasReferences
		}
	}
	delete(data.parties, p.ID)
	return nil
}

func findParty(data *dataset, kind models.PartyKind, name string) *models.Party {
	for _, p := range data.parties {
		if p.Kind == kind && p.LegalName == name {
			return p
		}
	}
	return nil
}

func findPartyAnyKind(data *dataset, name string) *models.Party {
	for _, p := range data.parties {
		if p.LegalName == name {
			return p
		}
	}
	return nil
}

package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/datafluxo/financas_backend/models"
	"github.com/datafluxo/financas_backend/store"
)

type postingsRepo struct {
	s *session
}

func (r *postingsRepo) Insert(ctx context.Context, posting *models.Posting) error {
	data, done := r.s.begin()
	defer done()

	posting.ID = data.nextPostingID
	data.nextPostingID++
	if posting.CreatedAt.IsZero() {
		posting.CreatedAt = time.Now()
	}
	data.postings[posting.ID] = copyPosting(posting)
	return nil
}

func (r *postingsRepo) Fetch(ctx context.Context, filter store.PostingFilter) ([]*models.Posting, error) {
	data, done := r.s.begin()
	defer done()

	var out []*models.Posting
	for _, p := range data.postings {
		if filter.Matches(p) {
			out = append(out, copyPosting(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *postingsRepo) FetchByID(ctx context.Context, id int) (*models.Posting, error) {
	data, done := r.s.begin()
	defer done()

	p, ok := data.postings[id]
	if !ok {
		return nil, models.ErrorRecordNotFound
	}
	return copyPosting(p), nil
}

func (r *postingsRepo) Update(ctx context.Context, id int, patch *models.PostingPatch) (*models.Posting, error) {
	data, done := r.s.begin()
	defer done()

	p, ok := data.postings[id]
	if !ok {
		return nil, models.ErrorRecordNotFound
	}
	patch.Apply(p)
	return copyPosting(p), nil
}

func (r *postingsRepo) Settle(ctx context.Context, id int, accountName string, settleDate time.Time, interest models.Money) (*models.Posting, error) {
	data, done := r.s.begin()
	defer done()

	p, ok := data.postings[id]
	if !ok {
		return nil, models.ErrorRecordNotFound
	}
	// state re-checked under the same guard that writes it: the settle race
	// resolves to one winner
	if !p.State.IsOpen() {
		return nil, models.ErrorPostingNotPending
	}
	name := accountName
	p.State = models.PostingStateSettled
	p.SettleDate = &settleDate
	p.AccountName = &name
	p.Interest = interest
	return copyPosting(p), nil
}

func (r *postingsRepo) Unsettle(ctx context.Context, id int, newState models.PostingState) (*models.Posting, error) {
	data, done := r.s.begin()
	defer done()

	p, ok := data.postings[id]
	if !ok {
		return nil, models.ErrorRecordNotFound
	}
	if p.State != models.PostingStateSettled {
		return nil, models.ErrorPostingNotSettled
	}
	p.State = newState
	p.SettleDate = nil
	p.AccountName = nil
	p.Interest = models.ZeroMoney()
	return copyPosting(p), nil
}

func (r *postingsRepo) Cancel(ctx context.Context, id int) (*models.Posting, error) {
	data, done := r.s.begin()
	defer done()

	p, ok := data.postings[id]
	if !ok {
		return nil, models.ErrorRecordNotFound
	}
	if !p.State.IsOpen() {
		return nil, models.ErrorPostingNotPending
	}
	p.State = models.PostingStateCancelled
	return copyPosting(p), nil
}

func (r *postingsRepo) Delete(ctx context.Context, id int) error {
	data, done := r.s.begin()
	defer done()

	p, ok := data.postings[id]
	if !ok {
		return models.ErrorRecordNotFound
	}
	if p.State == models.PostingStateSettled {
		return models.ErrorPostingSettled
	}
	delete(data.postings, id)
	return nil
}

func (r *postingsRepo) RefreshStates(ctx context.Context, asOf models.Date) (int64, error) {
	data, done := r.s.begin()
	defer done()

	var touched int64
	for _, p := range data.postings {
		if !p.State.IsOpen() {
			continue
		}
		want := models.PostingStatePending
		if p.DueDate.Before(asOf) {
			want = models.PostingStateOverdue
		}
		if p.State != want {
			p.State = want
			touched++
		}
	}
	return touched, nil
}

package memstore

import (
	"context"
	"time"
)

type marksRepo struct {
	s *session
}

func (r *marksRepo) Seen(ctx context.Context, contentHash string) (bool, error) {
	data, done := r.s.begin()
	defer done()

	_, ok := data.marks[contentHash]
	return ok, nil
}

func (r *marksRepo) Record(ctx context.Context, contentHash string) error {
	data, done := r.s.begin()
	defer done()

	data.marks[contentHash] = time.Now()
	return nil
}

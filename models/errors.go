package models

import (
	"errors"
	"fmt"
)

// Domain error taxonomy. State and concurrency errors are surfaced to callers
// verbatim; the engine never converts one kind to another.
var (
	ErrorRecordNotFound = errors.New("record not found")
	ErrorDuplicateName  = errors.New("name already in use")

	ErrorPostingNotPending = errors.New("posting is not pending or overdue")
	ErrorPostingNotSettled = errors.New("posting is not settled")
	ErrorPostingSettled    = errors.New("posting is settled; unsettle it first")
	ErrorPostingCancelled  = errors.New("posting is cancelled")

	ErrorAccountUnknown  = errors.New("account not found")
	ErrorAccountInactive = errors.New("account is inactive")

	ErrorCategoryKindConflict = errors.New("category is already used with the other kind")
	ErrorPartyHasReferences   = errors.New("party is referenced by postings")

	ErrorSettlementInFuture = errors.New("settle date is more than one day in the future")

	ErrorConcurrentModification = errors.New("concurrent modification, retry")
	ErrorStoreUnavailable       = errors.New("store unavailable")
	ErrorStoreIntegrity         = errors.New("store integrity violation")
)

// InvariantError reports a broken structural invariant (I1..I8). These are
// never expected; the caller should stop writing.
type InvariantError struct {
	Symbol string
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant %s broken: %s", e.Symbol, e.Detail)
}

func BrokenInvariant(symbol, detail string) error {
	return &InvariantError{Symbol: symbol, Detail: detail}
}

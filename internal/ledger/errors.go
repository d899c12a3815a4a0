package ledger

import (
	"errors"
	"fmt"
)

// Ledger error taxonomy. Handlers dispatch on these with errors.Is; the
// ledger never swallows one. Every mutating operation either commits all
// of its writes or returns one of these with nothing applied.
var (
	// ErrValidation means the input shape or range is bad. Not retryable.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound means the referenced entity is missing or soft-deleted.
	ErrNotFound = errors.New("not found")
	// ErrForbidden means the caller lacks the required relationship to the
	// entity, such as verifying a debt owed to someone else.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidState means the operation is not legal from the entity's
	// current status.
	ErrInvalidState = errors.New("invalid state")
	// ErrStaleData means another writer committed between the caller's read
	// and this write. The caller should re-fetch and may retry once.
	ErrStaleData = errors.New("stale data")
	// ErrAgreementStale means a settlement referenced by an agreement was
	// closed independently since proposal. The agreement is left pending.
	ErrAgreementStale = errors.New("agreement references settlements that are no longer open")
)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

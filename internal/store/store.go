// Package store defines the Job Store Adapter contract (spec §4.2): the
// transactional, server-clocked document store that both the Queue
// Controller and the Completion Handler read and write. Concrete
// backends live in store/firestore (production) and store/sqlstore
// (local/dev and tests).
package store

import (
	"context"
	"errors"

	"whisperqueue/internal/domain"
)

// ErrNotFound is returned by Get and by Tx.Get when no job exists with
// the given ID.
var ErrNotFound = errors.New("store: job not found")

// ListOrder controls the ordering of ListByStatus results.
type ListOrder int

const (
	// OrderByCreatedAtAsc is the only ordering the controller needs
	// (FIFO claim, spec §4.6); it is the default zero value.
	OrderByCreatedAtAsc ListOrder = iota
)

// Tx is the transactional handle passed into the function given to
// RunTransaction. Reads and writes issued against Tx are buffered and
// committed atomically when the function returns nil; any error aborts
// the whole transaction and no writes apply.
type Tx interface {
	Get(ctx context.Context, jobID string) (domain.Job, error)
	Update(ctx context.Context, jobID string, patch domain.Patch) error
	CountByStatus(ctx context.Context, status domain.Status) (int, error)
	ListByStatus(ctx context.Context, status domain.Status, order ListOrder, limit int) ([]domain.Job, error)
}

// Store is the Job Store Adapter (C1).
type Store interface {
	// Get reads the current record for jobID, or ErrNotFound.
	Get(ctx context.Context, jobID string) (domain.Job, error)

	// Update applies patch to jobID outside any transaction
	// (last-writer-wins, per spec §4.2). Used for best-effort
	// bookkeeping writes such as recording a batch handle.
	Update(ctx context.Context, jobID string, patch domain.Patch) error

	// RunTransaction executes fn with a transactional handle. Reads
	// performed inside fn and a write that depends on them are
	// serializable with respect to other transactions touching the
	// same documents (the "required guarantee" of spec §4.2).
	// Implementations retry on contention up to a small bound.
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// CountByStatus counts jobs in the given status outside any
	// transaction. Provided for diagnostics; C5's own count must be
	// taken via Tx.CountByStatus inside its transaction to preserve I2.
	CountByStatus(ctx context.Context, status domain.Status) (int, error)

	// ListByStatus returns a finite slice of jobs in the given status,
	// ordered per order, capped at limit (0 means unlimited).
	ListByStatus(ctx context.Context, status domain.Status, order ListOrder, limit int) ([]domain.Job, error)
}

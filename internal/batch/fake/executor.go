// Package fake provides an in-memory Batch Executor for tests and the
// single-process dev profile: no network calls, just a record of what
// was submitted and a way to force a SubmitError.
package fake

import (
	"context"
	"fmt"
	"sync"

	whisperbatch "whisperqueue/internal/batch"
	"whisperqueue/internal/domain"
)

// Executor records every Submit call and can be configured to fail.
type Executor struct {
	mu   sync.Mutex
	subs []whisperbatch.Params

	// FailWith, if non-nil, makes every Submit return a SubmitError
	// wrapping this error instead of succeeding.
	FailWith error

	// HandlePrefix customizes the returned handle; defaults to "fake-batch-".
	HandlePrefix string

	next int
}

func New() *Executor {
	return &Executor{HandlePrefix: "fake-batch-"}
}

func (e *Executor) Submit(ctx context.Context, job domain.Job) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.FailWith != nil {
		return "", &whisperbatch.SubmitError{Err: e.FailWith}
	}

	params := whisperbatch.BuildParams(job, "fake-bucket", "", "", "", "")
	e.subs = append(e.subs, params)
	e.next++
	return fmt.Sprintf("%s%d", e.HandlePrefix, e.next), nil
}

// Submissions returns the params for every job submitted so far, in
// call order.
func (e *Executor) Submissions() []whisperbatch.Params {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]whisperbatch.Params, len(e.subs))
	copy(out, e.subs)
	return out
}

// Count returns the number of Submit calls made so far.
func (e *Executor) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subs)
}

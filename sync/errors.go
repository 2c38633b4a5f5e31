// ABOUTME: Error taxonomy for the sync pipeline
// ABOUTME: Each stage failure carries the page it happened on and wraps its cause
package sync

import (
	"errors"
	"fmt"
)

var (
	ErrSyncInProgress      = errors.New("sync already in progress for organization")
	ErrMissingOrganization = errors.New("organization id is required")
	ErrMissingActor        = errors.New("actor id is required")
)

// RemoteFetchError means a page could not be read from the remote source. Fatal.
type RemoteFetchError struct {
	Page int
	Err  error
}

func (e *RemoteFetchError) Error() string {
	return fmt.Sprintf("fetch page %d: %v", e.Page, e.Err)
}

func (e *RemoteFetchError) Unwrap() error { return e.Err }

// ReconciliationQueryError means the existing-record lookup failed. Fatal.
type ReconciliationQueryError struct {
	Page int
	Err  error
}

func (e *ReconciliationQueryError) Error() string {
	return fmt.Sprintf("reconcile page %d: %v", e.Page, e.Err)
}

func (e *ReconciliationQueryError) Unwrap() error { return e.Err }

// InsertBatchError means the page's batched insert was rolled back. Fatal.
type InsertBatchError struct {
	Page  int
	Count int
	Err   error
}

func (e *InsertBatchError) Error() string {
	return fmt.Sprintf("insert batch of %d on page %d: %v", e.Count, e.Page, e.Err)
}

func (e *InsertBatchError) Unwrap() error { return e.Err }

// UpdateRecordError is one failed per-record update. It never stops the run.
type UpdateRecordError struct {
	Page        int
	CandidateID string
	Email       string
	Err         error
}

func (e *UpdateRecordError) Error() string {
	return fmt.Sprintf("update candidate %s (%s) on page %d: %v", e.CandidateID, e.Email, e.Page, e.Err)
}

func (e *UpdateRecordError) Unwrap() error { return e.Err }

// ActivityWriteError means the audit batch for a page was not written. Logged, not fatal.
type ActivityWriteError struct {
	Page  int
	Count int
	Err   error
}

func (e *ActivityWriteError) Error() string {
	return fmt.Sprintf("write %d activities on page %d: %v", e.Count, e.Page, e.Err)
}

func (e *ActivityWriteError) Unwrap() error { return e.Err }

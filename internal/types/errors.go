package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrMaxRetries         = errors.New("max retries exceeded")
	ErrNotFound           = errors.New("record not found")
	ErrRunInProgress      = errors.New("a run is already in progress")
	ErrUnknownDistributor = errors.New("unknown distributor")
	ErrEmptyResponse      = errors.New("empty response body")
	ErrInvalidURL         = errors.New("invalid URL")
)

// FetchError wraps errors that occur during fetching. A FetchError returned by the
// resilient fetcher is terminal: every attempt has already been spent.
type FetchError struct {
	URL        string
	StatusCode int
	Attempts   int
	Err        error
	Retryable  bool
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error for %s (status %d, attempts %d): %v", e.URL, e.StatusCode, e.Attempts, e.Err)
	}
	return fmt.Sprintf("fetch error for %s (attempts %d): %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) IsRetryable() bool { return e.Retryable }

// ExtractionError reports a field or page that could not be parsed. It is never fatal:
// the field falls back to its default value.
type ExtractionError struct {
	URL   string
	Field string
	Err   error
}

func (e *ExtractionError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("extraction error for %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("extraction error for %s (field=%q): %v", e.URL, e.Field, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// DistributorRunError reports that a whole distributor failed during a run.
type DistributorRunError struct {
	Distributor string
	Err         error
}

func (e *DistributorRunError) Error() string {
	return fmt.Sprintf("distributor %s failed: %v", e.Distributor, e.Err)
}

func (e *DistributorRunError) Unwrap() error { return e.Err }

// ReconciliationError reports a store write that failed mid-batch. The batch has been
// rolled back when this is returned.
type ReconciliationError struct {
	Distributor string
	Err         error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("reconciliation for %s rolled back: %v", e.Distributor, e.Err)
}

func (e *ReconciliationError) Unwrap() error { return e.Err }

// StorageError wraps errors that occur in a storage backend.
type StorageError struct {
	Backend string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error (%s %s): %v", e.Backend, e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

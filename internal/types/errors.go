package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrTimeout          = errors.New("timed out waiting for element")
	ErrEmptyListing     = errors.New("listing page has no product anchors")
	ErrNoNutritionBlock = errors.New("nutrition information block not found")
	ErrNoProductName    = errors.New("product name not found")
	ErrNoListingPage    = errors.New("no listing page loaded")
	ErrInvalidURL       = errors.New("invalid URL")
)

// FetchError wraps errors that occur while fetching or navigating a page.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
	Retryable  bool
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error for %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) IsRetryable() bool { return e.Retryable }

// CollectError wraps errors raised while walking a listing.
type CollectError struct {
	Page int
	URL  string
	Err  error
}

func (e *CollectError) Error() string {
	if e.Page > 0 {
		return fmt.Sprintf("collect error on page %d (%s): %v", e.Page, e.URL, e.Err)
	}
	return fmt.Sprintf("collect error for %s: %v", e.URL, e.Err)
}

func (e *CollectError) Unwrap() error { return e.Err }

// StorageError wraps errors that occur while loading or persisting a dataset.
type StorageError struct {
	Backend string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("storage error (%s %s): %v", e.Backend, e.Op, e.Err)
	}
	return fmt.Sprintf("storage error (%s): %v", e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsStorageError reports whether err carries a StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// PipelineError wraps errors raised by a record pipeline stage.
type PipelineError struct {
	Stage   string
	Product string
	Err     error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline error at stage %q for %q: %v", e.Stage, e.Product, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

package core

import (
	"errors"
	"strings"
)

// Sentinel errors for the failure modes callers branch on. Wrap with
// fmt.Errorf("...: %w", err) and test with errors.Is.
var (
	ErrUnsupportedContentType = errors.New("unsupported content type")
	ErrInsufficientContent    = errors.New("insufficient text extracted")
	ErrExtractionFailure      = errors.New("extraction failed")
	ErrStorageUnavailable     = errors.New("storage service unavailable")
	ErrNotFound               = errors.New("document not found")
	ErrAccessDenied           = errors.New("access denied")
)

// StoreResult is the outcome of one store's part of a multi-store operation.
type StoreResult struct {
	Store string
	Err   error
}

// MultiStoreResult collects per-store outcomes of a saga-style operation.
// Stores are updated independently; a failed store is recorded, never rolled
// back.
type MultiStoreResult []StoreResult

// OK reports whether every store succeeded.
func (r MultiStoreResult) OK() bool {
	for _, s := range r {
		if s.Err != nil {
			return false
		}
	}
	return true
}

// FailedStores lists the names of the stores that failed.
func (r MultiStoreResult) FailedStores() []string {
	var out []string
	for _, s := range r {
		if s.Err != nil {
			out = append(out, s.Store)
		}
	}
	return out
}

// FailureMessage renders the partial-failure description used in batch results,
// e.g. "Partially deleted. Failed in: vector database, storage".
func (r MultiStoreResult) FailureMessage(verb string) string {
	return "Partially " + verb + ". Failed in: " + strings.Join(r.FailedStores(), ", ")
}

package search

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDocumentNotFound if no document exists with the requested id.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrVersionConflict if a write precondition does not hold.
	ErrVersionConflict = errors.New("version conflict")

	// ErrResultWindowExceeded if from+size of a search exceeds the result window.
	ErrResultWindowExceeded = errors.New("result window exceeded")

	// ErrMalformedQuery if a query body cannot be interpreted.
	ErrMalformedQuery = errors.New("malformed query")
)

// DocumentNotFoundError names the missing document. It matches ErrDocumentNotFound
// with errors.Is.
type DocumentNotFoundError struct {
	Index string
	ID    string
}

func (e *DocumentNotFoundError) Error() string {
	return fmt.Sprintf("document %s/%s not found", e.Index, e.ID)
}

func (e *DocumentNotFoundError) Unwrap() error {
	return ErrDocumentNotFound
}

// MalformedQueryError wraps ErrMalformedQuery with a reason.
func MalformedQueryError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedQuery, fmt.Sprintf(format, args...))
}

// BulkFailure describes one rejected action of a bulk request.
type BulkFailure struct {
	Op     BulkOp
	ID     string
	Status int
	Reason string
}

// BulkError is returned by Index.Bulk when at least one action failed.
type BulkError struct {
	Failures []BulkFailure
}

func (e *BulkError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s %s: %d %s", f.Op, f.ID, f.Status, f.Reason))
	}
	return fmt.Sprintf("bulk request had %d failed actions: %s", len(e.Failures), strings.Join(parts, "; "))
}

// Is reports version conflicts inside the batch as ErrVersionConflict.
func (e *BulkError) Is(target error) bool {
	if target != ErrVersionConflict {
		return false
	}
	for _, f := range e.Failures {
		if f.Status == 409 {
			return true
		}
	}
	return false
}

package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrCollision if an item already exists within the store.
	ErrCollision = errors.New("item already exists")

	// ErrNotFound if a token, attribute or edge does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidEdge if an edge would link a token to itself or uses an unknown kind.
	ErrInvalidEdge = errors.New("invalid edge")

	// ErrTransactionClosed if a session is used after Commit or Rollback.
	ErrTransactionClosed = errors.New("transaction already closed")

	// ErrInvalidName if a token or attribute name is empty or too long.
	ErrInvalidName = errors.New("invalid name")
)

// NotFoundError identifies the missing entity. It matches ErrNotFound with errors.Is.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s id: %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

func TokenNotFoundError(id int64) error {
	return &NotFoundError{Entity: "token", ID: id}
}

func AttributeNotFoundError(id int64) error {
	return &NotFoundError{Entity: "token attribute", ID: id}
}

func EdgeNotFoundError(kind EdgeKind, id int64) error {
	return &NotFoundError{Entity: "tag " + kind.String(), ID: id}
}

// InvalidEdgeError describes why an edge was rejected.
func InvalidEdgeError(kind EdgeKind, tokenID, linkedID int64) error {
	if tokenID == linkedID {
		return fmt.Errorf("%s edge from token %d to itself: %w", kind, tokenID, ErrInvalidEdge)
	}
	return fmt.Errorf("%s edge %d -> %d: %w", kind, tokenID, linkedID, ErrInvalidEdge)
}

// ValidateName checks a token or attribute name against the column width.
func ValidateName(name string, maxLen int) error {
	if name == "" {
		return fmt.Errorf("empty name: %w", ErrInvalidName)
	}
	if maxLen > 0 && len([]rune(name)) > maxLen {
		return fmt.Errorf("name %q exceeds %d characters: %w", name, maxLen, ErrInvalidName)
	}
	return nil
}

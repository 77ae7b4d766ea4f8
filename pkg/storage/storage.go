// Package storage contains the relational tag store interfaces and the types shared by
// its implementations.
//
//go:generate mockgen -source storage.go -destination ./mocks/mock_storage.go -package mocks TagDatastore,TagTx
package storage

import (
	"context"
	"fmt"
	"strings"
)

const (
	// DefaultListLimit is the page size applied when ListOptions.Limit is zero.
	DefaultListLimit = 100

	// MaxAttributeNameLength mirrors the width of the tag_attribute.name column.
	MaxAttributeNameLength = 32

	// MaxTokenNameLength mirrors the width of the tag_token.name column.
	MaxTokenNameLength = 255
)

// EdgeKind names one of the three relationship tables between tokens.
type EdgeKind int

const (
	EdgeCategory EdgeKind = iota + 1
	EdgeSynonym
	EdgeRepresentative
)

// EdgeKinds lists every kind, in table creation order.
var EdgeKinds = []EdgeKind{EdgeCategory, EdgeSynonym, EdgeRepresentative}

func (k EdgeKind) String() string {
	switch k {
	case EdgeCategory:
		return "category"
	case EdgeSynonym:
		return "synonym"
	case EdgeRepresentative:
		return "representative"
	default:
		return fmt.Sprintf("EdgeKind(%d)", int(k))
	}
}

// Table returns the relational table holding edges of this kind.
func (k EdgeKind) Table() string {
	return "tag_" + k.String()
}

// Valid reports whether k is one of the declared kinds.
func (k EdgeKind) Valid() bool {
	return k >= EdgeCategory && k <= EdgeRepresentative
}

// Token is the atomic named entity every tag, category, synonym and representative
// refers to.
type Token struct {
	ID   int64
	Name string
}

// Edge is a directed relationship from the tag TokenID to the token LinkedID.
type Edge struct {
	ID       int64
	Kind     EdgeKind
	TokenID  int64
	LinkedID int64
}

// Attribute is a named attribute definition referenced by id from tag projections.
type Attribute struct {
	ID   int64
	Name string
}

// NormalizeAttributeName returns the stored form of an attribute name.
func NormalizeAttributeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ListOptions controls offset pagination of list reads.
type ListOptions struct {
	Skip  int
	Limit int
	Desc  bool
}

// WithDefaults returns a copy of o where a zero or negative Limit becomes
// DefaultListLimit and a negative Skip becomes zero.
func (o ListOptions) WithDefaults() ListOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultListLimit
	}
	if o.Skip < 0 {
		o.Skip = 0
	}
	return o
}

// TokenReader reads tokens outside of a transaction.
type TokenReader interface {
	// ReadToken returns the token with the given id or a NotFoundError.
	ReadToken(ctx context.Context, id int64) (*Token, error)

	// ReadTokens resolves many ids at once. Ids that do not exist are absent from
	// the returned map, and no error is returned for them.
	ReadTokens(ctx context.Context, ids []int64) (map[int64]*Token, error)

	// ReadTokensByName returns the tokens whose name equals name, ordered by id.
	ReadTokensByName(ctx context.Context, name string, opts ListOptions) ([]*Token, error)

	// ReadTokensWithPrefix returns the tokens whose name starts with prefix, compared
	// case-insensitively, ordered by name.
	ReadTokensWithPrefix(ctx context.Context, prefix string, opts ListOptions) ([]*Token, error)

	// ReadTokensWithPrefixInCategory is ReadTokensWithPrefix restricted to the tags
	// that list categoryID as a category.
	ReadTokensWithPrefixInCategory(ctx context.Context, prefix string, categoryID int64, opts ListOptions) ([]*Token, error)

	// ListTokens returns tokens ordered by id.
	ListTokens(ctx context.Context, opts ListOptions) ([]*Token, error)

	CountTokens(ctx context.Context) (int64, error)
}

// EdgeReader reads relationship rows outside of a transaction.
type EdgeReader interface {
	// ReadEdges returns the edges of the given kind owned by tokenID, ordered by
	// linked id.
	ReadEdges(ctx context.Context, kind EdgeKind, tokenID int64) ([]*Edge, error)
}

// AttributeBackend manages attribute definitions.
type AttributeBackend interface {
	ReadAttribute(ctx context.Context, id int64) (*Attribute, error)
	ReadAttributes(ctx context.Context, ids []int64) (map[int64]*Attribute, error)
	ReadAttributeByName(ctx context.Context, name string) (*Attribute, error)
	ListAttributes(ctx context.Context, opts ListOptions) ([]*Attribute, error)
	CountAttributes(ctx context.Context) (int64, error)

	// CreateAttribute stores a new definition. The name is normalized with
	// NormalizeAttributeName and must be unique, otherwise ErrCollision is returned.
	CreateAttribute(ctx context.Context, name string) (*Attribute, error)
	RenameAttribute(ctx context.Context, id int64, name string) error
	DeleteAttribute(ctx context.Context, id int64) error
}

// TagTx is a transactional session. Nothing written through it is visible to other
// sessions before Commit, and Rollback discards all of it. Rollback after Commit is a
// no-op so it can always be deferred.
type TagTx interface {
	ReadToken(ctx context.Context, id int64) (*Token, error)

	// CreateToken inserts a token and returns it with its generated id.
	CreateToken(ctx context.Context, name string) (*Token, error)
	RenameToken(ctx context.Context, id int64, name string) error

	// DeleteToken removes the token and every edge that has it as source or target.
	DeleteToken(ctx context.Context, id int64) error

	// ReadEdge returns the edge (kind, tokenID, linkedID) or a NotFoundError.
	ReadEdge(ctx context.Context, kind EdgeKind, tokenID, linkedID int64) (*Edge, error)
	ReadEdges(ctx context.Context, kind EdgeKind, tokenID int64) ([]*Edge, error)

	// WriteEdge inserts a new edge. It returns ErrInvalidEdge for a self link and
	// ErrCollision when the edge, or a representative for tokenID, already exists.
	WriteEdge(ctx context.Context, kind EdgeKind, tokenID, linkedID int64) (*Edge, error)

	// UpdateEdgeLink points an existing edge at another target.
	UpdateEdgeLink(ctx context.Context, kind EdgeKind, edgeID, linkedID int64) error
	DeleteEdge(ctx context.Context, kind EdgeKind, tokenID, linkedID int64) error
	DeleteEdges(ctx context.Context, kind EdgeKind, tokenID int64) error

	ReadAttribute(ctx context.Context, id int64) (*Attribute, error)

	Commit() error
	Rollback() error
}

// TagDatastore is the authoritative relational store of the tag graph.
type TagDatastore interface {
	TokenReader
	EdgeReader
	AttributeBackend

	// BeginTx opens a new transactional session.
	BeginTx(ctx context.Context) (TagTx, error)

	// IsReady reports whether the datastore is reachable and migrated.
	IsReady(ctx context.Context) (ReadinessStatus, error)

	// Close closes the datastore and cleans up any residual resources.
	Close()
}

// ReadinessStatus represents the readiness status of the datastore.
type ReadinessStatus struct {
	// Message is a human-friendly status message for the current datastore status.
	Message string

	IsReady bool
}

// RunInTx runs fn inside a transaction of ds. The transaction is committed when fn
// returns nil and rolled back otherwise.
func RunInTx(ctx context.Context, ds TagDatastore, fn func(tx TagTx) error) error {
	tx, err := ds.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}

// UniqueIDs returns ids without duplicates, keeping first occurrences in order.
func UniqueIDs(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

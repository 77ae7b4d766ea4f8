// Package search defines the document index client the query and tag engines are
// built on, independent of the backing search service.
//
//go:generate mockgen -source search.go -destination ./mocks/mock_search.go -package mocks Index
package search

import (
	"context"
	"encoding/json"
	"iter"
)

// DefaultMaxResultWindow is the offset plus size ceiling applied by a fresh index.
const DefaultMaxResultWindow = 10000

// Query is a query body in the search DSL, such as {"match_all": {}}.
type Query map[string]any

// MatchAllQuery returns a query matching every document.
func MatchAllQuery() Query {
	return Query{"match_all": map[string]any{}}
}

// SearchRequest is one randomly addressed search.
type SearchRequest struct {
	Query Query

	// Size is the number of hits to return. Zero returns no hits, only the total.
	Size int
	From int

	// Sort is the sort specification, for example
	// []any{"_score", map[string]any{"last_updated": map[string]any{"order": "desc"}}}.
	Sort []any

	// SearchAfter continues after the hit whose sort values are given.
	SearchAfter []any

	TrackTotalHits bool
}

// Hit is one document of a search result.
type Hit struct {
	ID     string
	Source json.RawMessage
	Score  *float64

	// Sort holds the sort values of the hit, usable as SearchAfter.
	Sort []any
}

// SearchResponse is the result of a SearchRequest.
type SearchResponse struct {
	// Total counts every document matching the query, regardless of paging.
	Total int64
	Hits  []*Hit
}

// Version identifies one revision of a document for optimistic concurrency.
type Version struct {
	SeqNo       int64
	PrimaryTerm int64
}

// Document is a stored document with its current revision.
type Document struct {
	ID      string
	Source  json.RawMessage
	Version Version
}

// WriteOptions holds the preconditions of an Index call.
type WriteOptions struct {
	// IfVersion requires the stored document to be at this revision.
	IfVersion *Version

	// CreateOnly requires that no document with the id exists.
	CreateOnly bool
}

// WriteOption sets a precondition of an Index call.
type WriteOption func(*WriteOptions)

// WithIfVersion makes the write fail with ErrVersionConflict unless the stored
// document is at revision v.
func WithIfVersion(v Version) WriteOption {
	return func(o *WriteOptions) {
		o.IfVersion = &v
	}
}

// WithCreateOnly makes the write fail with ErrVersionConflict when the document
// already exists.
func WithCreateOnly() WriteOption {
	return func(o *WriteOptions) {
		o.CreateOnly = true
	}
}

// NewWriteOptions applies opts to an empty WriteOptions.
func NewWriteOptions(opts ...WriteOption) WriteOptions {
	var o WriteOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// BulkOp is the operation of one BulkAction.
type BulkOp int

const (
	BulkIndex BulkOp = iota
	BulkDelete
)

func (op BulkOp) String() string {
	switch op {
	case BulkIndex:
		return "index"
	case BulkDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// BulkAction is one write of a bulk request.
type BulkAction struct {
	Op     BulkOp
	ID     string
	Source json.RawMessage
}

// Index is a client of one logical collection of JSON documents.
// Implementations are safe for concurrent use.
type Index interface {
	// Name returns the collection name.
	Name() string

	// MaxResultWindow returns the ceiling on From+Size of a single Search.
	MaxResultWindow() int

	// Get returns the document with the given id or a DocumentNotFoundError.
	Get(ctx context.Context, id string) (*Document, error)

	// Search runs a randomly addressed query. It fails with ErrResultWindowExceeded
	// when From+Size exceeds MaxResultWindow.
	Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error)

	// Count returns the number of documents matching query.
	Count(ctx context.Context, query Query) (int64, error)

	// Index creates or replaces a document and returns its new revision.
	Index(ctx context.Context, id string, source json.RawMessage, opts ...WriteOption) (Version, error)

	// Delete removes a document. It returns a DocumentNotFoundError when absent.
	Delete(ctx context.Context, id string) error

	// Bulk applies actions in one request. Deleting an absent document is not a
	// failure. Any failed action makes the call return a *BulkError.
	Bulk(ctx context.Context, actions []BulkAction) error

	// Scan visits every document matching query in index order, fetching
	// batchSize documents per round trip. It is not limited by MaxResultWindow.
	// Iteration stops at the first error, which is yielded with a nil hit.
	Scan(ctx context.Context, query Query, batchSize int) iter.Seq2[*Hit, error]

	// FieldNames returns the leaf field paths of the collection mapping, such as
	// "name" or "attributes.3".
	FieldNames(ctx context.Context) ([]string, error)
}

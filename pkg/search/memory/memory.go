// Package memory is an in-process search.Index used by unit tests and the memory
// datastore engine. It evaluates the subset of the query DSL the engines emit.
package memory

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"slices"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zetsubou/tagstore/pkg/search"
)

var tracer = otel.Tracer("tagstore/pkg/search/memory")

// IndexOption configures an [Index].
type IndexOption func(*Index)

// WithMaxResultWindow sets the from+size ceiling of Search.
func WithMaxResultWindow(w int) IndexOption {
	return func(i *Index) {
		i.window = w
	}
}

// WithFieldNames fixes the mapping field names reported by FieldNames instead of
// deriving them from the stored documents.
func WithFieldNames(names ...string) IndexOption {
	return func(i *Index) {
		i.fieldNames = slices.Clone(names)
	}
}

type document struct {
	id     string
	raw    json.RawMessage
	source map[string]any
	seqNo  int64

	// pos is the index order, fixed when the document is first created.
	pos int64
}

// Index is a search.Index holding its documents in memory.
type Index struct {
	name       string
	window     int
	fieldNames []string

	mu      sync.RWMutex
	docs    map[string]*document
	seqNo   int64
	nextPos int64
}

var _ search.Index = (*Index)(nil)

// New returns an empty index called name.
func New(name string, opts ...IndexOption) *Index {
	idx := &Index{
		name:   name,
		window: search.DefaultMaxResultWindow,
		docs:   make(map[string]*document),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

func (i *Index) Name() string {
	return i.name
}

func (i *Index) MaxResultWindow() int {
	return i.window
}

// Len returns the number of stored documents.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.docs)
}

func (i *Index) Get(ctx context.Context, id string) (*search.Document, error) {
	_, span := tracer.Start(ctx, "memory.Get", trace.WithAttributes(attribute.String("id", id)))
	defer span.End()

	i.mu.RLock()
	defer i.mu.RUnlock()

	d, ok := i.docs[id]
	if !ok {
		return nil, &search.DocumentNotFoundError{Index: i.name, ID: id}
	}
	return &search.Document{
		ID:      d.id,
		Source:  slices.Clone(d.raw),
		Version: search.Version{SeqNo: d.seqNo, PrimaryTerm: 1},
	}, nil
}

func (i *Index) Search(ctx context.Context, req *search.SearchRequest) (*search.SearchResponse, error) {
	_, span := tracer.Start(ctx, "memory.Search", trace.WithAttributes(
		attribute.Int("from", req.From),
		attribute.Int("size", req.Size),
	))
	defer span.End()

	if req.From < 0 || req.Size < 0 {
		return nil, search.MalformedQueryError("from and size must not be negative")
	}
	if req.From+req.Size > i.window {
		return nil, fmt.Errorf("%w: from %d + size %d > %d", search.ErrResultWindowExceeded, req.From, req.Size, i.window)
	}

	q, err := normalize(req.Query)
	if err != nil {
		return nil, err
	}
	keys, err := parseSort(req.Sort)
	if err != nil {
		return nil, err
	}
	after, err := normalizeValues(req.SearchAfter)
	if err != nil {
		return nil, err
	}

	i.mu.RLock()
	matched, err := i.evaluate(q)
	i.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	res := &search.SearchResponse{Total: int64(len(matched))}
	for _, m := range matched {
		m.sort = keys.values(m)
	}
	slices.SortStableFunc(matched, func(a, b *scored) int {
		return compareValues(keys, a.sort, b.sort)
	})

	if len(after) > 0 {
		if len(after) != len(keys)+1 && len(after) != len(keys) {
			return nil, search.MalformedQueryError("search_after has %d values, sort has %d keys", len(after), len(keys))
		}
		start := len(matched)
		for n, m := range matched {
			if compareValues(keys, m.sort[:len(after)], after) > 0 {
				start = n
				break
			}
		}
		matched = matched[start:]
	}

	if req.From >= len(matched) || req.Size == 0 {
		res.Hits = []*search.Hit{}
		return res, nil
	}
	end := min(req.From+req.Size, len(matched))
	for _, m := range matched[req.From:end] {
		res.Hits = append(res.Hits, m.hit())
	}
	return res, nil
}

func (i *Index) Count(ctx context.Context, query search.Query) (int64, error) {
	_, span := tracer.Start(ctx, "memory.Count")
	defer span.End()

	q, err := normalize(query)
	if err != nil {
		return 0, err
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	matched, err := i.evaluate(q)
	if err != nil {
		return 0, err
	}
	return int64(len(matched)), nil
}

func (i *Index) Index(ctx context.Context, id string, source json.RawMessage, opts ...search.WriteOption) (search.Version, error) {
	_, span := tracer.Start(ctx, "memory.Index", trace.WithAttributes(attribute.String("id", id)))
	defer span.End()

	i.mu.Lock()
	defer i.mu.Unlock()

	return i.put(id, source, search.NewWriteOptions(opts...))
}

func (i *Index) put(id string, source json.RawMessage, o search.WriteOptions) (search.Version, error) {
	var decoded map[string]any
	if err := json.Unmarshal(source, &decoded); err != nil || decoded == nil {
		return search.Version{}, search.MalformedQueryError("document %s is not a JSON object", id)
	}

	prior, exists := i.docs[id]
	if o.CreateOnly && exists {
		return search.Version{}, fmt.Errorf("%w: document %s already exists", search.ErrVersionConflict, id)
	}
	if o.IfVersion != nil {
		if !exists {
			return search.Version{}, fmt.Errorf("%w: document %s does not exist", search.ErrVersionConflict, id)
		}
		if prior.seqNo != o.IfVersion.SeqNo || o.IfVersion.PrimaryTerm != 1 {
			return search.Version{}, fmt.Errorf("%w: document %s is at seq_no %d, expected %d",
				search.ErrVersionConflict, id, prior.seqNo, o.IfVersion.SeqNo)
		}
	}

	i.seqNo++
	d := &document{id: id, raw: slices.Clone(source), source: decoded, seqNo: i.seqNo}
	if exists {
		d.pos = prior.pos
	} else {
		d.pos = i.nextPos
		i.nextPos++
	}
	i.docs[id] = d
	return search.Version{SeqNo: d.seqNo, PrimaryTerm: 1}, nil
}

func (i *Index) Delete(ctx context.Context, id string) error {
	_, span := tracer.Start(ctx, "memory.Delete", trace.WithAttributes(attribute.String("id", id)))
	defer span.End()

	i.mu.Lock()
	defer i.mu.Unlock()

	if _, ok := i.docs[id]; !ok {
		return &search.DocumentNotFoundError{Index: i.name, ID: id}
	}
	delete(i.docs, id)
	i.seqNo++
	return nil
}

func (i *Index) Bulk(ctx context.Context, actions []search.BulkAction) error {
	_, span := tracer.Start(ctx, "memory.Bulk", trace.WithAttributes(attribute.Int("actions", len(actions))))
	defer span.End()

	i.mu.Lock()
	defer i.mu.Unlock()

	var failures []search.BulkFailure
	for _, a := range actions {
		switch a.Op {
		case search.BulkIndex:
			if _, err := i.put(a.ID, a.Source, search.WriteOptions{}); err != nil {
				failures = append(failures, search.BulkFailure{Op: a.Op, ID: a.ID, Status: 400, Reason: err.Error()})
			}
		case search.BulkDelete:
			if _, ok := i.docs[a.ID]; ok {
				delete(i.docs, a.ID)
				i.seqNo++
			}
		default:
			failures = append(failures, search.BulkFailure{Op: a.Op, ID: a.ID, Status: 400, Reason: "unknown bulk operation"})
		}
	}
	if len(failures) > 0 {
		return &search.BulkError{Failures: failures}
	}
	return nil
}

func (i *Index) Scan(ctx context.Context, query search.Query, batchSize int) iter.Seq2[*search.Hit, error] {
	return func(yield func(*search.Hit, error) bool) {
		ctx, span := tracer.Start(ctx, "memory.Scan")
		defer span.End()

		q, err := normalize(query)
		if err != nil {
			yield(nil, err)
			return
		}

		i.mu.RLock()
		matched, err := i.evaluate(q)
		i.mu.RUnlock()
		if err != nil {
			yield(nil, err)
			return
		}
		slices.SortFunc(matched, func(a, b *scored) int {
			return cmp.Compare(a.doc.pos, b.doc.pos)
		})

		if batchSize <= 0 {
			batchSize = len(matched) + 1
		}
		for n, m := range matched {
			if n%batchSize == 0 {
				if err := ctx.Err(); err != nil {
					yield(nil, err)
					return
				}
			}
			m.sort = []any{float64(m.doc.pos)}
			if !yield(m.hit(), nil) {
				return
			}
		}
	}
}

func (i *Index) FieldNames(ctx context.Context) ([]string, error) {
	_, span := tracer.Start(ctx, "memory.FieldNames")
	defer span.End()

	if i.fieldNames != nil {
		return slices.Clone(i.fieldNames), nil
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, d := range i.docs {
		leafPaths("", d.source, seen)
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

func leafPaths(prefix string, node map[string]any, into map[string]struct{}) {
	for k, v := range node {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		if child, ok := v.(map[string]any); ok && len(child) > 0 {
			leafPaths(path, child, into)
			continue
		}
		into[path] = struct{}{}
	}
}

// scored is a matching document during one evaluation.
type scored struct {
	doc   *document
	score float64
	sort  []any
}

func (s *scored) hit() *search.Hit {
	score := s.score
	return &search.Hit{
		ID:     s.doc.id,
		Source: slices.Clone(s.doc.raw),
		Score:  &score,
		Sort:   s.sort,
	}
}

// evaluate returns every document matching q. Callers hold i.mu.
func (i *Index) evaluate(q map[string]any) ([]*scored, error) {
	matched := make([]*scored, 0)
	for _, d := range i.docs {
		ok, score, err := match(q, d)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, &scored{doc: d, score: score})
		}
	}
	return matched, nil
}

// Package query pages through one search index collection. Pages beyond the result
// window of the index are reached by chaining search_after cursors.
package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"slices"
	"time"

	"github.com/Yiling-J/theine-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/zetsubou/tagstore/pkg/logger"
	"github.com/zetsubou/tagstore/pkg/search"
)

var tracer = otel.Tracer("tagstore/internal/query")

const (
	DefaultPageSize     = 40
	DefaultRandomSeed   = 1048596
	DefaultRandomField  = "id.keyword"
	defaultFieldNameTTL = time.Minute
)

// DefaultSort orders by relevance, then by the most recent update. Documents
// without last_updated sort last.
func DefaultSort() []any {
	return []any{
		"_score",
		map[string]any{"last_updated": map[string]any{"order": "desc", "unmapped_type": "long"}},
	}
}

// Page is one page of decoded documents.
type Page[T any] struct {
	// Total counts every document matching the query.
	Total int64 `json:"total"`
	Items []T   `json:"items"`
}

// EngineOption configures an [Engine].
type EngineOption func(*config)

type config struct {
	analyzerFields map[string][]string
	sort           []any
	pageSize       int
	window         int
	fuzziness      int
	boolOp         BoolOp
	fieldNameTTL   time.Duration
	logger         logger.Logger
}

// WithAnalyzerFields maps analyzer names to the fields keywords are matched
// against under that analyzer, for example {"ngram": {"name.ngram", "name"}}.
func WithAnalyzerFields(fields map[string][]string) EngineOption {
	return func(c *config) {
		c.analyzerFields = fields
	}
}

// WithSort replaces DefaultSort. The sort must be total for deep pages to be
// reachable without gaps.
func WithSort(sort []any) EngineOption {
	return func(c *config) {
		c.sort = sort
	}
}

// WithPageSize sets the page size used when a call does not pass one.
func WithPageSize(size int) EngineOption {
	return func(c *config) {
		c.pageSize = size
	}
}

// WithWindow overrides the result window reported by the index.
func WithWindow(w int) EngineOption {
	return func(c *config) {
		c.window = w
	}
}

// WithFuzziness sets the default fuzziness of keyword matches.
func WithFuzziness(f int) EngineOption {
	return func(c *config) {
		c.fuzziness = f
	}
}

// WithBoolOp sets the default operator combining keyword clauses.
func WithBoolOp(op BoolOp) EngineOption {
	return func(c *config) {
		c.boolOp = op
	}
}

// WithFieldNameTTL sets how long the mapping field names are cached.
func WithFieldNameTTL(ttl time.Duration) EngineOption {
	return func(c *config) {
		c.fieldNameTTL = ttl
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) EngineOption {
	return func(c *config) {
		c.logger = l
	}
}

// Engine queries one index and decodes document sources into T.
type Engine[T any] struct {
	index  search.Index
	fields map[Analyzer][]string

	sort         []any
	pageSize     int
	window       int
	fuzziness    int
	boolOp       BoolOp
	fieldNameTTL time.Duration
	fieldNames   *theine.Cache[string, map[string]struct{}]
	logger       logger.Logger
}

// New returns an Engine over index. Unknown analyzer names and a page size larger
// than the window are rejected before any request is made.
func New[T any](index search.Index, opts ...EngineOption) (*Engine[T], error) {
	cfg := config{
		sort:         DefaultSort(),
		pageSize:     DefaultPageSize,
		window:       index.MaxResultWindow(),
		boolOp:       BoolShould,
		fieldNameTTL: defaultFieldNameTTL,
		logger:       logger.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	fields := make(map[Analyzer][]string, len(cfg.analyzerFields))
	for name, f := range cfg.analyzerFields {
		a, err := ParseAnalyzer(name)
		if err != nil {
			return nil, err
		}
		fields[a] = slices.Clone(f)
	}
	if cfg.window <= 0 {
		return nil, fmt.Errorf("result window must be positive, got %d", cfg.window)
	}
	if cfg.pageSize <= 0 {
		return nil, fmt.Errorf("page size must be positive, got %d", cfg.pageSize)
	}
	if cfg.pageSize > cfg.window {
		return nil, fmt.Errorf("%w: %d > %d", ErrPageSizeExceedsWindow, cfg.pageSize, cfg.window)
	}

	cache, err := theine.NewBuilder[string, map[string]struct{}](16).Build()
	if err != nil {
		return nil, fmt.Errorf("initialize field name cache: %w", err)
	}

	return &Engine[T]{
		index:        index,
		fields:       fields,
		sort:         slices.Clone(cfg.sort),
		pageSize:     cfg.pageSize,
		window:       cfg.window,
		fuzziness:    cfg.fuzziness,
		boolOp:       cfg.boolOp,
		fieldNameTTL: cfg.fieldNameTTL,
		fieldNames:   cache,
		logger:       cfg.logger,
	}, nil
}

// Close releases the field name cache.
func (e *Engine[T]) Close() {
	e.fieldNames.Close()
}

// Index returns the underlying index.
func (e *Engine[T]) Index() search.Index {
	return e.index
}

// MatchOption tunes one query.
type MatchOption func(*matchOptions)

type matchOptions struct {
	size      int
	analyzer  Analyzer
	fuzziness int
	boolOp    BoolOp
	seed      int64
}

// WithSize sets the page size of the call.
func WithSize(size int) MatchOption {
	return func(o *matchOptions) {
		o.size = size
	}
}

// WithAnalyzer selects the analyzer whose fields keywords are matched against.
func WithAnalyzer(a Analyzer) MatchOption {
	return func(o *matchOptions) {
		o.analyzer = a
	}
}

// WithMatchFuzziness sets the fuzziness of the call.
func WithMatchFuzziness(f int) MatchOption {
	return func(o *matchOptions) {
		o.fuzziness = f
	}
}

// WithMatchBoolOp sets the operator combining the keyword clauses of the call.
func WithMatchBoolOp(op BoolOp) MatchOption {
	return func(o *matchOptions) {
		o.boolOp = op
	}
}

// WithSeed sets the seed of Random.
func WithSeed(seed int64) MatchOption {
	return func(o *matchOptions) {
		o.seed = seed
	}
}

func (e *Engine[T]) matchOptions(opts []MatchOption) matchOptions {
	o := matchOptions{
		size:      e.pageSize,
		analyzer:  AnalyzerDefault,
		fuzziness: e.fuzziness,
		boolOp:    e.boolOp,
		seed:      DefaultRandomSeed,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Match runs a free-text keyword query. Empty keywords match everything.
func (e *Engine[T]) Match(ctx context.Context, page int, keywords string, opts ...MatchOption) (*Page[T], error) {
	ctx, span := tracer.Start(ctx, "query.Match", trace.WithAttributes(attribute.Int("page", page)))
	defer span.End()
	defer observeDuration("match", time.Now())

	o := e.matchOptions(opts)
	if keywords == "" {
		return e.page(ctx, page, search.MatchAllQuery(), o.size)
	}
	q, err := e.matchQuery(ctx, keywords, o)
	if err != nil {
		return nil, err
	}
	return e.page(ctx, page, q, o.size)
}

// MatchQuery returns the query Match would run for keywords.
func (e *Engine[T]) MatchQuery(ctx context.Context, keywords string, opts ...MatchOption) (search.Query, error) {
	return e.matchQuery(ctx, keywords, e.matchOptions(opts))
}

func (e *Engine[T]) matchQuery(ctx context.Context, keywords string, o matchOptions) (search.Query, error) {
	names, err := e.mappingFieldNames(ctx)
	if err != nil {
		return nil, err
	}
	return buildMatchQuery(keywords, o.analyzer, e.fields[o.analyzer], o.fuzziness, o.boolOp, names), nil
}

// MatchFields runs per-field keyword clauses combined with the call's boolean
// operator, each field matched through its analyzer sub-field.
func (e *Engine[T]) MatchFields(ctx context.Context, page int, matches []FieldMatch, opts ...MatchOption) (*Page[T], error) {
	ctx, span := tracer.Start(ctx, "query.MatchFields", trace.WithAttributes(attribute.Int("page", page)))
	defer span.End()
	defer observeDuration("match_fields", time.Now())

	o := e.matchOptions(opts)
	clauses := fieldClauses(matches, o.fuzziness)
	if clauses == nil {
		clauses = []any{}
	}
	q := search.Query{"bool": map[string]any{
		o.boolOp.String(): clauses,
		"must_not":         []any{},
	}}
	return e.page(ctx, page, q, o.size)
}

// MatchByRawQuery pages through a caller supplied query.
func (e *Engine[T]) MatchByRawQuery(ctx context.Context, query search.Query, page int, opts ...MatchOption) (*Page[T], error) {
	ctx, span := tracer.Start(ctx, "query.MatchByRawQuery", trace.WithAttributes(attribute.Int("page", page)))
	defer span.End()
	defer observeDuration("match_by_raw_query", time.Now())

	return e.page(ctx, page, query, e.matchOptions(opts).size)
}

// MatchAll pages through every document.
func (e *Engine[T]) MatchAll(ctx context.Context, page int, opts ...MatchOption) (*Page[T], error) {
	ctx, span := tracer.Start(ctx, "query.MatchAll", trace.WithAttributes(attribute.Int("page", page)))
	defer span.End()
	defer observeDuration("match_all", time.Now())

	return e.page(ctx, page, search.MatchAllQuery(), e.matchOptions(opts).size)
}

// Random pages through documents in an order derived from the seed, so equal
// seeds give equal orders. Keywords, when given, filter the documents first.
func (e *Engine[T]) Random(ctx context.Context, page int, keywords string, opts ...MatchOption) (*Page[T], error) {
	ctx, span := tracer.Start(ctx, "query.Random", trace.WithAttributes(attribute.Int("page", page)))
	defer span.End()
	defer observeDuration("random", time.Now())

	o := e.matchOptions(opts)
	inner := search.MatchAllQuery()
	if keywords != "" {
		q, err := e.matchQuery(ctx, keywords, o)
		if err != nil {
			return nil, err
		}
		inner = q
	}
	return e.page(ctx, page, randomScore(inner, o.seed, DefaultRandomField), o.size)
}

// GetByID returns the document with the given id.
func (e *Engine[T]) GetByID(ctx context.Context, id string) (T, error) {
	ctx, span := tracer.Start(ctx, "query.GetByID", trace.WithAttributes(attribute.String("id", id)))
	defer span.End()

	var zero T
	doc, err := e.index.Get(ctx, id)
	if err != nil {
		return zero, err
	}
	if len(doc.Source) == 0 || string(doc.Source) == "null" {
		return zero, &search.DocumentNotFoundError{Index: e.index.Name(), ID: id}
	}
	return decode[T](id, doc.Source)
}

// GetManyByIDs returns the documents with the given ids in the order of ids.
// Missing ids are skipped.
func (e *Engine[T]) GetManyByIDs(ctx context.Context, ids []string) (*Page[T], error) {
	ctx, span := tracer.Start(ctx, "query.GetManyByIDs", trace.WithAttributes(attribute.Int("ids", len(ids))))
	defer span.End()
	defer observeDuration("get_many_by_ids", time.Now())

	found := make(map[string]json.RawMessage, len(ids))
	for chunk := range slices.Chunk(ids, e.window) {
		res, err := e.index.Search(ctx, &search.SearchRequest{
			Query: search.Query{"ids": map[string]any{"values": chunk}},
			Size:  len(chunk),
		})
		if err != nil {
			return nil, err
		}
		for _, h := range res.Hits {
			found[h.ID] = h.Source
		}
	}

	out := &Page[T]{Items: make([]T, 0, len(found))}
	for _, id := range ids {
		src, ok := found[id]
		if !ok {
			continue
		}
		delete(found, id)
		v, err := decode[T](id, src)
		if err != nil {
			return nil, err
		}
		out.Items = append(out.Items, v)
	}
	out.Total = int64(len(out.Items))
	return out, nil
}

// Count returns the number of documents matching query.
func (e *Engine[T]) Count(ctx context.Context, query search.Query) (int64, error) {
	ctx, span := tracer.Start(ctx, "query.Count")
	defer span.End()

	return e.index.Count(ctx, query)
}

// Total returns the number of documents in the index.
func (e *Engine[T]) Total(ctx context.Context) (int64, error) {
	return e.Count(ctx, search.MatchAllQuery())
}

// IterateAll visits every document in index order. Each call starts a new
// cursor, and the walk is not bounded by the result window.
func (e *Engine[T]) IterateAll(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		for hit, err := range e.index.Scan(ctx, search.MatchAllQuery(), e.pageSize) {
			if err != nil {
				yield(zero, err)
				return
			}
			v, err := decode[T](hit.ID, hit.Source)
			if !yield(v, err) || err != nil {
				return
			}
		}
	}
}

// page decodes the hits of the requested page.
func (e *Engine[T]) page(ctx context.Context, page int, q search.Query, size int) (*Page[T], error) {
	res, err := e.query(ctx, page, q, size)
	if err != nil {
		return nil, err
	}
	out := &Page[T]{Total: res.Total, Items: make([]T, 0, len(res.Hits))}
	for _, h := range res.Hits {
		v, err := decode[T](h.ID, h.Source)
		if err != nil {
			return nil, err
		}
		out.Items = append(out.Items, v)
	}
	return out, nil
}

// query fetches page (1-based) of size hits. Pages that end within the window are
// fetched directly. Deeper pages start from the last page inside the window and
// chain search_after cursors, each hop skipping as many pages as fit in the window,
// then fetch the requested page after the last cursor.
func (e *Engine[T]) query(ctx context.Context, page int, q search.Query, size int) (*search.SearchResponse, error) {
	if size <= 0 {
		size = e.pageSize
	}
	if size > e.window {
		return nil, fmt.Errorf("%w: %d > %d", ErrPageSizeExceedsWindow, size, e.window)
	}
	if page < 1 {
		page = 1
	}

	req := &search.SearchRequest{
		Query:          q,
		Size:           size,
		Sort:           e.sort,
		TrackTotalHits: true,
	}
	if page*size <= e.window {
		req.From = (page - 1) * size
		return e.index.Search(ctx, req)
	}

	maxPage := e.window / size
	req.From = (maxPage - 1) * size
	res, err := e.index.Search(ctx, req)
	if err != nil {
		return nil, err
	}
	total := res.Total
	if int64(page) > (total+int64(size)-1)/int64(size) || len(res.Hits) < size {
		return emptyResponse(total), nil
	}

	remaining := page - maxPage
	req.From = 0
	for remaining > 1 {
		p := remaining - 1
		if remaining > maxPage {
			p = maxPage
		}
		req.Size = size * p
		req.SearchAfter = res.Hits[len(res.Hits)-1].Sort

		if res, err = e.index.Search(ctx, req); err != nil {
			return nil, err
		}
		chainedSubqueriesCounter.Inc()
		if len(res.Hits) < req.Size {
			e.logger.DebugWithContext(ctx, "cursor chain truncated",
				zap.String("index", e.index.Name()),
				zap.Int("page", page),
				zap.Int("expected", req.Size),
				zap.Int("received", len(res.Hits)),
			)
			return emptyResponse(total), nil
		}
		remaining -= p
	}

	req.Size = size
	req.SearchAfter = res.Hits[len(res.Hits)-1].Sort
	if res, err = e.index.Search(ctx, req); err != nil {
		return nil, err
	}
	chainedSubqueriesCounter.Inc()
	res.Total = total
	return res, nil
}

func emptyResponse(total int64) *search.SearchResponse {
	return &search.SearchResponse{Total: total, Hits: []*search.Hit{}}
}

// mappingFieldNames returns the field names of the index mapping, cached for the
// configured TTL.
func (e *Engine[T]) mappingFieldNames(ctx context.Context) (map[string]struct{}, error) {
	if names, ok := e.fieldNames.Get(e.index.Name()); ok {
		return names, nil
	}
	list, err := e.index.FieldNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("read field names of %s: %w", e.index.Name(), err)
	}
	names := make(map[string]struct{}, len(list))
	for _, n := range list {
		names[n] = struct{}{}
	}
	e.fieldNames.SetWithTTL(e.index.Name(), names, 1, e.fieldNameTTL)
	return names, nil
}

func decode[T any](id string, src json.RawMessage) (T, error) {
	var v T
	if err := json.Unmarshal(src, &v); err != nil {
		return v, fmt.Errorf("decode document %s: %w", id, err)
	}
	return v, nil
}

// IsNotFound reports whether err means a document does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, search.ErrDocumentNotFound)
}

package tag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/zetsubou/tagstore/internal/query"
	"github.com/zetsubou/tagstore/pkg/logger"
	"github.com/zetsubou/tagstore/pkg/search"
	"github.com/zetsubou/tagstore/pkg/storage"
)

var tracer = otel.Tracer("tagstore/internal/tag")

const (
	DefaultBatchSize   = 300
	DefaultConcurrency = 8
)

// DefaultSort orders tag projections by relevance, then by id.
func DefaultSort() []any {
	return []any{"_score", "id"}
}

// ServiceOption configures a [Service].
type ServiceOption func(*Service)

// WithLogger sets the logger of the service and of its reporter.
func WithLogger(l logger.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = l
	}
}

// WithBatchSize sets how many rewritten documents the cascading delete buffers
// before a bulk flush.
func WithBatchSize(n int) ServiceOption {
	return func(s *Service) {
		s.batchSize = n
	}
}

// WithListLimit sets the default limit of name lookups.
func WithListLimit(n int) ServiceOption {
	return func(s *Service) {
		s.listLimit = n
	}
}

// WithConcurrency bounds the goroutines of name lookups and repair runs.
func WithConcurrency(n int) ServiceOption {
	return func(s *Service) {
		s.concurrency = n
	}
}

// WithQueryOptions appends options of the query engine over the tag index.
func WithQueryOptions(opts ...query.EngineOption) ServiceOption {
	return func(s *Service) {
		s.queryOpts = append(s.queryOpts, opts...)
	}
}

// Service maintains tags across the relational store and the search index.
type Service struct {
	ds       storage.TagDatastore
	index    search.Index
	engine   *query.Engine[Projection]
	reporter *Reporter

	logger      logger.Logger
	batchSize   int
	listLimit   int
	concurrency int
	queryOpts   []query.EngineOption
}

// NewService returns a Service writing tokens to ds and projections to index.
func NewService(ds storage.TagDatastore, index search.Index, opts ...ServiceOption) (*Service, error) {
	s := &Service{
		ds:          ds,
		index:       index,
		logger:      logger.NewNoopLogger(),
		batchSize:   DefaultBatchSize,
		listLimit:   storage.DefaultListLimit,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", s.batchSize)
	}
	if s.concurrency <= 0 {
		return nil, fmt.Errorf("concurrency must be positive, got %d", s.concurrency)
	}

	engineOpts := append([]query.EngineOption{
		query.WithSort(DefaultSort()),
		query.WithAnalyzerFields(map[string][]string{"default": {"attributes.*"}}),
		query.WithLogger(s.logger),
	}, s.queryOpts...)
	engine, err := query.New[Projection](index, engineOpts...)
	if err != nil {
		return nil, err
	}
	s.engine = engine
	s.reporter = NewReporter(s.logger)
	return s, nil
}

// Close releases the resources of the query engine.
func (s *Service) Close() {
	s.engine.Close()
}

// Engine returns the query engine over the tag index.
func (s *Service) Engine() *query.Engine[Projection] {
	return s.engine
}

// Insert creates the tag described by spec, or replaces the name, relationships and
// attributes of the existing tag spec.ID. The relational changes are committed in
// one transaction before the projection is written. A failed projection write
// after the commit is returned but not rolled back.
func (s *Service) Insert(ctx context.Context, spec Spec) (*Row, error) {
	ctx, span := tracer.Start(ctx, "tag.Insert")
	defer span.End()

	want := Projection{
		CategoryIDs:      normalizeIDs(spec.CategoryIDs),
		SynonymIDs:       normalizeIDs(spec.SynonymIDs),
		RepresentativeID: spec.RepresentativeID,
		Attributes:       make(map[int64]string, len(spec.Attributes)),
	}
	for k, v := range spec.Attributes {
		want.Attributes[k] = v
	}

	var version *search.Version
	if spec.ID != nil {
		want.ID = *spec.ID
		if want.references(want.ID) {
			return nil, fmt.Errorf("tag %d: %w", want.ID, ErrSelfReference)
		}
		var err error
		if _, version, err = s.readProjection(ctx, want.ID); err != nil {
			return nil, err
		}
	}

	err := storage.RunInTx(ctx, s.ds, func(tx storage.TagTx) error {
		tok, err := s.upsertToken(ctx, tx, spec)
		if err != nil {
			return err
		}
		want.ID = tok.ID

		for _, kind := range []storage.EdgeKind{storage.EdgeCategory, storage.EdgeSynonym} {
			if err := s.reconcileEdges(ctx, tx, kind, spec.ID != nil, &want); err != nil {
				return err
			}
		}
		if err := reconcileRepresentative(ctx, tx, want.ID, want.RepresentativeID); err != nil {
			return err
		}
		for _, attrID := range sortedAttributeIDs(want.Attributes) {
			if _, err := tx.ReadAttribute(ctx, attrID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int64("tag_id", want.ID))

	if err := s.writeProjection(ctx, &want, version); err != nil {
		return nil, err
	}
	return &Row{Projection: want, Name: spec.Name}, nil
}

func (s *Service) upsertToken(ctx context.Context, tx storage.TagTx, spec Spec) (*storage.Token, error) {
	if spec.ID == nil {
		return tx.CreateToken(ctx, spec.Name)
	}
	tok, err := tx.ReadToken(ctx, *spec.ID)
	if err != nil {
		return nil, err
	}
	if tok.Name != spec.Name {
		if err := tx.RenameToken(ctx, tok.ID, spec.Name); err != nil {
			return nil, err
		}
		tok.Name = spec.Name
	}
	return tok, nil
}

// reconcileEdges applies the difference between the wanted links of kind and the
// edge rows of the tag. The stored projection may lag behind the rows after a
// failed index write, so it is never the baseline.
func (s *Service) reconcileEdges(ctx context.Context, tx storage.TagTx, kind storage.EdgeKind, existing bool, want *Projection) error {
	wanted := want.CategoryIDs
	if kind == storage.EdgeSynonym {
		wanted = want.SynonymIDs
	}
	var baseline []int64
	if existing {
		edges, err := tx.ReadEdges(ctx, kind, want.ID)
		if err != nil {
			return err
		}
		baseline = linkedIDs(edges)
	}

	add, del := delta(wanted, normalizeIDs(baseline))
	for _, id := range add {
		if _, err := tx.ReadToken(ctx, id); err != nil {
			return err
		}
		_, err := tx.ReadEdge(ctx, kind, want.ID, id)
		if err == nil {
			continue
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		if _, err := tx.WriteEdge(ctx, kind, want.ID, id); err != nil {
			return err
		}
	}
	for _, id := range del {
		if err := tx.DeleteEdge(ctx, kind, want.ID, id); err != nil {
			return err
		}
	}
	return nil
}

func reconcileRepresentative(ctx context.Context, tx storage.TagTx, tagID int64, rep *int64) error {
	edges, err := tx.ReadEdges(ctx, storage.EdgeRepresentative, tagID)
	if err != nil {
		return err
	}
	if rep == nil {
		if len(edges) == 0 {
			return nil
		}
		return tx.DeleteEdges(ctx, storage.EdgeRepresentative, tagID)
	}
	if _, err := tx.ReadToken(ctx, *rep); err != nil {
		return err
	}
	if len(edges) == 0 {
		_, err := tx.WriteEdge(ctx, storage.EdgeRepresentative, tagID, *rep)
		return err
	}
	return tx.UpdateEdgeLink(ctx, storage.EdgeRepresentative, edges[0].ID, *rep)
}

// readProjection returns the stored projection of tag id with its revision, or
// nils when there is none.
func (s *Service) readProjection(ctx context.Context, id int64) (*Projection, *search.Version, error) {
	doc, err := s.index.Get(ctx, docID(id))
	if err != nil {
		if query.IsNotFound(err) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	if len(doc.Source) == 0 || string(doc.Source) == "null" {
		return nil, nil, nil
	}
	var p Projection
	if err := json.Unmarshal(doc.Source, &p); err != nil {
		return nil, nil, fmt.Errorf("decode projection of tag %d: %w", id, err)
	}
	p.ID = id
	p.normalize()
	v := doc.Version
	return &p, &v, nil
}

// writeProjection stores p on the condition that the stored revision is still
// version, or that no projection exists when version is nil.
func (s *Service) writeProjection(ctx context.Context, p *Projection, version *search.Version) error {
	p.normalize()
	src, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode projection of tag %d: %w", p.ID, err)
	}
	opt := search.WithCreateOnly()
	if version != nil {
		opt = search.WithIfVersion(*version)
	}
	if _, err := s.index.Index(ctx, p.docID(), src, opt); err != nil {
		if errors.Is(err, search.ErrVersionConflict) {
			s.reporter.Report(ctx, ReasonWriteConflict, p.ID, zap.Error(err))
			return fmt.Errorf("tag %d: %w", p.ID, ErrWriteConflict)
		}
		s.reporter.Report(ctx, ReasonProjectionWriteFailed, p.ID, zap.Error(err))
		return fmt.Errorf("tag %d: %w: %w", p.ID, ErrProjectionWrite, err)
	}
	return nil
}

// GetRow returns the projection of tag id joined with its token name.
func (s *Service) GetRow(ctx context.Context, id int64) (*Row, error) {
	ctx, span := tracer.Start(ctx, "tag.GetRow", trace.WithAttributes(attribute.Int64("tag_id", id)))
	defer span.End()

	proj, _, err := s.readProjection(ctx, id)
	if err != nil {
		return nil, err
	}
	tok, err := s.ds.ReadToken(ctx, id)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		if proj != nil {
			s.reporter.Report(ctx, ReasonMissingToken, id)
		}
		return nil, NotFoundError(id)
	case err != nil:
		return nil, err
	}
	if proj == nil {
		s.reporter.Report(ctx, ReasonMissingProjection, id)
		return nil, NotFoundError(id)
	}
	return &Row{Projection: *proj, Name: tok.Name}, nil
}

// Search pages through tag projections matching keywords.
func (s *Service) Search(ctx context.Context, page int, keywords string, opts ...query.MatchOption) (*query.Page[Projection], error) {
	ctx, span := tracer.Start(ctx, "tag.Search", trace.WithAttributes(attribute.Int("page", page)))
	defer span.End()

	return s.engine.Match(ctx, page, keywords, opts...)
}

// Suggest returns tokens whose name starts with prefix. A non-nil categoryID limits
// the result to tags listing that category.
func (s *Service) Suggest(ctx context.Context, prefix string, categoryID *int64, opts storage.ListOptions) ([]*storage.Token, error) {
	if opts.Limit <= 0 {
		opts.Limit = s.listLimit
	}
	if categoryID != nil {
		return s.ds.ReadTokensWithPrefixInCategory(ctx, prefix, *categoryID, opts)
	}
	return s.ds.ReadTokensWithPrefix(ctx, prefix, opts)
}

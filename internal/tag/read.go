package tag

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zetsubou/tagstore/pkg/storage"
)

// GetInterpretation returns tag id with every reference resolved to a name. If the
// two stores disagree about the tag, or any reference cannot be resolved, the
// inconsistency is reported and a not found error is returned instead of a
// partial result.
func (s *Service) GetInterpretation(ctx context.Context, id int64) (*Interpretation, error) {
	ctx, span := tracer.Start(ctx, "tag.GetInterpretation", trace.WithAttributes(attribute.Int64("tag_id", id)))
	defer span.End()

	proj, _, err := s.readProjection(ctx, id)
	if err != nil {
		return nil, err
	}
	if proj == nil {
		_, err := s.ds.ReadToken(ctx, id)
		switch {
		case err == nil:
			s.reporter.Report(ctx, ReasonMissingProjection, id)
		case !errors.Is(err, storage.ErrNotFound):
			return nil, err
		}
		return nil, NotFoundError(id)
	}
	return s.interpret(ctx, proj)
}

func (s *Service) interpret(ctx context.Context, proj *Projection) (*Interpretation, error) {
	ids := make([]int64, 0, 2+len(proj.CategoryIDs)+len(proj.SynonymIDs))
	ids = append(ids, proj.ID)
	ids = append(ids, proj.CategoryIDs...)
	ids = append(ids, proj.SynonymIDs...)
	if proj.RepresentativeID != nil {
		ids = append(ids, *proj.RepresentativeID)
	}
	tokens, err := s.ds.ReadTokens(ctx, storage.UniqueIDs(ids))
	if err != nil {
		return nil, err
	}
	self, ok := tokens[proj.ID]
	if !ok {
		s.reporter.Report(ctx, ReasonMissingToken, proj.ID)
		return nil, NotFoundError(proj.ID)
	}

	attrIDs := sortedAttributeIDs(proj.Attributes)
	attrs, err := s.ds.ReadAttributes(ctx, attrIDs)
	if err != nil {
		return nil, err
	}

	out := &Interpretation{
		ID:         self.ID,
		Name:       self.Name,
		Categories: make([]TokenRef, 0, len(proj.CategoryIDs)),
		Synonyms:   make([]TokenRef, 0, len(proj.SynonymIDs)),
		Attributes: make([]AttributeValue, 0, len(attrIDs)),
	}
	unresolved := func(entity string, ref int64) error {
		s.reporter.Report(ctx, ReasonUnresolvedReference, proj.ID,
			zap.String("entity", entity), zap.Int64("ref_id", ref))
		return NotFoundError(proj.ID)
	}
	for _, ref := range proj.CategoryIDs {
		t, ok := tokens[ref]
		if !ok {
			return nil, unresolved("category", ref)
		}
		out.Categories = append(out.Categories, TokenRef{ID: t.ID, Name: t.Name})
	}
	for _, ref := range proj.SynonymIDs {
		t, ok := tokens[ref]
		if !ok {
			return nil, unresolved("synonym", ref)
		}
		out.Synonyms = append(out.Synonyms, TokenRef{ID: t.ID, Name: t.Name})
	}
	if proj.RepresentativeID != nil {
		t, ok := tokens[*proj.RepresentativeID]
		if !ok {
			return nil, unresolved("representative", *proj.RepresentativeID)
		}
		out.Representative = &TokenRef{ID: t.ID, Name: t.Name}
	}
	for _, ref := range attrIDs {
		a, ok := attrs[ref]
		if !ok {
			return nil, unresolved("attribute", ref)
		}
		out.Attributes = append(out.Attributes, AttributeValue{ID: a.ID, Name: a.Name, Value: proj.Attributes[ref]})
	}
	return out, nil
}

// GetInterpretationsByName returns the interpretations of the tokens named name in
// id order. A token whose interpretation fails closed is returned in its minimal
// form with only id and name set.
func (s *Service) GetInterpretationsByName(ctx context.Context, name string, opts storage.ListOptions) ([]*Interpretation, error) {
	ctx, span := tracer.Start(ctx, "tag.GetInterpretationsByName")
	defer span.End()

	if opts.Limit <= 0 {
		opts.Limit = s.listLimit
	}
	tokens, err := s.ds.ReadTokensByName(ctx, name, opts)
	if err != nil {
		return nil, err
	}

	out := make([]*Interpretation, len(tokens))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, tok := range tokens {
		g.Go(func() error {
			in, err := s.GetInterpretation(gctx, tok.ID)
			switch {
			case errors.Is(err, storage.ErrNotFound):
				out[i] = minimalInterpretation(tok)
			case err != nil:
				return fmt.Errorf("interpret tag %d: %w", tok.ID, err)
			default:
				out[i] = in
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

package tag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/zetsubou/tagstore/internal/query"
	"github.com/zetsubou/tagstore/pkg/search"
	"github.com/zetsubou/tagstore/pkg/storage"
)

const flushMaxElapsedTime = 10 * time.Second

// Delete removes token id with its edges, scrubs every other projection of links
// to it and deletes its own projection. Deleting an absent tag succeeds.
func (s *Service) Delete(ctx context.Context, id int64) error {
	ctx, span := tracer.Start(ctx, "tag.Delete", trace.WithAttributes(attribute.Int64("tag_id", id)))
	defer span.End()

	err := storage.RunInTx(ctx, s.ds, func(tx storage.TagTx) error {
		return tx.DeleteToken(ctx, id)
	})
	if err != nil {
		return err
	}
	if _, err := s.scrubReferences(ctx, id); err != nil {
		return err
	}
	return s.deleteProjection(ctx, id)
}

func (s *Service) deleteProjection(ctx context.Context, id int64) error {
	if err := s.index.Delete(ctx, docID(id)); err != nil && !query.IsNotFound(err) {
		return fmt.Errorf("delete projection of tag %d: %w", id, err)
	}
	return nil
}

// referencesQuery matches the projections linking to token id by any relation.
func referencesQuery(id int64) search.Query {
	term := func(field string) map[string]any {
		return map[string]any{"term": map[string]any{field: map[string]any{"value": id}}}
	}
	return search.Query{"bool": map[string]any{
		"should": []any{
			term("category_ids"),
			term("synonym_ids"),
			term("representative_id"),
		},
		"minimum_should_match": 1,
	}}
}

// scrubReferences rewrites every projection linking to token id without the link.
// Rewrites are flushed in bulk whenever batchSize of them are buffered, so batches
// flushed before a failure stay applied. It returns the number of rewritten
// projections.
func (s *Service) scrubReferences(ctx context.Context, id int64) (int, error) {
	batch := make([]search.BulkAction, 0, s.batchSize)
	scrubbed := 0
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.bulk(ctx, batch); err != nil {
			return fmt.Errorf("scrub references to tag %d: %w", id, err)
		}
		scrubbed += len(batch)
		batch = batch[:0]
		return nil
	}

	for hit, err := range s.index.Scan(ctx, referencesQuery(id), s.batchSize) {
		if err != nil {
			return scrubbed, fmt.Errorf("scan references to tag %d: %w", id, err)
		}
		var p Projection
		if err := json.Unmarshal(hit.Source, &p); err != nil {
			return scrubbed, fmt.Errorf("decode projection %s: %w", hit.ID, err)
		}
		if p.ID == id || !p.references(id) {
			continue
		}
		next := p.withoutReference(id)
		next.normalize()
		src, err := json.Marshal(next)
		if err != nil {
			return scrubbed, fmt.Errorf("encode projection %s: %w", hit.ID, err)
		}
		batch = append(batch, search.BulkAction{Op: search.BulkIndex, ID: hit.ID, Source: src})
		if len(batch) >= s.batchSize {
			if err := flush(); err != nil {
				return scrubbed, err
			}
		}
	}
	if err := flush(); err != nil {
		return scrubbed, err
	}
	s.logger.DebugWithContext(ctx, "scrubbed references", zap.Int64("tag_id", id), zap.Int("projections", scrubbed))
	return scrubbed, nil
}

// bulk retries transport failures of one bulk request. Per-action failures are
// not retried.
func (s *Service) bulk(ctx context.Context, actions []search.BulkAction) error {
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = flushMaxElapsedTime
	return backoff.Retry(func() error {
		err := s.index.Bulk(ctx, actions)
		var bulkErr *search.BulkError
		if errors.As(err, &bulkErr) || errors.Is(err, search.ErrMalformedQuery) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(policy, ctx))
}

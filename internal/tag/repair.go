package tag

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/zetsubou/tagstore/pkg/id"
	"github.com/zetsubou/tagstore/pkg/storage"
)

// RepairOutcome is what Repair did to one tag.
type RepairOutcome int

const (
	RepairUnchanged RepairOutcome = iota
	RepairRebuilt
	RepairRemoved
)

func (o RepairOutcome) String() string {
	switch o {
	case RepairUnchanged:
		return "unchanged"
	case RepairRebuilt:
		return "rebuilt"
	case RepairRemoved:
		return "removed"
	default:
		return fmt.Sprintf("RepairOutcome(%d)", int(o))
	}
}

// Repair makes the projection of tag id agree with the relational store. The
// projection is rebuilt from the edge rows, keeping the attribute values whose
// definitions still exist. When the token is gone its projection is deleted and
// the links of other projections to it are scrubbed.
func (s *Service) Repair(ctx context.Context, tagID int64) (RepairOutcome, error) {
	ctx, span := tracer.Start(ctx, "tag.Repair", trace.WithAttributes(attribute.Int64("tag_id", tagID)))
	defer span.End()

	proj, version, err := s.readProjection(ctx, tagID)
	if err != nil {
		return RepairUnchanged, err
	}

	if _, err := s.ds.ReadToken(ctx, tagID); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return RepairUnchanged, err
		}
		scrubbed, err := s.scrubReferences(ctx, tagID)
		if err != nil {
			return RepairUnchanged, err
		}
		if proj == nil {
			if scrubbed > 0 {
				return RepairRemoved, nil
			}
			return RepairUnchanged, nil
		}
		s.reporter.Report(ctx, ReasonMissingToken, tagID)
		if err := s.deleteProjection(ctx, tagID); err != nil {
			return RepairUnchanged, err
		}
		return RepairRemoved, nil
	}

	want, err := s.rebuild(ctx, tagID, proj)
	if err != nil {
		return RepairUnchanged, err
	}
	if proj != nil && proj.equal(want) {
		return RepairUnchanged, nil
	}
	if proj == nil {
		s.reporter.Report(ctx, ReasonMissingProjection, tagID)
	}
	if err := s.writeProjection(ctx, want, version); err != nil {
		return RepairUnchanged, err
	}
	return RepairRebuilt, nil
}

// rebuild derives the projection of tagID from its edge rows.
func (s *Service) rebuild(ctx context.Context, tagID int64, prior *Projection) (*Projection, error) {
	out := &Projection{ID: tagID, Attributes: map[int64]string{}}
	for _, kind := range storage.EdgeKinds {
		edges, err := s.ds.ReadEdges(ctx, kind, tagID)
		if err != nil {
			return nil, err
		}
		switch kind {
		case storage.EdgeCategory:
			out.CategoryIDs = linkedIDs(edges)
		case storage.EdgeSynonym:
			out.SynonymIDs = linkedIDs(edges)
		case storage.EdgeRepresentative:
			if len(edges) > 0 {
				rep := edges[0].LinkedID
				out.RepresentativeID = &rep
			}
		}
	}

	if prior != nil && len(prior.Attributes) > 0 {
		ids := sortedAttributeIDs(prior.Attributes)
		defs, err := s.ds.ReadAttributes(ctx, ids)
		if err != nil {
			return nil, err
		}
		for _, attrID := range ids {
			if _, ok := defs[attrID]; !ok {
				s.reporter.Report(ctx, ReasonUnresolvedReference, tagID,
					zap.String("entity", "attribute"), zap.Int64("ref_id", attrID))
				continue
			}
			out.Attributes[attrID] = prior.Attributes[attrID]
		}
	}
	out.normalize()
	return out, nil
}

// RepairSummary counts the outcomes of one RepairAll run.
type RepairSummary struct {
	RunID     string `json:"run_id"`
	Checked   int64  `json:"checked"`
	Rebuilt   int64  `json:"rebuilt"`
	Removed   int64  `json:"removed"`
	Conflicts int64  `json:"conflicts"`
}

// RepairAll repairs every token in id order, then every projection whose token
// was not visited. Write conflicts are counted and skipped, any other failure
// stops the run.
func (s *Service) RepairAll(ctx context.Context) (*RepairSummary, error) {
	runID, err := id.NewRunID()
	if err != nil {
		return nil, fmt.Errorf("generate run id: %w", err)
	}
	ctx, span := tracer.Start(ctx, "tag.RepairAll", trace.WithAttributes(attribute.String("run_id", runID)))
	defer span.End()

	start := time.Now()
	s.logger.InfoWithContext(ctx, "repair started", zap.String("run_id", runID))

	var checked, rebuilt, removed, conflicts atomic.Int64
	p := pool.New().
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError().
		WithMaxGoroutines(s.concurrency)
	repair := func(tagID int64) {
		p.Go(func(ctx context.Context) error {
			outcome, err := s.Repair(ctx, tagID)
			switch {
			case errors.Is(err, ErrWriteConflict):
				conflicts.Add(1)
				return nil
			case err != nil:
				return fmt.Errorf("repair tag %d: %w", tagID, err)
			}
			checked.Add(1)
			switch outcome {
			case RepairRebuilt:
				rebuilt.Add(1)
			case RepairRemoved:
				removed.Add(1)
			}
			return nil
		})
	}

	walkErr := s.walk(ctx, repair)
	if err := p.Wait(); err != nil {
		return nil, err
	}
	if walkErr != nil {
		return nil, walkErr
	}

	summary := &RepairSummary{
		RunID:     runID,
		Checked:   checked.Load(),
		Rebuilt:   rebuilt.Load(),
		Removed:   removed.Load(),
		Conflicts: conflicts.Load(),
	}
	s.logger.InfoWithContext(ctx, "repair finished",
		zap.String("run_id", runID),
		zap.Int64("checked", summary.Checked),
		zap.Int64("rebuilt", summary.Rebuilt),
		zap.Int64("removed", summary.Removed),
		zap.Int64("conflicts", summary.Conflicts),
		zap.Duration("elapsed", time.Since(start)),
	)
	return summary, nil
}

// walk submits every token id, then the ids of projections without a visited
// token.
func (s *Service) walk(ctx context.Context, submit func(int64)) error {
	seen := make(map[int64]struct{})
	opts := storage.ListOptions{Limit: s.listLimit}
	for {
		tokens, err := s.ds.ListTokens(ctx, opts)
		if err != nil {
			return err
		}
		for _, t := range tokens {
			seen[t.ID] = struct{}{}
			submit(t.ID)
		}
		if len(tokens) < opts.Limit {
			break
		}
		opts.Skip += len(tokens)
	}

	for proj, err := range s.engine.IterateAll(ctx) {
		if err != nil {
			return err
		}
		if _, ok := seen[proj.ID]; ok {
			continue
		}
		seen[proj.ID] = struct{}{}
		submit(proj.ID)
	}
	return nil
}

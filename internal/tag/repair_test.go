package tag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zetsubou/tagstore/pkg/id"
	"github.com/zetsubou/tagstore/pkg/logger"
)

func TestRepair(t *testing.T) {
	ctx := context.Background()

	t.Run("unchanged", func(t *testing.T) {
		f := newFixture(t)
		a := f.insert(t, Spec{Name: "a"})
		tag := f.insert(t, Spec{Name: "tag", CategoryIDs: []int64{a.ID}})

		outcome, err := f.svc.Repair(ctx, tag.ID)
		require.NoError(t, err)
		require.Equal(t, RepairUnchanged, outcome)
	})

	t.Run("stale_projection", func(t *testing.T) {
		f := newFixture(t)
		a := f.insert(t, Spec{Name: "a"})
		b := f.insert(t, Spec{Name: "b"})
		attr, err := f.ds.CreateAttribute(ctx, "color")
		require.NoError(t, err)
		tag := f.insert(t, Spec{Name: "tag", CategoryIDs: []int64{a.ID}, RepresentativeID: &b.ID})
		f.putProjection(t, Projection{
			ID:          tag.ID,
			CategoryIDs: []int64{b.ID},
			Attributes:  map[int64]string{attr.ID: "red", 999: "gone"},
		})

		outcome, err := f.svc.Repair(ctx, tag.ID)
		require.NoError(t, err)
		require.Equal(t, RepairRebuilt, outcome)

		p := f.projection(t, tag.ID)
		require.Equal(t, []int64{a.ID}, p.CategoryIDs)
		require.Equal(t, b.ID, *p.RepresentativeID)
		require.Equal(t, map[int64]string{attr.ID: "red"}, p.Attributes)

		outcome, err = f.svc.Repair(ctx, tag.ID)
		require.NoError(t, err)
		require.Equal(t, RepairUnchanged, outcome)
	})

	t.Run("missing_projection", func(t *testing.T) {
		l, logs := logger.NewObserverLogger("warn")
		f := newFixture(t, WithLogger(l))
		a := f.insert(t, Spec{Name: "a"})
		tag := f.insert(t, Spec{Name: "tag", SynonymIDs: []int64{a.ID}})
		require.NoError(t, f.index.Delete(ctx, docID(tag.ID)))

		outcome, err := f.svc.Repair(ctx, tag.ID)
		require.NoError(t, err)
		require.Equal(t, RepairRebuilt, outcome)
		require.Equal(t, []int64{a.ID}, f.projection(t, tag.ID).SynonymIDs)
		require.Equal(t, []string{string(ReasonMissingProjection)}, reasons(logs))

		in, err := f.svc.GetInterpretation(ctx, tag.ID)
		require.NoError(t, err)
		require.Equal(t, []TokenRef{{ID: a.ID, Name: "a"}}, in.Synonyms)
	})

	t.Run("missing_token", func(t *testing.T) {
		f := newFixture(t)
		a := f.insert(t, Spec{Name: "a"})
		f.putProjection(t, Projection{ID: 50})
		f.putProjection(t, Projection{ID: 51, CategoryIDs: []int64{a.ID, 50}})

		outcome, err := f.svc.Repair(ctx, 50)
		require.NoError(t, err)
		require.Equal(t, RepairRemoved, outcome)
		require.Nil(t, f.projection(t, 50))
		require.Equal(t, []int64{a.ID}, f.projection(t, 51).CategoryIDs)
	})

	t.Run("absent", func(t *testing.T) {
		f := newFixture(t)
		outcome, err := f.svc.Repair(ctx, 50)
		require.NoError(t, err)
		require.Equal(t, RepairUnchanged, outcome)
	})
}

func TestRepairAll(t *testing.T) {
	ctx := context.Background()
	verifyNoLeaks(t)
	f := newFixture(t, WithConcurrency(3), WithListLimit(2))

	a := f.insert(t, Spec{Name: "a"})
	b := f.insert(t, Spec{Name: "b", CategoryIDs: []int64{a.ID}})
	f.insert(t, Spec{Name: "c", SynonymIDs: []int64{a.ID}})
	bare := f.token(t, "bare")
	f.putProjection(t, Projection{ID: b.ID})
	f.putProjection(t, Projection{ID: 90, CategoryIDs: []int64{a.ID}})

	summary, err := f.svc.RepairAll(ctx)
	require.NoError(t, err)
	require.True(t, id.IsValid(summary.RunID))
	require.Equal(t, &RepairSummary{
		RunID:   summary.RunID,
		Checked: 5,
		Rebuilt: 2,
		Removed: 1,
	}, summary)

	require.Equal(t, []int64{a.ID}, f.projection(t, b.ID).CategoryIDs)
	require.NotNil(t, f.projection(t, bare))
	require.Nil(t, f.projection(t, 90))

	summary, err = f.svc.RepairAll(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(4), summary.Checked)
	require.Zero(t, summary.Rebuilt)
	require.Zero(t, summary.Removed)
}

func TestRepairOutcomeString(t *testing.T) {
	require.Equal(t, "rebuilt", RepairRebuilt.String())
	require.Equal(t, "RepairOutcome(9)", RepairOutcome(9).String())
}

func TestRepairAllStopsOnCanceledContext(t *testing.T) {
	f := newFixture(t)
	for range 3 {
		f.insert(t, Spec{Name: "t"})
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.RepairAll(ctx)
	require.ErrorIs(t, err, context.Canceled)

	n, err := f.ds.CountTokens(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(3), n)
}

package test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zetsubou/tagstore/pkg/storage"
)

func EdgesTest(t *testing.T, ds storage.TagDatastore) {
	ctx := context.Background()
	toks := createTokens(t, ds, "tag", "cat-a", "cat-b", "syn")
	tag, catA, catB, syn := toks[0], toks[1], toks[2], toks[3]

	err := storage.RunInTx(ctx, ds, func(tx storage.TagTx) error {
		if _, err := tx.WriteEdge(ctx, storage.EdgeCategory, tag.ID, catB.ID); err != nil {
			return err
		}
		if _, err := tx.WriteEdge(ctx, storage.EdgeCategory, tag.ID, catA.ID); err != nil {
			return err
		}
		_, err := tx.WriteEdge(ctx, storage.EdgeSynonym, tag.ID, syn.ID)
		return err
	})
	require.NoError(t, err)

	t.Run("edges are read per kind ordered by linked id", func(t *testing.T) {
		cats, err := ds.ReadEdges(ctx, storage.EdgeCategory, tag.ID)
		require.NoError(t, err)
		require.Equal(t, []int64{catA.ID, catB.ID}, linkedIDs(cats))
		for _, e := range cats {
			require.Equal(t, storage.EdgeCategory, e.Kind)
			require.Equal(t, tag.ID, e.TokenID)
			require.NotZero(t, e.ID)
		}

		syns, err := ds.ReadEdges(ctx, storage.EdgeSynonym, tag.ID)
		require.NoError(t, err)
		require.Equal(t, []int64{syn.ID}, linkedIDs(syns))

		none, err := ds.ReadEdges(ctx, storage.EdgeCategory, catA.ID)
		require.NoError(t, err)
		require.Empty(t, none)
	})

	t.Run("duplicate edge collides", func(t *testing.T) {
		err := storage.RunInTx(ctx, ds, func(tx storage.TagTx) error {
			_, err := tx.WriteEdge(ctx, storage.EdgeCategory, tag.ID, catA.ID)
			return err
		})
		require.ErrorIs(t, err, storage.ErrCollision)
	})

	t.Run("self edge is invalid", func(t *testing.T) {
		err := storage.RunInTx(ctx, ds, func(tx storage.TagTx) error {
			_, err := tx.WriteEdge(ctx, storage.EdgeSynonym, tag.ID, tag.ID)
			return err
		})
		require.ErrorIs(t, err, storage.ErrInvalidEdge)
	})

	t.Run("read single edge", func(t *testing.T) {
		tx, err := ds.BeginTx(ctx)
		require.NoError(t, err)
		defer func() { _ = tx.Rollback() }()

		e, err := tx.ReadEdge(ctx, storage.EdgeCategory, tag.ID, catA.ID)
		require.NoError(t, err)
		require.Equal(t, catA.ID, e.LinkedID)

		_, err = tx.ReadEdge(ctx, storage.EdgeSynonym, tag.ID, catA.ID)
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("delete one and all", func(t *testing.T) {
		err := storage.RunInTx(ctx, ds, func(tx storage.TagTx) error {
			if err := tx.DeleteEdge(ctx, storage.EdgeCategory, tag.ID, catA.ID); err != nil {
				return err
			}
			// deleting an absent edge is not an error
			return tx.DeleteEdge(ctx, storage.EdgeCategory, tag.ID, syn.ID)
		})
		require.NoError(t, err)

		cats, err := ds.ReadEdges(ctx, storage.EdgeCategory, tag.ID)
		require.NoError(t, err)
		require.Equal(t, []int64{catB.ID}, linkedIDs(cats))

		err = storage.RunInTx(ctx, ds, func(tx storage.TagTx) error {
			return tx.DeleteEdges(ctx, storage.EdgeSynonym, tag.ID)
		})
		require.NoError(t, err)

		syns, err := ds.ReadEdges(ctx, storage.EdgeSynonym, tag.ID)
		require.NoError(t, err)
		require.Empty(t, syns)
	})
}

func RepresentativeTest(t *testing.T, ds storage.TagDatastore) {
	ctx := context.Background()
	toks := createTokens(t, ds, "tag", "rep-1", "rep-2")
	tag, rep1, rep2 := toks[0], toks[1], toks[2]

	var edge *storage.Edge
	err := storage.RunInTx(ctx, ds, func(tx storage.TagTx) error {
		var err error
		edge, err = tx.WriteEdge(ctx, storage.EdgeRepresentative, tag.ID, rep1.ID)
		return err
	})
	require.NoError(t, err)

	t.Run("only one representative per tag", func(t *testing.T) {
		err := storage.RunInTx(ctx, ds, func(tx storage.TagTx) error {
			_, err := tx.WriteEdge(ctx, storage.EdgeRepresentative, tag.ID, rep2.ID)
			return err
		})
		require.ErrorIs(t, err, storage.ErrCollision)
	})

	t.Run("update in place", func(t *testing.T) {
		err := storage.RunInTx(ctx, ds, func(tx storage.TagTx) error {
			return tx.UpdateEdgeLink(ctx, storage.EdgeRepresentative, edge.ID, rep2.ID)
		})
		require.NoError(t, err)

		reps, err := ds.ReadEdges(ctx, storage.EdgeRepresentative, tag.ID)
		require.NoError(t, err)
		require.Len(t, reps, 1)
		require.Equal(t, edge.ID, reps[0].ID)
		require.Equal(t, rep2.ID, reps[0].LinkedID)
	})

	t.Run("update missing edge", func(t *testing.T) {
		err := storage.RunInTx(ctx, ds, func(tx storage.TagTx) error {
			return tx.UpdateEdgeLink(ctx, storage.EdgeRepresentative, 99999, rep1.ID)
		})
		require.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func DeleteTokenCascadesTest(t *testing.T, ds storage.TagDatastore) {
	ctx := context.Background()
	toks := createTokens(t, ds, "x", "y", "z")
	x, y, z := toks[0], toks[1], toks[2]

	err := storage.RunInTx(ctx, ds, func(tx storage.TagTx) error {
		for _, e := range []struct {
			kind             storage.EdgeKind
			tokenID, linkedID int64
		}{
			{storage.EdgeCategory, y.ID, x.ID},
			{storage.EdgeCategory, z.ID, x.ID},
			{storage.EdgeSynonym, x.ID, y.ID},
			{storage.EdgeRepresentative, z.ID, y.ID},
			{storage.EdgeRepresentative, y.ID, x.ID},
		} {
			if _, err := tx.WriteEdge(ctx, e.kind, e.tokenID, e.linkedID); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	err = storage.RunInTx(ctx, ds, func(tx storage.TagTx) error {
		return tx.DeleteToken(ctx, x.ID)
	})
	require.NoError(t, err)

	_, err = ds.ReadToken(ctx, x.ID)
	require.ErrorIs(t, err, storage.ErrNotFound)

	for _, tc := range []struct {
		kind    storage.EdgeKind
		tokenID int64
		want    []int64
	}{
		{storage.EdgeCategory, y.ID, []int64{}},
		{storage.EdgeCategory, z.ID, []int64{}},
		{storage.EdgeSynonym, x.ID, []int64{}},
		{storage.EdgeRepresentative, y.ID, []int64{}},
		{storage.EdgeRepresentative, z.ID, []int64{y.ID}},
	} {
		edges, err := ds.ReadEdges(ctx, tc.kind, tc.tokenID)
		require.NoError(t, err)
		require.Equal(t, tc.want, linkedIDs(edges), "%s edges of %d", tc.kind, tc.tokenID)
	}

	t.Run("deleting a missing token is a no-op", func(t *testing.T) {
		err := storage.RunInTx(ctx, ds, func(tx storage.TagTx) error {
			return tx.DeleteToken(ctx, x.ID)
		})
		require.NoError(t, err)
	})
}

func RollbackTest(t *testing.T, ds storage.TagDatastore) {
	ctx := context.Background()
	toks := createTokens(t, ds, "tag", "cat")

	tx, err := ds.BeginTx(ctx)
	require.NoError(t, err)

	created, err := tx.CreateToken(ctx, "discarded")
	require.NoError(t, err)
	_, err = tx.WriteEdge(ctx, storage.EdgeCategory, toks[0].ID, toks[1].ID)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())
	require.NoError(t, tx.Rollback(), "second rollback is a no-op")

	_, err = ds.ReadToken(ctx, created.ID)
	require.ErrorIs(t, err, storage.ErrNotFound)

	edges, err := ds.ReadEdges(ctx, storage.EdgeCategory, toks[0].ID)
	require.NoError(t, err)
	require.Empty(t, edges)

	_, err = tx.CreateToken(ctx, "after close")
	require.Error(t, err)
}

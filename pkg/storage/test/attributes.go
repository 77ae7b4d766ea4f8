package test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zetsubou/tagstore/pkg/storage"
)

func AttributesTest(t *testing.T, ds storage.TagDatastore) {
	ctx := context.Background()

	artist, err := ds.CreateAttribute(ctx, "Artist")
	require.NoError(t, err)
	require.Equal(t, "artist", artist.Name, "names are stored lowercased")

	source, err := ds.CreateAttribute(ctx, "source")
	require.NoError(t, err)

	t.Run("duplicate name collides regardless of case", func(t *testing.T) {
		_, err := ds.CreateAttribute(ctx, "ARTIST")
		require.ErrorIs(t, err, storage.ErrCollision)
	})

	t.Run("name width is enforced", func(t *testing.T) {
		_, err := ds.CreateAttribute(ctx, strings.Repeat("a", storage.MaxAttributeNameLength+1))
		require.ErrorIs(t, err, storage.ErrInvalidName)
	})

	t.Run("read by id, ids and name", func(t *testing.T) {
		got, err := ds.ReadAttribute(ctx, artist.ID)
		require.NoError(t, err)
		require.Equal(t, artist, got)

		_, err = ds.ReadAttribute(ctx, 5555)
		require.EqualError(t, err, "token attribute id: 5555 not found")

		many, err := ds.ReadAttributes(ctx, []int64{artist.ID, 5555, source.ID})
		require.NoError(t, err)
		require.Len(t, many, 2)

		byName, err := ds.ReadAttributeByName(ctx, "Source")
		require.NoError(t, err)
		require.Equal(t, source.ID, byName.ID)

		_, err = ds.ReadAttributeByName(ctx, "missing")
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("read inside a transaction", func(t *testing.T) {
		tx, err := ds.BeginTx(ctx)
		require.NoError(t, err)
		defer func() { _ = tx.Rollback() }()

		got, err := tx.ReadAttribute(ctx, source.ID)
		require.NoError(t, err)
		require.Equal(t, "source", got.Name)
	})

	t.Run("list and count", func(t *testing.T) {
		got, err := ds.ListAttributes(ctx, storage.ListOptions{})
		require.NoError(t, err)
		require.Equal(t, []*storage.Attribute{artist, source}, got)

		got, err = ds.ListAttributes(ctx, storage.ListOptions{Desc: true, Limit: 1})
		require.NoError(t, err)
		require.Equal(t, []*storage.Attribute{source}, got)

		n, err := ds.CountAttributes(ctx)
		require.NoError(t, err)
		require.Equal(t, int64(2), n)
	})

	t.Run("rename", func(t *testing.T) {
		require.NoError(t, ds.RenameAttribute(ctx, source.ID, "Origin"))
		got, err := ds.ReadAttribute(ctx, source.ID)
		require.NoError(t, err)
		require.Equal(t, "origin", got.Name)

		require.ErrorIs(t, ds.RenameAttribute(ctx, source.ID, "artist"), storage.ErrCollision)
		require.ErrorIs(t, ds.RenameAttribute(ctx, 5555, "whatever"), storage.ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, ds.DeleteAttribute(ctx, source.ID))
		_, err := ds.ReadAttribute(ctx, source.ID)
		require.ErrorIs(t, err, storage.ErrNotFound)
		require.ErrorIs(t, ds.DeleteAttribute(ctx, source.ID), storage.ErrNotFound)
	})
}

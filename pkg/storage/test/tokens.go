package test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zetsubou/tagstore/pkg/storage"
)

func TokenLifecycleTest(t *testing.T, ds storage.TagDatastore) {
	ctx := context.Background()

	t.Run("created token gets an id before commit", func(t *testing.T) {
		tx, err := ds.BeginTx(ctx)
		require.NoError(t, err)
		defer func() { _ = tx.Rollback() }()

		tok, err := tx.CreateToken(ctx, "miku")
		require.NoError(t, err)
		require.NotZero(t, tok.ID)

		got, err := tx.ReadToken(ctx, tok.ID)
		require.NoError(t, err)
		require.Equal(t, "miku", got.Name)

		_, err = ds.ReadToken(ctx, tok.ID)
		require.ErrorIs(t, err, storage.ErrNotFound, "uncommitted token must not be visible")

		require.NoError(t, tx.Commit())

		got, err = ds.ReadToken(ctx, tok.ID)
		require.NoError(t, err)
		require.Equal(t, &storage.Token{ID: tok.ID, Name: "miku"}, got)
	})

	t.Run("empty name is rejected", func(t *testing.T) {
		err := storage.RunInTx(ctx, ds, func(tx storage.TagTx) error {
			_, err := tx.CreateToken(ctx, "")
			return err
		})
		require.ErrorIs(t, err, storage.ErrInvalidName)
	})

	t.Run("rename", func(t *testing.T) {
		toks := createTokens(t, ds, "old name")

		err := storage.RunInTx(ctx, ds, func(tx storage.TagTx) error {
			return tx.RenameToken(ctx, toks[0].ID, "new name")
		})
		require.NoError(t, err)

		got, err := ds.ReadToken(ctx, toks[0].ID)
		require.NoError(t, err)
		require.Equal(t, "new name", got.Name)
	})

	t.Run("rename missing token returns its id", func(t *testing.T) {
		err := storage.RunInTx(ctx, ds, func(tx storage.TagTx) error {
			return tx.RenameToken(ctx, 987654, "ghost")
		})
		require.ErrorIs(t, err, storage.ErrNotFound)

		var nf *storage.NotFoundError
		require.ErrorAs(t, err, &nf)
		require.Equal(t, int64(987654), nf.ID)
	})

	t.Run("read missing token", func(t *testing.T) {
		_, err := ds.ReadToken(ctx, 123456)
		require.EqualError(t, err, "token id: 123456 not found")
	})

	t.Run("read many skips missing ids", func(t *testing.T) {
		toks := createTokens(t, ds, "a", "b")

		got, err := ds.ReadTokens(ctx, []int64{toks[0].ID, 424242, toks[1].ID})
		require.NoError(t, err)
		require.Len(t, got, 2)
		require.Equal(t, "a", got[toks[0].ID].Name)
		require.Equal(t, "b", got[toks[1].ID].Name)

		empty, err := ds.ReadTokens(ctx, nil)
		require.NoError(t, err)
		require.Empty(t, empty)
	})
}

func TokenListingTest(t *testing.T, ds storage.TagDatastore) {
	ctx := context.Background()
	toks := createTokens(t, ds, "blue", "Black", "red", "blue", "blank", "bl%ue")

	t.Run("by name is exact and ordered by id", func(t *testing.T) {
		got, err := ds.ReadTokensByName(ctx, "blue", storage.ListOptions{})
		require.NoError(t, err)
		require.Equal(t, []*storage.Token{toks[0], toks[3]}, got)

		got, err = ds.ReadTokensByName(ctx, "blue", storage.ListOptions{Desc: true})
		require.NoError(t, err)
		require.Equal(t, []*storage.Token{toks[3], toks[0]}, got)

		got, err = ds.ReadTokensByName(ctx, "blue", storage.ListOptions{Skip: 1, Limit: 1})
		require.NoError(t, err)
		require.Equal(t, []*storage.Token{toks[3]}, got)

		got, err = ds.ReadTokensByName(ctx, "BLUE", storage.ListOptions{})
		require.NoError(t, err)
		require.Empty(t, got)
	})

	t.Run("prefix is case-insensitive and ordered by name", func(t *testing.T) {
		got, err := ds.ReadTokensWithPrefix(ctx, "bla", storage.ListOptions{})
		require.NoError(t, err)
		require.Equal(t, []string{"Black", "blank"}, tokenNames(got))

		got, err = ds.ReadTokensWithPrefix(ctx, "bla", storage.ListOptions{Desc: true})
		require.NoError(t, err)
		require.Equal(t, []string{"blank", "Black"}, tokenNames(got))
	})

	t.Run("prefix wildcards are literal", func(t *testing.T) {
		got, err := ds.ReadTokensWithPrefix(ctx, "bl%", storage.ListOptions{})
		require.NoError(t, err)
		require.Equal(t, []string{"bl%ue"}, tokenNames(got))
	})

	t.Run("list ordered by id", func(t *testing.T) {
		got, err := ds.ListTokens(ctx, storage.ListOptions{Limit: 2})
		require.NoError(t, err)
		require.Equal(t, toks[:2], got)

		got, err = ds.ListTokens(ctx, storage.ListOptions{Skip: 4})
		require.NoError(t, err)
		require.Equal(t, toks[4:], got)

		got, err = ds.ListTokens(ctx, storage.ListOptions{Skip: 10})
		require.NoError(t, err)
		require.Empty(t, got)

		n, err := ds.CountTokens(ctx)
		require.NoError(t, err)
		require.Equal(t, int64(len(toks)), n)
	})

	t.Run("prefix within category", func(t *testing.T) {
		color := createTokens(t, ds, "color")[0]
		err := storage.RunInTx(ctx, ds, func(tx storage.TagTx) error {
			for _, tok := range []*storage.Token{toks[0], toks[1], toks[2]} {
				if _, err := tx.WriteEdge(ctx, storage.EdgeCategory, tok.ID, color.ID); err != nil {
					return err
				}
			}
			return nil
		})
		require.NoError(t, err)

		got, err := ds.ReadTokensWithPrefixInCategory(ctx, "b", color.ID, storage.ListOptions{})
		require.NoError(t, err)
		require.Equal(t, []string{"Black", "blue"}, tokenNames(got))
	})
}

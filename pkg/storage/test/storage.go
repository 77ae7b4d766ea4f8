// Package test holds the behavioural suite every [storage.TagDatastore]
// implementation must pass.
package test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zetsubou/tagstore/pkg/storage"
)

// DatastoreConstructor returns a fresh, empty datastore for a single test.
type DatastoreConstructor func(t *testing.T) storage.TagDatastore

// RunAllTests runs all datastore tests against datastores built by newDS.
func RunAllTests(t *testing.T, newDS DatastoreConstructor) {
	t.Run("TestTokenLifecycle", func(t *testing.T) { TokenLifecycleTest(t, newDS(t)) })
	t.Run("TestTokenListing", func(t *testing.T) { TokenListingTest(t, newDS(t)) })
	t.Run("TestEdges", func(t *testing.T) { EdgesTest(t, newDS(t)) })
	t.Run("TestRepresentative", func(t *testing.T) { RepresentativeTest(t, newDS(t)) })
	t.Run("TestDeleteTokenCascades", func(t *testing.T) { DeleteTokenCascadesTest(t, newDS(t)) })
	t.Run("TestRollback", func(t *testing.T) { RollbackTest(t, newDS(t)) })
	t.Run("TestAttributes", func(t *testing.T) { AttributesTest(t, newDS(t)) })
	t.Run("TestReadiness", func(t *testing.T) { ReadinessTest(t, newDS(t)) })
}

// createTokens commits one token per name and returns them in order.
func createTokens(t *testing.T, ds storage.TagDatastore, names ...string) []*storage.Token {
	t.Helper()

	var out []*storage.Token
	err := storage.RunInTx(context.Background(), ds, func(tx storage.TagTx) error {
		for _, name := range names {
			tok, err := tx.CreateToken(context.Background(), name)
			if err != nil {
				return err
			}
			out = append(out, tok)
		}
		return nil
	})
	require.NoError(t, err)
	return out
}

func linkedIDs(edges []*storage.Edge) []int64 {
	out := make([]int64, 0, len(edges))
	for _, e := range edges {
		out = append(out, e.LinkedID)
	}
	return out
}

func tokenNames(tokens []*storage.Token) []string {
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		out = append(out, tok.Name)
	}
	return out
}

func ReadinessTest(t *testing.T, ds storage.TagDatastore) {
	status, err := ds.IsReady(context.Background())
	require.NoError(t, err)
	require.True(t, status.IsReady, status.Message)
}

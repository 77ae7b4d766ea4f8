package tag

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/zetsubou/tagstore/pkg/search"
	"github.com/zetsubou/tagstore/pkg/search/mocks"
	"github.com/zetsubou/tagstore/pkg/storage"
)

func TestDeleteCascades(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	x := f.insert(t, Spec{Name: "x"})
	other := f.insert(t, Spec{Name: "other"})
	y := f.insert(t, Spec{Name: "y", CategoryIDs: []int64{x.ID, other.ID}, SynonymIDs: []int64{x.ID}})
	z := f.insert(t, Spec{Name: "z", CategoryIDs: []int64{x.ID}, RepresentativeID: &x.ID})
	untouched := f.insert(t, Spec{Name: "w", CategoryIDs: []int64{other.ID}})
	before := f.projection(t, untouched.ID)

	require.NoError(t, f.svc.Delete(ctx, x.ID))

	yp := f.projection(t, y.ID)
	require.Equal(t, []int64{other.ID}, yp.CategoryIDs)
	require.Empty(t, yp.SynonymIDs)

	zp := f.projection(t, z.ID)
	require.Empty(t, zp.CategoryIDs)
	require.Nil(t, zp.RepresentativeID)
	require.Equal(t, before, f.projection(t, untouched.ID))

	require.Nil(t, f.projection(t, x.ID))
	_, err := f.ds.ReadToken(ctx, x.ID)
	require.ErrorIs(t, err, storage.ErrNotFound)
	require.Equal(t, []int64{other.ID}, linkedIDs(f.edges(t, storage.EdgeCategory, y.ID)))

	in, err := f.svc.GetInterpretation(ctx, y.ID)
	require.NoError(t, err)
	require.Equal(t, []TokenRef{{ID: other.ID, Name: "other"}}, in.Categories)
}

func TestDeleteFlushesInBatches(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, WithBatchSize(2))

	x := f.insert(t, Spec{Name: "x"})
	for range 5 {
		f.insert(t, Spec{Name: "ref", CategoryIDs: []int64{x.ID}})
	}

	require.NoError(t, f.svc.Delete(ctx, x.ID))
	// Two full batches and the remainder.
	require.Equal(t, int32(3), f.index.bulks.Load())

	n, err := f.svc.engine.Count(ctx, referencesQuery(x.ID))
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestDeleteAbsent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.svc.Delete(ctx, 77))

	id := f.token(t, "bare")
	require.NoError(t, f.svc.Delete(ctx, id))
	_, err := f.ds.ReadToken(ctx, id)
	require.ErrorIs(t, err, storage.ErrNotFound)
	require.Zero(t, f.index.bulks.Load())
}

func TestDeleteBulkFailure(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	idx := mocks.NewMockIndex(ctrl)
	svc, ds, _ := newMockService(t, idx)
	id := (&fixture{ds: ds}).token(t, "x")

	hits := func(yield func(*search.Hit, error) bool) {
		for _, h := range []*search.Hit{
			{ID: "2", Source: json.RawMessage(`{"id":2,"category_ids":[1],"synonym_ids":[],"attributes":{}}`)},
			{ID: "3", Source: json.RawMessage(`{"id":3,"category_ids":[],"synonym_ids":[1],"attributes":{}}`)},
		} {
			if !yield(h, nil) {
				return
			}
		}
	}
	idx.EXPECT().Scan(gomock.Any(), referencesQuery(id), DefaultBatchSize).Return(hits)
	failure := &search.BulkError{Failures: []search.BulkFailure{{Op: search.BulkIndex, ID: "3", Status: 400, Reason: "mapper_parsing_exception"}}}
	idx.EXPECT().Bulk(gomock.Any(), gomock.Len(2)).Return(failure).Times(1)

	err := svc.Delete(ctx, id)
	var bulkErr *search.BulkError
	require.ErrorAs(t, err, &bulkErr)
	require.Len(t, bulkErr.Failures, 1)

	// The token delete committed before the scan started.
	_, err = ds.ReadToken(ctx, id)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeleteRetriesTransientBulkFailures(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	idx := mocks.NewMockIndex(ctrl)
	svc, ds, _ := newMockService(t, idx)
	id := (&fixture{ds: ds}).token(t, "x")

	hits := func(yield func(*search.Hit, error) bool) {
		yield(&search.Hit{ID: "2", Source: json.RawMessage(`{"id":2,"category_ids":[1],"synonym_ids":[],"attributes":{}}`)}, nil)
	}
	idx.EXPECT().Scan(gomock.Any(), gomock.Any(), gomock.Any()).Return(hits)
	gomock.InOrder(
		idx.EXPECT().Bulk(gomock.Any(), gomock.Any()).Return(errors.New("connection reset")),
		idx.EXPECT().Bulk(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, actions []search.BulkAction) error {
			require.Len(t, actions, 1)
			var p Projection
			require.NoError(t, json.Unmarshal(actions[0].Source, &p))
			require.Empty(t, p.CategoryIDs)
			return nil
		}),
	)
	idx.EXPECT().Delete(gomock.Any(), docID(id)).Return(&search.DocumentNotFoundError{Index: "tags", ID: docID(id)})

	require.NoError(t, svc.Delete(ctx, id))
}

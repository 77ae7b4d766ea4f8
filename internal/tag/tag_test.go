package tag

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/zetsubou/tagstore/pkg/search"
	memindex "github.com/zetsubou/tagstore/pkg/search/memory"
	"github.com/zetsubou/tagstore/pkg/storage"
	memstore "github.com/zetsubou/tagstore/pkg/storage/memory"
)

// memIndex renames the embedded field so that it does not shadow the promoted
// Index method.
type memIndex = memindex.Index

type countingIndex struct {
	*memIndex
	bulks atomic.Int32

	// failIndex is the number of upcoming Index calls that return errIndexDown.
	failIndex atomic.Int32
}

var errIndexDown = errors.New("index unavailable")

func (c *countingIndex) Index(ctx context.Context, id string, source json.RawMessage, opts ...search.WriteOption) (search.Version, error) {
	if c.failIndex.Add(-1) >= 0 {
		return search.Version{}, errIndexDown
	}
	c.failIndex.Store(0)
	return c.memIndex.Index(ctx, id, source, opts...)
}

func (c *countingIndex) Bulk(ctx context.Context, actions []search.BulkAction) error {
	c.bulks.Add(1)
	return c.memIndex.Bulk(ctx, actions)
}

type fixture struct {
	svc   *Service
	ds    *memstore.MemoryBackend
	index *countingIndex
}

func newFixture(t *testing.T, opts ...ServiceOption) *fixture {
	t.Helper()
	ds := memstore.New()
	idx := &countingIndex{memIndex: memindex.New("tags")}
	svc, err := NewService(ds, idx, opts...)
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return &fixture{svc: svc, ds: ds, index: idx}
}

// verifyNoLeaks fails t when goroutines started after the call outlive the test.
// It must run before newFixture so that the service is closed first.
func verifyNoLeaks(t *testing.T) {
	t.Helper()
	current := goleak.IgnoreCurrent()
	t.Cleanup(func() {
		goleak.VerifyNone(t, current,
			goleak.IgnoreAnyFunction("github.com/Yiling-J/theine-go/internal.(*Store[...]).maintenance.func1"))
	})
}

func (f *fixture) insert(t *testing.T, spec Spec) *Row {
	t.Helper()
	row, err := f.svc.Insert(context.Background(), spec)
	require.NoError(t, err)
	return row
}

// token creates a token without a projection.
func (f *fixture) token(t *testing.T, name string) int64 {
	t.Helper()
	var id int64
	err := storage.RunInTx(context.Background(), f.ds, func(tx storage.TagTx) error {
		tok, err := tx.CreateToken(context.Background(), name)
		if err != nil {
			return err
		}
		id = tok.ID
		return nil
	})
	require.NoError(t, err)
	return id
}

func (f *fixture) edges(t *testing.T, kind storage.EdgeKind, id int64) []*storage.Edge {
	t.Helper()
	edges, err := f.ds.ReadEdges(context.Background(), kind, id)
	require.NoError(t, err)
	return edges
}

func (f *fixture) projection(t *testing.T, id int64) *Projection {
	t.Helper()
	p, _, err := f.svc.readProjection(context.Background(), id)
	require.NoError(t, err)
	return p
}

// putProjection writes p straight to the index, bypassing the relational store.
func (f *fixture) putProjection(t *testing.T, p Projection) {
	t.Helper()
	p.normalize()
	b, err := json.Marshal(p)
	require.NoError(t, err)
	_, err = f.index.Index(context.Background(), docID(p.ID), b)
	require.NoError(t, err)
}

func ptr[T any](v T) *T {
	return &v
}

func TestDelta(t *testing.T) {
	tests := []struct {
		name     string
		want     []int64
		have     []int64
		add, del []int64
	}{
		{name: "empty"},
		{name: "add_only", want: []int64{1, 2}, add: []int64{1, 2}},
		{name: "delete_only", have: []int64{1, 2}, del: []int64{1, 2}},
		{name: "swap", want: []int64{2, 3}, have: []int64{1, 2}, add: []int64{3}, del: []int64{1}},
		{name: "disjoint", want: []int64{4, 6}, have: []int64{3, 5}, add: []int64{4, 6}, del: []int64{3, 5}},
		{name: "equal", want: []int64{1, 9}, have: []int64{1, 9}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			add, del := delta(test.want, test.have)
			require.Equal(t, test.add, add)
			require.Equal(t, test.del, del)
		})
	}
}

func TestNormalizeIDs(t *testing.T) {
	require.Equal(t, []int64{}, normalizeIDs(nil))
	require.Equal(t, []int64{1, 3, 7}, normalizeIDs([]int64{7, 3, 1, 3, 7}))
}

func TestProjectionWithoutReference(t *testing.T) {
	p := &Projection{
		ID:               1,
		CategoryIDs:      []int64{2, 3},
		SynonymIDs:       []int64{3},
		RepresentativeID: ptr[int64](3),
	}
	require.True(t, p.references(3))

	out := p.withoutReference(3)
	require.Equal(t, []int64{2}, out.CategoryIDs)
	require.Empty(t, out.SynonymIDs)
	require.Nil(t, out.RepresentativeID)
	require.False(t, out.references(3))

	require.Equal(t, []int64{2, 3}, p.CategoryIDs)
	require.NotNil(t, p.RepresentativeID)
}

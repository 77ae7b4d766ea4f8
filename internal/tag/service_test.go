package tag

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/zetsubou/tagstore/pkg/logger"
	"github.com/zetsubou/tagstore/pkg/search"
	memindex "github.com/zetsubou/tagstore/pkg/search/memory"
	"github.com/zetsubou/tagstore/pkg/search/mocks"
	"github.com/zetsubou/tagstore/pkg/storage"
	memstore "github.com/zetsubou/tagstore/pkg/storage/memory"
	storagemocks "github.com/zetsubou/tagstore/pkg/storage/mocks"
)

func reasons(logs logger.Logs) []string {
	var out []string
	for _, e := range logs.FilterMessage("tag stores are inconsistent").All() {
		out = append(out, e.ContextMap()["reason"].(string))
	}
	return out
}

func TestNewServiceValidation(t *testing.T) {
	ds := memstore.New()

	_, err := NewService(ds, nil, WithBatchSize(0))
	require.Error(t, err)

	_, err = NewService(ds, nil, WithConcurrency(-1))
	require.Error(t, err)
}

func TestInsertRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	animal := f.insert(t, Spec{Name: "animal"})
	pet := f.insert(t, Spec{Name: "pet"})
	kitty := f.insert(t, Spec{Name: "kitty"})
	feline := f.insert(t, Spec{Name: "feline"})
	color, err := f.ds.CreateAttribute(ctx, "color")
	require.NoError(t, err)
	size, err := f.ds.CreateAttribute(ctx, "size")
	require.NoError(t, err)

	row := f.insert(t, Spec{
		Name:             "cat",
		CategoryIDs:      []int64{pet.ID, animal.ID, pet.ID},
		SynonymIDs:       []int64{kitty.ID},
		RepresentativeID: &feline.ID,
		Attributes:       map[int64]string{size.ID: "small", color.ID: "black"},
	})
	require.Equal(t, "cat", row.Name)
	require.Equal(t, []int64{animal.ID, pet.ID}, row.CategoryIDs)

	got, err := f.svc.GetInterpretation(ctx, row.ID)
	require.NoError(t, err)

	want := &Interpretation{
		ID:             row.ID,
		Name:           "cat",
		Categories:     []TokenRef{{ID: animal.ID, Name: "animal"}, {ID: pet.ID, Name: "pet"}},
		Synonyms:       []TokenRef{{ID: kitty.ID, Name: "kitty"}},
		Representative: &TokenRef{ID: feline.ID, Name: "feline"},
		Attributes: []AttributeValue{
			{ID: color.ID, Name: "color", Value: "black"},
			{ID: size.ID, Name: "size", Value: "small"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("interpretation mismatch (-want +got):\n%s", diff)
	}

	require.Equal(t, []int64{animal.ID, pet.ID}, linkedIDs(f.edges(t, storage.EdgeCategory, row.ID)))
	require.Equal(t, []int64{kitty.ID}, linkedIDs(f.edges(t, storage.EdgeSynonym, row.ID)))
	require.Equal(t, []int64{feline.ID}, linkedIDs(f.edges(t, storage.EdgeRepresentative, row.ID)))
}

func TestInsertIsIdempotent(t *testing.T) {
	f := newFixture(t)

	a := f.insert(t, Spec{Name: "a"})
	b := f.insert(t, Spec{Name: "b"})
	tag := f.insert(t, Spec{Name: "tag"})
	spec := Spec{
		ID:               &tag.ID,
		Name:             "tag",
		CategoryIDs:      []int64{a.ID, b.ID},
		SynonymIDs:       []int64{b.ID},
		RepresentativeID: &a.ID,
	}
	f.insert(t, spec)

	edges := func() map[storage.EdgeKind][]*storage.Edge {
		out := map[storage.EdgeKind][]*storage.Edge{}
		for _, kind := range storage.EdgeKinds {
			out[kind] = f.edges(t, kind, tag.ID)
		}
		return out
	}
	before, beforeProj := edges(), f.projection(t, tag.ID)

	f.insert(t, spec)

	require.Equal(t, before, edges())
	require.Equal(t, beforeProj, f.projection(t, tag.ID))
}

func TestInsertAppliesDelta(t *testing.T) {
	f := newFixture(t)

	a := f.insert(t, Spec{Name: "a"})
	b := f.insert(t, Spec{Name: "b"})
	c := f.insert(t, Spec{Name: "c"})
	tag := f.insert(t, Spec{Name: "tag", CategoryIDs: []int64{a.ID, b.ID}})
	before := f.edges(t, storage.EdgeCategory, tag.ID)
	require.Len(t, before, 2)

	f.insert(t, Spec{ID: &tag.ID, Name: "tag", CategoryIDs: []int64{b.ID, c.ID}})

	after := f.edges(t, storage.EdgeCategory, tag.ID)
	require.Equal(t, []int64{b.ID, c.ID}, linkedIDs(after))
	// The row of b is kept, only a is deleted and only c is added.
	require.Equal(t, before[1].ID, after[0].ID)
	require.Greater(t, after[1].ID, before[1].ID)
	require.Equal(t, []int64{b.ID, c.ID}, f.projection(t, tag.ID).CategoryIDs)
}

func TestInsertUnknownTargetLeavesEdgesUntouched(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	a := f.insert(t, Spec{Name: "a"})
	f.insert(t, Spec{Name: "b"})
	f.insert(t, Spec{Name: "c"})
	require.Equal(t, int64(1), a.ID)
	f.insert(t, Spec{ID: ptr[int64](1), Name: "a", CategoryIDs: []int64{2, 3}})

	_, err := f.svc.Insert(ctx, Spec{ID: ptr[int64](1), Name: "renamed", CategoryIDs: []int64{3, 4}})
	require.ErrorIs(t, err, storage.ErrNotFound)
	var notFound *storage.NotFoundError
	require.ErrorAs(t, err, &notFound)
	require.Equal(t, int64(4), notFound.ID)
	require.Equal(t, "token", notFound.Entity)

	require.Equal(t, []int64{2, 3}, linkedIDs(f.edges(t, storage.EdgeCategory, 1)))
	require.Equal(t, []int64{2, 3}, f.projection(t, 1).CategoryIDs)
	tok, err := f.ds.ReadToken(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "a", tok.Name)
}

func TestInsertRejectsSelfReference(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.insert(t, Spec{Name: "a"})

	for name, spec := range map[string]Spec{
		"category":       {ID: &a.ID, Name: "a", CategoryIDs: []int64{a.ID}},
		"synonym":        {ID: &a.ID, Name: "a", SynonymIDs: []int64{a.ID}},
		"representative": {ID: &a.ID, Name: "a", RepresentativeID: &a.ID},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Insert(ctx, spec)
			require.ErrorIs(t, err, ErrSelfReference)
		})
	}
}

func TestInsertUnknownAttribute(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Insert(ctx, Spec{Name: "x", Attributes: map[int64]string{99: "v"}})
	var notFound *storage.NotFoundError
	require.ErrorAs(t, err, &notFound)
	require.Equal(t, int64(99), notFound.ID)
	require.Equal(t, "token attribute", notFound.Entity)

	n, err := f.ds.CountTokens(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
	require.Zero(t, f.index.Len())
}

func TestInsertRepresentative(t *testing.T) {
	f := newFixture(t)

	r1 := f.insert(t, Spec{Name: "r1"})
	r2 := f.insert(t, Spec{Name: "r2"})
	tag := f.insert(t, Spec{Name: "tag", RepresentativeID: &r1.ID})
	first := f.edges(t, storage.EdgeRepresentative, tag.ID)
	require.Len(t, first, 1)

	f.insert(t, Spec{ID: &tag.ID, Name: "tag", RepresentativeID: &r2.ID})
	moved := f.edges(t, storage.EdgeRepresentative, tag.ID)
	require.Len(t, moved, 1)
	require.Equal(t, first[0].ID, moved[0].ID)
	require.Equal(t, r2.ID, moved[0].LinkedID)
	require.Equal(t, r2.ID, *f.projection(t, tag.ID).RepresentativeID)

	f.insert(t, Spec{ID: &tag.ID, Name: "tag"})
	require.Empty(t, f.edges(t, storage.EdgeRepresentative, tag.ID))
	require.Nil(t, f.projection(t, tag.ID).RepresentativeID)
}

func TestInsertWithoutProjectionUsesEdgeRows(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	a := f.insert(t, Spec{Name: "a"})
	b := f.insert(t, Spec{Name: "b"})
	c := f.insert(t, Spec{Name: "c"})
	tag := f.insert(t, Spec{Name: "tag", CategoryIDs: []int64{a.ID, b.ID}})
	require.NoError(t, f.index.Delete(ctx, docID(tag.ID)))

	f.insert(t, Spec{ID: &tag.ID, Name: "tag", CategoryIDs: []int64{b.ID, c.ID}})

	require.Equal(t, []int64{b.ID, c.ID}, linkedIDs(f.edges(t, storage.EdgeCategory, tag.ID)))
	require.Equal(t, []int64{b.ID, c.ID}, f.projection(t, tag.ID).CategoryIDs)
}

func TestInsertHealsAfterFailedProjectionWrite(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	a := f.insert(t, Spec{Name: "a"})
	b := f.insert(t, Spec{Name: "b"})
	x := f.insert(t, Spec{Name: "x", CategoryIDs: []int64{a.ID, b.ID}})

	f.index.failIndex.Store(1)
	_, err := f.svc.Insert(ctx, Spec{ID: &x.ID, Name: "x", CategoryIDs: []int64{b.ID}})
	require.ErrorIs(t, err, ErrProjectionWrite)
	require.ErrorIs(t, err, errIndexDown)
	require.Equal(t, []int64{b.ID}, linkedIDs(f.edges(t, storage.EdgeCategory, x.ID)))
	require.Equal(t, []int64{a.ID, b.ID}, f.projection(t, x.ID).CategoryIDs)

	f.insert(t, Spec{ID: &x.ID, Name: "x", CategoryIDs: []int64{a.ID, b.ID}})

	require.Equal(t, []int64{a.ID, b.ID}, linkedIDs(f.edges(t, storage.EdgeCategory, x.ID)))
	require.Equal(t, []int64{a.ID, b.ID}, f.projection(t, x.ID).CategoryIDs)

	interp, err := f.svc.GetInterpretation(ctx, x.ID)
	require.NoError(t, err)
	require.Equal(t, []TokenRef{{ID: a.ID, Name: "a"}, {ID: b.ID, Name: "b"}}, interp.Categories)
}

func TestInsertUnknownID(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Insert(context.Background(), Spec{ID: ptr[int64](7), Name: "ghost"})
	var notFound *storage.NotFoundError
	require.ErrorAs(t, err, &notFound)
	require.Equal(t, int64(7), notFound.ID)
	require.Zero(t, f.index.Len())
}

func newMockService(t *testing.T, idx *mocks.MockIndex) (*Service, *memstore.MemoryBackend, logger.Logs) {
	t.Helper()
	idx.EXPECT().MaxResultWindow().Return(search.DefaultMaxResultWindow).AnyTimes()
	idx.EXPECT().Name().Return("tags").AnyTimes()

	ds := memstore.New()
	l, logs := logger.NewObserverLogger("warn")
	svc, err := NewService(ds, idx, WithLogger(l))
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return svc, ds, logs
}

func TestInsertWriteConflict(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	idx := mocks.NewMockIndex(ctrl)
	svc, ds, logs := newMockService(t, idx)

	id := (&fixture{ds: ds}).token(t, "a")
	stored := search.Version{SeqNo: 4, PrimaryTerm: 1}
	idx.EXPECT().Get(gomock.Any(), docID(id)).Return(&search.Document{
		ID:      docID(id),
		Source:  json.RawMessage(`{"id":1,"category_ids":[],"synonym_ids":[],"representative_id":null,"attributes":{}}`),
		Version: stored,
	}, nil)
	idx.EXPECT().Index(gomock.Any(), docID(id), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, _ json.RawMessage, opts ...search.WriteOption) (search.Version, error) {
			o := search.NewWriteOptions(opts...)
			require.NotNil(t, o.IfVersion)
			require.Equal(t, stored, *o.IfVersion)
			require.False(t, o.CreateOnly)
			return search.Version{}, search.ErrVersionConflict
		})

	counter := inconsistenciesCounter.WithLabelValues(string(ReasonWriteConflict))
	before := testutil.ToFloat64(counter)

	_, err := svc.Insert(ctx, Spec{ID: &id, Name: "b"})
	require.ErrorIs(t, err, ErrWriteConflict)
	require.InDelta(t, before+1, testutil.ToFloat64(counter), 0)
	require.Equal(t, []string{string(ReasonWriteConflict)}, reasons(logs))

	// The relational write is committed regardless.
	tok, err := ds.ReadToken(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "b", tok.Name)
}

func TestInsertProjectionWriteFailure(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	idx := mocks.NewMockIndex(ctrl)
	svc, ds, logs := newMockService(t, idx)

	unavailable := errors.New("connection refused")
	idx.EXPECT().Index(gomock.Any(), "1", gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, _ json.RawMessage, opts ...search.WriteOption) (search.Version, error) {
			require.True(t, search.NewWriteOptions(opts...).CreateOnly)
			return search.Version{}, unavailable
		})

	_, err := svc.Insert(ctx, Spec{Name: "a"})
	require.ErrorIs(t, err, ErrProjectionWrite)
	require.ErrorIs(t, err, unavailable)
	require.Equal(t, []string{string(ReasonProjectionWriteFailed)}, reasons(logs))

	n, err := ds.CountTokens(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestGetRow(t *testing.T) {
	ctx := context.Background()
	l, logs := logger.NewObserverLogger("warn")
	f := newFixture(t, WithLogger(l))

	a := f.insert(t, Spec{Name: "a"})
	tag := f.insert(t, Spec{Name: "tag", CategoryIDs: []int64{a.ID}, Attributes: map[int64]string{}})

	row, err := f.svc.GetRow(ctx, tag.ID)
	require.NoError(t, err)
	require.Equal(t, tag, row)

	t.Run("missing_projection", func(t *testing.T) {
		id := f.token(t, "bare")
		_, err := f.svc.GetRow(ctx, id)
		require.ErrorIs(t, err, storage.ErrNotFound)
		require.Equal(t, []string{string(ReasonMissingProjection)}, reasons(logs))
		logs.TakeAll()
	})

	t.Run("missing_token", func(t *testing.T) {
		f.putProjection(t, Projection{ID: 500})
		_, err := f.svc.GetRow(ctx, 500)
		var notFound *storage.NotFoundError
		require.ErrorAs(t, err, &notFound)
		require.Equal(t, int64(500), notFound.ID)
		require.Equal(t, []string{string(ReasonMissingToken)}, reasons(logs))
		logs.TakeAll()
	})

	t.Run("absent", func(t *testing.T) {
		_, err := f.svc.GetRow(ctx, 501)
		require.ErrorIs(t, err, storage.ErrNotFound)
		require.Empty(t, reasons(logs))
	})
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	color, err := f.ds.CreateAttribute(ctx, "color")
	require.NoError(t, err)
	red := f.insert(t, Spec{Name: "apple", Attributes: map[int64]string{color.ID: "red"}})
	f.insert(t, Spec{Name: "banana", Attributes: map[int64]string{color.ID: "yellow"}})
	cherry := f.insert(t, Spec{Name: "cherry", Attributes: map[int64]string{color.ID: "dark red"}})

	page, err := f.svc.Search(ctx, 1, "red")
	require.NoError(t, err)
	require.Equal(t, int64(2), page.Total)
	require.Len(t, page.Items, 2)
	require.Equal(t, red.ID, page.Items[0].ID)
	require.Equal(t, cherry.ID, page.Items[1].ID)

	page, err = f.svc.Search(ctx, 1, "")
	require.NoError(t, err)
	require.Equal(t, int64(3), page.Total)
}

func TestSuggest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	fruit := f.insert(t, Spec{Name: "fruit"})
	f.insert(t, Spec{Name: "apple", CategoryIDs: []int64{fruit.ID}})
	f.insert(t, Spec{Name: "apricot"})
	f.insert(t, Spec{Name: "banana", CategoryIDs: []int64{fruit.ID}})

	names := func(tokens []*storage.Token) []string {
		var out []string
		for _, tok := range tokens {
			out = append(out, tok.Name)
		}
		return out
	}

	got, err := f.svc.Suggest(ctx, "AP", nil, storage.ListOptions{})
	require.NoError(t, err)
	require.Equal(t, []string{"apple", "apricot"}, names(got))

	got, err = f.svc.Suggest(ctx, "ap", &fruit.ID, storage.ListOptions{})
	require.NoError(t, err)
	require.Equal(t, []string{"apple"}, names(got))
}

func TestInsertCommitFailure(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	ds := storagemocks.NewMockTagDatastore(ctrl)
	tx := storagemocks.NewMockTagTx(ctrl)
	idx := memindex.New("tags")
	svc, err := NewService(ds, idx)
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	commitErr := errors.New("serialization failure")
	ds.EXPECT().BeginTx(gomock.Any()).Return(tx, nil)
	gomock.InOrder(
		tx.EXPECT().CreateToken(gomock.Any(), "a").Return(&storage.Token{ID: 1, Name: "a"}, nil),
		tx.EXPECT().ReadEdges(gomock.Any(), storage.EdgeRepresentative, int64(1)).Return(nil, nil),
		tx.EXPECT().Commit().Return(commitErr),
		tx.EXPECT().Rollback().Return(nil),
	)

	_, err = svc.Insert(ctx, Spec{Name: "a"})
	require.ErrorIs(t, err, commitErr)
	require.Zero(t, idx.Len())
}

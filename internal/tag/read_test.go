package tag

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/zetsubou/tagstore/pkg/logger"
	memindex "github.com/zetsubou/tagstore/pkg/search/memory"
	"github.com/zetsubou/tagstore/pkg/search/mocks"
	"github.com/zetsubou/tagstore/pkg/storage"
	memstore "github.com/zetsubou/tagstore/pkg/storage/memory"
	storagemocks "github.com/zetsubou/tagstore/pkg/storage/mocks"
)

func TestGetInterpretationFailsClosed(t *testing.T) {
	ctx := context.Background()

	t.Run("deleted_category", func(t *testing.T) {
		l, logs := logger.NewObserverLogger("warn")
		f := newFixture(t, WithLogger(l))
		x := f.insert(t, Spec{Name: "x"})
		y := f.insert(t, Spec{Name: "y", CategoryIDs: []int64{x.ID}})

		err := storage.RunInTx(ctx, f.ds, func(tx storage.TagTx) error {
			return tx.DeleteToken(ctx, x.ID)
		})
		require.NoError(t, err)

		got, err := f.svc.GetInterpretation(ctx, y.ID)
		require.Nil(t, got)
		var notFound *storage.NotFoundError
		require.ErrorAs(t, err, &notFound)
		require.Equal(t, y.ID, notFound.ID)

		entries := logs.FilterMessage("tag stores are inconsistent").All()
		require.Len(t, entries, 1)
		fields := entries[0].ContextMap()
		require.Equal(t, string(ReasonUnresolvedReference), fields["reason"])
		require.Equal(t, "category", fields["entity"])
		require.Equal(t, x.ID, fields["ref_id"])
	})

	t.Run("deleted_attribute", func(t *testing.T) {
		l, logs := logger.NewObserverLogger("warn")
		f := newFixture(t, WithLogger(l))
		attr, err := f.ds.CreateAttribute(ctx, "color")
		require.NoError(t, err)
		tag := f.insert(t, Spec{Name: "tag", Attributes: map[int64]string{attr.ID: "red"}})
		require.NoError(t, f.ds.DeleteAttribute(ctx, attr.ID))

		_, err = f.svc.GetInterpretation(ctx, tag.ID)
		require.ErrorIs(t, err, storage.ErrNotFound)
		require.Equal(t, []string{string(ReasonUnresolvedReference)}, reasons(logs))
	})

	t.Run("deleted_representative", func(t *testing.T) {
		f := newFixture(t)
		rep := f.insert(t, Spec{Name: "rep"})
		tag := f.insert(t, Spec{Name: "tag", RepresentativeID: &rep.ID})
		f.putProjection(t, Projection{ID: tag.ID, RepresentativeID: ptr[int64](404)})

		_, err := f.svc.GetInterpretation(ctx, tag.ID)
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("missing_token", func(t *testing.T) {
		l, logs := logger.NewObserverLogger("warn")
		f := newFixture(t, WithLogger(l))
		f.putProjection(t, Projection{ID: 42})

		_, err := f.svc.GetInterpretation(ctx, 42)
		require.ErrorIs(t, err, storage.ErrNotFound)
		require.Equal(t, []string{string(ReasonMissingToken)}, reasons(logs))
	})

	t.Run("missing_projection", func(t *testing.T) {
		l, logs := logger.NewObserverLogger("warn")
		f := newFixture(t, WithLogger(l))
		id := f.token(t, "bare")

		_, err := f.svc.GetInterpretation(ctx, id)
		require.ErrorIs(t, err, storage.ErrNotFound)
		require.Equal(t, []string{string(ReasonMissingProjection)}, reasons(logs))
	})

	t.Run("absent", func(t *testing.T) {
		l, logs := logger.NewObserverLogger("warn")
		f := newFixture(t, WithLogger(l))

		_, err := f.svc.GetInterpretation(ctx, 9)
		require.EqualError(t, err, "tag id: 9 not found")
		require.Empty(t, reasons(logs))
	})
}

func TestGetInterpretationsByName(t *testing.T) {
	ctx := context.Background()
	verifyNoLeaks(t)
	f := newFixture(t, WithConcurrency(2))

	first := f.insert(t, Spec{Name: "dup"})
	bare := f.token(t, "dup")
	third := f.insert(t, Spec{Name: "dup", CategoryIDs: []int64{first.ID}})
	f.insert(t, Spec{Name: "other"})

	got, err := f.svc.GetInterpretationsByName(ctx, "dup", storage.ListOptions{})
	require.NoError(t, err)
	require.Len(t, got, 3)

	require.Equal(t, first.ID, got[0].ID)
	require.Empty(t, got[0].Categories)

	require.Equal(t, &Interpretation{
		ID:         bare,
		Name:       "dup",
		Categories: []TokenRef{},
		Synonyms:   []TokenRef{},
		Attributes: []AttributeValue{},
	}, got[1])

	require.Equal(t, third.ID, got[2].ID)
	require.Equal(t, []TokenRef{{ID: first.ID, Name: "dup"}}, got[2].Categories)

	got, err = f.svc.GetInterpretationsByName(ctx, "dup", storage.ListOptions{Limit: 2, Skip: 1})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, bare, got[0].ID)
	require.Equal(t, third.ID, got[1].ID)

	got, err = f.svc.GetInterpretationsByName(ctx, "missing", storage.ListOptions{})
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestGetInterpretationsByNamePropagatesIndexErrors(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	idx := mocks.NewMockIndex(ctrl)
	svc, ds, _ := newMockService(t, idx)
	(&fixture{ds: ds}).token(t, "dup")

	unavailable := errors.New("cluster unavailable")
	idx.EXPECT().Get(gomock.Any(), "1").Return(nil, unavailable)

	_, err := svc.GetInterpretationsByName(ctx, "dup", storage.ListOptions{})
	require.ErrorIs(t, err, unavailable)
}

func TestGetInterpretationsByNameHonoursDeadline(t *testing.T) {
	base := memstore.New()
	f := &fixture{ds: base}
	f.token(t, "dup")
	f.token(t, "dup")

	svc, err := NewService(storagemocks.NewMockSlowDataStorage(base, time.Minute), memindex.New("tags"))
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = svc.GetInterpretationsByName(ctx, "dup", storage.ListOptions{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/zetsubou/tagstore/pkg/storage"
	"github.com/zetsubou/tagstore/pkg/storage/test"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestMemdbStorage(t *testing.T) {
	test.RunAllTests(t, func(t *testing.T) storage.TagDatastore {
		return New()
	})
}

func TestWithInitialTokenID(t *testing.T) {
	ds := New(WithInitialTokenID(100))
	err := storage.RunInTx(context.Background(), ds, func(tx storage.TagTx) error {
		tok, err := tx.CreateToken(context.Background(), "first")
		require.NoError(t, err)
		require.Equal(t, int64(100), tok.ID)
		return nil
	})
	require.NoError(t, err)
}

func TestBeginTxHonoursContextWhileAnotherTxIsOpen(t *testing.T) {
	ds := New()
	tx, err := ds.BeginTx(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = ds.BeginTx(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, tx.Rollback())
	tx, err = ds.BeginTx(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	require.ErrorIs(t, tx.Commit(), storage.ErrTransactionClosed)
}

func TestConcurrentTransactionsDoNotLoseWrites(t *testing.T) {
	ds := New()
	ctx := context.Background()

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := storage.RunInTx(ctx, ds, func(tx storage.TagTx) error {
				_, err := tx.CreateToken(ctx, "t")
				return err
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	n, err := ds.CountTokens(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(writers), n)
}

func TestReadersSeeCommittedSnapshot(t *testing.T) {
	ds := New()
	ctx := context.Background()

	var id int64
	require.NoError(t, storage.RunInTx(ctx, ds, func(tx storage.TagTx) error {
		tok, err := tx.CreateToken(ctx, "before")
		id = tok.ID
		return err
	}))

	tx, err := ds.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.RenameToken(ctx, id, "after"))

	tok, err := ds.ReadToken(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "before", tok.Name)

	require.NoError(t, tx.Commit())
	tok, err = ds.ReadToken(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "after", tok.Name)
}

package mocks

import (
	"context"
	"time"

	"github.com/zetsubou/tagstore/pkg/storage"
)

// slowDataStorage is a proxy to the actual ds except that token and edge reads are
// delayed by readDelay. This allows simulating a datastore that is slower than the
// deadline of the caller.
type slowDataStorage struct {
	storage.TagDatastore
	readDelay time.Duration
}

// NewMockSlowDataStorage returns a wrapper of a datastore that adds artificial
// delays into token and edge reads. A delayed read returns the context error when
// the context ends first.
func NewMockSlowDataStorage(ds storage.TagDatastore, readDelay time.Duration) storage.TagDatastore {
	return &slowDataStorage{
		TagDatastore: ds,
		readDelay:    readDelay,
	}
}

func (m *slowDataStorage) wait(ctx context.Context) error {
	select {
	case <-time.After(m.readDelay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *slowDataStorage) ReadToken(ctx context.Context, id int64) (*storage.Token, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	return m.TagDatastore.ReadToken(ctx, id)
}

func (m *slowDataStorage) ReadTokens(ctx context.Context, ids []int64) (map[int64]*storage.Token, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	return m.TagDatastore.ReadTokens(ctx, ids)
}

func (m *slowDataStorage) ReadEdges(ctx context.Context, kind storage.EdgeKind, tokenID int64) ([]*storage.Edge, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	return m.TagDatastore.ReadEdges(ctx, kind, tokenID)
}

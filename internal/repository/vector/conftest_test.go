package vector

import (
	"context"
	"sync"

	"github.com/kailas-cloud/vecprep/internal/db"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	mu            sync.Mutex
	batches       [][]db.HashSetItem
	created       []*db.IndexDefinition
	dropped       []string
	hsetMultiFn   func(ctx context.Context, items []db.HashSetItem) error
	createIndexFn func(ctx context.Context, def *db.IndexDefinition) error
	dropIndexFn   func(ctx context.Context, name string) error
	indexExistsFn func(ctx context.Context, name string) (bool, error)
	indexInfoFn   func(ctx context.Context, name string) (db.IndexInfo, error)
}

func (m *mockStore) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	m.mu.Lock()
	m.batches = append(m.batches, items)
	m.mu.Unlock()
	if m.hsetMultiFn != nil {
		return m.hsetMultiFn(ctx, items)
	}
	return nil
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	m.mu.Lock()
	m.created = append(m.created, def)
	m.mu.Unlock()
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) DropIndex(ctx context.Context, name string) error {
	m.mu.Lock()
	m.dropped = append(m.dropped, name)
	m.mu.Unlock()
	if m.dropIndexFn != nil {
		return m.dropIndexFn(ctx, name)
	}
	return nil
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.indexExistsFn != nil {
		return m.indexExistsFn(ctx, name)
	}
	return false, nil
}

func (m *mockStore) IndexInfo(ctx context.Context, name string) (db.IndexInfo, error) {
	if m.indexInfoFn != nil {
		return m.indexInfoFn(ctx, name)
	}
	return db.IndexInfo{Name: name}, nil
}

package db

import (
	"context"
	"time"
)

// Store is the database facade the vector sink and health checks run on.
type Store interface {
	Pinger
	HashStore
	IndexManager
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashSetItem holds a single key+fields pair for pipelined HSET.
type HashSetItem struct {
	Key    string
	Fields map[string]string
}

// HashStore provides hash writes.
type HashStore interface {
	HSetMulti(ctx context.Context, items []HashSetItem) error
}

// IndexInfo is the subset of FT.INFO the service reports.
type IndexInfo struct {
	Name      string
	NumDocs   int64
	Dimension int // vector field DIM, 0 when not reported
}

// IndexManager provides FT index lifecycle operations.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	IndexInfo(ctx context.Context, name string) (IndexInfo, error)
}

// Package vector stores feature batches as hashes under a vector search index.
package vector

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kailas-cloud/vecprep/internal/db"
	"github.com/kailas-cloud/vecprep/internal/domain"
	"github.com/kailas-cloud/vecprep/internal/domain/table"
)

// DefaultBatchSize is the number of points written per pipelined round-trip.
const DefaultBatchSize = 64

// store is the consumer interface for the vector sink (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	IndexInfo(ctx context.Context, name string) (db.IndexInfo, error)
}

// Repo writes feature vectors to one index.
type Repo struct {
	store     store
	index     string
	keyPrefix string
	vec       VectorConfig
	batchSize int

	mu    sync.Mutex
	dim   int // dimension the index was ensured with, 0 until then
	ready bool
}

// New creates a vector repository for index. Point keys are
// keyPrefix + index + ":" + row key.
func New(s store, index, keyPrefix string) *Repo {
	return &Repo{
		store:     s,
		index:     index,
		keyPrefix: keyPrefix,
		vec:       VectorConfig{Algorithm: db.VectorFlat, Distance: db.DistanceCosine},
		batchSize: DefaultBatchSize,
	}
}

// WithVector configures the vector field.
func (r *Repo) WithVector(cfg VectorConfig) *Repo {
	if cfg.Dimension > 0 {
		r.vec.Dimension = cfg.Dimension
	}
	if cfg.Algorithm != "" {
		r.vec.Algorithm = cfg.Algorithm
	}
	if cfg.Distance != "" {
		r.vec.Distance = cfg.Distance
	}
	r.vec.M = cfg.M
	r.vec.EFConstruct = cfg.EFConstruct
	return r
}

// WithBatchSize configures how many points go into one pipeline.
func (r *Repo) WithBatchSize(n int) *Repo {
	if n > 0 {
		r.batchSize = n
	}
	return r
}

// Index returns the index name.
func (r *Repo) Index() string { return r.index }

// Dimension returns the configured or learned vector dimension, 0 if unknown yet.
func (r *Repo) Dimension() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.vec.Dimension > 0 {
		return r.vec.Dimension
	}
	return r.dim
}

// EnsureIndex creates the index when it does not exist. dim is used only
// when no dimension is configured; it must be positive in that case.
func (r *Repo) EnsureIndex(ctx context.Context, dim int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ensureLocked(ctx, dim)
}

func (r *Repo) ensureLocked(ctx context.Context, dim int) error {
	if r.vec.Dimension > 0 {
		dim = r.vec.Dimension
	}
	if r.ready {
		if dim != r.dim {
			return fmt.Errorf("index %s has dimension %d, got %d: %w", r.index, r.dim, dim, domain.ErrVectorDimMismatch)
		}
		return nil
	}
	if dim <= 0 {
		return fmt.Errorf("index %s: dimension unknown", r.index)
	}

	exists, err := r.store.IndexExists(ctx, r.index)
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	if exists {
		// An index left by an earlier run may have another width; points
		// written against it would never be indexed.
		info, err := r.store.IndexInfo(ctx, r.index)
		if err != nil {
			return fmt.Errorf("index info: %w", err)
		}
		if info.Dimension > 0 && info.Dimension != dim {
			return fmt.Errorf("index %s has dimension %d, got %d: %w",
				r.index, info.Dimension, dim, domain.ErrVectorDimMismatch)
		}
	} else {
		err := r.store.CreateIndex(ctx, r.buildIndex(dim))
		if err != nil && !errors.Is(err, db.ErrIndexExists) {
			return fmt.Errorf("create index: %w", err)
		}
	}
	r.dim, r.ready = dim, true
	return nil
}

// Reset drops the index so the next EnsureIndex or Save creates it again.
// Stored points are kept and are picked up by the new index when their
// vectors match its dimension. A missing index is not an error.
func (r *Repo) Reset(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.DropIndex(ctx, r.index); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("drop index: %w", err)
	}
	r.dim, r.ready = 0, false
	return nil
}

// Save writes every row of the batch as one point. Rows are checked before
// anything is written: a width other than the index dimension fails with
// domain.ErrVectorDimMismatch and a row holding a missing value fails with
// domain.ErrSchema. Returns the number of points written.
func (r *Repo) Save(ctx context.Context, b *table.FeatureBatch) (int, error) {
	if b.Len() == 0 {
		return 0, nil
	}
	if want := r.vec.Dimension; want > 0 && b.Width() != want {
		return 0, fmt.Errorf("batch width %d, index %s expects %d: %w",
			b.Width(), r.index, want, domain.ErrVectorDimMismatch)
	}
	for i := 0; i < b.Len(); i++ {
		if col, missing := b.HasMissing(i); missing {
			return 0, domain.NewSchemaError("save", col, "row %q has a missing value", b.Key(i))
		}
	}

	r.mu.Lock()
	err := r.ensureLocked(ctx, b.Width())
	r.mu.Unlock()
	if err != nil {
		return 0, err
	}

	written := 0
	for start := 0; start < b.Len(); start += r.batchSize {
		end := min(start+r.batchSize, b.Len())
		items := make([]db.HashSetItem, 0, end-start)
		for i := start; i < end; i++ {
			items = append(items, db.HashSetItem{
				Key:    r.pointKey(b.Key(i)),
				Fields: hashFields(b.Key(i), b.Vector32(i)),
			})
		}
		if err := r.store.HSetMulti(ctx, items); err != nil {
			return written, fmt.Errorf("save points %d-%d: %w", start, end-1, err)
		}
		written += len(items)
	}
	return written, nil
}

// Count returns the number of points the index holds.
func (r *Repo) Count(ctx context.Context) (int64, error) {
	info, err := r.store.IndexInfo(ctx, r.index)
	if err != nil {
		return 0, fmt.Errorf("index info: %w", err)
	}
	return info.NumDocs, nil
}

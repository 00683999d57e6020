package ingest

import (
	"context"
	"time"

	"github.com/kailas-cloud/vecprep/internal/domain/batch"
	"github.com/kailas-cloud/vecprep/internal/domain/table"
)

// Detector lists the sources waiting to be processed.
type Detector interface {
	Detect(ctx context.Context) ([]string, error)
}

// Reader loads one source into a raw table.
type Reader interface {
	Read(ctx context.Context, path string) (*table.Table, error)
}

// Preprocessor turns a raw table into a feature batch.
type Preprocessor interface {
	Run(ctx context.Context, raw *table.Table) (*table.FeatureBatch, error)
}

// Sink stores feature vectors keyed by row key.
type Sink interface {
	Save(ctx context.Context, b *table.FeatureBatch) (int, error)
}

// Observer receives per-source and per-run outcomes.
type Observer interface {
	SourceDone(stage string, rows int, err error)
	IngestDone(s batch.Summary, d time.Duration, err error)
}

// Package ingest drives sources through the preprocessing pipeline into the
// vector store, isolating failures per source.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecprep/internal/domain"
	"github.com/kailas-cloud/vecprep/internal/domain/batch"
	"github.com/kailas-cloud/vecprep/internal/logger"
)

// DefaultWorkers is the number of sources processed in parallel.
const DefaultWorkers = 1

type nopObserver struct{}

func (nopObserver) SourceDone(string, int, error)                {}
func (nopObserver) IngestDone(batch.Summary, time.Duration, error) {}

// Service runs ingest passes.
type Service struct {
	detector Detector
	reader   Reader
	pre      Preprocessor
	sink     Sink
	observer Observer
	workers  int
}

// New creates an ingest service.
func New(d Detector, r Reader, p Preprocessor, s Sink) *Service {
	return &Service{
		detector: d, reader: r, pre: p, sink: s,
		observer: nopObserver{},
		workers:  DefaultWorkers,
	}
}

// WithWorkers sets how many sources run in parallel.
func (s *Service) WithWorkers(n int) *Service {
	if n > 0 {
		s.workers = n
	}
	return s
}

// WithObserver installs an outcome observer.
func (s *Service) WithObserver(o Observer) *Service {
	if o != nil {
		s.observer = o
	}
	return s
}

// Run processes every detected source. Results follow detection order.
// domain.ErrNoNewData is returned as is when nothing was detected;
// domain.ErrNothingProcessed when every source failed.
func (s *Service) Run(ctx context.Context) ([]batch.Result, error) {
	ctx = logger.With(ctx, zap.String("run_id", uuid.NewString()))
	log := logger.FromContext(ctx)
	start := time.Now()

	sources, err := s.detector.Detect(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNoNewData) {
			log.Info("No new data", zap.Error(err))
		}
		s.observer.IngestDone(batch.Summary{}, time.Since(start), err)
		return nil, fmt.Errorf("detect: %w", err)
	}
	log.Info("Sources detected", zap.Int("count", len(sources)))

	results := make([]batch.Result, len(sources))
	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = s.ProcessFile(ctx, src)
		}()
	}
	wg.Wait()

	summary := batch.Summarize(results)
	if summary.OK == 0 {
		err = domain.ErrNothingProcessed
	}
	log.Info("Ingest finished",
		zap.Int("sources", summary.Sources),
		zap.Int("ok", summary.OK),
		zap.Int("failed", summary.Failed),
		zap.Int("rows", summary.Rows),
		zap.Duration("duration", time.Since(start)),
	)
	s.observer.IngestDone(summary, time.Since(start), err)
	return results, err
}

// ProcessFile reads, preprocesses and stores one source. Failures are
// logged and returned in the result, never as a panic or abort.
func (s *Service) ProcessFile(ctx context.Context, path string) batch.Result {
	ctx = logger.With(ctx, zap.String("source", path))
	log := logger.FromContext(ctx)

	res := s.process(ctx, path)
	s.observer.SourceDone(res.Stage(), res.Rows(), res.Err())
	if res.Err() != nil {
		log.Warn("Source skipped",
			zap.String("stage", res.Stage()),
			zap.Error(res.Err()),
		)
		return res
	}
	log.Info("Source processed", zap.Int("rows", res.Rows()))
	return res
}

func (s *Service) process(ctx context.Context, path string) batch.Result {
	raw, err := s.reader.Read(ctx, path)
	if err != nil {
		return batch.NewError(path, batch.StageRead, err)
	}
	features, err := s.pre.Run(ctx, raw)
	if err != nil {
		return batch.NewError(path, batch.StagePreprocess, err)
	}
	n, err := s.sink.Save(ctx, features)
	if err != nil {
		return batch.NewError(path, batch.StageSave, err)
	}
	return batch.NewOK(path, n)
}

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecprep/internal/config"
	"github.com/kailas-cloud/vecprep/internal/db"
	dbRedis "github.com/kailas-cloud/vecprep/internal/db/redis"
	"github.com/kailas-cloud/vecprep/internal/domain/allowlist"
	"github.com/kailas-cloud/vecprep/internal/domain/colspec"
	"github.com/kailas-cloud/vecprep/internal/domain/transform"
	logpkg "github.com/kailas-cloud/vecprep/internal/logger"
	"github.com/kailas-cloud/vecprep/internal/metrics"
	"github.com/kailas-cloud/vecprep/internal/repository/source"
	"github.com/kailas-cloud/vecprep/internal/repository/vector"
	healthuc "github.com/kailas-cloud/vecprep/internal/usecase/health"
	"github.com/kailas-cloud/vecprep/internal/usecase/ingest"
	"github.com/kailas-cloud/vecprep/internal/usecase/preprocess"
	"github.com/kailas-cloud/vecprep/internal/version"
)

// app is the wired object graph shared by the subcommands.
type app struct {
	cfg      config.Config
	env      string
	logger   *zap.Logger
	store    db.Store
	pipeline *preprocess.Pipeline
	vectors  *vector.Repo
	detector *source.Detector
	ingest   *ingest.Service
	health   *healthuc.Service
}

// newApp loads configuration and features, connects the store and builds
// the services. The caller owns close.
func newApp(ctx context.Context, opts *rootOptions, command string) (*app, error) {
	cfg, err := config.Load(opts.fs, config.Path(opts.env, opts.configPath))
	if err != nil {
		return nil, err
	}

	logger, err := logpkg.New(opts.env, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	logger.Info("Starting vecprep",
		zap.String("command", command),
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.String("index", cfg.Index.Name),
		zap.String("data_dir", cfg.Source.DataDir),
	)

	reg, allow, err := loadFeatures(opts.fs, cfg.Features)
	if err != nil {
		return nil, err
	}
	logger.Info("Feature configuration loaded",
		zap.Int("categorical", len(reg.CategoricalColumns())),
		zap.Int("numeric", len(reg.NumericColumns())),
		zap.Int("neighbourhoods", allow.Len()),
	)

	observer := metrics.NewPipeline(prometheus.DefaultRegisterer)
	pipeline, err := preprocess.New(reg, allow, pipelineOptions(cfg.Pipeline, observer)...)
	if err != nil {
		return nil, err
	}
	logger.Info("Pipeline built", zap.Strings("steps", pipeline.Steps()))

	// Both drivers speak the same FT.* surface through rueidis.
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
		DB:       cfg.Database.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create database store: %w", err)
	}
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, fmt.Errorf("database not ready: %w", err)
	}
	logger.Info("Connected to database")

	algo, _ := db.ParseAlgorithm(cfg.Index.Algorithm)
	dist, _ := db.ParseDistance(cfg.Index.Distance)
	vectors := vector.New(store, cfg.Index.Name, cfg.Storage.KeyPrefix).
		WithVector(vector.VectorConfig{
			Dimension:   cfg.Index.Dimension,
			Algorithm:   algo,
			Distance:    dist,
			M:           cfg.Index.HNSWM,
			EFConstruct: cfg.Index.HNSWEFConstruct,
		}).
		WithBatchSize(cfg.Index.BatchSize)

	// With a known dimension the index exists before the first batch arrives.
	if cfg.Index.Dimension > 0 {
		if err := vectors.EnsureIndex(ctx, cfg.Index.Dimension); err != nil {
			store.Close()
			return nil, fmt.Errorf("ensure index: %w", err)
		}
	}

	detector := source.NewDetector(opts.fs, cfg.Source.DataDir, cfg.Source.Patterns...)
	reader := source.NewReader(opts.fs, cfg.Pipeline.KeyColumn)
	ingestSvc := ingest.New(detector, reader, pipeline, vectors).
		WithWorkers(cfg.Pipeline.Workers).
		WithObserver(observer)

	return &app{
		cfg:      cfg,
		env:      opts.env,
		logger:   logger,
		store:    store,
		pipeline: pipeline,
		vectors:  vectors,
		detector: detector,
		ingest:   ingestSvc,
		health:   healthuc.New(store, vectors),
	}, nil
}

func (a *app) close() {
	a.store.Close()
	_ = a.logger.Sync()
}

// context returns ctx carrying the app logger.
func (a *app) context(ctx context.Context) context.Context {
	return logpkg.ContextWithLogger(ctx, a.logger)
}

// loadFeatures reads the column spec and the neighbourhood allow-list.
func loadFeatures(fs afero.Fs, cfg config.FeaturesConfig) (*colspec.Registry, *allowlist.AllowList, error) {
	specFile, err := fs.Open(cfg.ColumnSpec)
	if err != nil {
		return nil, nil, fmt.Errorf("open column spec: %w", err)
	}
	defer func() { _ = specFile.Close() }()
	reg, err := colspec.Load(specFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load column spec %s: %w", cfg.ColumnSpec, err)
	}

	allowFile, err := fs.Open(cfg.Neighbourhoods)
	if err != nil {
		return nil, nil, fmt.Errorf("open neighbourhood allow-list: %w", err)
	}
	defer func() { _ = allowFile.Close() }()
	allow, err := allowlist.Load(allowFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load neighbourhood allow-list %s: %w", cfg.Neighbourhoods, err)
	}
	return reg, allow, nil
}

// pipelineOptions maps the pipeline section onto preprocess options. The
// optional steps stay off unless configured.
func pipelineOptions(cfg config.PipelineConfig, obs preprocess.Observer) []preprocess.Option {
	opts := []preprocess.Option{
		preprocess.WithLayout(layoutFrom(cfg.Columns)),
		preprocess.WithObserver(obs),
	}
	if cfg.RemoveDuplicates {
		opts = append(opts, preprocess.WithRemoveDuplicates())
	}
	if cfg.CategoricalEncoding == "label" {
		opts = append(opts, preprocess.WithLabelEncoding())
	}
	if cfg.Missing.Strategy != "" {
		opts = append(opts, preprocess.WithMissingValues(
			transform.MissingStrategy(cfg.Missing.Strategy), cfg.Missing.Columns...))
	}
	return opts
}

// layoutFrom applies configured column names over the defaults.
func layoutFrom(c config.ColumnLayout) preprocess.Layout {
	l := preprocess.DefaultLayout()
	if len(c.Identity) > 0 {
		l.Identity = c.Identity
	}
	if c.Neighbourhood != "" {
		l.Neighbourhood = c.Neighbourhood
	}
	if c.NeighbourhoodGroup != "" {
		l.NeighbourhoodGroup = c.NeighbourhoodGroup
	}
	if c.LastReview != "" {
		l.LastReview = c.LastReview
	}
	if len(c.RecencyHelpers) > 0 {
		l.RecencyHelpers = c.RecencyHelpers
	}
	if c.HostListings != "" {
		l.HostListings = c.HostListings
	}
	if c.Availability != "" {
		l.Availability = c.Availability
	}
	if len(c.Superseded) > 0 {
		l.Superseded = c.Superseded
	}
	return l
}

package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/vecprep/internal/domain"
	"github.com/kailas-cloud/vecprep/internal/domain/batch"
)

// Pipeline records preprocessing and ingest outcomes. It satisfies both the
// preprocess and the ingest observer contracts.
type Pipeline struct {
	stepDuration   *prometheus.HistogramVec
	stepErrors     *prometheus.CounterVec
	runsTotal      *prometheus.CounterVec
	rowsTotal      prometheus.Counter
	runDuration    prometheus.Histogram
	sourcesTotal   *prometheus.CounterVec
	ingestTotal    *prometheus.CounterVec
	ingestDuration prometheus.Histogram
	lastIngest     prometheus.Gauge
}

// NewPipeline creates the collectors and registers them on reg.
func NewPipeline(reg prometheus.Registerer) *Pipeline {
	p := &Pipeline{
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pipeline_step_duration_seconds",
				Help:      "Duration of a single preprocessing step",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"step"},
		),
		stepErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pipeline_step_errors_total",
				Help:      "Preprocessing step failures",
			},
			[]string{"step", "kind"},
		),
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pipeline_runs_total",
				Help:      "Preprocessing runs by outcome",
			},
			[]string{"status"},
		),
		rowsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pipeline_rows_total",
				Help:      "Rows turned into feature vectors",
			},
		),
		runDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pipeline_run_duration_seconds",
				Help:      "Duration of a full preprocessing run",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
			},
		),
		sourcesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ingest_sources_total",
				Help:      "Ingested sources by outcome and failing stage",
			},
			[]string{"status", "stage"},
		),
		ingestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ingest_runs_total",
				Help:      "Ingest passes by outcome",
			},
			[]string{"result"}, // "ok" / "no_data" / "failed"
		),
		ingestDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ingest_duration_seconds",
				Help:      "Duration of an ingest pass",
				Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
			},
		),
		lastIngest: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "ingest_last_success_timestamp_seconds",
				Help:      "Unix time of the last ingest pass that stored at least one source",
			},
		),
	}
	reg.MustRegister(
		p.stepDuration, p.stepErrors, p.runsTotal, p.rowsTotal, p.runDuration,
		p.sourcesTotal, p.ingestTotal, p.ingestDuration, p.lastIngest,
	)
	return p
}

// StepDone records one preprocessing step.
func (p *Pipeline) StepDone(step string, d time.Duration, err error) {
	p.stepDuration.WithLabelValues(step).Observe(d.Seconds())
	if err != nil {
		p.stepErrors.WithLabelValues(step, errorKind(err)).Inc()
	}
}

// RunDone records one preprocessing run.
func (p *Pipeline) RunDone(rows int, d time.Duration, err error) {
	p.runDuration.Observe(d.Seconds())
	if err != nil {
		p.runsTotal.WithLabelValues("error").Inc()
		return
	}
	p.runsTotal.WithLabelValues("ok").Inc()
	p.rowsTotal.Add(float64(rows))
}

// SourceDone records one ingested source.
func (p *Pipeline) SourceDone(stage string, _ int, err error) {
	if err != nil {
		p.sourcesTotal.WithLabelValues(string(batch.StatusError), stage).Inc()
		return
	}
	p.sourcesTotal.WithLabelValues(string(batch.StatusOK), "").Inc()
}

// IngestDone records one ingest pass.
func (p *Pipeline) IngestDone(_ batch.Summary, d time.Duration, err error) {
	p.ingestDuration.Observe(d.Seconds())
	switch {
	case err == nil:
		p.ingestTotal.WithLabelValues("ok").Inc()
		p.lastIngest.SetToCurrentTime()
	case errors.Is(err, domain.ErrNoNewData):
		p.ingestTotal.WithLabelValues("no_data").Inc()
	default:
		p.ingestTotal.WithLabelValues("failed").Inc()
	}
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrSchema):
		return "schema"
	case errors.Is(err, domain.ErrConfig):
		return "config"
	default:
		return "other"
	}
}

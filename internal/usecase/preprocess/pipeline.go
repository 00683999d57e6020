// Package preprocess runs the fixed feature engineering sequence over a raw
// batch and freezes the result into a numeric feature batch.
package preprocess

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecprep/internal/domain"
	"github.com/kailas-cloud/vecprep/internal/domain/allowlist"
	"github.com/kailas-cloud/vecprep/internal/domain/colspec"
	"github.com/kailas-cloud/vecprep/internal/domain/table"
	"github.com/kailas-cloud/vecprep/internal/domain/transform"
	"github.com/kailas-cloud/vecprep/internal/logger"
)

// Names of the drop steps and of the final freeze stage.
const (
	StepDropIdentity       = "drop_identity"
	StepDropRecencyHelpers = "drop_recency_helpers"
	StepDropSuperseded     = "drop_superseded"
	StepFreeze             = "freeze"
)

// Observer receives step and run outcomes. Implementations must be safe for
// concurrent use.
type Observer interface {
	StepDone(step string, d time.Duration, err error)
	RunDone(rows int, d time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) StepDone(string, time.Duration, error) {}
func (nopObserver) RunDone(int, time.Duration, error)     {}

// Option configures a Pipeline.
type Option func(*options)

type options struct {
	layout   Layout
	observer Observer
	dedupe   bool
	labels   bool
	missing  *transform.HandleMissing
}

// WithLayout overrides the default column layout.
func WithLayout(l Layout) Option {
	return func(o *options) { o.layout = l }
}

// WithObserver installs an observer for step and run outcomes.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithRemoveDuplicates drops repeated rows right after the identity columns
// are gone, so listings that differ only by id collapse to one.
func WithRemoveDuplicates() Option {
	return func(o *options) { o.dedupe = true }
}

// WithLabelEncoding encodes categorical columns as vocabulary indexes in
// place of one-hot indicators.
func WithLabelEncoding() Option {
	return func(o *options) { o.labels = true }
}

// WithMissingValues treats nulls as the last step before freezing. With no
// columns it applies to every numeric column.
func WithMissingValues(strategy transform.MissingStrategy, columns ...string) Option {
	return func(o *options) {
		o.missing = &transform.HandleMissing{Strategy: strategy, Columns: columns}
	}
}

// Pipeline applies an ordered sequence of steps. It keeps no per-run state
// and is safe for concurrent Run calls.
type Pipeline struct {
	steps    []transform.Step
	observer Observer
}

// New builds the pipeline from loaded configuration.
func New(reg *colspec.Registry, allow *allowlist.AllowList, opts ...Option) (*Pipeline, error) {
	if reg == nil {
		return nil, domain.NewConfigError("", "column spec registry is required")
	}
	if allow == nil {
		return nil, domain.NewConfigError("", "neighbourhood allow-list is required")
	}
	o := options{layout: DefaultLayout(), observer: nopObserver{}}
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.layout.Validate(); err != nil {
		return nil, err
	}
	if o.missing != nil {
		if _, err := transform.ParseMissingStrategy(string(o.missing.Strategy)); err != nil {
			return nil, err
		}
	}

	l := o.layout
	steps := []transform.Step{transform.Drop(StepDropIdentity, l.Identity...)}
	if o.dedupe {
		steps = append(steps, transform.RemoveDuplicates{})
	}
	var encode transform.Step = transform.EncodeCategorical{Registry: reg}
	if o.labels {
		encode = transform.EncodeLabels{Registry: reg}
	}
	steps = append(steps,
		transform.GroupRareNeighbourhoods{
			Neighbourhood: l.Neighbourhood,
			Group:         l.NeighbourhoodGroup,
			Allow:         allow,
		},
		transform.BucketReviewRecency{
			Date:  l.LastReview,
			Days:  l.DaysSinceReview,
			Label: l.ReviewRecency,
		},
		transform.Drop(StepDropRecencyHelpers, l.RecencyHelpers...),
		transform.DeriveBinaryFeatures{
			HostListings: l.HostListings,
			Multiple:     l.HostsMultiple,
			Availability: l.Availability,
		},
		transform.Drop(StepDropSuperseded, l.Superseded...),
		encode,
		transform.ScaleNumeric{Registry: reg},
	)
	if o.missing != nil {
		steps = append(steps, *o.missing)
	}
	return &Pipeline{steps: steps, observer: o.observer}, nil
}

// Steps returns the step names in execution order.
func (p *Pipeline) Steps() []string {
	names := make([]string, len(p.steps))
	for i, s := range p.steps {
		names[i] = s.Name()
	}
	return names
}

// Run applies every step to raw in order and freezes the result. Any failure
// discards the whole batch. raw is never modified.
func (p *Pipeline) Run(ctx context.Context, raw *table.Table) (*table.FeatureBatch, error) {
	start := time.Now()
	out, err := p.run(ctx, raw)
	p.observer.RunDone(raw.Len(), time.Since(start), err)
	return out, err
}

func (p *Pipeline) run(ctx context.Context, raw *table.Table) (*table.FeatureBatch, error) {
	log := logger.FromContext(ctx)

	t := raw
	for _, s := range p.steps {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("preprocess: before %s: %w", s.Name(), err)
		}

		started := time.Now()
		next, err := s.Apply(t)
		elapsed := time.Since(started)
		p.observer.StepDone(s.Name(), elapsed, err)
		if err != nil {
			return nil, fmt.Errorf("preprocess: %w", err)
		}
		t = next

		log.Debug("Step applied",
			zap.String("step", s.Name()),
			zap.Int("rows", t.Len()),
			zap.Int("columns", t.Width()),
			zap.Duration("duration", elapsed),
		)
	}

	started := time.Now()
	batch, err := t.Freeze()
	p.observer.StepDone(StepFreeze, time.Since(started), err)
	if err != nil {
		return nil, fmt.Errorf("preprocess: %w", err)
	}
	return batch, nil
}

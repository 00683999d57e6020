package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecprep/internal/domain"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	var recreate bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process every batch in the data directory once",
		Long: `run detects the batches waiting in source.data_dir, preprocesses each one
and stores the vectors. A failing batch is logged and skipped; the command
fails only when no batch could be processed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, opts, "run")
			if err != nil {
				return err
			}
			defer a.close()

			if recreate {
				if err := recreateIndex(ctx, a); err != nil {
					return err
				}
			}

			results, err := a.ingest.Run(a.context(ctx))
			switch {
			case errors.Is(err, domain.ErrNoNewData):
				a.logger.Info("Nothing to do")
				return nil
			case err != nil:
				return fmt.Errorf("ingest: %w", err)
			}

			for _, r := range results {
				if r.Err() != nil {
					a.logger.Warn("Batch failed",
						zap.String("source", r.Source()),
						zap.String("stage", r.Stage()),
						zap.Error(r.Err()),
					)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&recreate, "recreate", false, "drop the vector index before ingesting (stored points are kept)")
	return cmd
}

// recreateIndex drops the index and, when the dimension is configured,
// creates it again right away.
func recreateIndex(ctx context.Context, a *app) error {
	if err := a.vectors.Reset(ctx); err != nil {
		return fmt.Errorf("reset index: %w", err)
	}
	a.logger.Info("Vector index dropped", zap.String("index", a.vectors.Index()))
	if dim := a.cfg.Index.Dimension; dim > 0 {
		if err := a.vectors.EnsureIndex(ctx, dim); err != nil {
			return fmt.Errorf("ensure index: %w", err)
		}
	}
	return nil
}

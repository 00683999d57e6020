package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/vecprep/internal/domain"
	"github.com/kailas-cloud/vecprep/internal/repository/source"
)

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var initial bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Process batches as they land in the data directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, opts, "watch")
			if err != nil {
				return err
			}
			defer a.close()

			ctx = a.context(ctx)
			if initial {
				if _, err := a.ingest.Run(ctx); err != nil &&
					!errors.Is(err, domain.ErrNoNewData) && !errors.Is(err, domain.ErrNothingProcessed) {
					return fmt.Errorf("initial ingest: %w", err)
				}
			}

			w := source.NewWatcher(a.detector, time.Duration(a.cfg.Source.DebounceMs)*time.Millisecond)
			err = w.Watch(ctx, func(ctx context.Context, path string) {
				a.ingest.ProcessFile(ctx, path)
			})
			if err != nil {
				return fmt.Errorf("watch: %w", err)
			}
			a.logger.Info("Watcher stopped")
			return nil
		},
	}
	cmd.Flags().BoolVar(&initial, "initial", true, "process batches already present before watching")
	return cmd
}

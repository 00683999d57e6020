// Command vecprep turns listing batches into feature vectors and stores them
// in a Valkey/Redis vector index.
package main

import (
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/kailas-cloud/vecprep/internal/config"
)

func main() {
	if err := newRootCmd(afero.NewOsFs()).Execute(); err != nil {
		os.Exit(1)
	}
}

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	fs         afero.Fs
	configPath string
	env        string
}

func newRootCmd(fs afero.Fs) *cobra.Command {
	opts := &rootOptions{fs: fs}

	root := &cobra.Command{
		Use:   "vecprep",
		Short: "Feature preprocessing for listing vectors",
		Long: `vecprep reads raw property-listing batches, applies the configured feature
engineering steps and stores the resulting vectors in a Valkey/Redis index.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"config file (default is config/<ENV>.yaml)")
	root.PersistentFlags().StringVar(&opts.env, "env", config.GetEnv(),
		"environment: local, dev, docker or prod (default from $ENV)")

	root.AddCommand(
		newRunCmd(opts),
		newServeCmd(opts),
		newWatchCmd(opts),
		newVersionCmd(),
	)
	return root
}

package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"library_lending/config"
	"library_lending/logging"
)

func Execute() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

type rootOpts struct {
	configPath string
	store      string
}

func newRootCmd() *cobra.Command {
	opts := &rootOpts{}

	cmd := &cobra.Command{
		Use:          "library",
		Short:        "Library lending REST service",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML config file (defaults to $CONFIG_FILE)")
	cmd.PersistentFlags().StringVar(&opts.store, "store", "", "storage backend: postgres or memory (overrides STORE)")

	cmd.AddCommand(newServeCmd(opts), newMigrateCmd(opts))
	return cmd
}

// load resolves config and the process logger for a subcommand.
func (o *rootOpts) load() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	if o.store != "" {
		cfg.Store = o.store
		if err := cfg.Validate(); err != nil {
			return config.Config{}, nil, err
		}
	}
	log, err := logging.New(os.Stdout, logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return config.Config{}, nil, err
	}
	slog.SetDefault(log)
	return cfg, log, nil
}

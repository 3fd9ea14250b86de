package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"library_lending/config"
	"library_lending/db"
)

func newMigrateCmd(opts *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the postgres schema and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			if cfg.Store != config.StorePostgres {
				return errors.New("migrate only applies to the postgres store")
			}
			ctx := cmd.Context()
			conn, err := db.Open(ctx, db.Options{DSN: cfg.DB.DSN(), Logger: log, SlowThreshold: cfg.DB.SlowThreshold})
			if err != nil {
				return err
			}
			defer func() { _ = db.Close(conn) }()

			if err := db.Migrate(ctx, conn); err != nil {
				return err
			}
			log.Info("db.migrated")
			return nil
		},
	}
}

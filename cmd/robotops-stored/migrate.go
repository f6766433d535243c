package main

import (
	"github.com/celerix-dev/robot-ops/internal/config"
	"github.com/celerix-dev/robot-ops/internal/engine"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newMigrateCommand(configPath *string) *cobra.Command {
	var from, to config.StoreConfig

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Copy every state and user from one store to another",
		Long: "Copy every state and user from one store to another. Records that already exist\n" +
			"in the destination are skipped, so the command can be re-run safely.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			cfg.ConfigureLogging()

			src, err := openStore(from)
			if err != nil {
				return errors.Wrap(err, "open source store")
			}
			defer src.Close()
			dst, err := openStore(to)
			if err != nil {
				return errors.Wrap(err, "open destination store")
			}
			defer dst.Close()

			res, err := engine.Migrate(cmd.Context(), src, dst)
			if err != nil {
				return err
			}
			logrus.WithFields(logrus.Fields{
				"states":  res.States,
				"users":   res.Users,
				"skipped": res.Skipped,
			}).Info("migration complete")
			return nil
		},
	}

	cmd.Flags().StringVar(&from.Driver, "from-driver", config.DriverMemory, "source driver (memory|postgres)")
	cmd.Flags().StringVar(&from.DataDir, "from-data-dir", "./data", "source data directory")
	cmd.Flags().StringVar(&from.Persistence, "from-persistence", config.PersistJSON, "source persistence (json|badger)")
	cmd.Flags().StringVar(&from.PostgresDSN, "from-dsn", "", "source postgres DSN")
	cmd.Flags().StringVar(&to.Driver, "to-driver", config.DriverPostgres, "destination driver (memory|postgres)")
	cmd.Flags().StringVar(&to.DataDir, "to-data-dir", "./data", "destination data directory")
	cmd.Flags().StringVar(&to.Persistence, "to-persistence", config.PersistJSON, "destination persistence (json|badger)")
	cmd.Flags().StringVar(&to.PostgresDSN, "to-dsn", "", "destination postgres DSN")
	return cmd
}

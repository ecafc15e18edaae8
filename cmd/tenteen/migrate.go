package main

import (
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/tenteen/tenteen/cmd/tenteen/modules"
	dbembed "github.com/tenteen/tenteen/db"
	"github.com/tenteen/tenteen/internal/db"
	"github.com/tenteen/tenteen/internal/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate <up|down|version|force N>",
	Short: "Apply or inspect database migrations",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := modules.LoadConfig(cfgFile)
		if err != nil {
			return err
		}
		logger.Init(cfg.Log.Level, cfg.Log.Format)
		migrations, err := fs.Sub(dbembed.MigrationsFS, "migrations")
		if err != nil {
			return fmt.Errorf("migrations fs: %w", err)
		}
		dsn := db.DSN(cfg.Postgres, databaseURL())
		return db.RunMigrate(logger.L, dsn, migrations, args[0], args[1:])
	},
}

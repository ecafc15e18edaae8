package main

import (
	"log/slog"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/tenteen/tenteen/cmd/tenteen/modules"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fx.New(
			fx.Supply(modules.ConfigPath(cfgFile)),
			modules.InfraModule,
			modules.StorageModule,
			modules.DomainModule,
			modules.HandlersModule,
			modules.ServerModule,
			fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
				return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
			}),
		).Run()
	},
}

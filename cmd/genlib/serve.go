package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/carleson/genlib/internal/infrastructure/telemetry"
	"github.com/carleson/genlib/internal/server"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the archive over HTTP",
		Long:  "Starts the JSON API for persons, relationships, trees, imports and search. Stops on SIGINT or SIGTERM.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withInternalDeps(ctx, func(d *internalDeps) error {
				if addr == "" {
					addr = d.Config.Server.Addr
				}
				if !verbose {
					gin.SetMode(gin.ReleaseMode)
				}
				shutdown, err := telemetry.Init(ctx, telemetry.Config{
					ServiceName:    "genlib",
					ServiceVersion: version,
					TraceExporter:  d.Config.Telemetry.TraceExporter,
					MetricExporter: d.Config.Telemetry.MetricExporter,
				})
				if err != nil {
					return fmt.Errorf("initializing telemetry: %w", err)
				}
				defer func() {
					if err := shutdown(context.WithoutCancel(ctx)); err != nil {
						slog.Warn("telemetry shutdown failed", slog.Any("error", err))
					}
				}()

				logger := slog.Default().With(slog.String("archive", d.Archive))
				logger.Info("opening archive", slog.String("database", d.store.Path()))

				srv := server.New(server.Handlers{
					Persons:       d.Persons,
					Relationships: d.Relationships,
					Trees:         d.Trees,
					Imports:       d.Imports,
					Search:        d.Search,
				}, logger)
				return srv.Run(ctx, addr)
			})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")

	return cmd
}

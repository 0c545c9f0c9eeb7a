package main

import (
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/spence/internal/server"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the forecast and aggregation endpoints",
		Long: `Start the HTTP trigger surface and the daily aggregation schedule.

Endpoints:
  POST /predict               {"userId": "..."}
  POST /aggregate/daily
  POST /aggregate/historical  {"months": 3}
  GET  /healthz`,
		RunE: runServe,
	}

	cmd.Flags().String("addr", "", "Listen address (overrides server.addr)")
	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	eng, loc, err := newEngine(store, configuredSeed(0))
	if err != nil {
		return err
	}

	srv, err := server.New(eng, server.Config{
		Location: loc,
		Addr:     viper.GetString("server.addr"),
		Schedule: viper.GetString("schedule.daily_aggregation"),
	}, slog.Default())
	if err != nil {
		return err
	}

	return srv.Run(ctx)
}

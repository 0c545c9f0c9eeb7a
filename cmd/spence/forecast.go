package main

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spence/internal/cli"
	"github.com/Veraticus/spence/internal/common"
	"github.com/Veraticus/spence/internal/config"
	"github.com/Veraticus/spence/internal/engine"
	"github.com/Veraticus/spence/internal/forecast"
	"github.com/Veraticus/spence/internal/service"
	"github.com/Veraticus/spence/internal/sheets"
)

func forecastCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Forecast next month's spending",
		Long: `Forecast the next month of spending for a user from their daily aggregates.

The forecast is stored as the user's next_month prediction and printed as a
calendar (default) or as the stored JSON document.`,
		RunE: runForecast,
	}

	cmd.Flags().StringP("user", "u", "", "User to forecast")
	cmd.Flags().Uint64("seed", 0, "Seed for reproducible forecasts (0 uses forecast.seed or the clock)")
	cmd.Flags().StringP("format", "f", "table", "Output format (table, json)")
	cmd.Flags().Bool("export", false, "Also export the forecast to Google Sheets")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func runForecast(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	userID, _ := cmd.Flags().GetString("user")
	seed, _ := cmd.Flags().GetUint64("seed")
	format, _ := cmd.Flags().GetString("format")
	export, _ := cmd.Flags().GetBool("export")

	if format != "table" && format != "json" {
		return common.NewUserError(fmt.Sprintf("unknown format %q, use table or json", format), common.ErrInvalidRequest)
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	eng, _, err := newEngine(store, configuredSeed(seed))
	if err != nil {
		return err
	}

	prediction, err := eng.PredictNextMonth(ctx, userID)
	if err != nil {
		return describeForecastError(err)
	}

	if err := printPrediction(cmd, prediction, format); err != nil {
		return err
	}

	if !export {
		return nil
	}

	sheetsCfg, err := config.LoadSheetsConfig()
	if err != nil {
		return common.NewUserError("Google Sheets is not configured, run 'spence auth sheets' first", err)
	}
	writer, err := sheets.NewWriter(ctx, *sheetsCfg, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to create sheets writer: %w", err)
	}
	return exportForecast(cmd, writer, prediction)
}

func printPrediction(cmd *cobra.Command, prediction *engine.Prediction, format string) error {
	out := cmd.OutOrStdout()
	if format == "json" {
		data, err := json.MarshalIndent(prediction.Document, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode forecast: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}
	fmt.Fprintln(out, cli.RenderForecast(prediction.Forecast))
	return nil
}

func exportForecast(cmd *cobra.Command, writer service.ForecastWriter, prediction *engine.Prediction) error {
	if err := writer.WriteForecast(cmd.Context(), prediction.Forecast); err != nil {
		return fmt.Errorf("failed to export forecast: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Forecast exported to Google Sheets"))
	return nil
}

// describeForecastError turns a forecast classification into a message the
// user can act on.
func describeForecastError(err error) error {
	kind, ok := forecast.KindOf(err)
	if !ok {
		return err
	}
	switch kind {
	case forecast.KindInsufficientData:
		return common.NewUserError("Not enough history to forecast yet, import more transactions and run 'spence aggregate --historical'", err)
	case forecast.KindEmptyInput:
		return common.NewUserError("No usable daily aggregates found, run 'spence aggregate' first", err)
	default:
		return common.NewUserError("The forecasting model could not be fitted to this history", err)
	}
}

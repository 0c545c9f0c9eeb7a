package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spence/internal/cli"
	"github.com/Veraticus/spence/internal/common"
	"github.com/Veraticus/spence/internal/document"
	"github.com/Veraticus/spence/internal/engine"
	"github.com/Veraticus/spence/internal/service"
)

func aggregateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Roll transactions up into daily aggregates",
		Long: `Aggregate stored transactions into per-user daily records.

Without flags, yesterday is aggregated and gaps in the last week are filled
with zero-spending days. --date aggregates a single day; --historical
back-fills --months of history, skipping days that already exist.`,
		RunE: runAggregate,
	}

	cmd.Flags().String("date", "", "Aggregate a single day (YYYY-MM-DD)")
	cmd.Flags().Bool("historical", false, "Back-fill historical aggregates")
	cmd.Flags().Int("months", 1, "Months to back-fill with --historical")

	return cmd
}

func runAggregate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	date, _ := cmd.Flags().GetString("date")
	historical, _ := cmd.Flags().GetBool("historical")
	months, _ := cmd.Flags().GetInt("months")

	if date != "" && historical {
		return common.NewUserError("--date and --historical cannot be combined", common.ErrInvalidRequest)
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	eng, loc, err := newEngine(store, 0)
	if err != nil {
		return err
	}

	switch {
	case date != "":
		day, err := time.ParseInLocation(document.DateLayout, date, loc)
		if err != nil {
			return common.NewUserError(fmt.Sprintf("invalid --date %q, expected YYYY-MM-DD", date), common.ErrInvalidRequest)
		}
		written, err := eng.AggregateDate(ctx, day)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Aggregated %s: %d user records written", date, written)))
		return nil

	case historical:
		if months <= 0 {
			return common.NewUserError("--months must be positive", common.ErrInvalidRequest)
		}
		handler := cli.NewInterruptHandler(out)
		ctx = handler.HandleInterrupts(ctx, "Historical aggregation",
			"Run 'spence aggregate --historical' again; days already aggregated are skipped.")

		result, err := eng.AggregateHistorical(ctx, months, cli.NewProgressBar(os.Stderr, "Aggregating"))
		if err != nil {
			return err
		}
		printAggregation(out, result)
		return nil

	default:
		result, err := eng.AggregateDaily(ctx)
		if err != nil {
			return err
		}
		printAggregation(out, result)
		return nil
	}
}

func printAggregation(out io.Writer, result *service.AggregationResult) {
	fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Aggregated %s to %s",
		result.DateRange.Start.Format(document.DateLayout),
		result.DateRange.End.Format(document.DateLayout))))
	fmt.Fprintf(out, "  Days processed:   %d\n", result.DaysProcessed)
	fmt.Fprintf(out, "  Days skipped:     %d\n", result.DaysSkipped)
	fmt.Fprintf(out, "  Records written:  %d\n", result.RecordsWritten)
	fmt.Fprintf(out, "  Zero days filled: %d\n", result.ZeroDaysFilled)

	for _, date := range engine.SortedErrors(result) {
		fmt.Fprintln(out, cli.FormatError(date+": "+result.Errors[date]))
	}
}

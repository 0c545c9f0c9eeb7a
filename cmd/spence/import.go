package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spence/internal/cli"
	"github.com/Veraticus/spence/internal/common"
	"github.com/Veraticus/spence/internal/config"
	"github.com/Veraticus/spence/internal/plaid"
	"github.com/Veraticus/spence/internal/service"
	"github.com/Veraticus/spence/internal/simplefin"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import expenses from Plaid or SimpleFIN",
		Long: `Fetch posted expense transactions from a bank connection and store them.

Plaid credentials come from plaid.client_id, plaid.secret and plaid.access_token.
SimpleFIN needs simplefin.token the first time; the claimed access URL is saved.`,
		RunE: runImport,
	}

	cmd.Flags().StringP("user", "u", "", "User the imported expenses belong to")
	cmd.Flags().Int("days", 30, "Number of days to fetch, ending today")
	cmd.Flags().String("source", "plaid", "Transaction source (plaid, simplefin)")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func runImport(cmd *cobra.Command, _ []string) error {
	userID, _ := cmd.Flags().GetString("user")
	days, _ := cmd.Flags().GetInt("days")
	source, _ := cmd.Flags().GetString("source")
	if days <= 0 {
		return common.NewUserError("--days must be positive", common.ErrInvalidRequest)
	}

	switch source {
	case "plaid":
		cfg, err := config.LoadPlaidConfig(userID)
		if err != nil {
			return common.NewUserError("Plaid is not configured: set plaid.client_id, plaid.secret and plaid.access_token", err)
		}
		client, err := plaid.NewClient(cfg, slog.Default())
		if err != nil {
			return err
		}
		return importFrom(cmd, client, days)

	case "simplefin":
		client, err := simplefin.NewClient(cmd.Context(), config.LoadSimpleFINConfig(userID), slog.Default())
		if err != nil {
			return common.NewUserError("SimpleFIN is not configured: set simplefin.token to a setup token", err)
		}
		return importFrom(cmd, client, days)

	default:
		return common.NewUserError(fmt.Sprintf("unknown source %q, use plaid or simplefin", source), common.ErrInvalidRequest)
	}
}

// importFrom pulls the last days of expenses from source into storage.
func importFrom(cmd *cobra.Command, source service.TransactionSource, days int) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	end := time.Now()
	start := end.AddDate(0, 0, -days)

	transactions, err := source.GetTransactions(ctx, start, end)
	if err != nil {
		return fmt.Errorf("failed to fetch transactions: %w", err)
	}
	if len(transactions) == 0 {
		fmt.Fprintln(out, cli.FormatWarning("No expenses returned for the requested period"))
		return nil
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.SaveTransactions(ctx, transactions); err != nil {
		return fmt.Errorf("failed to save transactions: %w", err)
	}

	summarizeImport(out, transactions)
	fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Saved %d expenses", len(transactions))))
	return nil
}

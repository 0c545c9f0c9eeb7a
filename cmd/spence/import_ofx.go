package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spence/internal/cli"
	"github.com/Veraticus/spence/internal/common"
	"github.com/Veraticus/spence/internal/model"
	"github.com/Veraticus/spence/internal/ofx"
)

func importOFXCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-ofx [files...]",
		Short: "Import expenses from OFX/QFX files",
		Long: `Import expense transactions from OFX or QFX (Quicken) files exported from your bank.
Only debits are imported; deposits and interest are skipped.

Examples:
  # Import single file
  spence import-ofx --user alice ~/Downloads/chase_jan_2026.qfx

  # Import all QFX files in a directory
  spence import-ofx --user alice ~/Downloads/*.qfx`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImportOFX,
	}

	cmd.Flags().StringP("user", "u", "", "User the imported expenses belong to")
	cmd.Flags().BoolP("dry-run", "d", false, "Preview import without saving")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func runImportOFX(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	userID, _ := cmd.Flags().GetString("user")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	out := cmd.OutOrStdout()

	files, err := expandFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return common.NewUserError("no files found to import", common.ErrInvalidRequest)
	}

	slog.Info("Importing OFX files", "file_count", len(files), "user_id", userID, "dry_run", dryRun)

	parser := ofx.NewParser(userID, slog.Default())
	seen := make(map[string]bool)
	var all []model.Transaction

	for _, path := range files {
		f, err := os.Open(path) // #nosec G304
		if err != nil {
			slog.Error("Failed to open file", "file", path, "error", err)
			continue
		}

		transactions, err := parser.ParseFile(ctx, f)
		_ = f.Close()
		if errors.Is(err, common.ErrNoTransactions) {
			fmt.Fprintln(out, cli.FormatWarning(fmt.Sprintf("%s: no expenses found", filepath.Base(path))))
			continue
		}
		if err != nil {
			slog.Error("Failed to parse OFX file", "file", path, "error", err)
			continue
		}

		added := 0
		for _, tx := range transactions {
			if seen[tx.Hash] {
				continue
			}
			seen[tx.Hash] = true
			all = append(all, tx)
			added++
		}
		fmt.Fprintf(out, "  - %s: %d expenses (%d duplicates)\n", filepath.Base(path), added, len(transactions)-added)
	}

	if len(all) == 0 {
		fmt.Fprintln(out, cli.FormatWarning("No expenses found in any file"))
		return nil
	}

	summarizeImport(out, all)

	if dryRun {
		fmt.Fprintln(out, cli.FormatInfo("Dry run complete - no data saved"))
		return nil
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.SaveTransactions(ctx, all); err != nil {
		return fmt.Errorf("failed to save transactions: %w", err)
	}

	fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Saved %d expenses", len(all))))
	return nil
}

// summarizeImport prints the date range and total of the imported expenses.
func summarizeImport(out io.Writer, transactions []model.Transaction) {
	var oldest, newest time.Time
	total := 0.0
	for i, tx := range transactions {
		if i == 0 || tx.Date.Before(oldest) {
			oldest = tx.Date
		}
		if i == 0 || tx.Date.After(newest) {
			newest = tx.Date
		}
		total += tx.Amount
	}

	fmt.Fprintln(out, cli.FormatInfo(fmt.Sprintf("%d expenses from %s to %s, total %.2f",
		len(transactions),
		oldest.Format("2006-01-02"),
		newest.Format("2006-01-02"),
		total)))
}

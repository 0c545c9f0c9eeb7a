package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spence/internal/common"
	"github.com/Veraticus/spence/internal/engine"
	"github.com/Veraticus/spence/internal/forecast"
	"github.com/Veraticus/spence/internal/model"
	"github.com/Veraticus/spence/internal/plaid"
	"github.com/Veraticus/spence/internal/service"
	"github.com/Veraticus/spence/internal/sheets"
	"github.com/Veraticus/spence/internal/storage"
	"github.com/Veraticus/spence/internal/testutil"
)

const coffeeOFX = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20240315120000[0:GMT]
<LANGUAGE>ENG
</SONRS>
</SIGNONMSGSRSV1>
<BANKMSGSRSV1>
<STMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<STMTRS>
<CURDEF>USD
<BANKACCTFROM>
<BANKID>123456789
<ACCTID>1234567890
<ACCTTYPE>CHECKING
</BANKACCTFROM>
<BANKTRANLIST>
<DTSTART>20240101120000[0:GMT]
<DTEND>20240131120000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240115120000[0:GMT]
<TRNAMT>-25.50
<FITID>JAN01
<NAME>STARBUCKS
</STMTTRN>
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20240116120000[0:GMT]
<TRNAMT>1500.00
<FITID>JAN02
<NAME>PAYROLL
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>1000.00
<DTASOF>20240131120000[0:GMT]
</LEDGERBAL>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
}

func openStore(t *testing.T, dbPath string) *storage.SQLiteStorage {
	t.Helper()
	store, err := storage.NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestMigrateCmd(t *testing.T) {
	setupCommandEnv(t)

	out, err := execute(migrateCmd(), "--status")
	require.NoError(t, err)
	assert.Contains(t, out, "Schema version: 0 (latest 4)")
	assert.Contains(t, out, "Pending migrations")

	out, err = execute(migrateCmd())
	require.NoError(t, err)
	assert.Contains(t, out, "Database migrations completed successfully!")

	out, err = execute(migrateCmd(), "--status")
	require.NoError(t, err)
	assert.Contains(t, out, "Schema version: 4 (latest 4)")
	assert.NotContains(t, out, "Pending migrations")
}

func TestImportOFXCmd(t *testing.T) {
	dbPath := setupCommandEnv(t)
	file := filepath.Join(t.TempDir(), "checking.qfx")
	writeFile(t, file, coffeeOFX)

	out, err := execute(importOFXCmd(), "--user", "alice", file)
	require.NoError(t, err)
	assert.Contains(t, out, "checking.qfx: 1 expenses (0 duplicates)")
	assert.Contains(t, out, "Saved 1 expenses")

	// Importing the same statement again stores nothing new
	_, err = execute(importOFXCmd(), "--user", "alice", file)
	require.NoError(t, err)

	count, err := openStore(t, dbPath).GetTransactionCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestImportOFXCmd_DryRun(t *testing.T) {
	dbPath := setupCommandEnv(t)
	file := filepath.Join(t.TempDir(), "checking.qfx")
	writeFile(t, file, coffeeOFX)

	out, err := execute(importOFXCmd(), "--user", "alice", "--dry-run", file)
	require.NoError(t, err)
	assert.Contains(t, out, "Dry run complete")

	_, err = os.Stat(dbPath)
	assert.True(t, os.IsNotExist(err))
}

func TestImportOFXCmd_Errors(t *testing.T) {
	setupCommandEnv(t)

	_, err := execute(importOFXCmd(), "--user", "alice", filepath.Join(t.TempDir(), "*.qfx"))
	var userErr *common.UserError
	require.ErrorAs(t, err, &userErr)
	assert.Equal(t, "no files found to import", userErr.UserMessage)

	_, err = execute(importOFXCmd(), "statement.qfx")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user")
}

func TestAggregateCmd_Date(t *testing.T) {
	setupCommandEnv(t)
	file := filepath.Join(t.TempDir(), "checking.qfx")
	writeFile(t, file, coffeeOFX)

	_, err := execute(importOFXCmd(), "--user", "alice", file)
	require.NoError(t, err)

	out, err := execute(aggregateCmd(), "--date", "2024-01-15")
	require.NoError(t, err)
	assert.Contains(t, out, "Aggregated 2024-01-15: 1 user records written")

	out, err = execute(aggregateCmd(), "--date", "2024-01-20")
	require.NoError(t, err)
	assert.Contains(t, out, "0 user records written")
}

func TestAggregateCmd_InvalidFlags(t *testing.T) {
	setupCommandEnv(t)

	tests := []struct {
		name string
		args []string
	}{
		{name: "date and historical", args: []string{"--date", "2024-01-15", "--historical"}},
		{name: "bad date", args: []string{"--date", "15/01/2024"}},
		{name: "zero months", args: []string{"--historical", "--months", "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(aggregateCmd(), tt.args...)
			require.ErrorIs(t, err, common.ErrInvalidRequest)
		})
	}
}

func TestForecastCmd_JSON(t *testing.T) {
	dbPath := setupCommandEnv(t)
	db := testutil.SetupTestDBWithOptions(t, testutil.TestDBOptions{Path: dbPath})
	db.SeedHistory("alice", time.Now(), 90, func(i int, _ time.Time) float64 {
		if i%5 == 0 {
			return 0
		}
		return float64(40 + 10*(i%7))
	})

	out, err := execute(forecastCmd(), "--user", "alice", "--seed", "7", "--format", "json")
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "alice", doc["user_id"])
	days, ok := doc["daily_predictions"].([]any)
	require.True(t, ok)
	assert.Len(t, days, 30)

	stored, err := db.Storage.GetPrediction(context.Background(), "alice", engine.PredictionName)
	require.NoError(t, err)
	assert.Equal(t, "alice", stored["user_id"])
}

func TestForecastCmd_Errors(t *testing.T) {
	dbPath := setupCommandEnv(t)
	db := testutil.SetupTestDBWithOptions(t, testutil.TestDBOptions{Path: dbPath})
	db.SeedHistory("short", time.Now(), 3, func(int, time.Time) float64 { return 10 })

	_, err := execute(forecastCmd(), "--user", "short")
	var userErr *common.UserError
	require.ErrorAs(t, err, &userErr)
	assert.Contains(t, userErr.UserMessage, "Not enough history")
	require.ErrorIs(t, err, common.ErrInsufficientData)

	_, err = execute(forecastCmd(), "--user", "short", "--format", "yaml")
	require.ErrorIs(t, err, common.ErrInvalidRequest)
}

func TestDescribeForecastError(t *testing.T) {
	plain := errors.New("disk full")
	assert.Equal(t, plain, describeForecastError(plain))

	var userErr *common.UserError
	fitErr := &forecast.Error{Kind: forecast.KindModelFit, Message: "optimizer diverged"}
	err := describeForecastError(fitErr)
	require.ErrorAs(t, err, &userErr)
	assert.Contains(t, userErr.UserMessage, "could not be fitted")
	require.ErrorIs(t, err, common.ErrModelFit)

	emptyErr := &forecast.Error{Kind: forecast.KindEmptyInput, Message: "no records"}
	require.ErrorAs(t, describeForecastError(emptyErr), &userErr)
	assert.Contains(t, userErr.UserMessage, "run 'spence aggregate' first")
}

func newTestCommand(t *testing.T) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(buf)
	cmd.SetContext(context.Background())
	return cmd, buf
}

func TestImportFrom(t *testing.T) {
	dbPath := setupCommandEnv(t)
	cmd, out := newTestCommand(t)

	source := &plaid.MockClient{
		GetTransactionsFn: func(_ context.Context, start, end time.Time) ([]model.Transaction, error) {
			assert.Equal(t, 14, int(end.Sub(start).Hours()/24+0.5))
			return []model.Transaction{{
				ID:       "plaid-1",
				UserID:   "alice",
				Date:     end.AddDate(0, 0, -1),
				Amount:   12.5,
				Title:    "Lunch",
				Category: "Food and Drink",
			}}, nil
		},
	}

	require.NoError(t, importFrom(cmd, source, 14))
	assert.Contains(t, out.String(), "Saved 1 expenses")
	assert.Len(t, source.GetTransactionsCalls, 1)

	count, err := openStore(t, dbPath).GetTransactionCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestImportFrom_Errors(t *testing.T) {
	setupCommandEnv(t)
	cmd, out := newTestCommand(t)

	empty := &plaid.MockClient{}
	require.NoError(t, importFrom(cmd, empty, 7))
	assert.Contains(t, out.String(), "No expenses returned")

	failing := &plaid.MockClient{
		GetTransactionsFn: func(context.Context, time.Time, time.Time) ([]model.Transaction, error) {
			return nil, common.ErrPlaidConnection
		},
	}
	require.ErrorIs(t, importFrom(cmd, failing, 7), common.ErrPlaidConnection)
}

func TestExportForecast(t *testing.T) {
	cmd, out := newTestCommand(t)
	prediction := &engine.Prediction{Forecast: &model.Forecast{UserID: "alice"}}

	writer := sheets.NewMockWriter()
	require.NoError(t, exportForecast(cmd, writer, prediction))
	writer.AssertWriteCalled(t, 1)
	assert.Equal(t, "alice", writer.LastForecast.UserID)
	assert.Contains(t, out.String(), "exported to Google Sheets")

	writer.SetWriteError(common.ErrRateLimit)
	require.ErrorIs(t, exportForecast(cmd, writer, prediction), common.ErrRateLimit)
}

func TestPrintAggregation(t *testing.T) {
	_, out := newTestCommand(t)
	result := &service.AggregationResult{
		DateRange: service.DateRange{
			Start: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2026, 10, 3, 0, 0, 0, 0, time.UTC),
		},
		DaysProcessed:  2,
		DaysSkipped:    1,
		RecordsWritten: 4,
		Errors:         map[string]string{"2026-10-02": "boom"},
	}

	printAggregation(out, result)
	assert.Contains(t, out.String(), "Aggregated 2026-10-01 to 2026-10-03")
	assert.Contains(t, out.String(), "Days processed:   2")
	assert.Contains(t, out.String(), "2026-10-02: boom")
}

func TestImportCmd_Sources(t *testing.T) {
	setupCommandEnv(t)
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	_, err := execute(importCmd(), "--user", "alice", "--source", "mint")
	require.ErrorIs(t, err, common.ErrInvalidRequest)

	_, err = execute(importCmd(), "--user", "alice", "--days", "0")
	require.ErrorIs(t, err, common.ErrInvalidRequest)

	_, err = execute(importCmd(), "--user", "alice")
	require.ErrorIs(t, err, common.ErrMissingConfig)

	_, err = execute(importCmd(), "--user", "alice", "--source", "simplefin")
	require.ErrorIs(t, err, common.ErrMissingConfig)
}

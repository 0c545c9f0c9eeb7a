package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/Veraticus/spence/internal/common"
	"github.com/Veraticus/spence/internal/model"
	"github.com/Veraticus/spence/internal/service"
)

var forecastTabs = []string{SummaryTab, DailyTab, CategoriesTab}

// Writer exports forecasts to a Google spreadsheet.
type Writer struct {
	service *sheets.Service
	logger  *slog.Logger
	config  Config
}

var _ service.ForecastWriter = (*Writer)(nil)

// NewWriter creates a new Google Sheets forecast writer.
func NewWriter(ctx context.Context, config Config, logger *slog.Logger) (*Writer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	srv, err := createSheetsService(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return newWriterWithService(srv, config, logger), nil
}

func newWriterWithService(srv *sheets.Service, config Config, logger *slog.Logger) *Writer {
	return &Writer{
		config:  config,
		service: srv,
		logger:  common.Component(logger, "sheets"),
	}
}

// WriteForecast writes the summary, daily calendar and category tabs for a
// forecast, replacing whatever those tabs held before.
func (w *Writer) WriteForecast(ctx context.Context, forecast *model.Forecast) error {
	if forecast == nil {
		return fmt.Errorf("%w: nil forecast", common.ErrInvalidRequest)
	}
	data := BuildForecastData(forecast)

	w.logger.Info("starting forecast export",
		"user_id", data.UserID,
		"month", data.MonthName,
		"days", len(data.Daily),
		"categories", len(data.Categories))

	retryOpts := service.RetryOptions{
		MaxAttempts:  w.config.RetryAttempts,
		InitialDelay: w.config.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}

	var spreadsheetID string
	var sheetIDs map[string]int64
	err := common.WithRetry(ctx, func() error {
		var getErr error
		spreadsheetID, sheetIDs, getErr = w.getOrCreateSpreadsheet(ctx)
		return classify(getErr)
	}, retryOpts)
	if err != nil {
		return fmt.Errorf("failed to get spreadsheet: %w", err)
	}

	tabs := map[string][][]any{
		SummaryTab:    summaryValues(data),
		DailyTab:      dailyValues(data),
		CategoriesTab: categoryValues(data),
	}
	for _, tab := range forecastTabs {
		values := tabs[tab]
		err := common.WithRetry(ctx, func() error {
			if clearErr := w.clearSheet(ctx, spreadsheetID, tab); clearErr != nil {
				return classify(clearErr)
			}
			return classify(w.writeData(ctx, spreadsheetID, tab, values))
		}, retryOpts)
		if err != nil {
			return fmt.Errorf("failed to write %s tab: %w", tab, err)
		}
	}

	if w.config.EnableFormatting {
		err = common.WithRetry(ctx, func() error {
			return classify(w.applyFormatting(ctx, spreadsheetID, sheetIDs, data))
		}, retryOpts)
		if err != nil {
			// Formatting is cosmetic; the data is already written.
			w.logger.Warn("failed to apply formatting", "error", err)
		}
	}

	w.logger.Info("forecast export completed",
		"spreadsheet_id", spreadsheetID,
		"daily_rows", len(data.Daily))

	return nil
}

// classify marks client errors other than rate limiting as permanent.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests {
			return fmt.Errorf("%w: %w", common.ErrRateLimit, err)
		}
		if apiErr.Code >= 400 && apiErr.Code < 500 {
			return common.Permanent(err)
		}
	}
	return err
}

// createSheetsService creates a Google Sheets API service.
func createSheetsService(ctx context.Context, config Config) (*sheets.Service, error) {
	var tokenSource oauth2.TokenSource

	if config.ServiceAccountPath != "" {
		jsonKey, err := os.ReadFile(config.ServiceAccountPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read service account key file: %w", err)
		}

		jwtConfig, err := google.JWTConfigFromJSON(jsonKey, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("unable to parse service account key: %w", err)
		}

		tokenSource = jwtConfig.TokenSource(ctx)
	} else {
		token := &oauth2.Token{
			RefreshToken: config.RefreshToken,
			TokenType:    "Bearer",
		}
		tokenSource = newOAuthConfig(config.ClientID, config.ClientSecret, "").TokenSource(ctx, token)
	}

	httpClient := oauth2.NewClient(ctx, tokenSource)
	srv, err := sheets.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("unable to create sheets service: %w", err)
	}

	return srv, nil
}

// getOrCreateSpreadsheet returns the spreadsheet ID and the sheet ID of every
// forecast tab, creating the spreadsheet or any missing tab as needed.
func (w *Writer) getOrCreateSpreadsheet(ctx context.Context) (string, map[string]int64, error) {
	if w.config.SpreadsheetID == "" {
		return w.createSpreadsheet(ctx)
	}

	existing, err := w.service.Spreadsheets.Get(w.config.SpreadsheetID).Context(ctx).Do()
	if err != nil {
		return "", nil, fmt.Errorf("unable to access spreadsheet %s: %w", w.config.SpreadsheetID, err)
	}

	ids := make(map[string]int64, len(forecastTabs))
	for _, sheet := range existing.Sheets {
		if sheet.Properties != nil {
			ids[sheet.Properties.Title] = sheet.Properties.SheetId
		}
	}

	var requests []*sheets.Request
	for _, tab := range forecastTabs {
		if _, ok := ids[tab]; !ok {
			requests = append(requests, &sheets.Request{
				AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: tab}},
			})
		}
	}
	if len(requests) == 0 {
		return w.config.SpreadsheetID, ids, nil
	}

	resp, err := w.service.Spreadsheets.BatchUpdate(w.config.SpreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: requests,
	}).Context(ctx).Do()
	if err != nil {
		return "", nil, fmt.Errorf("unable to add forecast tabs: %w", err)
	}
	for _, reply := range resp.Replies {
		if reply != nil && reply.AddSheet != nil && reply.AddSheet.Properties != nil {
			ids[reply.AddSheet.Properties.Title] = reply.AddSheet.Properties.SheetId
		}
	}

	return w.config.SpreadsheetID, ids, nil
}

func (w *Writer) createSpreadsheet(ctx context.Context) (string, map[string]int64, error) {
	spreadsheet := &sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{
			Title:    w.config.SpreadsheetName,
			TimeZone: w.config.TimeZone,
		},
	}
	for _, tab := range forecastTabs {
		spreadsheet.Sheets = append(spreadsheet.Sheets, &sheets.Sheet{
			Properties: &sheets.SheetProperties{Title: tab},
		})
	}

	created, err := w.service.Spreadsheets.Create(spreadsheet).Context(ctx).Do()
	if err != nil {
		return "", nil, fmt.Errorf("unable to create spreadsheet: %w", err)
	}

	ids := make(map[string]int64, len(created.Sheets))
	for _, sheet := range created.Sheets {
		if sheet.Properties != nil {
			ids[sheet.Properties.Title] = sheet.Properties.SheetId
		}
	}

	w.logger.Info("created new spreadsheet",
		"id", created.SpreadsheetId,
		"url", created.SpreadsheetUrl)

	// Later exports reuse the same spreadsheet.
	w.config.SpreadsheetID = created.SpreadsheetId
	return created.SpreadsheetId, ids, nil
}

// clearSheet clears all data from one tab.
func (w *Writer) clearSheet(ctx context.Context, spreadsheetID, tab string) error {
	_, err := w.service.Spreadsheets.Values.Clear(spreadsheetID, tab+"!A:Z", &sheets.ClearValuesRequest{}).Context(ctx).Do()
	return err
}

// writeData writes values to a tab in batches to stay under API limits.
func (w *Writer) writeData(ctx context.Context, spreadsheetID, tab string, values [][]any) error {
	for i := 0; i < len(values); i += w.config.BatchSize {
		end := min(i+w.config.BatchSize, len(values))

		batch := values[i:end]
		rangeStr := fmt.Sprintf("%s!A%d", tab, i+1)
		_, err := w.service.Spreadsheets.Values.Update(spreadsheetID, rangeStr, &sheets.ValueRange{Values: batch}).
			ValueInputOption("USER_ENTERED").
			Context(ctx).
			Do()
		if err != nil {
			return fmt.Errorf("failed to write batch starting at row %d: %w", i+1, err)
		}

		w.logger.Debug("wrote batch", "tab", tab, "start_row", i+1, "rows", len(batch))
	}

	return nil
}

func summaryValues(data ForecastData) [][]any {
	fallback := "no"
	if data.UsedFallback {
		fallback = "yes"
	}
	return [][]any{
		{"Spending Forecast", data.MonthName},
		{},
		{"User", data.UserID},
		{"Period", fmt.Sprintf("%s - %s", data.StartDate.Format("Jan 2, 2006"), data.EndDate.Format("Jan 2, 2006"))},
		{"Predicted Total", data.Total.InexactFloat64()},
		{"Lower Bound", data.Lower.InexactFloat64()},
		{"Upper Bound", data.Upper.InexactFloat64()},
		{"Expected Zero-Spending Days", data.ExpectedZeroDays},
		{"Overall Confidence", data.Confidence.Overall},
		{"Data Quality", data.Confidence.DataQuality},
		{"Model Order", data.ModelOrder},
		{"Historical Fallback", fallback},
		{"Run ID", data.RunID},
		{"Generated At", data.GeneratedAt.Format(time.RFC3339)},
	}
}

func dailyValues(data ForecastData) [][]any {
	values := make([][]any, 0, len(data.Daily)+1)
	values = append(values, []any{
		"Date", "Weekday", "Predicted", "Lower", "Upper",
		"Likely Zero", "High Value", "Confidence", "Likely Categories",
	})
	for _, row := range data.Daily {
		values = append(values, []any{
			row.Date.Format("2006-01-02"),
			row.Weekday,
			row.Predicted.InexactFloat64(),
			row.Lower.InexactFloat64(),
			row.Upper.InexactFloat64(),
			row.LikelyZero,
			row.HighValue,
			row.Confidence,
			row.TopCategories,
		})
	}
	return values
}

func categoryValues(data ForecastData) [][]any {
	values := make([][]any, 0, len(data.Categories)+1)
	values = append(values, []any{"Category", "Predicted", "Share", "Confidence", "Top Items"})
	for _, row := range data.Categories {
		values = append(values, []any{
			row.Category,
			row.Predicted.InexactFloat64(),
			row.Share,
			row.Confidence / 100,
			row.TopItems,
		})
	}
	return values
}

func repeatFormat(sheetID, startRow, endRow, startCol, endCol int64, format *sheets.CellFormat, fields string) *sheets.Request {
	return &sheets.Request{
		RepeatCell: &sheets.RepeatCellRequest{
			Range: &sheets.GridRange{
				SheetId:          sheetID,
				StartRowIndex:    startRow,
				EndRowIndex:      endRow,
				StartColumnIndex: startCol,
				EndColumnIndex:   endCol,
			},
			Cell:   &sheets.CellData{UserEnteredFormat: format},
			Fields: fields,
		},
	}
}

// applyFormatting applies formatting to the forecast tabs.
func (w *Writer) applyFormatting(ctx context.Context, spreadsheetID string, sheetIDs map[string]int64, data ForecastData) error {
	currency := &sheets.CellFormat{NumberFormat: &sheets.NumberFormat{Type: "CURRENCY", Pattern: w.config.CurrencyPattern}}
	percent := &sheets.CellFormat{NumberFormat: &sheets.NumberFormat{Type: "PERCENT", Pattern: "0.0%"}}
	bold := &sheets.CellFormat{TextFormat: &sheets.TextFormat{Bold: true}}
	title := &sheets.CellFormat{TextFormat: &sheets.TextFormat{Bold: true, FontSize: 16}}

	summary := sheetIDs[SummaryTab]
	daily := sheetIDs[DailyTab]
	categories := sheetIDs[CategoriesTab]
	dailyRows := int64(len(data.Daily) + 1)
	categoryRows := int64(len(data.Categories) + 1)

	requests := []*sheets.Request{
		repeatFormat(summary, 0, 1, 0, 2, title, "userEnteredFormat.textFormat"),
		repeatFormat(summary, 2, 14, 0, 1, bold, "userEnteredFormat.textFormat"),
		repeatFormat(summary, 4, 7, 1, 2, currency, "userEnteredFormat.numberFormat"),
		repeatFormat(summary, 8, 10, 1, 2, percent, "userEnteredFormat.numberFormat"),
		repeatFormat(daily, 0, 1, 0, 9, bold, "userEnteredFormat.textFormat"),
		repeatFormat(daily, 1, dailyRows, 2, 5, currency, "userEnteredFormat.numberFormat"),
		repeatFormat(daily, 1, dailyRows, 7, 8, percent, "userEnteredFormat.numberFormat"),
		repeatFormat(categories, 0, 1, 0, 5, bold, "userEnteredFormat.textFormat"),
		repeatFormat(categories, 1, categoryRows, 1, 2, currency, "userEnteredFormat.numberFormat"),
		repeatFormat(categories, 1, categoryRows, 2, 4, percent, "userEnteredFormat.numberFormat"),
	}

	for _, tab := range []string{DailyTab, CategoriesTab} {
		requests = append(requests, &sheets.Request{
			UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
				Properties: &sheets.SheetProperties{
					SheetId:        sheetIDs[tab],
					GridProperties: &sheets.GridProperties{FrozenRowCount: 1},
				},
				Fields: "gridProperties.frozenRowCount",
			},
		})
	}
	for _, tab := range forecastTabs {
		requests = append(requests, &sheets.Request{
			AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
				Dimensions: &sheets.DimensionRange{
					SheetId:    sheetIDs[tab],
					Dimension:  "COLUMNS",
					StartIndex: 0,
					EndIndex:   9,
				},
			},
		})
	}

	_, err := w.service.Spreadsheets.BatchUpdate(spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: requests,
	}).Context(ctx).Do()
	return err
}

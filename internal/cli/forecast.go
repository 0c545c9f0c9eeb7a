package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/Veraticus/spence/internal/model"
)

// RenderForecast renders a forecast as a monthly summary box, a day-by-day
// calendar and a category table.
func RenderForecast(f *model.Forecast) string {
	sections := []string{
		FormatTitle(fmt.Sprintf("Spending forecast for %s", f.MonthlyPrediction.MonthName)),
		renderSummary(f),
		StyleSection(CalendarIcon + " Daily calendar"),
		renderCalendar(f.DailyPredictions),
	}
	if len(f.CategoryPredictions) > 0 {
		sections = append(sections,
			StyleSection(MoneyIcon+" Categories"),
			renderCategories(f.CategoryPredictions))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...) + "\n"
}

// StyleSection formats a section heading.
func StyleSection(text string) string {
	return BoldStyle.MarginTop(1).Render(text)
}

func renderSummary(f *model.Forecast) string {
	m := f.MonthlyPrediction
	lower, upper := 0.0, 0.0
	for _, p := range f.DailyPredictions {
		lower += p.ConfidenceInterval.Lower
		upper += p.ConfidenceInterval.Upper
	}

	lines := []string{
		fmt.Sprintf("User:             %s", f.UserID),
		fmt.Sprintf("Period:           %s to %s", m.StartDate.Format("Jan 2"), m.EndDate.Format("Jan 2, 2006")),
		fmt.Sprintf("Predicted total:  %s", HighlightStyle.Render(formatAmount(m.Total))),
		fmt.Sprintf("Model range:      %s - %s", formatAmount(lower), formatAmount(upper)),
		fmt.Sprintf("Zero-spend days:  %d", m.ExpectedZeroSpendingDays),
		fmt.Sprintf("Confidence:       %.0f%% (data quality %.0f%%)", m.ConfidenceMetrics.Overall*100, m.ConfidenceMetrics.DataQuality*100),
		SubtleStyle.Render(fmt.Sprintf("ARIMA%s  run %s", f.ModelInfo.SelectedOrder, f.ModelInfo.RunID)),
	}
	if m.UsedFallback {
		lines = append(lines, FormatWarning("Daily predictions summed to zero; total uses the historical daily average"))
	}
	return RenderBox("Monthly prediction", strings.Join(lines, "\n"))
}

func renderCalendar(days []model.DailyPrediction) string {
	rows := make([][]string, 0, len(days))
	for _, d := range days {
		note := ""
		switch {
		case d.IsLikelyZeroSpending:
			note = "no spend"
		case d.DayPattern.IsHighValueDay:
			note = "high value"
		}
		rows = append(rows, []string{
			d.Date.Format("Mon Jan 02"),
			formatAmount(d.PredictedAmount),
			fmt.Sprintf("%s - %s", formatAmount(d.ConfidenceInterval.Lower), formatAmount(d.ConfidenceInterval.Upper)),
			fmt.Sprintf("%.0f%%", d.Metadata.ConfidenceScore*100),
			strings.Join(d.Metadata.LikelyCategories, ", "),
			note,
		})
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(SubtleStyle).
		Headers("Date", "Predicted", "Range", "Conf", "Likely categories", "").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			style := TableCellStyle
			if row == table.HeaderRow {
				return style.Bold(true)
			}
			if row >= 0 && row < len(days) {
				switch {
				case days[row].IsLikelyZeroSpending:
					style = style.Foreground(SubtleColor)
				case days[row].DayPattern.IsHighValueDay && col == 1:
					style = style.Inherit(HighlightStyle)
				}
			}
			return style
		}).
		Render()
}

func renderCategories(categories map[string]model.CategoryPrediction) string {
	names := make([]string, 0, len(categories))
	for name := range categories {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := categories[names[i]], categories[names[j]]
		if a.PredictedAmount != b.PredictedAmount {
			return a.PredictedAmount > b.PredictedAmount
		}
		return names[i] < names[j]
	})

	rows := make([][]string, 0, len(names))
	for _, name := range names {
		c := categories[name]
		rows = append(rows, []string{
			name,
			formatAmount(c.PredictedAmount),
			fmt.Sprintf("%.1f%%", c.HistoricalShare*100),
			fmt.Sprintf("%.0f", c.Confidence),
			strings.Join(c.TopItems, ", "),
		})
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(SubtleStyle).
		Headers("Category", "Predicted", "Share", "Confidence", "Top items").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return TableCellStyle.Bold(true)
			}
			return TableCellStyle
		}).
		Render()
}

// formatAmount renders money with thousands separators and two decimals.
func formatAmount(v float64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	s := fmt.Sprintf("%.2f", v)
	intPart, frac := s[:len(s)-3], s[len(s)-3:]

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + b.String() + frac
}

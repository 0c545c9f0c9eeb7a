package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/schollz/progressbar/v3"
)

// ProgressBar reports back-fill progress on a terminal. It satisfies
// engine.Progress.
type ProgressBar struct {
	writer      io.Writer
	bar         *progressbar.ProgressBar
	description string
}

// NewProgressBar creates a progress bar that renders to writer once Total is
// called.
func NewProgressBar(writer io.Writer, description string) *ProgressBar {
	return &ProgressBar{writer: writer, description: description}
}

// Total sizes the bar.
func (p *ProgressBar) Total(days int) {
	p.bar = progressbar.NewOptions(days,
		progressbar.OptionSetWriter(p.writer),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]"+p.description+"[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(p.writer); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)
}

// Advance moves the bar one day forward.
func (p *ProgressBar) Advance(date string) {
	if p.bar == nil {
		return
	}
	p.bar.Describe(fmt.Sprintf("[cyan][bold]%s[reset] %s", p.description, date))
	if err := p.bar.Add(1); err != nil {
		slog.Warn("Failed to update progress bar", "error", err)
	}
}

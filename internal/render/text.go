package render

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"bepreport/internal/aggregate"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

// TextOptions controls terminal output rendering.
type TextOptions struct {
	ForceColor   bool
	ForceNoColor bool
	// Width overrides terminal width detection when > 0.
	Width int
}

// Text renders the report for a terminal: a summary table followed by the
// duration ranking and failure details.
func Text(w io.Writer, report aggregate.Report, opts TextOptions) error {
	useColor := resolveColorChoice(w, opts)
	width := resolveWidth(w, opts)

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft},
		{Number: 2, Align: text.AlignRight},
	})

	tw.AppendHeader(table.Row{"Outcome", "Count"})
	tw.AppendRow(table.Row{colorize(useColor, ansiGreen, "Successful"), report.SuccessCount})
	if report.CachedCount > 0 {
		tw.AppendRow(table.Row{"Cached", report.CachedCount})
	}
	if report.FailCount > 0 {
		tw.AppendRow(table.Row{colorize(useColor, ansiRed, "Failed"), report.FailCount})
	}
	if report.SkipCount > 0 {
		tw.AppendRow(table.Row{colorize(useColor, ansiYellow, "Skipped"), report.SkipCount})
	}
	tw.Render()

	if report.HasBuildDuration {
		fmt.Fprintf(w, "Build duration: %.2fs\n", report.BuildDurationSeconds)
	}

	if len(report.TestDurations) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Slowest tests:")
		for _, td := range report.TestDurations {
			fmt.Fprintf(w, "  %s: %.2fs\n", td.Label, td.Seconds)
		}
		if report.TestDurationOverflow > 0 {
			fmt.Fprintf(w, "  …and %d more\n", report.TestDurationOverflow)
		}
	}

	if len(report.FailureNotes) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, colorize(useColor, ansiRed, "Failure details:"))
		for _, note := range report.FailureNotes {
			fmt.Fprintln(w, strings.Repeat("-", min(width, 72)))
			fmt.Fprintln(w, stripMarkdown(note))
		}
	}

	for _, warning := range report.TruncationWarnings {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "%s %s\n", colorize(useColor, ansiYellow, "warning:"), warning)
	}

	return nil
}

// stripMarkdown removes the markdown emphasis used by failure notes so the
// terminal output stays plain.
func stripMarkdown(note string) string {
	note = strings.ReplaceAll(note, "**", "")
	note = strings.ReplaceAll(note, "`", "")
	return note
}

const (
	ansiReset  = "\x1b[0m"
	ansiGreen  = "\x1b[32m"
	ansiRed    = "\x1b[31m"
	ansiYellow = "\x1b[33m"
)

func colorize(enabled bool, code string, value string) string {
	if !enabled {
		return value
	}
	return code + value + ansiReset
}

func resolveColorChoice(w io.Writer, opts TextOptions) bool {
	if opts.ForceColor {
		return true
	}
	if opts.ForceNoColor {
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func resolveWidth(w io.Writer, opts TextOptions) int {
	if opts.Width > 0 {
		return opts.Width
	}
	if file, ok := w.(*os.File); ok {
		if width, _, err := term.GetSize(int(file.Fd())); err == nil && width > 0 {
			return width
		}
	}
	if cols := os.Getenv("COLUMNS"); cols != "" {
		if v, err := strconv.Atoi(cols); err == nil && v > 0 {
			return v
		}
	}
	return 80
}

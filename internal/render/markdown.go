// Package render turns an aggregated report into output documents.
package render

import (
	"fmt"
	"strings"

	"bepreport/internal/aggregate"
)

const truncationNotice = "> ⚠️ Results truncated to fit the annotation size limit."

// Markdown renders the report as a CI-annotation markdown document, bounded
// to maxBytes when maxBytes > 0. Deterministic: the same report always
// renders to byte-identical output.
func Markdown(report aggregate.Report, maxBytes int) string {
	doc := renderMarkdown(report, len(report.FailureNotes), false)
	if maxBytes <= 0 || len(doc) <= maxBytes {
		return doc
	}

	// Shed failure notes from the end until the document fits. The count
	// line and warnings always survive.
	for keep := len(report.FailureNotes) - 1; keep >= 0; keep-- {
		doc = renderMarkdown(report, keep, true)
		if len(doc) <= maxBytes {
			return doc
		}
	}

	// Still over budget with zero notes: cut at a line boundary.
	cut := maxBytes - len(truncationNotice) - 2
	if cut < 0 {
		cut = 0
	}
	doc = doc[:cut]
	if idx := strings.LastIndexByte(doc, '\n'); idx >= 0 {
		doc = doc[:idx]
	}
	return doc + "\n" + truncationNotice + "\n"
}

func renderMarkdown(report aggregate.Report, keepNotes int, truncated bool) string {
	var b strings.Builder

	b.WriteString("### ")
	b.WriteString(statusHeader(report))
	b.WriteString("\n\n")
	b.WriteString(countsLine(report))
	b.WriteString("\n")

	if len(report.TestDurations) > 0 {
		b.WriteString("\n<details>\n<summary>Test durations</summary>\n\n")
		for _, td := range report.TestDurations {
			fmt.Fprintf(&b, "- `%s`: %.2fs\n", td.Label, td.Seconds)
		}
		if report.TestDurationOverflow > 0 {
			fmt.Fprintf(&b, "- …and %d more\n", report.TestDurationOverflow)
		}
		b.WriteString("\n</details>\n")
	}

	if len(report.SuccessfulEntries) > 0 {
		b.WriteString("\n<details>\n<summary>Successfully built</summary>\n\n")
		for _, entry := range report.SuccessfulEntries {
			fmt.Fprintf(&b, "- `%s`\n", entry)
		}
		b.WriteString("\n</details>\n")
	}

	if report.FailCount > 0 && keepNotes > 0 {
		b.WriteString("\n<details open>\n<summary>Failure details</summary>\n\n")
		for i, note := range report.FailureNotes[:keepNotes] {
			if i > 0 {
				b.WriteString("\n---\n\n")
			}
			b.WriteString(note)
			b.WriteString("\n")
		}
		b.WriteString("\n</details>\n")
	}

	for _, warning := range report.TruncationWarnings {
		fmt.Fprintf(&b, "\n> ⚠️ %s\n", warning)
	}
	if truncated {
		b.WriteString("\n" + truncationNotice + "\n")
	}

	return b.String()
}

func statusHeader(report aggregate.Report) string {
	switch {
	case report.FailCount > 0:
		return "❌ Build failed"
	case report.SkipCount > 0 && report.SuccessCount == 0:
		return "⚠️ All targets skipped"
	default:
		return "✅ Build succeeded"
	}
}

// countsLine writes the fixed-order status line: success, cached, failed,
// skipped, then build duration when known.
func countsLine(report aggregate.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%d successful**", report.SuccessCount)
	if report.CachedCount > 0 {
		fmt.Fprintf(&b, " (%d cached)", report.CachedCount)
	}
	if report.FailCount > 0 {
		fmt.Fprintf(&b, ", **%d failed**", report.FailCount)
	}
	if report.SkipCount > 0 {
		fmt.Fprintf(&b, ", **%d skipped**", report.SkipCount)
	}
	if report.HasBuildDuration {
		fmt.Fprintf(&b, " — %.2fs", report.BuildDurationSeconds)
	}
	return b.String()
}

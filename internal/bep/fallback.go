package bep

import (
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
)

func init() {
	RegisterDecoder(FormatFallback, func(logger zerolog.Logger) Decoder {
		return &fallbackDecoder{logger: logger}
	})
}

// fallbackDecoder recognizes failure indicators by keyword matching over raw
// lines. It is strictly lower fidelity than the structured decoders: it may
// report a line as a generic failure without structured fields, but it never
// reports success for a line that plausibly indicates failure.
type fallbackDecoder struct {
	logger zerolog.Logger
}

func (d *fallbackDecoder) Format() Format { return FormatFallback }

var failureKeywords = []string{
	"failed",
	"failure",
	"error",
}

func (d *fallbackDecoder) Decode(r io.Reader, fn func(Event) error) error {
	d.logger.Warn().Msg("structured decode unavailable, falling back to keyword matching")

	scanner := newScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !containsFailureKeyword(line) {
			continue
		}

		event := Event{
			Kind:           KindTargetCompleted,
			Label:          extractLabel(line),
			Success:        false,
			FailureMessage: line,
		}
		if err := fn(event); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan event stream: %w", err)
	}
	return nil
}

func containsFailureKeyword(line string) bool {
	lower := strings.ToLower(line)
	for _, kw := range failureKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// extractLabel pulls the first //-prefixed Bazel label out of the line, if
// any. Without one the failure is reported against a generic label.
func extractLabel(line string) string {
	idx := strings.Index(line, "//")
	if idx < 0 {
		return "(unknown target)"
	}
	rest := line[idx:]
	end := strings.IndexFunc(rest, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\'' || r == '"' || r == ',' || r == ')'
	})
	if end < 0 {
		return rest
	}
	if end <= 2 {
		return "(unknown target)"
	}
	return rest[:end]
}

package aggregate

import (
	"fmt"
	"sort"
)

// maxRankedTests bounds the test-duration ranking in the report.
const maxRankedTests = 10

// TestDuration is one entry in the duration ranking.
type TestDuration struct {
	Label   string  `json:"label"`
	Seconds float64 `json:"seconds"`
}

// Report is the immutable result of one aggregation run.
type Report struct {
	SuccessCount int `json:"success_count"`
	FailCount    int `json:"fail_count"`
	SkipCount    int `json:"skip_count"`
	CachedCount  int `json:"cached_count"`

	BuildDurationSeconds float64 `json:"build_duration_seconds,omitempty"`
	HasBuildDuration     bool    `json:"-"`

	// SuccessfulEntries is deduplicated and lexicographically sorted.
	SuccessfulEntries []string `json:"successful_entries,omitempty"`

	// TestDurations holds at most maxRankedTests entries, slowest first.
	// TestDurationOverflow counts the tests beyond the ranking.
	TestDurations        []TestDuration `json:"test_durations,omitempty"`
	TestDurationOverflow int            `json:"test_duration_overflow,omitempty"`

	// FailureNotes stay in arrival order; chronological failure order is
	// part of the debugging narrative.
	FailureNotes []string `json:"failure_notes,omitempty"`

	TruncationWarnings []string `json:"truncation_warnings,omitempty"`
}

// Finalize consumes the state and produces the report. It is always callable,
// including after malformed records or a truncated stream.
func (s *State) Finalize() Report {
	report := Report{
		SuccessCount: s.successCount,
		FailCount:    s.failCount,
		SkipCount:    s.skipCount,
		CachedCount:  s.cachedCount,
		FailureNotes: s.failureNotes,
	}

	if s.buildStartMillis > 0 && s.buildEndMillis > s.buildStartMillis {
		report.BuildDurationSeconds = float64(s.buildEndMillis-s.buildStartMillis) / 1000.0
		report.HasBuildDuration = true
	}

	report.SuccessfulEntries = sortedUnique(s.successfulEntries)

	ranked := make([]TestDuration, 0, len(s.durationOrder))
	for _, label := range s.durationOrder {
		ranked = append(ranked, TestDuration{Label: label, Seconds: s.testDurations[label]})
	}
	// Stable keeps arrival order among equal durations.
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Seconds > ranked[j].Seconds
	})
	if len(ranked) > maxRankedTests {
		report.TestDurationOverflow = len(ranked) - maxRankedTests
		ranked = ranked[:maxRankedTests]
	}
	report.TestDurations = ranked

	warnings := append([]string(nil), s.warnings...)
	if s.droppedNotes > 0 {
		warnings = append(warnings, fmt.Sprintf(
			"Results truncated: showing first %d of %d failures.",
			len(s.failureNotes), s.failCount))
	}
	report.TruncationWarnings = warnings

	return report
}

func sortedUnique(entries []string) []string {
	if len(entries) == 0 {
		return nil
	}
	out := append([]string(nil), entries...)
	sort.Strings(out)
	unique := out[:1]
	for _, entry := range out[1:] {
		if entry != unique[len(unique)-1] {
			unique = append(unique, entry)
		}
	}
	return unique
}

// Package aggregate implements the streaming reducer that turns a build
// event stream into a status report.
package aggregate

import (
	"fmt"
	"math"

	"bepreport/internal/bep"
)

// Limits bounds how much failure detail the reducer retains.
type Limits struct {
	// MaxFailureNotes caps the number of failure-detail blocks kept.
	// Failures past the cap are still counted.
	MaxFailureNotes int
	// MaxMessageBytes caps an individual failure message.
	MaxMessageBytes int
}

// DefaultLimits mirrors the analyzer's historical defaults.
func DefaultLimits() Limits {
	return Limits{
		MaxFailureNotes: 50,
		MaxMessageBytes: 5000,
	}
}

// State accumulates outcome statistics over one event stream. It is owned by
// a single aggregation run and mutated strictly in arrival order.
type State struct {
	limits Limits

	successCount int
	failCount    int
	skipCount    int
	cachedCount  int

	// seen holds labels already counted as successful, so a label reported
	// by both TargetConfigured and TargetCompleted counts once.
	seen map[string]struct{}

	successfulEntries []string

	testDurations map[string]float64
	durationOrder []string

	failureNotes []string
	droppedNotes int

	buildStartMillis int64
	buildEndMillis   int64

	warnings []string
}

// New returns a fresh State for one aggregation run.
func New(limits Limits) *State {
	return &State{
		limits:        limits,
		seen:          make(map[string]struct{}),
		testDurations: make(map[string]float64),
	}
}

// Step folds one event into the state. Single-threaded by contract: the
// first-occurrence dedup rule and failure-note ordering depend on arrival
// order.
func (s *State) Step(event bep.Event) {
	switch event.Kind {
	case bep.KindBuildStarted:
		// A zero/absent timestamp never clobbers a recorded one.
		if event.TimeMillis > 0 {
			s.buildStartMillis = event.TimeMillis
		}

	case bep.KindBuildFinished:
		if event.TimeMillis > 0 {
			s.buildEndMillis = event.TimeMillis
		}

	case bep.KindTargetConfigured:
		s.countSuccess(event.Label, event.Label)

	case bep.KindTargetCompleted:
		s.stepTargetCompleted(event)

	case bep.KindTargetSkipped:
		s.skipCount++

	case bep.KindTestResult:
		s.stepTestResult(event)
	}
}

// AddWarning records an externally detected truncation (e.g. the input file
// exceeded the configured byte cap) so the report can surface it.
func (s *State) AddWarning(msg string) {
	s.warnings = append(s.warnings, msg)
}

// FailCount reports the failures seen so far. Exposed so a caller can decide
// the annotation style and process exit status.
func (s *State) FailCount() int { return s.failCount }

func (s *State) stepTargetCompleted(event bep.Event) {
	if event.Success {
		counted := s.countSuccess(event.Label, event.Label)
		// Cached reuse is only meaningful for work that succeeded, and is
		// deduplicated together with the success so cachedCount can never
		// exceed successCount.
		if event.Cached && counted {
			s.cachedCount++
		}
		return
	}

	s.failCount++
	message := event.FailureMessage
	if message == "" {
		message = "Unknown error"
	}
	s.appendFailureNote(renderTargetFailure(event.Label, s.clip(message)))
}

func (s *State) stepTestResult(event bep.Event) {
	seconds := normalizeTestSeconds(event.DurationMillis)

	// Every test is ranked by duration regardless of outcome. Last write
	// wins on a repeated label; first arrival keeps its rank position.
	if _, ok := s.testDurations[event.Label]; !ok {
		s.durationOrder = append(s.durationOrder, event.Label)
	}
	s.testDurations[event.Label] = seconds

	switch event.Status {
	case bep.TestStatusPassed:
		s.countSuccess(event.Label, event.Label+" (test)")
	case bep.TestStatusFlaky:
		s.countSuccess(event.Label, event.Label+" (flaky ⚠️)")
	default:
		s.failCount++
		event.FailureMessage = s.clip(event.FailureMessage)
		s.appendFailureNote(renderTestFailure(event, seconds))
	}
}

// countSuccess counts label once across event kinds and appends entry to the
// successful list. Reports whether this call did the counting.
func (s *State) countSuccess(label, entry string) bool {
	if _, ok := s.seen[label]; ok {
		return false
	}
	s.seen[label] = struct{}{}
	s.successCount++
	s.successfulEntries = append(s.successfulEntries, entry)
	return true
}

func (s *State) appendFailureNote(note string) {
	if s.limits.MaxFailureNotes > 0 && len(s.failureNotes) >= s.limits.MaxFailureNotes {
		s.droppedNotes++
		return
	}
	s.failureNotes = append(s.failureNotes, note)
}

func (s *State) clip(message string) string {
	max := s.limits.MaxMessageBytes
	if max <= 0 || len(message) <= max {
		return message
	}
	return message[:max] + "… (message truncated)"
}

// normalizeTestSeconds converts a test duration to seconds with two-decimal
// precision. A zero/absent duration means missing instrumentation, not an
// instantaneous test, and defaults to one second.
func normalizeTestSeconds(millis int64) float64 {
	if millis <= 0 {
		millis = 1000
	}
	return math.Round(float64(millis)/10.0) / 100.0
}

func renderTargetFailure(label, message string) string {
	note := fmt.Sprintf("**`%s`**\n%s", label, message)
	if hint, ok := dependencyHint(message); ok {
		note += "\n> Hint: " + hint
	}
	return note
}

func renderTestFailure(event bep.Event, seconds float64) string {
	note := fmt.Sprintf("**`%s`** — %s after %.2fs", event.Label, event.Status, seconds)
	if event.FailureMessage != "" {
		note += "\n" + event.FailureMessage
	}
	if event.LogURI != "" {
		note += fmt.Sprintf("\n[Test log](%s)", event.LogURI)
	} else {
		note += "\nDetailed logs unavailable."
	}
	return note
}

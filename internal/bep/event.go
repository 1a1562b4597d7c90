// Package bep provides types and decoders for Bazel Build Event Protocol streams.
package bep

// Kind identifies the event kinds consumed for status reporting. Every other
// BEP record kind is ignored.
type Kind string

const (
	KindBuildStarted     Kind = "build_started"
	KindBuildFinished    Kind = "build_finished"
	KindTargetConfigured Kind = "target_configured"
	KindTargetCompleted  Kind = "target_completed"
	KindTargetSkipped    Kind = "target_skipped"
	KindTestResult       Kind = "test_result"
)

// TestStatus captures the "testResult.status" values observed in BEP streams.
type TestStatus string

const (
	TestStatusPassed  TestStatus = "PASSED"
	TestStatusFailed  TestStatus = "FAILED"
	TestStatusFlaky   TestStatus = "FLAKY"
	TestStatusTimeout TestStatus = "TIMEOUT"
	TestStatusUnknown TestStatus = "UNKNOWN"
)

// Passing reports whether the status counts toward success. FLAKY passes by
// policy but is visually distinguished by the aggregator.
func (s TestStatus) Passing() bool {
	return s == TestStatusPassed || s == TestStatusFlaky
}

// Event is one decoded build event. Only the fields relevant to the event's
// Kind are populated; the rest stay zero.
type Event struct {
	Kind Kind

	// Label names the target or test for target/test events.
	Label string

	// BuildStarted / BuildFinished.
	TimeMillis int64

	// TargetCompleted.
	Success        bool
	Cached         bool
	FailureMessage string

	// TestResult.
	Status         TestStatus
	DurationMillis int64
	LogURI         string
}

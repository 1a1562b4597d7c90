package bep

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/rs/zerolog"
)

func init() {
	RegisterDecoder(FormatJSONL, func(logger zerolog.Logger) Decoder {
		return &jsonlDecoder{logger: logger}
	})
}

type jsonlDecoder struct {
	logger zerolog.Logger
}

func (d *jsonlDecoder) Format() Format { return FormatJSONL }

// Decode walks newline-delimited JSON build events. A line that fails to
// parse is logged and skipped; record kinds outside the reporting set are
// ignored silently.
func (d *jsonlDecoder) Decode(r io.Reader, fn func(Event) error) error {
	scanner := newScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		event, ok, err := decodeRecord(raw)
		if err != nil {
			d.logger.Warn().Int("line", lineNo).Err(err).Msg("skipping malformed record")
			continue
		}
		if !ok {
			continue
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

func newScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	// Allow large payloads such as full compiler output in failure details.
	const maxCapacity = 8 * 1024 * 1024
	buf := make([]byte, 1024)
	scanner.Buffer(buf, maxCapacity)
	return scanner
}

// flexInt64 tolerates the proto-JSON habit of encoding int64 as a quoted
// string as well as a plain number.
type flexInt64 int64

func (v *flexInt64) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*v = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*v = 0
			return nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("parse int64 string: %w", err)
		}
		*v = flexInt64(n)
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*v = flexInt64(n)
	return nil
}

type labelRef struct {
	Label string `json:"label"`
}

type rawID struct {
	Started          json.RawMessage `json:"started"`
	BuildFinished    json.RawMessage `json:"buildFinished"`
	TargetConfigured *labelRef       `json:"targetConfigured"`
	TargetCompleted  *labelRef       `json:"targetCompleted"`
	TestResult       *labelRef       `json:"testResult"`
}

type startedPayload struct {
	StartTimeMillis flexInt64 `json:"startTimeMillis"`
	StartTime       *struct {
		Seconds flexInt64 `json:"seconds"`
	} `json:"startTime"`
}

type finishedPayload struct {
	FinishTimeMillis flexInt64 `json:"finishTimeMillis"`
	FinishTime       *struct {
		Seconds flexInt64 `json:"seconds"`
	} `json:"finishTime"`
}

type completedPayload struct {
	Success        bool   `json:"success"`
	Cached         bool   `json:"cached"`
	FailureMessage string `json:"failureMessage"`
}

type abortedPayload struct {
	Reason      string `json:"reason"`
	Description string `json:"description"`
}

type testActionOutput struct {
	Name string `json:"name"`
	URI  string `json:"uri"`
}

type testResultPayload struct {
	Status                    string             `json:"status"`
	TestAttemptDurationMillis flexInt64          `json:"testAttemptDurationMillis"`
	CachedLocally             bool               `json:"cachedLocally"`
	TestActionOutput          []testActionOutput `json:"testActionOutput"`
}

type rawRecord struct {
	ID                 *rawID             `json:"id"`
	Started            *startedPayload    `json:"started"`
	Finished           *finishedPayload   `json:"finished"`
	Completed          *completedPayload  `json:"completed"`
	Aborted            *abortedPayload    `json:"aborted"`
	TestResult         *testResultPayload `json:"testResult"`
	TestFailureMessage string             `json:"testFailureMessage"`
}

// decodeRecord turns one raw JSON build event into a typed Event. The second
// return is false when the record kind is not part of the reporting set.
func decodeRecord(raw []byte) (Event, bool, error) {
	var rec rawRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Event{}, false, fmt.Errorf("unmarshal record: %w", err)
	}

	if rec.Started != nil {
		millis := int64(rec.Started.StartTimeMillis)
		if millis == 0 && rec.Started.StartTime != nil {
			millis = int64(rec.Started.StartTime.Seconds) * 1000
		}
		return Event{Kind: KindBuildStarted, TimeMillis: millis}, true, nil
	}

	if rec.Finished != nil {
		millis := int64(rec.Finished.FinishTimeMillis)
		if millis == 0 && rec.Finished.FinishTime != nil {
			millis = int64(rec.Finished.FinishTime.Seconds) * 1000
		}
		return Event{Kind: KindBuildFinished, TimeMillis: millis}, true, nil
	}

	if rec.ID == nil {
		return Event{}, false, nil
	}

	switch {
	case rec.ID.TestResult != nil:
		return decodeTestResult(rec), true, nil

	case rec.ID.TargetCompleted != nil:
		label := rec.ID.TargetCompleted.Label
		if label == "" {
			return Event{}, false, errors.New("targetCompleted record without label")
		}
		if rec.Aborted != nil && rec.Aborted.Reason == "SKIPPED" {
			return Event{Kind: KindTargetSkipped, Label: label}, true, nil
		}
		event := Event{Kind: KindTargetCompleted, Label: label}
		if rec.Completed != nil {
			event.Success = rec.Completed.Success
			event.Cached = rec.Completed.Cached
			event.FailureMessage = rec.Completed.FailureMessage
		}
		if event.FailureMessage == "" && rec.Aborted != nil {
			event.FailureMessage = rec.Aborted.Description
		}
		return event, true, nil

	case rec.ID.TargetConfigured != nil:
		label := rec.ID.TargetConfigured.Label
		if label == "" {
			return Event{}, false, errors.New("targetConfigured record without label")
		}
		return Event{Kind: KindTargetConfigured, Label: label}, true, nil
	}

	return Event{}, false, nil
}

func decodeTestResult(rec rawRecord) Event {
	event := Event{
		Kind:   KindTestResult,
		Label:  rec.ID.TestResult.Label,
		Status: TestStatusUnknown,
	}

	if rec.TestResult != nil {
		if rec.TestResult.Status != "" {
			event.Status = TestStatus(rec.TestResult.Status)
		}
		event.DurationMillis = int64(rec.TestResult.TestAttemptDurationMillis)
		event.Cached = rec.TestResult.CachedLocally
		for _, out := range rec.TestResult.TestActionOutput {
			if out.URI != "" {
				event.LogURI = out.URI
				break
			}
		}
	}
	event.FailureMessage = rec.TestFailureMessage
	return event
}

package bep

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeAll(t *testing.T, d Decoder, input string) []Event {
	t.Helper()
	var events []Event
	err := d.Decode(strings.NewReader(input), func(event Event) error {
		events = append(events, event)
		return nil
	})
	require.NoError(t, err)
	return events
}

func TestJSONLDecoder_EventKinds(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Event
	}{
		{
			name: "build started",
			line: `{"started": {"startTimeMillis": "1642000000000"}}`,
			want: Event{Kind: KindBuildStarted, TimeMillis: 1642000000000},
		},
		{
			name: "build started seconds form",
			line: `{"started": {"uuid": "abc", "startTime": {"seconds": 1642000000}}}`,
			want: Event{Kind: KindBuildStarted, TimeMillis: 1642000000000},
		},
		{
			name: "build finished",
			line: `{"finished": {"finishTimeMillis": 1642000120000}}`,
			want: Event{Kind: KindBuildFinished, TimeMillis: 1642000120000},
		},
		{
			name: "target configured",
			line: `{"id": {"targetConfigured": {"label": "//a:b"}}, "configured": {}}`,
			want: Event{Kind: KindTargetConfigured, Label: "//a:b"},
		},
		{
			name: "target completed success",
			line: `{"id": {"targetCompleted": {"label": "//a:b"}}, "completed": {"success": true}}`,
			want: Event{Kind: KindTargetCompleted, Label: "//a:b", Success: true},
		},
		{
			name: "target completed cached",
			line: `{"id": {"targetCompleted": {"label": "//a:b"}}, "completed": {"success": true, "cached": true}}`,
			want: Event{Kind: KindTargetCompleted, Label: "//a:b", Success: true, Cached: true},
		},
		{
			name: "target completed failure with aborted description",
			line: `{"id": {"targetCompleted": {"label": "//a:b"}}, "completed": {"success": false}, "aborted": {"reason": "BUILD_FAILED", "description": "boom"}}`,
			want: Event{Kind: KindTargetCompleted, Label: "//a:b", FailureMessage: "boom"},
		},
		{
			name: "target skipped via aborted",
			line: `{"id": {"targetCompleted": {"label": "//a:b"}}, "aborted": {"reason": "SKIPPED"}}`,
			want: Event{Kind: KindTargetSkipped, Label: "//a:b"},
		},
		{
			name: "test passed",
			line: `{"id": {"testResult": {"label": "//a:t"}}, "testResult": {"status": "PASSED", "testAttemptDurationMillis": "1234"}}`,
			want: Event{Kind: KindTestResult, Label: "//a:t", Status: TestStatusPassed, DurationMillis: 1234},
		},
		{
			name: "test failed with log",
			line: `{"id": {"testResult": {"label": "//a:t"}}, "testResult": {"status": "FAILED", "testAttemptDurationMillis": "500", "testActionOutput": [{"name": "test.log", "uri": "file:///tmp/test.log"}]}}`,
			want: Event{Kind: KindTestResult, Label: "//a:t", Status: TestStatusFailed, DurationMillis: 500, LogURI: "file:///tmp/test.log"},
		},
		{
			name: "test result without status",
			line: `{"id": {"testResult": {"label": "//a:t"}}, "testResult": {}}`,
			want: Event{Kind: KindTestResult, Label: "//a:t", Status: TestStatusUnknown},
		},
	}

	d := &jsonlDecoder{logger: zerolog.Nop()}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := decodeAll(t, d, tt.line+"\n")
			require.Len(t, events, 1)
			assert.Equal(t, tt.want, events[0])
		})
	}
}

func TestJSONLDecoder_SkipsMalformedAndIrrelevant(t *testing.T) {
	input := strings.Join([]string{
		`{"id": {"targetCompleted": {"label": "//a:b"}}, "completed": {"success": true}}`,
		`this is not json`,
		`{"id": {"progress": {}}, "progress": {"stderr": "..."}}`,
		``,
		`{"id": {"targetCompleted": {"label": "//a:c"}}, "completed": {"success": true}}`,
	}, "\n")

	d := &jsonlDecoder{logger: zerolog.Nop()}
	events := decodeAll(t, d, input)

	require.Len(t, events, 2)
	assert.Equal(t, "//a:b", events[0].Label)
	assert.Equal(t, "//a:c", events[1].Label)
}

func TestJSONLDecoder_MissingLabelIsMalformed(t *testing.T) {
	input := `{"id": {"targetCompleted": {}}, "completed": {"success": true}}` + "\n"

	d := &jsonlDecoder{logger: zerolog.Nop()}
	events := decodeAll(t, d, input)
	assert.Empty(t, events)
}

func TestFlexInt64(t *testing.T) {
	tests := []struct {
		name string
		json string
		want int64
	}{
		{"quoted", `"1234"`, 1234},
		{"number", `1234`, 1234},
		{"null", `null`, 0},
		{"empty string", `""`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v flexInt64
			require.NoError(t, v.UnmarshalJSON([]byte(tt.json)))
			assert.Equal(t, tt.want, int64(v))
		})
	}
}

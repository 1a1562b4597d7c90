package bep

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFallbackDecoder_ReportsFailuresOnly(t *testing.T) {
	input := strings.Join([]string{
		"INFO: Build option --keep_going has changed",
		"FAILED: //test:target build failed",
		"Target //app:app up-to-date",
		"ERROR: missing input file",
		"build completed successfully",
	}, "\n")

	d := &fallbackDecoder{logger: zerolog.Nop()}
	var events []Event
	err := d.Decode(strings.NewReader(input), func(event Event) error {
		events = append(events, event)
		return nil
	})
	require.NoError(t, err)

	// "build completed successfully" contains no failure keyword beyond
	// "completed"; the two failure lines and nothing else must surface.
	require.Len(t, events, 2)
	for _, event := range events {
		assert.Equal(t, KindTargetCompleted, event.Kind)
		assert.False(t, event.Success)
		assert.NotEmpty(t, event.FailureMessage)
	}
	assert.Equal(t, "//test:target", events[0].Label)
	assert.Equal(t, "(unknown target)", events[1].Label)
}

func TestFallbackDecoder_NeverSynthesizesSuccess(t *testing.T) {
	input := "everything went fine\nall targets built\n"

	d := &fallbackDecoder{logger: zerolog.Nop()}
	err := d.Decode(strings.NewReader(input), func(Event) error {
		t.Fatal("no events expected for non-failure input")
		return nil
	})
	require.NoError(t, err)
}

func TestExtractLabel(t *testing.T) {
	tests := []struct {
		name string
		line string
		want string
	}{
		{"plain label", "FAILED: //a:b build failed", "//a:b"},
		{"quoted label", "ERROR: no such target '//pkg:missing'", "//pkg:missing"},
		{"label at end", "build failure in //x:y", "//x:y"},
		{"no label", "ERROR: something broke", "(unknown target)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractLabel(tt.line))
		})
	}
}

package bep

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frameStream(t *testing.T, bodies ...string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	for _, body := range bodies {
		require.NoError(t, WriteFrame(&buf, []byte(body)))
	}
	return &buf
}

func TestBinaryDecoder_Roundtrip(t *testing.T) {
	buf := frameStream(t,
		`{"started": {"startTimeMillis": "1000"}}`,
		`{"id": {"targetCompleted": {"label": "//a:b"}}, "completed": {"success": true}}`,
		`{"id": {"testResult": {"label": "//a:t"}}, "testResult": {"status": "FAILED", "testAttemptDurationMillis": "2500"}}`,
		`{"finished": {"finishTimeMillis": "9000"}}`,
	)

	d := &binaryDecoder{logger: zerolog.Nop()}
	var events []Event
	err := d.Decode(buf, func(event Event) error {
		events = append(events, event)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, events, 4)
	assert.Equal(t, KindBuildStarted, events[0].Kind)
	assert.Equal(t, "//a:b", events[1].Label)
	assert.Equal(t, TestStatusFailed, events[2].Status)
	assert.Equal(t, int64(9000), events[3].TimeMillis)
}

func TestBinaryDecoder_SkipsMalformedFrame(t *testing.T) {
	buf := frameStream(t,
		`{"id": {"targetCompleted": {"label": "//a:b"}}, "completed": {"success": true}}`,
		`not json at all`,
		`{"id": {"targetCompleted": {"label": "//a:c"}}, "completed": {"success": true}}`,
	)

	d := &binaryDecoder{logger: zerolog.Nop()}
	var labels []string
	err := d.Decode(buf, func(event Event) error {
		labels = append(labels, event.Label)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"//a:b", "//a:c"}, labels)
}

func TestBinaryDecoder_ResyncAfterCorruptPrefix(t *testing.T) {
	var buf bytes.Buffer
	// A run of 0xff bytes decodes to an implausible frame length; the
	// decoder must advance past it and pick up the intact frame beyond.
	buf.Write(bytes.Repeat([]byte{0xff}, 12))
	buf.WriteByte(0x00)
	require.NoError(t, WriteFrame(&buf,
		[]byte(`{"id": {"targetCompleted": {"label": "//a:b"}}, "completed": {"success": true}}`)))

	d := &binaryDecoder{logger: zerolog.Nop()}
	var labels []string
	err := d.Decode(&buf, func(event Event) error {
		labels = append(labels, event.Label)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"//a:b"}, labels)
}

func TestBinaryDecoder_TruncatedFinalFrame(t *testing.T) {
	buf := frameStream(t,
		`{"id": {"targetCompleted": {"label": "//a:b"}}, "completed": {"success": true}}`,
	)
	// A length prefix promising more bytes than remain.
	buf.WriteByte(0x40)
	buf.WriteString(`{"tr`)

	d := &binaryDecoder{logger: zerolog.Nop()}
	var labels []string
	err := d.Decode(buf, func(event Event) error {
		labels = append(labels, event.Label)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"//a:b"}, labels)
}

func TestBinaryDecoder_EmptyStream(t *testing.T) {
	d := &binaryDecoder{logger: zerolog.Nop()}
	err := d.Decode(bytes.NewReader(nil), func(Event) error {
		t.Fatal("no events expected")
		return nil
	})
	require.NoError(t, err)
}

package bep

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/rs/zerolog"
)

// maxFrameBytes caps a single varint-prefixed frame. Larger prefixes are
// treated as framing corruption.
const maxFrameBytes = 16 * 1024 * 1024

// maxVarintBytes bounds the length prefix itself.
const maxVarintBytes = 10

func init() {
	RegisterDecoder(FormatBinary, func(logger zerolog.Logger) Decoder {
		return &binaryDecoder{logger: logger}
	})
}

type binaryDecoder struct {
	logger zerolog.Logger
}

func (d *binaryDecoder) Format() Format { return FormatBinary }

// Decode walks varint-length-prefixed frames, each carrying one JSON build
// event. A corrupt or implausible length prefix resynchronizes by advancing
// one byte at a time until a plausible frame boundary is found; a frame
// whose body fails to parse is skipped on its own.
func (d *binaryDecoder) Decode(r io.Reader, fn func(Event) error) error {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReaderSize(r, 64*1024)
	}

	offset := int64(0)
	resyncBytes := 0
	for {
		head, err := br.Peek(maxVarintBytes)
		if err != nil && err != io.EOF {
			return fmt.Errorf("read frame length at offset %d: %w", offset, err)
		}
		if len(head) == 0 {
			if resyncBytes > 0 {
				d.logger.Warn().Int("bytes", resyncBytes).Msg("discarded trailing corrupt framing")
			}
			return nil
		}

		length, n := decodeVarint(head)
		if n == 0 || length == 0 || length > maxFrameBytes || !plausibleBody(head, n) {
			// Corrupt prefix: advance one byte and retry.
			if _, err := br.Discard(1); err != nil {
				return fmt.Errorf("resync at offset %d: %w", offset, err)
			}
			offset++
			resyncBytes++
			continue
		}
		if resyncBytes > 0 {
			d.logger.Warn().Int64("offset", offset).Int("bytes", resyncBytes).
				Msg("resynchronized after corrupt framing")
			resyncBytes = 0
		}
		if _, err := br.Discard(n); err != nil {
			return fmt.Errorf("read frame length at offset %d: %w", offset, err)
		}
		offset += int64(n)

		frame := make([]byte, length)
		if _, err := io.ReadFull(br, frame); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				d.logger.Warn().Int64("offset", offset).Msg("truncated final frame")
				return nil
			}
			return fmt.Errorf("read frame at offset %d: %w", offset, err)
		}
		offset += int64(length)

		event, ok, err := decodeRecord(frame)
		if err != nil {
			d.logger.Warn().Int64("offset", offset).Err(err).Msg("skipping malformed frame")
			continue
		}
		if !ok {
			continue
		}
		if err := fn(event); err != nil {
			return err
		}
	}
}

// WriteFrame writes one varint-length-prefixed frame. Shared by the fixture
// generator and tests.
func WriteFrame(w io.Writer, body []byte) error {
	var prefix [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(prefix[:], uint64(len(body)))
	if _, err := w.Write(prefix[:n]); err != nil {
		return fmt.Errorf("write frame prefix: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("write frame body: %w", err)
	}
	return nil
}

// plausibleBody checks that the byte after the length prefix could start a
// JSON frame body. Resynchronization relies on this: corrupt bytes can form
// an arithmetically valid length prefix that would swallow intact frames.
func plausibleBody(head []byte, prefixLen int) bool {
	if prefixLen >= len(head) {
		// Body starts beyond the probe window; give it the benefit of
		// the doubt.
		return true
	}
	switch head[prefixLen] {
	case '{', ' ', '\t', '\r', '\n':
		return true
	default:
		return false
	}
}

// decodeVarint decodes a varint from buf without consuming a reader. Returns
// (0, 0) when buf does not hold a complete valid prefix.
func decodeVarint(buf []byte) (value uint64, bytesRead int) {
	var shift uint
	for i, b := range buf {
		if i >= maxVarintBytes {
			return 0, 0
		}
		value |= uint64(b&0x7f) << shift
		if b < 0x80 {
			return value, i + 1
		}
		shift += 7
	}
	return 0, 0
}

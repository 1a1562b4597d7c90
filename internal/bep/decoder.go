package bep

import (
	"bufio"
	"fmt"
	"io"

	"github.com/rs/zerolog"
)

// Format identifies an input encoding for a BEP stream.
type Format string

const (
	// FormatJSONL is newline-delimited JSON build events.
	FormatJSONL Format = "jsonl"
	// FormatBinary is varint-length-prefixed framed build events.
	FormatBinary Format = "binary"
	// FormatFallback is the degraded keyword-matching decoder used when
	// neither structured encoding applies.
	FormatFallback Format = "fallback"
)

// Decoder walks a raw event stream and calls fn for each event it can decode.
// Records that fail to decode are logged and skipped; a decoder only returns
// an error for unrecoverable stream conditions (I/O failure).
type Decoder interface {
	Format() Format
	Decode(r io.Reader, fn func(Event) error) error
}

// DecoderFactory builds a Decoder bound to a logger.
type DecoderFactory func(logger zerolog.Logger) Decoder

var decoderFactories = map[Format]DecoderFactory{}

// RegisterDecoder registers a factory for the given format. Packages register
// their decoders from init so the probe can instantiate any of them.
func RegisterDecoder(format Format, factory DecoderFactory) {
	decoderFactories[format] = factory
}

// NewDecoder creates a decoder for the given format.
func NewDecoder(format Format, logger zerolog.Logger) (Decoder, error) {
	factory, ok := decoderFactories[format]
	if ok {
		return factory(logger), nil
	}
	return nil, fmt.Errorf("no decoder registered for format %q", format)
}

// DetectFormat probes the first bytes of the stream and picks a decoder
// format. The returned reader replays the probed bytes, so callers must use
// it in place of r. Empty input is reported as JSONL: every decoder yields
// zero events for it anyway.
func DetectFormat(r io.Reader) (Format, io.Reader, error) {
	br := bufio.NewReaderSize(r, 64*1024)

	head, err := br.Peek(probeBytes)
	if err != nil && err != io.EOF {
		return "", nil, fmt.Errorf("probe stream: %w", err)
	}
	if len(head) == 0 {
		return FormatJSONL, br, nil
	}

	if looksLikeJSONLine(head) {
		return FormatJSONL, br, nil
	}
	if looksLikeVarintFrame(head) {
		return FormatBinary, br, nil
	}
	return FormatFallback, br, nil
}

const probeBytes = 32

func looksLikeJSONLine(head []byte) bool {
	for _, b := range head {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		case '{':
			return true
		default:
			return false
		}
	}
	return false
}

// looksLikeVarintFrame checks for a plausible varint length prefix followed
// by the start of a JSON body.
func looksLikeVarintFrame(head []byte) bool {
	length, n := decodeVarint(head)
	if n == 0 || length == 0 || length > maxFrameBytes {
		return false
	}
	rest := head[n:]
	if len(rest) == 0 {
		// Prefix is valid but the body is beyond the probe window.
		return true
	}
	return looksLikeJSONLine(rest)
}

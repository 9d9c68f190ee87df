package sse

import (
	"errors"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const delimiter = "\n\n"

// lineEndings folds CRLF and bare CR to LF. CRLF is listed first so it wins
// over a bare CR at the same position.
var lineEndings = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// FrameBuffer accumulates decoded stream text across chunks and splits it
// into frames.
//
// A multi-byte UTF-8 sequence split across two chunks is held undecoded until
// the rest arrives, so the emitted frames are identical for every way the
// same byte sequence can be chunked.
//
// FrameBuffer is not safe for concurrent use.
type FrameBuffer struct {
	decoder      *encoding.Decoder
	pending      []byte
	text         string
	heldCR       bool
	flushOnClose bool
}

// FrameBufferOption configures a FrameBuffer.
type FrameBufferOption func(*FrameBuffer)

// WithFlushOnClose makes Finalize return the undelimited remainder as a last
// frame instead of discarding it.
func WithFlushOnClose(flush bool) FrameBufferOption {
	return func(b *FrameBuffer) {
		b.flushOnClose = flush
	}
}

// NewFrameBuffer returns an empty FrameBuffer.
func NewFrameBuffer(opts ...FrameBufferOption) *FrameBuffer {
	b := &FrameBuffer{
		decoder: unicode.UTF8.NewDecoder(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Ingest appends a chunk and returns every frame it completed, in stream
// order. A nil or empty chunk is a no-op.
func (b *FrameBuffer) Ingest(chunk []byte) []Frame {
	if len(chunk) == 0 {
		return nil
	}

	b.append(b.decode(chunk, false), false)

	var frames []Frame
	for {
		before, after, found := strings.Cut(b.text, delimiter)
		if !found {
			break
		}
		frames = append(frames, Frame(before))
		b.text = after
	}
	return frames
}

// Finalize is called once the transport closes. It resets the buffer and,
// in flush-on-close mode, returns any non-blank remainder as a final frame.
// Otherwise the remainder is discarded and ok is false.
func (b *FrameBuffer) Finalize() (Frame, bool) {
	var tail string
	if b.flushOnClose {
		b.append(b.decode(nil, true), true)
		tail = b.text
	}
	b.Reset()

	if strings.TrimSpace(tail) == "" {
		return "", false
	}
	return Frame(strings.TrimSuffix(tail, "\n")), true
}

// Reset drops all buffered text and undecoded bytes.
func (b *FrameBuffer) Reset() {
	b.decoder.Reset()
	b.pending = nil
	b.text = ""
	b.heldCR = false
}

// Buffered returns the decoded text not yet emitted as a frame.
func (b *FrameBuffer) Buffered() string {
	return b.text
}

// append folds the line endings of newly decoded text and adds it to the
// buffer. Only the new segment is folded; a trailing CR is held back until
// the next call (or EOF) decides whether it starts a CRLF.
func (b *FrameBuffer) append(s string, atEOF bool) {
	if b.heldCR {
		s = "\r" + s
		b.heldCR = false
	}
	if !atEOF && strings.HasSuffix(s, "\r") {
		s = s[:len(s)-1]
		b.heldCR = true
	}
	if s == "" {
		return
	}
	b.text += lineEndings.Replace(s)
}

// decode runs the pending bytes plus src through the UTF-8 decoder. Invalid
// bytes become U+FFFD. An incomplete trailing sequence is kept in pending
// unless atEOF is set.
func (b *FrameBuffer) decode(src []byte, atEOF bool) string {
	b.pending = append(b.pending, src...)

	var out strings.Builder
	for len(b.pending) > 0 {
		dst := make([]byte, 3*len(b.pending)+utf8.UTFMax)
		nDst, nSrc, err := b.decoder.Transform(dst, b.pending, atEOF)
		out.Write(dst[:nDst])
		b.pending = append([]byte(nil), b.pending[nSrc:]...)

		if errors.Is(err, transform.ErrShortDst) && (nDst > 0 || nSrc > 0) {
			continue
		}
		break
	}

	if atEOF {
		b.pending = nil
	}
	return out.String()
}

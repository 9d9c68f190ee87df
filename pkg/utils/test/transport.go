package testutils

import (
	"io"
	"net/http"
	"strings"
	"sync"
)

// DoerFunc adapts a function to the gateway Doer interface.
type DoerFunc func(req *http.Request) (*http.Response, error)

func (f DoerFunc) Do(req *http.Request) (*http.Response, error) {
	return f(req)
}

// ChunkedBody is a response body that returns exactly one queued chunk per
// Read, to exercise arbitrary network chunk boundaries.
type ChunkedBody struct {
	mu     sync.Mutex
	chunks [][]byte
	reads  int
	closed bool

	// Err is returned once the chunks are exhausted. Nil means io.EOF.
	Err error

	// OnRead, when set, runs once the n-th chunk (1-based) has been fully
	// copied out, before Read returns it.
	OnRead func(n int)
}

// NewChunkedBody queues the given chunks.
func NewChunkedBody(chunks ...string) *ChunkedBody {
	b := &ChunkedBody{}
	for _, c := range chunks {
		b.chunks = append(b.chunks, []byte(c))
	}
	return b
}

// NewChunkedBytes queues raw byte chunks.
func NewChunkedBytes(chunks ...[]byte) *ChunkedBody {
	return &ChunkedBody{chunks: chunks}
}

func (b *ChunkedBody) Read(p []byte) (int, error) {
	b.mu.Lock()
	if len(b.chunks) == 0 {
		err := b.Err
		b.mu.Unlock()
		if err == nil {
			err = io.EOF
		}
		return 0, err
	}

	chunk := b.chunks[0]
	n := copy(p, chunk)
	if n < len(chunk) {
		b.chunks[0] = chunk[n:]
	} else {
		b.chunks = b.chunks[1:]
		b.reads++
	}
	reads := b.reads
	hook := b.OnRead
	b.mu.Unlock()

	if hook != nil && n == len(chunk) {
		hook(reads)
	}
	return n, nil
}

func (b *ChunkedBody) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// Closed reports whether Close was called.
func (b *ChunkedBody) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// NewResponse builds a response with the given status, headers and body.
func NewResponse(status int, header http.Header, body io.ReadCloser) *http.Response {
	if header == nil {
		header = http.Header{}
	}
	if body == nil {
		body = io.NopCloser(strings.NewReader(""))
	}
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Header:     header,
		Body:       body,
	}
}

// JSONResponse builds a response with a JSON string body.
func JSONResponse(status int, body string) *http.Response {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	return NewResponse(status, h, io.NopCloser(strings.NewReader(body)))
}

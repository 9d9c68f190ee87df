// Package chat reconstructs chat responses from the gateway, either from the
// incremental event stream or from the single JSON endpoint.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/papercomputeco/portal/pkg/clock"
	"github.com/papercomputeco/portal/pkg/gateway"
	"github.com/papercomputeco/portal/pkg/gateway/header"
	"github.com/papercomputeco/portal/pkg/logger"
	"github.com/papercomputeco/portal/pkg/sse"
)

// DefaultReadSize is the body read buffer size.
const DefaultReadSize = 4096

// Config configures an Assembler.
type Config struct {
	Client *gateway.Client

	// APIKey is the tenant bearer credential.
	APIKey string

	Clock    clock.Clock
	Logger   *slog.Logger
	Observer Observer

	// FlushOnClose parses an undelimited trailing frame at transport close
	// instead of discarding it.
	FlushOnClose bool

	// ReadSize is the body read buffer size. Zero means DefaultReadSize.
	ReadSize int
}

// Assembler runs chat requests and accumulates the response. Runs on one
// Assembler are serialized; Snapshot may be called from any goroutine.
type Assembler struct {
	client       *gateway.Client
	apiKey       string
	clock        clock.Clock
	logger       *slog.Logger
	observer     Observer
	flushOnClose bool
	readSize     int

	runMu sync.Mutex

	mu  sync.Mutex
	acc Accumulator
}

// NewAssembler creates an Assembler.
func NewAssembler(cfg Config) (*Assembler, error) {
	if cfg.Client == nil {
		return nil, errors.New("gateway client is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	if cfg.Observer == nil {
		cfg.Observer = ObserverFunc(func(Snapshot) {})
	}
	if cfg.ReadSize <= 0 {
		cfg.ReadSize = DefaultReadSize
	}

	return &Assembler{
		client:       cfg.Client,
		apiKey:       cfg.APIKey,
		clock:        cfg.Clock,
		logger:       cfg.Logger,
		observer:     cfg.Observer,
		flushOnClose: cfg.FlushOnClose,
		readSize:     cfg.ReadSize,
	}, nil
}

// Snapshot returns the current state.
func (a *Assembler) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.acc.Snapshot()
}

// Clear resets the state to an empty, idle response.
func (a *Assembler) Clear() {
	a.mu.Lock()
	a.acc.Reset(a.clock.Now())
	snap := a.acc.Snapshot()
	a.mu.Unlock()
	a.observer.Observe(snap)
}

// run tracks one request. Every mutation goes through update so the
// observer sees each change, and nothing is emitted once ctx is done.
type run struct {
	a   *Assembler
	ctx context.Context
}

func (r *run) update(fn func(acc *Accumulator)) {
	if r.ctx.Err() != nil {
		return
	}
	r.a.mu.Lock()
	fn(&r.a.acc)
	snap := r.a.acc.Snapshot()
	r.a.mu.Unlock()
	r.a.observer.Observe(snap)
}

// finish builds the Result. Cancelled runs are forced idle without
// notifying the observer.
func (r *run) finish(outcome Outcome) *Result {
	if outcome == OutcomeCancelled {
		r.a.mu.Lock()
		r.a.acc.status = StatusIdle
		r.a.mu.Unlock()
	}

	res := &Result{Outcome: outcome, Snapshot: r.a.Snapshot()}
	r.a.logger.Debug("chat run finished",
		"outcome", outcome.String(),
		"chars", len(res.Text),
		"request_id", header.Value(res.Meta.RequestID, ""),
	)
	return res
}

func (r *run) fail(outcome Outcome, detail gateway.ErrorDetail) *Result {
	r.update(func(acc *Accumulator) {
		acc.Fail(detail)
	})
	return r.finish(outcome)
}

// begin validates and resets the state for a new run.
func (a *Assembler) begin(ctx context.Context, req gateway.ChatRequest) (*run, *Result) {
	r := &run{a: a, ctx: ctx}
	if ctx.Err() != nil {
		return r, r.finish(OutcomeCancelled)
	}

	r.update(func(acc *Accumulator) {
		acc.Reset(a.clock.Now())
	})

	if detail := validate(a.apiKey, req); detail != nil {
		return r, r.fail(OutcomeInvalidInput, *detail)
	}

	r.update(func(acc *Accumulator) {
		acc.status = StatusWorking
	})
	return r, nil
}

// open sends the request on sendCtx and reads the header metadata. A nil
// response means the returned Result is final.
func (r *run) open(sendCtx context.Context, path string, req gateway.ChatRequest) (*http.Response, *Result) {
	resp, err := r.a.client.Send(sendCtx, http.MethodPost, path, r.a.apiKey, req)
	if err != nil {
		if r.ctx.Err() != nil {
			return nil, r.finish(OutcomeCancelled)
		}
		err = r.a.client.TimedOut(r.ctx, err)
		r.a.logger.Warn("chat request failed", "path", path, "error", err)
		return nil, r.fail(OutcomeTransportError, gateway.DetailOf(err))
	}

	meta := header.Extract(resp.Header)
	r.update(func(acc *Accumulator) {
		acc.meta = meta
	})

	if !gateway.IsSuccess(resp.StatusCode) {
		detail := gateway.ReadError(resp)
		resp.Body.Close()
		r.a.logger.Debug("chat request rejected", "status", resp.StatusCode, "code", detail.Code)
		return nil, r.fail(OutcomeHTTPError, detail)
	}
	return resp, nil
}

// Run streams req from the gateway and assembles the response.
func (a *Assembler) Run(ctx context.Context, req gateway.ChatRequest) *Result {
	a.runMu.Lock()
	defer a.runMu.Unlock()

	r, res := a.begin(ctx, req)
	if res != nil {
		return res
	}

	req.Stream = true
	// Streams are bounded by ctx only.
	resp, res := r.open(ctx, gateway.PathChatStream, req)
	if res != nil {
		return res
	}
	defer resp.Body.Close()

	frames := sse.NewFrameBuffer(sse.WithFlushOnClose(a.flushOnClose))
	parser := sse.NewParser(a.logger)
	buf := make([]byte, a.readSize)

	for {
		n, readErr := resp.Body.Read(buf)
		if ctx.Err() != nil {
			return r.finish(OutcomeCancelled)
		}

		for _, frame := range frames.Ingest(buf[:n]) {
			if outcome, done := r.apply(parser.Parse(frame)); done {
				return r.finish(outcome)
			}
		}

		if errors.Is(readErr, io.EOF) {
			if frame, ok := frames.Finalize(); ok {
				if outcome, done := r.apply(parser.Parse(frame)); done {
					return r.finish(outcome)
				}
			}
			r.update(func(acc *Accumulator) {
				acc.status = StatusDone
			})
			a.logger.Debug("stream closed without sentinel")
			return r.finish(OutcomeClosed)
		}

		if readErr != nil {
			a.logger.Warn("stream read failed", "error", readErr)
			transportErr := &gateway.TransportError{BaseURL: a.client.BaseURL(), Err: readErr}
			return r.fail(OutcomeTransportError, transportErr.Detail())
		}
	}
}

// apply folds one event into the state. done reports a terminal event.
func (r *run) apply(ev sse.Event) (Outcome, bool) {
	switch ev.Type {
	case sse.EventSentinel:
		r.update(func(acc *Accumulator) {
			acc.MarkLatency(r.a.clock.Now())
			acc.status = StatusDone
		})
		return OutcomeCompleted, true

	case sse.EventPayload:
		p := ev.Payload
		if p.Error != nil {
			r.a.logger.Debug("stream error payload", "code", p.Error.Code)
			r.update(func(acc *Accumulator) {
				acc.SetMetadata(p.ID, p.Model, p.Provider, p.Created)
				acc.Fail(*p.Error)
			})
			return OutcomeStreamError, true
		}

		r.update(func(acc *Accumulator) {
			acc.SetMetadata(p.ID, p.Model, p.Provider, p.Created)
			if p.Content != "" {
				acc.AppendContent(p.Content)
			}
			if p.Done && p.Usage != nil {
				acc.SetUsage(*p.Usage, false)
			}
		})
	}

	return 0, false
}

// SendJSON sends req to the non-streaming endpoint. The gateway reports no
// usage there, so usage is estimated with EstimateTokens.
func (a *Assembler) SendJSON(ctx context.Context, req gateway.ChatRequest) *Result {
	a.runMu.Lock()
	defer a.runMu.Unlock()

	r, res := a.begin(ctx, req)
	if res != nil {
		return res
	}

	req.Stream = false
	sendCtx, cancel := a.client.RequestContext(ctx)
	defer cancel()

	resp, res := r.open(sendCtx, gateway.PathChat, req)
	if res != nil {
		return res
	}
	defer resp.Body.Close()

	body := &gateway.ChatResponse{}
	if err := json.NewDecoder(resp.Body).Decode(body); err != nil {
		if ctx.Err() != nil {
			return r.finish(OutcomeCancelled)
		}
		if sendCtx.Err() != nil {
			return r.fail(OutcomeTransportError, gateway.DetailOf(a.client.TimedOut(ctx, sendCtx.Err())))
		}
		return r.fail(OutcomeTransportError, gateway.ErrorDetail{
			Code:    gateway.CodeClientError,
			Message: fmt.Sprintf("Could not decode gateway response: %v", err),
		})
	}

	r.update(func(acc *Accumulator) {
		acc.SetMetadata(body.ID, body.Model, body.Provider, body.Created)
		acc.AppendContent(body.Content)
		acc.SetUsage(*estimateUsage(req.SystemPrompt(), req.UserPrompt(), body.Content), true)
		acc.MarkLatency(a.clock.Now())
		acc.status = StatusDone
	})
	return r.finish(OutcomeCompleted)
}

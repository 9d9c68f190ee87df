package chat

import (
	"context"
	"strings"
	"time"

	"github.com/papercomputeco/portal/pkg/gateway"
	"github.com/papercomputeco/portal/pkg/gateway/header"
)

// Status is the coarse progress of a run.
type Status int

const (
	StatusIdle Status = iota
	StatusWorking
	StatusDone
)

func (s Status) String() string {
	switch s {
	case StatusWorking:
		return "working"
	case StatusDone:
		return "done"
	default:
		return "idle"
	}
}

// Outcome is how a run ended.
type Outcome int

const (
	// OutcomeCompleted means the sentinel (or the JSON body) arrived.
	OutcomeCompleted Outcome = iota

	// OutcomeClosed means the transport closed without a sentinel. Text and
	// usage received so far are kept; latency is not recorded.
	OutcomeClosed

	// OutcomeStreamError means a frame carried an error payload.
	OutcomeStreamError

	// OutcomeHTTPError means the gateway answered with a non-2xx status.
	OutcomeHTTPError

	// OutcomeTransportError means no usable response was received.
	OutcomeTransportError

	// OutcomeInvalidInput means no request was sent.
	OutcomeInvalidInput

	// OutcomeCancelled means the caller's context ended the run.
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeClosed:
		return "closed"
	case OutcomeStreamError:
		return "stream_error"
	case OutcomeHTTPError:
		return "http_error"
	case OutcomeTransportError:
		return "transport_error"
	case OutcomeInvalidInput:
		return "invalid_input"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Snapshot is an immutable copy of the assembler state.
type Snapshot struct {
	Status Status

	// Text is the concatenation of every content delta, in arrival order.
	Text string

	// Usage is nil until a terminal usage payload arrives.
	Usage *gateway.Usage

	// UsageEstimated is set when Usage was computed locally.
	UsageEstimated bool

	// Latency is set when the sentinel (or JSON body) arrives.
	Latency *time.Duration

	// Error is the terminal error of the run, if any.
	Error *gateway.ErrorDetail

	// Meta is read once from the response headers.
	Meta header.Meta

	// Response metadata, from the most recent payload that carried it.
	ID       string
	Model    string
	Provider string
	Created  int64
}

// Observer receives a Snapshot after every state change of a run.
type Observer interface {
	Observe(Snapshot)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Snapshot)

func (f ObserverFunc) Observe(s Snapshot) {
	f(s)
}

// Result is returned by Run and SendJSON.
type Result struct {
	Outcome Outcome
	Snapshot
}

// Err returns the run's terminal error, or nil for completed and closed
// runs.
func (r *Result) Err() error {
	if r.Outcome == OutcomeCancelled {
		return context.Canceled
	}
	if r.Error != nil {
		return *r.Error
	}
	return nil
}

// Accumulator is the mutable per-run response state. The zero value is an
// empty, idle accumulator.
type Accumulator struct {
	status         Status
	text           strings.Builder
	usage          *gateway.Usage
	usageEstimated bool
	startedAt      time.Time
	latency        *time.Duration
	err            *gateway.ErrorDetail
	meta           header.Meta

	id       string
	model    string
	provider string
	created  int64
}

// Reset clears every field. startedAt is the monotonic start of the run.
func (a *Accumulator) Reset(startedAt time.Time) {
	*a = Accumulator{startedAt: startedAt}
}

// AppendContent appends a content delta.
func (a *Accumulator) AppendContent(s string) {
	a.text.WriteString(s)
}

// SetUsage records terminal usage.
func (a *Accumulator) SetUsage(u gateway.Usage, estimated bool) {
	a.usage = &u
	a.usageEstimated = estimated
}

// MarkLatency records the time elapsed since the run started.
func (a *Accumulator) MarkLatency(now time.Time) time.Duration {
	d := now.Sub(a.startedAt)
	a.latency = &d
	return d
}

// Fail records a terminal error and returns the status to idle.
func (a *Accumulator) Fail(detail gateway.ErrorDetail) {
	a.err = &detail
	a.status = StatusIdle
}

// SetMetadata copies non-empty response metadata.
func (a *Accumulator) SetMetadata(id, model, provider string, created int64) {
	if id != "" {
		a.id = id
	}
	if model != "" {
		a.model = model
	}
	if provider != "" {
		a.provider = provider
	}
	if created != 0 {
		a.created = created
	}
}

// Snapshot copies the current state.
func (a *Accumulator) Snapshot() Snapshot {
	s := Snapshot{
		Status:         a.status,
		Text:           a.text.String(),
		UsageEstimated: a.usageEstimated,
		Meta:           a.meta,
		ID:             a.id,
		Model:          a.model,
		Provider:       a.provider,
		Created:        a.created,
	}
	if a.usage != nil {
		u := *a.usage
		s.Usage = &u
	}
	if a.latency != nil {
		d := *a.latency
		s.Latency = &d
	}
	if a.err != nil {
		e := *a.err
		s.Error = &e
	}
	return s
}

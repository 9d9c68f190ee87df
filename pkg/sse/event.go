// Package sse decodes the gateway's Server-Sent Events stream.
//
// Decoding happens in two stages. A FrameBuffer turns raw network chunks into
// blank-line delimited frames, independent of where the chunk boundaries fall.
// A Parser turns each frame into an Event the chat assembler can act on.
//
// Only "data:" fields are interpreted. "event:", "id:", "retry:" and comment
// lines are ignored.
//
// See the SSE specification:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

import "github.com/papercomputeco/portal/pkg/gateway"

// Sentinel is the data payload that terminates a stream.
const Sentinel = "[DONE]"

// Frame is one blank-line delimited unit of decoded stream text, without the
// delimiter.
type Frame string

// EventType classifies a parsed frame.
type EventType int

const (
	// EventNone is a frame carrying nothing to act on: no data lines, an
	// empty payload, or a payload that is not a JSON object.
	EventNone EventType = iota

	// EventPayload carries a decoded StreamPayload.
	EventPayload

	// EventSentinel marks the end of the stream.
	EventSentinel
)

func (t EventType) String() string {
	switch t {
	case EventPayload:
		return "payload"
	case EventSentinel:
		return "sentinel"
	default:
		return "none"
	}
}

// Event is the parsed form of a Frame.
type Event struct {
	Type EventType

	// Data is the joined, trimmed data payload.
	Data string

	// Payload is set only for EventPayload.
	Payload *gateway.StreamPayload
}

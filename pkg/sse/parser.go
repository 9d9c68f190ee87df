package sse

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/papercomputeco/portal/pkg/gateway"
	"github.com/papercomputeco/portal/pkg/logger"
)

const dataField = "data:"

// Parser turns frames into events. It holds no per-stream state.
type Parser struct {
	logger *slog.Logger
}

// NewParser returns a Parser. A nil logger discards.
func NewParser(l *slog.Logger) *Parser {
	if l == nil {
		l = logger.Nop()
	}
	return &Parser{logger: l}
}

// Parse classifies a frame.
//
// Each line is trimmed, then lines starting with "data:" contribute their
// value with at most one leading space or tab removed. The values are joined
// with "\n" and trimmed. An empty result is EventNone, [DONE] is
// EventSentinel, and a JSON object is EventPayload. Anything else is dropped
// as EventNone.
func (p *Parser) Parse(frame Frame) Event {
	var (
		values  []string
		hasData bool
	)

	for _, line := range strings.Split(string(frame), "\n") {
		line = strings.TrimSpace(line)
		value, ok := strings.CutPrefix(line, dataField)
		if !ok {
			continue
		}
		hasData = true
		if value != "" && (value[0] == ' ' || value[0] == '\t') {
			value = value[1:]
		}
		values = append(values, value)
	}

	if !hasData {
		return Event{Type: EventNone}
	}

	data := strings.TrimSpace(strings.Join(values, "\n"))
	switch {
	case data == "":
		return Event{Type: EventNone}
	case data == Sentinel:
		return Event{Type: EventSentinel, Data: data}
	case !strings.HasPrefix(data, "{"):
		p.logger.Debug("dropping non-object stream payload", "bytes", len(data))
		return Event{Type: EventNone, Data: data}
	}

	payload := &gateway.StreamPayload{}
	if err := json.Unmarshal([]byte(data), payload); err != nil {
		p.logger.Debug("dropping malformed stream payload", "bytes", len(data), "error", err)
		return Event{Type: EventNone, Data: data}
	}

	return Event{Type: EventPayload, Data: data, Payload: payload}
}

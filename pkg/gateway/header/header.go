// Package header reads the routing and quota metadata the gateway attaches
// to every chat response.
package header

import (
	"net/http"
	"strings"
)

// Response headers set by the gateway.
const (
	RequestID       = "X-Request-Id"
	ModelChosen     = "X-Model-Chosen"
	Provider        = "X-Provider"
	RouteReason     = "X-Route-Reason"
	Cache           = "X-Cache"
	RetryAfter      = "Retry-After"
	TokensRemaining = "X-RateLimit-Tokens-Remaining"
	SpendRemaining  = "X-RateLimit-Spend-Remaining"
	RAG             = "X-RAG"
	RAGChunks       = "X-RAG-Chunks"
)

// Meta holds the gateway metadata for one response. Every field is nil when
// the header was absent. Values are passed through as sent.
type Meta struct {
	RequestID       *string
	ModelChosen     *string
	Provider        *string
	RouteReason     *string
	Cache           *string
	RetryAfter      *string
	TokensRemaining *string
	SpendRemaining  *string
	RAG             *string
	RAGChunks       *string
}

// Extract builds Meta from response headers. Repeated headers are joined
// with ", ".
func Extract(h http.Header) Meta {
	return Meta{
		RequestID:       lookup(h, RequestID),
		ModelChosen:     lookup(h, ModelChosen),
		Provider:        lookup(h, Provider),
		RouteReason:     lookup(h, RouteReason),
		Cache:           lookup(h, Cache),
		RetryAfter:      lookup(h, RetryAfter),
		TokensRemaining: lookup(h, TokensRemaining),
		SpendRemaining:  lookup(h, SpendRemaining),
		RAG:             lookup(h, RAG),
		RAGChunks:       lookup(h, RAGChunks),
	}
}

func lookup(h http.Header, name string) *string {
	values := h.Values(name)
	if len(values) == 0 {
		return nil
	}
	joined := strings.Join(values, ", ")
	return &joined
}

// Field is one present header, in display order.
type Field struct {
	Name  string
	Value string
}

// Fields returns the present headers in a fixed order.
func (m Meta) Fields() []Field {
	all := []struct {
		name  string
		value *string
	}{
		{RequestID, m.RequestID},
		{ModelChosen, m.ModelChosen},
		{Provider, m.Provider},
		{RouteReason, m.RouteReason},
		{Cache, m.Cache},
		{RetryAfter, m.RetryAfter},
		{TokensRemaining, m.TokensRemaining},
		{SpendRemaining, m.SpendRemaining},
		{RAG, m.RAG},
		{RAGChunks, m.RAGChunks},
	}

	fields := make([]Field, 0, len(all))
	for _, f := range all {
		if f.value != nil {
			fields = append(fields, Field{Name: f.name, Value: *f.value})
		}
	}
	return fields
}

// Empty reports whether no metadata header was present.
func (m Meta) Empty() bool {
	return len(m.Fields()) == 0
}

// Value dereferences an optional header, returning fallback when nil.
func Value(v *string, fallback string) string {
	if v == nil {
		return fallback
	}
	return *v
}

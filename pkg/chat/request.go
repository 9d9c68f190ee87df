package chat

import (
	"strings"

	"github.com/papercomputeco/portal/pkg/gateway"
)

// RequestOption sets an optional generation parameter.
type RequestOption func(*gateway.ChatRequest)

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) RequestOption {
	return func(r *gateway.ChatRequest) {
		r.Temperature = &t
	}
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) RequestOption {
	return func(r *gateway.ChatRequest) {
		r.MaxTokens = &n
	}
}

// NewRequest builds a chat request from trimmed prompts. The system message
// is included only when non-blank.
func NewRequest(model, system, user string, opts ...RequestOption) gateway.ChatRequest {
	req := gateway.ChatRequest{
		Model: strings.TrimSpace(model),
	}

	if s := strings.TrimSpace(system); s != "" {
		req.Messages = append(req.Messages, gateway.Message{Role: gateway.RoleSystem, Content: s})
	}
	req.Messages = append(req.Messages, gateway.Message{Role: gateway.RoleUser, Content: strings.TrimSpace(user)})

	for _, opt := range opts {
		opt(&req)
	}
	return req
}

// validate checks the local preconditions of a send, in the order a user
// would fix them.
func validate(apiKey string, req gateway.ChatRequest) *gateway.ErrorDetail {
	switch {
	case strings.TrimSpace(apiKey) == "":
		return &gateway.ErrorDetail{
			Code:    gateway.CodeMissingAPIKey,
			Message: "Set an API key with --api-key, PORTAL_CHAT_API_KEY or `portal keys use`.",
		}
	case strings.TrimSpace(req.UserPrompt()) == "":
		return &gateway.ErrorDetail{
			Code:    gateway.CodeMissingPrompt,
			Message: "Enter a user message.",
		}
	case strings.TrimSpace(req.Model) == "":
		return &gateway.ErrorDetail{
			Code:    gateway.CodeMissingModel,
			Message: "Choose a model with --model or chat.model.",
		}
	}

	if err := req.Validate(); err != nil {
		return &gateway.ErrorDetail{Code: gateway.CodeInvalidRequest, Message: err.Error()}
	}
	return nil
}

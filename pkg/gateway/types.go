package gateway

import (
	"errors"
	"strings"
)

// Message roles accepted by the gateway chat endpoints.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Message is a single chat message sent to the gateway.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of POST /v1/chat and POST /v1/chat/stream.
type ChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`

	// Stream is only sent on the streaming endpoint.
	Stream bool `json:"stream,omitempty"`

	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
}

// Validate checks the request shape: a non-empty model, at most one system
// message (which must lead), and exactly one trailing user message.
func (r ChatRequest) Validate() error {
	if strings.TrimSpace(r.Model) == "" {
		return errors.New("model is required")
	}

	switch len(r.Messages) {
	case 1:
		if r.Messages[0].Role != RoleUser {
			return errors.New("request must end with a user message")
		}
	case 2:
		if r.Messages[0].Role != RoleSystem || r.Messages[1].Role != RoleUser {
			return errors.New("request must be an optional system message followed by one user message")
		}
	default:
		return errors.New("request must be an optional system message followed by one user message")
	}

	if strings.TrimSpace(r.Messages[len(r.Messages)-1].Content) == "" {
		return errors.New("user message is empty")
	}

	return nil
}

// SystemPrompt returns the system message content, or "" when there is none.
func (r ChatRequest) SystemPrompt() string {
	for _, m := range r.Messages {
		if m.Role == RoleSystem {
			return m.Content
		}
	}
	return ""
}

// UserPrompt returns the trailing user message content.
func (r ChatRequest) UserPrompt() string {
	if len(r.Messages) == 0 {
		return ""
	}
	last := r.Messages[len(r.Messages)-1]
	if last.Role != RoleUser {
		return ""
	}
	return last.Content
}

// ChatResponse is the body of a successful POST /v1/chat.
type ChatResponse struct {
	ID       string `json:"id"`
	Model    string `json:"model"`
	Created  int64  `json:"created"`
	Content  string `json:"content"`
	Provider string `json:"provider,omitempty"`
}

// Usage is the token accounting reported on the terminal stream frame.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// StreamPayload is the decoded JSON body of one stream frame. Content deltas,
// terminal usage, errors and metadata may co-occur in a single payload.
type StreamPayload struct {
	ID       string `json:"id,omitempty"`
	Model    string `json:"model,omitempty"`
	Created  int64  `json:"created,omitempty"`
	Provider string `json:"provider,omitempty"`

	Content string `json:"content,omitempty"`

	Done  bool   `json:"done,omitempty"`
	Usage *Usage `json:"usage,omitempty"`

	Error *ErrorDetail `json:"error,omitempty"`
}

// APIKeyEntry is the server view of an issued API key. It never carries the
// secret value.
type APIKeyEntry struct {
	ID        string  `json:"id"`
	Name      *string `json:"name"`
	Tenant    string  `json:"tenant"`
	Active    bool    `json:"active"`
	CreatedAt string  `json:"created_at"`
}

// DisplayName is the name the key is cached under locally: the key name,
// falling back to the tenant for keys issued without one.
func (e APIKeyEntry) DisplayName() string {
	if e.Name != nil {
		return *e.Name
	}
	return e.Tenant
}

// KeysResponse is the body of GET /v1/admin/keys.
type KeysResponse struct {
	Keys []APIKeyEntry `json:"keys"`
}

// CreateKeyRequest is the body of POST /v1/admin/keys.
type CreateKeyRequest struct {
	Name string `json:"name"`
}

// CreateKeyResponse carries the plaintext key. It is the only time the
// gateway exposes it.
type CreateKeyResponse struct {
	APIKey string `json:"api_key"`
	Tenant string `json:"tenant"`
}

// IssuedKeyResponse is the body of POST /v1/admin/bootstrap and
// POST /v1/admin/rotate.
type IssuedKeyResponse struct {
	APIKey string `json:"api_key"`
}

// AdminStatus is the body of GET /v1/admin/status.
type AdminStatus struct {
	AdminInitialized bool `json:"admin_initialized"`
}

// HealthStatus is the body of GET /health and GET /health/ollama.
type HealthStatus struct {
	Status string `json:"status"`
}

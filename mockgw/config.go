package mockgw

import (
	"time"

	"github.com/papercomputeco/portal/pkg/clock"
	"github.com/papercomputeco/portal/pkg/gateway"
)

const (
	DefaultListenAddr      = ":8080"
	DefaultModel           = "mock-1"
	DefaultTokensRemaining = 100000
	providerName           = "mock"
)

// DefaultDeltas is the streamed completion when Config.Deltas is empty.
var DefaultDeltas = []string{"mock ", "response"}

// Config is the mock gateway configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string

	// Model is chosen for requests that ask for the "auto" model.
	Model string

	// Deltas are streamed in order as content frames.
	Deltas []string

	// TokenDelay pauses between streamed frames.
	TokenDelay time.Duration

	// StreamError, when set, is sent as an error frame after the first
	// content delta and ends the stream.
	StreamError *gateway.ErrorDetail

	// ProviderDown makes GET /health/ollama report the provider unavailable.
	ProviderDown bool

	// ProvisionDelay, when positive, keeps created keys out of the key list
	// and unusable for chat until a background worker activates them.
	ProvisionDelay time.Duration

	// TokensRemaining seeds the X-RateLimit-Tokens-Remaining budget.
	TokensRemaining int

	// Clock stamps created times. Defaults to the runtime clock.
	Clock clock.Clock
}

func (c Config) withDefaults() Config {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if len(c.Deltas) == 0 {
		c.Deltas = DefaultDeltas
	}
	if c.TokensRemaining <= 0 {
		c.TokensRemaining = DefaultTokensRemaining
	}
	if c.Clock == nil {
		c.Clock = clock.New()
	}
	return c
}

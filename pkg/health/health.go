// Package health probes the gateway's health endpoints.
package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/papercomputeco/portal/pkg/clock"
	"github.com/papercomputeco/portal/pkg/gateway"
	"github.com/papercomputeco/portal/pkg/logger"
)

const (
	DefaultPollInterval    = 1500 * time.Millisecond
	DefaultPollMaxAttempts = 40
)

// ErrUnhealthy is returned when the gateway did not become healthy within
// the attempt ceiling.
var ErrUnhealthy = errors.New("gateway did not become healthy")

// Monitor checks gateway health once or until it reports healthy.
type Monitor struct {
	client *gateway.Client
	clock  clock.Clock
	logger *slog.Logger

	interval    time.Duration
	maxAttempts int
}

// Option configures a Monitor.
type Option func(*Monitor)

func WithClock(c clock.Clock) Option {
	return func(m *Monitor) {
		m.clock = c
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) {
		m.logger = l
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

func WithPollMaxAttempts(n int) Option {
	return func(m *Monitor) {
		if n > 0 {
			m.maxAttempts = n
		}
	}
}

// NewMonitor creates a Monitor for client.
func NewMonitor(client *gateway.Client, opts ...Option) *Monitor {
	m := &Monitor{
		client:      client,
		clock:       clock.New(),
		logger:      logger.Nop(),
		interval:    DefaultPollInterval,
		maxAttempts: DefaultPollMaxAttempts,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Check probes path once. An empty path probes gateway.PathHealth.
func (m *Monitor) Check(ctx context.Context, path string) (*gateway.HealthStatus, error) {
	if path == "" {
		path = gateway.PathHealth
	}
	return m.client.Health(ctx, path)
}

// WaitHealthy probes gateway.PathHealth until it answers 2xx, the attempt
// ceiling is reached or ctx ends. It returns the number of probes made.
func (m *Monitor) WaitHealthy(ctx context.Context) (int, error) {
	var lastErr error
	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		if attempt > 1 {
			if err := m.clock.Sleep(ctx, m.interval); err != nil {
				return attempt - 1, err
			}
		}
		if err := ctx.Err(); err != nil {
			return attempt - 1, err
		}

		status, err := m.client.Health(ctx, gateway.PathHealth)
		if err == nil {
			m.logger.Debug("gateway healthy", "attempt", attempt, "status", status.Status)
			return attempt, nil
		}
		if ctx.Err() != nil {
			return attempt, ctx.Err()
		}

		lastErr = err
		m.logger.Debug("gateway not healthy yet", "attempt", attempt, "error", err)
	}
	return m.maxAttempts, fmt.Errorf("%w after %d attempts: %w", ErrUnhealthy, m.maxAttempts, lastErr)
}

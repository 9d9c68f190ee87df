// Package admin manages the admin credential session: bootstrap and
// rotation of the plaintext-once admin key, verification against the key
// listing, a one-shot automatic recovery when the key is rejected, and a
// bounded poll that waits for freshly issued keys to appear.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/papercomputeco/portal/pkg/clock"
	"github.com/papercomputeco/portal/pkg/gateway"
	"github.com/papercomputeco/portal/pkg/keystore"
	"github.com/papercomputeco/portal/pkg/logger"
)

const (
	// DefaultPollInterval is the delay between key list polls.
	DefaultPollInterval = 1500 * time.Millisecond

	// DefaultPollMaxAttempts bounds the key list poll.
	DefaultPollMaxAttempts = 20

	// DefaultGraceWindow is how long after start transport failures of the
	// key listing stay silent while the gateway boots.
	DefaultGraceWindow = 20 * time.Second
)

// Controller is the single owner of the admin session state. It is safe for
// concurrent use; network calls run outside the state lock.
type Controller struct {
	client *gateway.Client
	store  *keystore.Store
	clock  clock.Clock
	logger *slog.Logger

	pollInterval    time.Duration
	pollMaxAttempts int
	graceWindow     time.Duration

	sessionID ulid.ULID
	startedAt time.Time

	mu        sync.Mutex
	state     State
	recovered bool
	keys      []gateway.APIKeyEntry
	listed    bool
	lastErr   error
}

// Option configures a Controller.
type Option func(*Controller)

func WithClock(c clock.Clock) Option {
	return func(ctrl *Controller) {
		ctrl.clock = c
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(ctrl *Controller) {
		ctrl.logger = l
	}
}

// WithPollInterval overrides DefaultPollInterval. Non-positive values are
// ignored.
func WithPollInterval(d time.Duration) Option {
	return func(ctrl *Controller) {
		if d > 0 {
			ctrl.pollInterval = d
		}
	}
}

// WithPollMaxAttempts overrides DefaultPollMaxAttempts. Non-positive values
// are ignored.
func WithPollMaxAttempts(n int) Option {
	return func(ctrl *Controller) {
		if n > 0 {
			ctrl.pollMaxAttempts = n
		}
	}
}

// WithGraceWindow overrides DefaultGraceWindow. Zero disables it.
func WithGraceWindow(d time.Duration) Option {
	return func(ctrl *Controller) {
		if d >= 0 {
			ctrl.graceWindow = d
		}
	}
}

// New creates a Controller in StateUnconfigured. Each Controller is one
// session: the automatic recovery guard is fresh for every Controller.
func New(client *gateway.Client, store *keystore.Store, opts ...Option) (*Controller, error) {
	if client == nil {
		return nil, errors.New("gateway client is required")
	}
	if store == nil {
		return nil, errors.New("key store is required")
	}

	c := &Controller{
		client:          client,
		store:           store,
		clock:           clock.New(),
		logger:          logger.Nop(),
		pollInterval:    DefaultPollInterval,
		pollMaxAttempts: DefaultPollMaxAttempts,
		graceWindow:     DefaultGraceWindow,
		state:           StateUnconfigured,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.startedAt = c.clock.Now()
	c.sessionID = ulid.MustNew(ulid.Timestamp(c.startedAt), ulid.DefaultEntropy())
	c.logger = c.logger.With("session", c.sessionID.String())
	return c, nil
}

// fire applies one transition under the state lock and performs its local
// effects. The returned action's network part is left to the caller.
func (c *Controller) fire(event Event, credential string) (Action, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fireLocked(event, credential)
}

func (c *Controller) fireLocked(event Event, credential string) (Action, error) {
	from := c.state
	to, action, ok := Next(from, event)
	if !ok {
		c.logger.Debug("ignored admin event", "state", from.String(), "event", event.String())
		return ActionNone, nil
	}

	switch action {
	case ActionStoreCredential:
		if err := c.store.SetAdminKey(credential); err != nil {
			return ActionNone, fmt.Errorf("storing admin credential: %w", err)
		}
	case ActionClearCredential:
		if err := c.store.ClearAdminKey(); err != nil {
			c.logger.Warn("could not clear admin credential", "error", err)
		}
		c.keys = nil
		c.listed = false
	case ActionAutoRecover:
		c.recovered = true
	}

	c.state = to
	c.logger.Debug("admin transition",
		"from", from.String(),
		"event", event.String(),
		"to", to.String(),
		"action", action.String(),
	)
	return action, nil
}

func (c *Controller) setErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErr = err
}

// Start loads a held credential and verifies it, or settles in
// StateUnconfigured when there is none.
func (c *Controller) Start(ctx context.Context) error {
	if c.store.AdminKey() == "" {
		_, err := c.fire(EventStartup, "")
		return err
	}

	action, err := c.fire(EventCredentialLoaded, "")
	if err != nil {
		return err
	}
	if action == ActionFetchKeys {
		return c.refresh(ctx, true)
	}
	return nil
}

// Bootstrap asks the gateway for a new admin credential. On success the
// credential is stored, the session becomes valid and the key list is
// fetched; the plaintext is returned so it can be shown once.
func (c *Controller) Bootstrap(ctx context.Context) (string, error) {
	key, err := c.client.Bootstrap(ctx)
	if err != nil {
		if _, ferr := c.fire(EventBootstrapFailed, ""); ferr != nil {
			return "", ferr
		}
		c.setErr(err)
		return "", fmt.Errorf("bootstrapping admin credential: %w", err)
	}
	return key, c.adopt(ctx, EventBootstrapSucceeded, key)
}

// Rotate replaces the admin credential. The held credential, if any, is sent
// as the bearer.
func (c *Controller) Rotate(ctx context.Context) (string, error) {
	key, err := c.client.Rotate(ctx, c.store.AdminKey())
	if err != nil {
		if _, ferr := c.fire(EventRotateFailed, ""); ferr != nil {
			return "", ferr
		}
		c.setErr(err)
		return "", fmt.Errorf("rotating admin credential: %w", err)
	}
	return key, c.adopt(ctx, EventRotateSucceeded, key)
}

// adopt stores a freshly issued credential and verifies it. A failed key
// listing afterwards is reflected in the state, not returned.
func (c *Controller) adopt(ctx context.Context, event Event, key string) error {
	action, err := c.fire(event, key)
	if err != nil {
		return err
	}
	c.setErr(nil)
	if action == ActionStoreCredential {
		if err := c.refresh(ctx, true); err != nil && ctx.Err() != nil {
			return err
		}
	}
	return nil
}

// Refresh lists the gateway keys with the held credential.
func (c *Controller) Refresh(ctx context.Context) error {
	if c.store.AdminKey() == "" {
		return ErrNoCredential
	}
	return c.refresh(ctx, false)
}

// refresh fetches the key list and feeds the outcome into the table. When
// silent, non-auth failures are logged instead of recorded as the session
// error.
func (c *Controller) refresh(ctx context.Context, silent bool) error {
	credential := c.store.AdminKey()
	if credential == "" {
		return ErrNoCredential
	}

	keys, err := c.client.ListKeys(ctx, credential)
	switch {
	case err == nil:
		c.mu.Lock()
		c.keys = keys
		c.listed = true
		c.lastErr = nil
		_, ferr := c.fireLocked(EventKeyListSucceeded, "")
		c.mu.Unlock()
		return ferr

	case ctx.Err() != nil:
		return ctx.Err()

	case gateway.IsAuthError(err):
		return c.unauthorized(ctx)
	}

	if _, ferr := c.fire(EventKeyListFailed, ""); ferr != nil {
		return ferr
	}

	var transportErr *gateway.TransportError
	if errors.As(err, &transportErr) && c.inGraceWindow() {
		c.logger.Debug("key listing failed during startup", "error", err)
		return nil
	}

	if silent {
		c.logger.Debug("key listing failed", "error", err)
	} else {
		c.setErr(err)
	}
	return fmt.Errorf("listing keys: %w", err)
}

// unauthorized handles a 401/403 with the held credential. The first one in
// a session triggers one silent bootstrap and refetch; any later one, or a
// failed recovery, invalidates the session.
func (c *Controller) unauthorized(ctx context.Context) error {
	c.mu.Lock()
	event := EventKeyListUnauthorizedFinal
	if !c.recovered {
		event = EventKeyListUnauthorizedRecoverable
	}
	action, err := c.fireLocked(event, "")
	if err == nil && action == ActionClearCredential {
		c.lastErr = ErrInvalidCredential
	}
	c.mu.Unlock()

	if err != nil {
		return err
	}

	switch action {
	case ActionAutoRecover:
		return c.recover(ctx)
	case ActionClearCredential:
		c.logger.Warn("admin credential rejected")
		return ErrInvalidCredential
	default:
		// Not started or already invalid: nothing to recover from.
		return ErrInvalidCredential
	}
}

func (c *Controller) recover(ctx context.Context) error {
	c.logger.Info("admin credential rejected; attempting automatic recovery")

	key, err := c.client.Bootstrap(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("automatic recovery failed", "error", err)
		c.mu.Lock()
		_, ferr := c.fireLocked(EventAutoRecoverFailed, "")
		c.lastErr = ErrInvalidCredential
		c.mu.Unlock()
		if ferr != nil {
			return ferr
		}
		return ErrInvalidCredential
	}

	action, err := c.fire(EventBootstrapSucceeded, key)
	if err != nil {
		return err
	}
	if action == ActionStoreCredential {
		return c.refresh(ctx, true)
	}
	return nil
}

func (c *Controller) inGraceWindow() bool {
	return c.graceWindow > 0 && c.clock.Now().Sub(c.startedAt) < c.graceWindow
}

// Clear forgets the admin credential and returns to StateUnconfigured.
func (c *Controller) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	action, err := c.fireLocked(EventCleared, "")
	if err != nil {
		return err
	}
	if action == ActionNone && c.store.AdminKey() != "" {
		// Unconfigured and Invalid hold no credential in the table's model,
		// but a stale file entry may remain.
		if err := c.store.ClearAdminKey(); err != nil {
			return err
		}
	}
	c.lastErr = nil
	return nil
}

// Status reports whether the gateway has issued an admin credential.
func (c *Controller) Status(ctx context.Context) (*gateway.AdminStatus, error) {
	status, err := c.client.AdminStatus(ctx, c.store.AdminKey())
	if err != nil {
		return nil, fmt.Errorf("reading admin status: %w", err)
	}
	return status, nil
}

// CreateKey issues a new tenant key and caches its plaintext under the
// returned tenant name.
func (c *Controller) CreateKey(ctx context.Context, name string) (*gateway.CreateKeyResponse, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	credential := c.store.AdminKey()
	if credential == "" {
		return nil, ErrNoCredential
	}

	created, err := c.client.CreateKey(ctx, credential, name)
	if err != nil {
		return nil, c.adminCallFailed(ctx, "creating key", err)
	}

	if err := c.store.Put(keystore.Entry{
		Name:   created.Tenant,
		Secret: created.APIKey,
		Tenant: created.Tenant,
	}); err != nil {
		return created, fmt.Errorf("caching issued key: %w", err)
	}

	if err := c.refresh(ctx, false); err != nil && ctx.Err() != nil {
		return created, err
	}
	return created, nil
}

// DeleteKey revokes a key by id and refreshes the key list.
func (c *Controller) DeleteKey(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("key id is required")
	}
	credential := c.store.AdminKey()
	if credential == "" {
		return ErrNoCredential
	}

	if err := c.client.DeleteKey(ctx, credential, id); err != nil {
		return c.adminCallFailed(ctx, "deleting key", err)
	}

	if err := c.refresh(ctx, false); err != nil && ctx.Err() != nil {
		return err
	}
	return nil
}

// adminCallFailed routes rejected credentials into the same handling as a
// rejected key listing.
func (c *Controller) adminCallFailed(ctx context.Context, op string, err error) error {
	if ctx.Err() == nil && gateway.IsAuthError(err) {
		if uerr := c.unauthorized(ctx); uerr != nil {
			return fmt.Errorf("%s: %w", op, uerr)
		}
		return fmt.Errorf("%s: credential rejected and replaced; retry: %w", op, err)
	}
	c.setErr(err)
	return fmt.Errorf("%s: %w", op, err)
}

// Keys returns the last fetched key list.
func (c *Controller) Keys() []gateway.APIKeyEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]gateway.APIKeyEntry(nil), c.keys...)
}

// Options reconciles the last fetched key list with the local cache.
func (c *Controller) Options() []keystore.KeyOption {
	return c.store.Reconcile(c.Keys())
}

// ResolveKey returns the cached secret for a key name, checking that the key
// is still active on the gateway.
func (c *Controller) ResolveKey(name string) (string, error) {
	return c.store.Resolve(name, keystore.ActiveNames(c.Keys()))
}

// State returns the current session state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// View is a point-in-time summary of the session.
type View struct {
	State         State
	SessionID     string
	HasCredential bool
	Recovered     bool
	Listed        bool
	KeyCount      int
	Err           error
}

// View summarizes the session.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return View{
		State:         c.state,
		SessionID:     c.sessionID.String(),
		HasCredential: c.store.AdminKey() != "",
		Recovered:     c.recovered,
		Listed:        c.listed,
		KeyCount:      len(c.keys),
		Err:           c.lastErr,
	}
}

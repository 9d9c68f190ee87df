// Package mockgw is an in-memory chat-completion gateway. It serves every
// endpoint the portal client talks to, for local development and for
// in-process integration tests.
package mockgw

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/gofiber/fiber/v2"
	recovermw "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"

	"github.com/papercomputeco/portal/pkg/gateway"
	"github.com/papercomputeco/portal/pkg/gateway/header"
)

// apiKey is one issued tenant key. The secret is kept only server side.
type apiKey struct {
	entry  gateway.APIKeyEntry
	secret string

	// pending keys are not listed and do not authenticate.
	pending bool
}

// Server is the mock gateway.
type Server struct {
	config Config
	logger *slog.Logger
	server *fiber.App

	// provisioner is nil unless Config.ProvisionDelay is positive.
	provisioner *provisioner

	mu              sync.Mutex
	adminKey        string
	keys            []*apiKey
	tokensRemaining int
}

// New creates a Server with empty state: no admin key and no API keys.
func New(config Config, logger *slog.Logger) (*Server, error) {
	config = config.withDefaults()

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		StreamRequestBody:     true,
	})
	app.Use(recovermw.New())
	app.Use(requestid.New(requestid.Config{
		Header:    header.RequestID,
		Generator: uuid.NewString,
	}))

	s := &Server{
		config:          config,
		logger:          logger,
		server:          app,
		tokensRemaining: config.TokensRemaining,
	}

	if config.ProvisionDelay > 0 {
		p, err := newProvisioner(&provisionerConfig{
			Delay:    config.ProvisionDelay,
			Clock:    config.Clock,
			Logger:   logger,
			Activate: s.activate,
		})
		if err != nil {
			return nil, fmt.Errorf("creating key provisioner: %w", err)
		}
		s.provisioner = p
	}

	app.Get(gateway.PathHealth, s.handleHealth)
	app.Get(gateway.PathHealthOllama, s.handleProviderHealth)

	app.Post(gateway.PathChat, s.requireAPIKey, s.handleChat)
	app.Post(gateway.PathChatStream, s.requireAPIKey, s.handleChatStream)

	app.Post(gateway.PathAdminBootstrap, s.handleBootstrap)
	app.Get(gateway.PathAdminStatus, s.handleStatus)
	app.Post(gateway.PathAdminRotate, s.requireAdminKey, s.handleRotate)
	app.Get(gateway.PathAdminKeys, s.requireAdminKey, s.handleListKeys)
	app.Post(gateway.PathAdminKeys, s.requireAdminKey, s.handleCreateKey)
	app.Delete(gateway.PathAdminKeys+"/:id", s.requireAdminKey, s.handleDeleteKey)

	return s, nil
}

// Run starts the server on the configured listening address.
func (s *Server) Run() error {
	s.logger.Info("starting mock gateway", "listen", s.config.ListenAddr)
	return s.server.Listen(s.config.ListenAddr)
}

// RunWithListener starts the server using the provided listener.
func (s *Server) RunWithListener(listener net.Listener) error {
	s.logger.Info("starting mock gateway", "listen", listener.Addr().String())
	return s.server.Listener(listener)
}

// Close gracefully shuts down the server and stops key provisioning.
func (s *Server) Close() error {
	err := s.server.Shutdown()
	if s.provisioner != nil {
		s.provisioner.Close()
	}
	return err
}

// Reset forgets the admin key and every API key, as if the gateway had
// restarted without persistence.
func (s *Server) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adminKey = ""
	s.keys = nil
	s.tokensRemaining = s.config.TokensRemaining
}

// AdminKey returns the current admin key, or "" before bootstrap.
func (s *Server) AdminKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adminKey
}

// Doer serves requests in-process without a listener.
func (s *Server) Doer() gateway.Doer {
	return doer{app: s.server}
}

type doer struct {
	app *fiber.App
}

func (d doer) Do(req *http.Request) (*http.Response, error) {
	if err := req.Context().Err(); err != nil {
		return nil, err
	}
	return d.app.Test(req, -1)
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(gateway.HealthStatus{Status: "ok"})
}

func (s *Server) handleProviderHealth(c *fiber.Ctx) error {
	if s.config.ProviderDown {
		return writeError(c, fiber.StatusServiceUnavailable, "provider_unavailable", "Provider is not reachable")
	}
	return c.JSON(gateway.HealthStatus{Status: "ok"})
}

func writeError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(gateway.ErrorResponse{
		Error: &gateway.ErrorDetail{Code: code, Message: message},
	})
}

func bearer(c *fiber.Ctx) string {
	token, ok := strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

func newSecret(prefix string) string {
	return prefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

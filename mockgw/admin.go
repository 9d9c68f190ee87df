package mockgw

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/papercomputeco/portal/pkg/gateway"
)

func (s *Server) requireAdminKey(c *fiber.Ctx) error {
	token := bearer(c)

	s.mu.Lock()
	ok := s.adminKey != "" && token == s.adminKey
	s.mu.Unlock()

	if !ok {
		return writeError(c, fiber.StatusUnauthorized, "invalid_admin_key", "Admin key is missing or invalid")
	}
	return c.Next()
}

func (s *Server) handleBootstrap(c *fiber.Ctx) error {
	s.mu.Lock()
	if s.adminKey != "" {
		s.mu.Unlock()
		return writeError(c, fiber.StatusConflict, "admin_exists", "Admin key already configured; rotate it instead")
	}
	s.adminKey = newSecret("adm_")
	key := s.adminKey
	s.mu.Unlock()

	s.logger.Info("admin key bootstrapped")
	return c.JSON(gateway.IssuedKeyResponse{APIKey: key})
}

func (s *Server) handleRotate(c *fiber.Ctx) error {
	s.mu.Lock()
	s.adminKey = newSecret("adm_")
	key := s.adminKey
	s.mu.Unlock()

	s.logger.Info("admin key rotated")
	return c.JSON(gateway.IssuedKeyResponse{APIKey: key})
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	s.mu.Lock()
	initialized := s.adminKey != ""
	s.mu.Unlock()

	return c.JSON(gateway.AdminStatus{AdminInitialized: initialized})
}

func (s *Server) handleListKeys(c *fiber.Ctx) error {
	s.mu.Lock()
	entries := make([]gateway.APIKeyEntry, 0, len(s.keys))
	for _, k := range s.keys {
		if k.pending {
			continue
		}
		entries = append(entries, k.entry)
	}
	s.mu.Unlock()

	return c.JSON(gateway.KeysResponse{Keys: entries})
}

func (s *Server) handleCreateKey(c *fiber.Ctx) error {
	var req gateway.CreateKeyRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return writeError(c, fiber.StatusBadRequest, gateway.CodeInvalidRequest, "Request body must be JSON")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return writeError(c, fiber.StatusBadRequest, gateway.CodeInvalidRequest, "Key name is required")
	}

	key := &apiKey{
		entry: gateway.APIKeyEntry{
			ID:        "key_" + uuid.NewString()[:8],
			Name:      &name,
			Tenant:    name,
			Active:    true,
			CreatedAt: s.config.Clock.Now().UTC().Format(time.RFC3339),
		},
		secret:  newSecret("sk-"),
		pending: s.provisioner != nil,
	}

	s.mu.Lock()
	s.keys = append(s.keys, key)
	s.mu.Unlock()

	if s.provisioner != nil && !s.provisioner.Enqueue(provisionJob{key: key}) {
		s.activate(key)
	}

	s.logger.Info("api key created", "id", key.entry.ID, "tenant", name)
	return c.Status(fiber.StatusCreated).JSON(gateway.CreateKeyResponse{
		APIKey: key.secret,
		Tenant: name,
	})
}

// activate makes a pending key listed and usable.
func (s *Server) activate(key *apiKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key.pending = false
}

func (s *Server) handleDeleteKey(c *fiber.Ctx) error {
	id := c.Params("id")

	s.mu.Lock()
	var found *apiKey
	for _, k := range s.keys {
		if k.entry.ID == id {
			found = k
			break
		}
	}
	if found != nil {
		found.entry.Active = false
	}
	s.mu.Unlock()

	if found == nil {
		return writeError(c, fiber.StatusNotFound, "not_found", "No key with id "+id)
	}

	s.logger.Info("api key revoked", "id", id)
	return c.SendStatus(fiber.StatusNoContent)
}

package mockgw

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/papercomputeco/portal/pkg/chat"
	"github.com/papercomputeco/portal/pkg/gateway"
	"github.com/papercomputeco/portal/pkg/gateway/header"
	"github.com/papercomputeco/portal/pkg/sse"
)

const (
	autoModel   = "auto"
	localTenant = "tenant"
)

func (s *Server) requireAPIKey(c *fiber.Ctx) error {
	token := bearer(c)

	s.mu.Lock()
	var tenant string
	for _, k := range s.keys {
		if k.entry.Active && !k.pending && k.secret == token {
			tenant = k.entry.Tenant
			break
		}
	}
	s.mu.Unlock()

	if token == "" || tenant == "" {
		return writeError(c, fiber.StatusUnauthorized, "invalid_api_key", "API key is missing, revoked or unknown")
	}
	c.Locals(localTenant, tenant)
	return c.Next()
}

// completion is one mock answer, shared by the JSON and streaming handlers.
type completion struct {
	id          string
	model       string
	routeReason string
	created     int64
	usage       gateway.Usage
	remaining   int
}

// complete validates the request and prepares the answer. A nil completion
// means the error response has already been written.
func (s *Server) complete(c *fiber.Ctx) (*completion, error) {
	var req gateway.ChatRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return nil, writeError(c, fiber.StatusBadRequest, gateway.CodeInvalidRequest, "Request body must be JSON")
	}
	if err := req.Validate(); err != nil {
		return nil, writeError(c, fiber.StatusBadRequest, gateway.CodeInvalidRequest, err.Error())
	}

	out := &completion{
		id:          "chatcmpl-" + uuid.NewString(),
		model:       req.Model,
		routeReason: "requested",
		created:     s.config.Clock.Now().Unix(),
	}
	if req.Model == autoModel {
		out.model = s.config.Model
		out.routeReason = "auto"
	}

	prompt := chat.EstimateTokens(strings.TrimSpace(req.SystemPrompt()) + " " + strings.TrimSpace(req.UserPrompt()))
	completionTokens := chat.EstimateTokens(strings.Join(s.config.Deltas, ""))
	out.usage = gateway.Usage{
		PromptTokens:     prompt,
		CompletionTokens: completionTokens,
		TotalTokens:      prompt + completionTokens,
	}

	s.mu.Lock()
	s.tokensRemaining = max(s.tokensRemaining-out.usage.TotalTokens, 0)
	out.remaining = s.tokensRemaining
	s.mu.Unlock()

	c.Set(header.ModelChosen, out.model)
	c.Set(header.Provider, providerName)
	c.Set(header.RouteReason, out.routeReason)
	c.Set(header.Cache, "MISS")
	c.Set(header.TokensRemaining, strconv.Itoa(out.remaining))

	s.logger.Debug("mock completion",
		"tenant", c.Locals(localTenant),
		"model", out.model,
		"total_tokens", out.usage.TotalTokens,
	)
	return out, nil
}

func (s *Server) handleChat(c *fiber.Ctx) error {
	out, err := s.complete(c)
	if out == nil {
		return err
	}

	return c.JSON(gateway.ChatResponse{
		ID:       out.id,
		Model:    out.model,
		Created:  out.created,
		Content:  strings.Join(s.config.Deltas, ""),
		Provider: providerName,
	})
}

func (s *Server) handleChatStream(c *fiber.Ctx) error {
	out, err := s.complete(c)
	if out == nil {
		return err
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Status(fiber.StatusOK)

	// io.Pipe gives per-frame backpressure: each write blocks until fasthttp
	// has flushed the previous chunk.
	pr, pw := io.Pipe()
	go s.stream(pw, out)
	c.Context().Response.SetBodyStream(pr, -1)
	return nil
}

func (s *Server) stream(pw *io.PipeWriter, out *completion) {
	defer pw.Close()

	frames := make([]gateway.StreamPayload, 0, len(s.config.Deltas)+1)
	for i, delta := range s.config.Deltas {
		frames = append(frames, gateway.StreamPayload{
			ID:       out.id,
			Model:    out.model,
			Created:  out.created,
			Provider: providerName,
			Content:  delta,
		})
		if i == 0 && s.config.StreamError != nil {
			frames = append(frames, gateway.StreamPayload{ID: out.id, Error: s.config.StreamError})
			break
		}
	}
	if s.config.StreamError == nil {
		usage := out.usage
		frames = append(frames, gateway.StreamPayload{ID: out.id, Done: true, Usage: &usage})
	}

	for i, frame := range frames {
		if i > 0 && s.config.TokenDelay > 0 {
			_ = s.config.Clock.Sleep(context.Background(), s.config.TokenDelay)
		}
		data, err := json.Marshal(frame)
		if err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		if _, err := fmt.Fprintf(pw, "data: %s\n\n", data); err != nil {
			s.logger.Debug("stream client went away", "error", err)
			return
		}
	}

	if s.config.StreamError != nil {
		return
	}
	if _, err := fmt.Fprintf(pw, "data: %s\n\n", sse.Sentinel); err != nil {
		s.logger.Debug("stream client went away", "error", err)
	}
}

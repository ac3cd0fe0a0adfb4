package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"chessmatch/internal/logging"
	"chessmatch/internal/ticket"
)

// AuthHeader carries the caller's auth token, issued by the identity
// provider (out of scope here). The token resolves to a user id through
// the ticket store; callers without one play anonymously.
const AuthHeader = "X-Auth-Token"

const identityKey = "identity"

// ResolveIdentity resolves the optional auth token into a user id and
// stores it on the request context.
func (h *Handler) ResolveIdentity(c *fiber.Ctx) error {
	token := c.Get(AuthHeader)
	if token == "" {
		return c.Next()
	}
	var userID string
	if err := h.Tickets.Get(c.Context(), "auth:"+token, &userID); err != nil {
		if !errors.Is(err, ticket.ErrNotFound) {
			logging.Errorf("handlers: resolve identity: %v", err)
		}
		return c.Next()
	}
	c.Locals(identityKey, userID)
	return c.Next()
}

func identity(c *fiber.Ctx) string {
	if id, ok := c.Locals(identityKey).(string); ok {
		return id
	}
	return ""
}

package auth

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Middleware validates a Bearer token signed with HS256 and resolves the
// caller to a local user row via the email claim, creating the row on first
// sight. The resolved id lands in c.Locals("user_id").
func Middleware(secret []byte, users *Repo) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing token")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}

		token, err := jwt.Parse(parts[1], func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fiber.NewError(fiber.StatusUnauthorized, "invalid token")
			}
			return secret, nil
		})
		if err != nil || !token.Valid {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}

		email, ok := claims["email"].(string)
		if !ok || strings.TrimSpace(email) == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}

		userID, err := users.UpsertByEmail(userContext(c), strings.ToLower(strings.TrimSpace(email)))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to resolve user")
		}

		c.Locals("user_id", userID.String())

		// Update last_seen_at (best-effort, do not block request)
		go func(uid uuid.UUID) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = users.TouchLastSeen(ctx, uid)
		}(userID)

		return c.Next()
	}
}

// UserID reads the authenticated user id set by Middleware.
func UserID(c *fiber.Ctx) (uuid.UUID, bool) {
	raw, ok := c.Locals("user_id").(string)
	if !ok || raw == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func userContext(c *fiber.Ctx) context.Context {
	if ctx := c.UserContext(); ctx != nil {
		return ctx
	}
	return context.Background()
}

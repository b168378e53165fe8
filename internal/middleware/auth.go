package middleware

import (
	"strings"

	"github.com/changedesk/changedesk/internal/config"
	"github.com/changedesk/changedesk/internal/dto"
	"github.com/changedesk/changedesk/internal/policy"
	"github.com/changedesk/changedesk/internal/services"
	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
)

// SessionCookie is the fixed session cookie name. The cookie is checked
// before the Authorization header.
const SessionCookie = "cm_session"

const identityKey = "identity"

// ResolveIdentity runs on every request. It resolves the session token
// (cookie first, bearer header fallback) to an identity in locals.
// Resolution failure is not an error: public operations accept anonymous
// callers, and SessionRequired rejects them where a session is needed.
func ResolveIdentity(authService *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Cookies(SessionCookie)
		if raw == "" {
			header := c.Get(fiber.HeaderAuthorization)
			if strings.HasPrefix(header, "Bearer ") {
				raw = strings.TrimPrefix(header, "Bearer ")
			}
		}
		if raw != "" {
			if identity := authService.ResolveToken(raw); identity != nil {
				c.Locals(identityKey, identity)
			}
		}
		return c.Next()
	}
}

// Identity returns the resolved caller, or nil for anonymous requests.
func Identity(c *fiber.Ctx) *policy.Identity {
	if identity, ok := c.Locals(identityKey).(*policy.Identity); ok {
		return identity
	}
	return nil
}

// SessionRequired rejects requests without a valid session token.
func SessionRequired(cfg *config.Config) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:  jwtware.SigningKey{Key: []byte(cfg.SessionSecret)},
		TokenLookup: "cookie:" + SessionCookie + ",header:" + fiber.HeaderAuthorization,
		AuthScheme:  "Bearer",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error:   true,
				Message: "Unauthorized: invalid or expired session",
			})
		},
	})
}

package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/agro-insight/agroinsight/internal/fakebackend/auth"
	"github.com/agro-insight/agroinsight/internal/fakebackend/identity"
)

const userLocal = "user"

// Bearer validates the access token and loads its user. Tokens for deleted
// users are refused like invalid ones.
func Bearer(tokens *auth.Issuer, ids *identity.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		claims, err := tokens.Parse(strings.TrimSpace(authz[len("Bearer "):]))
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid or expired token")
		}
		user, err := ids.Get(c.UserContext(), claims.Subject)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "token invalidated")
		}
		c.Locals(userLocal, user)
		return c.Next()
	}
}

// CurrentUser returns the user loaded by Bearer.
func CurrentUser(c *fiber.Ctx) (identity.User, bool) {
	user, ok := c.Locals(userLocal).(identity.User)
	return user, ok
}

package routes

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/agro-insight/agroinsight/internal/fakebackend/auth"
	"github.com/agro-insight/agroinsight/internal/fakebackend/middleware"
)

// RegisterUserRoutes wires the profile endpoint.
func RegisterUserRoutes(r fiber.Router) {
	r.Get("/users/me", func(c *fiber.Ctx) error {
		user, ok := middleware.CurrentUser(c)
		if !ok {
			return fiber.NewError(http.StatusUnauthorized, "not authenticated")
		}
		return c.JSON(auth.NewUserResponse(user))
	})
}

package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/agro-insight/agroinsight/internal/fakebackend/auth"
)

// RegisterAuthRoutes wires the public authentication endpoints.
func RegisterAuthRoutes(r fiber.Router, h *auth.Handler, rateLimiter fiber.Handler) {
	group := r.Group("/auth")
	group.Post("/login", rateLimiter, h.Login)
	group.Post("/verify", h.Verify)
	group.Post("/resend-code", h.ResendCode)
	group.Post("/register", h.Register)
	group.Post("/forgot-password", h.ForgotPassword)
	group.Post("/reset-password", h.ResetPassword)
}

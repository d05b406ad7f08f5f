package auth

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/agro-insight/agroinsight/internal/fakebackend/identity"
	"github.com/agro-insight/agroinsight/internal/validation"
)

// Handler exposes the auth endpoints.
type Handler struct {
	ids *identity.Service
	svc *Service
}

// NewHandler builds the auth handler.
func NewHandler(ids *identity.Service, svc *Service) *Handler {
	return &Handler{ids: ids, svc: svc}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Message              string `json:"message"`
	Email                string `json:"email"`
	RequiresVerification bool   `json:"requires_verification"`
}

// Login checks credentials and sends the second-factor code.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	user, err := h.svc.StartLogin(c.UserContext(), identity.Credentials{Email: req.Email, Password: req.Password})
	if errors.Is(err, identity.ErrInvalidCredentials) {
		return fiber.NewError(http.StatusUnauthorized, err.Error())
	}
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(loginResponse{
		Message:              "verification code sent",
		Email:                user.Email,
		RequiresVerification: true,
	})
}

type verifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type verifyResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int64        `json:"expires_in"`
	User        UserResponse `json:"user"`
}

// UserResponse is the public shape of an account.
type UserResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
	FarmID    int64  `json:"farm_id,omitempty"`
}

// NewUserResponse strips private fields.
func NewUserResponse(u identity.User) UserResponse {
	return UserResponse{ID: u.ID, Email: u.Email, FirstName: u.FirstName, LastName: u.LastName, Role: u.Role, FarmID: u.FarmID}
}

// Verify exchanges the code for a token.
func (h *Handler) Verify(c *fiber.Ctx) error {
	var req verifyRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	grant, err := h.svc.Verify(c.UserContext(), req.Email, req.Code)
	if errors.Is(err, ErrInvalidCode) {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(verifyResponse{
		AccessToken: grant.AccessToken,
		TokenType:   "bearer",
		ExpiresIn:   int64(grant.ExpiresAt.Sub(h.svc.tokens.now()).Seconds()),
		User:        NewUserResponse(grant.User),
	})
}

type emailRequest struct {
	Email string `json:"email"`
}

// ResendCode re-sends the pending login code.
func (h *Handler) ResendCode(c *fiber.Ctx) error {
	var req emailRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	err := h.svc.ResendLogin(c.UserContext(), req.Email)
	if errors.Is(err, ErrNoChallenge) {
		return fiber.NewError(http.StatusBadRequest, "no pending verification for this email")
	}
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{"message": "verification code re-sent"})
}

type registerRequest struct {
	FirstName string `json:"first_name" validate:"required,max=80"`
	LastName  string `json:"last_name" validate:"required,max=80"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8,max=128,password"`
}

// Register creates an account. Field problems come back as a 422 detail
// array.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := validation.Struct(req); err != nil {
		return ValidationProblem(c, err)
	}
	user, err := h.ids.Register(c.UserContext(), identity.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	})
	if errors.Is(err, identity.ErrEmailTaken) {
		return fiber.NewError(http.StatusConflict, err.Error())
	}
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"message": "account created", "user_id": user.ID})
}

// ForgotPassword emails a reset code.
func (h *Handler) ForgotPassword(c *fiber.Ctx) error {
	var req emailRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.ForgotPassword(c.UserContext(), req.Email); err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{"message": "if the account exists, a reset code was sent"})
}

type resetRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Code        string `json:"code" validate:"required,digits"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=128,password"`
}

// ResetPassword sets a new password.
func (h *Handler) ResetPassword(c *fiber.Ctx) error {
	var req resetRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := validation.Struct(req); err != nil {
		return ValidationProblem(c, err)
	}
	err := h.svc.ResetPassword(c.UserContext(), req.Email, req.Code, req.NewPassword)
	if errors.Is(err, ErrInvalidCode) {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{"message": "password updated"})
}

type detailItem struct {
	Msg  string   `json:"msg"`
	Loc  []string `json:"loc"`
	Type string   `json:"type"`
}

// ValidationProblem renders a 422 with one detail entry per field.
func ValidationProblem(c *fiber.Ctx, err error) error {
	var verr *validation.Error
	if !errors.As(err, &verr) {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	items := make([]detailItem, 0, len(verr.Fields))
	for _, f := range verr.Fields {
		items = append(items, detailItem{Msg: f.Message, Loc: []string{"body", f.Field}, Type: "value_error"})
	}
	return c.Status(http.StatusUnprocessableEntity).JSON(fiber.Map{"detail": items})
}

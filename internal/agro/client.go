// Package agro maps every backend endpoint to an explicit result type. All
// calls go through the gateway.
package agro

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agro-insight/agroinsight/internal/gateway"
	"github.com/agro-insight/agroinsight/internal/validation"
)

// Endpoint paths under the configured base URL.
const (
	PathLogin          = "/auth/login"
	PathVerify         = "/auth/verify"
	PathResendCode     = "/auth/resend-code"
	PathRegister       = "/auth/register"
	PathForgotPassword = "/auth/forgot-password"
	PathResetPassword  = "/auth/reset-password"
	PathMe             = "/users/me"
	PathFarms          = "/farms"
	PathCrops          = "/crops"
	PathTasks          = "/tasks"
	PathCosts          = "/costs"
	PathPestDetection  = "/pest-detection"
)

const dateLayout = "2006-01-02"

// Client is the typed backend API.
type Client struct {
	gw gateway.Doer
}

// NewClient wraps a gateway.
func NewClient(gw gateway.Doer) *Client {
	return &Client{gw: gw}
}

func farmPath(id int64, rest ...string) string {
	return PathFarms + "/" + strconv.FormatInt(id, 10) + strings.Join(rest, "")
}

func taskPath(id int64, rest ...string) string {
	return PathTasks + "/" + strconv.FormatInt(id, 10) + strings.Join(rest, "")
}

// Login submits credentials. A successful answer means a code was emailed.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	return gateway.Call[LoginResult](ctx, c.gw, gateway.Request{
		Method: http.MethodPost,
		Path:   PathLogin,
		Body:   map[string]string{"email": email, "password": password},
		Public: true,
	})
}

// VerifyCode exchanges the emailed code for a token.
func (c *Client) VerifyCode(ctx context.Context, email, code string) (TokenGrant, error) {
	grant, err := gateway.Call[TokenGrant](ctx, c.gw, gateway.Request{
		Method: http.MethodPost,
		Path:   PathVerify,
		Body:   map[string]string{"email": email, "code": code},
		Public: true,
	})
	if err != nil {
		return TokenGrant{}, err
	}
	if grant.AccessToken == "" {
		return TokenGrant{}, &gateway.DecodeError{Path: PathVerify, Err: fmt.Errorf("access_token missing")}
	}
	return grant, nil
}

// ResendCode asks the backend to send the pending code again.
func (c *Client) ResendCode(ctx context.Context, email string) (MessageResult, error) {
	return gateway.Call[MessageResult](ctx, c.gw, gateway.Request{
		Method: http.MethodPost,
		Path:   PathResendCode,
		Body:   map[string]string{"email": email},
		Public: true,
	})
}

type registerBody struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// Register creates an account after local validation.
func (c *Client) Register(ctx context.Context, form validation.Register) (RegisterResult, error) {
	if err := validation.Struct(form); err != nil {
		return RegisterResult{}, err
	}
	return gateway.Call[RegisterResult](ctx, c.gw, gateway.Request{
		Method: http.MethodPost,
		Path:   PathRegister,
		Body:   registerBody{FirstName: form.FirstName, LastName: form.LastName, Email: form.Email, Password: form.Password},
		Public: true,
	})
}

// RequestPasswordReset emails a reset code.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) (MessageResult, error) {
	if err := validation.Struct(validation.ForgotPassword{Email: email}); err != nil {
		return MessageResult{}, err
	}
	return gateway.Call[MessageResult](ctx, c.gw, gateway.Request{
		Method: http.MethodPost,
		Path:   PathForgotPassword,
		Body:   map[string]string{"email": email},
		Public: true,
	})
}

// ResetPassword sets a new password with the emailed code.
func (c *Client) ResetPassword(ctx context.Context, form validation.ResetPassword) (MessageResult, error) {
	if err := validation.Struct(form); err != nil {
		return MessageResult{}, err
	}
	return gateway.Call[MessageResult](ctx, c.gw, gateway.Request{
		Method: http.MethodPost,
		Path:   PathResetPassword,
		Body:   map[string]string{"email": form.Email, "code": form.Code, "new_password": form.Password},
		Public: true,
	})
}

// Me fetches the current user. It doubles as the session validation call.
func (c *Client) Me(ctx context.Context) (User, error) {
	return gateway.Call[User](ctx, c.gw, gateway.Request{Path: PathMe})
}

// ListFarms lists the farms visible to the user.
func (c *Client) ListFarms(ctx context.Context) ([]Farm, error) {
	return gateway.Call[[]Farm](ctx, c.gw, gateway.Request{Path: PathFarms})
}

// GetFarm fetches one farm.
func (c *Client) GetFarm(ctx context.Context, farmID int64) (Farm, error) {
	return gateway.Call[Farm](ctx, c.gw, gateway.Request{Path: farmPath(farmID)})
}

// CreateFarm creates a farm.
func (c *Client) CreateFarm(ctx context.Context, form validation.Farm) (Farm, error) {
	if err := validation.Struct(form); err != nil {
		return Farm{}, err
	}
	return gateway.Call[Farm](ctx, c.gw, gateway.Request{Method: http.MethodPost, Path: PathFarms, Body: form})
}

// ListPlots lists the plots of a farm.
func (c *Client) ListPlots(ctx context.Context, farmID int64) ([]Plot, error) {
	return gateway.Call[[]Plot](ctx, c.gw, gateway.Request{Path: farmPath(farmID, "/plots")})
}

// CreatePlot adds a plot to a farm.
func (c *Client) CreatePlot(ctx context.Context, form validation.Plot) (Plot, error) {
	if err := validation.Struct(form); err != nil {
		return Plot{}, err
	}
	return gateway.Call[Plot](ctx, c.gw, gateway.Request{Method: http.MethodPost, Path: farmPath(form.FarmID, "/plots"), Body: form})
}

// ListCrops returns the crop catalogue.
func (c *Client) ListCrops(ctx context.Context) ([]Crop, error) {
	return gateway.Call[[]Crop](ctx, c.gw, gateway.Request{Path: PathCrops})
}

// ListTasks lists the tasks of a farm.
func (c *Client) ListTasks(ctx context.Context, farmID int64) ([]Task, error) {
	return gateway.Call[[]Task](ctx, c.gw, gateway.Request{Path: farmPath(farmID, "/tasks")})
}

// GetTask fetches one task.
func (c *Client) GetTask(ctx context.Context, taskID int64) (Task, error) {
	return gateway.Call[Task](ctx, c.gw, gateway.Request{Path: taskPath(taskID)})
}

// CreateTask creates a task on a farm.
func (c *Client) CreateTask(ctx context.Context, form validation.Task) (Task, error) {
	if err := validation.Struct(form); err != nil {
		return Task{}, err
	}
	return gateway.Call[Task](ctx, c.gw, gateway.Request{Method: http.MethodPost, Path: farmPath(form.FarmID, "/tasks"), Body: form})
}

// AssignTask gives a task to a user.
func (c *Client) AssignTask(ctx context.Context, taskID int64, userID string) (Task, error) {
	if strings.TrimSpace(userID) == "" {
		return Task{}, &validation.Error{Fields: []validation.FieldError{{Field: "user_id", Message: "assignee is required"}}}
	}
	return gateway.Call[Task](ctx, c.gw, gateway.Request{
		Method: http.MethodPost,
		Path:   taskPath(taskID, "/assign"),
		Body:   map[string]string{"user_id": userID},
	})
}

// CompleteTask marks a task done.
func (c *Client) CompleteTask(ctx context.Context, taskID int64) (Task, error) {
	return gateway.Call[Task](ctx, c.gw, gateway.Request{Method: http.MethodPost, Path: taskPath(taskID, "/complete")})
}

// RegisterCost records an expense. Each call carries a fresh idempotency
// key, so a request the transport delivers twice is recorded once.
func (c *Client) RegisterCost(ctx context.Context, form validation.Cost) (Cost, error) {
	return c.RegisterCostWithKey(ctx, uuid.NewString(), form)
}

// RegisterCostWithKey is RegisterCost with a caller-chosen key. Submitting
// the same key again returns the first result instead of a second cost.
func (c *Client) RegisterCostWithKey(ctx context.Context, key string, form validation.Cost) (Cost, error) {
	if err := validation.Struct(form); err != nil {
		return Cost{}, err
	}
	return gateway.Call[Cost](ctx, c.gw, gateway.Request{Method: http.MethodPost, Path: PathCosts, Body: form, IdempotencyKey: key})
}

// FinancialReport summarises a farm's costs. Zero times leave the period open.
func (c *Client) FinancialReport(ctx context.Context, farmID int64, from, to time.Time) (FinancialReport, error) {
	q := url.Values{}
	if !from.IsZero() {
		q.Set("from", from.Format(dateLayout))
	}
	if !to.IsZero() {
		q.Set("to", to.Format(dateLayout))
	}
	return gateway.Call[FinancialReport](ctx, c.gw, gateway.Request{Path: farmPath(farmID, "/reports/financial"), Query: q})
}

// DetectPest uploads a local image for classification. imageURI may be a
// plain path or a file:// URI.
func (c *Client) DetectPest(ctx context.Context, plotID int64, imageURI string) (PestDetection, error) {
	path, err := localPath(imageURI)
	if err != nil {
		return PestDetection{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return PestDetection{}, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	return gateway.Call[PestDetection](ctx, c.gw, gateway.Request{
		Method: http.MethodPost,
		Path:   PathPestDetection,
		Body: &gateway.Upload{
			Field:    "image",
			FileName: filepath.Base(path),
			Content:  f,
			Fields:   map[string]string{"plot_id": strconv.FormatInt(plotID, 10)},
		},
	})
}

func localPath(uri string) (string, error) {
	if uri == "" {
		return "", &validation.Error{Fields: []validation.FieldError{{Field: "image", Message: "an image is required"}}}
	}
	if !strings.Contains(uri, "://") {
		return uri, nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("parse image uri: %w", err)
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("unsupported image uri scheme %q", u.Scheme)
	}
	return u.Path, nil
}

// Package gateway is the single place outbound backend calls go through. It
// attaches the bearer credential, classifies failures into a fixed error
// taxonomy and reports rejected credentials to the session owner.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agro-insight/agroinsight/internal/logging"
)

const (
	requestIDHeader      = "X-Request-ID"
	idempotencyKeyHeader = "Idempotency-Key"
	maxBodyBytes         = 10 << 20
)

// TokenSource yields the current bearer token, or "" when signed out.
type TokenSource interface {
	Token() string
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func() string

func (f TokenFunc) Token() string { return f() }

// RejectHook runs when an authenticated call comes back 401/403. token is
// the exact credential that was rejected.
type RejectHook func(ctx context.Context, token string)

// Request describes one backend call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	// Body is JSON-encoded unless it is an *Upload.
	Body any
	// Public requests never carry the credential.
	Public bool
	// IdempotencyKey lets the backend recognise a replayed write.
	IdempotencyKey string
}

// Upload is a multipart body with a single file part.
type Upload struct {
	Field    string
	FileName string
	Content  io.Reader
	Fields   map[string]string
}

// Doer is what API clients depend on.
type Doer interface {
	Do(ctx context.Context, req Request, out any) error
}

// Gateway is safe for concurrent use.
type Gateway struct {
	baseURL *url.URL
	client  *http.Client
	logger  *slog.Logger

	mu       sync.RWMutex
	tokens   TokenSource
	onReject RejectHook
}

// Option customises a Gateway.
type Option func(*Gateway)

// WithHTTPClient replaces the default client. Timeouts live on the client.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) { g.client = c }
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

// WithTimeout builds a default client with the given timeout.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) { g.client = &http.Client{Timeout: d} }
}

// New builds a gateway rooted at baseURL.
func New(baseURL string, opts ...Option) (*Gateway, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}
	g := &Gateway{
		baseURL: u,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logging.Discard(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// SetTokenSource installs the credential provider.
func (g *Gateway) SetTokenSource(ts TokenSource) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tokens = ts
}

// OnAuthRejected installs the forced-logout hook.
func (g *Gateway) OnAuthRejected(fn RejectHook) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onReject = fn
}

func (g *Gateway) hooks() (TokenSource, RejectHook) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.tokens, g.onReject
}

// Do sends req and decodes a successful JSON answer into out, which may be nil.
func (g *Gateway) Do(ctx context.Context, req Request, out any) error {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	u := g.baseURL.JoinPath(req.Path)
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}

	body, contentType, err := encodeBody(req.Body)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	requestID := uuid.NewString()
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(requestIDHeader, requestID)
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if req.IdempotencyKey != "" {
		httpReq.Header.Set(idempotencyKeyHeader, req.IdempotencyKey)
	}

	tokens, onReject := g.hooks()
	var token string
	if !req.Public && tokens != nil {
		token = tokens.Token()
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := g.client.Do(httpReq)
	if err != nil {
		g.logger.Debug("backend call failed",
			slog.String("method", method),
			slog.String("path", req.Path),
			slog.String("request_id", requestID),
			slog.Duration("duration", time.Since(start)),
			slog.Any("error", err),
		)
		return &NetworkError{Method: method, Path: req.Path, Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &NetworkError{Method: method, Path: req.Path, Err: fmt.Errorf("read body: %w", err)}
	}

	g.logger.Debug("backend call",
		slog.String("method", method),
		slog.String("path", req.Path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
		slog.String("request_id", requestID),
		slog.Bool("authenticated", token != ""),
	)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || len(bytes.TrimSpace(payload)) == 0 {
			return nil
		}
		if err := json.Unmarshal(payload, out); err != nil {
			return &DecodeError{Path: req.Path, Err: err}
		}
		return nil
	}

	callErr := classify(resp.StatusCode, payload)
	if errors.Is(callErr, ErrAuthRejected) && token != "" && onReject != nil {
		onReject(ctx, token)
	}
	return callErr
}

// Call is Do with an explicit result type.
func Call[T any](ctx context.Context, d Doer, req Request) (T, error) {
	var out T
	if err := d.Do(ctx, req, &out); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

func encodeBody(body any) (io.Reader, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case *Upload:
		return encodeUpload(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			return nil, "", fmt.Errorf("encode body: %w", err)
		}
		return bytes.NewReader(raw), "application/json", nil
	}
}

func encodeUpload(up *Upload) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range up.Fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", k, err)
		}
	}
	field := up.Field
	if field == "" {
		field = "file"
	}
	part, err := w.CreateFormFile(field, up.FileName)
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if up.Content != nil {
		if _, err := io.Copy(part, up.Content); err != nil {
			return nil, "", fmt.Errorf("copy upload: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

type errorBody struct {
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Detail  json.RawMessage `json:"detail"`
}

type detailItem struct {
	Msg string `json:"msg"`
	Loc []any  `json:"loc"`
}

func classify(status int, payload []byte) error {
	message, fields := parseErrorBody(payload)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &AuthRejectedError{Status: status, Message: message}
	case status == http.StatusUnprocessableEntity:
		return &ValidationError{Message: message, Fields: fields}
	case status >= 500:
		return &ServerError{Status: status, Message: message}
	default:
		return &RequestError{Status: status, Message: message}
	}
}

// parseErrorBody picks the first non-empty of message, detail and error.
func parseErrorBody(payload []byte) (string, []FieldError) {
	var body errorBody
	if err := json.Unmarshal(payload, &body); err != nil {
		return strings.TrimSpace(string(payload)), nil
	}

	var (
		detailText string
		fields     []FieldError
	)
	if len(body.Detail) > 0 {
		var items []detailItem
		if err := json.Unmarshal(body.Detail, &items); err == nil {
			for _, it := range items {
				fields = append(fields, FieldError{Field: fieldName(it.Loc), Message: it.Msg})
			}
		} else {
			_ = json.Unmarshal(body.Detail, &detailText)
		}
	}

	switch {
	case body.Message != "":
		return body.Message, fields
	case detailText != "":
		return detailText, fields
	case body.Error != "":
		return body.Error, fields
	}
	return "", fields
}

func fieldName(loc []any) string {
	if len(loc) > 0 {
		if s, ok := loc[0].(string); ok && (s == "body" || s == "query" || s == "path") {
			loc = loc[1:]
		}
	}
	parts := make([]string, 0, len(loc))
	for _, l := range loc {
		switch v := l.(type) {
		case string:
			parts = append(parts, v)
		case float64:
			parts = append(parts, fmt.Sprintf("%d", int64(v)))
		default:
			parts = append(parts, fmt.Sprint(v))
		}
	}
	return strings.Join(parts, ".")
}

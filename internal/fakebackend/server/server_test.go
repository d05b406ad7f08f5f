package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/agro-insight/agroinsight/internal/config"
	"github.com/agro-insight/agroinsight/internal/fakebackend/identity"
	"github.com/agro-insight/agroinsight/internal/fakebackend/notification"
	"github.com/agro-insight/agroinsight/internal/logging"
)

func newTestServer(t *testing.T) (*Server, *notification.Outbox) {
	t.Helper()
	outbox := notification.NewOutbox(nil)
	cfg := config.Config{
		AppEnv:         "test",
		JWTSecret:      "test-secret",
		TokenTTL:       time.Hour,
		ChallengeTTL:   time.Minute,
		LoginRateLimit: 5,
		Port:           "0",
	}
	srv, err := New(context.Background(), cfg, logging.Discard(), Options{Notifier: outbox, HashCost: bcrypt.MinCost})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return srv, outbox
}

func do(t *testing.T, srv *Server, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.App().Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	out := map[string]any{}
	_ = json.Unmarshal(raw, &out)
	return resp.StatusCode, out
}

func signIn(t *testing.T, srv *Server, outbox *notification.Outbox, email, password string) string {
	t.Helper()
	status, _ := do(t, srv, http.MethodPost, "/auth/login", "", map[string]string{"email": email, "password": password})
	if status != http.StatusOK {
		t.Fatalf("login: expected 200 got %d", status)
	}
	msg, ok := outbox.Last(notification.KindLoginCode, email)
	if !ok {
		t.Fatalf("no code delivered")
	}
	status, body := do(t, srv, http.MethodPost, "/auth/verify", "", map[string]string{"email": email, "code": msg.Code})
	if status != http.StatusOK {
		t.Fatalf("verify: expected 200 got %d (%v)", status, body)
	}
	token, _ := body["access_token"].(string)
	if token == "" {
		t.Fatalf("verify returned no token: %v", body)
	}
	return token
}

func TestTwoStepLoginAndProfile(t *testing.T) {
	srv, outbox := newTestServer(t)

	status, body := do(t, srv, http.MethodPost, "/auth/login", "", map[string]string{"email": identity.DemoEmail, "password": "wrong"})
	if status != http.StatusUnauthorized || body["message"] == "" {
		t.Fatalf("expected 401 with message, got %d %v", status, body)
	}

	token := signIn(t, srv, outbox, identity.DemoEmail, identity.DemoPassword)

	status, body = do(t, srv, http.MethodGet, "/users/me", token, nil)
	if status != http.StatusOK {
		t.Fatalf("me: expected 200 got %d", status)
	}
	if body["email"] != identity.DemoEmail || body["role"] != identity.RoleManager {
		t.Fatalf("unexpected profile %v", body)
	}

	if status, _ := do(t, srv, http.MethodGet, "/users/me", "", nil); status != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", status)
	}
}

func TestRegisterReportsFieldErrors(t *testing.T) {
	srv, _ := newTestServer(t)
	status, body := do(t, srv, http.MethodPost, "/auth/register", "", map[string]string{
		"first_name": "Ana",
		"last_name":  "Rojas",
		"email":      "not-an-email",
		"password":   "short",
	})
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", status)
	}
	detail, ok := body["detail"].([]any)
	if !ok || len(detail) != 2 {
		t.Fatalf("expected two detail entries, got %v", body["detail"])
	}
}

func TestWorkerSeesOnlyOwnFarm(t *testing.T) {
	srv, outbox := newTestServer(t)
	token := signIn(t, srv, outbox, identity.DemoWorkerEmail, identity.DemoWorkerPassword)

	req := httptest.NewRequest(http.MethodGet, "/farms", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := srv.App().Test(req)
	if err != nil {
		t.Fatalf("list farms: %v", err)
	}
	defer resp.Body.Close()
	var farms []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&farms); err != nil {
		t.Fatalf("decode farms: %v", err)
	}
	if len(farms) != 1 || farms[0]["id"] != float64(1) {
		t.Fatalf("expected only farm 1, got %v", farms)
	}

	if status, _ := do(t, srv, http.MethodGet, "/tasks/3", token, nil); status != http.StatusNotFound {
		t.Fatalf("expected 404 for another farm's task, got %d", status)
	}
	if status, _ := do(t, srv, http.MethodPost, "/farms/1/tasks", token, map[string]string{"title": "x"}); status != http.StatusConflict {
		t.Fatalf("expected 409 for worker task creation, got %d", status)
	}
}

func TestPestDetectionUpload(t *testing.T) {
	srv, outbox := newTestServer(t)
	token := signIn(t, srv, outbox, identity.DemoEmail, identity.DemoPassword)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_ = w.WriteField("plot_id", "1")
	part, _ := w.CreateFormFile("image", "leaf.jpg")
	_, _ = part.Write([]byte("jpeg bytes"))
	_ = w.Close()

	req := httptest.NewRequest(http.MethodPost, "/pest-detection", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := srv.App().Test(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.StatusCode)
	}
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	if out["label"] == "" || out["plot_id"] != float64(1) {
		t.Fatalf("unexpected verdict %v", out)
	}
}

func TestHealthWithoutBackends(t *testing.T) {
	srv, _ := newTestServer(t)
	status, body := do(t, srv, http.MethodGet, "/healthz", "", nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 got %d", status)
	}
	st, _ := body["status"].(map[string]any)
	if st["postgres"] != "disabled" || st["redis"] != "disabled" {
		t.Fatalf("unexpected health %v", body)
	}
}

func TestCostReplayIsRecordedOnceWithRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	outbox := notification.NewOutbox(nil)
	cfg := config.Config{AppEnv: "test", JWTSecret: "test-secret", TokenTTL: time.Hour, ChallengeTTL: time.Minute, LoginRateLimit: 5}
	srv, err := New(context.Background(), cfg, logging.Discard(), Options{Cache: cache, Notifier: outbox, HashCost: bcrypt.MinCost})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	token := signIn(t, srv, outbox, identity.DemoEmail, identity.DemoPassword)

	post := func() (int, string) {
		raw, _ := json.Marshal(map[string]any{"farm_id": 1, "category": "labor", "amount": 40, "date": "2020-03-15"})
		req := httptest.NewRequest(http.MethodPost, "/costs", bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Idempotency-Key", "harvest-crew-march")
		resp, err := srv.App().Test(req)
		if err != nil {
			t.Fatalf("post cost: %v", err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, string(body)
	}
	firstStatus, first := post()
	secondStatus, second := post()
	if firstStatus != http.StatusCreated || secondStatus != http.StatusCreated || first != second {
		t.Fatalf("expected identical replay, got %d %s / %d %s", firstStatus, first, secondStatus, second)
	}

	status, report := do(t, srv, http.MethodGet, "/farms/1/reports/financial?from=2020-03-01&to=2020-03-31", token, nil)
	if status != http.StatusOK || report["total_cost"] != float64(40) {
		t.Fatalf("expected the cost once, got %d %v", status, report)
	}
}

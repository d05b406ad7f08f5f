package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/agro-insight/agroinsight/internal/fakebackend/identity"
	"github.com/agro-insight/agroinsight/internal/logging"
)

func idempotentApp(t *testing.T) (*fiber.App, *int) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		cache.Close()
		mr.Close()
	})

	calls := 0
	app := fiber.New()
	app.Post("/costs",
		func(c *fiber.Ctx) error {
			c.Locals(userLocal, identity.User{ID: c.Get("X-User")})
			return c.Next()
		},
		Idempotency(cache, time.Minute, logging.Discard()),
		func(c *fiber.Ctx) error {
			if strings.Contains(string(c.Body()), "bad") {
				return c.Status(http.StatusUnprocessableEntity).JSON(fiber.Map{"message": "bad"})
			}
			calls++
			return c.Status(http.StatusCreated).JSON(fiber.Map{"id": calls})
		},
	)
	return app, &calls
}

func postCost(t *testing.T, app *fiber.App, user, key, body string) (int, string, string) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, "/costs", strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set("X-User", user)
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	payload, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(payload), resp.Header.Get("Idempotent-Replayed")
}

func TestIdempotencyReplaysRecordedResponse(t *testing.T) {
	app, calls := idempotentApp(t)

	status, first, _ := postCost(t, app, "u1", "key-1", `{}`)
	if status != http.StatusCreated {
		t.Fatalf("expected 201 got %d", status)
	}
	status, second, replayed := postCost(t, app, "u1", "key-1", `{}`)
	if status != http.StatusCreated || second != first || replayed != "true" {
		t.Fatalf("expected replay of %q, got %d %q replayed=%q", first, status, second, replayed)
	}
	if *calls != 1 {
		t.Fatalf("expected handler to run once, ran %d times", *calls)
	}

	if status, _, replayed := postCost(t, app, "u2", "key-1", `{}`); status != http.StatusCreated || replayed != "" {
		t.Fatalf("keys must not be shared across users, got %d replayed=%q", status, replayed)
	}
	if *calls != 2 {
		t.Fatalf("expected second user's request to run, calls=%d", *calls)
	}
}

func TestIdempotencyWithoutKeyPassesThrough(t *testing.T) {
	app, calls := idempotentApp(t)
	for i := 0; i < 2; i++ {
		if status, _, _ := postCost(t, app, "u1", "", `{}`); status != http.StatusCreated {
			t.Fatalf("expected 201 got %d", status)
		}
	}
	if *calls != 2 {
		t.Fatalf("expected both requests to run, calls=%d", *calls)
	}
}

func TestIdempotencyReleasesKeyOnClientError(t *testing.T) {
	app, calls := idempotentApp(t)

	if status, _, _ := postCost(t, app, "u1", "key-2", `{"bad":true}`); status != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", status)
	}
	if status, _, replayed := postCost(t, app, "u1", "key-2", `{}`); status != http.StatusCreated || replayed != "" {
		t.Fatalf("expected corrected request to run, got %d replayed=%q", status, replayed)
	}
	if *calls != 1 {
		t.Fatalf("expected one recorded cost, calls=%d", *calls)
	}
}

package agro

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/agro-insight/agroinsight/internal/gateway"
	"github.com/agro-insight/agroinsight/internal/validation"
)

func newClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	gw, err := gateway.New(srv.URL, gateway.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("gateway: %v", err)
	}
	gw.SetTokenSource(gateway.TokenFunc(func() string { return "tok" }))
	return NewClient(gw)
}

func TestLoginIsPublic(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Errorf("login must not carry a token")
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		json.NewEncoder(w).Encode(LoginResult{Message: "code sent", Email: body["email"], RequiresVerification: true})
	})
	res, err := newClient(t, mux).Login(context.Background(), "user@example.com", "Harvest#2024")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !res.RequiresVerification || res.Email != "user@example.com" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestVerifyRequiresAccessToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/verify", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"token_type": "bearer"}`)
	})
	_, err := newClient(t, mux).VerifyCode(context.Background(), "user@example.com", "123456")
	var d *gateway.DecodeError
	if !errors.As(err, &d) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
}

func TestListTasksPath(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /farms/7/tasks", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("expected bearer token, got %q", r.Header.Get("Authorization"))
		}
		io.WriteString(w, `[{"id": 1, "farm_id": 7, "title": "Irrigate", "status": "pending", "created_at": "2024-05-01T08:00:00Z"}]`)
	})
	tasks, err := newClient(t, mux).ListTasks(context.Background(), 7)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Status != TaskPending {
		t.Fatalf("unexpected tasks %+v", tasks)
	}
}

func TestFinancialReportQuery(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /farms/3/reports/financial", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("from") != "2024-01-01" || r.URL.Query().Get("to") != "2024-03-31" {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		io.WriteString(w, `{"farm_id": 3, "currency": "USD", "total_cost": 120.5, "by_category": {"labor": 120.5}, "entries": []}`)
	})
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	rep, err := newClient(t, mux).FinancialReport(context.Background(), 3, from, to)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if rep.TotalCost != 120.5 || rep.ByCategory["labor"] != 120.5 {
		t.Fatalf("unexpected report %+v", rep)
	}
}

func TestCreateTaskValidatesLocally(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request expected, got %s %s", r.Method, r.URL.Path)
	})
	_, err := newClient(t, mux).CreateTask(context.Background(), validation.Task{FarmID: 1})
	var verr *validation.Error
	if !errors.As(err, &verr) {
		t.Fatalf("expected local validation error, got %v", err)
	}
}

func TestDetectPestUploadsFile(t *testing.T) {
	img := filepath.Join(t.TempDir(), "leaf.jpg")
	if err := os.WriteFile(img, []byte("jpeg"), 0o600); err != nil {
		t.Fatalf("write image: %v", err)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /pest-detection", func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue("plot_id") != "5" {
			t.Errorf("expected plot_id 5, got %q", r.FormValue("plot_id"))
		}
		if _, hdr, err := r.FormFile("image"); err != nil || hdr.Filename != "leaf.jpg" {
			t.Errorf("expected leaf.jpg upload, err=%v", err)
		}
		io.WriteString(w, `{"plot_id": 5, "label": "aphids", "confidence": 0.91}`)
	})
	res, err := newClient(t, mux).DetectPest(context.Background(), 5, "file://"+img)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if res.Label != "aphids" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestUserName(t *testing.T) {
	if got := (User{Email: "a@b.co"}).Name(); got != "a@b.co" {
		t.Fatalf("expected email fallback, got %q", got)
	}
	if got := (User{FirstName: "Ana", LastName: "Silva"}).Name(); got != "Ana Silva" {
		t.Fatalf("unexpected name %q", got)
	}
}

func TestRegisterCostSendsIdempotencyKey(t *testing.T) {
	var keys []string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /costs", func(w http.ResponseWriter, r *http.Request) {
		keys = append(keys, r.Header.Get("Idempotency-Key"))
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"id": 5, "farm_id": 1, "category": "labor", "amount": 12.5, "date": "2026-01-10"}`)
	})
	c := newClient(t, mux)
	form := validation.Cost{FarmID: 1, Category: "labor", Amount: 12.5, Date: "2026-01-10"}

	if _, err := c.RegisterCost(context.Background(), form); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := c.RegisterCost(context.Background(), form); err != nil {
		t.Fatalf("register: %v", err)
	}
	cost, err := c.RegisterCostWithKey(context.Background(), "fixed", form)
	if err != nil {
		t.Fatalf("register with key: %v", err)
	}
	if cost.ID != 5 {
		t.Fatalf("unexpected cost %+v", cost)
	}
	if len(keys) != 3 || keys[0] == "" || keys[0] == keys[1] || keys[2] != "fixed" {
		t.Fatalf("unexpected idempotency keys %q", keys)
	}
}

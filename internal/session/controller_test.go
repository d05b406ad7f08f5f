package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/agro-insight/agroinsight/internal/agro"
	"github.com/agro-insight/agroinsight/internal/credential"
	"github.com/agro-insight/agroinsight/internal/gateway"
	"github.com/agro-insight/agroinsight/internal/logging"
	"github.com/agro-insight/agroinsight/internal/navigation"
	"github.com/agro-insight/agroinsight/internal/validation"
)

const (
	testEmail    = "user@example.com"
	testPassword = "Harvest#2024-ok"
	testCode     = "482913"
)

type fakeAPI struct {
	loginCalls  atomic.Int32
	resendCalls atomic.Int32
	meCalls     atomic.Int32

	token    string
	meErr    error
	resendFn func()
}

func (f *fakeAPI) Login(_ context.Context, email, password string) (agro.LoginResult, error) {
	f.loginCalls.Add(1)
	if password != testPassword {
		return agro.LoginResult{}, &gateway.AuthRejectedError{Status: http.StatusUnauthorized, Message: "invalid email or password"}
	}
	return agro.LoginResult{Message: "code sent", Email: email, RequiresVerification: true}, nil
}

func (f *fakeAPI) VerifyCode(_ context.Context, email, code string) (agro.TokenGrant, error) {
	if code != testCode {
		return agro.TokenGrant{}, &gateway.RequestError{Status: http.StatusBadRequest, Message: "invalid or expired code"}
	}
	return agro.TokenGrant{
		AccessToken: f.token,
		TokenType:   "bearer",
		User:        &agro.User{ID: "u-1", Email: email, FirstName: "Ana", Role: agro.RoleManager, FarmID: 3},
	}, nil
}

func (f *fakeAPI) ResendCode(ctx context.Context, _ string) (agro.MessageResult, error) {
	f.resendCalls.Add(1)
	if f.resendFn != nil {
		f.resendFn()
	}
	if err := ctx.Err(); err != nil {
		return agro.MessageResult{}, err
	}
	return agro.MessageResult{Message: "code re-sent"}, nil
}

func (f *fakeAPI) Me(_ context.Context) (agro.User, error) {
	f.meCalls.Add(1)
	if f.meErr != nil {
		return agro.User{}, f.meErr
	}
	return agro.User{ID: "u-1", Email: testEmail, FirstName: "Ana", LastName: "Silva", Role: agro.RoleManager, FarmID: 3}, nil
}

func signToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":     "u-1",
		"role":    agro.RoleManager,
		"farm_id": 3,
		"exp":     exp.Unix(),
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

func newController(t *testing.T, api *fakeAPI) (*Controller, credential.Store) {
	t.Helper()
	store := credential.NewMemoryStore()
	return NewController(api, store, logging.Discard()), store
}

func TestLoginAndVerifyReachAuthenticatedOnce(t *testing.T) {
	api := &fakeAPI{token: "opaque-token"}
	c, store := newController(t, api)

	var authenticated atomic.Int32
	c.Subscribe(ObserverFunc(func(e Event) {
		if e.To == Authenticated && e.From != Authenticated {
			authenticated.Add(1)
		}
	}))

	ctx := context.Background()
	if err := c.Login(ctx, testEmail, testPassword); err != nil {
		t.Fatalf("login: %v", err)
	}
	if c.State() != AwaitingSecondFactor {
		t.Fatalf("expected awaiting second factor, got %s", c.State())
	}
	if c.PendingEmail() != testEmail {
		t.Fatalf("expected pending email, got %q", c.PendingEmail())
	}

	sess, err := c.Verify(ctx, testCode)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if c.State() != Authenticated {
		t.Fatalf("expected authenticated, got %s", c.State())
	}
	if authenticated.Load() != 1 {
		t.Fatalf("expected exactly one transition into authenticated, got %d", authenticated.Load())
	}
	stored, err := store.Load(ctx)
	if err != nil || stored != "opaque-token" {
		t.Fatalf("expected stored token, got %q (%v)", stored, err)
	}
	if sess.UserID != "u-1" || sess.FarmID != 3 || sess.Role != agro.RoleManager {
		t.Fatalf("unexpected session %+v", sess)
	}
	if c.Token() != "opaque-token" {
		t.Fatalf("expected token source to yield the token")
	}
	if home, ok := c.Home().(navigation.Home); !ok || home.Token != "opaque-token" {
		t.Fatalf("expected authenticated home, got %#v", c.Home())
	}
}

func TestWrongCodeKeepsChallenge(t *testing.T) {
	api := &fakeAPI{token: "opaque-token"}
	c, store := newController(t, api)
	ctx := context.Background()

	if err := c.Login(ctx, testEmail, testPassword); err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := c.Verify(ctx, "000000"); err == nil {
		t.Fatalf("expected verify error")
	}
	if c.State() != AwaitingSecondFactor {
		t.Fatalf("expected to remain awaiting second factor, got %s", c.State())
	}
	if _, err := store.Load(ctx); !errors.Is(err, credential.ErrNoCredential) {
		t.Fatalf("expected no persisted token, got %v", err)
	}
	if c.Token() != "" {
		t.Fatalf("expected no token before verification")
	}

	if _, err := c.Verify(ctx, testCode); err != nil {
		t.Fatalf("second attempt: %v", err)
	}
}

func TestShortPasswordNeverReachesNetwork(t *testing.T) {
	api := &fakeAPI{}
	c, _ := newController(t, api)

	err := c.Login(context.Background(), testEmail, "short")
	var verr *validation.Error
	if !errors.As(err, &verr) {
		t.Fatalf("expected local validation error, got %v", err)
	}
	if msg, _ := verr.Field("password"); !strings.Contains(msg, "at least 8") {
		t.Fatalf("expected length-specific message, got %q", msg)
	}
	if api.loginCalls.Load() != 0 {
		t.Fatalf("expected no network call, got %d", api.loginCalls.Load())
	}
	if c.State() != Unauthenticated {
		t.Fatalf("expected unauthenticated, got %s", c.State())
	}
}

func TestRejectedLoginReturnsToUnauthenticated(t *testing.T) {
	api := &fakeAPI{}
	c, _ := newController(t, api)

	var seen []State
	c.Subscribe(ObserverFunc(func(e Event) { seen = append(seen, e.To) }))

	err := c.Login(context.Background(), testEmail, "Wrong#Pass1")
	if !errors.Is(err, gateway.ErrAuthRejected) {
		t.Fatalf("expected rejection, got %v", err)
	}
	if c.State() != Unauthenticated {
		t.Fatalf("expected unauthenticated, got %s", c.State())
	}
	if len(seen) != 2 || seen[0] != Authenticating || seen[1] != Unauthenticated {
		t.Fatalf("unexpected transitions %v", seen)
	}
}

func TestLoginWhileAuthenticatedIsInvalid(t *testing.T) {
	api := &fakeAPI{token: "opaque-token"}
	c, _ := newController(t, api)
	ctx := context.Background()
	_ = c.Login(ctx, testEmail, testPassword)
	_, _ = c.Verify(ctx, testCode)

	if err := c.Login(ctx, testEmail, testPassword); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if _, err := c.Verify(ctx, testCode); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for verify, got %v", err)
	}
}

func TestResendCoalescesAndKeepsState(t *testing.T) {
	release := make(chan struct{})
	api := &fakeAPI{token: "opaque-token", resendFn: func() { <-release }}
	c, _ := newController(t, api)
	ctx := context.Background()
	if err := c.Login(ctx, testEmail, testPassword); err != nil {
		t.Fatalf("login: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- c.ResendCode(ctx)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("resend: %v", err)
		}
	}

	if api.resendCalls.Load() != 1 {
		t.Fatalf("expected concurrent resends to share one call, got %d", api.resendCalls.Load())
	}
	if c.State() != AwaitingSecondFactor {
		t.Fatalf("expected state unchanged, got %s", c.State())
	}
	if err := c.ResendCode(ctx); err != nil {
		t.Fatalf("sequential resend: %v", err)
	}
	if _, err := c.Verify(ctx, testCode); err != nil {
		t.Fatalf("original code must still verify: %v", err)
	}
}

func TestResendOutsideChallenge(t *testing.T) {
	c, _ := newController(t, &fakeAPI{})
	if err := c.ResendCode(context.Background()); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestCancelChallenge(t *testing.T) {
	c, _ := newController(t, &fakeAPI{})
	_ = c.Login(context.Background(), testEmail, testPassword)
	c.CancelChallenge()
	if c.State() != Unauthenticated || c.PendingEmail() != "" {
		t.Fatalf("expected challenge dropped, state %s", c.State())
	}
	if _, ok := c.Home().(navigation.Login); !ok {
		t.Fatalf("expected login as home, got %#v", c.Home())
	}
}

func TestLogoutClearsStoreAndIsIdempotent(t *testing.T) {
	api := &fakeAPI{token: "opaque-token"}
	c, store := newController(t, api)
	ctx := context.Background()
	_ = c.Login(ctx, testEmail, testPassword)
	_, _ = c.Verify(ctx, testCode)

	var events atomic.Int32
	unsubscribe := c.Subscribe(ObserverFunc(func(Event) { events.Add(1) }))

	if err := c.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if err := c.Logout(ctx); err != nil {
		t.Fatalf("second logout: %v", err)
	}
	if events.Load() != 1 {
		t.Fatalf("expected one event, got %d", events.Load())
	}
	if _, err := store.Load(ctx); !errors.Is(err, credential.ErrNoCredential) {
		t.Fatalf("expected store cleared, got %v", err)
	}

	unsubscribe()
	_ = c.Login(ctx, testEmail, testPassword)
	if events.Load() != 1 {
		t.Fatalf("expected no events after unsubscribe")
	}
}

func TestRestoreWithoutToken(t *testing.T) {
	api := &fakeAPI{}
	c, _ := newController(t, api)
	st, err := c.Restore(context.Background())
	if err != nil || st != Unauthenticated {
		t.Fatalf("expected unauthenticated, got %s (%v)", st, err)
	}
	if api.meCalls.Load() != 0 {
		t.Fatalf("expected no profile fetch")
	}
}

func TestRestoreConfirmsStoredToken(t *testing.T) {
	api := &fakeAPI{}
	c, store := newController(t, api)
	ctx := context.Background()
	tok := signToken(t, time.Now().Add(time.Hour))
	_ = store.Save(ctx, tok)

	st, err := c.Restore(ctx)
	if err != nil || st != Authenticated {
		t.Fatalf("expected authenticated, got %s (%v)", st, err)
	}
	sess, ok := c.Session()
	if !ok || sess.Name != "Ana Silva" || sess.UserID != "u-1" {
		t.Fatalf("expected profile merged into session, got %+v", sess)
	}
}

func TestRestoreNetworkErrorKeepsSession(t *testing.T) {
	api := &fakeAPI{meErr: &gateway.NetworkError{Method: http.MethodGet, Path: agro.PathMe, Err: io.ErrUnexpectedEOF}}
	c, store := newController(t, api)
	ctx := context.Background()
	_ = store.Save(ctx, "opaque-token")

	st, err := c.Restore(ctx)
	var netErr *gateway.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected network error, got %v", err)
	}
	if st != Authenticated || c.Token() != "opaque-token" {
		t.Fatalf("expected optimistic session to survive, got %s", st)
	}
}

func TestRestoreExpiredJWTSkipsNetwork(t *testing.T) {
	api := &fakeAPI{}
	c, store := newController(t, api)
	ctx := context.Background()
	_ = store.Save(ctx, signToken(t, time.Now().Add(-time.Minute)))

	st, err := c.Restore(ctx)
	if !errors.Is(err, ErrTokenExpired) || st != Unauthenticated {
		t.Fatalf("expected expiry demotion, got %s (%v)", st, err)
	}
	if api.meCalls.Load() != 0 {
		t.Fatalf("expected no profile fetch for an expired token")
	}
	if _, err := store.Load(ctx); !errors.Is(err, credential.ErrNoCredential) {
		t.Fatalf("expected store cleared, got %v", err)
	}
}

// newGatewayController wires a real gateway so that the forced-logout hook
// runs exactly as it does in the app.
func newGatewayController(t *testing.T, h http.HandlerFunc) (*Controller, credential.Store) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	gw, err := gateway.New(srv.URL, gateway.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("gateway: %v", err)
	}
	store := credential.NewMemoryStore()
	c := NewController(agro.NewClient(gw), store, logging.Discard())
	c.Bind(gw)
	return c, store
}

func TestRestoreAuthRejectedDemotesAndClears(t *testing.T) {
	c, store := newGatewayController(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer revoked-token" {
			t.Errorf("expected stored token on profile fetch, got %q", r.Header.Get("Authorization"))
		}
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"message": "token revoked"}`)
	})
	ctx := context.Background()
	_ = store.Save(ctx, "revoked-token")

	var causes []error
	c.Subscribe(ObserverFunc(func(e Event) {
		if e.To == Unauthenticated {
			causes = append(causes, e.Err)
		}
	}))

	st, err := c.Restore(ctx)
	if !errors.Is(err, gateway.ErrAuthRejected) {
		t.Fatalf("expected ErrAuthRejected, got %v", err)
	}
	if st != Unauthenticated || c.State() != Unauthenticated {
		t.Fatalf("expected unauthenticated, got %s", c.State())
	}
	if _, err := store.Load(ctx); !errors.Is(err, credential.ErrNoCredential) {
		t.Fatalf("expected store empty, got %v", err)
	}
	if len(causes) != 1 {
		t.Fatalf("expected a single forced sign-out, got %d", len(causes))
	}
}

func TestRejectedCallDuringSessionForcesLogout(t *testing.T) {
	var rejectFarms atomic.Bool
	c, store := newGatewayController(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case agro.PathMe:
			json.NewEncoder(w).Encode(agro.User{ID: "u-1", Email: testEmail})
		case agro.PathFarms:
			if rejectFarms.Load() {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			io.WriteString(w, `[]`)
		}
	})
	ctx := context.Background()
	_ = store.Save(ctx, "live-token")
	if st, err := c.Restore(ctx); err != nil || st != Authenticated {
		t.Fatalf("restore: %s %v", st, err)
	}

	rejectFarms.Store(true)

	// The controller's own API client shares the bound gateway.
	api := c.api.(*agro.Client)
	if _, err := api.ListFarms(ctx); !errors.Is(err, gateway.ErrAuthRejected) {
		t.Fatalf("expected rejection, got %v", err)
	}
	if c.State() != Unauthenticated {
		t.Fatalf("expected forced logout, got %s", c.State())
	}
	if _, err := store.Load(ctx); !errors.Is(err, credential.ErrNoCredential) {
		t.Fatalf("expected store cleared, got %v", err)
	}
}

func TestStaleRejectionDoesNotEndNewSession(t *testing.T) {
	api := &fakeAPI{token: "new-token"}
	c, _ := newController(t, api)
	ctx := context.Background()
	_ = c.Login(ctx, testEmail, testPassword)
	_, _ = c.Verify(ctx, testCode)

	c.HandleAuthRejected(ctx, "old-token")
	if c.State() != Authenticated {
		t.Fatalf("expected stale rejection to be ignored, got %s", c.State())
	}
}

func TestSessionNeverExposesToken(t *testing.T) {
	sess := Session{Token: "bearer-secret", UserID: "u-1", Role: agro.RoleWorker}
	raw, err := json.Marshal(sess)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if bytes.Contains(raw, []byte("bearer-secret")) {
		t.Fatalf("token leaked into json: %s", raw)
	}

	var buf bytes.Buffer
	logging.NewWithWriter(&buf, "info").Info("session", "session", sess)
	if strings.Contains(buf.String(), "bearer-secret") {
		t.Fatalf("token leaked into logs: %s", buf.String())
	}
}

func TestResendSurvivesFirstCallerCancel(t *testing.T) {
	release := make(chan struct{})
	api := &fakeAPI{token: "opaque-token", resendFn: func() { <-release }}
	c, _ := newController(t, api)
	if err := c.Login(context.Background(), testEmail, testPassword); err != nil {
		t.Fatalf("login: %v", err)
	}

	firstCtx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() { first <- c.ResendCode(firstCtx) }()
	for api.resendCalls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	second := make(chan error, 1)
	go func() { second <- c.ResendCode(context.Background()) }()
	time.Sleep(20 * time.Millisecond)

	cancel()
	if err := <-first; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected the cancelled caller to stop waiting, got %v", err)
	}
	close(release)
	if err := <-second; err != nil {
		t.Fatalf("expected the other caller to get the shared result, got %v", err)
	}
	if api.resendCalls.Load() != 1 {
		t.Fatalf("expected one shared call, got %d", api.resendCalls.Load())
	}
}

// blockingStore parks Save until released.
type blockingStore struct {
	credential.Store
	entered chan struct{}
	release chan struct{}
}

func (s *blockingStore) Save(ctx context.Context, token string) error {
	close(s.entered)
	<-s.release
	return s.Store.Save(ctx, token)
}

func TestSlowStoreDoesNotBlockReaders(t *testing.T) {
	store := &blockingStore{Store: credential.NewMemoryStore(), entered: make(chan struct{}), release: make(chan struct{})}
	c := NewController(&fakeAPI{token: "opaque-token"}, store, logging.Discard())
	ctx := context.Background()
	if err := c.Login(ctx, testEmail, testPassword); err != nil {
		t.Fatalf("login: %v", err)
	}

	verified := make(chan error, 1)
	go func() {
		_, err := c.Verify(ctx, testCode)
		verified <- err
	}()
	<-store.entered

	read := make(chan State, 1)
	go func() {
		_ = c.Token()
		read <- c.State()
	}()
	select {
	case st := <-read:
		if st != AwaitingSecondFactor {
			t.Fatalf("expected the challenge to stand until the save lands, got %s", st)
		}
	case <-time.After(time.Second):
		t.Fatalf("readers blocked behind a credential write")
	}

	close(store.release)
	if err := <-verified; err != nil {
		t.Fatalf("verify: %v", err)
	}
	if c.Token() != "opaque-token" {
		t.Fatalf("expected token after save, got %q", c.Token())
	}
}

func TestConcurrentLoginAndLogoutStayConsistent(t *testing.T) {
	api := &fakeAPI{token: "opaque-token"}
	c, store := newController(t, api)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := c.Login(ctx, testEmail, testPassword); err == nil {
				_, _ = c.Verify(ctx, testCode)
			}
		}()
		go func() {
			defer wg.Done()
			_ = c.Logout(ctx)
		}()
	}
	wg.Wait()

	stored, err := store.Load(ctx)
	switch c.State() {
	case Authenticated:
		if err != nil || stored != c.Token() {
			t.Fatalf("authenticated but store holds %q (%v)", stored, err)
		}
	default:
		if !errors.Is(err, credential.ErrNoCredential) {
			t.Fatalf("%s but store holds %q (%v)", c.State(), stored, err)
		}
	}
}

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/agro-insight/agroinsight/internal/agro"
	"github.com/agro-insight/agroinsight/internal/credential"
	"github.com/agro-insight/agroinsight/internal/gateway"
	"github.com/agro-insight/agroinsight/internal/logging"
	"github.com/agro-insight/agroinsight/internal/navigation"
	"github.com/agro-insight/agroinsight/internal/validation"
)

var (
	// ErrInvalidTransition is returned when an operation is not allowed from
	// the current state.
	ErrInvalidTransition = errors.New("invalid session transition")

	// ErrTokenExpired is the demotion cause for a stored token whose exp
	// claim has passed.
	ErrTokenExpired = errors.New("stored token expired")
)

// API is the part of the backend the controller talks to.
type API interface {
	Login(ctx context.Context, email, password string) (agro.LoginResult, error)
	VerifyCode(ctx context.Context, email, code string) (agro.TokenGrant, error)
	ResendCode(ctx context.Context, email string) (agro.MessageResult, error)
	Me(ctx context.Context) (agro.User, error)
}

// Controller is the single writer of the session. Whole operations are
// serialised by op. A store write and the state it commits are paired under
// storeMu, so a forced logout cannot clear a token saved after it looked.
// mu guards the fields and is never held across store or network I/O.
// Lock order: op, storeMu, mu.
type Controller struct {
	api    API
	store  credential.Store
	logger *slog.Logger
	now    func() time.Time

	op      sync.Mutex
	storeMu sync.Mutex

	mu           sync.RWMutex
	state        State
	session      Session
	pendingEmail string

	resend singleflight.Group

	obsMu     sync.Mutex
	observers map[int]Observer
	nextObs   int
}

// NewController starts Unauthenticated. Call Restore to pick up a stored
// credential.
func NewController(api API, store credential.Store, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Controller{
		api:       api,
		store:     store,
		logger:    logger,
		now:       time.Now,
		observers: make(map[int]Observer),
	}
}

// Bind makes c the gateway's token source and forced-logout handler.
func (c *Controller) Bind(gw *gateway.Gateway) {
	gw.SetTokenSource(c)
	gw.OnAuthRejected(c.HandleAuthRejected)
}

// Token implements gateway.TokenSource.
func (c *Controller) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != Authenticated {
		return ""
	}
	return c.session.Token
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Session returns the live session, if any.
func (c *Controller) Session() (Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != Authenticated {
		return Session{}, false
	}
	return c.session, true
}

// PendingEmail is the address the outstanding code was sent to.
func (c *Controller) PendingEmail() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pendingEmail
}

// Home is where the user lands for the current state.
func (c *Controller) Home() navigation.Route {
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch c.state {
	case Authenticated:
		return navigation.Home{Token: c.session.Token}
	case AwaitingSecondFactor:
		return navigation.VerifyCode{Email: c.pendingEmail}
	default:
		return navigation.Login{}
	}
}

// set applies a transition and returns the event to emit once unlocked.
// Callers hold mu.
func (c *Controller) set(to State, sess Session, pendingEmail string, cause error) Event {
	from := c.state
	c.state = to
	c.session = sess
	c.pendingEmail = pendingEmail
	return Event{From: from, To: to, Session: sess, Err: cause}
}

func (c *Controller) transition(to State, sess Session, pendingEmail string, cause error) {
	c.mu.Lock()
	ev := c.set(to, sess, pendingEmail, cause)
	c.mu.Unlock()
	c.emit(ev)
}

// Login submits credentials. On success the controller waits for the
// emailed code; on failure it returns to Unauthenticated.
func (c *Controller) Login(ctx context.Context, email, password string) error {
	form := validation.Login{Email: strings.TrimSpace(email), Password: password}
	if err := validation.Struct(form); err != nil {
		return err
	}

	c.op.Lock()
	defer c.op.Unlock()

	c.mu.Lock()
	if c.state != Unauthenticated && c.state != AwaitingSecondFactor {
		st := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: login while %s", ErrInvalidTransition, st)
	}
	ev := c.set(Authenticating, Session{}, "", nil)
	c.mu.Unlock()
	c.emit(ev)

	res, err := c.api.Login(ctx, form.Email, form.Password)
	if err != nil {
		c.logger.Info("login rejected", slog.String("email", form.Email), slog.Any("error", err))
		c.transition(Unauthenticated, Session{}, "", err)
		return err
	}

	pending := res.Email
	if pending == "" {
		pending = form.Email
	}
	c.transition(AwaitingSecondFactor, Session{}, pending, nil)
	c.logger.Info("verification code requested", slog.String("email", pending))
	return nil
}

// Verify submits the second-factor code. A wrong or expired code leaves
// the controller waiting for another attempt and persists nothing.
func (c *Controller) Verify(ctx context.Context, code string) (Session, error) {
	c.op.Lock()
	defer c.op.Unlock()

	c.mu.RLock()
	st, email := c.state, c.pendingEmail
	c.mu.RUnlock()
	if st != AwaitingSecondFactor {
		return Session{}, fmt.Errorf("%w: verify while %s", ErrInvalidTransition, st)
	}

	code = strings.TrimSpace(code)
	if err := validation.Struct(validation.Verify{Email: email, Code: code}); err != nil {
		return Session{}, err
	}

	grant, err := c.api.VerifyCode(ctx, email, code)
	if err != nil {
		c.logger.Info("verification failed", slog.String("email", email), slog.Any("error", err))
		c.emit(Event{From: st, To: st, Err: err})
		return Session{}, err
	}

	sess := fromToken(grant.AccessToken)
	if sess.Email == "" {
		sess.Email = email
	}
	if grant.User != nil {
		sess = sess.withUser(*grant.User)
	}

	c.storeMu.Lock()
	if err := c.store.Save(ctx, grant.AccessToken); err != nil {
		c.storeMu.Unlock()
		err = fmt.Errorf("save credential: %w", err)
		c.emit(Event{From: st, To: st, Err: err})
		return Session{}, err
	}
	c.mu.Lock()
	ev := c.set(Authenticated, sess, "", nil)
	c.mu.Unlock()
	c.storeMu.Unlock()
	c.emit(ev)

	c.logger.Info("session established", slog.Any("session", sess))
	return sess, nil
}

// ResendCode asks for the pending code again. Concurrent calls share one
// request; the state never changes. The shared request outlives any single
// caller's context, and each caller stops waiting when its own ends.
func (c *Controller) ResendCode(ctx context.Context) error {
	c.mu.RLock()
	st, email := c.state, c.pendingEmail
	c.mu.RUnlock()
	if st != AwaitingSecondFactor {
		return fmt.Errorf("%w: resend while %s", ErrInvalidTransition, st)
	}

	shared := context.WithoutCancel(ctx)
	ch := c.resend.DoChan(email, func() (any, error) {
		return c.api.ResendCode(shared, email)
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		c.logger.Debug("verification code resend", slog.String("email", email), slog.Bool("shared", res.Shared), slog.Any("error", res.Err))
		return res.Err
	}
}

// CancelChallenge abandons a pending second factor.
func (c *Controller) CancelChallenge() {
	c.op.Lock()
	defer c.op.Unlock()

	c.mu.Lock()
	if c.state != AwaitingSecondFactor {
		c.mu.Unlock()
		return
	}
	ev := c.set(Unauthenticated, Session{}, "", nil)
	c.mu.Unlock()
	c.emit(ev)
}

// Logout clears the stored credential. It is idempotent; the in-memory
// session is dropped even when clearing the store fails.
func (c *Controller) Logout(ctx context.Context) error {
	c.op.Lock()
	defer c.op.Unlock()

	c.storeMu.Lock()
	clearErr := c.store.Clear(ctx)
	if clearErr != nil {
		clearErr = fmt.Errorf("clear credential: %w", clearErr)
	}
	c.mu.Lock()
	ev := c.set(Unauthenticated, Session{}, "", clearErr)
	c.mu.Unlock()
	c.storeMu.Unlock()

	if ev.From != Unauthenticated {
		c.emit(ev)
		c.logger.Info("signed out")
	}
	return clearErr
}

// HandleAuthRejected is the gateway's forced-logout hook. It only acts when
// token is still the live one, so a late 401 for an old token cannot end a
// newer session.
func (c *Controller) HandleAuthRejected(ctx context.Context, token string) {
	c.expire(ctx, token, gateway.ErrAuthRejected)
}

// expire never takes op: it runs inside gateway calls that op may already
// guard.
func (c *Controller) expire(ctx context.Context, token string, cause error) {
	c.storeMu.Lock()
	c.mu.RLock()
	live := c.state == Authenticated && c.session.Token == token
	c.mu.RUnlock()
	if !live {
		c.storeMu.Unlock()
		return
	}
	if err := c.store.Clear(context.WithoutCancel(ctx)); err != nil {
		c.logger.Error("clear rejected credential", slog.Any("error", err))
	}
	c.mu.Lock()
	ev := c.set(Unauthenticated, Session{}, "", cause)
	c.mu.Unlock()
	c.storeMu.Unlock()

	c.logger.Warn("session ended by backend", slog.Any("cause", cause))
	c.emit(ev)
}

// Restore decides where the app lands on start or foreground. A stored
// token is trusted optimistically and confirmed with one profile fetch: a
// rejection demotes and clears it, a network failure keeps the session.
func (c *Controller) Restore(ctx context.Context) (State, error) {
	c.op.Lock()
	defer c.op.Unlock()

	token, err := c.store.Load(ctx)
	if errors.Is(err, credential.ErrNoCredential) {
		// A pending challenge survives a foreground; a session whose
		// credential vanished does not.
		c.mu.Lock()
		if c.state != Authenticated {
			st := c.state
			c.mu.Unlock()
			return st, nil
		}
		ev := c.set(Unauthenticated, Session{}, "", nil)
		c.mu.Unlock()
		c.emit(ev)
		return Unauthenticated, nil
	}
	if err != nil {
		return c.State(), fmt.Errorf("load credential: %w", err)
	}

	sess := fromToken(token)
	if sess.expired(c.now()) {
		c.storeMu.Lock()
		if err := c.store.Clear(ctx); err != nil {
			c.logger.Error("clear expired credential", slog.Any("error", err))
		}
		c.mu.Lock()
		ev := c.set(Unauthenticated, Session{}, "", ErrTokenExpired)
		c.mu.Unlock()
		c.storeMu.Unlock()
		c.emit(ev)
		return Unauthenticated, ErrTokenExpired
	}

	c.mu.Lock()
	if c.state == Authenticated && c.session.Token == token {
		sess = c.session
	}
	ev := c.set(Authenticated, sess, "", nil)
	c.mu.Unlock()
	if ev.From != Authenticated {
		c.emit(ev)
	}

	user, err := c.api.Me(ctx)
	if err != nil {
		if errors.Is(err, gateway.ErrAuthRejected) {
			c.expire(ctx, token, err)
			return Unauthenticated, err
		}
		c.logger.Warn("profile fetch failed, keeping session", slog.Any("error", err))
		return c.State(), err
	}

	c.mu.Lock()
	if c.state != Authenticated || c.session.Token != token {
		c.mu.Unlock()
		return c.State(), nil
	}
	sess = c.session.withUser(user)
	ev = c.set(Authenticated, sess, "", nil)
	c.mu.Unlock()
	c.emit(ev)
	return Authenticated, nil
}

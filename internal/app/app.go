// Package app assembles the client core: credential store, gateway, API
// client, session controller and navigator.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/agro-insight/agroinsight/internal/agro"
	"github.com/agro-insight/agroinsight/internal/config"
	"github.com/agro-insight/agroinsight/internal/credential"
	"github.com/agro-insight/agroinsight/internal/gateway"
	"github.com/agro-insight/agroinsight/internal/logging"
	"github.com/agro-insight/agroinsight/internal/navigation"
	"github.com/agro-insight/agroinsight/internal/session"
)

// App is the wired client.
type App struct {
	Config  config.Config
	Logger  *slog.Logger
	API     *agro.Client
	Session *session.Controller
	Nav     *navigation.Navigator

	changes     chan Change
	closeStore  func() error
	unsubscribe func()
}

// Change is a session event as seen by a front-end. Navigated is set when
// the navigator was reset and the current screen must be mounted again.
type Change struct {
	session.Event
	Navigated bool
}

const changeBuffer = 16

// New wires the client from cfg. Extra gateway options are applied after
// the configured timeout and logger.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, opts ...gateway.Option) (*App, error) {
	if logger == nil {
		logger = logging.Discard()
	}

	store, closeStore, err := credential.Open(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open credential store: %w", err)
	}

	gwOpts := append([]gateway.Option{gateway.WithTimeout(cfg.RequestTimeout), gateway.WithLogger(logger)}, opts...)
	gw, err := gateway.New(cfg.APIURL, gwOpts...)
	if err != nil {
		_ = closeStore()
		return nil, err
	}

	api := agro.NewClient(gw)
	ctrl := session.NewController(api, store, logger)
	ctrl.Bind(gw)

	a := &App{
		Config:     cfg,
		Logger:     logger,
		API:        api,
		Session:    ctrl,
		Nav:        navigation.NewNavigator(logger),
		changes:    make(chan Change, changeBuffer),
		closeStore: closeStore,
	}
	a.unsubscribe = ctrl.Subscribe(session.ObserverFunc(a.follow))
	return a, nil
}

// follow keeps the navigator on the screen that matches the session. A
// failed login attempt leaves the login screen in place so it can show the
// error.
func (a *App) follow(e session.Event) {
	navigated := false
	switch {
	case e.From == e.To:
	case e.To == session.Authenticating:
	case e.From == session.Authenticating && e.To == session.Unauthenticated:
	default:
		if e.From == session.Authenticated && e.To == session.Unauthenticated && e.Err != nil {
			a.Logger.Info("signed out by backend", slog.String("reason", gateway.UserMessage(e.Err)))
		}
		a.Nav.Reset(a.Session.Home())
		navigated = true
	}

	select {
	case a.changes <- Change{Event: e, Navigated: navigated}:
	default:
		a.Logger.Debug("change dropped, no reader", slog.String("to", e.To.String()))
	}
}

// Changes delivers session changes after the navigator has followed them.
// Changes are dropped when nobody reads.
func (a *App) Changes() <-chan Change {
	return a.changes
}

// Start restores any stored session and lands on the matching home screen.
// A network failure during restore keeps the session and is returned for
// display.
func (a *App) Start(ctx context.Context) (session.State, error) {
	state, err := a.Session.Restore(ctx)
	a.Nav.Reset(a.Session.Home())
	if err != nil && !errors.Is(err, gateway.ErrAuthRejected) && !errors.Is(err, session.ErrTokenExpired) {
		return state, err
	}
	return state, nil
}

// Close releases the credential store.
func (a *App) Close() error {
	a.unsubscribe()
	return a.closeStore()
}

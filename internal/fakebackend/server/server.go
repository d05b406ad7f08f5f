package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/agro-insight/agroinsight/internal/config"
	"github.com/agro-insight/agroinsight/internal/fakebackend/notification"
	"github.com/agro-insight/agroinsight/internal/fakebackend/routes"
)

const appName = "agrofake"

// Server wraps the Fiber application and shared dependencies.
type Server struct {
	app *fiber.App
	cfg config.Config
}

// Options carries the optional pieces of New.
type Options struct {
	DB       *pgxpool.Pool
	Cache    *redis.Client
	Notifier notification.Notifier
	HashCost int
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, opts Options) (*Server, error) {
	app := fiber.New(fiber.Config{
		AppName:               appName,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		BodyLimit:             10 << 20,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	err := routes.Setup(ctx, app, routes.Deps{
		Cfg:      cfg,
		DB:       opts.DB,
		Cache:    opts.Cache,
		Logger:   logger,
		Notifier: opts.Notifier,
		HashCost: opts.HashCost,
	})
	if err != nil {
		return nil, err
	}

	return &Server{app: app, cfg: cfg}, nil
}

// errorHandler renders every error as {"message": ...}, the shape the
// client gateway reads.
func errorHandler(c *fiber.Ctx, err error) error {
	code := http.StatusInternalServerError
	msg := http.StatusText(code)
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		msg = fe.Message
	}
	return c.Status(code).JSON(fiber.Map{"message": msg})
}

// App exposes the Fiber app, for tests and in-process use.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts the HTTP server.
func (s *Server) Listen() error {
	return s.app.Listen(s.cfg.Address())
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

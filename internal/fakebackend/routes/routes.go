// Package routes wires the fake backend's middleware and endpoints.
package routes

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/agro-insight/agroinsight/internal/config"
	"github.com/agro-insight/agroinsight/internal/fakebackend/auth"
	"github.com/agro-insight/agroinsight/internal/fakebackend/farm"
	"github.com/agro-insight/agroinsight/internal/fakebackend/identity"
	"github.com/agro-insight/agroinsight/internal/fakebackend/middleware"
	"github.com/agro-insight/agroinsight/internal/fakebackend/notification"
)

// Deps aggregates shared dependencies required to wire routes. DB and Cache
// are optional; in-memory stores stand in for them.
type Deps struct {
	Cfg      config.Config
	DB       *pgxpool.Pool
	Cache    *redis.Client
	Logger   *slog.Logger
	Notifier notification.Notifier
	// HashCost overrides the bcrypt cost, for tests.
	HashCost int
}

// Setup configures middleware and all routes, and seeds the demo data.
func Setup(ctx context.Context, app *fiber.App, d Deps) error {
	if !d.Cfg.IsDev() && d.DB == nil {
		return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
	}
	if d.Cfg.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when APP_ENV=%s", d.Cfg.AppEnv)
	}
	if d.Notifier == nil {
		d.Notifier = notification.NewLoggerNotifier(d.Logger)
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	var identityRepo identity.Repository
	if d.DB != nil {
		repo, err := identity.NewPostgresRepository(ctx, d.DB)
		if err != nil {
			return err
		}
		identityRepo = repo
	} else {
		identityRepo = identity.NewMemoryRepository()
	}
	identitySvc := identity.NewService(identityRepo)
	if d.HashCost > 0 {
		identitySvc.WithHashCost(d.HashCost)
	}
	if err := identitySvc.Seed(ctx); err != nil {
		return fmt.Errorf("seed users: %w", err)
	}

	var challenges auth.ChallengeStore
	var limiter middleware.Limiter
	replay := func(c *fiber.Ctx) error { return c.Next() }
	if d.Cache != nil {
		challenges = auth.NewRedisChallengeStore(d.Cache)
		limiter = middleware.NewRedisLimiter(d.Cache, middleware.LoginWindow)
		replay = middleware.Idempotency(d.Cache, middleware.IdempotencyTTL, d.Logger)
	} else {
		challenges = auth.NewMemoryChallengeStore()
		limiter = middleware.NewMemoryLimiter(middleware.LoginWindow)
	}
	tokens := auth.NewIssuer(d.Cfg.JWTSecret, d.Cfg.TokenTTL)
	authSvc := auth.NewService(identitySvc, tokens, challenges, d.Notifier, d.Cfg.ChallengeTTL)

	store := farm.NewStore()
	owner, err := identitySvc.Lookup(ctx, identity.DemoEmail)
	if err != nil {
		return fmt.Errorf("seed farms: %w", err)
	}
	worker, err := identitySvc.Lookup(ctx, identity.DemoWorkerEmail)
	if err != nil {
		return fmt.Errorf("seed farms: %w", err)
	}
	store.Seed(owner.ID, worker.ID)

	RegisterAuthRoutes(app, auth.NewHandler(identitySvc, authSvc), middleware.LoginRateLimit(limiter, d.Cfg.LoginRateLimit))

	protected := app.Group("", middleware.Bearer(tokens, identitySvc))
	RegisterUserRoutes(protected)
	RegisterFarmRoutes(protected, farm.NewHandler(farm.NewService(store)), replay)

	d.Logger.Info("fake backend ready",
		slog.String("demo_email", identity.DemoEmail),
		slog.Bool("postgres", d.DB != nil),
		slog.Bool("redis", d.Cache != nil),
	)
	return nil
}

package credential

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/agro-insight/agroinsight/internal/config"
	"github.com/agro-insight/agroinsight/internal/infra"
)

const sqliteFileName = "agroinsight.db"

// Open builds the store selected by cfg.CredentialBackend. The returned close
// function releases any connection the backend holds.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (Store, func() error, error) {
	noop := func() error { return nil }

	if cfg.CredentialBackend == config.BackendMemory {
		return WithLogging(NewMemoryStore(), cfg.CredentialBackend, "ephemeral", logger), noop, nil
	}

	installationID, err := InstallationID(cfg.DataDir)
	if err != nil {
		return nil, nil, err
	}

	var (
		store   Store
		closeFn = noop
	)
	switch cfg.CredentialBackend {
	case config.BackendFile:
		store = NewFileStore(cfg.DataDir, installationID)
	case config.BackendSQLite:
		db, err := infra.OpenSQLite(filepath.Join(cfg.DataDir, sqliteFileName))
		if err != nil {
			return nil, nil, err
		}
		s, err := NewSQLiteStore(ctx, db, installationID)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		store, closeFn = s, db.Close
	case config.BackendRedis:
		client, err := infra.NewRedisClient(ctx, cfg.RedisURL, "agroinsight-client")
		if err != nil {
			return nil, nil, err
		}
		store, closeFn = NewRedisStore(client, installationID, cfg.CredentialTTL), client.Close
	case config.BackendPostgres:
		pool, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		s, err := NewPostgresStore(ctx, pool, installationID)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		store = s
		closeFn = func() error {
			pool.Close()
			return nil
		}
	default:
		return nil, nil, fmt.Errorf("unknown credential backend %q", cfg.CredentialBackend)
	}

	return WithLogging(store, cfg.CredentialBackend, installationID, logger), closeFn, nil
}

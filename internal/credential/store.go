// Package credential persists the single bearer token that survives app
// restarts. Every backend holds exactly one slot per installation: Save
// overwrites it, Load reports ErrNoCredential when it is empty.
package credential

import (
	"context"
	"errors"
	"log/slog"

	"github.com/agro-insight/agroinsight/internal/logging"
)

var (
	// ErrNoCredential is returned by Load when nothing is stored.
	ErrNoCredential = errors.New("no stored credential")

	// ErrEmptyToken is returned by Save when asked to persist an empty token.
	ErrEmptyToken = errors.New("empty token")
)

// Store is the durable single-slot token store.
type Store interface {
	Save(ctx context.Context, token string) error
	Load(ctx context.Context) (string, error)
	Clear(ctx context.Context) error
}

// loggedStore records credential lifecycle events without the token itself.
type loggedStore struct {
	Store
	backend        string
	installationID string
	logger         *slog.Logger
}

// WithLogging decorates s so that saves and clears are audited.
func WithLogging(s Store, backend, installationID string, logger *slog.Logger) Store {
	if logger == nil {
		return s
	}
	return &loggedStore{Store: s, backend: backend, installationID: installationID, logger: logger}
}

func (s *loggedStore) Save(ctx context.Context, token string) error {
	if err := s.Store.Save(ctx, token); err != nil {
		s.logger.Error("credential save failed", s.attrs(slog.Any("error", err))...)
		return err
	}
	s.logger.Info("credential saved", s.attrs(slog.Any("token", logging.Secret(token)))...)
	return nil
}

func (s *loggedStore) Clear(ctx context.Context) error {
	if err := s.Store.Clear(ctx); err != nil {
		s.logger.Error("credential clear failed", s.attrs(slog.Any("error", err))...)
		return err
	}
	s.logger.Info("credential cleared", s.attrs()...)
	return nil
}

func (s *loggedStore) attrs(extra ...any) []any {
	attrs := []any{
		slog.String("backend", s.backend),
		slog.String("installation_id", s.installationID),
	}
	return append(attrs, extra...)
}

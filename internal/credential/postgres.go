package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS client_credentials (
	installation_id UUID PRIMARY KEY,
	token TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`

// PostgresStore keeps the token in PostgreSQL, for managed kiosks that share
// a database rather than device storage.
type PostgresStore struct {
	db             *pgxpool.Pool
	installationID uuid.UUID
}

// NewPostgresStore creates the credential table when missing.
func NewPostgresStore(ctx context.Context, db *pgxpool.Pool, installationID string) (*PostgresStore, error) {
	id, err := uuid.Parse(installationID)
	if err != nil {
		return nil, fmt.Errorf("parse installation id: %w", err)
	}
	if _, err := db.Exec(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("init credential schema: %w", err)
	}
	return &PostgresStore{db: db, installationID: id}, nil
}

// Save upserts the installation's slot.
func (s *PostgresStore) Save(ctx context.Context, token string) error {
	if token == "" {
		return ErrEmptyToken
	}
	_, err := s.db.Exec(ctx, `INSERT INTO client_credentials (installation_id, token, updated_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (installation_id) DO UPDATE SET token = EXCLUDED.token, updated_at = EXCLUDED.updated_at`,
		s.installationID, token, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

// Load fetches the installation's token.
func (s *PostgresStore) Load(ctx context.Context) (string, error) {
	var token string
	err := s.db.QueryRow(ctx, `SELECT token FROM client_credentials WHERE installation_id = $1`, s.installationID).Scan(&token)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNoCredential
	}
	if err != nil {
		return "", fmt.Errorf("load credential: %w", err)
	}
	if token == "" {
		return "", ErrNoCredential
	}
	return token, nil
}

// Clear deletes the installation's row.
func (s *PostgresStore) Clear(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM client_credentials WHERE installation_id = $1`, s.installationID); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	return nil
}

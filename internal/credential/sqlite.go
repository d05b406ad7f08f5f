package credential

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS credentials (
	installation_id TEXT PRIMARY KEY,
	token TEXT NOT NULL,
	updated_at INTEGER NOT NULL
)`

// SQLiteStore keeps the token in the on-device SQLite database.
type SQLiteStore struct {
	db             *sql.DB
	installationID string
}

// NewSQLiteStore creates the credentials table when missing.
func NewSQLiteStore(ctx context.Context, db *sql.DB, installationID string) (*SQLiteStore, error) {
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return nil, fmt.Errorf("init credential schema: %w", err)
	}
	return &SQLiteStore{db: db, installationID: installationID}, nil
}

// Save upserts the installation's slot.
func (s *SQLiteStore) Save(ctx context.Context, token string) error {
	if token == "" {
		return ErrEmptyToken
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO credentials (installation_id, token, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(installation_id) DO UPDATE SET token = excluded.token, updated_at = excluded.updated_at`,
		s.installationID, token, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

// Load fetches the installation's token.
func (s *SQLiteStore) Load(ctx context.Context) (string, error) {
	var token string
	err := s.db.QueryRowContext(ctx, `SELECT token FROM credentials WHERE installation_id = ?`, s.installationID).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
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
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM credentials WHERE installation_id = ?`, s.installationID); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	return nil
}

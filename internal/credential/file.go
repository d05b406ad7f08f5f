package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const credentialFileName = "credential.json"

type fileRecord struct {
	InstallationID string    `json:"installation_id"`
	Token          string    `json:"token"`
	SavedAt        time.Time `json:"saved_at"`
}

// FileStore keeps the token in a 0600 JSON file under the client data dir.
type FileStore struct {
	mu             sync.Mutex
	path           string
	installationID string
}

// NewFileStore returns a store writing to dir/credential.json.
func NewFileStore(dir, installationID string) *FileStore {
	return &FileStore{path: filepath.Join(dir, credentialFileName), installationID: installationID}
}

// Save atomically replaces the stored token.
func (s *FileStore) Save(_ context.Context, token string) error {
	if token == "" {
		return ErrEmptyToken
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(fileRecord{
		InstallationID: s.installationID,
		Token:          token,
		SavedAt:        time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create credential dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".credential-*")
	if err != nil {
		return fmt.Errorf("create temp credential: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod credential: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write credential: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close credential: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace credential: %w", err)
	}
	return nil
}

// Load returns the stored token.
func (s *FileStore) Load(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNoCredential
	}
	if err != nil {
		return "", fmt.Errorf("read credential: %w", err)
	}
	var rec fileRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return "", fmt.Errorf("decode credential: %w", err)
	}
	if rec.Token == "" || (rec.InstallationID != "" && rec.InstallationID != s.installationID) {
		return "", ErrNoCredential
	}
	return rec.Token, nil
}

// Clear removes the credential file.
func (s *FileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove credential: %w", err)
	}
	return nil
}

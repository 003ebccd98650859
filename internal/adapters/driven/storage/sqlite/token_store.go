// Package sqlite persists the auth token in a SQLite database so sign-in
// survives process restarts.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/custodia-labs/onenote-explorer/internal/core/domain"
	"github.com/custodia-labs/onenote-explorer/internal/core/ports/driven"
)

// Ensure TokenStore implements the interface.
var _ driven.TokenCache = (*TokenStore)(nil)

// DefaultProfile is the row used when no profile is given.
const DefaultProfile = "default"

// TokenStore keeps one token per profile.
type TokenStore struct {
	db      *sql.DB
	profile string
	owned   bool
}

// Open opens (creating if needed) the database at path. ":memory:" is accepted.
func Open(path string) (*TokenStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create token store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open token store: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	s, err := New(db, DefaultProfile)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// New wraps an existing database. The caller keeps ownership of db.
func New(db *sql.DB, profile string) (*TokenStore, error) {
	if profile == "" {
		profile = DefaultProfile
	}
	s := &TokenStore{db: db, profile: profile}
	if err := s.migrate(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *TokenStore) migrate(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS auth_tokens (
		profile TEXT PRIMARY KEY,
		access_token TEXT NOT NULL,
		refresh_token TEXT NOT NULL DEFAULT '',
		token_type TEXT NOT NULL DEFAULT '',
		expiry TEXT NOT NULL DEFAULT '',
		account_id TEXT NOT NULL DEFAULT '',
		username TEXT NOT NULL DEFAULT '',
		display_name TEXT NOT NULL DEFAULT '',
		tenant_id TEXT NOT NULL DEFAULT '',
		updated_at TEXT NOT NULL
	);`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("migrate token store: %w", err)
	}
	return nil
}

// Load returns the stored token, or nil when none is stored.
func (s *TokenStore) Load(ctx context.Context) (*domain.AuthToken, error) {
	query := `
	SELECT access_token, refresh_token, token_type, expiry, account_id, username, display_name, tenant_id
	FROM auth_tokens
	WHERE profile = ?`

	var (
		t      domain.AuthToken
		expiry string
	)
	err := s.db.QueryRowContext(ctx, query, s.profile).Scan(
		&t.AccessToken, &t.RefreshToken, &t.TokenType, &expiry,
		&t.Account.ID, &t.Account.Username, &t.Account.DisplayName, &t.Account.TenantID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load token: %w", err)
	}

	if expiry != "" {
		t.Expiry, err = time.Parse(time.RFC3339Nano, expiry)
		if err != nil {
			return nil, fmt.Errorf("parse token expiry %q: %w", expiry, err)
		}
	}
	return &t, nil
}

// Save stores token, replacing any previous one.
func (s *TokenStore) Save(ctx context.Context, token *domain.AuthToken) error {
	if token == nil {
		return s.Clear(ctx)
	}

	query := `INSERT INTO auth_tokens (
		profile, access_token, refresh_token, token_type, expiry, account_id, username, display_name, tenant_id, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(profile) DO UPDATE SET
		access_token = excluded.access_token,
		refresh_token = excluded.refresh_token,
		token_type = excluded.token_type,
		expiry = excluded.expiry,
		account_id = excluded.account_id,
		username = excluded.username,
		display_name = excluded.display_name,
		tenant_id = excluded.tenant_id,
		updated_at = excluded.updated_at`

	var expiry string
	if !token.Expiry.IsZero() {
		expiry = token.Expiry.UTC().Format(time.RFC3339Nano)
	}

	_, err := s.db.ExecContext(ctx, query,
		s.profile, token.AccessToken, token.RefreshToken, token.TokenType, expiry,
		token.Account.ID, token.Account.Username, token.Account.DisplayName, token.Account.TenantID,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

// Clear removes the stored token.
func (s *TokenStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM auth_tokens WHERE profile = ?`, s.profile); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	return nil
}

// Close closes the database if Open created it.
func (s *TokenStore) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

// Package sqlite provides a storage.Datastore backed by an embedded
// SQLite database file. It uses the pure-Go modernc.org/sqlite driver,
// so no cgo toolchain is required.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	sqlite3 "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/giantswarm/mcp-auth/security"
	"github.com/giantswarm/mcp-auth/storage"
)

// Store is a SQLite-backed storage.Datastore
type Store struct {
	db     *sql.DB
	clock  security.Clock
	logger *slog.Logger
}

// New opens (or creates) the database file at path. The schema is not
// created here; callers run InitSchema before first use.
func New(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, storage.NewStorageError("open", err)
	}
	// The sqlite driver serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent request handling.
	db.SetMaxOpenConns(1)

	return &Store{
		db:     db,
		clock:  security.SystemClock{},
		logger: logger,
	}, nil
}

// SetClock overrides the time source used for expiry filtering
func (s *Store) SetClock(clock security.Clock) {
	if clock != nil {
		s.clock = clock
	}
}

// Close closes the underlying database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// InitSchema applies pending migrations. Safe to call repeatedly.
func (s *Store) InitSchema(ctx context.Context) error {
	if err := runMigrations(ctx, s.db); err != nil {
		return storage.NewStorageError("init_schema", err)
	}
	return nil
}

// refreshTokenData is the token_data payload for refresh token rows
type refreshTokenData struct {
	AccessToken string `json:"access_token,omitempty"`
}

// RegisterClient inserts a new client row
func (s *Store) RegisterClient(ctx context.Context, client *storage.Client) error {
	urisJSON, err := json.Marshal(client.RedirectURIs)
	if err != nil {
		return storage.NewStorageError("register_client", err)
	}

	createdAt := client.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.clock.Now()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO clients (client_id, client_secret, redirect_uris, client_name, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		client.ClientID, client.ClientSecret, string(urisJSON), client.ClientName, createdAt)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrDuplicateClient
		}
		return storage.NewStorageError("register_client", err)
	}

	return nil
}

// ValidateClient reports whether the client exists and, when a secret is
// presented, whether it matches.
func (s *Store) ValidateClient(ctx context.Context, clientID, clientSecret string) (bool, error) {
	var storedSecret string
	err := s.db.QueryRowContext(ctx,
		`SELECT client_secret FROM clients WHERE client_id = ?`, clientID).Scan(&storedSecret)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, storage.NewStorageError("validate_client", err)
	}

	if clientSecret == "" {
		return true, nil
	}
	return security.ConstantTimeEquals(clientSecret, storedSecret), nil
}

// GetClientRedirectURIs returns the registered redirect URI patterns,
// or an empty slice for an unknown client.
func (s *Store) GetClientRedirectURIs(ctx context.Context, clientID string) ([]string, error) {
	var urisJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT redirect_uris FROM clients WHERE client_id = ?`, clientID).Scan(&urisJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storage.NewStorageError("get_client_redirect_uris", err)
	}

	var uris []string
	if err := json.Unmarshal([]byte(urisJSON), &uris); err != nil {
		return nil, storage.NewStorageError("get_client_redirect_uris", err)
	}
	return uris, nil
}

// CreateUser inserts a new user and returns the generated user ID
func (s *Store) CreateUser(ctx context.Context, username, passwordHash, email string) (string, error) {
	userID := uuid.NewString()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, email, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		userID, username, passwordHash, email, s.clock.Now())
	if err != nil {
		if isUniqueViolation(err) {
			return "", storage.ErrDuplicateUser
		}
		return "", storage.NewStorageError("create_user", err)
	}

	return userID, nil
}

// AuthenticateUser verifies the password and returns the user ID.
// Unknown users and wrong passwords both return ErrUserNotFound, and
// both cost one bcrypt comparison.
func (s *Store) AuthenticateUser(ctx context.Context, username, password string) (string, error) {
	var userID, passwordHash string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, password_hash FROM users WHERE username = ?`, username).Scan(&userID, &passwordHash)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", storage.NewStorageError("authenticate_user", err)
	}

	if !security.VerifyPasswordOrDummy(password, passwordHash) {
		return "", storage.ErrUserNotFound
	}
	return userID, nil
}

// SaveToken upserts a token record
func (s *Store) SaveToken(ctx context.Context, record *storage.TokenRecord) error {
	tokenData := ""
	if record.AccessToken != "" {
		payload, err := json.Marshal(refreshTokenData{AccessToken: record.AccessToken})
		if err != nil {
			return storage.NewStorageError("save_token", err)
		}
		tokenData = string(payload)
	}

	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.clock.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tokens (token, token_type, user_id, client_id, scopes, expires_at, token_data, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (token) DO UPDATE SET
			token_type = excluded.token_type,
			user_id    = excluded.user_id,
			client_id  = excluded.client_id,
			scopes     = excluded.scopes,
			expires_at = excluded.expires_at,
			token_data = excluded.token_data`,
		record.Token, record.Kind, record.UserID, record.ClientID,
		record.Scope, record.ExpiresAt, tokenData, createdAt)
	if err != nil {
		return storage.NewStorageError("save_token", err)
	}

	return nil
}

// LoadValidTokens returns unexpired tokens partitioned by kind
func (s *Store) LoadValidTokens(ctx context.Context) ([]*storage.TokenRecord, []*storage.TokenRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT token, token_type, user_id, client_id, scopes, expires_at, token_data, created_at
		FROM tokens WHERE expires_at > ?`, s.clock.Now())
	if err != nil {
		return nil, nil, storage.NewStorageError("load_valid_tokens", err)
	}
	defer rows.Close()

	var access, refresh []*storage.TokenRecord
	for rows.Next() {
		rec, err := scanTokenRecord(rows)
		if err != nil {
			return nil, nil, storage.NewStorageError("load_valid_tokens", err)
		}
		switch rec.Kind {
		case storage.TokenKindAccess:
			access = append(access, rec)
		case storage.TokenKindRefresh:
			refresh = append(refresh, rec)
		default:
			s.logger.Warn("Skipping token row with unknown kind", "kind", rec.Kind)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, storage.NewStorageError("load_valid_tokens", err)
	}

	return access, refresh, nil
}

// scanTokenRecord reads one tokens row
func scanTokenRecord(rows *sql.Rows) (*storage.TokenRecord, error) {
	var rec storage.TokenRecord
	var scopes, tokenData sql.NullString
	var expiresAt, createdAt time.Time

	if err := rows.Scan(&rec.Token, &rec.Kind, &rec.UserID, &rec.ClientID,
		&scopes, &expiresAt, &tokenData, &createdAt); err != nil {
		return nil, err
	}

	rec.Scope = scopes.String
	rec.ExpiresAt = expiresAt
	rec.CreatedAt = createdAt

	if tokenData.String != "" {
		var payload refreshTokenData
		if err := json.Unmarshal([]byte(tokenData.String), &payload); err != nil {
			return nil, fmt.Errorf("decoding token_data: %w", err)
		}
		rec.AccessToken = payload.AccessToken
	}

	return &rec, nil
}

// RemoveToken deletes a token row. Removing an unknown token is a no-op.
func (s *Store) RemoveToken(ctx context.Context, token string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tokens WHERE token = ?`, token); err != nil {
		return storage.NewStorageError("remove_token", err)
	}
	return nil
}

// isUniqueViolation checks for a SQLite UNIQUE constraint violation
func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlite3lib.SQLITE_CONSTRAINT_UNIQUE ||
			sqliteErr.Code() == sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

// interface guard
var _ storage.Datastore = (*Store)(nil)

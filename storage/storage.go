package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Typed sentinel errors returned by Datastore implementations.
// Callers match these with errors.Is; implementations wrap them with %w
// to attach backend detail without breaking matching.
var (
	// ErrDuplicateClient indicates a client_id is already registered
	ErrDuplicateClient = errors.New("client already registered")

	// ErrDuplicateUser indicates a username is already taken
	ErrDuplicateUser = errors.New("user already exists")

	// ErrClientNotFound indicates an unknown client_id
	ErrClientNotFound = errors.New("client not found")

	// ErrUserNotFound indicates failed user authentication.
	// Deliberately covers both "no such user" and "wrong password" so that
	// callers cannot distinguish the two (no user enumeration).
	ErrUserNotFound = errors.New("user not found")

	// ErrTokenNotFound indicates an unknown token
	ErrTokenNotFound = errors.New("token not found")
)

// StorageError wraps a backend failure (connection lost, disk full, bad
// schema) as distinct from the domain sentinels above. It is recoverable at
// the caller's discretion except during schema initialization, where it is
// fatal to server startup.
type StorageError struct {
	Op  string // the Datastore operation that failed
	Err error
}

// Error implements the error interface
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying backend error
func (e *StorageError) Unwrap() error { return e.Err }

// NewStorageError wraps err as a StorageError for the given operation
func NewStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}

// Token kind constants used to partition the tokens table
const (
	// TokenKindAccess marks an access token row
	TokenKindAccess = "access"

	// TokenKindRefresh marks a refresh token row
	TokenKindRefresh = "refresh"
)

// Datastore is the persistence interface for the authorization server.
// All methods accept context.Context for tracing and cancellation and may
// block on backend I/O. Implementations must be safe for concurrent use.
type Datastore interface {
	// RegisterClient inserts a new client row.
	// Fails with ErrDuplicateClient if the client ID already exists.
	RegisterClient(ctx context.Context, client *Client) error

	// ValidateClient reports whether the client exists and, when clientSecret
	// is non-empty, whether the secret matches. PKCE-only clients never
	// present a secret, so an empty secret checks existence only.
	ValidateClient(ctx context.Context, clientID, clientSecret string) (bool, error)

	// GetClientRedirectURIs returns the registered redirect URI patterns for
	// a client, or an empty slice if the client is unknown.
	GetClientRedirectURIs(ctx context.Context, clientID string) ([]string, error)

	// CreateUser inserts a new user and returns the generated user ID.
	// passwordHash must already be hashed (see security.HashPassword); the
	// Datastore never sees plaintext passwords at rest.
	// Fails with ErrDuplicateUser if the username is taken.
	CreateUser(ctx context.Context, username, passwordHash, email string) (string, error)

	// AuthenticateUser verifies username+password against the stored hash
	// and returns the user ID. Returns ErrUserNotFound for both unknown
	// users and wrong passwords.
	AuthenticateUser(ctx context.Context, username, password string) (string, error)

	// SaveToken upserts a token record. Re-saving the same token overwrites
	// its metadata, which makes cache rebuilds idempotent.
	SaveToken(ctx context.Context, record *TokenRecord) error

	// LoadValidTokens returns only tokens whose expiry is in the future,
	// partitioned into (access, refresh).
	LoadValidTokens(ctx context.Context) ([]*TokenRecord, []*TokenRecord, error)

	// RemoveToken deletes a token record. Idempotent: removing an unknown
	// token is not an error.
	RemoveToken(ctx context.Context, token string) error

	// InitSchema creates backing tables if absent. Safe to call repeatedly.
	InitSchema(ctx context.Context) error
}

// Client represents a registered OAuth client.
// Clients are immutable after registration; the authorization server never
// caches them in memory and always consults the Datastore live.
type Client struct {
	ClientID     string
	ClientSecret string
	RedirectURIs []string
	ClientName   string
	CreatedAt    time.Time
}

// User represents a registered user account
type User struct {
	ID           string
	Username     string
	PasswordHash string
	Email        string
	CreatedAt    time.Time
}

// TokenRecord is the persisted form of an access or refresh token.
// AccessToken is set only on refresh records and names the access token the
// refresh token was issued alongside, so rotation can revoke the pair.
type TokenRecord struct {
	Token       string
	Kind        string // TokenKindAccess or TokenKindRefresh
	UserID      string
	ClientID    string
	Scope       string
	AccessToken string
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

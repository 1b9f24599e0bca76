// Package memory provides an in-memory Datastore implementation.
// It is suitable for development, testing, and single-instance
// deployments where durability across restarts is not needed.
package memory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/giantswarm/mcp-auth/security"
	"github.com/giantswarm/mcp-auth/storage"
)

// Store is an in-memory storage.Datastore. A single RWMutex guards all
// maps; every method takes the lock for its full critical section.
type Store struct {
	mu sync.RWMutex

	clients map[string]*storage.Client
	users   map[string]*storage.User // keyed by username
	tokens  map[string]*storage.TokenRecord

	clock  security.Clock
	logger *slog.Logger
}

// New creates an empty in-memory store
func New(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		clients: make(map[string]*storage.Client),
		users:   make(map[string]*storage.User),
		tokens:  make(map[string]*storage.TokenRecord),
		clock:   security.SystemClock{},
		logger:  logger,
	}
}

// SetClock overrides the time source used for expiry filtering
func (s *Store) SetClock(clock security.Clock) {
	if clock != nil {
		s.clock = clock
	}
}

// RegisterClient inserts a new client
func (s *Store) RegisterClient(ctx context.Context, client *storage.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.clients[client.ClientID]; exists {
		return storage.ErrDuplicateClient
	}

	cp := *client
	cp.RedirectURIs = append([]string(nil), client.RedirectURIs...)
	s.clients[client.ClientID] = &cp

	return nil
}

// ValidateClient reports whether the client exists and, when a secret is
// presented, whether it matches. Secret comparison is constant time.
func (s *Store) ValidateClient(ctx context.Context, clientID, clientSecret string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	client, exists := s.clients[clientID]
	if !exists {
		return false, nil
	}
	if clientSecret == "" {
		return true, nil
	}
	return security.ConstantTimeEquals(clientSecret, client.ClientSecret), nil
}

// GetClientRedirectURIs returns the registered redirect URI patterns,
// or an empty slice for an unknown client.
func (s *Store) GetClientRedirectURIs(ctx context.Context, clientID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	client, exists := s.clients[clientID]
	if !exists {
		return nil, nil
	}
	return append([]string(nil), client.RedirectURIs...), nil
}

// CreateUser inserts a new user and returns the generated user ID
func (s *Store) CreateUser(ctx context.Context, username, passwordHash, email string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[username]; exists {
		return "", storage.ErrDuplicateUser
	}

	user := &storage.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: passwordHash,
		Email:        email,
		CreatedAt:    s.clock.Now(),
	}
	s.users[username] = user

	return user.ID, nil
}

// AuthenticateUser verifies the password and returns the user ID.
// Unknown users and wrong passwords are indistinguishable to callers,
// and both cost one bcrypt comparison.
func (s *Store) AuthenticateUser(ctx context.Context, username, password string) (string, error) {
	s.mu.RLock()
	user, exists := s.users[username]
	s.mu.RUnlock()

	var passwordHash string
	if exists {
		passwordHash = user.PasswordHash
	}
	if !security.VerifyPasswordOrDummy(password, passwordHash) {
		return "", storage.ErrUserNotFound
	}
	return user.ID, nil
}

// SaveToken upserts a token record
func (s *Store) SaveToken(ctx context.Context, record *storage.TokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *record
	s.tokens[record.Token] = &cp

	return nil
}

// LoadValidTokens returns unexpired tokens partitioned by kind
func (s *Store) LoadValidTokens(ctx context.Context) ([]*storage.TokenRecord, []*storage.TokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.clock.Now()
	var access, refresh []*storage.TokenRecord

	for _, rec := range s.tokens {
		if !rec.ExpiresAt.After(now) {
			continue
		}
		cp := *rec
		switch rec.Kind {
		case storage.TokenKindAccess:
			access = append(access, &cp)
		case storage.TokenKindRefresh:
			refresh = append(refresh, &cp)
		}
	}

	return access, refresh, nil
}

// RemoveToken deletes a token record. Removing an unknown token is a no-op.
func (s *Store) RemoveToken(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.tokens, token)
	return nil
}

// InitSchema is a no-op for the in-memory store
func (s *Store) InitSchema(ctx context.Context) error {
	return nil
}

// TokenCount reports the number of stored token rows. Used by tests and
// metrics callbacks.
func (s *Store) TokenCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}

// interface guard
var _ storage.Datastore = (*Store)(nil)

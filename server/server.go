package server

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"

	"golang.org/x/oauth2"

	"github.com/giantswarm/mcp-auth/instrumentation"
	"github.com/giantswarm/mcp-auth/security"
	"github.com/giantswarm/mcp-auth/storage"
)

// Server implements the OAuth 2.1 authorization server core. It owns the
// in-memory working set of codes and tokens and mirrors token state to
// the Datastore. Clients are never cached; the store is consulted live.
type Server struct {
	store          storage.Datastore
	cache          *tokenCache
	Clock          security.Clock
	Auditor        *security.Auditor
	AttemptLimiter *security.AttemptLimiter
	Metrics        *instrumentation.Metrics
	Logger         *slog.Logger
	Config         *Config
}

// New creates a new OAuth server backed by the given Datastore. The
// store schema is initialized here; a schema failure is fatal. Valid
// tokens are rehydrated from the store into the in-memory index; a
// rehydration failure is logged and the server starts with an empty
// index.
func New(ctx context.Context, store storage.Datastore, config *Config, logger *slog.Logger) (*Server, error) {
	if store == nil {
		return nil, fmt.Errorf("datastore is required")
	}
	if config == nil {
		config = &Config{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	config = applyDefaults(config, logger)

	srv := &Server{
		store:  store,
		cache:  newTokenCache(),
		Clock:  security.SystemClock{},
		Logger: logger,
		Config: config,
	}

	if config.EnableAudit {
		srv.Auditor = security.NewAuditor(logger, true)
	}

	if err := store.InitSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize storage schema: %w", err)
	}

	srv.loadTokensFromStore(ctx)

	return srv, nil
}

// SetClock overrides the time source. Tests inject a mock clock here.
func (s *Server) SetClock(clock security.Clock) {
	if clock != nil {
		s.Clock = clock
	}
}

// SetAuditor sets the security auditor
func (s *Server) SetAuditor(aud *security.Auditor) {
	s.Auditor = aud
}

// SetAttemptLimiter sets the per-identifier rate limiter for
// authentication attempts
func (s *Server) SetAttemptLimiter(al *security.AttemptLimiter) {
	s.AttemptLimiter = al
}

// SetMetrics sets the metric instruments recorded by flow operations
func (s *Server) SetMetrics(m *instrumentation.Metrics) {
	s.Metrics = m
}

// loadTokensFromStore rehydrates the in-memory index from the Datastore.
// Only tokens with a future expiry are returned by the store. Store
// unavailability is tolerated: the server starts with an empty index and
// clients re-authenticate.
func (s *Server) loadTokensFromStore(ctx context.Context) {
	accessRecs, refreshRecs, err := s.store.LoadValidTokens(ctx)
	if err != nil {
		s.Logger.Warn("Failed to load tokens from store, starting with empty index",
			"error", err)
		return
	}

	for _, rec := range accessRecs {
		s.cache.putAccess(tokenDataFromRecord(rec))
	}
	for _, rec := range refreshRecs {
		s.cache.putRefresh(tokenDataFromRecord(rec))
	}

	s.Logger.Info("Rehydrated token index from store",
		"access_tokens", len(accessRecs),
		"refresh_tokens", len(refreshRecs))
}

// tokenDataFromRecord converts a stored token record into its in-memory form
func tokenDataFromRecord(rec *storage.TokenRecord) *tokenData {
	return &tokenData{
		Token:       rec.Token,
		UserID:      rec.UserID,
		ClientID:    rec.ClientID,
		Scope:       rec.Scope,
		AccessToken: rec.AccessToken,
		ExpiresAt:   rec.ExpiresAt,
		CreatedAt:   rec.CreatedAt,
	}
}

// generateRandomToken generates a cryptographically secure random token.
// This is an alias for oauth2.GenerateVerifier() which produces a
// URL-safe, base64-encoded random string suitable for tokens and codes.
func generateRandomToken() string {
	return oauth2.GenerateVerifier()
}

// generateOpaqueID returns a URL-safe random identifier built from
// numBytes of entropy. Used for client IDs (16 bytes) and client
// secrets (32 bytes).
func generateOpaqueID(numBytes int) (string, error) {
	b := make([]byte, numBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

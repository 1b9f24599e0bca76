package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/giantswarm/mcp-auth/internal/util"
	"github.com/giantswarm/mcp-auth/security"
	"github.com/giantswarm/mcp-auth/storage"
)

// TokenPair is the result of a successful code exchange or refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    int64
	Scope        string
}

// TokenInfo is the metadata returned for a valid access token.
type TokenInfo struct {
	UserID    string
	ClientID  string
	Scope     string
	ExpiresAt time.Time
}

// CreateAuthorizationCode issues an authorization code bound to the
// client, user, redirect URI, and PKCE challenge. The code expires 10
// minutes after creation. Callers enforcing the one-live-code-per-pair
// invariant invalidate prior codes first; see Flow.IssueCodeWithCleanup.
func (s *Server) CreateAuthorizationCode(clientID, userID, redirectURI, scope, codeChallenge, codeChallengeMethod string) (string, error) {
	if err := validateChallengeMethod(codeChallengeMethod); err != nil {
		return "", err
	}
	if err := s.validateScopes(scope); err != nil {
		return "", err
	}

	now := s.Clock.Now()
	code := generateRandomToken()

	s.cache.putCode(&authorizationCode{
		Code:                code,
		ClientID:            clientID,
		UserID:              userID,
		RedirectURI:         redirectURI,
		Scope:               scope,
		CodeChallenge:       codeChallenge,
		CodeChallengeMethod: codeChallengeMethod,
		ExpiresAt:           now.Add(time.Duration(s.Config.AuthorizationCodeTTL) * time.Second),
		CreatedAt:           now,
	})

	if s.Auditor != nil {
		s.Auditor.LogCodeIssued(userID, clientID, scope)
	}
	s.Logger.Debug("Issued authorization code",
		"client_id", clientID,
		"code_prefix", util.SafeTruncate(code, 8))

	return code, nil
}

// ExchangeCodeForTokens exchanges an authorization code for an
// access/refresh token pair. The code is consumed the moment it is
// looked up: whatever validation fails afterwards, the code cannot be
// retried, so a wrong verifier cannot be corrected on a second attempt.
//
// Validation order: existence, expiry, client binding, redirect URI
// binding, PKCE. Each failure maps to its own error value; transports
// collapse them into generic responses.
func (s *Server) ExchangeCodeForTokens(ctx context.Context, code, clientID, redirectURI, codeVerifier string) (*TokenPair, error) {
	authCode, ok := s.cache.consumeCode(code)
	if !ok {
		s.logExchangeFailure(ctx, clientID, code, "code_not_found")
		return nil, ErrInvalidGrant
	}

	if security.IsExpiredAt(s.Clock.Now(), authCode.ExpiresAt) {
		s.logExchangeFailure(ctx, clientID, code, "code_expired")
		return nil, ErrExpiredGrant
	}

	if authCode.ClientID != clientID {
		s.logExchangeFailure(ctx, clientID, code, "client_id_mismatch")
		return nil, ErrClientMismatch
	}

	if authCode.RedirectURI != redirectURI {
		s.logExchangeFailure(ctx, clientID, code, "redirect_uri_mismatch")
		return nil, ErrRedirectMismatch
	}

	if !VerifyPKCE(codeVerifier, authCode.CodeChallenge, authCode.CodeChallengeMethod) {
		if s.Metrics != nil {
			s.Metrics.RecordPKCEFailure(ctx, authCode.CodeChallengeMethod)
		}
		s.logExchangeFailure(ctx, clientID, code, "pkce_verification_failed")
		return nil, ErrInvalidGrant
	}

	pair, err := s.issueTokenPair(ctx, authCode.UserID, clientID, authCode.Scope)
	if err != nil {
		return nil, err
	}

	if s.Auditor != nil {
		s.Auditor.LogTokenIssued(authCode.UserID, clientID, authCode.Scope)
	}
	if s.Metrics != nil {
		s.Metrics.RecordCodeExchange(ctx, authCode.CodeChallengeMethod)
	}
	s.Logger.Info("Exchanged authorization code for tokens",
		"client_id", clientID,
		"user_id", authCode.UserID)

	return pair, nil
}

// ValidateAccessToken returns metadata for a live access token. An
// expired token is evicted from the index and the store as a side
// effect, and reported the same as an unknown token.
func (s *Server) ValidateAccessToken(ctx context.Context, token string) (*TokenInfo, error) {
	td, expired := s.cache.getValidAccess(token, s.Clock.Now())
	if expired {
		if err := s.store.RemoveToken(ctx, token); err != nil {
			s.Logger.Warn("Failed to remove expired access token from store",
				"error", err,
				"token_prefix", util.SafeTruncate(token, 8))
		}
		return nil, ErrInvalidToken
	}
	if td == nil {
		return nil, ErrInvalidToken
	}

	return &TokenInfo{
		UserID:    td.UserID,
		ClientID:  td.ClientID,
		Scope:     td.Scope,
		ExpiresAt: td.ExpiresAt,
	}, nil
}

// RefreshAccessToken rotates a refresh token: the old refresh token is
// consumed, its paired access token is revoked from the index, and a
// fresh pair is issued and persisted. The stale access token row in the
// store is left to age out on its own expiry; only the index needs to
// stop honoring it immediately.
func (s *Server) RefreshAccessToken(ctx context.Context, refreshToken, clientID string) (*TokenPair, error) {
	old, err := s.cache.consumeRefreshFor(refreshToken, clientID, s.Clock.Now())
	if err != nil {
		// An expired token was evicted from the index; drop the durable
		// row as well so neither layer keeps honoring it.
		if errors.Is(err, ErrExpiredGrant) {
			if removeErr := s.store.RemoveToken(ctx, refreshToken); removeErr != nil {
				s.Logger.Warn("Failed to remove expired refresh token from store",
					"error", removeErr,
					"token_prefix", util.SafeTruncate(refreshToken, 8))
			}
		}
		if s.Auditor != nil {
			s.Auditor.LogAuthFailure("", clientID, "refresh_token_rejected")
		}
		if s.Metrics != nil {
			s.Metrics.RecordAuthFailure(ctx, "refresh_token_rejected")
		}
		s.Logger.Debug("Refresh token rejected",
			"client_id", clientID,
			"token_prefix", util.SafeTruncate(refreshToken, 8))
		return nil, err
	}

	oldAccess, _ := s.cache.deleteAccess(old.AccessToken)

	pair, err := s.issueTokenPair(ctx, old.UserID, old.ClientID, old.Scope)
	if err != nil {
		// Roll the index back so the caller can retry with the same
		// refresh token once the store recovers.
		s.cache.putRefresh(old)
		if oldAccess != nil {
			s.cache.putAccess(oldAccess)
		}
		return nil, err
	}

	if err := s.store.RemoveToken(ctx, refreshToken); err != nil {
		s.Logger.Warn("Failed to remove rotated refresh token from store",
			"error", err,
			"token_prefix", util.SafeTruncate(refreshToken, 8))
	}

	if s.Auditor != nil {
		s.Auditor.LogTokenRefreshed(old.UserID, old.ClientID)
	}
	if s.Metrics != nil {
		s.Metrics.RecordTokenRefresh(ctx)
	}
	s.Logger.Info("Rotated refresh token",
		"client_id", old.ClientID,
		"user_id", old.UserID)

	return pair, nil
}

// issueTokenPair generates, indexes, and persists a new access/refresh
// pair. If either store write fails the index insertion is rolled back
// so a validate call never observes a half-written pair.
func (s *Server) issueTokenPair(ctx context.Context, userID, clientID, scope string) (*TokenPair, error) {
	now := s.Clock.Now()

	access := &tokenData{
		Token:     generateRandomToken(),
		UserID:    userID,
		ClientID:  clientID,
		Scope:     scope,
		ExpiresAt: now.Add(time.Duration(s.Config.AccessTokenTTL) * time.Second),
		CreatedAt: now,
	}
	refresh := &tokenData{
		Token:       generateRandomToken(),
		UserID:      userID,
		ClientID:    clientID,
		Scope:       scope,
		AccessToken: access.Token,
		ExpiresAt:   now.Add(time.Duration(s.Config.RefreshTokenTTL()) * time.Second),
		CreatedAt:   now,
	}

	s.cache.putTokenPair(access, refresh)

	if err := s.store.SaveToken(ctx, recordFromTokenData(access, storage.TokenKindAccess)); err != nil {
		s.cache.removeTokenPair(access, refresh)
		return nil, fmt.Errorf("failed to persist access token: %w", err)
	}
	if err := s.store.SaveToken(ctx, recordFromTokenData(refresh, storage.TokenKindRefresh)); err != nil {
		s.cache.removeTokenPair(access, refresh)
		if removeErr := s.store.RemoveToken(ctx, access.Token); removeErr != nil {
			s.Logger.Warn("Failed to remove orphaned access token from store",
				"error", removeErr)
		}
		return nil, fmt.Errorf("failed to persist refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  access.Token,
		RefreshToken: refresh.Token,
		TokenType:    "Bearer",
		ExpiresIn:    s.Config.AccessTokenTTL,
		Scope:        scope,
	}, nil
}

// recordFromTokenData converts an in-memory token into its stored form
func recordFromTokenData(td *tokenData, kind string) *storage.TokenRecord {
	return &storage.TokenRecord{
		Token:       td.Token,
		Kind:        kind,
		UserID:      td.UserID,
		ClientID:    td.ClientID,
		Scope:       td.Scope,
		AccessToken: td.AccessToken,
		ExpiresAt:   td.ExpiresAt,
		CreatedAt:   td.CreatedAt,
	}
}

// logExchangeFailure logs a failed exchange attempt with the code
// reduced to a prefix.
func (s *Server) logExchangeFailure(ctx context.Context, clientID, code, reason string) {
	if s.Auditor != nil {
		s.Auditor.LogAuthFailure("", clientID, reason)
	}
	if s.Metrics != nil {
		s.Metrics.RecordAuthFailure(ctx, reason)
	}
	s.Logger.Debug("Authorization code exchange failed",
		"reason", reason,
		"client_id", clientID,
		"code_prefix", util.SafeTruncate(code, 8))
}

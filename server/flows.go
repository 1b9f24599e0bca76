package server

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// Flow sequences multi-step operations on top of Server: code
// cleanup-then-issue, auto-registration for the known hosted client, and
// building redirect URLs for transports to send the user agent to.
type Flow struct {
	srv *Server
}

// NewFlow creates a flow orchestrator over the given server
func NewFlow(srv *Server) *Flow {
	return &Flow{srv: srv}
}

// InvalidateCodesFor discards every live authorization code for the
// client/user pair and returns how many were removed.
func (f *Flow) InvalidateCodesFor(clientID, userID string) int {
	removed := f.srv.cache.invalidateCodesFor(clientID, userID)
	if removed > 0 {
		if f.srv.Auditor != nil {
			f.srv.Auditor.LogCodeSuperseded(userID, clientID, removed)
		}
		f.srv.Logger.Debug("Superseded authorization codes",
			"client_id", clientID,
			"removed", removed)
	}
	return removed
}

// IssueCodeWithCleanup invalidates any live codes for the client/user
// pair and issues a fresh one, keeping at most one live code per pair.
func (f *Flow) IssueCodeWithCleanup(clientID, userID, redirectURI, scope, codeChallenge, codeChallengeMethod string) (string, error) {
	f.InvalidateCodesFor(clientID, userID)
	return f.srv.CreateAuthorizationCode(clientID, userID, redirectURI, scope, codeChallenge, codeChallengeMethod)
}

// AutoRegisterKnownProxyClient registers an unknown client ID presented
// by the known hosted client. The hosted client calls the authorization
// endpoint with a client_id it was never issued; when the redirect URI
// proves it is the hosted proxy, the ID is registered with a derived
// name, the requested URI, and the canonical proxy callback. Reports
// whether registration happened.
func (f *Flow) AutoRegisterKnownProxyClient(ctx context.Context, clientID, redirectURI string) bool {
	if !strings.HasPrefix(redirectURI, hostedAutoRegisterPrefix) {
		return false
	}

	uris := []string{redirectURI}
	if redirectURI != hostedCanonicalCallback {
		uris = append(uris, hostedCanonicalCallback)
	}

	registered, err := f.srv.RegisterExistingClient(ctx, clientID, hostedAutoRegisterName, uris)
	if err != nil {
		f.srv.Logger.Warn("Auto-registration failed",
			"client_id", clientID,
			"error", err)
		return false
	}
	return registered
}

// ValidateAuthorizationRequest validates the client, redirect URI, and
// PKCE presence of an incoming authorization request. Unknown clients
// get one chance at auto-registration before being rejected. PKCE is
// mandatory: a request with no code_challenge never proceeds.
func (f *Flow) ValidateAuthorizationRequest(ctx context.Context, clientID, redirectURI, codeChallenge string) error {
	if err := f.srv.ValidateClient(ctx, clientID, ""); err != nil {
		if !f.AutoRegisterKnownProxyClient(ctx, clientID, redirectURI) {
			return ErrInvalidClient
		}
	}

	if err := f.srv.ValidateRedirectURI(ctx, clientID, redirectURI); err != nil {
		return ErrInvalidRedirectURI
	}

	if codeChallenge == "" {
		return ErrMissingPKCE
	}

	return nil
}

// AuthenticateAndIssueCode authenticates the user and issues an
// authorization code, superseding any prior codes for the pair. Returns
// the code and the authenticated user ID.
func (f *Flow) AuthenticateAndIssueCode(ctx context.Context, username, password, clientID, redirectURI, scope, codeChallenge, codeChallengeMethod string) (string, string, error) {
	userID, err := f.srv.AuthenticateUser(ctx, username, password)
	if err != nil {
		return "", "", err
	}

	code, err := f.IssueCodeWithCleanup(clientID, userID, redirectURI, scope, codeChallenge, codeChallengeMethod)
	if err != nil {
		return "", "", err
	}
	return code, userID, nil
}

// RegisterUserAndIssueCode creates the user account and issues an
// authorization code for it in one step.
func (f *Flow) RegisterUserAndIssueCode(ctx context.Context, username, password, email, clientID, redirectURI, scope, codeChallenge, codeChallengeMethod string) (string, string, error) {
	userID, err := f.srv.CreateUser(ctx, username, password, email)
	if err != nil {
		return "", "", err
	}

	code, err := f.IssueCodeWithCleanup(clientID, userID, redirectURI, scope, codeChallenge, codeChallengeMethod)
	if err != nil {
		return "", "", err
	}
	return code, userID, nil
}

// SuccessRedirect builds the redirect URL delivering an authorization
// code back to the client.
func (f *Flow) SuccessRedirect(redirectURI, code, state string) (string, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return "", fmt.Errorf("invalid redirect URI: %w", err)
	}

	q := u.Query()
	q.Set("code", code)
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// ErrorRedirect builds the redirect URL delivering an OAuth error back
// to the client. A malformed redirect URI yields an empty string; the
// transport falls back to a direct error response.
func (f *Flow) ErrorRedirect(redirectURI, errorCode, errorDescription, state string) string {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return ""
	}

	q := u.Query()
	q.Set("error", errorCode)
	if errorDescription != "" {
		q.Set("error_description", errorDescription)
	}
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()

	return u.String()
}

package server

import "errors"

// Validation and grant errors returned by the server. Callers match with
// errors.Is; descriptions are deliberately generic so responses never
// reveal whether a client_id or username exists.
var (
	// ErrInvalidClient indicates the client is unknown or its credentials failed
	ErrInvalidClient = errors.New("invalid client")

	// ErrInvalidRedirectURI indicates the redirect URI is not permitted for the client
	ErrInvalidRedirectURI = errors.New("invalid redirect URI")

	// ErrMissingPKCE indicates the authorization request carried no code_challenge
	ErrMissingPKCE = errors.New("missing PKCE code challenge")

	// ErrInvalidGrant indicates the authorization code or refresh token is
	// unknown, consumed, or failed PKCE verification
	ErrInvalidGrant = errors.New("invalid grant")

	// ErrExpiredGrant indicates the authorization code had expired
	ErrExpiredGrant = errors.New("expired grant")

	// ErrClientMismatch indicates the grant was issued to a different client
	ErrClientMismatch = errors.New("client mismatch")

	// ErrRedirectMismatch indicates the redirect URI differs from the one
	// bound at code creation time
	ErrRedirectMismatch = errors.New("redirect URI mismatch")

	// ErrInvalidCredentials indicates username/password authentication failed
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken indicates the access token is unknown or expired
	ErrInvalidToken = errors.New("invalid token")

	// ErrInvalidScope indicates a requested scope is not supported
	ErrInvalidScope = errors.New("invalid scope")

	// ErrRateLimited indicates the caller exceeded its attempt budget
	ErrRateLimited = errors.New("rate limit exceeded")
)

package server

import (
	"log/slog"
	"os"
	"strconv"
)

// TokenExpiryEnvVar is the environment variable overriding the access
// token lifetime in seconds.
const TokenExpiryEnvVar = "OAUTH_TOKEN_EXPIRY"

const (
	// DefaultAuthorizationCodeTTL is the authorization code lifetime in seconds
	DefaultAuthorizationCodeTTL = 600 // 10 minutes

	// DefaultAccessTokenTTL is the access token lifetime in seconds
	DefaultAccessTokenTTL = 86400 // 24 hours

	// RefreshTokenTTLMultiplier is the fixed ratio of refresh token
	// lifetime to access token lifetime
	RefreshTokenTTLMultiplier = 24
)

// DefaultSupportedScopes are the scopes this server understands.
var DefaultSupportedScopes = []string{"read", "write", "admin"}

// Config holds OAuth server configuration
type Config struct {
	// Issuer is the server's issuer identifier (base URL)
	Issuer string

	// AuthorizationCodeTTL is how long authorization codes are valid
	AuthorizationCodeTTL int64 // seconds, default: 600 (10 minutes)

	// AccessTokenTTL is how long access tokens are valid. Defaults to the
	// OAUTH_TOKEN_EXPIRY environment variable, then to 86400 (24 hours).
	// The refresh token lifetime is always 24x this value.
	AccessTokenTTL int64 // seconds

	// SupportedScopes lists the scopes that are allowed for clients
	// If empty, defaults to read, write, admin
	SupportedScopes []string

	// EnableAudit enables security audit logging
	// Default: true
	EnableAudit bool
}

// RefreshTokenTTL returns the refresh token lifetime in seconds, a fixed
// multiple of the access token lifetime.
func (c *Config) RefreshTokenTTL() int64 {
	return c.AccessTokenTTL * RefreshTokenTTLMultiplier
}

// applyDefaults fills in zero-valued configuration fields
func applyDefaults(config *Config, logger *slog.Logger) *Config {
	if config.AuthorizationCodeTTL == 0 {
		config.AuthorizationCodeTTL = DefaultAuthorizationCodeTTL
	}
	if config.AccessTokenTTL == 0 {
		config.AccessTokenTTL = tokenExpiryFromEnv(logger)
	}
	if len(config.SupportedScopes) == 0 {
		config.SupportedScopes = DefaultSupportedScopes
	}
	return config
}

// tokenExpiryFromEnv reads the access token lifetime from the
// environment, falling back to the default on absence or garbage.
func tokenExpiryFromEnv(logger *slog.Logger) int64 {
	raw := os.Getenv(TokenExpiryEnvVar)
	if raw == "" {
		return DefaultAccessTokenTTL
	}

	seconds, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || seconds <= 0 {
		logger.Warn("Ignoring invalid token expiry from environment",
			"env_var", TokenExpiryEnvVar,
			"value", raw,
			"default", DefaultAccessTokenTTL)
		return DefaultAccessTokenTTL
	}

	return seconds
}

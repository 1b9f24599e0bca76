package server

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
)

// PKCE code challenge methods (RFC 7636)
const (
	PKCEMethodS256  = "S256"
	PKCEMethodPlain = "plain"
)

// MatchRedirectURI reports whether the requested URI is permitted by the
// registered set. An exact string match against any entry short-circuits
// true. Entries containing a literal '*' are compiled into a fully
// anchored pattern: every character is escaped except the wildcard,
// which matches any sequence. The requested URI must match the entire
// pattern; a prefix or substring match is rejected.
func MatchRedirectURI(requestedURI string, registeredURIs []string) bool {
	for _, registered := range registeredURIs {
		if registered == requestedURI {
			return true
		}
	}

	for _, registered := range registeredURIs {
		if !strings.Contains(registered, "*") {
			continue
		}
		pattern := "^" + strings.ReplaceAll(regexp.QuoteMeta(registered), `\*`, ".*") + "$"
		matched, err := regexp.MatchString(pattern, requestedURI)
		if err != nil {
			continue
		}
		if matched {
			return true
		}
	}

	return false
}

// isTrustedProxyURI reports whether the URI belongs to the known hosted
// client proxy. Such URIs are accepted even when not explicitly
// registered. This is a narrow compatibility carve-out for one client
// family, not a general bypass.
func isTrustedProxyURI(uri string) bool {
	if !strings.HasPrefix(uri, trustedProxyPrefix) {
		return false
	}
	return strings.Contains(uri, "mcp") || strings.Contains(uri, "oauth")
}

// VerifyPKCE verifies a code verifier against the stored challenge per
// RFC 7636. For S256 the challenge is the base64url-encoded (unpadded)
// SHA-256 digest of the verifier; for plain it is the verifier itself.
// Unsupported methods verify as false rather than erroring. Comparisons
// are constant time.
//
// The plain method is accepted for compatibility with legacy clients but
// offers no protection if the authorization request leaks; S256 is the
// method clients should use.
func VerifyPKCE(verifier, challenge, method string) bool {
	switch method {
	case PKCEMethodS256:
		hash := sha256.Sum256([]byte(verifier))
		computed := base64.RawURLEncoding.EncodeToString(hash[:])
		return subtle.ConstantTimeCompare([]byte(computed), []byte(challenge)) == 1
	case PKCEMethodPlain:
		return subtle.ConstantTimeCompare([]byte(verifier), []byte(challenge)) == 1
	default:
		return false
	}
}

// validateScopes validates that requested scopes are in the supported set
func (s *Server) validateScopes(scope string) error {
	if len(s.Config.SupportedScopes) == 0 {
		return nil
	}
	if scope == "" {
		return nil
	}

	for _, requested := range strings.Fields(scope) {
		found := false
		for _, supported := range s.Config.SupportedScopes {
			if requested == supported {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: unsupported scope %q", ErrInvalidScope, requested)
		}
	}

	return nil
}

// validateChallengeMethod checks that the PKCE method is one of the
// supported enumeration before a code is created with it.
func validateChallengeMethod(method string) error {
	switch method {
	case PKCEMethodS256, PKCEMethodPlain:
		return nil
	default:
		return fmt.Errorf("%w: unsupported code_challenge_method %q", ErrInvalidGrant, method)
	}
}

package server

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/giantswarm/mcp-auth/storage"
)

// TokenEndpointAuthMethodNone is the token endpoint authentication
// method for every client this server issues: PKCE replaces the client
// secret at the token endpoint.
const TokenEndpointAuthMethodNone = "none"

// Entropy sizes for generated client credentials, in bytes before
// base64url encoding.
const (
	clientIDBytes     = 16
	clientSecretBytes = 32
)

// Known hosted client proxy (claude.ai) constants. Requests from this
// client family arrive through a per-organization proxy whose callback
// URL is not knowable at registration time, hence the wildcard pattern
// and the auto-registration path in flows.go.
const (
	hostedClientDomain = "claude.ai"

	// trustedProxyPrefix anchors the documented registration exception in
	// isTrustedProxyURI
	trustedProxyPrefix = "https://claude.ai/api/organizations/"

	// hostedProxyCallbackPattern is appended to registrations that look
	// like the hosted client, covering each organization's callback
	hostedProxyCallbackPattern = "https://claude.ai/api/organizations/*/mcp/oauth/callback"

	// hostedOrganizationsMarker identifies redirect URIs already covering
	// the per-organization proxy callback space
	hostedOrganizationsMarker = "claude.ai/api/organizations"

	// hostedAutoRegisterPrefix gates auto-registration of unknown client
	// IDs presented by the hosted client
	hostedAutoRegisterPrefix = "https://claude.ai/api/"

	// hostedCanonicalCallback is the canonical proxy callback registered
	// alongside the requested URI during auto-registration
	hostedCanonicalCallback = "https://claude.ai/api/mcp/auth_callback"

	// hostedAutoRegisterName labels auto-registered hosted clients
	hostedAutoRegisterName = "Claude.ai (Auto-registered)"
)

// RegisterClient registers a new OAuth client with generated
// credentials. When the declared name or any declared redirect URI
// references the known hosted client, the proxy callback pattern is
// appended so per-organization callbacks validate later.
func (s *Server) RegisterClient(ctx context.Context, clientName string, redirectURIs []string) (*storage.Client, error) {
	clientID, err := generateOpaqueID(clientIDBytes)
	if err != nil {
		return nil, err
	}
	clientSecret, err := generateOpaqueID(clientSecretBytes)
	if err != nil {
		return nil, err
	}

	uris := withHostedProxyCallback(clientName, redirectURIs)

	client := &storage.Client{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURIs: uris,
		ClientName:   clientName,
		CreatedAt:    s.Clock.Now(),
	}

	if err := s.store.RegisterClient(ctx, client); err != nil {
		return nil, fmt.Errorf("failed to register client: %w", err)
	}

	if s.Auditor != nil {
		s.Auditor.LogClientRegistered(client.ClientID, client.ClientName, false)
	}
	if s.Metrics != nil {
		s.Metrics.RecordClientRegistration(ctx, false)
	}
	s.Logger.Info("Registered new OAuth client",
		"client_id", client.ClientID,
		"client_name", client.ClientName,
		"redirect_uris", len(client.RedirectURIs))

	return client, nil
}

// RegisterExistingClient registers a client under a caller-supplied ID.
// Used by the auto-registration path where the client already holds an
// ID it was never issued. Registering an ID that exists is not an error
// for the caller's purposes; it reports false.
func (s *Server) RegisterExistingClient(ctx context.Context, clientID, clientName string, redirectURIs []string) (bool, error) {
	clientSecret, err := generateOpaqueID(clientSecretBytes)
	if err != nil {
		return false, err
	}

	client := &storage.Client{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURIs: redirectURIs,
		ClientName:   clientName,
		CreatedAt:    s.Clock.Now(),
	}

	if err := s.store.RegisterClient(ctx, client); err != nil {
		if errors.Is(err, storage.ErrDuplicateClient) {
			return false, nil
		}
		return false, fmt.Errorf("failed to register client: %w", err)
	}

	if s.Auditor != nil {
		s.Auditor.LogClientRegistered(clientID, clientName, true)
	}
	if s.Metrics != nil {
		s.Metrics.RecordClientRegistration(ctx, true)
	}
	s.Logger.Info("Auto-registered OAuth client",
		"client_id", clientID,
		"client_name", clientName)

	return true, nil
}

// withHostedProxyCallback appends the hosted proxy callback pattern when
// the registration references the hosted client and the pattern is not
// already present.
func withHostedProxyCallback(clientName string, redirectURIs []string) []string {
	uris := make([]string, len(redirectURIs))
	copy(uris, redirectURIs)

	referencesHosted := strings.Contains(strings.ToLower(clientName), "claude")
	for _, uri := range uris {
		if referencesHosted {
			break
		}
		if strings.Contains(uri, hostedClientDomain) {
			referencesHosted = true
		}
	}
	if !referencesHosted {
		return uris
	}

	// A declared organizations callback, concrete or wildcard, already
	// covers the proxy; do not append a redundant pattern.
	for _, uri := range uris {
		if strings.Contains(uri, hostedOrganizationsMarker) {
			return uris
		}
	}
	return append(uris, hostedProxyCallbackPattern)
}

// ValidateClient checks that the client exists and, when a secret is
// presented, that it matches. PKCE-only clients present no secret; an
// empty secret checks existence only.
func (s *Server) ValidateClient(ctx context.Context, clientID, clientSecret string) error {
	ok, err := s.store.ValidateClient(ctx, clientID, clientSecret)
	if err != nil {
		return fmt.Errorf("failed to validate client: %w", err)
	}
	if !ok {
		if s.Auditor != nil {
			s.Auditor.LogAuthFailure("", clientID, "client_validation_failed")
		}
		return ErrInvalidClient
	}
	return nil
}

// ValidateRedirectURI checks that the redirect URI is permitted for the
// client, consulting the store live. URIs belonging to the known hosted
// proxy are trusted even when unregistered, but only for clients that
// exist: the carve-out relaxes URI matching, not client validation.
func (s *Server) ValidateRedirectURI(ctx context.Context, clientID, redirectURI string) error {
	registered, err := s.store.GetClientRedirectURIs(ctx, clientID)
	if err != nil {
		return fmt.Errorf("failed to load redirect URIs: %w", err)
	}
	if len(registered) == 0 {
		if s.Auditor != nil {
			s.Auditor.LogAuthFailure("", clientID, "redirect_uri_rejected")
		}
		return ErrInvalidRedirectURI
	}

	if isTrustedProxyURI(redirectURI) {
		s.Logger.Debug("Accepting trusted hosted proxy redirect URI",
			"client_id", clientID)
		return nil
	}

	if !MatchRedirectURI(redirectURI, registered) {
		if s.Auditor != nil {
			s.Auditor.LogAuthFailure("", clientID, "redirect_uri_rejected")
		}
		return ErrInvalidRedirectURI
	}
	return nil
}

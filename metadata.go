package oauth

import (
	"github.com/giantswarm/mcp-auth/internal/util"
	"github.com/giantswarm/mcp-auth/server"
	"github.com/giantswarm/mcp-auth/storage"
)

// NewAuthorizationServerMetadata builds the RFC 8414 discovery document
// for this server. The supported sets are fixed: this server issues
// authorization codes with mandatory PKCE and authenticates no client at
// the token endpoint.
func NewAuthorizationServerMetadata(issuer string) *AuthorizationServerMetadata {
	base := util.NormalizeURL(issuer)
	return &AuthorizationServerMetadata{
		Issuer:                            base,
		AuthorizationEndpoint:             base + "/authorize",
		TokenEndpoint:                     base + "/token",
		RegistrationEndpoint:              base + "/register",
		ScopesSupported:                   server.DefaultSupportedScopes,
		ResponseTypesSupported:            []string{"code"},
		GrantTypesSupported:               []string{"authorization_code", "refresh_token"},
		TokenEndpointAuthMethodsSupported: []string{server.TokenEndpointAuthMethodNone},
		CodeChallengeMethodsSupported:     []string{"S256"},
		RegistrationClientURI:             base + "/register",
		RequireRequestURIRegistration:     false,
	}
}

// NewProtectedResourceMetadata builds the RFC 9728 document for a
// resource protected by this server.
func NewProtectedResourceMetadata(resource, issuer string) *ProtectedResourceMetadata {
	return &ProtectedResourceMetadata{
		Resource:               util.NormalizeURL(resource),
		AuthorizationServers:   []string{util.NormalizeURL(issuer)},
		BearerMethodsSupported: []string{"header"},
		ScopesSupported:        server.DefaultSupportedScopes,
	}
}

// NewClientRegistrationResponse builds the RFC 7591 response for a
// freshly registered client.
func NewClientRegistrationResponse(client *storage.Client) *ClientRegistrationResponse {
	return &ClientRegistrationResponse{
		ClientID:                client.ClientID,
		ClientSecret:            client.ClientSecret,
		ClientIDIssuedAt:        client.CreatedAt.Unix(),
		ClientSecretExpiresAt:   0,
		RedirectURIs:            client.RedirectURIs,
		TokenEndpointAuthMethod: server.TokenEndpointAuthMethodNone,
		GrantTypes:              []string{"authorization_code", "refresh_token"},
		ResponseTypes:           []string{"code"},
		ClientName:              client.ClientName,
	}
}

// NewTokenResponse converts an issued token pair into the wire response
func NewTokenResponse(pair *server.TokenPair) *TokenResponse {
	return &TokenResponse{
		AccessToken:  pair.AccessToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    pair.ExpiresIn,
		RefreshToken: pair.RefreshToken,
		Scope:        pair.Scope,
	}
}

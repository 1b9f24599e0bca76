// Package server implements the core OAuth 2.1 authorization server logic.
//
// This package provides the authorization server implementation with
// support for the authorization code flow, mandatory PKCE, refresh token
// rotation, dynamic client registration, and user authentication. It
// coordinates between storage backends and security features while
// remaining transport-agnostic.
//
// The Server type owns an in-memory working set of authorization codes
// and tokens, mirrored to a durable storage.Datastore. Authorization
// codes live only in memory; they are short-lived and loss on restart is
// acceptable. Tokens are rehydrated from the Datastore at construction.
//
// The Flow type sequences multi-step operations on top of Server: code
// cleanup-then-issue, auto-registration for known hosted clients, and
// building success/error redirect URLs.
//
// Key Features:
//   - OAuth 2.1 authorization code flow with mandatory PKCE
//   - Single-use authorization codes with supersession
//   - Refresh token rotation
//   - Dynamic client registration (RFC 7591)
//   - Wildcard redirect URI patterns
//   - Security auditing and rate limiting
//
// Example usage:
//
//	store, err := sqlite.New("oauth.db", logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	srv, err := server.New(ctx, store, &server.Config{
//	    Issuer: "https://auth.example.com",
//	}, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	flow := server.NewFlow(srv)
package server

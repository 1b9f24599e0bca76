// Package instrumentation provides OpenTelemetry instrumentation for the
// mcp-auth library.
//
// It exposes pre-configured metric instruments for the authorization
// flow (client registrations, code exchanges, token refreshes, PKCE
// failures) behind a single Instrumentation type. When disabled, no-op
// providers are used and recording has zero overhead.
package instrumentation

package instrumentation

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the metric instruments for the authorization server
type Metrics struct {
	ClientRegistered metric.Int64Counter
	CodeExchanged    metric.Int64Counter
	TokenRefreshed   metric.Int64Counter
	PKCEFailed       metric.Int64Counter
	AuthFailed       metric.Int64Counter
}

// newMetrics creates and registers all metric instruments
func newMetrics(inst *Instrumentation) (*Metrics, error) {
	meter := inst.Meter("github.com/giantswarm/mcp-auth/server")
	m := &Metrics{}

	var err error
	m.ClientRegistered, err = meter.Int64Counter(
		"oauth.client.registered",
		metric.WithDescription("Number of OAuth clients registered"),
		metric.WithUnit("{client}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create client.registered counter: %w", err)
	}

	m.CodeExchanged, err = meter.Int64Counter(
		"oauth.code.exchanged",
		metric.WithDescription("Number of authorization codes exchanged for tokens"),
		metric.WithUnit("{exchange}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create code.exchanged counter: %w", err)
	}

	m.TokenRefreshed, err = meter.Int64Counter(
		"oauth.token.refreshed",
		metric.WithDescription("Number of refresh token rotations"),
		metric.WithUnit("{refresh}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token.refreshed counter: %w", err)
	}

	m.PKCEFailed, err = meter.Int64Counter(
		"oauth.pkce.failed",
		metric.WithDescription("Number of PKCE verification failures"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create pkce.failed counter: %w", err)
	}

	m.AuthFailed, err = meter.Int64Counter(
		"oauth.auth.failed",
		metric.WithDescription("Number of failed authentication attempts"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth.failed counter: %w", err)
	}

	return m, nil
}

// RecordClientRegistration records a client registration
func (m *Metrics) RecordClientRegistration(ctx context.Context, autoRegistered bool) {
	if m == nil {
		return
	}
	m.ClientRegistered.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("auto_registered", autoRegistered),
	))
}

// RecordCodeExchange records a successful code exchange
func (m *Metrics) RecordCodeExchange(ctx context.Context, pkceMethod string) {
	if m == nil {
		return
	}
	m.CodeExchanged.Add(ctx, 1, metric.WithAttributes(
		attribute.String("pkce_method", pkceMethod),
	))
}

// RecordTokenRefresh records a refresh token rotation
func (m *Metrics) RecordTokenRefresh(ctx context.Context) {
	if m == nil {
		return
	}
	m.TokenRefreshed.Add(ctx, 1)
}

// RecordPKCEFailure records a PKCE verification failure
func (m *Metrics) RecordPKCEFailure(ctx context.Context, method string) {
	if m == nil {
		return
	}
	m.PKCEFailed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("pkce_method", method),
	))
}

// RecordAuthFailure records a failed authentication attempt
func (m *Metrics) RecordAuthFailure(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.AuthFailed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("reason", reason),
	))
}

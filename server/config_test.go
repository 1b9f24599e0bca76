package server

import (
	"testing"

	"github.com/giantswarm/mcp-auth/internal/testutil"
)

func TestApplyDefaults(t *testing.T) {
	cfg := applyDefaults(&Config{}, testLogger())

	testutil.AssertEqual(t, cfg.AuthorizationCodeTTL, int64(DefaultAuthorizationCodeTTL))
	testutil.AssertEqual(t, cfg.AccessTokenTTL, int64(DefaultAccessTokenTTL))
	testutil.AssertEqual(t, len(cfg.SupportedScopes), 3)
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := applyDefaults(&Config{
		AuthorizationCodeTTL: 120,
		AccessTokenTTL:       3600,
		SupportedScopes:      []string{"read"},
	}, testLogger())

	testutil.AssertEqual(t, cfg.AuthorizationCodeTTL, int64(120))
	testutil.AssertEqual(t, cfg.AccessTokenTTL, int64(3600))
	testutil.AssertEqual(t, len(cfg.SupportedScopes), 1)
}

func TestTokenExpiryFromEnv(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  int64
	}{
		{name: "unset", value: "", want: DefaultAccessTokenTTL},
		{name: "valid", value: "3600", want: 3600},
		{name: "garbage", value: "one hour", want: DefaultAccessTokenTTL},
		{name: "negative", value: "-5", want: DefaultAccessTokenTTL},
		{name: "zero", value: "0", want: DefaultAccessTokenTTL},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(TokenExpiryEnvVar, tc.value)
			testutil.AssertEqual(t, tokenExpiryFromEnv(testLogger()), tc.want)
		})
	}
}

func TestRefreshTokenTTL(t *testing.T) {
	cfg := &Config{AccessTokenTTL: 3600}
	testutil.AssertEqual(t, cfg.RefreshTokenTTL(), int64(3600*24))
}

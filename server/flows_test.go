package server

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/giantswarm/mcp-auth/internal/testutil"
)

func TestFlow_EndToEnd(t *testing.T) {
	srv, _, _ := newTestServer(t)
	flow := NewFlow(srv)
	ctx := context.Background()

	client, err := srv.RegisterClient(ctx, "demo", []string{"https://app.test/cb"})
	testutil.AssertNoError(t, err)

	userID, err := srv.CreateUser(ctx, "user1", "pass1", "user1@test")
	testutil.AssertNoError(t, err)

	challenge, verifier := testutil.GeneratePKCEPair()

	err = flow.ValidateAuthorizationRequest(ctx, client.ClientID, "https://app.test/cb", challenge)
	testutil.AssertNoError(t, err)

	code, gotUserID, err := flow.AuthenticateAndIssueCode(
		ctx, "user1", "pass1", client.ClientID, "https://app.test/cb", "read", challenge, PKCEMethodS256)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, gotUserID, userID)

	pair, err := srv.ExchangeCodeForTokens(ctx, code, client.ClientID, "https://app.test/cb", verifier)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, pair.ExpiresIn, int64(86400))

	info, err := srv.ValidateAccessToken(ctx, pair.AccessToken)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, info.UserID, userID)
	testutil.AssertEqual(t, info.Scope, "read")
}

func TestFlow_IssueCodeWithCleanup_SupersedesPriorCodes(t *testing.T) {
	srv, _, _ := newTestServer(t)
	flow := NewFlow(srv)
	ctx := context.Background()

	challenge, verifier := testutil.GeneratePKCEPair()

	first, err := flow.IssueCodeWithCleanup("client-1", "user-1", "https://app.test/cb", "read", challenge, PKCEMethodS256)
	testutil.AssertNoError(t, err)
	second, err := flow.IssueCodeWithCleanup("client-1", "user-1", "https://app.test/cb", "read", challenge, PKCEMethodS256)
	testutil.AssertNoError(t, err)

	// The first code was discarded by the second issuance.
	if _, err := srv.ExchangeCodeForTokens(ctx, first, "client-1", "https://app.test/cb", verifier); !errors.Is(err, ErrInvalidGrant) {
		t.Errorf("superseded code: got %v, want ErrInvalidGrant", err)
	}
	if _, err := srv.ExchangeCodeForTokens(ctx, second, "client-1", "https://app.test/cb", verifier); err != nil {
		t.Errorf("live code: %v", err)
	}
}

func TestFlow_IssueCodeWithCleanup_LeavesOtherPairsAlone(t *testing.T) {
	srv, _, _ := newTestServer(t)
	flow := NewFlow(srv)
	ctx := context.Background()

	challenge, verifier := testutil.GeneratePKCEPair()

	other, err := flow.IssueCodeWithCleanup("client-2", "user-1", "https://app.test/cb", "read", challenge, PKCEMethodS256)
	testutil.AssertNoError(t, err)

	_, err = flow.IssueCodeWithCleanup("client-1", "user-1", "https://app.test/cb", "read", challenge, PKCEMethodS256)
	testutil.AssertNoError(t, err)

	// Codes for a different client are untouched.
	if _, err := srv.ExchangeCodeForTokens(ctx, other, "client-2", "https://app.test/cb", verifier); err != nil {
		t.Errorf("unrelated code: %v", err)
	}
}

func TestFlow_ValidateAuthorizationRequest_UnknownClient(t *testing.T) {
	srv, _, _ := newTestServer(t)
	flow := NewFlow(srv)

	err := flow.ValidateAuthorizationRequest(context.Background(), "nobody", "https://app.test/cb", "challenge")
	if !errors.Is(err, ErrInvalidClient) {
		t.Errorf("got %v, want ErrInvalidClient", err)
	}
}

func TestFlow_ValidateAuthorizationRequest_MissingPKCE(t *testing.T) {
	srv, _, _ := newTestServer(t)
	flow := NewFlow(srv)
	ctx := context.Background()

	client, err := srv.RegisterClient(ctx, "demo", []string{"https://app.test/cb"})
	testutil.AssertNoError(t, err)

	err = flow.ValidateAuthorizationRequest(ctx, client.ClientID, "https://app.test/cb", "")
	if !errors.Is(err, ErrMissingPKCE) {
		t.Errorf("got %v, want ErrMissingPKCE", err)
	}
}

func TestFlow_ValidateAuthorizationRequest_BadRedirect(t *testing.T) {
	srv, _, _ := newTestServer(t)
	flow := NewFlow(srv)
	ctx := context.Background()

	client, err := srv.RegisterClient(ctx, "demo", []string{"https://app.test/cb"})
	testutil.AssertNoError(t, err)

	err = flow.ValidateAuthorizationRequest(ctx, client.ClientID, "https://evil.test/cb", "challenge")
	if !errors.Is(err, ErrInvalidRedirectURI) {
		t.Errorf("got %v, want ErrInvalidRedirectURI", err)
	}
}

func TestFlow_AutoRegisterKnownProxyClient(t *testing.T) {
	srv, _, _ := newTestServer(t)
	flow := NewFlow(srv)
	ctx := context.Background()

	redirect := "https://claude.ai/api/organizations/org-42/mcp/oauth/callback"

	if !flow.AutoRegisterKnownProxyClient(ctx, "presented-id", redirect) {
		t.Fatal("expected auto-registration to happen")
	}

	// The presented ID is now a real client with the requested URI and
	// the canonical callback.
	uris, err := srv.store.GetClientRedirectURIs(ctx, "presented-id")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, len(uris), 2)
	testutil.AssertEqual(t, uris[0], redirect)
	testutil.AssertEqual(t, uris[1], "https://claude.ai/api/mcp/auth_callback")

	// Second presentation is a no-op, not an error.
	if flow.AutoRegisterKnownProxyClient(ctx, "presented-id", redirect) {
		t.Error("re-registration reported true")
	}
}

func TestFlow_AutoRegisterKnownProxyClient_ForeignRedirect(t *testing.T) {
	srv, _, _ := newTestServer(t)
	flow := NewFlow(srv)

	if flow.AutoRegisterKnownProxyClient(context.Background(), "presented-id", "https://evil.test/api/cb") {
		t.Error("auto-registered a client with a foreign redirect URI")
	}
}

func TestFlow_ValidateAuthorizationRequest_AutoRegisters(t *testing.T) {
	srv, _, _ := newTestServer(t)
	flow := NewFlow(srv)
	ctx := context.Background()

	redirect := "https://claude.ai/api/organizations/org-7/mcp/oauth/callback"

	err := flow.ValidateAuthorizationRequest(ctx, "never-issued", redirect, "challenge")
	testutil.AssertNoError(t, err)

	// The client now exists.
	testutil.AssertNoError(t, srv.ValidateClient(ctx, "never-issued", ""))
}

func TestFlow_RegisterUserAndIssueCode(t *testing.T) {
	srv, _, _ := newTestServer(t)
	flow := NewFlow(srv)
	ctx := context.Background()

	challenge, verifier := testutil.GeneratePKCEPair()

	code, userID, err := flow.RegisterUserAndIssueCode(
		ctx, "newuser", "newpass", "new@test", "client-1", "https://app.test/cb", "read write", challenge, PKCEMethodS256)
	testutil.AssertNoError(t, err)
	testutil.AssertNotEqual(t, userID, "")

	pair, err := srv.ExchangeCodeForTokens(ctx, code, "client-1", "https://app.test/cb", verifier)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, pair.Scope, "read write")

	// The account is usable for regular sign-in afterwards.
	gotID, err := srv.AuthenticateUser(ctx, "newuser", "newpass")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, gotID, userID)
}

func TestFlow_SuccessRedirect(t *testing.T) {
	flow := NewFlow(nil)

	got, err := flow.SuccessRedirect("https://app.test/cb?keep=1", "abc123", "xyzzy")
	testutil.AssertNoError(t, err)

	u, err := url.Parse(got)
	testutil.AssertNoError(t, err)
	q := u.Query()
	testutil.AssertEqual(t, q.Get("code"), "abc123")
	testutil.AssertEqual(t, q.Get("state"), "xyzzy")
	testutil.AssertEqual(t, q.Get("keep"), "1")
}

func TestFlow_SuccessRedirect_NoState(t *testing.T) {
	flow := NewFlow(nil)

	got, err := flow.SuccessRedirect("https://app.test/cb", "abc123", "")
	testutil.AssertNoError(t, err)

	u, _ := url.Parse(got)
	if _, present := u.Query()["state"]; present {
		t.Error("state parameter present without a state value")
	}
}

func TestFlow_ErrorRedirect(t *testing.T) {
	flow := NewFlow(nil)

	got := flow.ErrorRedirect("https://app.test/cb", "access_denied", "user said no", "xyzzy")

	u, err := url.Parse(got)
	testutil.AssertNoError(t, err)
	q := u.Query()
	testutil.AssertEqual(t, q.Get("error"), "access_denied")
	testutil.AssertEqual(t, q.Get("error_description"), "user said no")
	testutil.AssertEqual(t, q.Get("state"), "xyzzy")
}

func TestFlow_ErrorRedirect_MalformedURI(t *testing.T) {
	flow := NewFlow(nil)

	if got := flow.ErrorRedirect("://not-a-uri", "server_error", "", ""); got != "" {
		t.Errorf("got %q, want empty string for malformed redirect URI", got)
	}
}

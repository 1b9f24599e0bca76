package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/giantswarm/mcp-auth/internal/testutil"
	"github.com/giantswarm/mcp-auth/security"
	"github.com/giantswarm/mcp-auth/storage"
)

func TestRegisterClient_Duplicate(t *testing.T) {
	store := New(nil)
	ctx := context.Background()

	client := testutil.GenerateTestClient()
	testutil.AssertNoError(t, store.RegisterClient(ctx, client))

	err := store.RegisterClient(ctx, client)
	if !errors.Is(err, storage.ErrDuplicateClient) {
		t.Errorf("got %v, want ErrDuplicateClient", err)
	}
}

func TestRegisterClient_CopiesInput(t *testing.T) {
	store := New(nil)
	ctx := context.Background()

	client := testutil.GenerateTestClient()
	testutil.AssertNoError(t, store.RegisterClient(ctx, client))

	// Mutating the caller's slice must not affect the stored client.
	client.RedirectURIs[0] = "https://evil.test/cb"

	uris, err := store.GetClientRedirectURIs(ctx, client.ClientID)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, uris[0], "https://example.com/callback")
}

func TestValidateClient(t *testing.T) {
	store := New(nil)
	ctx := context.Background()

	client := testutil.GenerateTestClient()
	testutil.AssertNoError(t, store.RegisterClient(ctx, client))

	tests := []struct {
		name         string
		clientID     string
		clientSecret string
		want         bool
	}{
		{name: "existence only", clientID: client.ClientID, clientSecret: "", want: true},
		{name: "correct secret", clientID: client.ClientID, clientSecret: client.ClientSecret, want: true},
		{name: "wrong secret", clientID: client.ClientID, clientSecret: "wrong", want: false},
		{name: "unknown client", clientID: "unknown", clientSecret: "", want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := store.ValidateClient(ctx, tc.clientID, tc.clientSecret)
			testutil.AssertNoError(t, err)
			testutil.AssertEqual(t, ok, tc.want)
		})
	}
}

func TestGetClientRedirectURIs_Unknown(t *testing.T) {
	store := New(nil)

	uris, err := store.GetClientRedirectURIs(context.Background(), "unknown")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, len(uris), 0)
}

func TestCreateUser_Duplicate(t *testing.T) {
	store := New(nil)
	ctx := context.Background()

	hash, err := security.HashPassword("secret")
	testutil.AssertNoError(t, err)

	userID, err := store.CreateUser(ctx, "alice", hash, "alice@test")
	testutil.AssertNoError(t, err)
	testutil.AssertNotEqual(t, userID, "")

	_, err = store.CreateUser(ctx, "alice", hash, "alice@test")
	if !errors.Is(err, storage.ErrDuplicateUser) {
		t.Errorf("got %v, want ErrDuplicateUser", err)
	}
}

func TestAuthenticateUser(t *testing.T) {
	store := New(nil)
	ctx := context.Background()

	hash, err := security.HashPassword("secret")
	testutil.AssertNoError(t, err)
	userID, err := store.CreateUser(ctx, "alice", hash, "alice@test")
	testutil.AssertNoError(t, err)

	gotID, err := store.AuthenticateUser(ctx, "alice", "secret")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, gotID, userID)

	// Wrong password and unknown user are the same error.
	if _, err := store.AuthenticateUser(ctx, "alice", "wrong"); !errors.Is(err, storage.ErrUserNotFound) {
		t.Errorf("wrong password: got %v, want ErrUserNotFound", err)
	}
	if _, err := store.AuthenticateUser(ctx, "nobody", "secret"); !errors.Is(err, storage.ErrUserNotFound) {
		t.Errorf("unknown user: got %v, want ErrUserNotFound", err)
	}
}

func TestSaveToken_Upsert(t *testing.T) {
	store := New(nil)
	ctx := context.Background()

	rec := testutil.GenerateTestTokenRecord(storage.TokenKindAccess)
	testutil.AssertNoError(t, store.SaveToken(ctx, rec))
	testutil.AssertEqual(t, store.TokenCount(), 1)

	rec.Scope = "admin"
	testutil.AssertNoError(t, store.SaveToken(ctx, rec))
	testutil.AssertEqual(t, store.TokenCount(), 1)

	access, _, err := store.LoadValidTokens(ctx)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, len(access), 1)
	testutil.AssertEqual(t, access[0].Scope, "admin")
}

func TestLoadValidTokens_FiltersExpired(t *testing.T) {
	store := New(nil)
	ctx := context.Background()

	clock := testutil.NewMockClock(time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC))
	store.SetClock(clock)

	live := testutil.GenerateTestTokenRecord(storage.TokenKindAccess)
	live.ExpiresAt = clock.Now().Add(time.Hour)
	expired := testutil.GenerateTestTokenRecord(storage.TokenKindAccess)
	expired.ExpiresAt = clock.Now().Add(-time.Minute)
	refresh := testutil.GenerateTestTokenRecord(storage.TokenKindRefresh)
	refresh.ExpiresAt = clock.Now().Add(24 * time.Hour)
	refresh.AccessToken = live.Token

	testutil.AssertNoError(t, store.SaveToken(ctx, live))
	testutil.AssertNoError(t, store.SaveToken(ctx, expired))
	testutil.AssertNoError(t, store.SaveToken(ctx, refresh))

	access, refreshRecs, err := store.LoadValidTokens(ctx)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, len(access), 1)
	testutil.AssertEqual(t, access[0].Token, live.Token)
	testutil.AssertEqual(t, len(refreshRecs), 1)
	testutil.AssertEqual(t, refreshRecs[0].AccessToken, live.Token)
}

func TestRemoveToken(t *testing.T) {
	store := New(nil)
	ctx := context.Background()

	rec := testutil.GenerateTestTokenRecord(storage.TokenKindAccess)
	testutil.AssertNoError(t, store.SaveToken(ctx, rec))

	testutil.AssertNoError(t, store.RemoveToken(ctx, rec.Token))
	testutil.AssertEqual(t, store.TokenCount(), 0)

	// Removing an unknown token is not an error.
	testutil.AssertNoError(t, store.RemoveToken(ctx, rec.Token))
}

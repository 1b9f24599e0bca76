package server

import (
	"sync"
	"time"

	"github.com/giantswarm/mcp-auth/security"
)

// authorizationCode is a pending authorization grant. Codes live only in
// the in-memory working set; they are never persisted.
type authorizationCode struct {
	Code                string
	ClientID            string
	UserID              string
	RedirectURI         string
	Scope               string
	CodeChallenge       string
	CodeChallengeMethod string
	ExpiresAt           time.Time
	CreatedAt           time.Time
}

// tokenData is the in-memory record for an access or refresh token.
// AccessToken is set only on refresh records and names the access token
// issued alongside, so rotation can revoke the pair.
type tokenData struct {
	Token       string
	UserID      string
	ClientID    string
	Scope       string
	AccessToken string
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

// tokenCache is the shared in-memory index of codes, access tokens, and
// refresh tokens. A single mutex guards all three maps; every
// read-modify-write sequence (consume a code, evict on expiry, rotate a
// refresh token) runs as one critical section so concurrent requests
// cannot interleave between the check and the mutation.
type tokenCache struct {
	mu      sync.Mutex
	codes   map[string]*authorizationCode
	access  map[string]*tokenData
	refresh map[string]*tokenData
}

func newTokenCache() *tokenCache {
	return &tokenCache{
		codes:   make(map[string]*authorizationCode),
		access:  make(map[string]*tokenData),
		refresh: make(map[string]*tokenData),
	}
}

// putCode stores an authorization code.
func (c *tokenCache) putCode(code *authorizationCode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.codes[code.Code] = code
}

// consumeCode atomically removes and returns the code. The code is gone
// from the index whether or not the caller's subsequent validation
// succeeds, which is what makes codes single-use.
func (c *tokenCache) consumeCode(code string) (*authorizationCode, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ac, ok := c.codes[code]
	if !ok {
		return nil, false
	}
	delete(c.codes, code)
	return ac, true
}

// invalidateCodesFor removes every live code for the client/user pair
// and returns how many were discarded.
func (c *tokenCache) invalidateCodesFor(clientID, userID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for code, ac := range c.codes {
		if ac.ClientID == clientID && ac.UserID == userID {
			delete(c.codes, code)
			removed++
		}
	}
	return removed
}

// putTokenPair stores an access/refresh token pair.
func (c *tokenCache) putTokenPair(access, refresh *tokenData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.access[access.Token] = access
	c.refresh[refresh.Token] = refresh
}

// removeTokenPair undoes putTokenPair. Used to roll back the index when
// the backing store rejects the corresponding write.
func (c *tokenCache) removeTokenPair(access, refresh *tokenData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.access, access.Token)
	delete(c.refresh, refresh.Token)
}

// putAccess stores a single access token record.
func (c *tokenCache) putAccess(td *tokenData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.access[td.Token] = td
}

// putRefresh stores a single refresh token record.
func (c *tokenCache) putRefresh(td *tokenData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refresh[td.Token] = td
}

// getValidAccess looks up an access token. If the token is present but
// expired it is evicted and reported as expired so the caller can also
// remove the durable copy. The lookup and eviction are one critical
// section.
func (c *tokenCache) getValidAccess(token string, now time.Time) (td *tokenData, expired bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.access[token]
	if !ok {
		return nil, false
	}
	if security.IsExpiredAt(now, rec.ExpiresAt) {
		delete(c.access, token)
		return nil, true
	}
	cp := *rec
	return &cp, false
}

// consumeRefreshFor atomically validates and removes a refresh token for
// rotation. A client mismatch leaves the token in place: a caller
// presenting someone else's token value must not be able to burn it.
// An expired token is evicted and reported via ErrExpiredGrant so the
// caller can also remove the durable copy.
func (c *tokenCache) consumeRefreshFor(token, clientID string, now time.Time) (*tokenData, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.refresh[token]
	if !ok {
		return nil, ErrInvalidGrant
	}
	if security.IsExpiredAt(now, rec.ExpiresAt) {
		delete(c.refresh, token)
		return nil, ErrExpiredGrant
	}
	if rec.ClientID != clientID {
		return nil, ErrClientMismatch
	}
	delete(c.refresh, token)
	cp := *rec
	return &cp, nil
}

// deleteAccess removes an access token from the index only.
func (c *tokenCache) deleteAccess(token string) (*tokenData, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.access[token]
	if !ok {
		return nil, false
	}
	delete(c.access, token)
	return rec, true
}

// counts reports index sizes for logging and metrics.
func (c *tokenCache) counts() (codes, access, refresh int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.codes), len(c.access), len(c.refresh)
}

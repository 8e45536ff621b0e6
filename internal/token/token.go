// Package token issues short-lived download tokens: the artifact locator.
// Resolving a storage id yields an opaque token that maps back to the
// artifact for the lifetime of the grant.
package token

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// grant binds a token to an artifact until it expires.
type grant struct {
	artifactID string
	expiresAt  time.Time
}

// Issuer hands out expiring download tokens. Issuing is idempotent in
// effect and safely retryable: every call mints a fresh token, and expired
// tokens simply stop resolving.
type Issuer struct {
	mu     sync.Mutex
	ttl    time.Duration
	grants map[string]grant
	now    func() time.Time
}

// NewIssuer creates an Issuer whose tokens live for ttl.
func NewIssuer(ttl time.Duration) *Issuer {
	return &Issuer{
		ttl:    ttl,
		grants: make(map[string]grant),
		now:    time.Now,
	}
}

// Issue mints a token for the given artifact and returns it together with
// its expiry time.
func (i *Issuer) Issue(artifactID string) (string, time.Time) {
	i.mu.Lock()
	defer i.mu.Unlock()
	tok := uuid.New().String()
	exp := i.now().Add(i.ttl)
	i.grants[tok] = grant{artifactID: artifactID, expiresAt: exp}
	return tok, exp
}

// Lookup resolves a token to its artifact id. Expired or unknown tokens
// return false; expired grants are dropped on sight.
func (i *Issuer) Lookup(tok string) (string, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	g, ok := i.grants[tok]
	if !ok {
		return "", false
	}
	if !i.now().Before(g.expiresAt) {
		delete(i.grants, tok)
		return "", false
	}
	return g.artifactID, true
}

// Purge drops all expired grants and returns how many were removed.
func (i *Issuer) Purge() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	now := i.now()
	n := 0
	for tok, g := range i.grants {
		if !now.Before(g.expiresAt) {
			delete(i.grants, tok)
			n++
		}
	}
	return n
}

package token

import (
	"testing"
	"time"
)

func TestIssueAndLookup(t *testing.T) {
	i := NewIssuer(time.Minute)

	tok, exp := i.Issue("art-1")
	if tok == "" {
		t.Fatal("empty token")
	}
	if !exp.After(time.Now()) {
		t.Errorf("expiry %v is not in the future", exp)
	}

	id, ok := i.Lookup(tok)
	if !ok || id != "art-1" {
		t.Errorf("Lookup = %q, %v, want art-1, true", id, ok)
	}

	if _, ok := i.Lookup("unknown"); ok {
		t.Error("unknown token should not resolve")
	}
}

func TestIssue_FreshTokenPerCall(t *testing.T) {
	i := NewIssuer(time.Minute)
	a, _ := i.Issue("art-1")
	b, _ := i.Issue("art-1")
	if a == b {
		t.Error("each Issue call should mint a fresh token")
	}
	// Both remain valid.
	if _, ok := i.Lookup(a); !ok {
		t.Error("first token should still resolve")
	}
	if _, ok := i.Lookup(b); !ok {
		t.Error("second token should still resolve")
	}
}

func TestLookup_Expired(t *testing.T) {
	i := NewIssuer(time.Minute)
	now := time.Now()
	i.now = func() time.Time { return now }

	tok, _ := i.Issue("art-1")

	// Advance past the TTL.
	i.now = func() time.Time { return now.Add(2 * time.Minute) }
	if _, ok := i.Lookup(tok); ok {
		t.Error("expired token should not resolve")
	}
}

func TestPurge(t *testing.T) {
	i := NewIssuer(time.Minute)
	now := time.Now()
	i.now = func() time.Time { return now }

	i.Issue("art-1")
	i.Issue("art-2")
	fresh, _ := i.Issue("art-3")

	// Expire the first two by issuing them earlier.
	i.now = func() time.Time { return now.Add(30 * time.Second) }
	i.grants[fresh] = grant{artifactID: "art-3", expiresAt: now.Add(5 * time.Minute)}

	i.now = func() time.Time { return now.Add(2 * time.Minute) }
	if n := i.Purge(); n != 2 {
		t.Errorf("Purge = %d, want 2", n)
	}
	if _, ok := i.Lookup(fresh); !ok {
		t.Error("fresh token should survive purge")
	}
}

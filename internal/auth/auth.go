// Package auth resolves the principal behind a request. Credentials
// come in two forms: a browser session cookie or a bearer API key. The
// resolver tries an ordered list of verifiers and stops at the first
// match; every verification failure collapses to "unauthenticated" so
// the HTTP layer maps it uniformly to 401.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"

	"github.com/valyala/fasthttp"
)

// Principal kinds.
const (
	KindSession = "SESSION"
	KindAPIKey  = "API_KEY"
)

// Principal is the resolved identity making a request. Never persisted
// by this package; it only mirrors the backing user row.
type Principal struct {
	UserID      uint
	Kind        string
	DisplayName string
	Role        string
}

// Verifier resolves one credential form. A verifier returns (nil, nil)
// when its credential is absent or invalid; errors are reserved for
// infrastructure failures, which the resolver also treats as a miss.
type Verifier interface {
	Resolve(ctx *fasthttp.RequestCtx) (*Principal, error)
}

// Resolver tries verifiers in priority order. Session comes before
// bearer because browser clients may carry a stale Authorization
// header alongside a live session.
type Resolver struct {
	verifiers []Verifier
}

func NewResolver(verifiers ...Verifier) *Resolver {
	return &Resolver{verifiers: verifiers}
}

// Resolve returns the first principal any verifier produces, or nil if
// every verifier misses. Safe to call on every request; resolution has
// no side effects beyond the underlying lookups.
func (r *Resolver) Resolve(ctx *fasthttp.RequestCtx) *Principal {
	for _, v := range r.verifiers {
		p, err := v.Resolve(ctx)
		if err != nil {
			continue
		}
		if p != nil {
			return p
		}
	}
	return nil
}

// HashToken returns the hex SHA-256 of a raw key or session token,
// matching what the stores persist. Comparison is always hash against
// hash; raw secrets are never stored.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// GenerateToken creates a URL-safe 256-bit random token and its hash.
// Used for both API keys and session tokens; the raw value goes to the
// client, the hash to the database.
func GenerateToken(prefix string) (raw, hash string, err error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", err
	}
	raw = prefix + base64.URLEncoding.EncodeToString(b)
	return raw, HashToken(raw), nil
}

// Package vault maps internal sequential identifiers to externally safe
// opaque tokens. Every business object id crossing the trust boundary goes
// through this indirection: internal ULIDs embed a timestamp, tokens must not.
package vault

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound = errors.New("vault: not found")
	ErrIssue    = errors.New("vault: token issuance failed")
)

// tokenBytes yields 32-character base64url tokens. Collisions at this size
// are vanishingly rare; the store's uniqueness guard catches them anyway.
const tokenBytes = 24

const issueAttempts = 3

// Entry is one write-once mapping. Entries are never deleted: the mapping is
// part of the regulatory audit trail.
type Entry struct {
	InternalID string
	Token      string
	CreatedAt  time.Time
}

// Store persists vault entries. Save must refuse a duplicate token.
type Store interface {
	Save(ctx context.Context, e Entry) error
	FindByToken(ctx context.Context, token string) (Entry, error)
}

// Vault issues and resolves opaque tokens.
type Vault struct {
	store Store
	now   func() time.Time
	// rand is swappable for failure-injection tests.
	rand func(b []byte) (int, error)
}

// Option configures Vault behavior.
type Option func(*Vault)

// WithClock overrides the time source.
func WithClock(fn func() time.Time) Option {
	return func(v *Vault) {
		if fn != nil {
			v.now = fn
		}
	}
}

// WithRand overrides the entropy source (tests only).
func WithRand(fn func(b []byte) (int, error)) Option {
	return func(v *Vault) {
		if fn != nil {
			v.rand = fn
		}
	}
}

// New constructs a Vault over the given store.
func New(store Store, opts ...Option) *Vault {
	v := &Vault{
		store: store,
		now:   time.Now,
		rand:  rand.Read,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Issue creates and persists a fresh opaque token for the internal id. The
// token carries no information about the id's ordinal value or object type.
// Issuance failure is fatal for the calling flow: the caller must report a
// technical error rather than expose the unresolved id.
func (v *Vault) Issue(ctx context.Context, internalID string) (string, error) {
	if internalID == "" {
		return "", fmt.Errorf("%w: empty internal id", ErrIssue)
	}
	for attempt := 0; attempt < issueAttempts; attempt++ {
		buf := make([]byte, tokenBytes)
		if _, err := v.rand(buf); err != nil {
			return "", fmt.Errorf("%w: %v", ErrIssue, err)
		}
		token := base64.RawURLEncoding.EncodeToString(buf)
		err := v.store.Save(ctx, Entry{
			InternalID: internalID,
			Token:      token,
			CreatedAt:  v.now().UTC(),
		})
		if err == nil {
			return token, nil
		}
		if !errors.Is(err, ErrDuplicateToken) {
			return "", fmt.Errorf("%w: %v", ErrIssue, err)
		}
	}
	return "", fmt.Errorf("%w: token space exhausted", ErrIssue)
}

// Resolve maps a token back to its internal id. Fails closed: malformed or
// unknown tokens get ErrNotFound, never a wrong id.
func (v *Vault) Resolve(ctx context.Context, token string) (string, error) {
	if !wellFormed(token) {
		return "", ErrNotFound
	}
	e, err := v.store.FindByToken(ctx, token)
	if err != nil {
		return "", ErrNotFound
	}
	return e.InternalID, nil
}

func wellFormed(token string) bool {
	if len(token) != base64.RawURLEncoding.EncodedLen(tokenBytes) {
		return false
	}
	_, err := base64.RawURLEncoding.DecodeString(token)
	return err == nil
}

// Package session owns the server-side session records that correlate
// browser cookies with authentication state. The HTTP layer only ever holds
// the opaque session ID; the records themselves live behind a Store.
package session

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"authgate/internal/auth"
)

// Session is the server-side record for one browser. A session without an
// Identity is anonymous; one with an Identity is authenticated.
type Session struct {
	// ID is the opaque cookie value. It never leaves the process except
	// inside the Set-Cookie header.
	ID string

	// RecordID identifies the stored record independently of the secret ID,
	// for logs and persistent backends.
	RecordID uuid.UUID

	Identity *auth.Identity

	// PendingState carries the CSRF state token between issuing the provider
	// redirect and receiving the callback. It is single-use and expires on
	// its own short clock.
	PendingState       string
	PendingStateExpiry time.Time

	CreatedAt time.Time
	ExpiresAt time.Time
}

// Authenticated reports whether the session carries an identity.
func (s *Session) Authenticated() bool {
	return s != nil && s.Identity != nil
}

// StatePending reports whether the session holds a still-valid CSRF state.
func (s *Session) StatePending(now time.Time) bool {
	return s != nil && s.PendingState != "" && now.Before(s.PendingStateExpiry)
}

// RequireAuth is the route-guard decision: it admits exactly the sessions
// that carry an identity. It reads the session and nothing else.
func RequireAuth(s *Session) (*auth.Identity, bool) {
	if s == nil || s.Identity == nil {
		return nil, false
	}
	return s.Identity, true
}

// Store abstracts session persistence. Implementations must serialize
// concurrent Saves for the same ID to last-writer-wins; operations on
// different IDs are independent.
type Store interface {
	// Create stores a fresh anonymous session under a newly generated
	// unguessable ID and returns it.
	Create(ctx context.Context) (*Session, error)

	// Load returns the session for id, or nil (with a nil error) when the id
	// is unknown or expired. A non-nil error means the backend failed and
	// must never be treated as "no session".
	Load(ctx context.Context, id string) (*Session, error)

	// Save overwrites the stored record and slides ExpiresAt forward by the
	// store's TTL, mutating s to match.
	Save(ctx context.Context, s *Session) error

	// Destroy removes the record. Destroying an absent session is a no-op.
	Destroy(ctx context.Context, id string) error
}

// GenerateID generates a cryptographically secure session ID with 256 bits
// of entropy.
func GenerateID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("session: generate id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// hashID derives the at-rest key for a session ID so a leaked backend dump
// does not yield usable cookies. With a secret the derivation is keyed.
func hashID(secret, id string) string {
	if secret == "" {
		sum := sha256.Sum256([]byte(id))
		return hex.EncodeToString(sum[:])
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(id))
	return hex.EncodeToString(mac.Sum(nil))
}

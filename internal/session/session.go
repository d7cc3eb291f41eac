// Package session supplies the identity layer: who the current user is and
// whether the auth backend has answered yet. The state graph derives its
// needs-login cell from this; the history store receives the user id on
// every call and refuses to persist for anonymous sessions.
package session

import (
	"context"
	"log/slog"
	"strings"
)

// Provider resolves the current session.
type Provider interface {
	// CurrentUser returns the authenticated user id, or "" for anonymous.
	CurrentUser() string
	// Resolved reports whether the auth check has completed. Until it has,
	// a session holding a token is assumed valid.
	Resolved() bool
	// HasToken reports whether the session carries a stored token at all.
	HasToken() bool
}

// ─── Static Provider ──────────────────────────────────────────────────────────

// Static is a provider with a fixed user, for the CLI and tests.
type Static struct {
	UserID string
}

func (s Static) CurrentUser() string { return s.UserID }
func (s Static) Resolved() bool      { return true }
func (s Static) HasToken() bool      { return s.UserID != "" }

// ─── Token Provider ───────────────────────────────────────────────────────────

// Verifier checks a raw token against the auth backend and returns the user
// id it belongs to, or "" when invalid.
type Verifier interface {
	Verify(ctx context.Context, token string) (userID string, err error)
}

// TokenSession resolves a bearer token asynchronously: it immediately
// reports the token as present, and fills in the user once verification
// completes. Verification failure degrades to anonymous rather than error.
type TokenSession struct {
	token    string
	userID   string
	resolved bool
}

// NewTokenSession starts with an unverified token. Call Resolve to check it.
func NewTokenSession(token string) *TokenSession {
	return &TokenSession{token: strings.TrimSpace(token)}
}

func (t *TokenSession) CurrentUser() string { return t.userID }
func (t *TokenSession) Resolved() bool      { return t.resolved }
func (t *TokenSession) HasToken() bool      { return t.token != "" }

// Resolve verifies the token. An error from the verifier is logged and
// treated as "not logged in"; the session still becomes resolved so the
// needs-login gate can settle.
func (t *TokenSession) Resolve(ctx context.Context, v Verifier) {
	defer func() { t.resolved = true }()
	if t.token == "" {
		return
	}
	userID, err := v.Verify(ctx, t.token)
	if err != nil {
		slog.Warn("token verification failed", "err", err)
		return
	}
	t.userID = userID
}

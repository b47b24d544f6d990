package auth

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"

	"sicxe-web/internal/session"
)

// IssueVerifier generates a PKCE code verifier and keeps it in the
// session until the provider calls back.
func (g *StateGuard) IssueVerifier(ctx context.Context, sess *session.Session) (string, error) {
	verifier := oauth2.GenerateVerifier()
	if err := sess.Set(ctx, keyPendingVerifier, verifier); err != nil {
		return "", fmt.Errorf("auth: store verifier: %w", err)
	}
	return verifier, nil
}

// ConsumeVerifier returns and removes the pending PKCE verifier. An empty
// string means none was issued.
func (g *StateGuard) ConsumeVerifier(ctx context.Context, sess *session.Session) (string, error) {
	if _, ok := sess.Get(keyPendingVerifier); !ok {
		return "", nil
	}
	v, _, err := sess.Take(ctx, keyPendingVerifier)
	if err != nil {
		return "", fmt.Errorf("auth: consume verifier: %w", err)
	}
	return v, nil
}

package service

import (
	"errors"
	"testing"

	"github.com/storefront-bridge/internal/constants"
)

const testSessionSecret = "test-secret-key-for-session-tokens-0001"

func TestSessionService_IssueAndVerify(t *testing.T) {
	repo := newCartSessionRepo(t)
	svc := NewSessionService(repo, testSessionSecret, 1, constants.CartModeDrawer)

	token, err := svc.Issue("cart-token-9")
	if err != nil {
		t.Fatalf("issue session failed: %v", err)
	}
	if token.SessionID == "" || token.Token == "" {
		t.Fatalf("incomplete token: %+v", token)
	}
	if token.CartMode != constants.CartModeDrawer {
		t.Fatalf("unexpected cart mode: %s", token.CartMode)
	}

	sessionID, err := svc.Verify(token.Token)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if sessionID != token.SessionID {
		t.Fatalf("expected session %s, got %s", token.SessionID, sessionID)
	}

	session, err := repo.GetBySessionID(sessionID)
	if err != nil || session == nil {
		t.Fatalf("session not persisted: %v", err)
	}
	if session.CartToken != "cart-token-9" {
		t.Fatalf("unexpected cart token: %s", session.CartToken)
	}
}

func TestSessionService_VerifyRejectsGarbage(t *testing.T) {
	svc := NewSessionService(newCartSessionRepo(t), testSessionSecret, 1, constants.CartModeDrawer)

	cases := []string{"", "   ", "not-a-jwt", "a.b.c"}
	for _, tokenString := range cases {
		if _, err := svc.Verify(tokenString); !errors.Is(err, ErrSessionInvalid) {
			t.Fatalf("expected ErrSessionInvalid for %q, got %v", tokenString, err)
		}
	}
}

func TestSessionService_VerifyRejectsForeignSignature(t *testing.T) {
	repo := newCartSessionRepo(t)
	issuer := NewSessionService(repo, testSessionSecret, 1, constants.CartModeDrawer)
	verifier := NewSessionService(repo, "another-secret-key-with-enough-length-1", 1, constants.CartModeDrawer)

	token, err := issuer.Issue("")
	if err != nil {
		t.Fatalf("issue session failed: %v", err)
	}
	if _, err := verifier.Verify(token.Token); !errors.Is(err, ErrSessionInvalid) {
		t.Fatalf("expected ErrSessionInvalid for foreign signature, got %v", err)
	}
}

func TestSessionService_BindCartToken(t *testing.T) {
	repo := newCartSessionRepo(t)
	svc := NewSessionService(repo, testSessionSecret, 1, constants.CartModePage)

	token, err := svc.Issue("")
	if err != nil {
		t.Fatalf("issue session failed: %v", err)
	}
	if err := svc.BindCartToken(token.SessionID, "cart-token-new"); err != nil {
		t.Fatalf("bind cart token failed: %v", err)
	}

	session, err := repo.GetBySessionID(token.SessionID)
	if err != nil || session == nil {
		t.Fatalf("session lookup failed: %v", err)
	}
	if session.CartToken != "cart-token-new" {
		t.Fatalf("expected bound token, got %s", session.CartToken)
	}

	if err := svc.BindCartToken("unknown-session", "x"); !errors.Is(err, ErrSessionInvalid) {
		t.Fatalf("expected ErrSessionInvalid for unknown session, got %v", err)
	}
}

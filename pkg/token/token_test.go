package token

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

func TestIssueAndParse(t *testing.T) {
	m := NewManager("secret", "taskdash", time.Minute)
	raw, expires, err := m.Issue("user-1", "session-1")
	if err != nil {
		t.Fatal(err)
	}
	if time.Until(expires) <= 0 {
		t.Fatal("expected expiry in the future")
	}

	claims, err := m.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != "user-1" || claims.SessionID != "session-1" || claims.Issuer != "taskdash" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParseRejectsForeignTokens(t *testing.T) {
	m := NewManager("secret", "taskdash", time.Minute)

	other := NewManager("other-secret", "taskdash", time.Minute)
	raw, _, _ := other.Issue("user-1", "")
	if _, err := m.Parse(raw); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected invalid signature, got %v", err)
	}

	wrongIssuer := NewManager("secret", "someone-else", time.Minute)
	raw, _, _ = wrongIssuer.Issue("user-1", "")
	if _, err := m.Parse(raw); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected issuer mismatch, got %v", err)
	}

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "user-1"})
	raw, _ = none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if _, err := m.Parse(raw); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected alg none to be rejected, got %v", err)
	}
}

func TestParseRejectsExpired(t *testing.T) {
	m := NewManager("secret", "taskdash", time.Minute)
	m.Now = func() time.Time { return time.Now().Add(-time.Hour) }
	raw, _, _ := m.Issue("user-1", "")

	m.Now = time.Now
	if _, err := m.Parse(raw); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected expired token to fail, got %v", err)
	}
}

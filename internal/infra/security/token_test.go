package security

import (
	"errors"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestTokenManagerRoundTrip(t *testing.T) {
	manager, err := NewTokenManager(testSecret, "b2b-test", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenManager returned error: %v", err)
	}

	token, err := manager.Issue(42, "mango_traders", time.Now())
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	claims, err := manager.Parse(token)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if claims.Username != "mango_traders" {
		t.Fatalf("username = %q", claims.Username)
	}
	if id, err := claims.UserID(); err != nil || id != 42 {
		t.Fatalf("user id = %d, %v", id, err)
	}
	if claims.Issuer != "b2b-test" {
		t.Fatalf("issuer = %q", claims.Issuer)
	}
}

func TestTokenManagerRejectsExpired(t *testing.T) {
	manager, err := NewTokenManager(testSecret, "b2b-test", time.Minute)
	if err != nil {
		t.Fatalf("NewTokenManager returned error: %v", err)
	}

	token, err := manager.Issue(42, "mango_traders", time.Now().Add(-2*time.Minute))
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	if _, err := manager.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestTokenManagerRejectsForeignSignature(t *testing.T) {
	issuer, err := NewTokenManager(testSecret, "b2b-test", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenManager returned error: %v", err)
	}
	verifier, err := NewTokenManager("ffffffffffffffffffffffffffffffff", "b2b-test", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenManager returned error: %v", err)
	}

	token, err := issuer.Issue(42, "mango_traders", time.Now())
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	if _, err := verifier.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestTokenManagerRejectsWrongIssuer(t *testing.T) {
	issuer, err := NewTokenManager(testSecret, "other-service", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenManager returned error: %v", err)
	}
	verifier, err := NewTokenManager(testSecret, "b2b-test", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenManager returned error: %v", err)
	}

	token, err := issuer.Issue(42, "mango_traders", time.Now())
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	if _, err := verifier.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestNewTokenManagerRequiresStrongSecret(t *testing.T) {
	if _, err := NewTokenManager("short", "b2b-test", time.Hour); err == nil {
		t.Fatal("short secret must be rejected")
	}
}

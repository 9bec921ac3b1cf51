package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

func TestTokenIssuer_RoundTrip(t *testing.T) {
	iss := NewTokenIssuer("s3cret", time.Hour)
	tok, err := iss.Issue("u1", "doctor")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if strings.Count(tok, ".") != 2 {
		t.Fatalf("expected compact JWT, got %q", tok)
	}
	c, err := iss.Parse("  " + tok + " ")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if c.UserID != "u1" || c.Role != "doctor" || c.Subject != "u1" {
		t.Fatalf("unexpected claims: %+v", c)
	}
}

func TestTokenIssuer_Rejects(t *testing.T) {
	iss := NewTokenIssuer("s3cret", time.Hour)
	tok, _ := iss.Issue("u1", "patient")

	other := NewTokenIssuer("other", time.Hour)
	if _, err := other.Parse(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("wrong secret: expected ErrInvalidToken, got %v", err)
	}

	// expired
	past := NewTokenIssuer("s3cret", time.Minute)
	past.now = func() time.Time { return time.Now().Add(-time.Hour) }
	old, _ := past.Issue("u1", "patient")
	if _, err := iss.Parse(old); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired: expected ErrInvalidToken, got %v", err)
	}

	// alg none
	unsigned, _ := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: "u1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if _, err := iss.Parse(unsigned); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("alg none: expected ErrInvalidToken, got %v", err)
	}

	// no expiry
	noExp, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{UserID: "u1"}).SignedString([]byte("s3cret"))
	if _, err := iss.Parse(noExp); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("no exp: expected ErrInvalidToken, got %v", err)
	}

	for _, bad := range []string{"", "   ", "a.b.c", "garbage"} {
		if _, err := iss.Parse(bad); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%q: expected ErrInvalidToken, got %v", bad, err)
		}
	}
}

func TestTokenIssuer_NoSecret(t *testing.T) {
	iss := NewTokenIssuer("", 0)
	if _, err := iss.Issue("u", "patient"); !errors.Is(err, ErrNoSecret) {
		t.Fatalf("Issue: expected ErrNoSecret, got %v", err)
	}
	if _, err := iss.Parse("x"); !errors.Is(err, ErrNoSecret) {
		t.Fatalf("Parse: expected ErrNoSecret, got %v", err)
	}
	if iss.ttl != 7*24*time.Hour {
		t.Fatalf("default ttl = %v", iss.ttl)
	}
}

func TestPasswordHashing(t *testing.T) {
	h, err := HashPassword("password123", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if h == "password123" || !strings.HasPrefix(h, "$2") {
		t.Fatalf("unexpected hash %q", h)
	}
	if !CheckPassword(h, "password123") {
		t.Fatalf("expected match")
	}
	if CheckPassword(h, "wrong") {
		t.Fatalf("expected mismatch")
	}
	if CheckPassword("not-a-hash", "password123") {
		t.Fatalf("expected mismatch for invalid hash")
	}

	// out-of-range cost falls back to the default
	h2, err := HashPassword("x", 99)
	if err != nil {
		t.Fatalf("HashPassword fallback: %v", err)
	}
	if c, _ := bcrypt.Cost([]byte(h2)); c != bcrypt.DefaultCost {
		t.Fatalf("cost = %d; want %d", c, bcrypt.DefaultCost)
	}
}

package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/tbourn/go-telehealth-backend/internal/auth"
	"github.com/tbourn/go-telehealth-backend/internal/domain"
)

func TestAuthService_RegisterThenLogin(t *testing.T) {
	db := newServiceDB(t)
	issuer := auth.NewTokenIssuer("test-secret", time.Hour)
	svc := &AuthService{DB: db, Tokens: issuer, BcryptCost: bcrypt.MinCost}
	ctx := context.Background()

	reg, err := svc.Register(ctx, RegisterInput{Name: "Ann", Email: " Ann@Example.com ", Password: "secret1"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if reg.User.Email != "ann@example.com" || reg.User.Role != domain.RolePatient || reg.Token == "" {
		t.Fatalf("unexpected register result: %+v", reg.User)
	}
	claims, err := issuer.Parse(reg.Token)
	if err != nil || claims.UserID != reg.User.ID || claims.Role != domain.RolePatient {
		t.Fatalf("register token unusable: %v %+v", err, claims)
	}

	login, err := svc.Login(ctx, "ANN@example.com", "secret1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	claims, err = issuer.Parse(login.Token)
	if err != nil || claims.UserID != reg.User.ID {
		t.Fatalf("login token unusable: %v %+v", err, claims)
	}

	me, err := svc.Me(ctx, reg.User.ID)
	if err != nil || me.ID != reg.User.ID {
		t.Fatalf("Me: %v %+v", err, me)
	}
	if _, err := svc.Me(ctx, "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("Me(missing) err=%v", err)
	}
}

func TestAuthService_RegisterValidation(t *testing.T) {
	db := newServiceDB(t)
	svc := &AuthService{DB: db, Tokens: stubTokens{}, BcryptCost: bcrypt.MinCost}
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{Name: "Doc", Email: "doc@x.io", Password: "secret1", Role: "doctor"}); err != nil {
		t.Fatalf("doctor register: %v", err)
	}

	cases := []struct {
		name string
		in   RegisterInput
	}{
		{"missing name", RegisterInput{Email: "a@b.io", Password: "secret1"}},
		{"missing email", RegisterInput{Name: "A", Password: "secret1"}},
		{"bad email", RegisterInput{Name: "A", Email: "not-an-email", Password: "secret1"}},
		{"short password", RegisterInput{Name: "A", Email: "a@b.io", Password: "12345"}},
		{"admin role", RegisterInput{Name: "A", Email: "a@b.io", Password: "secret1", Role: "admin"}},
		{"unknown role", RegisterInput{Name: "A", Email: "a@b.io", Password: "secret1", Role: "nurse"}},
		{"email taken", RegisterInput{Name: "B", Email: "DOC@x.io", Password: "secret1"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tc.in)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("want validation error, got %v", err)
			}
		})
	}
}

func TestAuthService_LoginFailures(t *testing.T) {
	db := newServiceDB(t)
	seedUser(t, db, "Pat One", domain.RolePatient) // password secret123
	svc := &AuthService{DB: db, Tokens: stubTokens{}}
	ctx := context.Background()

	for _, tc := range []struct{ email, pw string }{
		{"pat.one@example.test", "wrong"},
		{"nobody@example.test", "secret123"},
		{"", "secret123"},
		{"pat.one@example.test", ""},
	} {
		if _, err := svc.Login(ctx, tc.email, tc.pw); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("Login(%q,%q) err=%v", tc.email, tc.pw, err)
		}
	}

	if res, err := svc.Login(ctx, "pat.one@example.test", "secret123"); err != nil || res.Token == "" {
		t.Fatalf("valid login failed: %v", err)
	}

	boom := errors.New("no secret")
	svc.Tokens = stubTokens{err: boom}
	if _, err := svc.Login(ctx, "pat.one@example.test", "secret123"); !errors.Is(err, boom) {
		t.Fatalf("token error not propagated: %v", err)
	}
}

package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/tbourn/go-telehealth-backend/internal/domain"
	"github.com/tbourn/go-telehealth-backend/internal/services"
)

func TestSeed(t *testing.T) {
	r := newEngine()
	h := New(Deps{Seed: stubSeed(func(context.Context) (*services.AuthResult, error) {
		return &services.AuthResult{Token: "tok", User: &domain.User{Email: services.SeedPatientEmail}}, nil
	})})
	r.POST("/dev/seed", h.Seed)
	if w := doJSON(t, r, http.MethodPost, "/dev/seed", nil); w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}

	r = newEngine()
	h = New(Deps{Seed: stubSeed(func(context.Context) (*services.AuthResult, error) {
		return nil, services.ErrSeedDisabled
	})})
	r.POST("/dev/seed", h.Seed)
	w := doJSON(t, r, http.MethodPost, "/dev/seed", nil)
	if w.Code != http.StatusForbidden || decodeErr(t, w).Message != "Not allowed in production" {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
}

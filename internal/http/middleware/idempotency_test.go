package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestHelpers_GetIdempotencyKey_IsReplay(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	if k, ok := GetIdempotencyKey(c); k != "" || ok {
		t.Fatalf("expected empty key when not set")
	}
	if IsReplay(c) {
		t.Fatalf("expected IsReplay=false by default")
	}

	c.Set(ctxKeyIdemKey, 123)
	if _, ok := GetIdempotencyKey(c); ok {
		t.Fatalf("non-string key must read as absent")
	}
	c.Set(ctxKeyIdemReplay, true)
	if !IsReplay(c) {
		t.Fatalf("expected IsReplay=true")
	}
	c.Set(ctxKeyIdemReplay, "yes")
	if IsReplay(c) {
		t.Fatalf("expected IsReplay=false for non-bool")
	}
}

func withUser(uid string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if uid != "" {
			c.Set(ContextUserID, uid)
		}
		c.Next()
	}
}

func TestIdempotencyValidator_NoHeader_NoLookupCalled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	called := false
	lookup := func(context.Context, string, string, string, time.Time) (bool, error) {
		called = true
		return false, nil
	}
	r.Use(withUser("u1"), IdempotencyValidator(IdempotencyOptions{Scope: "s"}, lookup))
	r.POST("/x", func(c *gin.Context) {
		if _, ok := GetIdempotencyKey(c); ok {
			t.Fatalf("key should not be present when header missing")
		}
		c.Status(http.StatusNoContent)
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/x", nil))

	if w.Code != http.StatusNoContent || called {
		t.Fatalf("code=%d called=%v", w.Code, called)
	}
}

func TestIdempotencyValidator_InvalidKeys(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := map[string]struct {
		opts IdempotencyOptions
		key  string
	}{
		"too long":      {IdempotencyOptions{MaxLen: 5}, "abcdef"},
		"pattern":       {IdempotencyOptions{Pattern: regexp.MustCompile(`^[0-9]+$`)}, "abc123"},
		"default chars": {IdempotencyOptions{}, "has space"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			r := gin.New()
			r.Use(IdempotencyValidator(tc.opts, nil))
			r.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/x", nil)
			req.Header.Set(HeaderIdempotencyKey, tc.key)
			r.ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", w.Code)
			}
			var body map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid json: %v", err)
			}
			if body["code"] != "bad_idempotency_key" {
				t.Fatalf("unexpected body: %v", body)
			}
		})
	}
}

func TestIdempotencyValidator_Lookup(t *testing.T) {
	gin.SetMode(gin.TestMode)

	run := func(t *testing.T, uid string, lookup IdempotencyLookup, check func(c *gin.Context)) {
		t.Helper()
		r := gin.New()
		r.Use(withUser(uid), IdempotencyValidator(IdempotencyOptions{Scope: "payments.create-intent"}, lookup))
		r.POST("/pay", func(c *gin.Context) {
			check(c)
			c.Status(http.StatusOK)
		})
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/pay", nil)
		req.Header.Set(HeaderIdempotencyKey, "k-9")
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
	}

	t.Run("hit marks replay and bypass", func(t *testing.T) {
		lookup := func(_ context.Context, userID, scope, key string, now time.Time) (bool, error) {
			if userID != "u9" || scope != "payments.create-intent" || key != "k-9" || now.IsZero() {
				t.Fatalf("lookup args: %q %q %q %v", userID, scope, key, now)
			}
			return true, nil
		}
		run(t, "u9", lookup, func(c *gin.Context) {
			if !IsReplay(c) || !IsRateBypass(c) {
				t.Fatalf("expected replay and bypass")
			}
			if k, _ := GetIdempotencyKey(c); k != "k-9" {
				t.Fatalf("key=%q", k)
			}
		})
	})

	t.Run("miss", func(t *testing.T) {
		lookup := func(context.Context, string, string, string, time.Time) (bool, error) { return false, nil }
		run(t, "u9", lookup, func(c *gin.Context) {
			if IsReplay(c) || IsRateBypass(c) {
				t.Fatalf("unexpected replay on miss")
			}
		})
	})

	t.Run("lookup error is a miss", func(t *testing.T) {
		lookup := func(context.Context, string, string, string, time.Time) (bool, error) {
			return false, errors.New("db down")
		}
		run(t, "u9", lookup, func(c *gin.Context) {
			if IsReplay(c) {
				t.Fatalf("error must not mark replay")
			}
		})
	})

	t.Run("anonymous skips lookup", func(t *testing.T) {
		lookup := func(context.Context, string, string, string, time.Time) (bool, error) {
			t.Fatalf("lookup must not run without a user")
			return false, nil
		}
		run(t, "", lookup, func(c *gin.Context) {
			if _, ok := GetIdempotencyKey(c); !ok {
				t.Fatalf("key should still be stashed")
			}
		})
	})
}

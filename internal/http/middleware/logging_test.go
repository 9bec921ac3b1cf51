package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func captureLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })
	log.Logger = zerolog.New(&buf)
	return &buf
}

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/api/appointments/my", func(c *gin.Context) {
		c.String(http.StatusOK, contextString(c, requestIDKey))
	})

	cases := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"generated when absent", "", false},
		{"propagated", "visit-7f3a", true},
		{"oversized is replaced", strings.Repeat("x", maxRequestIDLen+1), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/appointments/my", nil)
			if tc.incoming != "" {
				// header lookup is case-insensitive
				req.Header.Set(strings.ToLower(requestIDHeader), tc.incoming)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			got := w.Header().Get(requestIDHeader)
			if got == "" || got != w.Body.String() {
				t.Fatalf("header %q and context %q must agree", got, w.Body.String())
			}
			if (got == tc.incoming) != tc.keep {
				t.Fatalf("request id = %q, incoming %q, keep=%v", got, tc.incoming, tc.keep)
			}
		})
	}
}

func TestRecovery(t *testing.T) {
	cases := []struct {
		name      string
		handler   gin.HandlerFunc
		wantJSON  bool
		wantCode  int
		wantStart string
	}{
		{
			name:     "before write",
			handler:  func(c *gin.Context) { panic("nil report") },
			wantJSON: true,
			wantCode: http.StatusInternalServerError,
		},
		{
			name: "after write",
			handler: func(c *gin.Context) {
				c.String(http.StatusOK, "partial")
				panic("late")
			},
			wantCode:  http.StatusOK,
			wantStart: "partial",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gin.SetMode(gin.TestMode)
			buf := captureLogger(t)

			r := gin.New()
			r.Use(RequestID(), RedactingLogger(RedactOptions{}), Recovery())
			r.GET("/api/reports/:id", tc.handler)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/reports/r1", nil))

			if w.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d", w.Code, tc.wantCode)
			}
			if tc.wantJSON {
				var body map[string]any
				if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
					t.Fatalf("invalid json body: %v", err)
				}
				if body["code"] != "internal_error" || body["request_id"] != w.Header().Get(requestIDHeader) {
					t.Fatalf("unexpected body: %v", body)
				}
			} else if !strings.HasPrefix(w.Body.String(), tc.wantStart) || strings.Contains(w.Body.String(), "internal_error") {
				t.Fatalf("body after write = %q", w.Body.String())
			}
			if !strings.Contains(buf.String(), "panic recovered") || !strings.Contains(buf.String(), `"stack"`) {
				t.Fatalf("expected panic log with stack, got:\n%s", buf.String())
			}
		})
	}
}

func TestRecovery_AbortHandlerIsRepanicked(t *testing.T) {
	gin.SetMode(gin.TestMode)
	_ = captureLogger(t)

	r := gin.New()
	r.Use(Recovery())
	r.GET("/ws", func(c *gin.Context) { panic(http.ErrAbortHandler) })

	defer func() {
		if rec := recover(); rec != http.ErrAbortHandler {
			t.Fatalf("recovered %v, want http.ErrAbortHandler", rec)
		}
	}()
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ws", nil))
}

func TestLoggerFrom(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("global with request id", func(t *testing.T) {
		buf := captureLogger(t)
		r := gin.New()
		r.Use(RequestID())
		r.GET("/api/doctors", func(c *gin.Context) {
			LoggerFrom(c).Info().Msg("listing")
			c.Status(http.StatusOK)
		})
		req := httptest.NewRequest(http.MethodGet, "/api/doctors", nil)
		req.Header.Set(requestIDHeader, "rid-1")
		r.ServeHTTP(httptest.NewRecorder(), req)
		if !strings.Contains(buf.String(), `"request_id":"rid-1"`) || !strings.Contains(buf.String(), `"message":"listing"`) {
			t.Fatalf("fallback logger missing request id: %s", buf.String())
		}
	})

	t.Run("request scoped", func(t *testing.T) {
		buf := captureLogger(t)
		r := gin.New()
		r.Use(RequestID(), RedactingLogger(RedactOptions{}))
		r.GET("/api/doctors/:id", func(c *gin.Context) {
			LoggerFrom(c).Info().Msg("profile")
			c.Status(http.StatusOK)
		})
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/doctors/d7", nil))
		first := strings.SplitN(buf.String(), "\n", 2)[0]
		if !strings.Contains(first, `"message":"profile"`) || !strings.Contains(first, `"path":"/api/doctors/:id"`) {
			t.Fatalf("scoped logger missing fields: %s", first)
		}
	})
}

func TestTruncate(t *testing.T) {
	for _, tc := range []struct {
		in   string
		max  int
		want string
	}{
		{"hello", 10, "hello"},
		{"abcdefgh", 5, "abcde…"},
		{"abc", 0, "abc"},
	} {
		if got := truncate(tc.in, tc.max); got != tc.want {
			t.Fatalf("truncate(%q, %d) = %q, want %q", tc.in, tc.max, got, tc.want)
		}
	}
}

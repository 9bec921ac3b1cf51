package httpapi

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tbourn/go-telehealth-backend/internal/auth"
	"github.com/tbourn/go-telehealth-backend/internal/config"
	"github.com/tbourn/go-telehealth-backend/internal/domain"
	"github.com/tbourn/go-telehealth-backend/internal/http/handlers"
	"github.com/tbourn/go-telehealth-backend/internal/http/middleware"
	"github.com/tbourn/go-telehealth-backend/internal/services"
)

// --- minimal services behind the routes under test ---

type stubAuth struct{}

func (stubAuth) Register(_ context.Context, in services.RegisterInput) (*services.AuthResult, error) {
	return &services.AuthResult{Token: "t", User: &domain.User{ID: "u1", Email: in.Email}}, nil
}
func (stubAuth) Login(_ context.Context, email, _ string) (*services.AuthResult, error) {
	return &services.AuthResult{Token: "t", User: &domain.User{ID: "u1", Email: email}}, nil
}
func (stubAuth) Me(_ context.Context, id string) (*domain.User, error) {
	return &domain.User{ID: id}, nil
}

type stubDoctors struct{ verified []string }

func (*stubDoctors) List(context.Context, string, int) ([]domain.DoctorProfile, error) {
	return []domain.DoctorProfile{}, nil
}
func (*stubDoctors) Get(_ context.Context, id string) (*domain.DoctorProfile, error) {
	return &domain.DoctorProfile{ID: id}, nil
}
func (*stubDoctors) CreateProfile(_ context.Context, uid string, _ services.ProfileInput) (*domain.DoctorProfile, error) {
	return &domain.DoctorProfile{ID: "p1", UserID: uid}, nil
}
func (s *stubDoctors) Verify(_ context.Context, id string) error {
	s.verified = append(s.verified, id)
	return nil
}
func (*stubDoctors) Rate(_ context.Context, _, id string, _ int, _ string) (*domain.DoctorProfile, error) {
	return &domain.DoctorProfile{ID: id}, nil
}

type stubPayments struct{ intents int }

func (s *stubPayments) CreateIntent(_ context.Context, _ string, in services.CreateIntentInput) (*services.IntentResult, error) {
	s.intents++
	return &services.IntentResult{ClientSecret: "cs", TxID: "tx1", Replayed: s.intents > 1 && in.IdempotencyKey != ""}, nil
}
func (*stubPayments) HandleWebhook(context.Context, []byte, string) (*services.WebhookResult, error) {
	return &services.WebhookResult{EventID: "evt_1", Type: "payment_intent.succeeded", Applied: true}, nil
}
func (*stubPayments) ListTransactions(context.Context, string) ([]domain.Transaction, error) {
	return []domain.Transaction{}, nil
}

// --- helpers ---

const testSecret = "router-test-secret"

func baseConfig() config.Config {
	return config.Config{
		APIBasePath: "/api",
		RateRPS:     100,
		RateBurst:   10,
		Security:    config.SecurityConfig{EnableHSTS: false},
		OTEL:        config.OTELConfig{ServiceName: "test-svc"},
	}
}

func newRouter(t *testing.T, cfg config.Config, hd handlers.Deps, lookup middleware.IdempotencyLookup) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	reg := prometheus.NewRegistry()
	RegisterRoutes(r, Deps{
		Config:      cfg,
		Handlers:    hd,
		Tokens:      auth.NewTokenIssuer(testSecret, time.Hour),
		Idempotency: lookup,
		Registerer:  reg,
		Gatherer:    reg,
	})
	return r
}

func bearer(t *testing.T, uid, role string) string {
	t.Helper()
	tok, err := auth.NewTokenIssuer(testSecret, time.Hour).Issue(uid, role)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return "Bearer " + tok
}

func serve(r *gin.Engine, method, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// --- tests ---

func TestRegisterRoutes_CORSAllowAll_Health_Metrics_Fallbacks(t *testing.T) {
	r := newRouter(t, baseConfig(), handlers.Deps{}, nil)

	w := serve(r, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}
	if w.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("expected no-store on API responses, got %q", w.Header().Get("Cache-Control"))
	}

	w = serve(r, http.MethodGet, "/metrics", "", nil)
	if w.Code != http.StatusOK || w.Body.Len() == 0 {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}

	w = serve(r, http.MethodGet, "/nope", "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}

	w = serve(r, http.MethodPost, "/health", "", nil)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEcho(t *testing.T) {
	cfg := baseConfig()
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"http://example.com"}}
	r := newRouter(t, cfg, handlers.Deps{}, nil)

	w := serve(r, http.MethodGet, "/health", "", map[string]string{"Origin": "http://example.com"})
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}

	w = serve(r, http.MethodGet, "/health", "", map[string]string{"Origin": "http://evil.test"})
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unlisted origin must not be echoed, got %q", got)
	}
}

func TestRegisterRoutes_NilServicesLeaveRoutesUnregistered(t *testing.T) {
	r := newRouter(t, baseConfig(), handlers.Deps{Auth: stubAuth{}}, nil)
	authz := map[string]string{"Authorization": bearer(t, "u1", domain.RolePatient)}

	if w := serve(r, http.MethodGet, "/api/auth/me", "", authz); w.Code != http.StatusOK {
		t.Fatalf("GET /api/auth/me = %d", w.Code)
	}
	if w := serve(r, http.MethodGet, "/api/appointments/my", "", authz); w.Code != http.StatusNotFound {
		t.Fatalf("appointments not wired, expected 404, got %d", w.Code)
	}
	if w := serve(r, http.MethodGet, "/ws", "", authz); w.Code != http.StatusNotFound {
		t.Fatalf("socket not wired, expected 404, got %d", w.Code)
	}
}

func TestRegisterRoutes_AuthAndRoles(t *testing.T) {
	docs := &stubDoctors{}
	r := newRouter(t, baseConfig(), handlers.Deps{Doctors: docs}, nil)

	// public directory
	if w := serve(r, http.MethodGet, "/api/doctors", "", nil); w.Code != http.StatusOK {
		t.Fatalf("GET /api/doctors = %d", w.Code)
	}
	if w := serve(r, http.MethodGet, "/api/doctors/abc", "", nil); w.Code != http.StatusOK {
		t.Fatalf("GET /api/doctors/abc = %d", w.Code)
	}

	// verification needs a token...
	if w := serve(r, http.MethodPost, "/api/doctors/verify/p1", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
	// ...and the admin role
	patient := map[string]string{"Authorization": bearer(t, "u1", domain.RolePatient)}
	if w := serve(r, http.MethodPost, "/api/doctors/verify/p1", "", patient); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for patient, got %d", w.Code)
	}
	admin := map[string]string{"Authorization": bearer(t, "a1", domain.RoleAdmin)}
	if w := serve(r, http.MethodPost, "/api/doctors/verify/p1", "", admin); w.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d body=%s", w.Code, w.Body.String())
	}
	if len(docs.verified) != 1 || docs.verified[0] != "p1" {
		t.Fatalf("Verify not reached: %v", docs.verified)
	}

	// static segment wins over :id
	doctor := map[string]string{"Authorization": bearer(t, "d1", domain.RoleDoctor)}
	if w := serve(r, http.MethodPost, "/api/doctors/profile", `{"specialization":"Cardiology"}`, doctor); w.Code != http.StatusCreated {
		t.Fatalf("POST /api/doctors/profile = %d body=%s", w.Code, w.Body.String())
	}
}

func TestRegisterRoutes_RateLimitSkipsWebhook(t *testing.T) {
	cfg := baseConfig()
	cfg.RateRPS = 0.001
	cfg.RateBurst = 1
	r := newRouter(t, cfg, handlers.Deps{Auth: stubAuth{}, Payments: &stubPayments{}}, nil)

	body := `{"email":"a@b.c","password":"x"}`
	if w := serve(r, http.MethodPost, "/api/auth/login", body, nil); w.Code != http.StatusOK {
		t.Fatalf("first login = %d", w.Code)
	}
	w := serve(r, http.MethodPost, "/api/auth/login", body, nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second login expected 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After on 429")
	}

	for i := 0; i < 3; i++ {
		if w := serve(r, http.MethodPost, "/api/payments/webhook", `{}`, nil); w.Code != http.StatusOK {
			t.Fatalf("webhook #%d = %d", i, w.Code)
		}
	}
}

func TestRegisterRoutes_CreateIntentReplayBypassesLimiter(t *testing.T) {
	cfg := baseConfig()
	cfg.RateRPS = 0.001
	cfg.RateBurst = 1

	var scopes []string
	lookup := func(_ context.Context, _, scope, _ string, _ time.Time) (bool, error) {
		scopes = append(scopes, scope)
		return len(scopes) > 1, nil
	}
	r := newRouter(t, cfg, handlers.Deps{Payments: &stubPayments{}}, lookup)

	hdr := map[string]string{
		"Authorization":                 bearer(t, "u1", domain.RolePatient),
		middleware.HeaderIdempotencyKey: "k-1",
	}
	body := `{"amount":30}`

	if w := serve(r, http.MethodPost, "/api/payments/create-intent", body, hdr); w.Code != http.StatusOK {
		t.Fatalf("first create-intent = %d body=%s", w.Code, w.Body.String())
	}
	w := serve(r, http.MethodPost, "/api/payments/create-intent", body, hdr)
	if w.Code != http.StatusOK {
		t.Fatalf("replay should bypass the limiter, got %d", w.Code)
	}
	if w.Header().Get(middleware.HeaderIdempotencyReplayed) != "true" {
		t.Fatalf("expected replay header on second call")
	}
	if len(scopes) != 2 || scopes[0] != services.ScopeCreateIntent {
		t.Fatalf("unexpected lookup scopes: %v", scopes)
	}

	// malformed keys are rejected before the handler
	hdr[middleware.HeaderIdempotencyKey] = "bad key!"
	if w := serve(r, http.MethodPost, "/api/payments/create-intent", body, hdr); w.Code != http.StatusBadRequest {
		t.Fatalf("bad key expected 400, got %d", w.Code)
	}
}

func TestRegisterRoutes_JSONBodyLimit(t *testing.T) {
	r := newRouter(t, baseConfig(), handlers.Deps{Auth: stubAuth{}}, nil)
	big := `{"email":"` + string(bytes.Repeat([]byte("a"), jsonBodyLimit)) + `"}`
	if w := serve(r, http.MethodPost, "/api/auth/login", big, nil); w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", w.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	// "/" and "" should mount at root
	root1 := groupWithPrefix(r, "/")
	root1.GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	root2 := groupWithPrefix(r, "")
	root2.GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })

	// non-root prefix
	api := groupWithPrefix(r, "/api")
	api.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, want := range map[string]string{"/one": "one", "/two": "two", "/api/ping": "pong"} {
		rec := serve(r, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusOK || rec.Body.String() != want {
			t.Fatalf("GET %s got %d %q", path, rec.Code, rec.Body.String())
		}
	}
}

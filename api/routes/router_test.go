package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vrumi/vrumi-backend/internal/checkout"
	"github.com/vrumi/vrumi-backend/internal/entitlements"
	"github.com/vrumi/vrumi-backend/internal/passes"
	"github.com/vrumi/vrumi-backend/internal/ratelimit"
	"github.com/vrumi/vrumi-backend/internal/users"
	pkgAuth "github.com/vrumi/vrumi-backend/pkg/auth"
	"github.com/vrumi/vrumi-backend/pkg/config"
	"github.com/vrumi/vrumi-backend/pkg/enums"
	"github.com/vrumi/vrumi-backend/pkg/logger"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubUsersService struct {
	users.Service
	admins map[uuid.UUID]bool
}

func (s stubUsersService) IsAdmin(_ context.Context, userID uuid.UUID) (bool, error) {
	return s.admins[userID], nil
}

func (s stubUsersService) Profile(_ context.Context, userID uuid.UUID) (*users.ProfileDTO, error) {
	return &users.ProfileDTO{ID: userID, Email: "aluno@vrumi.test"}, nil
}

type stubEvaluator struct {
	granted map[uuid.UUID]bool
}

func (s stubEvaluator) Evaluate(_ context.Context, userID uuid.UUID) (entitlements.Decision, error) {
	state := enums.EntitlementBlocked
	if s.granted[userID] {
		state = enums.EntitlementGranted
	}
	return entitlements.Decision{State: state, CheckedAt: time.Now()}, nil
}

type stubCheckoutService struct{}

func (stubCheckoutService) CreateSession(_ context.Context, input checkout.CreateSessionInput) (*checkout.SessionResult, error) {
	price := decimal.RequireFromString("29.90")
	return &checkout.SessionResult{
		SessionID:      "cs_test",
		URL:            "https://checkout.stripe.test/cs_test",
		PassType:       enums.PassType(input.PassType),
		OriginalPrice:  price,
		DiscountAmount: decimal.Zero,
		Amount:         price,
	}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "dev"},
		JWT: config.JWTConfig{
			Secret: "router-secret",
			Issuer: "https://auth.vrumi.test/auth/v1",
		},
		CORS: config.CORSConfig{AllowedOrigins: []string{"https://vrumi.com.br"}},
		RateLimit: config.RateLimitConfig{
			CheckoutWindow: time.Minute,
			CheckoutLimit:  2,
			RefundWindow:   time.Hour,
			RefundLimit:    3,
			CouponWindow:   time.Minute,
			CouponLimit:    10,
		},
		Entitlements: config.EntitlementsConfig{StreamHeartbeat: time.Second},
	}
}

type testEnv struct {
	cfg     *config.Config
	router  http.Handler
	admin   uuid.UUID
	student uuid.UUID
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	cfg := testConfig()
	admin := uuid.New()
	student := uuid.New()
	router := NewRouter(Dependencies{
		Config:         cfg,
		Logger:         logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Pingers:        nil,
		RateLimitStore: ratelimit.NewMemoryStore(nil),
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "# metrics\n")
		}),
		Users:        stubUsersService{admins: map[uuid.UUID]bool{admin: true}},
		Catalog:      passes.DefaultCatalog(),
		Checkout:     stubCheckoutService{},
		Entitlements: stubEvaluator{granted: map[uuid.UUID]bool{admin: true}},
	})
	return testEnv{cfg: cfg, router: router, admin: admin, student: student}
}

func (e testEnv) token(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(e.cfg.JWT, time.Now(), time.Hour, pkgAuth.AccessTokenPayload{
		UserID: userID,
		Email:  "aluno@vrumi.test",
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func (e testEnv) do(t *testing.T, method, path string, userID uuid.UUID, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if userID != uuid.Nil {
		req.Header.Set("Authorization", "Bearer "+e.token(t, userID))
	}
	resp := httptest.NewRecorder()
	e.router.ServeHTTP(resp, req)
	return resp
}

func TestHealthLive(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/health/live", uuid.Nil, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if resp.Header().Get("X-Request-Id") == "" {
		t.Fatal("expected request id header")
	}
}

func TestHealthReadyWithoutDependencies(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/health/ready", uuid.Nil, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", resp.Code, resp.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/metrics", uuid.Nil, "")
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), "# metrics") {
		t.Fatalf("unexpected metrics response %d %q", resp.Code, resp.Body.String())
	}
}

func TestPassPlansArePublic(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/api/v1/passes/plans", uuid.Nil, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"pass_type":"family_90_days"`) {
		t.Fatalf("expected family plan in %s", resp.Body.String())
	}
}

func TestAuthenticatedRoutesRejectMissingJWT(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/api/v1/me", "/api/v1/entitlements/me", "/api/v1/content/simulados"} {
		resp := env.do(t, http.MethodGet, path, uuid.Nil, "")
		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401 got %d", path, resp.Code)
		}
	}
}

func TestMeWithJWT(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/api/v1/me", env.student, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", resp.Code, resp.Body.String())
	}
	if !strings.Contains(resp.Body.String(), env.student.String()) {
		t.Fatalf("expected caller id in profile, got %s", resp.Body.String())
	}
}

func TestContentIsGatedByEntitlement(t *testing.T) {
	env := newTestEnv(t)

	blocked := env.do(t, http.MethodGet, "/api/v1/content/simulados", env.student, "")
	if blocked.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402 got %d", blocked.Code)
	}
	if !strings.Contains(blocked.Body.String(), `"paywall":true`) {
		t.Fatalf("expected paywall details, got %s", blocked.Body.String())
	}

	granted := env.do(t, http.MethodGet, "/api/v1/content/simulados", env.admin, "")
	if granted.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", granted.Code)
	}
}

func TestAdminGroupRequiresAdminRole(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/admin/v1/coupons", uuid.Nil, "")
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}

	resp = env.do(t, http.MethodDelete, "/api/admin/v1/passes/"+uuid.NewString(), env.student, "")
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin got %d", resp.Code)
	}
}

func TestRefundsRejectNonPost(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/api/v1/connect/refunds", env.student, "")
	if resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 got %d", resp.Code)
	}
	if resp.Header().Get("Allow") != http.MethodPost {
		t.Fatalf("expected Allow header, got %q", resp.Header().Get("Allow"))
	}
}

func TestCheckoutIsRateLimited(t *testing.T) {
	env := newTestEnv(t)
	body := `{"passType":"individual_30_days"}`

	var codes []int
	for i := 0; i < 3; i++ {
		resp := env.do(t, http.MethodPost, "/api/v1/checkout/sessions", env.student, body)
		codes = append(codes, resp.Code)
		if i == 0 && resp.Header().Get("X-RateLimit-Limit") != "2" {
			t.Fatalf("expected limit header 2, got %q", resp.Header().Get("X-RateLimit-Limit"))
		}
	}
	if codes[0] != http.StatusCreated || codes[1] != http.StatusCreated || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status sequence %v", codes)
	}

	other := env.do(t, http.MethodPost, "/api/v1/checkout/sessions", env.admin, body)
	if other.Code != http.StatusCreated {
		t.Fatalf("limits are per caller, got %d for a second user", other.Code)
	}
}

package httpserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"

	"redbead/internal/config"
	"redbead/internal/domain"
	"redbead/internal/pkg/logx"
	"redbead/internal/repository/kv"
	"redbead/internal/service/cartcache"
	"redbead/internal/session"
)

type stubBackend struct {
	mu       sync.Mutex
	profile  *domain.UserProfile
	profErr  error
	cart     *domain.Cart
	cartErr  error
	expires  time.Time
	cartHits int
}

func (s *stubBackend) MergeGuestCart(context.Context, string) (domain.MergeResult, error) {
	return domain.MergeResult{}, nil
}

func (s *stubBackend) FetchCart(context.Context) (*domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cartHits++
	return s.cart, s.cartErr
}

func (s *stubBackend) FetchCheckoutSession(_ context.Context, id string) (*domain.CheckoutSession, error) {
	return &domain.CheckoutSession{ID: id, ExpiresAt: s.expires}, nil
}

func (s *stubBackend) CurrentUserProfile(context.Context) (*domain.UserProfile, error) {
	return s.profile, s.profErr
}

func (s *stubBackend) SignOut(context.Context) error {
	return nil
}

type pingStore struct {
	*kv.Memory
	err error
}

func (p pingStore) Ping(context.Context) error {
	return p.err
}

type testEnv struct {
	router  *gin.Engine
	store   *kv.Memory
	backend *stubBackend
	clock   *clockwork.FakeClock
}

func newTestEnv(t *testing.T, storage kv.Store) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mem := kv.NewMemory()
	if storage == nil {
		storage = mem
	}
	fc := clockwork.NewFakeClock()
	backend := &stubBackend{expires: fc.Now().Add(time.Hour)}
	cfg := config.Config{
		Environment:        "test",
		CheckoutStateTTL:   30 * time.Minute,
		WatchdogInterval:   time.Minute,
		WatchdogWarning:    10 * time.Minute,
		RateLimitPerSecond: 1000,
		RateLimitBurst:     1000,
	}
	router, err := buildRouter(Deps{
		Config:  cfg,
		Storage: storage,
		Carts:   cartcache.New(kv.Scoped(storage, "cache"), fc, time.Minute, logx.Discard()),
		Backend: func(*http.Request) session.Backend { return backend },
		Clock:   fc,
		Logger:  logx.Discard(),
	})
	if err != nil {
		t.Fatalf("build router: %v", err)
	}
	return &testEnv{router: router, store: mem, backend: backend, clock: fc}
}

func (e *testEnv) do(method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodGet, "/healthz", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestReadyz_WithoutPinger(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodGet, "/readyz", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestReadyz_PingFailure(t *testing.T) {
	env := newTestEnv(t, pingStore{Memory: kv.NewMemory(), err: errors.New("down")})

	rec := env.do(http.MethodGet, "/readyz", "")

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestMetricsExposed(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodGet, "/metrics", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "redbead_sessions_active") {
		t.Fatalf("expected session gauge in metrics output")
	}
}

func TestDeviceMiddleware_IssuesCookie(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodGet, "/api/guest-session", "")

	cookie := findCookie(rec, deviceCookie)
	if cookie == nil {
		t.Fatalf("expected %s cookie to be issued", deviceCookie)
	}
	if !cookie.HttpOnly || cookie.MaxAge != deviceCookieMaxAge {
		t.Fatalf("unexpected cookie attributes: %+v", cookie)
	}
}

func TestDeviceMiddleware_KeepsValidCookie(t *testing.T) {
	env := newTestEnv(t, nil)
	device := &http.Cookie{Name: deviceCookie, Value: "8f14e45f-ceea-467f-a0e6-4f1c0d8a3b2e"}

	rec := env.do(http.MethodGet, "/api/guest-session", "", device)

	if findCookie(rec, deviceCookie) != nil {
		t.Fatalf("did not expect a new device cookie")
	}
}

func TestCORS_AllowsConfiguredOrigin(t *testing.T) {
	env := newTestEnv(t, nil)
	req := httptest.NewRequest(http.MethodOptions, "/api/cart", nil)
	req.Header.Set("Origin", "https://shop.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()

	env.router.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://shop.example" {
		t.Fatalf("expected origin to be echoed, got %q", got)
	}
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

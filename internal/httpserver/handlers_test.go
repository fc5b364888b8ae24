package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"redbead/internal/domain"
	"redbead/internal/service/guestsession"
)

var testDevice = &http.Cookie{Name: deviceCookie, Value: "8f14e45f-ceea-467f-a0e6-4f1c0d8a3b2e"}

func TestGuestSession_RoundTrip(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodGet, "/api/guest-session", "", testDevice)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before store, got %d", rec.Code)
	}

	rec = env.do(http.MethodPut, "/api/guest-session", `{"sessionId":"guest-1"}`, testDevice)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d body=%s", rec.Code, rec.Body.String())
	}

	rec = env.do(http.MethodGet, "/api/guest-session", "", testDevice)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"sessionId":"guest-1"`) {
		t.Fatalf("unexpected response %d body=%s", rec.Code, rec.Body.String())
	}

	rec = env.do(http.MethodDelete, "/api/guest-session", "", testDevice)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	expired := findCookie(rec, guestsession.CookieName)
	if expired == nil || !expired.Expires.Equal(time.Unix(0, 0)) {
		t.Fatalf("expected guest cookie to be expired, got %+v", expired)
	}

	rec = env.do(http.MethodGet, "/api/guest-session", "", testDevice)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after clear, got %d", rec.Code)
	}
}

func TestGuestSession_CookieFallback(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodGet, "/api/guest-session", "", testDevice, &http.Cookie{Name: guestsession.CookieName, Value: "from-cookie"})

	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "from-cookie") {
		t.Fatalf("unexpected response %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestGuestSession_ScopedPerDevice(t *testing.T) {
	env := newTestEnv(t, nil)
	other := &http.Cookie{Name: deviceCookie, Value: "0cc175b9-c0f1-4b6a-831c-399e26977266"}

	env.do(http.MethodPut, "/api/guest-session", `{"sessionId":"guest-1"}`, testDevice)
	rec := env.do(http.MethodGet, "/api/guest-session", "", other)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected another device to see nothing, got %d", rec.Code)
	}
}

func TestGuestSession_RejectsEmptyBody(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodPut, "/api/guest-session", `{}`, testDevice)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCheckoutState_PatchGetDelete(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodPatch, "/api/checkout/cs_1/state", `{"shippingAddressId":"A"}`, testDevice)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	rec = env.do(http.MethodPatch, "/api/checkout/cs_1/state", `{"currentStep":2}`, testDevice)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}

	rec = env.do(http.MethodGet, "/api/checkout/cs_1/state", "", testDevice)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got checkoutStateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Step != 2 || got.State == nil || got.State.ShippingAddressID == nil || *got.State.ShippingAddressID != "A" {
		t.Fatalf("unexpected state: %+v", got)
	}

	rec = env.do(http.MethodGet, "/api/checkout/cs_2/state", "", testDevice)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for another session, got %d", rec.Code)
	}

	rec = env.do(http.MethodDelete, "/api/checkout/cs_1/state", "", testDevice)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	rec = env.do(http.MethodGet, "/api/checkout/cs_1/state", "", testDevice)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestCheckoutState_ExpiresAfterTTL(t *testing.T) {
	env := newTestEnv(t, nil)

	env.do(http.MethodPatch, "/api/checkout/cs_1/state", `{"currentStep":2}`, testDevice)
	env.clock.Advance(30*time.Minute + time.Millisecond)

	rec := env.do(http.MethodGet, "/api/checkout/cs_1/state", "", testDevice)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after ttl, got %d", rec.Code)
	}
}

func TestCheckoutState_RejectsInvalidStep(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodPatch, "/api/checkout/cs_1/state", `{"currentStep":0}`, testDevice)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCart_Unauthorized(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodGet, "/api/cart", "", testDevice)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestCart_ServedFromCache(t *testing.T) {
	env := newTestEnv(t, nil)
	env.backend.profile = &domain.UserProfile{ID: "user-1"}
	env.backend.cart = &domain.Cart{ID: "cart-1", Currency: "USD", TotalCents: 1999}

	for i := 0; i < 2; i++ {
		rec := env.do(http.MethodGet, "/api/cart", "", testDevice)
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"cart-1"`) {
			t.Fatalf("unexpected response %d body=%s", rec.Code, rec.Body.String())
		}
	}
	if env.backend.cartHits != 1 {
		t.Fatalf("expected one backend fetch, got %d", env.backend.cartHits)
	}

	if _, err := env.store.Get(context.Background(), "cache:cart:user-1"); err != nil {
		t.Fatalf("expected cached cart: %v", err)
	}
}

func TestCart_UpstreamFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	env.backend.profile = &domain.UserProfile{ID: "user-1"}
	env.backend.cartErr = context.DeadlineExceeded

	rec := env.do(http.MethodGet, "/api/cart", "", testDevice)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
}

func TestCart_ProfileLookupFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	env.backend.profErr = context.DeadlineExceeded

	rec := env.do(http.MethodGet, "/api/cart", "", testDevice)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	if env.backend.cartHits != 0 {
		t.Fatalf("expected no cart fetch, got %d", env.backend.cartHits)
	}
}

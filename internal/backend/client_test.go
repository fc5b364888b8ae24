package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redbead/internal/domain"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, time.Second)
	require.NoError(t, err)
	return c.WithCredentials(Credentials{Cookie: "sid=abc", Authorization: "Bearer tok"})
}

func TestMergeGuestCart_SendsSessionAndCredentials(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/cart/merge", r.URL.Path)
		assert.Equal(t, "sid=abc", r.Header.Get("Cookie"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "guest-1", body["sessionId"])
		_, _ = w.Write([]byte(`{"mergedItemsCount":3}`))
	})

	res, err := c.MergeGuestCart(context.Background(), "guest-1")
	require.NoError(t, err)
	assert.Equal(t, 3, res.MergedItemsCount)
}

func TestFetchCheckoutSession_ParsesExpiry(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/checkout/sessions/cs_1", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"cs_1","status":"open","expiresAt":"2026-10-19T12:00:00Z"}`))
	})

	sess, err := c.FetchCheckoutSession(context.Background(), "cs_1")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC), sess.ExpiresAt.UTC())
}

func TestCurrentUserProfile_UnauthorizedIsNil(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	profile, err := c.CurrentUserProfile(context.Background())
	require.NoError(t, err)
	assert.Nil(t, profile)
}

func TestDo_MapsStatuses(t *testing.T) {
	status := http.StatusNotFound
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte("nope"))
	})

	_, err := c.FetchCart(context.Background())
	require.ErrorIs(t, err, domain.ErrNotFound)

	status = http.StatusBadGateway
	_, err = c.FetchCart(context.Background())
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.Status)
	assert.Equal(t, "nope", statusErr.Body)
}

func TestSignOut_NoContent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/sign-out", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})
	require.NoError(t, c.SignOut(context.Background()))
}

func TestNew_RejectsRelativeURL(t *testing.T) {
	_, err := New("/api", time.Second)
	require.Error(t, err)
}

func TestCredentialsFrom(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Cookie", "sid=abc")
	req.Header.Set("Authorization", "Bearer t")

	creds := CredentialsFrom(req)

	assert.Equal(t, Credentials{Cookie: "sid=abc", Authorization: "Bearer t"}, creds)
}

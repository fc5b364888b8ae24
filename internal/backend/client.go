// Package backend is the HTTP client for the storefront backend API that
// owns carts, checkout sessions and authentication.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"redbead/internal/domain"
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// Credentials are forwarded verbatim to the backend on every call.
type Credentials struct {
	Cookie        string
	Authorization string
}

// CredentialsFrom copies the shopper's credentials off an inbound request.
func CredentialsFrom(r *http.Request) Credentials {
	return Credentials{
		Cookie:        r.Header.Get("Cookie"),
		Authorization: r.Header.Get("Authorization"),
	}
}

// Client talks to the backend on behalf of one shopper.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	creds   Credentials
}

// New builds a Client for baseURL with the given request timeout.
func New(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("backend url %q must be absolute", baseURL)
	}
	return &Client{
		baseURL: u,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// WithCredentials returns a copy of c that forwards creds.
func (c *Client) WithCredentials(creds Credentials) *Client {
	clone := *c
	clone.creds = creds
	return &clone
}

type mergeRequest struct {
	SessionID string `json:"sessionId"`
}

// MergeGuestCart folds the guest cart identified by sessionID into the
// signed-in customer's cart.
func (c *Client) MergeGuestCart(ctx context.Context, sessionID string) (domain.MergeResult, error) {
	var out domain.MergeResult
	err := c.do(ctx, http.MethodPost, "/api/cart/merge", mergeRequest{SessionID: sessionID}, &out)
	return out, err
}

// FetchCart returns the current shopper's cart.
func (c *Client) FetchCart(ctx context.Context) (*domain.Cart, error) {
	var out domain.Cart
	if err := c.do(ctx, http.MethodGet, "/api/cart", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchCheckoutSession returns the remote checkout session.
func (c *Client) FetchCheckoutSession(ctx context.Context, id string) (*domain.CheckoutSession, error) {
	var out domain.CheckoutSession
	if err := c.do(ctx, http.MethodGet, "/api/checkout/sessions/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CurrentUserProfile returns the signed-in user, or nil when the backend
// answers 401.
func (c *Client) CurrentUserProfile(ctx context.Context) (*domain.UserProfile, error) {
	var out domain.UserProfile
	err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &out)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.Status == http.StatusUnauthorized {
			return nil, nil
		}
		return nil, err
	}
	if out.ID == "" {
		return nil, nil
	}
	return &out, nil
}

// SignOut ends the backend session.
func (c *Client) SignOut(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/auth/sign-out", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", path, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.creds.Cookie != "" {
		req.Header.Set("Cookie", c.creds.Cookie)
	}
	if c.creds.Authorization != "" {
		req.Header.Set("Authorization", c.creds.Authorization)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s %s: %w", method, path, domain.ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Method: method, Path: path, Status: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

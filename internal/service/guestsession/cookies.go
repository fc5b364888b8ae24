package guestsession

import (
	"net/http"
	"sync"
	"time"
)

// CookieJar is the read/expire view of the shopper's cookies.
type CookieJar interface {
	Cookie(name string) (string, bool)
	Expire(name string)
}

// HeaderJar serves cookies parsed from a Cookie request header. Expired
// cookies are hidden from later reads and reported to onExpire so the
// caller can tell the browser.
type HeaderJar struct {
	mu       sync.Mutex
	req      *http.Request
	expired  map[string]bool
	onExpire func(name string)
}

func NewHeaderJar(cookieHeader string, onExpire func(name string)) *HeaderJar {
	req := &http.Request{Header: http.Header{}}
	if cookieHeader != "" {
		req.Header.Set("Cookie", cookieHeader)
	}
	return &HeaderJar{req: req, expired: make(map[string]bool), onExpire: onExpire}
}

func (j *HeaderJar) Cookie(name string) (string, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.expired[name] {
		return "", false
	}
	c, err := j.req.Cookie(name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

func (j *HeaderJar) Expire(name string) {
	j.mu.Lock()
	j.expired[name] = true
	onExpire := j.onExpire
	j.mu.Unlock()
	if onExpire != nil {
		onExpire(name)
	}
}

// ExpireWith returns an onExpire hook that writes an epoch-dated
// Set-Cookie header to w.
func ExpireWith(w http.ResponseWriter) func(name string) {
	return func(name string) {
		http.SetCookie(w, &http.Cookie{
			Name:    name,
			Value:   "",
			Path:    "/",
			Expires: time.Unix(0, 0),
			MaxAge:  -1,
		})
	}
}

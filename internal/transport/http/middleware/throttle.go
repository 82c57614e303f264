package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Throttle is a fixed-window per-IP request limiter for one route class.
// The 429 body is deliberately generic: nothing about the backing store or
// window internals reaches the client.
type Throttle struct {
	mu      sync.Mutex
	windows map[string]*hitWindow
	window  time.Duration
	max     int
	bypass  string // exact-match path exempt from limiting; empty disables
}

type hitWindow struct {
	count   int
	resetAt time.Time
}

// NewThrottle creates a limiter allowing max requests per window per client IP.
func NewThrottle(window time.Duration, max int) *Throttle {
	t := &Throttle{
		windows: make(map[string]*hitWindow),
		window:  window,
		max:     max,
	}
	go t.cleanup()
	return t
}

// WithBypass exempts exactly one literal path. Anything else — prefixes,
// traversal tricks, encoded variants — is still limited.
func (t *Throttle) WithBypass(path string) *Throttle {
	t.bypass = path
	return t
}

// Limit is the middleware handler enforcing the fixed window.
func (t *Throttle) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Compare the raw escaped path so encoded or traversal variants of the
		// bypass path are still limited.
		if t.bypass != "" && r.URL.EscapedPath() == t.bypass {
			next.ServeHTTP(w, r)
			return
		}
		if !t.allow(realIP(r)) {
			writeJSONError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (t *Throttle) allow(ip string) bool {
	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	w, ok := t.windows[ip]
	if !ok || now.After(w.resetAt) {
		t.windows[ip] = &hitWindow{count: 1, resetAt: now.Add(t.window)}
		return t.max >= 1
	}
	w.count++
	return w.count <= t.max
}

// cleanup removes expired windows every 5 minutes.
func (t *Throttle) cleanup() {
	for {
		time.Sleep(5 * time.Minute)
		now := time.Now()
		t.mu.Lock()
		for ip, w := range t.windows {
			if now.After(w.resetAt) {
				delete(t.windows, ip)
			}
		}
		t.mu.Unlock()
	}
}

// realIP resolves the client address: X-Forwarded-For first entry, then
// X-Real-Ip, then the connection's remote address.
func realIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.Index(xff, ","); i >= 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	if xr := r.Header.Get("X-Real-Ip"); xr != "" {
		return xr
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

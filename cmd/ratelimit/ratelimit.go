package ratelimit

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nginx-proxxy/hello-server/cmd/config"
)

// Limiter caps the number of requests a single client may make per window
type Limiter struct {
	mu      sync.Mutex
	clients map[string]*history
	limit   int
	window  time.Duration
	expiry  time.Duration
	now     func() time.Time

	// trustProxy keys clients by proxy headers instead of RemoteAddr
	trustProxy bool

	sweepTicker *time.Ticker
	done        chan struct{}
	closeOnce   sync.Once
}

type history struct {
	hits     []time.Time
	lastSeen time.Time
}

// New creates a limiter allowing limit requests per window for each client.
// Clients idle for longer than expiry are forgotten. With trustProxy the
// client is taken from X-Forwarded-For / X-Real-IP, otherwise from RemoteAddr.
func New(limit int, window, expiry time.Duration, trustProxy bool) *Limiter {
	if expiry < window {
		expiry = window
	}

	l := &Limiter{
		clients:     make(map[string]*history),
		limit:       limit,
		window:      window,
		expiry:      expiry,
		now:         time.Now,
		trustProxy:  trustProxy,
		sweepTicker: time.NewTicker(expiry),
		done:        make(chan struct{}),
	}

	go l.sweepLoop()

	return l
}

// FromConfig creates a limiter from the [ratelimit] section, or nil when disabled
func FromConfig(cfg *config.RateLimitConfig) *Limiter {
	if !cfg.Enabled {
		return nil
	}
	return New(cfg.RequestsPerSecond, cfg.Window, cfg.ClientExpiry, cfg.TrustProxyHeaders)
}

// Allow records a request from client and reports whether it fits the window
func (l *Limiter) Allow(client string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	h, ok := l.clients[client]
	if !ok {
		h = &history{}
		l.clients[client] = h
	}
	h.lastSeen = now

	cutoff := now.Add(-l.window)
	kept := h.hits[:0]
	for _, at := range h.hits {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	h.hits = kept

	if len(h.hits) >= l.limit {
		return false
	}

	h.hits = append(h.hits, now)
	return true
}

func (l *Limiter) sweepLoop() {
	for {
		select {
		case <-l.sweepTicker.C:
			l.sweep()
		case <-l.done:
			return
		}
	}
}

// sweep drops clients not seen within the expiry
func (l *Limiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.expiry)
	for client, h := range l.clients {
		if h.lastSeen.Before(cutoff) {
			delete(l.clients, client)
		}
	}
}

func (l *Limiter) tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// Close stops the background sweeper. It is safe to call more than once.
func (l *Limiter) Close() {
	l.closeOnce.Do(func() {
		l.sweepTicker.Stop()
		close(l.done)
	})
}

// Middleware rejects requests over the limit with 429 Too Many Requests
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	retryAfter := strconv.Itoa(int(l.window.Seconds()))
	if l.window < time.Second {
		retryAfter = "1"
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(ClientIP(r, l.trustProxy)) {
			w.Header().Set("Retry-After", retryAfter)
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ClientIP extracts the client address. Proxy headers are consulted only when
// trustProxy is set, since any client can forge them.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if ip := parseFirstIP(r.Header.Get("X-Forwarded-For")); ip != "" {
			return ip
		}

		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(xri) != nil {
			return xri
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// parseFirstIP returns the first entry of a comma-separated list if it is a valid IP
func parseFirstIP(list string) string {
	first, _, _ := strings.Cut(list, ",")
	first = strings.TrimSpace(first)
	if net.ParseIP(first) == nil {
		return ""
	}
	return first
}

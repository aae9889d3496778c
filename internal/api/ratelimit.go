package api

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RequestClass groups admin routes that share a budget.
type RequestClass uint8

const (
	// ClassControl covers clock changes (speed).
	ClassControl RequestClass = iota
	// ClassIntervention covers actions applied to animals: impulse, fear, lasso.
	ClassIntervention
)

func (c RequestClass) String() string {
	switch c {
	case ClassControl:
		return "control"
	case ClassIntervention:
		return "intervention"
	}
	return "unknown"
}

type budgetKey struct {
	client string
	class  RequestClass
}

type window struct {
	used   int
	opened time.Time
}

// RateLimiter meters admin writes per client and request class over a
// fixed window. An operator who has spent the intervention budget can
// still change the clock speed.
type RateLimiter struct {
	mu      sync.Mutex
	limits  map[RequestClass]int
	span    time.Duration
	windows map[budgetKey]*window
	now     func() time.Time
}

// NewRateLimiter gives every class perSpan requests per span.
func NewRateLimiter(perSpan int, span time.Duration) *RateLimiter {
	limits := map[RequestClass]int{
		ClassControl:      perSpan,
		ClassIntervention: perSpan,
	}
	return &RateLimiter{
		limits:  limits,
		span:    span,
		windows: make(map[budgetKey]*window),
		now:     time.Now,
	}
}

// Allow spends one request from client's class budget.
func (rl *RateLimiter) Allow(client string, class RequestClass) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.sweep(now)
	k := budgetKey{client, class}
	w, ok := rl.windows[k]
	if !ok || now.Sub(w.opened) >= rl.span {
		w = &window{opened: now}
		rl.windows[k] = w
	}
	if w.used >= rl.limits[class] {
		return false
	}
	w.used++
	return true
}

// RetryAfter is the whole seconds left in client's window for class.
func (rl *RateLimiter) RetryAfter(client string, class RequestClass) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows[budgetKey{client, class}]
	if !ok {
		return 0
	}
	left := rl.span - rl.now().Sub(w.opened)
	if left <= 0 {
		return 0
	}
	return int(left.Seconds()) + 1
}

// sweep drops windows idle for two spans. Caller holds mu.
func (rl *RateLimiter) sweep(now time.Time) {
	if len(rl.windows) < 256 {
		return
	}
	for k, w := range rl.windows {
		if now.Sub(w.opened) > 2*rl.span {
			delete(rl.windows, k)
		}
	}
}

// clientIP prefers the first X-Forwarded-For hop, then the remote host.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// limited meters writes against class. Reads pass through untouched.
func limited(rl *RateLimiter, class RequestClass, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			next(w, r)
			return
		}
		ip := clientIP(r)
		if !rl.Allow(ip, class) {
			w.Header().Set("Retry-After", strconv.Itoa(rl.RetryAfter(ip, class)))
			http.Error(w, class.String()+" budget spent", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}

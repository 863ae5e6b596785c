package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RealIP returns the first X-Forwarded-For hop, or the host of RemoteAddr.
func RealIP(r *http.Request) string {
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

// Quota is the number of requests a caller may make to one route per window.
type Quota struct {
	Limit  int
	Window time.Duration
}

// PerMinute is a Quota of n requests a minute.
func PerMinute(n int) Quota {
	return Quota{Limit: n, Window: time.Minute}
}

type bucketKey struct {
	route  string
	caller string
}

type bucket struct {
	used    int
	resetAt time.Time
}

// Limiter counts requests in fixed windows, separately for every route and
// caller. Creating a schedule does not eat into the quota for connecting a
// couple.
type Limiter struct {
	mu      sync.Mutex
	buckets map[bucketKey]*bucket
	now     func() time.Time
}

func NewLimiter() *Limiter {
	return &Limiter{
		buckets: make(map[bucketKey]*bucket),
		now:     time.Now,
	}
}

// Take counts one request against q. It returns how many requests are left in
// the current window, when that window resets, and false once q is spent.
func (l *Limiter) Take(route, caller string, q Quota) (remaining int, resetAt time.Time, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	k := bucketKey{route: route, caller: caller}
	b, found := l.buckets[k]
	if !found || !now.Before(b.resetAt) {
		b = &bucket{resetAt: now.Add(q.Window)}
		l.buckets[k] = b
	}
	if b.used >= q.Limit {
		return 0, b.resetAt, false
	}
	b.used++
	return q.Limit - b.used, b.resetAt, true
}

// Sweep drops buckets whose window has passed and returns how many it dropped.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	n := 0
	for k, b := range l.buckets {
		if !now.Before(b.resetAt) {
			delete(l.buckets, k)
			n++
		}
	}
	return n
}

// RunSweeper calls Sweep every interval until ctx is done.
func (l *Limiter) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}

// Limit returns middleware applying q per matched route pattern and caller.
// Rejected requests get 429 with Retry-After set to the seconds left in the
// window.
func (l *Limiter) Limit(q Quota, caller func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := r.Pattern
			if route == "" {
				route = r.Method + " " + r.URL.Path
			}

			remaining, resetAt, ok := l.Take(route, caller(r), q)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(q.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			if !ok {
				wait := math.Ceil(resetAt.Sub(l.now()).Seconds())
				w.Header().Set("Retry-After", strconv.Itoa(max(int(wait), 1)))
				writeError(w, http.StatusTooManyRequests, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

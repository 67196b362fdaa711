// Package ratelimit provides a per-client token bucket limiter with a bounded
// key set and an HTTP middleware built on it.
package ratelimit

import (
	"container/list"
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultMaxKeys bounds the number of tracked clients when no bound is given.
const DefaultMaxKeys = 10000

type entry struct {
	key     string
	limiter *rate.Limiter
}

// Limiter tracks one token bucket per key. When more than maxKeys keys are
// tracked, the least recently used key is evicted.
type Limiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	maxKeys int
	now     func() time.Time
	order   *list.List
	keys    map[string]*list.Element
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// WithMaxKeys bounds the number of tracked keys.
func WithMaxKeys(n int) Option {
	return func(l *Limiter) {
		if n > 0 {
			l.maxKeys = n
		}
	}
}

// New creates a Limiter allowing perMinute requests per key with the given burst.
func New(perMinute, burst int, opts ...Option) *Limiter {
	l := &Limiter{
		limit:   rate.Limit(float64(perMinute) / 60.0),
		burst:   burst,
		maxKeys: DefaultMaxKeys,
		now:     time.Now,
		order:   list.New(),
		keys:    make(map[string]*list.Element),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Allow reports whether one request for key may proceed now.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.get(key).AllowN(l.now(), 1)
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.order.Len()
}

// RetryAfter is the time one token takes to refill.
func (l *Limiter) RetryAfter() time.Duration {
	if l.limit <= 0 {
		return time.Minute
	}
	return time.Duration(float64(time.Second) / float64(l.limit))
}

func (l *Limiter) get(key string) *rate.Limiter {
	if el, ok := l.keys[key]; ok {
		l.order.MoveToFront(el)
		return el.Value.(*entry).limiter
	}
	e := &entry{key: key, limiter: rate.NewLimiter(l.limit, l.burst)}
	l.keys[key] = l.order.PushFront(e)
	for l.order.Len() > l.maxKeys {
		oldest := l.order.Back()
		l.order.Remove(oldest)
		delete(l.keys, oldest.Value.(*entry).key)
	}
	return e.limiter
}

// KeyFunc derives the client key of a request.
type KeyFunc func(r *http.Request) string

// ClientIP keys requests by remote address without the port.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware rejects requests over the limit with 429 and a Retry-After header.
func (l *Limiter) Middleware(keyFn KeyFunc) func(http.Handler) http.Handler {
	if keyFn == nil {
		keyFn = ClientIP
	}
	retryAfter := strconv.Itoa(int(math.Ceil(l.RetryAfter().Seconds())))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFn(r)
			if !l.Allow(key) {
				zap.L().Warn("ratelimit: request rejected",
					zap.String("client", key),
					zap.String("path", r.URL.Path),
				)
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", retryAfter)
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{ //nolint:errcheck
					"step":  "validate",
					"error": "rate limit exceeded",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Package middleware provides the HTTP middleware stack.
package middleware

import (
	"context"
	"fmt"
	"math"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/alumbrados-dev/Concessions-Connection-sub000/config"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/apperr"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/logger"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/response"
)

// Limiter decides whether key may make another request. When it may not,
// retryAfter says how long until it can.
type Limiter interface {
	Allow(ctx context.Context, key string) (ok bool, retryAfter time.Duration, err error)
}

// ─── In-process limiter ───────────────────────────────────────────────────────

type visitor struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiter is a per-key token bucket allowing max requests per window,
// refilled evenly. Idle keys are evicted after one window.
type MemoryLimiter struct {
	mu        sync.Mutex
	every     rate.Limit
	burst     int
	window    time.Duration
	visitors  map[string]*visitor
	lastSweep time.Time
	now       func() time.Time
}

func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		every:    rate.Every(window / time.Duration(max)),
		burst:    max,
		window:   window,
		visitors: make(map[string]*visitor),
		now:      time.Now,
	}
}

func (m *MemoryLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if now.Sub(m.lastSweep) > m.window {
		for k, v := range m.visitors {
			if now.Sub(v.lastSeen) > m.window {
				delete(m.visitors, k)
			}
		}
		m.lastSweep = now
	}

	v, ok := m.visitors[key]
	if !ok {
		v = &visitor{lim: rate.NewLimiter(m.every, m.burst)}
		m.visitors[key] = v
	}
	v.lastSeen = now

	r := v.lim.ReserveN(now, 1)
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return false, d, nil
	}
	return true, 0, nil
}

// ─── Redis limiter ────────────────────────────────────────────────────────────

// RedisLimiter is a fixed-window counter shared across instances.
type RedisLimiter struct {
	rdb    *redis.Client
	prefix string
	max    int64
	window time.Duration
}

func NewRedisLimiter(rdb *redis.Client, name string, max int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, prefix: "ratelimit:" + name + ":", max: int64(max), window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	k := l.prefix + key

	n, err := l.rdb.Incr(ctx, k).Result()
	if err != nil {
		return true, 0, fmt.Errorf("ratelimit: %w", err)
	}
	if n == 1 {
		if err := l.rdb.Expire(ctx, k, l.window).Err(); err != nil {
			return true, 0, fmt.Errorf("ratelimit: %w", err)
		}
	}
	if n <= l.max {
		return true, 0, nil
	}

	wait, err := l.rdb.PTTL(ctx, k).Result()
	if err != nil || wait <= 0 {
		wait = l.window
	}
	return false, wait, nil
}

// NewLimiter returns a Redis limiter when rdb is connected, else an
// in-process one.
func NewLimiter(rdb *redis.Client, name string, max int, window time.Duration) Limiter {
	if rdb != nil {
		return NewRedisLimiter(rdb, name, max, window)
	}
	return NewMemoryLimiter(max, window)
}

// ─── Middleware ───────────────────────────────────────────────────────────────

// RateLimit rejects callers over l's budget with 429, a Retry-After header
// and a retryAfter detail in seconds. Limiter errors fail open.
//
//	middleware.RateLimit(middleware.NewMemoryLimiter(5, 15*time.Minute))
func RateLimit(l Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, wait, err := l.Allow(r.Context(), ClientIP(r))
			if err != nil {
				logger.WithCtx(r.Context()).Warn("rate limiter unavailable", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				secs := int(math.Ceil(wait.Seconds()))
				if secs < 1 {
					secs = 1
				}
				response.Fail(w, apperr.ErrRateLimited.With("retryAfter", secs))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the caller's IP. X-Forwarded-For and X-Real-Ip are only
// honoured when TRUST_PROXY is true.
func ClientIP(r *http.Request) string {
	if config.Get("TRUST_PROXY", "false") == "true" {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			return strings.TrimSpace(first)
		}
		if real := r.Header.Get("X-Real-Ip"); real != "" {
			return real
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

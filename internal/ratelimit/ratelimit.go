// Package ratelimit throttles uploads per principal with a token bucket.
package ratelimit

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/tenteen/tenteen/internal/auth"
)

const idleTTL = 30 * time.Minute

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter hands out one token bucket per key. A zero rate disables limiting.
type Limiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*entry
	now      func() time.Time
}

// New allows perMinute requests per key, refilled evenly. perMinute <= 0
// returns a limiter that never rejects.
func New(perMinute int) *Limiter {
	l := &Limiter{
		limiters: map[string]*entry{},
		now:      time.Now,
	}
	if perMinute > 0 {
		l.limit = rate.Every(time.Minute / time.Duration(perMinute))
		l.burst = perMinute
	}
	return l
}

// Enabled reports whether the limiter rejects anything.
func (l *Limiter) Enabled() bool {
	return l != nil && l.burst > 0
}

// Allow consumes a token for key.
func (l *Limiter) Allow(key string) bool {
	if !l.Enabled() {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	e, ok := l.limiters[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = e
	}
	e.lastSeen = now
	l.evict(now)
	return e.limiter.AllowN(now, 1)
}

func (l *Limiter) evict(now time.Time) {
	for key, e := range l.limiters {
		if now.Sub(e.lastSeen) > idleTTL {
			delete(l.limiters, key)
		}
	}
}

// Middleware rejects requests over the limit with 429. Requests are keyed by
// the authenticated user, falling back to the client IP.
func (l *Limiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !l.Enabled() {
				return next(c)
			}
			key := "ip:" + c.RealIP()
			if p, err := auth.PrincipalFromContext(c); err == nil {
				key = "user:" + p.UserID
			}
			if !l.Allow(key) {
				return echo.NewHTTPError(http.StatusTooManyRequests, "upload rate limit exceeded")
			}
			return next(c)
		}
	}
}

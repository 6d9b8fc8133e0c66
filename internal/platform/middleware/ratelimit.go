package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// RateLimitConfig bounds how many requests one caller may make per window.
// Used for identity validation, where each lookup is comparatively expensive
// and abuse would let a caller brute-force ID numbers.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// DefaultRateLimitConfig allows 30 identity validations per minute per caller.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{Requests: 30, Window: time.Minute}
}

// window is a fixed-window counter for one caller key.
type window struct {
	start time.Time
	count int
}

// WindowLimiter is a process-wide, concurrency-safe fixed-window counter
// store keyed by caller. All state lives behind the mutex; there is no
// unguarded map anywhere in the hot path.
type WindowLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	cfg     RateLimitConfig
	now     func() time.Time
}

func NewWindowLimiter(cfg RateLimitConfig) *WindowLimiter {
	if cfg.Requests <= 0 || cfg.Window <= 0 {
		cfg = DefaultRateLimitConfig()
	}
	return &WindowLimiter{
		windows: make(map[string]*window),
		cfg:     cfg,
		now:     time.Now,
	}
}

// SetClock overrides the limiter clock. Tests only.
func (l *WindowLimiter) SetClock(now func() time.Time) { l.now = now }

// Allow consumes one request slot for key. When the window is exhausted it
// returns false and the time until the window resets.
func (l *WindowLimiter) Allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= l.cfg.Window {
		w = &window{start: now}
		l.windows[key] = w
	}
	if w.count >= l.cfg.Requests {
		return false, w.start.Add(l.cfg.Window).Sub(now)
	}
	w.count++
	return true, 0
}

// RateLimit returns an echo middleware enforcing the limiter per caller IP.
func RateLimit(limiter *WindowLimiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ok, retryAfter := limiter.Allow(c.RealIP())
			if !ok {
				secs := int(retryAfter.Seconds()) + 1
				c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded, retry later")
			}
			return next(c)
		}
	}
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func TestWindowLimiter_AllowsUpToLimit(t *testing.T) {
	l := NewWindowLimiter(RateLimitConfig{Requests: 3, Window: time.Minute})

	for i := 0; i < 3; i++ {
		if ok, _ := l.Allow("1.2.3.4"); !ok {
			t.Fatalf("request %d unexpectedly limited", i)
		}
	}
	ok, retry := l.Allow("1.2.3.4")
	if ok {
		t.Fatal("expected fourth request limited")
	}
	if retry <= 0 || retry > time.Minute {
		t.Errorf("unexpected retry-after %s", retry)
	}
}

func TestWindowLimiter_KeysAreIndependent(t *testing.T) {
	l := NewWindowLimiter(RateLimitConfig{Requests: 1, Window: time.Minute})

	if ok, _ := l.Allow("1.2.3.4"); !ok {
		t.Fatal("first caller limited")
	}
	if ok, _ := l.Allow("5.6.7.8"); !ok {
		t.Fatal("second caller limited by first caller's window")
	}
}

func TestWindowLimiter_WindowResets(t *testing.T) {
	now := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	l := NewWindowLimiter(RateLimitConfig{Requests: 1, Window: time.Minute})
	l.SetClock(func() time.Time { return now })

	l.Allow("1.2.3.4")
	if ok, _ := l.Allow("1.2.3.4"); ok {
		t.Fatal("expected limited within the window")
	}

	now = now.Add(61 * time.Second)
	if ok, _ := l.Allow("1.2.3.4"); !ok {
		t.Fatal("expected fresh window after expiry")
	}
}

func TestWindowLimiter_ZeroConfigFallsBack(t *testing.T) {
	l := NewWindowLimiter(RateLimitConfig{})
	if l.cfg.Requests != 30 || l.cfg.Window != time.Minute {
		t.Errorf("expected default config, got %+v", l.cfg)
	}
}

func TestRateLimit_Middleware(t *testing.T) {
	e := echo.New()
	l := NewWindowLimiter(RateLimitConfig{Requests: 2, Window: time.Minute})
	handler := RateLimit(l)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = "1.2.3.4:1234"
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		err := handler(c)
		if err != nil {
			e.HTTPErrorHandler(err, c)
		}
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := do(); rec.Code != http.StatusOK {
			t.Fatalf("request %d: got %d", i, rec.Code)
		}
	}

	rec := do()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

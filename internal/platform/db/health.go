package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// poolHealth is the payload for /health/db: the liveness verdict plus the
// handful of pool numbers worth watching during a busy clinic morning.
type poolHealth struct {
	Status        string `json:"status"`
	Error         string `json:"error,omitempty"`
	TotalConns    int32  `json:"total_conns"`
	IdleConns     int32  `json:"idle_conns"`
	AcquiredConns int32  `json:"acquired_conns"`
	MaxConns      int32  `json:"max_conns"`
	PingMs        int64  `json:"ping_ms"`
}

func healthReport(total, idle, acquired, max int32, latency time.Duration, pingErr error) poolHealth {
	h := poolHealth{
		Status:        "healthy",
		TotalConns:    total,
		IdleConns:     idle,
		AcquiredConns: acquired,
		MaxConns:      max,
		PingMs:        latency.Milliseconds(),
	}
	if pingErr != nil {
		h.Status = "unhealthy"
		h.Error = pingErr.Error()
	}
	return h
}

// HealthHandler serves the database health endpoint: a bounded ping plus
// current pool statistics, 503 when the ping fails.
func HealthHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		start := time.Now()
		pingErr := pool.Ping(ctx)
		stat := pool.Stat()

		h := healthReport(stat.TotalConns(), stat.IdleConns(), stat.AcquiredConns(),
			stat.MaxConns(), time.Since(start), pingErr)
		if pingErr != nil {
			return c.JSON(http.StatusServiceUnavailable, h)
		}
		return c.JSON(http.StatusOK, h)
	}
}

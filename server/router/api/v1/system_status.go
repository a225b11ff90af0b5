package v1

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/chatrelay/plugin/ai/metrics"
)

const (
	healthGood = "good"
	healthBad  = "bad"

	healthCheckTimeout = 3 * time.Second
)

// StatusResponse is the body of the status route.
type StatusResponse struct {
	ChatService map[string]string     `json:"chat_service"`
	Metrics     *metrics.RelayMetrics `json:"metrics,omitempty"`
}

// Ping reports that the process is reachable.
// GET /api/ping
func (*APIV1Service) Ping(c echo.Context) error {
	return c.String(http.StatusOK, "pong")
}

// Status reports dependency health and turn metrics of the last 24 hours.
// GET /api/status
func (s *APIV1Service) Status(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthCheckTimeout)
	defer cancel()

	names := make([]string, 0, len(s.HealthChecks))
	for name := range s.HealthChecks {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := StatusResponse{ChatService: make(map[string]string, len(names))}
	httpStatus := http.StatusOK
	for _, name := range names {
		if err := s.HealthChecks[name](ctx); err != nil {
			slog.Warn("health check failed", slog.String("dependency", name), slog.String("error", err.Error()))
			resp.ChatService[name] = healthBad
			httpStatus = http.StatusServiceUnavailable
			continue
		}
		resp.ChatService[name] = healthGood
	}

	if s.Metrics != nil {
		now := time.Now()
		stats, err := s.Metrics.GetStats(ctx, metrics.TimeRange{Start: now.Add(-24 * time.Hour), End: now})
		if err != nil {
			slog.Warn("failed to read metrics", slog.String("error", err.Error()))
		} else {
			resp.Metrics = stats
		}
	}

	return c.JSON(httpStatus, resp)
}

package v1

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"

	"github.com/hrygo/chatrelay/internal/profile"
	"github.com/hrygo/chatrelay/plugin/ai/metrics"
	"github.com/hrygo/chatrelay/server/internal/observability"
	"github.com/hrygo/chatrelay/server/middleware"
)

// ChatService runs a chat turn and returns the HTTP status and body.
type ChatService interface {
	Chat(ctx context.Context, name, email, prompt string) (int, string)
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

type APIV1Service struct {
	Profile     *profile.Profile
	ChatService ChatService
	Metrics     metrics.MetricsService
	// HealthChecks are reported by name on the status route.
	HealthChecks map[string]HealthCheck

	limiter *middleware.RateLimiter
}

func NewAPIV1Service(profile *profile.Profile, chatService ChatService, metricsService metrics.MetricsService, healthChecks map[string]HealthCheck) *APIV1Service {
	return &APIV1Service{
		Profile:      profile,
		ChatService:  chatService,
		Metrics:      metricsService,
		HealthChecks: healthChecks,
		limiter:      middleware.NewRateLimiter(profile.RateLimitPerSecond, profile.RateLimitBurst),
	}
}

// RegisterRoutes registers the relay routes under /api.
func (s *APIV1Service) RegisterRoutes(echoServer *echo.Echo) {
	echoServer.Use(echomiddleware.RequestID())
	echoServer.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURIPath:   true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			slog.Info("request",
				slog.String(observability.LogFieldRequestID, v.RequestID),
				slog.String("method", v.Method),
				slog.String(observability.LogFieldRoute, v.URIPath),
				slog.Int("status", v.Status),
				slog.Int64(observability.LogFieldDuration, v.Latency.Milliseconds()))
			return nil
		},
	}))
	echoServer.Use(echomiddleware.Recover())
	echoServer.Use(requestContextMiddleware)

	api := echoServer.Group("/api")

	limited := api.Group("", s.limiter.Middleware(func(c echo.Context) string {
		return c.FormValue(paramEmail)
	}))
	limited.Match([]string{http.MethodGet, http.MethodPost}, "/chat", s.Chat)
	limited.Match([]string{http.MethodGet, http.MethodPost}, "/mock", s.Mock)

	api.GET("/ping", s.Ping)
	api.GET("/status", s.Status)
}

// RateLimiter exposes the limiter so the server can prune idle keys.
func (s *APIV1Service) RateLimiter() *middleware.RateLimiter {
	return s.limiter
}

// requestContextMiddleware attaches a RequestContext carrying the echo request id.
func requestContextMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := c.Response().Header().Get(echo.HeaderXRequestID)
		reqCtx := observability.NewRequestContextWithID(nil, requestID, c.Path())
		ctx := observability.WithRequestContext(c.Request().Context(), reqCtx)
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

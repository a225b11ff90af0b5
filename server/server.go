package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/hrygo/chatrelay/internal/profile"
	"github.com/hrygo/chatrelay/plugin/ai/assistant"
	"github.com/hrygo/chatrelay/plugin/ai/metrics"
	"github.com/hrygo/chatrelay/plugin/ai/timeout"
	"github.com/hrygo/chatrelay/plugin/ai/tools"
	"github.com/hrygo/chatrelay/plugin/events"
	apiv1 "github.com/hrygo/chatrelay/server/router/api/v1"
	"github.com/hrygo/chatrelay/server/service/chat"
	"github.com/hrygo/chatrelay/server/timezone"
	"github.com/hrygo/chatrelay/store"
	"github.com/hrygo/chatrelay/store/cache"
)

const (
	// shutdownTimeout is the grace on top of TurnTimeout for in-flight turns.
	shutdownTimeout = 10 * time.Second

	housekeepingInterval = 10 * time.Minute
	rateLimitIdle        = 30 * time.Minute
)

type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	echoServer *echo.Echo
	apiV1      *apiv1.APIV1Service
	notifier   events.Notifier
	metrics    *metrics.Service
	cache      *cache.Tiered

	// requests tracks in-flight handlers; cancelRequests aborts their contexts.
	requests       sync.WaitGroup
	requestsCtx    context.Context
	cancelRequests context.CancelFunc

	// ready is closed once the listener is bound.
	ready chan struct{}
	addr  net.Addr
}

func NewServer(profile *profile.Profile, store *store.Store) (*Server, error) {
	s := &Server{
		Profile: profile,
		Store:   store,
		ready:   make(chan struct{}),
	}

	echoServer := echo.New()
	echoServer.Debug = profile.IsDev()
	echoServer.HideBanner = true
	echoServer.HidePort = true
	s.requestsCtx, s.cancelRequests = context.WithCancel(context.Background())
	echoServer.Server.BaseContext = func(net.Listener) context.Context {
		return s.requestsCtx
	}
	echoServer.Use(s.trackRequests)
	s.echoServer = echoServer

	assistantClient, err := assistant.NewClient(assistantConfig(profile))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create assistant client")
	}

	notifier, err := events.NewNotifier(events.Config{
		Bus:                profile.EventBus,
		Source:             profile.EventSource,
		Namespace:          profile.EventNamespace,
		PublishTimeout:     timeout.PublishTimeout,
		EventGridEndpoint:  profile.EventGridEndpoint,
		EventGridAccessKey: profile.EventGridAccessKey,
		Redis: events.RedisConfig{
			Addr:     profile.RedisAddr,
			Password: profile.RedisPassword,
			DB:       profile.RedisDB,
			Channel:  profile.RedisChannel,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create event notifier")
	}
	s.notifier = notifier

	s.metrics = metrics.NewService(metrics.DefaultServiceConfig())

	s.cache, err = newLookupCache(profile)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create lookup cache")
	}
	conversations := cache.NewConversationStore(store, s.cache)

	registry, err := tools.NewRegistry(tools.NewReadAlongTool(conversations))
	if err != nil {
		return nil, errors.Wrap(err, "failed to register tools")
	}
	dispatcher := tools.NewDispatcher(registry,
		tools.WithTimeout(profile.ToolTimeout),
		tools.WithMetrics(s.metrics),
	)

	location, err := timezone.ParseTimezone(profile.TimeZone)
	if err != nil {
		slog.Warn("unknown time zone, using UTC", slog.String("error", err.Error()))
	}

	chatService, err := chat.NewService(conversations, assistantClient, dispatcher, notifier, chat.Config{
		AssistantID:     profile.AssistantID(),
		PollInterval:    profile.PollInterval,
		MaxPollInterval: profile.MaxPollInterval,
		TurnTimeout:     profile.TurnTimeout,
		MaxBusyRetries:  profile.MaxBusyRetries,
		Location:        location,
	}, chat.WithMetrics(s.metrics))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create chat service")
	}

	s.apiV1 = apiv1.NewAPIV1Service(profile, chatService, s.metrics, map[string]apiv1.HealthCheck{
		"openai": func(context.Context) error {
			return profile.ValidateAssistant()
		},
		"database": func(ctx context.Context) error {
			return store.GetDriver().GetDB().PingContext(ctx)
		},
	})
	s.apiV1.RegisterRoutes(echoServer)

	slog.Debug("server initialized",
		slog.String("mode", profile.Mode),
		slog.String("assistant_provider", profile.AssistantProvider),
		slog.String("event_bus", profile.EventBus),
		slog.Any("tools", registry.Names()))
	return s, nil
}

func newLookupCache(profile *profile.Profile) (*cache.Tiered, error) {
	var shared cache.Layer
	if profile.CacheRedis {
		redisCache, err := cache.NewRedis(cache.RedisConfig{
			Addr:       profile.RedisAddr,
			Password:   profile.RedisPassword,
			DB:         profile.RedisDB,
			KeyPrefix:  "chatrelay:cache:",
			DefaultTTL: profile.CacheTTL,
		})
		if err != nil {
			return nil, err
		}
		shared = redisCache
	}
	return cache.NewTiered(cache.NewMemory(profile.CacheSize, profile.CacheTTL), shared, profile.CacheTTL), nil
}

func assistantConfig(profile *profile.Profile) *assistant.Config {
	if profile.AssistantProvider == assistant.ProviderAzure {
		return &assistant.Config{
			Provider:   assistant.ProviderAzure,
			APIKey:     profile.AzureOpenAIAPIKey,
			BaseURL:    profile.AzureOpenAIEndpoint,
			APIVersion: profile.AzureOpenAIAPIVersion,
		}
	}
	return &assistant.Config{
		Provider: assistant.ProviderOpenAI,
		APIKey:   profile.OpenAIAPIKey,
		BaseURL:  profile.OpenAIBaseURL,
	}
}

// Handler returns the HTTP handler with all routes registered.
func (s *Server) Handler() http.Handler {
	return s.echoServer
}

// Ready is closed once Start has bound the listener.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr is the bound listen address. Only valid after Ready is closed.
func (s *Server) Addr() net.Addr {
	return s.addr
}

// Start serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", address)
	}
	s.addr = listener.Addr()
	s.echoServer.Listener = listener
	close(s.ready)

	go s.housekeeping(ctx)

	serveDone := make(chan error, 1)
	go func() {
		if err := s.echoServer.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveDone <- err
		}
		close(serveDone)
	}()
	slog.Info("chatrelay server listening", slog.String("address", s.addr.String()))

	select {
	case <-ctx.Done():
	case err := <-serveDone:
		if err != nil {
			return errors.Wrap(err, "server stopped")
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.Profile.TurnTimeout+shutdownTimeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown stops accepting requests and waits for in-flight turns until ctx
// ends. Turns still running then are cancelled and awaited, so the notifier
// and store are only closed once no handler can use them.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("chatrelay server shutting down")

	var firstErr error
	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Warn("cancelling turns still in flight", slog.String("error", err.Error()))
		firstErr = err
	}
	s.cancelRequests()
	s.requests.Wait()

	if err := s.notifier.Close(); err != nil {
		slog.Error("failed to close event notifier", slog.String("error", err.Error()))
		if firstErr == nil {
			firstErr = err
		}
	}
	s.metrics.Close()
	if err := s.cache.Close(); err != nil {
		slog.Error("failed to close cache", slog.String("error", err.Error()))
		if firstErr == nil {
			firstErr = err
		}
	}
	if err := s.Store.Close(); err != nil {
		slog.Error("failed to close store", slog.String("error", err.Error()))
		if firstErr == nil {
			firstErr = err
		}
	}

	slog.Info("chatrelay server stopped")
	return firstErr
}

func (s *Server) trackRequests(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		s.requests.Add(1)
		defer s.requests.Done()
		return next(c)
	}
}

// housekeeping drops idle rate limiters and expired cache entries.
func (s *Server) housekeeping(ctx context.Context) {
	ticker := time.NewTicker(housekeepingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.apiV1.RateLimiter().Prune(rateLimitIdle); n > 0 {
				slog.Debug("pruned idle rate limiters", slog.Int("count", n))
			}
			if n := s.cache.CleanupExpired(); n > 0 {
				slog.Debug("dropped expired cache entries", slog.Int("count", n))
			}
		}
	}
}

package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/chatrelay/plugin/ai/timeout"
)

const (
	// ProviderOpenAI talks to api.openai.com (or a compatible proxy).
	ProviderOpenAI = "openai"
	// ProviderAzure talks to an Azure OpenAI deployment.
	ProviderAzure = "azure"

	// EventBusNone disables event publishing.
	EventBusNone = "none"
	// EventBusEventGrid publishes CloudEvents to an Azure Event Grid topic.
	EventBusEventGrid = "eventgrid"
	// EventBusRedis publishes CloudEvents to a Redis pub/sub channel.
	EventBusRedis = "redis"
)

// Profile is the configuration to start the relay server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory
	Data string
	// DSN points to where chatrelay stores the user thread mapping
	DSN string
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// Version is the current version of server
	Version string

	// Assistant configuration
	AssistantProvider      string // CHATRELAY_ASSISTANT_PROVIDER (default: openai)
	OpenAIAPIKey           string // OPENAI_API_KEY
	OpenAIBaseURL          string // OPENAI_BASE_URL (default: https://api.openai.com/v1)
	OpenAIAssistantID      string // OPENAI_MAIN_ASSISTANT_ID
	AzureOpenAIAPIKey      string // AZURE_OPENAI_API_KEY
	AzureOpenAIEndpoint    string // AZURE_OPENAI_ENDPOINT
	AzureOpenAIAPIVersion  string // AZURE_OPENAI_API_VERSION (default: 2024-05-01-preview)
	AzureOpenAIAssistantID string // AZURE_OPENAI_MAIN_ASSISTANT_ID

	// Event bus configuration
	EventBus           string // CHATRELAY_EVENT_BUS (default: eventgrid if EVENT_GRID_ENDPOINT is set, else none)
	EventGridEndpoint  string // EVENT_GRID_ENDPOINT
	EventGridAccessKey string // EVENT_GRID_ACCESS_KEY
	EventSource        string // EVENT_GRID_APPLICATION_ID (default: chatrelay)
	EventNamespace     string // APP_NAMESPACE
	RedisAddr          string // CHATRELAY_REDIS_ADDR (default: localhost:6379)
	RedisPassword      string // CHATRELAY_REDIS_PASSWORD
	RedisDB            int    // CHATRELAY_REDIS_DB (default: 0)
	RedisChannel       string // CHATRELAY_REDIS_CHANNEL (default: chatrelay:events)

	// Turn orchestration
	PollInterval    time.Duration // CHATRELAY_POLL_INTERVAL (default: 1s)
	MaxPollInterval time.Duration // CHATRELAY_MAX_POLL_INTERVAL (default: 5s)
	TurnTimeout     time.Duration // CHATRELAY_TURN_TIMEOUT (default: 2m)
	ToolTimeout     time.Duration // CHATRELAY_TOOL_TIMEOUT (default: 30s)
	MaxBusyRetries  int           // CHATRELAY_MAX_BUSY_RETRIES (default: 5)
	TimeZone        string        // CHATRELAY_TIMEZONE (default: Europe/Berlin)

	// Lookup cache in front of the store
	CacheTTL   time.Duration // CHATRELAY_CACHE_TTL (default: 10m)
	CacheSize  int           // CHATRELAY_CACHE_SIZE (default: 1000)
	CacheRedis bool          // CHATRELAY_CACHE_REDIS shares the cache through RedisAddr (default: false)

	// HTTP rate limiting per user identity
	RateLimitPerSecond float64 // CHATRELAY_RATE_LIMIT (default: 1)
	RateLimitBurst     int     // CHATRELAY_RATE_LIMIT_BURST (default: 5)
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// AssistantID returns the assistant id of the selected provider.
func (p *Profile) AssistantID() string {
	if p.AssistantProvider == ProviderAzure {
		return p.AzureOpenAIAssistantID
	}
	return p.OpenAIAssistantID
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables.
// Supports both CHATRELAY_* (new) and the bare names used by the function app deployment.
func (p *Profile) FromEnv() {
	getEnvWithFallback := func(newKey, legacyKey string) string {
		if val := os.Getenv(newKey); val != "" {
			return val
		}
		return os.Getenv(legacyKey)
	}

	getEnvWithDefault := func(newKey, legacyKey, defaultValue string) string {
		if val := getEnvWithFallback(newKey, legacyKey); val != "" {
			return val
		}
		return defaultValue
	}

	getDurationEnv := func(key string, defaultValue time.Duration) time.Duration {
		raw := os.Getenv(key)
		if raw == "" {
			return defaultValue
		}
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			slog.Warn("invalid duration, using default", slog.String("key", key), slog.String("value", raw))
			return defaultValue
		}
		return d
	}

	getIntEnv := func(key string, defaultValue int) int {
		raw := os.Getenv(key)
		if raw == "" {
			return defaultValue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			slog.Warn("invalid integer, using default", slog.String("key", key), slog.String("value", raw))
			return defaultValue
		}
		return n
	}

	p.AssistantProvider = strings.ToLower(getEnvOrDefault("CHATRELAY_ASSISTANT_PROVIDER", ProviderOpenAI))
	p.OpenAIAPIKey = getEnvWithFallback("CHATRELAY_OPENAI_API_KEY", "OPENAI_API_KEY")
	p.OpenAIBaseURL = getEnvWithDefault("CHATRELAY_OPENAI_BASE_URL", "OPENAI_BASE_URL", "https://api.openai.com/v1")
	p.OpenAIAssistantID = getEnvWithFallback("CHATRELAY_OPENAI_ASSISTANT_ID", "OPENAI_MAIN_ASSISTANT_ID")
	p.AzureOpenAIAPIKey = getEnvWithFallback("CHATRELAY_AZURE_OPENAI_API_KEY", "AZURE_OPENAI_API_KEY")
	p.AzureOpenAIEndpoint = getEnvWithFallback("CHATRELAY_AZURE_OPENAI_ENDPOINT", "AZURE_OPENAI_ENDPOINT")
	p.AzureOpenAIAPIVersion = getEnvWithDefault("CHATRELAY_AZURE_OPENAI_API_VERSION", "AZURE_OPENAI_API_VERSION", "2024-05-01-preview")
	p.AzureOpenAIAssistantID = getEnvWithFallback("CHATRELAY_AZURE_OPENAI_ASSISTANT_ID", "AZURE_OPENAI_MAIN_ASSISTANT_ID")

	p.EventGridEndpoint = getEnvWithFallback("CHATRELAY_EVENT_GRID_ENDPOINT", "EVENT_GRID_ENDPOINT")
	p.EventGridAccessKey = getEnvWithFallback("CHATRELAY_EVENT_GRID_ACCESS_KEY", "EVENT_GRID_ACCESS_KEY")
	p.EventSource = getEnvWithDefault("CHATRELAY_EVENT_SOURCE", "EVENT_GRID_APPLICATION_ID", "chatrelay")
	p.EventNamespace = getEnvWithFallback("CHATRELAY_EVENT_NAMESPACE", "APP_NAMESPACE")
	p.RedisAddr = getEnvOrDefault("CHATRELAY_REDIS_ADDR", "localhost:6379")
	p.RedisPassword = os.Getenv("CHATRELAY_REDIS_PASSWORD")
	p.RedisDB = getIntEnv("CHATRELAY_REDIS_DB", 0)
	p.RedisChannel = getEnvOrDefault("CHATRELAY_REDIS_CHANNEL", "chatrelay:events")

	defaultBus := EventBusNone
	if p.EventGridEndpoint != "" {
		defaultBus = EventBusEventGrid
	}
	p.EventBus = strings.ToLower(getEnvOrDefault("CHATRELAY_EVENT_BUS", defaultBus))

	p.PollInterval = getDurationEnv("CHATRELAY_POLL_INTERVAL", timeout.PollInterval)
	p.MaxPollInterval = getDurationEnv("CHATRELAY_MAX_POLL_INTERVAL", timeout.MaxPollInterval)
	p.TurnTimeout = getDurationEnv("CHATRELAY_TURN_TIMEOUT", timeout.TurnTimeout)
	p.ToolTimeout = getDurationEnv("CHATRELAY_TOOL_TIMEOUT", timeout.ToolExecutionTimeout)
	p.MaxBusyRetries = getIntEnv("CHATRELAY_MAX_BUSY_RETRIES", timeout.MaxBusyThreadRetries)
	p.TimeZone = getEnvOrDefault("CHATRELAY_TIMEZONE", "Europe/Berlin")

	p.CacheTTL = getDurationEnv("CHATRELAY_CACHE_TTL", 10*time.Minute)
	p.CacheSize = getIntEnv("CHATRELAY_CACHE_SIZE", 1000)
	p.CacheRedis, _ = strconv.ParseBool(os.Getenv("CHATRELAY_CACHE_REDIS"))

	p.RateLimitPerSecond = 1
	if raw := os.Getenv("CHATRELAY_RATE_LIMIT"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil && v > 0 {
			p.RateLimitPerSecond = v
		}
	}
	p.RateLimitBurst = getIntEnv("CHATRELAY_RATE_LIMIT_BURST", 5)
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

// ValidateAssistant checks that the selected assistant provider is fully configured.
func (p *Profile) ValidateAssistant() error {
	switch p.AssistantProvider {
	case ProviderOpenAI:
		if p.OpenAIAPIKey == "" {
			return errors.New("OPENAI_API_KEY is not set")
		}
	case ProviderAzure:
		if p.AzureOpenAIAPIKey == "" || p.AzureOpenAIEndpoint == "" {
			return errors.New("AZURE_OPENAI_API_KEY or AZURE_OPENAI_ENDPOINT is not set")
		}
	default:
		return errors.Errorf("unknown assistant provider: %s", p.AssistantProvider)
	}
	if p.AssistantID() == "" {
		return errors.Errorf("no assistant id configured for provider %s", p.AssistantProvider)
	}
	return nil
}

// ValidateEventBus checks that the selected event bus has its connection settings.
func (p *Profile) ValidateEventBus() error {
	switch p.EventBus {
	case EventBusNone, "":
		return nil
	case EventBusEventGrid:
		if p.EventGridEndpoint == "" || p.EventGridAccessKey == "" {
			return errors.New("EVENT_GRID_ENDPOINT or EVENT_GRID_ACCESS_KEY is not set")
		}
	case EventBusRedis:
		if p.RedisAddr == "" {
			return errors.New("CHATRELAY_REDIS_ADDR is not set")
		}
	default:
		return errors.Errorf("unknown event bus: %s", p.EventBus)
	}
	return nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "chatrelay")
			if _, err := os.Stat(p.Data); os.IsNotExist(err) {
				if err := os.MkdirAll(p.Data, 0770); err != nil {
					slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
					return err
				}
			}
		} else {
			p.Data = "/var/opt/chatrelay"
		}
	}

	if p.Driver == "sqlite" && p.DSN == "" {
		dataDir, err := checkDataDir(p.Data)
		if err != nil {
			slog.Error("failed to check dsn", slog.String("data", dataDir), slog.String("error", err.Error()))
			return err
		}
		p.Data = dataDir
		dbFile := fmt.Sprintf("chatrelay_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}

	if err := p.ValidateAssistant(); err != nil {
		return errors.Wrap(err, "invalid assistant configuration")
	}
	if err := p.ValidateEventBus(); err != nil {
		return errors.Wrap(err, "invalid event bus configuration")
	}
	if p.MaxPollInterval < p.PollInterval {
		p.MaxPollInterval = p.PollInterval
	}
	return nil
}

package events

import (
	"time"

	"github.com/pkg/errors"
)

// Supported buses.
const (
	BusNone      = "none"
	BusEventGrid = "eventgrid"
	BusRedis     = "redis"
)

// Config selects and configures the event bus.
type Config struct {
	Bus            string
	Source         string
	Namespace      string
	PublishTimeout time.Duration

	EventGridEndpoint  string
	EventGridAccessKey string

	Redis RedisConfig
}

// NewNotifier creates the notifier for the configured bus.
func NewNotifier(cfg Config) (Notifier, error) {
	var (
		publisher Publisher
		err       error
	)
	switch cfg.Bus {
	case BusNone, "":
		return NoopNotifier{}, nil
	case BusEventGrid:
		publisher, err = NewEventGridPublisher(cfg.EventGridEndpoint, cfg.EventGridAccessKey, nil)
	case BusRedis:
		publisher, err = NewRedisPublisher(cfg.Redis)
	default:
		return nil, errors.Errorf("unsupported event bus: %s", cfg.Bus)
	}
	if err != nil {
		return nil, err
	}
	return NewAsyncNotifier(publisher, NewEventFactory(cfg.Source, cfg.Namespace), cfg.PublishTimeout), nil
}

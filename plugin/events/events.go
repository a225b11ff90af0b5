// Package events mirrors conversation activity to an external event bus as CloudEvents.
package events

import (
	"context"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Event types, prefixed with the configured namespace on the bus.
const (
	TypeUserRegistered  = "user.registered"
	TypeUserPrompt      = "user.prompt"
	TypeBackendPrompt   = "backend.prompt"
	TypeBackendResponse = "backend.response"
	TypeUserResponse    = "user.response"
)

// Notifier publishes conversation events. Publishing is best-effort: failures
// are logged and never returned to the caller.
type Notifier interface {
	Publish(ctx context.Context, eventType string, payload map[string]any)
	// Close waits for in-flight publishes and releases the underlying transport.
	Close() error
}

// Publisher delivers a single event synchronously to a bus.
type Publisher interface {
	Send(ctx context.Context, event cloudevents.Event) error
	Close() error
}

// EventFactory builds CloudEvents for one application.
type EventFactory struct {
	// Source is the application id reported as the event source.
	Source string
	// Namespace is prepended to every event type, e.g. "de.example.chat.".
	Namespace string

	now func() time.Time
}

// NewEventFactory creates a factory stamping events with the current UTC time.
func NewEventFactory(source, namespace string) *EventFactory {
	return &EventFactory{Source: source, Namespace: namespace, now: time.Now}
}

// NewEvent creates a CloudEvents 1.0 event with a random id and JSON data.
func (f *EventFactory) NewEvent(eventType string, payload map[string]any) (cloudevents.Event, error) {
	event := cloudevents.NewEvent()
	event.SetID(uuid.NewString())
	event.SetSource(f.Source)
	event.SetType(f.Namespace + eventType)
	event.SetTime(f.now().UTC())
	if err := event.SetData(cloudevents.ApplicationJSON, payload); err != nil {
		return event, errors.Wrapf(err, "failed to encode %s payload", eventType)
	}
	if err := event.Validate(); err != nil {
		return event, errors.Wrapf(err, "invalid %s event", eventType)
	}
	return event, nil
}

package events

import (
	"context"
	"net/http"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	cehttp "github.com/cloudevents/sdk-go/v2/protocol/http"
	"github.com/pkg/errors"
)

// eventGridKeyHeader carries the topic access key.
const eventGridKeyHeader = "aeg-sas-key"

// EventGridPublisher sends events to an Azure Event Grid topic using the
// CloudEvents structured HTTP encoding.
type EventGridPublisher struct {
	client cloudevents.Client
}

// NewEventGridPublisher creates a publisher for the topic endpoint.
func NewEventGridPublisher(endpoint, accessKey string, httpClient *http.Client) (*EventGridPublisher, error) {
	if endpoint == "" {
		return nil, errors.New("event grid endpoint is required")
	}

	opts := []cehttp.Option{
		cehttp.WithTarget(endpoint),
		cehttp.WithHeader(eventGridKeyHeader, accessKey),
	}
	if httpClient != nil {
		opts = append(opts, cehttp.WithClient(*httpClient))
	}

	client, err := cloudevents.NewClientHTTP(opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create event grid client")
	}
	return &EventGridPublisher{client: client}, nil
}

func (p *EventGridPublisher) Send(ctx context.Context, event cloudevents.Event) error {
	result := p.client.Send(cloudevents.WithEncodingStructured(ctx), event)
	if !cloudevents.IsACK(result) {
		return errors.Wrapf(result, "event grid rejected %s", event.Type())
	}
	return nil
}

func (*EventGridPublisher) Close() error {
	return nil
}

package events

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"

	"github.com/plusishibba-design/barcode-scanner-cloud/internal/domain/scans"
)

const EventScanRecorded = "scan.recorded"

// PubSubPublisher sends recorded scans to a Pub/Sub topic.
type PubSubPublisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// NewPubSubPublisher opens a client for projectID. Close must be called on
// shutdown to flush buffered messages.
func NewPubSubPublisher(ctx context.Context, projectID, topicID string) (*PubSubPublisher, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client: %w", err)
	}
	return &PubSubPublisher{client: client, topic: client.Topic(topicID)}, nil
}

// Publish waits for the server ack so failures surface to the caller.
func (p *PubSubPublisher) Publish(ctx context.Context, ev scans.RecordedEvent) error {
	msg, err := encode(ev)
	if err != nil {
		return err
	}
	_, err = p.topic.Publish(ctx, msg).Get(ctx)
	if err != nil {
		return fmt.Errorf("publish %s id=%d: %w", EventScanRecorded, ev.ID, err)
	}
	return nil
}

func (p *PubSubPublisher) Close() error {
	p.topic.Stop()
	return p.client.Close()
}

func encode(ev scans.RecordedEvent) (*pubsub.Message, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	source := string(ev.Source)
	if source == "" {
		source = string(scans.SourceManual)
	}
	return &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"event":  EventScanRecorded,
			"source": source,
		},
	}, nil
}

// NoopPublisher is used when no topic is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, ev scans.RecordedEvent) error { return nil }

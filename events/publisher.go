package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/MrEthical07/authgate"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// DefaultTopicPrefix is used when NewPublisher gets an empty prefix.
const DefaultTopicPrefix = "authgate"

const metadataEventType = "event_type"

var _ authgate.EventPublisher = (*Publisher)(nil)

// Publisher implements authgate.EventPublisher on a watermill publisher.
type Publisher struct {
	publisher message.Publisher
	prefix    string
}

// NewPublisher wraps pub. Topics are "<prefix>.<event type>".
func NewPublisher(pub message.Publisher, prefix string) *Publisher {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return &Publisher{publisher: pub, prefix: prefix}
}

// Topic returns the topic an event type is published on.
func (p *Publisher) Topic(t authgate.EventType) string {
	return p.prefix + "." + string(t)
}

// Publish marshals event and sends it.
func (p *Publisher) Publish(ctx context.Context, event authgate.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(metadataEventType, string(event.Type))
	msg.SetContext(ctx)

	if err := p.publisher.Publish(p.Topic(event.Type), msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Close closes the underlying publisher.
func (p *Publisher) Close() error {
	return p.publisher.Close()
}

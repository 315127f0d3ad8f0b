package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// Publisher sends one message to a topic and waits for the server ack.
type Publisher interface {
	Publish(ctx context.Context, data []byte, attributes map[string]string) (string, error)
}

// TopicPublisher publishes through a Pub/Sub client.
type TopicPublisher struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
}

// NewTopicPublisher creates a publisher for topic in projectID.
func NewTopicPublisher(ctx context.Context, projectID, topic string) (*TopicPublisher, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	return &TopicPublisher{client: client, publisher: client.Publisher(topic)}, nil
}

// Publish sends data and blocks until the server assigns a message id.
func (p *TopicPublisher) Publish(ctx context.Context, data []byte, attributes map[string]string) (string, error) {
	result := p.publisher.Publish(ctx, &pubsub.Message{Data: data, Attributes: attributes})
	return result.Get(ctx)
}

// Close flushes pending messages and closes the client.
func (p *TopicPublisher) Close() error {
	p.publisher.Stop()
	return p.client.Close()
}

// PubSubNotifier publishes notifications as JSON messages.
type PubSubNotifier struct {
	publisher Publisher
	logger    zerolog.Logger
}

// NewPubSubNotifier creates a notifier publishing through p.
func NewPubSubNotifier(p Publisher, logger zerolog.Logger) *PubSubNotifier {
	return &PubSubNotifier{publisher: p, logger: logger}
}

// Notify publishes n with route_id and waypoint_index attributes for subscription filters.
func (p *PubSubNotifier) Notify(ctx context.Context, n Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	id, err := p.publisher.Publish(ctx, data, map[string]string{
		"route_id":       n.RouteID,
		"waypoint_index": strconv.Itoa(n.WaypointIndex),
	})
	if err != nil {
		return fmt.Errorf("publish arrival: %w", err)
	}

	p.logger.Debug().
		Str("message_id", id).
		Str("route_id", n.RouteID).
		Int("waypoint_index", n.WaypointIndex).
		Msg("arrival published")
	return nil
}

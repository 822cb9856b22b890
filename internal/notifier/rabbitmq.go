package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/vuongph/meeting-asr-be/internal/coordinator"
)

// Publisher is the slice of the RabbitMQ client the notifier needs.
// Satisfied by *rabbitmq.Client.
type Publisher interface {
	PublishWithRetry(ctx context.Context, routingKey string, body []byte, contentType, messageID string) error
}

// RabbitMQ pushes coordinator events to a per-user routing key on the
// notification exchange. The WebSocket gateway consumes them downstream;
// delivery is best-effort and never retried beyond the publisher's bounded
// retry.
type RabbitMQ struct {
	logger    *slog.Logger
	publisher Publisher
}

// NewRabbitMQ creates a RabbitMQ-backed notifier
func NewRabbitMQ(publisher Publisher, logger *slog.Logger) *RabbitMQ {
	return &RabbitMQ{
		logger:    logger,
		publisher: publisher,
	}
}

// NotifyUser publishes one event to the user's routing key
func (n *RabbitMQ) NotifyUser(ctx context.Context, userID int64, event coordinator.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	routingKey := RoutingKey(userID)
	if err := n.publisher.PublishWithRetry(ctx, routingKey, body, "application/json", event.ID); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	n.logger.Debug("Event published",
		slog.String("event_id", event.ID),
		slog.String("kind", event.Kind),
		slog.String("routing_key", routingKey),
	)

	return nil
}

// RoutingKey returns the routing key all of a user's notification channels
// bind to.
func RoutingKey(userID int64) string {
	return fmt.Sprintf("user.%d", userID)
}

package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/events"
)

// publishEvent emits a domain event. Events are best effort and never fail
// the operation that produced them.
func publishEvent(ctx context.Context, publisher events.EventPublisher, logger *slog.Logger, at time.Time, eventType events.EventType, data interface{}) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, events.NewEvent(eventType, at, data)); err != nil {
		logger.Warn("Failed to publish event", "event_type", eventType, "error", err)
	}
}

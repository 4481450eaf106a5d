package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/exam-service/internal/utils"
)

func TestWatermillEventPublisherDeliversEnvelope(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 8}, watermill.NopLogger{})
	defer pubSub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	messages, err := pubSub.Subscribe(ctx, "exam-events")
	require.NoError(t, err)

	publisher := NewWatermillEventPublisher(pubSub, "exam-events", utils.NewDiscardLogger())
	at := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	event := NewEvent(EventExamConcluded, at, ExamConcludedEvent{ExamID: 7, AttemptedCount: 3})

	require.NoError(t, publisher.Publish(ctx, event))

	select {
	case msg := <-messages:
		msg.Ack()
		assert.Equal(t, event.ID, msg.UUID)
		assert.Equal(t, string(EventExamConcluded), msg.Metadata.Get("event_type"))
		assert.Equal(t, "exam-service", msg.Metadata.Get("source"))

		var decoded struct {
			Type EventType          `json:"type"`
			Data ExamConcludedEvent `json:"data"`
		}
		require.NoError(t, json.Unmarshal(msg.Payload, &decoded))
		assert.Equal(t, EventExamConcluded, decoded.Type)
		assert.Equal(t, uint(7), decoded.Data.ExamID)
		assert.Equal(t, 3, decoded.Data.AttemptedCount)
	case <-ctx.Done():
		t.Fatal("event was not delivered")
	}
}

func TestMockEventPublisherFilters(t *testing.T) {
	m := NewMockEventPublisher(utils.NewDiscardLogger())
	now := time.Now()

	require.NoError(t, m.Publish(context.Background(), NewEvent(EventAttemptSubmitted, now, nil)))
	require.NoError(t, m.Publish(context.Background(), NewEvent(EventExamConcluded, now, nil)))

	assert.Len(t, m.Events(), 2)
	assert.Len(t, m.EventsOfType(EventExamConcluded), 1)
}

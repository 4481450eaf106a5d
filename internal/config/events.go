package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/SAP-F-2025/exam-service/internal/events"
)

// EventConfig selects the transport for domain events and for the job queue.
// Publisher is "kafka" or "gochannel"; gochannel keeps everything in-process.
type EventConfig struct {
	Enabled           bool
	Publisher         string
	KafkaBrokers      string
	ExamEventsTopic   string
	JobsTopic         string
	JobsConsumerGroup string
}

func (c *EventConfig) GetKafkaBrokers() []string {
	brokers := strings.Split(c.KafkaBrokers, ",")
	for i := range brokers {
		brokers[i] = strings.TrimSpace(brokers[i])
	}
	return brokers
}

func (c *EventConfig) CreateEventPublisher(logger *slog.Logger) (events.EventPublisher, error) {
	if !c.Enabled {
		logger.Info("Event publishing disabled, using mock publisher")
		return events.NewMockEventPublisher(logger), nil
	}

	switch c.Publisher {
	case "kafka":
		logger.Info("Creating Kafka event publisher",
			"brokers", c.KafkaBrokers,
			"topic", c.ExamEventsTopic)
		return events.NewKafkaEventPublisher(events.PublisherConfig{
			KafkaBrokers: c.GetKafkaBrokers(),
			TopicName:    c.ExamEventsTopic,
			Logger:       logger,
		})
	case "gochannel":
		logger.Info("Creating in-process event publisher", "topic", c.ExamEventsTopic)
		pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewSlogLogger(logger))
		return events.NewWatermillEventPublisher(pubSub, c.ExamEventsTopic, logger), nil
	default:
		logger.Warn("Unknown event publisher type, falling back to mock", "publisher", c.Publisher)
		return events.NewMockEventPublisher(logger), nil
	}
}

// CreateJobTransport returns the publisher and subscriber backing the job
// queue. With gochannel both sides are the same in-process pub/sub, so the
// worker must run in the same process as the scheduler.
func (c *EventConfig) CreateJobTransport(logger *slog.Logger) (message.Publisher, message.Subscriber, error) {
	wmLogger := watermill.NewSlogLogger(logger)

	switch c.Publisher {
	case "kafka":
		publisher, err := kafka.NewPublisher(kafka.PublisherConfig{
			Brokers:   c.GetKafkaBrokers(),
			Marshaler: kafka.DefaultMarshaler{},
		}, wmLogger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Kafka job publisher: %w", err)
		}

		subscriber, err := kafka.NewSubscriber(kafka.SubscriberConfig{
			Brokers:               c.GetKafkaBrokers(),
			Unmarshaler:           kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: kafka.DefaultSaramaSubscriberConfig(),
			ConsumerGroup:         c.JobsConsumerGroup,
		}, wmLogger)
		if err != nil {
			publisher.Close()
			return nil, nil, fmt.Errorf("failed to create Kafka job subscriber: %w", err)
		}
		return publisher, subscriber, nil
	default:
		pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, wmLogger)
		return pubSub, pubSub, nil
	}
}

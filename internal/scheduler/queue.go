package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
)

type HandlerFunc func(ctx context.Context, job Job) error

// Queue carries jobs over a watermill topic and dispatches them to the
// handler registered for their kind. A failing handler is retried with
// backoff before the job is parked.
type Queue struct {
	publisher message.Publisher
	router    *message.Router
	topic     string
	logger    *slog.Logger

	mu       sync.RWMutex
	handlers map[JobKind]HandlerFunc
}

func NewQueue(publisher message.Publisher, subscriber message.Subscriber, topic string, logger *slog.Logger) (*Queue, error) {
	wmLogger := watermill.NewSlogLogger(logger)

	router, err := message.NewRouter(message.RouterConfig{}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create job router: %w", err)
	}

	q := &Queue{
		publisher: publisher,
		router:    router,
		topic:     topic,
		logger:    logger,
		handlers:  make(map[JobKind]HandlerFunc),
	}

	// Jobs still failing after retries are parked on the poison topic
	// instead of being redelivered forever.
	poison, err := middleware.PoisonQueue(publisher, topic+".poison")
	if err != nil {
		return nil, fmt.Errorf("failed to create poison queue: %w", err)
	}
	router.AddMiddleware(
		poison,
		middleware.Retry{
			MaxRetries:      3,
			InitialInterval: 500 * time.Millisecond,
			Logger:          wmLogger,
		}.Middleware,
		middleware.Recoverer,
	)
	router.AddNoPublisherHandler("exam-jobs", topic, subscriber, q.dispatch)

	return q, nil
}

// Handle registers fn for a job kind. Register before Run.
func (q *Queue) Handle(kind JobKind, fn HandlerFunc) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[kind] = fn
}

// Enqueue publishes the job for immediate execution.
func (q *Queue) Enqueue(ctx context.Context, job Job) error {
	msg := message.NewMessage(watermill.NewUUID(), []byte(job.Encode()))
	msg.SetContext(ctx)
	msg.Metadata.Set("job_kind", string(job.Kind))

	if err := q.publisher.Publish(q.topic, msg); err != nil {
		return fmt.Errorf("failed to enqueue %s: %w", job, err)
	}
	q.logger.Debug("Job enqueued", "job", job.String(), "message_id", msg.UUID)
	return nil
}

// Run consumes jobs until ctx is cancelled.
func (q *Queue) Run(ctx context.Context) error {
	return q.router.Run(ctx)
}

// Running is closed once the worker is subscribed.
func (q *Queue) Running() chan struct{} {
	return q.router.Running()
}

func (q *Queue) Close() error {
	return q.router.Close()
}

func (q *Queue) dispatch(msg *message.Message) error {
	job, err := DecodeJob(msg.Payload)
	if err != nil {
		q.logger.Error("Dropping malformed job", "message_id", msg.UUID, "error", err)
		return nil
	}

	q.mu.RLock()
	handler, ok := q.handlers[job.Kind]
	q.mu.RUnlock()
	if !ok {
		q.logger.Error("No handler registered for job", "job", job.String())
		return nil
	}

	start := time.Now()
	if err := handler(msg.Context(), job); err != nil {
		q.logger.Warn("Job failed", "job", job.String(), "error", err)
		return err
	}
	q.logger.Info("Job completed", "job", job.String(), "duration", time.Since(start).String())
	return nil
}

package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

type Enqueuer interface {
	Enqueue(ctx context.Context, job Job) error
}

type RedisSchedulerConfig struct {
	Key          string
	PollInterval time.Duration
	BatchSize    int64
	Clock        func() time.Time
}

// RedisScheduler keeps delayed jobs in a sorted set scored by run time.
// Pollers claim due jobs with ZREM, so with several pollers each job is
// handed to the queue by exactly one of them.
type RedisScheduler struct {
	client   *redis.Client
	queue    Enqueuer
	key      string
	interval time.Duration
	batch    int64
	clock    func() time.Time
	logger   *slog.Logger
}

type ScheduledJob struct {
	Job   Job
	RunAt time.Time
}

func NewRedisScheduler(client *redis.Client, queue Enqueuer, cfg RedisSchedulerConfig, logger *slog.Logger) *RedisScheduler {
	if cfg.Key == "" {
		cfg.Key = "exam-service:scheduled-jobs"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Clock == nil {
		cfg.Clock = func() time.Time { return time.Now().UTC() }
	}
	return &RedisScheduler{
		client:   client,
		queue:    queue,
		key:      cfg.Key,
		interval: cfg.PollInterval,
		batch:    cfg.BatchSize,
		clock:    cfg.Clock,
		logger:   logger,
	}
}

// ScheduleAt registers job to run at or after runAt. Scheduling an
// identical job again replaces its run time.
func (s *RedisScheduler) ScheduleAt(ctx context.Context, runAt time.Time, job Job) error {
	err := s.client.ZAdd(ctx, s.key, redis.Z{
		Score:  float64(runAt.UnixMilli()),
		Member: job.Encode(),
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", job, err)
	}
	s.logger.Debug("Job scheduled", "job", job.String(), "run_at", runAt)
	return nil
}

func (s *RedisScheduler) EnqueueNow(ctx context.Context, job Job) error {
	return s.queue.Enqueue(ctx, job)
}

func (s *RedisScheduler) Cancel(ctx context.Context, job Job) error {
	return s.client.ZRem(ctx, s.key, job.Encode()).Err()
}

func (s *RedisScheduler) Pending(ctx context.Context) ([]ScheduledJob, error) {
	entries, err := s.client.ZRangeWithScores(ctx, s.key, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	out := make([]ScheduledJob, 0, len(entries))
	for _, e := range entries {
		member, _ := e.Member.(string)
		job, err := DecodeJob([]byte(member))
		if err != nil {
			continue
		}
		out = append(out, ScheduledJob{Job: job, RunAt: time.UnixMilli(int64(e.Score)).UTC()})
	}
	return out, nil
}

// PollOnce moves due jobs onto the queue and returns how many it handed
// over. A job whose enqueue fails goes back into the set.
func (s *RedisScheduler) PollOnce(ctx context.Context) (int, error) {
	now := s.clock()
	members, err := s.client.ZRangeByScore(ctx, s.key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: s.batch,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read due jobs: %w", err)
	}

	dispatched := 0
	for _, member := range members {
		claimed, err := s.client.ZRem(ctx, s.key, member).Result()
		if err != nil {
			return dispatched, fmt.Errorf("failed to claim job: %w", err)
		}
		if claimed == 0 {
			continue
		}

		job, err := DecodeJob([]byte(member))
		if err != nil {
			s.logger.Error("Dropping malformed scheduled job", "member", member, "error", err)
			continue
		}

		if err := s.queue.Enqueue(ctx, job); err != nil {
			if rerr := s.ScheduleAt(ctx, now, job); rerr != nil {
				s.logger.Error("Failed to restore job after enqueue failure", "job", job.String(), "error", rerr)
			}
			return dispatched, err
		}
		dispatched++
	}
	return dispatched, nil
}

// Run polls until ctx is cancelled.
func (s *RedisScheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("Scheduler polling started", "key", s.key, "interval", s.interval.String())
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler polling stopped")
			return nil
		case <-ticker.C:
			n, err := s.PollOnce(ctx)
			if err != nil {
				s.logger.Error("Scheduler poll failed", "error", err)
				continue
			}
			if n > 0 {
				s.logger.Info("Dispatched due jobs", "count", n)
			}
		}
	}
}

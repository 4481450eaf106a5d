package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// refreshScript extends the TTL only while the caller still owns the key.
var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// ExamLock serializes work per exam across worker processes. The TTL bounds
// how long a crashed holder can block others; a live holder keeps extending
// it every third of the TTL until it releases.
type ExamLock struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewExamLock(client *redis.Client, prefix string, ttl time.Duration) *ExamLock {
	return &ExamLock{client: client, prefix: prefix, ttl: ttl}
}

// Acquire tries once to take the lock for an exam. When acquired, release
// must be called; it stops the renewal and only deletes the key if this
// holder still owns it.
func (l *ExamLock) Acquire(ctx context.Context, examID uint) (release func(context.Context) error, acquired bool, err error) {
	key := fmt.Sprintf("%s%d", l.prefix, examID)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lock for exam %d: %w", examID, err)
	}
	if !ok {
		return nil, false, nil
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(ctx, key, token, stop, done)

	var once sync.Once
	release = func(ctx context.Context) error {
		once.Do(func() { close(stop) })
		<-done
		return releaseScript.Run(ctx, l.client, []string{key}, token).Err()
	}
	return release, true, nil
}

// keepAlive renews the key until stop is closed, ctx ends or ownership is
// lost.
func (l *ExamLock) keepAlive(ctx context.Context, key, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	interval := l.ttl / 3
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			owned, err := refreshScript.Run(ctx, l.client, []string{key}, token, l.ttl.Milliseconds()).Int()
			if err != nil || owned == 0 {
				return
			}
		}
	}
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("CONCLUSION_BATCH_SIZE", "")
	t.Setenv("EVENTS_PUBLISHER", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 5000, cfg.ConclusionBatchSize)
	assert.True(t, cfg.ConclusionReconcile)
	assert.Equal(t, time.Second, cfg.SchedulerPollInterval)
	assert.Equal(t, "gochannel", cfg.Events.Publisher)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("CONCLUSION_BATCH_SIZE", "250")
	t.Setenv("CONCLUSION_RECONCILE", "false")
	t.Setenv("EXAM_LOCK_TTL", "90s")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 250, cfg.ConclusionBatchSize)
	assert.False(t, cfg.ConclusionReconcile)
	assert.Equal(t, 90*time.Second, cfg.ExamLockTTL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Events.GetKafkaBrokers())
}

func TestLoadConfigCapsBatchSize(t *testing.T) {
	t.Setenv("CONCLUSION_BATCH_SIZE", "50000")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, MaxConclusionBatchSize, cfg.ConclusionBatchSize)
}

func TestClampBatchSize(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{in: 0, want: 5000},
		{in: -4, want: 5000},
		{in: 1, want: 1},
		{in: MaxConclusionBatchSize, want: MaxConclusionBatchSize},
		{in: 21846, want: MaxConclusionBatchSize},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClampBatchSize(tt.in), "input %d", tt.in)
	}
}

package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, int64(1), cfg.Scheduler.DefaultSeed)
	assert.Equal(t, 2*time.Second, cfg.Scheduler.LabBudget)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.LockTTL)
	assert.Equal(t, 2, cfg.Scheduler.BatchWorkers)
	assert.Equal(t, 5*time.Minute, cfg.Scheduler.ConflictCacheTTL)
	assert.False(t, cfg.Cache.Enabled)
	assert.Empty(t, cfg.Redis.Host)
	assert.Empty(t, cfg.Export.Dir)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("SCHEDULER_LAB_BUDGET", "500ms")
	v.Set("CONFLICT_CACHE_TTL", "not-a-duration")
	v.Set("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	v.Set("SCHEDULER_DEFAULT_SEED", 99)

	cfg := fromViper(v)
	assert.Equal(t, 500*time.Millisecond, cfg.Scheduler.LabBudget)
	assert.Equal(t, 5*time.Minute, cfg.Scheduler.ConflictCacheTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, int64(99), cfg.Scheduler.DefaultSeed)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SCHEDULER_BATCH_WORKERS", "4")

	cfg, err := Load()
	assert.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 4, cfg.Scheduler.BatchWorkers)
}

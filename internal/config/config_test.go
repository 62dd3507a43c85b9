package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_NAME", "sitehub_test")

	cfg := Load()

	assert.Equal(t, "postgres://sitehub:sitehub@db:5432/sitehub_test?sslmode=disable", cfg.DBURL)
	assert.Equal(t, 15*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.RefreshTTL)
	assert.Equal(t, "inbox", cfg.Notifier)
	assert.Equal(t, 30*time.Second, cfg.WorkerJobTimeout)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://x/y")
	t.Setenv("PORT", "9090")
	t.Setenv("RUN_MIGRATIONS", "false")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("WORKER_CONCURRENCY", "not-a-number")
	t.Setenv("OTEL_TRACES_SAMPLE_RATIO", "0.25")
	t.Setenv("NOTIFIER", "log")
	t.Setenv("LOG_LEVEL", "warn")

	cfg := Load()

	assert.Equal(t, "postgres://x/y", cfg.DBURL)
	assert.Equal(t, 9090, cfg.Port)
	assert.False(t, cfg.RunMigrations)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 4, cfg.WorkerConcurrency)
	assert.Equal(t, 0.25, cfg.OTelSampleRatio)
	assert.Equal(t, "log", cfg.Notifier)
	assert.Equal(t, "warn", cfg.LogLevel)
}

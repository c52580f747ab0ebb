package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoadConfig(t *testing.T) {
	p := writeConfig(t, `
database:
  host: "localhost"
  port: 5432
  username: "u"
  password: "p"
  name: "db"
kafka:
  host: "localhost"
  port: 9092
  checkpoint_reported_topic_name: "checkpoint.reported"
redis:
  host: "localhost"
  port: 6379
orders:
  base_url: "http://orders:8080"
tracking:
  grpc_addr: ":50051"
  http_addr: ":8080"
  kafka_consumer_group: "track-api"
  storage: postgres
  statuses: [PROCESSING, SHIPPED, DELIVERED]
  cache_ttl_seconds: 600
  rate_limit_per_minute: 120
log:
  level: debug
  format: text
`)

	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	require.Equal(t, "u", cfg.Database.Username)
	require.Equal(t, "postgres://u:p@localhost:5432/db?sslmode=disable", cfg.Database.DSN())
	require.Equal(t, "checkpoint.reported", cfg.Kafka.CheckpointReportedTopicName)
	require.Equal(t, "checkpoint.reported.dlq", cfg.Kafka.DeadLetterTopicName)
	require.True(t, cfg.Kafka.Enabled())
	require.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers())
	require.Equal(t, "localhost:6379", cfg.Redis.Addr())
	require.Equal(t, ":8080", cfg.Tracking.HTTPAddr)
	require.Equal(t, 10*time.Minute, cfg.Tracking.CacheTTL())
	require.Equal(t, 10*time.Second, cfg.Tracking.RequestTimeout())
	require.Equal(t, 5*time.Second, cfg.Orders.Timeout())
	require.Equal(t, []string{"PROCESSING", "SHIPPED", "DELIVERED"}, cfg.Tracking.Statuses)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, 1.0, cfg.Tracing.SamplingRatio)
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "tracking:\n  storage: memory\n"))
	require.NoError(t, err)
	require.Equal(t, StorageMemory, cfg.Tracking.Storage)
	require.Equal(t, ":50051", cfg.Tracking.GRPCAddr)
	require.Equal(t, ":8081", cfg.Tracking.WorkerHTTPAddr)
	require.False(t, cfg.Kafka.Enabled())
	require.False(t, cfg.Redis.Enabled())
	require.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfig_Invalid(t *testing.T) {
	for name, body := range map[string]string{
		"storage":  "tracking:\n  storage: mongo\n",
		"log":      "tracking:\n  storage: memory\nlog:\n  level: loud\n",
		"sampling": "tracking:\n  storage: memory\ntracing:\n  sampling_ratio: 2\n",
		"batch":    "tracking:\n  reconcile_batch_size: 5000\n",
		"url":      "tracking:\n  storage: memory\norders:\n  base_url: not a url\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, body))
			require.Error(t, err)
		})
	}
}

func TestLoad_RequiresConfigPath(t *testing.T) {
	t.Setenv("configPath", "")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("configPath", writeConfig(t, "tracking:\n  storage: memory\n"))
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, StorageMemory, cfg.Tracking.Storage)
}

func TestLoadConfig_Example(t *testing.T) {
	cfg, err := LoadConfig("config.example.yaml")
	require.NoError(t, err)
	require.Equal(t, StoragePostgres, cfg.Tracking.Storage)
	require.Len(t, cfg.Tracking.Statuses, 7)
	require.Equal(t, "checkpoint.reported.dlq", cfg.Kafka.DeadLetterTopicName)
}

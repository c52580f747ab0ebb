package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"go.yaml.in/yaml/v4"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Orders   OrdersConfig   `yaml:"orders"`
	Tracking TrackingConfig `yaml:"tracking"`
	Log      LogConfig      `yaml:"log"`
	Tracing  TracingConfig  `yaml:"tracing"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port" validate:"omitempty,min=1,max=65535"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode" validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`
}

// DSN builds a pgx connection string.
func (c DatabaseConfig) DSN() string {
	ssl := c.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Username, c.Password, c.Host, c.Port, c.DBName, ssl)
}

type KafkaConfig struct {
	Host                        string `yaml:"host"`
	Port                        int    `yaml:"port" validate:"omitempty,min=1,max=65535"`
	CheckpointReportedTopicName string `yaml:"checkpoint_reported_topic_name"`
	DeadLetterTopicName         string `yaml:"dead_letter_topic_name"`
}

func (c KafkaConfig) Enabled() bool {
	return c.Host != "" && c.CheckpointReportedTopicName != ""
}

func (c KafkaConfig) Brokers() []string {
	return []string{fmt.Sprintf("%s:%d", c.Host, c.Port)}
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port" validate:"omitempty,min=1,max=65535"`
}

func (c RedisConfig) Enabled() bool { return c.Host != "" }

func (c RedisConfig) Addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

type OrdersConfig struct {
	BaseURL        string `yaml:"base_url" validate:"omitempty,url"`
	TimeoutSeconds int    `yaml:"timeout_seconds" validate:"min=0"`
}

type TrackingConfig struct {
	GRPCAddr           string   `yaml:"grpc_addr"`
	HTTPAddr           string   `yaml:"http_addr"`
	WorkerHTTPAddr     string   `yaml:"worker_http_addr"`
	KafkaConsumerGroup string   `yaml:"kafka_consumer_group"`
	Storage            string   `yaml:"storage" validate:"omitempty,oneof=postgres memory"`
	Statuses           []string `yaml:"statuses" validate:"dive,required"`

	CacheTTLSeconds       int   `yaml:"cache_ttl_seconds" validate:"min=0"`
	LockTTLSeconds        int   `yaml:"lock_ttl_seconds" validate:"min=0"`
	RequestTimeoutSeconds int   `yaml:"request_timeout_seconds" validate:"min=0"`
	RateLimitPerMinute    int64 `yaml:"rate_limit_per_minute" validate:"min=0"`

	ReconcileIntervalSeconds int `yaml:"reconcile_interval_seconds" validate:"min=0"`
	ReconcileBatchSize       int `yaml:"reconcile_batch_size" validate:"min=0,max=1000"`
	ReconcileConcurrency     int `yaml:"reconcile_concurrency" validate:"min=0,max=64"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=json text"`
}

type TracingConfig struct {
	Endpoint      string  `yaml:"endpoint"`
	SamplingRatio float64 `yaml:"sampling_ratio" validate:"min=0,max=1"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal YAML")
	}
	config.applyDefaults()

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(&config); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return &config, nil
}

// Load preloads an optional .env file and reads the YAML file named by $configPath.
func Load() (*Config, error) {
	_ = godotenv.Load()
	path := os.Getenv("configPath")
	if path == "" {
		return nil, errors.New("configPath env is required")
	}
	return LoadConfig(path)
}

func (c *Config) applyDefaults() {
	t := &c.Tracking
	if t.GRPCAddr == "" {
		t.GRPCAddr = ":50051"
	}
	if t.HTTPAddr == "" {
		t.HTTPAddr = ":8080"
	}
	if t.WorkerHTTPAddr == "" {
		t.WorkerHTTPAddr = ":8081"
	}
	if t.KafkaConsumerGroup == "" {
		t.KafkaConsumerGroup = "track-api"
	}
	if t.Storage == "" {
		t.Storage = StoragePostgres
	}
	if t.RequestTimeoutSeconds == 0 {
		t.RequestTimeoutSeconds = 10
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Redis.Port == 0 {
		c.Redis.Port = 6379
	}
	if c.Kafka.Port == 0 {
		c.Kafka.Port = 9092
	}
	if c.Kafka.DeadLetterTopicName == "" && c.Kafka.CheckpointReportedTopicName != "" {
		c.Kafka.DeadLetterTopicName = c.Kafka.CheckpointReportedTopicName + ".dlq"
	}
	if c.Orders.TimeoutSeconds == 0 {
		c.Orders.TimeoutSeconds = 5
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Tracing.SamplingRatio == 0 {
		c.Tracing.SamplingRatio = 1
	}
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func (t TrackingConfig) CacheTTL() time.Duration       { return seconds(t.CacheTTLSeconds) }
func (t TrackingConfig) LockTTL() time.Duration        { return seconds(t.LockTTLSeconds) }
func (t TrackingConfig) RequestTimeout() time.Duration { return seconds(t.RequestTimeoutSeconds) }
func (t TrackingConfig) ReconcileInterval() time.Duration {
	return seconds(t.ReconcileIntervalSeconds)
}
func (o OrdersConfig) Timeout() time.Duration { return seconds(o.TimeoutSeconds) }

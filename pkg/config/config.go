// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Postgres, Kafka, Redis, Artifacts, Split, Training, etc.).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Split     SplitConfig     `yaml:"split"`
	Training  TrainingConfig  `yaml:"training"`
	Tracking  TrackingConfig  `yaml:"tracking"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Logging   LoggingConfig   `yaml:"logging"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	PredictionEvents string `yaml:"predictionEvents"`
	TrainingEvents   string `yaml:"trainingEvents"`
	ModelPromotions  string `yaml:"modelPromotions"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	PoolSize  int           `yaml:"poolSize"`
	CacheTTL  time.Duration `yaml:"cacheTTL"`
	OpTimeout time.Duration `yaml:"opTimeout"`
}

// ArtifactsConfig selects the artifact store backend and names every blob the
// pipeline reads or writes.
type ArtifactsConfig struct {
	Backend string       `yaml:"backend"`
	Dir     string       `yaml:"dir"`
	RawPath string       `yaml:"rawPath"`
	Keys    ArtifactKeys `yaml:"keys"`
}

// ArtifactKeys are the addressable blob keys inside the artifact store.
type ArtifactKeys struct {
	Cleaned           string `yaml:"cleaned"`
	InterimTrain      string `yaml:"interimTrain"`
	InterimVal        string `yaml:"interimVal"`
	InterimTest       string `yaml:"interimTest"`
	PreprocessedTrain string `yaml:"preprocessedTrain"`
	PreprocessedVal   string `yaml:"preprocessedVal"`
	PreprocessedTest  string `yaml:"preprocessedTest"`
	Imputation        string `yaml:"imputation"`
	Transformer       string `yaml:"transformer"`
	Model             string `yaml:"model"`
	Bundle            string `yaml:"bundle"`
}

// SplitConfig controls how cleaned rows are partitioned.
type SplitConfig struct {
	Strategy  string  `yaml:"strategy"`
	TestRatio float64 `yaml:"testRatio"`
	ValRatio  float64 `yaml:"valRatio"`
	TestSeed  int64   `yaml:"testSeed"`
	ValSeed   int64   `yaml:"valSeed"`
}

// TrainingConfig selects the regressor, the target transform and the feature
// selection thresholds.
type TrainingConfig struct {
	Regressor                string             `yaml:"regressor"`
	TargetTransform          string             `yaml:"targetTransform"`
	Hyperparams              map[string]float64 `yaml:"hyperparams"`
	DropCorrelatedThreshold  float64            `yaml:"dropCorrelatedThreshold"`
	FeatureSelectorThreshold float64            `yaml:"featureSelectorThreshold"`
	Seed                     int64              `yaml:"seed"`
	Search                   SearchConfig       `yaml:"search"`
}

// SearchConfig bounds the optional hyperparameter search.
type SearchConfig struct {
	Enabled bool                 `yaml:"enabled"`
	Budget  int                  `yaml:"budget"`
	Seed    int64                `yaml:"seed"`
	Space   map[string][]float64 `yaml:"space"`
}

// TrackingConfig toggles the postgres-backed experiment tracker.
type TrackingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// ScheduleConfig holds the cron expression for scheduled retraining.
type ScheduleConfig struct {
	Cron string `yaml:"cron"`
}

// AnalyticsConfig controls the analytics service snapshot cadence.
type AnalyticsConfig struct {
	Port              int           `yaml:"port"`
	SnapshotInterval  time.Duration `yaml:"snapshotInterval"`
	SnapshotRetention time.Duration `yaml:"snapshotRetention"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig controls span logging for pipeline runs.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
	// PushGateway receives pipeline metrics after each one-shot command.
	PushGateway string `yaml:"pushGateway"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. A .env file in the working directory is loaded first when present.
// It returns a Config populated with sensible defaults for any missing values.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Split.TestRatio <= 0 || c.Split.TestRatio >= 1 {
		return fmt.Errorf("split.testRatio must be in (0,1), got %v", c.Split.TestRatio)
	}
	if c.Split.ValRatio < 0 || c.Split.ValRatio >= 1 {
		return fmt.Errorf("split.valRatio must be in [0,1), got %v", c.Split.ValRatio)
	}
	switch c.Split.Strategy {
	case "random", "hash":
	default:
		return fmt.Errorf("split.strategy must be random or hash, got %q", c.Split.Strategy)
	}
	switch c.Artifacts.Backend {
	case "fs", "badger":
	default:
		return fmt.Errorf("artifacts.backend must be fs or badger, got %q", c.Artifacts.Backend)
	}
	if c.Redis.CacheTTL <= 0 {
		return fmt.Errorf("redis.cacheTTL must be positive")
	}
	if c.Analytics.SnapshotInterval <= 0 {
		return fmt.Errorf("analytics.snapshotInterval must be positive")
	}
	return nil
}

// defaultConfig returns a Config with defaults suitable for local development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "propertyprice",
			User:            "propertyprice",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Enabled:       true,
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "propertyprice-analytics",
			Topics: KafkaTopics{
				PredictionEvents: "prediction-events",
				TrainingEvents:   "training-events",
				ModelPromotions:  "model-promotions",
			},
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			DB:        0,
			PoolSize:  10,
			CacheTTL:  3600 * time.Second,
			OpTimeout: 200 * time.Millisecond,
		},
		Artifacts: ArtifactsConfig{
			Backend: "fs",
			Dir:     "artifacts",
			RawPath: "data/raw/house_prices.csv",
			Keys: ArtifactKeys{
				Cleaned:           "data/cleaned/houses.csv",
				InterimTrain:      "data/interim/train.csv",
				InterimVal:        "data/interim/val.csv",
				InterimTest:       "data/interim/test.csv",
				PreprocessedTrain: "data/preprocessed/train.csv",
				PreprocessedVal:   "data/preprocessed/val.csv",
				PreprocessedTest:  "data/preprocessed/test.csv",
				Imputation:        "models/imputation.json",
				Transformer:       "models/column_transformer.json",
				Model:             "models/model.json",
				Bundle:            "models/bundle.json",
			},
		},
		Split: SplitConfig{
			Strategy:  "random",
			TestRatio: 0.2,
			ValRatio:  0.2,
			TestSeed:  42,
			ValSeed:   42,
		},
		Training: TrainingConfig{
			Regressor:                "RandomForestRegressor",
			TargetTransform:          "log",
			Hyperparams:              map[string]float64{},
			DropCorrelatedThreshold:  0.8,
			FeatureSelectorThreshold: 0.0,
			Seed:                     42,
			Search: SearchConfig{
				Budget: 10,
				Seed:   42,
			},
		},
		Schedule: ScheduleConfig{
			Cron: "0 0 3 * * 0",
		},
		Analytics: AnalyticsConfig{
			Port:             8081,
			SnapshotInterval:  time.Minute,
			SnapshotRetention: 30 * 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads PP_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PP_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("PP_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("PP_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("PP_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("PP_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("PP_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("PP_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("PP_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("PP_KAFKA_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Kafka.Enabled = enabled
		}
	}
	if v := os.Getenv("PP_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("PP_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("PP_REDIS_CACHE_TTL"); v != "" {
		if ttl, err := time.ParseDuration(v); err == nil {
			cfg.Redis.CacheTTL = ttl
		}
	}
	if v := os.Getenv("PP_ARTIFACTS_BACKEND"); v != "" {
		cfg.Artifacts.Backend = v
	}
	if v := os.Getenv("PP_ARTIFACTS_DIR"); v != "" {
		cfg.Artifacts.Dir = v
	}
	if v := os.Getenv("PP_ARTIFACTS_RAW_PATH"); v != "" {
		cfg.Artifacts.RawPath = v
	}
	if v := os.Getenv("PP_TRAINING_REGRESSOR"); v != "" {
		cfg.Training.Regressor = v
	}
	if v := os.Getenv("PP_TRAINING_TARGET_TRANSFORM"); v != "" {
		cfg.Training.TargetTransform = v
	}
	if v := os.Getenv("PP_TRACKING_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Tracking.Enabled = enabled
		}
	}
	if v := os.Getenv("PP_SCHEDULE_CRON"); v != "" {
		cfg.Schedule.Cron = v
	}
	if v := os.Getenv("PP_METRICS_PUSH_GATEWAY"); v != "" {
		cfg.Metrics.PushGateway = v
	}
	if v := os.Getenv("PP_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PP_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/healix-ai/backend/pkg/common/logger"
	"github.com/spf13/viper"
)

type Config struct {
	// Server
	ServerPort     string
	ServerHost     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestBody int64
	RateLimitRPS   int
	RateLimitBurst int
	LogLevel       string

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis
	RedisEnabled  bool
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Kafka
	KafkaBrokers     []string
	KafkaGroupID     string
	KafkaIngestTopic string

	// Ingestion
	IngestFailurePolicy    string
	NormalizerDecimalComma bool

	// Insights
	InsightsCacheTTL time.Duration

	// Serving
	ModelBundlePath      string
	PredictionLogEnabled bool
}

var defaults = map[string]interface{}{
	"SERVER_PORT":            "8080",
	"SERVER_HOST":            "0.0.0.0",
	"READ_TIMEOUT":           "30s",
	"WRITE_TIMEOUT":          "60s",
	"MAX_REQUEST_BODY_BYTES": 32 * 1024 * 1024,
	"RATE_LIMIT_RPS":         50,
	"RATE_LIMIT_BURST":       100,
	"LOG_LEVEL":              "info",

	"POSTGRES_HOST":     "localhost",
	"POSTGRES_PORT":     "5432",
	"POSTGRES_USER":     "healix",
	"POSTGRES_PASSWORD": "healix",
	"POSTGRES_DB":       "healix",
	"POSTGRES_SSLMODE":  "disable",

	"REDIS_ENABLED":  false,
	"REDIS_HOST":     "localhost",
	"REDIS_PORT":     "6379",
	"REDIS_PASSWORD": "",
	"REDIS_DB":       0,

	"KAFKA_BROKERS":      "",
	"KAFKA_GROUP_ID":     "healix-backend",
	"KAFKA_INGEST_TOPIC": "dataset-ingested",

	"INGEST_FAILURE_POLICY":    "abort",
	"NORMALIZER_DECIMAL_COMMA": false,

	"INSIGHTS_CACHE_TTL": "5m",

	"MODEL_BUNDLE_PATH":      "models/clinical_bundle.yaml",
	"PREDICTION_LOG_ENABLED": false,
}

// Load reads configuration from the environment, plus the file named by
// HEALIX_CONFIG when set. A broken config file is logged and the environment
// alone is used; callers that must not run on partial settings use LoadFile.
func Load() *Config {
	cfg, err := LoadFile("")
	if err != nil {
		logger.Log.WithError(err).Warn("Ignoring unreadable config file")
		cfg, _ = LoadFile("-")
	}
	return cfg
}

// LoadFile reads configuration from path (any format viper understands)
// layered under environment variables. An empty path defers to HEALIX_CONFIG;
// "-" skips file loading entirely.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if path == "" {
		path = v.GetString("HEALIX_CONFIG")
	}
	if path != "" && path != "-" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fromViper(v), fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		ServerPort:     v.GetString("SERVER_PORT"),
		ServerHost:     v.GetString("SERVER_HOST"),
		ReadTimeout:    v.GetDuration("READ_TIMEOUT"),
		WriteTimeout:   v.GetDuration("WRITE_TIMEOUT"),
		MaxRequestBody: v.GetInt64("MAX_REQUEST_BODY_BYTES"),
		RateLimitRPS:   v.GetInt("RATE_LIMIT_RPS"),
		RateLimitBurst: v.GetInt("RATE_LIMIT_BURST"),
		LogLevel:       v.GetString("LOG_LEVEL"),

		PostgresHost:     v.GetString("POSTGRES_HOST"),
		PostgresPort:     v.GetString("POSTGRES_PORT"),
		PostgresUser:     v.GetString("POSTGRES_USER"),
		PostgresPassword: v.GetString("POSTGRES_PASSWORD"),
		PostgresDB:       v.GetString("POSTGRES_DB"),
		PostgresSSLMode:  v.GetString("POSTGRES_SSLMODE"),

		RedisEnabled:  v.GetBool("REDIS_ENABLED"),
		RedisHost:     v.GetString("REDIS_HOST"),
		RedisPort:     v.GetString("REDIS_PORT"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisDB:       v.GetInt("REDIS_DB"),

		KafkaBrokers:     splitList(v.GetString("KAFKA_BROKERS")),
		KafkaGroupID:     v.GetString("KAFKA_GROUP_ID"),
		KafkaIngestTopic: v.GetString("KAFKA_INGEST_TOPIC"),

		IngestFailurePolicy:    strings.ToLower(strings.TrimSpace(v.GetString("INGEST_FAILURE_POLICY"))),
		NormalizerDecimalComma: v.GetBool("NORMALIZER_DECIMAL_COMMA"),

		InsightsCacheTTL: v.GetDuration("INSIGHTS_CACHE_TTL"),

		ModelBundlePath:      v.GetString("MODEL_BUNDLE_PATH"),
		PredictionLogEnabled: v.GetBool("PREDICTION_LOG_ENABLED"),
	}
}

// PostgresDSN renders the libpq-style connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.PostgresHost,
		c.PostgresUser,
		c.PostgresPassword,
		c.PostgresDB,
		c.PostgresPort,
		c.PostgresSSLMode,
	)
}

func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

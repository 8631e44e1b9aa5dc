package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Alert store backends.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaAlertTopic  string
	KafkaGroupID     string
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration

	// Alert store and housekeeping.
	AlertStore         string
	SQLitePath         string
	DatabaseURL        string
	AlertAutoAck       bool
	AlertRetention     time.Duration
	AlertPurgeSchedule string

	// ValidateRanges rejects physically impossible readings before assessment.
	ValidateRanges bool

	// River status prediction service.
	PredictorURL       string
	PredictorEnabled   bool
	PredictorTimeout   time.Duration
	PredictorCacheSize int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	predictorTimeout, err := parseDuration("PREDICTOR_TIMEOUT", "5s", false)
	if err != nil {
		return nil, err
	}

	retention, err := parseDuration("ALERT_RETENTION", "0", true)
	if err != nil {
		return nil, err
	}

	autoAck, err := parseBool("ALERT_AUTO_ACK", true)
	if err != nil {
		return nil, err
	}

	validateRanges, err := parseBool("VALIDATE_RANGES", false)
	if err != nil {
		return nil, err
	}

	predictorURL := strings.TrimRight(os.Getenv("PREDICTOR_URL"), "/")
	predictorEnabled := predictorURL != ""
	if v := os.Getenv("PREDICTOR_ENABLED"); v != "" {
		predictorEnabled = v == "true"
	}

	cfg := &Config{
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "raw-water-readings"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "water-quality-assessments"),
		KafkaAlertTopic:    sharedcfg.EnvOrDefault("KAFKA_ALERT_TOPIC", "water-quality-alerts"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "river-wqi-etl"),
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		AlertStore:         strings.ToLower(sharedcfg.EnvOrDefault("ALERT_STORE", StoreMemory)),
		SQLitePath:         sharedcfg.EnvOrDefault("SQLITE_PATH", "data/alerts.db"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		AlertAutoAck:       autoAck,
		AlertRetention:     retention,
		AlertPurgeSchedule: sharedcfg.EnvOrDefault("ALERT_PURGE_SCHEDULE", "@daily"),

		ValidateRanges: validateRanges,

		PredictorURL:       predictorURL,
		PredictorEnabled:   predictorEnabled,
		PredictorTimeout:   predictorTimeout,
		PredictorCacheSize: parsePredictorCacheSize(),
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaSourceTopic == "" {
		return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
	}
	if cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required")
	}
	if cfg.KafkaAlertTopic == "" {
		return nil, errors.New("KAFKA_ALERT_TOPIC is required")
	}

	switch cfg.AlertStore {
	case StoreMemory:
	case StoreSQLite:
		if cfg.SQLitePath == "" {
			return nil, errors.New("SQLITE_PATH is required when ALERT_STORE=sqlite")
		}
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required when ALERT_STORE=postgres")
		}
	default:
		return nil, fmt.Errorf("invalid ALERT_STORE %q: want memory, sqlite or postgres", cfg.AlertStore)
	}

	if cfg.PredictorEnabled && cfg.PredictorURL == "" {
		return nil, errors.New("PREDICTOR_ENABLED is true but PREDICTOR_URL is not set")
	}

	return cfg, nil
}

// parseDuration reads a positive duration. allowZero also accepts "0".
func parseDuration(key, def string, allowZero bool) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d < 0 || (d == 0 && !allowZero) {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseBool(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func parsePredictorCacheSize() int {
	if s := os.Getenv("PREDICTOR_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}

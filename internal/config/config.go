package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/storm-advisory-ingest/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	DatabasePath string
	RegionsFile  string

	CronSchedule          string
	FetchTimeout          time.Duration
	CycleTimeout          time.Duration
	RegionWorkers         int
	FetchRatePerSecond    float64
	MissingCycleThreshold int
	FollowWalletFeeds     bool

	// Optional Kafka publication of appended history entries.
	KafkaEnabled      bool
	KafkaBrokers      []string
	KafkaHistoryTopic string
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	fetchTimeout, err := parseDuration("FETCH_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	cycleTimeout, err := parseDuration("CYCLE_TIMEOUT", "5m")
	if err != nil {
		return nil, err
	}

	workers, err := parsePositiveInt("REGION_WORKERS", 4)
	if err != nil {
		return nil, err
	}
	missThreshold, err := parsePositiveInt("MISSING_CYCLE_THRESHOLD", 3)
	if err != nil {
		return nil, err
	}

	fetchRate, err := parseRate("FETCH_RATE_PER_SECOND", 2.0)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		DatabasePath: sharedcfg.EnvOrDefault("DATABASE_PATH", "data/storm_tracker.db"),
		RegionsFile:  sharedcfg.EnvOrDefault("REGIONS_FILE", "regions.yaml"),

		CronSchedule:          sharedcfg.EnvOrDefault("CRON_SCHEDULE", "0 */1 * * *"),
		FetchTimeout:          fetchTimeout,
		CycleTimeout:          cycleTimeout,
		RegionWorkers:         workers,
		FetchRatePerSecond:    fetchRate,
		MissingCycleThreshold: missThreshold,
		FollowWalletFeeds:     os.Getenv("FOLLOW_WALLET_FEEDS") == "true",

		KafkaEnabled:      os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:      parseBrokerList(),
		KafkaHistoryTopic: sharedcfg.EnvOrDefault("KAFKA_HISTORY_TOPIC", "storm-history-entries"),
	}

	if cfg.DatabasePath == "" {
		return nil, errors.New("DATABASE_PATH is required")
	}
	if cfg.RegionsFile == "" {
		return nil, errors.New("REGIONS_FILE is required")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}

	return cfg, nil
}

// regionsFile is the on-disk YAML shape of the region configuration.
type regionsFile struct {
	Regions []domain.Region `yaml:"regions"`
}

// LoadRegions reads the ordered region list from a YAML file. The list is
// loaded once per process start; changes require a restart.
func LoadRegions(path string) ([]domain.Region, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read regions file: %w", err)
	}

	var f regionsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse regions file %s: %w", path, err)
	}
	if len(f.Regions) == 0 {
		return nil, fmt.Errorf("regions file %s defines no regions", path)
	}

	ids := make(map[string]struct{}, len(f.Regions))
	for i, r := range f.Regions {
		if r.ID == "" {
			return nil, fmt.Errorf("regions file %s: region %d has no id", path, i)
		}
		if r.FeedURL == "" {
			return nil, fmt.Errorf("regions file %s: region %q has no feed_url", path, r.ID)
		}
		if _, dup := ids[r.ID]; dup {
			return nil, fmt.Errorf("regions file %s: duplicate region id %q", path, r.ID)
		}
		ids[r.ID] = struct{}{}
	}
	return f.Regions, nil
}

// parseBrokerList reads KAFKA_BROKERS, defaulting only when the variable is
// unset. An explicitly empty value yields an empty list so the KAFKA_ENABLED
// validation can catch it.
func parseBrokerList() []string {
	raw, ok := os.LookupEnv("KAFKA_BROKERS")
	if !ok {
		raw = "localhost:9092"
	}
	if raw == "" {
		return nil
	}
	return sharedcfg.ParseBrokers(raw)
}

func parseDuration(envVar, def string) (time.Duration, error) {
	s := sharedcfg.EnvOrDefault(envVar, def)
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", envVar, s)
	}
	return d, nil
}

func parsePositiveInt(envVar string, def int) (int, error) {
	s := os.Getenv(envVar)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", envVar, s)
	}
	return n, nil
}

func parseRate(envVar string, def float64) (float64, error) {
	s := os.Getenv(envVar)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", envVar, s)
	}
	return v, nil
}

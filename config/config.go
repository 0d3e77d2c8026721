package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"

	FormatJSON    = "json"
	FormatParquet = "parquet"
	FormatBoth    = "both"
)

type Config struct {
	Optionflow OptionflowConfig `yaml:"optionflow"`
	Source     SourceConfig     `yaml:"source"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
	Reference  ReferenceConfig  `yaml:"reference"`
	Storage    StorageConfig    `yaml:"storage"`
	Writer     WriterConfig     `yaml:"writer"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

type OptionflowConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// SourceConfig describes where the option price pages are fetched from. The
// first URL is the primary (nearby) maturity; the rest are merged into the
// same snapshot.
type SourceConfig struct {
	URLs      []string        `yaml:"urls"`
	Referer   string          `yaml:"referer"`
	UserAgent string          `yaml:"user_agent"`
	Timeout   time.Duration   `yaml:"timeout"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size"`
}

type ScheduleConfig struct {
	// Interval of zero runs a single ingestion cycle and exits.
	Interval        time.Duration `yaml:"interval"`
	ConflictRetries int           `yaml:"conflict_retries"`
}

type ReferenceConfig struct {
	Backend string       `yaml:"backend"`
	Kind    string       `yaml:"kind"`
	Key     string       `yaml:"key"`
	SQLite  SQLiteConfig `yaml:"sqlite"`
	Redis   RedisConfig  `yaml:"redis"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type StorageConfig struct {
	S3    S3Config    `yaml:"s3"`
	Local LocalConfig `yaml:"local"`
}

type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type LocalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

type WriterConfig struct {
	Format      string        `yaml:"format"`
	Prefix      string        `yaml:"prefix"`
	Partitioned bool          `yaml:"partitioned"`
	Parquet     ParquetConfig `yaml:"parquet"`
}

type ParquetConfig struct {
	Compression string `yaml:"compression"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

type MetricsConfig struct {
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
	// ReportInterval of zero disables the periodic runtime report.
	ReportInterval time.Duration    `yaml:"report_interval"`
	Prometheus     PrometheusConfig `yaml:"prometheus"`
}

// PrometheusConfig serves /metrics on Addr when set.
type PrometheusConfig struct {
	Addr string `yaml:"addr"`
}

type CloudWatchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace"`
}

// Default returns the configuration used when a key is left out of the
// YAML file.
func Default() Config {
	return Config{
		Optionflow: OptionflowConfig{Name: "optionflow", Version: "dev"},
		Source: SourceConfig{
			URLs: []string{
				"https://svc.qri.jp/jpx/nkopm/",
				"https://svc.qri.jp/jpx/nkopm/1",
			},
			Referer:   "https://svc.qri.jp/jpx/nkopm/2",
			UserAgent: "optionflow/1.0",
			Timeout:   15 * time.Second,
			RateLimit: RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1},
		},
		Schedule: ScheduleConfig{ConflictRetries: 1},
		Reference: ReferenceConfig{
			Backend: BackendMemory,
			Kind:    "optionchan",
			Key:     "prev_future_price",
			SQLite:  SQLiteConfig{Path: "data/optionflow.db"},
			Redis:   RedisConfig{Addr: "localhost:6379"},
		},
		Storage: StorageConfig{
			Local: LocalConfig{Dir: "data/snapshots"},
		},
		Writer: WriterConfig{
			Format:  FormatJSON,
			Parquet: ParquetConfig{Compression: "snappy"},
		},
		Logging: LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
	}
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(&config)

	config.Storage.S3.Bucket = strings.TrimSpace(config.Storage.S3.Bucket)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func applyEnvOverrides(config *Config) {
	if config.Storage.S3.Enabled {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			config.Storage.S3.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			config.Storage.S3.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.Storage.S3.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("S3_BUCKET"); v != "" {
			config.Storage.S3.Bucket = strings.TrimSpace(v)
		}
	}

	if v := os.Getenv("REDIS_ADDR"); v != "" {
		config.Reference.Redis.Addr = strings.TrimSpace(v)
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		config.Reference.Redis.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			config.Reference.Redis.DB = db
		}
	}
	if v := os.Getenv("OPTIONFLOW_SQLITE_PATH"); v != "" {
		config.Reference.SQLite.Path = strings.TrimSpace(v)
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Optionflow.Name == "" {
		return fmt.Errorf("optionflow.name is required")
	}

	if len(cfg.Source.URLs) == 0 {
		return fmt.Errorf("source.urls must list at least the primary page")
	}
	for i, u := range cfg.Source.URLs {
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			return fmt.Errorf("source.urls[%d] '%s' is not an http(s) url", i, u)
		}
	}
	if cfg.Source.Timeout <= 0 {
		return fmt.Errorf("source.timeout must be greater than 0")
	}
	if cfg.Source.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("source.rate_limit.requests_per_second must be greater than 0")
	}

	if cfg.Schedule.Interval < 0 {
		return fmt.Errorf("schedule.interval must not be negative")
	}
	if cfg.Schedule.ConflictRetries < 0 {
		return fmt.Errorf("schedule.conflict_retries must not be negative")
	}

	if cfg.Reference.Key == "" {
		return fmt.Errorf("reference.key is required")
	}
	switch cfg.Reference.Backend {
	case BackendMemory:
	case BackendSQLite:
		if cfg.Reference.SQLite.Path == "" {
			return fmt.Errorf("reference.sqlite.path is required for the sqlite backend")
		}
	case BackendRedis:
		if cfg.Reference.Redis.Addr == "" {
			return fmt.Errorf("reference.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("reference.backend '%s' is not one of memory, sqlite, redis", cfg.Reference.Backend)
	}

	switch cfg.Writer.Format {
	case FormatJSON, FormatParquet, FormatBoth:
	default:
		return fmt.Errorf("writer.format '%s' is not one of json, parquet, both", cfg.Writer.Format)
	}

	if cfg.Storage.S3.Enabled {
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required when S3 is enabled")
		}
		if cfg.Storage.S3.Region == "" {
			return fmt.Errorf("storage.s3.region is required when S3 is enabled")
		}
		if !isValidS3Bucket(cfg.Storage.S3.Bucket) {
			return fmt.Errorf("storage.s3.bucket '%s' is invalid", cfg.Storage.S3.Bucket)
		}
	}
	if cfg.Metrics.ReportInterval < 0 {
		return fmt.Errorf("metrics.report_interval must not be negative")
	}

	if cfg.Storage.Local.Enabled && cfg.Storage.Local.Dir == "" {
		return fmt.Errorf("storage.local.dir is required when local storage is enabled")
	}

	return nil
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}

// Package config loads service settings from defaults, an optional YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every setting of the service.
type Config struct {
	LogLevel  string          `yaml:"log_level"`
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Extractor ExtractorConfig `yaml:"extractor"`
	Auth      AuthConfig      `yaml:"auth"`
	Matcher   MatcherConfig   `yaml:"matcher"`
}

// HTTPConfig configures the API listener. ShutdownTimeout bounds how long in-flight
// requests may run after a shutdown signal.
type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig configures the PostgreSQL connection pool that stores identities and match logs.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// RedisConfig points at the Redis instance caching match results.
type RedisConfig struct {
	Addr string `yaml:"addr"`
}

// ExtractorConfig locates the gRPC embedding extractor.
type ExtractorConfig struct {
	Addr        string        `yaml:"addr"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// AuthConfig holds the HS256 secret and, optionally, the audience required of bearer tokens.
type AuthConfig struct {
	Secret   string `yaml:"secret"`
	Audience string `yaml:"audience"`
}

// MatcherConfig tunes matching. Threshold is exclusive and must lie in [-1, 1].
type MatcherConfig struct {
	Threshold float32 `yaml:"threshold"`
}

// Default returns the settings used when nothing overrides them.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ShutdownTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			DSN:             "host=postgres user=postgres password=postgres dbname=facematch port=5432 sslmode=disable",
			MaxIdleConns:    5,
			MaxOpenConns:    10,
			ConnMaxLifetime: time.Hour,
		},
		Redis:     RedisConfig{Addr: "redis:6379"},
		Extractor: ExtractorConfig{Addr: "extractor:50051", DialTimeout: 5 * time.Second},
		Auth:      AuthConfig{Secret: "dev-secret"},
		Matcher:   MatcherConfig{Threshold: 0.6},
	}
}

// Load applies the YAML file at path (skipped when path is empty) and then
// environment variables on top of Default.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	envString("LOG_LEVEL", &c.LogLevel)
	envString("HTTP_ADDR", &c.HTTP.Addr)
	envString("DATABASE_DSN", &c.Database.DSN)
	envString("REDIS_ADDR", &c.Redis.Addr)
	envString("EXTRACTOR_ADDR", &c.Extractor.Addr)
	envString("JWT_SECRET", &c.Auth.Secret)
	envString("JWT_AUDIENCE", &c.Auth.Audience)

	var errs []error
	errs = append(errs,
		envDuration("SHUTDOWN_TIMEOUT", &c.HTTP.ShutdownTimeout),
		envDuration("EXTRACTOR_DIAL_TIMEOUT", &c.Extractor.DialTimeout),
		envInt("DATABASE_MAX_IDLE_CONNS", &c.Database.MaxIdleConns),
		envInt("DATABASE_MAX_OPEN_CONNS", &c.Database.MaxOpenConns),
	)
	if s := strings.TrimSpace(os.Getenv("MATCH_THRESHOLD")); s != "" {
		v, err := strconv.ParseFloat(s, 32)
		if err != nil {
			errs = append(errs, fmt.Errorf("MATCH_THRESHOLD: %w", err))
		} else {
			c.Matcher.Threshold = float32(v)
		}
	}
	return errors.Join(errs...)
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Matcher.Threshold < -1 || c.Matcher.Threshold > 1 {
		errs = append(errs, fmt.Errorf("matcher threshold %v outside [-1, 1]", c.Matcher.Threshold))
	}
	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http addr is required"))
	}
	if c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis addr is required"))
	}
	if c.Extractor.Addr == "" {
		errs = append(errs, errors.New("extractor addr is required"))
	}
	return errors.Join(errs...)
}

func envString(key string, dst *string) {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		*dst = value
	}
}

func envInt(key string, dst *int) error {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fmt.Errorf("%s: expected positive integer, got %q", key, s)
	}
	*dst = n
	return nil
}

func envDuration(key string, dst *time.Duration) error {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

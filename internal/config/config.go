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

	"github.com/radiusdt/stayvalue/internal/capi"
	"github.com/radiusdt/stayvalue/internal/ltv"
)

// Config holds all configuration for the stayvalue service.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	Auth       AuthConfig       `yaml:"auth"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Log        LogConfig        `yaml:"log"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Geo        GeoConfig        `yaml:"geo"`
	Meta       MetaConfig       `yaml:"meta"`
	Scoring    ScoringConfig    `yaml:"scoring"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	Env             string        `yaml:"env"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// ClickHouseConfig configures the dispatch log.
type ClickHouseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type AuthConfig struct {
	Enabled   bool     `yaml:"enabled"`
	MasterKey string   `yaml:"master_key"`
	SkipPaths []string `yaml:"skip_paths"`
}

type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled"`
	RPS     float64 `yaml:"rps"`
	Burst   int     `yaml:"burst"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

// GeoConfig configures GeoIP lookup.
type GeoConfig struct {
	Enabled      bool          `yaml:"enabled"`
	DatabasePath string        `yaml:"database_path"`
	CacheSize    int           `yaml:"cache_size"`
	CacheTTL     time.Duration `yaml:"cache_ttl"`
}

// MetaConfig configures the Meta Conversions API. The client is created
// only when both PixelID and AccessToken are set.
type MetaConfig struct {
	PixelID       string        `yaml:"pixel_id"`
	AccessToken   string        `yaml:"access_token"`
	TestEventCode string        `yaml:"test_event_code"`
	APIVersion    string        `yaml:"api_version"`
	BaseURL       string        `yaml:"base_url"`
	Timeout       time.Duration `yaml:"timeout"`
}

// Enabled reports whether the Conversions API is configured.
func (m MetaConfig) Enabled() bool {
	return m.PixelID != "" && m.AccessToken != ""
}

// ScoringConfig tunes profile scoring and event enrichment.
type ScoringConfig struct {
	DomesticCities  []string `yaml:"domestic_cities"`
	DefaultCurrency string   `yaml:"default_currency"`
	CountryCode     string   `yaml:"country_code"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			Env:             "development",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Enabled:  true,
			Host:     "localhost",
			Port:     5432,
			User:     "stayvalue",
			Password: "stayvalue_secret",
			DBName:   "marketplace",
			SSLMode:  "disable",
			MaxConns: 10,
			MinConns: 2,
		},
		Redis: RedisConfig{
			Enabled: true,
			Addr:    "localhost:6379",
		},
		ClickHouse: ClickHouseConfig{
			Addr:     "localhost:9000",
			Database: "analytics",
			Username: "default",
		},
		Auth: AuthConfig{
			Enabled:   true,
			SkipPaths: []string{"/health", "/metrics"},
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			RPS:     200,
			Burst:   50,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Path:      "/metrics",
			Namespace: "stayvalue",
		},
		Geo: GeoConfig{
			DatabasePath: "/app/data/GeoLite2-City.mmdb",
			CacheSize:    10000,
			CacheTTL:     time.Hour,
		},
		Meta: MetaConfig{
			APIVersion: capi.DefaultAPIVersion,
			BaseURL:    capi.DefaultBaseURL,
			Timeout:    capi.DefaultTimeout,
		},
		Scoring: ScoringConfig{
			DomesticCities:  append([]string(nil), ltv.DefaultDomesticCities...),
			DefaultCurrency: "EGP",
			CountryCode:     "20",
		},
	}
}

// Load builds the configuration: defaults, then the optional YAML file named
// by STAYVALUE_CONFIG_FILE, then STAYVALUE_* environment variables. A .env
// file in the working directory is loaded first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Defaults()

	if path := os.Getenv("STAYVALUE_CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Addr = getEnv("STAYVALUE_HTTP_ADDR", c.Server.Addr)
	c.Server.Env = getEnv("STAYVALUE_ENV", c.Server.Env)
	c.Server.ReadTimeout = getDurationEnv("STAYVALUE_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getDurationEnv("STAYVALUE_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.ShutdownTimeout = getDurationEnv("STAYVALUE_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)

	c.Database.Enabled = getBoolEnv("STAYVALUE_DB_ENABLED", c.Database.Enabled)
	c.Database.Host = getEnv("STAYVALUE_DB_HOST", c.Database.Host)
	c.Database.Port = getIntEnv("STAYVALUE_DB_PORT", c.Database.Port)
	c.Database.User = getEnv("STAYVALUE_DB_USER", c.Database.User)
	c.Database.Password = getEnv("STAYVALUE_DB_PASSWORD", c.Database.Password)
	c.Database.DBName = getEnv("STAYVALUE_DB_NAME", c.Database.DBName)
	c.Database.SSLMode = getEnv("STAYVALUE_DB_SSLMODE", c.Database.SSLMode)
	c.Database.MaxConns = getIntEnv("STAYVALUE_DB_MAX_CONNS", c.Database.MaxConns)
	c.Database.MinConns = getIntEnv("STAYVALUE_DB_MIN_CONNS", c.Database.MinConns)

	c.Redis.Enabled = getBoolEnv("STAYVALUE_REDIS_ENABLED", c.Redis.Enabled)
	c.Redis.Addr = getEnv("STAYVALUE_REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("STAYVALUE_REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getIntEnv("STAYVALUE_REDIS_DB", c.Redis.DB)

	c.ClickHouse.Enabled = getBoolEnv("STAYVALUE_CLICKHOUSE_ENABLED", c.ClickHouse.Enabled)
	c.ClickHouse.Addr = getEnv("STAYVALUE_CLICKHOUSE_ADDR", c.ClickHouse.Addr)
	c.ClickHouse.Database = getEnv("STAYVALUE_CLICKHOUSE_DATABASE", c.ClickHouse.Database)
	c.ClickHouse.Username = getEnv("STAYVALUE_CLICKHOUSE_USER", c.ClickHouse.Username)
	c.ClickHouse.Password = getEnv("STAYVALUE_CLICKHOUSE_PASSWORD", c.ClickHouse.Password)

	c.Auth.Enabled = getBoolEnv("STAYVALUE_AUTH_ENABLED", c.Auth.Enabled)
	c.Auth.MasterKey = getEnv("STAYVALUE_API_KEY_MASTER", c.Auth.MasterKey)
	c.Auth.SkipPaths = getSliceEnv("STAYVALUE_AUTH_SKIP_PATHS", c.Auth.SkipPaths)

	c.RateLimit.Enabled = getBoolEnv("STAYVALUE_RATE_LIMIT_ENABLED", c.RateLimit.Enabled)
	c.RateLimit.RPS = getFloatEnv("STAYVALUE_RATE_LIMIT_RPS", c.RateLimit.RPS)
	c.RateLimit.Burst = getIntEnv("STAYVALUE_RATE_LIMIT_BURST", c.RateLimit.Burst)

	c.Log.Level = getEnv("STAYVALUE_LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("STAYVALUE_LOG_FORMAT", c.Log.Format)

	c.Metrics.Enabled = getBoolEnv("STAYVALUE_METRICS_ENABLED", c.Metrics.Enabled)
	c.Metrics.Path = getEnv("STAYVALUE_METRICS_PATH", c.Metrics.Path)
	c.Metrics.Namespace = getEnv("STAYVALUE_METRICS_NAMESPACE", c.Metrics.Namespace)

	c.Geo.Enabled = getBoolEnv("STAYVALUE_GEO_ENABLED", c.Geo.Enabled)
	c.Geo.DatabasePath = getEnv("STAYVALUE_GEO_DB_PATH", c.Geo.DatabasePath)
	c.Geo.CacheSize = getIntEnv("STAYVALUE_GEO_CACHE_SIZE", c.Geo.CacheSize)
	c.Geo.CacheTTL = getDurationEnv("STAYVALUE_GEO_CACHE_TTL", c.Geo.CacheTTL)

	c.Meta.PixelID = getEnv("STAYVALUE_META_PIXEL_ID", c.Meta.PixelID)
	c.Meta.AccessToken = getEnv("STAYVALUE_META_ACCESS_TOKEN", c.Meta.AccessToken)
	c.Meta.TestEventCode = getEnv("STAYVALUE_META_TEST_EVENT_CODE", c.Meta.TestEventCode)
	c.Meta.APIVersion = getEnv("STAYVALUE_META_API_VERSION", c.Meta.APIVersion)
	c.Meta.BaseURL = getEnv("STAYVALUE_META_BASE_URL", c.Meta.BaseURL)
	c.Meta.Timeout = getDurationEnv("STAYVALUE_META_TIMEOUT", c.Meta.Timeout)

	c.Scoring.DomesticCities = getSliceEnv("STAYVALUE_DOMESTIC_CITIES", c.Scoring.DomesticCities)
	c.Scoring.DefaultCurrency = getEnv("STAYVALUE_DEFAULT_CURRENCY", c.Scoring.DefaultCurrency)
	c.Scoring.CountryCode = getEnv("STAYVALUE_COUNTRY_CODE", c.Scoring.CountryCode)
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	switch c.Server.Env {
	case "development", "staging", "production":
	default:
		return fmt.Errorf("STAYVALUE_ENV must be development, staging or production, got %q", c.Server.Env)
	}
	if c.Auth.Enabled && c.Auth.MasterKey == "" {
		return fmt.Errorf("STAYVALUE_API_KEY_MASTER is required when auth is enabled")
	}
	if (c.Meta.PixelID == "") != (c.Meta.AccessToken == "") {
		return fmt.Errorf("STAYVALUE_META_PIXEL_ID and STAYVALUE_META_ACCESS_TOKEN must be set together")
	}
	if c.RateLimit.Enabled && c.RateLimit.RPS <= 0 {
		return fmt.Errorf("STAYVALUE_RATE_LIMIT_RPS must be positive when rate limiting is enabled")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// CAPI returns the Conversions API client settings.
func (c *Config) CAPI() capi.Config {
	return capi.Config{
		BaseURL:       c.Meta.BaseURL,
		APIVersion:    c.Meta.APIVersion,
		PixelID:       c.Meta.PixelID,
		AccessToken:   c.Meta.AccessToken,
		TestEventCode: c.Meta.TestEventCode,
		Production:    c.IsProduction(),
		Timeout:       c.Meta.Timeout,
	}
}

// Helper functions for reading environment variables

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getIntEnv(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getFloatEnv(key string, def float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getSliceEnv(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				result = append(result, p)
			}
		}
		return result
	}
	return def
}

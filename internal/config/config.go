package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	Warehouse     WarehouseConfig
	Schema        SchemaConfig
	AI            AIConfig
	Audit         AuditConfig
	Cache         CacheConfig
	Observability ObservabilityConfig
	Auth          AuthConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type WarehouseConfig struct {
	DatabasePath    string
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	GoldPrefix      string
	MaxConcurrency  int
	AcquireTimeout  time.Duration
	DefaultTimeout  time.Duration
	MaxTimeout      time.Duration
	DefaultRowLimit int
	MaxRowLimit     int
}

type SchemaConfig struct {
	CatalogFile string
}

type AIConfig struct {
	GenerateEnabled bool
	BaseURL         string
	APIKey          string
	Model           string
	Temperature     float64
	Timeout         time.Duration
}

type AuditConfig struct {
	Enabled         bool
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

type CacheConfig struct {
	Enabled  bool
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

type AuthConfig struct {
	Required   bool
	StaticKeys string
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("STARQUERY_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid STARQUERY_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	if err := applyString(lookup, "STARQUERY_SERVICE_NAME", &cfg.Service.Name); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "STARQUERY_HTTP_ADDR", &cfg.HTTP.Address); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "STARQUERY_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "STARQUERY_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "STARQUERY_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "STARQUERY_WAREHOUSE_DB_PATH", &cfg.Warehouse.DatabasePath); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "STARQUERY_WAREHOUSE_ENDPOINT", &cfg.Warehouse.Endpoint); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "STARQUERY_WAREHOUSE_REGION", &cfg.Warehouse.Region); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "STARQUERY_WAREHOUSE_BUCKET", &cfg.Warehouse.Bucket); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "STARQUERY_WAREHOUSE_ACCESS_KEY", &cfg.Warehouse.AccessKeyID); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "STARQUERY_WAREHOUSE_SECRET_KEY", &cfg.Warehouse.SecretAccessKey); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "STARQUERY_WAREHOUSE_USE_SSL", &cfg.Warehouse.UseSSL); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "STARQUERY_WAREHOUSE_GOLD_PREFIX", &cfg.Warehouse.GoldPrefix); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "STARQUERY_WAREHOUSE_MAX_CONCURRENCY", &cfg.Warehouse.MaxConcurrency); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "STARQUERY_WAREHOUSE_ACQUIRE_TIMEOUT", &cfg.Warehouse.AcquireTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "STARQUERY_WAREHOUSE_DEFAULT_TIMEOUT", &cfg.Warehouse.DefaultTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "STARQUERY_WAREHOUSE_MAX_TIMEOUT", &cfg.Warehouse.MaxTimeout); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "STARQUERY_WAREHOUSE_DEFAULT_ROW_LIMIT", &cfg.Warehouse.DefaultRowLimit); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "STARQUERY_WAREHOUSE_MAX_ROW_LIMIT", &cfg.Warehouse.MaxRowLimit); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "STARQUERY_SCHEMA_CATALOG_FILE", &cfg.Schema.CatalogFile); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "STARQUERY_AI_GENERATE_ENABLED", &cfg.AI.GenerateEnabled); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "STARQUERY_AI_BASE_URL", &cfg.AI.BaseURL); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "STARQUERY_AI_API_KEY", &cfg.AI.APIKey); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "STARQUERY_AI_MODEL", &cfg.AI.Model); err != nil {
		return Config{}, err
	}
	if err := applyFloat(lookup, "STARQUERY_AI_TEMPERATURE", &cfg.AI.Temperature); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "STARQUERY_AI_TIMEOUT", &cfg.AI.Timeout); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "STARQUERY_AUDIT_ENABLED", &cfg.Audit.Enabled); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "STARQUERY_AUDIT_DSN", &cfg.Audit.DSN); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "STARQUERY_AUDIT_MAX_OPEN_CONNS", &cfg.Audit.MaxOpenConns); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "STARQUERY_AUDIT_MAX_IDLE_CONNS", &cfg.Audit.MaxIdleConns); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "STARQUERY_AUDIT_CONN_MAX_IDLE_TIME", &cfg.Audit.ConnMaxIdleTime); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "STARQUERY_AUDIT_CONN_MAX_LIFETIME", &cfg.Audit.ConnMaxLifetime); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "STARQUERY_CACHE_ENABLED", &cfg.Cache.Enabled); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "STARQUERY_CACHE_ADDR", &cfg.Cache.Address); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "STARQUERY_CACHE_PASSWORD", &cfg.Cache.Password); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "STARQUERY_CACHE_DB", &cfg.Cache.DB); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "STARQUERY_CACHE_TTL", &cfg.Cache.TTL); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "STARQUERY_LOG_JSON", &cfg.Observability.LogJSON); err != nil {
		return Config{}, err
	}
	if err := applyLogLevel(lookup, "STARQUERY_LOG_LEVEL", &cfg.Observability.LogLevel); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "STARQUERY_AUTH_REQUIRED", &cfg.Auth.Required); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "STARQUERY_AUTH_STATIC_KEYS", &cfg.Auth.StaticKeys); err != nil {
		return Config{}, err
	}

	if cfg.Service.Name == "" {
		return Config{}, fmt.Errorf("service name is required")
	}
	if cfg.HTTP.Address == "" {
		return Config{}, fmt.Errorf("http address is required")
	}
	if cfg.Warehouse.MaxRowLimit <= 0 {
		return Config{}, fmt.Errorf("warehouse max row limit must be positive")
	}
	if cfg.Warehouse.DefaultRowLimit <= 0 || cfg.Warehouse.DefaultRowLimit > cfg.Warehouse.MaxRowLimit {
		return Config{}, fmt.Errorf("warehouse default row limit must be between 1 and the max row limit")
	}
	if cfg.Warehouse.MaxConcurrency <= 0 {
		return Config{}, fmt.Errorf("warehouse max concurrency must be positive")
	}
	if cfg.Audit.Enabled && cfg.Audit.DSN == "" {
		return Config{}, fmt.Errorf("audit dsn is required when audit is enabled")
	}
	if cfg.Cache.Enabled && cfg.Cache.Address == "" {
		return Config{}, fmt.Errorf("cache address is required when cache is enabled")
	}
	return cfg, nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "starquery-api"},
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Warehouse: WarehouseConfig{
			Endpoint:        "localhost:9000",
			Region:          "us-east-1",
			Bucket:          "datalake",
			AccessKeyID:     "minio",
			SecretAccessKey: "minio123",
			UseSSL:          false,
			GoldPrefix:      "gold",
			MaxConcurrency:  8,
			AcquireTimeout:  5 * time.Second,
			DefaultTimeout:  30 * time.Second,
			MaxTimeout:      2 * time.Minute,
			DefaultRowLimit: 1000,
			MaxRowLimit:     10000,
		},
		AI: AIConfig{
			GenerateEnabled: false,
			BaseURL:         "https://api.openai.com",
			Model:           "gpt-4o-mini",
			Temperature:     0.3,
			Timeout:         15 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:         false,
			MaxOpenConns:    5,
			MaxIdleConns:    5,
			ConnMaxIdleTime: 5 * time.Minute,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Cache: CacheConfig{
			Enabled: false,
			Address: "localhost:6379",
			TTL:     5 * time.Minute,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
		Auth: AuthConfig{
			Required:   false,
			StaticKeys: "",
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18080"
		cfg.Observability.LogLevel = slog.LevelWarn
		cfg.Auth.Required = false
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Auth.Required = true
		cfg.Warehouse.UseSSL = true
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyFloat(lookup LookupFunc, key string, dst *float64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}

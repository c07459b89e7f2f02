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

const (
	ModelProviderOpenAI = "openai"
	ModelProviderGemini = "gemini"
	ModelProviderNone   = "none"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	Database      DatabaseConfig
	Model         ModelConfig
	Pipeline      PipelineConfig
	Schema        SchemaConfig
	ObjectStore   ObjectStoreConfig
	Cache         CacheConfig
	Observability ObservabilityConfig
	Auth          AuthConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig points at the recruiting MySQL database. DSN wins over the
// individual MYSQL_* settings when both are present.
type DatabaseConfig struct {
	DSN             string
	Host            string
	User            string
	Password        string
	Name            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
	MaxRows         int
}

type ModelConfig struct {
	Provider        string
	BaseURL         string
	APIKey          string
	Name            string
	Mode            string
	MaxOutputTokens int
	Seed            int64
	Timeout         time.Duration
	Project         string
	Location        string
}

type PipelineConfig struct {
	SynthesisTimeout time.Duration
	ExecutionTimeout time.Duration
}

type SchemaConfig struct {
	// Source is "embedded", "file:<path>" or "object:<key>".
	Source string
}

type ObjectStoreConfig struct {
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

type CacheConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	Prefix   string
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
	if raw, ok := lookup("RECRUITSQL_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid RECRUITSQL_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	steps := []func() error{
		func() error { return applyString(lookup, "RECRUITSQL_SERVICE_NAME", &cfg.Service.Name) },
		func() error { return applyString(lookup, "RECRUITSQL_HTTP_ADDR", &cfg.HTTP.Address) },
		func() error { return applyDuration(lookup, "RECRUITSQL_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout) },
		func() error { return applyDuration(lookup, "RECRUITSQL_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout) },
		func() error { return applyDuration(lookup, "RECRUITSQL_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout) },
		func() error { return applyDuration(lookup, "RECRUITSQL_HTTP_SHUTDOWN_TIMEOUT", &cfg.HTTP.ShutdownTimeout) },

		func() error { return applyString(lookup, "RECRUITSQL_DB_DSN", &cfg.Database.DSN) },
		func() error { return applyString(lookup, "MYSQL_HOST", &cfg.Database.Host) },
		func() error { return applyString(lookup, "MYSQL_USER", &cfg.Database.User) },
		func() error { return applyRaw(lookup, "MYSQL_PASSWORD", &cfg.Database.Password) },
		func() error { return applyString(lookup, "MYSQL_DB", &cfg.Database.Name) },
		func() error { return applyInt(lookup, "RECRUITSQL_DB_MAX_OPEN_CONNS", &cfg.Database.MaxOpenConns) },
		func() error { return applyInt(lookup, "RECRUITSQL_DB_MAX_IDLE_CONNS", &cfg.Database.MaxIdleConns) },
		func() error {
			return applyDuration(lookup, "RECRUITSQL_DB_CONN_MAX_IDLE_TIME", &cfg.Database.ConnMaxIdleTime)
		},
		func() error {
			return applyDuration(lookup, "RECRUITSQL_DB_CONN_MAX_LIFETIME", &cfg.Database.ConnMaxLifetime)
		},
		func() error { return applyInt(lookup, "RECRUITSQL_DB_MAX_ROWS", &cfg.Database.MaxRows) },

		func() error { return applyString(lookup, "RECRUITSQL_MODEL_PROVIDER", &cfg.Model.Provider) },
		func() error { return applyString(lookup, "RECRUITSQL_MODEL_BASE_URL", &cfg.Model.BaseURL) },
		func() error { return applyString(lookup, "RECRUITSQL_MODEL_API_KEY", &cfg.Model.APIKey) },
		func() error { return applyString(lookup, "RECRUITSQL_MODEL_NAME", &cfg.Model.Name) },
		func() error { return applyString(lookup, "RECRUITSQL_MODEL_MODE", &cfg.Model.Mode) },
		func() error { return applyInt(lookup, "RECRUITSQL_MODEL_MAX_OUTPUT_TOKENS", &cfg.Model.MaxOutputTokens) },
		func() error { return applyInt64(lookup, "RECRUITSQL_MODEL_SEED", &cfg.Model.Seed) },
		func() error { return applyDuration(lookup, "RECRUITSQL_MODEL_TIMEOUT", &cfg.Model.Timeout) },
		func() error { return applyString(lookup, "RECRUITSQL_MODEL_PROJECT", &cfg.Model.Project) },
		func() error { return applyString(lookup, "RECRUITSQL_MODEL_LOCATION", &cfg.Model.Location) },

		func() error {
			return applyDuration(lookup, "RECRUITSQL_PIPELINE_SYNTHESIS_TIMEOUT", &cfg.Pipeline.SynthesisTimeout)
		},
		func() error {
			return applyDuration(lookup, "RECRUITSQL_PIPELINE_EXECUTION_TIMEOUT", &cfg.Pipeline.ExecutionTimeout)
		},
		func() error { return applyString(lookup, "RECRUITSQL_SCHEMA_SOURCE", &cfg.Schema.Source) },

		func() error { return applyString(lookup, "RECRUITSQL_OBJECTSTORE_ENDPOINT", &cfg.ObjectStore.Endpoint) },
		func() error { return applyString(lookup, "RECRUITSQL_OBJECTSTORE_REGION", &cfg.ObjectStore.Region) },
		func() error { return applyString(lookup, "RECRUITSQL_OBJECTSTORE_BUCKET", &cfg.ObjectStore.Bucket) },
		func() error { return applyString(lookup, "RECRUITSQL_OBJECTSTORE_ACCESS_KEY", &cfg.ObjectStore.AccessKeyID) },
		func() error {
			return applyString(lookup, "RECRUITSQL_OBJECTSTORE_SECRET_KEY", &cfg.ObjectStore.SecretAccessKey)
		},
		func() error { return applyBool(lookup, "RECRUITSQL_OBJECTSTORE_USE_SSL", &cfg.ObjectStore.UseSSL) },
		func() error { return applyString(lookup, "RECRUITSQL_OBJECTSTORE_PREFIX", &cfg.ObjectStore.Prefix) },
		func() error {
			return applyBool(lookup, "RECRUITSQL_OBJECTSTORE_AUTO_CREATE_BUCKET", &cfg.ObjectStore.AutoCreateBucket)
		},

		func() error { return applyBool(lookup, "RECRUITSQL_CACHE_ENABLED", &cfg.Cache.Enabled) },
		func() error { return applyString(lookup, "RECRUITSQL_CACHE_ADDR", &cfg.Cache.Addr) },
		func() error { return applyRaw(lookup, "RECRUITSQL_CACHE_PASSWORD", &cfg.Cache.Password) },
		func() error { return applyInt(lookup, "RECRUITSQL_CACHE_DB", &cfg.Cache.DB) },
		func() error { return applyString(lookup, "RECRUITSQL_CACHE_PREFIX", &cfg.Cache.Prefix) },
		func() error { return applyDuration(lookup, "RECRUITSQL_CACHE_TTL", &cfg.Cache.TTL) },

		func() error { return applyBool(lookup, "RECRUITSQL_LOG_JSON", &cfg.Observability.LogJSON) },
		func() error { return applyLogLevel(lookup, "RECRUITSQL_LOG_LEVEL", &cfg.Observability.LogLevel) },
		func() error { return applyBool(lookup, "RECRUITSQL_AUTH_REQUIRED", &cfg.Auth.Required) },
		func() error { return applyString(lookup, "RECRUITSQL_AUTH_STATIC_KEYS", &cfg.Auth.StaticKeys) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return Config{}, err
		}
	}

	cfg.Model.Provider = strings.ToLower(cfg.Model.Provider)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Service.Name == "" {
		return fmt.Errorf("service name is required")
	}
	if c.HTTP.Address == "" {
		return fmt.Errorf("http address is required")
	}
	switch c.Model.Provider {
	case ModelProviderOpenAI, ModelProviderGemini, ModelProviderNone:
	default:
		return fmt.Errorf("invalid RECRUITSQL_MODEL_PROVIDER: %q", c.Model.Provider)
	}
	if c.Model.MaxOutputTokens <= 0 {
		return fmt.Errorf("RECRUITSQL_MODEL_MAX_OUTPUT_TOKENS must be positive")
	}
	if c.Database.MaxRows < 0 {
		return fmt.Errorf("RECRUITSQL_DB_MAX_ROWS must not be negative")
	}
	if c.Pipeline.SynthesisTimeout <= 0 || c.Pipeline.ExecutionTimeout <= 0 {
		return fmt.Errorf("pipeline timeouts must be positive")
	}
	if c.Cache.Enabled && c.Cache.Addr == "" {
		return fmt.Errorf("RECRUITSQL_CACHE_ADDR is required when the cache is enabled")
	}
	return nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "recruitsql-api"},
		HTTP: HTTPConfig{
			Address:         ":8000",
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    3 * time.Minute,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			Host:            "localhost:3306",
			User:            "root",
			Name:            "recruiting",
			MaxOpenConns:    10,
			MaxIdleConns:    10,
			ConnMaxIdleTime: 5 * time.Minute,
			ConnMaxLifetime: 30 * time.Minute,
			MaxRows:         10000,
		},
		Model: ModelConfig{
			Provider:        ModelProviderOpenAI,
			BaseURL:         "http://localhost:8080",
			Name:            "defog/sqlcoder-7b-2",
			Mode:            "completions",
			MaxOutputTokens: 400,
			Seed:            0,
			Timeout:         2 * time.Minute,
			Location:        "us-central1",
		},
		Pipeline: PipelineConfig{
			SynthesisTimeout: 2 * time.Minute,
			ExecutionTimeout: 30 * time.Second,
		},
		Schema: SchemaConfig{
			Source: "embedded",
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint:         "localhost:9000",
			Region:           "us-east-1",
			Bucket:           "recruitsql",
			AccessKeyID:      "minio",
			SecretAccessKey:  "miniostorage",
			UseSSL:           false,
			Prefix:           "schemas",
			AutoCreateBucket: true,
		},
		Cache: CacheConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			Prefix:  "recruitsql:",
			TTL:     24 * time.Hour,
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
		cfg.HTTP.Address = ":18000"
		cfg.Model.Provider = ModelProviderNone
		cfg.Observability.LogLevel = slog.LevelWarn
		cfg.Auth.Required = false
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Auth.Required = true
		cfg.ObjectStore.UseSSL = true
		cfg.ObjectStore.AutoCreateBucket = false
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

// applyRaw keeps surrounding whitespace; passwords may contain it.
func applyRaw(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = raw
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

func applyInt64(lookup LookupFunc, key string, dst *int64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
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

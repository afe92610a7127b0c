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
	BackendSQLite   = "sqlite"
	BackendDuckDB   = "duckdb"
	BackendPostgres = "postgres"

	QueryLogStoreFile   = "file"
	QueryLogStoreObject = "object"

	AIProviderOpenAI = "openai"
	AIProviderGemini = "gemini"
)

var defaultModels = map[string]string{
	AIProviderOpenAI: "llama-3.1-8b-instant",
	AIProviderGemini: "gemini-1.5-flash-latest",
}

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	Database      DatabaseConfig
	QueryLog      QueryLogConfig
	ObjectStore   ObjectStoreConfig
	AI            AIConfig
	Schema        SchemaConfig
	Visualize     VisualizeConfig
	Observability ObservabilityConfig
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

type DatabaseConfig struct {
	Backend      string
	SQLitePath   string
	DuckDBPath   string
	Postgres     PostgresConfig
	QueryTimeout time.Duration
}

type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

type QueryLogConfig struct {
	Store     string
	Path      string
	ObjectKey string
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

type AIConfig struct {
	Provider       string
	BaseURL        string
	APIKey         string
	Model          string
	EmbeddingModel string
	Temperature    float64
	Timeout        time.Duration
}

type SchemaConfig struct {
	TopK int
}

type VisualizeConfig struct {
	Enabled bool
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("SQLAGENT_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid SQLAGENT_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	if err := applyString(lookup, "SQLAGENT_SERVICE_NAME", &cfg.Service.Name); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLAGENT_HTTP_ADDR", &cfg.HTTP.Address); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SQLAGENT_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SQLAGENT_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SQLAGENT_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout); err != nil {
		return Config{}, err
	}
	if err := applyLower(lookup, "SQLAGENT_BACKEND", &cfg.Database.Backend); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLAGENT_SQLITE_PATH", &cfg.Database.SQLitePath); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLAGENT_DUCKDB_PATH", &cfg.Database.DuckDBPath); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLAGENT_PG_HOST", &cfg.Database.Postgres.Host); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "SQLAGENT_PG_PORT", &cfg.Database.Postgres.Port); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLAGENT_PG_USER", &cfg.Database.Postgres.User); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLAGENT_PG_PASSWORD", &cfg.Database.Postgres.Password); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLAGENT_PG_DATABASE", &cfg.Database.Postgres.Database); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLAGENT_PG_SSLMODE", &cfg.Database.Postgres.SSLMode); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SQLAGENT_QUERY_TIMEOUT", &cfg.Database.QueryTimeout); err != nil {
		return Config{}, err
	}
	if err := applyLower(lookup, "SQLAGENT_QUERYLOG_STORE", &cfg.QueryLog.Store); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLAGENT_QUERYLOG_PATH", &cfg.QueryLog.Path); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLAGENT_QUERYLOG_OBJECT_KEY", &cfg.QueryLog.ObjectKey); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLAGENT_OBJECTSTORE_ENDPOINT", &cfg.ObjectStore.Endpoint); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLAGENT_OBJECTSTORE_REGION", &cfg.ObjectStore.Region); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLAGENT_OBJECTSTORE_BUCKET", &cfg.ObjectStore.Bucket); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLAGENT_OBJECTSTORE_ACCESS_KEY", &cfg.ObjectStore.AccessKeyID); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLAGENT_OBJECTSTORE_SECRET_KEY", &cfg.ObjectStore.SecretAccessKey); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "SQLAGENT_OBJECTSTORE_USE_SSL", &cfg.ObjectStore.UseSSL); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLAGENT_OBJECTSTORE_PREFIX", &cfg.ObjectStore.Prefix); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "SQLAGENT_OBJECTSTORE_AUTO_CREATE_BUCKET", &cfg.ObjectStore.AutoCreateBucket); err != nil {
		return Config{}, err
	}
	if err := applyLower(lookup, "SQLAGENT_AI_PROVIDER", &cfg.AI.Provider); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLAGENT_AI_BASE_URL", &cfg.AI.BaseURL); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLAGENT_AI_API_KEY", &cfg.AI.APIKey); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLAGENT_AI_MODEL", &cfg.AI.Model); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLAGENT_AI_EMBEDDING_MODEL", &cfg.AI.EmbeddingModel); err != nil {
		return Config{}, err
	}
	if cfg.AI.Model == "" {
		cfg.AI.Model = defaultModels[cfg.AI.Provider]
	}
	if err := applyFloat(lookup, "SQLAGENT_AI_TEMPERATURE", &cfg.AI.Temperature); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SQLAGENT_AI_TIMEOUT", &cfg.AI.Timeout); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "SQLAGENT_SCHEMA_TOP_K", &cfg.Schema.TopK); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "SQLAGENT_VISUALIZE_ENABLED", &cfg.Visualize.Enabled); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "SQLAGENT_LOG_JSON", &cfg.Observability.LogJSON); err != nil {
		return Config{}, err
	}
	if err := applyLogLevel(lookup, "SQLAGENT_LOG_LEVEL", &cfg.Observability.LogLevel); err != nil {
		return Config{}, err
	}

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
	switch c.Database.Backend {
	case BackendSQLite:
		if c.Database.SQLitePath == "" {
			return fmt.Errorf("SQLAGENT_SQLITE_PATH is required for the sqlite backend")
		}
	case BackendDuckDB:
		if c.Database.DuckDBPath == "" {
			return fmt.Errorf("SQLAGENT_DUCKDB_PATH is required for the duckdb backend")
		}
	case BackendPostgres:
		if c.Database.Postgres.Host == "" || c.Database.Postgres.Database == "" {
			return fmt.Errorf("SQLAGENT_PG_HOST and SQLAGENT_PG_DATABASE are required for the postgres backend")
		}
	default:
		return fmt.Errorf("invalid SQLAGENT_BACKEND: %q", c.Database.Backend)
	}
	switch c.QueryLog.Store {
	case QueryLogStoreFile, QueryLogStoreObject:
	default:
		return fmt.Errorf("invalid SQLAGENT_QUERYLOG_STORE: %q", c.QueryLog.Store)
	}
	switch c.AI.Provider {
	case AIProviderOpenAI, AIProviderGemini:
	default:
		return fmt.Errorf("invalid SQLAGENT_AI_PROVIDER: %q", c.AI.Provider)
	}
	if c.Schema.TopK <= 0 {
		return fmt.Errorf("SQLAGENT_SCHEMA_TOP_K must be > 0")
	}
	return nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "sqlagent-api"},
		HTTP: HTTPConfig{
			Address:      ":8000",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 90 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Backend:    BackendSQLite,
			SQLitePath: "data/chinook.db",
			DuckDBPath: "data/chinook.duckdb",
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				User:     "postgres",
				Database: "chinook",
				SSLMode:  "disable",
			},
			QueryTimeout: 30 * time.Second,
		},
		QueryLog: QueryLogConfig{
			Store:     QueryLogStoreFile,
			Path:      "query_logs.json",
			ObjectKey: "query_logs.json",
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint:         "localhost:9000",
			Region:           "us-east-1",
			Bucket:           "sqlagent",
			AccessKeyID:      "minio",
			SecretAccessKey:  "miniostorage",
			UseSSL:           false,
			Prefix:           "",
			AutoCreateBucket: true,
		},
		AI: AIConfig{
			Provider:    AIProviderOpenAI,
			BaseURL:     "https://api.groq.com/openai",
			Temperature: 0,
			Timeout:     30 * time.Second,
		},
		Schema: SchemaConfig{
			TopK: 4,
		},
		Visualize: VisualizeConfig{
			Enabled: true,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18000"
		cfg.Observability.LogLevel = slog.LevelWarn
		cfg.Visualize.Enabled = false
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Database.Postgres.SSLMode = "require"
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

func applyLower(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.ToLower(strings.TrimSpace(raw))
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
	switch strings.ToLower(strings.TrimSpace(raw)) {
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

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/Rrens/nl2sql/internal/domain"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Snowflake  SnowflakeConfig  `mapstructure:"snowflake"`
	MCP        MCPConfig        `mapstructure:"mcp"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Security   SecurityConfig   `mapstructure:"security"`
	Session    SessionConfig    `mapstructure:"session"`
	Query      QueryConfig      `mapstructure:"query"`
	Dictionary DictionaryConfig `mapstructure:"dictionary"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// DatabaseConfig points at the Postgres instance holding session snapshots
// and the transcript.
type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AuthConfig enables session tokens when JWTSecret is set.
type AuthConfig struct {
	JWTSecret       string        `mapstructure:"jwt_secret"`
	SessionTokenTTL time.Duration `mapstructure:"session_token_ttl"`
}

type SnowflakeConfig struct {
	Account   string `mapstructure:"account"`
	User      string `mapstructure:"user"`
	Password  string `mapstructure:"password"`
	Warehouse string `mapstructure:"warehouse"`
	Database  string `mapstructure:"database"`
	Schema    string `mapstructure:"schema"`
	Role      string `mapstructure:"role"`
}

type MCPConfig struct {
	Backend         string        `mapstructure:"backend" validate:"oneof=snowflake postgres mysql sqlite"`
	Endpoint        string        `mapstructure:"endpoint"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	ReleasePrevious bool          `mapstructure:"release_previous"`
	Direct          DirectConfig  `mapstructure:"direct"`
}

// DirectConfig holds the defaults of a directly attached SQL database.
type DirectConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	Schema   string `mapstructure:"schema"`
	SSLMode  string `mapstructure:"ssl_mode"`
	Path     string `mapstructure:"path"`
}

type LLMConfig struct {
	DefaultProvider string          `mapstructure:"default_provider"`
	Model           string          `mapstructure:"model"`
	Temperature     float64         `mapstructure:"temperature" validate:"min=0,max=2"`
	MaxTokens       int             `mapstructure:"max_tokens"`
	Timeout         time.Duration   `mapstructure:"timeout"`
	ClassifyIntents bool            `mapstructure:"classify_intents"`
	OpenAI          OpenAIConfig    `mapstructure:"openai"`
	Anthropic       AnthropicConfig `mapstructure:"anthropic"`
	Ollama          OllamaConfig    `mapstructure:"ollama"`
	DeepSeek        DeepSeekConfig  `mapstructure:"deepseek"`
	Gemini          GeminiConfig    `mapstructure:"gemini"`
}

type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type OllamaConfig struct {
	Host         string `mapstructure:"host"`
	DefaultModel string `mapstructure:"default_model"`
}

type DeepSeekConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type SecurityConfig struct {
	MaxRows       int             `mapstructure:"max_rows" validate:"min=1"`
	QueryTimeout  time.Duration   `mapstructure:"query_timeout"`
	EncryptionKey string          `mapstructure:"encryption_key"`
	RateLimit     RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
	Burst             int `mapstructure:"burst"`
}

type SessionConfig struct {
	IdleTimeout   time.Duration `mapstructure:"idle_timeout"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	HistoryWindow int           `mapstructure:"history_window" validate:"min=0"`
	HistoryLimit  int           `mapstructure:"history_limit" validate:"min=1"`
	SampleRows    int           `mapstructure:"sample_rows" validate:"min=0"`
	SnapshotStore string        `mapstructure:"snapshot_store" validate:"oneof=none redis postgres"`
	SnapshotTTL   time.Duration `mapstructure:"snapshot_ttl"`
}

type QueryConfig struct {
	MaxContextTables int           `mapstructure:"max_context_tables" validate:"min=1"`
	Concurrency      int           `mapstructure:"concurrency" validate:"min=1"`
	ExplainErrors    bool          `mapstructure:"explain_errors"`
	SchemaCacheTTL   time.Duration `mapstructure:"schema_cache_ttl"`
}

type DictionaryConfig struct {
	DefaultFile string      `mapstructure:"default_file"`
	Dir         string      `mapstructure:"dir"`
	Concurrency int         `mapstructure:"concurrency" validate:"min=1"`
	Stage       StageConfig `mapstructure:"stage"`
	Mongo       MongoConfig `mapstructure:"mongo"`
}

type StageConfig struct {
	Endpoint         string `mapstructure:"endpoint"`
	Region           string `mapstructure:"region"`
	Bucket           string `mapstructure:"bucket"`
	AccessKey        string `mapstructure:"access_key"`
	SecretKey        string `mapstructure:"secret_key"`
	UseSSL           bool   `mapstructure:"use_ssl"`
	Prefix           string `mapstructure:"prefix"`
	AutoCreateBucket bool   `mapstructure:"auto_create_bucket"`
}

// Enabled reports whether a stage bucket is configured.
func (c StageConfig) Enabled() bool {
	return c.Endpoint != "" && c.Bucket != ""
}

type MongoConfig struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

type LoggingConfig struct {
	Level  string        `mapstructure:"level" validate:"oneof=trace debug info warn error"`
	Format string        `mapstructure:"format" validate:"oneof=json console"`
	File   LogFileConfig `mapstructure:"file"`
}

// LogFileConfig enables a rotating log file when Path is set.
type LogFileConfig struct {
	Path         string        `mapstructure:"path"`
	MaxAge       time.Duration `mapstructure:"max_age"`
	RotationTime time.Duration `mapstructure:"rotation_time"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// DefaultConnection returns the connection descriptor callers start from.
// Explicit credentials are merged on top of it.
func (c *Config) DefaultConnection() domain.ConnectionDescriptor {
	backend := domain.Backend(c.MCP.Backend)
	if backend == "" || backend == domain.BackendSnowflake {
		return domain.ConnectionDescriptor{
			Backend:   domain.BackendSnowflake,
			Account:   c.Snowflake.Account,
			User:      c.Snowflake.User,
			Password:  c.Snowflake.Password,
			Warehouse: c.Snowflake.Warehouse,
			Database:  c.Snowflake.Database,
			Schema:    c.Snowflake.Schema,
			Role:      c.Snowflake.Role,
			Endpoint:  c.MCP.Endpoint,
		}
	}

	d := c.MCP.Direct
	return domain.ConnectionDescriptor{
		Backend:  backend,
		User:     d.User,
		Password: d.Password,
		Database: d.Database,
		Schema:   d.Schema,
		Host:     d.Host,
		Port:     d.Port,
		SSLMode:  d.SSLMode,
		Path:     d.Path,
	}
}

// Validate checks the struct tags of every section.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config %s: failed %q check", fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Session.SnapshotStore == "redis" && !c.Redis.Enabled {
		return fmt.Errorf("invalid config: session.snapshot_store is redis but redis is disabled")
	}
	if c.Session.SnapshotStore == "postgres" && !c.Database.Enabled {
		return fmt.Errorf("invalid config: session.snapshot_store is postgres but database is disabled")
	}
	return nil
}

// Load reads configuration from file and environment variables
func Load() (*Config, error) {
	v := viper.New()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./configs/config.yaml"
	}

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and env vars
	}

	v.AutomaticEnv()
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.request_timeout", "110s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Database
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "nl2sql")
	v.SetDefault("database.database", "nl2sql")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)

	// Redis
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	// Auth
	v.SetDefault("auth.session_token_ttl", "24h")

	// MCP
	v.SetDefault("mcp.backend", "snowflake")
	v.SetDefault("mcp.endpoint", "http://localhost:8000/mcp")
	v.SetDefault("mcp.connect_timeout", "30s")
	v.SetDefault("mcp.release_previous", true)

	// LLM
	v.SetDefault("llm.default_provider", "openai")
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.max_tokens", 4000)
	v.SetDefault("llm.timeout", "60s")
	v.SetDefault("llm.classify_intents", true)
	v.SetDefault("llm.openai.model", "gpt-4")
	v.SetDefault("llm.ollama.host", "http://localhost:11434")
	v.SetDefault("llm.ollama.default_model", "llama3")
	v.SetDefault("llm.gemini.model", "gemini-1.5-flash")

	// Security
	v.SetDefault("security.max_rows", 1000)
	v.SetDefault("security.query_timeout", "30s")
	v.SetDefault("security.rate_limit.requests_per_minute", 60)
	v.SetDefault("security.rate_limit.burst", 10)

	// Session
	v.SetDefault("session.idle_timeout", "60m")
	v.SetDefault("session.sweep_interval", "1m")
	v.SetDefault("session.history_window", 5)
	v.SetDefault("session.history_limit", 50)
	v.SetDefault("session.sample_rows", 5)
	v.SetDefault("session.snapshot_store", "none")
	v.SetDefault("session.snapshot_ttl", "720h")

	// Query
	v.SetDefault("query.max_context_tables", 20)
	v.SetDefault("query.concurrency", 4)
	v.SetDefault("query.explain_errors", true)
	v.SetDefault("query.schema_cache_ttl", "1h")

	// Dictionary
	v.SetDefault("dictionary.default_file", "data_dictionary.yaml")
	v.SetDefault("dictionary.dir", ".")
	v.SetDefault("dictionary.concurrency", 4)
	v.SetDefault("dictionary.stage.prefix", "dictionaries")
	v.SetDefault("dictionary.mongo.database", "nl2sql")
	v.SetDefault("dictionary.mongo.collection", "dictionaries")

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file.max_age", "168h")
	v.SetDefault("logging.file.rotation_time", "24h")

	// Metrics
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

func bindEnvVars(v *viper.Viper) {
	// Database
	v.BindEnv("database.password", "POSTGRES_PASSWORD")

	// Redis
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// Auth
	v.BindEnv("auth.jwt_secret", "JWT_SECRET")

	// Snowflake
	v.BindEnv("snowflake.account", "SNOWFLAKE_ACCOUNT")
	v.BindEnv("snowflake.user", "SNOWFLAKE_USER")
	v.BindEnv("snowflake.password", "SNOWFLAKE_PASSWORD")
	v.BindEnv("snowflake.warehouse", "SNOWFLAKE_WAREHOUSE")
	v.BindEnv("snowflake.database", "SNOWFLAKE_DATABASE")
	v.BindEnv("snowflake.schema", "SNOWFLAKE_SCHEMA")
	v.BindEnv("snowflake.role", "SNOWFLAKE_ROLE")
	v.BindEnv("mcp.endpoint", "MCP_ENDPOINT")

	// LLM API Keys
	v.BindEnv("llm.model", "LLM_MODEL")
	v.BindEnv("llm.openai.api_key", "OPENAI_API_KEY")
	v.BindEnv("llm.anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("llm.deepseek.api_key", "DEEPSEEK_API_KEY")
	v.BindEnv("llm.gemini.api_key", "GEMINI_API_KEY")
	v.BindEnv("llm.ollama.host", "OLLAMA_HOST")

	// Snapshots
	v.BindEnv("security.encryption_key", "SESSION_ENCRYPTION_KEY")

	// Document stores
	v.BindEnv("dictionary.stage.access_key", "STAGE_ACCESS_KEY")
	v.BindEnv("dictionary.stage.secret_key", "STAGE_SECRET_KEY")
	v.BindEnv("dictionary.mongo.uri", "MONGO_URI")
}

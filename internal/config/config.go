package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the application configuration.
type Config struct {
	App      AppConfig
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	AI       AIConfig
	Auth     AuthConfig
	Chat     ChatConfig
	Storage  StorageConfig
}

// AppConfig holds identity and debug settings.
type AppConfig struct {
	Name        string
	Environment string
	Version     string
	Debug       bool
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host         string
	Port         int
	Mode         string
	ReadTimeout  int
	WriteTimeout int
}

// DatabaseConfig holds the Postgres connection settings.
type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
}

// RedisConfig holds the Redis connection settings. An empty Host
// disables Redis; the idempotency store falls back to memory.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// AIConfig selects and configures the responder model provider.
type AIConfig struct {
	Provider string
	OpenAI   OpenAIConfig
	DeepSeek DeepSeekConfig
}

// OpenAIConfig holds OpenAI-compatible provider settings.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout int
}

// DeepSeekConfig holds DeepSeek provider settings.
type DeepSeekConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout int
}

// AuthConfig holds staff console authentication settings. The seed
// account is created on first run when the staff table is empty.
type AuthConfig struct {
	JWTSecret       string
	TokenTTLMinutes int
	SeedUsername    string
	SeedPassword    string
	SeedDisplayName string
}

// ChatConfig holds session handoff policy knobs.
type ChatConfig struct {
	SessionIdleMinutes    int // no activity for this long closes the session
	SweepIntervalSeconds  int
	IdempotencyTTLSeconds int
}

// StorageConfig holds the attachment storage settings.
type StorageConfig struct {
	BasePath  string
	URLPrefix string
}

var globalConfig *Config

// Load reads the config file at path (yaml) and applies ZAX_ env overrides.
// An empty path uses built-in defaults.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	setDefaults(v)

	v.SetEnvPrefix("ZAX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	globalConfig = &cfg
	return &cfg, nil
}

// Get returns the loaded global config.
func Get() *Config {
	if globalConfig == nil {
		panic("config not loaded")
	}
	return globalConfig
}

// GetDSN returns the Postgres connection string.
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// GetAddr returns the HTTP listen address.
func (c *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetAddr returns the Redis address, or "" when Redis is disabled.
func (c *RedisConfig) GetAddr() string {
	if c.Host == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func setDefaults(v *viper.Viper) {
	// App
	v.SetDefault("app.name", "zax-backend")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.debug", true)

	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)

	// Database
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "zax")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.maxOpenConns", 25)
	v.SetDefault("database.maxIdleConns", 5)
	v.SetDefault("database.maxLifetime", 300)

	// Redis
	v.SetDefault("redis.host", "")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	// AI
	v.SetDefault("ai.provider", "openai")
	v.SetDefault("ai.openai.baseUrl", "https://api.openai.com/v1")
	v.SetDefault("ai.openai.model", "gpt-4o-mini")
	v.SetDefault("ai.deepseek.baseUrl", "https://api.deepseek.com/v1")
	v.SetDefault("ai.deepseek.model", "deepseek-chat")

	// Auth
	v.SetDefault("auth.tokenTTLMinutes", 480)
	v.SetDefault("auth.seedUsername", "zra_admin")
	v.SetDefault("auth.seedDisplayName", "ZRA Support")

	// Chat
	v.SetDefault("chat.sessionIdleMinutes", 30)
	v.SetDefault("chat.sweepIntervalSeconds", 60)
	v.SetDefault("chat.idempotencyTTLSeconds", 300)

	// Storage
	v.SetDefault("storage.basePath", "./data/uploads")
	v.SetDefault("storage.urlPrefix", "/api/files")
}

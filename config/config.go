package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the PipeWise backend.
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Databases DatabasesConfig `mapstructure:"databases"`
	Agents    AgentsConfig    `mapstructure:"agents"`
}

// GeneralConfig contains server-wide settings.
type GeneralConfig struct {
	Listen    string `mapstructure:"listen"`
	JWTSecret string `mapstructure:"jwt_secret"`
	Debug     bool   `mapstructure:"debug"`
	LogLevel  string `mapstructure:"log_level"`
	Env       string `mapstructure:"env"`
}

// ProvidersConfig groups external API credentials.
type ProvidersConfig struct {
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	Salesforce SalesforceConfig `mapstructure:"salesforce"`
	HubSpot    HubSpotConfig    `mapstructure:"hubspot"`
}

// OpenAIConfig contains chat-completion settings.
type OpenAIConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// SalesforceConfig contains Salesforce OAuth and REST settings.
// QueryVersion and SObjectVersion differ because the integration was
// built against v58 reads and v61 writes.
type SalesforceConfig struct {
	ClientID       string        `mapstructure:"client_id"`
	ClientSecret   string        `mapstructure:"client_secret"`
	TokenURL       string        `mapstructure:"token_url"`
	QueryVersion   string        `mapstructure:"query_version"`
	SObjectVersion string        `mapstructure:"sobject_version"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// HubSpotConfig contains HubSpot OAuth and REST settings.
type HubSpotConfig struct {
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	BaseURL      string        `mapstructure:"base_url"`
	TokenURL     string        `mapstructure:"token_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// DatabasesConfig contains Postgres and Redis connection settings.
type DatabasesConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig contains Postgres connection settings.
type PostgresConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("databases.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("databases.postgres.dbname required when url is not provided")
	}
	return nil
}

// DSN builds a postgres:// connection string from the configured parts.
func (p PostgresConfig) DSN() (string, error) {
	if p.URL != "" {
		return p.URL, nil
	}
	if err := p.Validate(); err != nil {
		return "", err
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl), nil
}

// RedisConfig contains Redis connection and cache settings.
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("databases.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("databases.redis.port required")
	}
	return nil
}

// Addr returns host:port for the redis client.
func (r RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}

// AgentsConfig contains analysis pipeline settings.
type AgentsConfig struct {
	BatchLimit          int           `mapstructure:"batch_limit"`
	MaxConcurrent       int           `mapstructure:"max_concurrent"`
	ConfidenceThreshold float64       `mapstructure:"confidence_threshold"`
	TokenRefreshWindow  time.Duration `mapstructure:"token_refresh_window"`
}

// Normalize applies defaults for unset agent values. The batch limit is
// capped at 50 records per run regardless of configuration.
func (a AgentsConfig) Normalize() AgentsConfig {
	if a.BatchLimit <= 0 || a.BatchLimit > 50 {
		a.BatchLimit = 50
	}
	if a.MaxConcurrent <= 0 {
		a.MaxConcurrent = 4
	}
	if a.ConfidenceThreshold <= 0 {
		a.ConfidenceThreshold = 0.7
	}
	if a.TokenRefreshWindow <= 0 {
		a.TokenRefreshWindow = 5 * time.Minute
	}
	return a
}

// LoadConfig loads config from file (JSON) with PIPEWISE_* env overrides.
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")
	viper.SetDefault("general.listen", ":10010")
	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("providers.openai.base_url", "https://api.openai.com/v1")
	viper.SetDefault("providers.openai.model", "gpt-4o-mini")
	viper.SetDefault("providers.openai.temperature", 0.3)
	viper.SetDefault("providers.openai.max_tokens", 1024)
	viper.SetDefault("providers.openai.timeout", 60*time.Second)
	viper.SetDefault("providers.salesforce.token_url", "https://login.salesforce.com/services/oauth2/token")
	viper.SetDefault("providers.salesforce.query_version", "v58.0")
	viper.SetDefault("providers.salesforce.sobject_version", "v61.0")
	viper.SetDefault("providers.salesforce.timeout", 30*time.Second)
	viper.SetDefault("providers.hubspot.base_url", "https://api.hubapi.com")
	viper.SetDefault("providers.hubspot.token_url", "https://api.hubapi.com/oauth/v1/token")
	viper.SetDefault("providers.hubspot.timeout", 30*time.Second)
	viper.SetDefault("databases.redis.cache_ttl", 10*time.Minute)
	viper.SetDefault("agents.batch_limit", 50)
	viper.SetDefault("agents.max_concurrent", 4)
	viper.SetDefault("agents.confidence_threshold", 0.7)
	viper.SetDefault("agents.token_refresh_window", 5*time.Minute)

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("PIPEWISE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
	config.Agents = config.Agents.Normalize()

	if err := config.Databases.Postgres.Validate(); err != nil {
		panic(err)
	}
	if err := config.Databases.Redis.Validate(); err != nil {
		panic(err)
	}
	return &config
}

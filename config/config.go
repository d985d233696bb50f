package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrInvalidConfig      = errors.New("invalid configuration")
)

// Default Hero cloud settings; overridable for testing against fakes
const (
	DefaultBaseURL      = "https://cloud.herohealth.com"
	DefaultLoginURL     = "https://id.herohealth.com/login/"
	DefaultTokenURL     = "https://id.herohealth.com/o/token/"
	DefaultClientID     = "sGNw0O6padHYWwSWIon21jt1QqEYAkmZLYUps60L"
	DefaultRedirectURI  = "heroapp://auth"
	DefaultScanInterval = 300 // seconds; medication events are time-sensitive
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Security SecurityConfig `json:"security"`
	Logging  LoggingConfig  `json:"logging"`
	Hero     HeroConfig     `json:"hero"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `json:"path"`
}

// SecurityConfig contains security settings. APIKey may be a plain value or
// a bcrypt hash.
type SecurityConfig struct {
	APIKey string `json:"api_key"`
}

// LoggingConfig contains log output settings
type LoggingConfig struct {
	Format string `json:"format"` // "json" or "text"
	Level  string `json:"level"`
}

// HeroConfig contains Hero cloud API settings
type HeroConfig struct {
	BaseURL             string `json:"base_url"`
	LoginURL            string `json:"login_url"`
	TokenURL            string `json:"token_url"`
	ClientID            string `json:"client_id"`
	RedirectURI         string `json:"redirect_uri"`
	ScanIntervalSeconds int    `json:"scan_interval_seconds"`
}

// Validate validates the configuration and applies defaults
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: invalid server port", ErrInvalidConfig)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("%w: database path is required", ErrInvalidConfig)
	}

	if c.Security.APIKey == "" {
		return fmt.Errorf("%w: API key is required", ErrInvalidConfig)
	}

	if c.Hero.BaseURL == "" {
		c.Hero.BaseURL = DefaultBaseURL
	}
	if c.Hero.LoginURL == "" {
		c.Hero.LoginURL = DefaultLoginURL
	}
	if c.Hero.TokenURL == "" {
		c.Hero.TokenURL = DefaultTokenURL
	}
	if c.Hero.ClientID == "" {
		c.Hero.ClientID = DefaultClientID
	}
	if c.Hero.RedirectURI == "" {
		c.Hero.RedirectURI = DefaultRedirectURI
	}
	if c.Hero.ScanIntervalSeconds <= 0 {
		c.Hero.ScanIntervalSeconds = DefaultScanInterval
	}

	return nil
}

// Load loads configuration from a JSON file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigFileNotFound
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadFromEnv loads configuration from environment variables
// This is useful for containerized deployments
func LoadFromEnv() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Host: getEnv("HEROWATCH_HOST", "0.0.0.0"),
			Port: getEnvInt("HEROWATCH_PORT", 8080),
		},
		Database: DatabaseConfig{
			Path: getEnv("HEROWATCH_DB_PATH", "./herowatch.db"),
		},
		Security: SecurityConfig{
			APIKey: getEnv("HEROWATCH_API_KEY", ""),
		},
		Logging: LoggingConfig{
			Format: getEnv("HEROWATCH_LOG_FORMAT", "json"),
			Level:  getEnv("HEROWATCH_LOG_LEVEL", "info"),
		},
		Hero: HeroConfig{
			BaseURL:             getEnv("HEROWATCH_HERO_BASE_URL", DefaultBaseURL),
			LoginURL:            getEnv("HEROWATCH_HERO_LOGIN_URL", DefaultLoginURL),
			TokenURL:            getEnv("HEROWATCH_HERO_TOKEN_URL", DefaultTokenURL),
			ClientID:            getEnv("HEROWATCH_HERO_CLIENT_ID", DefaultClientID),
			RedirectURI:         getEnv("HEROWATCH_HERO_REDIRECT_URI", DefaultRedirectURI),
			ScanIntervalSeconds: getEnvInt("HEROWATCH_SCAN_INTERVAL", DefaultScanInterval),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intVal int
		fmt.Sscanf(value, "%d", &intVal)
		return intVal
	}
	return defaultValue
}

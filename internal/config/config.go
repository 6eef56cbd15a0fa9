// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverBadger = "badger"
	DriverMongo  = "mongo"
)

// Config holds the application configuration.
type Config struct {
	App       AppConfig
	Logger    LoggerConfig
	Data      DataConfig
	Server    ServerConfig
	Store     StoreConfig
	Auth      AuthConfig
	Mail      MailConfig
	RateLimit RateLimitConfig
	Search    SearchConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// IsProduction reports whether the app runs in production mode.
func (a AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// IsDevelopment reports whether the app runs in development mode.
func (a AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// DataConfig holds the local data directory (embedded store, search index, auth key).
type DataConfig struct {
	BasePath string
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Port         string        // Server port (default: 3000)
	PublicURL    string        // Optional; reset links fall back to the request host
	ReadTimeout  time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout time.Duration // HTTP write timeout (default: 15s)
	IdleTimeout  time.Duration // HTTP idle timeout (default: 60s)
	MaxBodyBytes int64         // Request body limit (default: 10KiB)
	CORSOrigins  []string
}

// StoreConfig selects and configures the document store.
type StoreConfig struct {
	Driver        string // badger or mongo
	MongoURI      string
	MongoDatabase string
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	// PASETO v4 symmetric key (32 bytes). Loaded from AUTH_TOKEN_KEY or {data}/auth.key.
	TokenKey       []byte
	TokenDuration  time.Duration // default 90 days
	CookieDuration time.Duration // default 90 days
}

// MailConfig holds outgoing email configuration. An empty Host logs mail instead of sending it.
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// RateLimitConfig holds the per-client request budget for /api.
type RateLimitConfig struct {
	Requests      int
	Window        time.Duration
	RedisAddr     string // empty keeps counters in process
	RedisPassword string
	RedisDB       int

	// Credential routes (login, signup, password reset) are also throttled
	// per client with a token bucket. Zero AuthPerMinute disables it.
	AuthPerMinute int
	AuthBurst     int
}

// SearchConfig toggles the full-text tour index.
type SearchConfig struct {
	Enabled bool
}

// LoadConfig loads configuration from os.Args. See Load.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load builds configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("tourbook", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := fs.String("data-path", "", "Base path for local data")

	serverPort := fs.String("port", "", "Server port (default: 3000)")
	publicURL := fs.String("public-url", "", "Public base URL used in emailed links")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")

	storeDriver := fs.String("store", "", "Document store driver (badger, mongo)")
	mongoURI := fs.String("mongo-uri", "", "MongoDB connection URI")
	mongoDatabase := fs.String("mongo-database", "", "MongoDB database name")

	tokenDuration := fs.String("token-duration", "", "Session token lifetime (default: 2160h)")

	smtpHost := fs.String("smtp-host", "", "SMTP host (empty logs mail instead)")
	redisAddr := fs.String("redis-addr", "", "Redis address for shared rate limiting")

	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	// Missing .env files are fine; existing variables win over file values.
	_ = godotenv.Load(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Data: DataConfig{
			BasePath: getConfigValue(*dataPath, "DATA_PATH", ""),
		},
		Server: ServerConfig{
			Port:         getConfigValue(*serverPort, "PORT", "3000"),
			PublicURL:    strings.TrimRight(getConfigValue(*publicURL, "PUBLIC_URL", ""), "/"),
			MaxBodyBytes: int64(getIntConfigValue("", "MAX_BODY_BYTES", 10*1024)),
			CORSOrigins:  getListConfigValue("CORS_ORIGINS", []string{"*"}),
		},
		Store: StoreConfig{
			Driver:        getConfigValue(*storeDriver, "STORE_DRIVER", DriverBadger),
			MongoURI:      getConfigValue(*mongoURI, "MONGO_URI", ""),
			MongoDatabase: getConfigValue(*mongoDatabase, "MONGO_DATABASE", "tourbook"),
		},
		Mail: MailConfig{
			Host:     getConfigValue(*smtpHost, "SMTP_HOST", ""),
			Port:     getIntConfigValue("", "SMTP_PORT", 587),
			Username: getConfigValue("", "SMTP_USERNAME", ""),
			Password: getConfigValue("", "SMTP_PASSWORD", ""),
			From:     getConfigValue("", "MAIL_FROM", "Tourbook <hello@tourbook.io>"),
		},
		RateLimit: RateLimitConfig{
			Requests:      getIntConfigValue("", "RATE_LIMIT_REQUESTS", 100),
			RedisAddr:     getConfigValue(*redisAddr, "REDIS_ADDR", ""),
			RedisPassword: getConfigValue("", "REDIS_PASSWORD", ""),
			RedisDB:       getIntConfigValue("", "REDIS_DB", 0),
			AuthPerMinute: getIntConfigValue("", "AUTH_RATE_LIMIT_PER_MINUTE", 10),
			AuthBurst:     getIntConfigValue("", "AUTH_RATE_LIMIT_BURST", 5),
		},
		Search: SearchConfig{
			Enabled: getBoolConfigValue("", "SEARCH_ENABLED", true),
		},
	}

	durations := []struct {
		flagValue string
		envKey    string
		def       string
		dst       *time.Duration
	}{
		{*readTimeout, "SERVER_READ_TIMEOUT", "15s", &cfg.Server.ReadTimeout},
		{*writeTimeout, "SERVER_WRITE_TIMEOUT", "15s", &cfg.Server.WriteTimeout},
		{*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s", &cfg.Server.IdleTimeout},
		{*tokenDuration, "AUTH_TOKEN_DURATION", "2160h", &cfg.Auth.TokenDuration},
		{"", "AUTH_COOKIE_DURATION", "2160h", &cfg.Auth.CookieDuration},
		{"", "RATE_LIMIT_WINDOW", "1h", &cfg.RateLimit.Window},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flagValue, d.envKey, d.def)
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", d.envKey, raw, err)
		}
		*d.dst = parsed
	}

	if keyHex := os.Getenv("AUTH_TOKEN_KEY"); keyHex != "" {
		key, err := hex.DecodeString(keyHex)
		if err != nil {
			return nil, fmt.Errorf("invalid AUTH_TOKEN_KEY: %w", err)
		}
		cfg.Auth.TokenKey = key
	}

	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	switch c.Store.Driver {
	case DriverBadger:
		if c.Data.BasePath == "" {
			return errors.New("data path cannot be empty for the badger store")
		}
	case DriverMongo:
		if c.Store.MongoURI == "" {
			return errors.New("MONGO_URI is required for the mongo store")
		}
	default:
		return fmt.Errorf("invalid store driver: %s (must be badger or mongo)", c.Store.Driver)
	}

	if c.Auth.TokenKey != nil && len(c.Auth.TokenKey) != 32 {
		return fmt.Errorf("AUTH_TOKEN_KEY must decode to 32 bytes, got %d", len(c.Auth.TokenKey))
	}

	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		return errors.New("rate limit requests and window must be positive")
	}
	if c.RateLimit.AuthPerMinute < 0 || (c.RateLimit.AuthPerMinute > 0 && c.RateLimit.AuthBurst <= 0) {
		return errors.New("auth rate limit must be zero (disabled) or positive with a positive burst")
	}

	return nil
}

// Warnings lists settings that are valid but unsafe for the environment.
func (c *Config) Warnings() []string {
	var warnings []string
	if c.App.IsProduction() && c.Server.PublicURL == "" {
		warnings = append(warnings, "PUBLIC_URL is not set; password reset links will use the request Host header")
	}
	return warnings
}

// expandPath expands ~ and makes the path absolute.
// If path is empty, the default is returned unchanged.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandDataPath defaults the data path to ~/Tourbook/data.
func (c *Config) expandDataPath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	defaultPath := filepath.Join(homeDir, "Tourbook", "data")

	expanded, err := expandPath(c.Data.BasePath, defaultPath)
	if err != nil {
		return err
	}
	c.Data.BasePath = expanded
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.Atoi(strValue)
	if err != nil {
		return defaultValue
	}
	return result
}

// getListConfigValue splits a comma separated env var.
func getListConfigValue(envKey string, defaultValue []string) []string {
	strValue := os.Getenv(envKey)
	if strValue == "" {
		return defaultValue
	}
	var out []string
	for part := range strings.SplitSeq(strValue, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

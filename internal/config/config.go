// Package config loads Lucidly settings from command-line flags, environment variables and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Store backends.
const (
	BackendREST     = "rest"
	BackendPostgres = "postgres"
	BackendLocal    = "local"
)

// Config holds the application configuration.
type Config struct {
	App      AppConfig
	Logger   LoggerConfig
	Server   ServerConfig
	Supabase SupabaseConfig
	Auth     AuthConfig
	Store    StoreConfig
	Reading  ReadingConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
	// DataPath holds the session sealing key and the local backend database.
	DataPath string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	SiteURL      string // Public origin, used as the OAuth redirect target
	CORSOrigins  []string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// SupabaseConfig holds the hosted backend project settings.
type SupabaseConfig struct {
	URL     string
	AnonKey string
	// JWTSecret verifies provider access tokens locally. Optional; when empty
	// tokens are checked against the provider's user endpoint instead.
	JWTSecret string
}

// AuthConfig holds sign-in configuration.
type AuthConfig struct {
	Provider        string        // OAuth provider name (default: google)
	SessionDuration time.Duration // Lifetime of the sealed session cookie
	// SessionKey is the PASETO v4 local key, set by auth.LoadOrGenerateKey in main.
	SessionKey []byte
}

// StoreConfig selects and tunes the remote data gateway.
type StoreConfig struct {
	Backend     string
	DatabaseURL string        // Required for the postgres backend
	Timeout     time.Duration // Per-call timeout, 0 disables
	RateLimit   float64       // Requests per second per user for the rest backend
	RateBurst   int
}

// ReadingConfig holds the pace indicator goal.
type ReadingConfig struct {
	Goal int // Books per year
	Year int // Target year
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	return Load(flag.CommandLine, os.Args[1:])
}

// Load is LoadConfig against an explicit flag set and argument list.
func Load(fs *flag.FlagSet, args []string) (*Config, error) {
	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := fs.String("data-path", "", "Directory for keys and local data")

	serverPort := fs.String("port", "", "Server port (default: 8080)")
	siteURL := fs.String("site-url", "", "Public site URL (default: http://localhost:<port>)")
	corsOrigins := fs.String("cors-origins", "", "Comma-separated allowed CORS origins")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 0, disabled for event streams)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")

	supabaseURL := fs.String("supabase-url", "", "Hosted backend project URL")
	supabaseKey := fs.String("supabase-anon-key", "", "Hosted backend anonymous API key")
	jwtSecret := fs.String("supabase-jwt-secret", "", "Secret used to verify access tokens")

	authProvider := fs.String("auth-provider", "", "OAuth provider (default: google)")
	sessionDuration := fs.String("session-duration", "", "Session cookie lifetime (default: 720h)")

	backend := fs.String("store-backend", "", "Store backend: rest, postgres or local (default: rest)")
	databaseURL := fs.String("database-url", "", "Postgres connection string")
	storeTimeout := fs.String("store-timeout", "", "Remote store call timeout (default: 30s)")
	storeRate := fs.String("store-rate-limit", "", "Remote store requests per second per user (default: 10)")
	storeBurst := fs.String("store-rate-burst", "", "Remote store burst size (default: 20)")

	goal := fs.String("reading-goal", "", "Books per year (default: 30)")
	year := fs.String("reading-year", "", "Target year for the reading goal (default: 2026)")

	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
			DataPath:    getConfigValue(*dataPath, "DATA_PATH", ""),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Server: ServerConfig{
			Port:        getConfigValue(*serverPort, "SERVER_PORT", "8080"),
			CORSOrigins: splitList(getConfigValue(*corsOrigins, "CORS_ORIGINS", "")),
		},
		Supabase: SupabaseConfig{
			URL:       strings.TrimRight(getConfigValue(*supabaseURL, "SUPABASE_URL", ""), "/"),
			AnonKey:   getConfigValue(*supabaseKey, "SUPABASE_ANON_KEY", ""),
			JWTSecret: getConfigValue(*jwtSecret, "SUPABASE_JWT_SECRET", ""),
		},
		Auth: AuthConfig{
			Provider: getConfigValue(*authProvider, "AUTH_PROVIDER", "google"),
		},
		Store: StoreConfig{
			Backend:     strings.ToLower(getConfigValue(*backend, "STORE_BACKEND", BackendREST)),
			DatabaseURL: getConfigValue(*databaseURL, "DATABASE_URL", ""),
			RateLimit:   getFloatConfigValue(*storeRate, "STORE_RATE_LIMIT", 10),
			RateBurst:   getIntConfigValue(*storeBurst, "STORE_RATE_BURST", 20),
		},
		Reading: ReadingConfig{
			Goal: getIntConfigValue(*goal, "READING_GOAL", 30),
			Year: getIntConfigValue(*year, "READING_YEAR", 2026),
		},
	}
	cfg.Server.SiteURL = strings.TrimRight(
		getConfigValue(*siteURL, "SITE_URL", "http://localhost:"+cfg.Server.Port), "/")

	durations := []struct {
		flagValue string
		envKey    string
		def       string
		dst       *time.Duration
	}{
		{*readTimeout, "SERVER_READ_TIMEOUT", "15s", &cfg.Server.ReadTimeout},
		{*writeTimeout, "SERVER_WRITE_TIMEOUT", "0s", &cfg.Server.WriteTimeout},
		{*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s", &cfg.Server.IdleTimeout},
		{*sessionDuration, "SESSION_DURATION", "720h", &cfg.Auth.SessionDuration},
		{*storeTimeout, "STORE_TIMEOUT", "30s", &cfg.Store.Timeout},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flagValue, d.envKey, d.def)
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", d.envKey, raw, err)
		}
		*d.dst = parsed
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
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %q (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %q (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.App.DataPath == "" {
		return errors.New("data path cannot be empty after expansion")
	}

	if _, err := url.ParseRequestURI(c.Server.SiteURL); err != nil {
		return fmt.Errorf("invalid site URL %q: %w", c.Server.SiteURL, err)
	}

	switch c.Store.Backend {
	case BackendREST:
		if c.Supabase.URL == "" || c.Supabase.AnonKey == "" {
			return errors.New("SUPABASE_URL and SUPABASE_ANON_KEY are required for the rest backend")
		}
	case BackendPostgres:
		if c.Store.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres backend")
		}
		if c.Supabase.URL == "" || c.Supabase.AnonKey == "" {
			return errors.New("SUPABASE_URL and SUPABASE_ANON_KEY are required for sign-in")
		}
	case BackendLocal:
		// Local development signs in against the provider as well, unless it is absent.
	default:
		return fmt.Errorf("invalid store backend: %q (must be rest, postgres, or local)", c.Store.Backend)
	}

	if c.Store.Timeout < 0 {
		return errors.New("store timeout cannot be negative")
	}
	if c.Store.RateLimit <= 0 || c.Store.RateBurst <= 0 {
		return errors.New("store rate limit and burst must be positive")
	}

	if c.Reading.Goal <= 0 {
		return fmt.Errorf("invalid reading goal: %d", c.Reading.Goal)
	}
	if c.Reading.Year < 1970 || c.Reading.Year > 9999 {
		return fmt.Errorf("invalid reading year: %d", c.Reading.Year)
	}

	return nil
}

// IsProduction reports whether the app runs in production.
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
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

func (c *Config) expandDataPath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	expanded, err := expandPath(c.App.DataPath, filepath.Join(homeDir, ".lucidly"))
	if err != nil {
		return err
	}
	c.App.DataPath = expanded
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

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

// getFloatConfigValue returns a float from flag, env var, or default.
func getFloatConfigValue(flagValue, envKey string, defaultValue float64) float64 {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result float64
	if _, err := fmt.Sscanf(strValue, "%g", &result); err != nil {
		return defaultValue
	}
	return result
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		// Environment variables take precedence over the file.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contains runtime configuration values.
type Config struct {
	Environment        string
	HTTPPort           string
	DatabaseURL        string
	MigrationsPath     string
	BackendOrigin      string
	BrandName          string
	CookiePrefix       string
	GitHubClientID     string
	GitHubClientSecret string
	GitHubScope        string
	GitLabClientID     string
	GitLabClientSecret string
	GitLabScope        string
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	StateNonceTTL      time.Duration
	ServiceName        string
	RateLimitRPM       int
	TelemetryEndpoint  string
	TelemetryInsecure  bool
	CORSAllowedOrigins []string
	CORSAllowedMethods []string
	CORSAllowedHeaders []string
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Environment:        getEnv("APP_ENV", "development"),
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		MigrationsPath:     getEnv("MIGRATIONS_PATH", "migrations"),
		BackendOrigin:      strings.TrimRight(strings.TrimSpace(os.Getenv("BACKEND_ORIGIN")), "/"),
		BrandName:          getEnv("BRAND_NAME", "Raisedeck"),
		CookiePrefix:       getEnv("COOKIE_PREFIX", "rdk"),
		GitHubClientID:     os.Getenv("GITHUB_CLIENT_ID"),
		GitHubClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
		GitHubScope:        getEnv("GITHUB_SCOPE", "repo read:org"),
		GitLabClientID:     os.Getenv("GITLAB_CLIENT_ID"),
		GitLabClientSecret: os.Getenv("GITLAB_CLIENT_SECRET"),
		GitLabScope:        getEnv("GITLAB_SCOPE", "read_api"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:            getInt("REDIS_DB", 0),
		StateNonceTTL:      getDuration("STATE_NONCE_TTL", 15*time.Minute),
		ServiceName:        getEnv("SERVICE_NAME", "raisedeck-accesslink"),
		RateLimitRPM:       getInt("RATE_LIMIT_RPM", 600),
		TelemetryEndpoint:  os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TelemetryInsecure:  getBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		CORSAllowedOrigins: getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		CORSAllowedMethods: getList("CORS_ALLOWED_METHODS", []string{"GET", "POST", "OPTIONS"}),
		CORSAllowedHeaders: getList("CORS_ALLOWED_HEADERS", []string{"Authorization", "Content-Type"}),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.BackendOrigin == "" {
		return Config{}, fmt.Errorf("BACKEND_ORIGIN is required")
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(v) {
		case "1", "true", "t", "yes", "y", "on":
			return true
		case "0", "false", "f", "no", "n", "off":
			return false
		}
	}
	return def
}

func getList(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok {
		parts := strings.Split(v, ",")
		var cleaned []string
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				cleaned = append(cleaned, trimmed)
			}
		}
		if len(cleaned) > 0 {
			return cleaned
		}
	}
	return def
}

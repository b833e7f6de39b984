package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the photon server.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Provider  ProviderConfig
	Callback  CallbackConfig
	Sweeper   SweeperConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port          int
	Env           string
	PublicBaseURL string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	MigrationsDir   string
}

type RedisConfig struct {
	URL string
}

// ProviderConfig is handed to the submitter and sweeper at construction and
// never re-read while serving requests.
type ProviderConfig struct {
	BaseURL           string
	APIKey            string
	SubmitTimeout     time.Duration
	PollTimeout       time.Duration
	RequestsPerSecond float64
	Burst             int
	DisabledModels    []string
}

type CallbackConfig struct {
	Path              string
	InlinePoll        bool
	InlinePollTimeout time.Duration
}

type SweeperConfig struct {
	Enabled     bool
	Schedule    string
	GracePeriod time.Duration
	MaxAge      time.Duration
	BatchSize   int
	Concurrency int
	LockTTL     time.Duration
}

type RateLimitConfig struct {
	RequestsPerMinute int
}

// ErrMissingCredentials is returned by Load when the provider API key is absent.
var ErrMissingCredentials = errors.New("KIE_API_KEY is required")

// Load reads configuration from environment variables and returns a validated Config.
// A .env file in the working directory is applied first when present; real
// environment variables always win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:          envInt("PHOTON_PORT", 8080),
			Env:           envString("PHOTON_ENV", "development"),
			PublicBaseURL: strings.TrimSuffix(os.Getenv("PUBLIC_BASE_URL"), "/"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
			MigrationsDir:   envString("DATABASE_MIGRATIONS_DIR", "migrations"),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Provider: ProviderConfig{
			BaseURL:           strings.TrimSuffix(envString("KIE_BASE_URL", "https://api.kie.ai"), "/"),
			APIKey:            os.Getenv("KIE_API_KEY"),
			SubmitTimeout:     envDuration("PROVIDER_SUBMIT_TIMEOUT", 30*time.Second),
			PollTimeout:       envDuration("PROVIDER_POLL_TIMEOUT", 10*time.Second),
			RequestsPerSecond: envFloat("PROVIDER_REQUESTS_PER_SECOND", 10),
			Burst:             envInt("PROVIDER_BURST", 20),
			DisabledModels:    envList("PROVIDER_DISABLED_MODELS"),
		},
		Callback: CallbackConfig{
			Path:              envString("CALLBACK_PATH", "/webhooks/ai"),
			InlinePoll:        envBool("CALLBACK_INLINE_POLL", true),
			InlinePollTimeout: envDuration("CALLBACK_INLINE_POLL_TIMEOUT", 8*time.Second),
		},
		Sweeper: SweeperConfig{
			Enabled:     envBool("SWEEPER_ENABLED", true),
			Schedule:    envString("SWEEPER_SCHEDULE", "@every 1m"),
			GracePeriod: envDuration("SWEEPER_GRACE_PERIOD", time.Minute),
			MaxAge:      envDuration("SWEEPER_MAX_AGE", 10*time.Minute),
			BatchSize:   envInt("SWEEPER_BATCH_SIZE", 10),
			Concurrency: envInt("SWEEPER_CONCURRENCY", 4),
			LockTTL:     envDuration("SWEEPER_LOCK_TTL", 55*time.Second),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: envInt("RATE_LIMIT_PER_MINUTE", 60),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// CallbackURL is the public webhook endpoint handed to providers, without the token.
func (c *Config) CallbackURL() string {
	return c.Server.PublicBaseURL + c.Callback.Path
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Server.PublicBaseURL == "" {
		return fmt.Errorf("PUBLIC_BASE_URL is required")
	}
	if !isHTTPURL(c.Server.PublicBaseURL) {
		return fmt.Errorf("PUBLIC_BASE_URL must start with http:// or https://, got %q", c.Server.PublicBaseURL)
	}

	if c.Provider.APIKey == "" {
		return ErrMissingCredentials
	}
	if !isHTTPURL(c.Provider.BaseURL) {
		return fmt.Errorf("KIE_BASE_URL must start with http:// or https://, got %q", c.Provider.BaseURL)
	}

	if !strings.HasPrefix(c.Callback.Path, "/") {
		return fmt.Errorf("CALLBACK_PATH must start with /, got %q", c.Callback.Path)
	}

	if c.Sweeper.MaxAge <= c.Sweeper.GracePeriod {
		return fmt.Errorf("SWEEPER_MAX_AGE (%s) must be greater than SWEEPER_GRACE_PERIOD (%s)",
			c.Sweeper.MaxAge, c.Sweeper.GracePeriod)
	}
	if c.Sweeper.BatchSize < 1 || c.Sweeper.BatchSize > 50 {
		return fmt.Errorf("SWEEPER_BATCH_SIZE must be between 1 and 50, got %d", c.Sweeper.BatchSize)
	}
	if c.Sweeper.Concurrency < 1 {
		return fmt.Errorf("SWEEPER_CONCURRENCY must be at least 1, got %d", c.Sweeper.Concurrency)
	}

	return nil
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

// envList splits a comma-separated variable, dropping blanks.
func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Store driver names accepted by SESSION_STORE_DRIVER.
const (
	StoreDriverMemory   = "memory"
	StoreDriverPostgres = "postgres"
)

// Config holds all configuration for the realtime-api service.
type Config struct {
	// Service settings
	ServiceName     string        `env:"SERVICE_NAME" envDefault:"realtime-api"`
	Environment     string        `env:"ENVIRONMENT" envDefault:"development"`
	HTTPPort        int           `env:"REALTIME_API_PORT" envDefault:"8186"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"LOG_FORMAT" envDefault:"console"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// OpenTelemetry
	EnableTracing bool   `env:"OTEL_ENABLED" envDefault:"false"`
	OTLPEndpoint  string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`

	// Auth (Keycloak) - uses global auth vars
	AuthEnabled  bool   `env:"AUTH_ENABLED" envDefault:"false"`
	AuthIssuer   string `env:"ISSUER"`
	AuthAudience string `env:"AUDIENCE"`
	AuthJWKSURL  string `env:"JWKS_URL"`

	// Realtime speech provider
	ProviderBaseURL string        `env:"REALTIME_PROVIDER_BASE_URL" envDefault:"https://api.openai.com"`
	ProviderAPIKey  string        `env:"REALTIME_PROVIDER_API_KEY"`
	DefaultModel    string        `env:"REALTIME_DEFAULT_MODEL" envDefault:"gpt-4o-realtime-preview"`
	WarmupTimeout   time.Duration `env:"SESSION_WARMUP_TIMEOUT" envDefault:"20s"`

	// Session management
	SessionIdleTTL      time.Duration `env:"SESSION_IDLE_TTL" envDefault:"10m"` // How long a session may go without input before it is failed
	SessionReapInterval time.Duration `env:"SESSION_REAP_INTERVAL" envDefault:"15s"`
	TranscriptBaseURL   string        `env:"TRANSCRIPT_BASE_URL" envDefault:"https://storage.prepd.app/transcripts"`

	// Session store
	StoreDriver string `env:"SESSION_STORE_DRIVER" envDefault:"memory"`
	DatabaseDSN string `env:"DATABASE_DSN"`

	// Post-interview feedback (optional, disabled when key is empty)
	FeedbackAPIKey  string `env:"FEEDBACK_API_KEY"`
	FeedbackBaseURL string `env:"FEEDBACK_BASE_URL" envDefault:""`
	FeedbackModel   string `env:"FEEDBACK_MODEL" envDefault:"gpt-4o-mini"`
}

// Load parses environment variables into Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}

	// Validate auth configuration
	if cfg.AuthEnabled {
		if strings.TrimSpace(cfg.AuthIssuer) == "" {
			return nil, fmt.Errorf("ISSUER is required when AUTH_ENABLED is true")
		}
		if strings.TrimSpace(cfg.AuthAudience) == "" {
			return nil, fmt.Errorf("AUDIENCE is required when AUTH_ENABLED is true")
		}
		if strings.TrimSpace(cfg.AuthJWKSURL) == "" {
			return nil, fmt.Errorf("JWKS_URL is required when AUTH_ENABLED is true")
		}
	}

	// Validate provider configuration
	if strings.TrimSpace(cfg.ProviderAPIKey) == "" {
		return nil, fmt.Errorf("REALTIME_PROVIDER_API_KEY is required")
	}

	switch cfg.StoreDriver {
	case StoreDriverMemory:
	case StoreDriverPostgres:
		if strings.TrimSpace(cfg.DatabaseDSN) == "" {
			return nil, fmt.Errorf("DATABASE_DSN is required when SESSION_STORE_DRIVER is postgres")
		}
	default:
		return nil, fmt.Errorf("unsupported SESSION_STORE_DRIVER %q", cfg.StoreDriver)
	}

	return cfg, nil
}

// Addr returns the HTTP server address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// Package config defines configuration parsing and helpers.
package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"
)

// Identity strategies used to derive the rate-limit key of a caller.
const (
	IdentityRemoteAddr     = "remote_addr"
	IdentityForwardedFor   = "forwarded_for"
	IdentityForwardedFirst = "forwarded_first"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	AppEnv      string `env:"APP_ENV" envDefault:"dev" validate:"oneof=dev test prod"`
	Port        int    `env:"PORT" envDefault:"8080" validate:"min=1,max=65535"`
	MetricsPort int    `env:"METRICS_PORT" envDefault:"9090" validate:"min=0,max=65535"`

	// Model collaborator
	GeminiAPIKey         string        `env:"GEMINI_API_KEY" validate:"required"`
	GeminiBaseURL        string        `env:"GEMINI_BASE_URL"`
	GeminiModels         []string      `env:"GEMINI_MODELS" envSeparator:"," envDefault:"gemini-2.0-flash-exp,gemini-1.5-flash,gemini-pro" validate:"min=1,dive,required"`
	ModelTimeout         time.Duration `env:"MODEL_TIMEOUT" envDefault:"30s" validate:"gt=0"`
	ModelTimeoutMin      time.Duration `env:"MODEL_TIMEOUT_MIN" envDefault:"10s"`
	ModelProbeTimeout    time.Duration `env:"MODEL_PROBE_TIMEOUT" envDefault:"5s"`
	ModelMaxOutputTokens int           `env:"MODEL_MAX_OUTPUT_TOKENS" envDefault:"2000" validate:"min=1"`
	ModelTemperature     float32       `env:"MODEL_TEMPERATURE" envDefault:"0.7" validate:"min=0,max=2"`
	MaxAnswerLength      int           `env:"MAX_ANSWER_LENGTH" envDefault:"10000" validate:"min=1"`

	// Question policy
	QuestionMinLength int `env:"QUESTION_MIN_LENGTH" envDefault:"1" validate:"min=1"`
	QuestionMaxLength int `env:"QUESTION_MAX_LENGTH" envDefault:"2000" validate:"gtefield=QuestionMinLength"`
	WordLimitDefault  int `env:"WORD_LIMIT_DEFAULT" envDefault:"150" validate:"min=1"`
	WordLimitMax      int `env:"WORD_LIMIT_MAX" envDefault:"500" validate:"gtefield=WordLimitDefault"`
	// PromptPolicyPath optionally points to a YAML file overriding the prompt
	// template and elaboration keywords.
	PromptPolicyPath string `env:"PROMPT_POLICY_PATH"`

	// Grounding document
	GroundingEnabled bool     `env:"GROUNDING_ENABLED" envDefault:"true"`
	DocumentSources  []string `env:"DOCUMENT_SOURCES" envSeparator:"," envDefault:"career_documents/autobiography.md,career_documents/resume.pdf,career_documents/resume.txt"`
	DocumentFallback string   `env:"DOCUMENT_FALLBACK" envDefault:"Career documents are currently unavailable. Tell the recruiter that detailed information could not be loaded and suggest contacting the candidate directly."`
	S3Endpoint       string   `env:"S3_ENDPOINT"`
	S3Region         string   `env:"S3_REGION" envDefault:"auto"`
	S3AccessKey      string   `env:"S3_ACCESS_KEY"`
	S3SecretKey      string   `env:"S3_SECRET_KEY"`

	// Rate limiting
	RateLimitBackend       string        `env:"RATE_LIMIT_BACKEND" envDefault:"memory" validate:"oneof=memory redis"`
	RateLimitMaxRequests   int           `env:"RATE_LIMIT_MAX_REQUESTS" envDefault:"20" validate:"min=1"`
	RateLimitWindow        time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1h" validate:"gt=0"`
	RateLimitMaxClients    int           `env:"RATE_LIMIT_MAX_CLIENTS" envDefault:"10000" validate:"min=1"`
	RateLimitSweepInterval time.Duration `env:"RATE_LIMIT_SWEEP_INTERVAL" envDefault:"1m" validate:"gt=0"`
	RedisURL               string        `env:"REDIS_URL" validate:"required_if=RateLimitBackend redis"`
	// FloodLimitPerMin is a coarse per-identity guard applied to every route
	// before the sliding window. Zero disables it.
	FloodLimitPerMin int    `env:"FLOOD_LIMIT_PER_MIN" envDefault:"0" validate:"min=0"`
	ClientIdentity   string `env:"CLIENT_IDENTITY" envDefault:"remote_addr" validate:"oneof=remote_addr forwarded_for forwarded_first"`
	TrustedProxyHops int    `env:"TRUSTED_PROXY_HOPS" envDefault:"1" validate:"min=1"`
	FingerprintSalt  string `env:"FINGERPRINT_SALT"`

	// HTTP
	CORSAllowOrigins      string        `env:"CORS_ALLOW_ORIGINS" envDefault:"https://prithaguha.github.io,https://*.github.io,http://localhost:8000,http://127.0.0.1:8000,http://localhost:3000,http://127.0.0.1:3000"`
	MaxBodyBytes          int64         `env:"MAX_BODY_BYTES" envDefault:"65536" validate:"min=1"`
	ServerShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	HTTPReadTimeout       time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	HTTPWriteTimeout      time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"60s"`
	HTTPIdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`

	// Interaction audit and events; empty disables each.
	DBURL         string        `env:"DB_URL"`
	KafkaBrokers  []string      `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic    string        `env:"KAFKA_TOPIC" envDefault:"career-agent-interactions"`
	RecordTimeout time.Duration `env:"RECORD_TIMEOUT" envDefault:"2s"`

	OTLPEndpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	OTELServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"career-agent-api"`
}

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() { vld = validator.New() })
	return vld
}

// Load parses environment variables into a Config and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("op=config.Load: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("op=config.Load: %w", err)
	}
	return cfg, nil
}

// Validate checks field constraints. Errors name the offending fields.
func (c Config) Validate() error {
	if err := getValidator().Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Field()+":"+fe.Tag())
			}
			return fmt.Errorf("invalid config: %s", strings.Join(fields, ", "))
		}
		return err
	}
	return nil
}

// IsDev reports whether the app is running in development mode.
func (c Config) IsDev() bool { return strings.ToLower(c.AppEnv) == "dev" }

// IsProd reports whether the app is running in production mode.
func (c Config) IsProd() bool { return strings.ToLower(c.AppEnv) == "prod" }

// RedisEnabled reports whether rate-limit state lives in Redis.
func (c Config) RedisEnabled() bool { return c.RateLimitBackend == "redis" && c.RedisURL != "" }

// AuditEnabled reports whether interactions are written to Postgres.
func (c Config) AuditEnabled() bool { return c.DBURL != "" }

// EventsEnabled reports whether interactions are published to Kafka.
func (c Config) EventsEnabled() bool { return len(c.KafkaBrokers) > 0 }

// ParseOrigins splits a comma-separated origin list into a slice, trimming spaces.
// If the input is empty, returns nil so that no cross-origin caller is allowed.
func ParseOrigins(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

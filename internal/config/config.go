package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

const (
	GatewayAsaas  = "asaas"
	GatewayStripe = "stripe"
)

type Config struct {
	DatabaseURL   string `env:"DATABASE_URL,required" validate:"required"`
	RunMigrations bool   `env:"RUN_MIGRATIONS" envDefault:"false"`

	JWTSecret string `env:"JWT_SECRET,required" validate:"required,min=16"`

	PaymentGateway string `env:"PAYMENT_GATEWAY" envDefault:"asaas" validate:"required,oneof=asaas stripe"`

	AsaasAPIKey       string `env:"ASAAS_API_KEY"`
	AsaasBaseURL      string `env:"ASAAS_BASE_URL" envDefault:"https://api.asaas.com/v3" validate:"omitempty,url"`
	AsaasWebhookToken string `env:"ASAAS_WEBHOOK_TOKEN"`

	StripeSecretKey     string `env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`

	FrontendURL string `env:"FRONTEND_URL,required" validate:"required,url"`
	StoreName   string `env:"STORE_NAME" envDefault:"AtacaNet" validate:"required"`

	EmailProvider string `env:"EMAIL_PROVIDER" envDefault:"none" validate:"omitempty,oneof=resend postmark none"`
	EmailAPIKey   string `env:"EMAIL_API_KEY" validate:"required_unless=EmailProvider none"`
	EmailFrom     string `env:"EMAIL_FROM" validate:"required_unless=EmailProvider none,omitempty,email"`

	CacheProvider         string `env:"CACHE_PROVIDER" envDefault:"memory" validate:"omitempty,oneof=memory redis"`
	RedisConnectionString string `env:"REDIS_CONNECTION_STRING" envDefault:"redis://localhost:6379/0" validate:"required_if=CacheProvider redis"`

	GatewayTimeout    time.Duration `env:"GATEWAY_TIMEOUT" envDefault:"15s" validate:"gt=0"`
	SideEffectTimeout time.Duration `env:"SIDE_EFFECT_TIMEOUT" envDefault:"10s" validate:"gt=0"`

	SentryDSN              string  `env:"SENTRY_DSN" validate:"omitempty,url"`
	SentryTracesSampleRate float64 `env:"SENTRY_TRACES_SAMPLE_RATE" envDefault:"1.0" validate:"gte=0,lte=1"`
	Environment            string  `env:"ENVIRONMENT" envDefault:"development" validate:"required"`

	LogLevel  slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	LogFormat string     `env:"LOG_FORMAT" validate:"omitempty,oneof=text json"`
	Port      string     `env:"PORT" envDefault:"8080"`
}

var configValidator = validator.New()

func Load() (*Config, error) {
	var cfg Config

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if err := configValidator.Struct(c); err != nil {
		return err
	}

	switch c.PaymentGateway {
	case GatewayAsaas:
		if strings.TrimSpace(c.AsaasAPIKey) == "" || strings.TrimSpace(c.AsaasWebhookToken) == "" {
			return fmt.Errorf("ASAAS_API_KEY and ASAAS_WEBHOOK_TOKEN are required when PAYMENT_GATEWAY=asaas")
		}
	case GatewayStripe:
		if strings.TrimSpace(c.StripeSecretKey) == "" || strings.TrimSpace(c.StripeWebhookSecret) == "" {
			return fmt.Errorf("STRIPE_SECRET_KEY and STRIPE_WEBHOOK_SECRET are required when PAYMENT_GATEWAY=stripe")
		}
	}

	parsed, err := url.Parse(strings.TrimSpace(c.FrontendURL))
	if err != nil || parsed.Hostname() == "" {
		return fmt.Errorf("FRONTEND_URL must be a valid absolute URL")
	}
	if !isLocalHost(parsed.Hostname()) && !strings.EqualFold(parsed.Scheme, "https") {
		return fmt.Errorf("FRONTEND_URL must use https outside local development")
	}

	return nil
}

// SuccessURL is where the hosted payment page sends the buyer back to.
func (c *Config) SuccessURL() string {
	return strings.TrimRight(c.FrontendURL, "/") + "/order-confirmation"
}

// CancelURL is where an abandoned checkout returns the buyer.
func (c *Config) CancelURL() string {
	return strings.TrimRight(c.FrontendURL, "/") + "/cart"
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// applyDefaults fills settings whose default depends on other settings.
func (c *Config) applyDefaults() {
	if c.LogFormat == "" {
		c.LogFormat = "text"
		if c.IsProduction() {
			c.LogFormat = "json"
		}
	}
}

// WriteTimeout bounds a response write. It covers the slower of a checkout's
// gateway call and a webhook's inline invoice and email work.
func (c *Config) WriteTimeout() time.Duration {
	return max(c.GatewayTimeout, c.SideEffectTimeout) + 15*time.Second
}

func isLocalHost(host string) bool {
	switch strings.ToLower(strings.TrimSpace(host)) {
	case "localhost", "127.0.0.1", "::1":
		return true
	default:
		return false
	}
}

package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURI   string `env:"DATABASE_URI" env-required:"true"`
	TelegramToken string `env:"TELEGRAM_TOKEN"`

	AIAPIKey  string `env:"AI_API_KEY"`
	AIBaseURL string `env:"AI_BASE_URL" env-default:"https://openrouter.ai/api/v1"`
	AIModel   string `env:"AI_MODEL" env-default:"openai/gpt-4o-mini"`

	// ScanInterval is how often the reminder scanner sweeps for due rules.
	ScanInterval        time.Duration `env:"SCAN_INTERVAL" env-default:"1m"`
	DispatchTimeout     time.Duration `env:"DISPATCH_TIMEOUT" env-default:"30s"`
	DispatchConcurrency int           `env:"DISPATCH_CONCURRENCY" env-default:"4"`
	MaxDeliveryAttempts int           `env:"MAX_DELIVERY_ATTEMPTS" env-default:"10"`

	// DefaultTimezone is used when a person has no stored timezone, and as
	// the zone whose midnight anchors lead-time reminder times.
	DefaultTimezone string `env:"DEFAULT_TIMEZONE" env-default:"UTC"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" env-default:"587"`
	SMTPFrom     string `env:"SMTP_FROM"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPassword string `env:"SMTP_PASSWORD"`

	SMSGatewayURL string `env:"SMS_GATEWAY_URL"`
	SMSAPIKey     string `env:"SMS_API_KEY"`
}

func Load() (*Config, error) {
	// .env file is optional in production
	_ = godotenv.Load()

	cfg := &Config{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	return cfg, nil
}

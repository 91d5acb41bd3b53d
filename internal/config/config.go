package config

import (
	"fmt"
	"log"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Environment string `env:"ENV" env-default:"development"`
	HTTPAddr    string `env:"HTTP_ADDR" env-default:":8080"`

	Storage     string `env:"STORAGE" env-default:"postgres"` // postgres | memory
	DBDSN       string `env:"DB_DSN"`
	DBMaxConns  int32  `env:"DB_MAX_CONNS" env-default:"10"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" env-default:"false"`

	SlotGranularityMinutes int           `env:"SLOT_GRANULARITY_MINUTES" env-default:"30"`
	EnforceAvailability    bool          `env:"ENFORCE_AVAILABILITY" env-default:"true"`
	ConfirmationPolicy     string        `env:"CONFIRMATION_POLICY" env-default:"payment"` // payment | tutor
	MeetingBaseURL         string        `env:"MEETING_BASE_URL" env-default:"https://meet.jit.si"`
	SweepInterval          time.Duration `env:"SWEEP_INTERVAL" env-default:"1m"`
	PendingPaymentTTL      time.Duration `env:"PENDING_PAYMENT_TTL" env-default:"0s"`

	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" env-default:"0"`
	SlotCacheTTL  time.Duration `env:"SLOT_CACHE_TTL" env-default:"5m"`

	StripeSecretKey     string `env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
	PaymentCurrency     string `env:"PAYMENT_CURRENCY" env-default:"usd"`
	PaymentSuccessURL   string `env:"PAYMENT_SUCCESS_URL" env-default:"http://localhost:3000/bookings/{BOOKING_ID}?payment=success"`
	PaymentCancelURL    string `env:"PAYMENT_CANCEL_URL" env-default:"http://localhost:3000/bookings/{BOOKING_ID}?payment=cancelled"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" env-default:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM" env-default:"Lessons <no-reply@example.com>"`
	SMTPUseTLS   bool   `env:"SMTP_USE_TLS" env-default:"false"`

	TelegramToken string `env:"TELEGRAM_TOKEN"`

	KafkaBrokers      []string `env:"KAFKA_BROKERS" env-separator:","`
	KafkaBookingTopic string   `env:"KAFKA_BOOKING_TOPIC" env-default:"booking-events"`

	NotifyQueueSize int `env:"NOTIFY_QUEUE_SIZE" env-default:"256"`
}

func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate проверяет согласованность настроек
func (c *Config) Validate() error {
	switch c.Storage {
	case "postgres":
		if c.DBDSN == "" {
			return fmt.Errorf("DB_DSN is required but not set")
		}
	case "memory":
	default:
		return fmt.Errorf("STORAGE must be postgres or memory, got %q", c.Storage)
	}

	switch c.ConfirmationPolicy {
	case "payment", "tutor":
	default:
		return fmt.Errorf("CONFIRMATION_POLICY must be payment or tutor, got %q", c.ConfirmationPolicy)
	}

	if c.SlotGranularityMinutes <= 0 || c.SlotGranularityMinutes > 24*60 {
		return fmt.Errorf("SLOT_GRANULARITY_MINUTES must be between 1 and 1440, got %d", c.SlotGranularityMinutes)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive")
	}
	if c.PendingPaymentTTL < 0 {
		return fmt.Errorf("PENDING_PAYMENT_TTL must not be negative")
	}
	return nil
}

func (c *Config) PaymentsEnabled() bool { return c.StripeSecretKey != "" }
func (c *Config) EmailEnabled() bool    { return c.SMTPHost != "" }
func (c *Config) TelegramEnabled() bool { return c.TelegramToken != "" }
func (c *Config) KafkaEnabled() bool    { return len(c.KafkaBrokers) > 0 }
func (c *Config) RedisEnabled() bool    { return c.RedisAddr != "" }

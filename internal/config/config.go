package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // TIMEZONE must resolve in minimal containers

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Port          int
	JWTSecret     string
	DatabaseURL   string
	EncryptionKey string
	CORSOrigins   []string
	AdminEmail    string
	AdminPassword string
	LogLevel      string

	TelegramToken         string
	TelegramWebhookSecret string
	TelegramAPIURL        string

	ResetTriggerTime        ClockTime
	LookaheadTriggerTime    ClockTime
	Location                *time.Location
	DispatchTimeout         time.Duration
	MaxConcurrentDispatches int

	LinkSessionTTL time.Duration
	LinkSessionMax int
}

// ClockTime is a wall-clock time of day used for daily triggers.
type ClockTime struct {
	Hour   int
	Minute int
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// CronSpec returns the five-field cron expression firing daily at c.
func (c ClockTime) CronSpec() string {
	return fmt.Sprintf("%d %d * * *", c.Minute, c.Hour)
}

// ParseClockTime parses "HH:MM" in 24h format.
func ParseClockTime(s string) (ClockTime, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return ClockTime{}, fmt.Errorf("invalid time of day %q, want HH:MM", s)
	}
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func defaults(v *viper.Viper) {
	v.SetDefault("PORT", 4001)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("ADMIN_EMAIL", "admin@localhost")
	v.SetDefault("ADMIN_PASSWORD", "admin123")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("TELEGRAM_API_URL", "https://api.telegram.org")
	v.SetDefault("RESET_TRIGGER_TIME", "00:01")
	v.SetDefault("LOOKAHEAD_TRIGGER_TIME", "17:00")
	v.SetDefault("TIMEZONE", "UTC")
	v.SetDefault("DISPATCH_TIMEOUT", "10s")
	v.SetDefault("MAX_CONCURRENT_DISPATCHES", 8)
	v.SetDefault("LINK_SESSION_TTL", "0s")
	v.SetDefault("LINK_SESSION_MAX", 0)
}

// Load reads configuration from the environment (and an optional .env file)
// with sensible defaults.
func Load() (*Config, error) {
	// Missing .env is fine; real deployments use the environment.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	defaults(v)
	return FromViper(v)
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	jwtSecret := v.GetString("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	dbURL := v.GetString("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	encKey := v.GetString("ENCRYPTION_KEY")
	if encKey == "" {
		return nil, fmt.Errorf("ENCRYPTION_KEY is required (must be exactly 32 bytes)")
	}
	if len(encKey) != 32 {
		return nil, fmt.Errorf("ENCRYPTION_KEY must be exactly 32 bytes, got %d", len(encKey))
	}

	resetAt, err := ParseClockTime(v.GetString("RESET_TRIGGER_TIME"))
	if err != nil {
		return nil, fmt.Errorf("RESET_TRIGGER_TIME: %w", err)
	}
	lookaheadAt, err := ParseClockTime(v.GetString("LOOKAHEAD_TRIGGER_TIME"))
	if err != nil {
		return nil, fmt.Errorf("LOOKAHEAD_TRIGGER_TIME: %w", err)
	}

	loc, err := time.LoadLocation(v.GetString("TIMEZONE"))
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE: %w", err)
	}

	dispatchTimeout := v.GetDuration("DISPATCH_TIMEOUT")
	if dispatchTimeout <= 0 {
		return nil, fmt.Errorf("DISPATCH_TIMEOUT must be positive, got %q", v.GetString("DISPATCH_TIMEOUT"))
	}

	maxConcurrent := v.GetInt("MAX_CONCURRENT_DISPATCHES")
	if maxConcurrent <= 0 {
		return nil, fmt.Errorf("MAX_CONCURRENT_DISPATCHES must be positive, got %d", maxConcurrent)
	}

	sessionTTL := v.GetDuration("LINK_SESSION_TTL")
	if sessionTTL < 0 {
		return nil, fmt.Errorf("LINK_SESSION_TTL must not be negative")
	}
	sessionMax := v.GetInt("LINK_SESSION_MAX")
	if sessionMax < 0 {
		return nil, fmt.Errorf("LINK_SESSION_MAX must not be negative")
	}

	telegramToken := v.GetString("TELEGRAM_BOT_TOKEN")
	webhookSecret := v.GetString("TELEGRAM_WEBHOOK_SECRET")
	if telegramToken != "" && webhookSecret == "" {
		return nil, fmt.Errorf("TELEGRAM_WEBHOOK_SECRET is required when TELEGRAM_BOT_TOKEN is set")
	}

	origins := strings.Split(v.GetString("CORS_ORIGINS"), ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}

	return &Config{
		Port:          v.GetInt("PORT"),
		JWTSecret:     jwtSecret,
		DatabaseURL:   dbURL,
		EncryptionKey: encKey,
		CORSOrigins:   origins,
		AdminEmail:    v.GetString("ADMIN_EMAIL"),
		AdminPassword: v.GetString("ADMIN_PASSWORD"),
		LogLevel:      v.GetString("LOG_LEVEL"),

		TelegramToken:         telegramToken,
		TelegramWebhookSecret: webhookSecret,
		TelegramAPIURL:        strings.TrimRight(v.GetString("TELEGRAM_API_URL"), "/"),

		ResetTriggerTime:        resetAt,
		LookaheadTriggerTime:    lookaheadAt,
		Location:                loc,
		DispatchTimeout:         dispatchTimeout,
		MaxConcurrentDispatches: maxConcurrent,

		LinkSessionTTL: sessionTTL,
		LinkSessionMax: sessionMax,
	}, nil
}

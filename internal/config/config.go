package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type SingaPayConfig struct {
	BaseURL       string
	APIKey        string
	WebhookSecret string
	Timeout       time.Duration
}

type Config struct {
	GinMode  string
	LogLevel string
	Port     string
	GRPCPort string

	Database DatabaseConfig

	RedisURL      string
	RedisPassword string

	JWTSecret   string
	CORSOrigins []string

	CommissionRate         decimal.Decimal
	MinimumWithdrawal      int64
	AutoApproveCommissions bool
	CommissionHoldPeriod   time.Duration
	ReconcileAfter         time.Duration

	MaxSlugChanges int
	SlugCacheTTL   time.Duration
	PublicBaseURL  string

	SingaPay             SingaPayConfig
	PaymentWebhookSecret string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("PORT", "8080")
	v.SetDefault("GRPC_PORT", "50051")

	v.SetDefault("DB_DRIVER", "mysql")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "3306")
	v.SetDefault("DB_SSLMODE", "disable")

	v.SetDefault("REDIS_URL", "localhost:6379")
	v.SetDefault("CORS_ORIGINS", "*")

	v.SetDefault("COMMISSION_RATE", "0.10")
	v.SetDefault("MINIMUM_WITHDRAWAL", 50000)
	v.SetDefault("COMMISSION_AUTO_APPROVE", false)
	v.SetDefault("COMMISSION_HOLD_PERIOD", "168h")
	v.SetDefault("WITHDRAWAL_RECONCILE_AFTER", "30m")

	v.SetDefault("REFERRAL_MAX_SLUG_CHANGES", 1)
	v.SetDefault("REFERRAL_CACHE_TTL", "10m")
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:3000")

	v.SetDefault("SINGAPAY_BASE_URL", "https://sandbox-payment-b2b.singapay.id/api/v1.1")
	v.SetDefault("SINGAPAY_TIMEOUT", "15s")
}

// Load reads configuration from the process environment. Call godotenv first
// when a .env file should be honoured.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	rate, err := decimal.NewFromString(v.GetString("COMMISSION_RATE"))
	if err != nil {
		return nil, fmt.Errorf("invalid COMMISSION_RATE: %w", err)
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("COMMISSION_RATE must be between 0 and 1, got %s", rate)
	}

	cfg := &Config{
		GinMode:  v.GetString("GIN_MODE"),
		LogLevel: v.GetString("LOG_LEVEL"),
		Port:     v.GetString("PORT"),
		GRPCPort: v.GetString("GRPC_PORT"),
		Database: DatabaseConfig{
			Driver:   strings.ToLower(v.GetString("DB_DRIVER")),
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			Name:     v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		RedisURL:               v.GetString("REDIS_URL"),
		RedisPassword:          v.GetString("REDIS_PASSWORD"),
		JWTSecret:              v.GetString("JWT_SECRET"),
		CORSOrigins:            splitList(v.GetString("CORS_ORIGINS")),
		CommissionRate:         rate,
		MinimumWithdrawal:      v.GetInt64("MINIMUM_WITHDRAWAL"),
		AutoApproveCommissions: v.GetBool("COMMISSION_AUTO_APPROVE"),
		CommissionHoldPeriod:   v.GetDuration("COMMISSION_HOLD_PERIOD"),
		ReconcileAfter:         v.GetDuration("WITHDRAWAL_RECONCILE_AFTER"),
		MaxSlugChanges:         v.GetInt("REFERRAL_MAX_SLUG_CHANGES"),
		SlugCacheTTL:           v.GetDuration("REFERRAL_CACHE_TTL"),
		PublicBaseURL:          strings.TrimRight(v.GetString("PUBLIC_BASE_URL"), "/"),
		SingaPay: SingaPayConfig{
			BaseURL:       strings.TrimRight(v.GetString("SINGAPAY_BASE_URL"), "/"),
			APIKey:        v.GetString("SINGAPAY_API_KEY"),
			WebhookSecret: v.GetString("SINGAPAY_WEBHOOK_SECRET"),
			Timeout:       v.GetDuration("SINGAPAY_TIMEOUT"),
		},
		PaymentWebhookSecret: v.GetString("PAYMENT_WEBHOOK_SECRET"),
	}

	if cfg.MinimumWithdrawal <= 0 {
		return nil, fmt.Errorf("MINIMUM_WITHDRAWAL must be positive, got %d", cfg.MinimumWithdrawal)
	}
	switch cfg.Database.Driver {
	case "mysql", "postgres":
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Database.Driver)
	}

	required := []struct{ name, value string }{
		{"JWT_SECRET", cfg.JWTSecret},
		{"SINGAPAY_WEBHOOK_SECRET", cfg.SingaPay.WebhookSecret},
		{"PAYMENT_WEBHOOK_SECRET", cfg.PaymentWebhookSecret},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return nil, fmt.Errorf("%s is required", r.name)
		}
	}

	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

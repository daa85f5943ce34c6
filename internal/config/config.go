package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Session   SessionConfig
	PayMongo  PayMongoConfig
	Cron      CronConfig
	Checkout  CheckoutConfig
	Email     EmailConfig
	Broker    BrokerConfig
	Telemetry TelemetryConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port       string
	Host       string
	Env        string
	RootDomain string // tenants are served from <subdomain>.<RootDomain>
	BaseURL    string
	// AllowedOrigins lists storefront origins for CORS; "*.example.com" matches subdomains.
	AllowedOrigins []string
}

type DatabaseConfig struct {
	URL      string // Full database URL
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type SessionConfig struct {
	Secret string
	Name   string
}

type PayMongoConfig struct {
	SecretKey      string
	WebhookSecret  string
	BaseURL        string
	PaymentMethods []string
}

type CronConfig struct {
	Secret         string
	ReaperInterval time.Duration // 0 disables the in-process sweep
}

type CheckoutConfig struct {
	CartTTL       time.Duration
	OrderHold     time.Duration
	PaymentWindow time.Duration
	PollInterval  time.Duration
	PollAttempts  int
}

type EmailConfig struct {
	MailerSendAPIKey string
	FromEmail        string
	FromName         string
}

type BrokerConfig struct {
	URL      string
	Exchange string
}

type TelemetryConfig struct {
	ServiceName string
}

type RateLimitConfig struct {
	Requests int // per client IP within Window
	Window   time.Duration
}

func Load() (*Config, error) {
	// Load .env files if they exist (try .env.local first, then .env)
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	config := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Host:           getEnv("HOST", "localhost"),
			Env:            getEnv("ENV", "development"),
			RootDomain:     getEnv("ROOT_DOMAIN", "localhost:8080"),
			BaseURL:        getEnv("BASE_URL", "http://localhost:8080"),
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Database: parseDatabaseConfig(),
		Session: SessionConfig{
			Secret: getEnv("SESSION_SECRET", "your-secret-key-change-in-production"),
			Name:   getEnv("SESSION_NAME", "session"),
		},
		PayMongo: PayMongoConfig{
			SecretKey:      getEnv("PAYMONGO_SECRET_KEY", ""),
			WebhookSecret:  getEnv("PAYMONGO_WEBHOOK_SECRET", ""),
			BaseURL:        getEnv("PAYMONGO_BASE_URL", "https://api.paymongo.com/v1"),
			PaymentMethods: getEnvAsList("PAYMONGO_PAYMENT_METHODS", []string{"card", "gcash", "paymaya"}),
		},
		Cron: CronConfig{
			Secret:         getEnv("CRON_SECRET", ""),
			ReaperInterval: getEnvAsDuration("REAPER_INTERVAL", 0),
		},
		Checkout: CheckoutConfig{
			CartTTL:       getEnvAsDuration("CART_TTL", 15*time.Minute),
			OrderHold:     getEnvAsDuration("ORDER_HOLD", 15*time.Minute),
			PaymentWindow: getEnvAsDuration("PAYMENT_WINDOW", 30*time.Minute),
			PollInterval:  getEnvAsDuration("POLL_INTERVAL", 3*time.Second),
			PollAttempts:  getEnvAsInt("POLL_ATTEMPTS", 20),
		},
		Email: EmailConfig{
			MailerSendAPIKey: getEnv("MAILERSEND_API_KEY", ""),
			FromEmail:        getEnv("EMAIL_FROM", "tickets@example.com"),
			FromName:         getEnv("EMAIL_FROM_NAME", "Event Tickets"),
		},
		Broker: BrokerConfig{
			URL:      getEnv("RABBITMQ_URL", ""),
			Exchange: getEnv("RABBITMQ_EXCHANGE", "orders"),
		},
		Telemetry: TelemetryConfig{
			ServiceName: getEnv("OTEL_SERVICE_NAME", "ticketing-checkout"),
		},
		RateLimit: RateLimitConfig{
			Requests: getEnvAsInt("RATE_LIMIT_REQUESTS", 120),
			Window:   getEnvAsDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
	}

	return config, nil
}

// IsProduction reports whether the server runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

func parseDatabaseConfig() DatabaseConfig {
	databaseURL := getEnv("DATABASE_URL", "")
	if databaseURL != "" {
		return parseDatabaseURL(databaseURL)
	}

	return DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvAsInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		DBName:   getEnv("DB_NAME", "ticketing_checkout"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}
}

func parseDatabaseURL(databaseURL string) DatabaseConfig {
	config := DatabaseConfig{
		URL: databaseURL,
	}

	u, err := url.Parse(databaseURL)
	if err != nil {
		// lib/pq still accepts the raw URL
		return config
	}

	config.Host = u.Hostname()
	if u.Port() != "" {
		config.Port, _ = strconv.Atoi(u.Port())
	} else {
		config.Port = 5432
	}

	if u.User != nil {
		config.User = u.User.Username()
		config.Password, _ = u.User.Password()
	}

	config.DBName = strings.TrimPrefix(u.Path, "/")

	config.SSLMode = u.Query().Get("sslmode")
	if config.SSLMode == "" {
		config.SSLMode = "disable"
	}

	return config
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go duration strings ("90s", "15m") or plain seconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

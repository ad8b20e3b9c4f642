package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	pkgconfig "github.com/utafrali/mobilebackend/pkg/config"
	"github.com/utafrali/mobilebackend/pkg/database"
)

const defaultTokenSecret = "change-this-to-a-secure-secret"

// Config holds all configuration for the mobile backend.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort           int      `env:"HTTP_PORT" envDefault:"8080"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	PprofAllowedCIDRs  []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.1/32" envSeparator:","`
	// TrustedProxyCIDRs lists the load balancers whose X-Forwarded-For is
	// believed. Empty means the socket peer is the client.
	TrustedProxyCIDRs []string `env:"TRUSTED_PROXY_CIDRS" envSeparator:","`

	// PostgreSQL
	PostgresHost          string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort          int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser          string `env:"POSTGRES_USER" envDefault:"mobile"`
	PostgresPass          string `env:"POSTGRES_PASSWORD" envDefault:"mobile_secret"`
	PostgresDB            string `env:"POSTGRES_DB_NAME" envDefault:"mobile"`
	PostgresSSL           string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	DBMaxConns            int32  `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns            int32  `env:"DB_MIN_CONNS" envDefault:"2"`
	DBMaxConnLifetimeMins int    `env:"DB_MAX_CONN_LIFETIME_MINS" envDefault:"30"`
	DBMaxConnIdleTimeMins int    `env:"DB_MAX_CONN_IDLE_TIME_MINS" envDefault:"5"`
	SlowQueryThresholdMs  int    `env:"SLOW_QUERY_THRESHOLD_MS" envDefault:"200"`

	// Redis backs the rate limiter.
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	RateLimitEnabled        bool          `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitCapacity       int           `env:"RATE_LIMIT_CAPACITY" envDefault:"5"`
	RateLimitRefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL" envDefault:"1m"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Notifications
	AMQPURL              string        `env:"AMQP_URL"`
	NotifyEmailTransport string        `env:"NOTIFY_EMAIL_TRANSPORT" envDefault:"kafka"`
	NotifyWorkers        int           `env:"NOTIFY_WORKERS" envDefault:"4"`
	NotifyQueueSize      int           `env:"NOTIFY_QUEUE_SIZE" envDefault:"256"`
	NotifySendTimeout    time.Duration `env:"NOTIFY_SEND_TIMEOUT" envDefault:"10s"`

	TwilioAccountSID string `env:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken  string `env:"TWILIO_AUTH_TOKEN"`
	TwilioFromNumber string `env:"TWILIO_FROM_NUMBER"`
	TwilioBaseURL    string `env:"TWILIO_BASE_URL" envDefault:"https://api.twilio.com"`
	SiteName         string `env:"SITE_NAME" envDefault:"Mobile"`

	// Session tokens and one-time codes
	TokenSecret string        `env:"TOKEN_SECRET" envDefault:"change-this-to-a-secure-secret"`
	TokenTTL    time.Duration `env:"TOKEN_TTL" envDefault:"720h"`
	OTPTTL      time.Duration `env:"OTP_TTL" envDefault:"15m"`
	// After OTPMaxMisses wrong codes a user's outstanding codes are revoked.
	// One miss is forgiven per OTPMissRefill.
	OTPMaxMisses  int           `env:"OTP_MAX_MISSES" envDefault:"5"`
	OTPMissRefill time.Duration `env:"OTP_MISS_REFILL" envDefault:"15m"`

	// Payment gateways
	MediaHost           string        `env:"MEDIA_HOST" envDefault:"http://localhost:8080"`
	BillplzBaseURL      string        `env:"BILLPLZ_BASE_URL" envDefault:"https://www.billplz-sandbox.com"`
	BillplzAPIKey       string        `env:"BILLPLZ_API_KEY"`
	BillplzCollectionID string        `env:"BILLPLZ_COLLECTION_ID"`
	BillplzSignatureKey string        `env:"BILLPLZ_SIGNATURE_KEY"`
	PaypalBaseURL       string        `env:"PAYPAL_BASE_URL" envDefault:"https://api-m.sandbox.paypal.com"`
	PaypalClientID      string        `env:"PAYPAL_CLIENT_ID"`
	PaypalClientSecret  string        `env:"PAYPAL_CLIENT_SECRET"`
	PaypalWebhookID     string        `env:"PAYPAL_WEBHOOK_ID"`
	PaypalCurrency      string        `env:"PAYPAL_CURRENCY" envDefault:"USD"`
	PaypalReturnURL     string        `env:"PAYPAL_RETURN_URL"`
	PaypalCancelURL     string        `env:"PAYPAL_CANCEL_URL"`
	GatewayTimeout      time.Duration `env:"GATEWAY_TIMEOUT" envDefault:"10s"`
	MockGatewayToken    string        `env:"MOCK_GATEWAY_TOKEN" envDefault:"dev-signature"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load mobile config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive, got %s", c.TokenTTL)
	}
	if c.OTPTTL < 0 {
		return fmt.Errorf("OTP_TTL must not be negative, got %s", c.OTPTTL)
	}
	if c.OTPMaxMisses < 1 {
		return fmt.Errorf("OTP_MAX_MISSES must be at least 1, got %d", c.OTPMaxMisses)
	}
	if c.OTPMissRefill <= 0 {
		return fmt.Errorf("OTP_MISS_REFILL must be positive, got %s", c.OTPMissRefill)
	}
	if c.NotifyWorkers < 1 || c.NotifyQueueSize < 1 {
		return fmt.Errorf("NOTIFY_WORKERS and NOTIFY_QUEUE_SIZE must be at least 1")
	}
	switch c.NotifyEmailTransport {
	case "kafka":
	case "amqp":
		if c.AMQPURL == "" {
			return fmt.Errorf("AMQP_URL is required when NOTIFY_EMAIL_TRANSPORT is amqp")
		}
	default:
		return fmt.Errorf("unknown NOTIFY_EMAIL_TRANSPORT %q", c.NotifyEmailTransport)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0 and 1, got %v", c.OTELSampleRate)
	}

	// A live gateway without its verification secret would accept forged
	// confirmations.
	if c.BillplzAPIKey != "" && (c.BillplzSignatureKey == "" || c.BillplzCollectionID == "") {
		return fmt.Errorf("BILLPLZ_SIGNATURE_KEY and BILLPLZ_COLLECTION_ID are required when BILLPLZ_API_KEY is set")
	}
	if c.PaypalClientID != "" && (c.PaypalClientSecret == "" || c.PaypalWebhookID == "") {
		return fmt.Errorf("PAYPAL_CLIENT_SECRET and PAYPAL_WEBHOOK_ID are required when PAYPAL_CLIENT_ID is set")
	}

	// Outside development the token secret must be set explicitly and strong.
	if c.Environment != "development" {
		if c.TokenSecret == defaultTokenSecret {
			return fmt.Errorf("TOKEN_SECRET must be explicitly set via environment variable in %q mode", c.Environment)
		}
		if len(c.TokenSecret) < 32 {
			return fmt.Errorf("TOKEN_SECRET must be at least 32 characters long, got %d", len(c.TokenSecret))
		}
	}
	return nil
}

// Postgres returns the connection pool settings.
func (c *Config) Postgres() database.PostgresConfig {
	return database.PostgresConfig{
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPass,
		DBName:          c.PostgresDB,
		SSLMode:         c.PostgresSSL,
		MaxConns:        c.DBMaxConns,
		MinConns:        c.DBMinConns,
		MaxConnLifetime: time.Duration(c.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(c.DBMaxConnIdleTimeMins) * time.Minute,
	}
}

// Redis returns the Redis connection settings.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		Addr:     net.JoinHostPort(c.RedisHost, strconv.Itoa(c.RedisPort)),
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}
}

// IsDevelopment reports whether the backend runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// SlowQueryThreshold returns the slow query logging threshold.
func (c *Config) SlowQueryThreshold() time.Duration {
	return time.Duration(c.SlowQueryThresholdMs) * time.Millisecond
}

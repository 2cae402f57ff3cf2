package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	strutil "remitflow/pkg/platform/strings"
)

// Server captures process level configuration.
type Server struct {
	Addr string
	// AppBaseURL is the front end origin users are sent back to after a
	// provider redirect round trip.
	AppBaseURL string
	// PublicBaseURL is this service's externally reachable origin, used to
	// build return-route and widget callback URLs.
	PublicBaseURL      string
	LogLevel           string
	CORSAllowedOrigins []string
	SessionTTL         time.Duration
	DatabaseURL        string

	Redis        RedisConfig
	Payment      PaymentConfig
	Notification NotificationConfig
}

// RedisConfig configures the shared Redis client. An empty URL selects the
// in-memory stores.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// PaymentConfig configures the provider gateways and the return route.
type PaymentConfig struct {
	DefaultCurrency    string
	Sandbox            bool
	WalletBaseURL      string
	WalletClientID     string
	WalletClientSecret string
	MerchantBaseURL    string
	MerchantAPIKey     string
	HostedCardMode     string
	ReturnStateKey     string
	ReturnStateTTL     time.Duration
	ProviderTimeout    time.Duration
}

// NotificationConfig configures receipt dispatch. Kafka takes precedence over
// the HTTP endpoint when brokers are set.
type NotificationConfig struct {
	Endpoint     string
	KafkaBrokers []string
	KafkaTopic   string
	Buffer       int
	Timeout      time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	cfg := Server{
		Addr:               getEnv("REMITFLOW_ADDR", ":8080"),
		AppBaseURL:         strings.TrimRight(getEnv("APP_BASE_URL", "http://localhost:3000"), "/"),
		PublicBaseURL:      strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins: strutil.SplitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"), ","),
		SessionTTL:         getDuration("SESSION_TTL", 24*time.Hour),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Payment: PaymentConfig{
			DefaultCurrency:    strings.ToUpper(getEnv("DEFAULT_CURRENCY", "USD")),
			Sandbox:            os.Getenv("PAYMENT_SANDBOX") == "true",
			WalletBaseURL:      strings.TrimRight(os.Getenv("WALLET_BASE_URL"), "/"),
			WalletClientID:     os.Getenv("WALLET_CLIENT_ID"),
			WalletClientSecret: os.Getenv("WALLET_CLIENT_SECRET"),
			MerchantBaseURL:    strings.TrimRight(os.Getenv("MERCHANT_BASE_URL"), "/"),
			MerchantAPIKey:     os.Getenv("MERCHANT_API_KEY"),
			HostedCardMode:     getEnv("HOSTED_CARD_MODE", "hosted_fields"),
			ReturnStateKey:     os.Getenv("RETURN_STATE_KEY"),
			ReturnStateTTL:     getDuration("RETURN_STATE_TTL", 2*time.Hour),
			ProviderTimeout:    getDuration("PROVIDER_TIMEOUT", 15*time.Second),
		},
		Notification: NotificationConfig{
			Endpoint:     os.Getenv("NOTIFY_ENDPOINT"),
			KafkaBrokers: strutil.SplitList(os.Getenv("NOTIFY_KAFKA_BROKERS"), ","),
			KafkaTopic:   getEnv("NOTIFY_KAFKA_TOPIC", "transfer-receipts"),
			Buffer:       getInt("NOTIFY_BUFFER", 256),
			Timeout:      getDuration("NOTIFY_TIMEOUT", 10*time.Second),
		},
	}

	if cfg.Payment.ReturnStateKey == "" {
		// Use a default for development - must be overridden in production
		cfg.Payment.ReturnStateKey = "dev-return-state-key-change-in-production"
	}
	if cfg.Payment.WalletBaseURL == "" || cfg.Payment.MerchantBaseURL == "" {
		cfg.Payment.Sandbox = true
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

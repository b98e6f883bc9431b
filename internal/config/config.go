package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/villa-stay/service-booking/internal/platform/database"
	"github.com/villa-stay/service-booking/internal/platform/retry"
)

// ProviderConfig holds payment-provider credentials and endpoints.
type ProviderConfig struct {
	Name                 string // "komoju" or "mock"
	APIKey               string
	MerchantUUID         string
	Endpoint             string
	WebhookSecret        string
	SignatureHeader      string
	SkipSignatureVerify  bool
	BaseURL              string // public site URL, used for return/cancel URLs
	Locale               string
	DefaultPaymentMethod string
	RequestTimeout       time.Duration
}

// KafkaConfig holds broker settings. Empty Brokers disables event publishing.
type KafkaConfig struct {
	Brokers             []string
	GroupPrefix         string
	BookingTopic        string
	ProviderEventsTopic string
	ConsumeProvider     bool
}

// HTTPConfig holds server-facing knobs.
type HTTPConfig struct {
	CORSOrigins     []string
	RateLimitPerMin int
	RateLimitBurst  int
	ShutdownTimeout time.Duration
}

// ServiceConfig holds all configuration for the booking service.
type ServiceConfig struct {
	Port        string
	AppEnv      string
	AdminAPIKey string
	DBConfig    database.PostgresConfig
	KafkaConfig KafkaConfig
	Provider    ProviderConfig
	StoreRetry  retry.Policy
	ProvRetry   retry.Policy
	HTTP        HTTPConfig
}

// IsDevelopment reports whether the service runs locally.
func (c *ServiceConfig) IsDevelopment() bool {
	return c.AppEnv == "development"
}

const (
	minWriteTimeout   = 15 * time.Second
	writeTimeoutSlack = 10 * time.Second
)

// WriteTimeout bounds how long the server may take to answer a request. It
// covers the slowest checkout: every provider attempt running to its timeout,
// the delays between them, and the retry delays of the three store calls
// around them (lookup, availability, processing write).
func (c *ServiceConfig) WriteTimeout() time.Duration {
	provider := time.Duration(c.ProvRetry.Attempts)*c.Provider.RequestTimeout +
		time.Duration(c.ProvRetry.Attempts-1)*c.ProvRetry.Delay
	store := 3 * time.Duration(c.StoreRetry.Attempts-1) * c.StoreRetry.Delay
	if d := provider + store + writeTimeoutSlack; d > minWriteTimeout {
		return d
	}
	return minWriteTimeout
}

// Load reads configuration from the environment (and an optional config file) once.
func Load() (*ServiceConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVICE_PORT", "8080")
	v.SetDefault("APP_ENV", "development")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "vacation_rental")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 20)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "30m")

	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_GROUP_PREFIX", "")
	v.SetDefault("KAFKA_BOOKING_TOPIC", "booking.events")
	v.SetDefault("KAFKA_PROVIDER_EVENTS_TOPIC", "payment.provider-events")
	v.SetDefault("KAFKA_CONSUME_PROVIDER_EVENTS", false)

	v.SetDefault("PAYMENT_PROVIDER", "komoju")
	v.SetDefault("KOMOJU_API_URL", "https://komoju.com/api/v1/sessions")
	v.SetDefault("KOMOJU_SIGNATURE_HEADER", "X-Komoju-Signature")
	v.SetDefault("PAYMENT_SKIP_SIGNATURE_VERIFICATION", false)
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:3000")
	v.SetDefault("PAYMENT_LOCALE", "ja")
	v.SetDefault("PAYMENT_DEFAULT_METHOD", "credit_card")
	v.SetDefault("PAYMENT_PROVIDER_TIMEOUT", "30s")

	v.SetDefault("STORE_RETRY_ATTEMPTS", 3)
	v.SetDefault("STORE_RETRY_DELAY", "1s")
	v.SetDefault("PROVIDER_RETRY_ATTEMPTS", 3)
	v.SetDefault("PROVIDER_RETRY_DELAY", "1s")

	v.SetDefault("CORS_ORIGINS", "")
	v.SetDefault("RATE_LIMIT_PER_MIN", 120)
	v.SetDefault("RATE_LIMIT_BURST", 20)
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")
}

func fromViper(v *viper.Viper) *ServiceConfig {
	port := v.GetString("SERVICE_PORT")
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}

	return &ServiceConfig{
		Port:        port,
		AppEnv:      strings.ToLower(v.GetString("APP_ENV")),
		AdminAPIKey: v.GetString("ADMIN_API_KEY"),
		DBConfig: database.PostgresConfig{
			Host:            v.GetString("DB_HOST"),
			Port:            v.GetString("DB_PORT"),
			User:            v.GetString("DB_USER"),
			Password:        v.GetString("DB_PASSWORD"),
			DBName:          v.GetString("DB_NAME"),
			SSLMode:         v.GetString("DB_SSLMODE"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
		},
		KafkaConfig: KafkaConfig{
			Brokers:             splitList(v.GetString("KAFKA_BROKERS")),
			GroupPrefix:         v.GetString("KAFKA_GROUP_PREFIX"),
			BookingTopic:        v.GetString("KAFKA_BOOKING_TOPIC"),
			ProviderEventsTopic: v.GetString("KAFKA_PROVIDER_EVENTS_TOPIC"),
			ConsumeProvider:     v.GetBool("KAFKA_CONSUME_PROVIDER_EVENTS"),
		},
		Provider: ProviderConfig{
			Name:                 strings.ToLower(v.GetString("PAYMENT_PROVIDER")),
			APIKey:               v.GetString("KOMOJU_API_KEY"),
			MerchantUUID:         v.GetString("KOMOJU_MERCHANT_UUID"),
			Endpoint:             v.GetString("KOMOJU_API_URL"),
			WebhookSecret:        v.GetString("KOMOJU_WEBHOOK_SECRET"),
			SignatureHeader:      v.GetString("KOMOJU_SIGNATURE_HEADER"),
			SkipSignatureVerify:  v.GetBool("PAYMENT_SKIP_SIGNATURE_VERIFICATION"),
			BaseURL:              strings.TrimRight(v.GetString("PUBLIC_BASE_URL"), "/"),
			Locale:               v.GetString("PAYMENT_LOCALE"),
			DefaultPaymentMethod: v.GetString("PAYMENT_DEFAULT_METHOD"),
			RequestTimeout:       v.GetDuration("PAYMENT_PROVIDER_TIMEOUT"),
		},
		StoreRetry: retry.Policy{
			Attempts: v.GetInt("STORE_RETRY_ATTEMPTS"),
			Delay:    v.GetDuration("STORE_RETRY_DELAY"),
		},
		ProvRetry: retry.Policy{
			Attempts: v.GetInt("PROVIDER_RETRY_ATTEMPTS"),
			Delay:    v.GetDuration("PROVIDER_RETRY_DELAY"),
		},
		HTTP: HTTPConfig{
			CORSOrigins:     splitList(v.GetString("CORS_ORIGINS")),
			RateLimitPerMin: v.GetInt("RATE_LIMIT_PER_MIN"),
			RateLimitBurst:  v.GetInt("RATE_LIMIT_BURST"),
			ShutdownTimeout: v.GetDuration("SHUTDOWN_TIMEOUT"),
		},
	}
}

// Validate fails fast on settings the service cannot run without.
func (c *ServiceConfig) Validate() error {
	var errs []error

	switch c.AppEnv {
	case "development", "test", "staging", "production":
	default:
		errs = append(errs, fmt.Errorf("APP_ENV %q is not one of development, test, staging, production", c.AppEnv))
	}

	switch c.Provider.Name {
	case "mock":
		if !c.IsDevelopment() && c.AppEnv != "test" {
			errs = append(errs, errors.New("PAYMENT_PROVIDER=mock is only allowed in development or test"))
		}
	case "komoju":
		if c.Provider.APIKey == "" {
			errs = append(errs, errors.New("KOMOJU_API_KEY is required"))
		}
		if c.Provider.MerchantUUID == "" {
			errs = append(errs, errors.New("KOMOJU_MERCHANT_UUID is required"))
		}
		if c.Provider.Endpoint == "" {
			errs = append(errs, errors.New("KOMOJU_API_URL is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown PAYMENT_PROVIDER %q", c.Provider.Name))
	}

	if c.Provider.SkipSignatureVerify && !c.IsDevelopment() {
		errs = append(errs, errors.New("PAYMENT_SKIP_SIGNATURE_VERIFICATION is only allowed in development"))
	}
	if c.Provider.WebhookSecret == "" && !c.Provider.SkipSignatureVerify {
		errs = append(errs, errors.New("KOMOJU_WEBHOOK_SECRET is required"))
	}
	if c.Provider.SignatureHeader == "" {
		errs = append(errs, errors.New("KOMOJU_SIGNATURE_HEADER must not be empty"))
	}
	if c.Provider.RequestTimeout <= 0 {
		errs = append(errs, errors.New("PAYMENT_PROVIDER_TIMEOUT must be positive"))
	}
	if c.StoreRetry.Attempts < 1 || c.ProvRetry.Attempts < 1 {
		errs = append(errs, errors.New("retry attempts must be at least 1"))
	}
	if c.KafkaConfig.ConsumeProvider && len(c.KafkaConfig.Brokers) == 0 {
		errs = append(errs, errors.New("KAFKA_CONSUME_PROVIDER_EVENTS requires KAFKA_BROKERS"))
	}

	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Mpesa     MpesaConfig
	Callback  CallbackConfig
	Kafka     KafkaConfig
	Reconcile ReconcileConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port         string
	Env          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	Driver          string // mysql or sqlite
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// MpesaConfig holds the Daraja credentials. Empty ConsumerKey/ConsumerSecret is
// not a startup error; token requests fail when a payment is initiated.
type MpesaConfig struct {
	Provider        string // daraja, or stub for local runs without credentials
	BaseURL         string
	ConsumerKey     string
	ConsumerSecret  string
	Shortcode       string
	Passkey         string
	TransactionType string
	CallbackURL     string // public URL of POST /api/v1/payments/mpesa/callback
	Description     string
	Timeout         time.Duration
}

type CallbackConfig struct {
	Secret   string // signs the ?token= query on CallbackURL; empty disables the check
	TokenTTL time.Duration
}

type KafkaConfig struct {
	BrokerURL          string
	PaymentStatusTopic string
}

type ReconcileConfig struct {
	Interval     time.Duration
	PendingAfter time.Duration
	BatchSize    int
}

type RateLimitConfig struct {
	PerMinute int
	Burst     int
}

// Load reads configuration from the environment. A .env file in the working
// directory is merged first without overriding variables that are already set.
func Load() *Config {
	if envMap, err := godotenv.Read(); err == nil {
		for k, v := range envMap {
			if os.Getenv(k) == "" {
				os.Setenv(k, v)
			}
		}
	}
	return &Config{
		Server: ServerConfig{
			Port:         getEnvOrDefault("PORT", "8080"),
			Env:          getEnvOrDefault("APP_ENV", "development"),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", 40*time.Second),
		},
		Database: DatabaseConfig{
			Driver:          getEnvOrDefault("DB_DRIVER", "mysql"),
			DSN:             getEnvOrDefault("DB_DSN", "quickpay:quickpay@tcp(localhost:3306)/quickpay?charset=utf8mb4&parseTime=True&loc=Local"),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", time.Hour),
		},
		Mpesa: MpesaConfig{
			Provider:        getEnvOrDefault("MPESA_PROVIDER", "daraja"),
			BaseURL:         strings.TrimRight(getEnvOrDefault("MPESA_BASE_URL", "https://sandbox.safaricom.co.ke"), "/"),
			ConsumerKey:     os.Getenv("MPESA_CONSUMER_KEY"),
			ConsumerSecret:  os.Getenv("MPESA_CONSUMER_SECRET"),
			Shortcode:       getEnvOrDefault("MPESA_SHORTCODE", "174379"),
			Passkey:         os.Getenv("MPESA_PASSKEY"),
			TransactionType: getEnvOrDefault("MPESA_TRANSACTION_TYPE", "CustomerPayBillOnline"),
			CallbackURL:     getEnvOrDefault("MPESA_CALLBACK_URL", "http://localhost:8080/api/v1/payments/mpesa/callback"),
			Description:     getEnvOrDefault("MPESA_TRANSACTION_DESC", "Payment for services"),
			Timeout:         getEnvAsDuration("MPESA_TIMEOUT", 30*time.Second),
		},
		Callback: CallbackConfig{
			Secret:   os.Getenv("MPESA_CALLBACK_SECRET"),
			TokenTTL: getEnvAsDuration("MPESA_CALLBACK_TOKEN_TTL", 24*time.Hour),
		},
		Kafka: KafkaConfig{
			BrokerURL:          os.Getenv("KAFKA_BROKER_URL"),
			PaymentStatusTopic: getEnvOrDefault("KAFKA_PAYMENT_STATUS_TOPIC", "payment_status_updates"),
		},
		Reconcile: ReconcileConfig{
			Interval:     getEnvAsDuration("RECONCILE_INTERVAL", time.Minute),
			PendingAfter: getEnvAsDuration("RECONCILE_PENDING_AFTER", 10*time.Minute),
			BatchSize:    getEnvAsInt("RECONCILE_BATCH_SIZE", 50),
		},
		RateLimit: RateLimitConfig{
			PerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 30),
			Burst:     getEnvAsInt("RATE_LIMIT_BURST", 5),
		},
	}
}

// KafkaBrokers returns the configured broker list, nil when Kafka is disabled.
func (c *Config) KafkaBrokers() []string {
	if c.Kafka.BrokerURL == "" {
		return nil
	}
	return strings.Split(c.Kafka.BrokerURL, ",")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnvOrDefault(key, strconv.Itoa(defaultValue))
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnvOrDefault(key, defaultValue.String())
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL    string
	RedisURL       string
	KafkaBrokers   string
	JaegerEndpoint string
	Port           string
	BankPort       string

	PaymentSecret string
	JWTSecret     string

	// GatewayURL is where students are sent to pay. The bank posts to IPNURL
	// and redirects the browser to ReturnURL; the portal reaches the merchant
	// API at APIURL.
	GatewayURL string
	IPNURL     string
	ReturnURL  string
	APIURL     string

	OtpReference       string
	IPNTimeout         time.Duration
	RedirectDelay      time.Duration
	SessionTTL         time.Duration
	ReturnPollAttempts int
	ReturnPollInterval time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using process environment")
	}

	return &Config{
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       getEnv("REDIS_URL", "localhost:6379"),
		KafkaBrokers:   getEnv("KAFKA_BROKERS", "localhost:9092"),
		JaegerEndpoint: os.Getenv("JAEGER_ENDPOINT"),
		Port:           getEnv("PORT", "8000"),
		BankPort:       getEnv("BANK_PORT", "8090"),

		PaymentSecret: os.Getenv("PAYMENT_SECRET_KEY"),
		JWTSecret:     os.Getenv("JWT_SECRET"),

		GatewayURL: getEnv("GATEWAY_URL", "http://localhost:8090/payment-gateway"),
		APIURL:     getEnv("API_URL", "http://localhost:8000/api/v1"),
		IPNURL:     getEnv("IPN_URL", "http://localhost:8000/api/v1/payment/ipn"),
		ReturnURL:  getEnv("RETURN_URL", "http://localhost:8000/student/finance/payment-return"),

		OtpReference:       getEnv("OTP_REFERENCE", "123456"),
		IPNTimeout:         getDuration("IPN_TIMEOUT", 10*time.Second),
		RedirectDelay:      getDuration("REDIRECT_DELAY", 2*time.Second),
		SessionTTL:         getDuration("SESSION_TTL", 15*time.Minute),
		ReturnPollAttempts: getInt("RETURN_POLL_ATTEMPTS", 5),
		ReturnPollInterval: getDuration("RETURN_POLL_INTERVAL", 500*time.Millisecond),
	}
}

// Validate reports settings the payment API cannot start without.
func (c *Config) Validate() error {
	if c.PaymentSecret == "" {
		return errors.New("PAYMENT_SECRET_KEY is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.ReturnPollAttempts < 1 {
		return errors.New("RETURN_POLL_ATTEMPTS must be at least 1")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("invalid %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return d
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

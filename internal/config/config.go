package config

import (
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort string
	AppEnv  string

	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string

	// PesapalEnv selects the gateway deployment: "sandbox" or "production".
	PesapalEnv            string
	PesapalConsumerKey    string
	PesapalConsumerSecret string
	// PesapalIPNID optionally seeds the IPN registry with an id registered
	// by a previous deployment, skipping the first-use lookup entirely.
	PesapalIPNID string

	// AppURL is the public base URL of this service; the gateway callback
	// and IPN URLs are derived from it.
	AppURL string
	// ReceiptBaseURL is the human-facing receipt page the payer is sent to
	// after returning from the hosted payment page.
	ReceiptBaseURL string

	AllowedOrigins []string
}

func LoadConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		AppPort:               getEnv("APP_PORT", "8080"),
		AppEnv:                os.Getenv("APP_ENV"),
		DBHost:                os.Getenv("DB_HOST"),
		DBUser:                os.Getenv("DB_USER"),
		DBPassword:            os.Getenv("DB_PASSWORD"),
		DBName:                os.Getenv("DB_NAME"),
		DBPort:                getEnv("DB_PORT", "5432"),
		PesapalEnv:            getEnv("PESAPAL_ENV", "sandbox"),
		PesapalConsumerKey:    os.Getenv("PESAPAL_CONSUMER_KEY"),
		PesapalConsumerSecret: os.Getenv("PESAPAL_CONSUMER_SECRET"),
		PesapalIPNID:          os.Getenv("PESAPAL_IPN_ID"),
		AppURL:                strings.TrimRight(os.Getenv("APP_URL"), "/"),
		ReceiptBaseURL:        strings.TrimRight(os.Getenv("RECEIPT_BASE_URL"), "/"),
		AllowedOrigins:        splitOrigins(os.Getenv("ALLOWED_ORIGINS")),
	}

	if cfg.PesapalConsumerKey == "" || cfg.PesapalConsumerSecret == "" {
		log.Fatal("PESAPAL_CONSUMER_KEY and PESAPAL_CONSUMER_SECRET must be set")
	}
	if cfg.AppURL == "" {
		log.Fatal("APP_URL must be set (callback and IPN URLs are derived from it)")
	}

	return cfg
}

// CallbackURL is where the hosted payment page redirects the payer back to.
func (c *Config) CallbackURL() string {
	return c.AppURL + "/api/payments/return"
}

// IPNURL is where the gateway pushes asynchronous payment notifications.
func (c *Config) IPNURL() string {
	return c.AppURL + "/api/payments/ipn"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"quickpay-bridge/internal/quickpay"

	"github.com/joho/godotenv"
)

type Config struct {
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	AppPort    string
	AppEnv     string
	JWTSecret  string

	// ShopIntegration is the name the shop's checkout registers under and
	// the last path segment of its callback URL.
	ShopIntegration string
	CommentTemplate string

	// Quickpay holds the default settings, used for orders whose payment
	// method carries none of its own.
	Quickpay quickpay.Settings
}

func LoadConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		DBHost:          os.Getenv("DB_HOST"),
		DBUser:          os.Getenv("DB_USER"),
		DBPassword:      os.Getenv("DB_PASSWORD"),
		DBName:          os.Getenv("DB_NAME"),
		DBPort:          env("DB_PORT", "5432"),
		AppPort:         env("APP_PORT", "8080"),
		AppEnv:          os.Getenv("APP_ENV"),
		JWTSecret:       os.Getenv("SECRET_KEY"),
		ShopIntegration: env("QUICKPAY_INTEGRATION", "shop"),
		CommentTemplate: os.Getenv("QUICKPAY_COMMENT_TEMPLATE"),
		Quickpay: quickpay.Settings{
			MerchantID:     os.Getenv("QUICKPAY_MERCHANT_ID"),
			AgreementID:    os.Getenv("QUICKPAY_AGREEMENT_ID"),
			APIKey:         os.Getenv("QUICKPAY_API_KEY"),
			PrivateKey:     os.Getenv("QUICKPAY_PRIVATE_KEY"),
			Currency:       env("QUICKPAY_CURRENCY", "DKK"),
			Language:       env("QUICKPAY_LANGUAGE", "en"),
			Autocapture:    envBool("QUICKPAY_AUTOCAPTURE", false),
			TestMode:       envBool("QUICKPAY_TEST_MODE", false),
			PaymentMethods: envList("QUICKPAY_PAYMENT_METHODS"),
			ContinueURL:    os.Getenv("QUICKPAY_CONTINUE_URL"),
			CancelURL:      os.Getenv("QUICKPAY_CANCEL_URL"),
			CallbackURL:    os.Getenv("QUICKPAY_CALLBACK_URL"),
		},
	}

	if cfg.DBHost == "" {
		log.Fatal("Environment variables not loaded properly")
	}
	if err := cfg.Quickpay.Validate(); err != nil {
		log.Printf("[WARN] default QuickPay settings incomplete (%v); only payment methods with their own settings will work", err)
	}

	return cfg
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envBool(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envList(k string) []string {
	v := os.Getenv(k)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

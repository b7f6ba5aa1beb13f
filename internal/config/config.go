// internal/config/config.go
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"sentinelshop/internal/logger"
)

const (
	defaultCurrency       = "mxn"
	defaultCountry        = "MX"
	defaultLocale         = "es"
	defaultFallbackOrigin = "https://mechanical.sentinellab.tech"
)

// Variables available everywhere
var (
	stripeSecretKey string
	stripeAPIBase   string
	publicSiteURL   string
	AllowedOrigin   string // For CORS
)

//
// --- Utility Helpers ---
//

// Helper: get a setting based on ENVIRONMENT (dev or prod)
func GetEnvBasedSetting(base string) string {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "dev"
	}
	if v := os.Getenv(fmt.Sprintf("%s_%s", base, strings.ToUpper(env))); v != "" {
		return v
	}
	return os.Getenv(base)
}

// Helper: log which environment is running
func LogCurrentEnvironment() {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "dev"
	}

	if env == "dev" {
		logger.LogInfo("Running in development environment")
	} else {
		logger.LogInfo("Running in production environment")
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := GetEnvBasedSetting(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	raw := GetEnvBasedSetting(key)
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	// Bare integers are seconds
	if seconds, err := strconv.Atoi(raw); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	logger.LogWarn("Invalid %s: %q, using default %v", key, raw, defaultValue)
	return defaultValue
}

//
// --- Loaders ---
//

// LoadEnv reads .env file
func LoadEnv() {
	wd, err := os.Getwd()
	if err != nil {
		log.Printf("Could not determine working directory: %v", err)
	}

	err = godotenv.Load(".env")
	if err != nil {
		log.Printf("No .env file found in %s. Using system environment variables.", wd)
	} else {
		log.Printf("Loaded environment variables from .env file in %s", wd)
	}
}

// LoggerConfig returns a logger.Config struct populated from environment
func LoggerConfig() logger.Config {
	return logger.Config{
		LogsDirectory: GetEnvBasedSetting("LOGS_DIRECTORY"),
		LogFileFormat: getEnvOrDefault("LOG_FILE_FORMAT", "server_%s.log"),
		TimeZone:      getEnvOrDefault("TIME_ZONE", "America/Mexico_City"),
		Level:         getEnvOrDefault("LOG_LEVEL", "info"),
		Format:        getEnvOrDefault("LOG_FORMAT", "text"),
	}
}

// LoadStripeConfig reads the processor credentials. A missing key is not
// fatal: checkout requests fail with a configuration error instead.
func LoadStripeConfig() error {
	stripeSecretKey = GetEnvBasedSetting("STRIPE_SECRET_KEY")
	stripeAPIBase = GetEnvBasedSetting("STRIPE_API_BASE")

	if stripeSecretKey == "" {
		return fmt.Errorf("STRIPE_SECRET_KEY is missing")
	}

	if strings.HasPrefix(stripeSecretKey, "sk_live_") {
		logger.LogInfo("Using Stripe live mode")
	} else {
		logger.LogInfo("Using Stripe test mode")
	}
	if stripeAPIBase != "" {
		logger.LogWarn("Stripe API base overridden: %s", stripeAPIBase)
	}
	return nil
}

// LoadCORSConfig loads CORS settings
func LoadCORSConfig() {
	AllowedOrigin = GetEnvBasedSetting("ALLOWED_ORIGIN")
	if AllowedOrigin == "" {
		AllowedOrigin = "*" // Allow all - be careful in prod
		logger.LogWarn("ALLOWED_ORIGIN not set, using '*' (allow all origins)")
	} else {
		logger.LogInfo("Allowed Origin: %s", AllowedOrigin)
	}
}

// LoadSiteConfig loads the public site URL used for redirects and image URLs
func LoadSiteConfig() {
	publicSiteURL = GetEnvBasedSetting("PUBLIC_SITE_URL")
	if publicSiteURL == "" {
		logger.LogWarn("PUBLIC_SITE_URL not set, redirect origin will be taken from the request")
	} else {
		logger.LogInfo("Public site URL: %s", publicSiteURL)
	}
}

//
// --- Getters (exported) ---
//

func ServerAddress() string {
	host := getEnvOrDefault("SERVER_HOST", "127.0.0.1")
	port := getEnvOrDefault("SERVER_PORT", "5051")
	return host + ":" + port
}

func StripeSecretKey() string {
	return stripeSecretKey
}

func StripeAPIBase() string {
	return stripeAPIBase
}

func PublicSiteURL() string {
	return publicSiteURL
}

func FallbackOrigin() string {
	return getEnvOrDefault("FALLBACK_ORIGIN", defaultFallbackOrigin)
}

func CheckoutCurrency() string {
	return strings.ToLower(getEnvOrDefault("CHECKOUT_CURRENCY", defaultCurrency))
}

func CheckoutCountry() string {
	return strings.ToUpper(getEnvOrDefault("CHECKOUT_COUNTRY", defaultCountry))
}

func CheckoutLocale() string {
	return getEnvOrDefault("CHECKOUT_LOCALE", defaultLocale)
}

// CheckoutTimeout bounds a single session creation call.
func CheckoutTimeout() time.Duration {
	return getDuration("CHECKOUT_TIMEOUT", 10*time.Second)
}

// CheckoutRateInterval is the minimum spacing between checkout calls per client.
func CheckoutRateInterval() time.Duration {
	return getDuration("CHECKOUT_RATE_INTERVAL", 2*time.Second)
}

func CatalogFile() string {
	return GetEnvBasedSetting("CATALOG_FILE")
}

func SnapshotBackend() string {
	return strings.ToLower(getEnvOrDefault("SNAPSHOT_BACKEND", "sqlite"))
}

func SnapshotDBPath() string {
	return getEnvOrDefault("SNAPSHOT_DB_PATH", "./data/snapshots.db")
}

func RedisAddr() string {
	return getEnvOrDefault("REDIS_ADDR", "localhost:6379")
}

// SnapshotTTL is how long post-checkout snapshots are kept.
func SnapshotTTL() time.Duration {
	return getDuration("SNAPSHOT_TTL", 48*time.Hour)
}

// CartIdleTTL is how long an untouched session cart survives.
func CartIdleTTL() time.Duration {
	return getDuration("CART_IDLE_TTL", 6*time.Hour)
}

func CleanupInterval() time.Duration {
	return getDuration("CLEANUP_INTERVAL", 10*time.Minute)
}

func SecureCookies() bool {
	return os.Getenv("ENVIRONMENT") == "prod" || GetEnvBasedSetting("SECURE_COOKIES") == "true"
}

// TrustProxyHeaders reports whether client addresses may be taken from
// X-Forwarded-For / X-Real-IP. Off unless TRUST_PROXY is "true".
func TrustProxyHeaders() bool {
	return GetEnvBasedSetting("TRUST_PROXY") == "true"
}

func OTLPEndpoint() string {
	return os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
}

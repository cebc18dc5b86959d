package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

// Storage backends for the document store.
const (
	BackendDynamoDB  = "dynamodb"
	BackendFirestore = "firestore"
	BackendMemory    = "memory"
)

// DefaultSessionSecret signs session cookies when SESSION_SECRET is unset.
// It is public and refused in production.
const DefaultSessionSecret = "dev-session-secret-change-me"

// ErrInsecureSessionSecret is returned by Validate for a production config
// without its own session secret.
var ErrInsecureSessionSecret = errors.New("SESSION_SECRET must be set to a private value in production")

// Config holds every runtime setting of the api and worker binaries.
type Config struct {
	Env      string
	Port     string
	RunLocal bool

	StoreBackend string
	TablePrefix  string
	QueueURL     string

	FirebaseProjectID       string
	FirebaseCredentialsJSON string
	FirebaseAPIKey          string

	AdminEmail        string
	AdminPasswordHash string
	JWTSecret         string

	SessionSecret string
	SessionStore  string
	SessionDir    string
	DataFile      string

	WhatsAppPhone     string
	ShippingRatesFile string

	IdempotencyTTL    time.Duration
	OfferSweepSpec    string
	DiscountRateLimit int
	CORSOrigins       []string

	LogLevel  string
	LogFormat string
	LogFile   string

	MetricsNamespace string
}

// Load reads .env (if present) and the process environment.
func Load() Config {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	runLocal := cast.ToBool(getEnv("RUN_LOCAL", "false"))

	return Config{
		Env:      getEnv("APP_ENV", "dev"),
		Port:     getEnv("PORT", "8080"),
		RunLocal: runLocal,

		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", BackendDynamoDB)),
		TablePrefix:  getEnv("TABLE_PREFIX", "bagshop-"),
		QueueURL:     os.Getenv("ORDERS_QUEUE_URL"),

		FirebaseProjectID:       os.Getenv("FIREBASE_PROJECT_ID"),
		FirebaseCredentialsJSON: os.Getenv("FIREBASE_CREDENTIALS_JSON"),
		FirebaseAPIKey:          os.Getenv("FIREBASE_API_KEY"),

		AdminEmail:        os.Getenv("ADMIN_EMAIL"),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
		JWTSecret:         os.Getenv("JWT_SECRET"),

		SessionSecret: getEnv("SESSION_SECRET", DefaultSessionSecret),
		SessionStore:  strings.ToLower(getEnv("SESSION_STORE", "docstore")),
		SessionDir:    os.Getenv("SESSION_DIR"),
		DataFile:      getEnv("DATA_FILE", defaultDataFile(runLocal)),

		WhatsAppPhone:     getEnv("WHATSAPP_PHONE", "201000000000"),
		ShippingRatesFile: os.Getenv("SHIPPING_RATES_FILE"),

		IdempotencyTTL:    durationOr(os.Getenv("IDEMPOTENCY_TTL"), 48*time.Hour),
		OfferSweepSpec:    getEnv("OFFER_SWEEP_SPEC", "@every 1m"),
		DiscountRateLimit: cast.ToInt(getEnv("DISCOUNT_RATE_LIMIT", "10")),
		CORSOrigins:       splitList(os.Getenv("CORS_ORIGINS")),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
		LogFile:   os.Getenv("LOG_FILE"),

		MetricsNamespace: getEnv("METRICS_NAMESPACE", "Bagshop"),
	}
}

// IsProduction reports whether APP_ENV names a production deployment.
func (c Config) IsProduction() bool {
	return c.Env == "prod" || c.Env == "production"
}

// Validate rejects settings that are only acceptable in development.
func (c Config) Validate() error {
	if c.IsProduction() && (c.SessionSecret == "" || c.SessionSecret == DefaultSessionSecret) {
		return ErrInsecureSessionSecret
	}
	return nil
}

// defaultDataFile is the bbolt file holding the order counter and WhatsApp
// number. On Lambda only the temp dir is writable, so the counter there is
// per instance and restarts with each cold start.
func defaultDataFile(runLocal bool) string {
	if runLocal {
		return "bagshop.db"
	}
	return filepath.Join(os.TempDir(), "bagshop.db")
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func durationOr(raw string, def time.Duration) time.Duration {
	if raw == "" {
		return def
	}
	d, err := cast.ToDurationE(raw)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

package config // package config loads application configuration from environment variables

import (
    "fmt"
    "os"
    "strings"
    "time"

    "github.com/go-playground/validator/v10"
)

// Store backends selectable with STORE_BACKEND.
const (
    BackendREST   = "rest"
    BackendRedis  = "redis"
    BackendMemory = "memory"
)

// Config holds all runtime configuration values.  Each field corresponds to
// one environment variable, or to the first non-empty of several aliases.
// Nothing is strictly required at startup: endpoints whose collaborators are
// missing answer with a configuration error instead.
type Config struct {
    Env  string // application environment (e.g. "dev", "prod")
    Port string `validate:"required,numeric"` // HTTP port to listen on

    StripeSecret        string // STRIPE_SECRET_KEY | STRIPE_SECRET
    StripePriceID       string // STRIPE_PRICE_ID | IDENTIFIANT_PRIX_BANDE
    StripeCheckoutMode  string `validate:"omitempty,oneof=payment subscription"`
    StripeWebhookSecret string // signing secret of the webhook endpoint
    AppBaseURL          string `validate:"omitempty,url"` // fallback when requests carry no Origin

    StoreBackend   string        `validate:"oneof=rest redis memory"`
    KVRestURL      string        `validate:"omitempty,url"` // UPSTASH_REDIS_REST_URL | KV_REST_API_URL
    KVRestToken    string        // UPSTASH_REDIS_REST_TOKEN | KV_REST_API_TOKEN
    SessionLockTTL time.Duration `validate:"min=1s"`
    CodePrefix     string        `validate:"required,alphanum,max=8"`

    OpenAIKey   string
    OpenAIModel string

    JWTSecret         string
    AdminEmail        string `validate:"omitempty,email"`
    AdminPasswordHash string
    AdminTokenTTLMin  int `validate:"min=1"`
    BcryptCost        int `validate:"min=4,max=31"`

    AMQPURL string // RABBITMQ_URL | AMQP_URL
    DBUser  string // database username
    DBPass  string // database password (optional)
    DBHost  string // database host address
    DBPort  string // database port number
    DBName  string // database name
}

// Load reads configuration values from environment variables and returns a
// Config.  Defaults are applied where a variable is unset.
func Load() Config {
    kvURL := firstNonEmpty(os.Getenv("UPSTASH_REDIS_REST_URL"), os.Getenv("KV_REST_API_URL"))
    kvToken := firstNonEmpty(os.Getenv("UPSTASH_REDIS_REST_TOKEN"), os.Getenv("KV_REST_API_TOKEN"))

    backend := strings.ToLower(strings.TrimSpace(os.Getenv("STORE_BACKEND")))
    if backend == "" {
        backend = BackendRedis
        if kvURL != "" && kvToken != "" {
            backend = BackendREST
        }
    }

    return Config{
        Env:  envStr("APP_ENV", "dev"),
        Port: envStr("APP_PORT", "8080"),

        StripeSecret:        firstNonEmpty(os.Getenv("STRIPE_SECRET_KEY"), os.Getenv("STRIPE_SECRET")),
        StripePriceID:       firstNonEmpty(os.Getenv("STRIPE_PRICE_ID"), os.Getenv("IDENTIFIANT_PRIX_BANDE")),
        StripeCheckoutMode:  strings.ToLower(strings.TrimSpace(os.Getenv("STRIPE_CHECKOUT_MODE"))),
        StripeWebhookSecret: strings.TrimSpace(os.Getenv("STRIPE_WEBHOOK_SECRET")),
        AppBaseURL:          strings.TrimSpace(os.Getenv("APP_BASE_URL")),

        StoreBackend:   backend,
        KVRestURL:      kvURL,
        KVRestToken:    kvToken,
        SessionLockTTL: envDur("SESSION_LOCK_TTL", 90*time.Second),
        CodePrefix:     strings.ToUpper(envStr("CODE_PREFIX", "BS")),

        OpenAIKey:   strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
        OpenAIModel: envStr("OPENAI_WRITING_MODEL", "gpt-4o-mini"),

        JWTSecret:         os.Getenv("JWT_SECRET"),
        AdminEmail:        strings.TrimSpace(os.Getenv("ADMIN_EMAIL")),
        AdminPasswordHash: strings.TrimSpace(os.Getenv("ADMIN_PASSWORD_HASH")),
        AdminTokenTTLMin:  envInt("ADMIN_TOKEN_TTL_MIN", 60),
        BcryptCost:        envInt("BCRYPT_COST", 12),

        AMQPURL: firstNonEmpty(os.Getenv("RABBITMQ_URL"), os.Getenv("AMQP_URL")),
        DBUser:  os.Getenv("DB_USER"),
        DBPass:  os.Getenv("DB_PASS"),
        DBHost:  os.Getenv("DB_HOST"),
        DBPort:  envStr("DB_PORT", "3306"),
        DBName:  os.Getenv("DB_NAME"),
    }
}

// Validate checks value formats.  Missing optional collaborators are not
// errors here.
func (c Config) Validate() error {
    if err := validator.New().Struct(c); err != nil {
        return fmt.Errorf("invalid configuration: %w", err)
    }
    return nil
}

// DatabaseConfigured reports whether the audit ledger database can be opened.
func (c Config) DatabaseConfigured() bool {
    return c.DBUser != "" && c.DBHost != "" && c.DBName != ""
}

// AdminConfigured reports whether the admin login can succeed at all.
func (c Config) AdminConfigured() bool {
    return c.JWTSecret != "" && c.AdminEmail != "" && c.AdminPasswordHash != ""
}

// firstNonEmpty returns the first value that is not blank, trimmed.
func firstNonEmpty(values ...string) string {
    for _, v := range values {
        if t := strings.TrimSpace(v); t != "" {
            return t
        }
    }
    return ""
}

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App         AppConfig
	Service     ServiceConfig
	DB          DBConfig
	Redis       RedisConfig
	JWT         JWTConfig
	Public      PublicConfig
	Chapa       ChapaConfig
	Payment     PaymentConfig
	Fulfillment FulfillmentConfig
	Render      RenderConfig
	OpenAI      OpenAIConfig
	GCP         GCPConfig
	GCS         GCSConfig
	PubSub      PubSubConfig
	Outbox      OutboxConfig
	RateLimit   RateLimitConfig
	Cron        CronConfig
	Features    FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations that would run production without webhook authentication.
func (c *Config) Validate() error {
	if _, err := url.ParseRequestURI(c.Public.BaseURL); err != nil {
		return fmt.Errorf("%s must be an absolute url: %w", EnvPublicBaseURL, err)
	}
	if c.App.IsProd() && c.WebhookSecret() == "" {
		return fmt.Errorf("either %s or %s is required in production", EnvChapaWebhookSecret, EnvChapaSecretKey)
	}
	return nil
}

// WebhookSecret returns the shared webhook secret, falling back to the processor secret key.
func (c *Config) WebhookSecret() string {
	if s := strings.TrimSpace(c.Chapa.WebhookSecret); s != "" {
		return s
	}
	return strings.TrimSpace(c.Chapa.SecretKey)
}

// WebhookSecretIsFallback reports whether the webhook secret was borrowed from the processor key.
func (c *Config) WebhookSecretIsFallback() bool {
	return strings.TrimSpace(c.Chapa.WebhookSecret) == "" && strings.TrimSpace(c.Chapa.SecretKey) != ""
}

type AppConfig struct {
	Env          string `envconfig:"PRINTSHOP_APP_ENV" required:"true"`
	Port         string `envconfig:"PRINTSHOP_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PRINTSHOP_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PRINTSHOP_LOG_WARN_STACK" default:"false"`
	// MetricsAddr enables a /metrics listener on worker binaries; the api serves its own.
	MetricsAddr  string `envconfig:"PRINTSHOP_METRICS_ADDR"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"PRINTSHOP_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"PRINTSHOP_DB_DSN"`
	Driver string `envconfig:"PRINTSHOP_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"PRINTSHOP_DB_HOST"`
	Port     int    `envconfig:"PRINTSHOP_DB_PORT" default:"5432"`
	User     string `envconfig:"PRINTSHOP_DB_USER"`
	Password string `envconfig:"PRINTSHOP_DB_PASSWORD"`
	Name     string `envconfig:"PRINTSHOP_DB_NAME"`
	SSLMode  string `envconfig:"PRINTSHOP_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PRINTSHOP_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PRINTSHOP_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PRINTSHOP_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PRINTSHOP_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"PRINTSHOP_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PRINTSHOP_REDIS_URL" required:"true"`
	PoolSize     int           `envconfig:"PRINTSHOP_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PRINTSHOP_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PRINTSHOP_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PRINTSHOP_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PRINTSHOP_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig signs operator tokens for the admin routes.
type JWTConfig struct {
	Secret            string `envconfig:"PRINTSHOP_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"PRINTSHOP_JWT_ISSUER" default:"printshop"`
	ExpirationMinutes int    `envconfig:"PRINTSHOP_JWT_EXPIRATION_MINUTES" default:"60"`
}

type PublicConfig struct {
	// BaseURL is where the processor reaches our webhook and returns the customer.
	BaseURL string `envconfig:"PRINTSHOP_PUBLIC_BASE_URL" required:"true"`
	// AllowedOrigins is a comma-separated list of storefront origins for CORS.
	AllowedOrigins []string `envconfig:"PRINTSHOP_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

// CallbackURL is the absolute webhook url handed to the processor.
func (p PublicConfig) CallbackURL() string {
	return strings.TrimRight(p.BaseURL, "/") + "/api/v1/webhooks/chapa"
}

// ReturnURL is the page the processor redirects the customer to once checkout ends.
func (p PublicConfig) ReturnURL(orderID string) string {
	return strings.TrimRight(p.BaseURL, "/") + "/orders/" + url.PathEscape(orderID) + "/complete"
}

type ChapaConfig struct {
	SecretKey     string        `envconfig:"PRINTSHOP_CHAPA_SECRET_KEY"`
	WebhookSecret string        `envconfig:"PRINTSHOP_CHAPA_WEBHOOK_SECRET"`
	BaseURL       string        `envconfig:"PRINTSHOP_CHAPA_BASE_URL" default:"https://api.chapa.co/v1"`
	Timeout       time.Duration `envconfig:"PRINTSHOP_CHAPA_TIMEOUT" default:"15s"`
}

type PaymentConfig struct {
	StrictAmount bool          `envconfig:"PRINTSHOP_PAYMENT_STRICT_AMOUNT" default:"false"`
	WebhookTTL   time.Duration `envconfig:"PRINTSHOP_PAYMENT_WEBHOOK_IDEMPOTENCY_TTL" default:"72h"`
}

type FulfillmentConfig struct {
	ArtifactRetention time.Duration `envconfig:"PRINTSHOP_ARTIFACT_RETENTION" default:"72h"`
	ClaimLease        time.Duration `envconfig:"PRINTSHOP_FULFILLMENT_CLAIM_LEASE" default:"10m"`
	MaxAttempts       int           `envconfig:"PRINTSHOP_FULFILLMENT_MAX_ATTEMPTS" default:"5"`
	PendingReconcile  time.Duration `envconfig:"PRINTSHOP_PENDING_RECONCILE_AFTER" default:"15m"`
}

type RenderConfig struct {
	Timeout    time.Duration `envconfig:"PRINTSHOP_RENDER_TIMEOUT" default:"60s"`
	ChromePath string        `envconfig:"PRINTSHOP_RENDER_CHROME_PATH"`
	NoSandbox  bool          `envconfig:"PRINTSHOP_RENDER_NO_SANDBOX" default:"false"`
}

type OpenAIConfig struct {
	APIKey  string        `envconfig:"PRINTSHOP_OPENAI_API_KEY"`
	Model   string        `envconfig:"PRINTSHOP_OPENAI_MODEL" default:"gpt-4o-mini"`
	BaseURL string        `envconfig:"PRINTSHOP_OPENAI_BASE_URL"`
	Timeout time.Duration `envconfig:"PRINTSHOP_ENRICHMENT_TIMEOUT" default:"30s"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"PRINTSHOP_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"PRINTSHOP_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"PRINTSHOP_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName string `envconfig:"PRINTSHOP_GCS_BUCKET_NAME" required:"true"`
}

type PubSubConfig struct {
	OrdersTopic string `envconfig:"PRINTSHOP_PUBSUB_ORDERS_TOPIC" default:"printshop-order-events"`
	DLQTopic    string `envconfig:"PRINTSHOP_PUBSUB_DLQ_TOPIC"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"PRINTSHOP_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"PRINTSHOP_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"PRINTSHOP_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"PRINTSHOP_OUTBOX_RETENTION" default:"720h"`
}

type RateLimitConfig struct {
	PaymentWindow     time.Duration `envconfig:"PRINTSHOP_RATE_LIMIT_PAYMENT_WINDOW" default:"1m"`
	PaymentIPLimit    int           `envconfig:"PRINTSHOP_RATE_LIMIT_PAYMENT_IP_LIMIT" default:"20"`
	PaymentOrderLimit int           `envconfig:"PRINTSHOP_RATE_LIMIT_PAYMENT_ORDER_LIMIT" default:"5"`
}

// CronConfig drives the cron worker. Tick is how often due jobs are checked.
type CronConfig struct {
	Tick           time.Duration `envconfig:"PRINTSHOP_CRON_TICK" default:"1m"`
	LockTTL        time.Duration `envconfig:"PRINTSHOP_CRON_LOCK_TTL" default:"15m"`
	BatchSize      int           `envconfig:"PRINTSHOP_CRON_BATCH_SIZE" default:"50"`
	SweepEvery     time.Duration `envconfig:"PRINTSHOP_CRON_SWEEP_EVERY" default:"1h"`
	RetryEvery     time.Duration `envconfig:"PRINTSHOP_CRON_RETRY_EVERY" default:"5m"`
	ReconcileEvery time.Duration `envconfig:"PRINTSHOP_CRON_RECONCILE_EVERY" default:"5m"`
	RetentionEvery time.Duration `envconfig:"PRINTSHOP_CRON_RETENTION_EVERY" default:"24h"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"PRINTSHOP_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range discreteDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}

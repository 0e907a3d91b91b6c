package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	HTTP         HTTPConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Shipping     ShippingConfig
	Gateway      GatewayConfig
	Proofs       ProofConfig
	Cron         CronConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Kafka        KafkaConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Outbox.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"STOREFRONT_SERVICE_KIND" default:"api"`
	// MetricsAddr is where background workers expose /metrics. Empty
	// disables the listener; the api serves metrics on its own router.
	MetricsAddr string `envconfig:"STOREFRONT_WORKER_METRICS_ADDR" default:":9090"`
}

type DBConfig struct {
	DSN    string `envconfig:"STOREFRONT_DB_DSN"`
	Driver string `envconfig:"STOREFRONT_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"STOREFRONT_DB_HOST"`
	Port     int    `envconfig:"STOREFRONT_DB_PORT" default:"5432"`
	User     string `envconfig:"STOREFRONT_DB_USER"`
	Password string `envconfig:"STOREFRONT_DB_PASSWORD"`
	Name     string `envconfig:"STOREFRONT_DB_NAME"`
	SSLMode  string `envconfig:"STOREFRONT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"STOREFRONT_DB_SLOW_QUERY_THRESHOLD" default:"500ms"`
	TxMaxRetries       int           `envconfig:"STOREFRONT_DB_TX_MAX_RETRIES" default:"3"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// HTTPConfig tunes the api server and its edge middleware.
type HTTPConfig struct {
	ReadTimeout     time.Duration `envconfig:"STOREFRONT_HTTP_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"STOREFRONT_HTTP_WRITE_TIMEOUT" default:"30s"`
	IdleTimeout     time.Duration `envconfig:"STOREFRONT_HTTP_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"STOREFRONT_HTTP_SHUTDOWN_TIMEOUT" default:"10s"`
	CORSOrigins     []string      `envconfig:"STOREFRONT_HTTP_CORS_ORIGINS" default:"http://localhost:3000"`

	RateLimitWindow   time.Duration `envconfig:"STOREFRONT_RATE_LIMIT_WINDOW" default:"1m"`
	CheckoutRateLimit int           `envconfig:"STOREFRONT_RATE_LIMIT_CHECKOUT" default:"10"`
	WebhookRateLimit  int           `envconfig:"STOREFRONT_RATE_LIMIT_WEBHOOK" default:"600"`
}

// JWTConfig verifies bearer tokens minted by the external auth provider.
type JWTConfig struct {
	Secret string `envconfig:"STOREFRONT_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"STOREFRONT_JWT_ISSUER" required:"true"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"STOREFRONT_AUTO_MIGRATE" default:"false"`
}

// ShippingConfig covers the external rate API and the local fallback formula.
type ShippingConfig struct {
	RateAPIBaseURL string        `envconfig:"STOREFRONT_SHIPPING_RATE_API_URL"`
	RateAPIKey     string        `envconfig:"STOREFRONT_SHIPPING_RATE_API_KEY"`
	RateAPITimeout time.Duration `envconfig:"STOREFRONT_SHIPPING_RATE_API_TIMEOUT" default:"5s"`

	BaseCost     int64   `envconfig:"STOREFRONT_SHIPPING_BASE_COST" default:"15000"`
	FreeRadiusKm float64 `envconfig:"STOREFRONT_SHIPPING_FREE_RADIUS_KM" default:"5"`
	PerKmCost    int64   `envconfig:"STOREFRONT_SHIPPING_PER_KM_COST" default:"500"`
	MinCost      int64   `envconfig:"STOREFRONT_SHIPPING_MIN_COST" default:"15000"`
	MaxCost      int64   `envconfig:"STOREFRONT_SHIPPING_MAX_COST" default:"150000"`

	BreakerCooldown         time.Duration `envconfig:"STOREFRONT_SHIPPING_BREAKER_COOLDOWN" default:"10m"`
	BreakerFailureThreshold int           `envconfig:"STOREFRONT_SHIPPING_BREAKER_FAILURE_THRESHOLD" default:"5"`
}

// RateAPIEnabled reports whether an external rate API is configured at all.
func (s ShippingConfig) RateAPIEnabled() bool {
	return strings.TrimSpace(s.RateAPIBaseURL) != ""
}

type GatewayConfig struct {
	Provider      string        `envconfig:"STOREFRONT_GATEWAY_PROVIDER" default:"midtrans"`
	ServerKey     string        `envconfig:"STOREFRONT_GATEWAY_SERVER_KEY" required:"true"`
	PaymentExpiry time.Duration `envconfig:"STOREFRONT_GATEWAY_PAYMENT_EXPIRY" default:"24h"`
}

type ProofConfig struct {
	MaxBytes   int64  `envconfig:"STOREFRONT_PROOF_MAX_BYTES" default:"2097152"`
	StorageDir string `envconfig:"STOREFRONT_PROOF_STORAGE_DIR" default:"./data/payment-proofs"`
}

type CronConfig struct {
	Interval         time.Duration `envconfig:"STOREFRONT_CRON_INTERVAL" default:"5m"`
	LockTTL          time.Duration `envconfig:"STOREFRONT_CRON_LOCK_TTL" default:"4m"`
	JobTimeout       time.Duration `envconfig:"STOREFRONT_CRON_JOB_TIMEOUT" default:"2m"`
	AutoConfirmAfter time.Duration `envconfig:"STOREFRONT_CRON_AUTO_CONFIRM_AFTER" default:"48h"`
	BatchSize        int           `envconfig:"STOREFRONT_CRON_BATCH_SIZE" default:"100"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"STOREFRONT_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"STOREFRONT_GCP_CREDENTIALS_JSON"`
	CredentialsFile string `envconfig:"STOREFRONT_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic        string `envconfig:"STOREFRONT_PUBSUB_ORDERS_TOPIC" default:"storefront-order-events"`
	OrdersSubscription string `envconfig:"STOREFRONT_PUBSUB_ORDERS_SUBSCRIPTION"`
	EmulatorHost       string `envconfig:"STOREFRONT_PUBSUB_EMULATOR_HOST"`
}

type KafkaConfig struct {
	Brokers      []string      `envconfig:"STOREFRONT_KAFKA_BROKERS"`
	OrdersTopic  string        `envconfig:"STOREFRONT_KAFKA_ORDERS_TOPIC" default:"storefront.order-events"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_KAFKA_WRITE_TIMEOUT" default:"10s"`
}

type OutboxConfig struct {
	Sink           string `envconfig:"STOREFRONT_OUTBOX_SINK" default:"pubsub"`
	BatchSize      int    `envconfig:"STOREFRONT_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int    `envconfig:"STOREFRONT_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int    `envconfig:"STOREFRONT_OUTBOX_MAX_ATTEMPTS" default:"10"`
	InventoryTopic string `envconfig:"STOREFRONT_OUTBOX_INVENTORY_TOPIC"`

	Retention time.Duration `envconfig:"STOREFRONT_OUTBOX_RETENTION" default:"168h"`
}

func (o OutboxConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(o.Sink)) {
	case OutboxSinkPubSub, OutboxSinkKafka:
		return nil
	default:
		return fmt.Errorf("%s must be one of %q or %q", EnvOutboxSink, OutboxSinkPubSub, OutboxSinkKafka)
	}
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

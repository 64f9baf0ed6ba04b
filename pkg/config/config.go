package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App            AppConfig
	DB             DBConfig
	Redis          RedisConfig
	Carriers       CarriersConfig
	PaymentWebhook PaymentWebhookConfig
	CarrierWebhook CarrierWebhookConfig
	FeatureFlags   FeatureFlagsConfig
	GCP            GCPConfig
	PubSub         PubSubConfig
	Outbox         OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CRAFTMART_APP_ENV" required:"true"`
	Port         string `envconfig:"CRAFTMART_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CRAFTMART_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CRAFTMART_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"CRAFTMART_DB_DSN"`
	Driver string `envconfig:"CRAFTMART_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"CRAFTMART_DB_HOST"`
	Port     int    `envconfig:"CRAFTMART_DB_PORT" default:"5432"`
	User     string `envconfig:"CRAFTMART_DB_USER"`
	Password string `envconfig:"CRAFTMART_DB_PASSWORD"`
	Name     string `envconfig:"CRAFTMART_DB_NAME"`
	SSLMode  string `envconfig:"CRAFTMART_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CRAFTMART_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CRAFTMART_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CRAFTMART_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CRAFTMART_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CRAFTMART_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CRAFTMART_REDIS_ADDR"`
	Password     string        `envconfig:"CRAFTMART_REDIS_PASSWORD"`
	DB           int           `envconfig:"CRAFTMART_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CRAFTMART_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CRAFTMART_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CRAFTMART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CRAFTMART_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CRAFTMART_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// CarrierConfig holds the connection settings for one carrier integration.
type CarrierConfig struct {
	BaseURL        string        `envconfig:"BASE_URL"`
	APIToken       string        `envconfig:"API_TOKEN"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"10s"`
}

type CarriersConfig struct {
	Default    string        `envconfig:"CRAFTMART_CARRIER_DEFAULT" default:"shiprocket"`
	Shiprocket CarrierConfig `envconfig:"CRAFTMART_CARRIER_SHIPROCKET"`
	Delhivery  CarrierConfig `envconfig:"CRAFTMART_CARRIER_DELHIVERY"`

	MaxAttempts    int           `envconfig:"CRAFTMART_CARRIER_MAX_ATTEMPTS" default:"3"`
	InitialBackoff time.Duration `envconfig:"CRAFTMART_CARRIER_INITIAL_BACKOFF" default:"250ms"`
	MaxBackoff     time.Duration `envconfig:"CRAFTMART_CARRIER_MAX_BACKOFF" default:"5s"`
}

type PaymentWebhookConfig struct {
	SigningSecret string        `envconfig:"CRAFTMART_PAYMENT_WEBHOOK_SECRET" required:"true"`
	DedupTTL      time.Duration `envconfig:"CRAFTMART_PAYMENT_WEBHOOK_DEDUP_TTL" default:"168h"`
}

type CarrierWebhookConfig struct {
	SigningSecret string        `envconfig:"CRAFTMART_CARRIER_WEBHOOK_SECRET" required:"true"`
	DedupTTL      time.Duration `envconfig:"CRAFTMART_CARRIER_WEBHOOK_DEDUP_TTL" default:"168h"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"CRAFTMART_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"CRAFTMART_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	OrdersTopic              string `envconfig:"CRAFTMART_PUBSUB_ORDERS_TOPIC" default:"cm-order-events"`
	OrdersSubscription       string `envconfig:"CRAFTMART_PUBSUB_ORDERS_SUBSCRIPTION"`
	InventoryTopic           string `envconfig:"CRAFTMART_PUBSUB_INVENTORY_TOPIC" default:"cm-inventory-events"`
	InventorySubscription    string `envconfig:"CRAFTMART_PUBSUB_INVENTORY_SUBSCRIPTION"`
	NotificationTopic        string `envconfig:"CRAFTMART_PUBSUB_NOTIFICATION_TOPIC" default:"cm-notification-events"`
	NotificationSubscription string `envconfig:"CRAFTMART_PUBSUB_NOTIFICATION_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"CRAFTMART_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"CRAFTMART_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"CRAFTMART_OUTBOX_MAX_ATTEMPTS" default:"10"`
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
	for _, env := range requiredDBEnvVars {
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

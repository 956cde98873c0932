package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "EVENTCRM"

	AppEnvDev  = "dev"
	AppEnvProd = "production"

	EnvAppEnv          = "EVENTCRM_APP_ENV"
	EnvPort            = "EVENTCRM_APP_PORT"
	EnvDBDSN           = "EVENTCRM_DB_DSN"
	EnvDBHost          = "EVENTCRM_DB_HOST"
	EnvDBUser          = "EVENTCRM_DB_USER"
	EnvDBName          = "EVENTCRM_DB_NAME"
	EnvRedisURL        = "EVENTCRM_REDIS_URL"
	EnvJWTSecret       = "EVENTCRM_JWT_SECRET"
	EnvJWTIssuer       = "EVENTCRM_JWT_ISSUER"
	EnvJWTExpMins      = "EVENTCRM_JWT_EXPIRATION_MINUTES"
	EnvGCPProjectID    = "EVENTCRM_GCP_PROJECT_ID"
	EnvPubSubOfferTop  = "EVENTCRM_PUBSUB_OFFER_TOPIC"
	EnvPubSubOfferSub  = "EVENTCRM_PUBSUB_OFFER_SUBSCRIPTION"
	EnvBigQueryDataset = "EVENTCRM_BIGQUERY_DATASET"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	RPC          RPCConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	Outbox       OutboxConfig
	Worker       WorkerConfig
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
	Env          string `envconfig:"EVENTCRM_APP_ENV" required:"true"`
	Port         string `envconfig:"EVENTCRM_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"EVENTCRM_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"EVENTCRM_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"EVENTCRM_DB_DSN"`
	Driver string `envconfig:"EVENTCRM_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"EVENTCRM_DB_HOST"`
	LegacyPort     int    `envconfig:"EVENTCRM_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"EVENTCRM_DB_USER"`
	LegacyPassword string `envconfig:"EVENTCRM_DB_PASSWORD"`
	LegacyName     string `envconfig:"EVENTCRM_DB_NAME"`
	LegacySSLMode  string `envconfig:"EVENTCRM_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"EVENTCRM_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"EVENTCRM_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"EVENTCRM_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"EVENTCRM_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"EVENTCRM_REDIS_URL" required:"true"`
	Address      string        `envconfig:"EVENTCRM_REDIS_ADDR"`
	Password     string        `envconfig:"EVENTCRM_REDIS_PASSWORD"`
	DB           int           `envconfig:"EVENTCRM_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"EVENTCRM_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"EVENTCRM_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"EVENTCRM_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"EVENTCRM_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"EVENTCRM_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"EVENTCRM_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"EVENTCRM_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"EVENTCRM_JWT_EXPIRATION_MINUTES" required:"true"`
}

// AccessTokenTTL returns the access token lifetime configured in minutes.
func (j JWTConfig) AccessTokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

// RPCConfig bounds every remote evaluation and write so a slow backend is
// reported as a timeout rather than folded into a generic failure.
type RPCConfig struct {
	Timeout time.Duration `envconfig:"EVENTCRM_RPC_TIMEOUT" default:"15s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"EVENTCRM_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"EVENTCRM_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"EVENTCRM_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"EVENTCRM_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"EVENTCRM_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OfferTopic        string `envconfig:"EVENTCRM_PUBSUB_OFFER_TOPIC" required:"true"`
	OfferSubscription string `envconfig:"EVENTCRM_PUBSUB_OFFER_SUBSCRIPTION" required:"true"`
}

type BigQueryConfig struct {
	Dataset          string `envconfig:"EVENTCRM_BIGQUERY_DATASET" default:"eventcrm"`
	OfferEventsTable string `envconfig:"EVENTCRM_BIGQUERY_OFFER_TABLE" default:"offer_events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"EVENTCRM_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"EVENTCRM_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"EVENTCRM_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type WorkerConfig struct {
	ProcessedEventTTL time.Duration `envconfig:"EVENTCRM_WORKER_PROCESSED_EVENT_TTL" default:"72h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}

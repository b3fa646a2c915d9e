package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/multierr"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Eventing      EventingConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
	Hooks         HooksConfig
	Cron          CronConfig
}

// Load reads the LOCALBIZ_* environment and rejects settings that parse but
// cannot work together. Every problem is reported, not only the first.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.check(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) check() error {
	var err error
	if c.DB.DSN == "" {
		dsn, dsnErr := c.DB.compose()
		c.DB.DSN = dsn
		err = multierr.Append(err, dsnErr)
	}
	if c.JWT.ExpirationMinutes <= 0 {
		err = multierr.Append(err, fmt.Errorf("%s must be positive", EnvJWTExpMins))
	} else if c.JWT.RefreshTokenTTLMinutes <= c.JWT.ExpirationMinutes {
		err = multierr.Append(err, fmt.Errorf("%s must exceed %s", EnvRefreshTokenTTLMinutes, EnvJWTExpMins))
	}
	if c.Outbox.RetryBase > c.Outbox.RetryCap {
		err = multierr.Append(err, fmt.Errorf("outbox retry base %s exceeds cap %s", c.Outbox.RetryBase, c.Outbox.RetryCap))
	}
	if c.Cron.NotificationReadRetention > c.Cron.NotificationRetention {
		err = multierr.Append(err, fmt.Errorf("read notification retention outlives %s", EnvCronNotificationRetains))
	}
	return err
}

type AppConfig struct {
	Env          string `envconfig:"LOCALBIZ_APP_ENV" required:"true"`
	Port         string `envconfig:"LOCALBIZ_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"LOCALBIZ_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LOCALBIZ_LOG_WARN_STACK" default:"false"`
	// RequestTimeout bounds every API request; stalled fetches surface as errors instead of hanging.
	RequestTimeout time.Duration `envconfig:"LOCALBIZ_REQUEST_TIMEOUT" default:"15s"`
	CORSOrigins    []string      `envconfig:"LOCALBIZ_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"LOCALBIZ_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"LOCALBIZ_DB_DSN"`
	Driver string `envconfig:"LOCALBIZ_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"LOCALBIZ_DB_HOST"`
	LegacyPort     int    `envconfig:"LOCALBIZ_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LOCALBIZ_DB_USER"`
	LegacyPassword string `envconfig:"LOCALBIZ_DB_PASSWORD"`
	LegacyName     string `envconfig:"LOCALBIZ_DB_NAME"`
	LegacySSLMode  string `envconfig:"LOCALBIZ_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LOCALBIZ_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LOCALBIZ_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LOCALBIZ_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LOCALBIZ_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"LOCALBIZ_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LOCALBIZ_REDIS_URL" required:"true"`
	Address      string        `envconfig:"LOCALBIZ_REDIS_ADDR"`
	Password     string        `envconfig:"LOCALBIZ_REDIS_PASSWORD"`
	DB           int           `envconfig:"LOCALBIZ_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LOCALBIZ_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LOCALBIZ_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LOCALBIZ_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LOCALBIZ_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LOCALBIZ_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"LOCALBIZ_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"LOCALBIZ_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"LOCALBIZ_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"LOCALBIZ_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"LOCALBIZ_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"LOCALBIZ_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"LOCALBIZ_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"LOCALBIZ_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"LOCALBIZ_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"LOCALBIZ_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"LOCALBIZ_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"LOCALBIZ_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"LOCALBIZ_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"LOCALBIZ_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"LOCALBIZ_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"LOCALBIZ_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"LOCALBIZ_AUTO_MIGRATE" default:"false"`
	// StatusEvents controls whether review decisions enqueue business_status_changed outbox events.
	StatusEvents bool `envconfig:"LOCALBIZ_FEATURE_STATUS_EVENTS" default:"true"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"LOCALBIZ_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"LOCALBIZ_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"LOCALBIZ_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"LOCALBIZ_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	BusinessTopic            string `envconfig:"LOCALBIZ_PUBSUB_BUSINESS_TOPIC" default:"localbiz-business-events"`
	NotificationSubscription string `envconfig:"LOCALBIZ_PUBSUB_NOTIFICATION_SUBSCRIPTION" default:"localbiz-notifications"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"LOCALBIZ_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"LOCALBIZ_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"LOCALBIZ_OUTBOX_MAX_ATTEMPTS" default:"10"`
	// RetryBase is the delay after the first failed publish; it doubles per
	// attempt up to RetryCap.
	RetryBase time.Duration `envconfig:"LOCALBIZ_OUTBOX_RETRY_BASE" default:"5s"`
	RetryCap  time.Duration `envconfig:"LOCALBIZ_OUTBOX_RETRY_CAP" default:"10m"`
}

type HooksConfig struct {
	// Secret is compared against the X-Hook-Secret header; empty disables the check.
	Secret string `envconfig:"LOCALBIZ_HOOKS_SECRET"`
}

type CronConfig struct {
	Interval                  time.Duration `envconfig:"LOCALBIZ_CRON_INTERVAL" default:"1h"`
	LockTTL                   time.Duration `envconfig:"LOCALBIZ_CRON_LOCK_TTL" default:"10m"`
	NotificationReadRetention time.Duration `envconfig:"LOCALBIZ_CRON_NOTIFICATION_READ_RETENTION" default:"720h"`
	NotificationRetention     time.Duration `envconfig:"LOCALBIZ_CRON_NOTIFICATION_RETENTION" default:"2160h"`
	OutboxRetention           time.Duration `envconfig:"LOCALBIZ_CRON_OUTBOX_RETENTION" default:"336h"`
	OutboxDeadRetention       time.Duration `envconfig:"LOCALBIZ_CRON_OUTBOX_DEAD_RETENTION" default:"720h"`
}

// compose builds a postgres URL from the discrete LOCALBIZ_DB_* parts.
func (db DBConfig) compose() (string, error) {
	parts := []struct{ env, value string }{
		{EnvDBHost, db.LegacyHost},
		{EnvDBUser, db.LegacyUser},
		{EnvDBName, db.LegacyName},
	}
	var missing []string
	for _, p := range parts {
		if p.value == "" {
			missing = append(missing, p.env)
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("%s is empty and %s not set", EnvDBDSN, strings.Join(missing, ", "))
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.User(db.LegacyUser),
		Host:   net.JoinHostPort(db.LegacyHost, strconv.Itoa(db.LegacyPort)),
		Path:   db.LegacyName,
	}
	if db.LegacyPassword != "" {
		u.User = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}
	if db.LegacySSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {db.LegacySSLMode}}.Encode()
	}
	return u.String(), nil
}

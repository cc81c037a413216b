package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Enrollment    EnrollmentConfig
	Stripe        StripeConfig
	Mux           MuxConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
	Webhooks      WebhookConfig
	Cron          CronConfig
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
	Env          string `envconfig:"LEARNHUB_APP_ENV" required:"true"`
	Port         string `envconfig:"LEARNHUB_APP_PORT" required:"true"`
	BaseURL      string `envconfig:"LEARNHUB_APP_BASE_URL" default:"http://localhost:3000"`
	LogLevel     string `envconfig:"LEARNHUB_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LEARNHUB_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"LEARNHUB_DB_DSN"`
	Driver string `envconfig:"LEARNHUB_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"LEARNHUB_DB_HOST"`
	LegacyPort     int    `envconfig:"LEARNHUB_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LEARNHUB_DB_USER"`
	LegacyPassword string `envconfig:"LEARNHUB_DB_PASSWORD"`
	LegacyName     string `envconfig:"LEARNHUB_DB_NAME"`
	LegacySSLMode  string `envconfig:"LEARNHUB_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LEARNHUB_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LEARNHUB_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LEARNHUB_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LEARNHUB_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LEARNHUB_REDIS_URL" required:"true"`
	Address      string        `envconfig:"LEARNHUB_REDIS_ADDR"`
	Password     string        `envconfig:"LEARNHUB_REDIS_PASSWORD"`
	DB           int           `envconfig:"LEARNHUB_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LEARNHUB_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LEARNHUB_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LEARNHUB_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LEARNHUB_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LEARNHUB_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"LEARNHUB_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"LEARNHUB_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"LEARNHUB_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"LEARNHUB_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"LEARNHUB_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"LEARNHUB_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"LEARNHUB_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"LEARNHUB_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"LEARNHUB_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"LEARNHUB_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"LEARNHUB_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"LEARNHUB_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"LEARNHUB_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"LEARNHUB_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"LEARNHUB_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"LEARNHUB_AUTO_MIGRATE" default:"false"`
}

type EnrollmentConfig struct {
	// FreePlanMax caps concurrent enrollments for users on the FREE plan.
	FreePlanMax int `envconfig:"LEARNHUB_FREE_PLAN_MAX_ENROLLMENTS" default:"3"`
}

type StripeConfig struct {
	APIKey                   string `envconfig:"LEARNHUB_STRIPE_API_KEY"`
	Secret                   string `envconfig:"LEARNHUB_STRIPE_WEBHOOK_SECRET"`
	Env                      string `envconfig:"LEARNHUB_STRIPE_ENV" default:"test"`
	ProMonthlyPriceID        string `envconfig:"LEARNHUB_STRIPE_PRO_MONTHLY_PRICE_ID"`
	ProYearlyPriceID         string `envconfig:"LEARNHUB_STRIPE_PRO_YEARLY_PRICE_ID"`
	EnterpriseMonthlyPriceID string `envconfig:"LEARNHUB_STRIPE_ENTERPRISE_MONTHLY_PRICE_ID"`
	EnterpriseYearlyPriceID  string `envconfig:"LEARNHUB_STRIPE_ENTERPRISE_YEARLY_PRICE_ID"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type MuxConfig struct {
	WebhookSecret string `envconfig:"LEARNHUB_MUX_WEBHOOK_SECRET"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"LEARNHUB_GCP_PROJECT_ID"`
	ApplicationCredentials string `envconfig:"LEARNHUB_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DomainTopic        string `envconfig:"LEARNHUB_PUBSUB_DOMAIN_TOPIC" default:"lh-domain-events"`
	DomainSubscription string `envconfig:"LEARNHUB_PUBSUB_DOMAIN_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"LEARNHUB_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"LEARNHUB_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"LEARNHUB_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type WebhookConfig struct {
	IdempotencyTTL time.Duration `envconfig:"LEARNHUB_WEBHOOK_IDEMPOTENCY_TTL" default:"720h"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"LEARNHUB_CRON_INTERVAL" default:"24h"`
	LockTTL  time.Duration `envconfig:"LEARNHUB_CRON_LOCK_TTL" default:"25h"`
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

package config

// EnvPrefix is applied by envconfig when resolving variables.
const EnvPrefix = "learnhub"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv     = "LEARNHUB_APP_ENV"
	EnvPort       = "LEARNHUB_APP_PORT"
	EnvDBDSN      = "LEARNHUB_DB_DSN"
	EnvDBHost     = "LEARNHUB_DB_HOST"
	EnvDBUser     = "LEARNHUB_DB_USER"
	EnvDBName     = "LEARNHUB_DB_NAME"
	EnvRedisURL   = "LEARNHUB_REDIS_URL"
	EnvJWTSecret  = "LEARNHUB_JWT_SECRET"
	EnvJWTIssuer  = "LEARNHUB_JWT_ISSUER"
	EnvJWTExpMins = "LEARNHUB_JWT_EXPIRATION_MINUTES"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

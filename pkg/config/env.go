package config

// EnvPrefix namespaces every environment variable the service reads.
const EnvPrefix = "smartpos"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "SMARTPOS_APP_ENV"
	EnvPort     = "SMARTPOS_APP_PORT"
	EnvLogLevel = "SMARTPOS_LOG_LEVEL"

	EnvDBDSN  = "SMARTPOS_DB_DSN"
	EnvDBHost = "SMARTPOS_DB_HOST"
	EnvDBPort = "SMARTPOS_DB_PORT"
	EnvDBUser = "SMARTPOS_DB_USER"
	EnvDBName = "SMARTPOS_DB_NAME"

	EnvRedisURL = "SMARTPOS_REDIS_URL"

	EnvJWTSecret              = "SMARTPOS_JWT_SECRET"
	EnvJWTIssuer              = "SMARTPOS_JWT_ISSUER"
	EnvJWTExpMins             = "SMARTPOS_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "SMARTPOS_REFRESH_TOKEN_TTL_MINUTES"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

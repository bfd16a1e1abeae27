package config

const (
	// EnvPrefix is empty because every variable spells out its LABINV_ name in the struct tags.
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMongo    = "mongo"

	defaultSQLiteDSN = "file:labinventory.db?_foreign_keys=on"
)

const (
	EnvAppEnv                 = "LABINV_APP_ENV"
	EnvPort                   = "LABINV_APP_PORT"
	EnvTimeZone               = "LABINV_APP_TIMEZONE"
	EnvCORSOrigins            = "LABINV_CORS_ORIGINS"
	EnvDBDSN                  = "LABINV_DB_DSN"
	EnvDBDriver               = "LABINV_DB_DRIVER"
	EnvDBHost                 = "LABINV_DB_HOST"
	EnvDBUser                 = "LABINV_DB_USER"
	EnvDBName                 = "LABINV_DB_NAME"
	EnvMongoURI               = "LABINV_MONGO_URI"
	EnvRedisURL               = "LABINV_REDIS_URL"
	EnvJWTSecret              = "LABINV_JWT_SECRET"
	EnvJWTIssuer              = "LABINV_JWT_ISSUER"
	EnvJWTExpMins             = "LABINV_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "LABINV_REFRESH_TOKEN_TTL_MINUTES"
	EnvCronSchedule           = "LABINV_CRON_SCHEDULE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Mongo         MongoConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Uploads       UploadsConfig
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
	if cfg.DB.IsMongo() && strings.TrimSpace(cfg.Mongo.URI) == "" {
		return nil, fmt.Errorf("%s is required when %s=%s", EnvMongoURI, EnvDBDriver, DriverMongo)
	}
	if _, err := cfg.App.Location(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"LABINV_APP_ENV" required:"true"`
	Port         string   `envconfig:"LABINV_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"LABINV_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"LABINV_LOG_WARN_STACK" default:"false"`
	TimeZone     string   `envconfig:"LABINV_APP_TIMEZONE" default:"Asia/Jakarta"`
	CORSOrigins  []string `envconfig:"LABINV_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// Location resolves the school's time zone used for due-date arithmetic.
func (a AppConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(a.TimeZone)
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", EnvTimeZone, name, err)
	}
	return loc, nil
}

type DBConfig struct {
	DSN    string `envconfig:"LABINV_DB_DSN"`
	Driver string `envconfig:"LABINV_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"LABINV_DB_HOST"`
	LegacyPort     int    `envconfig:"LABINV_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LABINV_DB_USER"`
	LegacyPassword string `envconfig:"LABINV_DB_PASSWORD"`
	LegacyName     string `envconfig:"LABINV_DB_NAME"`
	LegacySSLMode  string `envconfig:"LABINV_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LABINV_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LABINV_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LABINV_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LABINV_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// NormalizedDriver lowercases the configured driver, defaulting to postgres.
func (db DBConfig) NormalizedDriver() string {
	driver := strings.ToLower(strings.TrimSpace(db.Driver))
	if driver == "" {
		return DriverPostgres
	}
	return driver
}

func (db DBConfig) IsSQLite() bool { return db.NormalizedDriver() == DriverSQLite }

func (db DBConfig) IsMongo() bool { return db.NormalizedDriver() == DriverMongo }

type MongoConfig struct {
	URI            string        `envconfig:"LABINV_MONGO_URI"`
	Database       string        `envconfig:"LABINV_MONGO_DATABASE" default:"labinventory"`
	ConnectTimeout time.Duration `envconfig:"LABINV_MONGO_CONNECT_TIMEOUT" default:"10s"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LABINV_REDIS_URL" required:"true"`
	Address      string        `envconfig:"LABINV_REDIS_ADDR"`
	Password     string        `envconfig:"LABINV_REDIS_PASSWORD"`
	DB           int           `envconfig:"LABINV_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LABINV_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LABINV_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LABINV_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LABINV_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LABINV_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"LABINV_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"LABINV_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"LABINV_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"LABINV_REFRESH_TOKEN_TTL_MINUTES" default:"10080"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"LABINV_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"LABINV_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"LABINV_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"LABINV_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"LABINV_ARGON_KEY_LEN" default:"32"`
	MinLength        int `envconfig:"LABINV_PASSWORD_MIN_LENGTH" default:"6"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"LABINV_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginUsernameLimit int           `envconfig:"LABINV_AUTH_RATE_LIMIT_LOGIN_USERNAME_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"LABINV_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"LABINV_AUTO_MIGRATE" default:"false"`
}

type UploadsConfig struct {
	RootDir             string `envconfig:"LABINV_UPLOADS_DIR" default:"uploads"`
	PublicBaseURL       string `envconfig:"LABINV_UPLOADS_BASE_URL" default:"/uploads"`
	MaxDamagePhotoBytes int64  `envconfig:"LABINV_UPLOADS_MAX_DAMAGE_PHOTO_BYTES" default:"5242880"`
	MaxProfileBytes     int64  `envconfig:"LABINV_UPLOADS_MAX_PROFILE_BYTES" default:"2097152"`
}

type CronConfig struct {
	Schedule              string        `envconfig:"LABINV_CRON_SCHEDULE" default:"0 7 * * *"`
	LockTTL               time.Duration `envconfig:"LABINV_CRON_LOCK_TTL" default:"30m"`
	ReminderWindowDays    int           `envconfig:"LABINV_CRON_REMINDER_WINDOW_DAYS" default:"1"`
	NotificationRetention int           `envconfig:"LABINV_CRON_NOTIFICATION_RETENTION_DAYS" default:"30"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" || db.IsMongo() {
		return nil
	}
	if db.IsSQLite() {
		db.DSN = defaultSQLiteDSN
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

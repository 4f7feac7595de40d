package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "kirana"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "KIRANA_DB_DSN"
	EnvDBHost = "KIRANA_DB_HOST"
	EnvDBUser = "KIRANA_DB_USER"
	EnvDBName = "KIRANA_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Payment      PaymentConfig
	Courier      CourierConfig
	Jobs         JobsConfig
	FeatureFlags FeatureFlagsConfig
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
	Env          string `envconfig:"KIRANA_APP_ENV" required:"true"`
	Port         string `envconfig:"KIRANA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"KIRANA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"KIRANA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"KIRANA_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"KIRANA_DB_DSN"`
	Driver string `envconfig:"KIRANA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"KIRANA_DB_HOST"`
	LegacyPort     int    `envconfig:"KIRANA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"KIRANA_DB_USER"`
	LegacyPassword string `envconfig:"KIRANA_DB_PASSWORD"`
	LegacyName     string `envconfig:"KIRANA_DB_NAME"`
	LegacySSLMode  string `envconfig:"KIRANA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"KIRANA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"KIRANA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"KIRANA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"KIRANA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"KIRANA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"KIRANA_REDIS_ADDR"`
	Password     string        `envconfig:"KIRANA_REDIS_PASSWORD"`
	DB           int           `envconfig:"KIRANA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"KIRANA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"KIRANA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"KIRANA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"KIRANA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"KIRANA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// PaymentConfig carries the gateway webhook verification settings.
type PaymentConfig struct {
	ServerKey string `envconfig:"KIRANA_PAYMENT_SERVER_KEY" required:"true"`
	Env       string `envconfig:"KIRANA_PAYMENT_ENV" default:"sandbox"`
}

// Environment returns the normalized gateway environment (sandbox/production).
func (p PaymentConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(p.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

// CourierConfig carries the shipping carrier API settings.
type CourierConfig struct {
	BaseURL string        `envconfig:"KIRANA_COURIER_BASE_URL"`
	APIKey  string        `envconfig:"KIRANA_COURIER_API_KEY"`
	Timeout time.Duration `envconfig:"KIRANA_COURIER_TIMEOUT" default:"10s"`
}

// JobsConfig tunes the scheduled reconciliation workers.
type JobsConfig struct {
	Interval           time.Duration `envconfig:"KIRANA_JOBS_INTERVAL" default:"10m"`
	PaymentExpiryAge   time.Duration `envconfig:"KIRANA_JOBS_PAYMENT_EXPIRY_AGE" default:"24h"`
	PaymentExpiryBatch int           `envconfig:"KIRANA_JOBS_PAYMENT_EXPIRY_BATCH" default:"100"`
	DeliverySyncBatch  int           `envconfig:"KIRANA_JOBS_DELIVERY_SYNC_BATCH" default:"100"`
	AutoCompleteDays   int           `envconfig:"KIRANA_JOBS_AUTO_COMPLETE_DAYS" default:"3"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"KIRANA_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"KIRANA_AUTO_MIGRATE" default:"false"`
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

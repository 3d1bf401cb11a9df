package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// DefaultJWTSecret is only accepted in dev and test.
const DefaultJWTSecret = "change-me-in-production"

type Config struct {
	Env         string `env:"APP_ENV, default=dev"`
	Port        int    `env:"PORT, default=8080"`
	ServiceName string `env:"SERVICE_NAME, default=tourhub"`

	DatabaseURL    string `env:"DATABASE_URL"`
	DB             DBConfig
	MigrateOnStart bool `env:"MIGRATE_ON_START, default=false"`

	JWTSecret          string        `env:"JWT_SECRET, default=change-me-in-production"`
	AccessTokenMinutes int           `env:"ACCESS_TOKEN_EXPIRE_MINUTES, default=30"`
	BcryptRounds       int           `env:"BCRYPT_ROUNDS, default=12"`
	AuthLookupTimeout  time.Duration `env:"AUTH_LOOKUP_TIMEOUT, default=2s"`
	RevocationBackend  string        `env:"REVOCATION_BACKEND, default=memory"`
	LoginRatePerMinute int           `env:"LOGIN_RATE_PER_MINUTE, default=20"`
	BookingRatePerMin  int           `env:"BOOKING_RATE_PER_MINUTE, default=30"`

	CORSOrigins  []string      `env:"CORS_ORIGINS, default=http://localhost:3000"`
	TourCacheTTL time.Duration `env:"TOUR_CACHE_TTL, default=5s"`

	OTELEndpoint    string  `env:"OTEL_ENDPOINT"`
	OTELSampleRatio float64 `env:"OTEL_SAMPLE_RATIO, default=1"`

	Redis  RedisConfig
	Admin  AdminConfig
	Worker WorkerConfig
}

type DBConfig struct {
	Host     string `env:"DB_HOST, default=127.0.0.1"`
	Port     string `env:"DB_PORT, default=5432"`
	User     string `env:"DB_USER, default=tourhub"`
	Password string `env:"DB_PASSWORD, default=tourhub"`
	Name     string `env:"DB_NAME, default=tourhub"`
	SSLMode  string `env:"DB_SSLMODE, default=disable"`

	MaxConns        int32         `env:"DB_MAX_CONNS, default=10"`
	MinConns        int32         `env:"DB_MIN_CONNS, default=0"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE, default=5m"`
	ConnectTimeout  time.Duration `env:"DB_CONNECT_TIMEOUT, default=5s"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR, default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB, default=0"`
}

// AdminConfig bootstraps an admin account on startup when username and
// password are both set.
type AdminConfig struct {
	Username string `env:"ADMIN_USERNAME"`
	Email    string `env:"ADMIN_EMAIL"`
	Password string `env:"ADMIN_PASSWORD"`
	FullName string `env:"ADMIN_FULL_NAME, default=System Administrator"`
}

type WorkerConfig struct {
	ID           string        `env:"WORKER_ID"`
	Concurrency  int           `env:"WORKER_CONCURRENCY, default=4"`
	PollInterval time.Duration `env:"WORKER_POLL_INTERVAL, default=500ms"`
	JobTimeout   time.Duration `env:"WORKER_JOB_TIMEOUT, default=30s"`
	StaleAfter   time.Duration `env:"WORKER_STALE_AFTER, default=5m"`
	HealthPort   int           `env:"WORKER_HEALTH_PORT, default=8081"`
	RetryBase    time.Duration `env:"WORKER_RETRY_BASE, default=2s"`
	RetryMax     time.Duration `env:"WORKER_RETRY_MAX, default=5m"`
}

// Load reads .env when present, then decodes the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return LoadFrom(context.Background(), envconfig.OsLookuper())
}

func LoadFrom(ctx context.Context, lookuper envconfig.Lookuper) (Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = cfg.DB.URL()
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error

	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if !c.IsDev() && c.JWTSecret == DefaultJWTSecret {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be set outside dev/test (APP_ENV=%s)", c.Env))
	}
	if c.AccessTokenMinutes <= 0 {
		errs = append(errs, errors.New("ACCESS_TOKEN_EXPIRE_MINUTES must be positive"))
	}
	switch c.RevocationBackend {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("REVOCATION_BACKEND must be memory or redis, got %q", c.RevocationBackend))
	}
	if c.LoginRatePerMinute <= 0 || c.BookingRatePerMin <= 0 {
		errs = append(errs, errors.New("LOGIN_RATE_PER_MINUTE and BOOKING_RATE_PER_MINUTE must be positive"))
	}
	if c.Worker.Concurrency <= 0 {
		errs = append(errs, errors.New("WORKER_CONCURRENCY must be positive"))
	}
	if c.DB.MaxConns <= 0 || c.DB.MinConns < 0 || c.DB.MinConns > c.DB.MaxConns {
		errs = append(errs, fmt.Errorf("DB_MIN_CONNS (%d) and DB_MAX_CONNS (%d) must satisfy 0 <= min <= max, max > 0", c.DB.MinConns, c.DB.MaxConns))
	}
	if c.OTELSampleRatio < 0 || c.OTELSampleRatio > 1 {
		errs = append(errs, fmt.Errorf("OTEL_SAMPLE_RATIO must be within [0, 1], got %v", c.OTELSampleRatio))
	}

	return errors.Join(errs...)
}

func (c Config) IsDev() bool {
	return c.Env == "dev" || c.Env == "test"
}

func (c Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenMinutes) * time.Minute
}

func (c Config) UsesRedis() bool {
	return c.RevocationBackend == "redis"
}

func (d DBConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     d.Host + ":" + d.Port,
		Path:     "/" + strings.TrimPrefix(d.Name, "/"),
		RawQuery: "sslmode=" + url.QueryEscape(d.SSLMode),
	}
	return u.String()
}

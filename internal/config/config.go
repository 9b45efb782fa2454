package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Env         string   `env:"APP_ENV, default=dev"`
	Port        int      `env:"PORT, default=8080"`
	StoreDriver string   `env:"STORE_DRIVER, default=postgres"`
	BcryptCost  int      `env:"BCRYPT_COST, default=10"`
	CORSOrigins []string `env:"CORS_ALLOWED_ORIGINS"`

	JWT    JWTConfig
	DB     DBConfig
	Redis  RedisConfig
	Events EventsConfig
	Admin  AdminConfig
	OTel   OTelConfig
}

type JWTConfig struct {
	Secret        string `env:"JWT_SECRET, required"`
	Expire        Expiry `env:"JWT_EXPIRE, default=1h"`
	RefreshSecret string `env:"REFRESH_TOKEN_SECRET, required"`
	RefreshExpire Expiry `env:"REFRESH_TOKEN_EXPIRE, default=30d"`
}

type DBConfig struct {
	Host        string `env:"DB_HOST, default=127.0.0.1"`
	Port        string `env:"DB_PORT, default=5432"`
	User        string `env:"DB_USER, default=accounts"`
	Password    string `env:"DB_PASSWORD, default=accounts"`
	Name        string `env:"DB_NAME, default=accounts"`
	SSLMode     string `env:"DB_SSLMODE, default=disable"`
	MaxConns    int32  `env:"DB_MAX_CONNS, default=5"`
	AutoMigrate bool   `env:"DB_AUTO_MIGRATE, default=true"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB, default=0"`
}

type EventsConfig struct {
	StreamPrefix string `env:"EVENTS_STREAM_PREFIX, default=accounts"`
	StreamMaxLen int64  `env:"EVENTS_STREAM_MAXLEN, default=10000"`
	Buffer       int    `env:"EVENTS_BUFFER, default=256"`
	Workers      int    `env:"EVENTS_WORKERS, default=2"`
}

type AdminConfig struct {
	Email    string `env:"ADMIN_EMAIL"`
	Password string `env:"ADMIN_PASSWORD"`
}

type OTelConfig struct {
	Enabled     bool    `env:"OTEL_ENABLED, default=false"`
	Endpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT, default=localhost:4317"`
	ServiceName string  `env:"OTEL_SERVICE_NAME, default=accounts"`
	SampleRatio float64 `env:"OTEL_TRACES_SAMPLER_RATIO, default=1"`
}

var ErrSharedSecret = errors.New("JWT_SECRET and REFRESH_TOKEN_SECRET must differ")

// Load reads configuration from the process environment.
func Load(ctx context.Context) (Config, error) {
	return LoadFrom(ctx, envconfig.OsLookuper())
}

// LoadFrom reads configuration through the given lookuper (tests pass a map).
func LoadFrom(ctx context.Context, lookuper envconfig.Lookuper) (Config, error) {
	var cfg Config

	err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	})

	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	if cfg.JWT.Secret == cfg.JWT.RefreshSecret {
		return Config{}, ErrSharedSecret
	}

	switch cfg.StoreDriver {
	case "postgres", "memory":
	default:
		return Config{}, fmt.Errorf("config: unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	return cfg, nil
}

func (c DBConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}

	return u.String()
}

func (c Config) IsDev() bool {
	return strings.EqualFold(c.Env, "dev")
}

// WithTimeout bounds a store call made on behalf of a request.
func WithTimeout(parent context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, duration)
}

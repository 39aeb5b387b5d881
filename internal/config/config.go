package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const minSecretLength = 16

type Config struct {
	DBHost      string        `env:"DB_HOST" env-default:"localhost"`
	DBPort      string        `env:"DB_PORT" env-default:"5432"`
	DBUser      string        `env:"DB_USER" env-default:"colabtrack"`
	DBPassword  string        `env:"DB_PASSWORD" env-default:"colabtrack"`
	DBName      string        `env:"DB_NAME" env-default:"colabtrack"`
	DBSSLMode   string        `env:"DB_SSLMODE" env-default:"disable"`
	DBSlowQuery time.Duration `env:"DB_SLOW_QUERY" env-default:"200ms"`

	ServerPort     string        `env:"SERVER_PORT" env-default:"8080"`
	GinMode        string        `env:"GIN_MODE" env-default:"release"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" env-default:"10s"`
	LogLevel       string        `env:"LOG_LEVEL" env-default:"INFO"`
	MigrateOnStart bool          `env:"MIGRATE_ON_START" env-default:"true"`

	JWTSecret       string        `env:"JWT_SECRET" env-required:"true"`
	JWTIssuer       string        `env:"JWT_ISSUER" env-default:"colabtrack"`
	JWTTTL          time.Duration `env:"JWT_TTL" env-default:"24h"`
	JWTClockSkew    time.Duration `env:"JWT_CLOCK_SKEW" env-default:"30s"`
	// JWTRefreshGrace bounds how long an expired token stays refreshable; 0 removes the bound.
	JWTRefreshGrace time.Duration `env:"JWT_REFRESH_GRACE" env-default:"168h"`
	BcryptCost      int           `env:"BCRYPT_COST" env-default:"10"`

	AllowCrossProjectDependencies bool `env:"ALLOW_CROSS_PROJECT_DEPENDENCIES" env-default:"false"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, using system environment variables")
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if len(c.JWTSecret) < minSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes", minSecretLength)
	}
	if c.JWTTTL <= 0 {
		return errors.New("JWT_TTL must be positive")
	}
	if c.JWTClockSkew < 0 || c.JWTRefreshGrace < 0 {
		return errors.New("JWT_CLOCK_SKEW and JWT_REFRESH_GRACE must not be negative")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("REQUEST_TIMEOUT must be positive")
	}
	return nil
}

// DSN returns the libpq-style connection string for the configured database.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

// MigrateURL returns the database URL in the form the pgx5 migrate driver expects.
func (c *Config) MigrateURL() string {
	u := url.URL{
		Scheme:   "pgx5",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     net.JoinHostPort(c.DBHost, c.DBPort),
		Path:     "/" + c.DBName,
		RawQuery: url.Values{"sslmode": {c.DBSSLMode}}.Encode(),
	}
	return u.String()
}

// SlogLevel maps LOG_LEVEL onto a slog level, defaulting to INFO.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

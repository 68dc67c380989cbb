package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port       string
	DBAdapter  string
	SQLiteFile string
	JwtSecret  string
	JwtTTL     time.Duration
	LogLevel   string
	LogFormat  string
	// MongoDB connection settings
	MongoURI string
	MongoDB  string
	// PostgreSQL connection settings
	PostgresDSN      string
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
	MigrationsDir    string
	// HTTP edge
	CORSOrigins        []string
	RateLimitPerMinute int
}

func defaults(v *viper.Viper) {
	v.SetDefault("PORT", "3001")
	v.SetDefault("DB_ADAPTER", "mongo")
	v.SetDefault("SQLITE_FILE", "./data/deepthoughts.db")
	v.SetDefault("JWT_TTL", "2h")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DB", "deep-thoughts")
	v.SetDefault("POSTGRES_PORT", "5432")
	v.SetDefault("POSTGRES_SSLMODE", "disable")
	v.SetDefault("MIGRATIONS_DIR", "./migrations")
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 120)
}

// BuildPostgresDSN constructs a PostgreSQL DSN from individual components or returns the provided DSN
func (c *Config) BuildPostgresDSN() (string, error) {
	if c.PostgresDSN != "" {
		return c.PostgresDSN, nil
	}

	if c.PostgresHost == "" {
		return "", errors.New("POSTGRES_HOST or POSTGRES_DSN must be set")
	}
	if c.PostgresUser == "" {
		return "", errors.New("POSTGRES_USER must be set")
	}
	if c.PostgresDB == "" {
		return "", errors.New("POSTGRES_DB must be set")
	}

	dsn := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresDB, c.PostgresSSLMode)

	if c.PostgresPassword != "" {
		dsn += " password=" + c.PostgresPassword
	}

	return dsn, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ValidateServer checks the settings only the API server needs. Tools that
// just touch the database, like cmd/migrate, skip it.
func (c *Config) ValidateServer() error {
	if c.JwtSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}
	return nil
}

// New reads the configuration from the environment. When CONFIG_FILE is set,
// that file supplies values the environment does not.
func New() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	defaults(v)

	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading %s: %w", file, err)
		}
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	ttl, err := time.ParseDuration(v.GetString("JWT_TTL"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_TTL: %w", err)
	}
	limit, err := strconv.Atoi(strings.TrimSpace(v.GetString("RATE_LIMIT_PER_MINUTE")))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_PER_MINUTE: %s", v.GetString("RATE_LIMIT_PER_MINUTE"))
	}

	c := &Config{
		Port:               v.GetString("PORT"),
		DBAdapter:          strings.ToLower(v.GetString("DB_ADAPTER")),
		SQLiteFile:         v.GetString("SQLITE_FILE"),
		JwtSecret:          v.GetString("JWT_SECRET"),
		JwtTTL:             ttl,
		LogLevel:           v.GetString("LOG_LEVEL"),
		LogFormat:          v.GetString("LOG_FORMAT"),
		MongoURI:           v.GetString("MONGO_URI"),
		MongoDB:            v.GetString("MONGO_DB"),
		PostgresDSN:        v.GetString("POSTGRES_DSN"),
		PostgresHost:       v.GetString("POSTGRES_HOST"),
		PostgresPort:       v.GetString("POSTGRES_PORT"),
		PostgresUser:       v.GetString("POSTGRES_USER"),
		PostgresPassword:   v.GetString("POSTGRES_PASSWORD"),
		PostgresDB:         v.GetString("POSTGRES_DB"),
		PostgresSSLMode:    v.GetString("POSTGRES_SSLMODE"),
		MigrationsDir:      v.GetString("MIGRATIONS_DIR"),
		CORSOrigins:        splitList(v.GetString("CORS_ORIGINS")),
		RateLimitPerMinute: limit,
	}

	if c.JwtTTL <= 0 {
		return nil, fmt.Errorf("JWT_TTL must be positive, got %s", c.JwtTTL)
	}
	if c.RateLimitPerMinute < 0 {
		return nil, fmt.Errorf("RATE_LIMIT_PER_MINUTE must not be negative, got %d", c.RateLimitPerMinute)
	}

	switch c.DBAdapter {
	case "postgres":
		dsn, err := c.BuildPostgresDSN()
		if err != nil {
			return nil, fmt.Errorf("postgres configuration error: %w", err)
		}
		c.PostgresDSN = dsn
	case "sqlite":
		if c.SQLiteFile == "" {
			return nil, errors.New("SQLITE_FILE must be set when DB_ADAPTER=sqlite")
		}
	case "mongo":
		if c.MongoURI == "" || c.MongoDB == "" {
			return nil, errors.New("MONGO_URI and MONGO_DB must be set when DB_ADAPTER=mongo")
		}
	case "memory":
	default:
		return nil, fmt.Errorf("unsupported DB_ADAPTER: %s (supported: mongo, postgres, sqlite, memory)", c.DBAdapter)
	}

	if _, err := strconv.Atoi(c.Port); err != nil {
		return nil, fmt.Errorf("invalid PORT: %s", c.Port)
	}

	return c, nil
}

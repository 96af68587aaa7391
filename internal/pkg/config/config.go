package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port      string `env:"PORT,      default=8080"`
	Env       string `env:"ENV,       default=development"`
	JWTSecret string `env:"JWT_SECRET, required"`
	LogLevel  string `env:"LOG_LEVEL, default=info"`

	Session SessionConfig
	Members MembersConfig
	Mongo   MongoConfig
	Redis   RedisConfig
}

type SessionConfig struct {
	TokenTTL time.Duration `env:"TOKEN_TTL,           default=24h"`
	// GateTimeout bounds one member lookup of the authorization gate.
	GateTimeout time.Duration `env:"GATE_LOOKUP_TIMEOUT, default=10s"`
	// Wait is how long a guarded request waits for a loading session.
	Wait          time.Duration `env:"SESSION_WAIT,        default=3s"`
	StreamWorkers int           `env:"AUTH_STREAM_WORKERS, default=8"`

	LoginRateCapacity int           `env:"LOGIN_RATE_CAPACITY, default=10"`
	LoginRateWindow   time.Duration `env:"LOGIN_RATE_WINDOW,   default=1m"`
}

type MembersConfig struct {
	EnforceRoles   bool  `env:"ENFORCE_ROLES,    default=false"`
	MaxImportBytes int64 `env:"MAX_IMPORT_BYTES, default=10485760"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=acim_members"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,     default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,       default=0"`
}

// IsProduction reports whether logs should be emitted as plain JSON.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	cfg, err := LoadFrom(context.Background(), envconfig.OsLookuper())
	if err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return cfg
}

// LoadFrom reads configuration through lookuper and validates it.
func LoadFrom(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Session.TokenTTL <= 0:
		return fmt.Errorf("TOKEN_TTL must be positive")
	case c.Session.GateTimeout <= 0:
		return fmt.Errorf("GATE_LOOKUP_TIMEOUT must be positive")
	case c.Session.Wait < 0:
		return fmt.Errorf("SESSION_WAIT must not be negative")
	case c.Members.MaxImportBytes <= 0:
		return fmt.Errorf("MAX_IMPORT_BYTES must be positive")
	}
	return nil
}

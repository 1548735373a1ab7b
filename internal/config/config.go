package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"

	BrokerLocal = "local"
	BrokerRedis = "redis"
	BrokerNATS  = "nats"

	CacheMemory = "memory"
	CacheRedis  = "redis"
)

type Config struct {
	LogLevel   string   `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	HTTPPort   string   `yaml:"http-port" env:"HTTP_PORT" env-default:"9090"`
	SocketPort string   `yaml:"socket-port" env:"SOCKET_PORT" env-default:"9091"`
	Database   Database `yaml:"database"`
	Redis      Redis    `yaml:"redis"`
	Broker     Broker   `yaml:"broker"`
	Cache      Cache    `yaml:"cache"`
	Match      Match    `yaml:"match"`
	Rematch    Rematch  `yaml:"rematch"`
}

type Database struct {
	Driver string `yaml:"driver" env:"DATABASE_DRIVER" env-default:"sqlite3"`
	DSN    string `yaml:"dsn" env:"DATABASE_DSN" env-default:"file:dotsandboxes.db?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on"`
}

type Redis struct {
	Host string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port string `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
}

type Broker struct {
	Kind    string `yaml:"kind" env:"BROKER_KIND" env-default:"local"`
	NATSURL string `yaml:"nats-url" env:"NATS_URL" env-default:"nats://localhost:4222"`
}

type Cache struct {
	Kind string `yaml:"kind" env:"CACHE_KIND" env-default:"memory"`
}

// Match bounds the board size accepted on creation, in dots per side.
type Match struct {
	MinSize int `yaml:"min-size" env:"MATCH_MIN_SIZE" env-default:"3"`
	MaxSize int `yaml:"max-size" env:"MATCH_MAX_SIZE" env-default:"19"`
}

type Rematch struct {
	TTL           time.Duration `yaml:"ttl" env:"REMATCH_TTL" env-default:"10m"`
	SweepInterval time.Duration `yaml:"sweep-interval" env:"REMATCH_SWEEP_INTERVAL" env-default:"1m"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config, err := Load(path)
	if err != nil {
		panic(err)
	}

	return config
}

// Load reads an optional .env file, then the yaml file at path, then the environment.
// A missing yaml file falls back to environment variables and defaults.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("unable to load .env file: %w", err)
	}

	config := &Config{}

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err = cleanenv.ReadEnv(config); err != nil {
			return nil, fmt.Errorf("unable to read environment: %w", err)
		}
	} else if err = cleanenv.ReadConfig(path, config); err != nil {
		return nil, fmt.Errorf("unable to load config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

var ErrInvalidConfig = errors.New("invalid config")

func (that *Config) Validate() error {
	switch that.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("%w: unknown database driver %q", ErrInvalidConfig, that.Database.Driver)
	}

	switch that.Broker.Kind {
	case BrokerLocal, BrokerRedis, BrokerNATS:
	default:
		return fmt.Errorf("%w: unknown broker kind %q", ErrInvalidConfig, that.Broker.Kind)
	}

	switch that.Cache.Kind {
	case CacheMemory, CacheRedis:
	default:
		return fmt.Errorf("%w: unknown cache kind %q", ErrInvalidConfig, that.Cache.Kind)
	}

	if that.Match.MinSize < 2 || that.Match.MaxSize < that.Match.MinSize {
		return fmt.Errorf("%w: match size range %d..%d", ErrInvalidConfig, that.Match.MinSize, that.Match.MaxSize)
	}

	if that.Rematch.TTL <= 0 {
		return fmt.Errorf("%w: rematch ttl must be positive", ErrInvalidConfig)
	}

	if that.Rematch.SweepInterval <= 0 {
		return fmt.Errorf("%w: rematch sweep interval must be positive", ErrInvalidConfig)
	}

	return nil
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}

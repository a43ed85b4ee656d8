package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config contains the server runtime configuration. It is read from
// CHECKLISTS_* variables, optionally layered over a YAML file named by
// CHECKLISTS_CONFIG_PATH.
type Config struct {
	Env       string `yaml:"env" env:"CHECKLISTS_ENV" env-default:"development"`
	HTTPAddr  string `yaml:"http_addr" env:"CHECKLISTS_HTTP_ADDR" env-default:"0.0.0.0:8080"`
	LogLevel  string `yaml:"log_level" env:"CHECKLISTS_LOG_LEVEL" env-default:"info"`
	LogFormat string `yaml:"log_format" env:"CHECKLISTS_LOG_FORMAT" env-default:"json"`

	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" env:"CHECKLISTS_HTTP_READ_HEADER_TIMEOUT" env-default:"5s"`
	ReadTimeout       time.Duration `yaml:"read_timeout" env:"CHECKLISTS_HTTP_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout      time.Duration `yaml:"write_timeout" env:"CHECKLISTS_HTTP_WRITE_TIMEOUT" env-default:"15s"`
	IdleTimeout       time.Duration `yaml:"idle_timeout" env:"CHECKLISTS_HTTP_IDLE_TIMEOUT" env-default:"60s"`
	MaxHeaderBytes    int           `yaml:"max_header_bytes" env:"CHECKLISTS_HTTP_MAX_HEADER_BYTES" env-default:"1048576"`

	// StoreBackend forces a backend. Empty picks redis, then postgres, then
	// memory, by which URL is set.
	StoreBackend   string        `yaml:"store_backend" env:"CHECKLISTS_STORE_BACKEND"`
	StoreOpTimeout time.Duration `yaml:"store_op_timeout" env:"CHECKLISTS_STORE_OP_TIMEOUT" env-default:"3s"`
	PruneInterval  time.Duration `yaml:"prune_interval" env:"CHECKLISTS_STORE_PRUNE_INTERVAL" env-default:"10m"`

	DatabaseURL string `yaml:"-" env:"CHECKLISTS_DATABASE_URL"`
	DBMaxConns  int32  `yaml:"db_max_conns" env:"CHECKLISTS_DB_MAX_CONNS" env-default:"10"`
	DBMinConns  int32  `yaml:"db_min_conns" env:"CHECKLISTS_DB_MIN_CONNS" env-default:"0"`

	RedisURL       string `yaml:"-" env:"CHECKLISTS_REDIS_URL"`
	RedisNamespace string `yaml:"redis_namespace" env:"CHECKLISTS_REDIS_NAMESPACE" env-default:"checklists:"`

	// If true, /readyz returns 503 when running on the in-memory store.
	ReadinessRequireStore bool `yaml:"readiness_require_store" env:"CHECKLISTS_READINESS_REQUIRE_STORE" env-default:"false"`
}

// LoadConfig reads Config from the environment (and the optional YAML file).
func LoadConfig() (Config, error) {
	var cfg Config
	var err error
	if path := strings.TrimSpace(os.Getenv("CHECKLISTS_CONFIG_PATH")); path != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return Config{}, fmt.Errorf("app: config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the selected backend has what it needs.
func (c Config) Validate() error {
	switch c.Backend() {
	case BackendMemory:
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("app: CHECKLISTS_REDIS_URL is required for the redis store")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("app: CHECKLISTS_DATABASE_URL is required for the postgres store")
		}
	default:
		return fmt.Errorf("app: unknown store backend %q", c.StoreBackend)
	}
	if c.StoreOpTimeout <= 0 {
		return fmt.Errorf("app: store op timeout must be positive")
	}
	return nil
}

// Backend returns the effective store backend.
func (c Config) Backend() string {
	if b := strings.ToLower(strings.TrimSpace(c.StoreBackend)); b != "" {
		return b
	}
	switch {
	case c.RedisURL != "":
		return BackendRedis
	case c.DatabaseURL != "":
		return BackendPostgres
	default:
		return BackendMemory
	}
}

// Production reports whether the server runs with production guarantees.
func (c Config) Production() bool {
	return strings.EqualFold(strings.TrimSpace(c.Env), "production")
}

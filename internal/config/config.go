package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Storage backends.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config holds service configuration.
type Config struct {
	DatabaseURL       string        `toml:"database_url"`
	ServerAddr        string        `toml:"server_addr"`
	Storage           string        `toml:"storage"`
	MigrationsDir     string        `toml:"migrations_dir"`
	LogLevel          string        `toml:"log_level"`
	RedisAddr         string        `toml:"redis_addr"`
	RedisPassword     string        `toml:"redis_password"`
	RedisDB           int           `toml:"redis_db"`
	NatsURL           string        `toml:"nats_url"`
	PaymentWindow     duration      `toml:"payment_window"`
	SweepInterval     duration      `toml:"sweep_interval"`
	LockTTL           duration      `toml:"lock_ttl"`
	NotifyDedupWindow duration      `toml:"notify_dedup_window"`
	FallbackCondition string        `toml:"fallback_condition"`
	ShutdownTimeout   time.Duration `toml:"-"`
}

// duration decodes TOML strings such as "3m".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		ServerAddr:        "0.0.0.0:8080",
		Storage:           StoragePostgres,
		MigrationsDir:     "internal/migrations",
		LogLevel:          "info",
		PaymentWindow:     duration{180 * time.Second},
		SweepInterval:     duration{15 * time.Second},
		LockTTL:           duration{10 * time.Second},
		NotifyDedupWindow: duration{30 * time.Second},
		ShutdownTimeout:   10 * time.Second,
	}
}

// Load builds the configuration from defaults, the optional TOML file named
// by CONFIG_FILE, a .env file if present, and finally the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		cfg.DatabaseURL = dsn
	} else if cfg.DatabaseURL == "" {
		user := getenv("POSTGRES_USER", "claims")
		pass := getenv("POSTGRES_PASSWORD", "claims_pass")
		db := getenv("POSTGRES_DB", "claims")
		host := getenv("POSTGRES_HOST", "localhost")
		port := getenv("POSTGRES_PORT", "5432")
		sslmode := getenv("DATABASE_SSLMODE", "disable")
		cfg.DatabaseURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, pass, host, port, db, sslmode)
	}
	cfg.ServerAddr = getenv("SERVER_ADDR", cfg.ServerAddr)
	cfg.Storage = strings.ToLower(getenv("STORAGE", cfg.Storage))
	cfg.MigrationsDir = getenv("MIGRATIONS_DIR", cfg.MigrationsDir)
	cfg.LogLevel = getenv("LOG_LEVEL", cfg.LogLevel)
	cfg.RedisAddr = getenv("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getenv("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = parseInt(os.Getenv("REDIS_DB"), cfg.RedisDB)
	cfg.NatsURL = getenv("NATS_URL", cfg.NatsURL)
	cfg.PaymentWindow.Duration = parseDuration(os.Getenv("PAYMENT_WINDOW"), cfg.PaymentWindow.Duration)
	cfg.SweepInterval.Duration = parseDuration(os.Getenv("SWEEP_INTERVAL"), cfg.SweepInterval.Duration)
	cfg.LockTTL.Duration = parseDuration(os.Getenv("LOCK_TTL"), cfg.LockTTL.Duration)
	cfg.NotifyDedupWindow.Duration = parseDuration(os.Getenv("NOTIFY_DEDUP_WINDOW"), cfg.NotifyDedupWindow.Duration)
	cfg.FallbackCondition = getenv("FALLBACK_CONDITION", cfg.FallbackCondition)
	cfg.ShutdownTimeout = parseDuration(os.Getenv("SHUTDOWN_TIMEOUT"), cfg.ShutdownTimeout)
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Storage != StoragePostgres && c.Storage != StorageMemory {
		errs = append(errs, fmt.Errorf("storage must be %q or %q, got %q", StoragePostgres, StorageMemory, c.Storage))
	}
	if c.PaymentWindow.Duration <= 0 {
		errs = append(errs, errors.New("payment_window must be positive"))
	}
	if c.SweepInterval.Duration <= 0 {
		errs = append(errs, errors.New("sweep_interval must be positive"))
	}
	if c.LockTTL.Duration <= 0 {
		errs = append(errs, errors.New("lock_ttl must be positive"))
	}
	return errors.Join(errs...)
}

func getenv(key, def string) string {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	return val
}

func parseDuration(val string, def time.Duration) time.Duration {
	if val == "" {
		return def
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return def
	}
	return d
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return n
}

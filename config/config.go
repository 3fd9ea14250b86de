// Package config loads service settings: defaults, then an optional YAML file,
// then .env, then the process environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type DBConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`

	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	SlowThreshold   time.Duration `yaml:"slow_threshold"`
}

// DSN prefers an explicit URL and otherwise builds a key=value DSN like the gorm docs show.
func (d DBConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=UTC",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode)
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// IdempotencyTTL 重放缓存保留多久
	IdempotencyTTL time.Duration `yaml:"idempotency_ttl"`
}

func (r RedisConfig) Enabled() bool { return r.Addr != "" }

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Config struct {
	Port            int           `yaml:"port"`
	Store           string        `yaml:"store"`
	WebOrigin       string        `yaml:"web_origin"`
	GinMode         string        `yaml:"gin_mode"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	DB    DBConfig    `yaml:"db"`
	Redis RedisConfig `yaml:"redis"`
	Log   LogConfig   `yaml:"log"`
}

func Default() Config {
	return Config{
		Port:            8000,
		Store:           StorePostgres,
		WebOrigin:       "http://localhost:5173",
		GinMode:         "release",
		ShutdownTimeout: 10 * time.Second,
		DB: DBConfig{
			Host:            "127.0.0.1",
			Port:            5432,
			User:            "postgres",
			Password:        "postgres",
			Name:            "library",
			SSLMode:         "disable",
			MaxOpenConns:    20,
			MaxIdleConns:    10,
			ConnMaxLifetime: 30 * time.Minute,
			SlowThreshold:   200 * time.Millisecond,
		},
		Redis: RedisConfig{IdempotencyTTL: 24 * time.Hour},
		Log:   LogConfig{Level: "info", Format: "json"},
	}
}

// Load builds the config. path may be empty; CONFIG_FILE is consulted then.
// envFiles are passed to godotenv and may not exist.
func Load(path string, envFiles ...string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// .env 可选；已存在的环境变量不会被覆盖
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	str := func(k string, dst *string) {
		if v, ok := os.LookupEnv(k); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(k string, dst *int) error {
		v, ok := os.LookupEnv(k)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
		*dst = n
		return nil
	}
	seconds := func(k string, dst *time.Duration) error {
		n := int(*dst / time.Second)
		if err := num(k, &n); err != nil {
			return err
		}
		*dst = time.Duration(n) * time.Second
		return nil
	}

	str("STORE", &cfg.Store)
	str("WEB_ORIGIN", &cfg.WebOrigin)
	str("GIN_MODE", &cfg.GinMode)
	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FORMAT", &cfg.Log.Format)

	str("DATABASE_URL", &cfg.DB.URL)
	str("DB_HOST", &cfg.DB.Host)
	str("DB_USER", &cfg.DB.User)
	str("DB_PASSWORD", &cfg.DB.Password)
	str("DB_NAME", &cfg.DB.Name)
	str("DB_SSLMODE", &cfg.DB.SSLMode)

	str("REDIS_ADDR", &cfg.Redis.Addr)
	str("REDIS_PASSWORD", &cfg.Redis.Password)

	for k, dst := range map[string]*int{
		"PORT":     &cfg.Port,
		"DB_PORT":  &cfg.DB.Port,
		"REDIS_DB": &cfg.Redis.DB,
	} {
		if err := num(k, dst); err != nil {
			return err
		}
	}
	if err := seconds("IDEMPOTENCY_TTL_SECONDS", &cfg.Redis.IdempotencyTTL); err != nil {
		return err
	}
	return seconds("SHUTDOWN_TIMEOUT_SECONDS", &cfg.ShutdownTimeout)
}

func (c Config) Validate() error {
	var errs []error
	switch c.Store {
	case StorePostgres:
		if c.DB.URL != "" {
			if _, err := url.Parse(c.DB.URL); err != nil {
				errs = append(errs, fmt.Errorf("DATABASE_URL: %w", err))
			}
		} else if c.DB.Host == "" || c.DB.Name == "" {
			errs = append(errs, errors.New("db host and name are required for the postgres store"))
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown store %q (want %s or %s)", c.Store, StorePostgres, StoreMemory))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %d", c.Port))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("shutdown timeout must be positive"))
	}
	if c.Redis.Enabled() && c.Redis.IdempotencyTTL <= 0 {
		errs = append(errs, errors.New("idempotency ttl must be positive"))
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

func (c Config) Addr() string { return ":" + strconv.Itoa(c.Port) }

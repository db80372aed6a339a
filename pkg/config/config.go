package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/harveywai/leasedesk/pkg/expiry"
)

// EnvPrefix prefixes every environment override, e.g. LEASEDESK_JWT_SECRET.
const EnvPrefix = "LEASEDESK_"

// Config holds the service configuration.
type Config struct {
	Addr     string            `yaml:"addr"`
	Database Database          `yaml:"database"`
	Auth     Auth              `yaml:"auth"`
	List     List              `yaml:"list"`
	Expiry   expiry.Thresholds `yaml:"expiry"`
	Sweep    Sweep             `yaml:"sweep"`
	Notify   Notify            `yaml:"notify"`
	Log      Log               `yaml:"log"`
}

type Database struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type Auth struct {
	JWTSecret     string        `yaml:"jwt_secret"`
	AccessTTL     time.Duration `yaml:"access_ttl"`
	RefreshTTL    time.Duration `yaml:"refresh_ttl"`
	CookieSecure  bool          `yaml:"cookie_secure"`
	AdminPassword string        `yaml:"admin_password"`
}

type List struct {
	PageSizes []int `yaml:"page_sizes"`
}

type Sweep struct {
	Enabled      bool          `yaml:"enabled"`
	Interval     time.Duration `yaml:"interval"`
	Workers      int           `yaml:"workers"`
	WhoisRefresh bool          `yaml:"whois_refresh"`
	WhoisTimeout time.Duration `yaml:"whois_timeout"`
	ProbeTLS     bool          `yaml:"probe_tls"`
}

type Notify struct {
	TelegramAPI string `yaml:"telegram_api"`
}

type Log struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Addr: ":8080",
		Database: Database{
			Driver: "sqlite",
			DSN:    "leasedesk.db",
		},
		Auth: Auth{
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			AdminPassword: "admin123",
		},
		List:   List{PageSizes: []int{10, 25, 50, 100}},
		Expiry: expiry.DefaultThresholds,
		Sweep: Sweep{
			Enabled:      true,
			Interval:     time.Hour,
			Workers:      5,
			WhoisTimeout: 10 * time.Second,
		},
		Notify: Notify{TelegramAPI: "https://api.telegram.org"},
		Log:    Log{Level: "info"},
	}
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}
	var errs []error
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(EnvPrefix + key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = d
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(EnvPrefix + key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = b
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(EnvPrefix + key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = n
		}
	}

	str("ADDR", &c.Addr)
	str("DB_DRIVER", &c.Database.Driver)
	str("DB_DSN", &c.Database.DSN)
	str("JWT_SECRET", &c.Auth.JWTSecret)
	dur("ACCESS_TTL", &c.Auth.AccessTTL)
	dur("REFRESH_TTL", &c.Auth.RefreshTTL)
	boolean("COOKIE_SECURE", &c.Auth.CookieSecure)
	str("ADMIN_PASSWORD", &c.Auth.AdminPassword)
	integer("CRITICAL_DAYS", &c.Expiry.Critical)
	integer("WARNING_DAYS", &c.Expiry.Warning)
	boolean("SWEEP_ENABLED", &c.Sweep.Enabled)
	dur("SWEEP_INTERVAL", &c.Sweep.Interval)
	integer("SWEEP_WORKERS", &c.Sweep.Workers)
	boolean("WHOIS_REFRESH", &c.Sweep.WhoisRefresh)
	str("TELEGRAM_API", &c.Notify.TelegramAPI)
	str("LOG_LEVEL", &c.Log.Level)
	boolean("LOG_DEVELOPMENT", &c.Log.Development)

	if v, ok := lookup(EnvPrefix + "PAGE_SIZES"); ok {
		sizes, err := parseSizes(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sPAGE_SIZES: %w", EnvPrefix, err))
		} else {
			c.List.PageSizes = sizes
		}
	}
	return errors.Join(errs...)
}

func parseSizes(v string) ([]int, error) {
	var sizes []int
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		sizes = append(sizes, n)
	}
	return sizes, nil
}

// Validate checks settings that would otherwise fail later at startup.
func (c Config) Validate() error {
	var errs []error
	if c.Auth.JWTSecret == "" {
		errs = append(errs, fmt.Errorf("auth.jwt_secret is required (set %sJWT_SECRET)", EnvPrefix))
	}
	if c.Auth.AccessTTL <= 0 || c.Auth.RefreshTTL <= 0 {
		errs = append(errs, errors.New("auth token lifetimes must be positive"))
	}
	if len(c.List.PageSizes) == 0 {
		errs = append(errs, errors.New("list.page_sizes must not be empty"))
	}
	for _, s := range c.List.PageSizes {
		if s <= 0 {
			errs = append(errs, fmt.Errorf("list.page_sizes: %d is not positive", s))
		}
	}
	if err := c.Expiry.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Sweep.Enabled && c.Sweep.Interval <= 0 {
		errs = append(errs, errors.New("sweep.interval must be positive"))
	}
	if c.Sweep.Workers < 1 {
		errs = append(errs, errors.New("sweep.workers must be at least 1"))
	}
	return errors.Join(errs...)
}

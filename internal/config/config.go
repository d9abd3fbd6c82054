// Package config loads the service configuration from YAML with a handful of
// environment overrides. Invalid values panic so a misconfigured process never
// starts serving quotes.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"stlquote/internal/mesh"
)

// PostgresConfig describes the token database used for API key auth.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type Config struct {
	Server struct {
		Host           string   `yaml:"host"`
		Port           string   `yaml:"port"`
		Prefork        bool     `yaml:"prefork"`
		CORSOrigins    []string `yaml:"cors_origins"`
		BodyLimitBytes int      `yaml:"body_limit_bytes"`
	} `yaml:"server"`

	Pricing struct {
		MaterialCostPerCM3 float64 `yaml:"material_cost_per_cm3"`
		BaseFee            float64 `yaml:"base_fee"`
	} `yaml:"pricing"`

	Mesh struct {
		// Units names the length unit of incoming mesh coordinates. STL carries
		// no unit metadata, so this is a deployment-wide assumption.
		Units      string `yaml:"units"`
		ScratchDir string `yaml:"scratch_dir"`
	} `yaml:"mesh"`

	Download struct {
		Timeout  time.Duration `yaml:"timeout"`
		MaxBytes int64         `yaml:"max_bytes"`
	} `yaml:"download"`

	Logger struct {
		File       string `yaml:"file"`
		Level      string `yaml:"level"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"logger"`

	Cache struct {
		RedisHost         string        `yaml:"redis_host"`
		RateLimitDB       int           `yaml:"redis_rate_db"`
		QuoteCacheDB      int           `yaml:"redis_quote_db"`
		QuoteCacheEnabled bool          `yaml:"quote_cache_enabled"`
		QuoteCacheTTL     time.Duration `yaml:"quote_cache_ttl"`
	} `yaml:"cache"`

	RateLimiter struct {
		Interval               time.Duration `yaml:"interval"`
		UserLimit              int           `yaml:"user_limit"`
		EnableUserLimiter      bool          `yaml:"enable_user_limiter"`
		EnableTokenRateLimiter bool          `yaml:"enable_token_rate_limiter"`
	} `yaml:"rate_limiter"`

	Auth struct {
		Enabled bool `yaml:"enabled"`
		// Required rejects requests without X-API-Key instead of treating
		// them as public traffic.
		Required       bool           `yaml:"required"`
		Postgres       PostgresConfig `yaml:"postgres"`
		ReloadInterval time.Duration  `yaml:"reload_interval"`
	} `yaml:"auth"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	var cfg Config
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = ":8000"
	cfg.Server.CORSOrigins = []string{"*"}
	cfg.Server.BodyLimitBytes = 64 * 1024
	cfg.Pricing.MaterialCostPerCM3 = 0.35
	cfg.Pricing.BaseFee = 3.00
	cfg.Mesh.Units = "mm"
	cfg.Download.Timeout = 60 * time.Second
	cfg.Download.MaxBytes = 100 * 1024 * 1024
	cfg.Logger.File = "logs/stlquote.log"
	cfg.Logger.Level = "info"
	cfg.Logger.MaxSizeMB = 50
	cfg.Logger.MaxBackups = 3
	cfg.Logger.MaxAgeDays = 14
	cfg.Cache.RateLimitDB = 0
	cfg.Cache.QuoteCacheDB = 1
	cfg.Cache.QuoteCacheTTL = 10 * time.Minute
	cfg.RateLimiter.Interval = time.Minute
	cfg.Auth.ReloadInterval = time.Minute
	return cfg
}

// Load reads the file named by CONFIG_PATH, or ./config.yaml.
func Load() Config {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "./config.yaml"
	}
	return LoadFrom(path)
}

// LoadFrom reads path on top of Default, applies environment overrides and
// validates the result. A missing file is not an error.
func LoadFrom(path string) Config {
	cfg := Default()

	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		panic(fmt.Sprintf("config: read %s: %v", path, err))
	default:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			panic(fmt.Sprintf("config: parse %s: %v", path, err))
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return cfg
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		host, port, err := splitListenAddr(v)
		if err != nil {
			panic(fmt.Sprintf("config: LISTEN_ADDR=%q: %v", v, err))
		}
		if host != "" {
			cfg.Server.Host = host
		}
		cfg.Server.Port = ":" + port
	}
	if v := os.Getenv("MESH_UNITS"); v != "" {
		cfg.Mesh.Units = v
	}
	if v := os.Getenv("MATERIAL_COST_PER_CM3"); v != "" {
		cfg.Pricing.MaterialCostPerCM3 = mustFloat("MATERIAL_COST_PER_CM3", v)
	}
	if v := os.Getenv("BASE_FEE"); v != "" {
		cfg.Pricing.BaseFee = mustFloat("BASE_FEE", v)
	}
}

// splitListenAddr accepts "host:port", ":port" or a bare port number.
func splitListenAddr(v string) (host, port string, err error) {
	v = strings.TrimSpace(v)
	if _, perr := strconv.Atoi(v); perr == nil {
		return "", v, nil
	}
	return net.SplitHostPort(v)
}

// ListenAddr joins Server.Host and Server.Port into the address passed to
// Listen.
func (cfg Config) ListenAddr() string {
	return net.JoinHostPort(cfg.Server.Host, strings.TrimPrefix(cfg.Server.Port, ":"))
}

func mustFloat(name, v string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		panic(fmt.Sprintf("config: %s=%q is not a number", name, v))
	}
	return f
}

// Validate reports the first invalid value in cfg.
func (cfg Config) Validate() error {
	if _, err := mesh.ParseUnits(cfg.Mesh.Units); err != nil {
		return fmt.Errorf("mesh.units: %w", err)
	}
	if p, err := strconv.Atoi(strings.TrimPrefix(cfg.Server.Port, ":")); err != nil || p < 0 || p > 65535 {
		return fmt.Errorf("server.port must be a port number, got %q", cfg.Server.Port)
	}

	switch {
	case cfg.Pricing.MaterialCostPerCM3 < 0:
		return fmt.Errorf("pricing.material_cost_per_cm3 must be >= 0, got %v", cfg.Pricing.MaterialCostPerCM3)
	case cfg.Pricing.BaseFee < 0:
		return fmt.Errorf("pricing.base_fee must be >= 0, got %v", cfg.Pricing.BaseFee)
	case cfg.Download.Timeout <= 0:
		return fmt.Errorf("download.timeout must be > 0")
	case cfg.Download.MaxBytes <= 0:
		return fmt.Errorf("download.max_bytes must be > 0")
	case cfg.RateLimiter.Interval <= 0:
		return fmt.Errorf("rate_limiter.interval must be > 0")
	case cfg.RateLimiter.UserLimit < 0:
		return fmt.Errorf("rate_limiter.user_limit must be >= 0")
	case cfg.Cache.QuoteCacheEnabled && cfg.Cache.RedisHost == "":
		return fmt.Errorf("cache.redis_host is required when quote_cache_enabled is set")
	case cfg.Auth.Enabled && cfg.Auth.Postgres.Host == "":
		return fmt.Errorf("auth.postgres.host is required when auth is enabled")
	case cfg.Auth.Enabled && cfg.Auth.ReloadInterval <= 0:
		return fmt.Errorf("auth.reload_interval must be > 0")
	}
	return nil
}

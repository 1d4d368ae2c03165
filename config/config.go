// Package config loads the ldash settings.
//
// Values come from a YAML file, then from LDASH_* environment variables
// (a .env file in the working directory is loaded first when present), and
// finally from defaults for whatever is still unset.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/etnz/loandash/api"
)

// Environment variables.
const (
	EnvConfig      = "LDASH_CONFIG"
	EnvBackendURL  = "LDASH_BACKEND_URL"
	EnvTimeout     = "LDASH_TIMEOUT"
	EnvRateLimit   = "LDASH_RATE_LIMIT"
	EnvBurst       = "LDASH_BURST"
	EnvSessionFile = "LDASH_SESSION_FILE"
	EnvPublic      = "LDASH_PUBLIC"
	EnvLogLevel    = "LDASH_LOG_LEVEL"
	EnvServeAddr   = "LDASH_ADDR"
	EnvFlashTTL    = "LDASH_FLASH_TTL"
	EnvCORSOrigins = "LDASH_CORS_ORIGINS"
)

// Defaults.
const (
	DefaultBackendURL = "http://localhost:8000"
	DefaultTimeout    = 30 * time.Second
	DefaultLogLevel   = "info"
	DefaultServeAddr  = "localhost:3000"
	DefaultFlashTTL   = time.Minute
)

type Config struct {
	Backend BackendConfig `yaml:"backend"`
	Session SessionConfig `yaml:"session"`
	Logging LogConfig     `yaml:"logging"`
	Server  ServerConfig  `yaml:"server"`
}

type BackendConfig struct {
	URL       string        `yaml:"url"`
	Timeout   time.Duration `yaml:"timeout"`
	RateLimit float64       `yaml:"rate_limit"` // requests per second, 0 is unlimited
	Burst     int           `yaml:"burst"`
}

type SessionConfig struct {
	File string `yaml:"file"`
	// Public shows the dashboard without the auth gate.
	Public bool `yaml:"public"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type ServerConfig struct {
	Addr        string        `yaml:"addr"`
	FlashTTL    time.Duration `yaml:"flash_ttl"`
	CORSOrigins []string      `yaml:"cors_origins"`
}

// API returns the settings of the backend client.
func (c *Config) API() api.Config {
	return api.Config{
		BaseURL:   c.Backend.URL,
		Timeout:   c.Backend.Timeout,
		RateLimit: c.Backend.RateLimit,
		Burst:     c.Backend.Burst,
	}
}

// DefaultPath returns the config file used when none is given.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "ldash.yaml"
	}
	return filepath.Join(dir, "ldash", "config.yaml")
}

// Load reads the config at path. An empty path means LDASH_CONFIG, then
// DefaultPath. A missing file is not an error, every value then comes from
// the environment or the defaults.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if path == "" {
		path = GetEnvOrDefaultAsString(EnvConfig, DefaultPath())
	}
	cfg, err := LoadFromConfigFilePath(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg, err = &Config{}, nil
		assignDefaultConfigValues(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromConfigFilePath reads a YAML config file and completes it.
func LoadFromConfigFilePath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	assignDefaultConfigValues(&cfg)
	return &cfg, nil
}

// assignDefaultConfigValues applies environment overrides, then defaults.
func assignDefaultConfigValues(cfg *Config) {
	cfg.Backend.URL = GetEnvOrDefaultAsString(EnvBackendURL, cfg.Backend.URL)
	cfg.Backend.Timeout = GetEnvOrDefaultAsDuration(EnvTimeout, cfg.Backend.Timeout)
	cfg.Backend.RateLimit = GetEnvOrDefaultAsFloat(EnvRateLimit, cfg.Backend.RateLimit)
	cfg.Backend.Burst = GetEnvOrDefaultAsInt(EnvBurst, cfg.Backend.Burst)
	cfg.Session.File = GetEnvOrDefaultAsString(EnvSessionFile, cfg.Session.File)
	cfg.Session.Public = GetEnvOrDefaultAsBool(EnvPublic, cfg.Session.Public)
	cfg.Logging.Level = GetEnvOrDefaultAsString(EnvLogLevel, cfg.Logging.Level)
	cfg.Server.Addr = GetEnvOrDefaultAsString(EnvServeAddr, cfg.Server.Addr)
	cfg.Server.FlashTTL = GetEnvOrDefaultAsDuration(EnvFlashTTL, cfg.Server.FlashTTL)
	if v, ok := os.LookupEnv(EnvCORSOrigins); ok {
		cfg.Server.CORSOrigins = splitList(v)
	}

	if cfg.Backend.URL == "" {
		cfg.Backend.URL = DefaultBackendURL
	}
	if cfg.Backend.Timeout <= 0 {
		cfg.Backend.Timeout = DefaultTimeout
	}
	if cfg.Backend.RateLimit > 0 && cfg.Backend.Burst < 1 {
		cfg.Backend.Burst = 1
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = DefaultServeAddr
	}
	if cfg.Server.FlashTTL <= 0 {
		cfg.Server.FlashTTL = DefaultFlashTTL
	}
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// GetEnvOrDefaultAsString returns the value of the env variable key, or
// defaultVal when it is not set.
func GetEnvOrDefaultAsString(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}

func GetEnvOrDefaultAsInt(key string, defaultValue int) int {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func GetEnvOrDefaultAsFloat(key string, defaultValue float64) float64 {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func GetEnvOrDefaultAsBool(key string, defaultValue bool) bool {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// GetEnvOrDefaultAsDuration accepts Go durations ("10s") and plain seconds.
func GetEnvOrDefaultAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	if s, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(s) * time.Second
	}
	return defaultValue
}

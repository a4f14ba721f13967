package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Storage   StorageConfig   `yaml:"storage"`
	Auth      AuthConfig      `yaml:"auth"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Uploads   UploadsConfig   `yaml:"uploads"`
	Janitor   JanitorConfig   `yaml:"janitor"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// StorageConfig selects where uploaded job files live. Driver is "local"
// or "minio".
type StorageConfig struct {
	Driver string      `yaml:"driver"`
	Path   string      `yaml:"path"`
	Minio  MinioConfig `yaml:"minio"`
}

type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	// CredentialCacheTTL bounds how long a verified worker credential is
	// trusted without re-running bcrypt.
	CredentialCacheTTL  time.Duration `yaml:"credential_cache_ttl"`
	CredentialCacheSize int           `yaml:"credential_cache_size"`
}

type HeartbeatConfig struct {
	SweepInterval time.Duration `yaml:"sweep_interval"`
	Timeout       time.Duration `yaml:"timeout"`
}

type WebhookConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

type UploadsConfig struct {
	MaxSizeMB int64 `yaml:"max_size_mb"`
}

type JanitorConfig struct {
	Interval time.Duration `yaml:"interval"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Database: DatabaseConfig{
			Path: "./data/rprint.db",
		},
		Storage: StorageConfig{
			Driver: "local",
			Path:   "./data/files",
			Minio: MinioConfig{
				Bucket: "rprint-jobs",
			},
		},
		Auth: AuthConfig{
			CredentialCacheTTL:  5 * time.Minute,
			CredentialCacheSize: 1024 * 1024,
		},
		Heartbeat: HeartbeatConfig{
			SweepInterval: 60 * time.Second,
			Timeout:       5 * time.Minute,
		},
		Webhook: WebhookConfig{
			Timeout: 5 * time.Second,
		},
		Uploads: UploadsConfig{
			MaxSizeMB: 50,
		},
		Janitor: JanitorConfig{
			Interval: 10 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func Load(configPath string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnv(cfg)
	return cfg, nil
}

func LoadFromEnv() *Config {
	cfg := defaults()
	applyEnv(cfg)
	return cfg
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("RPRINT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("RPRINT_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("RPRINT_STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}

	if v := os.Getenv("RPRINT_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}

	if v := os.Getenv("RPRINT_MINIO_ENDPOINT"); v != "" {
		cfg.Storage.Minio.Endpoint = v
	}

	if v := os.Getenv("RPRINT_MINIO_ACCESS_KEY"); v != "" {
		cfg.Storage.Minio.AccessKey = v
	}

	if v := os.Getenv("RPRINT_MINIO_SECRET_KEY"); v != "" {
		cfg.Storage.Minio.SecretKey = v
	}

	if v := os.Getenv("RPRINT_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}

	if v := os.Getenv("RPRINT_HEARTBEAT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Heartbeat.Timeout = d
		}
	}

	if v := os.Getenv("RPRINT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("RPRINT_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("server read timeout must be non-negative")
	}

	if c.Server.WriteTimeout < 0 {
		return fmt.Errorf("server write timeout must be non-negative")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}

	switch c.Storage.Driver {
	case "local":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage path is required for the local driver")
		}
	case "minio":
		if c.Storage.Minio.Endpoint == "" || c.Storage.Minio.Bucket == "" {
			return fmt.Errorf("minio endpoint and bucket are required for the minio driver")
		}
	default:
		return fmt.Errorf("invalid storage driver: %s (valid: local, minio)", c.Storage.Driver)
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth jwt secret is required")
	}

	if c.Auth.CredentialCacheTTL < 0 {
		return fmt.Errorf("credential cache ttl must be non-negative")
	}

	if c.Heartbeat.SweepInterval <= 0 {
		return fmt.Errorf("heartbeat sweep interval must be positive")
	}

	if c.Heartbeat.Timeout <= 0 {
		return fmt.Errorf("heartbeat timeout must be positive")
	}

	if c.Webhook.Timeout <= 0 {
		return fmt.Errorf("webhook timeout must be positive")
	}

	if c.Uploads.MaxSizeMB < 1 {
		return fmt.Errorf("upload max size must be at least 1 MB")
	}

	if c.Janitor.Interval <= 0 {
		return fmt.Errorf("janitor interval must be positive")
	}

	return c.Logging.Validate()
}

var validLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validFormats = map[string]bool{
	"json":  true,
	"text":  true,
	"plain": true,
}

func (l LoggingConfig) Validate() error {
	if !validLevels[l.Level] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", l.Level)
	}

	if !validFormats[l.Format] {
		return fmt.Errorf("invalid log format: %s (valid: json, text, plain)", l.Format)
	}

	return nil
}

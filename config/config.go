package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"schls/core/codec"
	"schls/logger"
)

// DefaultPath is where the config file is looked up and created.
const DefaultPath = "config.json"

const (
	defaultOutputDir  = "output"
	defaultCodec      = "mp3"
	defaultFFmpegPath = "ffmpeg"
	defaultLogLevel   = "info"
	defaultLogFile    = "logs/schls.log"
	defaultCacheTTL   = 10 * time.Minute
	defaultHistoryDSN = "schls.db"
	defaultServerAddr = ":8080"
)

// Config is the JSON config file. Only client_id and oauth are written to a
// new file; everything else is optional.
type Config struct {
	ClientID string `json:"client_id"`
	OAuth    string `json:"oauth"`

	OutputDir  string `json:"output_dir,omitempty"`
	Codec      string `json:"codec,omitempty"`
	FFmpegPath string `json:"ffmpeg_path,omitempty"`
	LogLevel   string `json:"log_level,omitempty"`
	LogFile    string `json:"log_file,omitempty"`

	// Redis track cache, disabled when RedisAddr is empty.
	RedisAddr     string `json:"redis_addr,omitempty"`
	RedisPassword string `json:"redis_password,omitempty"`
	RedisDB       int    `json:"redis_db,omitempty"`
	CacheTTL      string `json:"cache_ttl,omitempty"`

	// MinIO upload target, disabled when MinioEndpoint is empty.
	MinioEndpoint  string `json:"minio_endpoint,omitempty"`
	MinioAccessKey string `json:"minio_access_key,omitempty"`
	MinioSecretKey string `json:"minio_secret_key,omitempty"`
	MinioBucket    string `json:"minio_bucket,omitempty"`
	MinioUseSSL    bool   `json:"minio_use_ssl,omitempty"`

	HistoryDSN string `json:"history_dsn,omitempty"`
	ServerAddr string `json:"server_addr,omitempty"`
}

// ConfigError reports an invalid or missing setting.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}

// getEnv gets a non-empty environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

// Load reads path, creating a blank template first if it does not exist.
// A .env file in the working directory is loaded without overriding the real
// environment, and environment variables then override file values.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file loaded", logger.ErrorField(err))
	}

	if path == "" {
		path = DefaultPath
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := WriteTemplate(path); err != nil {
			return nil, err
		}
		logger.Info("created blank config file", logger.String("path", path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := &Config{}
	if len(strings.TrimSpace(string(data))) > 0 {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

// WriteTemplate writes {"client_id": "", "oauth": ""} to path.
func WriteTemplate(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	data, _ := json.MarshalIndent(struct {
		ClientID string `json:"client_id"`
		OAuth    string `json:"oauth"`
	}{}, "", "  ")
	if err := os.WriteFile(path, append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("write config template %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.ClientID = getEnv("SC_CLIENT_ID", c.ClientID)
	c.OAuth = getEnv("SC_OAUTH", c.OAuth)
	c.FFmpegPath = getEnv("FFMPEG_PATH", c.FFmpegPath)
	c.OutputDir = getEnv("SCHLS_OUTPUT_DIR", c.OutputDir)
	c.LogLevel = getEnv("SCHLS_LOG_LEVEL", c.LogLevel)
	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = getEnvInt("REDIS_DB", c.RedisDB)
	c.MinioEndpoint = getEnv("MINIO_ENDPOINT", c.MinioEndpoint)
	c.MinioAccessKey = getEnv("MINIO_ACCESS_KEY", c.MinioAccessKey)
	c.MinioSecretKey = getEnv("MINIO_SECRET_KEY", c.MinioSecretKey)
	c.MinioBucket = getEnv("MINIO_BUCKET", c.MinioBucket)
	c.MinioUseSSL = getEnvBool("MINIO_USE_SSL", c.MinioUseSSL)
	c.HistoryDSN = getEnv("HISTORY_DSN", c.HistoryDSN)
}

func (c *Config) applyDefaults() {
	if c.OutputDir == "" {
		c.OutputDir = defaultOutputDir
	}
	if c.Codec == "" {
		c.Codec = defaultCodec
	}
	if c.FFmpegPath == "" {
		c.FFmpegPath = defaultFFmpegPath
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.LogFile == "" {
		c.LogFile = defaultLogFile
	}
	if c.HistoryDSN == "" {
		c.HistoryDSN = defaultHistoryDSN
	}
	if c.ServerAddr == "" {
		c.ServerAddr = defaultServerAddr
	}
	if c.MinioBucket == "" {
		c.MinioBucket = "schls"
	}
}

// ApplyOverrides lets command-line flags win over file and environment.
func (c *Config) ApplyOverrides(clientID, oauth string) {
	if clientID != "" {
		c.ClientID = clientID
	}
	if oauth != "" {
		c.OAuth = oauth
	}
}

// Validate checks the settings every network call depends on.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ClientID) == "" {
		return &ConfigError{Field: "client_id", Reason: "required; set it in the config file, SC_CLIENT_ID or --client_id"}
	}
	if _, err := codec.Parse(c.Codec); err != nil {
		return &ConfigError{Field: "codec", Reason: err.Error()}
	}
	if c.CacheTTL != "" {
		if _, err := time.ParseDuration(c.CacheTTL); err != nil {
			return &ConfigError{Field: "cache_ttl", Reason: err.Error()}
		}
	}
	return nil
}

// CacheTTLDuration returns the track cache lifetime.
func (c *Config) CacheTTLDuration() time.Duration {
	if d, err := time.ParseDuration(c.CacheTTL); err == nil && d > 0 {
		return d
	}
	return defaultCacheTTL
}

func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

func (c *Config) MinioEnabled() bool {
	return c.MinioEndpoint != "" && c.MinioAccessKey != "" && c.MinioSecretKey != ""
}

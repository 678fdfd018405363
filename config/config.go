package config

import (
	"errors"
	"fmt"
	"github.com/adamlounds/diacates-go/locale"
	"github.com/thanos-io/objstore/providers/s3"
	"gopkg.in/yaml.v2"
	"log/slog"
	"os"
	"strings"
	"time"
)

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

const minSessionSecretLength = 16

// DiaryConfig is the part of the config shared by the server and diactl.
type DiaryConfig struct {
	Storage     StorageConfig
	Locale      *locale.Locale
	Location    *time.Location
	DefaultRole string
	SortOrder   string
}

// ServerConfig is the root config for a diacates server
type ServerConfig struct {
	DiaryConfig
	Session struct {
		Secret string
		TTL    time.Duration
	}
	Admin struct {
		Username string
		Password string
	}
	Server struct {
		Address string
	}
	LogFormat string
	LogLevel  slog.Level
}

// CLIConfig is what diactl needs: storage and display settings, no session
// secret.
type CLIConfig struct {
	DiaryConfig
	LogLevel slog.Level
}

type StorageConfig struct {
	S3Config   *s3.Config
	Backend    string // "bucket" or "sqlite"
	DataDir    string
	SQLitePath string
}

// RegisterEnv registers config from the environment
func (c *ServerConfig) RegisterEnv() error {
	c.Server.Address = envOrDefault("SERVER_ADDRESS", ":8080")

	logLevel, ok := logLevels[strings.ToLower(os.Getenv("LOG_LEVEL"))]
	if !ok {
		logLevel = slog.LevelInfo
	}
	c.LogLevel = logLevel
	c.LogFormat = strings.ToLower(envOrDefault("LOG_FORMAT", "json"))
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}

	err := c.DiaryConfig.registerEnv()
	if err != nil {
		return err
	}

	c.Session.Secret = os.Getenv("SESSION_SECRET")
	if len(c.Session.Secret) < minSessionSecretLength {
		return fmt.Errorf("SESSION_SECRET must be at least %d characters long", minSessionSecretLength)
	}
	c.Session.TTL, err = time.ParseDuration(envOrDefault("SESSION_TTL", "720h"))
	if err != nil {
		return fmt.Errorf("cannot parse SESSION_TTL: %w", err)
	}
	if c.Session.TTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}

	c.Admin.Username = os.Getenv("ADMIN_USERNAME")
	c.Admin.Password = os.Getenv("ADMIN_PASSWORD")
	if c.Admin.Username != "" && c.Admin.Password == "" {
		return errors.New("ADMIN_PASSWORD is required when ADMIN_USERNAME is set")
	}
	return nil
}

// RegisterEnv registers the diactl config from the environment. Logging is
// quiet unless LOG_LEVEL asks otherwise.
func (c *CLIConfig) RegisterEnv() error {
	logLevel, ok := logLevels[strings.ToLower(os.Getenv("LOG_LEVEL"))]
	if !ok {
		logLevel = slog.LevelWarn
	}
	c.LogLevel = logLevel
	return c.DiaryConfig.registerEnv()
}

func (c *DiaryConfig) registerEnv() error {
	err := c.Storage.registerEnv()
	if err != nil {
		return err
	}

	c.DefaultRole = envOrDefault("DEFAULT_ROLE", "diarist")
	c.Locale = locale.Match(envOrDefault("LOCALE", "ru"))
	c.Location, err = time.LoadLocation(envOrDefault("TZ_NAME", "Local"))
	if err != nil {
		return fmt.Errorf("cannot load TZ_NAME: %w", err)
	}

	c.SortOrder = strings.ToLower(envOrDefault("SORT_ORDER", "chronological"))
	if c.SortOrder != "chronological" && c.SortOrder != "lexical" {
		return fmt.Errorf("SORT_ORDER must be chronological or lexical, got %q", c.SortOrder)
	}
	return nil
}

func (c *StorageConfig) registerEnv() error {
	c.Backend = strings.ToLower(envOrDefault("STORAGE", "bucket"))
	c.DataDir = os.Getenv("DATA_DIR")
	c.SQLitePath = envOrDefault("SQLITE_PATH", "./data/diacates.db")

	switch c.Backend {
	case "sqlite":
		return nil
	case "bucket":
	default:
		return fmt.Errorf("STORAGE must be bucket or sqlite, got %q", c.Backend)
	}

	rawS3Config := os.Getenv("S3_CONFIG")
	if rawS3Config == "" {
		return nil
	}

	// nb "yaml is a superset of json", so we can load json from env while
	// using the standard Thanos yaml code
	var s3Config s3.Config
	err := yaml.Unmarshal([]byte(rawS3Config), &s3Config)
	if err != nil {
		return fmt.Errorf("cannot parse S3 config: %w", err)
	}
	c.S3Config = &s3Config
	return nil
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// Package config loads runtime settings from defaults, an optional YAML file,
// a .env file and the process environment, in that order.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/naka-gawa/pr-habits/internal/gateway"
	"github.com/naka-gawa/pr-habits/internal/storage"
	"github.com/naka-gawa/pr-habits/internal/usecase"
)

// EnvProduction is the environment name that enables the networked backend.
const EnvProduction = "production"

// Config holds all application configuration.
type Config struct {
	Environment string        `yaml:"environment"`
	GitHub      GitHubConfig  `yaml:"github"`
	Storage     StorageConfig `yaml:"storage"`
	Server      ServerConfig  `yaml:"server"`
	Refresh     RefreshConfig `yaml:"refresh"`
	Logging     LoggingConfig `yaml:"logging"`
}

type GitHubConfig struct {
	Username string `yaml:"username"`
	// Token is normally supplied through GITHUB_TOKEN rather than the file.
	Token string `yaml:"token"`
	API   string `yaml:"api"`
}

type StorageConfig struct {
	SQLitePath   string `yaml:"sqlite_path"`
	DatabaseURL  string `yaml:"database_url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type RefreshConfig struct {
	PageSize  int           `yaml:"page_size"`
	MaxPages  int           `yaml:"max_pages"`
	PageDelay time.Duration `yaml:"page_delay"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load builds the configuration. path names an optional YAML file; an empty
// path skips it. envFiles are loaded with godotenv before the environment is
// read; missing files are ignored.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(expanded)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := loadDotEnv(envFiles...); err != nil {
		return nil, err
	}
	applyEnv(cfg)

	sqlitePath, err := expandPath(cfg.Storage.SQLitePath)
	if err != nil {
		return nil, err
	}
	cfg.Storage.SQLitePath = sqlitePath
	return cfg, nil
}

// Validate checks the settings a refresh depends on.
func (c *Config) Validate() error {
	var errs []error
	if c.GitHub.Username == "" {
		errs = append(errs, errors.New("github username is required (GITHUB_USERNAME)"))
	}
	if c.Refresh.PageSize < 1 || c.Refresh.PageSize > gateway.MaxPerPage {
		errs = append(errs, fmt.Errorf("refresh page_size must be between 1 and %d, got %d", gateway.MaxPerPage, c.Refresh.PageSize))
	}
	switch c.GitHub.API {
	case gateway.APIREST, gateway.APIGraphQL:
	default:
		errs = append(errs, fmt.Errorf("github api must be %q or %q, got %q", gateway.APIREST, gateway.APIGraphQL, c.GitHub.API))
	}
	if _, err := c.Logging.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Production reports whether the process runs in production mode.
func (c *Config) Production() bool {
	return strings.EqualFold(c.Environment, EnvProduction)
}

// Selection returns the inputs of the storage backend choice.
func (c *Config) Selection() storage.Selection {
	return storage.Selection{
		Production:  c.Production(),
		DatabaseURL: c.Storage.DatabaseURL,
		SQLitePath:  c.Storage.SQLitePath,
	}
}

// Synchronizer returns the paging settings for a refresh.
func (c *Config) Synchronizer() usecase.Config {
	return usecase.Config{
		Username:  c.GitHub.Username,
		PageSize:  c.Refresh.PageSize,
		MaxPages:  c.Refresh.MaxPages,
		PageDelay: c.Refresh.PageDelay,
	}
}

// SlogLevel parses Level; an empty level means info.
func (l LoggingConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if l.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("logging level %q: %w", l.Level, err)
	}
	return level, nil
}

// expandPath replaces a leading ~ with the user's home directory.
func expandPath(path string) (string, error) {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

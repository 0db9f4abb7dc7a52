package config

import (
	"time"

	"github.com/naka-gawa/pr-habits/internal/gateway"
	"github.com/naka-gawa/pr-habits/internal/usecase"
)

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		GitHub: GitHubConfig{
			API: gateway.APIREST,
		},
		Storage: StorageConfig{
			SQLitePath:   "data/habits.db",
			MaxOpenConns: 10,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Refresh: RefreshConfig{
			PageSize:  gateway.MaxPerPage,
			MaxPages:  usecase.DefaultMaxPages,
			PageDelay: usecase.DefaultPageDelay,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

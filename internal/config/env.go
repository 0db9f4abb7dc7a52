package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// loadDotEnv loads each file into the environment without overriding
// variables that are already set.
func loadDotEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

// applyEnv overlays environment variables on cfg. Unset or empty variables
// leave the current value alone.
func applyEnv(cfg *Config) {
	setString(&cfg.Storage.SQLitePath, "HABITS_DB_PATH")
	setString(&cfg.Storage.DatabaseURL, "DATABASE_URL")
	setString(&cfg.Environment, "APP_ENV")
	setString(&cfg.Environment, "HABITS_ENV")
	setString(&cfg.GitHub.Token, "GITHUB_TOKEN")
	setString(&cfg.GitHub.Username, "GITHUB_USERNAME")
	setString(&cfg.GitHub.API, "GITHUB_API")
	setString(&cfg.Logging.Level, "LOG_LEVEL")

	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Addr = ":" + port
	}
	setString(&cfg.Server.Addr, "HABITS_ADDR")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

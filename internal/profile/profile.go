// Package profile holds the runtime configuration of the bot.
package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Profile is configuration to start the bot.
type Profile struct {
	// Mode can be "prod" or "dev".
	Mode string
	// Data is the directory for runtime data, e.g. the SQLite database.
	Data string
	// Driver is the database driver: sqlite or postgres.
	Driver string
	// DSN is the database source name.
	DSN string
	// BotToken is the Telegram Bot API token.
	BotToken string
	// MetricsAddr is the listen address for the Prometheus endpoint.
	// Empty disables the endpoint.
	MetricsAddr string
	// Version is the current bot version.
	Version string
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// getEnvOrDefault returns environment variable value or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables. Values already set
// by flags win over the environment.
func (p *Profile) FromEnv() {
	if p.BotToken == "" {
		p.BotToken = getEnvOrDefault("MULTIPINBOT_TELEGRAM_TOKEN", os.Getenv("TELEGRAM_TOKEN"))
	}
	if p.MetricsAddr == "" {
		p.MetricsAddr = os.Getenv("MULTIPINBOT_METRICS_ADDR")
	}
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

// Validate normalizes the profile and fills driver-dependent defaults.
func (p *Profile) Validate() error {
	if p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "dev"
	}

	if p.BotToken == "" {
		return errors.New("telegram bot token required")
	}

	if p.Driver == "sqlite" {
		if p.Data == "" {
			p.Data = "."
		}
		dataDir, err := checkDataDir(p.Data)
		if err != nil {
			return err
		}
		p.Data = dataDir
		if p.DSN == "" {
			dbFile := fmt.Sprintf("multipinbot_%s.db", p.Mode)
			p.DSN = filepath.Join(dataDir, dbFile)
		}
	} else if p.DSN == "" {
		return errors.New("dsn required")
	}

	return nil
}

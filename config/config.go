// Package config loads server configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds everything the server needs to start.
type Config struct {
	Addr   string `env:"POKER_ADDR" envDefault:":8080"`
	DBPath string `env:"POKER_DB_PATH" envDefault:"poker.db"`

	JWTSecret string        `env:"POKER_JWT_SECRET,required"`
	JWTIssuer string        `env:"POKER_JWT_ISSUER" envDefault:"pokerplanner"`
	JWTExpiry time.Duration `env:"POKER_JWT_EXPIRY" envDefault:"24h"`

	JiraURL      string `env:"POKER_JIRA_URL"`
	JiraUsername string `env:"POKER_JIRA_USERNAME"`
	JiraToken    string `env:"POKER_JIRA_TOKEN"`
	// JiraEstimateField is the custom field holding story points.
	JiraEstimateField string `env:"POKER_JIRA_ESTIMATE_FIELD" envDefault:"customfield_10016"`

	ReapInterval time.Duration `env:"POKER_REAP_INTERVAL" envDefault:"30m"`
}

// Parse reads configuration from the environment.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

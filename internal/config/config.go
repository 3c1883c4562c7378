// Package config loads dota-indexer's process configuration from the
// environment.
package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Config holds the configuration for the dota-indexer process. Environment
// variables are read with their literal names (no prefix), matching the
// original Python process's os.getenv(...) calls.
type Config struct {
	// URL is the chain websocket endpoint.
	URL string `envconfig:"URL" required:"true"`

	// Chain is the expected chain identifier; a mismatch at connect time
	// aborts startup.
	Chain string `envconfig:"CHAIN" required:"true"`

	// Storage connection.
	MySQLUser string `envconfig:"MYSQLUSER" required:"true"`
	Password  string `envconfig:"PASSWORD" required:"true"`
	Host      string `envconfig:"HOST" required:"true"`
	Database  string `envconfig:"DATABASE" required:"true"`

	// StartBlock seeds the cursor when no prior indexer_status row exists.
	StartBlock uint64 `envconfig:"START_BLOCK" required:"true"`

	// DelayBlock is the finalized-head lag the Runner waits for.
	DelayBlock uint64 `envconfig:"DELAY_BLOCK" default:"2"`

	// Rotation and Rentention govern log-file rotation/retention. The
	// second name is spelled the way the original process's environment
	// variable is spelled (os.getenv("RENTENTION")); this is not a typo
	// we introduced, and a deployed environment's variable name cannot be
	// silently renamed without breaking it.
	Rotation   int `envconfig:"ROTATION" default:"1"`
	Rentention int `envconfig:"RENTENTION" default:"4"`
}

// New parses Config from the environment.
func New() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log.Info().
		Str("url", cfg.URL).
		Str("chain", cfg.Chain).
		Str("host", cfg.Host).
		Str("database", cfg.Database).
		Uint64("start_block", cfg.StartBlock).
		Uint64("delay_block", cfg.DelayBlock).
		Int("rotation_days", cfg.Rotation).
		Int("rentention_weeks", cfg.Rentention).
		Msg("configuration loaded")

	return &cfg, nil
}

// DSN builds the MySQL data source name used to open the store.
func (c *Config) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true&multiStatements=true", c.MySQLUser, c.Password, c.Host, c.Database)
}

// NewForTesting returns a Config populated with values suitable for unit
// tests that never touch real infrastructure.
func NewForTesting() *Config {
	return &Config{
		URL:        "ws://localhost:9944",
		Chain:      "Dota",
		MySQLUser:  "test",
		Password:   "test",
		Host:       "127.0.0.1:3306",
		Database:   "dota_test",
		StartBlock: 1,
		DelayBlock: 2,
		Rotation:   1,
		Rentention: 4,
	}
}

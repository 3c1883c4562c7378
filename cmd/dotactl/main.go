// Command dotactl is a small operator CLI that reads already-committed
// indexer state out of MySQL for debugging: the persisted cursor, a
// tick's cached deploy mode, and maintenance commands for dropping a
// tick's tables. It never mutates indexer behavior — read/maintenance
// only, mirroring the teacher's cmd/memoryctl companion tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/octavei/dota-indexer/internal/config"
)

var dsnFlag string

var rootCmd = &cobra.Command{
	Use:   "dotactl",
	Short: "Operator CLI for the dota-indexer store",
}

func main() {
	rootCmd.PersistentFlags().StringVar(&dsnFlag, "dsn", "", "MySQL DSN (defaults to the process's MYSQLUSER/PASSWORD/HOST/DATABASE env vars)")

	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(tickModeCmd())
	rootCmd.AddCommand(debugCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func resolveDSN() (string, error) {
	if dsnFlag != "" {
		return dsnFlag, nil
	}
	cfg, err := config.New()
	if err != nil {
		return "", fmt.Errorf("--dsn not set and environment config is incomplete: %w", err)
	}
	return cfg.DSN(), nil
}

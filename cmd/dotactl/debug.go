package main

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"github.com/spf13/cobra"

	"github.com/octavei/dota-indexer/internal/model"
)

// debugCmd groups maintenance subcommands. These correspond to the
// original process's commented-out drop_all_tick_table/delete_all_tick_table
// calls — a real operator tool is a better home for them than dead code
// in the hot path.
func debugCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "debug",
		Short: "Maintenance commands; never run against a tick still being indexed",
	}
	cmd.AddCommand(dropTickTableCmd())
	cmd.AddCommand(deleteTickTableCmd())
	return cmd
}

func dropTickTableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drop-tick-table TICK",
		Short: "DROP a tick's balance and allowance tables",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tick := args[0]
			if !model.SupportedTicks[tick] {
				return fmt.Errorf("unsupported tick %q", tick)
			}
			return withDB(func(ctx context.Context, db *sql.DB) error {
				for _, suffix := range []string{"balances", "allowances"} {
					stmt := fmt.Sprintf("DROP TABLE IF EXISTS tick_%s_%s", tick, suffix)
					if _, err := db.ExecContext(ctx, stmt); err != nil {
						return err
					}
				}
				fmt.Printf("dropped tables for tick %s\n", tick)
				return nil
			})
		},
	}
}

func deleteTickTableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-tick-table TICK",
		Short: "DELETE all rows from a tick's balance and allowance tables, keeping the schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tick := args[0]
			if !model.SupportedTicks[tick] {
				return fmt.Errorf("unsupported tick %q", tick)
			}
			return withDB(func(ctx context.Context, db *sql.DB) error {
				for _, suffix := range []string{"balances", "allowances"} {
					stmt := fmt.Sprintf("DELETE FROM tick_%s_%s", tick, suffix)
					if _, err := db.ExecContext(ctx, stmt); err != nil {
						return err
					}
				}
				fmt.Printf("cleared rows for tick %s\n", tick)
				return nil
			})
		},
	}
}

func withDB(f func(ctx context.Context, db *sql.DB) error) error {
	dsn, err := resolveDSN()
	if err != nil {
		return err
	}
	ctx := context.Background()
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	return f(ctx, db)
}

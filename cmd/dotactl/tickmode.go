package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/octavei/dota-indexer/internal/store/mysql"
)

func tickModeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tick-mode TICK",
		Short: "Print a tick's deployed mode and per-block issuance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dsn, err := resolveDSN()
			if err != nil {
				return err
			}

			ctx := context.Background()
			st, err := mysql.Open(ctx, dsn)
			if err != nil {
				return err
			}
			defer st.Close()

			info, err := st.GetDeployInfo(ctx, args[0])
			if err != nil {
				return err
			}

			fmt.Printf("tick=%s mode=%s per_block_issuance=%d deployed_at_block=%d owner=%s\n",
				info.Tick, info.Mode, info.PerBlockIssuance, info.DeployedAtBlock, info.Owner)
			return nil
		},
	}
}

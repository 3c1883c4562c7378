package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/octavei/dota-indexer/internal/store/mysql"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the persisted indexer cursor",
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

			cur, err := st.GetIndexerStatus(ctx, "dot-20")
			if err != nil {
				return err
			}

			fmt.Printf("protocol=%s indexer_height=%d crawler_height=%d\n", cur.Protocol, cur.IndexerHeight, cur.CrawlerHeight)
			return nil
		},
	}
}

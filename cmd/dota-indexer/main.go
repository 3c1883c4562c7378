// Command dota-indexer runs the dot-20 indexing pipeline as a single
// long-running process (spec.md §6: no subcommands; exit codes are 0 on
// clean shutdown and non-zero on unrecoverable startup errors).
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/octavei/dota-indexer/internal/applier"
	"github.com/octavei/dota-indexer/internal/chainrpc"
	"github.com/octavei/dota-indexer/internal/config"
	"github.com/octavei/dota-indexer/internal/dot20/refengine"
	"github.com/octavei/dota-indexer/internal/logger"
	"github.com/octavei/dota-indexer/internal/model"
	"github.com/octavei/dota-indexer/internal/runner"
	"github.com/octavei/dota-indexer/internal/store/mysql"
	"github.com/octavei/dota-indexer/internal/tickmode"
)

func main() {
	if err := run(); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.New()
	if err != nil {
		return err
	}

	log := logger.NewRotating("dota-indexer", "logs/indexer.log", cfg.Rotation, cfg.Rentention)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := mysql.Open(ctx, cfg.DSN())
	if err != nil {
		return err
	}
	defer st.Close()

	chain, err := chainrpc.Dial(ctx, cfg.URL, cfg.Chain, log)
	if err != nil {
		return err
	}

	// The production dot-20 execution engine is an external collaborator
	// (spec.md §1). refengine is the in-memory reference used for local
	// and development runs; swap it for a production Engine implementation
	// to point this process at real balance/allowance storage.
	engine := refengine.New()
	cache := tickmode.New()
	a := applier.New(st, engine, log)

	startBlock := cfg.StartBlock
	cursor, err := st.GetIndexerStatus(ctx, "dot-20")
	switch {
	case err == nil:
		startBlock = cursor.IndexerHeight + 1
	case errors.Is(err, model.ErrNotFound):
		// no prior cursor: start from the configured block.
	default:
		return err
	}

	rcfg := runner.Config{
		DelayBlock:       cfg.DelayBlock,
		StartBlock:       cfg.StartBlock,
		PollInterval:     time.Second,
		ReconnectBackoff: 3 * time.Second,
	}
	r := runner.New(rcfg, log, chain, engine, cache, a, startBlock)

	log.Info().Uint64("start_block", startBlock).Msg("dota-indexer: starting")
	if err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info().Msg("dota-indexer: shutdown complete")
	return nil
}

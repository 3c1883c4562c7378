// Package runner drives the finalized-head polling loop described in
// spec.md §4.5: it advances only when the configured lag has cleared,
// hands each block to the basefilter/classifier/applier pipeline, and
// reconnects with a fixed backoff on transport errors. It is grounded on
// the teacher's ticker-driven indexer-prototype.Indexer loop, generalized
// to the single-block-at-a-time, lag-gated shape spec.md requires.
package runner

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/octavei/dota-indexer/internal/applier"
	"github.com/octavei/dota-indexer/internal/basefilter"
	"github.com/octavei/dota-indexer/internal/classifier"
	"github.com/octavei/dota-indexer/internal/dot20"
	"github.com/octavei/dota-indexer/internal/model"
	"github.com/octavei/dota-indexer/internal/tickmode"
)

// ErrTransport marks an error as a chain-transport failure rather than an
// Applier (storage) failure; Source implementations should wrap their
// connection errors with this so Runner knows to reconnect.
var ErrTransport = errors.New("chain transport error")

// Source is the RemarkSource collaborator (spec.md §6): it reports
// finalized-head height and fetches the ordered remark list for a block.
type Source interface {
	FinalizedHeight(ctx context.Context) (uint64, error)
	RemarksAt(ctx context.Context, blockNum uint64) ([]model.Remark, error)
	// Reconnect re-establishes the underlying connection after a
	// transport error.
	Reconnect(ctx context.Context) error
}

// Config governs the Runner's pacing.
type Config struct {
	// DelayBlock is the fixed finalized-head lag (spec.md §4.5).
	DelayBlock uint64
	// StartBlock is the configured initial block. Runner does not read it;
	// the loop starts at the startBlock argument passed to New.
	StartBlock uint64
	// PollInterval governs how often FinalizedHeight is polled when the
	// lag gate has not cleared.
	PollInterval time.Duration
	// ReconnectBackoff is the fixed backoff after a transport error
	// (spec.md §4.5 default: 3s).
	ReconnectBackoff time.Duration
}

// Runner owns the single-threaded loop: fetch remarks for cursor.next,
// filter, classify, apply, and only on success advance its in-memory
// cursor (the durable advance already happened inside Applier).
type Runner struct {
	cfg     Config
	log     zerolog.Logger
	source  Source
	engine  dot20.Engine
	cache   *tickmode.Cache
	applier *applier.Applier

	next uint64
}

// New builds a Runner seeded at startBlock (the caller is expected to
// have already consulted Store.GetIndexerStatus and pass its result, or
// cfg.StartBlock, as startBlock).
func New(cfg Config, log zerolog.Logger, source Source, engine dot20.Engine, cache *tickmode.Cache, a *applier.Applier, startBlock uint64) *Runner {
	return &Runner{cfg: cfg, log: log, source: source, engine: engine, cache: cache, applier: a, next: startBlock}
}

// Run blocks until ctx is cancelled, driving the loop described above.
func (r *Runner) Run(ctx context.Context) error {
	poll := r.cfg.PollInterval
	if poll <= 0 {
		poll = time.Second
	}
	backoff := r.cfg.ReconnectBackoff
	if backoff <= 0 {
		backoff = 3 * time.Second
	}

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		finalized, err := r.source.FinalizedHeight(ctx)
		if err != nil {
			r.reconnect(ctx, backoff, err)
			continue
		}

		if r.next+r.cfg.DelayBlock > finalized {
			continue
		}

		if err := r.processBlock(ctx, r.next); err != nil {
			if errors.Is(err, ErrTransport) {
				r.reconnect(ctx, backoff, err)
			} else {
				r.log.Warn().Err(err).Uint64("block", r.next).Msg("runner: block apply failed, will retry")
			}
			continue
		}

		r.next++
	}
}

func (r *Runner) processBlock(ctx context.Context, blockNum uint64) error {
	remarks, err := r.source.RemarksAt(ctx, blockNum)
	if err != nil {
		return err
	}

	filtered := basefilter.Run(ctx, r.log, r.engine, r.cache, remarks)
	classified := classifier.Run(ctx, r.log, r.engine, r.cache, filtered)

	return r.applier.Apply(ctx, blockNum, classified)
}

func (r *Runner) reconnect(ctx context.Context, backoff time.Duration, cause error) {
	r.log.Warn().Err(cause).Dur("backoff", backoff).Msg("runner: reconnecting after transport error")
	select {
	case <-ctx.Done():
	case <-time.After(backoff):
	}
	if err := r.source.Reconnect(ctx); err != nil {
		r.log.Error().Err(err).Msg("runner: reconnect failed")
	}
}

// Package applier drives deploy → mint → other in the transactional
// envelope required by spec.md §4.4: deploys each commit in their own
// outer transaction before anything can address the tick they create;
// mints and others then commit together with the cursor advance, mints
// preceding others, each mint and each batchall isolated in its own
// savepoint.
package applier

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/octavei/dota-indexer/internal/classifier"
	"github.com/octavei/dota-indexer/internal/dot20"
	"github.com/octavei/dota-indexer/internal/model"
	"github.com/octavei/dota-indexer/internal/store"
)

// Applier executes one block's classified remarks against a Store and a
// Dot20Engine.
type Applier struct {
	Store  store.Store
	Engine dot20.Engine
	Log    zerolog.Logger
}

// New returns an Applier wired to st and engine.
func New(st store.Store, engine dot20.Engine, log zerolog.Logger) *Applier {
	return &Applier{Store: st, Engine: engine, Log: log}
}

// Apply runs Phase D then Phase M+O for blockNum's classified remarks,
// then advances the cursor. A returned error means a storage/transport
// failure: the outer transaction was rolled back, the cursor was not
// advanced, and the Runner must retry the same block.
func (a *Applier) Apply(ctx context.Context, blockNum uint64, res classifier.Result) error {
	if err := a.applyDeploys(ctx, res.Deploys); err != nil {
		return fmt.Errorf("phase d: %w", err)
	}
	if err := a.applyMintsAndOthers(ctx, blockNum, res); err != nil {
		return fmt.Errorf("phase m+o: %w", err)
	}
	return nil
}

// applyDeploys is Phase D.
func (a *Applier) applyDeploys(ctx context.Context, deploys []model.Remark) error {
	for _, d := range deploys {
		sess, err := a.Store.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin deploy session: %w", err)
		}

		tick, err := a.Engine.Deploy(ctx, sess, d)
		if err != nil {
			var domainErr *model.DomainErr
			if errors.As(err, &domainErr) {
				a.Log.Warn().Err(err).Str("tick", d.Memo.Tick).Msg("applier: deploy rejected")
				_ = sess.Rollback()
				continue
			}
			_ = sess.Rollback()
			return fmt.Errorf("deploy %q: %w", d.Memo.Tick, err)
		}

		if err := sess.CreateTablesForNewTick(ctx, tick); err != nil {
			_ = sess.Rollback()
			return fmt.Errorf("create tables for %q: %w", tick, err)
		}

		if err := sess.Commit(); err != nil {
			return fmt.Errorf("commit deploy %q: %w", tick, err)
		}
	}
	return nil
}

// applyMintsAndOthers is Phase M+O: one outer transaction covering mints,
// then others, then the cursor advance.
func (a *Applier) applyMintsAndOthers(ctx context.Context, blockNum uint64, res classifier.Result) error {
	sess, err := a.Store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin session: %w", err)
	}

	if err := a.applyMints(ctx, sess, res); err != nil {
		_ = sess.Rollback()
		return err
	}
	if err := a.applyOthers(ctx, sess, res.Others); err != nil {
		_ = sess.Rollback()
		return err
	}

	cur := model.IndexerCursor{Protocol: "dot-20", IndexerHeight: blockNum, CrawlerHeight: blockNum}
	if err := sess.InsertOrUpdateIndexerStatus(ctx, cur); err != nil {
		_ = sess.Rollback()
		return fmt.Errorf("advance cursor: %w", err)
	}

	if err := sess.Commit(); err != nil {
		return fmt.Errorf("commit session: %w", err)
	}
	return nil
}

func (a *Applier) applyMints(ctx context.Context, sess store.Session, res classifier.Result) error {
	for _, tick := range res.MintTickOrder {
		mints := res.MintsByTick[tick]
		if len(mints) == 0 {
			continue
		}

		// Authoritative mode/issuance checks go through Dot20Engine at
		// apply time (spec.md §4.1); the Store's own GetDeployInfo is
		// for Store-internal bookkeeping, not this decision.
		info, err := a.Engine.GetDeployInfo(ctx, tick)
		if err != nil {
			return fmt.Errorf("deploy info for %q missing: %w", tick, err)
		}

		if info.Mode == model.ModeFair {
			perMint := info.PerBlockIssuance / uint64(len(mints))
			for i := range mints {
				mints[i].Memo.Lim = perMint
			}
		}

		for _, m := range mints {
			sp, err := sess.BeginNested(ctx)
			if err != nil {
				return fmt.Errorf("begin mint savepoint: %w", err)
			}

			if err := a.Engine.Mint(ctx, sp, m); err != nil {
				var domainErr *model.DomainErr
				if errors.As(err, &domainErr) {
					a.Log.Warn().Err(err).Str("tick", tick).Str("origin", m.Origin).Msg("applier: mint rejected")
					_ = sp.Rollback()
					continue
				}
				_ = sp.Rollback()
				return fmt.Errorf("mint %q for %s: %w", tick, m.Origin, err)
			}

			if err := sp.Release(); err != nil {
				return fmt.Errorf("release mint savepoint: %w", err)
			}
		}
	}
	return nil
}

// applyOthers is Phase M+O step 2: group others by extrinsic then by
// batchall_index, each batchall atomically in its own savepoint.
func (a *Applier) applyOthers(ctx context.Context, sess store.Session, others []model.Remark) error {
	for _, batchall := range groupByBatchall(others) {
		sp, err := sess.BeginNested(ctx)
		if err != nil {
			return fmt.Errorf("begin batchall savepoint: %w", err)
		}

		if storageErr := a.applyBatchall(ctx, sp, batchall); storageErr != nil {
			_ = sp.Rollback()
			return storageErr
		}
	}
	return nil
}

// applyBatchall executes one batchall's remarks in order inside sp. A
// returned error is always a storage/transport failure (the caller must
// abort the outer transaction); domain-level invariant violations within
// a batchall are handled here by rolling back sp and returning nil.
func (a *Applier) applyBatchall(ctx context.Context, sp store.Savepoint, batchall []model.Remark) error {
	for _, r := range batchall {
		var opErr error
		switch r.Memo.Op {
		case model.OpDeploy:
			opErr = model.NewDomainErr(fmt.Errorf("deploy op invalid in phase m+o"))
		case model.OpMint:
			mode, _ := tickModeFor(ctx, sp, a.Engine, r.Memo.Tick)
			if mode != model.ModeOwner {
				opErr = model.NewDomainErr(fmt.Errorf("non-owner mint invalid outside mint phase"))
			} else {
				opErr = a.Engine.Mint(ctx, sp, r)
			}
		case model.OpTransfer:
			opErr = a.Engine.Transfer(ctx, sp, r)
		case model.OpApprove:
			opErr = a.Engine.Approve(ctx, sp, r)
		case model.OpTransferFrom:
			opErr = a.Engine.TransferFrom(ctx, sp, r)
		default:
			opErr = model.NewDomainErr(fmt.Errorf("unrecognized op %q", r.Memo.Op))
		}

		if opErr == nil {
			continue
		}

		var domainErr *model.DomainErr
		if errors.As(opErr, &domainErr) {
			a.Log.Warn().Err(opErr).
				Uint64("extrinsic_index", r.ExtrinsicIndex).
				Uint64("batchall_index", r.BatchallIndex).
				Msg("applier: batchall rejected")
			if rbErr := sp.Rollback(); rbErr != nil {
				return rbErr
			}
			return nil
		}
		return opErr
	}

	return sp.Release()
}

// tickModeFor looks up a tick's mode directly via the engine, since
// Applier does not carry the process-lifetime TickModeCache (that cache
// belongs to basefilter/classifier's validation path, not apply-time
// authoritative checks — spec.md §4.1: "the cache is advisory for
// validation only").
func tickModeFor(ctx context.Context, _ store.Execer, engine dot20.Engine, tick string) (model.Mode, error) {
	info, err := engine.GetDeployInfo(ctx, tick)
	if err != nil {
		return "", err
	}
	return info.Mode, nil
}

func groupByBatchall(remarks []model.Remark) [][]model.Remark {
	var groups [][]model.Remark
	for _, r := range remarks {
		if n := len(groups); n == 0 ||
			groups[n-1][0].ExtrinsicIndex != r.ExtrinsicIndex ||
			groups[n-1][0].BatchallIndex != r.BatchallIndex {
			groups = append(groups, []model.Remark{r})
		} else {
			groups[n-1] = append(groups[n-1], r)
		}
	}
	return groups
}

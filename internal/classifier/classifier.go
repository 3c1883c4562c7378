// Package classifier implements spec.md §4.3: it partitions BaseFilter's
// output into deploys, per-tick mint lists and "others", enforcing
// per-block per-origin mint uniqueness for non-owner ticks.
package classifier

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/octavei/dota-indexer/internal/dot20"
	"github.com/octavei/dota-indexer/internal/model"
	"github.com/octavei/dota-indexer/internal/tickmode"
)

// Result is the triple Classifier produces for one block. MintTickOrder
// records the order in which ticks first appeared, so Applier can iterate
// MintsByTick deterministically despite Go's randomized map order.
type Result struct {
	MintsByTick   map[string][]model.Remark
	MintTickOrder []string
	Deploys       []model.Remark
	Others        []model.Remark
}

// Run classifies remarks (already filtered by basefilter) for one block.
// Uniqueness is tracked by a per-block set seen[tick] = {origin, ...}; this
// is rebuilt from scratch for every call, matching the spec's per-block
// scope — it deliberately does NOT reuse the Python source's append-then-
// store-nil bookkeeping (spec.md §9, Open Question 2): a duplicate origin
// is dropped outright, never let through.
func Run(ctx context.Context, log zerolog.Logger, engine dot20.Engine, cache *tickmode.Cache, remarks []model.Remark) Result {
	res := Result{MintsByTick: make(map[string][]model.Remark)}
	seen := make(map[string]map[string]bool) // tick -> origin -> true

	for _, ext := range groupByExtrinsic(remarks) {
		if len(ext) == 1 {
			r := ext[0]
			if r.Memo.Op == model.OpMint {
				mode, _ := cache.ModeOf(ctx, engine, r.Memo.Tick)
				if mode != model.ModeOwner {
					tick := r.Memo.Tick
					if seen[tick] == nil {
						seen[tick] = make(map[string]bool)
					}
					if !seen[tick][r.Origin] {
						seen[tick][r.Origin] = true
						if _, known := res.MintsByTick[tick]; !known {
							res.MintTickOrder = append(res.MintTickOrder, tick)
						}
						res.MintsByTick[tick] = append(res.MintsByTick[tick], r)
					} else {
						log.Warn().
							Err(model.NewDataError("extrinsic", fmt.Errorf("duplicate mint for origin %s on tick %q in this block", r.Origin, tick))).
							Uint64("extrinsic_index", r.ExtrinsicIndex).
							Msg("classifier: dropping duplicate mint")
					}
					continue
				}
			} else if r.Memo.Op == model.OpDeploy {
				res.Deploys = append(res.Deploys, r)
				continue
			}
		}
		res.Others = append(res.Others, ext...)
	}

	return res
}

func groupByExtrinsic(remarks []model.Remark) [][]model.Remark {
	var groups [][]model.Remark
	for _, r := range remarks {
		if n := len(groups); n == 0 || groups[n-1][0].ExtrinsicIndex != r.ExtrinsicIndex {
			groups = append(groups, []model.Remark{r})
		} else {
			groups[n-1] = append(groups[n-1], r)
		}
	}
	return groups
}

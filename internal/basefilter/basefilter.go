// Package basefilter implements the first pipeline stage: it rejects
// malformed or rule-violating remarks at batch (or, for the exclusivity
// rule, extrinsic) granularity, per spec.md §4.2. All failures are
// data-level; nothing here returns an error to its caller, it only logs
// and drops the offending unit.
package basefilter

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/octavei/dota-indexer/internal/dot20"
	"github.com/octavei/dota-indexer/internal/model"
	"github.com/octavei/dota-indexer/internal/tickmode"
)

type rejection int

const (
	rejectNone rejection = iota
	rejectBatch
	rejectExtrinsic
)

// Run filters the full ordered remark list for one block, returning a
// filtered ordered sublist. Whole batches are either kept intact (after
// possible trailing-memo folding) or dropped whole.
func Run(ctx context.Context, log zerolog.Logger, engine dot20.Engine, cache *tickmode.Cache, remarks []model.Remark) []model.Remark {
	var out []model.Remark

	for _, ext := range groupByExtrinsic(remarks) {
		batches := groupByBatchall(ext)
		total := len(ext)

		extRejected := false
		for _, batch := range batches {
			if extRejected {
				break
			}

			kept, reject, cause := filterBatch(ctx, engine, cache, total, ext, batch)
			switch reject {
			case rejectExtrinsic:
				extRejected = true
				log.Warn().
					Err(model.NewDataError("extrinsic", cause)).
					Uint64("extrinsic_index", batch[0].ExtrinsicIndex).
					Msg("basefilter: rejecting extrinsic")
			case rejectBatch:
				log.Warn().
					Err(model.NewDataError("batch", cause)).
					Uint64("extrinsic_index", batch[0].ExtrinsicIndex).
					Uint64("batchall_index", batch[0].BatchallIndex).
					Msg("basefilter: rejecting batch")
			default:
				out = append(out, kept...)
			}
		}
	}

	return out
}

// filterBatch applies spec.md §4.2 step 2 (a-e) to one batch. extrinsicTotal
// and extrinsicRemarks describe the whole extrinsic the batch belongs to,
// needed by the exclusivity rule (2d), which counts across the extrinsic
// rather than within the current batch alone.
func filterBatch(ctx context.Context, engine dot20.Engine, cache *tickmode.Cache, extrinsicTotal int, extrinsicRemarks, batch []model.Remark) ([]model.Remark, rejection, error) {
	kept := make([]model.Remark, len(batch))
	copy(kept, batch)

	// step 1: tick normalization.
	for i := range kept {
		kept[i].Memo.Tick = normalizeTick(kept[i].Memo.Tick)
	}

	for i := 0; i < len(kept); i++ {
		r := &kept[i]

		// step 2a: structural validation (invariant 1 folds in here:
		// a non-ASCII tick, left untouched by normalization, fails here).
		if !isASCII(r.Memo.Tick) {
			return nil, rejectBatch, fmt.Errorf("tick %q is not ASCII", r.Memo.Tick)
		}
		if err := engine.ValidatePayload(r.Memo.Op, *r); err != nil {
			return nil, rejectBatch, err
		}

		// step 2b: tickmode-cache probe, falling back to a deploy probe.
		mode, deployed := cache.ModeOf(ctx, engine, r.Memo.Tick)
		if !deployed && r.Memo.Op != model.OpDeploy {
			return nil, rejectBatch, fmt.Errorf("tick %q not yet deployed", r.Memo.Tick)
		}

		// step 2c: allowlist.
		if !model.SupportedTicks[r.Memo.Tick] || !model.SupportedOps[r.Memo.Op] {
			return nil, rejectBatch, fmt.Errorf("tick %q op %q not supported", r.Memo.Tick, r.Memo.Op)
		}

		// step 2d: exclusivity rule.
		if r.Memo.Op == model.OpDeploy || (r.Memo.Op == model.OpMint && mode != model.ModeOwner) {
			if extrinsicTotal > 2 {
				return nil, rejectExtrinsic, fmt.Errorf("op %q not exclusive in extrinsic of size %d", r.Memo.Op, extrinsicTotal)
			}
			if extrinsicTotal == 2 && extrinsicRemarks[1].Memo.Op != model.OpMemo {
				return nil, rejectExtrinsic, fmt.Errorf("op %q paired with non-memo remark", r.Memo.Op)
			}
		}

		// step 2e: memo-position rule.
		if r.Memo.Op == model.OpMemo {
			if len(kept) == 1 {
				return nil, rejectBatch, fmt.Errorf("lone memo remark in batch")
			}
			if i != len(kept)-1 {
				return nil, rejectBatch, fmt.Errorf("memo remark not last in batch")
			}
			text := r.Text
			kept[0].MemoRemark = &text
			kept = kept[:len(kept)-1]
			break
		}
	}

	return kept, rejectNone, nil
}

func normalizeTick(raw string) string {
	return strings.ToLower(strings.Trim(raw, `"'`))
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 127 {
			return false
		}
	}
	return true
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

func groupByBatchall(ext []model.Remark) [][]model.Remark {
	var groups [][]model.Remark
	for _, r := range ext {
		if n := len(groups); n == 0 || groups[n-1][0].BatchallIndex != r.BatchallIndex {
			groups = append(groups, []model.Remark{r})
		} else {
			groups[n-1] = append(groups[n-1], r)
		}
	}
	return groups
}

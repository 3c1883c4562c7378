package applier_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/octavei/dota-indexer/internal/applier"
	"github.com/octavei/dota-indexer/internal/classifier"
	"github.com/octavei/dota-indexer/internal/dot20/refengine"
	"github.com/octavei/dota-indexer/internal/logger"
	"github.com/octavei/dota-indexer/internal/model"
	"github.com/octavei/dota-indexer/internal/store/memstore"
)

func mint(origin, tick string) model.Remark {
	return model.Remark{Origin: origin, Memo: model.Memo{Op: model.OpMint, Tick: tick}}
}

// TestApplier_FairSplit_I6S1 mirrors spec.md scenario S1: two mints split
// a fair-mode tick's per-block issuance evenly.
func TestApplier_FairSplit_I6S1(t *testing.T) {
	engine := refengine.New()
	_, err := engine.Deploy(context.Background(), nil, model.Remark{
		Memo: model.Memo{Op: model.OpDeploy, Tick: "dota", Mode: model.ModeFair, IssuancePerBlk: 1000},
	})
	require.NoError(t, err)

	st := memstore.New()
	a := applier.New(st, engine, logger.New("test"))

	res := classifier.Result{
		MintsByTick:   map[string][]model.Remark{"dota": {mint("A", "dota"), mint("B", "dota")}},
		MintTickOrder: []string{"dota"},
	}

	require.NoError(t, a.Apply(context.Background(), 10, res))
	require.Equal(t, uint64(500), engine.BalanceOf("dota", "A"))
	require.Equal(t, uint64(500), engine.BalanceOf("dota", "B"))

	cur, err := st.GetIndexerStatus(context.Background(), "dot-20")
	require.NoError(t, err)
	require.Equal(t, uint64(10), cur.IndexerHeight)
}

// TestApplier_FairSplitRemainder_I6 checks the floor-division remainder is
// simply not distributed, per I6's exact formula.
func TestApplier_FairSplitRemainder_I6(t *testing.T) {
	engine := refengine.New()
	_, err := engine.Deploy(context.Background(), nil, model.Remark{
		Memo: model.Memo{Op: model.OpDeploy, Tick: "dota", Mode: model.ModeFair, IssuancePerBlk: 1001},
	})
	require.NoError(t, err)

	st := memstore.New()
	a := applier.New(st, engine, logger.New("test"))

	res := classifier.Result{
		MintsByTick:   map[string][]model.Remark{"dota": {mint("A", "dota"), mint("B", "dota")}},
		MintTickOrder: []string{"dota"},
	}

	require.NoError(t, a.Apply(context.Background(), 1, res))
	total := engine.BalanceOf("dota", "A") + engine.BalanceOf("dota", "B")
	require.Equal(t, uint64(1000), total) // 1001 - (1001 mod 2)
}

// TestApplier_DeployThenMint_S5 mirrors scenario S5: a deploy commits in
// its own outer transaction before the same block's mint for that tick.
func TestApplier_DeployThenMint_S5(t *testing.T) {
	engine := refengine.New()
	st := memstore.New()
	a := applier.New(st, engine, logger.New("test"))

	res := classifier.Result{
		Deploys: []model.Remark{{
			Memo: model.Memo{Op: model.OpDeploy, Tick: "newtk", Mode: model.ModeFair, IssuancePerBlk: 100},
		}},
		MintsByTick:   map[string][]model.Remark{"newtk": {mint("A", "newtk")}},
		MintTickOrder: []string{"newtk"},
	}

	require.NoError(t, a.Apply(context.Background(), 5, res))
	require.Equal(t, uint64(100), engine.BalanceOf("newtk", "A"))

	info, err := engine.GetDeployInfo(context.Background(), "newtk")
	require.NoError(t, err)
	require.Equal(t, model.ModeFair, info.Mode)
}

// TestApplier_EmptyBlockStillAdvancesCursor covers the boundary case from
// spec.md §8: an empty remark list at block N still advances the cursor.
func TestApplier_EmptyBlockStillAdvancesCursor(t *testing.T) {
	engine := refengine.New()
	st := memstore.New()
	a := applier.New(st, engine, logger.New("test"))

	require.NoError(t, a.Apply(context.Background(), 42, classifier.Result{MintsByTick: map[string][]model.Remark{}}))

	cur, err := st.GetIndexerStatus(context.Background(), "dot-20")
	require.NoError(t, err)
	require.Equal(t, uint64(42), cur.IndexerHeight)
}

// TestApplier_StorageFailureAbortsOuterTx_S6 mirrors scenario S6: a
// storage error mid-block rolls back the outer transaction and leaves the
// cursor untouched for the next retry.
func TestApplier_StorageFailureAbortsOuterTx_S6(t *testing.T) {
	engine := refengine.New()
	_, err := engine.Deploy(context.Background(), nil, model.Remark{
		Memo: model.Memo{Op: model.OpDeploy, Tick: "dota", Mode: model.ModeFair, IssuancePerBlk: 1000},
	})
	require.NoError(t, err)

	st := memstore.New()
	st.FailNestedAtCall = 2 // fail opening the savepoint for the second mint
	a := applier.New(st, engine, logger.New("test"))

	res := classifier.Result{
		MintsByTick:   map[string][]model.Remark{"dota": {mint("A", "dota"), mint("B", "dota")}},
		MintTickOrder: []string{"dota"},
	}

	err = a.Apply(context.Background(), 7, res)
	require.Error(t, err)

	_, err = st.GetIndexerStatus(context.Background(), "dot-20")
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestApplier_DomainErrorRollsBackOnlyThatBatchall(t *testing.T) {
	engine := refengine.New()
	_, err := engine.Deploy(context.Background(), nil, model.Remark{
		Memo: model.Memo{Op: model.OpDeploy, Tick: "dota", Mode: model.ModeNormal, IssuancePerBlk: 1000},
	})
	require.NoError(t, err)

	st := memstore.New()
	a := applier.New(st, engine, logger.New("test"))

	// A transfers more than it has: a domain error (insufficient
	// balance), not a storage error. The batchall is lost, the block
	// still commits.
	res := classifier.Result{
		MintsByTick: map[string][]model.Remark{},
		Others: []model.Remark{
			{ExtrinsicIndex: 1, BatchallIndex: 0, Origin: "A", Memo: model.Memo{Op: model.OpTransfer, Tick: "dota", To: "B", Amt: 5}},
		},
	}

	require.NoError(t, a.Apply(context.Background(), 1, res))

	cur, err := st.GetIndexerStatus(context.Background(), "dot-20")
	require.NoError(t, err)
	require.Equal(t, uint64(1), cur.IndexerHeight)
	require.Equal(t, uint64(0), engine.BalanceOf("dota", "B"))
}

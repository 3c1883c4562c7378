package basefilter_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/octavei/dota-indexer/internal/basefilter"
	"github.com/octavei/dota-indexer/internal/dot20/refengine"
	"github.com/octavei/dota-indexer/internal/logger"
	"github.com/octavei/dota-indexer/internal/model"
	"github.com/octavei/dota-indexer/internal/tickmode"
)

func mint(ext, batch uint64, origin, tick string) model.Remark {
	return model.Remark{
		ExtrinsicIndex: ext,
		BatchallIndex:  batch,
		Origin:         origin,
		Memo:           model.Memo{Op: model.OpMint, Tick: tick},
	}
}

func memoRemark(ext, batch uint64, text string) model.Remark {
	return model.Remark{
		ExtrinsicIndex: ext,
		BatchallIndex:  batch,
		Memo:           model.Memo{Op: model.OpMemo, Tick: "dota"},
		Text:           text,
	}
}

func transfer(ext, batch uint64, origin, tick, to string, amt uint64) model.Remark {
	return model.Remark{
		ExtrinsicIndex: ext,
		BatchallIndex:  batch,
		Origin:         origin,
		Memo:           model.Memo{Op: model.OpTransfer, Tick: tick, To: to, Amt: amt},
	}
}

func deployTick(e *refengine.Engine, tick string, mode model.Mode) {
	_, _ = e.Deploy(context.Background(), nil, model.Remark{
		Memo: model.Memo{Op: model.OpDeploy, Tick: tick, Mode: mode, IssuancePerBlk: 1000},
	})
}

func TestBaseFilter_TickNormalization_I1(t *testing.T) {
	engine := refengine.New()
	deployTick(engine, "dota", model.ModeNormal)
	cache := tickmode.New()
	log := logger.New("test")

	in := []model.Remark{mint(1, 0, "A", "DOTA")}
	out := basefilter.Run(context.Background(), log, engine, cache, in)

	require.Len(t, out, 1)
	require.Equal(t, "dota", out[0].Memo.Tick)
}

func TestBaseFilter_MemoFold_I2(t *testing.T) {
	engine := refengine.New()
	deployTick(engine, "dota", model.ModeNormal)
	cache := tickmode.New()
	log := logger.New("test")

	in := []model.Remark{
		transfer(1, 0, "A", "dota", "B", 10),
		memoRemark(1, 0, "hello"),
	}
	out := basefilter.Run(context.Background(), log, engine, cache, in)

	require.Len(t, out, 1)
	require.NotEqual(t, model.OpMemo, out[0].Memo.Op)
	require.NotNil(t, out[0].MemoRemark)
	require.Equal(t, "hello", *out[0].MemoRemark)
}

func TestBaseFilter_LoneMemoBatchRejected(t *testing.T) {
	engine := refengine.New()
	deployTick(engine, "dota", model.ModeNormal)
	cache := tickmode.New()
	log := logger.New("test")

	in := []model.Remark{memoRemark(1, 0, "hello")}
	out := basefilter.Run(context.Background(), log, engine, cache, in)

	require.Empty(t, out)
}

func TestBaseFilter_Exclusivity_I3(t *testing.T) {
	engine := refengine.New()
	deployTick(engine, "dota", model.ModeNormal)
	cache := tickmode.New()
	log := logger.New("test")

	// mint(non-owner) followed by transfer in the same extrinsic: whole
	// extrinsic rejected (boundary case from spec.md §8).
	in := []model.Remark{
		mint(1, 0, "A", "dota"),
		transfer(1, 0, "A", "dota", "B", 1),
	}
	out := basefilter.Run(context.Background(), log, engine, cache, in)
	require.Empty(t, out)
}

func TestBaseFilter_ExclusivityAllowsTrailingMemo(t *testing.T) {
	engine := refengine.New()
	deployTick(engine, "dota", model.ModeNormal)
	cache := tickmode.New()
	log := logger.New("test")

	in := []model.Remark{
		mint(1, 0, "A", "dota"),
		memoRemark(1, 0, "hi"),
	}
	out := basefilter.Run(context.Background(), log, engine, cache, in)

	require.Len(t, out, 1)
	require.Equal(t, model.OpMint, out[0].Memo.Op)
	require.NotNil(t, out[0].MemoRemark)
}

func TestBaseFilter_Deterministic_R1(t *testing.T) {
	engine := refengine.New()
	deployTick(engine, "dota", model.ModeNormal)
	log := logger.New("test")

	in := []model.Remark{
		mint(1, 0, "A", "dota"),
		transfer(2, 0, "B", "dota", "C", 5),
	}

	out1 := basefilter.Run(context.Background(), log, engine, tickmode.New(), in)
	out2 := basefilter.Run(context.Background(), log, engine, tickmode.New(), in)

	require.Equal(t, out1, out2)
}

func TestBaseFilter_UndeployedNonDeployOpRejected(t *testing.T) {
	engine := refengine.New()
	cache := tickmode.New()
	log := logger.New("test")

	in := []model.Remark{mint(1, 0, "A", "dota")}
	out := basefilter.Run(context.Background(), log, engine, cache, in)

	require.Empty(t, out)
}

func TestBaseFilter_UnsupportedTickRejected(t *testing.T) {
	engine := refengine.New()
	deployTick(engine, "zzzz", model.ModeNormal)
	cache := tickmode.New()
	log := logger.New("test")

	in := []model.Remark{mint(1, 0, "A", "zzzz")}
	out := basefilter.Run(context.Background(), log, engine, cache, in)

	require.Empty(t, out)
}

package runner_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/octavei/dota-indexer/internal/applier"
	"github.com/octavei/dota-indexer/internal/dot20/refengine"
	"github.com/octavei/dota-indexer/internal/logger"
	"github.com/octavei/dota-indexer/internal/model"
	"github.com/octavei/dota-indexer/internal/runner"
	"github.com/octavei/dota-indexer/internal/store/memstore"
	"github.com/octavei/dota-indexer/internal/tickmode"
)

type fakeSource struct {
	finalized uint64
	remarks   map[uint64][]model.Remark
	reconnects int
}

func (f *fakeSource) FinalizedHeight(context.Context) (uint64, error) { return f.finalized, nil }
func (f *fakeSource) RemarksAt(_ context.Context, blockNum uint64) ([]model.Remark, error) {
	return f.remarks[blockNum], nil
}
func (f *fakeSource) Reconnect(context.Context) error { f.reconnects++; return nil }

func TestRunner_RespectsLagGate(t *testing.T) {
	engine := refengine.New()
	st := memstore.New()
	a := applier.New(st, engine, logger.New("test"))
	src := &fakeSource{finalized: 10, remarks: map[uint64][]model.Remark{}}

	cfg := runner.Config{DelayBlock: 5, PollInterval: 10 * time.Millisecond, ReconnectBackoff: time.Millisecond}
	r := runner.New(cfg, logger.New("test"), src, engine, tickmode.New(), a, 6)

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()
	_ = r.Run(ctx)

	// next=6, delay=5: 6+5=11 > finalized=10, so the gate never clears
	// and no block should have advanced.
	_, err := st.GetIndexerStatus(context.Background(), "dot-20")
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestRunner_AdvancesWhenLagClears(t *testing.T) {
	engine := refengine.New()
	st := memstore.New()
	a := applier.New(st, engine, logger.New("test"))
	src := &fakeSource{finalized: 20, remarks: map[uint64][]model.Remark{}}

	cfg := runner.Config{DelayBlock: 2, PollInterval: 5 * time.Millisecond, ReconnectBackoff: time.Millisecond}
	r := runner.New(cfg, logger.New("test"), src, engine, tickmode.New(), a, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	_ = r.Run(ctx)

	cur, err := st.GetIndexerStatus(context.Background(), "dot-20")
	require.NoError(t, err)
	require.GreaterOrEqual(t, cur.IndexerHeight, uint64(1))
}

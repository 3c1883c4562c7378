// Package refengine is an in-memory reference implementation of
// dot20.Engine, used by pipeline tests and by cmd/dota-indexer when run
// against a local/dev chain without a production dot-20 execution engine.
// It implements dot-20 balance semantics the obvious way; the indexer
// core treats any engine, including this one, as an opaque collaborator.
package refengine

import (
	"context"
	"fmt"
	"sync"

	"github.com/octavei/dota-indexer/internal/model"
	"github.com/octavei/dota-indexer/internal/store"
)

// Engine is a single-process, lock-protected dot-20 ledger.
type Engine struct {
	mu         sync.Mutex
	deploys    map[string]model.DeployInfo
	balances   map[string]map[string]uint64
	allowances map[string]map[string]map[string]uint64
}

// New returns an empty ledger.
func New() *Engine {
	return &Engine{
		deploys:    make(map[string]model.DeployInfo),
		balances:   make(map[string]map[string]uint64),
		allowances: make(map[string]map[string]map[string]uint64),
	}
}

// ValidatePayload does the structural checks fmt_json_data performed in
// the original process: required fields present and well-formed for op.
func (e *Engine) ValidatePayload(op model.Op, r model.Remark) error {
	if r.Memo.Tick == "" {
		return fmt.Errorf("%w: missing tick", model.ErrValidation)
	}
	switch op {
	case model.OpDeploy:
		switch r.Memo.Mode {
		case model.ModeFair, model.ModeNormal, model.ModeOwner:
		default:
			return fmt.Errorf("%w: invalid mode %q", model.ErrValidation, r.Memo.Mode)
		}
		if r.Memo.IssuancePerBlk == 0 {
			return fmt.Errorf("%w: deploy missing issuance", model.ErrValidation)
		}
	case model.OpMint:
		// lim may be absent for fair-mode ticks; Applier overwrites it.
	case model.OpTransfer:
		if r.Memo.To == "" || r.Memo.Amt == 0 {
			return fmt.Errorf("%w: transfer missing to/amt", model.ErrValidation)
		}
	case model.OpTransferFrom:
		if r.Memo.From == "" || r.Memo.To == "" || r.Memo.Amt == 0 {
			return fmt.Errorf("%w: transferFrom missing from/to/amt", model.ErrValidation)
		}
	case model.OpApprove:
		if r.Memo.To == "" {
			return fmt.Errorf("%w: approve missing spender", model.ErrValidation)
		}
	case model.OpMemo:
		// no structured fields required; Text carries the content.
	default:
		return fmt.Errorf("%w: unrecognized op %q", model.ErrValidation, op)
	}
	return nil
}

// GetDeployInfo returns the deploy record for tick, if any.
func (e *Engine) GetDeployInfo(_ context.Context, tick string) (*model.DeployInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	info, ok := e.deploys[tick]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := info
	return &cp, nil
}

// Deploy registers tick with the mode/issuance carried by r.Memo.
func (e *Engine) Deploy(_ context.Context, _ store.Execer, r model.Remark) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tick := r.Memo.Tick
	if _, exists := e.deploys[tick]; exists {
		return "", model.NewDomainErr(fmt.Errorf("tick %q already deployed", tick))
	}
	e.deploys[tick] = model.DeployInfo{
		Tick:             tick,
		Mode:             r.Memo.Mode,
		PerBlockIssuance: r.Memo.IssuancePerBlk,
		DeployedAtBlock:  r.BlockNum,
		Owner:            r.Origin,
	}
	e.balances[tick] = make(map[string]uint64)
	e.allowances[tick] = make(map[string]map[string]uint64)
	return tick, nil
}

// Mint credits r.Origin with r.Memo.Lim units of r.Memo.Tick.
func (e *Engine) Mint(_ context.Context, _ store.Execer, r model.Remark) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	tick := r.Memo.Tick
	if _, ok := e.deploys[tick]; !ok {
		return model.NewDomainErr(fmt.Errorf("tick %q not deployed", tick))
	}
	e.balances[tick][r.Origin] += r.Memo.Lim
	return nil
}

// Transfer moves r.Memo.Amt units of tick from r.Origin to r.Memo.To.
func (e *Engine) Transfer(_ context.Context, _ store.Execer, r model.Remark) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	tick := r.Memo.Tick
	bal := e.balances[tick]
	if bal == nil || bal[r.Origin] < r.Memo.Amt {
		return model.NewDomainErr(fmt.Errorf("insufficient balance for %s on %s", r.Origin, tick))
	}
	bal[r.Origin] -= r.Memo.Amt
	bal[r.Memo.To] += r.Memo.Amt
	return nil
}

// Approve sets the allowance r.Origin grants r.Memo.To over tick.
func (e *Engine) Approve(_ context.Context, _ store.Execer, r model.Remark) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	tick := r.Memo.Tick
	if _, ok := e.deploys[tick]; !ok {
		return model.NewDomainErr(fmt.Errorf("tick %q not deployed", tick))
	}
	if e.allowances[tick][r.Origin] == nil {
		e.allowances[tick][r.Origin] = make(map[string]uint64)
	}
	e.allowances[tick][r.Origin][r.Memo.To] = r.Memo.Amt
	return nil
}

// TransferFrom moves r.Memo.Amt units of tick from r.Memo.From to
// r.Memo.To, spending r.Origin's allowance over From.
func (e *Engine) TransferFrom(_ context.Context, _ store.Execer, r model.Remark) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	tick := r.Memo.Tick
	allowed := e.allowances[tick][r.Memo.From][r.Origin]
	if allowed < r.Memo.Amt {
		return model.NewDomainErr(fmt.Errorf("allowance exhausted for %s over %s", r.Origin, r.Memo.From))
	}
	bal := e.balances[tick]
	if bal == nil || bal[r.Memo.From] < r.Memo.Amt {
		return model.NewDomainErr(fmt.Errorf("insufficient balance for %s on %s", r.Memo.From, tick))
	}
	bal[r.Memo.From] -= r.Memo.Amt
	bal[r.Memo.To] += r.Memo.Amt
	e.allowances[tick][r.Memo.From][r.Origin] = allowed - r.Memo.Amt
	return nil
}

// BalanceOf is a test/debug helper exposing ledger state directly.
func (e *Engine) BalanceOf(tick, addr string) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.balances[tick][addr]
}

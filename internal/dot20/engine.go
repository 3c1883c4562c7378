// Package dot20 defines the execution-engine abstraction that validates
// dot-20 op payloads and mutates balance/allowance state. The indexer core
// never implements dot-20 balance semantics itself — it only drives this
// interface at the right points of the transactional envelope (spec.md §4.4).
package dot20

import (
	"context"

	"github.com/octavei/dota-indexer/internal/model"
	"github.com/octavei/dota-indexer/internal/store"
)

// Engine validates and applies dot-20 operations. Every mutating method
// takes the currently open store.Execer (a Session or a Savepoint) so its
// writes land in the caller's transaction scope.
type Engine interface {
	// ValidatePayload structurally validates r.Memo for the given op
	// (spec.md §6 fmt_json_data). Returns model.ErrValidation (or a
	// wrapping error) on a malformed payload.
	ValidatePayload(op model.Op, r model.Remark) error

	// GetDeployInfo reports the authoritative mode/issuance for tick, or
	// model.ErrNotFound if it has not been deployed.
	GetDeployInfo(ctx context.Context, tick string) (*model.DeployInfo, error)

	// Deploy creates a new tick and returns its canonical name. Exec runs
	// within Phase D's per-deploy outer transaction.
	Deploy(ctx context.Context, exec store.Execer, r model.Remark) (tick string, err error)

	// Mint, Transfer, Approve and TransferFrom mutate balance/allowance
	// state for r within whatever scope exec represents. They return a
	// *model.DomainErr for business-rule failures (insufficient balance,
	// allowance exhausted, tick undeployed); any other error is treated
	// as a storage/transport failure by the caller.
	Mint(ctx context.Context, exec store.Execer, r model.Remark) error
	Transfer(ctx context.Context, exec store.Execer, r model.Remark) error
	Approve(ctx context.Context, exec store.Execer, r model.Remark) error
	TransferFrom(ctx context.Context, exec store.Execer, r model.Remark) error
}

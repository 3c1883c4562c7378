// Package store defines the relational-store abstraction the pipeline
// depends on: a session with an outer transaction, nested savepoints,
// per-tick schema materialization and indexer-cursor persistence.
package store

import (
	"context"
	"database/sql"

	"github.com/octavei/dota-indexer/internal/model"
)

// Execer is the subset of *sql.Tx that both Session and Savepoint expose,
// so a Dot20Engine implementation can issue statements against whichever
// transaction scope is currently open without caring whether that scope
// is the outer transaction or a nested savepoint.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the entry point: it opens sessions and answers read-only
// queries that do not require an open transaction.
type Store interface {
	// Begin opens a new outer transaction.
	Begin(ctx context.Context) (Session, error)

	// GetDeployInfo returns the authoritative deploy metadata for tick,
	// or model.ErrNotFound if tick has never been deployed.
	GetDeployInfo(ctx context.Context, tick string) (*model.DeployInfo, error)

	// GetIndexerStatus returns the persisted cursor for protocol, or
	// model.ErrNotFound if none exists yet.
	GetIndexerStatus(ctx context.Context, protocol string) (*model.IndexerCursor, error)

	Close() error
}

// Session is an open outer transaction.
type Session interface {
	Execer

	// BeginNested opens a savepoint nested inside this session.
	BeginNested(ctx context.Context) (Savepoint, error)

	// CreateTablesForNewTick materializes the balance/allowance tables
	// for a newly deployed tick. Called within Phase D's per-deploy
	// outer transaction.
	CreateTablesForNewTick(ctx context.Context, tick string) error

	// GetDeployInfo reads deploy metadata within this session, seeing
	// any deploy this same session already committed-to-savepoint.
	GetDeployInfo(ctx context.Context, tick string) (*model.DeployInfo, error)

	// InsertOrUpdateIndexerStatus persists the cursor as part of this
	// session's outer transaction (spec.md I5: cursor atomicity).
	InsertOrUpdateIndexerStatus(ctx context.Context, cur model.IndexerCursor) error

	Commit() error
	Rollback() error
}

// Savepoint is a nested transaction boundary that can be rolled back
// without aborting the enclosing Session.
type Savepoint interface {
	Execer

	// Release commits the savepoint into its enclosing session.
	Release() error
	// Rollback undoes only this savepoint's statements.
	Rollback() error
}

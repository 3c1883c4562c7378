// Package mysql is the concrete store.Store backing dota-indexer:
// database/sql against MySQL via github.com/go-sql-driver/mysql. Outer
// transactions are *sql.Tx; nested transactions are emulated with raw
// SAVEPOINT / RELEASE SAVEPOINT / ROLLBACK TO SAVEPOINT statements, since
// database/sql has no native nested-transaction API. The BeginTx +
// deferred-Rollback + explicit-Commit idiom follows the teacher's
// store/postgres/postgres.go.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/octavei/dota-indexer/internal/model"
	"github.com/octavei/dota-indexer/internal/store"
)

// Store is the MySQL-backed store.Store.
type Store struct {
	db *sql.DB
}

// Open connects to dsn and verifies the connection with a ping.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mysql: ping: %w", err)
	}
	return &Store{db: db}, nil
}

// NewWithDB wraps an already-open *sql.DB, mirroring the teacher's
// NewWithDB used for tests against a pre-provisioned database.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Begin(ctx context.Context) (store.Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("mysql: begin: %w", err)
	}
	return &session{Tx: tx}, nil
}

func (s *Store) GetDeployInfo(ctx context.Context, tick string) (*model.DeployInfo, error) {
	return getDeployInfo(ctx, s.db, tick)
}

func (s *Store) GetIndexerStatus(ctx context.Context, protocol string) (*model.IndexerCursor, error) {
	return getIndexerStatus(ctx, s.db, protocol)
}

// queryer is satisfied by both *sql.DB and *sql.Tx, so the read helpers
// below work from either Store or session.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getDeployInfo(ctx context.Context, q queryer, tick string) (*model.DeployInfo, error) {
	row := q.QueryRowContext(ctx, `
		SELECT tick, mode, per_block_issuance, deployed_at_block, owner
		FROM dot20_deploys WHERE tick = ?`, tick)

	var info model.DeployInfo
	if err := row.Scan(&info.Tick, &info.Mode, &info.PerBlockIssuance, &info.DeployedAtBlock, &info.Owner); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("mysql: get deploy info %q: %w", tick, err)
	}
	return &info, nil
}

func getIndexerStatus(ctx context.Context, q queryer, protocol string) (*model.IndexerCursor, error) {
	row := q.QueryRowContext(ctx, `
		SELECT protocol, indexer_height, crawler_height
		FROM indexer_status WHERE protocol = ?`, protocol)

	var cur model.IndexerCursor
	if err := row.Scan(&cur.Protocol, &cur.IndexerHeight, &cur.CrawlerHeight); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("mysql: get indexer status %q: %w", protocol, err)
	}
	return &cur, nil
}

// session wraps one outer transaction. Embedding *sql.Tx supplies
// ExecContext/QueryContext/QueryRowContext/Commit/Rollback for free.
type session struct {
	*sql.Tx
}

func (s *session) CreateTablesForNewTick(ctx context.Context, tick string) error {
	if _, err := s.Tx.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS tick_%s_balances (
			origin VARCHAR(128) PRIMARY KEY,
			balance BIGINT UNSIGNED NOT NULL DEFAULT 0
		)`, tick)); err != nil {
		return fmt.Errorf("mysql: create balances table for %q: %w", tick, err)
	}

	if _, err := s.Tx.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS tick_%s_allowances (
			owner VARCHAR(128) NOT NULL,
			spender VARCHAR(128) NOT NULL,
			amount BIGINT UNSIGNED NOT NULL DEFAULT 0,
			PRIMARY KEY (owner, spender)
		)`, tick)); err != nil {
		return fmt.Errorf("mysql: create allowances table for %q: %w", tick, err)
	}
	return nil
}

func (s *session) GetDeployInfo(ctx context.Context, tick string) (*model.DeployInfo, error) {
	return getDeployInfo(ctx, s.Tx, tick)
}

func (s *session) InsertOrUpdateIndexerStatus(ctx context.Context, cur model.IndexerCursor) error {
	_, err := s.Tx.ExecContext(ctx, `
		INSERT INTO indexer_status (protocol, indexer_height, crawler_height)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE indexer_height = VALUES(indexer_height), crawler_height = VALUES(crawler_height)`,
		cur.Protocol, cur.IndexerHeight, cur.CrawlerHeight)
	if err != nil {
		return fmt.Errorf("mysql: upsert indexer status: %w", err)
	}
	return nil
}

func (s *session) BeginNested(ctx context.Context) (store.Savepoint, error) {
	name := "sp_" + uuidSuffix()
	if _, err := s.Tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return nil, fmt.Errorf("mysql: savepoint %s: %w", name, err)
	}
	return &savepoint{Tx: s.Tx, name: name}, nil
}

// savepoint is a nested transaction boundary emulated with raw SQL.
// Embedding *sql.Tx supplies ExecContext/QueryContext/QueryRowContext;
// Rollback is shadowed below to roll back to the savepoint rather than
// aborting the whole outer transaction.
type savepoint struct {
	*sql.Tx
	name string
}

func (sp *savepoint) Release() error {
	if _, err := sp.Tx.ExecContext(context.Background(), "RELEASE SAVEPOINT "+sp.name); err != nil {
		return fmt.Errorf("mysql: release savepoint %s: %w", sp.name, err)
	}
	return nil
}

func (sp *savepoint) Rollback() error {
	if _, err := sp.Tx.ExecContext(context.Background(), "ROLLBACK TO SAVEPOINT "+sp.name); err != nil {
		return fmt.Errorf("mysql: rollback to savepoint %s: %w", sp.name, err)
	}
	return nil
}

func uuidSuffix() string {
	id := uuid.New().String()
	return id[:8]
}

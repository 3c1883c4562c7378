// Package memstore is an in-memory store.Store used by pipeline unit
// tests so the pipeline can run
// without a live MySQL instance. It tracks only what Store itself owns —
// per-tick table materialization markers and the indexer cursor — since
// dot-20 balance/allowance state is owned by the Dot20Engine, not Store.
package memstore

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/octavei/dota-indexer/internal/model"
	"github.com/octavei/dota-indexer/internal/store"
)

// Store is a lock-protected in-memory store.Store.
type Store struct {
	mu         sync.Mutex
	tables     map[string]bool
	deployInfo map[string]model.DeployInfo
	cursor     map[string]model.IndexerCursor

	// FailNestedAtCall, if nonzero, makes the Nth call to BeginNested
	// across all sessions (1-indexed) return an injected error. It is not
	// cleared; only that one call fails because the call count keeps
	// rising. Lets tests simulate a mid-block storage failure (spec.md S6).
	FailNestedAtCall int
	nestedCalls      int
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		tables:     make(map[string]bool),
		deployInfo: make(map[string]model.DeployInfo),
		cursor:     make(map[string]model.IndexerCursor),
	}
}

func (s *Store) Close() error { return nil }

// SeedDeployInfo lets a test install a tick's metadata as if an earlier
// Phase D had already committed it.
func (s *Store) SeedDeployInfo(info model.DeployInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deployInfo[info.Tick] = info
}

func (s *Store) GetDeployInfo(_ context.Context, tick string) (*model.DeployInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.deployInfo[tick]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := info
	return &cp, nil
}

func (s *Store) GetIndexerStatus(_ context.Context, protocol string) (*model.IndexerCursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.cursor[protocol]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := cur
	return &cp, nil
}

func (s *Store) Begin(_ context.Context) (store.Session, error) {
	return &session{parent: s}, nil
}

type session struct {
	noopExecer
	parent        *Store
	newTables     []string
	deployWrites  map[string]model.DeployInfo
	cursorWrite   *model.IndexerCursor
	done          bool
}

func (s *session) CreateTablesForNewTick(_ context.Context, tick string) error {
	s.newTables = append(s.newTables, tick)
	return nil
}

func (s *session) GetDeployInfo(ctx context.Context, tick string) (*model.DeployInfo, error) {
	if s.deployWrites != nil {
		if info, ok := s.deployWrites[tick]; ok {
			cp := info
			return &cp, nil
		}
	}
	return s.parent.GetDeployInfo(ctx, tick)
}

func (s *session) InsertOrUpdateIndexerStatus(_ context.Context, cur model.IndexerCursor) error {
	c := cur
	s.cursorWrite = &c
	return nil
}

func (s *session) BeginNested(_ context.Context) (store.Savepoint, error) {
	s.parent.mu.Lock()
	s.parent.nestedCalls++
	shouldFail := s.parent.FailNestedAtCall != 0 && s.parent.nestedCalls == s.parent.FailNestedAtCall
	s.parent.mu.Unlock()

	if shouldFail {
		return nil, fmt.Errorf("memstore: injected storage failure at nested call %d", s.parent.nestedCalls)
	}
	return &savepoint{noopExecer{}, s}, nil
}

func (s *session) Commit() error {
	if s.done {
		return fmt.Errorf("memstore: session already closed")
	}
	s.done = true

	s.parent.mu.Lock()
	defer s.parent.mu.Unlock()
	for _, t := range s.newTables {
		s.parent.tables[t] = true
	}
	for tick, info := range s.deployWrites {
		s.parent.deployInfo[tick] = info
	}
	if s.cursorWrite != nil {
		s.parent.cursor[s.cursorWrite.Protocol] = *s.cursorWrite
	}
	return nil
}

func (s *session) Rollback() error {
	s.done = true
	return nil
}

type savepoint struct {
	noopExecer
	sess *session
}

func (sp *savepoint) Release() error  { return nil }
func (sp *savepoint) Rollback() error { return nil }

// noopExecer satisfies store.Execer for the in-memory store: refengine
// (and any engine that keeps its own ledger rather than issuing SQL)
// never calls these, they exist only so session/savepoint compile against
// store.Session/store.Savepoint.
type noopExecer struct{}

func (noopExecer) ExecContext(context.Context, string, ...any) (sql.Result, error) { return nil, nil }
func (noopExecer) QueryContext(context.Context, string, ...any) (*sql.Rows, error)  { return nil, nil }
func (noopExecer) QueryRowContext(context.Context, string, ...any) *sql.Row         { return nil }

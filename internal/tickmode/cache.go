// Package tickmode holds the process-lifetime tick→mode cache described
// in spec.md §4.1: a one-writer, monotonically-growing map, safe without
// locks under the single-threaded pipeline (spec.md §5).
package tickmode

import (
	"context"

	"github.com/octavei/dota-indexer/internal/dot20"
	"github.com/octavei/dota-indexer/internal/model"
)

// Cache maps tick → mode for the lifetime of the process. Entries are
// only ever inserted by ModeOf on first sight of a deployed tick, never
// evicted, and once set never change.
type Cache struct {
	mode map[string]model.Mode
}

// New returns an empty Cache.
func New() *Cache {
	return &Cache{mode: make(map[string]model.Mode)}
}

// ModeOf returns the cached mode for tick, probing engine on a cache miss
// and recording the result if the tick turns out to be deployed. ok is
// false if tick is not (yet) deployed — the caller decides what that
// means (BaseFilter only accepts it for a deploy op).
func (c *Cache) ModeOf(ctx context.Context, engine dot20.Engine, tick string) (mode model.Mode, ok bool) {
	if m, found := c.mode[tick]; found {
		return m, true
	}

	info, err := engine.GetDeployInfo(ctx, tick)
	if err != nil || info == nil {
		return "", false
	}

	c.mode[tick] = info.Mode
	return info.Mode, true
}

package engine

import (
	"sync"

	"github.com/google/uuid"
)

// RunIDGenerator names print and simulation runs. The id is what the
// stamp function writes into documents and what keys the run journal.
type RunIDGenerator interface {
	Generate() string
}

// UUIDv7Generator is the default generator. UUIDv7 ids sort by the time
// the run started.
type UUIDv7Generator struct{}

// Generate returns a hyphenated UUIDv7.
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator hands out a fixed list of run ids, for tests that assert
// on stamped documents or journal rows.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator returns ids in the given order.
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next id. It panics once the list is used up.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("engine: no run ids left in FixedGenerator")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}

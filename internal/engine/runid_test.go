package engine

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDv7Generator_RunIDsAreV7(t *testing.T) {
	id := UUIDv7Generator{}.Generate()

	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
	assert.Regexp(t, `^[0-9a-f]{8}-[0-9a-f]{4}-7[0-9a-f]{3}-[0-9a-f]{4}-[0-9a-f]{12}$`, id)
}

func TestUUIDv7Generator_LaterRunsSortLater(t *testing.T) {
	gen := UUIDv7Generator{}
	first := gen.Generate()
	time.Sleep(2 * time.Millisecond)
	second := gen.Generate()

	ids := []string{second, first}
	sort.Strings(ids)
	assert.Equal(t, []string{first, second}, ids)
}

func TestUUIDv7Generator_ConcurrentRunsAreDistinct(t *testing.T) {
	gen := UUIDv7Generator{}
	const runs = 200

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		seen = make(map[string]bool, runs)
	)
	for range runs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := gen.Generate()
			mu.Lock()
			seen[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, runs)
}

func TestFixedGenerator(t *testing.T) {
	gen := NewFixedGenerator("run-1", "sim-1")

	assert.Equal(t, "run-1", gen.Generate())
	assert.Equal(t, "sim-1", gen.Generate())
	assert.Panics(t, func() { gen.Generate() }, "a third run was not expected")

	assert.Panics(t, func() { NewFixedGenerator().Generate() })
}

package printfn

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgress_MaxIsSumOfRegistered(t *testing.T) {
	p := NewProgress()
	p.SetMax("mailmerge", 10)
	p.SetMax("copies", 5)
	assert.Equal(t, 15, p.Max())

	p.SetValue("mailmerge", 4)
	p.SetValue("copies", 1)
	assert.Equal(t, 5, p.Value())
	assert.InDelta(t, 33.33, p.Snapshot().Percent(), 0.01)

	// Unregistering removes both the maximum and the value.
	p.SetMax("copies", 0)
	assert.Equal(t, 10, p.Max())
	assert.Equal(t, 4, p.Value())
}

func TestProgress_ValuesClampedAndUnknownIgnored(t *testing.T) {
	p := NewProgress()
	p.SetValue("ghost", 3)
	assert.Equal(t, 0, p.Value())
	assert.Equal(t, float64(0), p.Snapshot().Percent())

	p.SetMax("a", 2)
	p.SetValue("a", 9)
	assert.Equal(t, 2, p.Value())
	assert.Equal(t, float64(100), p.Snapshot().Percent())

	p.SetMax("a", 1)
	assert.Equal(t, 1, p.Value())
}

func TestProgress_MessageAndListeners(t *testing.T) {
	p := NewProgress()
	var mu sync.Mutex
	var seen []ProgressSnapshot
	p.OnChange(func(s ProgressSnapshot) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	p.SetMax("a", 4)
	p.SetMessage("printing")

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, seen, 2)
	assert.Equal(t, ProgressSnapshot{Value: 0, Max: 4, Message: "printing"}, seen[1])
}

func TestProgress_CancelBeforeAttachIsNoop(t *testing.T) {
	assert.NotPanics(t, func() { NewProgress().Cancel() })
}

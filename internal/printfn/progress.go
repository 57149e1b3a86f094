package printfn

import (
	"slices"
	"sync"
)

// ProgressSnapshot is a point-in-time view of aggregated progress.
type ProgressSnapshot struct {
	Value   int
	Max     int
	Message string
}

// Percent returns Value/Max as a percentage in [0, 100]. It is 0 while
// nothing is registered.
func (s ProgressSnapshot) Percent() float64 {
	if s.Max <= 0 {
		return 0
	}
	p := float64(s.Value) * 100 / float64(s.Max)
	if p > 100 {
		return 100
	}
	return p
}

// Progress combines progress reports from every print function that
// registered an expected unit count into one total.
//
// Each reporter is identified by a key (the stage identity). SetMax with 0
// unregisters the key and removes its contribution. Cancel flips the run's
// shared cancellation flag, the same one Chain.Cancel sets.
//
// Thread-safety: all methods are safe for concurrent use. Listeners are
// invoked outside the lock, in registration order.
type Progress struct {
	mu        sync.Mutex
	maxima    map[string]int
	values    map[string]int
	message   string
	cancel    func()
	listeners []func(ProgressSnapshot)
}

// NewProgress creates an aggregator with nothing registered.
func NewProgress() *Progress {
	return &Progress{
		maxima: make(map[string]int),
		values: make(map[string]int),
	}
}

// SetMax registers (n > 0) or unregisters (n <= 0) a reporter's expected
// unit count.
func (p *Progress) SetMax(key string, n int) {
	p.mu.Lock()
	if n <= 0 {
		delete(p.maxima, key)
		delete(p.values, key)
	} else {
		p.maxima[key] = n
		if p.values[key] > n {
			p.values[key] = n
		}
	}
	p.mu.Unlock()
	p.notify()
}

// SetValue records a reporter's completed unit count. Values for
// unregistered keys are ignored; values above the registered maximum are
// clamped.
func (p *Progress) SetValue(key string, n int) {
	p.mu.Lock()
	max, ok := p.maxima[key]
	if !ok {
		p.mu.Unlock()
		return
	}
	if n < 0 {
		n = 0
	}
	if n > max {
		n = max
	}
	p.values[key] = n
	p.mu.Unlock()
	p.notify()
}

// SetMessage overrides the textual status shown with the percentage.
func (p *Progress) SetMessage(msg string) {
	p.mu.Lock()
	p.message = msg
	p.mu.Unlock()
	p.notify()
}

// Max returns the sum of all registered maxima.
func (p *Progress) Max() int {
	return p.Snapshot().Max
}

// Value returns the sum of all registered values.
func (p *Progress) Value() int {
	return p.Snapshot().Value
}

// Snapshot returns the current totals.
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *Progress) snapshotLocked() ProgressSnapshot {
	s := ProgressSnapshot{Message: p.message}
	for k, m := range p.maxima {
		s.Max += m
		s.Value += p.values[k]
	}
	return s
}

// OnChange registers fn to be called after every change.
func (p *Progress) OnChange(fn func(ProgressSnapshot)) {
	p.mu.Lock()
	p.listeners = append(p.listeners, fn)
	p.mu.Unlock()
}

// Cancel requests cancellation of the run this aggregator is attached to.
// It is a no-op until the aggregator is attached to a chain.
func (p *Progress) Cancel() {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (p *Progress) bindCancel(cancel func()) {
	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()
}

func (p *Progress) notify() {
	p.mu.Lock()
	if len(p.listeners) == 0 {
		p.mu.Unlock()
		return
	}
	s := p.snapshotLocked()
	listeners := slices.Clone(p.listeners)
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(s)
	}
}

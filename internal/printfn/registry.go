package printfn

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/addrummond/heap"

	"github.com/roach88/printmerge/internal/engine"
)

// ErrUnknownFunction is wrapped by every lookup of an unregistered name.
var ErrUnknownFunction = errors.New("unknown print function")

// ErrCancelled is returned by Stage.Advance once the run is cancelled.
var ErrCancelled = engine.ErrCancelled

// Func is the body of a print function. It receives a Stage bound to its
// position in the chain and calls stage.Advance to run the remainder of
// the chain, once per output it wants produced.
type Func func(ctx context.Context, stage *Stage) error

// Descriptor identifies a print function and its chain position.
type Descriptor struct {
	Name  string `json:"name"`
	Order int    `json:"order"`
}

// Cmp orders descriptors by Order, then by Name.
func (d *Descriptor) Cmp(other *Descriptor) int {
	if c := cmp.Compare(d.Order, other.Order); c != 0 {
		return c
	}
	return cmp.Compare(d.Name, other.Name)
}

type registration struct {
	desc Descriptor
	fn   Func
}

// Registry maps print function names to their bodies and ordering keys.
// Thread-safety: all methods are safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]registration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]registration)}
}

// Register adds a print function. Registering a name twice is an error.
func (r *Registry) Register(name string, order int, fn Func) error {
	if name == "" {
		return errors.New("print function name is required")
	}
	if fn == nil {
		return fmt.Errorf("print function %q: nil body", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.funcs[name]; dup {
		return fmt.Errorf("print function %q already registered", name)
	}
	r.funcs[name] = registration{desc: Descriptor{Name: name, Order: order}, fn: fn}
	return nil
}

// MustRegister is Register that panics on error. For use at init time.
func (r *Registry) MustRegister(name string, order int, fn Func) {
	if err := r.Register(name, order, fn); err != nil {
		panic(err)
	}
}

// Lookup returns the body and descriptor registered under name. Unknown
// names return an error satisfying both errors.Is(err, ErrUnknownFunction)
// and engine.IsUnknownFunction(err).
func (r *Registry) Lookup(name string) (Func, Descriptor, error) {
	r.mu.RLock()
	reg, ok := r.funcs[name]
	r.mu.RUnlock()
	if !ok {
		rerr := engine.NewUnknownFunctionError(name)
		rerr.Err = ErrUnknownFunction
		return nil, Descriptor{}, rerr
	}
	return reg.fn, reg.desc, nil
}

// Descriptors returns every registered function in chain order.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	descs := make([]Descriptor, 0, len(r.funcs))
	for _, reg := range r.funcs {
		descs = append(descs, reg.desc)
	}
	r.mu.RUnlock()
	return sortDescriptors(descs)
}

// sortDescriptors returns descs in chain order using a min-heap keyed by
// Descriptor.Cmp.
func sortDescriptors(descs []Descriptor) []Descriptor {
	var h heap.Heap[Descriptor, heap.Min]
	for _, d := range descs {
		heap.PushOrderable(&h, d)
	}
	out := make([]Descriptor, 0, len(descs))
	for {
		d, ok := heap.PopOrderable(&h)
		if !ok {
			return out
		}
		out = append(out, d)
	}
}

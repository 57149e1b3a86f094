package printfn

import (
	"fmt"
	"slices"
	"strconv"
	"sync"
)

// Well-known property keys.
const (
	// PropCopies is the number of copies the copies function produces.
	PropCopies = "copies"

	// PropSelection holds the dataset selection the mailmerge function
	// iterates.
	PropSelection = "selection"

	// PropStampField names the document field the stamp function writes the
	// run id into.
	PropStampField = "stamp.field"
)

// PropertyBag is the shared key/value state of one print run.
//
// Stages running on different goroutines use it to hand values down the
// chain and to store feature flags such as "skip the parameters prompt".
// Thread-safety: all methods are safe for concurrent use.
type PropertyBag struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewPropertyBag creates an empty bag.
func NewPropertyBag() *PropertyBag {
	return &PropertyBag{values: make(map[string]any)}
}

// Get returns the value stored under key.
func (b *PropertyBag) Get(key string) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.values[key]
	return v, ok
}

// Set stores value under key, replacing any previous value.
func (b *PropertyBag) Set(key string, value any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values[key] = value
}

// Delete removes key.
func (b *PropertyBag) Delete(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.values, key)
}

// Has reports whether key is set.
func (b *PropertyBag) Has(key string) bool {
	_, ok := b.Get(key)
	return ok
}

// Keys returns the stored keys in sorted order.
func (b *PropertyBag) Keys() []string {
	b.mu.RLock()
	keys := make([]string, 0, len(b.values))
	for k := range b.values {
		keys = append(keys, k)
	}
	b.mu.RUnlock()
	slices.Sort(keys)
	return keys
}

// String returns the value under key formatted as a string, or def when
// the key is missing.
func (b *PropertyBag) String(key, def string) string {
	v, ok := b.Get(key)
	if !ok || v == nil {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Int returns the value under key as an int, or def when the key is missing
// or does not hold a number.
func (b *PropertyBag) Int(key string, def int) int {
	v, ok := b.Get(key)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return i
		}
	}
	return def
}

// Bool returns the value under key as a bool, or def when the key is
// missing or does not hold a bool.
func (b *PropertyBag) Bool(key string, def bool) bool {
	v, ok := b.Get(key)
	if !ok {
		return def
	}
	switch x := v.(type) {
	case bool:
		return x
	case string:
		if p, err := strconv.ParseBool(x); err == nil {
			return p
		}
	}
	return def
}

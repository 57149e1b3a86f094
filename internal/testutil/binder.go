package testutil

import (
	"context"
	"errors"
	"slices"
	"sync"
)

// ErrBindRefused is returned by RecordingBinder for fields listed in Fail.
var ErrBindRefused = errors.New("binding refused")

// RecordingBinder is a document.Binder that records every call as
// "clear:Name" or "set:Name=value". Fields listed in Fail are refused.
type RecordingBinder struct {
	Fail map[string]bool

	mu    sync.Mutex
	calls []string
}

// SetField implements document.Binder.
func (b *RecordingBinder) SetField(_ context.Context, name, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Fail[name] {
		return ErrBindRefused
	}
	b.calls = append(b.calls, "set:"+name+"="+value)
	return nil
}

// ClearField implements document.Binder.
func (b *RecordingBinder) ClearField(_ context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Fail[name] {
		return ErrBindRefused
	}
	b.calls = append(b.calls, "clear:"+name)
	return nil
}

// Calls returns the recorded calls in order.
func (b *RecordingBinder) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.calls)
}

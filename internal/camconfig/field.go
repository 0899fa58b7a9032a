// Package camconfig holds the observable camera configuration store. Every
// setting lives in a typed Field that notifies observers on change and keeps
// one level of undo so a backend can reject a value it cannot apply.
package camconfig

import (
	"context"
	"sync"
)

// Field is a typed observable configuration value.
//
// Setting a field to its current value is a no-op and fires no
// notifications. Any other Set stores the previous value for Revert and
// notifies every live observer with the new value.
type Field[T comparable] struct {
	mu        sync.Mutex
	def       T
	value     T
	prev      T
	isSet     bool
	observers []fieldObserver[T]
}

type fieldObserver[T comparable] struct {
	ctx context.Context
	fn  func(T)
}

// NewField creates a field with the given default. Get returns the default
// until the first Set.
func NewField[T comparable](def T) *Field[T] {
	return &Field[T]{def: def}
}

// Get returns the current value, or the default when the field was never set.
func (f *Field[T]) Get() T {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.isSet {
		return f.def
	}
	return f.value
}

// Set stores v. Equal values are ignored; otherwise the prior value is kept
// for Revert and observers are notified outside the field lock.
func (f *Field[T]) Set(v T) {
	f.mu.Lock()
	current := f.value
	if !f.isSet {
		current = f.def
	}
	if v == current {
		f.mu.Unlock()
		return
	}
	f.prev = current
	f.value = v
	f.isSet = true
	live := f.liveObserversLocked()
	f.mu.Unlock()

	for _, o := range live {
		o.fn(v)
	}
}

// Revert restores the value held before the most recent Set. It fires no
// notifications: reverts are backend feedback ("value rejected") and must not
// re-trigger the backend that issued them. Reverting a never-set field is a
// no-op.
func (f *Field[T]) Revert() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.isSet {
		return
	}
	f.value = f.prev
}

// Observe registers fn, invokes it immediately with the current-or-default
// value, and stops invoking it once ctx is done.
func (f *Field[T]) Observe(ctx context.Context, fn func(T)) {
	f.mu.Lock()
	f.observers = append(f.observers, fieldObserver[T]{ctx: ctx, fn: fn})
	v := f.value
	if !f.isSet {
		v = f.def
	}
	f.mu.Unlock()

	fn(v)
}

// liveObserversLocked prunes observers whose scope ended and returns the rest.
func (f *Field[T]) liveObserversLocked() []fieldObserver[T] {
	live := f.observers[:0]
	for _, o := range f.observers {
		if o.ctx.Err() == nil {
			live = append(live, o)
		}
	}
	f.observers = live
	return append([]fieldObserver[T](nil), live...)
}

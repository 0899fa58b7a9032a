// Package scope provides the cancellation hierarchy and the serialized
// dispatch context that camera operations run on.
//
// A Scope is a cancellable unit of ownership over background work. Scopes
// nest: cancelling a parent cancels every descendant, and cancellation is
// irreversible. The widget owns one root scope; each backend instance gets
// its own child so that replacing a backend tears down only that backend's
// outstanding work.
package scope

import "context"

// Scope is a cancellable ownership unit backed by a context.
type Scope struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// NewRoot creates a top-level scope.
func NewRoot() *Scope {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scope{ctx: ctx, cancel: cancel}
}

// Child creates a scope nested under s. Cancelling s cancels the child;
// cancelling the child leaves s alive.
func (s *Scope) Child() *Scope {
	ctx, cancel := context.WithCancel(s.ctx)
	return &Scope{ctx: ctx, cancel: cancel}
}

// Cancel tears down the scope and all of its descendants. Irreversible.
func (s *Scope) Cancel() {
	s.cancel()
}

// Cancelled reports whether the scope has been cancelled, directly or
// through a parent.
func (s *Scope) Cancelled() bool {
	return s.ctx.Err() != nil
}

// Done returns a channel closed on cancellation.
func (s *Scope) Done() <-chan struct{} {
	return s.ctx.Done()
}

// Context exposes the underlying context for APIs that take one.
func (s *Scope) Context() context.Context {
	return s.ctx
}

// Package taskgroup wraps golang.org/x/sync/errgroup to give each
// listener a structured task group: every connection goroutine, and every
// HTTP/2 stream goroutine within a connection, is a child of the
// listener's group, so cancelling or erroring the listener propagates
// leaves-first to all in-flight work.
package taskgroup

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Group is a cancellable structured task group. The zero value is not
// usable; construct with New.
type Group struct {
	ctx context.Context
	eg  *errgroup.Group
	cancel context.CancelFunc
}

// New derives a Group from parent. Cancelling the returned Group's
// context (via Cancel, or a member task's error) cancels every task
// spawned from it, including ones spawned from a nested child made with
// Child.
func New(parent context.Context) *Group {
	ctx, cancel := context.WithCancel(parent)
	eg, ctx := errgroup.WithContext(ctx)
	return &Group{ctx: ctx, eg: eg, cancel: cancel}
}

// Context is cancelled when any task spawned from this group (or its
// children) returns a non-nil error, or when Cancel is called.
func (g *Group) Context() context.Context { return g.ctx }

// Go spawns fn as a child task of the group.
func (g *Group) Go(fn func() error) { g.eg.Go(fn) }

// Child creates a nested group whose context is derived from this one, so
// that cancelling the parent (listener shutdown) cancels the child
// (one connection's per-stream tasks) even though the child's own tasks
// are awaited independently.
func (g *Group) Child() *Group { return New(g.ctx) }

// Cancel cancels the group's context without waiting for its tasks.
func (g *Group) Cancel() { g.cancel() }

// Wait blocks until every spawned task has returned, then returns the
// first non-nil error (if any), and releases the group's context.
func (g *Group) Wait() error {
	err := g.eg.Wait()
	g.cancel()
	return err
}

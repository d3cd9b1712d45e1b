// Package command runs local state changes that must be undone when the
// backing write fails.
package command

import (
	"context"
	"fmt"
)

// Command changes a local view of S, persists the change, and knows how to
// reverse it.
type Command[S any] interface {
	Apply(state S) S
	Commit(ctx context.Context) error
	Rollback(state S) S
}

// Funcs adapts three closures to Command. A nil Rollback restores the state
// that was passed to Apply.
type Funcs[S any] struct {
	ApplyFn    func(S) S
	CommitFn   func(context.Context) error
	RollbackFn func(S) S

	before S
}

func (f *Funcs[S]) Apply(state S) S {
	f.before = state
	if f.ApplyFn == nil {
		return state
	}
	return f.ApplyFn(state)
}

func (f *Funcs[S]) Commit(ctx context.Context) error {
	if f.CommitFn == nil {
		return nil
	}
	return f.CommitFn(ctx)
}

func (f *Funcs[S]) Rollback(state S) S {
	if f.RollbackFn == nil {
		return f.before
	}
	return f.RollbackFn(state)
}

// Run applies cmd to state and commits it. On commit failure the rolled back
// state is returned together with the error.
func Run[S any](ctx context.Context, state S, cmd Command[S]) (S, error) {
	next := cmd.Apply(state)
	if err := cmd.Commit(ctx); err != nil {
		return cmd.Rollback(next), fmt.Errorf("failed to commit: %w", err)
	}
	return next, nil
}

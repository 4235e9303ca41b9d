// Package async provides Future, an explicit result for work that completes
// later: a file change settling on disk, a collaborator call, a change cycle.
package async

import (
	"context"
	"errors"
	"sync"
)

// ErrAlreadySettled is returned by Settle when the future already holds a result.
var ErrAlreadySettled = errors.New("future already settled")

// Future holds the eventual result of an asynchronous operation.
// A Future settles exactly once; every Await observes the same result.
type Future[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
	err   error
}

// New returns an unsettled Future and the function that settles it.
// Only the first call to settle has an effect; later calls return
// ErrAlreadySettled.
func New[T any]() (*Future[T], func(T, error) error) {
	f := &Future[T]{done: make(chan struct{})}
	return f, f.settle
}

// Go runs fn on a new goroutine and returns a Future for its result.
func Go[T any](fn func() (T, error)) *Future[T] {
	f, settle := New[T]()
	go func() {
		v, err := fn()
		_ = settle(v, err)
	}()
	return f
}

// Resolved returns a Future already settled with v.
func Resolved[T any](v T) *Future[T] {
	f, settle := New[T]()
	_ = settle(v, nil)
	return f
}

// Rejected returns a Future already settled with err.
func Rejected[T any](err error) *Future[T] {
	f, settle := New[T]()
	var zero T
	_ = settle(zero, err)
	return f
}

func (f *Future[T]) settle(v T, err error) error {
	settled := false
	f.once.Do(func() {
		f.value = v
		f.err = err
		close(f.done)
		settled = true
	})
	if !settled {
		return ErrAlreadySettled
	}
	return nil
}

// Done is closed once the future has settled.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Settled reports whether a result is available without blocking.
func (f *Future[T]) Settled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Await blocks until the future settles or ctx is done.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

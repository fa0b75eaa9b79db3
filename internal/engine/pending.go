package engine

import (
	"context"
	"sync"
)

// Pending is the eventual result of an engine operation. Operations return
// one immediately and complete it from the engine loop or a store callback.
type Pending[T any] struct {
	done chan struct{}
	once sync.Once
	val  T
	err  error
}

func newPending[T any]() *Pending[T] {
	return &Pending[T]{done: make(chan struct{})}
}

func failed[T any](err error) *Pending[T] {
	p := newPending[T]()
	p.reject(err)
	return p
}

func (p *Pending[T]) resolve(v T, err error) {
	p.once.Do(func() {
		p.val, p.err = v, err
		close(p.done)
	})
}

func (p *Pending[T]) reject(err error) {
	var zero T
	p.resolve(zero, err)
}

// Done is closed once the result is available.
func (p *Pending[T]) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the result is available or ctx ends.
func (p *Pending[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		return p.val, p.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

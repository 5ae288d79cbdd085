package client

import (
	"context"
	"sync/atomic"
)

const (
	handleRunning int32 = iota
	handleCancelled
	handleDelivered
)

// Handle controls an operation started with Go
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
	state  atomic.Int32
}

// Go runs fn in its own goroutine and hands its result to complete. Once
// Cancel has been called, or ctx has ended, before fn returns, complete is
// never called.
func Go[T any](ctx context.Context, fn func(context.Context) (T, error), complete func(T, error)) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(h.done)
		defer cancel()

		v, err := fn(ctx)

		if ctx.Err() != nil || !h.state.CompareAndSwap(handleRunning, handleDelivered) {
			return
		}
		if complete != nil {
			complete(v, err)
		}
	}()
	return h
}

// Cancel stops the operation and suppresses its completion. It reports false
// when the completion had already started.
func (h *Handle) Cancel() bool {
	ok := h.state.CompareAndSwap(handleRunning, handleCancelled)
	h.cancel()
	return ok
}

// Done is closed when the operation has finished
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

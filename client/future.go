package client

import (
	"context"
	"sync"
)

// Future is the pending result of an asynchronous call. It resolves exactly once.
type Future[T any] struct {
	done chan struct{}
	once sync.Once
	val  T
	err  error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

func (f *Future[T]) resolve(val T, err error) {
	f.once.Do(func() {
		f.val, f.err = val, err
		close(f.done)
	})
}

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the future resolves or ctx is done. Giving up on ctx does not
// cancel the call; cancel the context the call was started with for that.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Async starts call on its own goroutine and returns its Future:
//
//	f := client.Async(ctx, c.GetIdentity, &message.GetIdentityRequest{Id: id})
//	resp, err := f.Await(ctx)
//
// Invalid call options, including malformed metadata, resolve the future with
// codes.InvalidArgument at once, without starting the call.
func Async[Req, Resp any](ctx context.Context, call func(context.Context, Req, ...CallOption) (Resp, error), req Req, opts ...CallOption) *Future[Resp] {
	f := newFuture[Resp]()
	if _, err := newCallOptions(opts); err != nil {
		var zero Resp
		f.resolve(zero, err)
		return f
	}

	go func() {
		resp, err := call(ctx, req, opts...)
		f.resolve(resp, err)
	}()
	return f
}

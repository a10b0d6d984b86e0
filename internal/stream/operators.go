package stream

import (
	"context"
	"errors"
)

// ErrEmpty is returned by FirstValue when the stream completes without a value.
var ErrEmpty = errors.New("stream completed without a value")

// Map applies fn to every value. An fn error terminates the stream.
func Map[T, R any](src Observable[T], fn func(T) (R, error)) Observable[R] {
	return New(func(s Sink[R]) func() {
		return src.Subscribe(Observer[T]{
			Next: func(v T) {
				out, err := fn(v)
				if err != nil {
					s.Error(err)
					return
				}
				s.Next(out)
			},
			Error:    s.Error,
			Complete: s.Complete,
		}).Unsubscribe
	})
}

// First emits the first value of src and completes.
func First[T any](src Observable[T]) Observable[T] {
	return New(func(s Sink[T]) func() {
		return src.Subscribe(Observer[T]{
			Next: func(v T) {
				s.Next(v)
				s.Complete()
			},
			Error:    s.Error,
			Complete: s.Complete,
		}).Unsubscribe
	})
}

// FirstValue blocks until src emits, fails or completes, or ctx is done.
func FirstValue[T any](ctx context.Context, src Observable[T]) (T, error) {
	type result struct {
		value T
		err   error
	}
	ch := make(chan result, 1)
	send := func(r result) {
		select {
		case ch <- r:
		default:
		}
	}

	sub := First(src).Subscribe(Observer[T]{
		Next:     func(v T) { send(result{value: v}) },
		Error:    func(err error) { send(result{err: err}) },
		Complete: func() { send(result{err: ErrEmpty}) },
	})
	defer sub.Unsubscribe()

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case r := <-ch:
		return r.value, r.err
	}
}

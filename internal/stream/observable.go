// Package stream provides a small push-based observable used to compose
// chain queries into continuously updating derived values.
package stream

import "sync"

// Observer receives notifications from an Observable. Nil callbacks are ignored.
type Observer[T any] struct {
	Next     func(T)
	Error    func(error)
	Complete func()
}

// Subscription cancels an active subscription. Unsubscribe is idempotent.
type Subscription interface {
	Unsubscribe()
}

// Observable is a lazily started producer of values.
type Observable[T any] interface {
	Subscribe(o Observer[T]) Subscription
}

// Sink is handed to a Producer. After Error or Complete further calls are dropped.
type Sink[T any] interface {
	Next(v T)
	Error(err error)
	Complete()
	Closed() bool
}

// Producer starts emitting into s and returns the teardown run when the
// subscription ends. It may return nil.
type Producer[T any] func(s Sink[T]) (teardown func())

// New builds an Observable that runs p once per subscription.
func New[T any](p Producer[T]) Observable[T] {
	return &producerObservable[T]{produce: p}
}

type producerObservable[T any] struct {
	produce Producer[T]
}

func (o *producerObservable[T]) Subscribe(obs Observer[T]) Subscription {
	s := &subscriber[T]{obs: obs}
	s.attach(o.produce(s))
	return s
}

type subscriber[T any] struct {
	mu       sync.Mutex
	obs      Observer[T]
	closed   bool
	teardown func()
}

func (s *subscriber[T]) Next(v T) {
	if s.Closed() || s.obs.Next == nil {
		return
	}
	s.obs.Next(v)
}

func (s *subscriber[T]) Error(err error) {
	if !s.close() {
		return
	}
	if s.obs.Error != nil {
		s.obs.Error(err)
	}
	s.runTeardown()
}

func (s *subscriber[T]) Complete() {
	if !s.close() {
		return
	}
	if s.obs.Complete != nil {
		s.obs.Complete()
	}
	s.runTeardown()
}

func (s *subscriber[T]) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *subscriber[T]) Unsubscribe() {
	if s.close() {
		s.runTeardown()
	}
}

func (s *subscriber[T]) close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	return true
}

func (s *subscriber[T]) runTeardown() {
	s.mu.Lock()
	teardown := s.teardown
	s.teardown = nil
	s.mu.Unlock()
	if teardown != nil {
		teardown()
	}
}

// attach stores the producer's teardown, or runs it immediately when the
// subscriber was closed while the producer was still starting.
func (s *subscriber[T]) attach(teardown func()) {
	if teardown == nil {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		teardown()
		return
	}
	s.teardown = teardown
	s.mu.Unlock()
}

// Of emits each value in order and completes.
func Of[T any](values ...T) Observable[T] {
	return New(func(s Sink[T]) func() {
		for _, v := range values {
			if s.Closed() {
				return nil
			}
			s.Next(v)
		}
		s.Complete()
		return nil
	})
}

// Fail emits err immediately.
func Fail[T any](err error) Observable[T] {
	return New(func(s Sink[T]) func() {
		s.Error(err)
		return nil
	})
}

// Defer calls factory at subscription time and subscribes to its result.
// A factory error becomes the stream error.
func Defer[T any](factory func() (Observable[T], error)) Observable[T] {
	return New(func(s Sink[T]) func() {
		src, err := factory()
		if err != nil {
			s.Error(err)
			return nil
		}
		return forward(src, s).Unsubscribe
	})
}

func forward[T any](src Observable[T], s Sink[T]) Subscription {
	return src.Subscribe(Observer[T]{
		Next:     s.Next,
		Error:    s.Error,
		Complete: s.Complete,
	})
}

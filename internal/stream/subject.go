package stream

import (
	"slices"
	"sync"
)

// Subject is a hot Observable fed by its owner. Values are delivered only to
// observers subscribed at the time of the call. Late subscribers to a
// terminated Subject receive the terminal notification immediately.
type Subject[T any] struct {
	mu     sync.Mutex
	sinks  map[uint64]Sink[T]
	nextID uint64
	done   bool
	err    error
}

func NewSubject[T any]() *Subject[T] {
	return &Subject[T]{sinks: make(map[uint64]Sink[T])}
}

// Subscribe implements Observable.
func (sub *Subject[T]) Subscribe(o Observer[T]) Subscription {
	return New(func(s Sink[T]) func() {
		sub.mu.Lock()
		if sub.done {
			err := sub.err
			sub.mu.Unlock()
			if err != nil {
				s.Error(err)
			} else {
				s.Complete()
			}
			return nil
		}
		id := sub.nextID
		sub.nextID++
		sub.sinks[id] = s
		sub.mu.Unlock()

		return func() {
			sub.mu.Lock()
			delete(sub.sinks, id)
			sub.mu.Unlock()
		}
	}).Subscribe(o)
}

func (sub *Subject[T]) Next(v T) {
	for _, s := range sub.snapshot(false, nil) {
		s.Next(v)
	}
}

func (sub *Subject[T]) Error(err error) {
	for _, s := range sub.snapshot(true, err) {
		s.Error(err)
	}
}

func (sub *Subject[T]) Complete() {
	for _, s := range sub.snapshot(true, nil) {
		s.Complete()
	}
}

// Observers returns the number of attached observers.
func (sub *Subject[T]) Observers() int {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return len(sub.sinks)
}

func (sub *Subject[T]) snapshot(terminate bool, err error) []Sink[T] {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.done {
		return nil
	}
	sinks := orderedSinks(sub.sinks)
	if terminate {
		sub.done = true
		sub.err = err
		sub.sinks = make(map[uint64]Sink[T])
	}
	return sinks
}

func orderedSinks[T any](m map[uint64]Sink[T]) []Sink[T] {
	ids := make([]uint64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]Sink[T], 0, len(ids))
	for _, id := range ids {
		out = append(out, m[id])
	}
	return out
}

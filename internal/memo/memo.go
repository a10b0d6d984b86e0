// Package memo shares derived streams between callers of one API instance.
package memo

import (
	"fmt"
	"reflect"
	"sync"

	"go.uber.org/zap"

	"vtokenScope/internal/stream"
)

// Key identifies a derivation call: the derivation name and its arguments.
// Args are compared with ==, so they must be comparable to be cached.
type Key struct {
	Fn   string
	Args any
}

func (k Key) String() string {
	return fmt.Sprintf("%s(%v)", k.Fn, k.Args)
}

// Table maps keys to reference-counted shared streams for one instance.
// An entry exists only while at least one subscriber is attached to it.
type Table struct {
	instance string
	logger   *zap.Logger
	metrics  *Metrics

	mu      sync.Mutex
	entries map[Key]*entry
}

type entry struct {
	shared any
	refs   int
}

func NewTable(instance string, logger *zap.Logger, metrics *Metrics) *Table {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Table{
		instance: instance,
		logger:   logger,
		metrics:  metrics,
		entries:  make(map[Key]*entry),
	}
}

// Instance returns the owning instance identifier.
func (t *Table) Instance() string {
	return t.instance
}

// Get returns a stream for key. Every subscription to it joins the shared
// stream currently held under key, creating it when none is held, so equal
// keys never hold two upstream subscriptions at once. build runs when a new
// shared stream connects, never at call time. The entry is dropped when its
// last subscriber leaves, including after the source completes or fails.
func Get[T any](t *Table, key Key, build func() stream.Observable[T]) stream.Observable[T] {
	if !cacheable(key.Args) {
		return stream.New(func(s stream.Sink[T]) func() {
			t.metrics.miss(t.instance, key.Fn)
			return build().Subscribe(stream.Observer[T]{
				Next:     s.Next,
				Error:    s.Error,
				Complete: s.Complete,
			}).Unsubscribe
		})
	}

	return stream.New(func(s stream.Sink[T]) func() {
		e, shared := acquire(t, key, build)
		sub := shared.Subscribe(stream.Observer[T]{
			Next:     s.Next,
			Error:    s.Error,
			Complete: s.Complete,
		})
		return func() {
			t.release(key, e)
			sub.Unsubscribe()
		}
	})
}

func acquire[T any](t *Table, key Key, build func() stream.Observable[T]) (*entry, stream.Observable[T]) {
	t.mu.Lock()
	if e, ok := t.entries[key]; ok {
		if shared, ok := e.shared.(stream.Observable[T]); ok {
			e.refs++
			t.mu.Unlock()
			t.metrics.hit(t.instance, key.Fn)
			return e, shared
		}
	}

	shared := stream.Share(stream.Defer(func() (stream.Observable[T], error) {
		return build(), nil
	}))
	e := &entry{shared: shared, refs: 1}
	t.entries[key] = e
	size := len(t.entries)
	t.mu.Unlock()

	t.metrics.miss(t.instance, key.Fn)
	t.metrics.size(t.instance, size)
	t.logger.Debug("memo miss", zap.String("instance", t.instance), zap.Stringer("key", key))
	return e, shared
}

func (t *Table) release(key Key, e *entry) {
	t.mu.Lock()
	e.refs--
	if e.refs > 0 {
		t.mu.Unlock()
		return
	}
	current, ok := t.entries[key]
	if !ok || current != e {
		t.mu.Unlock()
		return
	}
	delete(t.entries, key)
	size := len(t.entries)
	t.mu.Unlock()

	t.metrics.evicted(t.instance, key.Fn)
	t.metrics.size(t.instance, size)
	t.logger.Debug("memo evict", zap.String("instance", t.instance), zap.Stringer("key", key))
}

// Release drops the entry for key. Current subscribers keep their shared
// stream; the next subscription builds a fresh one.
func (t *Table) Release(key Key) bool {
	if !cacheable(key.Args) {
		return false
	}
	t.mu.Lock()
	_, ok := t.entries[key]
	delete(t.entries, key)
	size := len(t.entries)
	t.mu.Unlock()

	if ok {
		t.metrics.size(t.instance, size)
	}
	return ok
}

// Len returns the number of subscribed entries.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func cacheable(args any) bool {
	if args == nil {
		return true
	}
	return reflect.ValueOf(args).Comparable()
}

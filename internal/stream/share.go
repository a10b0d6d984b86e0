package stream

import "sync"

// Share multicasts src to every subscriber through a single upstream
// subscription. The upstream is connected by the first subscriber and
// disconnected when the last one leaves. Late subscribers immediately receive
// the latest value, and completion if src has completed. After src fails or
// the last subscriber leaves, the next subscriber reconnects src.
func Share[T any](src Observable[T]) Observable[T] {
	sh := &share[T]{
		src:   src,
		sinks: make(map[uint64]Sink[T]),
	}
	return New(sh.subscribe)
}

type share[T any] struct {
	src Observable[T]
	q   serializer

	mu        sync.Mutex
	sinks     map[uint64]Sink[T]
	nextID    uint64
	epoch     uint64
	connected bool
	conn      Subscription
	last      T
	hasLast   bool
	completed bool
}

func (sh *share[T]) subscribe(s Sink[T]) func() {
	sh.mu.Lock()
	id := sh.nextID
	sh.nextID++
	sh.mu.Unlock()

	sh.q.run(func() { sh.join(id, s) })
	return func() { sh.leave(id) }
}

func (sh *share[T]) join(id uint64, s Sink[T]) {
	sh.mu.Lock()
	if s.Closed() {
		sh.mu.Unlock()
		return
	}
	sh.sinks[id] = s
	connect := !sh.connected
	if connect {
		sh.connected = true
		sh.epoch++
	}
	epoch := sh.epoch
	last, hasLast, completed := sh.last, sh.hasLast, sh.completed
	sh.mu.Unlock()

	if !connect {
		if hasLast {
			s.Next(last)
		}
		if completed {
			s.Complete()
		}
		return
	}

	conn := sh.src.Subscribe(Observer[T]{
		Next:     func(v T) { sh.q.run(func() { sh.emit(epoch, v) }) },
		Error:    func(err error) { sh.q.run(func() { sh.fail(epoch, err) }) },
		Complete: func() { sh.q.run(func() { sh.finish(epoch) }) },
	})

	sh.mu.Lock()
	if sh.connected && sh.epoch == epoch {
		sh.conn = conn
		sh.mu.Unlock()
		return
	}
	sh.mu.Unlock()
	conn.Unsubscribe()
}

func (sh *share[T]) emit(epoch uint64, v T) {
	sh.mu.Lock()
	if !sh.connected || sh.epoch != epoch {
		sh.mu.Unlock()
		return
	}
	sh.last, sh.hasLast = v, true
	sinks := orderedSinks(sh.sinks)
	sh.mu.Unlock()

	for _, s := range sinks {
		s.Next(v)
	}
}

func (sh *share[T]) fail(epoch uint64, err error) {
	sh.mu.Lock()
	if !sh.connected || sh.epoch != epoch {
		sh.mu.Unlock()
		return
	}
	sinks := orderedSinks(sh.sinks)
	sh.reset()
	sh.mu.Unlock()

	for _, s := range sinks {
		s.Error(err)
	}
}

func (sh *share[T]) finish(epoch uint64) {
	sh.mu.Lock()
	if !sh.connected || sh.epoch != epoch {
		sh.mu.Unlock()
		return
	}
	sh.completed = true
	sinks := orderedSinks(sh.sinks)
	sh.mu.Unlock()

	for _, s := range sinks {
		s.Complete()
	}
}

func (sh *share[T]) leave(id uint64) {
	sh.mu.Lock()
	if _, ok := sh.sinks[id]; !ok {
		sh.mu.Unlock()
		return
	}
	delete(sh.sinks, id)
	if len(sh.sinks) > 0 || !sh.connected {
		sh.mu.Unlock()
		return
	}
	conn := sh.conn
	sh.reset()
	sh.mu.Unlock()

	if conn != nil {
		conn.Unsubscribe()
	}
}

// reset must be called with mu held.
func (sh *share[T]) reset() {
	var zero T
	sh.sinks = make(map[uint64]Sink[T])
	sh.connected = false
	sh.epoch++
	sh.conn = nil
	sh.last, sh.hasLast = zero, false
	sh.completed = false
}

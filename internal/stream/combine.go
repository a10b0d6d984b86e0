package stream

// CombineLatest emits a slice holding the latest value of every source, in
// source order, each time any source emits once all of them have emitted.
// An empty source list emits one empty slice and completes.
func CombineLatest[T any](sources []Observable[T]) Observable[[]T] {
	return New(func(s Sink[[]T]) func() {
		n := len(sources)
		if n == 0 {
			s.Next([]T{})
			s.Complete()
			return nil
		}

		var (
			q       serializer
			values  = make([]T, n)
			seen    = make([]bool, n)
			waiting = n
			active  = n
		)

		subs := make([]Subscription, 0, n)
		for i, src := range sources {
			subs = append(subs, src.Subscribe(Observer[T]{
				Next: func(v T) {
					q.run(func() {
						values[i] = v
						if !seen[i] {
							seen[i] = true
							waiting--
						}
						if waiting == 0 {
							s.Next(append([]T(nil), values...))
						}
					})
				},
				Error: func(err error) {
					q.run(func() { s.Error(err) })
				},
				Complete: func() {
					q.run(func() {
						active--
						// a source that never emitted can never contribute a value
						if active == 0 || !seen[i] {
							s.Complete()
						}
					})
				},
			}))
			if s.Closed() {
				break
			}
		}

		return func() {
			for _, sub := range subs {
				sub.Unsubscribe()
			}
		}
	})
}

// CombineLatest2 is CombineLatest over two sources of different types.
func CombineLatest2[A, B, R any](a Observable[A], b Observable[B], fn func(A, B) R) Observable[R] {
	return New(func(s Sink[R]) func() {
		var (
			q          serializer
			lastA      A
			lastB      B
			hasA, hasB bool
			active     = 2
		)

		emit := func() {
			if hasA && hasB {
				s.Next(fn(lastA, lastB))
			}
		}
		complete := func(seen bool) {
			active--
			if active == 0 || !seen {
				s.Complete()
			}
		}

		subA := a.Subscribe(Observer[A]{
			Next: func(v A) {
				q.run(func() {
					lastA, hasA = v, true
					emit()
				})
			},
			Error:    func(err error) { q.run(func() { s.Error(err) }) },
			Complete: func() { q.run(func() { complete(hasA) }) },
		})
		if s.Closed() {
			return subA.Unsubscribe
		}
		subB := b.Subscribe(Observer[B]{
			Next: func(v B) {
				q.run(func() {
					lastB, hasB = v, true
					emit()
				})
			},
			Error:    func(err error) { q.run(func() { s.Error(err) }) },
			Complete: func() { q.run(func() { complete(hasB) }) },
		})

		return func() {
			subA.Unsubscribe()
			subB.Unsubscribe()
		}
	})
}

package stream

import "sync"

// MergeMap subscribes to project(v) for every value of src and merges all
// inner streams. Earlier inners stay subscribed when a new one starts. The
// result completes when src and every inner have completed.
func MergeMap[T, R any](src Observable[T], project func(T) Observable[R]) Observable[R] {
	return New(func(s Sink[R]) func() {
		var (
			q         serializer
			outerDone bool
			active    int

			mu      sync.Mutex
			inners  = make(map[uint64]Subscription)
			nextID  uint64
			stopped bool
		)

		outer := src.Subscribe(Observer[T]{
			Next: func(v T) {
				q.run(func() {
					if s.Closed() {
						return
					}
					active++
					mu.Lock()
					id := nextID
					nextID++
					mu.Unlock()

					sub := project(v).Subscribe(Observer[R]{
						Next:  func(r R) { q.run(func() { s.Next(r) }) },
						Error: func(err error) { q.run(func() { s.Error(err) }) },
						Complete: func() {
							q.run(func() {
								mu.Lock()
								delete(inners, id)
								mu.Unlock()
								active--
								if outerDone && active == 0 {
									s.Complete()
								}
							})
						},
					})

					mu.Lock()
					if stopped {
						mu.Unlock()
						sub.Unsubscribe()
						return
					}
					inners[id] = sub
					mu.Unlock()
				})
			},
			Error: func(err error) { q.run(func() { s.Error(err) }) },
			Complete: func() {
				q.run(func() {
					outerDone = true
					if active == 0 {
						s.Complete()
					}
				})
			},
		})

		return func() {
			outer.Unsubscribe()
			mu.Lock()
			stopped = true
			subs := make([]Subscription, 0, len(inners))
			for _, sub := range inners {
				subs = append(subs, sub)
			}
			inners = make(map[uint64]Subscription)
			mu.Unlock()
			for _, sub := range subs {
				sub.Unsubscribe()
			}
		}
	})
}

// ConcatMap subscribes to project(v) for each value of src in arrival order,
// starting the next inner only after the previous one completes. Values that
// arrive meanwhile are queued, so every value contributes its full inner.
func ConcatMap[T, R any](src Observable[T], project func(T) Observable[R]) Observable[R] {
	return New(func(s Sink[R]) func() {
		var (
			q           serializer
			pending     []T
			innerActive bool
			outerDone   bool

			mu      sync.Mutex
			current Subscription
			stopped bool
		)

		// startNext runs inside q.
		var startNext func()
		startNext = func() {
			if s.Closed() || len(pending) == 0 {
				return
			}
			v := pending[0]
			pending = pending[1:]
			innerActive = true

			sub := project(v).Subscribe(Observer[R]{
				Next:  func(r R) { q.run(func() { s.Next(r) }) },
				Error: func(err error) { q.run(func() { s.Error(err) }) },
				Complete: func() {
					q.run(func() {
						innerActive = false
						mu.Lock()
						current = nil
						mu.Unlock()
						if len(pending) > 0 {
							startNext()
							return
						}
						if outerDone {
							s.Complete()
						}
					})
				},
			})

			mu.Lock()
			if stopped {
				mu.Unlock()
				sub.Unsubscribe()
				return
			}
			current = sub
			mu.Unlock()
		}

		outer := src.Subscribe(Observer[T]{
			Next: func(v T) {
				q.run(func() {
					pending = append(pending, v)
					if !innerActive {
						startNext()
					}
				})
			},
			Error: func(err error) { q.run(func() { s.Error(err) }) },
			Complete: func() {
				q.run(func() {
					outerDone = true
					if !innerActive && len(pending) == 0 {
						s.Complete()
					}
				})
			},
		})

		return func() {
			outer.Unsubscribe()
			mu.Lock()
			stopped = true
			sub := current
			current = nil
			mu.Unlock()
			if sub != nil {
				sub.Unsubscribe()
			}
		}
	})
}

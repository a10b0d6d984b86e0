package stream

import "sync"

// serializer runs tasks one at a time in submission order. A task submitted
// while another is running, from any goroutine including the running task
// itself, is queued and executed by the goroutine already draining.
type serializer struct {
	mu      sync.Mutex
	queue   []func()
	running bool
}

func (q *serializer) run(task func()) {
	q.mu.Lock()
	q.queue = append(q.queue, task)
	if q.running {
		q.mu.Unlock()
		return
	}
	q.running = true
	for len(q.queue) > 0 {
		next := q.queue[0]
		q.queue[0] = nil
		q.queue = q.queue[1:]
		q.mu.Unlock()
		next()
		q.mu.Lock()
	}
	q.running = false
	q.mu.Unlock()
}

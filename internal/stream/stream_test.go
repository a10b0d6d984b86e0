package stream

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type recorder[T any] struct {
	values    []T
	err       error
	completed bool
}

func (r *recorder[T]) observer() Observer[T] {
	return Observer[T]{
		Next:     func(v T) { r.values = append(r.values, v) },
		Error:    func(err error) { r.err = err },
		Complete: func() { r.completed = true },
	}
}

// counted wraps src and reports how many times it was subscribed and how many
// subscriptions are currently open.
func counted[T any](src Observable[T], subscribes, open *int32) Observable[T] {
	return New(func(s Sink[T]) func() {
		atomic.AddInt32(subscribes, 1)
		atomic.AddInt32(open, 1)
		sub := forward(src, s)
		return func() {
			atomic.AddInt32(open, -1)
			sub.Unsubscribe()
		}
	})
}

func TestOfEmitsAndCompletes(t *testing.T) {
	var rec recorder[int]
	Of(1, 2, 3).Subscribe(rec.observer())

	if !reflect.DeepEqual(rec.values, []int{1, 2, 3}) {
		t.Fatalf("values mismatch: %v", rec.values)
	}
	if !rec.completed {
		t.Fatalf("expected completion")
	}
}

func TestMapErrorTerminates(t *testing.T) {
	boom := errors.New("boom")
	src := NewSubject[int]()
	var rec recorder[int]
	Map(src, func(v int) (int, error) {
		if v < 0 {
			return 0, boom
		}
		return v * 2, nil
	}).Subscribe(rec.observer())

	src.Next(1)
	src.Next(-1)
	src.Next(3)

	if !reflect.DeepEqual(rec.values, []int{2}) {
		t.Fatalf("values mismatch: %v", rec.values)
	}
	if !errors.Is(rec.err, boom) {
		t.Fatalf("expected boom, got %v", rec.err)
	}
	if src.Observers() != 0 {
		t.Fatalf("expected upstream released, %d observers left", src.Observers())
	}
}

func TestCombineLatestOrderAndLatest(t *testing.T) {
	a := NewSubject[string]()
	b := NewSubject[string]()
	var rec recorder[[]string]
	sub := CombineLatest([]Observable[string]{b, a}).Subscribe(rec.observer())

	a.Next("a1")
	if len(rec.values) != 0 {
		t.Fatalf("emitted before every source emitted: %v", rec.values)
	}
	b.Next("b1")
	a.Next("a2")
	b.Next("b2")

	want := [][]string{{"b1", "a1"}, {"b1", "a2"}, {"b2", "a2"}}
	if !reflect.DeepEqual(rec.values, want) {
		t.Fatalf("values mismatch: %v != %v", rec.values, want)
	}

	sub.Unsubscribe()
	if a.Observers() != 0 || b.Observers() != 0 {
		t.Fatalf("sources still subscribed")
	}
}

func TestCombineLatestEmpty(t *testing.T) {
	var rec recorder[[]int]
	CombineLatest[int](nil).Subscribe(rec.observer())

	if len(rec.values) != 1 || len(rec.values[0]) != 0 {
		t.Fatalf("expected one empty emission, got %v", rec.values)
	}
	if !rec.completed {
		t.Fatalf("expected completion")
	}
}

func TestCombineLatestCompletesWhenSourceNeverEmits(t *testing.T) {
	live := NewSubject[int]()
	var rec recorder[[]int]
	CombineLatest([]Observable[int]{live, Of[int]()}).Subscribe(rec.observer())

	if !rec.completed {
		t.Fatalf("expected completion")
	}
	if live.Observers() != 0 {
		t.Fatalf("live source not released")
	}
}

func TestCombineLatestKeepsCompletedValue(t *testing.T) {
	live := NewSubject[int]()
	var rec recorder[[]int]
	CombineLatest([]Observable[int]{Of(7), live}).Subscribe(rec.observer())

	live.Next(1)
	live.Next(2)
	want := [][]int{{7, 1}, {7, 2}}
	if !reflect.DeepEqual(rec.values, want) {
		t.Fatalf("values mismatch: %v", rec.values)
	}
	if rec.completed {
		t.Fatalf("completed while live source is active")
	}
}

func TestCombineLatest2(t *testing.T) {
	a := NewSubject[int]()
	b := NewSubject[string]()
	var rec recorder[string]
	CombineLatest2[int, string](a, b, func(x int, y string) string {
		return y + ":" + string(rune('0'+x))
	}).Subscribe(rec.observer())

	b.Next("x")
	a.Next(1)
	a.Next(2)
	b.Next("y")

	want := []string{"x:1", "x:2", "y:2"}
	if !reflect.DeepEqual(rec.values, want) {
		t.Fatalf("values mismatch: %v", rec.values)
	}
}

func TestMergeMapKeepsEarlierInners(t *testing.T) {
	outer := NewSubject[string]()
	inners := map[string]*Subject[int]{
		"x": NewSubject[int](),
		"y": NewSubject[int](),
	}
	var rec recorder[int]
	MergeMap[string, int](outer, func(k string) Observable[int] { return inners[k] }).Subscribe(rec.observer())

	outer.Next("x")
	inners["x"].Next(1)
	outer.Next("y")
	inners["y"].Next(2)
	inners["x"].Next(3)

	if !reflect.DeepEqual(rec.values, []int{1, 2, 3}) {
		t.Fatalf("values mismatch: %v", rec.values)
	}

	outer.Complete()
	inners["x"].Complete()
	if rec.completed {
		t.Fatalf("completed with an inner still active")
	}
	inners["y"].Complete()
	if !rec.completed {
		t.Fatalf("expected completion")
	}
}

func TestConcatMapRunsInnersInOrder(t *testing.T) {
	outer := NewSubject[string]()
	inners := map[string]*Subject[int]{
		"x": NewSubject[int](),
		"y": NewSubject[int](),
	}
	var rec recorder[int]
	sub := ConcatMap[string, int](outer, func(k string) Observable[int] { return inners[k] }).Subscribe(rec.observer())

	outer.Next("x")
	outer.Next("y")
	if inners["y"].Observers() != 0 {
		t.Fatalf("second inner started before the first completed")
	}

	inners["x"].Next(1)
	inners["x"].Complete()
	if inners["y"].Observers() != 1 {
		t.Fatalf("queued inner not started")
	}
	inners["y"].Next(2)

	if !reflect.DeepEqual(rec.values, []int{1, 2}) {
		t.Fatalf("values mismatch: %v", rec.values)
	}

	outer.Complete()
	if rec.completed {
		t.Fatalf("completed with an inner still active")
	}
	inners["y"].Complete()
	if !rec.completed {
		t.Fatalf("expected completion")
	}
	sub.Unsubscribe()
}

func TestConcatMapSynchronousInners(t *testing.T) {
	var rec recorder[int]
	ConcatMap(Of(1, 2, 3), func(v int) Observable[int] { return Of(v, v*10) }).Subscribe(rec.observer())

	if !reflect.DeepEqual(rec.values, []int{1, 10, 2, 20, 3, 30}) {
		t.Fatalf("values mismatch: %v", rec.values)
	}
	if !rec.completed {
		t.Fatalf("expected completion")
	}
}

func TestConcatMapUnsubscribeReleasesQueue(t *testing.T) {
	outer := NewSubject[string]()
	inner := NewSubject[int]()
	sub := ConcatMap[string, int](outer, func(string) Observable[int] { return inner }).Subscribe(Observer[int]{})

	outer.Next("x")
	outer.Next("y")
	sub.Unsubscribe()
	inner.Complete()

	if outer.Observers() != 0 || inner.Observers() != 0 {
		t.Fatalf("subscriptions leaked")
	}
}

func TestShareSingleUpstreamAndReplay(t *testing.T) {
	src := NewSubject[int]()
	var subscribes, open int32
	shared := Share(counted[int](src, &subscribes, &open))

	var first, second recorder[int]
	sub1 := shared.Subscribe(first.observer())
	src.Next(1)
	sub2 := shared.Subscribe(second.observer())
	src.Next(2)

	if subscribes != 1 {
		t.Fatalf("expected one upstream subscription, got %d", subscribes)
	}
	if !reflect.DeepEqual(first.values, []int{1, 2}) {
		t.Fatalf("first values mismatch: %v", first.values)
	}
	if !reflect.DeepEqual(second.values, []int{1, 2}) {
		t.Fatalf("second values mismatch (replay): %v", second.values)
	}

	sub1.Unsubscribe()
	if open != 1 {
		t.Fatalf("upstream released while a subscriber remains")
	}
	sub2.Unsubscribe()
	if open != 0 {
		t.Fatalf("upstream not released")
	}
	var third recorder[int]
	shared.Subscribe(third.observer())
	if subscribes != 2 {
		t.Fatalf("expected reconnect, got %d subscriptions", subscribes)
	}
	if len(third.values) != 0 {
		t.Fatalf("stale replay after reset: %v", third.values)
	}
}

func TestShareErrorResets(t *testing.T) {
	boom := errors.New("boom")
	src := NewSubject[int]()
	var subscribes, open int32
	shared := Share(counted[int](src, &subscribes, &open))

	var a, b recorder[int]
	shared.Subscribe(a.observer())
	shared.Subscribe(b.observer())
	src.Error(boom)

	if !errors.Is(a.err, boom) || !errors.Is(b.err, boom) {
		t.Fatalf("error not delivered: %v %v", a.err, b.err)
	}
	if open != 0 {
		t.Fatalf("upstream not released after error")
	}

	var c recorder[int]
	shared.Subscribe(c.observer())
	if subscribes != 2 {
		t.Fatalf("expected reconnect after error, got %d subscriptions", subscribes)
	}
}

func TestShareUnsubscribeInsideNext(t *testing.T) {
	src := NewSubject[int]()
	shared := Share[int](src)

	var sub Subscription
	got := 0
	sub = shared.Subscribe(Observer[int]{Next: func(v int) {
		got = v
		sub.Unsubscribe()
	}})
	src.Next(5)
	src.Next(6)

	if got != 5 {
		t.Fatalf("expected 5, got %d", got)
	}
	if src.Observers() != 0 {
		t.Fatalf("upstream not released")
	}
}

func TestFirstValue(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	v, err := FirstValue(ctx, Of(4, 5))
	if err != nil || v != 4 {
		t.Fatalf("unexpected result %d %v", v, err)
	}

	if _, err := FirstValue(ctx, Of[int]()); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}

	short, cancelShort := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancelShort()
	if _, err := FirstValue[int](short, NewSubject[int]()); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}
}

func TestConcurrentEmittersAndSubscribers(t *testing.T) {
	const (
		sources     = 4
		emits       = 200
		subscribers = 4
		rounds      = 50
	)

	subjects := make([]*Subject[int], sources)
	inputs := make([]Observable[int], sources)
	for i := range subjects {
		subjects[i] = NewSubject[int]()
		inputs[i] = subjects[i]
	}
	trigger := NewSubject[int]()
	combined := CombineLatest(inputs)
	shared := Share(MergeMap[int, []int](trigger, func(int) Observable[[]int] { return combined }))

	var delivered int64
	keep := shared.Subscribe(Observer[[]int]{Next: func([]int) { atomic.AddInt64(&delivered, 1) }})
	trigger.Next(0)

	var wg sync.WaitGroup
	for i := range subjects {
		wg.Add(1)
		go func(src *Subject[int]) {
			defer wg.Done()
			for v := 0; v < emits; v++ {
				src.Next(v)
			}
		}(subjects[i])
	}
	for i := 0; i < subscribers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := 0; r < rounds; r++ {
				sub := shared.Subscribe(Observer[[]int]{Next: func(values []int) {
					if len(values) != sources {
						t.Errorf("combined length %d", len(values))
					}
				}})
				trigger.Next(r)
				sub.Unsubscribe()
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatalf("deadlock: emitters and subscribers did not finish")
	}

	keep.Unsubscribe()
	for i, src := range subjects {
		if n := src.Observers(); n != 0 {
			t.Fatalf("source %d still has %d observers", i, n)
		}
	}
	if trigger.Observers() != 0 {
		t.Fatalf("trigger still subscribed")
	}
	if atomic.LoadInt64(&delivered) == 0 {
		t.Fatalf("no combined values delivered")
	}
}

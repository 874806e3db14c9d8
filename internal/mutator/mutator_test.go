package mutator

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jittakal/satbqueue/internal/markqueue"
	"github.com/jittakal/satbqueue/pkg/satb"
)

func newQueueSet(t *testing.T, registry *Registry, capacity int) *markqueue.QueueSet {
	t.Helper()
	cfg := markqueue.DefaultConfig()
	cfg.BufferCapacity = capacity
	qs, err := markqueue.NewQueueSet(cfg, registry, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewQueueSet() error = %v", err)
	}
	return qs
}

type countingSource struct {
	next atomic.Int64
	size int
}

func (s *countingSource) Batch(dst []satb.Entry) []satb.Entry {
	dst = dst[:0]
	for i := 0; i < s.size; i++ {
		dst = append(dst, satb.Entry(s.next.Add(1)))
	}
	return dst
}

func drainAll(qs *markqueue.QueueSet) int {
	n := 0
	for qs.DrainOne(satb.ConsumerFunc(func(entries []satb.Entry) { n += len(entries) })) {
	}
	return n
}

func TestSafepoint_StopTheWorldWaitsForMutators(t *testing.T) {
	sp := NewSafepoint()
	sp.Enter()

	stopped := make(chan struct{})
	go func() {
		sp.StopTheWorld(func() {})
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("StopTheWorld ran while a mutator was inside")
	case <-time.After(20 * time.Millisecond):
	}

	sp.Leave()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("StopTheWorld did not run after the mutator left")
	}
	if sp.Pauses() != 1 {
		t.Errorf("Pauses() = %d, want 1", sp.Pauses())
	}
}

func TestRegistry_RegisterUnregister(t *testing.T) {
	sp := NewSafepoint()
	registry := NewRegistry(sp, nil)
	qs := newQueueSet(t, registry, 8)

	t1 := registry.Register(qs)
	t2 := registry.Register(qs)
	if t1.ID() == t2.ID() {
		t.Error("thread ids should be unique")
	}
	if registry.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", registry.Len())
	}

	var names []string
	registry.ForEachQueue(func(q *markqueue.Queue) { names = append(names, q.Name()) })
	if len(names) != 2 || names[0] != t1.ID() || names[1] != t2.ID() {
		t.Errorf("ForEachQueue visited %v", names)
	}

	registry.Unregister(t1)
	if registry.Len() != 1 {
		t.Errorf("Len() = %d after Unregister, want 1", registry.Len())
	}
}

func TestRegistry_UnregisterFlushes(t *testing.T) {
	sp := NewSafepoint()
	registry := NewRegistry(sp, nil)
	qs := newQueueSet(t, registry, 8)
	sp.StopTheWorld(func() { qs.SetActiveAllThreads(true, false) })

	th := registry.Register(qs)
	if !th.Queue().IsActive() {
		t.Fatal("thread registered during marking should be active")
	}
	th.WriteBarrier(1)
	th.WriteBarrier(2)
	registry.Unregister(th)

	if got := drainAll(qs); got != 2 {
		t.Errorf("drained %d entries, want 2", got)
	}
}

func TestThread_WriteBarrier(t *testing.T) {
	sp := NewSafepoint()
	registry := NewRegistry(sp, nil)
	qs := newQueueSet(t, registry, 8)
	th := registry.Register(qs)

	if th.WriteBarrier(5) {
		t.Error("WriteBarrier recorded while marking is inactive")
	}

	sp.StopTheWorld(func() { qs.SetActiveAllThreads(true, false) })

	if th.WriteBarrier(0) {
		t.Error("WriteBarrier recorded a null value")
	}
	if !th.WriteBarrier(5) {
		t.Error("WriteBarrier did not record during marking")
	}
	if th.Queue().Len() != 1 {
		t.Errorf("queue Len() = %d, want 1", th.Queue().Len())
	}
}

func TestMutator_Run(t *testing.T) {
	sp := NewSafepoint()
	registry := NewRegistry(sp, nil)
	qs := newQueueSet(t, registry, 16)
	sp.StopTheWorld(func() { qs.SetActiveAllThreads(true, false) })

	source := &countingSource{size: 10}
	m := NewMutator(registry, qs, source, 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for m.Writes() < 1000 {
		select {
		case <-deadline:
			t.Fatal("mutator made no progress")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if registry.Len() != 0 {
		t.Errorf("registry Len() = %d after Run, want 0", registry.Len())
	}
	if m.Recorded() != m.Writes() {
		t.Errorf("Recorded() = %d, Writes() = %d, want equal", m.Recorded(), m.Writes())
	}
	if got := drainAll(qs); int64(got) != m.Recorded() {
		t.Errorf("drained %d entries, want %d", got, m.Recorded())
	}
}

// Mutators keep running while marking is switched on and off; every
// activation transition must find all queues in the expected state.
func TestMutator_ConcurrentActivation(t *testing.T) {
	sp := NewSafepoint()
	registry := NewRegistry(sp, nil)
	qs := newQueueSet(t, registry, 32)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		m := NewMutator(registry, qs, &countingSource{size: 8}, 50*time.Microsecond, nil)
		go func() {
			defer wg.Done()
			_ = m.Run(ctx)
		}()
	}

	for i := 0; i < 20; i++ {
		sp.StopTheWorld(func() { qs.SetActiveAllThreads(true, false) })
		time.Sleep(time.Millisecond)
		sp.StopTheWorld(func() { qs.SetActiveAllThreads(false, true) })
		drainAll(qs)
	}

	cancel()
	wg.Wait()
}

func TestMutator_RunShared(t *testing.T) {
	sp := NewSafepoint()
	registry := NewRegistry(sp, nil)
	qs := newQueueSet(t, registry, 16)
	sp.StopTheWorld(func() { qs.SetActiveAllThreads(true, false) })

	m := NewMutator(registry, qs, &countingSource{size: 5}, 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.RunShared(ctx) }()

	deadline := time.After(2 * time.Second)
	for m.Writes() < 500 {
		select {
		case <-deadline:
			t.Fatal("shared writer made no progress")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("RunShared() error = %v", err)
	}

	if registry.Len() != 0 {
		t.Errorf("registry Len() = %d, want 0", registry.Len())
	}
	if m.Recorded() != m.Writes() {
		t.Errorf("Recorded() = %d, Writes() = %d, want equal", m.Recorded(), m.Writes())
	}

	qs.SharedQueue().Flush()
	if got := drainAll(qs); int64(got) != m.Recorded() {
		t.Errorf("drained %d entries, want %d", got, m.Recorded())
	}
}

func TestMutator_RunSharedInactive(t *testing.T) {
	sp := NewSafepoint()
	registry := NewRegistry(sp, nil)
	qs := newQueueSet(t, registry, 16)

	m := NewMutator(registry, qs, &countingSource{size: 5}, 0, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.RunShared(ctx) }()

	deadline := time.After(2 * time.Second)
	for m.Writes() < 100 {
		select {
		case <-deadline:
			t.Fatal("shared writer made no progress")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	cancel()
	<-done

	if m.Recorded() != 0 {
		t.Errorf("Recorded() = %d while inactive, want 0", m.Recorded())
	}
	if n := qs.SharedQueue().Len(); n != 0 {
		t.Errorf("shared queue Len() = %d, want 0", n)
	}
}

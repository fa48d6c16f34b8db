package trigger

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeLeader struct {
	mu      sync.Mutex
	leaders map[string]bool
}

func newFakeLeader() *fakeLeader { return &fakeLeader{leaders: make(map[string]bool)} }

func (f *fakeLeader) set(trigger string, leader bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leaders[trigger] = leader
}

func (f *fakeLeader) IsLeader(trigger string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.leaders[trigger]
}

type fakeIdle struct {
	mu      sync.Mutex
	running map[string]int
}

func newFakeIdle() *fakeIdle { return &fakeIdle{running: make(map[string]int)} }

func (f *fakeIdle) IsIdle(workflow string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running[workflow] == 0
}

func (f *fakeIdle) Enter(workflow string) func() {
	f.mu.Lock()
	f.running[workflow]++
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		f.running[workflow]--
		f.mu.Unlock()
	}
}

func countingFire(counter *int32, mu *sync.Mutex) func(ctx context.Context) {
	return func(ctx context.Context) {
		mu.Lock()
		*counter++
		mu.Unlock()
	}
}

func TestScheduler_SuppressedWhenNotLeader(t *testing.T) {
	leader := newFakeLeader()
	leader.set("poll-et", false)
	idle := newFakeIdle()

	s, err := New(leader, idle)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var mu sync.Mutex
	var fires int32
	if err := s.RegisterTrigger("poll-et", 50*time.Millisecond, "poll-et", countingFire(&fires, &mu)); err != nil {
		t.Fatalf("RegisterTrigger: %v", err)
	}
	s.Start()
	defer s.Stop()

	time.Sleep(6200 * time.Millisecond)

	mu.Lock()
	got := fires
	mu.Unlock()
	if got != 0 {
		t.Errorf("expected 0 fires while not leader, got %d", got)
	}
}

func TestScheduler_FiresWhenLeaderAndIdle(t *testing.T) {
	leader := newFakeLeader()
	leader.set("poll-et", true)
	idle := newFakeIdle()

	s, err := New(leader, idle)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var mu sync.Mutex
	var fires int32
	if err := s.RegisterTrigger("poll-et", 200*time.Millisecond, "poll-et", countingFire(&fires, &mu)); err != nil {
		t.Fatalf("RegisterTrigger: %v", err)
	}
	s.Start()
	defer s.Stop()

	time.Sleep(6500 * time.Millisecond)

	mu.Lock()
	got := fires
	mu.Unlock()
	if got == 0 {
		t.Error("expected at least one fire once leader and idle")
	}
}

func TestScheduler_SuppressedWhenNotIdle(t *testing.T) {
	leader := newFakeLeader()
	leader.set("poll-et", true)
	idle := newFakeIdle()
	// Mark the workflow perpetually busy so the idle gate always rejects it.
	release := idle.Enter("poll-et")
	defer release()

	s, err := New(leader, idle)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var mu sync.Mutex
	var fires int32
	if err := s.RegisterTrigger("poll-et", 50*time.Millisecond, "poll-et", countingFire(&fires, &mu)); err != nil {
		t.Fatalf("RegisterTrigger: %v", err)
	}
	s.Start()
	defer s.Stop()

	time.Sleep(6200 * time.Millisecond)

	mu.Lock()
	got := fires
	mu.Unlock()
	if got != 0 {
		t.Errorf("expected 0 fires while workflow is busy, got %d", got)
	}
}

func TestScheduler_NilIdleCheckerAlwaysIdle(t *testing.T) {
	leader := newFakeLeader()
	leader.set("poll-et", true)

	s, err := New(leader, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var mu sync.Mutex
	var fires int32
	if err := s.RegisterTrigger("poll-et", 200*time.Millisecond, "poll-et", countingFire(&fires, &mu)); err != nil {
		t.Fatalf("RegisterTrigger: %v", err)
	}
	s.Start()
	defer s.Stop()

	time.Sleep(6500 * time.Millisecond)

	mu.Lock()
	got := fires
	mu.Unlock()
	if got == 0 {
		t.Error("expected at least one fire with a nil idle checker")
	}
}

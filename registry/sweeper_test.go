package registry

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"
)

// --- Unit Tests ---

func TestStaleURLs(t *testing.T) {
	now := time.Now()
	timeout := 30 * time.Second

	snapshot := map[string]time.Time{
		"http://fresh":   now.Add(-5 * time.Second),
		"http://edge":    now.Add(-timeout), // exactly at the limit: not stale
		"http://stale":   now.Add(-timeout - time.Millisecond),
		"http://ancient": now.Add(-10 * time.Minute),
	}

	stale := StaleURLs(snapshot, now, timeout)
	sort.Strings(stale)

	want := []string{"http://ancient", "http://stale"}
	if len(stale) != len(want) {
		t.Fatalf("StaleURLs = %v, want %v", stale, want)
	}
	for i := range want {
		if stale[i] != want[i] {
			t.Errorf("StaleURLs[%d] = %q, want %q", i, stale[i], want[i])
		}
	}
}

func TestStaleURLs_Empty(t *testing.T) {
	if stale := StaleURLs(nil, time.Now(), time.Second); len(stale) != 0 {
		t.Errorf("StaleURLs(nil) = %v, want empty", stale)
	}
}

func TestStaleURLs_RefreshResetsAge(t *testing.T) {
	now := time.Now()
	timeout := 30 * time.Second

	// Touched at exactly now: age is zero, survives a sweep at now and at
	// now + timeout, but not at now + timeout + epsilon.
	snapshot := map[string]time.Time{"http://a": now}

	if stale := StaleURLs(snapshot, now, timeout); len(stale) != 0 {
		t.Errorf("sweep at touch time evicted %v", stale)
	}
	if stale := StaleURLs(snapshot, now.Add(timeout), timeout); len(stale) != 0 {
		t.Errorf("sweep at timeout boundary evicted %v", stale)
	}
	if stale := StaleURLs(snapshot, now.Add(timeout+time.Millisecond), timeout); len(stale) != 1 {
		t.Errorf("sweep past timeout kept a stale agent, got %v", stale)
	}
}

func TestSweeper_EvictsExactlyTheStaleSet(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	clock := time.Now()
	s.now = func() time.Time { return clock }

	s.Register(card("http://stale"))
	clock = clock.Add(31 * time.Second)
	s.Register(card("http://fresh"))

	sw := NewSweeper(s, SweeperConfig{Timeout: 30 * time.Second, Interval: time.Hour})
	sw.sweep()

	if _, err := s.Get("http://stale"); !errors.Is(err, ErrNotFound) {
		t.Errorf("stale agent survived the sweep: %v", err)
	}
	if _, err := s.Get("http://fresh"); err != nil {
		t.Errorf("fresh agent was evicted: %v", err)
	}
}

func TestSweeper_HeartbeatPreventsEviction(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	clock := time.Now()
	s.now = func() time.Time { return clock }

	s.Register(card("http://a"))
	clock = clock.Add(29 * time.Second)
	s.Touch("http://a")
	clock = clock.Add(29 * time.Second)

	sw := NewSweeper(s, SweeperConfig{Timeout: 30 * time.Second, Interval: time.Hour})
	sw.sweep()

	if _, err := s.Get("http://a"); err != nil {
		t.Errorf("agent heartbeating within timeout was evicted: %v", err)
	}
}

func TestSweeper_SweepSurvivesStoreClose(t *testing.T) {
	s := NewMemoryStore()
	s.Close()

	sw := NewSweeper(s, SweeperConfig{})

	// Snapshot fails against a closed store; the cycle must swallow it.
	sw.sweep()
}

// --- Integration Tests ---

func TestSweeper_StartStop(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	sw := NewSweeper(s, SweeperConfig{Timeout: time.Second, Interval: 10 * time.Millisecond})

	if err := sw.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if err := sw.Start(context.Background()); !errors.Is(err, ErrSweeperStarted) {
		t.Errorf("second Start: expected ErrSweeperStarted, got %v", err)
	}

	if err := sw.Stop(); err != nil {
		t.Fatalf("Stop error: %v", err)
	}
	if err := sw.Stop(); !errors.Is(err, ErrSweeperNotStarted) {
		t.Errorf("second Stop: expected ErrSweeperNotStarted, got %v", err)
	}
}

func TestSweeper_ContextCancellation(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	sw := NewSweeper(s, SweeperConfig{Interval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	sw.Start(ctx)
	cancel()

	select {
	case <-sw.doneCh:
	case <-time.After(time.Second):
		t.Error("sweeper did not stop on context cancellation")
	}
}

func TestSweeper_EndToEndEviction(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping timing test in short mode")
	}

	s := NewMemoryStore()
	defer s.Close()

	watch, _ := s.Watch()
	s.Register(card("http://a"))
	expectEvent(t, watch, EventRegistered, "http://a")

	sw := NewSweeper(s, SweeperConfig{Timeout: 50 * time.Millisecond, Interval: 20 * time.Millisecond})
	sw.Start(context.Background())
	defer sw.Stop()

	// Silent past timeout + interval: must be evicted.
	expectEvent(t, watch, EventEvicted, "http://a")

	if _, err := s.Get("http://a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after eviction, got %v", err)
	}
}

func TestSweeper_SteadyHeartbeatsKeepAgentAlive(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping timing test in short mode")
	}

	s := NewMemoryStore()
	defer s.Close()

	s.Register(card("http://a"))

	sw := NewSweeper(s, SweeperConfig{Timeout: 60 * time.Millisecond, Interval: 15 * time.Millisecond})
	sw.Start(context.Background())
	defer sw.Stop()

	// Heartbeat at a third of the timeout for several timeout periods.
	deadline := time.Now().Add(300 * time.Millisecond)
	for time.Now().Before(deadline) {
		if err := s.Touch("http://a"); err != nil {
			t.Fatalf("agent disappeared while heartbeating: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	agents, _ := s.List()
	if len(agents) != 1 {
		t.Errorf("List = %v, want the heartbeating agent", agents)
	}
}

package scheduler

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestRefresher_TicksWhileRunning(t *testing.T) {
	var ticks int64
	r := New(time.Second, func() { atomic.AddInt64(&ticks, 1) })

	if r.Running() {
		t.Fatal("must start stopped")
	}
	if err := r.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !r.Running() {
		t.Fatal("expected running after Start")
	}

	time.Sleep(2500 * time.Millisecond)
	r.Stop()
	n := atomic.LoadInt64(&ticks)
	if n < 1 {
		t.Fatalf("expected at least one tick, got %d", n)
	}

	time.Sleep(1500 * time.Millisecond)
	if after := atomic.LoadInt64(&ticks); after != n {
		t.Errorf("ticks after Stop: %d -> %d", n, after)
	}
}

func TestRefresher_StartIdempotent(t *testing.T) {
	r := New(time.Second, func() {})
	if err := r.Start(); err != nil {
		t.Fatal(err)
	}
	defer r.Stop()
	if err := r.Start(); err != nil {
		t.Fatalf("second Start must be a no-op, got %v", err)
	}
}

func TestRefresher_ApplyFollowsLiveFlag(t *testing.T) {
	r := New(time.Second, func() {})
	if err := r.Apply(true); err != nil {
		t.Fatal(err)
	}
	if !r.Running() {
		t.Error("Apply(true) must start the tick")
	}
	if err := r.Apply(false); err != nil {
		t.Fatal(err)
	}
	if r.Running() {
		t.Error("Apply(false) must stop the tick")
	}
}

func TestRefresher_FloorsInterval(t *testing.T) {
	r := New(10*time.Millisecond, func() {})
	if r.interval != time.Second {
		t.Errorf("expected 1s floor, got %v", r.interval)
	}
	r.SetInterval(0)
	if r.interval != time.Second {
		t.Errorf("SetInterval must floor too, got %v", r.interval)
	}
}

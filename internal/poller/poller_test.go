package poller

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestFetchesImmediatelyAndOnInterval(t *testing.T) {
	var n atomic.Int32
	p := New("dashboard", 20*time.Millisecond, func(context.Context) error {
		n.Add(1)
		return nil
	}, nil)
	p.Start(context.Background())
	defer p.Stop()

	waitFor(t, func() bool { return n.Load() >= 1 })
	waitFor(t, func() bool { return n.Load() >= 3 })
}

func TestTriggerWithoutInterval(t *testing.T) {
	var n atomic.Int32
	p := New("profile", 0, func(context.Context) error {
		n.Add(1)
		return nil
	}, nil)
	p.Start(context.Background())
	defer p.Stop()

	waitFor(t, func() bool { return n.Load() == 1 })
	p.Trigger()
	waitFor(t, func() bool { return n.Load() == 2 })
}

func TestNoFetchAfterStop(t *testing.T) {
	var n atomic.Int32
	inFlight := make(chan struct{})
	p := New("slot-map", 10*time.Millisecond, func(ctx context.Context) error {
		n.Add(1)
		if n.Load() == 1 {
			close(inFlight)
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	}, nil)
	p.Start(context.Background())

	<-inFlight
	p.Stop()
	after := n.Load()

	p.Trigger()
	time.Sleep(50 * time.Millisecond)
	if n.Load() != after {
		t.Fatalf("fetch ran after stop: %d -> %d", after, n.Load())
	}

	p.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	if n.Load() != after {
		t.Fatal("a stopped poller must not restart")
	}
}

func TestTriggerNeverBlocks(t *testing.T) {
	p := New("billing", 0, func(context.Context) error { return nil }, nil)
	for i := 0; i < 10; i++ {
		p.Trigger()
	}
}

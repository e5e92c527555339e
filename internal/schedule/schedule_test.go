package schedule

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestLoop_RunsOncePerTick(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tk := NewManualTicker()

	var calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- Loop(ctx, "test", tk, func(context.Context) { calls.Add(1) })
	}()

	tk.Tick()
	tk.Tick()
	tk.Tick() // accepted only after the second cycle returned

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("expected 3 cycles, got %d", got)
	}
}

func TestLoop_RecoversFromPanic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tk := NewManualTicker()

	var calls atomic.Int32
	go Loop(ctx, "panicky", tk, func(context.Context) {
		if calls.Add(1) == 1 {
			panic("boom")
		}
	})

	tk.Tick()
	tk.Tick()
	tk.Tick()

	if got := calls.Load(); got < 2 {
		t.Errorf("loop should keep running after a panic, got %d calls", got)
	}
}

func TestLoop_CycleFinishesAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tk := NewManualTicker()

	started := make(chan struct{})
	release := make(chan struct{})
	var cycleErr atomic.Value

	done := make(chan error, 1)
	go func() {
		done <- Loop(ctx, "slow", tk, func(c context.Context) {
			close(started)
			<-release
			if c.Err() != nil {
				cycleErr.Store(c.Err())
			}
		})
	}()

	tk.Tick()
	<-started
	cancel()
	close(release)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop after cancel")
	}
	if v := cycleErr.Load(); v != nil {
		t.Errorf("cycle context should not be cancelled, got %v", v)
	}
}

func TestNewTicker_Fires(t *testing.T) {
	tk := NewTicker(5 * time.Millisecond)
	defer tk.Stop()

	select {
	case <-tk.C():
	case <-time.After(time.Second):
		t.Fatal("real ticker never fired")
	}
}

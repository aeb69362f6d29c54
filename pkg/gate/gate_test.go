package gate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestGateEnforcesConcurrencyLimit(t *testing.T) {
	g := New(Limits{MaxConcurrentTasks: 3})
	g.Register("chromium")

	var inFlight, peak atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				release, err := g.Acquire(context.Background(), "chromium")
				if err != nil {
					// Busy; spin until admitted.
					time.Sleep(time.Millisecond)
					continue
				}
				cur := inFlight.Add(1)
				for {
					old := peak.Load()
					if cur <= old || peak.CompareAndSwap(old, cur) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				inFlight.Add(-1)
				release()
				return
			}
		}()
	}
	wg.Wait()

	if peak.Load() > 3 {
		t.Errorf("peak concurrency = %d, want <= 3", peak.Load())
	}
}

func TestGateBusySkipWithoutWait(t *testing.T) {
	g := New(Limits{MaxConcurrentTasks: 1, AcquireWait: 0})
	g.Register("chromium")

	release, err := g.Acquire(context.Background(), "chromium")
	if err != nil {
		t.Fatalf("first Acquire() failed: %v", err)
	}
	defer release()

	_, err = g.Acquire(context.Background(), "chromium")
	if !errors.Is(err, ErrSaturated) {
		t.Errorf("second Acquire() error = %v, want ErrSaturated", err)
	}
}

func TestGateBoundedWaitAdmitsWhenSlotFrees(t *testing.T) {
	g := New(Limits{MaxConcurrentTasks: 1, AcquireWait: time.Second})
	g.Register("chromium")

	release, err := g.Acquire(context.Background(), "chromium")
	if err != nil {
		t.Fatalf("first Acquire() failed: %v", err)
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		release()
	}()

	start := time.Now()
	release2, err := g.Acquire(context.Background(), "chromium")
	if err != nil {
		t.Fatalf("waiting Acquire() failed: %v", err)
	}
	defer release2()

	if time.Since(start) > 500*time.Millisecond {
		t.Error("Acquire() waited longer than necessary")
	}
}

func TestGateWaitExceededReturnsSaturated(t *testing.T) {
	g := New(Limits{MaxConcurrentTasks: 1, AcquireWait: 10 * time.Millisecond})
	g.Register("chromium")

	release, err := g.Acquire(context.Background(), "chromium")
	if err != nil {
		t.Fatalf("first Acquire() failed: %v", err)
	}
	defer release()

	_, err = g.Acquire(context.Background(), "chromium")
	if !errors.Is(err, ErrSaturated) {
		t.Errorf("Acquire() error = %v, want ErrSaturated", err)
	}
}

func TestGateContextCancellationDuringWait(t *testing.T) {
	g := New(Limits{MaxConcurrentTasks: 1, AcquireWait: time.Minute})
	g.Register("chromium")

	release, err := g.Acquire(context.Background(), "chromium")
	if err != nil {
		t.Fatalf("first Acquire() failed: %v", err)
	}
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err = g.Acquire(ctx, "chromium")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Acquire() error = %v, want context.Canceled", err)
	}
}

func TestGateIndependentEngines(t *testing.T) {
	g := New(Limits{MaxConcurrentTasks: 1})
	g.Register("a")
	g.Register("b")

	releaseA, err := g.Acquire(context.Background(), "a")
	if err != nil {
		t.Fatalf("Acquire(a) failed: %v", err)
	}
	defer releaseA()

	// Saturating a must not affect b.
	releaseB, err := g.Acquire(context.Background(), "b")
	if err != nil {
		t.Fatalf("Acquire(b) failed while a saturated: %v", err)
	}
	defer releaseB()
}

func TestGateUnknownEngine(t *testing.T) {
	g := New(Limits{})

	_, err := g.Acquire(context.Background(), "ghost")
	if !errors.Is(err, ErrUnknownEngine) {
		t.Errorf("Acquire() error = %v, want ErrUnknownEngine", err)
	}
}

func TestGateReleaseIsIdempotent(t *testing.T) {
	g := New(Limits{MaxConcurrentTasks: 2})
	g.Register("chromium")

	release, err := g.Acquire(context.Background(), "chromium")
	if err != nil {
		t.Fatal(err)
	}

	release()
	release() // double release must not free a second slot

	if got := g.InFlight("chromium"); got != 0 {
		t.Errorf("InFlight() = %d, want 0", got)
	}
}

func TestGateUpdateAffectsSubsequentAdmissionsOnly(t *testing.T) {
	g := New(Limits{MaxConcurrentTasks: 1})
	g.Register("chromium")

	// Occupy the single slot under the old limits.
	releaseOld, err := g.Acquire(context.Background(), "chromium")
	if err != nil {
		t.Fatal(err)
	}

	// Raise the limit: new admissions see fresh capacity immediately.
	g.Update(Limits{MaxConcurrentTasks: 2})

	r1, err := g.Acquire(context.Background(), "chromium")
	if err != nil {
		t.Fatalf("Acquire() after update failed: %v", err)
	}
	r2, err := g.Acquire(context.Background(), "chromium")
	if err != nil {
		t.Fatalf("second Acquire() after update failed: %v", err)
	}
	if _, err := g.Acquire(context.Background(), "chromium"); !errors.Is(err, ErrSaturated) {
		t.Errorf("third Acquire() error = %v, want ErrSaturated", err)
	}

	// The pre-update task releases into its original semaphore without
	// disturbing the new one.
	releaseOld()
	r1()
	r2()

	if got := g.InFlight("chromium"); got != 0 {
		t.Errorf("InFlight() = %d, want 0", got)
	}
}

func TestGateLimitsDefaults(t *testing.T) {
	l := Limits{}.WithDefaults()
	if l.MaxConcurrentTasks <= 0 {
		t.Error("MaxConcurrentTasks default not applied")
	}
	if l.TaskTimeout <= 0 {
		t.Error("TaskTimeout default not applied")
	}
}

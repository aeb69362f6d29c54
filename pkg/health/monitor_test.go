package health

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// fakeSource is a ProbeSource with scriptable probe outcomes.
type fakeSource struct {
	probes map[string]ProbeFunc
}

func (f *fakeSource) Probes() map[string]ProbeFunc {
	out := make(map[string]ProbeFunc, len(f.probes))
	for name, p := range f.probes {
		out[name] = p
	}
	return out
}

func alwaysHealthy(ctx context.Context) error { return nil }

func alwaysFailing(ctx context.Context) error { return errors.New("probe failed") }

func TestMonitorForceCheckUpdatesOnlyTarget(t *testing.T) {
	tr := NewTracker(DefaultThresholds())
	tr.Register("a")
	tr.Register("b")

	src := &fakeSource{probes: map[string]ProbeFunc{
		"a": alwaysHealthy,
		"b": alwaysFailing,
	}}
	m := NewMonitor(tr, src, MonitorConfig{Interval: time.Hour})

	before := tr.Snapshot()

	if ok := m.ForceCheck(context.Background(), "b"); !ok {
		t.Fatal("ForceCheck() did not find engine b")
	}

	after := tr.Snapshot()

	// Only b changed.
	if after["a"] != before["a"] {
		t.Errorf("record for a changed: before=%+v after=%+v", before["a"], after["a"])
	}
	if after["b"].Status != StatusUnhealthy {
		t.Errorf("record for b = %v, want unhealthy", after["b"].Status)
	}
	if after["b"].LastCheckedAt.IsZero() {
		t.Error("LastCheckedAt for b not set")
	}
}

func TestMonitorForceCheckUnknownEngine(t *testing.T) {
	tr := NewTracker(DefaultThresholds())
	src := &fakeSource{probes: map[string]ProbeFunc{}}
	m := NewMonitor(tr, src, MonitorConfig{Interval: time.Hour})

	if m.ForceCheck(context.Background(), "ghost") {
		t.Error("ForceCheck() claimed success for an unknown engine")
	}
}

func TestMonitorForceCheckAll(t *testing.T) {
	tr := NewTracker(DefaultThresholds())
	tr.Register("a")
	tr.Register("b")

	src := &fakeSource{probes: map[string]ProbeFunc{
		"a": alwaysHealthy,
		"b": alwaysFailing,
	}}
	m := NewMonitor(tr, src, MonitorConfig{Interval: time.Hour})

	m.ForceCheckAll(context.Background())

	snap := tr.Snapshot()
	if snap["a"].Status != StatusHealthy {
		t.Errorf("a = %v, want healthy", snap["a"].Status)
	}
	if snap["b"].Status != StatusUnhealthy {
		t.Errorf("b = %v, want unhealthy", snap["b"].Status)
	}
}

func TestMonitorPeriodicProbing(t *testing.T) {
	tr := NewTracker(DefaultThresholds())
	tr.Register("a")

	var calls atomic.Int64
	src := &fakeSource{probes: map[string]ProbeFunc{
		"a": func(ctx context.Context) error {
			calls.Add(1)
			return nil
		},
	}}

	m := NewMonitor(tr, src, MonitorConfig{Interval: 10 * time.Millisecond, ProbeTimeout: time.Second})
	m.Start()
	defer m.Stop()

	deadline := time.After(2 * time.Second)
	for calls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("probe ran %d times, want at least 3", calls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}

	rec, _ := tr.Read("a")
	if rec.Status != StatusHealthy {
		t.Errorf("status = %v, want healthy", rec.Status)
	}
}

func TestMonitorStopAbandonsInFlightProbes(t *testing.T) {
	tr := NewTracker(DefaultThresholds())
	tr.Register("slow")

	started := make(chan struct{}, 16)
	src := &fakeSource{probes: map[string]ProbeFunc{
		"slow": func(ctx context.Context) error {
			started <- struct{}{}
			<-ctx.Done()
			return ctx.Err()
		},
	}}

	m := NewMonitor(tr, src, MonitorConfig{Interval: 5 * time.Millisecond, ProbeTimeout: time.Minute})
	m.Start()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("probe never started")
	}

	done := make(chan struct{})
	go func() {
		m.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() blocked on an in-flight probe")
	}

	// The abandoned probe's result must have been discarded.
	rec, _ := tr.Read("slow")
	if rec.Status != StatusUnknown {
		t.Errorf("abandoned probe updated the record: status = %v", rec.Status)
	}
}

func TestMonitorStartIsIdempotent(t *testing.T) {
	tr := NewTracker(DefaultThresholds())
	src := &fakeSource{probes: map[string]ProbeFunc{}}
	m := NewMonitor(tr, src, MonitorConfig{Interval: time.Hour})

	m.Start()
	m.Start() // no-op
	m.Stop()
	m.Stop() // no-op
}

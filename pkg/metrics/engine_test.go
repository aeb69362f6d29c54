package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"typeset-hq/gutenberg/pkg/health"
)

func TestNewEngineMetricsDisabled(t *testing.T) {
	if em := NewEngineMetrics(Config{Enabled: false}, prometheus.NewRegistry()); em != nil {
		t.Error("disabled config should return nil")
	}
	if em := NewEngineMetrics(Config{Enabled: true}, nil); em != nil {
		t.Error("nil registry should return nil")
	}
}

func TestNilReceiverIsSafe(t *testing.T) {
	// The manager holds a nil *EngineMetrics when metrics are disabled;
	// every method must be a no-op rather than a panic.
	var em *EngineMetrics
	em.UpdateHealth("chromium", health.StatusHealthy)
	em.RecordAttempt("chromium", OutcomeSuccess)
	em.RecordLatency("chromium", 1.5)
	em.SetInFlight("chromium", 2)
}

func TestNewEngineMetricsRegisters(t *testing.T) {
	registry := prometheus.NewRegistry()
	em := NewEngineMetrics(Config{Enabled: true}, registry)
	if em == nil {
		t.Fatal("expected metrics instance")
	}

	em.UpdateHealth("chromium", health.StatusDegraded)
	em.RecordAttempt("chromium", OutcomeTimeout)
	em.RecordLatency("chromium", 0.25)
	em.SetInFlight("chromium", 1)

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(families) == 0 {
		t.Error("expected registered metric families")
	}

	found := make(map[string]bool)
	for _, fam := range families {
		found[fam.GetName()] = true
	}
	for _, want := range []string{
		"gutenberg_engine_health",
		"gutenberg_engine_attempts_total",
		"gutenberg_engine_render_seconds",
		"gutenberg_engine_in_flight",
	} {
		if !found[want] {
			t.Errorf("metric %s not registered; have %v", want, found)
		}
	}
}

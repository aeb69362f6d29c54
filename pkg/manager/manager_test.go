package manager

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"typeset-hq/gutenberg/internal/enginetest"
	"typeset-hq/gutenberg/pkg/engines"
	"typeset-hq/gutenberg/pkg/gate"
	"typeset-hq/gutenberg/pkg/health"
	"typeset-hq/gutenberg/pkg/selection"
)

// testOptions returns manager options with the periodic monitor effectively
// disabled so tests control health transitions directly.
func testOptions() Options {
	return Options{
		Thresholds: health.Thresholds{PromoteAfter: 1, DemoteAfter: 1},
		Monitor: health.MonitorConfig{
			Interval:     time.Hour,
			ProbeTimeout: time.Second,
		},
		Limits: gate.Limits{
			MaxConcurrentTasks: 4,
			TaskTimeout:        5 * time.Second,
		},
	}
}

func newTestManager(t *testing.T, opts Options, engs ...engines.Engine) *Manager {
	t.Helper()

	m := New(opts)
	for _, eng := range engs {
		if err := m.Register(eng); err != nil {
			t.Fatalf("Register(%s): %v", eng.Name(), err)
		}
	}
	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() { m.Cleanup() })
	return m
}

func renderRequest() *engines.GenerationRequest {
	return &engines.GenerationRequest{
		HTMLContent: "<html><body><h1>Title</h1></body></html>",
	}
}

func TestGenerateUsesFirstCandidate(t *testing.T) {
	primary := enginetest.NewMockEngine("chromium", 0)
	fallback := enginetest.NewMockEngine("remote", 1)
	m := newTestManager(t, testOptions(), primary, fallback)

	result := m.Generate(context.Background(), renderRequest())
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if result.Metadata == nil || result.Metadata.EngineUsed != "chromium" {
		t.Fatalf("expected chromium to serve the request, metadata = %+v", result.Metadata)
	}
	if fallback.GenerateCalls() != 0 {
		t.Errorf("fallback should not have been attempted, got %d calls", fallback.GenerateCalls())
	}
	if len(result.PDF) == 0 {
		t.Error("expected PDF bytes in result when no output path is set")
	}
}

func TestGenerateFailsOverAfterRetries(t *testing.T) {
	primary := enginetest.NewMockEngine("chromium", 0)
	primary.SetGenerateError(errors.New("render crashed"))
	fallback := enginetest.NewMockEngine("remote", 1)

	opts := testOptions()
	opts.Retry = RetryPolicy{MaxRetries: 1}
	m := newTestManager(t, opts, primary, fallback)

	result := m.Generate(context.Background(), renderRequest())
	if !result.Success {
		t.Fatalf("expected fallback success, got error %q", result.Error)
	}
	if result.Metadata.EngineUsed != "remote" {
		t.Errorf("EngineUsed = %q, want remote", result.Metadata.EngineUsed)
	}
	// Initial attempt plus one retry on the primary before failing over.
	if got := primary.GenerateCalls(); got != 2 {
		t.Errorf("primary attempts = %d, want 2", got)
	}
	if got := fallback.GenerateCalls(); got != 1 {
		t.Errorf("fallback attempts = %d, want 1", got)
	}
}

func TestGenerateAllEnginesFailed(t *testing.T) {
	a := enginetest.NewMockEngine("chromium", 0)
	a.SetGenerateError(errors.New("browser gone"))
	b := enginetest.NewMockEngine("remote", 1)
	b.SetGenerateError(errors.New("service 503"))

	m := newTestManager(t, testOptions(), a, b)

	result := m.Generate(context.Background(), renderRequest())
	if result.Success {
		t.Fatal("expected failure result")
	}
	for _, want := range []string{"chromium", "browser gone", "remote", "service 503"} {
		if !strings.Contains(result.Error, want) {
			t.Errorf("failure message %q missing %q", result.Error, want)
		}
	}
}

func TestGenerateNeverReturnsSuccessWhenAllUnhealthy(t *testing.T) {
	a := enginetest.NewMockEngine("chromium", 0)
	a.SetGenerateError(errors.New("down"))
	a.SetProbeError(errors.New("down"))
	m := newTestManager(t, testOptions(), a)

	// Drive the engine unhealthy (one demotion step per failed probe), then
	// confirm Generate still resolves to a regular failure result.
	for i := 0; i < 2; i++ {
		if err := m.ForceHealthCheck(context.Background(), "chromium"); err != nil {
			t.Fatalf("ForceHealthCheck: %v", err)
		}
	}
	statuses := m.GetEngineStatus()
	if statuses["chromium"].Status != "unhealthy" {
		t.Fatalf("status = %q, want unhealthy", statuses["chromium"].Status)
	}

	result := m.Generate(context.Background(), renderRequest())
	if result.Success {
		t.Fatal("expected failure result")
	}
	if result.Error == "" {
		t.Fatal("failure result must carry an error message")
	}
}

func TestGenerateBeforeInitialize(t *testing.T) {
	m := New(testOptions())
	if err := m.Register(enginetest.NewMockEngine("chromium", 0)); err != nil {
		t.Fatalf("Register: %v", err)
	}

	result := m.Generate(context.Background(), renderRequest())
	if result.Success {
		t.Fatal("expected failure before Initialize")
	}
	if !strings.Contains(result.Error, "not initialized") {
		t.Errorf("error = %q, want not-initialized", result.Error)
	}
}

func TestGeneratePreferredEngine(t *testing.T) {
	primary := enginetest.NewMockEngine("chromium", 0)
	preferred := enginetest.NewMockEngine("remote", 1)
	m := newTestManager(t, testOptions(), primary, preferred)

	req := renderRequest()
	req.PreferredEngine = "remote"

	result := m.Generate(context.Background(), req)
	if !result.Success {
		t.Fatalf("expected success, got %q", result.Error)
	}
	if result.Metadata.EngineUsed != "remote" {
		t.Errorf("EngineUsed = %q, want remote", result.Metadata.EngineUsed)
	}
}

func TestGenerateAnchorRequestsPreferCapableEngines(t *testing.T) {
	noProbing := enginetest.NewMockEngine("chromium", 0)
	noProbing.SetCapabilities(engines.Capabilities{
		SupportsHeaderFooter: true,
		SupportsScaling:      true,
	})
	capable := enginetest.NewMockEngine("remote", 1)
	m := newTestManager(t, testOptions(), noProbing, capable)

	// Without the anchor flag the normal candidate order holds.
	plain := m.Generate(context.Background(), renderRequest())
	if plain.Metadata.EngineUsed != "chromium" {
		t.Errorf("EngineUsed = %q, want chromium for plain requests", plain.Metadata.EngineUsed)
	}

	req := renderRequest()
	req.CollectAnchors = true

	result := m.Generate(context.Background(), req)
	if !result.Success {
		t.Fatalf("expected success, got %q", result.Error)
	}
	if result.Metadata.EngineUsed != "remote" {
		t.Errorf("EngineUsed = %q, want the anchor-capable remote", result.Metadata.EngineUsed)
	}

	// An incapable engine is still a last resort for anchor requests.
	capable.SetGenerateError(errors.New("service 503"))
	fallback := m.Generate(context.Background(), req)
	if !fallback.Success {
		t.Fatalf("expected fallback success, got %q", fallback.Error)
	}
	if fallback.Metadata.EngineUsed != "chromium" {
		t.Errorf("EngineUsed = %q, want chromium as last resort", fallback.Metadata.EngineUsed)
	}
}

func TestGenerateWritesOutputPath(t *testing.T) {
	eng := enginetest.NewMockEngine("chromium", 0)
	m := newTestManager(t, testOptions(), eng)

	path := filepath.Join(t.TempDir(), "out.pdf")
	req := renderRequest()
	req.OutputPath = path

	result := m.Generate(context.Background(), req)
	if !result.Success {
		t.Fatalf("expected success, got %q", result.Error)
	}
	if result.OutputPath != path {
		t.Errorf("OutputPath = %q, want %q", result.OutputPath, path)
	}
	if len(result.PDF) != 0 {
		t.Error("PDF bytes should not be duplicated when writing to a file")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if len(data) == 0 {
		t.Error("output file is empty")
	}
}

func TestGenerateBusySkipsToNextCandidate(t *testing.T) {
	slow := enginetest.NewMockEngine("chromium", 0)
	slow.SetDelay(200 * time.Millisecond)
	fast := enginetest.NewMockEngine("remote", 1)

	opts := testOptions()
	opts.Limits = gate.Limits{MaxConcurrentTasks: 1, TaskTimeout: 5 * time.Second}
	m := newTestManager(t, opts, slow, fast)

	// Saturate the slow engine's single slot.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		m.Generate(context.Background(), renderRequest())
	}()

	// Wait until the slot is actually held.
	deadline := time.Now().Add(2 * time.Second)
	for slow.GenerateCalls() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	result := m.Generate(context.Background(), renderRequest())
	wg.Wait()

	if !result.Success {
		t.Fatalf("expected fallback success, got %q", result.Error)
	}
	if result.Metadata.EngineUsed != "remote" {
		t.Errorf("EngineUsed = %q, want remote (busy skip)", result.Metadata.EngineUsed)
	}
}

func TestGenerateConcurrencyCap(t *testing.T) {
	eng := enginetest.NewMockEngine("chromium", 0)
	eng.SetDelay(50 * time.Millisecond)

	opts := testOptions()
	opts.Limits = gate.Limits{
		MaxConcurrentTasks: 2,
		AcquireWait:        5 * time.Second,
		TaskTimeout:        5 * time.Second,
	}
	m := newTestManager(t, opts, eng)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if result := m.Generate(context.Background(), renderRequest()); !result.Success {
				t.Errorf("unexpected failure: %q", result.Error)
			}
		}()
	}
	wg.Wait()

	if peak := eng.MaxInFlight(); peak > 2 {
		t.Errorf("peak concurrency = %d, exceeds limit 2", peak)
	}
}

func TestGenerateTimeoutClassification(t *testing.T) {
	eng := enginetest.NewMockEngine("chromium", 0)
	eng.SetDelay(500 * time.Millisecond)

	opts := testOptions()
	opts.Limits = gate.Limits{MaxConcurrentTasks: 1, TaskTimeout: 30 * time.Millisecond}
	m := newTestManager(t, opts, eng)

	result := m.Generate(context.Background(), renderRequest())
	if result.Success {
		t.Fatal("expected timeout failure")
	}
	if !strings.Contains(result.Error, "timed out") {
		t.Errorf("error = %q, want a timeout message", result.Error)
	}

	stats := m.GetEngineMetrics()["chromium"]
	if stats.TotalTimeouts == 0 {
		t.Error("expected at least one recorded timeout")
	}
	if stats.TotalFailures != stats.TotalTimeouts {
		t.Errorf("failures = %d, timeouts = %d; timeouts should count as failures",
			stats.TotalFailures, stats.TotalTimeouts)
	}
}

func TestGenerateCallerCancellationLeavesHealthUntouched(t *testing.T) {
	eng := enginetest.NewMockEngine("chromium", 0)
	eng.SetDelay(time.Hour)

	// DemoteAfter is 1 in testOptions, so a single failure outcome would
	// demote the engine immediately.
	m := newTestManager(t, testOptions(), eng)
	if err := m.ForceHealthCheck(context.Background(), "chromium"); err != nil {
		t.Fatalf("ForceHealthCheck: %v", err)
	}
	if got := m.GetEngineStatus()["chromium"].Status; got != "healthy" {
		t.Fatalf("status before = %q, want healthy", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)
	defer cancel()

	result := m.Generate(ctx, renderRequest())
	if result.Success {
		t.Fatal("expected failure result after cancellation")
	}

	st := m.GetEngineStatus()["chromium"]
	if st.Status != "healthy" {
		t.Errorf("status after = %q, want healthy; caller cancellation must not demote", st.Status)
	}
	if st.ConsecutiveFailures != 0 {
		t.Errorf("consecutive failures = %d, want 0", st.ConsecutiveFailures)
	}
	stats := m.GetEngineMetrics()["chromium"]
	if stats.TotalFailures != 0 {
		t.Errorf("total failures = %d, want 0", stats.TotalFailures)
	}
}

func TestForceHealthCheckUnknownEngine(t *testing.T) {
	m := newTestManager(t, testOptions(), enginetest.NewMockEngine("chromium", 0))

	err := m.ForceHealthCheck(context.Background(), "nope")
	if !errors.Is(err, ErrEngineNotFound) {
		t.Errorf("err = %v, want ErrEngineNotFound", err)
	}
}

func TestHealthyEnginesExcludesFailed(t *testing.T) {
	good := enginetest.NewMockEngine("chromium", 0)
	bad := enginetest.NewMockEngine("remote", 1)
	bad.SetProbeError(errors.New("unreachable"))

	m := newTestManager(t, testOptions(), good, bad)
	if err := m.ForceHealthCheck(context.Background(), ""); err != nil {
		t.Fatalf("ForceHealthCheck: %v", err)
	}

	healthy := m.GetHealthyEngines()
	if len(healthy) != 1 || healthy[0] != "chromium" {
		t.Errorf("healthy = %v, want [chromium]", healthy)
	}
	if available := m.GetAvailableEngines(); len(available) != 2 {
		t.Errorf("available = %v, want both engines", available)
	}
}

func TestUpdateConfigStrategy(t *testing.T) {
	a := enginetest.NewMockEngine("chromium", 0)
	b := enginetest.NewMockEngine("remote", 1)
	m := newTestManager(t, testOptions(), a, b)

	m.UpdateConfig(ConfigUpdate{
		Strategy: selection.NewPrimaryFirst("remote", []string{"chromium"}),
	})

	result := m.Generate(context.Background(), renderRequest())
	if !result.Success {
		t.Fatalf("expected success, got %q", result.Error)
	}
	if result.Metadata.EngineUsed != "remote" {
		t.Errorf("EngineUsed = %q, want remote after strategy update", result.Metadata.EngineUsed)
	}
}

func TestUpdateConfigLimitsAffectNewAdmissionsOnly(t *testing.T) {
	eng := enginetest.NewMockEngine("chromium", 0)
	eng.SetDelay(100 * time.Millisecond)

	opts := testOptions()
	opts.Limits = gate.Limits{MaxConcurrentTasks: 1, TaskTimeout: 5 * time.Second}
	m := newTestManager(t, opts, eng)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		m.Generate(context.Background(), renderRequest())
	}()

	deadline := time.Now().Add(2 * time.Second)
	for eng.GenerateCalls() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	m.UpdateConfig(ConfigUpdate{
		Limits: &gate.Limits{MaxConcurrentTasks: 2, TaskTimeout: 5 * time.Second},
	})

	// New admission succeeds against the fresh limit even though the old
	// task still holds its original slot.
	result := m.Generate(context.Background(), renderRequest())
	wg.Wait()

	if !result.Success {
		t.Fatalf("expected success under updated limits, got %q", result.Error)
	}
}

func TestCleanupDisposesAndFailsFast(t *testing.T) {
	eng := enginetest.NewMockEngine("chromium", 0)
	m := New(testOptions())
	if err := m.Register(eng); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if err := m.Cleanup(); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if !eng.Disposed() {
		t.Error("engine was not disposed")
	}

	result := m.Generate(context.Background(), renderRequest())
	if result.Success {
		t.Fatal("expected failure after Cleanup")
	}
	if !strings.Contains(result.Error, "not initialized") {
		t.Errorf("error = %q, want not-initialized", result.Error)
	}

	// Idempotent.
	if err := m.Cleanup(); err != nil {
		t.Fatalf("second Cleanup: %v", err)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	m := New(testOptions())
	if err := m.Register(enginetest.NewMockEngine("chromium", 0)); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if err := m.Register(enginetest.NewMockEngine("chromium", 5)); err == nil {
		t.Fatal("expected duplicate registration error")
	}
}

func TestInitializeIdempotent(t *testing.T) {
	eng := enginetest.NewMockEngine("chromium", 0)
	m := newTestManager(t, testOptions(), eng)

	before := eng.ProbeCalls()
	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("second Initialize: %v", err)
	}
	if eng.ProbeCalls() != before {
		t.Error("second Initialize should be a no-op")
	}
}

func TestRequestIDAssigned(t *testing.T) {
	m := newTestManager(t, testOptions(), enginetest.NewMockEngine("chromium", 0))

	req := renderRequest()
	if result := m.Generate(context.Background(), req); !result.Success {
		t.Fatalf("expected success, got %q", result.Error)
	}
	if req.RequestID == "" {
		t.Error("expected a generated request ID")
	}
}

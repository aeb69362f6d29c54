// Package enginetest provides a configurable in-memory engine for tests.
package enginetest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"typeset-hq/gutenberg/pkg/engines"
)

// MockEngine is a configurable implementation of the Engine interface for
// testing. It is safe for concurrent use.
type MockEngine struct {
	name     string
	priority int
	caps     engines.Capabilities

	mu          sync.Mutex
	generateErr error
	probeErr    error
	initErr     error
	delay       time.Duration
	output      *engines.RenderOutput

	generateCalls atomic.Int64
	probeCalls    atomic.Int64
	inFlight      atomic.Int64
	maxInFlight   atomic.Int64
	initialized   atomic.Bool
	disposed      atomic.Bool
}

// NewMockEngine creates a mock engine that succeeds with a small PDF payload.
func NewMockEngine(name string, priority int) *MockEngine {
	return &MockEngine{
		name:     name,
		priority: priority,
		caps: engines.Capabilities{
			SupportsAnchorProbing: true,
			SupportsHeaderFooter:  true,
			SupportsScaling:       true,
		},
		output: &engines.RenderOutput{
			PDF:   []byte("%PDF-1.7 mock"),
			Pages: 1,
		},
	}
}

// SetGenerateError makes future Generate calls fail with err. Pass nil to
// restore success.
func (m *MockEngine) SetGenerateError(err error) {
	m.mu.Lock()
	m.generateErr = err
	m.mu.Unlock()
}

// SetProbeError makes future Probe calls fail with err.
func (m *MockEngine) SetProbeError(err error) {
	m.mu.Lock()
	m.probeErr = err
	m.mu.Unlock()
}

// SetInitError makes Initialize fail with err.
func (m *MockEngine) SetInitError(err error) {
	m.mu.Lock()
	m.initErr = err
	m.mu.Unlock()
}

// SetDelay makes Generate block for d (or until the context expires).
func (m *MockEngine) SetDelay(d time.Duration) {
	m.mu.Lock()
	m.delay = d
	m.mu.Unlock()
}

// SetOutput replaces the render output returned on success.
func (m *MockEngine) SetOutput(out *engines.RenderOutput) {
	m.mu.Lock()
	m.output = out
	m.mu.Unlock()
}

// SetCapabilities replaces the advertised capabilities.
func (m *MockEngine) SetCapabilities(caps engines.Capabilities) {
	m.mu.Lock()
	m.caps = caps
	m.mu.Unlock()
}

// GenerateCalls returns how many times Generate was invoked.
func (m *MockEngine) GenerateCalls() int64 { return m.generateCalls.Load() }

// ProbeCalls returns how many times Probe was invoked.
func (m *MockEngine) ProbeCalls() int64 { return m.probeCalls.Load() }

// MaxInFlight returns the peak number of concurrent Generate calls observed.
func (m *MockEngine) MaxInFlight() int64 { return m.maxInFlight.Load() }

// Disposed reports whether Dispose has been called.
func (m *MockEngine) Disposed() bool { return m.disposed.Load() }

// Name implements Engine.
func (m *MockEngine) Name() string { return m.name }

// Priority implements Engine.
func (m *MockEngine) Priority() int { return m.priority }

// Capabilities implements Engine.
func (m *MockEngine) Capabilities() engines.Capabilities {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.caps
}

// Initialize implements Engine.
func (m *MockEngine) Initialize(ctx context.Context) error {
	m.mu.Lock()
	err := m.initErr
	m.mu.Unlock()
	if err != nil {
		return err
	}
	m.initialized.Store(true)
	return nil
}

// Generate implements Engine.
func (m *MockEngine) Generate(ctx context.Context, req *engines.GenerationRequest) (*engines.RenderOutput, error) {
	m.generateCalls.Add(1)

	cur := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		peak := m.maxInFlight.Load()
		if cur <= peak || m.maxInFlight.CompareAndSwap(peak, cur) {
			break
		}
	}

	m.mu.Lock()
	err := m.generateErr
	delay := m.delay
	out := m.output
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err != nil {
		return nil, err
	}
	return out, nil
}

// Probe implements Engine.
func (m *MockEngine) Probe(ctx context.Context) error {
	m.probeCalls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.probeErr != nil {
		return fmt.Errorf("engine %s: %w", m.name, m.probeErr)
	}
	return nil
}

// Dispose implements Engine.
func (m *MockEngine) Dispose() error {
	m.disposed.Store(true)
	m.initialized.Store(false)
	return nil
}

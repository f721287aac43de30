package health_test

import (
	"github.com/nodalsync/configsync/internal/health"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNewTracker(t *testing.T) {
	t.Parallel()
	logger := zerolog.Nop()
	cfg := health.CircuitBreakerConfig{
		FailureThreshold: 5,
		OpenDurationMS:   30000,
		HalfOpenProbes:   3,
	}

	tracker := health.NewTracker(cfg, &logger)

	if tracker == nil {
		t.Fatal("expected non-nil health.Tracker")
	}
	if !tracker.HasCircuits() {
		t.Error("expected initialized circuits map")
	}
}

func TestTrackerGetOrCreateCircuitCreatesOnDemand(t *testing.T) {
	t.Parallel()
	logger := zerolog.Nop()
	cfg := health.CircuitBreakerConfig{
		FailureThreshold: 5,
		OpenDurationMS:   30000,
		HalfOpenProbes:   3,
	}

	tracker := health.NewTracker(cfg, &logger)

	breaker := tracker.GetOrCreateCircuit("endpoint-a")
	if breaker == nil {
		t.Fatal("expected non-nil health.CircuitBreaker")
	}
	if breaker.Name() != "endpoint-a" {
		t.Errorf("expected name 'endpoint-a', got %q", breaker.Name())
	}
}

func TestTrackerGetOrCreateCircuitReturnsSame(t *testing.T) {
	t.Parallel()
	logger := zerolog.Nop()
	cfg := health.CircuitBreakerConfig{OpenDurationMS: 0, FailureThreshold: 0, HalfOpenProbes: 0}

	tracker := health.NewTracker(cfg, &logger)

	breaker1 := tracker.GetOrCreateCircuit("endpoint-a")
	breaker2 := tracker.GetOrCreateCircuit("endpoint-a")

	if breaker1 != breaker2 {
		t.Error("expected same health.CircuitBreaker instance for same endpoint")
	}
}

func TestTrackerIsHealthyFuncReturnsTrueWhenClosed(t *testing.T) {
	t.Parallel()
	logger := zerolog.Nop()
	cfg := health.CircuitBreakerConfig{
		FailureThreshold: 5,
		OpenDurationMS:   30000,
		HalfOpenProbes:   3,
	}

	tracker := health.NewTracker(cfg, &logger)
	isHealthy := tracker.IsHealthyFunc("endpoint-a")

	// Circuit starts closed, should be healthy
	if !isHealthy() {
		t.Error("expected IsHealthyFunc to return true when circuit is closed")
	}
}

func TestTrackerIsHealthyFuncReturnsFalseWhenOpen(t *testing.T) {
	t.Parallel()
	logger := zerolog.Nop()
	cfg := health.CircuitBreakerConfig{
		FailureThreshold: 2,
		OpenDurationMS:   30000,
		HalfOpenProbes:   1,
	}

	tracker := health.NewTracker(cfg, &logger)
	testErr := errors.New("test error")

	// Open the circuit
	tracker.RecordFailure("endpoint-a", testErr)
	tracker.RecordFailure("endpoint-a", testErr)

	isHealthy := tracker.IsHealthyFunc("endpoint-a")

	if isHealthy() {
		t.Error("expected IsHealthyFunc to return false when circuit is open")
	}
}

func TestTrackerIsHealthyFuncReturnsTrueWhenHalfOpen(t *testing.T) {
	t.Parallel()
	logger := zerolog.Nop()
	cfg := health.CircuitBreakerConfig{
		FailureThreshold: 2,
		OpenDurationMS:   50, // Short timeout for testing
		HalfOpenProbes:   1,
	}

	tracker := health.NewTracker(cfg, &logger)
	testErr := errors.New("test error")

	// Open the circuit
	tracker.RecordFailure("endpoint-a", testErr)
	tracker.RecordFailure("endpoint-a", testErr)

	// Wait for timeout to transition to half-open
	time.Sleep(100 * time.Millisecond)

	// Trigger transition to half-open by calling Allow
	breaker := tracker.GetOrCreateCircuit("endpoint-a")
	done, allowErr := breaker.Allow()
	if allowErr != nil {
		t.Fatalf("expected Allow to succeed in half-open state, got: %v", allowErr)
	}
	// Leave done uncalled so the circuit stays half-open: with
	// HalfOpenProbes=1, reporting a success here would close it.
	_ = done

	isHealthy := tracker.IsHealthyFunc("endpoint-a")

	// Half-open should be considered healthy (allows probes)
	if !isHealthy() {
		t.Error("expected IsHealthyFunc to return true when circuit is half-open")
	}
}

func TestTrackerRecordSuccess(t *testing.T) {
	t.Parallel()
	logger := zerolog.Nop()
	cfg := health.CircuitBreakerConfig{
		FailureThreshold: 5,
		OpenDurationMS:   30000,
		HalfOpenProbes:   3,
	}

	tracker := health.NewTracker(cfg, &logger)

	// RecordSuccess should not panic and circuit should stay closed
	tracker.RecordSuccess("endpoint-a")

	state := tracker.GetState("endpoint-a")
	if state != health.StateClosed {
		t.Errorf("expected state CLOSED after RecordSuccess, got %s", state.String())
	}
}

func TestTrackerRecordFailure(t *testing.T) {
	t.Parallel()
	logger := zerolog.Nop()
	cfg := health.CircuitBreakerConfig{
		FailureThreshold: 2,
		OpenDurationMS:   30000,
		HalfOpenProbes:   1,
	}

	tracker := health.NewTracker(cfg, &logger)
	testErr := errors.New("test error")

	tracker.RecordFailure("endpoint-a", testErr)
	tracker.RecordFailure("endpoint-a", testErr)

	state := tracker.GetState("endpoint-a")
	if state != health.StateOpen {
		t.Errorf("expected state OPEN after threshold failures, got %s", state.String())
	}
}

func TestTrackerAllStates(t *testing.T) {
	t.Parallel()
	logger := zerolog.Nop()
	cfg := health.CircuitBreakerConfig{
		FailureThreshold: 2,
		OpenDurationMS:   30000,
		HalfOpenProbes:   1,
	}

	tracker := health.NewTracker(cfg, &logger)
	testErr := errors.New("test error")

	// Create circuits for multiple endpoints
	tracker.RecordSuccess("endpoint-a")
	tracker.RecordFailure("endpoint-b", testErr)
	tracker.RecordFailure("endpoint-b", testErr)

	states := tracker.AllStates()

	if len(states) != 2 {
		t.Errorf("expected 2 states, got %d", len(states))
	}
	if states["endpoint-a"] != health.StateClosed {
		t.Errorf("expected endpoint-a state CLOSED, got %s", states["endpoint-a"].String())
	}
	if states["endpoint-b"] != health.StateOpen {
		t.Errorf("expected endpoint-b state OPEN, got %s", states["endpoint-b"].String())
	}
}

func TestTrackerGetStateReturnsClosedForUnknown(t *testing.T) {
	t.Parallel()
	logger := zerolog.Nop()
	cfg := health.CircuitBreakerConfig{OpenDurationMS: 0, FailureThreshold: 0, HalfOpenProbes: 0}

	tracker := health.NewTracker(cfg, &logger)

	state := tracker.GetState("unknown-endpoint")
	if state != health.StateClosed {
		t.Errorf("expected health.StateClosed for unknown endpoint, got %s", state.String())
	}
}

func TestTrackerConcurrentAccess(t *testing.T) {
	t.Parallel()
	logger := zerolog.Nop()
	cfg := health.CircuitBreakerConfig{
		FailureThreshold: 100, // High threshold to avoid opening
		OpenDurationMS:   30000,
		HalfOpenProbes:   3,
	}

	tracker := health.NewTracker(cfg, &logger)

	const numGoroutines = 100
	const numOperations = 100

	var waitGroup sync.WaitGroup
	waitGroup.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer waitGroup.Done()
			endpoint := "endpoint"
			testErr := errors.New("test error")

			for j := 0; j < numOperations; j++ {
				// Mix of operations
				switch j % 5 {
				case 0:
					tracker.GetOrCreateCircuit(endpoint)
				case 1:
					tracker.RecordSuccess(endpoint)
				case 2:
					tracker.RecordFailure(endpoint, testErr)
				case 3:
					tracker.GetState(endpoint)
				case 4:
					tracker.AllStates()
				}
			}
		}()
	}

	waitGroup.Wait()

	// If we get here without deadlock or panic, the test passes
	states := tracker.AllStates()
	if len(states) != 1 {
		t.Errorf("expected 1 endpoint in states, got %d", len(states))
	}
}

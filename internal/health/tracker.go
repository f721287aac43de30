package health

import (
	"sync"

	"github.com/rs/zerolog"
)

// Tracker manages per-endpoint circuit breakers.
// It provides thread-safe access to circuit breakers and exposes
// IsHealthyFunc closures for callers that want a per-endpoint health
// predicate.
type Tracker struct {
	circuits map[string]*CircuitBreaker
	logger   *zerolog.Logger
	config   CircuitBreakerConfig
	mu       sync.RWMutex
}

// NewTracker creates a new Tracker with the given configuration.
func NewTracker(cfg CircuitBreakerConfig, logger *zerolog.Logger) *Tracker {
	return &Tracker{
		circuits: make(map[string]*CircuitBreaker),
		config:   cfg,
		logger:   logger,
	}
}

// GetOrCreateCircuit returns the circuit breaker for an endpoint, creating it if necessary.
// This method is thread-safe and uses lazy initialization.
func (t *Tracker) GetOrCreateCircuit(endpoint string) *CircuitBreaker {
	// Fast path: check if circuit exists with read lock
	t.mu.RLock()
	cb, exists := t.circuits[endpoint]
	t.mu.RUnlock()

	if exists {
		return cb
	}

	// Slow path: create circuit with write lock
	t.mu.Lock()
	defer t.mu.Unlock()

	// Double-check after acquiring write lock
	if cb, exists = t.circuits[endpoint]; exists {
		return cb
	}

	// Create new circuit breaker
	cb = NewCircuitBreaker(endpoint, t.config, t.logger)
	t.circuits[endpoint] = cb

	if t.logger != nil {
		t.logger.Debug().
			Str("endpoint", endpoint).
			Msg("created circuit breaker")
	}

	return cb
}

// IsHealthyFunc returns a closure that checks if an endpoint is healthy.
//
// An endpoint is considered healthy if its circuit is:
//   - CLOSED: Normal operation, requests flow through
//   - HALF-OPEN: Testing recovery, probe requests are allowed
//
// An endpoint is unhealthy only if the circuit is OPEN.
func (t *Tracker) IsHealthyFunc(endpoint string) func() bool {
	return func() bool {
		cb := t.GetOrCreateCircuit(endpoint)
		// OPEN = unhealthy, CLOSED/HALF-OPEN = healthy
		return cb.State() != StateOpen
	}
}

// GetState returns the current state of an endpoint's circuit breaker.
// Returns StateClosed if no circuit exists for the endpoint (healthy by default).
func (t *Tracker) GetState(endpoint string) State {
	t.mu.RLock()
	cb, exists := t.circuits[endpoint]
	t.mu.RUnlock()

	if !exists {
		return StateClosed
	}
	return cb.State()
}

// RecordSuccess records a successful operation for an endpoint.
func (t *Tracker) RecordSuccess(endpoint string) {
	cb := t.GetOrCreateCircuit(endpoint)
	cb.ReportSuccess()

	if t.logger != nil {
		t.logger.Debug().
			Str("endpoint", endpoint).
			Str("state", cb.State().String()).
			Msg("recorded success")
	}
}

// RecordFailure records a failed operation for an endpoint.
func (t *Tracker) RecordFailure(endpoint string, err error) {
	cb := t.GetOrCreateCircuit(endpoint)
	cb.ReportFailure(err)

	if t.logger != nil {
		t.logger.Debug().
			Str("endpoint", endpoint).
			Str("state", cb.State().String()).
			Err(err).
			Msg("recorded failure")
	}
}

// AllStates returns a snapshot of all endpoint circuit states.
// Useful for debugging and monitoring.
func (t *Tracker) AllStates() map[string]State {
	t.mu.RLock()
	defer t.mu.RUnlock()

	states := make(map[string]State, len(t.circuits))
	for name, cb := range t.circuits {
		states[name] = cb.State()
	}
	return states
}

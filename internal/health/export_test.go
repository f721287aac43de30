package health

// HasCircuits returns whether the circuits map is initialized (for testing).
func (t *Tracker) HasCircuits() bool {
	return t.circuits != nil
}

// NewTestBreaker creates a CircuitBreaker named "test-endpoint" for testing,
// delegating to NewCircuitBreaker with no logger.
func NewTestBreaker(failureThreshold, openDurationMS, halfOpenProbes int) *CircuitBreaker {
	cfg := CircuitBreakerConfig{
		FailureThreshold: failureThreshold,
		OpenDurationMS:   openDurationMS,
		HalfOpenProbes:   halfOpenProbes,
	}
	return NewCircuitBreaker("test-endpoint", cfg, nil)
}

package locator

import "errors"

// Sentinel errors returned by the Service Locator.
var (
	// ErrNoAvailableService is returned when the meta server's retry budget
	// is exhausted without producing a non-empty endpoint list.
	ErrNoAvailableService = errors.New("locator: no available config service")
)

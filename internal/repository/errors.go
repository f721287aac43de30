package repository

import "errors"

var (
	// ErrInitialLoadFailed is returned by Start when the first-ever sync
	// attempt does not yield a snapshot and no persisted store produced a
	// stale fallback either.
	ErrInitialLoadFailed = errors.New("repository: initial load failed")

	// ErrNamespaceNotFound is surfaced when the Config Service responds
	// 404 for a namespace; still counted as a failed attempt for retry
	// purposes.
	ErrNamespaceNotFound = errors.New("repository: namespace not released")

	// ErrLoadFailed is returned when every attempt in a sync() round was
	// exhausted without success.
	ErrLoadFailed = errors.New("repository: load failed")
)

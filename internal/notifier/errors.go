package notifier

import "errors"

var (
	// ErrNotifierStopped describes a Notifier on which Stop has been
	// called. Register reports that case by returning false, not this error.
	ErrNotifierStopped = errors.New("notifier: stopped")
)

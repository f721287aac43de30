package store

import "errors"

// ErrNotFound is returned by Load when no snapshot has ever been saved for
// the requested namespace.
var ErrNotFound = errors.New("store: snapshot not found")

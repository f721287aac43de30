package facade

import "errors"

// ErrTypeMismatch is returned by the explicit-error typed accessors
// (GetIntE, GetFloatE, GetBoolE) when a property exists
// but cannot be parsed as the requested type. The plain accessors never
// return this — they fall back to the caller-supplied default instead.
var ErrTypeMismatch = errors.New("facade: type mismatch")

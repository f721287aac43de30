package dispatcher

import "errors"

// ErrListenerFault is logged (never returned to a caller) when a listener
// panics while handling a ChangeEvent. The panic is recovered at the
// subscription boundary so one bad listener cannot affect the others or
// abort the dispatch.
var ErrListenerFault = errors.New("dispatcher: listener fault")

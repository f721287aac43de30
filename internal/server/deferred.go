package server

import (
	"sync"
)

// notificationResult is one entry of a completed long-poll response,
// returned under the namespace's original (pre-normalization) spelling.
type notificationResult struct {
	NamespaceName  string           `json:"namespaceName"`
	NotificationID int64            `json:"notificationId"`
	Messages       map[string]int64 `json:"messages,omitempty"`
}

// deferredResult parks one client's long-poll request. It is completed
// exactly once — by a matching notification, by timeout, or by the client
// disconnecting — regardless of how many of those fire concurrently.
//
// Grounded on the park/complete-exactly-once shape of Apollo's
// DeferredResultWrapper: a normalized→original namespace-name map restores
// the client's own spelling in the response, and the done channel closes
// once, by whichever path wins the race.
type deferredResult struct {
	done chan struct{}
	once sync.Once

	mu                   sync.Mutex
	result               []notificationResult
	timedOut             bool
	normalizedToOriginal map[string]string
}

func newDeferredResult(normalizedToOriginal map[string]string) *deferredResult {
	return &deferredResult{
		done:                 make(chan struct{}),
		normalizedToOriginal: normalizedToOriginal,
	}
}

// complete resolves the deferred result with notifications, restoring each
// namespace's original spelling. Only the first call among complete/timeout
// has any effect.
func (d *deferredResult) complete(notifications []notificationResult) {
	d.once.Do(func() {
		d.mu.Lock()
		for i, n := range notifications {
			if original, ok := d.normalizedToOriginal[n.NamespaceName]; ok {
				notifications[i].NamespaceName = original
			}
		}
		d.result = notifications
		d.mu.Unlock()
		close(d.done)
	})
}

// timeoutNow resolves the deferred result with the empty (304) response.
// Only the first call among complete/timeoutNow has any effect.
func (d *deferredResult) timeoutNow() {
	d.once.Do(func() {
		d.mu.Lock()
		d.timedOut = true
		d.mu.Unlock()
		close(d.done)
	})
}

// snapshot returns the completed result. Only meaningful after <-d.done.
func (d *deferredResult) snapshot() ([]notificationResult, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.result, d.timedOut
}

package server

import (
	"strings"
	"sync"
)

// propertiesSuffix is the namespace-name suffix Apollo clients historically
// append for a properties-format namespace; the server strips it before
// comparing ids so ".properties" and bare namespace names share state.
const propertiesSuffix = ".properties"

func normalizeNamespace(name string) string {
	return strings.TrimSuffix(name, propertiesSuffix)
}

// parkedHandle pairs a deferredResult with the client vector it was parked
// against, so a later publish on any one watched namespace can recompute
// the full diff across the handle's entire watch set.
type parkedHandle struct {
	result    *deferredResult
	clientIDs map[string]int64 // normalized namespace -> client's last-seen id
}

// registry tracks, per normalized namespace, the current server-side
// notification id, the message detail last published for it, and the set
// of parked deferredResults waiting on any namespace in their watch set.
type registry struct {
	mu       sync.Mutex
	ids      map[string]int64
	messages map[string]map[string]int64
	parked   map[string][]*parkedHandle
}

func newRegistry() *registry {
	return &registry{
		ids:      make(map[string]int64),
		messages: make(map[string]map[string]int64),
		parked:   make(map[string][]*parkedHandle),
	}
}

// currentID returns the server-side id for normalized, defaulting to 0.
func (r *registry) currentID(normalized string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ids[normalized]
}

// diff returns, for every namespace in clientIDs whose server-side id
// exceeds the client's, a notificationResult under the normalized name.
func (r *registry) diff(clientIDs map[string]int64) []notificationResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notificationResult
	for ns, clientID := range clientIDs {
		serverID := r.ids[ns]
		if serverID > clientID {
			out = append(out, notificationResult{
				NamespaceName:  ns,
				NotificationID: serverID,
				Messages:       r.messages[ns],
			})
		}
	}
	return out
}

// park registers h under every namespace in h.clientIDs, to be re-evaluated
// the next time any of them is published.
func (r *registry) park(h *parkedHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for ns := range h.clientIDs {
		r.parked[ns] = append(r.parked[ns], h)
	}
}

// unpark removes h from every namespace it was registered under. Safe to
// call more than once, or for a handle already resolved.
func (r *registry) unpark(h *parkedHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for ns := range h.clientIDs {
		handles := r.parked[ns]
		for i, existing := range handles {
			if existing == h {
				r.parked[ns] = append(handles[:i], handles[i+1:]...)
				break
			}
		}
	}
}

// Publish advances the server-side id for namespace to id with the given
// message detail, and completes every handle parked on it whose diff is
// non-empty, with the full diff across that handle's watch set. A handle
// whose diff is empty is removed from this namespace's list without being
// completed; it stays parked under any other namespaces it watches, and if
// there are none it resolves only by its hold timeout.
func (r *registry) Publish(namespace string, id int64, messages map[string]int64) {
	normalized := normalizeNamespace(namespace)

	r.mu.Lock()
	r.ids[normalized] = id
	r.messages[normalized] = messages
	handles := append([]*parkedHandle(nil), r.parked[normalized]...)
	delete(r.parked, normalized)
	r.mu.Unlock()

	for _, h := range handles {
		if diff := r.diff(h.clientIDs); len(diff) > 0 {
			h.result.complete(diff)
		}
	}
}

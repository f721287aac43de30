package locator

import (
	lom "github.com/samber/lo/mutable"
)

// SelectOrder returns endpoints in deal-like random order: every endpoint
// is tried once before any endpoint is tried twice within one pass. hint,
// if non-empty and present in endpoints, is moved to the front — callers
// use this to retry the endpoint a long-poll notification named before
// falling back to the random order.
//
// Adapted from ShuffleRouter's Fisher-Yates deck-dealing: rather than
// keep dealer state across calls (a shuffled deck plus a cursor), this
// reshuffles per call, since the Remote Repository and Notifier only need
// one pass through the list per sync attempt, not a running deal.
func SelectOrder(endpoints []string, hint string) []string {
	if len(endpoints) == 0 {
		return nil
	}

	order := make([]string, len(endpoints))
	copy(order, endpoints)
	lom.Shuffle(order)

	if hint == "" {
		return order
	}

	for i, e := range order {
		if e == hint {
			order[0], order[i] = order[i], order[0]
			return order
		}
	}
	return order
}

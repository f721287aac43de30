package model

// ChangeType classifies how a single configuration key differs between two
// snapshots.
type ChangeType string

const (
	ChangeAdded    ChangeType = "ADDED"
	ChangeModified ChangeType = "MODIFIED"
	ChangeDeleted  ChangeType = "DELETED"
)

// PropertyChange describes how one key differs between a previous and a new
// snapshot.
type PropertyChange struct {
	Key        string
	OldValue   string
	NewValue   string
	ChangeType ChangeType
}

// ChangeEvent bundles every PropertyChange produced by diffing two
// successive snapshots of one namespace, plus the namespace itself.
type ChangeEvent struct {
	Namespace string
	Changes   []PropertyChange
}

// Diff computes the ADDED/MODIFIED/DELETED partition between a previous
// snapshot p (which may be nil, meaning "no prior snapshot") and a new
// snapshot n. The returned slice is exhaustive over keys(p) ∪ keys(n) and
// the three change types are pairwise disjoint over that key set.
func Diff(namespace string, p, n *Snapshot) []PropertyChange {
	var prev map[string]string
	if p != nil {
		prev = p.Configurations
	}
	var next map[string]string
	if n != nil {
		next = n.Configurations
	}

	changes := make([]PropertyChange, 0, len(prev)+len(next))

	for k, nv := range next {
		if ov, ok := prev[k]; ok {
			if ov != nv {
				changes = append(changes, PropertyChange{
					Key:        k,
					OldValue:   ov,
					NewValue:   nv,
					ChangeType: ChangeModified,
				})
			}
			continue
		}
		changes = append(changes, PropertyChange{
			Key:        k,
			NewValue:   nv,
			ChangeType: ChangeAdded,
		})
	}

	for k, ov := range prev {
		if _, ok := next[k]; ok {
			continue
		}
		changes = append(changes, PropertyChange{
			Key:        k,
			OldValue:   ov,
			ChangeType: ChangeDeleted,
		})
	}

	return changes
}

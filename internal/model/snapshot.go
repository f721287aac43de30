// Package model defines the value types shared across the configuration
// sync client: immutable snapshots, change events, and the on-disk
// persisted-snapshot record.
package model

import "time"

// Snapshot is an immutable view of a namespace's configuration as last
// fetched from a Config Service. Two snapshots are considered equal iff
// their ReleaseKey values are equal; a ReleaseKey change implies at least
// one entry in Configurations differs.
//
// A Snapshot must never be mutated after construction. Callers that need a
// modified view must build a new Snapshot.
type Snapshot struct {
	AppID     string
	Cluster   string
	Namespace string

	// ReleaseKey is an opaque, server-assigned identifier for this version
	// of the namespace's configuration.
	ReleaseKey string

	// Configurations holds the namespace's key/value pairs. Insertion order
	// is not meaningful.
	Configurations map[string]string

	// NotificationMessages maps a notification channel name to the
	// monotonically increasing id last observed for it. May be nil.
	NotificationMessages map[string]int64
}

// Equal reports whether two snapshots carry the same release key. Per the
// Snapshot invariant, this is the sole equality criterion — it does not
// compare Configurations directly.
func (s *Snapshot) Equal(other *Snapshot) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.ReleaseKey == other.ReleaseKey
}

// Clone returns a deep copy of the snapshot. Used when a caller needs a
// snapshot it may safely retain past the next publication.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	cfg := make(map[string]string, len(s.Configurations))
	for k, v := range s.Configurations {
		cfg[k] = v
	}
	var msgs map[string]int64
	if s.NotificationMessages != nil {
		msgs = make(map[string]int64, len(s.NotificationMessages))
		for k, v := range s.NotificationMessages {
			msgs[k] = v
		}
	}
	return &Snapshot{
		AppID:                s.AppID,
		Cluster:              s.Cluster,
		Namespace:            s.Namespace,
		ReleaseKey:           s.ReleaseKey,
		Configurations:       cfg,
		NotificationMessages: msgs,
	}
}

// PersistedRecord is the complete, atomically-replaced serialization a
// store.Store implementation writes for a namespace: a Snapshot plus the
// time it was written.
type PersistedRecord struct {
	AppID                string            `json:"appId"`
	Cluster              string            `json:"cluster"`
	Namespace            string            `json:"namespace"`
	ReleaseKey           string            `json:"releaseKey"`
	Configurations       map[string]string `json:"configurations"`
	NotificationMessages map[string]int64  `json:"notificationMessages,omitempty"`
	WrittenAt            time.Time         `json:"writtenAt"`
}

// ToSnapshot converts a persisted record back into a Snapshot.
func (r *PersistedRecord) ToSnapshot() *Snapshot {
	return &Snapshot{
		AppID:                r.AppID,
		Cluster:              r.Cluster,
		Namespace:            r.Namespace,
		ReleaseKey:           r.ReleaseKey,
		Configurations:       r.Configurations,
		NotificationMessages: r.NotificationMessages,
	}
}

// NewPersistedRecord builds a PersistedRecord from a Snapshot, stamping the
// write time.
func NewPersistedRecord(s *Snapshot, writtenAt time.Time) *PersistedRecord {
	return &PersistedRecord{
		AppID:                s.AppID,
		Cluster:              s.Cluster,
		Namespace:            s.Namespace,
		ReleaseKey:           s.ReleaseKey,
		Configurations:       s.Configurations,
		NotificationMessages: s.NotificationMessages,
		WrittenAt:            writtenAt,
	}
}

// Package dispatcher implements the Change Dispatcher (SPEC_FULL.md §4.6):
// given a previous and a new snapshot it computes the ADDED/MODIFIED/DELETED
// diff (internal/model.Diff) and delivers one ChangeEvent to every
// registered listener, isolating a panicking listener from the rest.
//
// Each event is additionally published onto a samber/ro Observable so a
// caller can subscribe reactively (Subscribe) instead of implementing the
// Listener capability.
package dispatcher

import (
	"sync"

	"github.com/rs/zerolog"
	samberro "github.com/samber/ro"

	"github.com/nodalsync/configsync/internal/model"
	internalro "github.com/nodalsync/configsync/internal/ro"
)

// Listener receives change events for the namespace a Dispatcher is scoped
// to. It is the capability interface referenced by SPEC_FULL.md §9
// ("dynamic dispatch via listener registration").
type Listener interface {
	OnChange(event model.ChangeEvent)
}

// Dispatcher diffs successive snapshots of one namespace and fans the
// resulting ChangeEvent out to registered listeners and Observable
// subscribers. One Dispatcher is owned by each Repository.
type Dispatcher struct {
	logger *zerolog.Logger

	mu        sync.Mutex
	listeners []Listener
	subs      []chan model.ChangeEvent
}

// New creates a Dispatcher that logs listener faults through logger.
func New(logger *zerolog.Logger) *Dispatcher {
	return &Dispatcher{logger: logger}
}

// AddListener registers l to receive future ChangeEvents.
func (d *Dispatcher) AddListener(l Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, l)
}

// RemoveListener deregisters l. A no-op if l was never registered.
func (d *Dispatcher) RemoveListener(l Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, existing := range d.listeners {
		if existing == l {
			d.listeners = append(d.listeners[:i], d.listeners[i+1:]...)
			return
		}
	}
}

// Dispatch diffs prev against next and, if the diff is non-empty, delivers
// one ChangeEvent to every listener and subscriber registered at the time
// Dispatch is called. A listener panic is recovered and logged; it never
// prevents delivery to the remaining listeners.
func (d *Dispatcher) Dispatch(namespace string, prev, next *model.Snapshot) {
	changes := model.Diff(namespace, prev, next)
	if len(changes) == 0 {
		return
	}
	event := model.ChangeEvent{Namespace: namespace, Changes: changes}

	d.mu.Lock()
	listeners := append([]Listener(nil), d.listeners...)
	subs := append([]chan model.ChangeEvent(nil), d.subs...)
	d.mu.Unlock()

	for _, l := range listeners {
		d.invoke(l, event)
	}
	for _, ch := range subs {
		select {
		case ch <- event:
		default:
			d.logger.Warn().Str("namespace", namespace).Msg("dispatcher: subscriber channel full, dropping event")
		}
	}
}

func (d *Dispatcher) invoke(l Listener, event model.ChangeEvent) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().
				Interface("panic", r).
				Str("namespace", event.Namespace).
				Err(ErrListenerFault).
				Msg("dispatcher: listener panicked")
		}
	}()
	l.OnChange(event)
}

// Subscribe returns an Observable of every event this Dispatcher delivers
// from this point forward, plus an unsubscribe function that releases the
// underlying channel. Events are dropped (with a warning) rather than
// blocking Dispatch if the subscriber falls behind.
func (d *Dispatcher) Subscribe() (samberro.Observable[model.ChangeEvent], func()) {
	ch := make(chan model.ChangeEvent, 16)

	d.mu.Lock()
	d.subs = append(d.subs, ch)
	d.mu.Unlock()

	unsubscribe := func() {
		d.mu.Lock()
		for i, existing := range d.subs {
			if existing == ch {
				d.subs = append(d.subs[:i], d.subs[i+1:]...)
				break
			}
		}
		d.mu.Unlock()
		close(ch)
	}

	return internalro.StreamFromChannel(ch), unsubscribe
}

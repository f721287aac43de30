// Package facade implements the Config Facade (SPEC_FULL.md §4.7): a
// merged, read-through view over a Repository snapshot and the surrounding
// property sources (process overrides, environment, built-in defaults),
// exposing typed accessors and re-firing filtered change events.
package facade

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/samber/mo"

	"github.com/nodalsync/configsync/internal/cache"
	"github.com/nodalsync/configsync/internal/dispatcher"
	"github.com/nodalsync/configsync/internal/model"
)

// Repository is the narrow capability the Facade needs from a Remote
// Repository. GetConfig's return type matches repository.Repository's
// signature exactly (mo.Option[*model.Snapshot]) rather than an
// (value, bool) pair, so *repository.Repository satisfies this interface
// without an adapter.
type Repository interface {
	GetConfig() mo.Option[*model.Snapshot]
	AddListener(l dispatcher.Listener)
	RemoveListener(l dispatcher.Listener)
}

// Config configures a Facade.
type Config struct {
	Namespace string
	// Defaults are the lowest-priority built-in resource defaults.
	Defaults map[string]string
	Cache    cache.Cache // optional; memoization is skipped if nil
}

// Facade presents a priority-ordered merged view of one namespace's
// configuration: process overrides (highest) → repository snapshot →
// environment variables → built-in defaults → caller-supplied default
// (lowest).
type Facade struct {
	namespace string
	defaults  map[string]string
	repo      Repository
	cache     cache.Cache
	logger    *zerolog.Logger

	overridesMu sync.RWMutex
	overrides   map[string]string

	generation atomic.Int64

	listenersMu sync.Mutex
	listeners   []dispatcher.Listener
}

// New creates a Facade over repo for the given namespace.
func New(cfg Config, repo Repository, logger *zerolog.Logger) *Facade {
	f := &Facade{
		namespace: cfg.Namespace,
		defaults:  cfg.Defaults,
		repo:      repo,
		cache:     cfg.Cache,
		logger:    logger,
		overrides: make(map[string]string),
	}
	repo.AddListener(f)
	return f
}

// SetOverrides replaces the process-level override map wholesale (e.g. after
// an on-disk override file reload) and invalidates every cached typed read.
func (f *Facade) SetOverrides(overrides map[string]string) {
	f.overridesMu.Lock()
	f.overrides = overrides
	f.overridesMu.Unlock()
	f.generation.Add(1)
}

// AddListener registers l to receive change events re-fired by this Facade
// after priority filtering.
func (f *Facade) AddListener(l dispatcher.Listener) {
	f.listenersMu.Lock()
	defer f.listenersMu.Unlock()
	f.listeners = append(f.listeners, l)
}

// RemoveListener deregisters l.
func (f *Facade) RemoveListener(l dispatcher.Listener) {
	f.listenersMu.Lock()
	defer f.listenersMu.Unlock()
	for i, existing := range f.listeners {
		if existing == l {
			f.listeners = append(f.listeners[:i], f.listeners[i+1:]...)
			return
		}
	}
}

// OnChange implements dispatcher.Listener. It invalidates the typed-read
// cache and re-fires the event to the Facade's own listeners, filtering out
// any change whose key is shadowed by a higher-priority override.
func (f *Facade) OnChange(event model.ChangeEvent) {
	f.generation.Add(1)

	f.overridesMu.RLock()
	overrides := f.overrides
	f.overridesMu.RUnlock()

	visible := make([]model.PropertyChange, 0, len(event.Changes))
	for _, c := range event.Changes {
		if _, shadowed := overrides[c.Key]; shadowed {
			continue
		}
		visible = append(visible, c)
	}
	if len(visible) == 0 {
		return
	}
	filtered := model.ChangeEvent{Namespace: event.Namespace, Changes: visible}

	f.listenersMu.Lock()
	listeners := append([]dispatcher.Listener(nil), f.listeners...)
	f.listenersMu.Unlock()

	for _, l := range listeners {
		l.OnChange(filtered)
	}
}

// lookup resolves key through the priority chain, stopping at the first
// source that has it.
func (f *Facade) lookup(key string) (string, bool) {
	f.overridesMu.RLock()
	if v, ok := f.overrides[key]; ok {
		f.overridesMu.RUnlock()
		return v, true
	}
	f.overridesMu.RUnlock()

	if snap, ok := f.repo.GetConfig().Get(); ok {
		if v, ok := snap.Configurations[key]; ok {
			return v, true
		}
	}

	if v, ok := os.LookupEnv(key); ok {
		return v, true
	}

	if v, ok := f.defaults[key]; ok {
		return v, true
	}

	return "", false
}

// GetProperty returns the value for key from the highest-priority source
// that has it, or def if none do. It never errors.
func (f *Facade) GetProperty(key, def string) string {
	if v, ok := f.lookup(key); ok {
		return v
	}
	return def
}

func (f *Facade) cacheKey(key, kind string) string {
	return fmt.Sprintf("%s:%s:%s:%d", f.namespace, key, kind, f.generation.Load())
}

func (f *Facade) cachedOrParse(key, kind string, parse func(string) (string, error)) (string, bool, error) {
	ck := f.cacheKey(key, kind)
	if f.cache != nil {
		if raw, err := f.cache.Get(context.Background(), ck); err == nil {
			return string(raw), true, nil
		}
	}

	v, ok := f.lookup(key)
	if !ok {
		return "", false, nil
	}
	parsed, err := parse(v)
	if err != nil {
		return "", true, err
	}
	if f.cache != nil {
		if err := f.cache.Set(context.Background(), ck, []byte(parsed)); err != nil {
			f.logger.Debug().Err(err).Str("key", key).Msg("facade: cache write failed")
		}
	}
	return parsed, true, nil
}

// GetInt parses key as an int, falling back to def if the key is absent or
// unparseable.
func (f *Facade) GetInt(key string, def int) int {
	v, err := f.GetIntE(key, def)
	if err != nil {
		return def
	}
	return v
}

// GetIntE parses key as an int. Returns ErrTypeMismatch if the key is
// present but not a valid integer.
func (f *Facade) GetIntE(key string, def int) (int, error) {
	raw, present, err := f.cachedOrParse(key, "int", func(s string) (string, error) {
		n, err := strconv.Atoi(s)
		if err != nil {
			return "", err
		}
		return strconv.Itoa(n), nil
	})
	if !present {
		return def, nil
	}
	if err != nil {
		return def, fmt.Errorf("%w: key %q: %w", ErrTypeMismatch, key, err)
	}
	n, _ := strconv.Atoi(raw)
	return n, nil
}

// GetFloat parses key as a float64, falling back to def if absent or
// unparseable.
func (f *Facade) GetFloat(key string, def float64) float64 {
	v, err := f.GetFloatE(key, def)
	if err != nil {
		return def
	}
	return v
}

// GetFloatE parses key as a float64. Returns ErrTypeMismatch if the key is
// present but not a valid float.
func (f *Facade) GetFloatE(key string, def float64) (float64, error) {
	raw, present, err := f.cachedOrParse(key, "float", func(s string) (string, error) {
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return "", err
		}
		return strconv.FormatFloat(n, 'g', -1, 64), nil
	})
	if !present {
		return def, nil
	}
	if err != nil {
		return def, fmt.Errorf("%w: key %q: %w", ErrTypeMismatch, key, err)
	}
	n, _ := strconv.ParseFloat(raw, 64)
	return n, nil
}

// GetBool parses key as a bool, falling back to def if absent or
// unparseable.
func (f *Facade) GetBool(key string, def bool) bool {
	v, err := f.GetBoolE(key, def)
	if err != nil {
		return def
	}
	return v
}

// GetBoolE parses key as a bool. Returns ErrTypeMismatch if the key is
// present but not a valid bool.
func (f *Facade) GetBoolE(key string, def bool) (bool, error) {
	raw, present, err := f.cachedOrParse(key, "bool", func(s string) (string, error) {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return "", err
		}
		return strconv.FormatBool(b), nil
	})
	if !present {
		return def, nil
	}
	if err != nil {
		return def, fmt.Errorf("%w: key %q: %w", ErrTypeMismatch, key, err)
	}
	b, _ := strconv.ParseBool(raw)
	return b, nil
}

// GetStringSlice splits key on sep, falling back to def if the key is
// absent. An empty resolved value yields an empty, non-nil slice.
func (f *Facade) GetStringSlice(key, sep string, def []string) []string {
	v, ok := f.lookup(key)
	if !ok {
		return def
	}
	if v == "" {
		return []string{}
	}
	return strings.Split(v, sep)
}

// Package locator implements the Service Locator (SPEC_FULL.md §4.1): it
// resolves the current list of Config Service endpoints from a meta server,
// refreshes that list in the background, and layers per-endpoint circuit
// breaking on top so a persistently failing replica stops being handed to
// callers.
//
// Adapted from the host project's internal/router (shuffle.go,
// failover.go, triggers.go) and internal/health (circuit.go, tracker.go):
// ProviderInfo becomes a bare endpoint URL, and ShuffleRouter's Fisher-Yates
// deal becomes the selection policy every caller (Repository, Notifier)
// applies to the list this package returns.
package locator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nodalsync/configsync/internal/health"
)

// metaServiceEntry mirrors one element of the meta server's
// `GET /services/config` response.
type metaServiceEntry struct {
	HomepageURL string `json:"homepageUrl"`
	InstanceID  string `json:"instanceId"`
}

// Config configures the Service Locator.
type Config struct {
	MetaServiceURL  string
	RefreshInterval time.Duration
	RequestTimeout  time.Duration
	Breaker         health.CircuitBreakerConfig
}

// Locator resolves and caches the current list of Config Service endpoints.
type Locator struct {
	cfg    Config
	client *http.Client
	logger *zerolog.Logger

	tracker *health.Tracker

	mu        sync.RWMutex
	endpoints []string
	lastErr   error

	stop   chan struct{}
	once   sync.Once
	closed chan struct{}
}

// New creates a Locator. The returned Locator has no endpoints until Start
// performs (or a background tick performs) the first fetch.
func New(cfg Config, client *http.Client, logger *zerolog.Logger) *Locator {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 5 * time.Minute
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.RequestTimeout}
	}
	return &Locator{
		cfg:     cfg,
		client:  client,
		logger:  logger,
		tracker: health.NewTracker(cfg.Breaker, logger),
		stop:    make(chan struct{}),
		closed:  make(chan struct{}),
	}
}

// Start performs an initial synchronous fetch and launches the background
// refresh ticker. It is safe to call Start multiple times: every call
// repeats the synchronous fetch, but only the first launches the ticker
// and can return an error.
func (l *Locator) Start(ctx context.Context) error {
	if err := l.refresh(ctx); err != nil {
		l.logger.Warn().Err(err).Msg("locator: initial meta-server fetch failed")
	}

	var started bool
	l.once.Do(func() {
		started = true
		go l.loop()
	})
	if !started {
		return nil
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.endpoints) == 0 && l.lastErr != nil {
		return fmt.Errorf("locator: %w: %w", ErrNoAvailableService, l.lastErr)
	}
	return nil
}

// Stop terminates the background refresh loop. Idempotent.
func (l *Locator) Stop() {
	select {
	case <-l.closed:
		return
	default:
	}
	close(l.stop)
	<-l.closed
}

func (l *Locator) loop() {
	defer close(l.closed)
	ticker := time.NewTicker(l.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), l.cfg.RequestTimeout)
			if err := l.refresh(ctx); err != nil {
				l.logger.Warn().Err(err).Msg("locator: background meta-server refresh failed")
			}
			cancel()
		}
	}
}

func (l *Locator) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.cfg.MetaServiceURL+"/services/config", http.NoBody)
	if err != nil {
		return fmt.Errorf("locator: build request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		l.mu.Lock()
		l.lastErr = err
		l.mu.Unlock()
		return fmt.Errorf("locator: meta-server request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("locator: meta-server returned status %d", resp.StatusCode)
		l.mu.Lock()
		l.lastErr = err
		l.mu.Unlock()
		return err
	}

	var entries []metaServiceEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return fmt.Errorf("locator: decode meta-server response: %w", err)
	}

	endpoints := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.HomepageURL != "" {
			endpoints = append(endpoints, e.HomepageURL)
		}
	}

	l.mu.Lock()
	l.endpoints = endpoints
	l.lastErr = nil
	l.mu.Unlock()

	l.logger.Debug().Int("count", len(endpoints)).Msg("locator: refreshed config service endpoints")
	return nil
}

// GetConfigServices returns the current, health-filtered endpoint list.
// Callers must tolerate order changes between calls: the list is not
// guaranteed to be shuffled — shuffling is the caller's selection policy,
// see SelectOrder.
func (l *Locator) GetConfigServices(_ context.Context) ([]string, error) {
	l.mu.RLock()
	endpoints := append([]string(nil), l.endpoints...)
	lastErr := l.lastErr
	l.mu.RUnlock()

	if len(endpoints) == 0 {
		if lastErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrNoAvailableService, lastErr)
		}
		return nil, ErrNoAvailableService
	}

	healthy := make([]string, 0, len(endpoints))
	for _, e := range endpoints {
		if l.tracker.GetState(e) != health.StateOpen {
			healthy = append(healthy, e)
		}
	}
	if len(healthy) == 0 {
		// Filtering emptied the list: degrade rather than fail outright,
		// since the locator's health bookkeeping may disagree with reality.
		return endpoints, nil
	}
	return healthy, nil
}

// RecordSuccess reports a successful call against endpoint, closing its
// circuit breaker if it was open and probing successfully.
func (l *Locator) RecordSuccess(endpoint string) {
	l.tracker.RecordSuccess(endpoint)
}

// RecordFailure reports a failed call against endpoint, counting toward
// that endpoint's circuit breaker.
func (l *Locator) RecordFailure(endpoint string, err error) {
	l.tracker.RecordFailure(endpoint, err)
}

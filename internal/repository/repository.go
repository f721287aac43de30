// Package repository implements the Remote Repository (SPEC_FULL.md §4.3):
// one instance per watched namespace, responsible for fetching a Snapshot
// over HTTP, publishing it atomically, dispatching change events, and
// reacting to long-poll wakes from the Notifier.
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/mo"

	"github.com/nodalsync/configsync/internal/backoff"
	"github.com/nodalsync/configsync/internal/dispatcher"
	"github.com/nodalsync/configsync/internal/model"
	"github.com/nodalsync/configsync/internal/notifier"
)

// Locator is the narrow capability the Repository needs from a Service
// Locator.
type Locator interface {
	GetConfigServices(ctx context.Context) ([]string, error)
	RecordSuccess(endpoint string)
	RecordFailure(endpoint string, err error)
}

// RateLimiter is the narrow capability the Repository needs from a Rate
// Limiter.
type RateLimiter interface {
	TryAcquire(ctx context.Context, timeout time.Duration) error
}

// rateLimitTimeoutSleep is the fixed pause taken after a TryAcquire timeout,
// before proceeding with the fetch anyway. It exists so a saturated limiter
// never causes a fetch to fire back-to-back with no pacing at all.
const rateLimitTimeoutSleep = 500 * time.Millisecond

// Dispatcher is the narrow capability the Repository needs from a Change
// Dispatcher.
type Dispatcher interface {
	Dispatch(namespace string, prev, next *model.Snapshot)
	AddListener(l dispatcher.Listener)
	RemoveListener(l dispatcher.Listener)
}

// Store is the pluggable persisted-snapshot backend (SPEC_FULL.md §4.8).
type Store interface {
	Load(ctx context.Context, namespace string) (*model.Snapshot, error)
	Save(ctx context.Context, namespace string, snapshot *model.Snapshot) error
}

// NotifierRegistrar is the narrow capability the Repository needs from a
// Long-Poll Notifier: registering itself to be woken on change.
//
// Register's parameter is typed as notifier.Repository — the exact named
// type the Notifier itself declares — rather than a locally-defined
// lookalike interface. Go requires parameter types to match exactly for
// one interface to satisfy another; a structurally-equivalent but
// independently-declared interface here would make *notifier.Notifier fail
// to satisfy this interface even though its method set is logically the
// same.
type NotifierRegistrar interface {
	Register(namespace string, repo notifier.Repository) bool
	Unregister(namespace string, repo notifier.Repository)
}

// SelectOrder mirrors locator.SelectOrder's signature.
type SelectOrder func(endpoints []string, hint string) []string

// Config configures a Repository.
type Config struct {
	AppID      string
	Cluster    string
	Namespace  string
	DataCenter string
	LocalIP    string

	RefreshInterval  time.Duration
	RateLimitWait    time.Duration
	OnErrorRetryBase time.Duration
	BackoffMin       time.Duration
	BackoffMax       time.Duration
}

// Deps bundles the Repository's collaborators. A struct (rather than
// positional parameters) is used here because the collaborator count is
// large and several are themselves optional (Store), which positional
// construction would make error-prone to call correctly.
type Deps struct {
	Client      *http.Client
	Logger      *zerolog.Logger
	Locator     Locator
	RateLimiter RateLimiter
	Dispatcher  Dispatcher
	SelectOrder SelectOrder
	Notifier    NotifierRegistrar
	Store       Store // optional
}

type hintState struct {
	mu             sync.Mutex
	endpoint       string
	remoteMessages map[string]int64
}

func (h *hintState) consumeEndpoint() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	e := h.endpoint
	h.endpoint = ""
	return e
}

func (h *hintState) set(endpoint string, messages map[string]int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.endpoint = endpoint
	h.remoteMessages = messages
}

func (h *hintState) messages() map[string]int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.remoteMessages
}

// Repository owns the lifecycle of one namespace's configuration: fetching,
// publishing, dispatching, and serving long-poll wakes.
type Repository struct {
	cfg Config

	client      *http.Client
	logger      *zerolog.Logger
	locator     Locator
	limiter     RateLimiter
	dispatcher  Dispatcher
	selectOrder SelectOrder
	notifier    NotifierRegistrar
	store       Store
	backoff     *backoff.Policy

	snapshot     atomic.Pointer[model.Snapshot]
	hint         hintState
	forceRefresh atomic.Bool
	syncMu       sync.Mutex

	ticker   *time.Ticker
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New creates a Repository for one namespace. The Repository does not
// perform any I/O until Start is called.
func New(cfg Config, deps Deps) *Repository {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 5 * time.Minute
	}
	if cfg.RateLimitWait <= 0 {
		cfg.RateLimitWait = 2 * time.Second
	}
	if cfg.OnErrorRetryBase <= 0 {
		cfg.OnErrorRetryBase = time.Second
	}
	if cfg.BackoffMin <= 0 {
		cfg.BackoffMin = time.Second
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 8 * time.Second
	}
	if deps.Client == nil {
		deps.Client = &http.Client{Timeout: 10 * time.Second}
	}

	return &Repository{
		cfg:         cfg,
		client:      deps.Client,
		logger:      deps.Logger,
		locator:     deps.Locator,
		limiter:     deps.RateLimiter,
		dispatcher:  deps.Dispatcher,
		selectOrder: deps.SelectOrder,
		notifier:    deps.Notifier,
		store:       deps.Store,
		backoff:     backoff.New(cfg.BackoffMin, cfg.BackoffMax),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// Start performs an initial synchronous fetch, registers with the
// Notifier, and arms the periodic refresh timer. If the initial fetch
// fails and a Store is configured, Start falls back to the last persisted
// snapshot rather than failing outright.
func (r *Repository) Start(ctx context.Context) error {
	if err := r.sync(ctx); err != nil {
		if r.store == nil {
			return fmt.Errorf("%w: %w", ErrInitialLoadFailed, err)
		}
		stale, loadErr := r.store.Load(ctx, r.cfg.Namespace)
		if loadErr != nil || stale == nil {
			return fmt.Errorf("%w: %w", ErrInitialLoadFailed, err)
		}
		r.snapshot.Store(stale)
		r.logger.Warn().
			Str("namespace", r.cfg.Namespace).
			Err(err).
			Msg("repository: serving stale snapshot from persisted store after initial load failure")
	}

	if r.notifier != nil && !r.notifier.Register(r.cfg.Namespace, r) {
		r.logger.Warn().Str("namespace", r.cfg.Namespace).Msg("repository: notifier registration failed")
	}

	r.ticker = time.NewTicker(r.cfg.RefreshInterval)
	go r.refreshLoop()
	return nil
}

func (r *Repository) refreshLoop() {
	defer close(r.doneCh)
	for {
		select {
		case <-r.stopCh:
			r.ticker.Stop()
			return
		case <-r.ticker.C:
			if err := r.sync(context.Background()); err != nil {
				r.logger.Warn().Str("namespace", r.cfg.Namespace).Err(err).Msg("repository: periodic refresh failed")
			}
		}
	}
}

// Stop cancels the refresh timer and deregisters from the Notifier.
// Idempotent.
func (r *Repository) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
		if r.notifier != nil {
			r.notifier.Unregister(r.cfg.Namespace, r)
		}
	})
	if r.ticker != nil {
		<-r.doneCh
	}
}

// GetConfig returns a non-blocking read of the current snapshot, or None
// if no successful fetch has ever completed.
func (r *Repository) GetConfig() mo.Option[*model.Snapshot] {
	snap := r.snapshot.Load()
	if snap == nil {
		return mo.None[*model.Snapshot]()
	}
	return mo.Some(snap)
}

// AddListener registers l to receive future change events for this
// namespace.
func (r *Repository) AddListener(l dispatcher.Listener) {
	r.dispatcher.AddListener(l)
}

// RemoveListener deregisters l.
func (r *Repository) RemoveListener(l dispatcher.Listener) {
	r.dispatcher.RemoveListener(l)
}

// OnLongPollNotified is invoked by the Notifier when a long-poll round
// reports a change for this repository's namespace. It records the
// endpoint hint and remote messages, sets forceRefresh (which gives the
// next sync two attempts and a fixed retry interval; a 304 answer still
// counts as success), and submits an asynchronous sync().
func (r *Repository) OnLongPollNotified(endpointHint string, remoteMessages map[string]int64) {
	r.hint.set(endpointHint, remoteMessages)
	r.forceRefresh.Store(true)
	go func() {
		if err := r.sync(context.Background()); err != nil {
			r.logger.Warn().Str("namespace", r.cfg.Namespace).Err(err).Msg("repository: long-poll-triggered sync failed")
		}
	}()
}

// sync is serialized per repository: only one sync() body runs at a time.
func (r *Repository) sync(ctx context.Context) error {
	r.syncMu.Lock()
	defer r.syncMu.Unlock()

	prevOpt := r.GetConfig()
	prev, _ := prevOpt.Get()

	attempts := 1
	forced := r.forceRefresh.Load()
	if forced {
		attempts = 2
	}

	var next *model.Snapshot
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		next, lastErr = r.attemptFetch(ctx, prev)
		if next != nil {
			break
		}
		if attempt < attempts-1 {
			if err := backoff.Sleep(ctx, r.onErrorSleep(forced)); err != nil {
				return err
			}
		}
	}

	if next == nil {
		r.logger.Error().Str("namespace", r.cfg.Namespace).Err(lastErr).Msg("repository: sync exhausted all attempts")
		return fmt.Errorf("%w: %w", ErrLoadFailed, lastErr)
	}

	if prev == nil || !prev.Equal(next) {
		r.snapshot.Store(next)
		r.dispatcher.Dispatch(r.cfg.Namespace, prev, next)
		if r.store != nil {
			go r.persist(next)
		}
	}

	r.forceRefresh.Store(false)
	r.backoff.Success()
	return nil
}

func (r *Repository) persist(snap *model.Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.store.Save(ctx, r.cfg.Namespace, snap); err != nil {
		r.logger.Warn().Str("namespace", r.cfg.Namespace).Err(err).Msg("repository: persisting snapshot failed")
	}
}

func (r *Repository) onErrorSleep(forced bool) time.Duration {
	if forced {
		return r.cfg.OnErrorRetryBase
	}
	return r.backoff.Fail()
}

func (r *Repository) attemptFetch(ctx context.Context, prev *model.Snapshot) (*model.Snapshot, error) {
	endpoints, err := r.locator.GetConfigServices(ctx)
	if err != nil {
		return nil, fmt.Errorf("repository: %w", err)
	}

	hint := r.hint.consumeEndpoint()
	ordered := r.selectOrder(endpoints, hint)

	var lastErr error
	for i, endpoint := range ordered {
		snap, err := r.fetchFrom(ctx, endpoint, prev)
		if err == nil {
			r.locator.RecordSuccess(endpoint)
			return snap, nil
		}
		r.locator.RecordFailure(endpoint, err)
		lastErr = err
		if i < len(ordered)-1 {
			if sleepErr := backoff.Sleep(ctx, r.onErrorSleep(r.forceRefresh.Load())); sleepErr != nil {
				return nil, sleepErr
			}
		}
	}
	return nil, lastErr
}

type configResponse struct {
	AppID          string            `json:"appId"`
	Cluster        string            `json:"cluster"`
	NamespaceName  string            `json:"namespaceName"`
	Configurations map[string]string `json:"configurations"`
	ReleaseKey     string            `json:"releaseKey"`
}

func (r *Repository) fetchFrom(ctx context.Context, endpoint string, prev *model.Snapshot) (*model.Snapshot, error) {
	if err := r.limiter.TryAcquire(ctx, r.cfg.RateLimitWait); err != nil {
		r.logger.Debug().Err(err).Msg("repository: rate limit wait did not complete, proceeding anyway")
		if err := backoff.Sleep(ctx, rateLimitTimeoutSleep); err != nil {
			return nil, err
		}
	}

	reqURL, err := r.buildFetchURL(endpoint, prev)
	if err != nil {
		return nil, fmt.Errorf("repository: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("repository: build request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("repository: request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var body configResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return nil, fmt.Errorf("repository: decode response: %w", err)
		}
		return &model.Snapshot{
			AppID:                r.cfg.AppID,
			Cluster:              r.cfg.Cluster,
			Namespace:            r.cfg.Namespace,
			ReleaseKey:           body.ReleaseKey,
			Configurations:       body.Configurations,
			NotificationMessages: r.hint.messages(),
		}, nil
	case http.StatusNotModified:
		return prev, nil
	case http.StatusNotFound:
		return nil, ErrNamespaceNotFound
	default:
		return nil, fmt.Errorf("repository: endpoint %s returned status %d", endpoint, resp.StatusCode)
	}
}

func (r *Repository) buildFetchURL(endpoint string, prev *model.Snapshot) (string, error) {
	q := url.Values{}
	if prev != nil && prev.ReleaseKey != "" {
		q.Set("releaseKey", prev.ReleaseKey)
	}
	if r.cfg.LocalIP != "" {
		q.Set("ip", r.cfg.LocalIP)
	}
	if r.cfg.DataCenter != "" {
		q.Set("dataCenter", r.cfg.DataCenter)
	}
	if msgs := r.hint.messages(); len(msgs) > 0 {
		payload, err := json.Marshal(msgs)
		if err != nil {
			return "", fmt.Errorf("marshal messages: %w", err)
		}
		q.Set("messages", string(payload))
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	u.Path = joinPath(u.Path, "configs", r.cfg.AppID, r.cfg.Cluster, r.cfg.Namespace)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func joinPath(base string, parts ...string) string {
	segments := []string{strings.TrimSuffix(base, "/")}
	segments = append(segments, parts...)
	return strings.Join(segments, "/")
}

// Package notifier implements the Long-Poll Notifier (SPEC_FULL.md §4.4): a
// process-wide singleton that multiplexes every watched namespace into a
// single outstanding long-poll against the Config Service and wakes the
// interested Repositories when the server reports a change.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nodalsync/configsync/internal/backoff"
)

// Repository is the capability a Notifier wakes when a long-poll round
// reports a change for a namespace the Repository is registered under. It
// is defined here (not in the repository package) so that both sides of
// the Notifier/Repository coupling share the exact same named parameter
// types, which Go's interface satisfaction requires.
type Repository interface {
	OnLongPollNotified(endpointHint string, remoteMessages map[string]int64)
}

// Locator is the narrow capability the Notifier needs from a Service
// Locator: an ordered, health-filtered endpoint list plus health feedback.
type Locator interface {
	GetConfigServices(ctx context.Context) ([]string, error)
	RecordSuccess(endpoint string)
	RecordFailure(endpoint string, err error)
}

// RateLimiter is the narrow capability the Notifier needs from a Rate
// Limiter: a bounded-wait token acquisition.
type RateLimiter interface {
	TryAcquire(ctx context.Context, timeout time.Duration) error
}

// SelectOrder mirrors locator.SelectOrder's signature so the Notifier can
// depend on it without importing the locator package directly for anything
// beyond the two interfaces above.
type SelectOrder func(endpoints []string, hint string) []string

// Config configures the Notifier.
type Config struct {
	AppID      string
	Cluster    string
	DataCenter string

	// ReadTimeout is the client-side HTTP read timeout for one long-poll
	// round. Must exceed ServerHoldTimeout so a server-side 304 is always
	// observed before the client times out.
	ReadTimeout time.Duration
	// ServerHoldTimeout is the server's advertised hold duration, used only
	// for the eager construction-time validation below.
	ServerHoldTimeout time.Duration

	RateLimitWait time.Duration
	BackoffMin    time.Duration
	BackoffMax    time.Duration
}

const defaultTimeoutSkew = 5 * time.Second

// rateLimitTimeoutSleep is the fixed pause taken after a TryAcquire timeout,
// before polling anyway. It exists so a saturated limiter never causes a
// long-poll round to fire back-to-back with no pacing at all.
const rateLimitTimeoutSleep = 500 * time.Millisecond

// Notifier runs the single background long-poll worker shared by every
// watched namespace.
type Notifier struct {
	cfg    Config
	client *http.Client
	logger *zerolog.Logger

	locator     Locator
	limiter     RateLimiter
	selectOrder SelectOrder
	backoff     *backoff.Policy

	mu              sync.RWMutex
	watchers        map[string][]Repository
	notificationIds map[string]int64
	remoteMessages  map[string]map[string]int64

	lastEndpointHint string

	running atomic.Bool
	once    sync.Once
	stop    chan struct{}
	closed  chan struct{}
}

// New creates a Notifier. The background worker does not start until the
// first successful Register call.
func New(cfg Config, client *http.Client, locator Locator, limiter RateLimiter, selectOrder SelectOrder, logger *zerolog.Logger) *Notifier {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 90 * time.Second
	}
	if cfg.ServerHoldTimeout <= 0 {
		cfg.ServerHoldTimeout = 60 * time.Second
	}
	if cfg.RateLimitWait <= 0 {
		cfg.RateLimitWait = 5 * time.Second
	}
	if cfg.BackoffMin <= 0 {
		cfg.BackoffMin = time.Second
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 120 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.ReadTimeout}
	}

	if cfg.ReadTimeout <= cfg.ServerHoldTimeout+defaultTimeoutSkew {
		logger.Warn().
			Dur("readTimeout", cfg.ReadTimeout).
			Dur("serverHoldTimeout", cfg.ServerHoldTimeout).
			Msg("notifier: read timeout does not comfortably exceed server hold timeout; long-poll rounds may be cut short before a 304 is observed")
	}

	return &Notifier{
		cfg:             cfg,
		client:          client,
		logger:          logger,
		locator:         locator,
		limiter:         limiter,
		selectOrder:     selectOrder,
		backoff:         backoff.New(cfg.BackoffMin, cfg.BackoffMax),
		watchers:        make(map[string][]Repository),
		notificationIds: make(map[string]int64),
		remoteMessages:  make(map[string]map[string]int64),
		stop:            make(chan struct{}),
		closed:          make(chan struct{}),
	}
}

// Register adds repo to the fan-out for namespace, and starts the
// background worker if this is the first registration in the process.
// Idempotent for duplicate (namespace, repo) pairs. Returns false if the
// Notifier has already been stopped.
func (n *Notifier) Register(namespace string, repo Repository) bool {
	select {
	case <-n.stop:
		return false
	default:
	}

	n.mu.Lock()
	if _, ok := n.notificationIds[namespace]; !ok {
		n.notificationIds[namespace] = -1
	}
	existing := n.watchers[namespace]
	for _, r := range existing {
		if r == repo {
			n.mu.Unlock()
			return true
		}
	}
	n.watchers[namespace] = append(existing, repo)
	n.mu.Unlock()

	if n.running.CompareAndSwap(false, true) {
		go n.run()
	}
	return true
}

// Unregister removes repo from the fan-out for namespace.
func (n *Notifier) Unregister(namespace string, repo Repository) {
	n.mu.Lock()
	defer n.mu.Unlock()
	repos := n.watchers[namespace]
	for i, r := range repos {
		if r == repo {
			n.watchers[namespace] = append(repos[:i], repos[i+1:]...)
			return
		}
	}
}

// Stop signals the worker to exit and waits for it to do so. Idempotent.
func (n *Notifier) Stop() {
	n.once.Do(func() {
		close(n.stop)
	})
	if n.running.Load() {
		<-n.closed
	}
}

func (n *Notifier) run() {
	defer close(n.closed)
	ctx := context.Background()

	for {
		select {
		case <-n.stop:
			return
		default:
		}

		if err := n.limiter.TryAcquire(ctx, n.cfg.RateLimitWait); err != nil {
			n.logger.Debug().Err(err).Msg("notifier: rate limit wait did not complete, proceeding anyway")
			if err := backoff.Sleep(ctx, rateLimitTimeoutSleep); err != nil {
				return
			}
		}

		roundID := uuid.NewString()
		if err := n.pollOnce(ctx, roundID); err != nil {
			n.logger.Warn().Err(err).Str("round", roundID).Msg("notifier: long-poll round failed")
			n.lastEndpointHint = ""
			delay := n.backoff.Fail()
			if err := backoff.Sleep(ctx, delay); err != nil {
				return
			}
			continue
		}

		select {
		case <-n.stop:
			return
		default:
		}
	}
}

func (n *Notifier) pollOnce(ctx context.Context, roundID string) error {
	endpoints, err := n.locator.GetConfigServices(ctx)
	if err != nil {
		return fmt.Errorf("notifier: %w", err)
	}
	ordered := n.selectOrder(endpoints, n.lastEndpointHint)
	if len(ordered) == 0 {
		return fmt.Errorf("notifier: no endpoints to poll")
	}
	endpoint := ordered[0]

	reqURL, err := n.buildLongPollURL(endpoint)
	if err != nil {
		return fmt.Errorf("notifier: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, n.cfg.ReadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("notifier: build request: %w", err)
	}

	n.logger.Debug().Str("endpoint", endpoint).Str("round", roundID).Msg("notifier: starting long-poll round")
	resp, err := n.client.Do(req)
	if err != nil {
		n.locator.RecordFailure(endpoint, err)
		return fmt.Errorf("notifier: long-poll request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var changes []longPollChange
		if err := json.NewDecoder(resp.Body).Decode(&changes); err != nil {
			n.locator.RecordFailure(endpoint, err)
			return fmt.Errorf("notifier: decode long-poll response: %w", err)
		}
		n.locator.RecordSuccess(endpoint)
		n.updateNotificationIds(changes)
		n.fanOutNotify(changes, endpoint, roundID)
		n.backoff.Success()
		n.lastEndpointHint = endpoint
		return nil
	case http.StatusNotModified:
		n.locator.RecordSuccess(endpoint)
		n.backoff.Success()
		if rand.Float64() < 0.5 { //nolint:gosec // selection jitter, not security sensitive
			n.lastEndpointHint = ""
		} else {
			n.lastEndpointHint = endpoint
		}
		return nil
	default:
		err := fmt.Errorf("notifier: long-poll returned status %d", resp.StatusCode)
		n.locator.RecordFailure(endpoint, err)
		return err
	}
}

type longPollChange struct {
	NamespaceName  string           `json:"namespaceName"`
	NotificationID int64            `json:"notificationId"`
	Messages       map[string]int64 `json:"messages"`
}

func (n *Notifier) buildLongPollURL(endpoint string) (string, error) {
	n.mu.RLock()
	notifications := make([]map[string]any, 0, len(n.notificationIds))
	for ns, id := range n.notificationIds {
		notifications = append(notifications, map[string]any{
			"namespaceName":  ns,
			"notificationId": id,
		})
	}
	n.mu.RUnlock()

	payload, err := json.Marshal(notifications)
	if err != nil {
		return "", fmt.Errorf("marshal notification vector: %w", err)
	}

	q := url.Values{}
	q.Set("appId", n.cfg.AppID)
	q.Set("cluster", n.cfg.Cluster)
	if n.cfg.DataCenter != "" {
		q.Set("dataCenter", n.cfg.DataCenter)
	}
	q.Set("notifications", string(payload))

	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	u.Path = joinPath(u.Path, "notifications", "v2")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func joinPath(base string, parts ...string) string {
	p := base
	for _, part := range parts {
		if len(p) > 0 && p[len(p)-1] != '/' {
			p += "/"
		}
		p += part
	}
	return p
}

func (n *Notifier) updateNotificationIds(changes []longPollChange) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, c := range changes {
		if c.NotificationID > n.notificationIds[c.NamespaceName] {
			n.notificationIds[c.NamespaceName] = c.NotificationID
		}
		if c.Messages != nil {
			n.remoteMessages[c.NamespaceName] = copyMessages(c.Messages)
		}
	}
}

func copyMessages(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// fanOutNotify wakes every Repository registered under a changed namespace
// (and its ".properties"-suffixed alias, for hosts that strip the suffix
// upstream). A panicking repository is recovered and logged; it must not
// block the remaining repositories from being woken.
func (n *Notifier) fanOutNotify(changes []longPollChange, endpoint, roundID string) {
	for _, c := range changes {
		messages := copyMessages(c.Messages)

		n.mu.RLock()
		repos := append([]Repository(nil), n.watchers[c.NamespaceName]...)
		repos = append(repos, n.watchers[c.NamespaceName+".properties"]...)
		n.mu.RUnlock()

		for _, repo := range repos {
			n.notifyOne(repo, endpoint, messages, c.NamespaceName, roundID)
		}
	}
}

func (n *Notifier) notifyOne(repo Repository, endpoint string, messages map[string]int64, namespace, roundID string) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error().
				Interface("panic", r).
				Str("namespace", namespace).
				Str("round", roundID).
				Msg("notifier: repository panicked handling long-poll wake")
		}
	}()
	repo.OnLongPollNotified(endpoint, messages)
}

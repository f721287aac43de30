package repository

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodalsync/configsync/internal/dispatcher"
	"github.com/nodalsync/configsync/internal/model"
	"github.com/nodalsync/configsync/internal/notifier"
	"github.com/nodalsync/configsync/internal/store"
)

type fakeLocator struct {
	endpoints []string
}

func (f *fakeLocator) GetConfigServices(context.Context) ([]string, error) {
	return append([]string(nil), f.endpoints...), nil
}
func (f *fakeLocator) RecordSuccess(string)        {}
func (f *fakeLocator) RecordFailure(string, error) {}

type noopLimiter struct{}

func (noopLimiter) TryAcquire(context.Context, time.Duration) error { return nil }

func identitySelectOrder(endpoints []string, _ string) []string { return endpoints }

type fakeNotifierRegistrar struct {
	mu           sync.Mutex
	registered   map[string]notifier.Repository
	unregistered []string
}

func newFakeRegistrar() *fakeNotifierRegistrar {
	return &fakeNotifierRegistrar{registered: make(map[string]notifier.Repository)}
}

func (f *fakeNotifierRegistrar) Register(namespace string, repo notifier.Repository) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registered[namespace] = repo
	return true
}

func (f *fakeNotifierRegistrar) Unregister(namespace string, _ notifier.Repository) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.registered, namespace)
	f.unregistered = append(f.unregistered, namespace)
}

type recordingListener struct {
	count atomic.Int32
	last  model.ChangeEvent
	mu    sync.Mutex
}

func (r *recordingListener) OnChange(event model.ChangeEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = event
	r.count.Add(1)
}

func newTestRepository(t *testing.T, server *httptest.Server, registrar NotifierRegistrar) (*Repository, *dispatcher.Dispatcher) {
	t.Helper()
	logger := zerolog.Nop()
	d := dispatcher.New(&logger)
	repo := New(Config{
		AppID:     "checkout",
		Cluster:   "default",
		Namespace: "application",
	}, Deps{
		Client:      server.Client(),
		Logger:      &logger,
		Locator:     &fakeLocator{endpoints: []string{server.URL}},
		RateLimiter: noopLimiter{},
		Dispatcher:  d,
		SelectOrder: identitySelectOrder,
		Notifier:    registrar,
	})
	return repo, d
}

func TestRepository_ColdStartSingleNamespace(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(configResponse{
			ReleaseKey:     "r1",
			Configurations: map[string]string{"k": "v1"},
		})
	}))
	defer server.Close()

	repo, d := newTestRepository(t, server, newFakeRegistrar())
	listener := &recordingListener{}
	repo.AddListener(listener)
	_ = d

	require.NoError(t, repo.Start(context.Background()))
	defer repo.Stop()

	snap, ok := repo.GetConfig().Get()
	require.True(t, ok)
	assert.Equal(t, "v1", snap.Configurations["k"])
	assert.Equal(t, int32(0), listener.count.Load(), "no change event on first-ever fetch")
}

func TestRepository_ConditionalNoOp(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(configResponse{ReleaseKey: "r1", Configurations: map[string]string{"k": "v1"}})
			return
		}
		w.WriteHeader(http.StatusNotModified)
	}))
	defer server.Close()

	repo, _ := newTestRepository(t, server, newFakeRegistrar())
	listener := &recordingListener{}
	repo.AddListener(listener)

	require.NoError(t, repo.Start(context.Background()))
	defer repo.Stop()

	require.NoError(t, repo.sync(context.Background()))

	snap, _ := repo.GetConfig().Get()
	assert.Equal(t, "r1", snap.ReleaseKey)
	assert.Equal(t, int32(0), listener.count.Load())
}

func TestRepository_EndpointFailover(t *testing.T) {
	t.Parallel()

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()

	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(configResponse{ReleaseKey: "r1", Configurations: map[string]string{"k": "v1"}})
	}))
	defer healthy.Close()

	logger := zerolog.Nop()
	d := dispatcher.New(&logger)
	repo := New(Config{AppID: "checkout", Cluster: "default", Namespace: "application", OnErrorRetryBase: time.Millisecond}, Deps{
		Client:      http.DefaultClient,
		Logger:      &logger,
		Locator:     &fakeLocator{endpoints: []string{failing.URL, healthy.URL}},
		RateLimiter: noopLimiter{},
		Dispatcher:  d,
		SelectOrder: identitySelectOrder,
		Notifier:    newFakeRegistrar(),
	})

	require.NoError(t, repo.Start(context.Background()))
	defer repo.Stop()

	snap, ok := repo.GetConfig().Get()
	require.True(t, ok)
	assert.Equal(t, "v1", snap.Configurations["k"])
}

func TestRepository_StartRegistersWithNotifier(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(configResponse{ReleaseKey: "r1", Configurations: map[string]string{"k": "v1"}})
	}))
	defer server.Close()

	registrar := newFakeRegistrar()
	repo, _ := newTestRepository(t, server, registrar)

	require.NoError(t, repo.Start(context.Background()))
	defer repo.Stop()

	registrar.mu.Lock()
	_, ok := registrar.registered["application"]
	registrar.mu.Unlock()
	assert.True(t, ok)

	repo.Stop()
	registrar.mu.Lock()
	assert.Contains(t, registrar.unregistered, "application")
	registrar.mu.Unlock()
}

func TestRepository_OnLongPollNotifiedForcesRefresh(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		if n == 1 {
			_ = json.NewEncoder(w).Encode(configResponse{ReleaseKey: "r1", Configurations: map[string]string{"k": "v1"}})
			return
		}
		_ = json.NewEncoder(w).Encode(configResponse{ReleaseKey: "r2", Configurations: map[string]string{"k": "v2", "new": "n1"}})
	}))
	defer server.Close()

	repo, _ := newTestRepository(t, server, newFakeRegistrar())
	listener := &recordingListener{}
	repo.AddListener(listener)

	require.NoError(t, repo.Start(context.Background()))
	defer repo.Stop()

	repo.OnLongPollNotified(server.URL, map[string]int64{"application": 7})

	require.Eventually(t, func() bool {
		return listener.count.Load() >= 1
	}, time.Second, 5*time.Millisecond)

	listener.mu.Lock()
	changes := listener.last.Changes
	listener.mu.Unlock()
	assert.Len(t, changes, 2)
}

func TestRepository_StartFallsBackToPersistedSnapshotOnInitialLoadFailure(t *testing.T) {
	t.Parallel()

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer down.Close()

	fs := store.NewFileStore(t.TempDir())
	stale := &model.Snapshot{
		AppID:          "checkout",
		Cluster:        "default",
		Namespace:      "application",
		ReleaseKey:     "stale-r1",
		Configurations: map[string]string{"k": "stale-v1"},
	}
	require.NoError(t, fs.Save(context.Background(), "application", stale))

	logger := zerolog.Nop()
	d := dispatcher.New(&logger)
	repo := New(Config{AppID: "checkout", Cluster: "default", Namespace: "application", OnErrorRetryBase: time.Millisecond}, Deps{
		Client:      down.Client(),
		Logger:      &logger,
		Locator:     &fakeLocator{endpoints: []string{down.URL}},
		RateLimiter: noopLimiter{},
		Dispatcher:  d,
		SelectOrder: identitySelectOrder,
		Notifier:    newFakeRegistrar(),
		Store:       fs,
	})

	require.NoError(t, repo.Start(context.Background()), "Start should fall back to the persisted snapshot rather than fail")
	defer repo.Stop()

	snap, ok := repo.GetConfig().Get()
	require.True(t, ok)
	assert.Equal(t, "stale-r1", snap.ReleaseKey)
	assert.Equal(t, "stale-v1", snap.Configurations["k"])
}

func TestRepository_StartFailsWithoutStoreOrPersistedSnapshot(t *testing.T) {
	t.Parallel()

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer down.Close()

	repo, _ := newTestRepository(t, down, newFakeRegistrar())
	err := repo.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInitialLoadFailed)
}

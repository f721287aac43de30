package facade

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodalsync/configsync/internal/cache"
	"github.com/nodalsync/configsync/internal/dispatcher"
	"github.com/nodalsync/configsync/internal/model"
)

type fakeCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeCache() *fakeCache { return &fakeCache{data: make(map[string][]byte)} }

func (c *fakeCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return nil, cache.ErrNotFound
	}
	return v, nil
}

func (c *fakeCache) Set(_ context.Context, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *fakeCache) SetWithTTL(ctx context.Context, key string, value []byte, _ time.Duration) error {
	return c.Set(ctx, key, value)
}

func (c *fakeCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *fakeCache) Exists(ctx context.Context, key string) (bool, error) {
	_, err := c.Get(ctx, key)
	return err == nil, nil
}

func (c *fakeCache) Close() error { return nil }

type fakeRepo struct {
	snapshot  *model.Snapshot
	listeners []dispatcher.Listener
}

func (f *fakeRepo) GetConfig() mo.Option[*model.Snapshot] {
	if f.snapshot == nil {
		return mo.None[*model.Snapshot]()
	}
	return mo.Some(f.snapshot)
}

func (f *fakeRepo) AddListener(l dispatcher.Listener) {
	f.listeners = append(f.listeners, l)
}

func (f *fakeRepo) RemoveListener(dispatcher.Listener) {}

type recordingListener struct {
	events []model.ChangeEvent
}

func (r *recordingListener) OnChange(event model.ChangeEvent) {
	r.events = append(r.events, event)
}

func newTestFacade(snap *model.Snapshot) (*Facade, *fakeRepo) {
	repo := &fakeRepo{snapshot: snap}
	logger := zerolog.Nop()
	f := New(Config{Namespace: "application", Defaults: map[string]string{"builtin": "builtin-value"}}, repo, &logger)
	return f, repo
}

func TestGetProperty_PriorityOrder(t *testing.T) {
	t.Parallel()

	f, _ := newTestFacade(&model.Snapshot{Configurations: map[string]string{"k": "from-repo"}})

	assert.Equal(t, "from-repo", f.GetProperty("k", "fallback"))

	f.SetOverrides(map[string]string{"k": "from-override"})
	assert.Equal(t, "from-override", f.GetProperty("k", "fallback"))

	assert.Equal(t, "builtin-value", f.GetProperty("builtin", "fallback"))
	assert.Equal(t, "fallback", f.GetProperty("missing", "fallback"))
}

func TestGetInt_FallsBackOnTypeMismatch(t *testing.T) {
	t.Parallel()

	f, _ := newTestFacade(&model.Snapshot{Configurations: map[string]string{"port": "not-a-number"}})

	assert.Equal(t, 8080, f.GetInt("port", 8080))

	_, err := f.GetIntE("port", 8080)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestGetInt_ParsesValidValue(t *testing.T) {
	t.Parallel()

	f, _ := newTestFacade(&model.Snapshot{Configurations: map[string]string{"port": "9090"}})
	assert.Equal(t, 9090, f.GetInt("port", 8080))
}

func TestOnChange_FiltersOverriddenKeys(t *testing.T) {
	t.Parallel()

	f, _ := newTestFacade(&model.Snapshot{Configurations: map[string]string{}})
	f.SetOverrides(map[string]string{"k": "shadowed"})

	listener := &recordingListener{}
	f.AddListener(listener)

	f.OnChange(model.ChangeEvent{
		Namespace: "application",
		Changes: []model.PropertyChange{
			{Key: "k", NewValue: "v1", ChangeType: model.ChangeAdded},
			{Key: "visible", NewValue: "v2", ChangeType: model.ChangeAdded},
		},
	})

	require.Len(t, listener.events, 1)
	require.Len(t, listener.events[0].Changes, 1)
	assert.Equal(t, "visible", listener.events[0].Changes[0].Key)
}

func TestGetStringSlice(t *testing.T) {
	t.Parallel()

	f, _ := newTestFacade(&model.Snapshot{Configurations: map[string]string{"hosts": "a,b,c"}})
	assert.Equal(t, []string{"a", "b", "c"}, f.GetStringSlice("hosts", ",", nil))
	assert.Nil(t, f.GetStringSlice("missing", ",", nil))
}

func TestCache_MemoizesTypedReads(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{snapshot: &model.Snapshot{Configurations: map[string]string{"port": "1"}}}
	logger := zerolog.Nop()
	f := New(Config{Namespace: "application", Cache: newFakeCache()}, repo, &logger)

	assert.Equal(t, 1, f.GetInt("port", 0))

	repo.snapshot.Configurations["port"] = "2"
	// Without a change event bumping the generation, the memoized value is
	// still returned even though the underlying snapshot changed.
	assert.Equal(t, 1, f.GetInt("port", 0))

	f.OnChange(model.ChangeEvent{Namespace: "application", Changes: []model.PropertyChange{
		{Key: "port", OldValue: "1", NewValue: "2", ChangeType: model.ChangeModified},
	}})
	assert.Equal(t, 2, f.GetInt("port", 0))
}

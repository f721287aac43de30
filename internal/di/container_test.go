package di

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodalsync/configsync/internal/locator"
	"github.com/nodalsync/configsync/internal/notifier"
)

const validConfigYAML = `
app_id: sample-app
meta_service_url: http://meta.example.com
namespaces: [application]
long_poll_read_timeout_ms: 90000
server:
  hold_timeout_ms: 60000
logging:
  level: info
  format: json
cache:
  mode: disabled
`

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestNewContainer(t *testing.T) {
	t.Parallel()

	path := writeTempConfig(t, validConfigYAML)
	container, err := NewContainer(path)
	require.NoError(t, err)
	require.NotNil(t, container)
	assert.NotNil(t, container.Injector())

	assert.NoError(t, container.Shutdown())
}

func TestContainer_InvokeResolvesSingletons(t *testing.T) {
	t.Parallel()

	path := writeTempConfig(t, validConfigYAML)
	container, err := NewContainer(path)
	require.NoError(t, err)
	defer container.Shutdown()

	cfgSvc, err := Invoke[*ConfigService](container)
	require.NoError(t, err)
	assert.Equal(t, "sample-app", cfgSvc.Get().AppID)

	loggerSvc := MustInvoke[*LoggerService](container)
	assert.NotNil(t, loggerSvc.Logger)

	locSvc, err := Invoke[*LocatorService](container)
	require.NoError(t, err)
	assert.NotNil(t, locSvc.Locator)

	notifierSvc, err := Invoke[*NotifierService](container)
	require.NoError(t, err)
	assert.NotNil(t, notifierSvc.Notifier)

	storeSvc, err := Invoke[*StoreService](container)
	require.NoError(t, err)
	assert.Nil(t, storeSvc.Store, "store_backend defaults to none")
}

func TestNewContainer_InvalidConfigFailsOnInvoke(t *testing.T) {
	t.Parallel()

	path := writeTempConfig(t, "app_id: \"\"\n")
	container, err := NewContainer(path)
	require.NoError(t, err, "registration is lazy; the invalid config only surfaces on first Invoke")
	defer container.Shutdown()

	_, err = Invoke[*ConfigService](container)
	assert.Error(t, err)
}

func TestContainer_HealthCheck(t *testing.T) {
	t.Parallel()

	path := writeTempConfig(t, validConfigYAML)
	container, err := NewContainer(path)
	require.NoError(t, err)
	defer container.Shutdown()

	assert.NoError(t, container.HealthCheck())
}

func TestContainer_NewRepositoryAndFacade(t *testing.T) {
	t.Parallel()

	path := writeTempConfig(t, validConfigYAML)
	container, err := NewContainer(path)
	require.NoError(t, err)
	defer container.Shutdown()

	repo, err := container.NewRepository("application")
	require.NoError(t, err)
	require.NotNil(t, repo)
	defer repo.Stop()

	f, err := container.NewFacade(repo, "application", map[string]string{"k": "v"})
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, "v", f.GetProperty("k", "fallback"))
}

// This block documents, at compile time, that the process-wide Locator
// satisfies the narrow Locator capability interface the Notifier depends
// on.
var (
	_ notifier.Locator = (*locator.Locator)(nil)
)

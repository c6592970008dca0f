package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dread-remote/console/internal/interfaces"
)

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	manager, err := NewManagerWithPath(path)
	require.NoError(t, err)
	return manager, path
}

func TestLoadCreatesDefaultsOnFirstRun(t *testing.T) {
	manager, path := newTestManager(t)

	settings, err := manager.Load()
	require.NoError(t, err)
	assert.Equal(t, "", settings.LastHost)
	assert.Equal(t, DefaultTheme, settings.Theme)

	// First load writes the file so later runs find it.
	_, err = os.Stat(path)
	assert.NoError(t, err)
	assert.Equal(t, path, manager.ConfigPath())
}

func TestRememberHostPersistsAcrossManagers(t *testing.T) {
	manager, path := newTestManager(t)
	require.NoError(t, manager.RememberHost("192.168.1.50"))

	reloaded, err := NewManagerWithPath(path)
	require.NoError(t, err)
	settings, err := reloaded.Load()
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.50", settings.LastHost)
	assert.Equal(t, DefaultTheme, settings.Theme)
}

func TestRememberHostSkipsRedundantWrites(t *testing.T) {
	manager, path := newTestManager(t)
	require.NoError(t, manager.RememberHost("10.0.0.5"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	before := info.ModTime()

	require.NoError(t, manager.RememberHost("10.0.0.5"))
	info, err = os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, before, info.ModTime())
}

func TestSavePersistsAllFields(t *testing.T) {
	manager, path := newTestManager(t)
	require.NoError(t, manager.Save(&interfaces.Settings{
		LastHost: "console.local",
		Theme:    "dracula",
	}))

	reloaded, err := NewManagerWithPath(path)
	require.NoError(t, err)
	settings, err := reloaded.Load()
	require.NoError(t, err)
	assert.Equal(t, "console.local", settings.LastHost)
	assert.Equal(t, "dracula", settings.Theme)
}

func TestSaveRejectsNilSettings(t *testing.T) {
	manager, _ := newTestManager(t)
	assert.Error(t, manager.Save(nil))
}

func TestLoadFillsMissingThemeWithDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("last_host: 172.16.0.2\n"), 0600))

	manager, err := NewManagerWithPath(path)
	require.NoError(t, err)
	settings, err := manager.Load()
	require.NoError(t, err)
	assert.Equal(t, "172.16.0.2", settings.LastHost)
	assert.Equal(t, DefaultTheme, settings.Theme)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("last_host: [unclosed"), 0600))

	manager, err := NewManagerWithPath(path)
	require.NoError(t, err)
	_, err = manager.Load()
	assert.Error(t, err)
}

// Package config implements configuration management for the Dread Remote
// Console: the last successfully used server host and the highlighting theme,
// persisted as YAML in the user's configuration directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/dread-remote/console/internal/interfaces"
)

// DefaultTheme is the chroma style used when none has been configured.
const DefaultTheme = "github"

// Manager implements the ConfigManager interface with cached file access.
type Manager struct {
	configPath string

	mu     sync.Mutex
	cached *interfaces.Settings
}

// NewManager creates a configuration manager with an OS-appropriate path,
// ensuring the configuration directory exists.
func NewManager() (*Manager, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, fmt.Errorf("failed to determine configuration path: %w", err)
	}
	return NewManagerWithPath(configPath)
}

// NewManagerWithPath creates a configuration manager backed by an explicit
// file path. Tests use this to avoid touching the real home directory.
func NewManagerWithPath(configPath string) (*Manager, error) {
	if err := os.MkdirAll(filepath.Dir(configPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}
	return &Manager{configPath: configPath}, nil
}

// getConfigPath determines the OS-appropriate configuration file path
func getConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}

	var configDir string
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		configDir = filepath.Join(xdgConfigHome, "dreadconsole")
	} else {
		configDir = filepath.Join(homeDir, ".config", "dreadconsole")
	}

	return filepath.Join(configDir, "config.yaml"), nil
}

// ConfigPath returns the path of the backing configuration file.
func (m *Manager) ConfigPath() string {
	return m.configPath
}

// Load retrieves the persisted settings, creating defaults on first run.
func (m *Manager) Load() (*interfaces.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadLocked()
}

func (m *Manager) loadLocked() (*interfaces.Settings, error) {
	if m.cached != nil {
		return m.cached, nil
	}

	if _, err := os.Stat(m.configPath); os.IsNotExist(err) {
		settings := defaultSettings()
		if err := m.saveLocked(settings); err != nil {
			return nil, fmt.Errorf("failed to create default configuration: %w", err)
		}
		m.cached = settings
		return settings, nil
	}

	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}

	var settings interfaces.Settings
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file: %w", err)
	}
	if settings.Theme == "" {
		settings.Theme = DefaultTheme
	}

	m.cached = &settings
	return &settings, nil
}

// Save persists the settings to the configuration file.
func (m *Manager) Save(settings *interfaces.Settings) error {
	if settings == nil {
		return fmt.Errorf("settings cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked(settings)
}

func (m *Manager) saveLocked(settings *interfaces.Settings) error {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to serialize configuration: %w", err)
	}
	if err := os.WriteFile(m.configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}
	m.cached = settings
	return nil
}

// RememberHost records a successfully used host and persists it.
func (m *Manager) RememberHost(host string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	settings, err := m.loadLocked()
	if err != nil {
		return err
	}
	if settings.LastHost == host {
		return nil
	}
	updated := *settings
	updated.LastHost = host
	return m.saveLocked(&updated)
}

func defaultSettings() *interfaces.Settings {
	return &interfaces.Settings{
		LastHost: "",
		Theme:    DefaultTheme,
	}
}

package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const reloadDebounce = 500 * time.Millisecond

// ReloadCallback is called with the previous and the new configuration after a
// successful reload.
type ReloadCallback func(oldConfig, newConfig *Config)

// Manager loads configuration and re-applies it when a watched file changes.
type Manager struct {
	mu        sync.RWMutex
	logger    *zap.Logger
	validator *validator.Validate
	config    *Config
	paths     []string
	callbacks []ReloadCallback
	watcher   *fsnotify.Watcher
}

func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{logger: logger, validator: validator.New()}
}

// Load reads defaults, then each existing file in order, then the
// environment. Missing files are skipped.
func (m *Manager) Load(paths ...string) (*Config, error) {
	cfg, loaded, err := m.read(paths)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.config = cfg
	m.paths = loaded
	m.mu.Unlock()

	if len(loaded) == 0 {
		m.logger.Warn("No configuration files found, using defaults and environment variables")
	} else {
		m.logger.Info("Configuration loaded", zap.Strings("files", loaded))
	}
	return cfg, nil
}

func (m *Manager) read(paths []string) (*Config, []string, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	var loaded []string
	for _, path := range paths {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			m.logger.Debug("Config file not found, skipping", zap.String("path", path))
			continue
		}
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
		loaded = append(loaded, path)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(m.validator); err != nil {
		return nil, nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, loaded, nil
}

// Get returns the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// OnReload registers a callback run after each successful reload.
func (m *Manager) OnReload(cb ReloadCallback) {
	m.mu.Lock()
	m.callbacks = append(m.callbacks, cb)
	m.mu.Unlock()
}

// Watch reloads on file writes until ctx is done. A reload that fails to
// parse or validate keeps the previous configuration.
func (m *Manager) Watch(ctx context.Context) error {
	m.mu.RLock()
	paths := append([]string(nil), m.paths...)
	m.mu.RUnlock()
	if len(paths) == 0 {
		m.logger.Info("No config files to watch, hot-reload disabled")
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()
	for _, path := range paths {
		if err := watcher.Add(path); err != nil {
			m.logger.Warn("Failed to watch config file", zap.String("path", path), zap.Error(err))
		}
	}
	m.logger.Info("File watcher started for hot-reload", zap.Strings("paths", paths))

	debounce := time.NewTimer(reloadDebounce)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				m.logger.Debug("Config file changed", zap.String("file", event.Name), zap.String("op", event.Op.String()))
				debounce.Reset(reloadDebounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			m.logger.Error("File watcher error", zap.Error(err))
		case <-debounce.C:
			if err := m.Reload(); err != nil {
				m.logger.Error("Failed to reload configuration", zap.Error(err))
			}
		}
	}
}

// Reload re-reads the files loaded last time.
func (m *Manager) Reload() error {
	m.mu.RLock()
	paths := append([]string(nil), m.paths...)
	old := m.config
	m.mu.RUnlock()

	cfg, _, err := m.read(paths)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.config = cfg
	callbacks := append([]ReloadCallback(nil), m.callbacks...)
	m.mu.Unlock()

	for _, cb := range callbacks {
		cb(old, cfg)
	}
	m.logger.Info("Configuration reloaded")
	return nil
}

package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"henkan/internal/logging"
)

// Loader handles configuration loading, watching, and hot-reloading.
type Loader struct {
	path     string
	config   *Config
	mu       sync.RWMutex
	watcher  *fsnotify.Watcher
	onChange []func(*Config)
	debounce time.Duration
	errChan  chan error
}

// NewLoader creates a new configuration loader.
func NewLoader(path string) *Loader {
	return &Loader{
		path:     path,
		debounce: 100 * time.Millisecond,
		errChan:  make(chan error, 1),
	}
}

// Load reads, migrates and validates the configuration file.
func (l *Loader) Load() (*Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cfg, err := loadConfigFromFile(l.path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnvOverrides()

	if cfg.Version < Version {
		result, err := MigrateConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("migration failed: %w", err)
		}
		for _, change := range result.Changes {
			logging.Component("config").Info("config migrated", "change", change)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	l.config = cfg
	return cfg, nil
}

// Config returns the current configuration.
func (l *Loader) Config() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.config
}

// Watch watches the configuration file until ctx is done. Changes are
// reloaded after a short debounce and handed to the OnChange callbacks.
// Watch blocks; run it in its own goroutine.
func (l *Loader) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	l.mu.Lock()
	l.watcher = watcher
	l.mu.Unlock()
	defer watcher.Close()

	// Editors replace files atomically, so watch the directory.
	if err := watcher.Add(filepath.Dir(l.path)); err != nil {
		return fmt.Errorf("watch directory: %w", err)
	}

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != filepath.Base(l.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(l.debounce, l.reload)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			l.report(err)
		}
	}
}

func (l *Loader) report(err error) {
	logging.Component("config").Warn("config watch error", "error", err)
	select {
	case l.errChan <- err:
	default:
	}
}

func (l *Loader) reload() {
	newCfg, err := loadConfigFromFile(l.path)
	if err != nil {
		l.report(fmt.Errorf("reload config: %w", err))
		return
	}
	newCfg.ApplyEnvOverrides()
	if newCfg.Version < Version {
		if _, err := MigrateConfig(newCfg); err != nil {
			l.report(fmt.Errorf("migrate new config: %w", err))
			return
		}
	}
	if err := newCfg.Validate(); err != nil {
		l.report(fmt.Errorf("validate new config: %w", err))
		return
	}

	l.mu.Lock()
	l.config = newCfg
	callbacks := append([]func(*Config){}, l.onChange...)
	l.mu.Unlock()

	logging.Component("config").Info("config reloaded", "path", l.path)
	for _, cb := range callbacks {
		cb(newCfg)
	}
}

// OnChange registers a callback to be invoked when the configuration changes.
func (l *Loader) OnChange(cb func(*Config)) {
	l.mu.Lock()
	l.onChange = append(l.onChange, cb)
	l.mu.Unlock()
}

// Errors returns a channel for receiving errors that occur during watching.
func (l *Loader) Errors() <-chan error {
	return l.errChan
}

// loadConfigFromFile reads and parses a config file based on its extension.
func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()

	switch filepath.Ext(path) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("decode TOML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode YAML: %w", err)
		}
	default:
		if err := autoDetectAndParse(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	return cfg, nil
}

// autoDetectAndParse attempts to parse the config in multiple formats.
func autoDetectAndParse(data []byte, cfg *Config) error {
	if _, err := toml.Decode(string(data), cfg); err == nil {
		return nil
	}
	if err := json.Unmarshal(data, cfg); err == nil {
		return nil
	}
	if err := yaml.Unmarshal(data, cfg); err == nil {
		return nil
	}
	return fmt.Errorf("unable to parse config file (tried TOML, JSON, YAML)")
}

func encode(cfg *Config, ext string) ([]byte, error) {
	switch ext {
	case ".json":
		cfg.mu.RLock()
		defer cfg.mu.RUnlock()
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode JSON: %w", err)
		}
		return data, nil
	case ".yaml", ".yml":
		cfg.mu.RLock()
		defer cfg.mu.RUnlock()
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("encode YAML: %w", err)
		}
		return data, nil
	default:
		return encodeTOML(cfg)
	}
}

// LoadOrCreate loads the configuration from the specified path,
// creating a default configuration file if it doesn't exist.
func LoadOrCreate(path string) (*Config, bool, error) {
	if path == "" {
		path = ConfigPath()
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := Save(cfg, path); err != nil {
			return nil, false, fmt.Errorf("create default config: %w", err)
		}
		return cfg, true, nil
	}

	cfg, err := NewLoader(path).Load()
	if err != nil {
		return nil, false, err
	}
	return cfg, false, nil
}

// Merge overlays the non-zero values of src onto a copy of dst.
// Booleans are taken from src only when src enables them.
func Merge(dst, src *Config) *Config {
	result := dst.Clone()

	if src.Version > 0 {
		result.Version = src.Version
	}

	if src.Conversion.SelectionShortcut != "" {
		result.Conversion.SelectionShortcut = src.Conversion.SelectionShortcut
	}
	if src.Conversion.UseCascadingWindow {
		result.Conversion.UseCascadingWindow = true
	}
	if src.Conversion.UseAutoConversion {
		result.Conversion.UseAutoConversion = true
	}
	if len(src.Conversion.AutoConversionKeys) > 0 {
		result.Conversion.AutoConversionKeys = append([]string{}, src.Conversion.AutoConversionKeys...)
	}
	if src.Conversion.IncognitoMode {
		result.Conversion.IncognitoMode = true
	}
	if src.Conversion.PresentationMode {
		result.Conversion.PresentationMode = true
	}
	if src.Conversion.MaxHistorySize > 0 {
		result.Conversion.MaxHistorySize = src.Conversion.MaxHistorySize
	}

	if src.Request.CandidatePageSize > 0 {
		result.Request.CandidatePageSize = src.Request.CandidatePageSize
	}
	if src.Request.MixedConversion {
		result.Request.MixedConversion = true
	}
	if src.Request.ZeroQuerySuggestion {
		result.Request.ZeroQuerySuggestion = true
	}
	if src.Request.AutoPartialSuggestion {
		result.Request.AutoPartialSuggestion = true
	}
	if src.Request.FillIncognitoCandidateWords {
		result.Request.FillIncognitoCandidateWords = true
	}
	if src.Request.SpaceOnAlphanumeric != "" {
		result.Request.SpaceOnAlphanumeric = src.Request.SpaceOnAlphanumeric
	}

	if src.Lexicon.Path != "" {
		result.Lexicon.Path = src.Lexicon.Path
	}

	if src.Store.Enabled {
		result.Store.Enabled = true
	}
	if src.Store.Path != "" {
		result.Store.Path = src.Store.Path
	}
	if src.Store.BusyTimeoutMs > 0 {
		result.Store.BusyTimeoutMs = src.Store.BusyTimeoutMs
	}

	if src.Metrics.Enabled {
		result.Metrics.Enabled = true
	}
	if src.Metrics.Addr != "" {
		result.Metrics.Addr = src.Metrics.Addr
	}

	if src.Tracing.Enabled {
		result.Tracing.Enabled = true
	}
	if src.Tracing.SampleRatio > 0 {
		result.Tracing.SampleRatio = src.Tracing.SampleRatio
	}

	if src.Logging.Level != "" {
		result.Logging.Level = src.Logging.Level
	}
	if src.Logging.Format != "" {
		result.Logging.Format = src.Logging.Format
	}
	if src.Logging.Output != "" {
		result.Logging.Output = src.Logging.Output
	}
	if src.Logging.FilePath != "" {
		result.Logging.FilePath = src.Logging.FilePath
	}
	if src.Logging.MaxSizeMB > 0 {
		result.Logging.MaxSizeMB = src.Logging.MaxSizeMB
	}
	if src.Logging.MaxBackups > 0 {
		result.Logging.MaxBackups = src.Logging.MaxBackups
	}

	return result
}

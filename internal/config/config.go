// Package config handles configuration loading, validation, and management for henkan.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/BurntSushi/toml"

	"henkan/internal/logging"
)

// Version is the current configuration schema version.
const Version = 2

// Selection shortcut settings.
const (
	ShortcutNone       = "none"
	Shortcut123456789  = "123456789"
	ShortcutASDFGHJKL  = "asdfghjkl"
	defaultPageSize    = 9
	defaultHistorySize = 4
)

// Space key behaviour in alphanumeric mode.
const (
	SpaceOrConvertKeepingComposition    = "space_or_convert_keeping_composition"
	SpaceOrConvertCommittingComposition = "space_or_convert_committing_composition"
	SpaceCommit                         = "commit"
)

// AutoConversionKey is a bitmask of punctuation that triggers auto-conversion.
type AutoConversionKey uint8

const (
	AutoConversionKuten AutoConversionKey = 1 << iota
	AutoConversionTouten
	AutoConversionQuestionMark
	AutoConversionExclamationMark
)

var autoConversionKeyNames = map[string]AutoConversionKey{
	"kuten":            AutoConversionKuten,
	"touten":           AutoConversionTouten,
	"question_mark":    AutoConversionQuestionMark,
	"exclamation_mark": AutoConversionExclamationMark,
}

// Config holds the complete engine configuration.
type Config struct {
	// Version is the configuration schema version for migrations.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Conversion holds the user preferences of the conversion engine.
	Conversion ConversionConfig `toml:"conversion" json:"conversion" yaml:"conversion"`

	// Request holds the client request knobs.
	Request RequestConfig `toml:"request" json:"request" yaml:"request"`

	// Lexicon configures the reference dictionary backend.
	Lexicon LexiconConfig `toml:"lexicon" json:"lexicon" yaml:"lexicon"`

	// Store configures usage statistics persistence.
	Store StoreConfig `toml:"store" json:"store" yaml:"store"`

	// Metrics configures the OpenTelemetry meter and scrape endpoint.
	Metrics MetricsConfig `toml:"metrics" json:"metrics" yaml:"metrics"`

	// Tracing configures backend call spans.
	Tracing TracingConfig `toml:"tracing" json:"tracing" yaml:"tracing"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	mu sync.RWMutex `toml:"-" json:"-" yaml:"-"`
}

// ConversionConfig holds user preferences that shape conversion.
type ConversionConfig struct {
	// SelectionShortcut labels candidates: "123456789", "asdfghjkl" or "none".
	SelectionShortcut string `toml:"selection_shortcut" json:"selection_shortcut" yaml:"selection_shortcut"`

	// UseCascadingWindow groups transliterations into a nested list.
	UseCascadingWindow bool `toml:"use_cascading_window" json:"use_cascading_window" yaml:"use_cascading_window"`

	// UseAutoConversion converts the composition when a trigger punctuation is typed.
	UseAutoConversion bool `toml:"use_auto_conversion" json:"use_auto_conversion" yaml:"use_auto_conversion"`

	// AutoConversionKeys lists the trigger punctuation:
	// kuten, touten, question_mark, exclamation_mark.
	AutoConversionKeys []string `toml:"auto_conversion_keys" json:"auto_conversion_keys" yaml:"auto_conversion_keys"`

	// IncognitoMode disables learning.
	IncognitoMode bool `toml:"incognito_mode" json:"incognito_mode" yaml:"incognito_mode"`

	// PresentationMode suppresses personalized candidates.
	PresentationMode bool `toml:"presentation_mode" json:"presentation_mode" yaml:"presentation_mode"`

	// MaxHistorySize is the number of committed segments kept as context.
	MaxHistorySize int `toml:"max_history_size" json:"max_history_size" yaml:"max_history_size"`
}

// RequestConfig holds per-client request knobs.
type RequestConfig struct {
	CandidatePageSize           int    `toml:"candidate_page_size" json:"candidate_page_size" yaml:"candidate_page_size"`
	MixedConversion             bool   `toml:"mixed_conversion" json:"mixed_conversion" yaml:"mixed_conversion"`
	ZeroQuerySuggestion         bool   `toml:"zero_query_suggestion" json:"zero_query_suggestion" yaml:"zero_query_suggestion"`
	AutoPartialSuggestion       bool   `toml:"auto_partial_suggestion" json:"auto_partial_suggestion" yaml:"auto_partial_suggestion"`
	FillIncognitoCandidateWords bool   `toml:"fill_incognito_candidate_words" json:"fill_incognito_candidate_words" yaml:"fill_incognito_candidate_words"`
	SpaceOnAlphanumeric         string `toml:"space_on_alphanumeric" json:"space_on_alphanumeric" yaml:"space_on_alphanumeric"`
}

// LexiconConfig points at the reading table of the reference backend.
type LexiconConfig struct {
	// Path is a TOML or YAML lexicon file. Empty selects the built-in table.
	Path string `toml:"path" json:"path" yaml:"path"`
}

// StoreConfig holds usage statistics persistence configuration.
type StoreConfig struct {
	// Enabled persists usage counters to SQLite.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// Path is the path to the database file.
	Path string `toml:"path" json:"path" yaml:"path"`

	// BusyTimeoutMs is the SQLite busy timeout in milliseconds.
	BusyTimeoutMs int `toml:"busy_timeout_ms" json:"busy_timeout_ms" yaml:"busy_timeout_ms"`
}

// MetricsConfig holds metrics export configuration.
type MetricsConfig struct {
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// Addr is the listen address of the Prometheus scrape endpoint.
	Addr string `toml:"addr" json:"addr" yaml:"addr"`
}

// TracingConfig holds tracing configuration.
type TracingConfig struct {
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// SampleRatio is the fraction of root spans recorded.
	SampleRatio float64 `toml:"sample_ratio" json:"sample_ratio" yaml:"sample_ratio"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is the log format: "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is "stdout", "stderr", "file", "both" or "discard".
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the path to the log file.
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`

	// MaxSizeMB is the maximum log file size before rotation.
	MaxSizeMB int `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`

	// MaxBackups is the number of old log files to keep.
	MaxBackups int `toml:"max_backups" json:"max_backups" yaml:"max_backups"`

	// Compress determines whether to compress rotated logs.
	Compress bool `toml:"compress" json:"compress" yaml:"compress"`

	// RedactUserText keeps typed and committed text out of the logs.
	RedactUserText bool `toml:"redact_user_text" json:"redact_user_text" yaml:"redact_user_text"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	dir := HenkanDir()

	return &Config{
		Version: Version,
		Conversion: ConversionConfig{
			SelectionShortcut:  Shortcut123456789,
			UseCascadingWindow: true,
			UseAutoConversion:  false,
			AutoConversionKeys: []string{"kuten", "question_mark", "exclamation_mark"},
			MaxHistorySize:     defaultHistorySize,
		},
		Request: RequestConfig{
			CandidatePageSize:   defaultPageSize,
			SpaceOnAlphanumeric: SpaceOrConvertKeepingComposition,
		},
		Store: StoreConfig{
			Enabled:       false,
			Path:          filepath.Join(dir, "usage.db"),
			BusyTimeoutMs: 5000,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9464",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			SampleRatio: 1.0,
		},
		Logging: LoggingConfig{
			Level:          "info",
			Format:         "text",
			Output:         "stderr",
			FilePath:       filepath.Join(PlatformLogDir(), "henkan.log"),
			MaxSizeMB:      20,
			MaxBackups:     3,
			Compress:       true,
			RedactUserText: true,
		},
	}
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(PlatformConfigDir(), "config.toml")
}

// HenkanDir returns the base data directory.
// HENKAN_DATA_DIR overrides the platform default.
func HenkanDir() string {
	if envDir := os.Getenv("HENKAN_DATA_DIR"); envDir != "" {
		return envDir
	}
	return PlatformDataDir()
}

// Load reads configuration from the specified path.
// If the file doesn't exist, returns default configuration.
// Supports TOML, JSON, and YAML formats based on file extension.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}
	cfg, err := loadConfigFromFile(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnvOverrides()
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables are prefixed with HENKAN_ and use underscores.
func (c *Config) ApplyEnvOverrides() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v := os.Getenv("HENKAN_LEXICON_PATH"); v != "" {
		c.Lexicon.Path = v
	}
	if v := os.Getenv("HENKAN_STORE_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("HENKAN_METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
	if v := os.Getenv("HENKAN_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("HENKAN_LOG_PATH"); v != "" {
		c.Logging.FilePath = v
	}
	if v := os.Getenv("HENKAN_PAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Request.CandidatePageSize = n
		}
	}
	if v := os.Getenv("HENKAN_INCOGNITO"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Conversion.IncognitoMode = b
		}
	}
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	clone := &Config{
		Version:    c.Version,
		Conversion: c.Conversion,
		Request:    c.Request,
		Lexicon:    c.Lexicon,
		Store:      c.Store,
		Metrics:    c.Metrics,
		Tracing:    c.Tracing,
		Logging:    c.Logging,
	}
	clone.Conversion.AutoConversionKeys = append([]string{}, c.Conversion.AutoConversionKeys...)
	return clone
}

// AutoConversionKeyMask folds AutoConversionKeys into a bitmask. Unknown
// names are ignored here and reported by Validate.
func (c *ConversionConfig) AutoConversionKeyMask() AutoConversionKey {
	var mask AutoConversionKey
	for _, name := range c.AutoConversionKeys {
		mask |= autoConversionKeyNames[name]
	}
	return mask
}

// Shortcuts returns the candidate labels for SelectionShortcut.
func (c *ConversionConfig) Shortcuts() string {
	switch c.SelectionShortcut {
	case Shortcut123456789, ShortcutASDFGHJKL:
		return c.SelectionShortcut
	default:
		return ""
	}
}

// PageSize returns the candidate page size, falling back to the default.
func (r *RequestConfig) PageSize() int {
	if r.CandidatePageSize <= 0 {
		return defaultPageSize
	}
	return r.CandidatePageSize
}

// LoggerConfig converts the logging section for logging.New.
func (l *LoggingConfig) LoggerConfig() (*logging.Config, error) {
	level, err := logging.ParseLevel(l.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(l.Format)
	if err != nil {
		return nil, err
	}
	cfg := logging.DefaultConfig()
	cfg.Level = level
	cfg.Format = format
	cfg.Output = l.Output
	cfg.FilePath = l.FilePath
	cfg.MaxSize = int64(l.MaxSizeMB)
	cfg.MaxBackups = l.MaxBackups
	cfg.Compress = l.Compress
	cfg.RedactUserText = l.RedactUserText
	return cfg, nil
}

// Save writes the configuration to path, choosing the encoding by extension.
func Save(cfg *Config, path string) error {
	data, err := encode(cfg, filepath.Ext(path))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func encodeTOML(cfg *Config) ([]byte, error) {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()
	data, err := toml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode TOML: %w", err)
	}
	return data, nil
}

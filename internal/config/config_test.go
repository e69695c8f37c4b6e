package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg == nil {
		t.Fatal("DefaultConfig returned nil")
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config does not validate: %v", err)
	}
	if cfg.Request.PageSize() != 9 {
		t.Errorf("expected page size 9, got %d", cfg.Request.PageSize())
	}
	if cfg.Conversion.Shortcuts() != "123456789" {
		t.Errorf("expected numeric shortcuts, got %q", cfg.Conversion.Shortcuts())
	}
	if !cfg.Conversion.UseCascadingWindow {
		t.Error("cascading window should be on by default")
	}
	if !cfg.Logging.RedactUserText {
		t.Error("user text redaction should be on by default")
	}
}

func TestConfigPath(t *testing.T) {
	path := ConfigPath()
	if !strings.HasSuffix(path, "config.toml") {
		t.Errorf("expected path ending with config.toml, got %s", path)
	}
	if !strings.Contains(path, "henkan") {
		t.Errorf("config path should contain henkan: %s", path)
	}
}

func TestHenkanDirOverride(t *testing.T) {
	t.Setenv("HENKAN_DATA_DIR", "/srv/henkan")
	if dir := HenkanDir(); dir != "/srv/henkan" {
		t.Errorf("expected override, got %s", dir)
	}
}

func TestLoadNonexistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.toml")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Request.PageSize() != 9 {
		t.Errorf("expected defaults, got page size %d", cfg.Request.PageSize())
	}
}

func TestLoadFormats(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"config.toml", `
[conversion]
selection_shortcut = "asdfghjkl"
use_auto_conversion = true

[request]
candidate_page_size = 5
zero_query_suggestion = true
`},
		{"config.yaml", `
conversion:
  selection_shortcut: asdfghjkl
  use_auto_conversion: true
request:
  candidate_page_size: 5
  zero_query_suggestion: true
`},
		{"config.json", `{
  "conversion": {"selection_shortcut": "asdfghjkl", "use_auto_conversion": true},
  "request": {"candidate_page_size": 5, "zero_query_suggestion": true}
}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.name)
			if err := os.WriteFile(path, []byte(tt.content), 0o600); err != nil {
				t.Fatalf("failed to write config: %v", err)
			}

			cfg, err := Load(path)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if cfg.Conversion.SelectionShortcut != ShortcutASDFGHJKL {
				t.Errorf("selection_shortcut = %q", cfg.Conversion.SelectionShortcut)
			}
			if !cfg.Conversion.UseAutoConversion {
				t.Error("use_auto_conversion not loaded")
			}
			if cfg.Request.CandidatePageSize != 5 {
				t.Errorf("candidate_page_size = %d", cfg.Request.CandidatePageSize)
			}
			if !cfg.Request.ZeroQuerySuggestion {
				t.Error("zero_query_suggestion not loaded")
			}
			// Untouched sections keep their defaults.
			if !cfg.Conversion.UseCascadingWindow {
				t.Error("use_cascading_window lost its default")
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	for _, ext := range []string{".toml", ".yaml", ".json"} {
		t.Run(ext, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Conversion.IncognitoMode = true
			cfg.Request.MixedConversion = true
			cfg.Conversion.AutoConversionKeys = []string{"touten"}

			path := filepath.Join(t.TempDir(), "config"+ext)
			if err := Save(cfg, path); err != nil {
				t.Fatalf("Save failed: %v", err)
			}
			loaded, err := Load(path)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if !loaded.Conversion.IncognitoMode || !loaded.Request.MixedConversion {
				t.Errorf("flags lost in round trip: %+v", loaded.Conversion)
			}
			if loaded.Conversion.AutoConversionKeyMask() != AutoConversionTouten {
				t.Errorf("trigger keys = %v", loaded.Conversion.AutoConversionKeys)
			}
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("HENKAN_LOG_LEVEL", "debug")
	t.Setenv("HENKAN_PAGE_SIZE", "7")
	t.Setenv("HENKAN_INCOGNITO", "true")
	t.Setenv("HENKAN_LEXICON_PATH", "/tmp/lexicon.yaml")

	cfg := DefaultConfig()
	cfg.ApplyEnvOverrides()

	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %s", cfg.Logging.Level)
	}
	if cfg.Request.CandidatePageSize != 7 {
		t.Errorf("page size = %d", cfg.Request.CandidatePageSize)
	}
	if !cfg.Conversion.IncognitoMode {
		t.Error("incognito override not applied")
	}
	if cfg.Lexicon.Path != "/tmp/lexicon.yaml" {
		t.Errorf("lexicon path = %s", cfg.Lexicon.Path)
	}
}

func TestValidateConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Conversion.SelectionShortcut = "qwerty"
	cfg.Conversion.AutoConversionKeys = []string{"kuten", "semicolon"}
	cfg.Request.CandidatePageSize = 500
	cfg.Logging.Level = "verbose"
	cfg.Metrics.Enabled = true
	cfg.Metrics.Addr = "no-port"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}

	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	fields := make(map[string]bool)
	for _, e := range verrs {
		fields[e.Field] = true
	}
	for _, f := range []string{
		"conversion.selection_shortcut",
		"conversion.auto_conversion_keys",
		"request.candidate_page_size",
		"logging.level",
		"metrics.addr",
	} {
		if !fields[f] {
			t.Errorf("missing validation error for %s", f)
		}
	}
}

func TestMigrateV1(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
version = 1

[conversion]
selection_shortcut = "SHORTCUT_ASDFGHJKL"
auto_conversion_keys = ["AUTO_CONVERSION_KUTEN", "AUTO_CONVERSION_TOUTEN"]

[request]
candidate_page_size = 0
space_on_alphanumeric = "COMMIT"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := NewLoader(path).Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Version != Version {
		t.Errorf("version = %d, want %d", cfg.Version, Version)
	}
	if cfg.Conversion.SelectionShortcut != ShortcutASDFGHJKL {
		t.Errorf("selection_shortcut = %q", cfg.Conversion.SelectionShortcut)
	}
	if got := cfg.Conversion.AutoConversionKeyMask(); got != AutoConversionKuten|AutoConversionTouten {
		t.Errorf("trigger mask = %b", got)
	}
	if cfg.Request.SpaceOnAlphanumeric != SpaceCommit {
		t.Errorf("space_on_alphanumeric = %q", cfg.Request.SpaceOnAlphanumeric)
	}
	if cfg.Request.CandidatePageSize != 9 {
		t.Errorf("page size = %d", cfg.Request.CandidatePageSize)
	}
}

func TestMigrateUnknownVersion(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Version = 0
	if _, err := MigrateConfig(cfg); err == nil {
		t.Error("expected error for version 0")
	}
}

func TestMerge(t *testing.T) {
	dst := DefaultConfig()
	src := &Config{
		Conversion: ConversionConfig{SelectionShortcut: ShortcutNone, IncognitoMode: true},
		Request:    RequestConfig{CandidatePageSize: 3},
	}

	merged := Merge(dst, src)
	if merged.Conversion.SelectionShortcut != ShortcutNone {
		t.Errorf("selection_shortcut = %q", merged.Conversion.SelectionShortcut)
	}
	if !merged.Conversion.IncognitoMode {
		t.Error("incognito not merged")
	}
	if merged.Request.CandidatePageSize != 3 {
		t.Errorf("page size = %d", merged.Request.CandidatePageSize)
	}
	if merged.Logging.Level != "info" {
		t.Errorf("logging level lost: %q", merged.Logging.Level)
	}
	if dst.Conversion.IncognitoMode {
		t.Error("Merge modified dst")
	}
}

func TestCloneIsDeep(t *testing.T) {
	cfg := DefaultConfig()
	clone := cfg.Clone()
	clone.Conversion.AutoConversionKeys[0] = "touten"
	clone.Conversion.IncognitoMode = true

	if cfg.Conversion.AutoConversionKeys[0] != "kuten" {
		t.Error("Clone shares AutoConversionKeys")
	}
	if cfg.Conversion.IncognitoMode {
		t.Error("Clone shares Conversion")
	}
}

func TestLoggerConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.Level = "warn"
	cfg.Logging.Format = "json"

	lc, err := cfg.Logging.LoggerConfig()
	if err != nil {
		t.Fatalf("LoggerConfig: %v", err)
	}
	if lc.MaxSize != 20 || !lc.RedactUserText {
		t.Errorf("unexpected logger config: %+v", lc)
	}

	cfg.Logging.Format = "xml"
	if _, err := cfg.Logging.LoggerConfig(); err == nil {
		t.Error("expected error for xml format")
	}
}

func TestLoaderHotReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := Save(DefaultConfig(), path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loader := NewLoader(path)
	loader.debounce = 10 * time.Millisecond
	if _, err := loader.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	changed := make(chan *Config, 4)
	loader.OnChange(func(cfg *Config) {
		select {
		case changed <- cfg:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loader.Watch(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	updated := DefaultConfig()
	updated.Request.CandidatePageSize = 4

	// The watcher may not be registered yet, so keep rewriting until a
	// reload is observed.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case cfg := <-changed:
			if cfg.Request.CandidatePageSize != 4 {
				t.Fatalf("reloaded page size = %d", cfg.Request.CandidatePageSize)
			}
			if loader.Config().Request.CandidatePageSize != 4 {
				t.Error("loader did not keep the reloaded config")
			}
			return
		case <-tick.C:
			if err := Save(updated, path); err != nil {
				t.Fatalf("Save failed: %v", err)
			}
		case <-deadline:
			t.Fatal("no reload observed")
		}
	}
}

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
		hasError bool
	}{
		{"debug", LevelDebug, false},
		{"DEBUG", LevelDebug, false},
		{"info", LevelInfo, false},
		{"", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"invalid", LevelInfo, true},
	}

	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			level, err := ParseLevel(test.input)
			if test.hasError && err == nil {
				t.Error("expected error, got nil")
			}
			if !test.hasError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !test.hasError && level != test.expected {
				t.Errorf("expected %v, got %v", test.expected, level)
			}
		})
	}
}

func TestLevelString(t *testing.T) {
	for _, level := range []Level{LevelDebug, LevelInfo, LevelWarn, LevelError} {
		parsed, err := ParseLevel(LevelString(level))
		if err != nil {
			t.Fatalf("ParseLevel(%q): %v", LevelString(level), err)
		}
		if parsed != level {
			t.Errorf("round trip of %v gave %v", level, parsed)
		}
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("json"); err != nil || f != FormatJSON {
		t.Errorf("ParseFormat(json) = %v, %v", f, err)
	}
	if f, err := ParseFormat(""); err != nil || f != FormatText {
		t.Errorf("ParseFormat(\"\") = %v, %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("expected error for xml")
	}
}

func newBufferLogger(t *testing.T, mutate func(*Config)) (*Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Format = FormatJSON
	cfg.Writer = &buf
	if mutate != nil {
		mutate(cfg)
	}
	logger, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	return logger, &buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	line := strings.TrimSpace(buf.String())
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("failed to parse JSON log %q: %v", line, err)
	}
	return entry
}

func TestRedactsUserText(t *testing.T) {
	logger, buf := newBufferLogger(t, nil)

	logger.Info("commit", "value", "秘密の文章", "segments", 2)

	entry := decodeLine(t, buf)
	if entry["value"] != "[REDACTED]" {
		t.Errorf("value not redacted: %v", entry["value"])
	}
	if entry["segments"] != float64(2) {
		t.Errorf("segments = %v, want 2", entry["segments"])
	}
}

func TestUserTextVisibleWhenRedactionOff(t *testing.T) {
	logger, buf := newBufferLogger(t, func(c *Config) { c.RedactUserText = false })

	logger.Info("commit", "value", "ねこ", "api_key", "abc")

	entry := decodeLine(t, buf)
	if entry["value"] != "ねこ" {
		t.Errorf("value = %v, want ねこ", entry["value"])
	}
	if entry["api_key"] != "[REDACTED]" {
		t.Errorf("api_key should stay redacted, got %v", entry["api_key"])
	}
}

func TestRedactPatterns(t *testing.T) {
	logger, buf := newBufferLogger(t, func(c *Config) {
		c.RedactPatterns = []string{"^client_"}
	})

	logger.Info("start", "client_name", "editor")

	if entry := decodeLine(t, buf); entry["client_name"] != "[REDACTED]" {
		t.Errorf("client_name not redacted: %v", entry["client_name"])
	}

	if _, err := New(&Config{RedactPatterns: []string{"("}, Output: "discard"}); err == nil {
		t.Error("expected error for invalid pattern")
	}
}

func TestWithComponentAndSession(t *testing.T) {
	logger, buf := newBufferLogger(t, nil)

	ctx := ContextWithSessionID(context.Background(), "s-1")
	logger.WithComponent("conversion").WithContext(ctx).Warn("resize declined")

	entry := decodeLine(t, buf)
	if entry["component"] != "conversion" {
		t.Errorf("component = %v", entry["component"])
	}
	if entry["session_id"] != "s-1" {
		t.Errorf("session_id = %v", entry["session_id"])
	}
}

func TestSessionIDFromContext(t *testing.T) {
	if id := SessionIDFromContext(nil); id != "" { //nolint:staticcheck
		t.Errorf("expected empty id, got %q", id)
	}
	if id := SessionIDFromContext(context.Background()); id != "" {
		t.Errorf("expected empty id, got %q", id)
	}
}

func TestFileRotatorRotation(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{
		FilePath:   filepath.Join(dir, "henkan.log"),
		MaxSize:    1,
		MaxBackups: 2,
		Compress:   true,
	}

	r, err := NewFileRotator(cfg)
	if err != nil {
		t.Fatalf("NewFileRotator: %v", err)
	}
	defer r.Close()

	chunk := bytes.Repeat([]byte("x"), 700*1024)
	for i := 0; i < 4; i++ {
		if _, err := r.Write(chunk); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	backups, err := r.Backups()
	if err != nil {
		t.Fatalf("Backups: %v", err)
	}
	if len(backups) != 2 {
		t.Fatalf("expected 2 backups, got %d: %v", len(backups), backups)
	}
	for _, b := range backups {
		if !strings.HasSuffix(b, ".gz") {
			t.Errorf("backup %s not compressed", b)
		}
	}

	info, err := os.Stat(cfg.FilePath)
	if err != nil {
		t.Fatalf("stat current log: %v", err)
	}
	if info.Size() != int64(len(chunk)) {
		t.Errorf("current log size = %d, want %d", info.Size(), len(chunk))
	}
}

func TestDiscard(t *testing.T) {
	l := Discard()
	l.Error("dropped")
	if err := l.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

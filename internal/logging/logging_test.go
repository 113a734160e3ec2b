package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
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
		{"warn", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"invalid", LevelInfo, true},
		{"", LevelInfo, true},
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
	for _, name := range []string{"debug", "info", "warn", "error"} {
		level, err := ParseLevel(name)
		if err != nil {
			t.Fatalf("ParseLevel(%q): %v", name, err)
		}
		if got := LevelString(level); got != name {
			t.Errorf("expected %q, got %q", name, got)
		}
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("json"); err != nil || f != FormatJSON {
		t.Errorf("expected json format, got %v (%v)", f, err)
	}
	if f, err := ParseFormat(""); err != nil || f != FormatText {
		t.Errorf("expected text format for empty string, got %v (%v)", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("expected error for xml")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("expected default level Info, got %v", cfg.Level)
	}
	if cfg.Format != FormatText {
		t.Errorf("expected default format Text, got %v", cfg.Format)
	}
	if cfg.Output != "stderr" {
		t.Errorf("expected default output stderr, got %s", cfg.Output)
	}
	if cfg.Component != "fieldsync" {
		t.Errorf("expected component fieldsync, got %s", cfg.Component)
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Format = FormatJSON
	cfg.Writer = &buf

	logger, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create JSON logger: %v", err)
	}
	defer logger.Close()

	logger.WithComponent("pipeline").Info("state transformed", "count", 3)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	if record["msg"] != "state transformed" {
		t.Errorf("unexpected msg: %v", record["msg"])
	}
	if record["app"] != "fieldsync" {
		t.Errorf("unexpected app: %v", record["app"])
	}
	if record["component"] != "pipeline" {
		t.Errorf("unexpected component: %v", record["component"])
	}
	if record["count"] != float64(3) {
		t.Errorf("unexpected count: %v", record["count"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Level = LevelWarn
	cfg.Writer = &buf

	logger, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info record passed a warn-level logger")
	}
	if !strings.Contains(out, "shown") {
		t.Error("warn record missing")
	}
}

func TestRedactText(t *testing.T) {
	tests := []struct {
		name   string
		redact bool
		want   string
		absent string
	}{
		{"redacted", true, `text="[6 runes]"`, "hunter"},
		{"plain", false, "text=hunter", "runes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			cfg := DefaultConfig()
			cfg.Writer = &buf
			cfg.RedactText = tt.redact

			logger, err := New(cfg)
			if err != nil {
				t.Fatalf("failed to create logger: %v", err)
			}
			logger.Info("edit", "text", "hunter", "count", 2)

			out := buf.String()
			if !strings.Contains(out, tt.want) {
				t.Errorf("expected %q in %q", tt.want, out)
			}
			if strings.Contains(out, tt.absent) {
				t.Errorf("unexpected %q in %q", tt.absent, out)
			}
			if !strings.Contains(out, "count=2") {
				t.Errorf("non-text attribute altered: %q", out)
			}
		})
	}
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "fieldsync.log")
	cfg := DefaultConfig()
	cfg.Output = "file"
	cfg.FilePath = path

	logger, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	logger.Info("to file")
	if err := logger.Sync(); err != nil {
		t.Errorf("sync failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "to file") {
		t.Errorf("log file missing record: %q", data)
	}
}

func TestFileRotatorRequiresPath(t *testing.T) {
	if _, err := NewFileRotator(RotatorConfig{}); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestFileRotatorSizeRotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")

	r, err := NewFileRotator(RotatorConfig{
		Path:       path,
		MaxBytes:   64,
		MaxBackups: 2,
	})
	if err != nil {
		t.Fatalf("failed to create rotator: %v", err)
	}

	line := []byte("0123456789012345678901234567890\n") // 32 bytes
	for i := 0; i < 10; i++ {
		n, err := r.Write(line)
		if err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
		if n != len(line) {
			t.Errorf("expected to write %d bytes, wrote %d", len(line), n)
		}
	}
	if err := r.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat current log: %v", err)
	}
	if info.Size() > 64 {
		t.Errorf("current log exceeds max size: %d", info.Size())
	}

	backups, err := r.Backups()
	if err != nil {
		t.Fatalf("list backups: %v", err)
	}
	if len(backups) == 0 || len(backups) > 2 {
		t.Errorf("expected 1-2 backups, got %d: %v", len(backups), backups)
	}
}

func TestFileRotatorDailyRotationAndCompression(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")

	r, err := NewFileRotator(RotatorConfig{Path: path, Compress: true})
	if err != nil {
		t.Fatalf("failed to create rotator: %v", err)
	}

	if _, err := r.Write([]byte("yesterday\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	tomorrow := time.Now().AddDate(0, 0, 1)
	r.mu.Lock()
	r.now = func() time.Time { return tomorrow }
	r.mu.Unlock()

	if _, err := r.Write([]byte("today\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	backups, err := r.Backups()
	if err != nil {
		t.Fatalf("list backups: %v", err)
	}
	if len(backups) != 1 || !strings.HasSuffix(backups[0], ".log.gz") {
		t.Fatalf("expected one compressed backup, got %v", backups)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read current log: %v", err)
	}
	if string(data) != "today\n" {
		t.Errorf("unexpected current log contents: %q", data)
	}
}

package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLoggerWritesRunFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	logger, path, err := newLogger("debug", dir)
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}
	if filepath.Dir(path) != dir || !strings.HasSuffix(path, ".log") {
		t.Fatalf("unexpected log path %q", path)
	}
	logger.Info("hello")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) || !strings.Contains(string(data), `"ts":`) {
		t.Fatalf("unexpected log content %s", data)
	}
}

func TestNewLoggerWithoutFolder(t *testing.T) {
	_, path, err := newLogger("info", "")
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}
	if path != "" {
		t.Fatalf("expected no log path, got %q", path)
	}
	if _, _, err := newLogger("loud", ""); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

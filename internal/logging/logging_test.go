package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/TimelordUK/bigless/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" WARN ", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"chatty", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "bigless.log")
	log, closer, err := New(config.LogConfig{File: path, Level: "debug"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ForComponent(log, CompTask).Debug("task spawned", slog.String("name", "filter"))
	if err := closer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, "component=task") || !strings.Contains(out, "name=filter") {
		t.Errorf("log output = %q", out)
	}
}

func TestNewWithoutFileDiscards(t *testing.T) {
	log, closer, err := New(config.LogConfig{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	log.Info("dropped")
	if err := closer.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

package logformat

import (
	"testing"
	"time"

	"github.com/TimelordUK/bigless/internal/config"
)

func TestDetect(t *testing.T) {
	d := NewLevelDetector(&config.DefaultConfig().LogLevels)
	tests := []struct {
		line string
		want LogLevel
	}{
		{"2024-01-15 10:30:45 [INF] started", LevelInfo},
		{"2024-01-15 10:30:45 WARN disk at 91%", LevelWarn},
		{"[ERROR] failed after INFO retry", LevelError},
		{"FATAL: out of memory", LevelFatal},
		{"plain text", LevelUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			if got := d.Detect([]byte(tt.line)); got != tt.want {
				t.Errorf("Detect(%q) = %v, want %v", tt.line, got, tt.want)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	if l, err := ParseLevel("Warning"); err != nil || l != LevelWarn {
		t.Errorf("ParseLevel(Warning) = %v, %v", l, err)
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Errorf("ParseLevel(loud) succeeded")
	}
}

func TestParseTimestamp(t *testing.T) {
	p := NewTimestampParser()
	p.now = func() time.Time { return time.Date(2024, 3, 1, 0, 0, 0, 0, time.Local) }

	tests := []struct {
		name string
		line string
		want time.Time
	}{
		{"rfc3339", "2024-01-15T10:30:45Z request", time.Date(2024, 1, 15, 10, 30, 45, 0, time.UTC)},
		{"space millis", "2024-01-15 10:30:45.123 INFO x", time.Date(2024, 1, 15, 10, 30, 45, 123e6, time.Local)},
		{"comma millis", "[2024-01-15 10:30:45,500] x", time.Date(2024, 1, 15, 10, 30, 45, 500e6, time.Local)},
		{"syslog", "Jan 15 10:30:45 host sshd", time.Date(2024, 1, 15, 10, 30, 45, 0, time.Local)},
		{"unix", "1705315845 event", time.Unix(1705315845, 0)},
		{"time only", "10:30:45 boot", time.Date(2024, 3, 1, 10, 30, 45, 0, time.Local)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := p.Parse([]byte(tt.line))
			if !ok {
				t.Fatalf("Parse(%q) found nothing", tt.line)
			}
			if !got.Equal(tt.want) {
				t.Errorf("Parse(%q) = %v, want %v", tt.line, got, tt.want)
			}
		})
	}

	if _, ok := p.Parse([]byte("no time here")); ok {
		t.Errorf("Parse matched a line without a timestamp")
	}
}

func TestParseInput(t *testing.T) {
	p := NewTimestampParser()
	ref := time.Date(2024, 1, 15, 23, 0, 0, 0, time.Local)
	got, ok := p.ParseInput("14:30", ref)
	if !ok || !got.Equal(time.Date(2024, 1, 15, 14, 30, 0, 0, time.Local)) {
		t.Errorf("ParseInput(14:30) = %v, %v", got, ok)
	}
}

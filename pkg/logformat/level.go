package logformat

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/TimelordUK/bigless/internal/config"
)

// LogLevel represents a log severity level
type LogLevel int

const (
	LevelUnknown LogLevel = iota
	LevelTrace
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// Levels lists the detectable levels in ascending severity
var Levels = []LogLevel{LevelTrace, LevelDebug, LevelInfo, LevelWarn, LevelError, LevelFatal}

func (l LogLevel) String() string {
	switch l {
	case LevelTrace:
		return "trace"
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// ParseLevel accepts level names and their common abbreviations
func ParseLevel(name string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trace", "trc":
		return LevelTrace, nil
	case "debug", "dbg":
		return LevelDebug, nil
	case "info", "inf":
		return LevelInfo, nil
	case "warn", "warning", "wrn":
		return LevelWarn, nil
	case "error", "err":
		return LevelError, nil
	case "fatal", "ftl", "crit", "critical":
		return LevelFatal, nil
	}
	return LevelUnknown, fmt.Errorf("unknown log level %q", name)
}

// LevelDetector detects log levels from line content
type LevelDetector struct {
	patterns map[LogLevel][][]byte
}

// NewLevelDetector creates a detector from config
func NewLevelDetector(cfg *config.LogLevelConfig) *LevelDetector {
	compile := func(patterns []string) [][]byte {
		out := make([][]byte, 0, len(patterns))
		for _, p := range patterns {
			if p != "" {
				out = append(out, []byte(p))
			}
		}
		return out
	}
	return &LevelDetector{
		patterns: map[LogLevel][][]byte{
			LevelTrace: compile(cfg.TracePatterns),
			LevelDebug: compile(cfg.DebugPatterns),
			LevelInfo:  compile(cfg.InfoPatterns),
			LevelWarn:  compile(cfg.WarnPatterns),
			LevelError: compile(cfg.ErrorPatterns),
			LevelFatal: compile(cfg.FatalPatterns),
		},
	}
}

// Detect returns the log level for a line
func (d *LevelDetector) Detect(content []byte) LogLevel {
	// Most severe first so "ERROR: retrying after INFO" reads as an error
	for i := len(Levels) - 1; i >= 0; i-- {
		level := Levels[i]
		for _, pattern := range d.patterns[level] {
			if bytes.Contains(content, pattern) {
				return level
			}
		}
	}
	return LevelUnknown
}

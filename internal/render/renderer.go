package render

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/TimelordUK/bigless/internal/config"
	"github.com/TimelordUK/bigless/pkg/logformat"
)

// Renderer applies styling to a laid-out line. spans are byte ranges of
// text to emphasise, typically search occurrences, sorted and disjoint.
type Renderer interface {
	Render(text string, spans [][2]int) string
}

// LogLevelRenderer colors lines based on log level
type LogLevelRenderer struct {
	detector *logformat.LevelDetector
	styles   map[logformat.LogLevel]lipgloss.Style
	match    lipgloss.Style
}

// NewLogLevelRenderer creates a renderer with config
func NewLogLevelRenderer(cfg *config.Config) *LogLevelRenderer {
	detector := logformat.NewLevelDetector(&cfg.LogLevels)

	styles := map[logformat.LogLevel]lipgloss.Style{
		logformat.LevelUnknown: lipgloss.NewStyle(),
		logformat.LevelTrace:   lipgloss.NewStyle().Foreground(lipgloss.Color(cfg.Theme.Levels.Trace)),
		logformat.LevelDebug:   lipgloss.NewStyle().Foreground(lipgloss.Color(cfg.Theme.Levels.Debug)),
		logformat.LevelInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color(cfg.Theme.Levels.Info)),
		logformat.LevelWarn:    lipgloss.NewStyle().Foreground(lipgloss.Color(cfg.Theme.Levels.Warn)),
		logformat.LevelError:   lipgloss.NewStyle().Foreground(lipgloss.Color(cfg.Theme.Levels.Error)),
		logformat.LevelFatal:   lipgloss.NewStyle().Foreground(lipgloss.Color(cfg.Theme.Levels.Fatal)),
	}

	return &LogLevelRenderer{
		detector: detector,
		styles:   styles,
		match:    MatchStyle(cfg),
	}
}

// Render applies log level styling to a line
func (r *LogLevelRenderer) Render(text string, spans [][2]int) string {
	style := r.styles[r.detector.Detect([]byte(text))]
	return Highlight(text, spans, style, r.match)
}

// PlainRenderer renders without styling apart from match highlights
type PlainRenderer struct {
	match lipgloss.Style
}

// NewPlainRenderer creates a plain renderer
func NewPlainRenderer(cfg *config.Config) *PlainRenderer {
	return &PlainRenderer{match: MatchStyle(cfg)}
}

// Render returns the text as-is with matches highlighted
func (r *PlainRenderer) Render(text string, spans [][2]int) string {
	if len(spans) == 0 {
		return text
	}
	return Highlight(text, spans, lipgloss.NewStyle(), r.match)
}

// MatchStyle is the style of search occurrences
func MatchStyle(cfg *config.Config) lipgloss.Style {
	return lipgloss.NewStyle().
		Background(lipgloss.Color(cfg.Theme.SearchMatch)).
		Foreground(lipgloss.Color("0"))
}

// Highlight renders text with base, switching to match inside spans.
// Out-of-range spans are clipped.
func Highlight(text string, spans [][2]int, base, match lipgloss.Style) string {
	var b strings.Builder
	pos := 0
	for _, sp := range spans {
		start, end := max(sp[0], pos), min(sp[1], len(text))
		if start >= end {
			continue
		}
		if start > pos {
			b.WriteString(base.Render(text[pos:start]))
		}
		b.WriteString(match.Render(text[start:end]))
		pos = end
	}
	if pos < len(text) {
		b.WriteString(base.Render(text[pos:]))
	}
	return b.String()
}

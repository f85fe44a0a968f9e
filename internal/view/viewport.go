package view

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/TimelordUK/bigless/internal/config"
	"github.com/TimelordUK/bigless/internal/line"
	"github.com/TimelordUK/bigless/internal/offset"
	"github.com/TimelordUK/bigless/internal/render"
	"github.com/TimelordUK/bigless/internal/search"
)

// Frame is everything one redraw shows
type Frame struct {
	Lines       []line.RawLine
	Occurrences []search.Occurrence // sorted, may extend past the page
	Current     *search.Occurrence
	Marks       map[rune]offset.Offset
	Size        offset.Offset // sizes the offset gutter
}

// Viewport draws a page of lines
// It knows nothing about log formats, filters, or file sources
type Viewport struct {
	renderer render.Renderer

	// Dimensions
	width  int
	height int

	// Styling
	offsetStyle  lipgloss.Style
	currentStyle lipgloss.Style

	// Options
	showOffsets bool
	tabWidth    int
}

// NewViewport creates a new viewport
func NewViewport(width, height int) *Viewport {
	return &Viewport{
		width:        width,
		height:       height,
		showOffsets:  true,
		tabWidth:     4,
		offsetStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		currentStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("226")).Bold(true),
		renderer:     &render.PlainRenderer{},
	}
}

// Configure applies display options and theme colors
func (v *Viewport) Configure(cfg *config.Config) {
	v.showOffsets = cfg.Display.ShowOffsets
	v.tabWidth = cfg.Display.TabWidth
	v.offsetStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(cfg.Theme.LineNumbers))
	v.currentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(cfg.Theme.SearchMatch)).Bold(true)
}

// SetRenderer sets the line renderer
func (v *Viewport) SetRenderer(r render.Renderer) {
	v.renderer = r
}

// SetSize updates viewport dimensions
func (v *Viewport) SetSize(width, height int) {
	v.width = width
	v.height = height
}

// Height returns the number of lines a page holds
func (v *Viewport) Height() int {
	return v.height
}

// SetShowOffsets toggles the offset gutter
func (v *Viewport) SetShowOffsets(show bool) {
	v.showOffsets = show
}

// Render returns the frame as a string, padded to the viewport height
func (v *Viewport) Render(f Frame) string {
	var builder strings.Builder
	gutter := 0
	if v.showOffsets {
		gutter = len(fmt.Sprint(f.Size.Int64()))
	}

	occ := f.Occurrences
	for i, l := range f.Lines {
		if i > 0 {
			builder.WriteString("\n")
		}
		available := v.width
		if v.showOffsets {
			builder.WriteString(v.gutter(l, gutter, f))
			available -= gutter + 2
		}

		// Skip occurrences wholly before this line
		for len(occ) > 0 && occ[0].Range.End <= l.Start {
			occ = occ[1:]
		}
		content := l.Content()
		text, spans := Layout(content, spansIn(occ, l.Start, len(content)), v.tabWidth, max(available, 0))
		builder.WriteString(v.renderer.Render(text, spans))
	}

	// Pad with empty lines if needed
	for i := len(f.Lines); i < v.height; i++ {
		if i > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString("~")
	}

	return builder.String()
}

// gutter renders the line's start offset and a mark indicator
func (v *Viewport) gutter(l line.RawLine, width int, f Frame) string {
	marker := " "
	var found rune
	for name, at := range f.Marks {
		if l.Range().Contains(at) && (found == 0 || name < found) {
			found = name
		}
	}
	if found != 0 {
		marker = string(found)
	}
	text := fmt.Sprintf("%*d%s ", width, l.Start.Int64(), marker)
	if f.Current != nil && f.Current.Line.Start == l.Start {
		return v.currentStyle.Render(text)
	}
	return v.offsetStyle.Render(text)
}

// spansIn converts occurrences overlapping a line starting at start into
// byte ranges of its n content bytes
func spansIn(occ []search.Occurrence, start offset.Offset, n int) [][2]int {
	end := start + offset.Of(n)
	var spans [][2]int
	for _, o := range occ {
		if o.Range.Start >= end {
			break
		}
		s := offset.MaxOf(o.Range.Start, start) - start
		e := offset.MinOf(o.Range.End, end) - start
		if s < e {
			spans = append(spans, [2]int{int(s), int(e)})
		}
	}
	return spans
}

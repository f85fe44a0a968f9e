package view

import (
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
)

// Layout expands tabs, replaces control and invalid bytes, and cuts content
// to width terminal cells. spans are byte ranges of content; the returned
// spans are the same ranges in the laid-out text, with anything cut off
// dropped.
func Layout(content []byte, spans [][2]int, tabWidth, width int) (string, [][2]int) {
	if tabWidth <= 0 {
		tabWidth = 1
	}
	var b strings.Builder
	// pos[i] is where content byte i landed in the output.
	pos := make([]int, len(content)+1)
	cells := 0
	i := 0
	for i < len(content) {
		r, size := utf8.DecodeRune(content[i:])
		var text string
		var w int
		switch {
		case r == '\t':
			w = tabWidth - cells%tabWidth
			text = strings.Repeat(" ", w)
		case r == utf8.RuneError && size == 1, r < 0x20, r == 0x7f:
			w, text = 1, "?"
		default:
			w, text = runewidth.RuneWidth(r), string(content[i:i+size])
		}
		if cells+w > width {
			break
		}
		for j := 0; j < size; j++ {
			pos[i+j] = b.Len()
		}
		b.WriteString(text)
		cells += w
		i += size
	}
	for ; i <= len(content); i++ {
		pos[i] = b.Len()
	}

	var out [][2]int
	for _, sp := range spans {
		start, end := clamp(sp[0], len(content)), clamp(sp[1], len(content))
		if s, e := pos[start], pos[end]; s < e {
			out = append(out, [2]int{s, e})
		}
	}
	return b.String(), out
}

func clamp(v, hi int) int {
	return min(max(v, 0), hi)
}

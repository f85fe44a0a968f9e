package render

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/TimelordUK/bigless/internal/config"
)

func TestHighlightKeepsText(t *testing.T) {
	tests := []struct {
		name  string
		spans [][2]int
	}{
		{name: "none"},
		{name: "one", spans: [][2]int{{2, 4}}},
		{name: "adjacent", spans: [][2]int{{0, 2}, {2, 4}}},
		{name: "whole", spans: [][2]int{{0, 11}}},
		{name: "past end", spans: [][2]int{{8, 40}}},
		{name: "overlapping", spans: [][2]int{{1, 5}, {3, 7}}},
		{name: "empty", spans: [][2]int{{3, 3}}},
	}
	match := lipgloss.NewStyle().Bold(true)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Highlight("hello world", tt.spans, lipgloss.NewStyle(), match)
			if ansi.Strip(got) != "hello world" {
				t.Errorf("Highlight() text = %q", ansi.Strip(got))
			}
		})
	}
}

func TestRenderersKeepText(t *testing.T) {
	cfg := config.DefaultConfig()
	renderers := map[string]Renderer{
		"plain":  NewPlainRenderer(cfg),
		"level":  NewLogLevelRenderer(cfg),
		"syntax": NewSyntaxRenderer("main.go", cfg),
	}
	lines := []string{"2024-01-02 ERROR boom", "func main() {}", ""}
	for name, r := range renderers {
		for _, text := range lines {
			for _, spans := range [][][2]int{nil, {{0, 4}}} {
				if got := ansi.Strip(r.Render(text, spans)); got != text {
					t.Errorf("%s.Render(%q, %v) text = %q", name, text, spans, got)
				}
			}
		}
	}
}

func TestIsSyntaxHighlightable(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{name: "main.go", want: true},
		{name: "/etc/app/config.yaml", want: true},
		{name: "Makefile", want: true},
		{name: "app.log", want: false},
		{name: "messages", want: false},
	}
	for _, tt := range tests {
		if got := IsSyntaxHighlightable(tt.name); got != tt.want {
			t.Errorf("IsSyntaxHighlightable(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

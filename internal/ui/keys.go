package ui

import (
	"github.com/charmbracelet/bubbles/key"

	"github.com/TimelordUK/bigless/internal/config"
)

// keyMap holds the normal mode bindings
type keyMap struct {
	Quit        key.Binding
	ScrollUp    key.Binding
	ScrollDown  key.Binding
	PageUp      key.Binding
	PageDown    key.Binding
	Top         key.Binding
	Bottom      key.Binding
	Search      key.Binding
	SearchBack  key.Binding
	NextMatch   key.Binding
	PrevMatch   key.Binding
	Filter      key.Binding
	GotoLine    key.Binding
	GotoTime    key.Binding
	Follow      key.Binding
	Interrupt   key.Binding
	Export      key.Binding
	SetMark     key.Binding
	JumpMark    key.Binding
	RevertSlice key.Binding
}

func binding(keys []string, desc string) key.Binding {
	help := ""
	if len(keys) > 0 {
		help = keys[0]
	}
	return key.NewBinding(key.WithKeys(keys...), key.WithHelp(help, desc))
}

func newKeyMap(kb config.KeybindingConfig) keyMap {
	return keyMap{
		Quit:        binding(kb.Quit, "quit"),
		ScrollUp:    binding(kb.ScrollUp, "up"),
		ScrollDown:  binding(kb.ScrollDown, "down"),
		PageUp:      binding(kb.PageUp, "page up"),
		PageDown:    binding(kb.PageDown, "page down"),
		Top:         binding(kb.Top, "top"),
		Bottom:      binding(kb.Bottom, "bottom"),
		Search:      binding(kb.Search, "search"),
		SearchBack:  binding(kb.SearchBack, "search back"),
		NextMatch:   binding(kb.NextMatch, "next"),
		PrevMatch:   binding(kb.PrevMatch, "prev"),
		Filter:      binding(kb.Filter, "filter"),
		GotoLine:    binding(kb.GotoLine, "goto"),
		GotoTime:    binding(kb.GotoTime, "time"),
		Follow:      binding(kb.Follow, "follow"),
		Interrupt:   binding(kb.Interrupt, "stop"),
		Export:      binding(kb.Export, "slice"),
		SetMark:     binding(kb.SetMark, "mark"),
		JumpMark:    binding(kb.JumpMark, "jump"),
		RevertSlice: binding(kb.RevertSlice, "unslice"),
	}
}

// ShortHelp implements help.KeyMap
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.ScrollDown, k.PageDown, k.Search, k.NextMatch, k.Filter, k.GotoLine, k.Follow, k.Quit}
}

// FullHelp implements help.KeyMap
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.ScrollUp, k.ScrollDown, k.PageUp, k.PageDown, k.Top, k.Bottom},
		{k.Search, k.SearchBack, k.NextMatch, k.PrevMatch, k.Filter, k.Interrupt},
		{k.GotoLine, k.GotoTime, k.SetMark, k.JumpMark, k.Follow},
		{k.Export, k.RevertSlice, k.Quit},
	}
}

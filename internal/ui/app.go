package ui

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/TimelordUK/bigless/internal/config"
	"github.com/TimelordUK/bigless/internal/logging"
	"github.com/TimelordUK/bigless/internal/search"
	"github.com/TimelordUK/bigless/internal/session"
)

// Mode represents the current UI mode
type Mode int

const (
	ModeNormal Mode = iota
	ModeSearch
	ModeSearchBack
	ModeFilter
	ModeGoto
	ModeTime
	ModeExport
	ModeSetMark
	ModeJumpMark
)

// prompt is shown in front of the input for modes that read a line
func (m Mode) prompt() string {
	switch m {
	case ModeSearch:
		return "/"
	case ModeSearchBack:
		return "?"
	case ModeFilter:
		return "&"
	case ModeGoto:
		return ":"
	case ModeTime:
		return "time: "
	case ModeExport:
		return "slice: "
	case ModeSetMark:
		return "mark: "
	case ModeJumpMark:
		return "jump to mark: "
	}
	return ""
}

// ModelOptions configures model creation
type ModelOptions struct {
	Filepath  string
	CacheFile bool
	GotoTime  string
	Filter    string
	Follow    bool
	Config    *config.Config
	Logger    *slog.Logger
}

type (
	tickMsg        time.Time
	fileChangedMsg struct{}
)

// Model is the main application model
type Model struct {
	pane   *Pane
	config *config.Config
	log    *slog.Logger
	keys   keyMap
	help   help.Model
	input  textinput.Model

	mode   Mode
	width  int
	height int

	// Status
	message string
}

// NewModel creates a new application model with defaults
func NewModel(filepath string) (*Model, error) {
	return NewModelWithOptions(ModelOptions{Filepath: filepath})
}

// NewModelWithOptions creates a new application model
func NewModelWithOptions(opts ModelOptions) (*Model, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}

	pane, err := NewPane(opts.Filepath, cfg, log, opts.CacheFile)
	if err != nil {
		return nil, err
	}

	ti := textinput.New()
	ti.Prompt = ""
	ti.CharLimit = 256

	m := &Model{
		pane:   pane,
		config: cfg,
		log:    logging.ForComponent(log, logging.CompUI),
		keys:   newKeyMap(cfg.Keybindings),
		help:   help.New(),
		input:  ti,
		mode:   ModeNormal,
	}

	if opts.Filter != "" {
		if err := pane.ApplyFilter(opts.Filter); err != nil {
			pane.Close()
			return nil, err
		}
	}
	if opts.GotoTime != "" {
		if err := pane.GotoTime(opts.GotoTime); err != nil {
			m.message = err.Error()
		}
	}
	if opts.Follow {
		if _, err := pane.ToggleFollowing(); err != nil {
			m.message = err.Error()
		}
	}
	return m, nil
}

// Init implements tea.Model
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.tick(), m.waitForChange())
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(m.config.Engine.PollInterval(), func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// waitForChange blocks on the file watcher; nil when nothing is watched
func (m *Model) waitForChange() tea.Cmd {
	changed := m.pane.Changed()
	if changed == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-changed; !ok {
			return nil
		}
		return fileChangedMsg{}
	}
}

// Update implements tea.Model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		// Reserve 2 lines for status bar and help/prompt
		m.pane.SetSize(msg.Width, max(msg.Height-2, 1))
		return m, nil

	case tickMsg:
		for _, ev := range m.pane.Poll() {
			m.handleEvent(ev)
		}
		return m, m.tick()

	case fileChangedMsg:
		if err := m.pane.CheckForNewLines(); err != nil {
			m.setError(err)
		}
		return m, m.waitForChange()
	}

	return m, nil
}

func (m *Model) handleEvent(ev session.Event) {
	switch ev.Kind {
	case session.SearchFailed:
		switch {
		case errors.Is(ev.Err, search.ErrNotFound):
			m.message = "Pattern not found"
		case errors.Is(ev.Err, search.ErrInterrupted):
			m.message = "Search interrupted"
		default:
			m.setError(ev.Err)
		}
	case session.FilterDone:
		if ev.Scan.Interrupted {
			m.message = "Filter interrupted"
		}
	case session.ExportDone:
		switch {
		case ev.Err != nil:
			m.setError(ev.Err)
		case ev.Slice == nil:
			m.message = "Slice interrupted"
		default:
			m.message = fmt.Sprintf("Slice: %s lines", humanize.Comma(int64(ev.Slice.Lines)))
		}
	}
}

func (m *Model) setError(err error) {
	if err != nil {
		m.message = "Error: " + err.Error()
		m.log.Debug("command failed", slog.String("error", err.Error()))
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Handle mode-specific input
	switch m.mode {
	case ModeNormal:
	case ModeSetMark, ModeJumpMark:
		return m.handleMarkKey(msg)
	default:
		return m.handlePromptKey(msg)
	}

	m.message = ""
	m.pane.Session().ClearErr()
	var err error
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.ScrollDown):
		err = m.pane.Scroll(1)
	case key.Matches(msg, m.keys.ScrollUp):
		err = m.pane.Scroll(-1)
	case key.Matches(msg, m.keys.PageDown):
		err = m.pane.PageDown()
	case key.Matches(msg, m.keys.PageUp):
		err = m.pane.PageUp()
	case key.Matches(msg, m.keys.Top):
		err = m.pane.GotoTop()
	case key.Matches(msg, m.keys.Bottom):
		err = m.pane.GotoBottom()

	case key.Matches(msg, m.keys.Search):
		return m, m.startPrompt(ModeSearch, "Search...")
	case key.Matches(msg, m.keys.SearchBack):
		return m, m.startPrompt(ModeSearchBack, "Search backward...")
	case key.Matches(msg, m.keys.Filter):
		return m, m.startPrompt(ModeFilter, "text, /regex, level:warn+, time:13:00..14:00, ! inverts")
	case key.Matches(msg, m.keys.GotoLine):
		return m, m.startPrompt(ModeGoto, "Line number or @offset...")
	case key.Matches(msg, m.keys.GotoTime):
		return m, m.startPrompt(ModeTime, "14:30, 14:30:00, 2006-01-02 15:04...")
	case key.Matches(msg, m.keys.Export):
		return m, m.startPrompt(ModeExport, ".-$, 'a-'b, 100,200, 13:00-14:00")
	case key.Matches(msg, m.keys.SetMark):
		m.mode = ModeSetMark
	case key.Matches(msg, m.keys.JumpMark):
		m.mode = ModeJumpMark

	case key.Matches(msg, m.keys.NextMatch):
		err = m.pane.NextSearchResult(search.Forward)
	case key.Matches(msg, m.keys.PrevMatch):
		err = m.pane.NextSearchResult(search.Backward)

	case key.Matches(msg, m.keys.Follow):
		var on bool
		on, err = m.pane.ToggleFollowing()
		if on {
			m.message = "Following"
		}
	case key.Matches(msg, m.keys.Interrupt):
		m.pane.Interrupt()
	case key.Matches(msg, m.keys.RevertSlice):
		if m.pane.HasSlice() {
			err = m.pane.RevertSlice()
		}
	}
	m.setError(err)
	return m, nil
}

func (m *Model) startPrompt(mode Mode, placeholder string) tea.Cmd {
	m.mode = mode
	m.input.SetValue("")
	m.input.Placeholder = placeholder
	return m.input.Focus()
}

func (m *Model) handlePromptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		value := m.input.Value()
		mode := m.mode
		m.mode = ModeNormal
		m.input.Blur()
		m.setError(m.submit(mode, value))
		return m, nil

	case tea.KeyEsc, tea.KeyCtrlC:
		m.mode = ModeNormal
		m.input.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) submit(mode Mode, value string) error {
	switch mode {
	case ModeSearch:
		return m.pane.PerformSearch(value, search.Forward)
	case ModeSearchBack:
		return m.pane.PerformSearch(value, search.Backward)
	case ModeFilter:
		return m.pane.ApplyFilter(value)
	case ModeGoto:
		return m.pane.GotoLine(value)
	case ModeTime:
		return m.pane.GotoTime(value)
	case ModeExport:
		return m.pane.ExportRange(value)
	}
	return nil
}

func (m *Model) handleMarkKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	mode := m.mode
	m.mode = ModeNormal
	if msg.Type != tea.KeyRunes || len(msg.Runes) != 1 {
		return m, nil
	}
	char := msg.Runes[0]
	if mode == ModeSetMark {
		m.pane.SetMark(char)
		m.message = fmt.Sprintf("Mark '%c' set", char)
		return m, nil
	}
	m.setError(m.pane.JumpToMark(char))
	return m, nil
}

// View implements tea.Model
func (m *Model) View() string {
	var builder strings.Builder

	// Main content
	builder.WriteString(m.pane.Render())
	builder.WriteString("\n")

	// Status bar
	statusStyle := lipgloss.NewStyle().
		Background(lipgloss.Color(m.config.Theme.StatusBar)).
		Foreground(lipgloss.Color(m.config.Theme.StatusBarText)).
		Width(m.width)
	builder.WriteString(statusStyle.Render(m.statusLine()))
	builder.WriteString("\n")

	// Prompt, message or help line
	switch {
	case m.mode != ModeNormal:
		builder.WriteString(m.mode.prompt() + m.input.View())
	case m.message != "":
		builder.WriteString(m.message)
	default:
		builder.WriteString(m.help.View(m.keys))
	}

	return builder.String()
}

func (m *Model) statusLine() string {
	st := m.pane.Session().Status()
	parts := []string{" " + m.pane.Filename()}

	if m.pane.HasSlice() {
		parts = append(parts, fmt.Sprintf("[slice %d: %s]", m.pane.SliceDepth(), m.pane.CurrentSlice().Range))
	}

	percent := 100
	if st.Size > 0 {
		percent = int(st.Top * 100 / st.Size)
	}
	parts = append(parts, fmt.Sprintf("@%s/%s %d%%",
		humanize.Comma(st.Top.Int64()), humanize.IBytes(uint64(st.Size.Int64())), percent))

	if st.Filtered {
		count := humanize.Comma(int64(st.Matches)) + "+"
		if st.TotalKnown {
			count = humanize.Comma(int64(st.Total))
		}
		filter := fmt.Sprintf("&%s %s lines", st.Filter, count)
		if st.FilterProgress >= 0 {
			filter += fmt.Sprintf(" %d%%", st.FilterProgress)
		}
		parts = append(parts, filter)
	}

	if st.Pattern != "" {
		pattern := "/" + st.Pattern
		if st.SearchProgress >= 0 {
			pattern += fmt.Sprintf(" %d%%", st.SearchProgress)
		}
		parts = append(parts, pattern)
	}

	if st.ExportProgress >= 0 {
		parts = append(parts, fmt.Sprintf("slicing %d%%", st.ExportProgress))
	}
	if m.pane.IsFollowing() {
		parts = append(parts, "[F]")
	}
	if m.pane.IsCached() {
		parts = append(parts, "[cached]")
	}
	if st.Err != nil {
		parts = append(parts, "error: "+st.Err.Error())
	}
	return strings.Join(parts, "  ")
}

// Close cleans up resources
func (m *Model) Close() error {
	return m.pane.Close()
}

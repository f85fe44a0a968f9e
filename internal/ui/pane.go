package ui

import (
	"crypto/md5"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/TimelordUK/bigless/internal/config"
	mlessio "github.com/TimelordUK/bigless/internal/io"
	"github.com/TimelordUK/bigless/internal/logging"
	"github.com/TimelordUK/bigless/internal/offset"
	"github.com/TimelordUK/bigless/internal/render"
	"github.com/TimelordUK/bigless/internal/search"
	"github.com/TimelordUK/bigless/internal/session"
	"github.com/TimelordUK/bigless/internal/slice"
	"github.com/TimelordUK/bigless/internal/view"
)

// sliceView is an exported slice opened in its own session
type sliceView struct {
	info    *slice.Info
	session *session.Session
}

// Pane represents a single file view with its own state
type Pane struct {
	viewport *view.Viewport
	session  *session.Session
	config   *config.Config
	log      *slog.Logger
	rootLog  *slog.Logger

	// File state
	filename   string
	sourcePath string
	cachePath  string
	isCached   bool

	// Follow mode
	following bool
	watcher   *mlessio.Watcher

	// Slices opened from exports, innermost last
	sliceStack []*sliceView
}

// NewPane creates a new pane for a file
func NewPane(filePath string, cfg *config.Config, log *slog.Logger, cacheFile bool) (*Pane, error) {
	if log == nil {
		log = logging.Discard()
	}
	var actualPath string
	var cachePath string
	var isCached bool

	if cacheFile {
		// Generate cache filename from source path hash
		hash := md5.Sum([]byte(filePath))
		baseName := filepath.Base(filePath)
		cachePath = filepath.Join(os.TempDir(), fmt.Sprintf("bigless-%x-%s", hash[:8], baseName))

		// Copy file to cache
		if err := copyFile(filePath, cachePath); err != nil {
			return nil, fmt.Errorf("failed to cache file: %w", err)
		}

		actualPath = cachePath
		isCached = true
	} else {
		actualPath = filePath
	}

	sess, err := session.Open(actualPath, session.Options{Config: cfg, Logger: log})
	if err != nil {
		// Clean up cache file if we created one
		if cachePath != "" {
			os.Remove(cachePath)
		}
		return nil, err
	}

	viewport := view.NewViewport(80, 24)
	viewport.Configure(cfg)
	viewport.SetRenderer(rendererFor(filePath, cfg))

	p := &Pane{
		viewport:   viewport,
		session:    sess,
		config:     cfg,
		log:        logging.ForComponent(log, logging.CompUI),
		rootLog:    log,
		filename:   filepath.Base(filePath),
		sourcePath: filePath,
		cachePath:  cachePath,
		isCached:   isCached,
	}

	// A pane without a watcher still works, it just never follows
	if w, err := mlessio.Watch(filePath, logging.ForComponent(log, logging.CompWatch)); err != nil {
		p.log.Warn("watch failed", slog.String("path", filePath), slog.String("error", err.Error()))
	} else {
		p.watcher = w
	}
	return p, nil
}

// rendererFor picks syntax highlighting for source files and log level
// coloring for everything else
func rendererFor(filePath string, cfg *config.Config) render.Renderer {
	if cfg.Display.Syntax && render.IsSyntaxHighlightable(filePath) {
		return render.NewSyntaxRenderer(filePath, cfg)
	}
	return render.NewLogLevelRenderer(cfg)
}

// SetSize sets the viewport size
func (p *Pane) SetSize(width, height int) {
	p.viewport.SetSize(width, height)
}

// Height returns the number of lines on a page
func (p *Pane) Height() int {
	return max(p.viewport.Height(), 1)
}

// Session returns the session being viewed, the innermost slice if any
func (p *Pane) Session() *session.Session {
	if n := len(p.sliceStack); n > 0 {
		return p.sliceStack[n-1].session
	}
	return p.session
}

// Render returns the rendered viewport content
func (p *Pane) Render() string {
	s := p.Session()
	page, err := s.Page(p.viewport.Height())
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}

	frame := view.Frame{
		Lines: page,
		Marks: s.Marks(),
		Size:  s.Status().Size,
	}
	if len(page) > 0 && s.Pattern() != nil {
		iv := offset.Span(page[0].Start, page[len(page)-1].End())
		occ, err := s.Occurrences(iv)
		if err != nil {
			p.log.Debug("occurrences failed", slog.String("error", err.Error()))
		}
		frame.Occurrences = occ
	}
	if cur, ok := s.Current(); ok {
		frame.Current = &cur
	}
	return p.viewport.Render(frame)
}

// Poll drains background work of every open session and returns the events
// of the one being viewed. A finished export is opened as a new slice.
func (p *Pane) Poll() []session.Event {
	active := p.Session()
	var events []session.Event
	for _, s := range p.sessions() {
		evs := s.Poll()
		if s == active {
			events = evs
		}
	}
	for _, ev := range events {
		if ev.Kind == session.ExportDone && ev.Err == nil && ev.Slice != nil {
			if err := p.pushSlice(ev.Slice); err != nil {
				p.log.Warn("open slice failed", slog.String("path", ev.Slice.Path), slog.String("error", err.Error()))
				slice.Cleanup(ev.Slice)
			}
		}
	}
	return events
}

// Busy reports whether any session still runs background work
func (p *Pane) Busy() bool {
	for _, s := range p.sessions() {
		if s.Busy() {
			return true
		}
	}
	return false
}

func (p *Pane) sessions() []*session.Session {
	all := []*session.Session{p.session}
	for _, sv := range p.sliceStack {
		all = append(all, sv.session)
	}
	return all
}

// Close cleans up pane resources
func (p *Pane) Close() error {
	if p.watcher != nil {
		p.watcher.Close()
	}
	for len(p.sliceStack) > 0 {
		p.RevertSlice()
	}
	err := p.session.Close()

	// Delete cached file
	if p.cachePath != "" {
		os.Remove(p.cachePath)
	}

	return err
}

// Filename returns the display filename
func (p *Pane) Filename() string {
	return p.filename
}

// IsCached returns whether the file is cached
func (p *Pane) IsCached() bool {
	return p.isCached
}

// Changed delivers a value when the watched file may have changed, nil when
// the file is not watched
func (p *Pane) Changed() <-chan struct{} {
	if p.watcher == nil {
		return nil
	}
	return p.watcher.Changed()
}

// IsFollowing returns whether follow mode is active
func (p *Pane) IsFollowing() bool {
	return p.following
}

// ToggleFollowing toggles follow mode, jumping to the end when it turns on
func (p *Pane) ToggleFollowing() (bool, error) {
	p.following = !p.following
	if p.following {
		return true, p.Session().GotoBottom(p.Height())
	}
	return false, nil
}

// CheckForNewLines picks up changes to the file. A cached copy is brought
// up to date first. In follow mode the view moves to the end.
func (p *Pane) CheckForNewLines() error {
	if p.isCached {
		if err := syncCache(p.sourcePath, p.cachePath); err != nil {
			return err
		}
	}
	changed, err := p.session.Refresh()
	if err != nil {
		return err
	}
	if changed && p.following && !p.HasSlice() {
		return p.session.GotoBottom(p.Height())
	}
	return nil
}

// Scroll moves the view by delta lines
func (p *Pane) Scroll(delta int) error {
	return p.Session().Scroll(delta, p.Height())
}

// PageDown scrolls down by one page
func (p *Pane) PageDown() error {
	return p.Scroll(p.Height() - 1)
}

// PageUp scrolls up by one page
func (p *Pane) PageUp() error {
	return p.Scroll(-(p.Height() - 1))
}

// GotoTop scrolls to the beginning
func (p *Pane) GotoTop() error {
	return p.Session().GotoTop()
}

// GotoBottom scrolls to the end
func (p *Pane) GotoBottom() error {
	return p.Session().GotoBottom(p.Height())
}

// GotoLine moves to a 1-based visible line number or, with a leading @, to
// a raw byte offset
func (p *Pane) GotoLine(input string) error {
	input = strings.TrimSpace(input)
	if raw, ok := strings.CutPrefix(input, "@"); ok {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			return fmt.Errorf("%w: %q", ErrBadRef, input)
		}
		return p.Session().GotoOffset(offset.Of(n))
	}
	n, err := strconv.Atoi(input)
	if err != nil || n < 1 {
		return fmt.Errorf("%w: %q", ErrBadRef, input)
	}
	return p.Session().GotoLine(n - 1)
}

// GotoTime navigates to a specific time
func (p *Pane) GotoTime(input string) error {
	return p.Session().GotoTime(input)
}

// PerformSearch starts a search for input in direction dir
func (p *Pane) PerformSearch(input string, dir search.Direction) error {
	if strings.TrimSpace(input) == "" {
		p.Session().ClearSearch()
		return nil
	}
	return p.Session().Search(input, dir)
}

// NextSearchResult steps to the next occurrence in direction dir
func (p *Pane) NextSearchResult(dir search.Direction) error {
	return p.Session().SearchNext(dir)
}

// ApplyFilter parses input and makes it the active filter. Empty input
// clears the filter.
func (p *Pane) ApplyFilter(input string) error {
	if strings.TrimSpace(input) == "" {
		p.Session().ClearFilter()
		return nil
	}
	spec, err := p.Session().ParseFilter(input)
	if err != nil {
		return err
	}
	return p.Session().SetFilter(spec)
}

// SetMark sets a mark at the current line
func (p *Pane) SetMark(char rune) {
	p.Session().SetMark(char)
}

// JumpToMark jumps to a mark
func (p *Pane) JumpToMark(char rune) error {
	return p.Session().JumpToMark(char)
}

// Interrupt stops every background task of the viewed session
func (p *Pane) Interrupt() {
	p.Session().Interrupt()
}

// ExportRange parses a range and exports the visible lines inside it to a
// slice, opened once written
func (p *Pane) ExportRange(input string) error {
	s := p.Session()
	st := s.Status()
	iv, err := parseRange(input, refContext{
		top:   st.Top,
		size:  st.Size,
		marks: s.Marks(),
		line:  s.Resolve,
		at:    s.OffsetAtTime,
	})
	if err != nil {
		return err
	}
	s.Export(iv)
	return nil
}

// HasSlice returns whether the pane has an active slice
func (p *Pane) HasSlice() bool {
	return len(p.sliceStack) > 0
}

// SliceDepth returns how many slices are stacked
func (p *Pane) SliceDepth() int {
	return len(p.sliceStack)
}

// CurrentSlice returns the current slice info
func (p *Pane) CurrentSlice() *slice.Info {
	if len(p.sliceStack) == 0 {
		return nil
	}
	return p.sliceStack[len(p.sliceStack)-1].info
}

func (p *Pane) pushSlice(info *slice.Info) error {
	// Track parent slice info
	if parent := p.CurrentSlice(); parent != nil {
		info.Parent = parent
	}
	sess, err := session.Open(info.Path, session.Options{Config: p.config, Logger: p.rootLog})
	if err != nil {
		return err
	}
	p.sliceStack = append(p.sliceStack, &sliceView{info: info, session: sess})
	p.log.Info("slice opened",
		slog.String("path", info.Path),
		slog.String("range", info.Range.String()),
		slog.Int("lines", info.Lines))
	return nil
}

// RevertSlice returns to the parent file/slice
func (p *Pane) RevertSlice() error {
	if len(p.sliceStack) == 0 {
		return nil
	}

	// Get current slice info
	current := p.sliceStack[len(p.sliceStack)-1]
	p.sliceStack = p.sliceStack[:len(p.sliceStack)-1]

	return errors.Join(current.session.Close(), slice.Cleanup(current.info))
}

// copyFile copies src to dst
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// syncCache appends to dst whatever src gained since the last copy, or
// copies it again when src shrank
func syncCache(src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return err
	}
	dstInfo, err := os.Stat(dst)
	if err != nil {
		return err
	}
	switch {
	case srcInfo.Size() < dstInfo.Size():
		return copyFile(src, dst)
	case srcInfo.Size() == dstInfo.Size():
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	if _, err := in.Seek(dstInfo.Size(), io.SeekStart); err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

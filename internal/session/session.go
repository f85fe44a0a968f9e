// Package session is the model a front end drives. It owns one open file,
// its filtered view, the active search and every background task, and turns
// task signals into events on the caller's goroutine.
//
// A Session is not safe for concurrent use. All methods are expected to run
// on the front end's goroutine; workers only ever talk to it through their
// signal channels, drained by Poll.
package session

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/TimelordUK/bigless/internal/config"
	mlessio "github.com/TimelordUK/bigless/internal/io"
	"github.com/TimelordUK/bigless/internal/line"
	"github.com/TimelordUK/bigless/internal/logging"
	"github.com/TimelordUK/bigless/internal/offset"
	"github.com/TimelordUK/bigless/internal/search"
	"github.com/TimelordUK/bigless/internal/slice"
	"github.com/TimelordUK/bigless/internal/source"
	"github.com/TimelordUK/bigless/internal/task"
	"github.com/TimelordUK/bigless/pkg/logformat"
)

var (
	// ErrNoSearch is returned by SearchNext before any pattern was set.
	ErrNoSearch = errors.New("no active search")
	// ErrNoMark is returned when jumping to a mark that was never set.
	ErrNoMark = errors.New("mark not set")
)

// Options configure a Session.
type Options struct {
	Config   *config.Config
	Logger   *slog.Logger
	SliceDir string // where exports are written, the temp dir when empty
}

type filterTask struct {
	handle   *task.Handle
	signals  <-chan task.Signal[[]source.ScanChunk, source.ScanResult]
	gen      uint64
	progress int
}

type findTask struct {
	handle   *task.Handle
	signals  <-chan task.Signal[struct{}, search.FindResult]
	progress int
}

type exportTask struct {
	handle   *task.Handle
	signals  <-chan task.Signal[struct{}, slice.Result]
	progress int
}

// Session is the query, command and event surface of one open file.
type Session struct {
	cfg      *config.Config
	log      *slog.Logger
	backend  mlessio.Backend
	filtered *source.Filtered
	lines    *line.Reader
	detector *logformat.LevelDetector
	parser   *logformat.TimestampParser
	slicer   *slice.Slicer
	taskOpts []task.Option

	size  offset.Offset
	top   offset.Offset
	marks map[rune]offset.Offset

	engine  *search.Engine
	pattern *search.Pattern
	current *search.Occurrence

	filter  *filterTask
	find    *findTask
	export  *exportTask
	lastErr error
}

// Open opens path with the backend selected by the configuration.
func Open(path string, opts Options) (*Session, error) {
	if opts.Config == nil {
		opts.Config = config.DefaultConfig()
	}
	b, err := mlessio.Open(path, opts.Config.Engine.UseMmap)
	if err != nil {
		return nil, err
	}
	s, err := New(b, opts)
	if err != nil {
		b.Close()
		return nil, err
	}
	return s, nil
}

// New builds a session over an already opened backend. The session takes
// ownership of b and closes it in Close.
func New(b mlessio.Backend, opts Options) (*Session, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}

	filtered, err := source.NewFiltered(b, nil, source.OptionsFrom(cfg.Engine, opts.Logger))
	if err != nil {
		return nil, err
	}
	lines, err := line.Open(b, cfg.Engine.ChunkSize)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", b.Path(), err)
	}
	size, err := filtered.Size()
	if err != nil {
		return nil, err
	}

	s := &Session{
		cfg:      cfg,
		log:      logging.ForComponent(opts.Logger, logging.CompSession),
		backend:  b,
		filtered: filtered,
		lines:    lines,
		detector: logformat.NewLevelDetector(&cfg.LogLevels),
		parser:   logformat.NewTimestampParser(),
		slicer:   slice.NewSlicer(opts.SliceDir, cfg.Engine.ChunkSize, cfg.Engine.InterruptCheck()),
		taskOpts: []task.Option{
			task.WithChannelSize(cfg.Engine.ChannelSize),
			task.WithLogger(logging.ForComponent(opts.Logger, logging.CompTask)),
		},
		size:  size,
		marks: make(map[rune]offset.Offset),
	}
	s.log.Debug("session opened", slog.String("path", b.Path()), slog.Int64("size", size.Int64()))
	return s, nil
}

// Close interrupts every task and releases the file.
func (s *Session) Close() error {
	s.Interrupt()
	s.filter, s.find, s.export = nil, nil, nil
	return s.backend.Close()
}

// Path returns the path of the open file.
func (s *Session) Path() string {
	return s.backend.Path()
}

// Top returns the raw offset of the first line of the viewport.
func (s *Session) Top() offset.Offset {
	return s.top
}

// Page returns up to n visible lines from the top of the viewport. The page
// may be short while a filter is still scanning sparse regions.
func (s *Session) Page(n int) ([]line.RawLine, error) {
	page, err := s.filtered.Lines(s.top, n)
	if errors.Is(err, source.ErrPending) {
		return page, nil
	}
	return page, err
}

// Line reads the raw line enclosing off.
func (s *Session) Line(off offset.Offset) (line.RawLine, error) {
	return s.lines.ReadFrom(off)
}

// Resolve returns the raw range of the k-th visible line of the file.
func (s *Session) Resolve(k int) (offset.Interval, error) {
	return s.filtered.Resolve(k)
}

// ResolveOffset returns the visible index of the first line at or after raw.
func (s *Session) ResolveOffset(raw offset.Offset) (int, error) {
	return s.filtered.ResolveOffset(raw)
}

// Occurrences returns the search occurrences starting inside iv, typically
// the span of the viewport. It is empty while no search is active.
func (s *Session) Occurrences(iv offset.Interval) ([]search.Occurrence, error) {
	if s.engine == nil {
		return nil, nil
	}
	return s.engine.FindAllInRange(iv)
}

// Current returns the occurrence the last search step landed on.
func (s *Session) Current() (search.Occurrence, bool) {
	if s.current == nil {
		return search.Occurrence{}, false
	}
	return *s.current, true
}

// Predicate returns the active filter.
func (s *Session) Predicate() *source.Predicate {
	return s.filtered.Predicate()
}

// Pattern returns the active search pattern, nil when none.
func (s *Session) Pattern() *search.Pattern {
	return s.pattern
}

// Busy reports whether any background task is still running.
func (s *Session) Busy() bool {
	return s.filter != nil || s.find != nil || s.export != nil
}

// Err returns the last error reported by a background task.
func (s *Session) Err() error {
	return s.lastErr
}

// ClearErr forgets the last task error.
func (s *Session) ClearErr() {
	s.lastErr = nil
}

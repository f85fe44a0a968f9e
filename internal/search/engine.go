package search

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	mlessio "github.com/TimelordUK/bigless/internal/io"
	"github.com/TimelordUK/bigless/internal/line"
	"github.com/TimelordUK/bigless/internal/logging"
	"github.com/TimelordUK/bigless/internal/offset"
)

// Scope restricts a search to the lines it accepts, typically the active
// filter.
type Scope interface {
	Match(content []byte) bool
}

// Options tunes an Engine.
type Options struct {
	ChunkSize      int
	InterruptCheck time.Duration
	Logger         *slog.Logger
}

// Engine finds occurrences of one pattern. It remembers the occurrences of
// the last range it was asked about and answers repeats and adjacent
// navigation from them.
type Engine struct {
	scanner
	backend mlessio.Backend
	opts    Options
	log     *slog.Logger

	key    offset.Interval
	cached []Occurrence
	valid  bool
}

// NewEngine prepares a search of p over b. A nil scope searches every line.
func NewEngine(b mlessio.Backend, p *Pattern, scope Scope, opts Options) (*Engine, error) {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	lines, err := line.Open(b, opts.ChunkSize)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", b.Path(), err)
	}
	return &Engine{
		scanner: scanner{lines: lines, pattern: p, scope: scope},
		backend: b,
		opts:    opts,
		log:     logging.ForComponent(opts.Logger, logging.CompSearch),
	}, nil
}

// Pattern returns the pattern searched for.
func (e *Engine) Pattern() *Pattern {
	return e.pattern
}

// Invalidate forgets the cached range, for example after the file changed.
func (e *Engine) Invalidate() {
	e.valid = false
	e.cached = nil
	e.lines.Reset()
}

// FindAllInRange returns the occurrences starting inside iv in order. Asking
// for the same interval again returns the cached result without I/O. The
// returned slice must not be modified.
func (e *Engine) FindAllInRange(iv offset.Interval) ([]Occurrence, error) {
	if e.valid && e.key == iv {
		return e.cached, nil
	}
	var out []Occurrence
	if !iv.Empty() {
		l, err := e.lines.ReadFrom(iv.Start)
		for err == nil && l.Start < iv.End {
			for _, o := range e.occurrences(l) {
				if iv.Contains(o.Range.Start) {
					out = append(out, o)
				}
			}
			l, err = e.lines.Next(l)
		}
		if err != nil && !errors.Is(err, line.ErrUnexpectedEnd) {
			return nil, fmt.Errorf("search %v: %w", iv, err)
		}
	}
	e.key, e.cached, e.valid = iv, out, true
	e.log.Debug("range searched", slog.String("range", iv.String()), slog.Int("occurrences", len(out)))
	return out, nil
}

// NextOccurrence returns the occurrence following last in direction dir, or
// when last is nil the first one at or after origin going forward, or before
// origin going backward. Neighbours inside the cached range are returned
// without I/O; otherwise the file is scanned, checking stop (which may be
// nil) once per line.
func (e *Engine) NextOccurrence(last *Occurrence, origin offset.Offset, dir Direction, stop func() bool) (Occurrence, error) {
	if last != nil && e.valid {
		if o, ok := adjacent(e.cached, *last, dir); ok {
			return o, nil
		}
	}
	return e.scanner.next(last, origin, dir, stop, nil)
}

// adjacent looks up the neighbour of last in a sorted occurrence list. The
// first entry has no backward neighbour and the caller falls back to a scan.
func adjacent(occ []Occurrence, last Occurrence, dir Direction) (Occurrence, bool) {
	i := sort.Search(len(occ), func(i int) bool { return occ[i].Compare(last) >= 0 })
	if i == len(occ) || occ[i] != last {
		return Occurrence{}, false
	}
	switch dir {
	case Forward:
		if i+1 < len(occ) {
			return occ[i+1], true
		}
	case Backward:
		if i > 0 {
			return occ[i-1], true
		}
	}
	return Occurrence{}, false
}

// scanner walks lines looking for occurrences.
type scanner struct {
	lines   *line.Reader
	pattern *Pattern
	scope   Scope
}

func (s *scanner) occurrences(l line.RawLine) []Occurrence {
	content := l.Content()
	if s.scope != nil && !s.scope.Match(content) {
		return nil
	}
	spans := s.pattern.FindAll(content)
	if len(spans) == 0 {
		return nil
	}
	out := make([]Occurrence, len(spans))
	for i, sp := range spans {
		out[i] = Occurrence{
			Range: offset.Span(l.Start+offset.Of(sp[0]), l.Start+offset.Of(sp[1])),
			Line:  l.Range(),
		}
	}
	return out
}

// next scans for the occurrence after last (or origin) in dir. report, when
// set, receives the offset reached after each line.
func (s *scanner) next(last *Occurrence, origin offset.Offset, dir Direction, stop func() bool, report func(offset.Offset)) (Occurrence, error) {
	if dir == Forward {
		from, accept := origin, func(o Occurrence) bool { return o.Range.Start >= origin }
		if last != nil {
			from, accept = last.Range.Start, func(o Occurrence) bool { return o.Compare(*last) > 0 }
		}
		return s.forward(from, accept, stop, report)
	}
	from, accept := origin, func(o Occurrence) bool { return o.Range.Start < origin }
	if last != nil {
		from, accept = last.Range.Start, func(o Occurrence) bool { return o.Compare(*last) < 0 }
	}
	return s.backward(from, accept, stop, report)
}

func (s *scanner) forward(from offset.Offset, accept func(Occurrence) bool, stop func() bool, report func(offset.Offset)) (Occurrence, error) {
	l, err := s.lines.ReadFrom(from)
	for err == nil {
		if stop != nil && stop() {
			return Occurrence{}, ErrInterrupted
		}
		for _, o := range s.occurrences(l) {
			if accept(o) {
				return o, nil
			}
		}
		if report != nil {
			report(l.End())
		}
		l, err = s.lines.Next(l)
	}
	if errors.Is(err, line.ErrUnexpectedEnd) {
		return Occurrence{}, ErrNotFound
	}
	return Occurrence{}, err
}

func (s *scanner) backward(from offset.Offset, accept func(Occurrence) bool, stop func() bool, report func(offset.Offset)) (Occurrence, error) {
	if from < 0 {
		from = 0
	}
	l, err := s.lines.ReadFrom(from)
	if errors.Is(err, line.ErrUnexpectedEnd) {
		l, err = s.lines.ReadBackwardsFrom(from)
	}
	for err == nil {
		if stop != nil && stop() {
			return Occurrence{}, ErrInterrupted
		}
		occ := s.occurrences(l)
		for i := len(occ) - 1; i >= 0; i-- {
			if accept(occ[i]) {
				return occ[i], nil
			}
		}
		if report != nil {
			report(l.Start)
		}
		l, err = s.lines.Prev(l)
	}
	if errors.Is(err, line.ErrUnexpectedEnd) {
		return Occurrence{}, ErrNotFound
	}
	return Occurrence{}, err
}

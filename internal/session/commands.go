package session

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/TimelordUK/bigless/internal/offset"
	"github.com/TimelordUK/bigless/internal/search"
	"github.com/TimelordUK/bigless/internal/slice"
	"github.com/TimelordUK/bigless/internal/source"
	"github.com/TimelordUK/bigless/internal/task"
)

// SetFilter compiles spec and makes it the active filter. A malformed spec
// is reported here and leaves the current filter in place. The previous
// filter scan is interrupted and its remaining output discarded before the
// new scan starts.
func (s *Session) SetFilter(spec source.Spec) error {
	pred, err := source.Compile(spec, s.detector, s.parser)
	if err != nil {
		return err
	}
	s.applyPredicate(pred)
	return nil
}

// ClearFilter shows every line again.
func (s *Session) ClearFilter() {
	s.applyPredicate(source.All())
}

func (s *Session) applyPredicate(pred *source.Predicate) {
	s.stopFilter()
	s.filtered.SetPredicate(pred)
	if s.pattern != nil {
		if err := s.newEngine(s.pattern); err != nil {
			s.lastErr = err
		}
	}
	if err := s.settle(); err != nil {
		s.lastErr = err
	}
	if !pred.PassAll() {
		s.startScan(0)
	}
	s.log.Debug("filter applied", slog.String("filter", pred.String()))
}

func (s *Session) startScan(from offset.Offset) {
	gen := s.filtered.Generation()
	h, signals := task.Spawn("filter", s.filtered.ScanOp(from), s.taskOpts...)
	s.filter = &filterTask{handle: h, signals: signals, gen: gen}
}

func (s *Session) stopFilter() {
	if s.filter != nil {
		s.filter.handle.Interrupt()
		s.filter = nil
	}
}

// Search compiles input as the active pattern and looks for its first
// occurrence from the top of the viewport in direction dir. The result
// arrives as a SearchFound or SearchFailed event.
func (s *Session) Search(input string, dir search.Direction) error {
	p, err := search.Parse(input)
	if err != nil {
		return err
	}
	if err := s.newEngine(p); err != nil {
		return err
	}
	s.current = nil
	s.startFind(nil, dir)
	return nil
}

// SearchNext steps from the current occurrence in direction dir.
func (s *Session) SearchNext(dir search.Direction) error {
	if s.engine == nil {
		return ErrNoSearch
	}
	s.startFind(s.current, dir)
	return nil
}

// ClearSearch drops the active pattern and its occurrences.
func (s *Session) ClearSearch() {
	if s.find != nil {
		s.find.handle.Interrupt()
		s.find = nil
	}
	s.engine, s.pattern, s.current = nil, nil, nil
}

func (s *Session) newEngine(p *search.Pattern) error {
	var scope search.Scope
	if pred := s.filtered.Predicate(); !pred.PassAll() {
		scope = pred
	}
	e, err := search.NewEngine(s.backend, p, scope, search.Options{
		ChunkSize:      s.cfg.Engine.ChunkSize,
		InterruptCheck: s.cfg.Engine.InterruptCheck(),
		Logger:         s.log,
	})
	if err != nil {
		return err
	}
	s.engine, s.pattern = e, p
	return nil
}

func (s *Session) startFind(last *search.Occurrence, dir search.Direction) {
	if s.find != nil {
		s.find.handle.Interrupt()
	}
	h, signals := task.Spawn("search", s.engine.FindOp(last, s.top, dir), s.taskOpts...)
	s.find = &findTask{handle: h, signals: signals}
	s.log.Debug("search started",
		slog.String("pattern", s.pattern.Text()),
		slog.String("direction", dir.String()),
		slog.Uint64("task", h.ID()))
}

// Export writes the visible lines starting inside iv to a new file in the
// background. The slice arrives with the ExportDone event.
func (s *Session) Export(iv offset.Interval) uint64 {
	if s.export != nil {
		s.export.handle.Interrupt()
	}
	var m slice.Matcher
	if pred := s.filtered.Predicate(); !pred.PassAll() {
		m = pred
	}
	h, signals := task.Spawn("export", s.slicer.Op(s.backend, m, iv), s.taskOpts...)
	s.export = &exportTask{handle: h, signals: signals}
	return h.ID()
}

// ExportFromTop exports from the top of the viewport to the end of the file.
func (s *Session) ExportFromTop() uint64 {
	return s.Export(offset.Span(s.top, offset.MaxOf(s.top, s.size)))
}

// Interrupt asks every running task to stop. Their Complete signals are
// still delivered by Poll; partial filter results stay cached.
func (s *Session) Interrupt() {
	if s.filter != nil {
		s.filter.handle.Interrupt()
	}
	if s.find != nil {
		s.find.handle.Interrupt()
	}
	if s.export != nil {
		s.export.handle.Interrupt()
	}
}

// Scroll moves the viewport by delta visible lines. Moving down stops once
// the last page of height lines is shown.
func (s *Session) Scroll(delta, height int) error {
	if delta == 0 {
		return nil
	}
	iv, _, err := s.filtered.Move(s.top, delta)
	if errors.Is(err, source.ErrNoSuchLine) || errors.Is(err, source.ErrPending) {
		return nil
	}
	if err != nil {
		return err
	}
	s.top = iv.Start
	if delta > 0 {
		return s.clampBottom(height)
	}
	return nil
}

func (s *Session) clampBottom(height int) error {
	if height <= 0 {
		return nil
	}
	page, err := s.filtered.Lines(s.top, height)
	if errors.Is(err, source.ErrPending) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(page) < height {
		return s.GotoBottom(height)
	}
	return nil
}

// GotoTop shows the first visible line.
func (s *Session) GotoTop() error {
	s.top = 0
	return s.settle()
}

// GotoBottom shows the last page of height visible lines.
func (s *Session) GotoBottom(height int) error {
	size, err := s.filtered.Size()
	if err != nil {
		return err
	}
	s.size = size
	iv, _, err := s.filtered.Move(size, -max(height, 1))
	if errors.Is(err, source.ErrNoSuchLine) {
		s.top = 0
		return nil
	}
	if errors.Is(err, source.ErrPending) {
		return nil
	}
	if err != nil {
		return err
	}
	s.top = iv.Start
	return nil
}

// GotoLine shows the k-th visible line, counted from zero.
func (s *Session) GotoLine(k int) error {
	iv, err := s.filtered.Resolve(k)
	if err != nil {
		return err
	}
	s.top = iv.Start
	return nil
}

// GotoOffset shows the first visible line at or after raw, or the last one
// before it when none follows.
func (s *Session) GotoOffset(raw offset.Offset) error {
	s.top = offset.MaxOf(raw, 0)
	return s.settle()
}

// settle moves top onto a visible line start.
func (s *Session) settle() error {
	iv, _, err := s.filtered.Move(s.top, 0)
	if errors.Is(err, source.ErrNoSuchLine) || errors.Is(err, source.ErrPending) {
		iv, _, err = s.filtered.Move(s.top, -1)
	}
	if errors.Is(err, source.ErrNoSuchLine) {
		s.top = 0
		return nil
	}
	if errors.Is(err, source.ErrPending) {
		return nil
	}
	if err != nil {
		return err
	}
	s.top = iv.Start
	return nil
}

// SetMark remembers the top of the viewport under name. Marks are raw
// offsets, so they survive filter changes.
func (s *Session) SetMark(name rune) {
	s.marks[name] = s.top
}

// JumpToMark returns to a mark, landing on the nearest visible line.
func (s *Session) JumpToMark(name rune) error {
	off, ok := s.marks[name]
	if !ok {
		return fmt.Errorf("%w: '%c", ErrNoMark, name)
	}
	return s.GotoOffset(off)
}

// Mark returns the offset stored under name.
func (s *Session) Mark(name rune) (offset.Offset, bool) {
	off, ok := s.marks[name]
	return off, ok
}

// Marks returns a copy of every mark.
func (s *Session) Marks() map[rune]offset.Offset {
	out := make(map[rune]offset.Offset, len(s.marks))
	for k, v := range s.marks {
		out[k] = v
	}
	return out
}

// ClearMarks forgets every mark.
func (s *Session) ClearMarks() {
	clear(s.marks)
}

// Refresh re-reads the file length. It reports whether the file changed.
// Growth resumes the filter scan where it stopped; truncation drops cached
// state past the new end and pulls the viewport back inside the file.
func (s *Session) Refresh() (bool, error) {
	size, err := s.filtered.Size()
	if err != nil {
		return false, err
	}
	if size == s.size {
		return false, nil
	}
	shrank := size < s.size
	s.log.Debug("file changed", slog.Int64("from", s.size.Int64()), slog.Int64("to", size.Int64()))
	s.size = size

	if s.engine != nil {
		s.engine.Invalidate()
	}
	if shrank {
		s.lines.Reset()
		s.stopFilter()
		if s.current != nil && s.current.Range.End > size {
			s.current = nil
		}
		for name, off := range s.marks {
			if off > size {
				delete(s.marks, name)
			}
		}
		if s.top >= size {
			if err := s.GotoBottom(1); err != nil {
				return true, err
			}
		}
	}
	if s.filter == nil && !s.filtered.Predicate().PassAll() {
		s.startScan(s.filtered.ScannedTo())
	}
	return true, nil
}

package search

import (
	"errors"
	"log/slog"

	"github.com/TimelordUK/bigless/internal/line"
	"github.com/TimelordUK/bigless/internal/offset"
	"github.com/TimelordUK/bigless/internal/task"
)

// FindResult completes a background find.
type FindResult struct {
	Occurrence Occurrence
	Err        error // ErrNotFound, ErrInterrupted or an I/O error
}

// FindOp returns a task operation performing NextOccurrence on its own
// stream, with progress measured against the distance to the end of the file
// in the direction of travel.
func (e *Engine) FindOp(last *Occurrence, origin offset.Offset, dir Direction) func(*task.Context[struct{}]) FindResult {
	if last != nil && e.valid {
		if o, ok := adjacent(e.cached, *last, dir); ok {
			return func(*task.Context[struct{}]) FindResult { return FindResult{Occurrence: o} }
		}
	}
	var prev *Occurrence
	if last != nil {
		cp := *last
		prev = &cp
		origin = cp.Range.Start
	}
	backend, pattern, scope, opts := e.backend, e.pattern, e.scope, e.opts

	return func(ctx *task.Context[struct{}]) FindResult {
		lines, err := line.Open(backend, opts.ChunkSize)
		if err != nil {
			return FindResult{Err: err}
		}
		n, err := backend.Size()
		if err != nil {
			return FindResult{Err: err}
		}
		size := offset.Of(n)
		s := scanner{lines: lines, pattern: pattern, scope: scope}

		report := func(pos offset.Offset) {
			switch {
			case dir == Forward && size > origin:
				ctx.UpdateProgress(int((pos - origin) * 100 / (size - origin)))
			case dir == Backward && origin > 0:
				ctx.UpdateProgress(int((origin - pos) * 100 / origin))
			}
		}
		stop := func() bool { return ctx.InterruptedDebounced(opts.InterruptCheck) }

		o, err := s.next(prev, origin, dir, stop, report)
		if err == nil {
			ctx.UpdateProgress(100)
		}
		if err != nil && !errors.Is(err, ErrNotFound) {
			ctx.Logger().Debug("find stopped", slog.String("pattern", pattern.Text()), slog.Any("err", err))
		}
		return FindResult{Occurrence: o, Err: err}
	}
}

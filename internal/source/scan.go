package source

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/TimelordUK/bigless/internal/line"
	"github.com/TimelordUK/bigless/internal/offset"
	"github.com/TimelordUK/bigless/internal/task"
)

// idleLines bounds how many non-matching lines a scan folds into one chunk,
// so sparse filters still report covered ground.
const idleLines = 4096

// ScanChunk is a contiguous scanned span and the matching lines inside it.
type ScanChunk struct {
	Span    offset.Interval
	Matches []offset.Interval
}

// ScanResult completes a background scan.
type ScanResult struct {
	Generation  uint64
	From        offset.Offset
	Scanned     offset.Offset
	Matches     int
	Interrupted bool
	Err         error
}

// ScanOp returns a task operation that walks forward from from, which must
// be a line start, to the end of the file with the current predicate. The
// operation reads through its own stream; its chunks must be applied with
// Merge on the owning goroutine.
func (f *Filtered) ScanOp(from offset.Offset) func(*task.Context[[]ScanChunk]) ScanResult {
	pred, gen, backend, opts := f.pred, f.gen, f.backend, f.opts
	return func(ctx *task.Context[[]ScanChunk]) ScanResult {
		res := ScanResult{Generation: gen, From: from}
		log := ctx.Logger()

		lines, err := line.Open(backend, opts.ChunkSize)
		if err != nil {
			res.Err = err
			return res
		}
		n, err := backend.Size()
		if err != nil {
			res.Err = fmt.Errorf("stat %s: %w", backend.Path(), err)
			return res
		}
		size := offset.Of(n)

		out := task.NewBufferedSender(ctx, opts.BatchSize, opts.FlushInterval)
		defer out.Close()

		run := from
		idle := 0
		l, err := lines.ReadFrom(from)
		for err == nil {
			if ctx.InterruptedDebounced(opts.InterruptCheck) {
				res.Interrupted = true
				break
			}
			if !l.Terminated() {
				break
			}
			res.Scanned = l.End() - from
			if pred.Match(l.Content()) {
				res.Matches++
				out.Push(ScanChunk{Span: offset.Span(run, l.End()), Matches: []offset.Interval{l.Range()}})
				run, idle = l.End(), 0
			} else if idle++; idle >= idleLines {
				out.Push(ScanChunk{Span: offset.Span(run, l.End())})
				run, idle = l.End(), 0
			}
			if size > 0 {
				ctx.UpdateProgress(int(l.End() * 100 / size))
			}
			l, err = lines.Next(l)
		}
		if err != nil && !errors.Is(err, line.ErrUnexpectedEnd) {
			res.Err = fmt.Errorf("filter scan at %d: %w", (from + res.Scanned).Int64(), err)
		}
		if end := from + res.Scanned; run < end {
			out.Push(ScanChunk{Span: offset.Span(run, end)})
		}
		if !res.Interrupted && res.Err == nil {
			ctx.UpdateProgress(100)
		}
		log.Debug("filter scan finished",
			slog.String("filter", pred.String()),
			slog.Int64("scanned", res.Scanned.Int64()),
			slog.Int("matches", res.Matches),
			slog.Bool("interrupted", res.Interrupted))
		return res
	}
}

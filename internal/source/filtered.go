// Package source presents the lines of a file that pass a filter predicate
// and translates between raw byte offsets and filtered line indices.
package source

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"time"

	"github.com/TimelordUK/bigless/internal/config"
	"github.com/TimelordUK/bigless/internal/index"
	mlessio "github.com/TimelordUK/bigless/internal/io"
	"github.com/TimelordUK/bigless/internal/line"
	"github.com/TimelordUK/bigless/internal/logging"
	"github.com/TimelordUK/bigless/internal/offset"
)

// ErrNoSuchLine reports a filtered index or move target outside the file.
var ErrNoSuchLine = errors.New("no such line")

// ErrPending reports that the answer lies beyond what one call may scan.
// The background scan fills the cache; asking again later makes progress.
var ErrPending = errors.New("not scanned yet")

// DefaultForegroundLimit bounds the bytes one call scans outside the cache.
const DefaultForegroundLimit = 1 << 20

// Options tunes a Filtered source.
type Options struct {
	ChunkSize       int
	Foresee         int           // extra matches scanned past the requested ones
	ScanLimit       int           // matches one uncached scan collects at most before its results are used
	ForegroundLimit offset.Offset // bytes one call scans outside the cache
	BatchSize       int
	FlushInterval   time.Duration
	InterruptCheck  time.Duration
	Logger          *slog.Logger
}

// OptionsFrom maps the engine section of the configuration.
func OptionsFrom(cfg config.EngineConfig, log *slog.Logger) Options {
	return Options{
		ChunkSize:       cfg.ChunkSize,
		Foresee:         cfg.ForeseeLines,
		ScanLimit:       cfg.BatchSize,
		ForegroundLimit: offset.Of(cfg.ForegroundLimit),
		BatchSize:       cfg.BatchSize,
		FlushInterval:   cfg.FlushInterval(),
		InterruptCheck:  cfg.InterruptCheck(),
		Logger:          log,
	}
}

func (o *Options) normalize() {
	if o.ChunkSize <= 0 {
		o.ChunkSize = mlessio.DefaultChunkSize
	}
	if o.Foresee < 0 {
		o.Foresee = 0
	}
	if o.ScanLimit <= 0 {
		o.ScanLimit = 256
	}
	if o.ForegroundLimit <= 0 {
		o.ForegroundLimit = DefaultForegroundLimit
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 256
	}
	if o.Logger == nil {
		o.Logger = logging.Discard()
	}
}

// Filtered is the filtered view of one file. Scanned spans are cached in an
// index.Mapping and never scanned again until the predicate changes or the
// file shrinks below them.
//
// Filtered is owned by one goroutine. Background scans run on their own
// stream and hand their results back through Merge.
type Filtered struct {
	backend mlessio.Backend
	lines   *line.Reader
	pred    *Predicate
	mapping *index.Mapping
	gen     uint64
	size    offset.Offset
	opts    Options
	log     *slog.Logger
}

// Stats describes the cache of a Filtered source.
type Stats struct {
	Segments   int
	Matches    int
	Covered    offset.Offset
	Size       offset.Offset
	Generation uint64
}

// NewFiltered builds a filtered view of b. A nil pred keeps every line.
func NewFiltered(b mlessio.Backend, pred *Predicate, opts Options) (*Filtered, error) {
	opts.normalize()
	if pred == nil {
		pred = All()
	}
	lines, err := line.Open(b, opts.ChunkSize)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", b.Path(), err)
	}
	f := &Filtered{
		backend: b,
		lines:   lines,
		pred:    pred,
		mapping: index.New(),
		opts:    opts,
		log:     logging.ForComponent(opts.Logger, logging.CompFilter),
	}
	if err := f.sync(); err != nil {
		return nil, err
	}
	return f, nil
}

// Predicate returns the active predicate.
func (f *Filtered) Predicate() *Predicate {
	return f.pred
}

// Generation changes whenever cached results become invalid.
func (f *Filtered) Generation() uint64 {
	return f.gen
}

// SetPredicate replaces the predicate and drops the whole cache.
func (f *Filtered) SetPredicate(p *Predicate) {
	if p == nil {
		p = All()
	}
	f.pred = p
	f.mapping.Clear()
	f.gen++
	f.log.Debug("predicate changed", slog.String("filter", p.String()), slog.Uint64("generation", f.gen))
}

// Size returns the file length, truncating the cache if the file shrank.
func (f *Filtered) Size() (offset.Offset, error) {
	if err := f.sync(); err != nil {
		return 0, err
	}
	return f.size, nil
}

// Stats reports cache occupancy.
func (f *Filtered) Stats() Stats {
	return Stats{
		Segments:   f.mapping.Len(),
		Matches:    f.mapping.MatchCount(),
		Covered:    f.mapping.Covered(),
		Size:       f.size,
		Generation: f.gen,
	}
}

// ScannedTo returns the end of the span scanned contiguously from byte 0, a
// line start from which a background scan can resume.
func (f *Filtered) ScannedTo() offset.Offset {
	if head, ok := f.mapping.Head(); ok {
		return head.Span.End
	}
	return 0
}

func (f *Filtered) sync() error {
	n, err := f.backend.Size()
	if err != nil {
		return fmt.Errorf("stat %s: %w", f.backend.Path(), err)
	}
	size := offset.Of(n)
	if size < f.size {
		f.lines.Reset()
		f.mapping.Truncate(size)
		f.gen++
		f.log.Debug("file shrank",
			slog.Int64("from", f.size.Int64()),
			slog.Int64("to", size.Int64()),
			slog.Uint64("generation", f.gen))
	}
	f.size = size
	return nil
}

// Resolve returns the raw range of the k-th matching line of the file.
func (f *Filtered) Resolve(k int) (offset.Interval, error) {
	if k < 0 {
		return offset.Interval{}, fmt.Errorf("%w: index %d", ErrNoSuchLine, k)
	}
	if err := f.sync(); err != nil {
		return offset.Interval{}, err
	}
	base, from := 0, offset.Zero
	if head, ok := f.mapping.Head(); ok {
		if k < len(head.Matches) {
			return head.Matches[k], nil
		}
		base, from = len(head.Matches), head.Span.End
	}

	var found offset.Interval
	ok := false
	i := base
	err := f.forward(from, k-base+1, func(iv offset.Interval) bool {
		if i == k {
			found, ok = iv, true
			return false
		}
		i++
		return true
	})
	if err != nil {
		return offset.Interval{}, err
	}
	if !ok {
		return offset.Interval{}, fmt.Errorf("%w: index %d, %d lines match", ErrNoSuchLine, k, i)
	}
	return found, nil
}

// ResolveOffset returns the filtered index of the first matching line that
// starts at or after raw.
func (f *Filtered) ResolveOffset(raw offset.Offset) (int, error) {
	if err := f.sync(); err != nil {
		return 0, err
	}
	base, from := 0, offset.Zero
	if head, ok := f.mapping.Head(); ok {
		i := sort.Search(len(head.Matches), func(i int) bool { return head.Matches[i].Start >= raw })
		if i < len(head.Matches) {
			return i, nil
		}
		base, from = len(head.Matches), head.Span.End
	}

	i := base
	ok := false
	err := f.forward(from, 1, func(iv offset.Interval) bool {
		if iv.Start >= raw {
			ok = true
			return false
		}
		i++
		return true
	})
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: no match at or after %d", ErrNoSuchLine, raw.Int64())
	}
	return i, nil
}

// Move navigates delta matching lines from the raw offset from. A delta of
// zero or more lands on the delta-th matching line starting at or after
// from; a negative delta counts matching lines starting before from. When
// fewer lines exist the furthest one is returned and moved tells how far the
// move went. ErrNoSuchLine means no matching line exists in that direction,
// ErrPending that none was found within the scan budget.
func (f *Filtered) Move(from offset.Offset, delta int) (iv offset.Interval, moved int, err error) {
	if err := f.sync(); err != nil {
		return offset.Interval{}, 0, err
	}
	found := false
	if delta >= 0 {
		steps := -1
		err = f.forward(from, delta+1, func(m offset.Interval) bool {
			iv, found = m, true
			steps++
			return steps < delta
		})
		moved = steps
	} else {
		err = f.backward(from, -delta, func(m offset.Interval) bool {
			iv, found = m, true
			moved--
			return moved > delta
		})
	}
	if errors.Is(err, ErrPending) && found {
		err = nil
	}
	if err != nil {
		return offset.Interval{}, 0, err
	}
	if !found {
		return offset.Interval{}, 0, fmt.Errorf("%w: nothing to move to from %d", ErrNoSuchLine, from.Int64())
	}
	return iv, moved, nil
}

// Lines returns up to n matching lines starting at or after from. When the
// scan budget runs out first the lines found so far come with ErrPending.
func (f *Filtered) Lines(from offset.Offset, n int) ([]line.RawLine, error) {
	if n <= 0 {
		return nil, nil
	}
	if err := f.sync(); err != nil {
		return nil, err
	}
	ranges := make([]offset.Interval, 0, n)
	err := f.forward(from, n, func(iv offset.Interval) bool {
		ranges = append(ranges, iv)
		return len(ranges) < n
	})
	if err != nil && !errors.Is(err, ErrPending) {
		return nil, err
	}
	pending := err
	out := make([]line.RawLine, 0, len(ranges))
	for _, iv := range ranges {
		l, err := f.lines.ReadFrom(iv.Start)
		if errors.Is(err, line.ErrUnexpectedEnd) {
			break
		}
		if err != nil {
			return out, err
		}
		out = append(out, l)
	}
	return out, pending
}

// Total returns the number of matching lines once the whole file has been
// scanned from its start; ok is false while that is unknown.
func (f *Filtered) Total() (total int, ok bool, err error) {
	if err := f.sync(); err != nil {
		return 0, false, err
	}
	head, ok := f.mapping.Head()
	if !ok && f.size > 0 {
		return 0, false, nil
	}
	if head.Span.End == f.size {
		return len(head.Matches), true, nil
	}
	l, err := f.lines.ReadFrom(head.Span.End)
	if err != nil {
		return 0, false, err
	}
	if l.Terminated() {
		return 0, false, nil
	}
	total = len(head.Matches)
	if f.pred.Match(l.Content()) {
		total++
	}
	return total, true, nil
}

// Merge applies a batch produced by a background scan started at gen. It
// returns false, ignoring the batch, when the cache has since been
// invalidated.
func (f *Filtered) Merge(gen uint64, chunks []ScanChunk) bool {
	if err := f.sync(); err != nil || gen != f.gen {
		return false
	}
	for _, c := range coalesce(chunks) {
		if c.Span.End > f.size {
			return false
		}
		f.mapping.Insert(c.Span, c.Matches)
	}
	return true
}

func coalesce(chunks []ScanChunk) []ScanChunk {
	var out []ScanChunk
	for _, c := range chunks {
		if n := len(out); n > 0 && out[n-1].Span.End == c.Span.Start {
			out[n-1].Span.End = c.Span.End
			out[n-1].Matches = append(out[n-1].Matches, c.Matches...)
			continue
		}
		out = append(out, ScanChunk{Span: c.Span, Matches: slices.Clone(c.Matches)})
	}
	return out
}

// forward visits matching lines starting at or after from in ascending order
// until visit returns false or the file ends. want is how many visits the
// caller expects and sizes uncached scans. It returns ErrPending once the
// foreground budget is spent.
func (f *Filtered) forward(from offset.Offset, want int, visit func(offset.Interval) bool) error {
	if f.pred.PassAll() {
		return f.rawForward(from, visit)
	}
	budget := f.opts.ForegroundLimit
	pos := from
	for {
		if seg, ok := f.mapping.Find(pos); ok {
			i := sort.Search(len(seg.Matches), func(i int) bool { return seg.Matches[i].Start >= pos })
			for _, m := range seg.Matches[i:] {
				if !visit(m) {
					return nil
				}
				want--
			}
			pos = seg.Span.End
			continue
		}

		if budget <= 0 {
			return fmt.Errorf("%w: stopped at %d", ErrPending, pos.Int64())
		}
		l, err := f.lines.ReadFrom(pos)
		if errors.Is(err, line.ErrUnexpectedEnd) {
			return nil
		}
		if err != nil {
			return err
		}
		if l.Start < pos {
			if !l.Terminated() {
				return nil
			}
			pos = l.End()
			continue
		}

		limit := offset.Max
		if next, ok := f.mapping.Ceil(pos); ok {
			limit = next.Span.Start
		}
		span, matches, tail, err := f.scanForward(l, limit, want, budget)
		if err != nil {
			return err
		}
		budget -= span.Len()
		if !span.Empty() {
			f.mapping.Insert(span, matches)
			continue
		}
		if tail != nil && f.pred.Match(tail.Content()) {
			visit(tail.Range())
		}
		return nil
	}
}

// scanForward evaluates lines from first, a line start outside the cache, up
// to limit. It stops after want plus the foresee allowance matches or once
// budget bytes are scanned, and never includes the unterminated last line in
// the scanned span.
func (f *Filtered) scanForward(first line.RawLine, limit offset.Offset, want int, budget offset.Offset) (offset.Interval, []offset.Interval, *line.RawLine, error) {
	target := min(max(want, 1), f.opts.ScanLimit) + f.opts.Foresee
	var matches []offset.Interval
	var tail *line.RawLine
	end := first.Start
	l := first
	var err error
	for {
		if l.Start >= limit {
			break
		}
		if !l.Terminated() {
			tail = &l
			break
		}
		if f.pred.Match(l.Content()) {
			matches = append(matches, l.Range())
		}
		end = l.End()
		if len(matches) >= target || end-first.Start >= budget {
			break
		}
		if l, err = f.lines.Next(l); err != nil {
			break
		}
	}
	if err != nil && !errors.Is(err, line.ErrUnexpectedEnd) {
		return offset.Interval{}, nil, nil, fmt.Errorf("scan at %d: %w", end.Int64(), err)
	}
	return offset.Span(first.Start, end), matches, tail, nil
}

// backward visits matching lines starting before from in descending order.
func (f *Filtered) backward(from offset.Offset, want int, visit func(offset.Interval) bool) error {
	from = offset.MinOf(from, f.size)
	if f.pred.PassAll() {
		return f.rawBackward(from, visit)
	}
	budget := f.opts.ForegroundLimit
	pos := from
	for pos > 0 {
		if seg, ok := f.mapping.Find(pos - 1); ok {
			i := sort.Search(len(seg.Matches), func(i int) bool { return seg.Matches[i].Start >= pos })
			for i--; i >= 0; i-- {
				if !visit(seg.Matches[i]) {
					return nil
				}
				want--
			}
			pos = seg.Span.Start
			continue
		}

		if budget <= 0 {
			return fmt.Errorf("%w: stopped at %d", ErrPending, pos.Int64())
		}
		l, err := f.lines.ReadFrom(pos - 1)
		if err != nil {
			return err
		}
		if !l.Terminated() {
			if f.pred.Match(l.Content()) {
				if !visit(l.Range()) {
					return nil
				}
				want--
			}
			pos = l.Start
			continue
		}

		limit := offset.Zero
		if prev, ok := f.mapping.Floor(l.Start); ok {
			limit = prev.Span.End
		}
		span, matches, err := f.scanBackward(l, limit, want, budget)
		if err != nil {
			return err
		}
		budget -= span.Len()
		f.mapping.Insert(span, matches)
	}
	return nil
}

// scanBackward evaluates lines from last, a terminated line outside the
// cache, down to limit or until budget bytes are scanned.
func (f *Filtered) scanBackward(last line.RawLine, limit offset.Offset, want int, budget offset.Offset) (offset.Interval, []offset.Interval, error) {
	target := min(max(want, 1), f.opts.ScanLimit) + f.opts.Foresee
	var matches []offset.Interval
	l := last
	start := last.Start
	var err error
	for {
		if f.pred.Match(l.Content()) {
			matches = append(matches, l.Range())
		}
		start = l.Start
		if len(matches) >= target || l.Start <= limit || last.End()-start >= budget {
			break
		}
		if l, err = f.lines.Prev(l); err != nil {
			break
		}
	}
	if err != nil && !errors.Is(err, line.ErrUnexpectedEnd) {
		return offset.Interval{}, nil, fmt.Errorf("scan back at %d: %w", start.Int64(), err)
	}
	slices.Reverse(matches)
	return offset.Span(start, last.End()), matches, nil
}

func (f *Filtered) rawForward(from offset.Offset, visit func(offset.Interval) bool) error {
	l, err := f.lines.ReadFrom(from)
	if err == nil && l.Start < from {
		l, err = f.lines.Next(l)
	}
	for err == nil {
		if !visit(l.Range()) {
			return nil
		}
		l, err = f.lines.Next(l)
	}
	if errors.Is(err, line.ErrUnexpectedEnd) {
		return nil
	}
	return err
}

func (f *Filtered) rawBackward(from offset.Offset, visit func(offset.Interval) bool) error {
	l, err := f.lines.ReadBackwardsFrom(from)
	for err == nil {
		if !visit(l.Range()) {
			return nil
		}
		l, err = f.lines.Prev(l)
	}
	if errors.Is(err, line.ErrUnexpectedEnd) {
		return nil
	}
	return err
}

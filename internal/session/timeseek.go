package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/TimelordUK/bigless/internal/line"
	"github.com/TimelordUK/bigless/internal/offset"
	"github.com/TimelordUK/bigless/internal/source"
)

// probeLines bounds how far a bisection step looks for a timestamped line.
const probeLines = 64

// ErrBadTime reports time input that could not be parsed.
var ErrBadTime = errors.New("unrecognised time")

// GotoTime shows the first visible line logged at or after the time in
// input.
func (s *Session) GotoTime(input string) error {
	off, err := s.OffsetAtTime(input)
	if err != nil {
		return err
	}
	return s.GotoOffset(off)
}

// OffsetAtTime returns the start of the first line logged at or after the
// time in input. Partial input such as "14:30" is anchored to the date of the
// first timestamp in the file.
func (s *Session) OffsetAtTime(input string) (offset.Offset, error) {
	ref, err := s.referenceTime()
	if err != nil {
		return 0, err
	}
	target, ok := s.parser.ParseInput(input, ref)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrBadTime, input)
	}
	return s.seekTime(target)
}

// ParseFilter reads the filter prompt syntax. Times in a "time:" range are
// anchored like OffsetAtTime anchors them.
func (s *Session) ParseFilter(input string) (source.Spec, error) {
	ref, err := s.referenceTime()
	if err != nil {
		return source.Spec{}, err
	}
	return source.ParseSpec(input, func(v string) (time.Time, bool) {
		return s.parser.ParseInput(v, ref)
	})
}

// referenceTime is the first timestamp in the file, or now when there is
// none.
func (s *Session) referenceTime() (time.Time, error) {
	first, _, ok, err := s.timestampFrom(0, s.size)
	if err != nil {
		return time.Time{}, err
	}
	if !ok {
		return time.Now(), nil
	}
	return first, nil
}

// seekTime bisects raw offset space for the start of the first line whose
// timestamp is not before target. Lines without a timestamp take the time of
// the next stamped line within probeLines. It assumes the file is ordered by
// time.
func (s *Session) seekTime(target time.Time) (offset.Offset, error) {
	size, err := s.filtered.Size()
	if err != nil {
		return 0, err
	}
	lo, hi := offset.Zero, size
	for lo < hi {
		mid := lo + (hi-lo)/2
		l, err := s.lines.ReadFrom(mid)
		if errors.Is(err, line.ErrUnexpectedEnd) {
			hi = mid
			continue
		}
		if err != nil {
			return 0, err
		}
		ts, stamped, ok, err := s.timestampFrom(l.Start, hi)
		if err != nil {
			return 0, err
		}
		switch {
		case !ok:
			hi = l.Start
		case ts.Before(target):
			lo = stamped.End
		default:
			hi = stamped.Start
		}
	}
	return lo, nil
}

// timestampFrom returns the first parseable timestamp among the lines
// starting in [from, limit), looking at probeLines lines at most.
func (s *Session) timestampFrom(from, limit offset.Offset) (time.Time, offset.Interval, bool, error) {
	l, err := s.lines.ReadFrom(from)
	for i := 0; err == nil && i < probeLines && l.Start < limit; i++ {
		if ts, ok := s.parser.Parse(l.Content()); ok {
			return ts, l.Range(), true, nil
		}
		l, err = s.lines.Next(l)
	}
	if err != nil && !errors.Is(err, line.ErrUnexpectedEnd) {
		return time.Time{}, offset.Interval{}, false, err
	}
	return time.Time{}, offset.Interval{}, false, nil
}

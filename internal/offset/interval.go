package offset

import "fmt"

// Interval is a half-open range [Start, End) of byte or line positions.
// It is comparable and safe to use as a map key.
type Interval struct {
	Start Offset
	End   Offset
}

// NewInterval builds an interval, rejecting start > end.
func NewInterval(start, end Offset) (Interval, error) {
	if start > end {
		return Interval{}, fmt.Errorf("%w: interval [%d, %d)", ErrOutOfRange, int64(start), int64(end))
	}
	return Interval{Start: start, End: end}, nil
}

// Span is NewInterval for bounds already known to be ordered. It panics
// otherwise.
func Span(start, end Offset) Interval {
	iv, err := NewInterval(start, end)
	if err != nil {
		panic(err)
	}
	return iv
}

// Len returns End - Start.
func (i Interval) Len() Offset {
	return i.End - i.Start
}

// Empty reports whether the interval holds no positions.
func (i Interval) Empty() bool {
	return i.Start >= i.End
}

// Contains reports whether o is inside [Start, End).
func (i Interval) Contains(o Offset) bool {
	return o >= i.Start && o < i.End
}

// Covers reports whether other lies entirely inside i.
func (i Interval) Covers(other Interval) bool {
	return other.Start >= i.Start && other.End <= i.End
}

// Overlaps reports whether the two intervals share at least one position.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start < other.End && other.Start < i.End
}

// Intersect returns the common part, empty when they do not overlap.
func (i Interval) Intersect(other Interval) Interval {
	start := MaxOf(i.Start, other.Start)
	end := MinOf(i.End, other.End)
	if end < start {
		end = start
	}
	return Interval{Start: start, End: end}
}

func (i Interval) String() string {
	return fmt.Sprintf("[%d, %d)", int64(i.Start), int64(i.End))
}

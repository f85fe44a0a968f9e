package ui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/TimelordUK/bigless/internal/offset"
)

// ErrBadRef reports a range reference that could not be resolved.
var ErrBadRef = errors.New("bad reference")

// refContext is what range references resolve against
type refContext struct {
	top   offset.Offset
	size  offset.Offset
	marks map[rune]offset.Offset
	line  func(k int) (offset.Interval, error)    // k-th visible line, from zero
	at    func(input string) (offset.Offset, error) // first line at a time
}

// parseRange parses a range like "'a-'b", "100,$", "13:00-14:00" or
// "@4096". Without a separator the range runs to the end of the file; an
// empty input means from the top of the viewport. A comma separates the two
// ends when present, otherwise the first dash does.
func parseRange(input string, rc refContext) (offset.Interval, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		input = "."
	}

	startStr, endStr := input, "$"
	if i := strings.IndexByte(input, ','); i >= 0 {
		startStr, endStr = input[:i], input[i+1:]
	} else if i := strings.IndexByte(input, '-'); i > 0 {
		startStr, endStr = input[:i], input[i+1:]
	}

	start, err := rc.ref(startStr)
	if err != nil {
		return offset.Interval{}, err
	}
	end, err := rc.ref(endStr)
	if err != nil {
		return offset.Interval{}, err
	}
	iv, err := offset.NewInterval(start.Start, end.End)
	if err != nil {
		return offset.Interval{}, fmt.Errorf("%w: %q ends before it starts", ErrBadRef, input)
	}
	return iv, nil
}

// ref parses a reference like ".", "$", "'a", "@4096", "13:00" or "500".
// Line numbers are 1-based over the visible lines and cover the whole line;
// every other form is a single offset.
func (rc refContext) ref(s string) (offset.Interval, error) {
	s = strings.TrimSpace(s)
	point := func(o offset.Offset) (offset.Interval, error) {
		return offset.Interval{Start: o, End: o}, nil
	}

	switch {
	case s == "" || s == ".":
		return point(rc.top)

	case s == "$":
		return point(rc.size)

	// Handle mark references like 'a
	case strings.HasPrefix(s, "'"):
		r := []rune(s[1:])
		if len(r) != 1 {
			return offset.Interval{}, fmt.Errorf("%w: %q", ErrBadRef, s)
		}
		o, ok := rc.marks[r[0]]
		if !ok {
			return offset.Interval{}, fmt.Errorf("%w: mark %c not set", ErrBadRef, r[0])
		}
		return point(o)

	// Raw byte offsets like @4096
	case strings.HasPrefix(s, "@"):
		n, err := strconv.ParseInt(s[1:], 10, 64)
		if err != nil || n < 0 {
			return offset.Interval{}, fmt.Errorf("%w: %q", ErrBadRef, s)
		}
		return point(offset.Of(n).Clamp(0, rc.size))

	// Handle time references like 13:00 or 13:00:00
	case strings.Contains(s, ":"):
		if rc.at == nil {
			return offset.Interval{}, fmt.Errorf("%w: %q", ErrBadRef, s)
		}
		o, err := rc.at(s)
		if err != nil {
			return offset.Interval{}, err
		}
		return point(o)
	}

	// Absolute line number (1-based input, convert to 0-based)
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || rc.line == nil {
		return offset.Interval{}, fmt.Errorf("%w: %q", ErrBadRef, s)
	}
	return rc.line(n - 1)
}

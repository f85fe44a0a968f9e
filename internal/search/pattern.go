// Package search locates pattern occurrences in raw file coordinates and
// navigates between them.
package search

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/TimelordUK/bigless/internal/offset"
)

var (
	// ErrNotFound reports that no occurrence exists in the requested direction.
	ErrNotFound = errors.New("pattern not found")
	// ErrInvalidPattern reports a pattern that cannot be compiled.
	ErrInvalidPattern = errors.New("invalid pattern")
	// ErrInterrupted reports a scan stopped by its caller.
	ErrInterrupted = errors.New("search interrupted")
)

// Mode selects literal or regular expression matching.
type Mode int

const (
	Literal Mode = iota
	Regex
)

// Direction of navigation.
type Direction int

const (
	Forward Direction = iota
	Backward
)

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

// Pattern is a compiled search expression, safe for concurrent use.
type Pattern struct {
	text       string
	mode       Mode
	ignoreCase bool
	needle     []byte
	re         *regexp.Regexp
}

// Compile builds a pattern.
func Compile(text string, mode Mode, ignoreCase bool) (*Pattern, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: empty pattern", ErrInvalidPattern)
	}
	p := &Pattern{text: text, mode: mode, ignoreCase: ignoreCase}
	switch {
	case mode == Literal && !ignoreCase:
		p.needle = []byte(text)
	case mode == Literal:
		p.re = regexp.MustCompile("(?i)" + regexp.QuoteMeta(text))
	case mode == Regex:
		expr := text
		if ignoreCase {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
		}
		p.re = re
	default:
		return nil, fmt.Errorf("%w: unknown mode %d", ErrInvalidPattern, int(mode))
	}
	return p, nil
}

// Parse reads the search prompt: a regular expression that ignores case
// unless it contains an upper-case letter.
func Parse(input string) (*Pattern, error) {
	return Compile(input, Regex, strings.ToLower(input) == input)
}

// Text returns the source expression.
func (p *Pattern) Text() string {
	return p.text
}

func (p *Pattern) String() string {
	return p.text
}

// FindAll returns the non-overlapping [start, end) byte spans of matches in
// content, leftmost first. Empty matches are skipped.
func (p *Pattern) FindAll(content []byte) [][2]int {
	var out [][2]int
	if p.re == nil {
		for pos := 0; pos <= len(content); {
			i := bytes.Index(content[pos:], p.needle)
			if i < 0 {
				break
			}
			start := pos + i
			out = append(out, [2]int{start, start + len(p.needle)})
			pos = start + len(p.needle)
		}
		return out
	}
	for _, m := range p.re.FindAllIndex(content, -1) {
		if m[0] == m[1] {
			continue
		}
		out = append(out, [2]int{m[0], m[1]})
	}
	return out
}

// Occurrence is one match in raw file coordinates together with the line
// holding it.
type Occurrence struct {
	Range offset.Interval
	Line  offset.Interval
}

// Compare orders occurrences by start, then by end.
func (o Occurrence) Compare(other Occurrence) int {
	if c := o.Range.Start.Compare(other.Range.Start); c != 0 {
		return c
	}
	return o.Range.End.Compare(other.Range.End)
}

func (o Occurrence) String() string {
	return fmt.Sprintf("%v in %v", o.Range, o.Line)
}

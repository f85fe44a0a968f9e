package source

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/TimelordUK/bigless/internal/config"
	"github.com/TimelordUK/bigless/pkg/logformat"
)

// ErrInvalidPredicate reports a filter expression that cannot be compiled.
var ErrInvalidPredicate = errors.New("invalid filter")

// Kind selects how a Predicate evaluates a line.
type Kind int

const (
	KindAll Kind = iota
	KindSubstring
	KindRegex
	KindLevel
	KindTimeRange
)

func (k Kind) String() string {
	switch k {
	case KindAll:
		return "all"
	case KindSubstring:
		return "text"
	case KindRegex:
		return "regex"
	case KindLevel:
		return "level"
	case KindTimeRange:
		return "time"
	}
	return "unknown"
}

// Spec is the user-facing description of a filter.
type Spec struct {
	Kind       Kind
	Pattern    string
	Levels     []logformat.LogLevel
	From       time.Time // zero means unbounded
	To         time.Time // zero means unbounded, otherwise exclusive
	Invert     bool
	IgnoreCase bool
}

// Predicate is a compiled Spec. It is immutable and safe for concurrent use.
type Predicate struct {
	spec     Spec
	needle   []byte
	re       *regexp.Regexp
	levels   map[logformat.LogLevel]bool
	detector *logformat.LevelDetector
	parser   *logformat.TimestampParser
}

// All is the predicate that keeps every line.
func All() *Predicate {
	return &Predicate{spec: Spec{Kind: KindAll}}
}

// Compile validates spec. detector and parser are only used by level and time
// filters; nil picks the defaults.
func Compile(spec Spec, detector *logformat.LevelDetector, parser *logformat.TimestampParser) (*Predicate, error) {
	p := &Predicate{spec: spec, detector: detector, parser: parser}
	switch spec.Kind {
	case KindAll:
	case KindSubstring:
		if spec.Pattern == "" {
			return nil, fmt.Errorf("%w: empty text", ErrInvalidPredicate)
		}
		if spec.IgnoreCase {
			p.re = regexp.MustCompile("(?i)" + regexp.QuoteMeta(spec.Pattern))
		} else {
			p.needle = []byte(spec.Pattern)
		}
	case KindRegex:
		expr := spec.Pattern
		if spec.IgnoreCase {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPredicate, err)
		}
		p.re = re
	case KindLevel:
		if len(spec.Levels) == 0 {
			return nil, fmt.Errorf("%w: no levels selected", ErrInvalidPredicate)
		}
		p.levels = make(map[logformat.LogLevel]bool, len(spec.Levels))
		for _, l := range spec.Levels {
			p.levels[l] = true
		}
		if p.detector == nil {
			p.detector = logformat.NewLevelDetector(&config.DefaultConfig().LogLevels)
		}
	case KindTimeRange:
		if spec.From.IsZero() && spec.To.IsZero() {
			return nil, fmt.Errorf("%w: empty time range", ErrInvalidPredicate)
		}
		if !spec.From.IsZero() && !spec.To.IsZero() && !spec.From.Before(spec.To) {
			return nil, fmt.Errorf("%w: range starts after it ends", ErrInvalidPredicate)
		}
		if p.parser == nil {
			p.parser = logformat.NewTimestampParser()
		}
	default:
		return nil, fmt.Errorf("%w: unknown kind %d", ErrInvalidPredicate, int(spec.Kind))
	}
	return p, nil
}

// Spec returns the spec p was compiled from.
func (p *Predicate) Spec() Spec {
	return p.spec
}

// PassAll reports whether p keeps every line.
func (p *Predicate) PassAll() bool {
	return p.spec.Kind == KindAll && !p.spec.Invert
}

// Match evaluates p against a line's content.
func (p *Predicate) Match(content []byte) bool {
	return p.match(content) != p.spec.Invert
}

func (p *Predicate) match(content []byte) bool {
	switch p.spec.Kind {
	case KindSubstring:
		if p.re != nil {
			return p.re.Match(content)
		}
		return bytes.Contains(content, p.needle)
	case KindRegex:
		return p.re.Match(content)
	case KindLevel:
		return p.levels[p.detector.Detect(content)]
	case KindTimeRange:
		ts, ok := p.parser.Parse(content)
		if !ok {
			return false
		}
		if !p.spec.From.IsZero() && ts.Before(p.spec.From) {
			return false
		}
		if !p.spec.To.IsZero() && !ts.Before(p.spec.To) {
			return false
		}
		return true
	}
	return true
}

func (p *Predicate) String() string {
	var b strings.Builder
	if p.spec.Invert {
		b.WriteString("!")
	}
	switch p.spec.Kind {
	case KindAll:
		b.WriteString("all")
	case KindSubstring, KindRegex:
		fmt.Fprintf(&b, "%s:%s", p.spec.Kind, p.spec.Pattern)
		if p.spec.IgnoreCase {
			b.WriteString(" (i)")
		}
	case KindLevel:
		names := make([]string, 0, len(p.spec.Levels))
		for _, l := range p.spec.Levels {
			names = append(names, l.String())
		}
		fmt.Fprintf(&b, "level:%s", strings.Join(names, ","))
	case KindTimeRange:
		fmt.Fprintf(&b, "time:%s..%s", rangeEnd(p.spec.From), rangeEnd(p.spec.To))
	}
	return b.String()
}

func rangeEnd(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return logformat.FormatTimeWithDate(t)
}

// TimeResolver turns user input such as "14:30" into an absolute time.
type TimeResolver func(input string) (time.Time, bool)

// ParseSpec reads the filter prompt syntax: a leading "!" inverts, "/expr"
// is a regex, "level:warn,error" and "level:warn+" select levels,
// "time:13:00..14:00" keeps lines stamped in [13:00, 14:00) with either end
// optional, anything else is literal text. Upper-case letters make text and
// regex filters case sensitive, otherwise they ignore case.
//
// resolve reads the ends of a time range; nil anchors partial times to today.
func ParseSpec(input string, resolve TimeResolver) (Spec, error) {
	var spec Spec
	input = strings.TrimSpace(input)
	if strings.HasPrefix(input, "!") {
		spec.Invert = true
		input = strings.TrimSpace(input[1:])
	}
	switch {
	case input == "":
		return Spec{}, fmt.Errorf("%w: empty filter", ErrInvalidPredicate)
	case strings.HasPrefix(input, "level:"):
		spec.Kind = KindLevel
		for _, name := range strings.Split(input[len("level:"):], ",") {
			name = strings.TrimSpace(name)
			andAbove := strings.HasSuffix(name, "+")
			level, err := logformat.ParseLevel(strings.TrimSuffix(name, "+"))
			if err != nil {
				return Spec{}, fmt.Errorf("%w: %v", ErrInvalidPredicate, err)
			}
			if !andAbove {
				spec.Levels = append(spec.Levels, level)
				continue
			}
			for _, l := range logformat.Levels {
				if l >= level {
					spec.Levels = append(spec.Levels, l)
				}
			}
		}
	case strings.HasPrefix(input, "time:"):
		from, to, ok := strings.Cut(input[len("time:"):], "..")
		if !ok {
			return Spec{}, fmt.Errorf("%w: time range needs \"..\"", ErrInvalidPredicate)
		}
		if resolve == nil {
			parser, now := logformat.NewTimestampParser(), time.Now()
			resolve = func(v string) (time.Time, bool) { return parser.ParseInput(v, now) }
		}
		spec.Kind = KindTimeRange
		for _, end := range []struct {
			text string
			dst  *time.Time
		}{{from, &spec.From}, {to, &spec.To}} {
			text := strings.TrimSpace(end.text)
			if text == "" {
				continue
			}
			t, ok := resolve(text)
			if !ok {
				return Spec{}, fmt.Errorf("%w: unrecognised time %q", ErrInvalidPredicate, text)
			}
			*end.dst = t
		}
		if spec.From.IsZero() && spec.To.IsZero() {
			return Spec{}, fmt.Errorf("%w: empty time range", ErrInvalidPredicate)
		}
	case strings.HasPrefix(input, "/"):
		spec.Kind = KindRegex
		spec.Pattern = input[1:]
	default:
		spec.Kind = KindSubstring
		spec.Pattern = input
	}
	if spec.Kind == KindRegex || spec.Kind == KindSubstring {
		spec.IgnoreCase = strings.ToLower(spec.Pattern) == spec.Pattern
	}
	return spec, nil
}

package source

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/TimelordUK/bigless/pkg/logformat"
)

func TestCompileRejectsBadSpecs(t *testing.T) {
	tests := []struct {
		name string
		spec Spec
	}{
		{"bad regex", Spec{Kind: KindRegex, Pattern: "(unclosed"}},
		{"empty text", Spec{Kind: KindSubstring}},
		{"no levels", Spec{Kind: KindLevel}},
		{"empty range", Spec{Kind: KindTimeRange}},
		{"unknown kind", Spec{Kind: Kind(42)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Compile(tt.spec, nil, nil); !errors.Is(err, ErrInvalidPredicate) {
				t.Errorf("Compile() error = %v, want ErrInvalidPredicate", err)
			}
		})
	}
}

func TestMatch(t *testing.T) {
	parser := logformat.NewTimestampParser()
	from, _ := parser.Parse([]byte("2024-01-15 10:00:30"))
	to, _ := parser.Parse([]byte("2024-01-15 10:01:00"))

	tests := []struct {
		name string
		spec Spec
		line string
		want bool
	}{
		{"text", Spec{Kind: KindSubstring, Pattern: "timeout"}, "read timeout", true},
		{"text case sensitive", Spec{Kind: KindSubstring, Pattern: "Timeout"}, "read timeout", false},
		{"text ignore case", Spec{Kind: KindSubstring, Pattern: "Timeout", IgnoreCase: true}, "read timeout", true},
		{"text with regex chars", Spec{Kind: KindSubstring, Pattern: "a.b", IgnoreCase: true}, "axb", false},
		{"regex", Spec{Kind: KindRegex, Pattern: `id=\d+`}, "user id=42", true},
		{"inverted", Spec{Kind: KindSubstring, Pattern: "debug", Invert: true}, "debug noise", false},
		{"level", Spec{Kind: KindLevel, Levels: []logformat.LogLevel{logformat.LevelWarn, logformat.LevelError}}, "10:00:00 ERROR disk", true},
		{"level miss", Spec{Kind: KindLevel, Levels: []logformat.LogLevel{logformat.LevelError}}, "10:00:00 INFO ok", false},
		{"time inside", Spec{Kind: KindTimeRange, From: from, To: to}, "2024-01-15 10:00:45 tick", true},
		{"time at end", Spec{Kind: KindTimeRange, From: from, To: to}, "2024-01-15 10:01:00 tick", false},
		{"time open start", Spec{Kind: KindTimeRange, To: to}, "2024-01-15 09:00:00 tick", true},
		{"no timestamp", Spec{Kind: KindTimeRange, From: from}, "continuation line", false},
		{"all", Spec{Kind: KindAll}, "anything", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Compile(tt.spec, nil, parser)
			if err != nil {
				t.Fatalf("Compile() error = %v", err)
			}
			if got := p.Match([]byte(tt.line)); got != tt.want {
				t.Errorf("Match(%q) = %v, want %v", tt.line, got, tt.want)
			}
		})
	}
}

func TestPassAll(t *testing.T) {
	if !All().PassAll() {
		t.Errorf("All() does not pass everything")
	}
	p, _ := Compile(Spec{Kind: KindAll, Invert: true}, nil, nil)
	if p.PassAll() || p.Match([]byte("x")) {
		t.Errorf("inverted all should reject everything")
	}
}

func TestParseSpec(t *testing.T) {
	tests := []struct {
		in   string
		want Spec
	}{
		{"timeout", Spec{Kind: KindSubstring, Pattern: "timeout", IgnoreCase: true}},
		{"Timeout", Spec{Kind: KindSubstring, Pattern: "Timeout"}},
		{"!health", Spec{Kind: KindSubstring, Pattern: "health", Invert: true, IgnoreCase: true}},
		{"/id=\\d+", Spec{Kind: KindRegex, Pattern: "id=\\d+", IgnoreCase: true}},
		{"level:warn,error", Spec{Kind: KindLevel, Levels: []logformat.LogLevel{logformat.LevelWarn, logformat.LevelError}}},
		{"level:error+", Spec{Kind: KindLevel, Levels: []logformat.LogLevel{logformat.LevelError, logformat.LevelFatal}}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSpec(tt.in, nil)
			if err != nil {
				t.Fatalf("ParseSpec() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseSpec(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}

	for _, bad := range []string{"", "!", "level:loud", "time:", "time:13:00", "time:..", "time:soon..14:00"} {
		if _, err := ParseSpec(bad, nil); !errors.Is(err, ErrInvalidPredicate) {
			t.Errorf("ParseSpec(%q) error = %v", bad, err)
		}
	}
}

func TestParseTimeRange(t *testing.T) {
	day := time.Date(2024, 1, 15, 0, 0, 0, 0, time.Local)
	parser := logformat.NewTimestampParser()
	resolve := func(v string) (time.Time, bool) { return parser.ParseInput(v, day) }
	at := func(h, m int) time.Time { return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute) }

	tests := []struct {
		in   string
		want Spec
	}{
		{"time:13:00..14:00", Spec{Kind: KindTimeRange, From: at(13, 0), To: at(14, 0)}},
		{"time:13:30..", Spec{Kind: KindTimeRange, From: at(13, 30)}},
		{"time: .. 09:15", Spec{Kind: KindTimeRange, To: at(9, 15)}},
		{"!time:13:00..14:00", Spec{Kind: KindTimeRange, From: at(13, 0), To: at(14, 0), Invert: true}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSpec(tt.in, resolve)
			if err != nil {
				t.Fatalf("ParseSpec() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseSpec(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
			if _, err := Compile(got, nil, parser); err != nil {
				t.Errorf("Compile() error = %v", err)
			}
		})
	}

	spec, err := ParseSpec("time:13:00..14:00", resolve)
	if err != nil {
		t.Fatalf("ParseSpec() error = %v", err)
	}
	p, err := Compile(spec, nil, parser)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	for line, want := range map[string]bool{
		"2024-01-15 12:59:59 early": false,
		"2024-01-15 13:00:00 start": true,
		"2024-01-15 13:59:59 late":  true,
		"2024-01-15 14:00:00 end":   false,
		"no timestamp":              false,
	} {
		if got := p.Match([]byte(line)); got != want {
			t.Errorf("Match(%q) = %v, want %v", line, got, want)
		}
	}
}

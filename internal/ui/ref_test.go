package ui

import (
	"errors"
	"testing"

	"github.com/TimelordUK/bigless/internal/offset"
)

func testRefContext() refContext {
	return refContext{
		top:   100,
		size:  1000,
		marks: map[rune]offset.Offset{'a': 200, 'b': 300},
		// every visible line is 10 bytes
		line: func(k int) (offset.Interval, error) {
			start := offset.Of(k * 10)
			return offset.Span(start, start+10), nil
		},
		at: func(input string) (offset.Offset, error) {
			if input == "13:00" {
				return 500, nil
			}
			return 0, errors.New("no such time")
		},
	}
}

func TestParseRange(t *testing.T) {
	rc := testRefContext()
	tests := []struct {
		input   string
		want    offset.Interval
		wantErr bool
	}{
		{input: "", want: offset.Span(100, 1000)},
		{input: ".", want: offset.Span(100, 1000)},
		{input: "'a-'b", want: offset.Span(200, 300)},
		{input: "'a,$", want: offset.Span(200, 1000)},
		{input: "3-4", want: offset.Span(20, 40)},
		{input: "3", want: offset.Span(20, 1000)},
		{input: "@50,@60", want: offset.Span(50, 60)},
		{input: "@5000", want: offset.Span(1000, 1000)},
		{input: ".-13:00", want: offset.Span(100, 500)},
		{input: "13:00", want: offset.Span(500, 1000)},
		{input: "'b-'a", wantErr: true},
		{input: "'z", wantErr: true},
		{input: "0", wantErr: true},
		{input: "abc", wantErr: true},
		{input: "14:00", wantErr: true},
		{input: "@-1,$", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseRange(tt.input, rc)
			if tt.wantErr {
				if err == nil {
					t.Errorf("parseRange(%q) = %v, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseRange(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("parseRange(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

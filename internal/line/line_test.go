package line

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/TimelordUK/bigless/internal/offset"
)

func newReader(t *testing.T, data string) *Reader {
	t.Helper()
	lr, err := Open(bytes.NewReader([]byte(data)), 4)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return lr
}

func TestReadFrom(t *testing.T) {
	const data = "aaa\nbbb\n\ncd"
	lr := newReader(t, data)

	tests := []struct {
		name    string
		off     offset.Offset
		bytes   string
		start   offset.Offset
		wantErr error
	}{
		{"file start", 0, "aaa\n", 0, nil},
		{"inside first line", 2, "aaa\n", 0, nil},
		{"on terminator", 3, "aaa\n", 0, nil},
		{"second line start", 4, "bbb\n", 4, nil},
		{"empty line", 8, "\n", 8, nil},
		{"unterminated tail", 10, "cd", 9, nil},
		{"end of file inside tail", 11, "cd", 9, nil},
		{"past end", 40, "", 0, ErrUnexpectedEnd},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := lr.ReadFrom(tt.off)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ReadFrom(%d) error = %v, want %v", tt.off, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ReadFrom(%d) error = %v", tt.off, err)
			}
			if string(got.Bytes) != tt.bytes || got.Start != tt.start {
				t.Errorf("ReadFrom(%d) = %q@%d, want %q@%d", tt.off, got.Bytes, got.Start, tt.bytes, tt.start)
			}
		})
	}
}

func TestReadFromTerminatedEOF(t *testing.T) {
	lr := newReader(t, "one\ntwo\n")
	if _, err := lr.ReadFrom(8); !errors.Is(err, ErrUnexpectedEnd) {
		t.Fatalf("ReadFrom(EOF) error = %v, want ErrUnexpectedEnd", err)
	}
	if _, err := newReader(t, "").ReadFrom(0); !errors.Is(err, ErrUnexpectedEnd) {
		t.Fatalf("ReadFrom on empty file error = %v, want ErrUnexpectedEnd", err)
	}
}

func TestReadBackwardsFrom(t *testing.T) {
	lr := newReader(t, "aaa\nbbb\n\ncd")

	tests := []struct {
		name  string
		off   offset.Offset
		bytes string
		start offset.Offset
	}{
		{"before second line", 4, "aaa\n", 0},
		{"before empty line", 8, "bbb\n", 4},
		{"before tail", 9, "\n", 8},
		{"end of file", 11, "cd", 9},
		{"inside first line", 2, "aaa\n", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := lr.ReadBackwardsFrom(tt.off)
			if err != nil {
				t.Fatalf("ReadBackwardsFrom(%d) error = %v", tt.off, err)
			}
			if string(got.Bytes) != tt.bytes || got.Start != tt.start {
				t.Errorf("ReadBackwardsFrom(%d) = %q@%d, want %q@%d", tt.off, got.Bytes, got.Start, tt.bytes, tt.start)
			}
		})
	}

	if _, err := lr.ReadBackwardsFrom(0); !errors.Is(err, ErrUnexpectedEnd) {
		t.Errorf("ReadBackwardsFrom(0) error = %v, want ErrUnexpectedEnd", err)
	}
}

func TestLeadingEmptyLineIsOrdinary(t *testing.T) {
	lr := newReader(t, "\nabc\n")
	first, err := lr.ReadBackwardsFrom(1)
	if err != nil {
		t.Fatalf("ReadBackwardsFrom(1) error = %v", err)
	}
	if first.Range() != offset.Span(0, 1) || len(first.Content()) != 0 {
		t.Errorf("leading empty line = %q %v", first.Bytes, first.Range())
	}
	if _, err := lr.Prev(first); !errors.Is(err, ErrUnexpectedEnd) {
		t.Errorf("Prev(first) error = %v, want ErrUnexpectedEnd", err)
	}
	next, err := lr.Next(first)
	if err != nil || next.String() != "abc" {
		t.Errorf("Next(first) = %q, %v", next.Bytes, err)
	}
}

func TestWalkBothDirections(t *testing.T) {
	lr := newReader(t, "l1\nline two is longer than a chunk\nl3\r\n")
	var forward []string
	l, err := lr.ReadFrom(0)
	for err == nil {
		forward = append(forward, l.String())
		l, err = lr.Next(l)
	}
	want := []string{"l1", "line two is longer than a chunk", "l3"}
	if len(forward) != len(want) {
		t.Fatalf("forward = %q", forward)
	}
	for i := range want {
		if forward[i] != want[i] {
			t.Errorf("forward[%d] = %q, want %q", i, forward[i], want[i])
		}
	}

	var backward []string
	l, err = lr.ReadBackwardsFrom(offset.Of(len("l1\nline two is longer than a chunk\nl3\r\n")))
	for err == nil {
		backward = append(backward, l.String())
		l, err = lr.Prev(l)
	}
	if len(backward) != 3 || backward[0] != "l3" || backward[2] != "l1" {
		t.Errorf("backward = %q", backward)
	}
}

type countingReaderAt struct {
	r     *bytes.Reader
	bytes int
}

func (c *countingReaderAt) ReadAt(p []byte, off int64) (int, error) {
	n, err := c.r.ReadAt(p, off)
	c.bytes += n
	return n, err
}

func TestWalkReadsEachChunkOnce(t *testing.T) {
	const chunk = 256
	var data []byte
	for i := range 2000 {
		data = fmt.Appendf(data, "line %05d\n", i)
	}

	tests := []struct {
		name  string
		walk  func(lr *Reader) (int, error)
		limit int
	}{
		{
			name: "forward",
			walk: func(lr *Reader) (int, error) {
				n := 0
				l, err := lr.ReadFrom(0)
				for err == nil {
					n++
					l, err = lr.Next(l)
				}
				return n, err
			},
			limit: len(data) + 2*chunk,
		},
		{
			name: "backward",
			walk: func(lr *Reader) (int, error) {
				n := 0
				l, err := lr.ReadBackwardsFrom(offset.Of(len(data)))
				for err == nil {
					n++
					l, err = lr.Prev(l)
				}
				return n, err
			},
			// backward windows overlap by a quarter chunk
			limit: len(data)*4/3 + 2*chunk,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &countingReaderAt{r: bytes.NewReader(data)}
			lr, err := Open(src, chunk)
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			n, err := tt.walk(lr)
			if !errors.Is(err, ErrUnexpectedEnd) {
				t.Fatalf("walk ended with %v", err)
			}
			if n != 2000 {
				t.Errorf("walked %d lines, want 2000", n)
			}
			if src.bytes > tt.limit {
				t.Errorf("read %d bytes of a %d byte file, want at most %d", src.bytes, len(data), tt.limit)
			}
		})
	}
}

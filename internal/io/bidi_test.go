package io

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/TimelordUK/bigless/internal/offset"
)

type countingSeeker struct {
	io.ReadSeeker
	seeks int
	reads int
}

func (c *countingSeeker) Seek(off int64, whence int) (int64, error) {
	c.seeks++
	return c.ReadSeeker.Seek(off, whence)
}

func (c *countingSeeker) Read(p []byte) (int, error) {
	c.reads++
	return c.ReadSeeker.Read(p)
}

func newTestReader(t *testing.T, data string, chunk int) (*Reader, *countingSeeker) {
	t.Helper()
	cs := &countingSeeker{ReadSeeker: bytes.NewReader([]byte(data))}
	r, err := NewReaderSize(cs, chunk)
	if err != nil {
		t.Fatalf("NewReaderSize() error = %v", err)
	}
	cs.seeks = 0
	return r, cs
}

func TestSeekToIsLazy(t *testing.T) {
	r, cs := newTestReader(t, "0123456789", 4)
	if err := r.SeekTo(6); err != nil {
		t.Fatalf("SeekTo() error = %v", err)
	}
	if err := r.SeekTo(6); err != nil {
		t.Fatalf("SeekTo() error = %v", err)
	}
	if cs.seeks != 0 || cs.reads != 0 {
		t.Errorf("SeekTo() did I/O: %d seeks, %d reads", cs.seeks, cs.reads)
	}
	var got []byte
	if _, err := r.ReadFluently(2, func(b []byte) { got = append(got, b...) }); err != nil {
		t.Fatalf("ReadFluently() error = %v", err)
	}
	if string(got) != "67" || cs.seeks != 1 {
		t.Errorf("read %q with %d seeks, want \"67\" with 1", got, cs.seeks)
	}
	if r.Position() != 8 {
		t.Errorf("Position() = %d, want 8", r.Position())
	}
}

func TestWindowServesSeeksInside(t *testing.T) {
	r, cs := newTestReader(t, "0123456789abcdef", 8)
	read := func(at, n offset.Offset) string {
		t.Helper()
		if err := r.SeekTo(at); err != nil {
			t.Fatalf("SeekTo() error = %v", err)
		}
		var got []byte
		if _, err := r.ReadFluently(n, func(b []byte) { got = append(got, b...) }); err != nil {
			t.Fatalf("ReadFluently() error = %v", err)
		}
		return string(got)
	}

	if got := read(0, 3); got != "012" {
		t.Fatalf("read(0, 3) = %q", got)
	}
	reads := cs.reads
	for _, tt := range []struct {
		at, n offset.Offset
		want  string
	}{
		{0, 2, "01"},
		{5, 3, "567"},
		{2, 3, "234"},
	} {
		if got := read(tt.at, tt.n); got != tt.want {
			t.Errorf("read(%d, %d) = %q, want %q", tt.at, tt.n, got, tt.want)
		}
	}
	if cs.reads != reads {
		t.Errorf("reads inside the window issued %d reads", cs.reads-reads)
	}

	if err := r.SeekTo(12); err != nil {
		t.Fatalf("SeekTo() error = %v", err)
	}
	var back []byte
	if _, err := r.ReadBackwardsUntil(func(b byte) bool { return b == '9' }, func(b byte) { back = append(back, b) }); err != nil {
		t.Fatalf("ReadBackwardsUntil() error = %v", err)
	}
	if string(back) != "ba" || r.Position() != 10 {
		t.Errorf("ReadBackwardsUntil() collected %q at %d", back, r.Position())
	}
	// the backward fill reaches past 12, so reading forward again is free
	reads = cs.reads
	if got := read(10, 4); got != "abcd" {
		t.Errorf("read(10, 4) = %q", got)
	}
	if cs.reads != reads {
		t.Errorf("forward read after backward scan issued %d reads", cs.reads-reads)
	}
}

type failingSeeker struct {
	io.ReadSeeker
}

func (failingSeeker) Read([]byte) (int, error) {
	return 0, errors.New("device gone")
}

func TestReverseReadErrorKeepsPosition(t *testing.T) {
	r, err := NewReaderSize(failingSeeker{bytes.NewReader([]byte("abcdef"))}, 4)
	if err != nil {
		t.Fatalf("NewReaderSize() error = %v", err)
	}
	if err := r.SeekTo(5); err != nil {
		t.Fatalf("SeekTo() error = %v", err)
	}
	if _, err := r.ReadFluently(-3, func([]byte) {}); err == nil {
		t.Fatal("ReadFluently() succeeded on a failing stream")
	}
	if r.Position() != 5 {
		t.Errorf("Position() = %d after failed read, want 5", r.Position())
	}
	if _, err := r.ReadBackwardsUntil(func(byte) bool { return false }, func(byte) {}); err == nil {
		t.Fatal("ReadBackwardsUntil() succeeded on a failing stream")
	}
	if r.Position() != 5 {
		t.Errorf("Position() = %d after failed backward read, want 5", r.Position())
	}
}

func TestReadBackwardsUntil(t *testing.T) {
	const data = "aaa\nbbb\n\ncd"
	isNewline := func(b byte) bool { return b == '\n' }

	tests := []struct {
		name  string
		start offset.Offset
		want  string
		pos   offset.Offset
	}{
		{"first line end", 3, "aaa", 0},
		{"between terminators", 8, "", 8},
		{"end of file", 11, "cd", 9},
		{"middle of line", 6, "bb", 4},
		{"start of file", 0, "", 0},
	}

	for _, chunk := range []int{1, 3, DefaultChunkSize} {
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				r, _ := newTestReader(t, data, chunk)
				if err := r.SeekTo(tt.start); err != nil {
					t.Fatalf("SeekTo() error = %v", err)
				}
				var collected []byte
				n, err := r.ReadBackwardsUntil(isNewline, func(b byte) { collected = append(collected, b) })
				if err != nil {
					t.Fatalf("ReadBackwardsUntil() error = %v", err)
				}
				reverse(collected)
				if string(collected) != tt.want {
					t.Errorf("collected %q, want %q", collected, tt.want)
				}
				if n != offset.Of(len(tt.want)) {
					t.Errorf("count = %d, want %d", n, len(tt.want))
				}
				if r.Position() != tt.pos {
					t.Errorf("Position() = %d, want %d", r.Position(), tt.pos)
				}
			})
		}
	}
}

func TestReadFluentlyForward(t *testing.T) {
	r, cs := newTestReader(t, "hello world", 4)
	var got []byte
	var chunks int
	n, err := r.ReadFluently(100, func(b []byte) {
		chunks++
		got = append(got, b...)
	})
	if err != nil {
		t.Fatalf("ReadFluently() error = %v", err)
	}
	if n != 11 || string(got) != "hello world" {
		t.Errorf("ReadFluently() = %d %q", n, got)
	}
	if chunks != 3 {
		t.Errorf("chunks = %d, want 3", chunks)
	}
	if r.Position() != 11 {
		t.Errorf("Position() = %d, want 11", r.Position())
	}
	if cs.seeks != 0 {
		t.Errorf("forward read issued %d seeks", cs.seeks)
	}
}

func TestReadFluentlyBackwardMirrorsForward(t *testing.T) {
	const data = "abcdefghijklmnopqrstuvwxyz"
	r, _ := newTestReader(t, data, 5)
	if err := r.SeekTo(20); err != nil {
		t.Fatalf("SeekTo() error = %v", err)
	}

	var backward []byte
	n, err := r.ReadFluently(-12, func(b []byte) { backward = append(backward, b...) })
	if err != nil || n != 12 {
		t.Fatalf("ReadFluently(-12) = %d, %v", n, err)
	}
	if r.Position() != 20 {
		t.Fatalf("backward read moved position to %d", r.Position())
	}

	if err := r.SeekTo(8); err != nil {
		t.Fatalf("SeekTo() error = %v", err)
	}
	var forward []byte
	if _, err := r.ReadFluently(12, func(b []byte) { forward = append(forward, b...) }); err != nil {
		t.Fatalf("ReadFluently(12) error = %v", err)
	}

	reverse(backward)
	if !bytes.Equal(backward, forward) {
		t.Errorf("backward %q is not the reverse of forward %q", backward, forward)
	}
	if string(forward) != data[8:20] {
		t.Errorf("forward = %q", forward)
	}
}

func TestReadFluentlyBackwardClampsAtZero(t *testing.T) {
	r, _ := newTestReader(t, "abcdef", 8)
	if err := r.SeekTo(3); err != nil {
		t.Fatalf("SeekTo() error = %v", err)
	}
	var got []byte
	n, err := r.ReadFluently(-100, func(b []byte) { got = append(got, b...) })
	if err != nil {
		t.Fatalf("ReadFluently() error = %v", err)
	}
	if n != 3 || string(got) != "cba" {
		t.Errorf("ReadFluently(-100) = %d %q, want 3 \"cba\"", n, got)
	}
	if r.Position() != 3 {
		t.Errorf("Position() = %d, want 3", r.Position())
	}
}

func TestBackendsShareStreams(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	if err := os.WriteFile(path, []byte("one\ntwo\n"), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	for _, mapped := range []bool{false, true} {
		b, err := Open(path, mapped)
		if err != nil {
			t.Fatalf("Open(mapped=%v) error = %v", mapped, err)
		}
		first, _ := NewReader(NewStream(b))
		second, _ := NewReader(NewStream(b))
		if err := first.SeekTo(4); err != nil {
			t.Fatalf("SeekTo() error = %v", err)
		}
		var a, c []byte
		first.ReadFluently(3, func(p []byte) { a = append(a, p...) })
		second.ReadFluently(3, func(p []byte) { c = append(c, p...) })
		if string(a) != "two" || string(c) != "one" {
			t.Errorf("mapped=%v: streams read %q and %q", mapped, a, c)
		}

		if err := os.WriteFile(path, []byte("one\ntwo\nthree\n"), 0644); err != nil {
			t.Fatalf("grow fixture: %v", err)
		}
		size, err := b.Size()
		if err != nil || size != 14 {
			t.Errorf("mapped=%v: Size() = %d, %v; want 14", mapped, size, err)
		}
		if err := os.WriteFile(path, []byte("one\ntwo\n"), 0644); err != nil {
			t.Fatalf("reset fixture: %v", err)
		}
		b.Close()
	}
}

package io

import (
	"errors"
	"fmt"
	"io"

	"github.com/TimelordUK/bigless/internal/offset"
)

// DefaultChunkSize bounds every read issued by a Reader.
const DefaultChunkSize = 8 * 1024

// Reader moves in both directions over a seekable stream. It keeps the last
// chunk read as a window, so seeks that land inside it and reads served from
// it never reach the stream. Seeking is lazy: the stream only moves when a
// read needs bytes outside the window. A Reader is not safe for concurrent
// use.
type Reader struct {
	rs  io.ReadSeeker
	pos offset.Offset // logical position
	at  offset.Offset // position of rs
	buf []byte
	win offset.Offset // offset of buf[0]
	n   int           // valid bytes in buf
	rev []byte
}

// NewReader wraps rs using DefaultChunkSize.
func NewReader(rs io.ReadSeeker) (*Reader, error) {
	return NewReaderSize(rs, DefaultChunkSize)
}

// NewReaderSize wraps rs with a chunk buffer of the given size.
func NewReaderSize(rs io.ReadSeeker, size int) (*Reader, error) {
	if size <= 0 {
		size = DefaultChunkSize
	}
	pos, err := rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("query position: %w", err)
	}
	return &Reader{
		rs:  rs,
		pos: offset.Offset(pos),
		at:  offset.Offset(pos),
		buf: make([]byte, size),
		rev: make([]byte, size),
	}, nil
}

// Position returns the current absolute offset.
func (r *Reader) Position() offset.Offset {
	return r.pos
}

// ChunkSize returns the size of the largest single read.
func (r *Reader) ChunkSize() int {
	return len(r.buf)
}

// Reset drops the window. Call it when bytes already read may have changed,
// for instance after the file was truncated.
func (r *Reader) Reset() {
	r.n = 0
}

// SeekTo moves the logical position to target. No I/O happens until the
// next read, and none at all when target lies inside the window.
func (r *Reader) SeekTo(target offset.Offset) error {
	if target < 0 {
		return fmt.Errorf("%w: seek to %d", offset.ErrOutOfRange, target.Int64())
	}
	r.pos = target
	return nil
}

// Window returns the bytes from the current position to the end of the
// window, reading the next chunk first when the position is outside it. An
// empty slice means end of stream. The slice is only valid until the next
// call on r.
func (r *Reader) Window() ([]byte, error) {
	if r.pos < r.win || r.pos >= r.end() {
		if err := r.fill(r.pos, 0); err != nil {
			return nil, err
		}
	}
	return r.buf[r.pos-r.win : r.n], nil
}

// ReadFluently hands up to |n| bytes to consumer chunk by chunk. The chunk
// slice is reused between calls.
//
// For n >= 0 bytes are read forward from the current position, which advances
// by the amount read; reading stops early at end of stream. For n < 0 the
// magnitude is clamped to the current position and the bytes before it are
// delivered nearest-first in reverse order; the position is unchanged
// afterwards, also when reading fails.
func (r *Reader) ReadFluently(n offset.Offset, consumer func([]byte)) (offset.Offset, error) {
	if n >= 0 {
		return r.readForward(n, consumer)
	}
	want, err := n.Neg()
	if err != nil {
		return 0, err
	}
	return r.readReverse(offset.MinOf(want, r.pos), consumer)
}

func (r *Reader) readForward(n offset.Offset, consumer func([]byte)) (offset.Offset, error) {
	var total offset.Offset
	for total < n {
		b, err := r.Window()
		if err != nil {
			return total, err
		}
		if len(b) == 0 {
			break
		}
		k := offset.MinOf(n-total, offset.Of(len(b)))
		r.pos += k
		total += k
		consumer(b[:k])
	}
	return total, nil
}

func (r *Reader) readReverse(n offset.Offset, consumer func([]byte)) (offset.Offset, error) {
	var total offset.Offset
	for total < n {
		at := r.pos - total
		if !r.holdsBefore(at) {
			if err := r.fillBefore(at); err != nil {
				return total, err
			}
		}
		size := offset.MinOf(n-total, at-r.win)
		chunk := append(r.rev[:0], r.buf[at-size-r.win:at-r.win]...)
		reverse(chunk)
		total += size
		consumer(chunk)
	}
	return total, nil
}

// ReadBackwardsUntil steps backward from the current position, passing each
// byte to collect until stop reports true or offset 0 is reached. The
// stopping byte is not collected and the reader is left just after it.
// It returns the number of bytes collected.
func (r *Reader) ReadBackwardsUntil(stop func(byte) bool, collect func(byte)) (offset.Offset, error) {
	var collected offset.Offset
	for r.pos > 0 {
		if !r.holdsBefore(r.pos) {
			if err := r.fillBefore(r.pos); err != nil {
				return collected, err
			}
		}
		chunk := r.buf[:r.pos-r.win]
		for i := len(chunk) - 1; i >= 0; i-- {
			if stop(chunk[i]) {
				r.pos = r.win + offset.Of(i+1)
				return collected, nil
			}
			collect(chunk[i])
			collected++
		}
		r.pos = r.win
	}
	return collected, nil
}

func (r *Reader) end() offset.Offset {
	return r.win + offset.Of(r.n)
}

// holdsBefore reports whether the byte just before at is in the window.
func (r *Reader) holdsBefore(at offset.Offset) bool {
	return at > r.win && at <= r.end()
}

// fillBefore loads a window holding the bytes before at. The window reaches
// a quarter chunk past at, so reading the line around at forward again is
// served from it.
func (r *Reader) fillBefore(at offset.Offset) error {
	size := offset.Of(len(r.buf))
	start := offset.MaxOf(at-size+size/4, 0)
	return r.fill(start, at-start)
}

// fill loads up to one chunk at start into the window. Fewer bytes are only
// accepted at end of stream, and never fewer than need.
func (r *Reader) fill(start, need offset.Offset) error {
	r.n = 0
	if shift := start - r.at; shift != 0 {
		if _, err := r.rs.Seek(shift.Int64(), io.SeekCurrent); err != nil {
			return fmt.Errorf("seek to %d: %w", start.Int64(), err)
		}
		r.at = start
	}
	k, err := io.ReadFull(r.rs, r.buf)
	r.at += offset.Of(k)
	r.win, r.n = start, k
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		r.n = 0
		return fmt.Errorf("read at %d: %w", start.Int64(), err)
	}
	if offset.Of(k) < need {
		return fmt.Errorf("read %d bytes at %d: %w", need.Int64(), start.Int64(), io.ErrUnexpectedEOF)
	}
	return nil
}

func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}

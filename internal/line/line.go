package line

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	mlessio "github.com/TimelordUK/bigless/internal/io"
	"github.com/TimelordUK/bigless/internal/offset"
)

// Terminator ends every line.
const Terminator = '\n'

// ErrUnexpectedEnd reports that no line content exists at the requested
// position: end of file going forward, start of file going backward.
var ErrUnexpectedEnd = errors.New("unexpected end of stream")

// RawLine is a line as stored on disk, terminator included when present.
type RawLine struct {
	Bytes []byte
	Start offset.Offset
}

// End returns the offset just past the line.
func (l RawLine) End() offset.Offset {
	return l.Start + offset.Of(len(l.Bytes))
}

// Range returns [Start, End).
func (l RawLine) Range() offset.Interval {
	return offset.Interval{Start: l.Start, End: l.End()}
}

// Terminated reports whether the line ends with a terminator. Only the last
// line of a file can be unterminated.
func (l RawLine) Terminated() bool {
	return len(l.Bytes) > 0 && l.Bytes[len(l.Bytes)-1] == Terminator
}

// Content returns the line without its terminator or a trailing carriage
// return.
func (l RawLine) Content() []byte {
	return bytes.TrimSuffix(bytes.TrimSuffix(l.Bytes, []byte{Terminator}), []byte{'\r'})
}

func (l RawLine) String() string {
	return string(l.Content())
}

// Reader extracts whole lines around arbitrary offsets. The stream position
// after a call is unspecified.
type Reader struct {
	r *mlessio.Reader
}

// NewReader builds a line reader on top of r.
func NewReader(r *mlessio.Reader) *Reader {
	return &Reader{r: r}
}

// Open builds a line reader over a fresh stream of b.
func Open(b io.ReaderAt, chunkSize int) (*Reader, error) {
	r, err := mlessio.NewReaderSize(mlessio.NewStream(b), chunkSize)
	if err != nil {
		return nil, err
	}
	return NewReader(r), nil
}

// ReadFrom returns the line enclosing off.
func (lr *Reader) ReadFrom(off offset.Offset) (RawLine, error) {
	if off < 0 {
		return RawLine{}, fmt.Errorf("%w: offset %d", offset.ErrOutOfRange, off.Int64())
	}
	if err := lr.r.SeekTo(off); err != nil {
		return RawLine{}, err
	}
	back, err := lr.r.ReadBackwardsUntil(isTerminator, func(byte) {})
	if err != nil {
		return RawLine{}, endOf(err)
	}
	return lr.readForward(off - back)
}

// ReadBackwardsFrom returns the line holding the byte just before off, that
// is the line ending at off when off is a line start. A file starting with an
// empty line yields it as [0, 1) like any other empty line.
func (lr *Reader) ReadBackwardsFrom(off offset.Offset) (RawLine, error) {
	if off <= 0 {
		return RawLine{}, ErrUnexpectedEnd
	}
	return lr.ReadFrom(off - 1)
}

// Next returns the line starting at l's end.
func (lr *Reader) Next(l RawLine) (RawLine, error) {
	if !l.Terminated() {
		return RawLine{}, ErrUnexpectedEnd
	}
	return lr.readForward(l.End())
}

// Prev returns the line ending at l's start.
func (lr *Reader) Prev(l RawLine) (RawLine, error) {
	return lr.ReadBackwardsFrom(l.Start)
}

// readForward reads from start, a known line start, through the next
// terminator. Bytes past the terminator stay buffered for the next line.
func (lr *Reader) readForward(start offset.Offset) (RawLine, error) {
	if err := lr.r.SeekTo(start); err != nil {
		return RawLine{}, err
	}
	var buf []byte
	for {
		b, err := lr.r.Window()
		if err != nil {
			return RawLine{}, endOf(err)
		}
		if len(b) == 0 {
			break
		}
		if i := bytes.IndexByte(b, Terminator); i >= 0 {
			buf = append(buf, b[:i+1]...)
			break
		}
		buf = append(buf, b...)
		if err := lr.r.SeekTo(start + offset.Of(len(buf))); err != nil {
			return RawLine{}, err
		}
	}
	if len(buf) == 0 {
		return RawLine{}, ErrUnexpectedEnd
	}
	return RawLine{Bytes: buf, Start: start}, nil
}

// Reset drops buffered bytes; see mlessio.Reader.Reset.
func (lr *Reader) Reset() {
	lr.r.Reset()
}

func isTerminator(b byte) bool {
	return b == Terminator
}

func endOf(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %v", ErrUnexpectedEnd, err)
	}
	return err
}

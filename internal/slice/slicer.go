package slice

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	mlessio "github.com/TimelordUK/bigless/internal/io"
	"github.com/TimelordUK/bigless/internal/line"
	"github.com/TimelordUK/bigless/internal/offset"
	"github.com/TimelordUK/bigless/internal/task"
)

// Matcher selects the lines written to a slice. *source.Predicate satisfies it.
type Matcher interface {
	Match(content []byte) bool
}

// Info contains metadata about a slice
type Info struct {
	SourcePath string          // File the slice was cut from
	Path       string          // Local temp file path
	Range      offset.Interval // Raw byte range of the source that was read
	Filter     string          // Filter active when slicing, empty for none
	Lines      int             // Lines written
	Parent     *Info           // For nested slices
}

// Result completes a slice task
type Result struct {
	Info        *Info
	Interrupted bool
	Err         error
}

// Slicer handles extracting portions of files to temp files
type Slicer struct {
	dir            string
	chunkSize      int
	interruptCheck time.Duration
}

// NewSlicer creates a slicer writing under dir, the system temp dir when empty
func NewSlicer(dir string, chunkSize int, interruptCheck time.Duration) *Slicer {
	if dir == "" {
		dir = os.TempDir()
	}
	return &Slicer{dir: dir, chunkSize: chunkSize, interruptCheck: interruptCheck}
}

// pattern names the temp file for a slice of src over iv. Every slice gets a
// file of its own, so reverting one never removes another's.
func pattern(src string, iv offset.Interval) string {
	return fmt.Sprintf("bigless-slice-%d-%d-*-%s", iv.Start.Int64(), iv.End.Int64(), filepath.Base(src))
}

// Op returns a task operation copying the lines of b that start inside iv
// and pass m (nil keeps every line) to a new file. An interrupted or failed
// slice leaves no file behind.
func (s *Slicer) Op(b mlessio.Backend, m Matcher, iv offset.Interval) func(*task.Context[struct{}]) Result {
	filter := ""
	if m != nil {
		filter = fmt.Sprint(m)
	}
	return func(ctx *task.Context[struct{}]) Result {
		info := &Info{SourcePath: b.Path(), Range: iv, Filter: filter}
		if err := s.write(ctx, b, m, info); err != nil {
			Cleanup(info)
			if errors.Is(err, errInterrupted) {
				return Result{Interrupted: true}
			}
			return Result{Err: err}
		}
		ctx.Logger().Debug("slice written",
			slog.String("path", info.Path),
			slog.String("range", iv.String()),
			slog.Int("lines", info.Lines))
		return Result{Info: info}
	}
}

var errInterrupted = errors.New("slice interrupted")

func (s *Slicer) write(ctx *task.Context[struct{}], b mlessio.Backend, m Matcher, info *Info) error {
	lines, err := line.Open(b, s.chunkSize)
	if err != nil {
		return err
	}

	out, err := os.CreateTemp(s.dir, pattern(b.Path(), info.Range))
	if err != nil {
		return fmt.Errorf("failed to create slice file: %w", err)
	}
	defer out.Close()
	info.Path = out.Name()
	w := bufio.NewWriter(out)

	iv := info.Range
	l, err := lines.ReadFrom(iv.Start)
	if err == nil && l.Start < iv.Start {
		l, err = lines.Next(l)
	}
	for err == nil && l.Start < iv.End {
		if ctx.InterruptedDebounced(s.interruptCheck) {
			return errInterrupted
		}
		if m == nil || m.Match(l.Content()) {
			if _, err := w.Write(l.Bytes); err != nil {
				return fmt.Errorf("failed to write line at %d: %w", l.Start.Int64(), err)
			}
			if !l.Terminated() {
				if err := w.WriteByte(line.Terminator); err != nil {
					return fmt.Errorf("failed to write newline: %w", err)
				}
			}
			info.Lines++
		}
		if n := iv.Len(); n > 0 {
			ctx.UpdateProgress(int((offset.MinOf(l.End(), iv.End) - iv.Start) * 100 / n))
		}
		l, err = lines.Next(l)
	}
	if err != nil && !errors.Is(err, line.ErrUnexpectedEnd) {
		return fmt.Errorf("failed to read line: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write slice: %w", err)
	}
	ctx.UpdateProgress(100)
	return nil
}

// Cleanup removes a slice's file
func Cleanup(info *Info) error {
	if info == nil || info.Path == "" {
		return nil
	}
	return os.Remove(info.Path)
}

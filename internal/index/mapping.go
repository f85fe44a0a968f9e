// Package index keeps the offset mapping cache of a filtered view: which raw
// byte spans have been scanned and which lines inside them matched.
package index

import (
	"fmt"
	"slices"
	"sort"

	"github.com/google/btree"

	"github.com/TimelordUK/bigless/internal/offset"
)

const degree = 16

// Segment is a scanned raw span together with the ranges of the matching
// lines it contains, in ascending order. Span boundaries are line boundaries.
type Segment struct {
	Span    offset.Interval
	Matches []offset.Interval
}

// Mapping is an ordered set of non-overlapping segments. Contiguous segments
// are merged on insert, so once the file has been scanned from byte 0 the
// head segment holds every known match with its absolute filtered index.
//
// Mapping is not safe for concurrent use; the owner of a view is its only
// writer.
type Mapping struct {
	tree *btree.BTreeG[*Segment]
}

// New returns an empty mapping.
func New() *Mapping {
	return &Mapping{tree: btree.NewG(degree, byStart)}
}

func byStart(a, b *Segment) bool {
	return a.Span.Start < b.Span.Start
}

func pivot(o offset.Offset) *Segment {
	return &Segment{Span: offset.Interval{Start: o, End: o}}
}

// Len returns the number of stored segments.
func (m *Mapping) Len() int {
	return m.tree.Len()
}

// Insert records span as scanned with the given matches. Parts of span that
// are already cached are left as they are; matches falling in those parts are
// ignored.
func (m *Mapping) Insert(span offset.Interval, matches []offset.Interval) {
	if span.Empty() {
		return
	}
	cursor := span.Start
	if prev, ok := m.floor(span.Start); ok && prev.Span.End > cursor {
		cursor = offset.MinOf(prev.Span.End, span.End)
	}
	var gaps []offset.Interval
	m.tree.AscendGreaterOrEqual(pivot(span.Start), func(s *Segment) bool {
		if s.Span.Start >= span.End {
			return false
		}
		if s.Span.Start > cursor {
			gaps = append(gaps, offset.Span(cursor, s.Span.Start))
		}
		if s.Span.End > cursor {
			cursor = s.Span.End
		}
		return true
	})
	if cursor < span.End {
		gaps = append(gaps, offset.Span(cursor, span.End))
	}
	for _, g := range gaps {
		m.put(&Segment{Span: g, Matches: within(matches, g)})
	}
}

// within returns a copy of the matches starting inside g.
func within(matches []offset.Interval, g offset.Interval) []offset.Interval {
	lo := sort.Search(len(matches), func(i int) bool { return matches[i].Start >= g.Start })
	hi := sort.Search(len(matches), func(i int) bool { return matches[i].Start >= g.End })
	if lo >= hi {
		return nil
	}
	return slices.Clone(matches[lo:hi])
}

func (m *Mapping) put(seg *Segment) {
	prev, hasPrev := m.floor(seg.Span.Start)
	next, hasNext := m.ceil(seg.Span.Start)
	if hasPrev && prev.Span.End > seg.Span.Start {
		panic(fmt.Sprintf("index: segment %v overlaps %v", seg.Span, prev.Span))
	}
	if hasNext && next.Span.Start < seg.Span.End {
		panic(fmt.Sprintf("index: segment %v overlaps %v", seg.Span, next.Span))
	}

	if hasPrev && prev.Span.End == seg.Span.Start {
		prev.Span.End = seg.Span.End
		prev.Matches = append(prev.Matches, seg.Matches...)
		seg = prev
	} else {
		m.tree.ReplaceOrInsert(seg)
	}
	if hasNext && next.Span.Start == seg.Span.End {
		m.tree.Delete(next)
		seg.Span.End = next.Span.End
		seg.Matches = append(seg.Matches, next.Matches...)
	}
}

func (m *Mapping) floor(o offset.Offset) (*Segment, bool) {
	var found *Segment
	m.tree.DescendLessOrEqual(pivot(o), func(s *Segment) bool {
		found = s
		return false
	})
	return found, found != nil
}

func (m *Mapping) ceil(o offset.Offset) (*Segment, bool) {
	var found *Segment
	m.tree.AscendGreaterOrEqual(pivot(o), func(s *Segment) bool {
		found = s
		return false
	})
	return found, found != nil
}

// Floor returns the last segment starting at or before o.
func (m *Mapping) Floor(o offset.Offset) (Segment, bool) {
	s, ok := m.floor(o)
	if !ok {
		return Segment{}, false
	}
	return *s, true
}

// Ceil returns the first segment starting at or after o.
func (m *Mapping) Ceil(o offset.Offset) (Segment, bool) {
	s, ok := m.ceil(o)
	if !ok {
		return Segment{}, false
	}
	return *s, true
}

// Find returns the segment whose span contains o.
func (m *Mapping) Find(o offset.Offset) (Segment, bool) {
	s, ok := m.floor(o)
	if !ok || !s.Span.Contains(o) {
		return Segment{}, false
	}
	return *s, true
}

// Head returns the segment starting at byte 0, if any.
func (m *Mapping) Head() (Segment, bool) {
	s, ok := m.tree.Min()
	if !ok || s.Span.Start != 0 {
		return Segment{}, false
	}
	return *s, true
}

// Truncate forgets everything past size. A segment straddling size keeps its
// leading part up to the end of its last match that still fits.
func (m *Mapping) Truncate(size offset.Offset) {
	var drop []*Segment
	m.tree.DescendGreaterThan(pivot(size), func(s *Segment) bool {
		drop = append(drop, s)
		return true
	})
	if s, ok := m.floor(size); ok && s.Span.Start == size {
		drop = append(drop, s)
	}
	for _, s := range drop {
		m.tree.Delete(s)
	}

	s, ok := m.floor(size)
	if !ok || s.Span.End <= size {
		return
	}
	keep := sort.Search(len(s.Matches), func(i int) bool { return s.Matches[i].End > size })
	if keep == 0 {
		m.tree.Delete(s)
		return
	}
	s.Matches = s.Matches[:keep]
	s.Span.End = s.Matches[keep-1].End
}

// Clear drops every segment.
func (m *Mapping) Clear() {
	m.tree.Clear(false)
}

// Segments returns the stored segments in order. The match slices are shared
// with the mapping and must not be modified.
func (m *Mapping) Segments() []Segment {
	out := make([]Segment, 0, m.tree.Len())
	m.tree.Ascend(func(s *Segment) bool {
		out = append(out, *s)
		return true
	})
	return out
}

// MatchCount returns the number of cached matches.
func (m *Mapping) MatchCount() int {
	n := 0
	m.tree.Ascend(func(s *Segment) bool {
		n += len(s.Matches)
		return true
	})
	return n
}

// Covered returns the total number of cached bytes.
func (m *Mapping) Covered() offset.Offset {
	var n offset.Offset
	m.tree.Ascend(func(s *Segment) bool {
		n += s.Span.Len()
		return true
	})
	return n
}

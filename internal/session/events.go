package session

import (
	"errors"
	"log/slog"

	"github.com/TimelordUK/bigless/internal/offset"
	"github.com/TimelordUK/bigless/internal/search"
	"github.com/TimelordUK/bigless/internal/slice"
	"github.com/TimelordUK/bigless/internal/source"
	"github.com/TimelordUK/bigless/internal/task"
)

// EventKind tags an Event.
type EventKind int

const (
	FilterProgress EventKind = iota
	FilterDone
	SearchProgress
	SearchFound
	SearchFailed
	ExportProgress
	ExportDone
)

func (k EventKind) String() string {
	switch k {
	case FilterProgress:
		return "filter-progress"
	case FilterDone:
		return "filter-done"
	case SearchProgress:
		return "search-progress"
	case SearchFound:
		return "search-found"
	case SearchFailed:
		return "search-failed"
	case ExportProgress:
		return "export-progress"
	case ExportDone:
		return "export-done"
	}
	return "unknown"
}

// Event is what Poll reports to the front end.
type Event struct {
	Kind       EventKind
	TaskID     uint64
	Progress   int
	Occurrence search.Occurrence
	Slice      *slice.Info
	Scan       source.ScanResult
	Err        error
}

// Status summarises the session for a status bar.
type Status struct {
	Path           string
	Size           offset.Offset
	Top            offset.Offset
	Filter         string
	Filtered       bool
	Matches        int  // visible lines found so far
	Total          int  // visible lines in the file, valid when TotalKnown
	TotalKnown     bool // the whole file has been scanned
	FilterProgress int  // -1 when no scan runs
	Pattern        string
	SearchProgress int // -1 when no search runs
	ExportProgress int // -1 when no export runs
	Err            error
}

// Poll drains whatever the running tasks have sent, without blocking, and
// applies it: filter batches extend the cache, a found occurrence moves the
// viewport. Tasks that completed are forgotten.
func (s *Session) Poll() []Event {
	var events []Event
	limit := s.cfg.Engine.ChannelSize

	if f := s.filter; f != nil {
		open := task.Poll(f.signals, limit, func(sig task.Signal[[]source.ScanChunk, source.ScanResult]) {
			switch sig.Kind {
			case task.KindCustom:
				if !s.filtered.Merge(f.gen, sig.Message) {
					s.log.Debug("stale filter batch ignored", slog.Uint64("task", f.handle.ID()))
				}
			case task.KindProgress:
				f.progress = sig.Progress
				events = append(events, Event{Kind: FilterProgress, TaskID: f.handle.ID(), Progress: sig.Progress})
			case task.KindComplete:
				res := sig.Result
				if res.Err != nil {
					s.lastErr = res.Err
				}
				events = append(events, Event{Kind: FilterDone, TaskID: f.handle.ID(), Scan: res, Err: res.Err})
			}
		})
		if !open && s.filter == f {
			s.filter = nil
		}
	}

	if f := s.find; f != nil {
		open := task.Poll(f.signals, limit, func(sig task.Signal[struct{}, search.FindResult]) {
			switch sig.Kind {
			case task.KindProgress:
				f.progress = sig.Progress
				events = append(events, Event{Kind: SearchProgress, TaskID: f.handle.ID(), Progress: sig.Progress})
			case task.KindComplete:
				events = append(events, s.finished(f.handle.ID(), sig.Result))
			}
		})
		if !open && s.find == f {
			s.find = nil
		}
	}

	if x := s.export; x != nil {
		open := task.Poll(x.signals, limit, func(sig task.Signal[struct{}, slice.Result]) {
			switch sig.Kind {
			case task.KindProgress:
				x.progress = sig.Progress
				events = append(events, Event{Kind: ExportProgress, TaskID: x.handle.ID(), Progress: sig.Progress})
			case task.KindComplete:
				res := sig.Result
				if res.Err != nil {
					s.lastErr = res.Err
				}
				events = append(events, Event{Kind: ExportDone, TaskID: x.handle.ID(), Slice: res.Info, Err: res.Err})
			}
		})
		if !open && s.export == x {
			s.export = nil
		}
	}
	return events
}

func (s *Session) finished(id uint64, res search.FindResult) Event {
	if res.Err != nil {
		if !errors.Is(res.Err, search.ErrNotFound) && !errors.Is(res.Err, search.ErrInterrupted) {
			s.lastErr = res.Err
		}
		return Event{Kind: SearchFailed, TaskID: id, Err: res.Err}
	}
	o := res.Occurrence
	s.current = &o
	s.top = o.Line.Start
	return Event{Kind: SearchFound, TaskID: id, Occurrence: o}
}

// Status reports the current state.
func (s *Session) Status() Status {
	pred := s.filtered.Predicate()
	st := Status{
		Path:           s.backend.Path(),
		Size:           s.size,
		Top:            s.top,
		Filter:         pred.String(),
		Filtered:       !pred.PassAll(),
		Matches:        s.filtered.Stats().Matches,
		FilterProgress: -1,
		SearchProgress: -1,
		ExportProgress: -1,
		Err:            s.lastErr,
	}
	if st.Filtered {
		if total, ok, err := s.filtered.Total(); err == nil && ok {
			st.Total, st.TotalKnown = total, true
		}
	}
	if s.filter != nil {
		st.FilterProgress = max(s.filter.progress, 0)
	}
	if s.pattern != nil {
		st.Pattern = s.pattern.Text()
	}
	if s.find != nil {
		st.SearchProgress = max(s.find.progress, 0)
	}
	if s.export != nil {
		st.ExportProgress = max(s.export.progress, 0)
	}
	return st
}

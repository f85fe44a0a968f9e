// Package task runs long operations (filter scans, searches, exports) on
// their own goroutine and streams their output back to a single owner.
//
// A task talks to its owner through two channels: a bounded Signal channel
// from worker to owner and an interrupt channel from owner to worker.
// Interruption is cooperative: the operation polls Interrupted or
// InterruptedDebounced at safe points and returns early when asked to.
//
// Signal lifecycle: zero or more Custom and Progress signals, then exactly
// one Complete, then the channel is closed. Once a task is interrupted no
// further Custom or Progress signals are delivered; the Complete signal is
// still delivered when the channel has room for it.
package task

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/TimelordUK/bigless/internal/logging"
)

const defaultChannelSize = 64

// Kind tags a Signal.
type Kind int

const (
	KindCustom Kind = iota
	KindProgress
	KindComplete
)

func (k Kind) String() string {
	switch k {
	case KindCustom:
		return "custom"
	case KindProgress:
		return "progress"
	case KindComplete:
		return "complete"
	}
	return "unknown"
}

// Signal is one message from a task to its owner. Only the field matching
// Kind is meaningful.
type Signal[M, R any] struct {
	Kind     Kind
	Message  M
	Progress int
	Result   R
}

var lastID atomic.Uint64

// Handle identifies a running task and carries its interrupt side. Dropping a
// Handle does not interrupt the task.
type Handle struct {
	id   uint64
	name string
	stop chan struct{}
	once sync.Once
	done chan struct{}
	log  *slog.Logger
}

// ID returns a process-unique task identifier.
func (h *Handle) ID() uint64 { return h.id }

// Name returns the name given at spawn time.
func (h *Handle) Name() string { return h.name }

// Interrupt asks the task to stop. Repeated calls and calls after completion
// are harmless.
func (h *Handle) Interrupt() {
	select {
	case <-h.done:
		h.log.Debug("interrupt after completion ignored", slog.Uint64("task", h.id), slog.String("name", h.name))
		return
	default:
	}
	h.once.Do(func() {
		close(h.stop)
		h.log.Debug("task interrupted", slog.Uint64("task", h.id), slog.String("name", h.name))
	})
}

// Interrupted reports whether Interrupt has been called.
func (h *Handle) Interrupted() bool {
	select {
	case <-h.stop:
		return true
	default:
		return false
	}
}

// Done is closed once the operation has returned.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the operation has returned.
func (h *Handle) Wait() { <-h.done }

// Options configure Spawn.
type Options struct {
	ChannelSize int
	Logger      *slog.Logger
}

// Option mutates Options.
type Option func(*Options)

// WithChannelSize bounds the signal channel.
func WithChannelSize(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.ChannelSize = n
		}
	}
}

// WithLogger sets the logger used for lifecycle records.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

// Context is the worker side of a task.
type Context[M any] struct {
	id       uint64
	stop     <-chan struct{}
	send     func(Kind, M, int) bool
	progress int

	debounce        *rate.Sometimes
	lastInterrupted bool
	dropped         int
	log             *slog.Logger
}

// SendMessage delivers a Custom signal, blocking while the channel is full.
// It returns false, dropping m, once the task has been interrupted.
func (c *Context[M]) SendMessage(m M) bool {
	if c.Interrupted() || !c.send(KindCustom, m, 0) {
		c.dropped++
		c.log.Debug("message dropped after interrupt", slog.Uint64("task", c.id))
		return false
	}
	return true
}

// UpdateProgress reports completion percentage, clamped to 0..100. Repeating
// the last reported value sends nothing.
func (c *Context[M]) UpdateProgress(percent int) bool {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	if percent == c.progress {
		return true
	}
	if c.Interrupted() {
		return false
	}
	var zero M
	if !c.send(KindProgress, zero, percent) {
		return false
	}
	c.progress = percent
	return true
}

// Interrupted checks the interrupt channel.
func (c *Context[M]) Interrupted() bool {
	select {
	case <-c.stop:
		return true
	default:
		return false
	}
}

// InterruptedDebounced checks the interrupt channel at most once per every
// and returns the last answer in between. Use it in tight loops.
func (c *Context[M]) InterruptedDebounced(every time.Duration) bool {
	if every <= 0 {
		return c.Interrupted()
	}
	if c.lastInterrupted {
		return true
	}
	if c.debounce == nil || c.debounce.Interval != every {
		c.debounce = &rate.Sometimes{Interval: every}
	}
	c.debounce.Do(func() {
		c.lastInterrupted = c.Interrupted()
	})
	return c.lastInterrupted
}

// Dropped counts messages discarded because of an interrupt.
func (c *Context[M]) Dropped() int { return c.dropped }

// Logger returns the task's logger.
func (c *Context[M]) Logger() *slog.Logger { return c.log }

// Spawn starts op on a new goroutine. The returned channel yields the task's
// signals and is closed after the Complete signal.
func Spawn[M, R any](name string, op func(*Context[M]) R, opts ...Option) (*Handle, <-chan Signal[M, R]) {
	o := Options{ChannelSize: defaultChannelSize, Logger: logging.Discard()}
	for _, opt := range opts {
		opt(&o)
	}

	h := &Handle{
		id:   lastID.Add(1),
		name: name,
		stop: make(chan struct{}),
		done: make(chan struct{}),
		log:  o.Logger,
	}
	signals := make(chan Signal[M, R], o.ChannelSize)

	deliver := func(sig Signal[M, R]) bool {
		select {
		case signals <- sig:
			return true
		case <-h.stop:
			return false
		}
	}

	ctx := &Context[M]{
		id:       h.id,
		stop:     h.stop,
		progress: -1,
		log:      o.Logger,
		send: func(kind Kind, m M, percent int) bool {
			return deliver(Signal[M, R]{Kind: kind, Message: m, Progress: percent})
		},
	}

	o.Logger.Debug("task spawned", slog.Uint64("task", h.id), slog.String("name", name))
	go func() {
		defer close(h.done)
		defer close(signals)

		started := time.Now()
		result := op(ctx)
		complete := Signal[M, R]{Kind: KindComplete, Result: result}
		if !deliver(complete) {
			select {
			case signals <- complete:
			default:
				o.Logger.Debug("completion dropped, owner gone", slog.Uint64("task", h.id))
			}
		}
		o.Logger.Debug("task complete",
			slog.Uint64("task", h.id),
			slog.String("name", name),
			slog.Bool("interrupted", h.Interrupted()),
			slog.Duration("elapsed", time.Since(started)))
	}()

	return h, signals
}

// Poll drains up to max signals without blocking (max <= 0 drains all that
// are ready). It returns false once the channel is closed.
func Poll[M, R any](ch <-chan Signal[M, R], max int, fn func(Signal[M, R])) bool {
	for n := 0; max <= 0 || n < max; n++ {
		select {
		case sig, ok := <-ch:
			if !ok {
				return false
			}
			fn(sig)
		default:
			return true
		}
	}
	return true
}

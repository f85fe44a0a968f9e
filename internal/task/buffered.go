package task

import "time"

// BufferedSender batches items into Custom messages. A batch is sent when it
// reaches size items, or on the first Push after interval has elapsed since
// the previous flush (interval <= 0 disables the time trigger). Close sends
// whatever is left, so defer it right after construction.
type BufferedSender[T any] struct {
	ctx      *Context[[]T]
	size     int
	interval time.Duration
	items    []T
	last     time.Time
	now      func() time.Time
}

// NewBufferedSender wraps ctx.
func NewBufferedSender[T any](ctx *Context[[]T], size int, interval time.Duration) *BufferedSender[T] {
	if size <= 0 {
		size = 1
	}
	b := &BufferedSender[T]{
		ctx:      ctx,
		size:     size,
		interval: interval,
		now:      time.Now,
	}
	b.items = make([]T, 0, size)
	b.last = b.now()
	return b
}

// Push adds one item, flushing when a trigger fires. It returns false when
// the flush was refused because the task is interrupted.
func (b *BufferedSender[T]) Push(item T) bool {
	b.items = append(b.items, item)
	if len(b.items) >= b.size || (b.interval > 0 && b.now().Sub(b.last) >= b.interval) {
		return b.Flush()
	}
	return true
}

// Flush sends the pending batch, if any.
func (b *BufferedSender[T]) Flush() bool {
	b.last = b.now()
	if len(b.items) == 0 {
		return true
	}
	batch := b.items
	// the receiver owns the sent slice
	b.items = make([]T, 0, b.size)
	return b.ctx.SendMessage(batch)
}

// Pending returns the number of unsent items.
func (b *BufferedSender[T]) Pending() int {
	return len(b.items)
}

// Close flushes the remainder.
func (b *BufferedSender[T]) Close() bool {
	return b.Flush()
}

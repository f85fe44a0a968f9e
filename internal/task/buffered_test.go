package task

import (
	"reflect"
	"testing"
	"time"
)

func TestBufferedSenderBatches(t *testing.T) {
	_, signals := Spawn("batch", func(ctx *Context[[]int]) int {
		b := NewBufferedSender(ctx, 3, 0)
		defer b.Close()
		for i := 1; i <= 5; i++ {
			b.Push(i)
		}
		return b.Pending()
	})

	var batches [][]int
	var pending int
	for _, s := range collect(t, signals) {
		switch s.Kind {
		case KindCustom:
			batches = append(batches, s.Message)
		case KindComplete:
			pending = s.Result
		}
	}
	want := [][]int{{1, 2, 3}, {4, 5}}
	if !reflect.DeepEqual(batches, want) {
		t.Errorf("batches = %v, want %v", batches, want)
	}
	if pending != 2 {
		t.Errorf("pending before close = %d, want 2", pending)
	}
}

func TestBufferedSenderInterval(t *testing.T) {
	_, signals := Spawn("timed", func(ctx *Context[[]string]) int {
		b := NewBufferedSender(ctx, 100, time.Second)
		clock := time.Unix(0, 0)
		b.now = func() time.Time { return clock }
		b.last = clock

		b.Push("a")
		b.Push("b")
		clock = clock.Add(2 * time.Second)
		b.Push("c")
		b.Push("d")
		b.Close()
		return 0
	})

	var batches [][]string
	for _, s := range collect(t, signals) {
		if s.Kind == KindCustom {
			batches = append(batches, s.Message)
		}
	}
	want := [][]string{{"a", "b", "c"}, {"d"}}
	if !reflect.DeepEqual(batches, want) {
		t.Errorf("batches = %v, want %v", batches, want)
	}
}

func TestBufferedSenderAfterInterrupt(t *testing.T) {
	release := make(chan struct{})
	h, signals := Spawn("late", func(ctx *Context[[]int]) bool {
		b := NewBufferedSender(ctx, 10, 0)
		b.Push(1)
		<-release
		return b.Close()
	})
	h.Interrupt()
	close(release)

	for _, s := range collect(t, signals) {
		if s.Kind == KindCustom {
			t.Fatalf("batch %v delivered after interrupt", s.Message)
		}
		if s.Kind == KindComplete && s.Result {
			t.Errorf("Close reported success after interrupt")
		}
	}
}

package offset

import (
	"errors"
	"math"
	"testing"
)

func roundTrip[T Integer](t *testing.T, values ...T) {
	t.Helper()
	for _, v := range values {
		o, err := From(v)
		if err != nil {
			t.Fatalf("From(%v) error = %v", v, err)
		}
		got, err := To[T](o)
		if err != nil {
			t.Fatalf("To[%T](%v) error = %v", v, o, err)
		}
		if got != v {
			t.Errorf("round trip %T: got %v, want %v", v, got, v)
		}
	}
}

func TestFromToRoundTrip(t *testing.T) {
	roundTrip[int8](t, math.MinInt8, -1, 0, 1, math.MaxInt8)
	roundTrip[int16](t, math.MinInt16, -300, 0, math.MaxInt16)
	roundTrip[int32](t, math.MinInt32, -70000, 0, math.MaxInt32)
	roundTrip[int64](t, math.MinInt64, -1, 0, math.MaxInt64)
	roundTrip[int](t, math.MinInt, 0, math.MaxInt)
	roundTrip[uint8](t, 0, 1, math.MaxUint8)
	roundTrip[uint16](t, 0, math.MaxUint16)
	roundTrip[uint32](t, 0, math.MaxUint32)
	roundTrip[uint64](t, 0, math.MaxInt64)
}

func TestFromUnsignedTooLarge(t *testing.T) {
	if _, err := From(uint64(math.MaxInt64) + 1); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("From(MaxInt64+1) error = %v, want ErrOutOfRange", err)
	}
	if _, err := From(uint64(math.MaxUint64)); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("From(MaxUint64) error = %v, want ErrOutOfRange", err)
	}
}

func TestToNarrowing(t *testing.T) {
	tests := []struct {
		name string
		o    Offset
		conv func(Offset) error
		ok   bool
	}{
		{"int8 fits", 127, func(o Offset) error { _, err := To[int8](o); return err }, true},
		{"int8 too big", 128, func(o Offset) error { _, err := To[int8](o); return err }, false},
		{"int8 too small", -129, func(o Offset) error { _, err := To[int8](o); return err }, false},
		{"uint8 negative", -1, func(o Offset) error { _, err := To[uint8](o); return err }, false},
		{"uint8 fits", 255, func(o Offset) error { _, err := To[uint8](o); return err }, true},
		{"uint16 too big", 65536, func(o Offset) error { _, err := To[uint16](o); return err }, false},
		{"int32 too big", math.MaxInt32 + 1, func(o Offset) error { _, err := To[int32](o); return err }, false},
		{"uint32 fits", math.MaxUint32, func(o Offset) error { _, err := To[uint32](o); return err }, true},
		{"uint64 negative", Min, func(o Offset) error { _, err := To[uint64](o); return err }, false},
		{"uint64 max", Max, func(o Offset) error { _, err := To[uint64](o); return err }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.conv(tt.o)
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrOutOfRange) {
				t.Fatalf("error = %v, want ErrOutOfRange", err)
			}
		})
	}
}

func TestAddMixedWidths(t *testing.T) {
	for _, a := range []int64{-1000, -1, 0, 1, 1000, math.MaxInt32} {
		base := Of(a)
		for _, b := range []int8{math.MinInt8, -1, 0, 1, math.MaxInt8} {
			got, err := AddN(base, b)
			if err != nil || got != Of(a+int64(b)) {
				t.Errorf("AddN(%d, int8 %d) = %d, %v", a, b, got, err)
			}
		}
		for _, b := range []uint16{0, 1, math.MaxUint16} {
			got, err := AddN(base, b)
			if err != nil || got != Of(a+int64(b)) {
				t.Errorf("AddN(%d, uint16 %d) = %d, %v", a, b, got, err)
			}
		}
		for _, b := range []int32{math.MinInt32, 7, math.MaxInt32} {
			got, err := SubN(base, b)
			if err != nil || got != Of(a-int64(b)) {
				t.Errorf("SubN(%d, int32 %d) = %d, %v", a, b, got, err)
			}
		}
		for _, b := range []uint64{0, 42, 1 << 40} {
			got, err := AddN(base, b)
			if err != nil || got != Of(a+int64(b)) {
				t.Errorf("AddN(%d, uint64 %d) = %d, %v", a, b, got, err)
			}
		}
	}
}

func TestAddWideUnsigned(t *testing.T) {
	// -2^63 + 2^63 fits even though the operand itself does not.
	got, err := AddN(Min, uint64(1)<<63)
	if err != nil || got != 0 {
		t.Fatalf("AddN(Min, 2^63) = %d, %v; want 0", got, err)
	}
	if _, err := AddN(Offset(0), uint64(1)<<63); !errors.Is(err, ErrOverflow) {
		t.Fatalf("AddN(0, 2^63) error = %v, want ErrOverflow", err)
	}
	got, err = SubN(Offset(0), uint64(1)<<63)
	if err != nil || got != Min {
		t.Fatalf("SubN(0, 2^63) = %d, %v; want Min", got, err)
	}
	if _, err := SubN(Offset(-1), uint64(1)<<63); !errors.Is(err, ErrOverflow) {
		t.Fatalf("SubN(-1, 2^63) error = %v, want ErrOverflow", err)
	}
}

func TestOverflowIsReported(t *testing.T) {
	if _, err := Max.Add(1); !errors.Is(err, ErrOverflow) {
		t.Errorf("Max+1 error = %v", err)
	}
	if _, err := Min.Sub(1); !errors.Is(err, ErrOverflow) {
		t.Errorf("Min-1 error = %v", err)
	}
	if _, err := Min.Neg(); !errors.Is(err, ErrOverflow) {
		t.Errorf("-Min error = %v", err)
	}
	if _, err := AddN(Max, int8(1)); !errors.Is(err, ErrOverflow) {
		t.Errorf("AddN(Max, 1) error = %v", err)
	}
	defer func() {
		if recover() == nil {
			t.Errorf("Plus did not panic on overflow")
		}
	}()
	_ = Max.Plus(1)
}

func TestCmp(t *testing.T) {
	if Cmp(Offset(5), uint8(5)) != 0 {
		t.Errorf("Cmp(5, 5) != 0")
	}
	if Cmp(Offset(-1), uint64(0)) != -1 {
		t.Errorf("Cmp(-1, 0) != -1")
	}
	if Cmp(Max, uint64(math.MaxUint64)) != -1 {
		t.Errorf("Cmp(Max, MaxUint64) != -1")
	}
	if Cmp(Offset(300), int16(-300)) != 1 {
		t.Errorf("Cmp(300, -300) != 1")
	}
}

func TestInterval(t *testing.T) {
	if _, err := NewInterval(5, 4); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("NewInterval(5, 4) error = %v", err)
	}
	a := Span(0, 10)
	b := Span(5, 15)
	if !a.Overlaps(b) || a.Overlaps(Span(10, 12)) {
		t.Errorf("Overlaps wrong")
	}
	if got := a.Intersect(b); got != Span(5, 10) {
		t.Errorf("Intersect = %v", got)
	}
	if !a.Contains(9) || a.Contains(10) {
		t.Errorf("Contains wrong")
	}
	cache := map[Interval]int{a: 1}
	if cache[Span(0, 10)] != 1 {
		t.Errorf("interval is not a stable map key")
	}
}

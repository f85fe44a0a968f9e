package offset

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

var (
	// ErrOverflow is returned when arithmetic would leave the int64 range.
	ErrOverflow = errors.New("offset overflow")
	// ErrOutOfRange is returned when a value does not fit the requested width.
	ErrOutOfRange = errors.New("offset out of range")
)

// Integer is the set of native integer widths an Offset converts from and to.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// Offset is a signed byte or line position, length, or shift.
type Offset int64

const (
	Zero Offset = 0
	Max  Offset = math.MaxInt64
	Min  Offset = math.MinInt64
)

func signed[T Integer]() bool {
	var zero T
	return ^zero < 0
}

// From converts any native integer losslessly.
func From[T Integer](v T) (Offset, error) {
	if signed[T]() {
		return Offset(int64(v)), nil
	}
	u := uint64(v)
	if u > math.MaxInt64 {
		return 0, fmt.Errorf("%w: %d exceeds %d", ErrOutOfRange, u, int64(math.MaxInt64))
	}
	return Offset(int64(u)), nil
}

// Of is From for values known to fit; it panics otherwise.
func Of[T Integer](v T) Offset {
	o, err := From(v)
	if err != nil {
		panic(err)
	}
	return o
}

// To converts o to T, failing when o is outside T's range.
func To[T Integer](o Offset) (T, error) {
	t := T(o)
	if signed[T]() {
		if int64(t) != int64(o) {
			return 0, fmt.Errorf("%w: %d does not fit %T", ErrOutOfRange, int64(o), t)
		}
		return t, nil
	}
	if o < 0 || uint64(t) != uint64(o) {
		return 0, fmt.Errorf("%w: %d does not fit %T", ErrOutOfRange, int64(o), t)
	}
	return t, nil
}

// Add returns o+d or ErrOverflow.
func (o Offset) Add(d Offset) (Offset, error) {
	s := o + d
	if (d > 0 && s < o) || (d < 0 && s > o) {
		return 0, fmt.Errorf("%w: %d + %d", ErrOverflow, int64(o), int64(d))
	}
	return s, nil
}

// Sub returns o-d or ErrOverflow.
func (o Offset) Sub(d Offset) (Offset, error) {
	s := o - d
	if (d > 0 && s > o) || (d < 0 && s < o) {
		return 0, fmt.Errorf("%w: %d - %d", ErrOverflow, int64(o), int64(d))
	}
	return s, nil
}

// Plus is Add for callers that have already bounded their operands. It panics
// on overflow.
func (o Offset) Plus(d Offset) Offset {
	s, err := o.Add(d)
	if err != nil {
		panic(err)
	}
	return s
}

// Minus is the panicking counterpart of Sub.
func (o Offset) Minus(d Offset) Offset {
	s, err := o.Sub(d)
	if err != nil {
		panic(err)
	}
	return s
}

// AddN adds a value of any width. The sum is computed as if in a wider signed
// type, so o + v succeeds whenever the true result fits an Offset.
func AddN[T Integer](o Offset, v T) (Offset, error) {
	if signed[T]() {
		return o.Add(Offset(int64(v)))
	}
	u := uint64(v)
	if u <= math.MaxInt64 {
		return o.Add(Offset(int64(u)))
	}
	// u >= 2^63, so only a negative o can bring the sum back into range; the
	// true result then lies in [0, 2^64) and equals the wrapped uint64 sum.
	if o >= 0 {
		return 0, fmt.Errorf("%w: %d + %d", ErrOverflow, int64(o), u)
	}
	r := uint64(o) + u
	if r > math.MaxInt64 {
		return 0, fmt.Errorf("%w: %d + %d", ErrOverflow, int64(o), u)
	}
	return Offset(int64(r)), nil
}

// SubN subtracts a value of any width with the same widening rule as AddN.
func SubN[T Integer](o Offset, v T) (Offset, error) {
	if signed[T]() {
		return o.Sub(Offset(int64(v)))
	}
	u := uint64(v)
	if u <= math.MaxInt64 {
		return o.Sub(Offset(int64(u)))
	}
	if o < 0 {
		return 0, fmt.Errorf("%w: %d - %d", ErrOverflow, int64(o), u)
	}
	d := u - uint64(o)
	if d > 1<<63 {
		return 0, fmt.Errorf("%w: %d - %d", ErrOverflow, int64(o), u)
	}
	return Offset(-int64(d)), nil
}

// Cmp compares o with a value of any width, returning -1, 0 or +1.
func Cmp[T Integer](o Offset, v T) int {
	w, err := From(v)
	if err != nil {
		// only unsigned values above MaxInt64 fail, and those exceed every Offset
		return -1
	}
	return o.Compare(w)
}

// Compare returns -1, 0 or +1.
func (o Offset) Compare(w Offset) int {
	switch {
	case o < w:
		return -1
	case o > w:
		return 1
	}
	return 0
}

// Neg returns -o, failing for Min.
func (o Offset) Neg() (Offset, error) {
	if o == Min {
		return 0, fmt.Errorf("%w: -(%d)", ErrOverflow, int64(o))
	}
	return -o, nil
}

// Abs returns |o|, failing for Min.
func (o Offset) Abs() (Offset, error) {
	if o < 0 {
		return o.Neg()
	}
	return o, nil
}

// Int64 returns the raw value.
func (o Offset) Int64() int64 {
	return int64(o)
}

func (o Offset) String() string {
	return strconv.FormatInt(int64(o), 10)
}

// Clamp bounds o to [lo, hi].
func (o Offset) Clamp(lo, hi Offset) Offset {
	if o < lo {
		return lo
	}
	if o > hi {
		return hi
	}
	return o
}

// MinOf returns the smaller offset.
func MinOf(a, b Offset) Offset {
	if a < b {
		return a
	}
	return b
}

// MaxOf returns the larger offset.
func MaxOf(a, b Offset) Offset {
	if a > b {
		return a
	}
	return b
}

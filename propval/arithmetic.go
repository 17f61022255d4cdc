package propval

import (
	"tcsicore/propid"
	"tcsicore/result"
)

// Numeric is the set of built-in types an Arithmetic property can hold.
type Numeric interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// Arithmetic is a property value additionally bounded to a closed
// [min, max] range, rejecting anything outside it before any
// caller-supplied validation runs.
type Arithmetic[T Numeric] struct {
	*Value[T]
	min T
	max T
}

// NewArithmetic builds an Arithmetic property accepting values in
// [minValue, maxValue]. extra, if non-nil, runs after the range check.
func NewArithmetic[T Numeric](id propid.ID, minValue, maxValue T, extra ValidationFunc[T]) *Arithmetic[T] {
	if minValue > maxValue {
		panic("propval: Arithmetic min must not exceed max")
	}

	a := &Arithmetic[T]{min: minValue, max: maxValue}
	a.Value = New[T](id, func(v T) result.Void {
		if v < a.min || v > a.max {
			return result.Errorf(result.InvalidData, "value out of range", "value: %v min: %v max: %v", v, a.min, a.max)
		}
		if extra != nil {
			return extra(v)
		}
		return result.Ok()
	})
	return a
}

// MinValidValue returns the lowest value this property accepts.
func (a *Arithmetic[T]) MinValidValue() T { return a.min }

// MaxValidValue returns the highest value this property accepts.
func (a *Arithmetic[T]) MaxValidValue() T { return a.max }

var _ Base = &Arithmetic[int]{Value: &Value[int]{}}

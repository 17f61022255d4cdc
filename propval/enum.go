package propval

import (
	"fmt"

	"tcsicore/propid"
	"tcsicore/result"
)

// Enum is a property value restricted to a fixed set of values, each with a
// human-readable display name, e.g. a device mode register where only a
// handful of raw values are meaningful.
type Enum[T comparable] struct {
	*Value[T]
	names map[T]string
}

// NewEnum builds an Enum property accepting only the values present in
// names. extra, if non-nil, runs after the membership check.
func NewEnum[T comparable](id propid.ID, names map[T]string, extra ValidationFunc[T]) *Enum[T] {
	e := &Enum[T]{names: names}
	e.Value = New[T](id, func(v T) result.Void {
		if _, ok := names[v]; !ok {
			return result.Errorf(result.InvalidData, "value out of range", "value: %v", v)
		}
		if extra != nil {
			return extra(v)
		}
		return result.Ok()
	})
	e.Value.SetStringer(func(v T) string {
		if name, ok := e.names[v]; ok {
			return name
		}
		return fmt.Sprint(v)
	})
	return e
}

// ValueToUserNameMap returns the value-to-display-name mapping this
// property was built with.
func (e *Enum[T]) ValueToUserNameMap() map[T]string { return e.names }

var _ Base = &Enum[int]{Value: &Value[int]{}}

// Package propval holds the typed property-value containers that sit above
// a raw memory-mapped register: a property tracks whether its value has
// ever been successfully read, the last read's outcome (including errors),
// and the caller-supplied validation that Validate applies to a candidate
// value, firing a single changed-callback when the value actually changes.
package propval

import (
	"fmt"
	"reflect"
	"sync"

	"tcsicore/propid"
	"tcsicore/result"
)

// Base is the type-erased surface every Value[T] implements, letting callers
// (adapters, a transaction's change summary, a UI property list) hold a
// heterogeneous collection of properties without knowing each one's T.
type Base interface {
	PropertyID() propid.ID
	Reset()
	HasResult() bool
	ValidationResult() result.Void
	ValueAsString() string
	OnChanged(func(propid.ID))
}

// ValidationFunc decides whether a candidate value is acceptable before it
// becomes a property's current value.
type ValidationFunc[T any] func(T) result.Void

// Value is a single typed property: its identity, its current value (or the
// fact that none has been read yet, or that the last read failed), and the
// validation that Validate applies to a candidate value. SetCurrent stores
// whatever it is given without running that validation.
type Value[T any] struct {
	mu sync.Mutex

	id       propid.ID
	current  result.Optional[T]
	validate ValidationFunc[T]
	toString func(T) string
	onChange func(propid.ID)
}

// New builds a Value with no current result. validate may be nil, in which
// case every value is accepted.
func New[T any](id propid.ID, validate ValidationFunc[T]) *Value[T] {
	return &Value[T]{id: id, validate: validate}
}

// PropertyID returns the identity of this property.
func (v *Value[T]) PropertyID() propid.ID { return v.id }

// Reset clears the current value back to absent.
func (v *Value[T]) Reset() {
	v.SetCurrent(result.Absent[T]())
}

// HasResult reports whether a read has ever been attempted (whether it
// succeeded or failed).
func (v *Value[T]) HasResult() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current.HasResult()
}

// ValidationResult reports the failure from the last read attempt, or Ok if
// the last attempt succeeded or none was made.
func (v *Value[T]) ValidationResult() result.Void {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.current.ContainsError() {
		return result.Err(v.current.Error())
	}
	return result.Ok()
}

// ValueAsString renders the current value for display, via the custom
// stringer set with SetStringer if any, falling back to fmt.Sprint. It
// returns "" if no value is currently held.
func (v *Value[T]) ValueAsString() string {
	v.mu.Lock()
	current := v.current
	stringer := v.toString
	v.mu.Unlock()

	if !current.ContainsValue() {
		return ""
	}
	if stringer != nil {
		return stringer(current.Value())
	}
	return fmt.Sprint(current.Value())
}

// StringFor renders an arbitrary candidate value the same way ValueAsString
// renders the current one, without touching the current value. Used by a
// transaction to preview how a not-yet-written value would display.
func (v *Value[T]) StringFor(value T) string {
	v.mu.Lock()
	stringer := v.toString
	v.mu.Unlock()

	if stringer != nil {
		return stringer(value)
	}
	return fmt.Sprint(value)
}

// SetStringer installs a custom renderer for ValueAsString, used by Enum to
// show the value's display name rather than its underlying representation.
func (v *Value[T]) SetStringer(toString func(T) string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.toString = toString
}

// OnChanged installs the callback fired whenever SetCurrent actually changes
// the held value. Only one subscriber is supported, matching every other
// callback hook in tcsicore: one owning adapter per property.
func (v *Value[T]) OnChanged(onChange func(propid.ID)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.onChange = onChange
}

// Validate runs value through the validation function installed at
// construction, without affecting the current value.
func (v *Value[T]) Validate(value T) result.Void {
	v.mu.Lock()
	validate := v.validate
	v.mu.Unlock()

	if validate != nil {
		return validate(value)
	}
	return result.Ok()
}

// Current returns the value's current result.
func (v *Value[T]) Current() result.Optional[T] {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

// SetCurrent replaces the current result. The changed callback, if any,
// fires only when the new result differs from the old one.
func (v *Value[T]) SetCurrent(newValue result.Optional[T]) {
	v.SetCurrentReportingChange(newValue)
}

// SetCurrentReportingChange behaves like SetCurrent but also reports whether
// the value actually changed, letting a transaction record which properties
// a write actually touched.
func (v *Value[T]) SetCurrentReportingChange(newValue result.Optional[T]) bool {
	v.mu.Lock()
	changed := !optionalEqual(v.current, newValue)
	if changed {
		v.current = newValue
	}
	onChange := v.onChange
	id := v.id
	v.mu.Unlock()

	if changed && onChange != nil {
		onChange(id)
	}
	return changed
}

func optionalEqual[T any](a, b result.Optional[T]) bool {
	if a.HasResult() != b.HasResult() {
		return false
	}
	if a.ContainsError() != b.ContainsError() {
		return false
	}
	if a.ContainsError() {
		return a.Error().Error() == b.Error().Error()
	}
	if a.ContainsValue() != b.ContainsValue() {
		return false
	}
	if !a.ContainsValue() {
		return true
	}
	return reflect.DeepEqual(a.Value(), b.Value())
}

var _ Base = &Value[int]{}

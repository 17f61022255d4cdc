package txn

import (
	"fmt"
	"sync"

	"tcsicore/propid"
	"tcsicore/propval"
	"tcsicore/result"
)

// Transaction is a single bounded access to a Store's properties, either
// shared or exclusive. Both kinds can read and write, and both record which
// properties they wrote so the caller can build a TransactionChanges summary.
type Transaction struct {
	store         *Store
	releaseWeight int64
	exclusive     bool

	mu                sync.Mutex
	closed            bool
	written           map[propid.ID]struct{}
	writeErrors       map[propid.ID]*result.Error
	connectionChanged bool
	overrides         map[propid.ID]any
}

func newTransaction(store *Store, releaseWeight int64, exclusive bool) *Transaction {
	t := &Transaction{
		store:         store,
		releaseWeight: releaseWeight,
		exclusive:     exclusive,
		written:       make(map[propid.ID]struct{}),
		writeErrors:   make(map[propid.ID]*result.Error),
	}
	if exclusive {
		store.mu.Lock()
		t.connectionChanged = store.connectionChanged
		store.connectionChanged = false
		store.mu.Unlock()
	}
	return t
}

// Close releases the transaction's hold on the store. Safe to call more
// than once; only the first call has effect.
func (t *Transaction) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.mu.Unlock()

	t.store.sem.Release(t.releaseWeight)
}

// IsExclusive reports whether this transaction holds the store's exclusive
// lock, as opposed to one of potentially several shared holders. Both kinds
// may write; exclusive is for multi-step coordinated sequences a caller
// needs atomic against every other transaction, not a write permission gate.
func (t *Transaction) IsExclusive() bool { return t.exclusive }

func (t *Transaction) property(id propid.ID) (propval.Base, bool) {
	return t.store.lookup(id)
}

// HasValueResult reports whether the property has ever had a read attempted.
func (t *Transaction) HasValueResult(id propid.ID) bool {
	p, ok := t.property(id)
	if !ok {
		return false
	}
	return p.HasResult()
}

// GetPropertyValidationResult reports the outcome of the property's last
// read attempt.
func (t *Transaction) GetPropertyValidationResult(id propid.ID) result.Void {
	p, ok := t.property(id)
	if !ok {
		return result.Errorf(result.AccessDenied, "unknown property", "id: %v", id)
	}
	return p.ValidationResult()
}

// GetValueAsString renders the property's current value for display.
func (t *Transaction) GetValueAsString(id propid.ID) string {
	p, ok := t.property(id)
	if !ok {
		return ""
	}
	return p.ValueAsString()
}

// ResetValue clears a property back to absent. Permitted from a shared
// transaction too, per the store's shared/exclusive write contention model.
func (t *Transaction) ResetValue(id propid.ID) {
	p, ok := t.property(id)
	if !ok {
		return
	}
	p.Reset()
	t.recordWritten(id, nil)
}

// Changes builds a TransactionChanges summarizing every write this
// transaction performed. Valid to call at any point, including before
// Close.
func (t *Transaction) Changes() TransactionChanges {
	t.mu.Lock()
	defer t.mu.Unlock()

	written := make(map[propid.ID]struct{}, len(t.written))
	for id := range t.written {
		written[id] = struct{}{}
	}
	writeErrors := make(map[propid.ID]*result.Error, len(t.writeErrors))
	for id, err := range t.writeErrors {
		writeErrors[id] = err
	}

	return TransactionChanges{
		valueWritten:      written,
		valueChanged:      written,
		writeErrors:       writeErrors,
		connectionChanged: t.connectionChanged,
	}
}

func (t *Transaction) recordWritten(id propid.ID, writeErr *result.Error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.written[id] = struct{}{}
	if writeErr != nil {
		t.writeErrors[id] = writeErr
	} else {
		delete(t.writeErrors, id)
	}
}

func concreteValue[T any](base propval.Base) (*propval.Value[T], bool) {
	switch v := base.(type) {
	case *propval.Value[T]:
		return v, true
	case *propval.Arithmetic[T]:
		return v.Value, true
	case *propval.Enum[T]:
		return v.Value, true
	}
	return nil, false
}

// GetValue reads a property's current typed value. Returns an absent
// result, rather than panicking, if id is unknown or holds a different
// type — callers are expected to only ask for types they themselves wired.
// Inside a WithValueOverride block for id, returns the overriding candidate
// instead of the property's real stored value.
func GetValue[T any](t *Transaction, id propid.ID) result.Optional[T] {
	t.mu.Lock()
	override, hasOverride := t.overrides[id]
	t.mu.Unlock()
	if hasOverride {
		if v, ok := override.(T); ok {
			return result.OkOptional(v)
		}
		return result.Absent[T]()
	}

	base, ok := t.property(id)
	if !ok {
		return result.Absent[T]()
	}
	v, ok := concreteValue[T](base)
	if !ok {
		return result.Absent[T]()
	}
	return v.Current()
}

// WithValueOverride runs fn with GetValue[T](t, id) substituted for
// candidate, leaving the property's real stored value untouched. Used by
// ValidateWhatIf to re-run a validator against a hypothetical value without
// performing a write. Not safe to nest on the same id.
func WithValueOverride[T any](t *Transaction, id propid.ID, candidate T, fn func()) {
	t.mu.Lock()
	if t.overrides == nil {
		t.overrides = make(map[propid.ID]any)
	}
	t.overrides[id] = candidate
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		delete(t.overrides, id)
		t.mu.Unlock()
	}()

	fn()
}

// SetValue writes a property's typed value. Permitted from a shared
// transaction too, per the store's shared/exclusive write contention model.
// Panics if id is unknown or holds a different type: unlike a read, a write
// with the wrong type is a caller wiring bug, not a runtime condition to
// degrade gracefully from.
func SetValue[T any](t *Transaction, id propid.ID, newValue result.Optional[T]) {
	base, ok := t.property(id)
	if !ok {
		panic(fmt.Sprintf("txn: SetValue for unknown property %v", id))
	}
	v, ok := concreteValue[T](base)
	if !ok {
		panic(fmt.Sprintf("txn: SetValue type mismatch for property %v", id))
	}

	if v.SetCurrentReportingChange(newValue) {
		var writeErr *result.Error
		if newValue.ContainsError() {
			writeErr = newValue.Error()
		}
		t.recordWritten(id, writeErr)
	}
}

// HasTypedProperty reports whether id names a known property whose value is
// stored as T, without reading or validating anything. Used by
// ValidateWhatIf to distinguish an unknown property from a type mismatch
// before installing a value override.
func HasTypedProperty[T any](t *Transaction, id propid.ID) bool {
	base, ok := t.property(id)
	if !ok {
		return false
	}
	_, ok = concreteValue[T](base)
	return ok
}

// ValidateValue runs a candidate value through a property's validator
// without changing its current value.
func ValidateValue[T any](t *Transaction, id propid.ID, value T) result.Void {
	base, ok := t.property(id)
	if !ok {
		return result.Errorf(result.AccessDenied, "unknown property", "id: %v", id)
	}
	v, ok := concreteValue[T](base)
	if !ok {
		return result.Errorf(result.InvalidData, "property type mismatch", "id: %v", id)
	}
	return v.Validate(value)
}

// ConvertToString renders a candidate value the way the property would
// display it, without changing its current value.
func ConvertToString[T any](t *Transaction, id propid.ID, value T) string {
	base, ok := t.property(id)
	if !ok {
		return ""
	}
	v, ok := concreteValue[T](base)
	if !ok {
		return ""
	}
	return v.StringFor(value)
}

// GetValueToUserNameMap returns an Enum property's value-to-display-name
// table.
func GetValueToUserNameMap[T comparable](t *Transaction, id propid.ID) map[T]string {
	base, ok := t.property(id)
	if !ok {
		return nil
	}
	e, ok := base.(*propval.Enum[T])
	if !ok {
		return nil
	}
	return e.ValueToUserNameMap()
}

// GetMinAndMaxValidValues returns an Arithmetic property's accepted range.
func GetMinAndMaxValidValues[T propval.Numeric](t *Transaction, id propid.ID) (min, max T, ok bool) {
	base, exists := t.property(id)
	if !exists {
		return min, max, false
	}
	a, ok := base.(*propval.Arithmetic[T])
	if !ok {
		return min, max, false
	}
	return a.MinValidValue(), a.MaxValidValue(), true
}

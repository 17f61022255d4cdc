package validator

import (
	"sync"

	"tcsicore/propid"
	"tcsicore/txn"
)

// ValidateFunc computes a dependency validator's current verdict from the
// properties it depends on.
type ValidateFunc func(t *txn.Transaction) RankedValidationResult

// DependencyValidator recomputes a RankedValidationResult whenever one of a
// fixed set of properties it depends on changes, e.g. "max temperature
// threshold must stay above min temperature threshold".
type DependencyValidator struct {
	mu                sync.Mutex
	propertyIDs       map[propid.ID]struct{}
	validate          ValidateFunc
	ignore            func() bool
	result            RankedValidationResult
	onValidityChanged func(propid.ID)
}

// New builds a DependencyValidator watching propertyIDs. ignore, if
// non-nil, is polled before every recompute; when it returns true the
// validator is skipped and keeps its previous verdict, which is Ok until a
// recompute has run (used to suspend validation while the device is
// disconnected or mid-reconfiguration).
func New(propertyIDs []propid.ID, validate ValidateFunc, ignore func() bool) *DependencyValidator {
	ids := make(map[propid.ID]struct{}, len(propertyIDs))
	for _, id := range propertyIDs {
		ids[id] = struct{}{}
	}
	return &DependencyValidator{propertyIDs: ids, validate: validate, ignore: ignore, result: Ok()}
}

// PropertyIDs returns the set of properties this validator depends on.
func (d *DependencyValidator) PropertyIDs() []propid.ID {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]propid.ID, 0, len(d.propertyIDs))
	for id := range d.propertyIDs {
		ids = append(ids, id)
	}
	return ids
}

// DependsOn reports whether id is one of this validator's watched
// properties.
func (d *DependencyValidator) DependsOn(id propid.ID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.propertyIDs[id]
	return ok
}

// ValidationResult returns the last computed verdict.
func (d *DependencyValidator) ValidationResult() RankedValidationResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.result
}

// OnValidityChanged installs the callback fired when Revalidate produces a
// different verdict than before, once for each watched property id.
func (d *DependencyValidator) OnValidityChanged(onChanged func(propid.ID)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onValidityChanged = onChanged
}

// Revalidate recomputes the verdict against t. Call this after a
// transaction changes any property this validator depends on (a device
// read cycle, a write transaction). No-op and leaves the previous verdict
// in place if ignore() returns true.
func (d *DependencyValidator) Revalidate(t *txn.Transaction) {
	d.mu.Lock()
	ignore := d.ignore
	d.mu.Unlock()
	if ignore != nil && ignore() {
		return
	}

	newResult := d.validate(t)

	d.mu.Lock()
	changed := !equivalent(d.result, newResult)
	if changed {
		d.result = newResult
	}
	onChanged := d.onValidityChanged
	ids := make([]propid.ID, 0, len(d.propertyIDs))
	for id := range d.propertyIDs {
		ids = append(ids, id)
	}
	d.mu.Unlock()

	if changed && onChanged != nil {
		for _, id := range ids {
			onChanged(id)
		}
	}
}

// ValidateWhatIf substitutes candidate for the property named by id within
// t's view, re-runs d's validate function against that hypothetical state,
// and returns the resulting verdict — without writing candidate or changing
// t's real state. Errors, rather than validating, if id is not one of d's
// watched properties, or if candidate's type does not match the property's
// actual stored type.
func ValidateWhatIf[T any](d *DependencyValidator, t *txn.Transaction, id propid.ID, candidate T) RankedValidationResult {
	if !d.DependsOn(id) {
		return Errorf("validate_what_if: property is not watched by this validator", "id: %v", id)
	}
	if !txn.HasTypedProperty[T](t, id) {
		return Errorf("validate_what_if: candidate type does not match property", "id: %v", id)
	}

	d.mu.Lock()
	ignore := d.ignore
	validate := d.validate
	d.mu.Unlock()
	if ignore != nil && ignore() {
		return Ok()
	}

	var verdict RankedValidationResult
	txn.WithValueOverride(t, id, candidate, func() {
		verdict = validate(t)
	})
	return verdict
}

func equivalent(a, b RankedValidationResult) bool {
	if a.res.IsOk() != b.res.IsOk() {
		return false
	}
	if a.res.IsOk() {
		return true
	}
	return a.rank == b.rank && a.res.Error().Error() == b.res.Error().Error()
}

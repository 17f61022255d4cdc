// Package adapter is the property-adapter layer: it sits between a raw
// propval.Value and the outside world, deciding whether a property is
// currently readable/writable for the connected device, and tracking
// validators that depend on other properties' values.
package adapter

import (
	"sync"

	"tcsicore/devicetype"
	"tcsicore/memspace"
	"tcsicore/propid"
	"tcsicore/txn"
	"tcsicore/validator"
)

// Status is where a property currently sits in the readable/writable
// lattice. It is the intersection of what the connected device type
// supports and any value-driven constraint layered on top.
type Status int

const (
	Disabled Status = iota
	ReadOnly
	WriteOnly
	ReadWrite
)

// IsReadable reports whether a property may be read in this status.
func (s Status) IsReadable() bool { return s == ReadOnly || s == ReadWrite }

// IsWritable reports whether a property may be written in this status.
func (s Status) IsWritable() bool { return s == WriteOnly || s == ReadWrite }

func (s Status) String() string {
	switch s {
	case Disabled:
		return "Disabled"
	case ReadOnly:
		return "ReadOnly"
	case WriteOnly:
		return "WriteOnly"
	case ReadWrite:
		return "ReadWrite"
	default:
		return "Unknown"
	}
}

// StatusForDeviceFunc decides a property's base status for a given
// (possibly unknown, hence pointer) connected device type.
type StatusForDeviceFunc func(deviceType *devicetype.DeviceType) Status

// StatusConstraintFunc derives a further status restriction from the
// current value of one or more other properties, e.g. "write access to the
// palette index is disabled while a firmware update is in progress".
type StatusConstraintFunc func(t *txn.Transaction) Status

// Base is the interface every concrete property adapter implements: the
// status/validation machinery here, plus the device-facing operations a
// concrete adapter binds to a real read/write path.
type Base interface {
	PropertyID() propid.ID
	Touch(t *txn.Transaction)
	RefreshValue(t *txn.Transaction)
	InvalidateValue(t *txn.Transaction)
	AddressRanges() []memspace.Range
}

// Adapter is the embeddable status/validation core every concrete adapter
// (a register-backed property, a derived/computed property, ...) builds
// on.
type Adapter struct {
	mu sync.Mutex

	id propid.ID

	statusForDevice        StatusForDeviceFunc
	statusForCurrentDevice Status
	statusConstraint       StatusConstraintFunc
	constraintAdapters     []Base
	status                 Status

	dependencyValidators    []*validator.DependencyValidator
	validationDependencyIDs map[propid.ID]struct{}
	subsidiaryIDs           map[propid.ID]struct{}
	onStatusChanged         func(propid.ID, Status)

	addressRanges []memspace.Range
}

// New builds an Adapter for id. statusForDevice may be nil, in which case
// the adapter starts and remains Disabled for every device type.
func New(id propid.ID, statusForDevice StatusForDeviceFunc) *Adapter {
	return &Adapter{
		id:                      id,
		statusForDevice:         statusForDevice,
		validationDependencyIDs: make(map[propid.ID]struct{}),
		subsidiaryIDs:           make(map[propid.ID]struct{}),
	}
}

// PropertyID returns the identity of the property this adapter fronts.
func (a *Adapter) PropertyID() propid.ID { return a.id }

// OnStatusChanged installs the callback fired when the adapter's effective
// status actually changes.
func (a *Adapter) OnStatusChanged(onChanged func(propid.ID, Status)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onStatusChanged = onChanged
}

// IsReadable reports whether the property can currently be read, touching
// every status-constraint adapter first so their status is up to date.
func (a *Adapter) IsReadable(t *txn.Transaction) bool {
	return a.GetStatus(t).IsReadable()
}

// IsWritable reports whether the property can currently be written.
func (a *Adapter) IsWritable(t *txn.Transaction) bool {
	return a.GetStatus(t).IsWritable()
}

// GetStatus returns the adapter's current effective status.
func (a *Adapter) GetStatus(t *txn.Transaction) Status {
	a.mu.Lock()
	constraintAdapters := append([]Base(nil), a.constraintAdapters...)
	a.mu.Unlock()

	for _, dep := range constraintAdapters {
		dep.Touch(t)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// IsActiveForDeviceType reports whether this property is exposed at all
// (in any status) for the given device type.
func (a *Adapter) IsActiveForDeviceType(deviceType *devicetype.DeviceType) bool {
	a.mu.Lock()
	statusForDevice := a.statusForDevice
	a.mu.Unlock()
	if statusForDevice == nil {
		return false
	}
	return statusForDevice(deviceType) != Disabled
}

// UpdateStatusDeviceChanged recomputes the device-driven base status (the
// connected device changed, or was first identified) and folds in any
// value-driven constraint.
func (a *Adapter) UpdateStatusDeviceChanged(deviceType *devicetype.DeviceType, t *txn.Transaction) {
	a.mu.Lock()
	statusForDevice := a.statusForDevice
	a.mu.Unlock()
	if statusForDevice == nil {
		return
	}

	a.mu.Lock()
	a.statusForCurrentDevice = statusForDevice(deviceType)
	a.mu.Unlock()

	a.Refresh(t)
}

// Refresh recomputes the effective status from the current device-driven
// base status and the value-driven constraint, if any. Call this after a
// transaction changes a property this adapter's constraint depends on.
func (a *Adapter) Refresh(t *txn.Transaction) {
	a.mu.Lock()
	newStatus := a.statusForCurrentDevice
	constraint := a.statusConstraint
	a.mu.Unlock()

	if constraint != nil {
		by := constraint(t)
		switch {
		case !by.IsReadable() && !by.IsWritable():
			newStatus = Disabled
		case newStatus == ReadOnly && !by.IsReadable():
			newStatus = Disabled
		case newStatus == WriteOnly && !by.IsWritable():
			newStatus = Disabled
		case newStatus == ReadWrite:
			if !by.IsReadable() {
				newStatus = WriteOnly
			} else if !by.IsWritable() {
				newStatus = ReadOnly
			}
		}
	}

	a.setStatus(newStatus, t)
}

func (a *Adapter) setStatus(status Status, t *txn.Transaction) {
	a.mu.Lock()
	changed := status != a.status
	if changed {
		a.status = status
	}
	onChanged := a.onStatusChanged
	id := a.id
	a.mu.Unlock()

	if !changed {
		return
	}
	if !status.IsReadable() {
		t.ResetValue(id)
	}
	if onChanged != nil {
		onChanged(id, status)
	}
}

// SetStatusConstraint installs a value-driven status constraint, along
// with the adapters whose values it depends on so GetStatus can keep them
// fresh before evaluating it. Must only be called once.
func (a *Adapter) SetStatusConstraint(constraint StatusConstraintFunc, constraintAdapters []Base) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.statusConstraint != nil {
		panic("adapter: SetStatusConstraint called twice")
	}
	a.statusConstraint = constraint
	a.constraintAdapters = constraintAdapters
}

// AddDependencyValidator registers a validator that must include this
// adapter's property id among the ones it watches.
func (a *Adapter) AddDependencyValidator(v *validator.DependencyValidator) {
	if !v.DependsOn(a.id) {
		panic("adapter: dependency validator does not depend on this property")
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.dependencyValidators = append(a.dependencyValidators, v)
	for _, id := range v.PropertyIDs() {
		if id != a.id {
			a.validationDependencyIDs[id] = struct{}{}
		}
	}
}

// DependencyValidationResults returns every currently-failing validation
// result from this adapter's dependency validators.
func (a *Adapter) DependencyValidationResults() []validator.RankedValidationResult {
	a.mu.Lock()
	validators := append([]*validator.DependencyValidator(nil), a.dependencyValidators...)
	a.mu.Unlock()

	var failing []validator.RankedValidationResult
	for _, v := range validators {
		res := v.ValidationResult()
		if !res.Result().IsOk() {
			failing = append(failing, res)
		}
	}
	return failing
}

// ValidationDependencyPropertyIDs returns every other property this
// adapter's dependency validators watch.
func (a *Adapter) ValidationDependencyPropertyIDs() []propid.ID {
	a.mu.Lock()
	defer a.mu.Unlock()
	ids := make([]propid.ID, 0, len(a.validationDependencyIDs))
	for id := range a.validationDependencyIDs {
		ids = append(ids, id)
	}
	return ids
}

// AddSubsidiaryAdapterPropertyID marks another property as subsidiary to
// this one, e.g. a palette-index property is subsidiary to the palette
// adapter that owns the memory range it lives in.
func (a *Adapter) AddSubsidiaryAdapterPropertyID(id propid.ID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.subsidiaryIDs[id] = struct{}{}
}

// RemoveSubsidiaryAdapterPropertyID undoes AddSubsidiaryAdapterPropertyID.
func (a *Adapter) RemoveSubsidiaryAdapterPropertyID(id propid.ID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.subsidiaryIDs, id)
}

// SubsidiaryAdapterPropertyIDs returns every property currently marked
// subsidiary to this one.
func (a *Adapter) SubsidiaryAdapterPropertyIDs() []propid.ID {
	a.mu.Lock()
	defer a.mu.Unlock()
	ids := make([]propid.ID, 0, len(a.subsidiaryIDs))
	for id := range a.subsidiaryIDs {
		ids = append(ids, id)
	}
	return ids
}

// SetAddressRanges records the memory-space ranges this property's value is
// backed by. A derived/computed property that isn't backed by any single
// memory range can leave this unset. Must only be called once.
func (a *Adapter) SetAddressRanges(ranges ...memspace.Range) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.addressRanges != nil {
		panic("adapter: SetAddressRanges called twice")
	}
	a.addressRanges = append([]memspace.Range(nil), ranges...)
}

// AddressRanges returns the memory-space ranges backing this property, for
// a caller (e.g. a prefetching poll loop) planning which regions to read
// ahead of time. Empty for a property with no fixed backing range.
func (a *Adapter) AddressRanges() []memspace.Range {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]memspace.Range(nil), a.addressRanges...)
}

// Package wtc640 is the reference device wiring: a concrete memory space, a
// small property-id set, and the adapters that connect them. It exists to
// show what a real device package built on tcsicore looks like end to end,
// not to reproduce the full WTC640 property table.
package wtc640

import (
	"context"

	"github.com/rs/zerolog"

	"tcsicore/adapter"
	"tcsicore/deviceiface"
	"tcsicore/devices"
	"tcsicore/devicetype"
	"tcsicore/memspace"
	"tcsicore/progress"
	"tcsicore/propid"
	"tcsicore/propval"
	"tcsicore/result"
	"tcsicore/txn"
	"tcsicore/validator"
)

// DeviceType identifies this reference camera model. A process exposing
// several camera models registers one of these per model and compares
// against it in each property's StatusForDeviceFunc.
var DeviceType = devicetype.Register()

// deadPixelTableCapacity is how many replacement entries fit in the flash
// region NewMemorySpace reserves for the dead-pixel table.
const deadPixelTableCapacity = 4096

// firmwareVersionRegister is the 4 byte on-wire layout of the firmware
// version register: major, minor, minor2, then one reserved byte.
type firmwareVersionRegister struct {
	Major, Minor, Minor2, _ uint8
}

// registerProperty is the adapter.Base implementation shared by every
// property in this package: it fronts a propval.Value backed by a fixed
// register address, reading and writing through a deviceiface.Interface.
type registerProperty[T any] struct {
	*adapter.Adapter
	iface   *deviceiface.Interface
	address uint32
	read    func(iface *deviceiface.Interface, address uint32, task progress.Task) result.Value[T]
	write   func(iface *deviceiface.Interface, address uint32, v T, task progress.Task) result.Void
}

func newRegisterProperty[T any](
	iface *deviceiface.Interface,
	value *propval.Value[T],
	address uint32,
	statusForDevice adapter.StatusForDeviceFunc,
	read func(iface *deviceiface.Interface, address uint32, task progress.Task) result.Value[T],
	write func(iface *deviceiface.Interface, address uint32, v T, task progress.Task) result.Void,
) *registerProperty[T] {
	a := adapter.New(value.PropertyID(), statusForDevice)
	a.SetAddressRanges(memspace.FirstAndSize(address, registerWidth))
	return &registerProperty[T]{
		Adapter: a,
		iface:   iface,
		address: address,
		read:    read,
		write:   write,
	}
}

// registerWidth is the width, in bytes, of every register this package
// wires a property to (see registersBase..registersLast in memoryspace.go).
const registerWidth = 4

// Touch refreshes the value before a status computation that depends on it
// consults it.
func (r *registerProperty[T]) Touch(t *txn.Transaction) { r.RefreshValue(t) }

// RefreshValue re-reads the register and stores the outcome, success or
// failure, as the property's current result.
func (r *registerProperty[T]) RefreshValue(t *txn.Transaction) {
	if !r.IsReadable(t) {
		return
	}
	res := r.read(r.iface, r.address, progress.Task{})
	if res.IsOk() {
		txn.SetValue[T](t, r.PropertyID(), result.OkOptional(res.Get()))
	} else {
		txn.SetValue[T](t, r.PropertyID(), result.ErrOptional[T](res.Error()))
	}
}

// InvalidateValue clears the property back to absent, e.g. when the device
// disconnects.
func (r *registerProperty[T]) InvalidateValue(t *txn.Transaction) {
	t.ResetValue(r.PropertyID())
}

// WriteValue validates and writes a new value, then refreshes the property
// from the device's own response rather than assuming the write landed
// exactly as sent.
func (r *registerProperty[T]) WriteValue(t *txn.Transaction, v T) result.Void {
	if !r.IsWritable(t) {
		return result.Errorf(result.AccessDenied, "write error", "property is not currently writable")
	}
	if res := txn.ValidateValue[T](t, r.PropertyID(), v); !res.IsOk() {
		return res
	}
	writeRes := r.write(r.iface, r.address, v, progress.Task{})
	r.RefreshValue(t)
	return writeRes
}

func alwaysActive(deviceType *devicetype.DeviceType) adapter.Status {
	if deviceType == nil || deviceType.InternalID() != DeviceType.InternalID() {
		return adapter.Disabled
	}
	return adapter.ReadWrite
}

func readOnly(deviceType *devicetype.DeviceType) adapter.Status {
	if deviceType == nil || deviceType.InternalID() != DeviceType.InternalID() {
		return adapter.Disabled
	}
	return adapter.ReadOnly
}

// Device wires a deviceiface.Interface, a memory space, and the reference
// property set together into one connectable unit.
type Device struct {
	iface *deviceiface.Interface
	store *txn.Store

	status         *registerProperty[uint32]
	firmwareVer    *registerProperty[devicetype.Version]
	serialNumber   *registerProperty[uint32]
	fpaTemperature *registerProperty[devices.Celsius]
	baudRate       *registerProperty[uint32]
	activePalette  *registerProperty[uint32]
	deadPixelCount *registerProperty[uint32]

	deadPixelCapacity *validator.DependencyValidator

	adapters []adapter.Base
}

// NewDevice builds a Device driving engine over the reference memory space.
func NewDevice(engine deviceiface.Engine, log zerolog.Logger) *Device {
	space := NewMemorySpace()
	iface := deviceiface.NewInterface(engine, space, nil, deviceiface.Little, log)
	store := txn.NewStore()

	d := &Device{iface: iface, store: store}

	statusValue := propval.New[uint32](PropertyStatus, nil)
	d.status = newRegisterProperty[uint32](iface, statusValue, StatusAddress, readOnly,
		func(i *deviceiface.Interface, addr uint32, task progress.Task) result.Value[uint32] {
			return i.ReadUint32(addr, task)
		}, nil)

	versionValue := propval.New[devicetype.Version](PropertyFirmwareVersion, nil)
	d.firmwareVer = newRegisterProperty[devicetype.Version](iface, versionValue, MainFirmwareVersionAddr, readOnly,
		func(i *deviceiface.Interface, addr uint32, task progress.Task) result.Value[devicetype.Version] {
			var reg firmwareVersionRegister
			if res := i.ReadStruct(addr, &reg, task); !res.IsOk() {
				return result.ErrValue[devicetype.Version](res.Error())
			}
			return result.OkValue(devicetype.Version{Major: uint(reg.Major), Minor: uint(reg.Minor), Minor2: uint(reg.Minor2)})
		}, nil)

	serialValue := propval.New[uint32](PropertySerialNumber, nil)
	d.serialNumber = newRegisterProperty[uint32](iface, serialValue, SerialNumberAddress, readOnly,
		func(i *deviceiface.Interface, addr uint32, task progress.Task) result.Value[uint32] {
			return i.ReadUint32(addr, task)
		}, nil)

	// FPA temperature is reported in milli-degrees Celsius, the same
	// fixed-point precision devices.Celsius already models; the accepted
	// range covers the core's rated -40°C to 200°C operating band.
	fpaArithmetic := propval.NewArithmetic[devices.Celsius](PropertyFPATemperature, -40000, 200000, nil)
	d.fpaTemperature = newRegisterProperty[devices.Celsius](iface, fpaArithmetic.Value, FPATemperatureAddress, readOnly,
		func(i *deviceiface.Interface, addr uint32, task progress.Task) result.Value[devices.Celsius] {
			var v devices.Celsius
			if res := i.ReadStruct(addr, &v, task); !res.IsOk() {
				return result.ErrValue[devices.Celsius](res.Error())
			}
			return result.OkValue(v)
		}, nil)

	baudNames := map[uint32]string{}
	for _, b := range []uint32{9600, 19200, 38400, 57600, 115200, 230400, 460800, 921600, 2000000, 3000000} {
		baudNames[b] = ""
	}
	baudEnum := propval.NewEnum[uint32](PropertyBaudRate, baudNames, nil)
	d.baudRate = newRegisterProperty[uint32](iface, baudEnum.Value, BaudRateAddress, alwaysActive,
		func(i *deviceiface.Interface, addr uint32, task progress.Task) result.Value[uint32] {
			return i.ReadUint32(addr, task)
		},
		func(i *deviceiface.Interface, addr uint32, v uint32, task progress.Task) result.Void {
			return i.WriteUint32(addr, v, task)
		})

	paletteArithmetic := propval.NewArithmetic[uint32](PropertyActivePalette, 0, paletteBankCount-1, nil)
	d.activePalette = newRegisterProperty[uint32](iface, paletteArithmetic.Value, PaletteIndexAddress, alwaysActive,
		func(i *deviceiface.Interface, addr uint32, task progress.Task) result.Value[uint32] {
			return i.ReadUint32(addr, task)
		},
		func(i *deviceiface.Interface, addr uint32, v uint32, task progress.Task) result.Void {
			return i.WriteUint32(addr, v, task)
		})

	deadPixelValue := propval.New[uint32](PropertyDeadPixelCount, nil)
	d.deadPixelCount = newRegisterProperty[uint32](iface, deadPixelValue, DeadPixelCountAddress, readOnly,
		func(i *deviceiface.Interface, addr uint32, task progress.Task) result.Value[uint32] {
			return i.ReadUint32(addr, task)
		}, nil)

	d.deadPixelCapacity = validator.New([]propid.ID{PropertyDeadPixelCount}, func(t *txn.Transaction) validator.RankedValidationResult {
		count := txn.GetValue[uint32](t, PropertyDeadPixelCount)
		if !count.ContainsValue() {
			return validator.DataNotReadyResult("dead pixel count not yet read")
		}
		if count.Value() > deadPixelTableCapacity {
			return validator.Errorf("dead pixel table overflow", "dead pixel count %d exceeds capacity %d", count.Value(), deadPixelTableCapacity)
		}
		return validator.Ok()
	}, nil)
	d.deadPixelCount.AddDependencyValidator(d.deadPixelCapacity)

	for _, p := range []propval.Base{
		statusValue, versionValue, serialValue, fpaArithmetic, baudEnum, paletteArithmetic, deadPixelValue,
	} {
		store.AddProperty(p)
	}

	d.adapters = []adapter.Base{
		d.status, d.firmwareVer, d.serialNumber, d.fpaTemperature, d.baudRate, d.activePalette, d.deadPixelCount,
	}

	return d
}

// Store returns the property store this device's properties live in.
func (d *Device) Store() *txn.Store { return d.store }

// Adapters returns every property adapter this device wires, so a caller
// can inspect each one's AddressRanges() to plan a prefetch/cache strategy
// before issuing reads.
func (d *Device) Adapters() []adapter.Base {
	return append([]adapter.Base(nil), d.adapters...)
}

// Connect marks the device as the reference WTC640 model for every adapter,
// deriving each property's base status, then performs one full read cycle.
func (d *Device) Connect(ctx context.Context) result.Void {
	d.store.NotifyConnectionChanged()

	t, err := d.store.BeginExclusive(ctx)
	if err != nil {
		return result.Errorf(result.NoConnection, "connect error", "%s", err)
	}
	defer t.Close()

	d.updateDeviceStatus(&DeviceType, t)
	return d.refreshAll(t)
}

// Disconnect marks every property Disabled and clears their values.
func (d *Device) Disconnect(ctx context.Context) result.Void {
	d.store.NotifyConnectionChanged()

	t, err := d.store.BeginExclusive(ctx)
	if err != nil {
		return result.Errorf(result.NoConnection, "disconnect error", "%s", err)
	}
	defer t.Close()

	d.updateDeviceStatus(nil, t)
	return result.Ok()
}

func (d *Device) updateDeviceStatus(deviceType *devicetype.DeviceType, t *txn.Transaction) {
	d.status.UpdateStatusDeviceChanged(deviceType, t)
	d.firmwareVer.UpdateStatusDeviceChanged(deviceType, t)
	d.serialNumber.UpdateStatusDeviceChanged(deviceType, t)
	d.fpaTemperature.UpdateStatusDeviceChanged(deviceType, t)
	d.baudRate.UpdateStatusDeviceChanged(deviceType, t)
	d.activePalette.UpdateStatusDeviceChanged(deviceType, t)
	d.deadPixelCount.UpdateStatusDeviceChanged(deviceType, t)
}

func (d *Device) refreshAll(t *txn.Transaction) result.Void {
	for _, a := range d.adapters {
		a.RefreshValue(t)
	}
	d.deadPixelCapacity.Revalidate(t)
	return result.Ok()
}

// Poll re-reads every property once, returning a summary of what changed.
// Call this periodically, or after a write, to keep the store current. It
// runs as a shared transaction: polling is the frequent, read-mostly case,
// while Connect/Disconnect/SetBaudRate/SetActivePalette hold the store's
// exclusive lock for their rarer, coordinated reconfiguration sequences.
func (d *Device) Poll(ctx context.Context) (txn.TransactionChanges, result.Void) {
	t, err := d.store.BeginShared(ctx)
	if err != nil {
		return txn.TransactionChanges{}, result.Errorf(result.NoConnection, "poll error", "%s", err)
	}
	defer t.Close()

	if res := d.refreshAll(t); !res.IsOk() {
		return t.Changes(), res
	}
	return t.Changes(), result.Ok()
}

// SetBaudRate writes a new serial link speed.
func (d *Device) SetBaudRate(ctx context.Context, speed uint32) result.Void {
	t, err := d.store.BeginExclusive(ctx)
	if err != nil {
		return result.Errorf(result.NoConnection, "write error", "%s", err)
	}
	defer t.Close()
	return d.baudRate.WriteValue(t, speed)
}

// SetActivePalette selects which of the flash palette banks is currently
// applied.
func (d *Device) SetActivePalette(ctx context.Context, index uint32) result.Void {
	t, err := d.store.BeginExclusive(ctx)
	if err != nil {
		return result.Errorf(result.NoConnection, "write error", "%s", err)
	}
	defer t.Close()
	return d.activePalette.WriteValue(t, index)
}

// StagePaletteBank writes a candidate palette bank into the SRAM staging
// region, ahead of a flash commit. Unlike flash, SRAM has no burst/sector
// sequence, so this is a plain bounded write.
func (d *Device) StagePaletteBank(data []byte) result.Void {
	return d.iface.WriteData(data, PaletteStagingAddress, progress.Task{})
}

// ReadPaletteStaging reads back len bytes from the SRAM staging region, to
// verify a staged bank before it is committed to a flash bank.
func (d *Device) ReadPaletteStaging(len int) result.Value[[]byte] {
	data := make([]byte, len)
	if res := d.iface.ReadData(data, PaletteStagingAddress, progress.Task{}); !res.IsOk() {
		return result.ErrValue[[]byte](res.Error())
	}
	return result.OkValue(data)
}

// PreviewDeadPixelCount reports whether candidate would pass the dead pixel
// table capacity validator, without writing it or disturbing the
// transaction's real dead-pixel-count value. Lets a caller warn before the
// device itself reports an overflowing count, e.g. while interpreting a
// firmware update's dead-pixel-map payload ahead of applying it.
func (d *Device) PreviewDeadPixelCount(t *txn.Transaction, candidate uint32) validator.RankedValidationResult {
	return validator.ValidateWhatIf(d.deadPixelCapacity, t, PropertyDeadPixelCount, candidate)
}

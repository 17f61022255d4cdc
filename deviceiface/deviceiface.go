// Package deviceiface turns a protocol engine's flat, single-packet
// read/write primitives into a segmented, aligned, self-retrying device
// memory interface: it splits transfers to whatever size limit the target
// memory region and the transport allow, retries recoverable transport
// errors up to a bounded window, backs off while the device reports itself
// busy, and drives flash writes through the sector-bracketed burst
// sequence the hardware requires.
package deviceiface

import (
	"bytes"
	"encoding/binary"
	"math"
	"math/bits"
	"reflect"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tcsicore/memspace"
	"tcsicore/progress"
	"tcsicore/result"
)

// Endianness is the byte order a device encodes its typed register values
// in. It is unrelated to a TCSI frame's own address field, which is always
// little-endian regardless of device endianness.
type Endianness int

// The two device endiannesses seen in the field; WTC640 is Little.
const (
	Little Endianness = iota
	Big
)

func (e Endianness) byteOrder() binary.ByteOrder {
	if e == Big {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// FlashBytesPerSector is the size of one flash erase/program unit. Flash
// writes are split on this boundary and each segment is bracketed by a
// burst-start/burst-end pair.
const FlashBytesPerSector = 65536

// maxErrorsInWindow caps both the 8-read error window (trips once more than
// this many of the last 8 attempts failed) and the number of times a whole
// flash sector write is retried before giving up.
const maxErrorsInWindow = 4

const (
	timeoutDefault      = 1 * time.Second
	timeoutWritingFlash = 5 * time.Second
	busyDeviceDelay     = 500 * time.Millisecond
	busyDeviceTimeout   = 10 * time.Second
)

// errorWindow is an 8-read shifting bitset: bit 0 is the most recent
// attempt. A set bit means that attempt returned a recoverable transport
// error (NoResponse/TransmissionFailed). count() is the number of failures
// remembered in the window.
type errorWindow uint8

func (w errorWindow) count() int { return bits.OnesCount8(uint8(w)) }

// Engine is the subset of the protocol engine a device interface drives.
type Engine interface {
	ReadData(data []byte, address uint32, timeout time.Duration) result.Void
	WriteData(data []byte, address uint32, timeout time.Duration) result.Void
	WriteFlashBurstStart(address uint32, dataSizeInWords uint32, timeout time.Duration) result.Void
	WriteFlashBurstEnd(address uint32, timeout time.Duration) result.Void
	MaxDataSize() int
}

// Interface is a segmented, retrying device memory interface built on top
// of an Engine and a memspace.Space describing the device's addressable
// regions.
type Interface struct {
	engine     Engine
	space      memspace.Space
	status     *result.Status
	endianness Endianness
	log        zerolog.Logger

	// flashMu lets register/SRAM reads and writes run concurrently with each
	// other (shared hold) while a flash burst write has the device to itself
	// (exclusive hold), mirroring the hardware's own restriction that a flash
	// sector in progress cannot interleave with other traffic.
	flashMu sync.RWMutex

	changesMu  sync.Mutex
	changes    uint32
	hasChanges bool
}

// NewInterface builds a device interface driving engine over the memory
// regions described by space. status may be nil, in which case operation
// counters are not recorded.
func NewInterface(engine Engine, space memspace.Space, status *result.Status, endianness Endianness, log zerolog.Logger) *Interface {
	return &Interface{engine: engine, space: space, status: status, endianness: endianness, log: log}
}

// Engine returns the protocol engine this interface drives.
func (d *Interface) Engine() Engine { return d.engine }

// MemorySpace returns the memory region table this interface validates
// accesses against.
func (d *Interface) MemorySpace() memspace.Space { return d.space }

// AccumulatedRegisterChangesAndReset drains and resets the OR-accumulated
// value observed across reads of any region marked AccumulateChanges, or
// reports absent if no such read has happened since the last drain.
func (d *Interface) AccumulatedRegisterChangesAndReset() result.Optional[uint32] {
	d.changesMu.Lock()
	defer d.changesMu.Unlock()

	if !d.hasChanges {
		return result.Absent[uint32]()
	}
	v := d.changes
	d.changes = 0
	d.hasChanges = false
	return result.OkOptional(v)
}

func (d *Interface) accumulateChanges(chunk []byte) {
	value := d.endianness.byteOrder().Uint32(chunk)

	d.changesMu.Lock()
	d.changes |= value
	d.hasChanges = true
	d.changesMu.Unlock()
}

func (d *Interface) incrementFlashBurstWritesCount() {
	if d.status != nil {
		d.status.IncrementFlashBurstWritesCount()
	}
}

// ReadData reads len(data) bytes starting at address, splitting the
// transfer across as many packets as the region and transport allow and
// retrying recoverable errors.
func (d *Interface) ReadData(data []byte, address uint32, task progress.Task) result.Void {
	desc, err := d.descriptorForAccess(address, uint32(len(data)), "read error")
	if err != nil {
		return result.Err(err)
	}

	d.flashMu.RLock()
	defer d.flashMu.RUnlock()

	return d.readDataImpl(data, address, d.maxDataSize(desc), task, desc.AccumulateChanges)
}

// WriteData writes data starting at address. Writes into a flash region are
// routed through the sector-bracketed burst sequence; everything else is
// written directly, split to the region's and transport's size limits.
func (d *Interface) WriteData(data []byte, address uint32, task progress.Task) result.Void {
	desc, err := d.descriptorForAccess(address, uint32(len(data)), "write error")
	if err != nil {
		return result.Err(err)
	}
	maxSize := d.maxDataSize(desc)

	if desc.Kind != memspace.KindFlash {
		d.flashMu.RLock()
		defer d.flashMu.RUnlock()

		var busyDelayTotal time.Duration
		var errWin errorWindow
		return d.writeDataImpl(data, address, timeoutDefault, maxSize, &busyDelayTotal, &errWin, task)
	}

	d.flashMu.Lock()
	defer d.flashMu.Unlock()

	return d.writeFlashBurst(data, address, desc, maxSize, task)
}

// ReadSomeData reads as much data as fits in a single packet starting at
// address, up to the end of the containing memory region.
func (d *Interface) ReadSomeData(address uint32, task progress.Task) result.Value[[]byte] {
	desc, err := d.descriptorForAccess(address, 1, "read error")
	if err != nil {
		return result.ErrValue[[]byte](err)
	}

	available := desc.Range.Last - address + 1
	dataSize := d.maxDataSize(desc)
	if available < dataSize {
		dataSize = available
	}
	if dataSize == 0 {
		return result.ErrValuef[[]byte](result.InvalidData, "read error", "unexpected end of memory")
	}

	data := make([]byte, dataSize)

	d.flashMu.RLock()
	defer d.flashMu.RUnlock()

	if res := d.readDataImpl(data, address, dataSize, task, desc.AccumulateChanges); !res.IsOk() {
		return result.ErrValue[[]byte](res.Error())
	}
	return result.OkValue(data)
}

func (d *Interface) readDataImpl(data []byte, address uint32, maxDataSize uint32, task progress.Task, accumulate bool) result.Void {
	var busyDelayTotal time.Duration
	var errWin errorWindow

	rest := data
	currentAddress := address
	for len(rest) > 0 {
		chunkSize := uint32(len(rest))
		if chunkSize > maxDataSize {
			chunkSize = maxDataSize
		}
		chunk := rest[:chunkSize]

		readResult := d.engine.ReadData(chunk, currentAddress, timeoutDefault)
		errWin <<= 1
		if readResult.IsOk() {
			if accumulate {
				d.accumulateChanges(chunk)
			}

			currentAddress += chunkSize
			rest = rest[chunkSize:]

			if task.AdvanceByIsCancelled(int(chunkSize)) {
				return result.Errorf(result.InvalidData, "read error", "cancelled by caller")
			}
			continue
		}

		if res := d.handleErrorResponse(readResult, &errWin, &busyDelayTotal, "read error"); !res.IsOk() {
			return res
		}
	}
	return result.Ok()
}

func (d *Interface) writeDataImpl(data []byte, address uint32, timeout time.Duration, maxDataSize uint32, busyDelayTotal *time.Duration, errWin *errorWindow, task progress.Task) result.Void {
	rest := data
	currentAddress := address
	for len(rest) > 0 {
		chunkSize := uint32(len(rest))
		if chunkSize > maxDataSize {
			chunkSize = maxDataSize
		}
		chunk := rest[:chunkSize]

		writeResult := d.engine.WriteData(chunk, currentAddress, timeout)
		*errWin <<= 1
		if writeResult.IsOk() {
			currentAddress += chunkSize
			rest = rest[chunkSize:]
			task.AdvanceByIgnoreCancel(int(chunkSize))
			continue
		}

		if res := d.handleErrorResponse(writeResult, errWin, busyDelayTotal, "write error"); !res.IsOk() {
			return res
		}
	}
	return result.Ok()
}

// writeFlashBurst splits data on FlashBytesPerSector boundaries and writes
// each sector as a whole, bracketed by WriteFlashBurstStart/End, retrying a
// failed sector up to maxErrorsInWindow times. busyDelayTotal and the error
// window are shared across the whole call, not reset per sector: a device
// that is dribbling errors across sector boundaries should still trip the
// same safety limits as one failing within a single sector.
func (d *Interface) writeFlashBurst(data []byte, address uint32, desc memspace.Descriptor, maxDataSize uint32, task progress.Task) result.Void {
	var busyDelayTotal time.Duration
	var errWin errorWindow

	rest := data
	currentAddress := address
	for len(rest) > 0 {
		nextSectorStart := (sectorIndex(currentAddress) + 1) * FlashBytesPerSector
		chunkSize := nextSectorStart - currentAddress
		if uint32(len(rest)) < chunkSize {
			chunkSize = uint32(len(rest))
		}

		d.incrementFlashBurstWritesCount()
		burstCount := chunkSize / desc.MinimumSize

		writeResult := result.Errorf(result.TransmissionFailed, "write error", "initial send")
		attempts := 0
		for !writeResult.IsOk() && attempts < maxErrorsInWindow {
			attempts++

			for {
				startResult := d.engine.WriteFlashBurstStart(currentAddress, burstCount, timeoutWritingFlash)
				if startResult.IsOk() {
					break
				}
				if res := d.handleErrorResponse(startResult, &errWin, &busyDelayTotal, "write error"); !res.IsOk() {
					return res
				}
			}

			writeResult = d.writeDataImpl(rest[:chunkSize], currentAddress, timeoutWritingFlash, maxDataSize, &busyDelayTotal, &errWin, task)
		}
		if !writeResult.IsOk() {
			return writeResult
		}

		for {
			endResult := d.engine.WriteFlashBurstEnd(currentAddress, timeoutWritingFlash)
			if endResult.IsOk() {
				break
			}
			if res := d.handleErrorResponse(endResult, &errWin, &busyDelayTotal, "write error"); !res.IsOk() {
				return res
			}
		}

		rest = rest[chunkSize:]
		currentAddress += chunkSize
	}
	return result.Ok()
}

// handleErrorResponse classifies a failed operation result and decides
// whether the caller should treat it as absorbed (retry the loop it came
// from) or fatal. Recoverable transport errors are absorbed until the error
// window trips; a busy device is absorbed behind a sleep until the
// accumulated backoff reaches busyDeviceTimeout; anything else is fatal
// immediately.
func (d *Interface) handleErrorResponse(opResult result.Void, errWin *errorWindow, busyDelayTotal *time.Duration, operationName string) result.Void {
	d.log.Warn().Err(opResult.Error()).Str("op", operationName).Msg("device operation failed")

	switch opResult.Info() {
	case result.TransmissionFailed, result.NoResponse:
		*errWin |= 1
		if errWin.count() <= maxErrorsInWindow {
			return result.Ok()
		}
		return result.Errorf(opResult.Info(), "too many errors", "%d errors in last 8 packets", errWin.count())

	case result.DeviceBusy:
		*busyDelayTotal += busyDeviceDelay
		if *busyDelayTotal < busyDeviceTimeout {
			time.Sleep(busyDeviceDelay)
			return result.Ok()
		}
		return result.Errorf(result.DeviceBusy, "device busy", "busy delay total: %s", *busyDelayTotal)

	default:
		return result.Errorf(opResult.Info(), operationName, "%s", opResult.Error().Error())
	}
}

func (d *Interface) descriptorForAccess(address uint32, dataSize uint32, operationName string) (memspace.Descriptor, *result.Error) {
	if d.engine == nil || d.engine.MaxDataSize() == 0 {
		return memspace.Descriptor{}, result.NewError(result.NoConnection, operationName, "no protocol engine set or max packet size 0")
	}
	if dataSize == 0 {
		return memspace.Descriptor{}, result.NewError(result.InvalidData, operationName, "data size = 0")
	}
	if uint64(address)+uint64(dataSize)-1 > math.MaxUint32 {
		return memspace.Descriptor{}, result.NewError(result.InvalidData, operationName, "memory overflow")
	}

	descResult := d.space.Descriptor(memspace.FirstAndSize(address, dataSize))
	if !descResult.IsOk() {
		return memspace.Descriptor{}, result.NewError(descResult.Info(), operationName, descResult.Error().Error())
	}
	desc := descResult.Get()

	if address%desc.MinimumSize != 0 {
		return memspace.Descriptor{}, result.NewError(result.AccessDenied, operationName,
			"invalid alignment - address: "+memspace.AddressToHex(address))
	}
	if dataSize%desc.MinimumSize != 0 {
		return memspace.Descriptor{}, result.NewError(result.AccessDenied, operationName,
			"invalid alignment - size must be a multiple of the region's minimum size")
	}

	return desc, nil
}

func (d *Interface) maxDataSize(desc memspace.Descriptor) uint32 {
	protocolMax := uint32(d.engine.MaxDataSize())
	aligned := (protocolMax / desc.MinimumSize) * desc.MinimumSize
	if aligned > desc.MaximumSize {
		return desc.MaximumSize
	}
	return aligned
}

func sectorIndex(address uint32) uint32 { return address / FlashBytesPerSector }

// ReadUint8 reads a single byte register.
func (d *Interface) ReadUint8(address uint32, task progress.Task) result.Value[uint8] {
	var buf [1]byte
	if res := d.ReadData(buf[:], address, task); !res.IsOk() {
		return result.ErrValue[uint8](res.Error())
	}
	return result.OkValue(buf[0])
}

// ReadUint16 reads a 16 bit register, decoded in the device's endianness.
func (d *Interface) ReadUint16(address uint32, task progress.Task) result.Value[uint16] {
	var buf [2]byte
	if res := d.ReadData(buf[:], address, task); !res.IsOk() {
		return result.ErrValue[uint16](res.Error())
	}
	return result.OkValue(d.endianness.byteOrder().Uint16(buf[:]))
}

// ReadUint32 reads a 32 bit register, decoded in the device's endianness.
func (d *Interface) ReadUint32(address uint32, task progress.Task) result.Value[uint32] {
	var buf [4]byte
	if res := d.ReadData(buf[:], address, task); !res.IsOk() {
		return result.ErrValue[uint32](res.Error())
	}
	return result.OkValue(d.endianness.byteOrder().Uint32(buf[:]))
}

// ReadUint64 reads a 64 bit register, decoded in the device's endianness.
func (d *Interface) ReadUint64(address uint32, task progress.Task) result.Value[uint64] {
	var buf [8]byte
	if res := d.ReadData(buf[:], address, task); !res.IsOk() {
		return result.ErrValue[uint64](res.Error())
	}
	return result.OkValue(d.endianness.byteOrder().Uint64(buf[:]))
}

// WriteUint8 writes a single byte register.
func (d *Interface) WriteUint8(address uint32, v uint8, task progress.Task) result.Void {
	return d.WriteData([]byte{v}, address, task)
}

// WriteUint16 writes a 16 bit register, encoded in the device's endianness.
func (d *Interface) WriteUint16(address uint32, v uint16, task progress.Task) result.Void {
	var buf [2]byte
	d.endianness.byteOrder().PutUint16(buf[:], v)
	return d.WriteData(buf[:], address, task)
}

// WriteUint32 writes a 32 bit register, encoded in the device's endianness.
func (d *Interface) WriteUint32(address uint32, v uint32, task progress.Task) result.Void {
	var buf [4]byte
	d.endianness.byteOrder().PutUint32(buf[:], v)
	return d.WriteData(buf[:], address, task)
}

// WriteUint64 writes a 64 bit register, encoded in the device's endianness.
func (d *Interface) WriteUint64(address uint32, v uint64, task progress.Task) result.Void {
	var buf [8]byte
	d.endianness.byteOrder().PutUint64(buf[:], v)
	return d.WriteData(buf[:], address, task)
}

// ReadStruct reads sizeof(*v) bytes starting at address and decodes them
// into v, which must be a non-nil pointer to a fixed-size value, using the
// device's endianness.
func (d *Interface) ReadStruct(address uint32, v interface{}, task progress.Task) result.Void {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return result.Errorf(result.InvalidData, "read error", "ReadStruct requires a non-nil pointer, got %T", v)
	}

	buf := make([]byte, rv.Elem().Type().Size())
	if res := d.ReadData(buf, address, task); !res.IsOk() {
		return res
	}
	if err := binary.Read(bytes.NewReader(buf), d.endianness.byteOrder(), v); err != nil {
		return result.Errorf(result.InvalidData, "read error", "decoding failed: %s", err)
	}
	return result.Ok()
}

// WriteStruct encodes v, using the device's endianness, and writes it
// starting at address. v must be a fixed-size value or pointer to one.
func (d *Interface) WriteStruct(address uint32, v interface{}, task progress.Task) result.Void {
	var buf bytes.Buffer
	if err := binary.Write(&buf, d.endianness.byteOrder(), v); err != nil {
		return result.Errorf(result.InvalidData, "write error", "encoding failed: %s", err)
	}
	return d.WriteData(buf.Bytes(), address, task)
}

// Package tcsi implements the TCSI wire packet codec and the protocol
// engine that drives a link.Channel with it: one in-flight request at a
// time, packet-id based response matching, and the retry/connection-lost
// bookkeeping a thermal-imaging core's command channel needs.
package tcsi

import (
	"encoding/binary"
	"fmt"

	"tcsicore/result"
)

// Command is a request's statusOrCommand byte.
type Command uint8

// The four requests a host can send.
const (
	CmdRead            Command = 0x80
	CmdWrite           Command = 0x81
	CmdFlashBurstStart Command = 0x82
	CmdFlashBurstEnd   Command = 0x83
)

// Status is a response's statusOrCommand byte.
type Status uint8

// The full set of status codes a device can answer with.
const (
	StatusOK                 Status = 0x00
	StatusCameraNotReady     Status = 0x01
	StatusUnknownCommand     Status = 0x02
	StatusWrongChecksum      Status = 0x03
	StatusWrongAddress       Status = 0x04
	StatusWrongArgumentCount Status = 0x05
	StatusFlashBurstError    Status = 0x06
	StatusInvalidSettings    Status = 0x07
	StatusIncorrectValue     Status = 0x08
)

var statusNames = map[Status]string{
	StatusOK:                 "OK",
	StatusCameraNotReady:     "CAMERA NOT READY",
	StatusUnknownCommand:     "UNKNOWN COMMAND",
	StatusWrongChecksum:      "WRONG CHECKSUM",
	StatusWrongAddress:       "WRONG ADDRESS",
	StatusWrongArgumentCount: "WRONG ARGUMENT COUNT",
	StatusFlashBurstError:    "FLASH BURST ERROR",
	StatusInvalidSettings:    "INVALID SETTINGS",
	StatusIncorrectValue:     "INCORRECT VALUE",
}

// info maps a response status to the result.Info classification a caller
// should see.
func (s Status) info() result.Info {
	switch s {
	case StatusCameraNotReady:
		return result.DeviceBusy
	case StatusWrongAddress:
		return result.AccessDenied
	case StatusUnknownCommand, StatusWrongChecksum, StatusWrongArgumentCount, StatusFlashBurstError:
		return result.TransmissionFailed
	case StatusInvalidSettings:
		return result.InvalidSettings
	case StatusIncorrectValue:
		return result.InvalidData
	default:
		return result.TransmissionFailed
	}
}

const (
	syncAndIDPos      = 0
	statusOrCmdPos    = 1
	addressPos        = 2
	countPos          = 6
	dataPos           = 7
	syncValue         = 0xA0
	syncMask          = 0xF0
	packetIDMask      = 0x0F
	headerSize        = dataPos
	minimumPacketSize = headerSize + 1 // header + 1B checksum
)

// HeaderSize is the number of bytes preceding the payload.
const HeaderSize = headerSize

// MinimumPacketSize is the smallest a well-formed frame can be: header plus
// checksum byte, no payload.
const MinimumPacketSize = minimumPacketSize

// Packet is a single TCSI frame, request or response, kept as its raw wire
// bytes so validation and re-transmission never need to re-encode it.
type Packet struct {
	data []byte
}

// FromBytes wraps a raw byte slice as a Packet without validating it; call
// Validate (or one of the ValidateAs* methods) before trusting its contents.
func FromBytes(data []byte) Packet {
	return Packet{data: data}
}

func createPacket(statusOrCommand uint8, packetID uint8, address uint32, payload []byte) Packet {
	data := make([]byte, minimumPacketSize+len(payload))
	data[syncAndIDPos] = (syncValue & syncMask) | (packetID & packetIDMask)
	data[statusOrCmdPos] = statusOrCommand
	binary.LittleEndian.PutUint32(data[addressPos:], address)
	data[countPos] = byte(len(payload))
	copy(data[dataPos:], payload)
	data[len(data)-1] = checksum(data)
	return Packet{data: data}
}

// CreateReadRequest builds a READ request asking for payloadSize bytes at
// address.
func CreateReadRequest(packetID uint8, address uint32, payloadSize uint8) Packet {
	return createPacket(uint8(CmdRead), packetID, address, []byte{payloadSize})
}

// CreateWriteRequest builds a WRITE request carrying payload at address.
func CreateWriteRequest(packetID uint8, address uint32, payload []byte) Packet {
	return createPacket(uint8(CmdWrite), packetID, address, payload)
}

// CreateFlashBurstStartRequest builds a FLASH_BURST_START request. The word
// count is always encoded big-endian, independent of device endianness.
func CreateFlashBurstStartRequest(packetID uint8, address uint32, dataSizeInWords uint32) Packet {
	count := make([]byte, 4)
	binary.BigEndian.PutUint32(count, dataSizeInWords)
	return createPacket(uint8(CmdFlashBurstStart), packetID, address, count)
}

// CreateFlashBurstEndRequest builds a FLASH_BURST_END request.
func CreateFlashBurstEndRequest(packetID uint8, address uint32) Packet {
	return createPacket(uint8(CmdFlashBurstEnd), packetID, address, nil)
}

// CreateOkResponse builds an OK response carrying payload.
func CreateOkResponse(packetID uint8, address uint32, payload []byte) Packet {
	return createPacket(uint8(StatusOK), packetID, address, payload)
}

// CreateErrorResponse builds a response reporting the given status, with no
// payload.
func CreateErrorResponse(packetID uint8, address uint32, status Status) Packet {
	return createPacket(uint8(status), packetID, address, nil)
}

func checksum(data []byte) byte {
	var sum byte
	for _, b := range data[:len(data)-1] {
		sum += b
	}
	return sum
}

// Data returns the raw wire bytes of the packet.
func (p Packet) Data() []byte { return p.data }

func (p Packet) statusOrCommand() uint8 { return p.data[statusOrCmdPos] }

func (p Packet) address() uint32 { return binary.LittleEndian.Uint32(p.data[addressPos:]) }

func (p Packet) payloadImpl() []byte {
	return p.data[headerSize : len(p.data)-1]
}

// PacketID returns the 4-bit packet id. The caller must have validated the
// packet first.
func (p Packet) PacketID() uint8 { return p.data[syncAndIDPos] & packetIDMask }

// PayloadData returns the packet's payload. The caller must have validated
// the packet first.
func (p Packet) PayloadData() []byte { return p.payloadImpl() }

func isKnownCommand(b uint8) bool {
	switch Command(b) {
	case CmdRead, CmdWrite, CmdFlashBurstStart, CmdFlashBurstEnd:
		return true
	default:
		return false
	}
}

func isKnownStatus(b uint8) bool {
	_, ok := statusNames[Status(b)]
	return ok
}

func hex(b uint8) string { return fmt.Sprintf("0x%02X", b) }

// Validate checks the packet's structural well-formedness: minimum size,
// synchronization nibble, a recognized command/status byte, a count field
// matching the actual payload length, and a matching checksum.
func (p Packet) Validate() result.Void {
	invalid := func(detail string) result.Void {
		return result.Errorf(result.TransmissionFailed, "invalid packet", "%s", detail)
	}

	if len(p.data) < minimumPacketSize {
		return invalid(fmt.Sprintf("invalid size: %d", len(p.data)))
	}

	if p.data[syncAndIDPos]&syncMask != syncValue&syncMask {
		return invalid(fmt.Sprintf("invalid synchronization value: %s expected: %s",
			hex(p.data[syncAndIDPos]&syncMask), hex(syncValue&syncMask)))
	}

	sc := p.statusOrCommand()
	if !isKnownCommand(sc) && !isKnownStatus(sc) {
		return invalid(fmt.Sprintf("invalid command/status: %s", hex(sc)))
	}

	if int(p.data[countPos]) != len(p.payloadImpl()) {
		return invalid(fmt.Sprintf("invalid count value: %d current data size: %d", p.data[countPos], len(p.payloadImpl())))
	}

	if want := checksum(p.data); p.data[len(p.data)-1] != want {
		return invalid(fmt.Sprintf("invalid checksum: %d calculated: %d", p.data[len(p.data)-1], want))
	}

	return result.Ok()
}

func responseError(detail string, info result.Info) result.Void {
	return result.Errorf(info, "response error", "%s", detail)
}

// ValidateAsResponse checks structural validity plus that the statusOrCommand
// byte is a recognized response Status and the address matches what was
// requested.
func (p Packet) ValidateAsResponse(address uint32) result.Void {
	if v := p.Validate(); !v.IsOk() {
		return responseError(v.Error().Detail, v.Error().Info)
	}

	sc := p.statusOrCommand()
	if !isKnownStatus(sc) {
		return responseError(fmt.Sprintf("invalid TCSI - invalid response status: %s address: 0x%08X", hex(sc), p.address()), result.TransmissionFailed)
	}

	if p.address() != address {
		return responseError(fmt.Sprintf("invalid TCSI - response address: 0x%08X expected: 0x%08X", p.address(), address), result.TransmissionFailed)
	}

	return result.Ok()
}

// ValidateAsOkResponse additionally requires the status to be OK and the
// payload to be exactly payloadDataSize bytes.
func (p Packet) ValidateAsOkResponse(address uint32, payloadDataSize uint8) result.Void {
	if v := p.ValidateAsResponse(address); !v.IsOk() {
		return responseError(v.Error().Detail, v.Error().Info)
	}

	status := Status(p.statusOrCommand())
	if status != StatusOK {
		return responseError(fmt.Sprintf("TCSI response error code: %s - %s address: 0x%08X", hex(uint8(status)), statusNames[status], p.address()), status.info())
	}

	if len(p.payloadImpl()) != int(payloadDataSize) {
		return responseError(fmt.Sprintf("TCSI response data size: %d expected: %d address: 0x%08X", len(p.payloadImpl()), payloadDataSize, p.address()), result.TransmissionFailed)
	}

	return result.Ok()
}

// ValidateAsRequest checks structural validity plus that the payload size
// matches what the given command requires.
func (p Packet) ValidateAsRequest() result.Void {
	invalid := func(detail string) result.Void {
		return result.Errorf(result.TransmissionFailed, "request error", "%s", detail)
	}

	if v := p.Validate(); !v.IsOk() {
		return invalid(v.Error().Detail)
	}

	sc := p.statusOrCommand()
	n := len(p.payloadImpl())
	switch Command(sc) {
	case CmdRead:
		if n != 1 {
			return invalid(fmt.Sprintf("invalid TCSI - invalid read request data size: %d address: 0x%08X", n, p.address()))
		}
	case CmdWrite:
		if n == 0 {
			return invalid(fmt.Sprintf("invalid TCSI - invalid write request data size: %d address: 0x%08X", n, p.address()))
		}
	case CmdFlashBurstStart:
		if n != 4 {
			return invalid(fmt.Sprintf("invalid TCSI - invalid flash burst start request data size: %d address: 0x%08X", n, p.address()))
		}
	case CmdFlashBurstEnd:
		if n != 0 {
			return invalid(fmt.Sprintf("invalid TCSI - invalid flash burst end request data size: %d address: 0x%08X", n, p.address()))
		}
	default:
		return invalid(fmt.Sprintf("invalid TCSI - invalid request command: %s address: 0x%08X", hex(sc), p.address()))
	}

	return result.Ok()
}

// ExpectedDataSize reads the count byte out of a packet whose header has
// been received but whose payload may not have arrived yet, so the caller
// knows how many more bytes to read.
func (p Packet) ExpectedDataSize() result.Value[uint8] {
	invalid := func(detail string) result.Value[uint8] {
		return result.ErrValuef[uint8](result.TransmissionFailed, "invalid packet data", "%s", detail)
	}

	if len(p.data) < headerSize {
		return invalid(fmt.Sprintf("not enough data - size: %d", len(p.data)))
	}

	if p.data[syncAndIDPos]&syncMask != syncValue&syncMask {
		return invalid(fmt.Sprintf("invalid synchronization value: %s expected: %s",
			hex(p.data[syncAndIDPos]&syncMask), hex(syncValue&syncMask)))
	}

	sc := p.statusOrCommand()
	if !isKnownCommand(sc) && !isKnownStatus(sc) {
		return invalid(fmt.Sprintf("invalid command/status: %s", hex(sc)))
	}

	return result.OkValue(p.data[countPos])
}

// String renders the packet as a space separated hex dump, for logging.
func (p Packet) String() string {
	s := ""
	for _, b := range p.data {
		s += hex(b) + " "
	}
	return s
}

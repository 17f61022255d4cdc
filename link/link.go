// Package link defines the lowest communication layer a TCSI protocol engine
// runs over: a point-to-point byte channel with deadline-bound read and
// write, independent of what physical transport backs it (UART, USB-serial,
// eBUS, or a test fake).
package link

import (
	"strconv"
	"time"

	"tcsicore/result"
)

// Channel is the abstract byte-oriented transport the TCSI protocol engine
// is built on. Concrete transports (serial ports, USB bridges) are external
// collaborators that implement this interface; this package names the
// contract only.
//
// Implementations are expected to also implement fmt.Stringer, returning
// something meaningful like "COM6" or "/dev/ttyUSB0".
type Channel interface {
	// IsOpen reports whether the channel currently has an open connection.
	IsOpen() bool

	// Close releases the connection. It does not report errors; a channel
	// that fails to close cleanly is still considered closed.
	Close()

	// MaxPayloadSize is the largest single write this channel can carry in
	// one call without being truncated or split by the transport.
	MaxPayloadSize() int

	// Read blocks until len(buf) bytes have been read, the deadline elapses,
	// or the channel is closed.
	Read(buf []byte, deadline time.Duration) result.Void

	// Write blocks until len(buf) bytes have been written, the deadline
	// elapses, or the channel is closed.
	Write(buf []byte, deadline time.Duration) result.Void

	// DropPending discards any bytes the transport has buffered but that
	// have not yet been delivered to Read, so the next Read starts from a
	// clean frame boundary.
	DropPending()

	// IsConnectionLost reports whether the channel itself has flagged the
	// connection as unusable (distinct from a transient timeout).
	IsConnectionLost() bool
}

// Baudrate is one of the serial speeds a TCSI-capable device negotiates.
type Baudrate int

// The full set of baud rates a device may be configured for.
const (
	Baud9600 Baudrate = iota
	Baud19200
	Baud38400
	Baud57600
	Baud115200
	Baud230400
	Baud460800
	Baud921600
	Baud2000000
	Baud3000000
)

// AllBaudrates lists every supported baud rate, lowest first.
var AllBaudrates = []Baudrate{
	Baud9600, Baud19200, Baud38400, Baud57600, Baud115200,
	Baud230400, Baud460800, Baud921600, Baud2000000, Baud3000000,
}

// Speed returns the numeric bits-per-second value of the baud rate.
func (b Baudrate) Speed() int {
	switch b {
	case Baud9600:
		return 9600
	case Baud19200:
		return 19200
	case Baud38400:
		return 38400
	case Baud57600:
		return 57600
	case Baud115200:
		return 115200
	case Baud230400:
		return 230400
	case Baud460800:
		return 460800
	case Baud921600:
		return 921600
	case Baud2000000:
		return 2000000
	case Baud3000000:
		return 3000000
	default:
		return 0
	}
}

func (b Baudrate) String() string {
	if s := b.Speed(); s != 0 {
		return strconv.Itoa(s)
	}
	return "unknown baudrate"
}

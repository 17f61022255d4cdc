package tcsi

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tcsicore/link"
	"tcsicore/result"
)

// maxStraightNoResponses is how many consecutive NoResponse timeouts the
// engine tolerates before declaring the connection lost.
const maxStraightNoResponses = 2

// Engine drives a link.Channel with the TCSI wire protocol: one in-flight
// request at a time, a cyclic 4-bit packet id, and a retry loop that
// discards stale responses instead of failing the whole exchange.
//
// Engine is safe for concurrent use; concurrent callers simply serialize on
// the single in-flight request.
type Engine struct {
	mu      sync.Mutex
	channel link.Channel
	status  *result.Status
	log     zerolog.Logger

	lastPacketID            uint8
	straightNoResponseCount int
	connectionLost          bool
}

// NewEngine builds an Engine reporting into status and logging through log.
// status may be nil, in which case stats are not accumulated.
func NewEngine(status *result.Status, log zerolog.Logger) *Engine {
	return &Engine{status: status, log: log}
}

// SetChannel installs the channel the engine drives, clearing the
// connection-lost state accumulated against any previous channel.
func (e *Engine) SetChannel(ch link.Channel) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.channel = ch
	e.straightNoResponseCount = 0
	e.connectionLost = false
}

// Channel returns the currently installed channel, or nil.
func (e *Engine) Channel() link.Channel {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.channel
}

// MaxDataSize is the largest payload a single read or write can carry,
// derived from the channel's MaxPayloadSize minus the TCSI frame overhead,
// capped at what the 1-byte count field can express.
func (e *Engine) MaxDataSize() int {
	e.mu.Lock()
	ch := e.channel
	e.mu.Unlock()

	if ch == nil || ch.MaxPayloadSize() < MinimumPacketSize {
		return 0
	}
	maxLink := ch.MaxPayloadSize() - MinimumPacketSize
	if maxLink > 255 {
		return 255
	}
	return maxLink
}

// IsConnectionLost reports whether too many consecutive requests went
// unanswered.
func (e *Engine) IsConnectionLost() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.connectionLost
}

func (e *Engine) incrementOperationsCount() {
	if e.status != nil {
		e.status.IncrementOperationsCount()
	}
}

func (e *Engine) addReadError(v result.Void) {
	if e.status != nil {
		e.status.AddReadError(v)
	}
}

func (e *Engine) addWriteError(v result.Void) {
	if e.status != nil {
		e.status.AddWriteError(v)
	}
}

func (e *Engine) addResponseError(v result.Void) {
	if e.status != nil {
		e.status.AddResponseError(v)
	}
}

// ReadData reads len(data) bytes from address, blocking up to timeout.
func (e *Engine) ReadData(data []byte, address uint32, timeout time.Duration) result.Void {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.channel == nil {
		return result.Errorf(result.NoConnection, "unable to read - no connection", "no channel installed")
	}
	if len(data) == 0 {
		return result.Ok()
	}

	response := e.readDataImpl(len(data), address, timeout)
	if !response.IsOk() {
		return response.Void()
	}

	copy(data, response.Get().PayloadData())
	return result.Ok()
}

// WriteData writes data to address, blocking up to timeout.
func (e *Engine) WriteData(data []byte, address uint32, timeout time.Duration) result.Void {
	if len(data) == 0 {
		return result.Ok()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.channel == nil {
		return result.Errorf(result.NoConnection, "unable to write - no connection", "no channel installed")
	}

	e.lastPacketID++
	request := CreateWriteRequest(e.lastPacketID, address, data)
	return e.writeDataImpl(request, address, timeout)
}

// WriteFlashBurstStart opens a flash burst write of dataSizeInWords words at
// address; a word is the target region's minimum access size.
func (e *Engine) WriteFlashBurstStart(address uint32, dataSizeInWords uint32, timeout time.Duration) result.Void {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.channel == nil {
		return result.Errorf(result.NoConnection, "unable to write - no connection", "no channel installed")
	}

	e.lastPacketID++
	request := CreateFlashBurstStartRequest(e.lastPacketID, address, dataSizeInWords)
	return e.writeDataImpl(request, address, timeout)
}

// WriteFlashBurstEnd closes a flash burst write at address.
func (e *Engine) WriteFlashBurstEnd(address uint32, timeout time.Duration) result.Void {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.channel == nil {
		return result.Errorf(result.NoConnection, "unable to write - no connection", "no channel installed")
	}

	e.lastPacketID++
	request := CreateFlashBurstEndRequest(e.lastPacketID, address)
	return e.writeDataImpl(request, address, timeout)
}

// deadline tracks the remaining portion of a caller-supplied timeout across
// several blocking calls, mirroring the source's ElapsedTimer.
type deadline struct {
	at time.Time
}

func newDeadline(timeout time.Duration) deadline {
	return deadline{at: time.Now().Add(timeout)}
}

func (d deadline) remaining() time.Duration {
	if r := time.Until(d.at); r > 0 {
		return r
	}
	return 0
}

func (e *Engine) readDataImpl(dataSize int, address uint32, timeout time.Duration) result.Value[Packet] {
	e.incrementOperationsCount()

	e.lastPacketID++
	request := CreateReadRequest(e.lastPacketID, address, uint8(dataSize))
	e.lastPacketID = request.PacketID()
	e.log.Info().Str("packet", request.String()).Msg("read sending")

	dl := newDeadline(timeout)
	writeResult := e.channel.Write(request.Data(), timeout)
	if !writeResult.IsOk() {
		e.addWriteError(writeResult)
		return result.FromVoid[Packet](writeResult)
	}

	return e.receiveResponse(e.lastPacketID, address, dataSize, dl.remaining(), "read")
}

func (e *Engine) writeDataImpl(request Packet, address uint32, timeout time.Duration) result.Void {
	e.incrementOperationsCount()

	e.lastPacketID = request.PacketID()
	e.log.Info().Str("packet", request.String()).Msg("write sending")

	dl := newDeadline(timeout)
	writeResult := e.channel.Write(request.Data(), timeout)
	if !writeResult.IsOk() {
		e.addWriteError(writeResult)
		return writeResult
	}

	return e.receiveResponse(e.lastPacketID, address, 0, dl.remaining(), "write").Void()
}

func (e *Engine) createResponseError(action, detail string, info result.Info) result.Value[Packet] {
	return result.ErrValuef[Packet](info, action+" error", "%s", detail)
}

func (e *Engine) receiveResponse(packetID uint8, address uint32, dataSize int, timeout time.Duration, action string) result.Value[Packet] {
	dl := newDeadline(timeout)
	for {
		response := e.receiveResponsePacket(dl, action)
		if !response.IsOk() {
			return response
		}
		packet := response.Get()

		if v := packet.ValidateAsResponse(address); !v.IsOk() {
			e.log.Warn().Str("packet", packet.String()).Uint8("expectedPacketId", packetID).Msg("invalid response")

			err := e.createResponseError(action, v.Error().Detail, v.Error().Info)
			e.addResponseError(err.Void())
			e.dropPendingData(dl.remaining())
			return err
		}

		if packet.PacketID() == packetID {
			if v := packet.ValidateAsOkResponse(address, uint8(dataSize)); v.IsOk() {
				return response
			} else {
				err := e.createResponseError(action, v.Error().Detail, v.Error().Info)
				e.addResponseError(err.Void())
				return err
			}
		}

		e.log.Warn().Str("packet", packet.String()).Uint8("expectedPacketId", packetID).Msg("response dropped")
	}
}

func (e *Engine) receiveResponsePacket(dl deadline, action string) result.Value[Packet] {
	received := make([]byte, MinimumPacketSize)
	readResult := e.channel.Read(received, dl.remaining())
	if !readResult.IsOk() {
		e.addReadError(readResult)

		if readResult.Error().Info == result.NoResponse {
			e.straightNoResponseCount++
			if e.straightNoResponseCount > maxStraightNoResponses {
				e.log.Warn().Int("count", e.straightNoResponseCount).Msg("straight no responses - connection lost")
				e.connectionLost = true
			} else {
				e.log.Warn().Int("count", e.straightNoResponseCount).Msg("straight no responses")
			}
		}

		e.dropPendingData(dl.remaining())
		return e.createResponseError(action, readResult.Error().Detail, readResult.Error().Info)
	}
	e.straightNoResponseCount = 0

	packet := FromBytes(received)
	expected := packet.ExpectedDataSize()
	if !expected.IsOk() {
		e.log.Warn().Str("packet", packet.String()).Str("action", action).Msg("expected data size invalid")

		err := e.createResponseError(action, expected.Error().Detail, expected.Error().Info)
		e.addResponseError(err.Void())
		e.dropPendingData(dl.remaining())
		return err
	}

	if n := expected.Get(); n > 0 {
		rest := make([]byte, int(n))
		if readRest := e.channel.Read(rest, dl.remaining()); !readRest.IsOk() {
			e.log.Info().Str("packet", packet.String()).Str("action", action).Msg("received (partial)")

			err := e.createResponseError(action, readRest.Error().Detail, result.TransmissionFailed)
			e.addReadError(err.Void())
			e.dropPendingData(dl.remaining())
			return err
		}
		received = append(received, rest...)
		packet = FromBytes(received)
	}
	e.log.Info().Str("packet", packet.String()).Str("action", action).Msg("received")

	return result.OkValue(packet)
}

func (e *Engine) dropPendingData(restOfTimeout time.Duration) {
	if restOfTimeout > 0 {
		time.Sleep(restOfTimeout)
	}
	e.channel.DropPending()
}

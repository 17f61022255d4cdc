// Package linktest implements fakes for package link, in the spirit of
// periph's conntest: a Loopback that echoes writes back as reads for codec
// tests, and a Playback that replays a fixed request/response script for
// protocol-engine tests.
package linktest

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"tcsicore/result"
)

// Loopback is a link.Channel that appends every Write to an internal buffer
// and serves Read from the front of it, useful for codec round-trip tests
// that don't care about request/response framing.
type Loopback struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool
	lost   bool
}

func (l *Loopback) String() string { return "loopback" }

// IsOpen implements link.Channel.
func (l *Loopback) IsOpen() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.closed
}

// Close implements link.Channel.
func (l *Loopback) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
}

// MaxPayloadSize implements link.Channel.
func (l *Loopback) MaxPayloadSize() int { return 4096 }

// Write implements link.Channel.
func (l *Loopback) Write(buf []byte, _ time.Duration) result.Void {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return result.Errorf(result.NoConnection, "channel closed", "")
	}
	l.buf.Write(buf)
	return result.Ok()
}

// Read implements link.Channel.
func (l *Loopback) Read(buf []byte, _ time.Duration) result.Void {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return result.Errorf(result.NoConnection, "channel closed", "")
	}
	if l.buf.Len() < len(buf) {
		return result.Errorf(result.NoResponse, "no response", "only %d of %d bytes available", l.buf.Len(), len(buf))
	}
	_, _ = l.buf.Read(buf)
	return result.Ok()
}

// DropPending implements link.Channel.
func (l *Loopback) DropPending() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf.Reset()
}

// IsConnectionLost implements link.Channel.
func (l *Loopback) IsConnectionLost() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lost
}

// SetConnectionLost forces IsConnectionLost to report true, simulating a
// transport-level failure detected out of band.
func (l *Loopback) SetConnectionLost(lost bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lost = lost
}

// Exchange is one request/response step of a Playback script: Write must
// see exactly Request, and then Response is handed back byte-for-byte to the
// matching Read calls (split across calls exactly as recorded).
type Exchange struct {
	Request  []byte
	Response []byte

	// NoResponse, when set, makes the matching reads fail with
	// result.NoResponse instead of returning Response.
	NoResponse bool
}

// Playback is a link.Channel that replays a fixed script of request/response
// exchanges, failing the test-owning goroutine's expectations loudly via the
// returned result.Void rather than panicking, mirroring conntest.Playback's
// "unexpected Tx" errors.
type Playback struct {
	mu      sync.Mutex
	script  []Exchange
	step    int
	pending bytes.Buffer
	closed  bool
}

// NewPlayback builds a Playback over the given script.
func NewPlayback(script []Exchange) *Playback {
	return &Playback{script: script}
}

func (p *Playback) String() string { return "playback" }

// IsOpen implements link.Channel.
func (p *Playback) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.closed
}

// Close implements link.Channel.
func (p *Playback) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
}

// MaxPayloadSize implements link.Channel.
func (p *Playback) MaxPayloadSize() int { return 4096 }

// Write implements link.Channel. It must match the next script step's
// Request exactly.
func (p *Playback) Write(buf []byte, _ time.Duration) result.Void {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.step >= len(p.script) {
		return result.Errorf(result.TransmissionFailed, "playback exhausted", "unexpected write of %d bytes", len(buf))
	}
	want := p.script[p.step].Request
	if !bytes.Equal(want, buf) {
		return result.Errorf(result.TransmissionFailed, "unexpected write", "step %d: got % x want % x", p.step, buf, want)
	}
	if !p.script[p.step].NoResponse {
		p.pending.Write(p.script[p.step].Response)
	}
	return result.Ok()
}

// Read implements link.Channel, serving bytes queued by the matching Write.
func (p *Playback) Read(buf []byte, _ time.Duration) result.Void {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.step < len(p.script) && p.script[p.step].NoResponse {
		p.step++
		return result.Errorf(result.NoResponse, "no response", "")
	}
	if p.pending.Len() < len(buf) {
		return result.Errorf(result.NoResponse, "no response", "only %d of %d bytes available", p.pending.Len(), len(buf))
	}
	_, _ = p.pending.Read(buf)
	if p.pending.Len() == 0 {
		p.step++
	}
	return result.Ok()
}

// DropPending implements link.Channel.
func (p *Playback) DropPending() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending.Reset()
}

// IsConnectionLost implements link.Channel.
func (p *Playback) IsConnectionLost() bool { return false }

// Verify checks that every script step was consumed, mirroring
// conntest.Playback.Close's completeness check.
func (p *Playback) Verify() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.step != len(p.script) {
		return fmt.Errorf("linktest: %d of %d script steps consumed", p.step, len(p.script))
	}
	return nil
}

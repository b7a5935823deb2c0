package link

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// DefaultBaudrate is the module's boot baudrate before any negotiation.
const DefaultBaudrate = 115200

const (
	serialChunkSize = 65536

	// serialPacketTimeout is the per-read timeout. Reads loop under an
	// outer deadline, so this only bounds how often the loop polls.
	serialPacketTimeout = 10 * time.Millisecond
)

// SerialLink is a Link over a local serial port.
type SerialLink struct {
	portName    string
	baudrate    int
	flowControl bool
	timeout     time.Duration

	port serial.Port
	rb   recvBuffer
}

// NewSerialLink creates a link to the serial port at portName. A zero
// baudrate uses DefaultBaudrate.
func NewSerialLink(portName string, baudrate int) *SerialLink {
	if baudrate == 0 {
		baudrate = DefaultBaudrate
	}
	return &SerialLink{
		portName:    portName,
		baudrate:    baudrate,
		flowControl: true,
		timeout:     DefaultTimeout,
	}
}

func (l *SerialLink) Timeout() time.Duration     { return l.timeout }
func (l *SerialLink) SetTimeout(d time.Duration) { l.timeout = d }

// Baudrate returns the currently configured baudrate.
func (l *SerialLink) Baudrate() int { return l.baudrate }

// Connect opens the port exclusively and clears any stale device state
// with a break.
func (l *SerialLink) Connect() error {
	mode := &serial.Mode{
		BaudRate: l.baudrate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(l.portName, mode)
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", l.portName, err)
	}
	if err := port.SetReadTimeout(serialPacketTimeout); err != nil {
		port.Close()
		return fmt.Errorf("failed to set read timeout: %w", err)
	}
	l.port = port
	l.rb.reset()
	return l.sendBreak()
}

// sendBreak interrupts any in-flight streaming on the device and drops
// whatever it sent since.
func (l *SerialLink) sendBreak() error {
	if err := l.port.Break(100 * time.Millisecond); err != nil {
		return fmt.Errorf("failed to send break: %w", err)
	}
	time.Sleep(1 * time.Second)
	if err := l.port.ResetInputBuffer(); err != nil {
		return fmt.Errorf("failed to flush input: %w", err)
	}
	l.rb.reset()
	return nil
}

// SetBaudrate reconfigures the open port. Used after the set-baudrate
// command has been acknowledged at the old rate.
func (l *SerialLink) SetBaudrate(baudrate int) error {
	l.baudrate = baudrate
	if l.port == nil {
		return nil
	}
	mode := &serial.Mode{
		BaudRate: baudrate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	if err := l.port.SetMode(mode); err != nil {
		return fmt.Errorf("failed to change baudrate to %d: %w", baudrate, err)
	}
	return nil
}

// Disconnect closes the port. Safe to call when not connected.
func (l *SerialLink) Disconnect() error {
	if l.port == nil {
		return nil
	}
	err := l.port.Close()
	l.port = nil
	l.rb.reset()
	return err
}

// Send writes all bytes to the port.
func (l *SerialLink) Send(data []byte) error {
	if l.port == nil {
		return ErrDisconnected
	}
	n, err := l.port.Write(data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDisconnected, err)
	}
	if n != len(data) {
		return fmt.Errorf("%w: short write (%d of %d bytes)", ErrDisconnected, n, len(data))
	}
	return nil
}

// Recv returns exactly n bytes.
func (l *SerialLink) Recv(n int) ([]byte, error) {
	if l.port == nil {
		return nil, ErrDisconnected
	}
	deadline := time.Now().Add(l.timeout)
	for l.rb.len() < n {
		if err := l.fill(deadline); err != nil {
			return nil, err
		}
	}
	return l.rb.take(n), nil
}

// RecvUntil returns all bytes up to and including delim.
func (l *SerialLink) RecvUntil(delim byte) ([]byte, error) {
	if l.port == nil {
		return nil, ErrDisconnected
	}
	deadline := time.Now().Add(l.timeout)
	for {
		if i := l.rb.indexDelim(delim); i >= 0 {
			return l.rb.take(i + 1), nil
		}
		if err := l.fill(deadline); err != nil {
			return nil, err
		}
	}
}

// fill reads one chunk into the buffer. The port read returns quickly
// (serialPacketTimeout) so the outer deadline stays responsive.
func (l *SerialLink) fill(deadline time.Time) error {
	if !time.Now().Before(deadline) {
		return ErrTimeout
	}
	chunk := make([]byte, serialChunkSize)
	n, err := l.port.Read(chunk)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDisconnected, err)
	}
	if n > 0 {
		l.rb.extend(chunk[:n])
	}
	return nil
}

package link

import (
	"fmt"
	"strings"
	"time"

	"go.bug.st/serial/enumerator"
)

// USBLink reaches a USB CDC device by VID:PID (and optionally its
// serial number), resolving it to the serial port the OS exposes and
// then behaving exactly like a SerialLink.
type USBLink struct {
	vid          string
	pid          string
	serialNumber string

	serial *SerialLink
}

// NewUSBLink creates a link to the USB device vid:pid (hex strings, e.g.
// "0483", "a41d"). serialNumber narrows the match when several identical
// devices are attached; empty matches the first.
func NewUSBLink(vid, pid, serialNumber string) *USBLink {
	return &USBLink{
		vid:          strings.ToLower(vid),
		pid:          strings.ToLower(pid),
		serialNumber: serialNumber,
	}
}

func (l *USBLink) Timeout() time.Duration {
	if l.serial != nil {
		return l.serial.Timeout()
	}
	return DefaultTimeout
}

func (l *USBLink) SetTimeout(d time.Duration) {
	if l.serial != nil {
		l.serial.SetTimeout(d)
	}
}

// Connect enumerates USB serial ports, matches the device and opens it.
func (l *USBLink) Connect() error {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return fmt.Errorf("failed to enumerate serial ports: %w", err)
	}
	for _, port := range ports {
		if !port.IsUSB {
			continue
		}
		if strings.ToLower(port.VID) != l.vid || strings.ToLower(port.PID) != l.pid {
			continue
		}
		if l.serialNumber != "" && port.SerialNumber != l.serialNumber {
			continue
		}
		l.serial = NewSerialLink(port.Name, 0)
		return l.serial.Connect()
	}
	return fmt.Errorf("no USB device %s:%s found", l.vid, l.pid)
}

func (l *USBLink) Disconnect() error {
	if l.serial == nil {
		return nil
	}
	err := l.serial.Disconnect()
	l.serial = nil
	return err
}

func (l *USBLink) Send(data []byte) error {
	if l.serial == nil {
		return ErrDisconnected
	}
	return l.serial.Send(data)
}

func (l *USBLink) Recv(n int) ([]byte, error) {
	if l.serial == nil {
		return nil, ErrDisconnected
	}
	return l.serial.Recv(n)
}

func (l *USBLink) RecvUntil(delim byte) ([]byte, error) {
	if l.serial == nil {
		return nil, ErrDisconnected
	}
	return l.serial.RecvUntil(delim)
}

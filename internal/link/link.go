// Package link provides the byte transports the client runs over: TCP
// socket, serial port, USB CDC and an in-process pipe used by the mock
// transport and tests. All variants implement the same Link contract so
// the client stays transport-agnostic.
package link

import (
	"errors"
	"time"
)

// DefaultTimeout is the initial recv/send timeout for every link.
const DefaultTimeout = 2 * time.Second

var (
	// ErrTimeout is returned when a recv or send does not complete
	// within the link timeout. Retryable: the link stays connected.
	ErrTimeout = errors.New("link: timeout")

	// ErrDisconnected is returned when the underlying channel is gone.
	// Fatal to the session: the caller must reconnect.
	ErrDisconnected = errors.New("link: disconnected")

	// ErrNullLink is returned by NullLink before a transport is chosen.
	ErrNullLink = errors.New("link: no transport selected")
)

// Link is a connected byte channel with buffered exact-length reads.
// Recv returns exactly n bytes or an error, never a short read.
// RecvUntil returns everything up to and including the delimiter.
type Link interface {
	Connect() error
	Disconnect() error
	Send(data []byte) error
	Recv(n int) ([]byte, error)
	RecvUntil(delim byte) ([]byte, error)
	Timeout() time.Duration
	SetTimeout(d time.Duration)
}

// recvBuffer accumulates raw reads so Recv can hand out exact lengths.
type recvBuffer struct {
	buf []byte
}

func (b *recvBuffer) reset() { b.buf = b.buf[:0] }

func (b *recvBuffer) extend(data []byte) { b.buf = append(b.buf, data...) }

func (b *recvBuffer) len() int { return len(b.buf) }

// take removes and returns the first n buffered bytes.
func (b *recvBuffer) take(n int) []byte {
	data := make([]byte, n)
	copy(data, b.buf[:n])
	b.buf = b.buf[:copy(b.buf, b.buf[n:])]
	return data
}

// indexDelim returns the index of delim in the buffer, or -1.
func (b *recvBuffer) indexDelim(delim byte) int {
	for i, c := range b.buf {
		if c == delim {
			return i
		}
	}
	return -1
}

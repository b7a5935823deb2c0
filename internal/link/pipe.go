package link

import (
	"io"
	"time"
)

// PipeLink adapts any io.ReadWriteCloser to the Link contract. It backs
// the in-process mock transport (one end of a net.Pipe with the mock
// server on the other) and the test suite.
//
// Arbitrary ReadWriteClosers have no read deadlines, so a reader
// goroutine pumps the stream into a channel and Recv selects on it with
// a timer.
type PipeLink struct {
	rwc     io.ReadWriteCloser
	timeout time.Duration

	chunks chan []byte
	rb     recvBuffer
	closed bool
}

// NewPipeLink wraps rwc. The link owns rwc after Connect: Disconnect
// closes it.
func NewPipeLink(rwc io.ReadWriteCloser) *PipeLink {
	return &PipeLink{rwc: rwc, timeout: DefaultTimeout}
}

func (l *PipeLink) Timeout() time.Duration     { return l.timeout }
func (l *PipeLink) SetTimeout(d time.Duration) { l.timeout = d }

// Connect starts the reader goroutine.
func (l *PipeLink) Connect() error {
	l.chunks = make(chan []byte, 64)
	l.rb.reset()
	l.closed = false
	go func(chunks chan []byte) {
		defer close(chunks)
		for {
			chunk := make([]byte, 4096)
			n, err := l.rwc.Read(chunk)
			if n > 0 {
				chunks <- chunk[:n]
			}
			if err != nil {
				return
			}
		}
	}(l.chunks)
	return nil
}

// Disconnect closes the underlying channel; the reader goroutine exits
// on the resulting read error.
func (l *PipeLink) Disconnect() error {
	if l.closed {
		return nil
	}
	l.closed = true
	return l.rwc.Close()
}

func (l *PipeLink) Send(data []byte) error {
	if l.closed {
		return ErrDisconnected
	}
	if _, err := l.rwc.Write(data); err != nil {
		return ErrDisconnected
	}
	return nil
}

func (l *PipeLink) Recv(n int) ([]byte, error) {
	deadline := time.NewTimer(l.timeout)
	defer deadline.Stop()
	for l.rb.len() < n {
		if err := l.fill(deadline.C); err != nil {
			return nil, err
		}
	}
	return l.rb.take(n), nil
}

func (l *PipeLink) RecvUntil(delim byte) ([]byte, error) {
	deadline := time.NewTimer(l.timeout)
	defer deadline.Stop()
	for {
		if i := l.rb.indexDelim(delim); i >= 0 {
			return l.rb.take(i + 1), nil
		}
		if err := l.fill(deadline.C); err != nil {
			return nil, err
		}
	}
}

func (l *PipeLink) fill(deadline <-chan time.Time) error {
	if l.closed {
		return ErrDisconnected
	}
	select {
	case chunk, ok := <-l.chunks:
		if !ok {
			return ErrDisconnected
		}
		l.rb.extend(chunk)
		return nil
	case <-deadline:
		return ErrTimeout
	}
}

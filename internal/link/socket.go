package link

import (
	"errors"
	"fmt"
	"net"
	"time"
)

// DefaultExplorationPort is the TCP port the exploration server listens
// on.
const DefaultExplorationPort = 6110

const socketChunkSize = 4096

// SocketLink is a TCP-backed Link.
type SocketLink struct {
	host    string
	port    int
	timeout time.Duration

	conn net.Conn
	rb   recvBuffer
}

// NewSocketLink creates a link to host:port. A zero port uses
// DefaultExplorationPort.
func NewSocketLink(host string, port int) *SocketLink {
	if port == 0 {
		port = DefaultExplorationPort
	}
	return &SocketLink{host: host, port: port, timeout: DefaultTimeout}
}

func (l *SocketLink) Timeout() time.Duration     { return l.timeout }
func (l *SocketLink) SetTimeout(d time.Duration) { l.timeout = d }

// Connect dials the server.
func (l *SocketLink) Connect() error {
	addr := net.JoinHostPort(l.host, fmt.Sprint(l.port))
	conn, err := net.DialTimeout("tcp", addr, l.timeout)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	l.conn = conn
	l.rb.reset()
	return nil
}

// Disconnect closes the connection. Safe to call when not connected.
func (l *SocketLink) Disconnect() error {
	if l.conn == nil {
		return nil
	}
	err := l.conn.Close()
	l.conn = nil
	l.rb.reset()
	return err
}

// Send writes all bytes within the link timeout.
func (l *SocketLink) Send(data []byte) error {
	if l.conn == nil {
		return ErrDisconnected
	}
	if err := l.conn.SetWriteDeadline(time.Now().Add(l.timeout)); err != nil {
		return fmt.Errorf("%w: %v", ErrDisconnected, err)
	}
	if _, err := l.conn.Write(data); err != nil {
		return l.classify(err)
	}
	return nil
}

// Recv returns exactly n bytes.
func (l *SocketLink) Recv(n int) ([]byte, error) {
	if l.conn == nil {
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
func (l *SocketLink) RecvUntil(delim byte) ([]byte, error) {
	if l.conn == nil {
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

// fill reads one chunk into the buffer, bounded by deadline.
func (l *SocketLink) fill(deadline time.Time) error {
	if !time.Now().Before(deadline) {
		return ErrTimeout
	}
	if err := l.conn.SetReadDeadline(deadline); err != nil {
		return fmt.Errorf("%w: %v", ErrDisconnected, err)
	}
	chunk := make([]byte, socketChunkSize)
	n, err := l.conn.Read(chunk)
	if n > 0 {
		l.rb.extend(chunk[:n])
	}
	if err != nil {
		return l.classify(err)
	}
	return nil
}

// classify maps a net error to the link error taxonomy.
func (l *SocketLink) classify(err error) error {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ErrTimeout
	}
	return fmt.Errorf("%w: %v", ErrDisconnected, err)
}

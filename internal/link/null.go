package link

import "time"

// NullLink satisfies the Link contract before a transport is chosen.
// Every operation fails with ErrNullLink.
type NullLink struct{}

func (NullLink) Connect() error                 { return ErrNullLink }
func (NullLink) Disconnect() error              { return ErrNullLink }
func (NullLink) Send([]byte) error              { return ErrNullLink }
func (NullLink) Recv(int) ([]byte, error)       { return nil, ErrNullLink }
func (NullLink) RecvUntil(byte) ([]byte, error) { return nil, ErrNullLink }
func (NullLink) Timeout() time.Duration         { return DefaultTimeout }
func (NullLink) SetTimeout(time.Duration)       {}

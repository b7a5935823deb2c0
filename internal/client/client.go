// Package client drives an exploration session against a radar sensor
// server: connect and handshake, negotiate a measurement configuration,
// stream result frames, and fan out to an attached recorder.
//
// The client is a single-owner synchronous object. All operations block
// the calling goroutine; callers needing concurrency run the client on
// a Runner and talk to it over channels.
package client

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/banshee-data/exploration/internal/link"
	"github.com/banshee-data/exploration/internal/mockserver"
	"github.com/banshee-data/exploration/internal/protocol"
	"github.com/banshee-data/exploration/internal/radar"
)

// LibVersion tags records written by this library.
const LibVersion = "0.8.0"

// State is the client's position in the session lifecycle.
type State int

const (
	StateDisconnected State = iota
	StateConnected
	StateSessionConfigured
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateSessionConfigured:
		return "session_configured"
	case StateStreaming:
		return "streaming"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// SessionInfo is the session-level context handed to a recorder before
// the first frame.
type SessionInfo struct {
	ClientInfo       radar.ClientInfo
	ServerInfo       radar.ServerInfo
	SessionConfig    radar.SessionConfig
	ExtendedMetadata []map[int]radar.Metadata
	TicksPerSecond   int
	LibVersion       string
}

// Recorder observes a session passively: it persists everything it is
// handed but never alters the data path. Sample is called in-line from
// GetNext, so implementations must not block materially.
type Recorder interface {
	StartSession(info SessionInfo) error
	Sample(results []map[int]radar.Result) error
	StopSession() error
	Close() error
}

// Client owns a transport link and the protocol codec and tracks the
// session state machine:
//
//	DISCONNECTED → CONNECTED → SESSION_CONFIGURED → STREAMING
//
// stop_session returns to SESSION_CONFIGURED; disconnect is legal from
// any state and returns to DISCONNECTED.
type Client struct {
	info  radar.ClientInfo
	link  link.Link
	state State

	serverInfo    radar.ServerInfo
	sessionConfig radar.SessionConfig
	layout        *protocol.FrameLayout

	recorder Recorder
}

// New builds a client for the transport selected by info. The link is
// not opened until Connect.
func New(info radar.ClientInfo) (*Client, error) {
	if err := info.Validate(); err != nil {
		return nil, err
	}
	l, err := buildLink(info)
	if err != nil {
		return nil, err
	}
	return &Client{info: info, link: l}, nil
}

// NewWithLink builds a client over a caller-supplied link. Used by
// tests and by replay tooling.
func NewWithLink(info radar.ClientInfo, l link.Link) *Client {
	return &Client{info: info, link: l}
}

func buildLink(info radar.ClientInfo) (link.Link, error) {
	switch {
	case info.Mock:
		return link.NewPipeLink(mockserver.NewPipe(mockserver.Options{})), nil
	case info.IPAddress != "":
		return link.NewSocketLink(info.IPAddress, info.TCPPort), nil
	case info.SerialPort != "":
		return link.NewSerialLink(info.SerialPort, 0), nil
	case info.USBDevice != "":
		vid, pid, serialNumber, err := parseUSBDevice(info.USBDevice)
		if err != nil {
			return nil, err
		}
		return link.NewUSBLink(vid, pid, serialNumber), nil
	}
	return link.NullLink{}, nil
}

// parseUSBDevice splits "vid:pid" or "vid:pid:serialnumber".
func parseUSBDevice(spec string) (vid, pid, serialNumber string, err error) {
	parts := strings.SplitN(spec, ":", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", "", fmt.Errorf("invalid usb device %q: want vid:pid[:serial]", spec)
	}
	vid, pid = parts[0], parts[1]
	if len(parts) == 3 {
		serialNumber = parts[2]
	}
	return vid, pid, serialNumber, nil
}

// State returns the current lifecycle state.
func (c *Client) State() State { return c.state }

// ClientInfo returns the transport selection the client was built with.
func (c *Client) ClientInfo() radar.ClientInfo { return c.info }

// ServerInfo returns the handshake response. Valid once connected.
func (c *Client) ServerInfo() radar.ServerInfo { return c.serverInfo }

// SessionConfig returns the most recently applied session config.
func (c *Client) SessionConfig() radar.SessionConfig { return c.sessionConfig }

// ExtendedMetadata returns the per-group, per-sensor metadata from the
// last setup. Valid once a session is configured.
func (c *Client) ExtendedMetadata() []map[int]radar.Metadata {
	if c.layout == nil {
		return nil
	}
	return c.layout.ExtendedMetadata()
}

// Connect opens the transport and performs the handshake: system info,
// sensor info, then baudrate negotiation on serial transports.
func (c *Client) Connect() error {
	if c.state != StateDisconnected {
		return &StateError{Op: "connect", State: c.state}
	}
	if err := c.link.Connect(); err != nil {
		return err
	}

	if err := c.handshake(); err != nil {
		c.link.Disconnect()
		return fmt.Errorf("handshake failed: %w", err)
	}

	c.state = StateConnected
	return nil
}

func (c *Client) handshake() error {
	if err := c.link.Send(protocol.GetSystemInfoCommand()); err != nil {
		return err
	}
	msg, err := c.awaitResponse()
	if err != nil {
		return err
	}
	sysInfo, ok := msg.(protocol.SystemInfoResponse)
	if !ok {
		return fmt.Errorf("unexpected handshake response %T", msg)
	}
	c.serverInfo = sysInfo.SystemInfo

	if err := c.link.Send(protocol.GetSensorInfoCommand()); err != nil {
		return err
	}
	msg, err = c.awaitResponse()
	if err != nil {
		return err
	}
	sensorInfo, ok := msg.(protocol.SensorInfoResponse)
	if !ok {
		return fmt.Errorf("unexpected sensor info response %T", msg)
	}
	c.serverInfo.SensorInfos = sensorInfo.SensorInfos

	return c.negotiateBaudrate()
}

// negotiateBaudrate moves a serial link off the boot baudrate: to the
// client's override if one was given, otherwise to the fastest rate the
// server advertises. Non-serial transports are unaffected.
func (c *Client) negotiateBaudrate() error {
	serialLink, ok := c.link.(*link.SerialLink)
	if !ok {
		return nil
	}
	target := c.info.OverrideBaudrate
	if target == 0 {
		target = c.serverInfo.MaxBaudrate
	}
	if target == 0 || target == serialLink.Baudrate() {
		return nil
	}

	cmd, err := protocol.SetBaudrateCommand(target)
	if err != nil {
		return err
	}
	if err := c.link.Send(cmd); err != nil {
		return err
	}
	msg, err := c.awaitResponse()
	if err != nil {
		return err
	}
	if _, ok := msg.(protocol.SetBaudrateResponse); !ok {
		return fmt.Errorf("unexpected set baudrate response %T", msg)
	}
	// The ack arrived at the old rate; the device has switched now.
	return serialLink.SetBaudrate(target)
}

// SetupSession applies a session configuration and returns the
// server-reported metadata in extended shape. Legal from CONNECTED or
// SESSION_CONFIGURED; a rejected config leaves the previous session
// intact.
func (c *Client) SetupSession(sc radar.SessionConfig) ([]map[int]radar.Metadata, error) {
	if c.state != StateConnected && c.state != StateSessionConfigured {
		return nil, &StateError{Op: "setup_session", State: c.state}
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	for _, id := range sc.SensorIDs() {
		if !c.serverInfo.HasSensor(id) {
			return nil, fmt.Errorf("sensor %d is not in the server's connected set %v",
				id, c.serverInfo.ConnectedSensors())
		}
	}

	cmd, order, err := protocol.SetupCommand(sc)
	if err != nil {
		return nil, err
	}
	if err := c.link.Send(cmd); err != nil {
		return nil, err
	}
	msg, err := c.awaitResponse()
	if err != nil {
		return nil, err
	}
	setup, ok := msg.(protocol.SetupResponse)
	if !ok {
		return nil, fmt.Errorf("unexpected setup response %T", msg)
	}

	layout, err := protocol.NewFrameLayout(setup, order, c.serverInfo.TicksPerSecond)
	if err != nil {
		return nil, err
	}
	c.layout = layout
	c.sessionConfig = sc
	c.state = StateSessionConfigured
	return layout.ExtendedMetadata(), nil
}

// StartSession starts streaming. If a recorder is attached, the
// session-level metadata is written to it before the first frame; a
// recorder failure aborts the start without touching the server.
func (c *Client) StartSession() error {
	if c.state != StateSessionConfigured {
		return &StateError{Op: "start_session", State: c.state}
	}

	if c.recorder != nil {
		if err := c.recorder.StartSession(c.sessionInfo()); err != nil {
			return &RecordingError{Err: err}
		}
	}

	if err := c.link.Send(protocol.StartStreamingCommand()); err != nil {
		return err
	}
	msg, err := c.awaitResponse()
	if err != nil {
		return err
	}
	if _, ok := msg.(protocol.StartStreamingResponse); !ok {
		return fmt.Errorf("unexpected start response %T", msg)
	}
	c.state = StateStreaming
	return nil
}

// GetNext blocks until one full data frame has been received and
// decoded, forwards it to the attached recorder, and returns it in
// extended shape (use radar.Unextend for plain sessions).
//
// When only the recording fails, the frame is still returned together
// with a *RecordingError so the caller can decide whether to continue
// without recording. Desynchronization and disconnects demote the
// client to CONNECTED; timeouts leave it STREAMING and are retryable.
func (c *Client) GetNext() ([]map[int]radar.Result, error) {
	if c.state != StateStreaming {
		return nil, &StateError{Op: "get_next", State: c.state}
	}

	for {
		msg, err := protocol.ReadMessage(c.link, c.layout)
		if err != nil {
			c.demoteOnStreamError(err)
			return nil, err
		}
		switch m := msg.(type) {
		case protocol.ResultMessage:
			if c.recorder != nil {
				if err := c.recorder.Sample(m.Results); err != nil {
					return m.Results, &RecordingError{Err: err}
				}
			}
			return m.Results, nil
		case protocol.LogMessage:
			log.Printf("server %s: %s", m.Level, m.Message)
		case protocol.ErroneousMessage:
			return nil, &ServerError{Message: m.Message}
		default:
			return nil, fmt.Errorf("unexpected message %T during streaming", msg)
		}
	}
}

// demoteOnStreamError drops out of STREAMING on fatal stream errors so
// later calls fail fast instead of hanging on a dead stream.
func (c *Client) demoteOnStreamError(err error) {
	if errors.Is(err, link.ErrDisconnected) || errors.Is(err, protocol.ErrPayloadSizeMismatch) {
		c.state = StateConnected
		c.layout = nil
	}
}

// StopSession stops streaming, drains in-flight frames up to the stop
// acknowledgement, and returns to SESSION_CONFIGURED. Calling it again
// once stopped is a state error.
func (c *Client) StopSession() error {
	if c.state != StateStreaming {
		return &StateError{Op: "stop_session", State: c.state}
	}

	if err := c.link.Send(protocol.StopStreamingCommand()); err != nil {
		return err
	}
	for {
		msg, err := protocol.ReadMessage(c.link, c.layout)
		if err != nil {
			c.demoteOnStreamError(err)
			return err
		}
		switch m := msg.(type) {
		case protocol.StopStreamingResponse:
			c.state = StateSessionConfigured
			if c.recorder != nil {
				if err := c.recorder.StopSession(); err != nil {
					return &RecordingError{Err: err}
				}
			}
			return nil
		case protocol.ResultMessage, protocol.LogMessage:
			// In-flight frames between our stop and the ack; dropped.
		case protocol.ErroneousMessage:
			return &ServerError{Message: m.Message}
		default:
			return fmt.Errorf("unexpected message %T while stopping", msg)
		}
	}
}

// Disconnect tears down the transport from any state. A running
// session is stopped best-effort first.
func (c *Client) Disconnect() error {
	if c.state == StateStreaming {
		if err := c.StopSession(); err != nil {
			log.Printf("stop during disconnect failed: %v", err)
		}
	}
	err := c.link.Disconnect()
	c.state = StateDisconnected
	c.layout = nil
	return err
}

// AttachRecorder attaches a recorder; at most one may be attached.
// Attaching mid-stream writes the session info immediately so the
// record is self-describing.
func (c *Client) AttachRecorder(r Recorder) error {
	if c.recorder != nil {
		return fmt.Errorf("a recorder is already attached")
	}
	c.recorder = r
	if c.state == StateStreaming {
		if err := r.StartSession(c.sessionInfo()); err != nil {
			c.recorder = nil
			return &RecordingError{Err: err}
		}
	}
	return nil
}

// DetachRecorder stops all further forwarding and returns the recorder;
// the caller owns closing it. Returns nil if none is attached.
func (c *Client) DetachRecorder() Recorder {
	r := c.recorder
	c.recorder = nil
	return r
}

func (c *Client) sessionInfo() SessionInfo {
	return SessionInfo{
		ClientInfo:       c.info,
		ServerInfo:       c.serverInfo,
		SessionConfig:    c.sessionConfig,
		ExtendedMetadata: c.layout.ExtendedMetadata(),
		TicksPerSecond:   c.serverInfo.TicksPerSecond,
		LibVersion:       LibVersion,
	}
}

// awaitResponse reads the next non-log message. Server log lines can
// interleave with any response; they are forwarded to the local log.
func (c *Client) awaitResponse() (protocol.Message, error) {
	for {
		msg, err := protocol.ReadMessage(c.link, c.layout)
		if err != nil {
			return nil, err
		}
		if logMsg, ok := msg.(protocol.LogMessage); ok {
			log.Printf("server %s: %s", logMsg.Level, logMsg.Message)
			continue
		}
		if errMsg, ok := msg.(protocol.ErroneousMessage); ok {
			return nil, &ServerError{Message: errMsg.Message}
		}
		return msg, nil
	}
}

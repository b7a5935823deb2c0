package mockserver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/banshee-data/exploration/internal/link"
	"github.com/banshee-data/exploration/internal/protocol"
	"github.com/banshee-data/exploration/internal/radar"
)

// dial connects a PipeLink to a fresh mock server.
func dial(t *testing.T, opts Options) *link.PipeLink {
	t.Helper()
	l := link.NewPipeLink(NewPipe(opts))
	require.NoError(t, l.Connect())
	t.Cleanup(func() { l.Disconnect() })
	return l
}

func roundTrip(t *testing.T, l *link.PipeLink, cmd []byte, layout *protocol.FrameLayout) protocol.Message {
	t.Helper()
	require.NoError(t, l.Send(cmd))
	msg, err := protocol.ReadMessage(l, layout)
	require.NoError(t, err)
	return msg
}

func TestSystemInfo(t *testing.T) {
	l := dial(t, Options{MaxBaudrate: 2_000_000})

	msg := roundTrip(t, l, protocol.GetSystemInfoCommand(), nil)
	sysInfo, ok := msg.(protocol.SystemInfoResponse)
	require.True(t, ok, "got %T", msg)
	require.Equal(t, 1_000_000, sysInfo.SystemInfo.TicksPerSecond)
	require.Equal(t, 2_000_000, sysInfo.SystemInfo.MaxBaudrate)
	require.Equal(t, 5, sysInfo.SystemInfo.SensorCount)
}

func TestSetupRejectsDisconnectedSensor(t *testing.T) {
	l := dial(t, Options{ConnectedSensors: []bool{true, false}})

	sc, err := radar.NewSessionConfig(2, radar.DefaultSensorConfig())
	require.NoError(t, err)
	cmd, _, err := protocol.SetupCommand(sc)
	require.NoError(t, err)

	msg := roundTrip(t, l, cmd, nil)
	require.IsType(t, protocol.ErroneousMessage{}, msg)
}

func TestUnknownCommandReported(t *testing.T) {
	l := dial(t, Options{})

	// Hand-framed bogus command.
	header := []byte(`{"cmd":"self_destruct"}`)
	framed := append([]byte{byte(len(header)), 0, 0, 0}, header...)

	msg := roundTrip(t, l, framed, nil)
	errMsg, ok := msg.(protocol.ErroneousMessage)
	require.True(t, ok, "got %T", msg)
	require.Contains(t, errMsg.Message, "self_destruct")
}

func TestStreamingTicksAdvance(t *testing.T) {
	l := dial(t, Options{FrameInterval: time.Millisecond})

	sc, err := radar.NewSessionConfig(1, radar.DefaultSensorConfig())
	require.NoError(t, err)
	cmd, order, err := protocol.SetupCommand(sc)
	require.NoError(t, err)

	msg := roundTrip(t, l, cmd, nil)
	setup, ok := msg.(protocol.SetupResponse)
	require.True(t, ok, "got %T", msg)

	layout, err := protocol.NewFrameLayout(setup, order, 1_000_000)
	require.NoError(t, err)

	msg = roundTrip(t, l, protocol.StartStreamingCommand(), layout)
	require.IsType(t, protocol.StartStreamingResponse{}, msg)

	var lastTick int64 = -1
	for i := 0; i < 3; i++ {
		msg, err := protocol.ReadMessage(l, layout)
		require.NoError(t, err)
		result, ok := msg.(protocol.ResultMessage)
		require.True(t, ok, "got %T", msg)

		tick := result.Results[0][1].Tick
		require.Greater(t, tick, lastTick)
		lastTick = tick
	}

	// Stop; in-flight frames may precede the ack.
	require.NoError(t, l.Send(protocol.StopStreamingCommand()))
	for {
		msg, err := protocol.ReadMessage(l, layout)
		require.NoError(t, err)
		if _, ok := msg.(protocol.StopStreamingResponse); ok {
			break
		}
		require.IsType(t, protocol.ResultMessage{}, msg)
	}
}

func TestStartBeforeSetupRejected(t *testing.T) {
	l := dial(t, Options{})
	msg := roundTrip(t, l, protocol.StartStreamingCommand(), nil)
	require.IsType(t, protocol.ErroneousMessage{}, msg)
}

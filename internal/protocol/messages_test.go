package protocol

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/banshee-data/exploration/internal/radar"
)

func singleSensorLayout(sweeps, points int) *FrameLayout {
	return &FrameLayout{
		Groups: [][]SensorLayout{{{
			SensorID: 1,
			Metadata: radar.Metadata{
				FrameDataLength: sweeps * points,
				SweepDataLength: points,
				BaseStepLengthM: radar.ApproxBaseStepLengthM,
			},
		}}},
		TicksPerSecond: 1000000,
	}
}

func TestParseMessageDispatch(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   any
	}{
		{
			"system info",
			`{"status":"ok","system_info":{"rss_version":"a121-v1.0.0","sensor":"sensor","sensor_count":1,"ticks_per_second":1000000}}`,
			SystemInfoResponse{},
		},
		{
			"sensor info",
			`{"status":"ok","sensor_info":[{"connected":true},{"connected":false}]}`,
			SensorInfoResponse{},
		},
		{
			"setup",
			`{"status":"ok","tick_period":0,"metadata":[[{"frame_data_length":160,"sweep_data_length":160,"base_step_length_m":0.0025}]]}`,
			SetupResponse{},
		},
		{"start", `{"status":"start"}`, StartStreamingResponse{}},
		{"stop", `{"status":"stop","message":"all done"}`, StopStreamingResponse{}},
		{"baudrate ack", `{"status":"ok","message":"set baudrate"}`, SetBaudrateResponse{}},
		{"plain ack", `{"status":"ok"}`, Ack{}},
		{"server error", `{"status":"error","message":"bad config"}`, ErroneousMessage{}},
		{"log", `{"status":"log","level":"INFO","message":"hello"}`, LogMessage{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := ParseMessage([]byte(tt.header), nil, nil)
			require.NoError(t, err)
			require.IsType(t, tt.want, msg)
		})
	}
}

func TestParseMessageErrors(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"missing status", `{"message":"hi"}`},
		{"unknown status", `{"status":"maybe"}`},
		{"malformed json", `{"status":`},
		{"error without message", `{"status":"error"}`},
		{"system info without tick rate", `{"status":"ok","system_info":{"rss_version":"v"}}`},
		{"metadata with zero shape", `{"status":"ok","metadata":[[{"frame_data_length":0,"sweep_data_length":0,"base_step_length_m":0.0025}]]}`},
		{"metadata without base step length", `{"status":"ok","metadata":[[{"frame_data_length":160,"sweep_data_length":160}]]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMessage([]byte(tt.header), nil, nil)
			require.Error(t, err)

			var parseErr *ParseError
			require.ErrorAs(t, err, &parseErr)
			require.NotEmpty(t, parseErr.Field)
		})
	}
}

func TestParseMessageResult(t *testing.T) {
	layout := singleSensorLayout(2, 3)
	payload := EncodeIQ([]int16{1, -1, 2, -2, 3, -3, 4, -4, 5, -5, 6, -6})
	header := `{"status":"ok","payload_size":24,"result_info":[[{"tick":42,"temperature":25}]]}`

	msg, err := ParseMessage([]byte(header), payload, layout)
	require.NoError(t, err)

	result := msg.(ResultMessage)
	require.Len(t, result.Results, 1)
	r, ok := result.Results[0][1]
	require.True(t, ok, "result should be keyed by sensor id 1")
	require.EqualValues(t, 42, r.Tick)
	require.Equal(t, 25, r.Temperature)
	require.Equal(t, complex(1, -1), r.Frame()[0][0])
}

func TestParseMessageResultBeforeSetup(t *testing.T) {
	header := `{"status":"ok","payload_size":24,"result_info":[[{"tick":42}]]}`
	_, err := ParseMessage([]byte(header), make([]byte, 24), nil)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestParseMessagePayloadMismatch(t *testing.T) {
	layout := singleSensorLayout(2, 3)

	// Header claims fewer bytes than the layout needs.
	header := `{"status":"ok","payload_size":8,"result_info":[[{"tick":1}]]}`
	_, err := ParseMessage([]byte(header), make([]byte, 8), layout)
	require.True(t, errors.Is(err, ErrPayloadSizeMismatch), "got %v", err)

	// Header claims bytes that are not present.
	header = `{"status":"ok","payload_size":24,"result_info":[[{"tick":1}]]}`
	_, err = ParseMessage([]byte(header), make([]byte, 8), layout)
	require.True(t, errors.Is(err, ErrPayloadSizeMismatch), "got %v", err)
}

func TestParseMessageResultShapeMismatch(t *testing.T) {
	layout := singleSensorLayout(2, 3)

	// Two result_info groups against a one-group layout.
	header := `{"status":"ok","payload_size":24,"result_info":[[{"tick":1}],[{"tick":1}]]}`
	_, err := ParseMessage([]byte(header), make([]byte, 24), layout)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
}

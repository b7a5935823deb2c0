package protocol

import (
	"encoding/json"

	"github.com/banshee-data/exploration/internal/radar"
)

// Message is one decoded server response. The concrete types below form
// a closed set; consumers switch exhaustively on them.
type Message interface {
	isMessage()
}

// SystemInfoResponse answers get_system_info.
type SystemInfoResponse struct {
	SystemInfo radar.ServerInfo
}

// SensorInfoResponse answers get_sensor_info.
type SensorInfoResponse struct {
	SensorInfos []radar.SensorInfo
}

// SetupResponse answers setup. Metadata groups follow the order the
// sensors were encoded in the setup command.
type SetupResponse struct {
	Metadata   [][]radar.Metadata
	TickPeriod int
}

// StartStreamingResponse acknowledges start_streaming.
type StartStreamingResponse struct{}

// StopStreamingResponse acknowledges stop_streaming.
type StopStreamingResponse struct {
	Message string
}

// SetBaudrateResponse acknowledges set_uart_baudrate.
type SetBaudrateResponse struct{}

// Ack is a generic ok response carrying no recognised fields, e.g. the
// no-op acknowledgement of an empty config update.
type Ack struct {
	Message string
}

// ResultMessage is one streamed data frame, already sliced into
// per-sensor results using the session's frame layout.
type ResultMessage struct {
	// Results is ordered by group; each map holds the group's sensors.
	Results []map[int]radar.Result
}

// ErroneousMessage is the server reporting a failure; Message carries
// the server's human-readable reason (e.g. a config validation error).
type ErroneousMessage struct {
	Message string
}

// LogMessage is server-side log output forwarded over the stream.
type LogMessage struct {
	Level   string
	Message string
}

func (SystemInfoResponse) isMessage()     {}
func (SensorInfoResponse) isMessage()     {}
func (SetupResponse) isMessage()          {}
func (StartStreamingResponse) isMessage() {}
func (StopStreamingResponse) isMessage()  {}
func (SetBaudrateResponse) isMessage()    {}
func (Ack) isMessage()                    {}
func (ResultMessage) isMessage()          {}
func (ErroneousMessage) isMessage()       {}
func (LogMessage) isMessage()             {}

// header mirrors every field any response kind may carry. Dispatch
// decides which are required for the declared status.
type header struct {
	Status      string               `json:"status"`
	Message     string               `json:"message"`
	LogLevel    string               `json:"level"`
	PayloadSize *int                 `json:"payload_size"`
	SystemInfo  *radar.ServerInfo    `json:"system_info"`
	SensorInfo  []radar.SensorInfo   `json:"sensor_info"`
	Metadata    [][]radar.Metadata   `json:"metadata"`
	TickPeriod  int                  `json:"tick_period"`
	ResultInfo  [][]radar.ResultInfo `json:"result_info"`
}

const setBaudrateMessage = "set baudrate"

// ParseMessage decodes one response from its JSON header and raw
// payload. layout may be nil until a setup response has established one;
// data frames without a layout are a parse error.
func ParseMessage(headerBytes, payload []byte, layout *FrameLayout) (Message, error) {
	var h header
	if err := json.Unmarshal(headerBytes, &h); err != nil {
		return nil, parseErrorf("header", "malformed JSON: %v", err)
	}

	switch h.Status {
	case "ok":
		switch {
		case h.SystemInfo != nil:
			if h.SystemInfo.TicksPerSecond == 0 {
				return nil, parseErrorf("system_info", "missing ticks_per_second")
			}
			return SystemInfoResponse{SystemInfo: *h.SystemInfo}, nil

		case h.SensorInfo != nil:
			return SensorInfoResponse{SensorInfos: h.SensorInfo}, nil

		case h.Metadata != nil:
			for gi, group := range h.Metadata {
				for si, md := range group {
					if md.FrameDataLength == 0 || md.SweepDataLength == 0 {
						return nil, parseErrorf("metadata",
							"group %d sensor index %d has zero frame shape", gi, si)
					}
					if md.BaseStepLengthM <= 0 {
						return nil, parseErrorf("metadata",
							"group %d sensor index %d has non-positive base_step_length_m", gi, si)
					}
				}
			}
			return SetupResponse{Metadata: h.Metadata, TickPeriod: h.TickPeriod}, nil

		case h.ResultInfo != nil:
			if layout == nil {
				return nil, parseErrorf("result_info", "data frame before session setup")
			}
			if h.PayloadSize == nil {
				return nil, parseErrorf("payload_size", "missing for data frame")
			}
			return decodeResultMessage(h.ResultInfo, payload, *h.PayloadSize, layout)

		case h.Message == setBaudrateMessage:
			return SetBaudrateResponse{}, nil

		default:
			return Ack{Message: h.Message}, nil
		}

	case "start":
		return StartStreamingResponse{}, nil

	case "stop":
		return StopStreamingResponse{Message: h.Message}, nil

	case "error":
		if h.Message == "" {
			return nil, parseErrorf("message", "missing for error status")
		}
		return ErroneousMessage{Message: h.Message}, nil

	case "log":
		return LogMessage{Level: h.LogLevel, Message: h.Message}, nil

	case "":
		return nil, parseErrorf("status", "missing")

	default:
		return nil, parseErrorf("status", "unrecognised value %q", h.Status)
	}
}

package protocol

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/banshee-data/exploration/internal/radar"
)

// Command names understood by the exploration server.
const (
	cmdGetSystemInfo  = "get_system_info"
	cmdGetSensorInfo  = "get_sensor_info"
	cmdSetup          = "setup"
	cmdStartStreaming = "start_streaming"
	cmdStopStreaming  = "stop_streaming"
	cmdSetBaudrate    = "set_uart_baudrate"
)

type simpleCommand struct {
	Cmd string `json:"cmd"`
}

func encodeSimple(cmd string) []byte {
	header, err := json.Marshal(simpleCommand{Cmd: cmd})
	if err != nil {
		panic("failed to marshal command: " + err.Error())
	}
	return prependLength(header)
}

// GetSystemInfoCommand asks for the server/firmware handshake info.
func GetSystemInfoCommand() []byte { return encodeSimple(cmdGetSystemInfo) }

// GetSensorInfoCommand asks which sensor slots have a sensor attached.
func GetSensorInfoCommand() []byte { return encodeSimple(cmdGetSensorInfo) }

// StartStreamingCommand starts the configured session.
func StartStreamingCommand() []byte { return encodeSimple(cmdStartStreaming) }

// StopStreamingCommand stops the running session.
func StopStreamingCommand() []byte { return encodeSimple(cmdStopStreaming) }

// SetBaudrateCommand asks the server to switch its UART to baudrate.
// The acknowledgement arrives at the old rate; the link switches after.
func SetBaudrateCommand(baudrate int) ([]byte, error) {
	if baudrate <= 0 {
		return nil, fmt.Errorf("invalid baudrate %d", baudrate)
	}
	header, err := json.Marshal(struct {
		Cmd      string `json:"cmd"`
		Baudrate int    `json:"baudrate"`
	}{Cmd: cmdSetBaudrate, Baudrate: baudrate})
	if err != nil {
		return nil, err
	}
	return prependLength(header), nil
}

// setupPair is one (sensor id, config) element of a setup group. It
// marshals as a two-element JSON array, matching the server's expected
// shape.
type setupPair struct {
	SensorID int
	Config   radar.SensorConfig
}

func (p setupPair) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{p.SensorID, p.Config})
}

// SetupCommand encodes a session configuration. The returned order
// holds the sensor ids of every group in the order they were encoded;
// the setup response's metadata and subsequent data frames follow the
// same order.
func SetupCommand(sc radar.SessionConfig) (framed []byte, order [][]int, err error) {
	if err := sc.Validate(); err != nil {
		return nil, nil, err
	}

	groups := make([][]setupPair, len(sc.Groups))
	order = make([][]int, len(sc.Groups))
	for i, group := range sc.Groups {
		ids := make([]int, 0, len(group))
		for id := range group {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		order[i] = ids
		for _, id := range ids {
			groups[i] = append(groups[i], setupPair{SensorID: id, Config: group[id]})
		}
	}

	header, err := json.Marshal(struct {
		Cmd        string        `json:"cmd"`
		Groups     [][]setupPair `json:"groups"`
		UpdateRate float64       `json:"update_rate,omitempty"`
	}{Cmd: cmdSetup, Groups: groups, UpdateRate: sc.UpdateRate})
	if err != nil {
		return nil, nil, err
	}
	return prependLength(header), order, nil
}

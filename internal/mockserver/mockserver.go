// Package mockserver is an in-process exploration server. It speaks the
// full wire protocol over any io.ReadWriteCloser and backs the client's
// mock transport and the test suite: no radar hardware required.
package mockserver

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"time"

	"github.com/banshee-data/exploration/internal/protocol"
	"github.com/banshee-data/exploration/internal/radar"
)

// Options configures the simulated device.
type Options struct {
	// ConnectedSensors marks which sensor slots have a sensor attached.
	// Defaults to two connected sensors out of five slots.
	ConnectedSensors []bool

	// TicksPerSecond of the simulated server clock. Defaults to 1e6.
	TicksPerSecond int

	// FrameInterval is the wall-clock period between streamed frames.
	// Defaults to 10ms.
	FrameInterval time.Duration

	// MaxBaudrate advertised in the system info. Zero disables
	// baudrate negotiation.
	MaxBaudrate int

	// Logf logs server activity; nil discards it.
	Logf func(format string, args ...any)
}

func (o *Options) applyDefaults() {
	if o.ConnectedSensors == nil {
		o.ConnectedSensors = []bool{true, true, false, false, false}
	}
	if o.TicksPerSecond == 0 {
		o.TicksPerSecond = 1_000_000
	}
	if o.FrameInterval == 0 {
		o.FrameInterval = 10 * time.Millisecond
	}
	if o.Logf == nil {
		o.Logf = func(string, ...any) {}
	}
}

// Server simulates one exploration server connection.
type Server struct {
	opts Options

	mu        sync.Mutex // serializes writes to the connection
	rwc       io.ReadWriteCloser
	startTime time.Time

	// session state
	order     [][]int
	configs   []map[int]radar.SensorConfig
	metadata  [][]radar.Metadata
	streaming chan struct{} // non-nil while streaming; closed to stop
	streamWG  sync.WaitGroup
}

// New creates a Server with the given options.
func New(opts Options) *Server {
	opts.applyDefaults()
	return &Server{opts: opts, startTime: time.Now()}
}

// NewPipe creates a connected mock server and returns the client end of
// the pipe. The server serves on a background goroutine until the pipe
// closes.
func NewPipe(opts Options) io.ReadWriteCloser {
	clientEnd, serverEnd := net.Pipe()
	srv := New(opts)
	go func() {
		if err := srv.Serve(serverEnd); err != nil && err != io.EOF {
			log.Printf("mockserver: serve ended: %v", err)
		}
	}()
	return clientEnd
}

// Serve handles commands on rwc until it closes.
func (s *Server) Serve(rwc io.ReadWriteCloser) error {
	s.rwc = rwc
	defer s.stopStreaming()
	defer rwc.Close()

	for {
		cmd, err := s.readCommand()
		if err != nil {
			return err
		}
		if err := s.dispatch(cmd); err != nil {
			return err
		}
	}
}

// command is the decoded union of every request the server accepts.
type command struct {
	Cmd        string              `json:"cmd"`
	Baudrate   int                 `json:"baudrate"`
	Groups     [][]json.RawMessage `json:"groups"`
	UpdateRate float64             `json:"update_rate"`
}

func (s *Server) readCommand() (*command, error) {
	prefix := make([]byte, protocol.HeaderLengthSize)
	if _, err := io.ReadFull(s.rwc, prefix); err != nil {
		return nil, err
	}
	headerBytes := make([]byte, binary.LittleEndian.Uint32(prefix))
	if _, err := io.ReadFull(s.rwc, headerBytes); err != nil {
		return nil, err
	}
	var cmd command
	if err := json.Unmarshal(headerBytes, &cmd); err != nil {
		return nil, fmt.Errorf("malformed command: %w", err)
	}
	return &cmd, nil
}

func (s *Server) dispatch(cmd *command) error {
	s.opts.Logf("mockserver: command %q", cmd.Cmd)
	switch cmd.Cmd {
	case "get_system_info":
		return s.handleSystemInfo()
	case "get_sensor_info":
		return s.handleSensorInfo()
	case "setup":
		return s.handleSetup(cmd)
	case "start_streaming":
		return s.handleStart()
	case "stop_streaming":
		return s.handleStop()
	case "set_uart_baudrate":
		if cmd.Baudrate <= 0 {
			return s.writeError(fmt.Sprintf("invalid baudrate %d", cmd.Baudrate))
		}
		return s.writeHeader(map[string]any{"status": "ok", "message": "set baudrate"})
	default:
		return s.writeError(fmt.Sprintf("unknown command %q", cmd.Cmd))
	}
}

func (s *Server) handleSystemInfo() error {
	return s.writeHeader(map[string]any{
		"status": "ok",
		"system_info": radar.ServerInfo{
			RSSVersion:     "v0.8.0-mock",
			SensorName:     "sim",
			SensorCount:    len(s.opts.ConnectedSensors),
			TicksPerSecond: s.opts.TicksPerSecond,
			HardwareName:   "mock",
			MaxBaudrate:    s.opts.MaxBaudrate,
		},
	})
}

func (s *Server) handleSensorInfo() error {
	infos := make([]radar.SensorInfo, len(s.opts.ConnectedSensors))
	for i, connected := range s.opts.ConnectedSensors {
		infos[i] = radar.SensorInfo{Connected: connected}
		if connected {
			infos[i].Serial = fmt.Sprintf("SIM%05d", i+1)
		}
	}
	return s.writeHeader(map[string]any{
		"status":       "ok",
		"payload_size": 0,
		"sensor_info":  infos,
	})
}

func (s *Server) handleSetup(cmd *command) error {
	if s.streaming != nil {
		return s.writeError("setup not allowed while streaming")
	}
	if len(cmd.Groups) == 0 {
		return s.writeError("setup has no groups")
	}

	order := make([][]int, len(cmd.Groups))
	configs := make([]map[int]radar.SensorConfig, len(cmd.Groups))
	for gi, group := range cmd.Groups {
		configs[gi] = make(map[int]radar.SensorConfig, len(group))
		for _, rawPair := range group {
			var pair []json.RawMessage
			if err := json.Unmarshal(rawPair, &pair); err != nil || len(pair) != 2 {
				return s.writeError("malformed setup group entry")
			}
			var sensorID int
			if err := json.Unmarshal(pair[0], &sensorID); err != nil {
				return s.writeError("malformed sensor id")
			}
			var cfg radar.SensorConfig
			if err := json.Unmarshal(pair[1], &cfg); err != nil {
				return s.writeError(fmt.Sprintf("sensor %d: malformed config", sensorID))
			}
			if sensorID < 1 || sensorID > len(s.opts.ConnectedSensors) ||
				!s.opts.ConnectedSensors[sensorID-1] {
				return s.writeError(fmt.Sprintf("sensor %d is not connected", sensorID))
			}
			if err := cfg.Validate(); err != nil {
				return s.writeError(fmt.Sprintf("sensor %d: %v", sensorID, err))
			}
			configs[gi][sensorID] = cfg
			order[gi] = append(order[gi], sensorID)
		}
	}

	metadata := make([][]radar.Metadata, len(order))
	tickPeriod := 0
	if cmd.UpdateRate > 0 {
		tickPeriod = int(float64(s.opts.TicksPerSecond) / cmd.UpdateRate)
	}
	for gi, ids := range order {
		for _, id := range ids {
			metadata[gi] = append(metadata[gi], s.metadataFor(configs[gi][id]))
		}
	}

	s.order = order
	s.configs = configs
	s.metadata = metadata
	return s.writeHeader(map[string]any{
		"status":       "ok",
		"payload_size": 0,
		"tick_period":  tickPeriod,
		"metadata":     metadata,
	})
}

// metadataFor derives the frame layout the real server would report for
// a config.
func (s *Server) metadataFor(cfg radar.SensorConfig) radar.Metadata {
	md := radar.Metadata{
		SweepDataLength:        cfg.NumPoints(),
		FrameDataLength:        cfg.SweepsPerFrame * cfg.NumPoints(),
		BaseStepLengthM:        radar.ApproxBaseStepLengthM,
		CalibrationTemperature: 25,
	}
	offset := 0
	hwaasSum := 0
	for _, sub := range cfg.Subsweeps {
		md.SubsweepDataOffset = append(md.SubsweepDataOffset, offset)
		md.SubsweepDataLength = append(md.SubsweepDataLength, sub.NumPoints)
		offset += sub.NumPoints
		hwaasSum += sub.HWAAS
	}
	// Rough sweep-duration model: sampling time scales with points and
	// averaging.
	md.MaxSweepRate = 1e6 / float64(cfg.NumPoints()*hwaasSum/len(cfg.Subsweeps)+1000)
	return md
}

func (s *Server) handleStart() error {
	if s.metadata == nil {
		return s.writeError("start_streaming before setup")
	}
	if s.streaming != nil {
		return s.writeError("already streaming")
	}
	if err := s.writeHeader(map[string]any{"status": "start", "payload_size": 0}); err != nil {
		return err
	}

	stop := make(chan struct{})
	s.streaming = stop
	s.streamWG.Add(1)
	go s.streamFrames(stop)
	return nil
}

func (s *Server) handleStop() error {
	if s.streaming == nil {
		return s.writeError("stop_streaming while not streaming")
	}
	s.stopStreaming()
	return s.writeHeader(map[string]any{
		"status":       "stop",
		"payload_size": 0,
		"message":      "Stop streaming.",
	})
}

func (s *Server) stopStreaming() {
	if s.streaming == nil {
		return
	}
	close(s.streaming)
	s.streamWG.Wait()
	s.streaming = nil
}

// streamFrames emits data frames at the configured interval until
// stopped. Ticks are derived from the wall clock so they are strictly
// increasing across the whole connection.
func (s *Server) streamFrames(stop chan struct{}) {
	defer s.streamWG.Done()
	ticker := time.NewTicker(s.opts.FrameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := s.writeFrame(); err != nil {
				s.opts.Logf("mockserver: stream write failed: %v", err)
				return
			}
		}
	}
}

func (s *Server) writeFrame() error {
	tick := s.tick()
	info := make([][]radar.ResultInfo, len(s.order))
	var payload []byte
	for gi, ids := range s.order {
		for _, id := range ids {
			info[gi] = append(info[gi], radar.ResultInfo{
				Tick:        tick,
				Temperature: 25,
			})
			md := s.metadata[gi][indexOf(ids, id)]
			payload = append(payload, simulatedIQ(tick, id, md.FrameDataLength)...)
		}
	}
	return s.write(map[string]any{
		"status":       "ok",
		"payload_size": len(payload),
		"result_info":  info,
	}, payload)
}

func (s *Server) tick() int64 {
	return int64(time.Since(s.startTime).Seconds() * float64(s.opts.TicksPerSecond))
}

func indexOf(ids []int, id int) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

// simulatedIQ produces a deterministic frame: a decaying ripple keyed
// on the tick and sensor id, so replays and assertions are stable.
func simulatedIQ(tick int64, sensorID, samples int) []byte {
	iq := make([]int16, 2*samples)
	for i := 0; i < samples; i++ {
		iq[2*i] = int16((tick/1000 + int64(sensorID*31) + int64(i*7)) % 2048)
		iq[2*i+1] = int16((tick/1000 + int64(sensorID*17) + int64(i*3)) % 2048)
	}
	return protocol.EncodeIQ(iq)
}

func (s *Server) writeHeader(header map[string]any) error {
	return s.write(header, nil)
}

func (s *Server) writeError(message string) error {
	s.opts.Logf("mockserver: rejecting: %s", message)
	return s.write(map[string]any{"status": "error", "message": message}, nil)
}

// write frames and sends one response; writes from the command loop and
// the streaming goroutine are serialized.
func (s *Server) write(header map[string]any, payload []byte) error {
	headerBytes, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}
	frame := make([]byte, protocol.HeaderLengthSize, protocol.HeaderLengthSize+len(headerBytes)+len(payload))
	binary.LittleEndian.PutUint32(frame, uint32(len(headerBytes)))
	frame = append(frame, headerBytes...)
	frame = append(frame, payload...)

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.rwc.Write(frame)
	return err
}

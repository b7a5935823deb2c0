// Command explore runs a radar session against an exploration server
// over TCP, serial, or USB (or against the built-in mock), optionally
// recording it to SQLite, and can replay recorded sessions through the
// same processing pipeline.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/exploration/internal/client"
	"github.com/banshee-data/exploration/internal/link"
	"github.com/banshee-data/exploration/internal/monitor"
	"github.com/banshee-data/exploration/internal/processing"
	"github.com/banshee-data/exploration/internal/radar"
	"github.com/banshee-data/exploration/internal/record"
)

var (
	ipAddress  = flag.String("ip", "", "Server IP address (TCP transport)")
	tcpPort    = flag.Int("port", link.DefaultExplorationPort, "Server TCP port")
	serialPort = flag.String("serial", "", "Serial port device (serial transport)")
	baudrate   = flag.Int("baudrate", 0, "Override negotiated serial baudrate")
	usbDevice  = flag.String("usb", "", "USB device as vid:pid or vid:pid:serial")
	mock       = flag.Bool("mock", false, "Run against the in-process mock server")

	frames     = flag.Int("frames", 100, "Frames to stream, 0 for until interrupted")
	recordPath = flag.String("record", "", "Record the session to this SQLite file")
	replayPath = flag.String("replay", "", "Replay a recorded session instead of connecting")
	realtime   = flag.Bool("realtime", false, "Pace replay by recorded frame timing")
	listen     = flag.String("listen", "", "Serve debug routes on this address, empty disables")

	sensorID       = flag.Int("sensor", 1, "Sensor ID to run")
	startPoint     = flag.Int("start-point", 80, "First measured point")
	numPoints      = flag.Int("num-points", 160, "Number of measured points")
	stepLength     = flag.Int("step-length", 1, "Spacing between points in base steps")
	profile        = flag.Int("profile", 3, "Pulse profile, 1 to 5")
	hwaas          = flag.Int("hwaas", 8, "Hardware accelerated average samples")
	sweepsPerFrame = flag.Int("sweeps-per-frame", 16, "Sweeps per frame")
	sweepRate      = flag.Float64("sweep-rate", 0, "Sweep rate in Hz, 0 lets the server run free")
	frameRate      = flag.Float64("frame-rate", 10, "Frame rate in Hz, 0 lets the server run free")
	updateRate     = flag.Float64("update-rate", 0, "Session update rate in Hz")

	processor = flag.String("processor", "none", "Per-frame processing: none, distance, presence")
	threshold = flag.Float64("threshold", 1.5, "Detection threshold for the presence processor")
)

func sensorConfig() (radar.SensorConfig, error) {
	sub := radar.DefaultSubsweep()
	sub.StartPoint = *startPoint
	sub.NumPoints = *numPoints
	sub.StepLength = *stepLength
	sub.Profile = radar.Profile(*profile)
	sub.HWAAS = *hwaas

	cfg, err := radar.NewSensorConfig(sub)
	if err != nil {
		return radar.SensorConfig{}, err
	}
	cfg.SweepsPerFrame = *sweepsPerFrame
	cfg.SweepRate = *sweepRate
	cfg.FrameRate = *frameRate
	if err := cfg.Validate(); err != nil {
		return radar.SensorConfig{}, err
	}
	return cfg, nil
}

// frameProcessor folds one frame into whatever processing was asked
// for and returns a printable summary.
type frameProcessor func(result radar.Result) string

func newProcessor(cfg radar.SensorConfig) (frameProcessor, error) {
	switch *processor {
	case "none":
		return func(result radar.Result) string {
			return fmt.Sprintf("tick=%d temp=%d°C", result.Tick, result.Temperature)
		}, nil
	case "distance":
		dp, err := processing.NewDistanceProcessor(cfg)
		if err != nil {
			return nil, err
		}
		return func(result radar.Result) string {
			if d, found := dp.Process(result); found {
				return fmt.Sprintf("tick=%d distance=%.3fm", result.Tick, d)
			}
			return fmt.Sprintf("tick=%d no peak", result.Tick)
		}, nil
	case "presence":
		rate := *frameRate
		if rate <= 0 {
			rate = 10
		}
		pp := processing.NewPresenceProcessor(cfg, rate, *threshold)
		return func(result radar.Result) string {
			res := pp.Process(result)
			state := "clear"
			if res.Detected {
				state = "PRESENCE"
			}
			return fmt.Sprintf("tick=%d %s score=%.2f at %.3fm", result.Tick, state, res.Score, res.ScoreDistanceM)
		}, nil
	}
	return nil, fmt.Errorf("unknown processor %q", *processor)
}

func main() {
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *replayPath != "" {
		if err := replay(ctx); err != nil {
			log.Fatalf("replay failed: %v", err)
		}
		return
	}

	if err := live(ctx); err != nil {
		log.Fatalf("session failed: %v", err)
	}
}

func replay(ctx context.Context) error {
	rec, err := record.OpenRecord(*replayPath)
	if err != nil {
		return err
	}
	log.Printf("replaying session %s from %s: %d frames, recorded %s",
		rec.UUID(), *replayPath, rec.NumFrames(), rec.Timestamp().Format(time.RFC3339))

	cfg, err := radar.Unextend(rec.SessionConfig().Groups)
	if err != nil {
		return fmt.Errorf("recorded session is extended, replay processing needs a single sensor: %w", err)
	}
	process, err := newProcessor(cfg)
	if err != nil {
		return err
	}

	rc := record.NewReplayingClient(rec, *realtime)
	defer rc.Disconnect()
	if err := rc.StartSession(); err != nil {
		return err
	}

	for ctx.Err() == nil {
		results, err := rc.GetNext()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		logFrame(results, process)
	}
	return rc.StopSession()
}

func live(ctx context.Context) error {
	info := radar.ClientInfo{
		IPAddress:        *ipAddress,
		TCPPort:          *tcpPort,
		SerialPort:       *serialPort,
		OverrideBaudrate: *baudrate,
		USBDevice:        *usbDevice,
		Mock:             *mock,
	}

	c, err := client.New(info)
	if err != nil {
		return err
	}

	if *recordPath != "" {
		recorder, err := record.NewFileRecorder(*recordPath)
		if err != nil {
			return err
		}
		defer recorder.Close()
		if err := c.AttachRecorder(recorder); err != nil {
			return err
		}
	}

	cfg, err := sensorConfig()
	if err != nil {
		return fmt.Errorf("invalid sensor config: %w", err)
	}
	process, err := newProcessor(cfg)
	if err != nil {
		return err
	}

	runner := client.NewRunner(c)

	var wg sync.WaitGroup
	runnerCtx, cancelRunner := context.WithCancel(context.Background())
	defer cancelRunner()
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := runner.Run(runnerCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("runner stopped: %v", err)
		}
	}()

	if *listen != "" {
		serveDebug(runnerCtx, &wg, runner)
	}

	err = runner.Do(ctx, func(c *client.Client) error {
		if err := c.Connect(); err != nil {
			return err
		}
		log.Printf("connected: %s, %d sensors, rss %s",
			c.ServerInfo().HardwareName, c.ServerInfo().SensorCount, c.ServerInfo().RSSVersion)

		sc, err := radar.NewSessionConfig(*sensorID, cfg)
		if err != nil {
			return err
		}
		sc.UpdateRate = *updateRate
		if _, err := c.SetupSession(sc); err != nil {
			return err
		}
		return c.StartSession()
	})
	if err != nil {
		cancelRunner()
		wg.Wait()
		return err
	}

	id, events := runner.Subscribe()
	defer runner.Unsubscribe(id)

	streamed := 0
stream:
	for *frames == 0 || streamed < *frames {
		select {
		case <-ctx.Done():
			log.Printf("interrupted after %d frames", streamed)
			break stream
		case ev, ok := <-events:
			if !ok {
				break stream
			}
			switch ev.Kind {
			case client.EventFrame:
				logFrame(ev.Results, process)
				streamed++
			case client.EventError:
				log.Printf("stream error: %v", ev.Err)
				var recErr *client.RecordingError
				if !errors.As(ev.Err, &recErr) {
					break stream
				}
			}
		}
	}

	err = runner.Do(context.Background(), func(c *client.Client) error {
		if err := c.StopSession(); err != nil {
			log.Printf("stop failed: %v", err)
		}
		return c.Disconnect()
	})
	cancelRunner()
	wg.Wait()
	log.Printf("streamed %d frames", streamed)
	return err
}

func logFrame(results []map[int]radar.Result, process frameProcessor) {
	for _, group := range results {
		for sensorID, result := range group {
			log.Printf("sensor %d: %s", sensorID, process(result))
		}
	}
}

func serveDebug(ctx context.Context, wg *sync.WaitGroup, runner *client.Runner) {
	var store *record.Store
	if *recordPath != "" {
		s, err := record.NewStore(*recordPath)
		if err != nil {
			log.Printf("debug routes without SQL console: %v", err)
		} else {
			store = s
		}
	}

	mux := http.NewServeMux()
	monitor.AttachAdminRoutes(mux, runner, store)

	server := &http.Server{
		Addr:    *listen,
		Handler: mux,
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("debug routes on http://%s/debug/", *listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("debug server failed: %v", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("debug server shutdown error: %v", err)
		}
		if store != nil {
			store.Close()
		}
	}()
}

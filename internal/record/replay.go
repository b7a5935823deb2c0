package record

import (
	"fmt"
	"io"
	"time"

	"github.com/banshee-data/exploration/internal/radar"
)

// ReplayingClient re-runs a recorded session with the live client's
// call shape, so downstream processing code works identically against
// hardware and recordings. GetNext returns io.EOF after the last frame.
type ReplayingClient struct {
	rec      *PersistentRecord
	realtime bool

	streaming bool
	next      int

	// Wall clock and tick at start, for realtime pacing.
	startWall time.Time
	startTick int64
}

// NewReplayingClient wraps an open record. With realtime set, GetNext
// paces frames by their recorded tick spacing; otherwise it returns
// them as fast as they are read.
func NewReplayingClient(rec *PersistentRecord, realtime bool) *ReplayingClient {
	return &ReplayingClient{rec: rec, realtime: realtime}
}

func (c *ReplayingClient) SessionConfig() radar.SessionConfig { return c.rec.SessionConfig() }
func (c *ReplayingClient) ServerInfo() radar.ServerInfo       { return c.rec.ServerInfo() }

// ExtendedMetadata returns the recorded per-group, per-sensor metadata.
func (c *ReplayingClient) ExtendedMetadata() []map[int]radar.Metadata {
	return c.rec.ExtendedMetadata()
}

// StartSession rewinds to the first frame.
func (c *ReplayingClient) StartSession() error {
	if c.streaming {
		return fmt.Errorf("replay already streaming")
	}
	c.streaming = true
	c.next = 0
	c.startWall = time.Time{}
	return nil
}

// GetNext returns the next recorded frame, or io.EOF once the session
// is exhausted.
func (c *ReplayingClient) GetNext() ([]map[int]radar.Result, error) {
	if !c.streaming {
		return nil, fmt.Errorf("replay not streaming")
	}
	if c.next >= c.rec.NumFrames() {
		return nil, io.EOF
	}

	results, err := c.rec.FrameAt(c.next)
	if err != nil {
		return nil, err
	}
	c.next++

	if c.realtime {
		c.pace(results)
	}
	return results, nil
}

// pace sleeps until the wall clock has advanced as far past the first
// frame as this frame's tick has.
func (c *ReplayingClient) pace(results []map[int]radar.Result) {
	tick := firstTick(results)
	if c.startWall.IsZero() {
		c.startWall = time.Now()
		c.startTick = tick
		return
	}
	tps := c.rec.TicksPerSecond()
	if tps <= 0 {
		return
	}
	elapsed := time.Duration(tick-c.startTick) * time.Second / time.Duration(tps)
	due := c.startWall.Add(elapsed)
	if d := time.Until(due); d > 0 {
		time.Sleep(d)
	}
}

func firstTick(results []map[int]radar.Result) int64 {
	for _, group := range results {
		for _, result := range group {
			return result.Tick
		}
	}
	return 0
}

// StopSession ends the replay; StartSession may be called again.
func (c *ReplayingClient) StopSession() error {
	if !c.streaming {
		return fmt.Errorf("replay not streaming")
	}
	c.streaming = false
	return nil
}

// Disconnect closes the underlying record.
func (c *ReplayingClient) Disconnect() error {
	c.streaming = false
	return c.rec.Close()
}

package radar

import (
	"fmt"
)

// MaxSubsweeps is the largest number of subsweeps in one sensor config.
const MaxSubsweeps = 4

// SensorConfig describes a full measurement for one sensor: one or more
// subsweeps swept back-to-back, repeated SweepsPerFrame times per frame.
type SensorConfig struct {
	Subsweeps []SubsweepConfig `json:"subsweeps"`

	// SweepsPerFrame is the number of sweeps collected per trigger.
	SweepsPerFrame int `json:"sweeps_per_frame"`

	// SweepRate is the target sweep rate in Hz. Zero lets the sensor
	// sweep as fast as possible.
	SweepRate float64 `json:"sweep_rate,omitempty"`

	// FrameRate is the target frame rate in Hz. Zero means unbounded.
	FrameRate float64 `json:"frame_rate,omitempty"`

	// ContinuousSweepMode keeps timing constant between the last sweep
	// of one frame and the first of the next. Requires a sweep rate and
	// identical inter-frame and inter-sweep idle states.
	ContinuousSweepMode bool `json:"continuous_sweep_mode"`

	// DoubleBuffering lets the sensor measure while the previous frame
	// is being read out.
	DoubleBuffering bool `json:"double_buffering"`

	InterFrameIdleState IdleState `json:"inter_frame_idle_state"`
	InterSweepIdleState IdleState `json:"inter_sweep_idle_state"`
}

// NewSensorConfig builds a validated single-subsweep SensorConfig.
func NewSensorConfig(subsweep SubsweepConfig) (SensorConfig, error) {
	cfg := SensorConfig{
		Subsweeps:           []SubsweepConfig{subsweep},
		SweepsPerFrame:      1,
		InterFrameIdleState: IdleStateDeepSleep,
		InterSweepIdleState: IdleStateReady,
	}
	if err := cfg.Validate(); err != nil {
		return SensorConfig{}, err
	}
	return cfg, nil
}

// DefaultSensorConfig returns the default measurement configuration.
func DefaultSensorConfig() SensorConfig {
	cfg, err := NewSensorConfig(DefaultSubsweep())
	if err != nil {
		panic("default sensor config is invalid: " + err.Error())
	}
	return cfg
}

// Validate checks the config and all of its subsweeps.
func (c SensorConfig) Validate() error {
	if len(c.Subsweeps) == 0 {
		return fmt.Errorf("config has no subsweeps")
	}
	if len(c.Subsweeps) > MaxSubsweeps {
		return fmt.Errorf("config has %d subsweeps, max is %d", len(c.Subsweeps), MaxSubsweeps)
	}
	for i, sub := range c.Subsweeps {
		if err := sub.Validate(); err != nil {
			return fmt.Errorf("subsweep %d: %w", i, err)
		}
	}
	if c.SweepsPerFrame < 1 {
		return fmt.Errorf("sweeps_per_frame must be >= 1, got %d", c.SweepsPerFrame)
	}
	if c.SweepRate < 0 {
		return fmt.Errorf("sweep_rate must be >= 0, got %v", c.SweepRate)
	}
	if c.FrameRate < 0 {
		return fmt.Errorf("frame_rate must be >= 0, got %v", c.FrameRate)
	}
	if !c.InterFrameIdleState.Valid() {
		return fmt.Errorf("invalid inter_frame_idle_state %q", c.InterFrameIdleState)
	}
	if !c.InterSweepIdleState.Valid() {
		return fmt.Errorf("invalid inter_sweep_idle_state %q", c.InterSweepIdleState)
	}
	if !c.InterFrameIdleState.IsAtLeastAsDeepAs(c.InterSweepIdleState) {
		return fmt.Errorf("inter_frame_idle_state %q must be at least as deep as inter_sweep_idle_state %q",
			c.InterFrameIdleState, c.InterSweepIdleState)
	}
	if c.ContinuousSweepMode {
		if c.SweepRate == 0 {
			return fmt.Errorf("continuous_sweep_mode requires a sweep_rate")
		}
		if c.InterFrameIdleState != c.InterSweepIdleState {
			return fmt.Errorf("continuous_sweep_mode requires equal idle states")
		}
	}
	return nil
}

// NumPoints is the total number of range points in one sweep, summed
// over subsweeps.
func (c SensorConfig) NumPoints() int {
	total := 0
	for _, sub := range c.Subsweeps {
		total += sub.NumPoints
	}
	return total
}

// The accessors below are single-subsweep shortcuts. They panic when the
// config has more than one subsweep; callers with extended configs index
// Subsweeps directly.

func (c SensorConfig) single() SubsweepConfig {
	if len(c.Subsweeps) != 1 {
		panic(fmt.Sprintf("single-subsweep accessor on config with %d subsweeps", len(c.Subsweeps)))
	}
	return c.Subsweeps[0]
}

// StartPoint returns the start point of the sole subsweep.
func (c SensorConfig) StartPoint() int { return c.single().StartPoint }

// StepLength returns the step length of the sole subsweep.
func (c SensorConfig) StepLength() int { return c.single().StepLength }

// Profile returns the profile of the sole subsweep.
func (c SensorConfig) Profile() Profile { return c.single().Profile }

// HWAAS returns the HWAAS of the sole subsweep.
func (c SensorConfig) HWAAS() int { return c.single().HWAAS }

// PRF returns the PRF of the sole subsweep.
func (c SensorConfig) PRF() PRF { return c.single().PRF }

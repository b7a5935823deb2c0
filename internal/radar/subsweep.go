// Package radar defines the measurement configuration and result types
// shared by the protocol codec, the client and the record store.
//
// Configs are value types built through validating constructors: an
// invalid combination of parameters never yields a usable config, it
// yields an error. Once built, configs are not mutated.
package radar

import (
	"encoding/json"
	"fmt"
)

// SweepPointsPerChunk is the sensor's fixed chunk size in range points.
// A subsweep step length must be a divisor or a multiple of this value.
const SweepPointsPerChunk = 24

// ApproxBaseStepLengthM is the approximate distance between two range
// points. The authoritative value is reported by the server in Metadata.
const ApproxBaseStepLengthM = 2.5e-3

// Profile selects the sensor-side pulse preset, trading resolution for SNR.
type Profile int

const (
	Profile1 Profile = 1
	Profile2 Profile = 2
	Profile3 Profile = 3
	Profile4 Profile = 4
	Profile5 Profile = 5
)

func (p Profile) Valid() bool { return p >= Profile1 && p <= Profile5 }

func (p Profile) String() string { return fmt.Sprintf("profile_%d", int(p)) }

// PRF is the pulse repetition frequency. Together with the profile it
// bounds the maximum unambiguous measurable distance.
type PRF int

const (
	PRF19_5MHz PRF = iota
	PRF15_6MHz
	PRF13_0MHz
	PRF8_7MHz
	PRF6_5MHz
	PRF5_2MHz
)

var prfNames = map[PRF]string{
	PRF19_5MHz: "19_5_MHz",
	PRF15_6MHz: "15_6_MHz",
	PRF13_0MHz: "13_0_MHz",
	PRF8_7MHz:  "8_7_MHz",
	PRF6_5MHz:  "6_5_MHz",
	PRF5_2MHz:  "5_2_MHz",
}

var prfFrequencyHz = map[PRF]float64{
	PRF19_5MHz: 19.5e6,
	PRF15_6MHz: 15.6e6,
	PRF13_0MHz: 13.0e6,
	PRF8_7MHz:  8.7e6,
	PRF6_5MHz:  6.5e6,
	PRF5_2MHz:  5.2e6,
}

// prfMaxMeasurableDistM is the largest distance the sensor can measure
// per PRF, limited by the receive window.
var prfMaxMeasurableDistM = map[PRF]float64{
	PRF19_5MHz: 3.1,
	PRF15_6MHz: 5.1,
	PRF13_0MHz: 7.0,
	PRF8_7MHz:  12.7,
	PRF6_5MHz:  18.5,
	PRF5_2MHz:  24.3,
}

func (p PRF) Valid() bool { _, ok := prfNames[p]; return ok }

func (p PRF) String() string {
	if name, ok := prfNames[p]; ok {
		return name
	}
	return fmt.Sprintf("PRF(%d)", int(p))
}

// FrequencyHz returns the pulse repetition frequency in Hz.
func (p PRF) FrequencyHz() float64 { return prfFrequencyHz[p] }

// MaxMeasurableDistM returns the largest measurable distance in meters.
func (p PRF) MaxMeasurableDistM() float64 { return prfMaxMeasurableDistM[p] }

// MaxUnambiguousRangeM returns the distance beyond which a return from a
// previous pulse would alias into the current one.
func (p PRF) MaxUnambiguousRangeM() float64 {
	const speedOfLight = 299792458.0
	return speedOfLight / (2 * p.FrequencyHz())
}

// MarshalJSON encodes the PRF as its wire name, e.g. "13_0_MHz".
func (p PRF) MarshalJSON() ([]byte, error) {
	name, ok := prfNames[p]
	if !ok {
		return nil, fmt.Errorf("unknown PRF %d", int(p))
	}
	return json.Marshal(name)
}

// UnmarshalJSON decodes a PRF wire name.
func (p *PRF) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for prf, n := range prfNames {
		if n == name {
			*p = prf
			return nil
		}
	}
	return fmt.Errorf("unknown PRF %q", name)
}

// IdleState is the sensor state between sweeps or frames. Deeper states
// save power at the cost of wake-up time.
type IdleState string

const (
	IdleStateDeepSleep IdleState = "deep_sleep"
	IdleStateSleep     IdleState = "sleep"
	IdleStateReady     IdleState = "ready"
)

// depth orders idle states from deepest to shallowest.
func (s IdleState) depth() int {
	switch s {
	case IdleStateDeepSleep:
		return 2
	case IdleStateSleep:
		return 1
	case IdleStateReady:
		return 0
	}
	return -1
}

func (s IdleState) Valid() bool { return s.depth() >= 0 }

// IsAtLeastAsDeepAs reports whether s is a deeper or equal idle state
// than other. The inter-frame idle state must be at least as deep as
// the inter-sweep idle state.
func (s IdleState) IsAtLeastAsDeepAs(other IdleState) bool {
	return s.depth() >= other.depth()
}

// SubsweepConfig describes one range segment of a sweep.
type SubsweepConfig struct {
	// StartPoint is the first range point of the subsweep, in units of
	// the base step length (roughly 2.5mm each).
	StartPoint int `json:"start_point"`

	// NumPoints is the number of sampled range points.
	NumPoints int `json:"num_points"`

	// StepLength is the distance between sampled points, in points.
	StepLength int `json:"step_length"`

	// Profile selects pulse length; longer pulses give better SNR but
	// blur close-range targets.
	Profile Profile `json:"profile"`

	// HWAAS is the number of hardware accumulated averages per sample.
	HWAAS int `json:"hwaas"`

	// ReceiverGain in [0, 23].
	ReceiverGain int `json:"receiver_gain"`

	// PRF bounds the maximum measurable distance.
	PRF PRF `json:"prf"`

	// EnableTX controls the transmitter; disabled it measures noise only.
	EnableTX bool `json:"enable_tx"`

	// PhaseEnhancement enables coherent phase between points.
	PhaseEnhancement bool `json:"phase_enhancement"`
}

// DefaultSubsweep returns the default single-subsweep measurement used
// when the caller does not specify one.
func DefaultSubsweep() SubsweepConfig {
	return SubsweepConfig{
		StartPoint:   80,
		NumPoints:    160,
		StepLength:   1,
		Profile:      Profile3,
		HWAAS:        8,
		ReceiverGain: 16,
		PRF:          PRF13_0MHz,
		EnableTX:     true,
	}
}

// Validate checks all field bounds and cross-field constraints.
func (c SubsweepConfig) Validate() error {
	if c.NumPoints < 1 {
		return fmt.Errorf("num_points must be >= 1, got %d", c.NumPoints)
	}
	if c.StepLength < 1 {
		return fmt.Errorf("step_length must be >= 1, got %d", c.StepLength)
	}
	if SweepPointsPerChunk%c.StepLength != 0 && c.StepLength%SweepPointsPerChunk != 0 {
		return fmt.Errorf("step_length %d must be a divisor or multiple of %d",
			c.StepLength, SweepPointsPerChunk)
	}
	if !c.Profile.Valid() {
		return fmt.Errorf("invalid profile %d", int(c.Profile))
	}
	if c.HWAAS < 1 || c.HWAAS > 511 {
		return fmt.Errorf("hwaas must be in [1, 511], got %d", c.HWAAS)
	}
	if c.ReceiverGain < 0 || c.ReceiverGain > 23 {
		return fmt.Errorf("receiver_gain must be in [0, 23], got %d", c.ReceiverGain)
	}
	if !c.PRF.Valid() {
		return fmt.Errorf("invalid PRF %d", int(c.PRF))
	}
	return nil
}

// EndPoint is the last sampled range point. Points past the PRF's max
// measurable distance are accepted by the sensor but return degraded
// data; use SelectPRF to pick a PRF that covers the whole subsweep.
func (c SubsweepConfig) EndPoint() int {
	return c.StartPoint + (c.NumPoints-1)*c.StepLength
}

// SelectPRF returns the highest PRF whose max measurable distance
// covers the given breakpoint (in points). PRF 19.5 MHz is only usable
// with profile 1.
func SelectPRF(breakpoint int, profile Profile) (PRF, error) {
	breakpointM := float64(breakpoint) * ApproxBaseStepLengthM
	best, found := PRF(0), false
	for prf, maxDistM := range prfMaxMeasurableDistM {
		if prf == PRF19_5MHz && profile != Profile1 {
			continue
		}
		if breakpointM >= maxDistM {
			continue
		}
		if !found || prf.FrequencyHz() > best.FrequencyHz() {
			best, found = prf, true
		}
	}
	if !found {
		return 0, fmt.Errorf("breakpoint %d (~%.2fm) is beyond the range of every PRF", breakpoint, breakpointM)
	}
	return best, nil
}

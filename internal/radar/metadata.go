package radar

// Metadata holds the device-reported facts that result from applying a
// SensorConfig. It is produced once per session setup and immutable
// afterwards; the frame lengths and offsets are the layout needed to
// slice streamed payloads.
type Metadata struct {
	// FrameDataLength is the number of complex samples in one frame
	// (sweeps_per_frame * sweep_data_length).
	FrameDataLength int `json:"frame_data_length"`

	// SweepDataLength is the number of complex samples in one sweep,
	// summed over subsweeps.
	SweepDataLength int `json:"sweep_data_length"`

	// SubsweepDataOffset holds the offset of each subsweep within a
	// sweep, in samples.
	SubsweepDataOffset []int `json:"subsweep_data_offset"`

	// SubsweepDataLength holds the number of samples of each subsweep.
	SubsweepDataLength []int `json:"subsweep_data_length"`

	// CalibrationTemperature is the sensor temperature during
	// calibration, in degrees Celsius.
	CalibrationTemperature int `json:"calibration_temperature"`

	// BaseStepLengthM is the exact distance between adjacent range
	// points in meters.
	BaseStepLengthM float64 `json:"base_step_length_m"`

	// MaxSweepRate is the highest sweep rate the config can sustain, Hz.
	MaxSweepRate float64 `json:"max_sweep_rate"`

	// TickPeriod is the target server tick period for the session, in
	// ticks. Zero means unbounded rate.
	TickPeriod int `json:"tick_period"`
}

// FrameShape returns the (sweeps, points-per-sweep) shape of one frame.
func (m Metadata) FrameShape() (sweeps, points int) {
	if m.SweepDataLength == 0 {
		return 0, 0
	}
	return m.FrameDataLength / m.SweepDataLength, m.SweepDataLength
}

package radar

// ResultInfo carries the per-frame flags and counters reported by the
// server alongside the binary frame payload.
type ResultInfo struct {
	// Tick is the server tick when the sensor interrupt fired.
	Tick int64 `json:"tick"`

	// DataSaturated indicates the receiver saturated during the frame;
	// lower the receiver gain if set.
	DataSaturated bool `json:"data_saturated"`

	// FrameDelayed indicates the server could not keep up with the
	// configured rate.
	FrameDelayed bool `json:"frame_delayed"`

	// CalibrationNeeded indicates the sensor calibration has drifted
	// and must be redone.
	CalibrationNeeded bool `json:"calibration_needed"`

	// Temperature in the sensor during the measurement, degrees
	// Celsius. Poor absolute accuracy.
	Temperature int `json:"temperature"`
}

// Result is one streamed frame from one sensor: the reported info plus
// the raw IQ samples, with enough context to interpret them.
type Result struct {
	ResultInfo

	iq             []int16
	metadata       Metadata
	ticksPerSecond int
}

// NewResult builds a Result from decoded wire data. iq holds interleaved
// real/imag int16 pairs, sweep-major.
func NewResult(info ResultInfo, iq []int16, metadata Metadata, ticksPerSecond int) Result {
	return Result{
		ResultInfo:     info,
		iq:             iq,
		metadata:       metadata,
		ticksPerSecond: ticksPerSecond,
	}
}

// RawIQ returns the interleaved int16 real/imag samples in the original
// wire format. The slice must not be modified.
func (r Result) RawIQ() []int16 { return r.iq }

// Metadata returns the session metadata the result was decoded with.
func (r Result) Metadata() Metadata { return r.metadata }

// TickTime converts the server tick to seconds.
func (r Result) TickTime() float64 {
	if r.ticksPerSecond == 0 {
		return 0
	}
	return float64(r.Tick) / float64(r.ticksPerSecond)
}

// Frame returns the IQ data as complex values with dimensions
// (sweep, distance).
func (r Result) Frame() [][]complex128 {
	sweeps, points := r.metadata.FrameShape()
	frame := make([][]complex128, sweeps)
	for s := 0; s < sweeps; s++ {
		row := make([]complex128, points)
		for p := 0; p < points; p++ {
			i := 2 * (s*points + p)
			row[p] = complex(float64(r.iq[i]), float64(r.iq[i+1]))
		}
		frame[s] = row
	}
	return frame
}

// Subframes splits the frame per subsweep, using the offsets and
// lengths from the metadata.
func (r Result) Subframes() [][][]complex128 {
	frame := r.Frame()
	subframes := make([][][]complex128, len(r.metadata.SubsweepDataOffset))
	for i, offset := range r.metadata.SubsweepDataOffset {
		length := r.metadata.SubsweepDataLength[i]
		sub := make([][]complex128, len(frame))
		for s, row := range frame {
			sub[s] = row[offset : offset+length]
		}
		subframes[i] = sub
	}
	return subframes
}

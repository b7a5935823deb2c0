// Package processing turns raw IQ frames into physical quantities:
// distances, amplitudes, velocity spectra, and simple presence and
// distance estimates. Everything here consumes radar.Result values and
// works the same against live hardware and recorded sessions.
package processing

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/exploration/internal/radar"
)

// DistancesM returns the distance in meters for each measured point of
// the subsweep.
func DistancesM(sub radar.SubsweepConfig) []float64 {
	dists := make([]float64, sub.NumPoints)
	for i := range dists {
		point := sub.StartPoint + i*sub.StepLength
		dists[i] = float64(point) * radar.ApproxBaseStepLengthM
	}
	return dists
}

// ConfigDistancesM returns the distances for a single-subsweep config.
func ConfigDistancesM(cfg radar.SensorConfig) []float64 {
	return DistancesM(cfg.Subsweeps[0])
}

// ApproxFFTVels returns the approximate radial velocity for each FFT
// bin of a frame-wise FFT over sweeps, fftshifted so index 0 is the
// most negative velocity, plus the velocity resolution per bin. The
// mapping from sweep-frequency to velocity uses the base step length
// as the effective wavelength scale, so treat the result as
// approximate.
func ApproxFFTVels(cfg radar.SensorConfig, metadata radar.Metadata) (vels []float64, res float64) {
	sweepRate := cfg.SweepRate
	if sweepRate <= 0 {
		sweepRate = metadata.MaxSweepRate
	}
	spf := cfg.SweepsPerFrame
	fToV := radar.ApproxBaseStepLengthM * sweepRate

	vels = make([]float64, spf)
	for i := range vels {
		// fftshifted bin frequencies in cycles per sweep.
		f := float64(i-spf/2) / float64(spf)
		vels[i] = f * fToV
	}
	return vels, fToV / float64(spf)
}

// Amplitudes returns the magnitude of each point of each sweep.
func Amplitudes(frame [][]complex128) [][]float64 {
	amps := make([][]float64, len(frame))
	for s, sweep := range frame {
		amps[s] = make([]float64, len(sweep))
		for p, v := range sweep {
			amps[s][p] = cmplx.Abs(v)
		}
	}
	return amps
}

// MeanSweepAbs averages the amplitude over all sweeps of a frame,
// leaving one value per point.
func MeanSweepAbs(frame [][]complex128) []float64 {
	if len(frame) == 0 {
		return nil
	}
	mean := make([]float64, len(frame[0]))
	for _, sweep := range frame {
		for p, v := range sweep {
			mean[p] += cmplx.Abs(v)
		}
	}
	floats.Scale(1/float64(len(frame)), mean)
	return mean
}

// VelocitySpectrum computes, per point, the amplitude of the FFT taken
// across the sweeps of the frame, fftshifted to match ApproxFFTVels.
// The returned matrix is indexed [bin][point].
func VelocitySpectrum(frame [][]complex128) [][]float64 {
	spf := len(frame)
	if spf == 0 {
		return nil
	}
	numPoints := len(frame[0])
	fft := fourier.NewCmplxFFT(spf)

	spectrum := make([][]float64, spf)
	for b := range spectrum {
		spectrum[b] = make([]float64, numPoints)
	}

	column := make([]complex128, spf)
	for p := 0; p < numPoints; p++ {
		for s := range frame {
			column[s] = frame[s][p]
		}
		bins := fft.Coefficients(nil, column)
		for b, v := range bins {
			spectrum[fft.ShiftIdx(b)][p] = cmplx.Abs(v)
		}
	}
	return spectrum
}

// PeakVelocity returns the velocity of the strongest moving reflection
// in the frame, ignoring the zero-velocity bin. Returns 0 with ok set
// to false when the frame has fewer than two sweeps.
func PeakVelocity(frame [][]complex128, cfg radar.SensorConfig, metadata radar.Metadata) (vel float64, ok bool) {
	spf := len(frame)
	if spf < 2 {
		return 0, false
	}
	spectrum := VelocitySpectrum(frame)
	vels, _ := ApproxFFTVels(cfg, metadata)

	zeroBin := spf / 2
	best := -1.0
	bestBin := -1
	for b, row := range spectrum {
		if b == zeroBin {
			continue
		}
		if m := floats.Max(row); m > best {
			best = m
			bestBin = b
		}
	}
	if bestBin < 0 {
		return 0, false
	}
	return vels[bestBin], true
}

// quadraticPeakInterp refines a peak index with the vertex of the
// parabola through the peak and its neighbors. Returns the fractional
// offset from the peak index, in [-0.5, 0.5].
func quadraticPeakInterp(y []float64, peak int) float64 {
	if peak <= 0 || peak >= len(y)-1 {
		return 0
	}
	a, b, c := y[peak-1], y[peak], y[peak+1]
	denom := a - 2*b + c
	if denom == 0 {
		return 0
	}
	offset := 0.5 * (a - c) / denom
	return math.Max(-0.5, math.Min(0.5, offset))
}

// DistanceProcessor estimates the distance to the strongest reflection
// in each frame of a single-subsweep session.
type DistanceProcessor struct {
	distances []float64

	// Threshold is the minimum mean amplitude for a peak to count as a
	// detection. Zero accepts any peak.
	Threshold float64
}

// NewDistanceProcessor builds a processor for the given config. The
// config must have exactly one subsweep.
func NewDistanceProcessor(cfg radar.SensorConfig) (*DistanceProcessor, error) {
	if len(cfg.Subsweeps) != 1 {
		return nil, fmt.Errorf("distance processing needs a single subsweep, got %d", len(cfg.Subsweeps))
	}
	return &DistanceProcessor{distances: ConfigDistancesM(cfg)}, nil
}

// Process returns the estimated distance for one frame. found is false
// when no peak clears the threshold.
func (p *DistanceProcessor) Process(result radar.Result) (distanceM float64, found bool) {
	mean := MeanSweepAbs(result.Frame())
	if len(mean) == 0 || len(mean) != len(p.distances) {
		return 0, false
	}

	peak := floats.MaxIdx(mean)
	if mean[peak] < p.Threshold {
		return 0, false
	}

	// Refine between points; the grid spacing is uniform.
	offset := quadraticPeakInterp(mean, peak)
	step := 0.0
	if len(p.distances) > 1 {
		step = p.distances[1] - p.distances[0]
	}
	return p.distances[peak] + offset*step, true
}

package processing

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/exploration/internal/radar"
)

// PresenceResult is the output of one presence update.
type PresenceResult struct {
	// Score is the largest normalized inter-frame deviation over all
	// points. Larger means more motion.
	Score float64

	// ScoreDistanceM is the distance of the point with the largest
	// deviation.
	ScoreDistanceM float64

	// Detected reports whether Score cleared the detection threshold.
	Detected bool
}

// PresenceProcessor detects motion by tracking how the mean sweep
// amplitude drifts between frames: a fast filter follows the scene, a
// slow filter remembers it, and the normalized gap between the two is
// the presence score. Stateful; feed it consecutive frames from one
// sensor.
type PresenceProcessor struct {
	distances []float64
	threshold float64

	alphaFast float64
	alphaSlow float64

	fast []float64
	slow []float64
}

// NewPresenceProcessor builds a processor for a single-subsweep config.
// frameRate is the rate frames will be fed at; threshold is the score
// above which Detected is set.
func NewPresenceProcessor(cfg radar.SensorConfig, frameRate, threshold float64) *PresenceProcessor {
	return &PresenceProcessor{
		distances: ConfigDistancesM(cfg),
		threshold: threshold,
		alphaFast: smoothingAlpha(0.5, frameRate),
		alphaSlow: smoothingAlpha(5.0, frameRate),
	}
}

// smoothingAlpha converts a time constant in seconds to the feedback
// coefficient of a first-order exponential filter updated at rate hz.
func smoothingAlpha(tauS, hz float64) float64 {
	if tauS <= 0 || hz <= 0 {
		return 0
	}
	return math.Exp(-1 / (tauS * hz))
}

// Process folds one frame into the filters and scores it.
func (p *PresenceProcessor) Process(result radar.Result) PresenceResult {
	mean := MeanSweepAbs(result.Frame())
	if len(mean) == 0 {
		return PresenceResult{}
	}

	if p.fast == nil {
		p.fast = append([]float64(nil), mean...)
		p.slow = append([]float64(nil), mean...)
		return PresenceResult{ScoreDistanceM: p.distanceAt(0)}
	}

	deviation := make([]float64, len(mean))
	for i, m := range mean {
		p.fast[i] = p.alphaFast*p.fast[i] + (1-p.alphaFast)*m
		p.slow[i] = p.alphaSlow*p.slow[i] + (1-p.alphaSlow)*m
		if p.slow[i] > 0 {
			deviation[i] = math.Abs(p.fast[i]-p.slow[i]) / p.slow[i]
		}
	}

	peak := floats.MaxIdx(deviation)
	score := deviation[peak]
	return PresenceResult{
		Score:          score,
		ScoreDistanceM: p.distanceAt(peak),
		Detected:       score > p.threshold,
	}
}

// Reset clears the filter state, as after a gap in the stream.
func (p *PresenceProcessor) Reset() {
	p.fast = nil
	p.slow = nil
}

func (p *PresenceProcessor) distanceAt(i int) float64 {
	if i < 0 || i >= len(p.distances) {
		return 0
	}
	return p.distances[i]
}

package processing

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/banshee-data/exploration/internal/radar"
)

func pointConfig(startPoint, numPoints, stepLength, sweepsPerFrame int) radar.SensorConfig {
	sub := radar.DefaultSubsweep()
	sub.StartPoint = startPoint
	sub.NumPoints = numPoints
	sub.StepLength = stepLength

	cfg, err := radar.NewSensorConfig(sub)
	if err != nil {
		panic(err)
	}
	cfg.SweepsPerFrame = sweepsPerFrame
	return cfg
}

// syntheticResult builds a frame from a generator so tests control the
// exact IQ content.
func syntheticResult(sweeps, points int, gen func(sweep, point int) complex128) radar.Result {
	iq := make([]int16, 2*sweeps*points)
	for s := 0; s < sweeps; s++ {
		for p := 0; p < points; p++ {
			v := gen(s, p)
			i := 2 * (s*points + p)
			iq[i] = int16(real(v))
			iq[i+1] = int16(imag(v))
		}
	}
	md := radar.Metadata{
		FrameDataLength: sweeps * points,
		SweepDataLength: points,
		BaseStepLengthM: radar.ApproxBaseStepLengthM,
	}
	return radar.NewResult(radar.ResultInfo{}, iq, md, 1_000_000)
}

func TestDistancesM(t *testing.T) {
	cfg := pointConfig(400, 3, 24, 1)

	want := []float64{1.0, 1.06, 1.12}
	got := ConfigDistancesM(cfg)
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("distances mismatch (-want +got):\n%s", diff)
	}
}

func TestApproxFFTVels(t *testing.T) {
	cfg := pointConfig(80, 24, 1, 8)
	cfg.SweepRate = 1000

	vels, res := ApproxFFTVels(cfg, radar.Metadata{})
	if len(vels) != 8 {
		t.Fatalf("got %d velocity bins, want 8", len(vels))
	}

	// Bin spacing is sweep_rate * base_step / sweeps_per_frame.
	wantRes := 1000 * radar.ApproxBaseStepLengthM / 8
	if math.Abs(res-wantRes) > 1e-12 {
		t.Errorf("resolution = %v, want %v", res, wantRes)
	}
	// fftshifted: first bin most negative, middle bin zero.
	if vels[0] >= 0 {
		t.Errorf("vels[0] = %v, want negative", vels[0])
	}
	if vels[4] != 0 {
		t.Errorf("zero bin = %v, want 0", vels[4])
	}

	// Without a sweep rate the metadata's max rate applies.
	cfg.SweepRate = 0
	vels2, _ := ApproxFFTVels(cfg, radar.Metadata{MaxSweepRate: 500})
	if vels2[0] != vels[0]/2 {
		t.Errorf("half the sweep rate should halve the velocities: %v vs %v", vels2[0], vels[0])
	}
}

func TestMeanSweepAbs(t *testing.T) {
	// Two sweeps; point 1 carries the signal.
	result := syntheticResult(2, 3, func(sweep, point int) complex128 {
		if point == 1 {
			return complex(30, 40) // magnitude 50
		}
		return complex(3, 4) // magnitude 5
	})

	got := MeanSweepAbs(result.Frame())
	want := []float64{5, 50, 5}
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("mean sweep mismatch (-want +got):\n%s", diff)
	}

	if MeanSweepAbs(nil) != nil {
		t.Error("empty frame should yield nil")
	}
}

func TestVelocitySpectrumStaticTarget(t *testing.T) {
	// A static reflection is identical in every sweep, so all its
	// energy lands in the zero-velocity bin.
	const sweeps = 8
	result := syntheticResult(sweeps, 4, func(sweep, point int) complex128 {
		if point == 2 {
			return complex(100, 0)
		}
		return 0
	})

	spectrum := VelocitySpectrum(result.Frame())
	zeroBin := sweeps / 2
	for b := range spectrum {
		if b == zeroBin {
			if spectrum[b][2] < 700 { // 8 sweeps * 100 amplitude
				t.Errorf("zero bin amplitude = %v, want ~800", spectrum[b][2])
			}
			continue
		}
		if spectrum[b][2] > 1e-6 {
			t.Errorf("bin %d amplitude = %v, want 0", b, spectrum[b][2])
		}
	}
}

func TestPeakVelocityMovingTarget(t *testing.T) {
	// A target rotating one full phase cycle per 4 sweeps concentrates
	// in a single non-zero bin.
	const sweeps = 8
	result := syntheticResult(sweeps, 4, func(sweep, point int) complex128 {
		if point != 2 {
			return 0
		}
		phase := 2 * math.Pi * float64(sweep) / 4
		return cmplx.Rect(100, phase)
	})

	cfg := pointConfig(80, 4, 24, sweeps)
	cfg.SweepRate = 1000

	vel, ok := PeakVelocity(result.Frame(), cfg, radar.Metadata{})
	if !ok {
		t.Fatal("expected a moving peak")
	}
	// Phase advances 1/4 cycle per sweep: bin index +2 of 8, so
	// velocity is sweep_rate * base_step / 4.
	want := 1000 * radar.ApproxBaseStepLengthM / 4
	if math.Abs(vel-want) > 1e-9 {
		t.Errorf("velocity = %v, want %v", vel, want)
	}
}

func TestDistanceProcessor(t *testing.T) {
	cfg := pointConfig(400, 5, 24, 2)
	dp, err := NewDistanceProcessor(cfg)
	if err != nil {
		t.Fatal(err)
	}

	// Peak exactly on point 2: start 400 + 2*24 = 448 points.
	result := syntheticResult(2, 5, func(sweep, point int) complex128 {
		if point == 2 {
			return complex(100, 0)
		}
		return complex(10, 0)
	})

	dist, found := dp.Process(result)
	if !found {
		t.Fatal("expected a detection")
	}
	want := 448 * radar.ApproxBaseStepLengthM
	if math.Abs(dist-want) > 1e-9 {
		t.Errorf("distance = %v, want %v", dist, want)
	}
}

func TestDistanceProcessorInterpolates(t *testing.T) {
	cfg := pointConfig(400, 5, 24, 1)
	dp, err := NewDistanceProcessor(cfg)
	if err != nil {
		t.Fatal(err)
	}

	// Asymmetric shoulder pulls the refined peak toward point 3.
	amps := []float64{10, 40, 100, 90, 10}
	result := syntheticResult(1, 5, func(sweep, point int) complex128 {
		return complex(amps[point], 0)
	})

	dist, found := dp.Process(result)
	if !found {
		t.Fatal("expected a detection")
	}
	onGrid := (400 + 2*24) * radar.ApproxBaseStepLengthM
	step := 24 * radar.ApproxBaseStepLengthM
	if dist <= onGrid || dist >= onGrid+step/2 {
		t.Errorf("interpolated distance %v should sit between %v and %v", dist, onGrid, onGrid+step/2)
	}
}

func TestDistanceProcessorThreshold(t *testing.T) {
	cfg := pointConfig(400, 5, 24, 1)
	dp, err := NewDistanceProcessor(cfg)
	if err != nil {
		t.Fatal(err)
	}
	dp.Threshold = 1000

	result := syntheticResult(1, 5, func(sweep, point int) complex128 {
		return complex(10, 0)
	})
	if _, found := dp.Process(result); found {
		t.Error("low amplitude frame should not clear the threshold")
	}
}

func TestDistanceProcessorRejectsMultiSubsweep(t *testing.T) {
	cfg := radar.DefaultSensorConfig()
	cfg.Subsweeps = append(cfg.Subsweeps, radar.DefaultSubsweep())
	if _, err := NewDistanceProcessor(cfg); err == nil {
		t.Error("expected error for multi-subsweep config")
	}
}

func TestPresenceProcessor(t *testing.T) {
	cfg := pointConfig(400, 5, 24, 2)
	pp := NewPresenceProcessor(cfg, 10, 0.3)

	static := func(sweep, point int) complex128 { return complex(100, 0) }

	// A static scene settles to a near-zero score.
	var last PresenceResult
	for i := 0; i < 50; i++ {
		last = pp.Process(syntheticResult(2, 5, static))
	}
	if last.Detected {
		t.Fatalf("static scene detected presence, score %v", last.Score)
	}

	// A sudden amplitude change at point 3 drives the fast filter away
	// from the slow one.
	moving := func(sweep, point int) complex128 {
		if point == 3 {
			return complex(1000, 0)
		}
		return complex(100, 0)
	}
	var detected bool
	for i := 0; i < 10; i++ {
		res := pp.Process(syntheticResult(2, 5, moving))
		if res.Detected {
			detected = true
			if want := (400 + 3*24) * radar.ApproxBaseStepLengthM; math.Abs(res.ScoreDistanceM-want) > 1e-9 {
				t.Errorf("detection distance = %v, want %v", res.ScoreDistanceM, want)
			}
			break
		}
	}
	if !detected {
		t.Error("amplitude step was never detected")
	}

	pp.Reset()
	first := pp.Process(syntheticResult(2, 5, moving))
	if first.Detected {
		t.Error("first frame after reset must not detect")
	}
}

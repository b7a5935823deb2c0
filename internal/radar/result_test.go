package radar

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func testMetadata(sweeps, points int) Metadata {
	return Metadata{
		FrameDataLength:    sweeps * points,
		SweepDataLength:    points,
		SubsweepDataOffset: []int{0},
		SubsweepDataLength: []int{points},
		BaseStepLengthM:    ApproxBaseStepLengthM,
	}
}

func TestResultFrame(t *testing.T) {
	// 2 sweeps x 3 points, interleaved re/im pairs.
	iq := []int16{
		1, -1, 2, -2, 3, -3, // sweep 0
		4, -4, 5, -5, 6, -6, // sweep 1
	}
	result := NewResult(ResultInfo{Tick: 100}, iq, testMetadata(2, 3), 1000)

	want := [][]complex128{
		{complex(1, -1), complex(2, -2), complex(3, -3)},
		{complex(4, -4), complex(5, -5), complex(6, -6)},
	}
	if diff := cmp.Diff(want, result.Frame()); diff != "" {
		t.Errorf("Frame mismatch (-want +got):\n%s", diff)
	}
}

func TestResultTickTime(t *testing.T) {
	result := NewResult(ResultInfo{Tick: 1500}, nil, Metadata{}, 1000)
	if got := result.TickTime(); got != 1.5 {
		t.Errorf("TickTime() = %v, want 1.5", got)
	}

	noRate := NewResult(ResultInfo{Tick: 1500}, nil, Metadata{}, 0)
	if got := noRate.TickTime(); got != 0 {
		t.Errorf("TickTime() without tick rate = %v, want 0", got)
	}
}

func TestResultSubframes(t *testing.T) {
	metadata := Metadata{
		FrameDataLength:    8,
		SweepDataLength:    4,
		SubsweepDataOffset: []int{0, 3},
		SubsweepDataLength: []int{3, 1},
	}
	iq := make([]int16, 16)
	for i := range iq {
		iq[i] = int16(i)
	}
	result := NewResult(ResultInfo{}, iq, metadata, 1000)

	subframes := result.Subframes()
	if len(subframes) != 2 {
		t.Fatalf("got %d subframes, want 2", len(subframes))
	}
	if len(subframes[0][0]) != 3 || len(subframes[1][0]) != 1 {
		t.Errorf("subframe widths = %d, %d, want 3, 1", len(subframes[0][0]), len(subframes[1][0]))
	}
	// Second subsweep of the first sweep starts at sample 3: values 6, 7.
	if got := subframes[1][0][0]; got != complex(6, 7) {
		t.Errorf("subframes[1][0][0] = %v, want (6+7i)", got)
	}
}

func TestMetadataFrameShape(t *testing.T) {
	m := testMetadata(16, 160)
	sweeps, points := m.FrameShape()
	if sweeps != 16 || points != 160 {
		t.Errorf("FrameShape() = (%d, %d), want (16, 160)", sweeps, points)
	}

	var zero Metadata
	sweeps, points = zero.FrameShape()
	if sweeps != 0 || points != 0 {
		t.Errorf("zero FrameShape() = (%d, %d), want (0, 0)", sweeps, points)
	}
}

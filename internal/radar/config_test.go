package radar

import (
	"testing"
)

func TestSensorConfigValidate(t *testing.T) {
	mutate := func(f func(*SensorConfig)) SensorConfig {
		cfg := DefaultSensorConfig()
		f(&cfg)
		return cfg
	}

	tests := []struct {
		name    string
		cfg     SensorConfig
		wantErr bool
	}{
		{"default", DefaultSensorConfig(), false},
		{"no subsweeps", mutate(func(c *SensorConfig) { c.Subsweeps = nil }), true},
		{"too many subsweeps", mutate(func(c *SensorConfig) {
			for i := 0; i < MaxSubsweeps; i++ {
				c.Subsweeps = append(c.Subsweeps, DefaultSubsweep())
			}
		}), true},
		{"max subsweeps", mutate(func(c *SensorConfig) {
			for i := 1; i < MaxSubsweeps; i++ {
				c.Subsweeps = append(c.Subsweeps, DefaultSubsweep())
			}
		}), false},
		{"bad subsweep", mutate(func(c *SensorConfig) { c.Subsweeps[0].HWAAS = 0 }), true},
		{"zero sweeps per frame", mutate(func(c *SensorConfig) { c.SweepsPerFrame = 0 }), true},
		{"negative frame rate", mutate(func(c *SensorConfig) { c.FrameRate = -1 }), true},
		{"frame idle shallower than sweep idle", mutate(func(c *SensorConfig) {
			c.InterFrameIdleState = IdleStateReady
			c.InterSweepIdleState = IdleStateSleep
		}), true},
		{"equal idle states", mutate(func(c *SensorConfig) {
			c.InterFrameIdleState = IdleStateSleep
			c.InterSweepIdleState = IdleStateSleep
		}), false},
		{"continuous sweep without sweep rate", mutate(func(c *SensorConfig) {
			c.ContinuousSweepMode = true
			c.InterFrameIdleState = IdleStateReady
			c.InterSweepIdleState = IdleStateReady
		}), true},
		{"continuous sweep with unequal idle states", mutate(func(c *SensorConfig) {
			c.ContinuousSweepMode = true
			c.SweepRate = 1000
		}), true},
		{"continuous sweep valid", mutate(func(c *SensorConfig) {
			c.ContinuousSweepMode = true
			c.SweepRate = 1000
			c.InterFrameIdleState = IdleStateReady
			c.InterSweepIdleState = IdleStateReady
		}), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSensorConfigNumPoints(t *testing.T) {
	cfg := DefaultSensorConfig()
	if got := cfg.NumPoints(); got != 160 {
		t.Errorf("NumPoints() = %d, want 160", got)
	}

	sub := DefaultSubsweep()
	sub.NumPoints = 40
	cfg.Subsweeps = append(cfg.Subsweeps, sub)
	if got := cfg.NumPoints(); got != 200 {
		t.Errorf("NumPoints() with two subsweeps = %d, want 200", got)
	}
}

func TestSingleSubsweepAccessorsPanic(t *testing.T) {
	cfg := DefaultSensorConfig()
	cfg.Subsweeps = append(cfg.Subsweeps, DefaultSubsweep())

	defer func() {
		if recover() == nil {
			t.Error("expected panic from single-subsweep accessor on multi-subsweep config")
		}
	}()
	cfg.StartPoint()
}

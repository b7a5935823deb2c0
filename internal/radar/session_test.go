package radar

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNewSessionConfig(t *testing.T) {
	sc, err := NewSessionConfig(1, DefaultSensorConfig())
	if err != nil {
		t.Fatalf("NewSessionConfig: %v", err)
	}
	if sc.Extended() {
		t.Error("single-sensor session should not be extended")
	}

	id, cfg, err := sc.Single()
	if err != nil {
		t.Fatalf("Single: %v", err)
	}
	if id != 1 {
		t.Errorf("sensor id = %d, want 1", id)
	}
	if diff := cmp.Diff(DefaultSensorConfig(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}

	if _, err := NewSessionConfig(0, DefaultSensorConfig()); err == nil {
		t.Error("expected error for sensor id 0")
	}
}

func TestSessionConfigExtended(t *testing.T) {
	cfg := DefaultSensorConfig()

	multiSensor := SessionConfig{Groups: []map[int]SensorConfig{{1: cfg, 2: cfg}}}
	if !multiSensor.Extended() {
		t.Error("two sensors in one group should be extended")
	}

	multiGroup := SessionConfig{Groups: []map[int]SensorConfig{{1: cfg}, {1: cfg}}}
	if !multiGroup.Extended() {
		t.Error("two groups should be extended")
	}

	if _, _, err := multiGroup.Single(); err == nil {
		t.Error("Single on extended session should fail")
	}
}

func TestSessionConfigSensorIDs(t *testing.T) {
	cfg := DefaultSensorConfig()
	sc := SessionConfig{Groups: []map[int]SensorConfig{
		{3: cfg, 1: cfg},
		{2: cfg, 3: cfg},
	}}

	want := []int{1, 2, 3}
	if diff := cmp.Diff(want, sc.SensorIDs()); diff != "" {
		t.Errorf("SensorIDs mismatch (-want +got):\n%s", diff)
	}
}

func TestUnextend(t *testing.T) {
	got, err := Unextend([]map[int]string{{2: "only"}})
	if err != nil {
		t.Fatalf("Unextend: %v", err)
	}
	if got != "only" {
		t.Errorf("Unextend = %q, want %q", got, "only")
	}

	if _, err := Unextend([]map[int]string{{1: "a", 2: "b"}}); err == nil {
		t.Error("expected error for two sensors")
	}
	if _, err := Unextend([]map[int]string{{1: "a"}, {2: "b"}}); err == nil {
		t.Error("expected error for two groups")
	}
	if _, err := Unextend([]map[int]string{}); err == nil {
		t.Error("expected error for no groups")
	}
}

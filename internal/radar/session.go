package radar

import (
	"fmt"
	"sort"
)

// SessionConfig maps sensor ids to their SensorConfig, organised in
// groups. All sensors within a group are sampled as one logical frame;
// multiple groups are sampled in sequence. A session with more than one
// group or more than one sensor is "extended": its results keep the
// group/sensor structure instead of collapsing to a single Result.
type SessionConfig struct {
	Groups []map[int]SensorConfig `json:"groups"`

	// UpdateRate is the rate at which the server produces extended
	// frames, in Hz. Zero means as fast as the configs allow.
	UpdateRate float64 `json:"update_rate,omitempty"`
}

// NewSessionConfig builds a validated single-group, single-sensor
// session for the given sensor id.
func NewSessionConfig(sensorID int, cfg SensorConfig) (SessionConfig, error) {
	sc := SessionConfig{Groups: []map[int]SensorConfig{{sensorID: cfg}}}
	if err := sc.Validate(); err != nil {
		return SessionConfig{}, err
	}
	return sc, nil
}

// Validate checks group structure and every contained SensorConfig.
func (sc SessionConfig) Validate() error {
	if len(sc.Groups) == 0 {
		return fmt.Errorf("session config has no groups")
	}
	for i, group := range sc.Groups {
		if len(group) == 0 {
			return fmt.Errorf("group %d is empty", i)
		}
		for sensorID, cfg := range group {
			if sensorID < 1 {
				return fmt.Errorf("group %d: invalid sensor id %d", i, sensorID)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("group %d, sensor %d: %w", i, sensorID, err)
			}
		}
	}
	if sc.UpdateRate < 0 {
		return fmt.Errorf("update_rate must be >= 0, got %v", sc.UpdateRate)
	}
	return nil
}

// Extended reports whether results keep the group/sensor structure.
func (sc SessionConfig) Extended() bool {
	return len(sc.Groups) != 1 || len(sc.Groups[0]) != 1
}

// SensorIDs returns the distinct sensor ids referenced by the session,
// sorted ascending.
func (sc SessionConfig) SensorIDs() []int {
	seen := map[int]bool{}
	for _, group := range sc.Groups {
		for id := range group {
			seen[id] = true
		}
	}
	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Single returns the sole (sensorID, config) pair of a non-extended
// session.
func (sc SessionConfig) Single() (int, SensorConfig, error) {
	if sc.Extended() {
		return 0, SensorConfig{}, fmt.Errorf("session config is extended")
	}
	for id, cfg := range sc.Groups[0] {
		return id, cfg, nil
	}
	return 0, SensorConfig{}, fmt.Errorf("session config has no groups")
}

// Unextend collapses a per-group, per-sensor structure to its single
// element. It fails unless the structure holds exactly one entry.
func Unextend[T any](extended []map[int]T) (T, error) {
	var zero T
	if len(extended) != 1 {
		return zero, fmt.Errorf("expected exactly one group, got %d", len(extended))
	}
	if len(extended[0]) != 1 {
		return zero, fmt.Errorf("expected exactly one sensor, got %d", len(extended[0]))
	}
	for _, v := range extended[0] {
		return v, nil
	}
	return zero, nil
}

package record

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/exploration/internal/client"
	"github.com/banshee-data/exploration/internal/protocol"
	"github.com/banshee-data/exploration/internal/radar"
)

// SQLiteRecorder implements client.Recorder against a Store. One
// recorder may persist several sessions in sequence; each start/stop
// pair becomes its own session row.
type SQLiteRecorder struct {
	store     *Store
	ownsStore bool

	mu          sync.Mutex
	sessionUUID string
	frameIndex  int64
}

// NewRecorder persists sessions into an already open store. The caller
// keeps ownership of the store.
func NewRecorder(store *Store) *SQLiteRecorder {
	return &SQLiteRecorder{store: store}
}

// NewFileRecorder opens (creating if needed) the database at path and
// returns a recorder that owns it. Close releases the database.
func NewFileRecorder(path string) (*SQLiteRecorder, error) {
	store, err := NewStore(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteRecorder{store: store, ownsStore: true}, nil
}

// UUID returns the identifier of the session being recorded, or ""
// outside a session.
func (r *SQLiteRecorder) UUID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessionUUID
}

// StartSession writes the session row. The sample context arrives as
// JSON columns so the schema does not chase the config surface.
func (r *SQLiteRecorder) StartSession(info client.SessionInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessionUUID != "" {
		return fmt.Errorf("recorder already has an open session %s", r.sessionUUID)
	}

	clientJSON, err := json.Marshal(info.ClientInfo)
	if err != nil {
		return fmt.Errorf("marshal client info: %w", err)
	}
	serverJSON, err := json.Marshal(info.ServerInfo)
	if err != nil {
		return fmt.Errorf("marshal server info: %w", err)
	}
	configJSON, err := json.Marshal(info.SessionConfig)
	if err != nil {
		return fmt.Errorf("marshal session config: %w", err)
	}
	metadataJSON, err := json.Marshal(info.ExtendedMetadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	id := uuid.New().String()
	_, err = r.store.Exec(
		`INSERT INTO sessions (
			uuid, started_at, lib_version, ticks_per_second,
			client_info, server_info, session_config, extended_metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, time.Now().UTC(), info.LibVersion, info.TicksPerSecond,
		string(clientJSON), string(serverJSON), string(configJSON), string(metadataJSON),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	r.sessionUUID = id
	r.frameIndex = 0
	return nil
}

// Sample persists one extended frame. All per-sensor rows of the frame
// commit in a single transaction.
func (r *SQLiteRecorder) Sample(results []map[int]radar.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessionUUID == "" {
		return fmt.Errorf("recorder has no open session")
	}

	tx, err := r.store.Begin()
	if err != nil {
		return fmt.Errorf("begin frame transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO frames (
			session_uuid, frame_index, group_index, sensor_id,
			tick, data_saturated, frame_delayed, calibration_needed, temperature, iq
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("prepare frame insert: %w", err)
	}
	defer stmt.Close()

	for groupIdx, group := range results {
		for sensorID, result := range group {
			_, err := stmt.Exec(
				r.sessionUUID, r.frameIndex, groupIdx, sensorID,
				result.Tick, result.DataSaturated, result.FrameDelayed,
				result.CalibrationNeeded, result.Temperature,
				protocol.EncodeIQ(result.RawIQ()),
			)
			if err != nil {
				return fmt.Errorf("insert frame %d sensor %d: %w", r.frameIndex, sensorID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit frame %d: %w", r.frameIndex, err)
	}
	r.frameIndex++
	return nil
}

// StopSession closes the current session row. The recorder can start a
// new session afterwards.
func (r *SQLiteRecorder) StopSession() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessionUUID == "" {
		return fmt.Errorf("recorder has no open session")
	}
	r.sessionUUID = ""
	r.frameIndex = 0
	return nil
}

// Close releases the store if this recorder owns it.
func (r *SQLiteRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessionUUID = ""
	if r.ownsStore {
		return r.store.Close()
	}
	return nil
}

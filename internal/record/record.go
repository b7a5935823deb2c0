package record

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/banshee-data/exploration/internal/client"
	"github.com/banshee-data/exploration/internal/protocol"
	"github.com/banshee-data/exploration/internal/radar"
)

// PersistentRecord reads one recorded session lazily from its store.
// Frames stay on disk until asked for, so long recordings do not need
// to fit in memory.
type PersistentRecord struct {
	store     *Store
	ownsStore bool

	uuid       string
	startedAt  time.Time
	libVersion string
	info       client.SessionInfo
	numFrames  int
}

// OpenRecord opens the database at path and loads its newest session.
// Close releases the database handle.
func OpenRecord(path string) (*PersistentRecord, error) {
	store, err := NewStore(path)
	if err != nil {
		return nil, err
	}
	rec, err := openSession(store, "")
	if err != nil {
		store.Close()
		return nil, err
	}
	rec.ownsStore = true
	return rec, nil
}

// OpenSession loads the session with the given uuid from an already
// open store, or the newest session if uuid is empty. The caller keeps
// ownership of the store.
func OpenSession(store *Store, uuid string) (*PersistentRecord, error) {
	return openSession(store, uuid)
}

func openSession(store *Store, uuid string) (*PersistentRecord, error) {
	var row *sql.Row
	if uuid == "" {
		row = store.QueryRow(
			`SELECT uuid, started_at, lib_version, ticks_per_second,
				client_info, server_info, session_config, extended_metadata
			FROM sessions ORDER BY started_at DESC, uuid LIMIT 1`)
	} else {
		row = store.QueryRow(
			`SELECT uuid, started_at, lib_version, ticks_per_second,
				client_info, server_info, session_config, extended_metadata
			FROM sessions WHERE uuid = ?`, uuid)
	}

	rec := &PersistentRecord{store: store}
	var clientJSON, serverJSON, configJSON, metadataJSON string
	err := row.Scan(
		&rec.uuid, &rec.startedAt, &rec.libVersion, &rec.info.TicksPerSecond,
		&clientJSON, &serverJSON, &configJSON, &metadataJSON,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no recorded session found")
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	rec.info.LibVersion = rec.libVersion

	if err := json.Unmarshal([]byte(clientJSON), &rec.info.ClientInfo); err != nil {
		return nil, fmt.Errorf("decode client info: %w", err)
	}
	if err := json.Unmarshal([]byte(serverJSON), &rec.info.ServerInfo); err != nil {
		return nil, fmt.Errorf("decode server info: %w", err)
	}
	if err := json.Unmarshal([]byte(configJSON), &rec.info.SessionConfig); err != nil {
		return nil, fmt.Errorf("decode session config: %w", err)
	}
	if err := json.Unmarshal([]byte(metadataJSON), &rec.info.ExtendedMetadata); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}

	err = store.QueryRow(
		`SELECT COUNT(DISTINCT frame_index) FROM frames WHERE session_uuid = ?`,
		rec.uuid,
	).Scan(&rec.numFrames)
	if err != nil {
		return nil, fmt.Errorf("count frames: %w", err)
	}
	return rec, nil
}

func (r *PersistentRecord) UUID() string         { return r.uuid }
func (r *PersistentRecord) Timestamp() time.Time { return r.startedAt }
func (r *PersistentRecord) LibVersion() string   { return r.libVersion }
func (r *PersistentRecord) NumFrames() int       { return r.numFrames }
func (r *PersistentRecord) TicksPerSecond() int  { return r.info.TicksPerSecond }

func (r *PersistentRecord) ClientInfo() radar.ClientInfo       { return r.info.ClientInfo }
func (r *PersistentRecord) ServerInfo() radar.ServerInfo       { return r.info.ServerInfo }
func (r *PersistentRecord) SessionConfig() radar.SessionConfig { return r.info.SessionConfig }

// ExtendedMetadata returns the per-group, per-sensor metadata captured
// at setup time.
func (r *PersistentRecord) ExtendedMetadata() []map[int]radar.Metadata {
	return r.info.ExtendedMetadata
}

// SessionInfo returns the full recorded session context.
func (r *PersistentRecord) SessionInfo() client.SessionInfo { return r.info }

// FrameAt loads the extended results for one frame index.
func (r *PersistentRecord) FrameAt(index int) ([]map[int]radar.Result, error) {
	if index < 0 || index >= r.numFrames {
		return nil, fmt.Errorf("frame index %d out of range [0, %d)", index, r.numFrames)
	}

	rows, err := r.store.Query(
		`SELECT group_index, sensor_id, tick, data_saturated, frame_delayed,
			calibration_needed, temperature, iq
		FROM frames WHERE session_uuid = ? AND frame_index = ?
		ORDER BY group_index, sensor_id`,
		r.uuid, index,
	)
	if err != nil {
		return nil, fmt.Errorf("load frame %d: %w", index, err)
	}
	defer rows.Close()

	results := make([]map[int]radar.Result, len(r.info.ExtendedMetadata))
	for i := range results {
		results[i] = make(map[int]radar.Result)
	}

	for rows.Next() {
		var (
			groupIdx, sensorID int
			info               radar.ResultInfo
			blob               []byte
		)
		err := rows.Scan(
			&groupIdx, &sensorID, &info.Tick, &info.DataSaturated,
			&info.FrameDelayed, &info.CalibrationNeeded, &info.Temperature, &blob,
		)
		if err != nil {
			return nil, fmt.Errorf("scan frame %d: %w", index, err)
		}
		if groupIdx >= len(results) {
			return nil, fmt.Errorf("frame %d references group %d beyond recorded metadata", index, groupIdx)
		}
		metadata, ok := r.info.ExtendedMetadata[groupIdx][sensorID]
		if !ok {
			return nil, fmt.Errorf("frame %d references sensor %d with no recorded metadata", index, sensorID)
		}
		results[groupIdx][sensorID] = radar.NewResult(
			info, protocol.DecodeIQ(blob), metadata, r.info.TicksPerSecond)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// ExtendedResults loads every frame of the session in order. Prefer
// FrameAt for long recordings.
func (r *PersistentRecord) ExtendedResults() ([][]map[int]radar.Result, error) {
	frames := make([][]map[int]radar.Result, 0, r.numFrames)
	for i := 0; i < r.numFrames; i++ {
		frame, err := r.FrameAt(i)
		if err != nil {
			return nil, err
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

// Close releases the store if this record owns it.
func (r *PersistentRecord) Close() error {
	if r.ownsStore {
		return r.store.Close()
	}
	return nil
}

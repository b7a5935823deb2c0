// Package monitor exposes a running session over HTTP for debugging: a
// live frame tail as server-sent events and, when a record store is
// attached, a SQL console over the recorded data.
package monitor

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"

	"github.com/banshee-data/exploration/internal/client"
	"github.com/banshee-data/exploration/internal/processing"
	"github.com/banshee-data/exploration/internal/radar"
	"github.com/banshee-data/exploration/internal/record"
)

// frameSummary is the SSE payload for one streamed frame: enough to
// watch a session without shipping raw IQ over HTTP.
type frameSummary struct {
	Group         int     `json:"group"`
	SensorID      int     `json:"sensor_id"`
	Tick          int64   `json:"tick"`
	Temperature   int     `json:"temperature"`
	DataSaturated bool    `json:"data_saturated"`
	FrameDelayed  bool    `json:"frame_delayed"`
	MeanAmplitude float64 `json:"mean_amplitude"`
}

func summarize(results []map[int]radar.Result) []frameSummary {
	var out []frameSummary
	for groupIdx, group := range results {
		for sensorID, result := range group {
			mean := processing.MeanSweepAbs(result.Frame())
			var avg float64
			for _, m := range mean {
				avg += m
			}
			if len(mean) > 0 {
				avg /= float64(len(mean))
			}
			out = append(out, frameSummary{
				Group:         groupIdx,
				SensorID:      sensorID,
				Tick:          result.Tick,
				Temperature:   result.Temperature,
				DataSaturated: result.DataSaturated,
				FrameDelayed:  result.FrameDelayed,
				MeanAmplitude: avg,
			})
		}
	}
	return out
}

// AttachAdminRoutes mounts the debug surface on mux: an SSE tail of
// frames from the runner and, when store is non-nil, a tailsql console
// over the record database. Callers typically serve mux on localhost
// only.
func AttachAdminRoutes(mux *http.ServeMux, runner *client.Runner, store *record.Store) {
	debug := tsweb.Debugger(mux)

	// API endpoint to issue Server-Sent Events (SSE) for frames coming
	// off the stream.
	debug.HandleSilentFunc("tail", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no") // Disable buffering for nginx

		id, events := runner.Subscribe()
		defer runner.Unsubscribe(id)

		// Send initial ping to establish connection
		w.Write([]byte(": ping\n\n"))
		w.(http.Flusher).Flush()

		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				payload, err := encodeEvent(ev)
				if err != nil {
					continue
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
					return
				}
				w.(http.Flusher).Flush()
			case <-r.Context().Done():
				return
			}
		}
	})

	if store == nil {
		return
	}

	// create a tailSQL instance and point it to our record DB
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		log.Fatalf("failed to create tailsql server: %v", err)
	}
	tsql.SetDB("sqlite://"+store.Path, store.DB, &tailsql.DBOptions{
		Label: "Session records",
	})

	// mount the tailSQL server on the debug /tailsql path
	debug.Handle("tailsql/", "SQL console over recorded sessions", tsql.NewMux())
}

func encodeEvent(ev client.Event) ([]byte, error) {
	switch ev.Kind {
	case client.EventFrame:
		return json.Marshal(map[string]any{
			"event":  "frame",
			"frames": summarize(ev.Results),
		})
	case client.EventError:
		return json.Marshal(map[string]any{
			"event": "error",
			"error": ev.Err.Error(),
		})
	case client.EventState:
		msg := map[string]any{
			"event": "state",
			"state": ev.State.String(),
		}
		if ev.Err != nil {
			msg["error"] = ev.Err.Error()
		}
		return json.Marshal(msg)
	}
	return nil, fmt.Errorf("unknown event kind %d", ev.Kind)
}

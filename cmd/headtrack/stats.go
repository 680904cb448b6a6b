package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/banshee-data/headtrack/internal/pipeline"
	"github.com/banshee-data/headtrack/internal/protocol"
	"github.com/banshee-data/headtrack/internal/tracker"
	"github.com/banshee-data/headtrack/internal/tracklog"
	"tailscale.com/tsweb"
)

type trackerStats struct {
	Samples   uint64     `json:"samples"`
	Last      *time.Time `json:"last,omitempty"`
	Malformed *uint64    `json:"malformed,omitempty"`
}

type outputStats struct {
	Dropped uint64 `json:"dropped"`
	Failed  uint64 `json:"failed"`
}

type recorderStats struct {
	Session string `json:"session"`
	Written int64  `json:"written"`
	Dropped int64  `json:"dropped"`
}

type statsSnapshot struct {
	Tracker  *trackerStats  `json:"tracker,omitempty"`
	Output   *outputStats   `json:"output,omitempty"`
	Recorder *recorderStats `json:"recorder,omitempty"`
}

// statsSources are the plugins whose counters the stats route reports.
// Any of them may be nil.
type statsSources struct {
	tracker  pipeline.Tracker
	output   *protocol.UDP
	recorder *tracklog.Recorder
}

func (s statsSources) snapshot() statsSnapshot {
	var snap statsSnapshot
	if st, ok := s.tracker.(interface{ Stats() tracker.Stats }); ok {
		ts := st.Stats()
		snap.Tracker = &trackerStats{Samples: ts.Samples}
		if !ts.Last.IsZero() {
			snap.Tracker.Last = &ts.Last
		}
		if m, ok := s.tracker.(interface{ Malformed() uint64 }); ok {
			n := m.Malformed()
			snap.Tracker.Malformed = &n
		}
	}
	if s.output != nil {
		snap.Output = &outputStats{Dropped: s.output.Dropped(), Failed: s.output.Failed()}
	}
	if s.recorder != nil {
		snap.Recorder = &recorderStats{
			Session: s.recorder.SessionID(),
			Written: s.recorder.Written(),
			Dropped: s.recorder.Dropped(),
		}
	}
	return snap
}

// attachStatsRoute registers /debug/stats with plugin counters.
func attachStatsRoute(mux *http.ServeMux, src statsSources) {
	tsweb.Debugger(mux).HandleFunc("stats", "tracker, output and recorder counters", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(src.snapshot()); err != nil {
			http.Error(w, "failed to encode stats", http.StatusInternalServerError)
		}
	})
}

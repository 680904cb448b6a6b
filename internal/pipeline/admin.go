package pipeline

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/banshee-data/headtrack/internal/flags"
	"github.com/banshee-data/headtrack/internal/pose"
	"tailscale.com/tsweb"
)

// poseSnapshot is the JSON shape served by the pose debug route.
type poseSnapshot struct {
	Mapped pose.Pose `json:"mapped"`
	Raw    pose.Pose `json:"raw"`
	Flags  string    `json:"flags"`
	Zero   bool      `json:"zero"`
}

// AttachAdminRoutes registers pipeline debugging endpoints under /debug/.
// These routes are accessible only over localhost or Tailscale.
func (p *Pipeline) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.HandleFunc("pose", "current mapped and raw head pose", func(w http.ResponseWriter, r *http.Request) {
		mapped, raw := p.RawAndMappedPose()
		f := p.Flags()
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(poseSnapshot{
			Mapped: mapped,
			Raw:    raw,
			Flags:  f.String(),
			Zero:   f&flags.Zero != 0,
		}); err != nil {
			http.Error(w, "failed to encode pose", http.StatusInternalServerError)
		}
	})

	post := func(name string, action func()) {
		debug.HandleSilentFunc(name, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
				return
			}
			action()
			io.WriteString(w, "ok\n")
		})
	}
	post("center", p.SetCenter)
	post("toggle-zero", p.ToggleZero)
	post("toggle-enabled", p.ToggleEnabled)
}

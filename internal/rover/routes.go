package rover

import (
	"fmt"
	"net/http"

	"tailscale.com/tsweb"

	"github.com/banshee-data/rover/internal/httputil"
	"github.com/banshee-data/rover/internal/nav"
)

// AttachAdminRoutes adds live navigator pages to the tsweb debug index.
func (r *Runner) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	debug.Handle("nav", "Current navigator display page", http.HandlerFunc(r.handleNavPage))
	debug.Handle("nav-status", "Current navigator status as JSON", http.HandlerFunc(r.handleNavStatus))
}

func (r *Runner) handleNavPage(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	for _, l := range nav.Page(r.Status(), r.cfg.Units) {
		fmt.Fprintln(w, l.Text)
	}
	fmt.Fprintf(w, "\nticks: %d\n", r.Ticks())
}

type statusView struct {
	Mode     string  `json:"mode"`
	State    string  `json:"state"`
	Since    string  `json:"since"`
	Command  string  `json:"command"`
	OnLine   bool    `json:"on_line"`
	Position float64 `json:"position,omitempty"`
	Distance float64 `json:"distance,omitempty"`
	Movement string  `json:"movement,omitempty"`
	Ticks    uint64  `json:"ticks"`
}

func (r *Runner) handleNavStatus(w http.ResponseWriter, req *http.Request) {
	s := r.Status()
	v := statusView{
		Mode:     s.Mode,
		State:    s.State.String(),
		Since:    s.Since.Format("15:04:05.000"),
		Command:  s.Command.String(),
		OnLine:   s.OnLine,
		Position: s.Position,
		Movement: s.Movement,
		Ticks:    r.Ticks(),
	}
	if !s.NoEcho {
		v.Distance = s.Distance
	}
	httputil.WriteJSONOK(w, v)
}

package tracklog

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"
)

const defaultChartRows = 2000

// AttachAdminRoutes registers the recorder's debugging endpoints under
// /debug/: live SQL over the session database and a chart of recent
// mapped rotation. These routes are accessible only over localhost or
// Tailscale.
func (r *Recorder) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("failed to create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://"+r.path, r.db, &tailsql.DBOptions{
		Label: "Head tracking sessions",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.HandleFunc("track-chart", "Recent mapped head rotation", r.handleChart)
	return nil
}

func (r *Recorder) handleChart(w http.ResponseWriter, req *http.Request) {
	limit := defaultChartRows
	if s := req.URL.Query().Get("rows"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 && v <= 50000 {
			limit = v
		}
	}

	rows, err := r.RecentRows(limit)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to query rows: %v", err), http.StatusInternalServerError)
		return
	}

	xs := make([]int64, len(rows))
	yaw := make([]opts.LineData, len(rows))
	pitch := make([]opts.LineData, len(rows))
	roll := make([]opts.LineData, len(rows))
	for i, row := range rows {
		xs[i] = row.Seq
		yaw[i] = opts.LineData{Value: row.Mapped[3]}
		pitch[i] = opts.LineData{Value: row.Mapped[4]}
		roll[i] = opts.LineData{Value: row.Mapped[5]}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Head tracking", Width: "1200px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Mapped rotation", Subtitle: fmt.Sprintf("session=%s rows=%d", r.sessionID, len(rows))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "deg", Min: -180, Max: 180}),
	)
	line.SetXAxis(xs).
		AddSeries("yaw", yaw).
		AddSeries("pitch", pitch).
		AddSeries("roll", roll)

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		http.Error(w, fmt.Sprintf("failed to render chart: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"tailscale.com/tsweb"

	"github.com/banshee-data/mocap.bridge/internal/httputil"
	"github.com/banshee-data/mocap.bridge/internal/output"
)

var traceSeries = []struct {
	name  string
	index int
	axis  int // 0 = position (mm), 1 = angle (deg)
}{
	{"x", 0, 0}, {"y", 1, 0}, {"z", 2, 0},
	{"roll", 3, 1}, {"pitch", 4, 1}, {"yaw", 5, 1},
}

// AttachAdminRoutes mounts the live output chart on the tsweb debug page.
func (s *Server) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	debug.HandleFunc("trace", "live chart of recent output vectors", s.handleTraceChart)
}

// renderTrace draws points as one line per output component. Stale ticks
// are drawn too, since they are what the control loop actually saw.
func renderTrace(points []output.TracePoint) (*bytes.Buffer, error) {
	ticks := make([]string, len(points))
	for i, p := range points {
		ticks[i] = strconv.FormatUint(p.Tick, 10)
	}

	fresh := 0
	for _, p := range points {
		if p.Fresh {
			fresh++
		}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Bridge output", Width: "100%", Height: "720px"}),
		charts.WithTitleOpts(opts.Title{Title: "Bridge output", Subtitle: fmt.Sprintf("ticks=%d fresh=%d", len(points), fresh)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "tick", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "mm", Scale: opts.Bool(true)}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}),
	)
	line.ExtendYAxis(opts.YAxis{Name: "deg", Scale: opts.Bool(true)})
	line.SetXAxis(ticks)

	for _, series := range traceSeries {
		data := make([]opts.LineData, len(points))
		for i, p := range points {
			data[i] = opts.LineData{Value: p.Vector[series.index], YAxisIndex: series.axis}
		}
		line.AddSeries(series.name, data, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false), YAxisIndex: series.axis}))
	}

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		return nil, err
	}
	return &buf, nil
}

func (s *Server) handleTraceChart(w http.ResponseWriter, r *http.Request) {
	if s.trace == nil {
		httputil.ServiceUnavailable(w, "trace disabled")
		return
	}
	buf, err := renderTrace(s.trace.Points())
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("render error: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

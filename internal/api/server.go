// Package api serves the bridge's latest output, status and run ledger
// over HTTP.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/mocap.bridge/internal/bridge"
	"github.com/banshee-data/mocap.bridge/internal/db"
	"github.com/banshee-data/mocap.bridge/internal/httputil"
	"github.com/banshee-data/mocap.bridge/internal/monitor"
	"github.com/banshee-data/mocap.bridge/internal/monitoring"
	"github.com/banshee-data/mocap.bridge/internal/output"
	"github.com/banshee-data/mocap.bridge/internal/version"
)

// ANSI escape codes for request logging
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Options wires a Server to the rest of the bridge. Latest is required;
// everything else may be nil.
type Options struct {
	Latest *output.Latest
	Trace  *output.Trace
	Stats  *monitor.TickStats
	DB     *db.DB
	RunID  string
}

type Server struct {
	latest *output.Latest
	trace  *output.Trace
	stats  *monitor.TickStats
	db     *db.DB
	runID  string
}

func NewServer(opts Options) *Server {
	latest := opts.Latest
	if latest == nil {
		latest = &output.Latest{}
	}
	return &Server{
		latest: latest,
		trace:  opts.Trace,
		stats:  opts.Stats,
		db:     opts.DB,
		runID:  opts.RunID,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, status and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/pose", s.showPose)
	mux.HandleFunc("/api/status", s.showStatus)
	mux.HandleFunc("/api/stats", s.showStats)
	mux.HandleFunc("/api/runs", s.listRuns)
	return mux
}

// Vector is the output vector with named components.
type Vector struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// PoseResponse is the body of GET /api/pose.
type PoseResponse struct {
	Tick   uint64 `json:"tick"`
	Fresh  bool   `json:"fresh"`
	Ever   bool   `json:"ever"`
	Frame  uint32 `json:"frame"`
	Bodies int    `json:"bodies"`
	Vector Vector `json:"vector"`
}

func poseFromSnapshot(snap bridge.Snapshot) PoseResponse {
	v := snap.Vector
	return PoseResponse{
		Tick:   snap.Tick,
		Fresh:  snap.Fresh,
		Ever:   snap.Ever,
		Frame:  snap.FrameNumber,
		Bodies: snap.Bodies,
		Vector: Vector{X: v.X(), Y: v.Y(), Z: v.Z(), Roll: v.Roll(), Pitch: v.Pitch(), Yaw: v.Yaw()},
	}
}

func (s *Server) showPose(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireGET(w, r) {
		return
	}
	snap, ok := s.latest.Get()
	if !ok {
		httputil.ServiceUnavailable(w, "no tick has run yet")
		return
	}
	httputil.WriteJSONOK(w, poseFromSnapshot(snap))
}

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	State     bridge.State      `json:"state"`
	Connected bool              `json:"connected"`
	Streaming bool              `json:"streaming"`
	UDPPort   uint16            `json:"udp_port"`
	RunID     string            `json:"run_id,omitempty"`
	Version   string            `json:"version"`
	GitSHA    string            `json:"git_sha"`
	Uptime    float64           `json:"uptime_seconds,omitempty"`
	Counters  bridge.Counters   `json:"counters"`
	Failures  map[string]uint64 `json:"failures"`
}

func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireGET(w, r) {
		return
	}
	snap, _ := s.latest.Get()
	resp := StatusResponse{
		State:     snap.State,
		Connected: snap.Connected,
		Streaming: snap.Streaming,
		UDPPort:   snap.UDPPort,
		RunID:     s.runID,
		Version:   version.Version,
		GitSHA:    version.GitSHA,
		Counters:  snap.Counters,
		Failures:  snap.Counters.FailureMap(),
	}
	if s.stats != nil {
		resp.Uptime = s.stats.GetUptime().Seconds()
	}
	httputil.WriteJSONOK(w, resp)
}

// StatsResponse is the body of GET /api/stats. Window is nil until the
// first stats interval has elapsed.
type StatsResponse struct {
	Uptime float64                `json:"uptime_seconds"`
	Window *monitor.StatsSnapshot `json:"window"`
}

func (s *Server) showStats(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireGET(w, r) {
		return
	}
	if s.stats == nil {
		httputil.ServiceUnavailable(w, "tick statistics disabled")
		return
	}
	httputil.WriteJSONOK(w, StatsResponse{
		Uptime: s.stats.GetUptime().Seconds(),
		Window: s.stats.GetLatestSnapshot(),
	})
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireGET(w, r) {
		return
	}
	if s.db == nil {
		httputil.ServiceUnavailable(w, "run ledger disabled")
		return
	}

	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 || parsed > 1000 {
			httputil.BadRequest(w, "Invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	runs, err := s.db.RecentRuns(limit)
	if err != nil {
		httputil.InternalServerError(w, "Failed to retrieve runs: "+err.Error())
		return
	}
	httputil.WriteJSONOK(w, runs)
}

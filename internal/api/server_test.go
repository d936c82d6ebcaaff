package api

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/banshee-data/mocap.bridge/internal/bridge"
	"github.com/banshee-data/mocap.bridge/internal/db"
	"github.com/banshee-data/mocap.bridge/internal/mocap"
	"github.com/banshee-data/mocap.bridge/internal/monitor"
	"github.com/banshee-data/mocap.bridge/internal/output"
	"github.com/banshee-data/mocap.bridge/internal/testutil"
	"github.com/banshee-data/mocap.bridge/internal/timeutil"
	"github.com/banshee-data/mocap.bridge/internal/version"
)

func serve(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "127.0.0.1:40000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func streamingSnapshot() bridge.Snapshot {
	s := bridge.Snapshot{
		Tick:        12,
		Vector:      mocap.OutputVector{100, 200, 300, 1, 2, 3},
		Fresh:       true,
		Ever:        true,
		FrameNumber: 77,
		Bodies:      2,
		State:       bridge.StateConnectedStreaming,
		Connected:   true,
		Streaming:   true,
		UDPPort:     6734,
	}
	s.Counters.Ticks = 12
	s.Counters.Frames = 10
	s.Counters.Failures[bridge.DecodeSkip] = 4
	return s
}

func TestPoseBeforeFirstTick(t *testing.T) {
	srv := NewServer(Options{})
	rec := serve(t, srv.ServeMux(), http.MethodGet, "/api/pose")
	testutil.AssertStatusCode(t, rec.Code, http.StatusServiceUnavailable)
}

func TestPose(t *testing.T) {
	latest := &output.Latest{}
	latest.Publish(streamingSnapshot())
	srv := NewServer(Options{Latest: latest})

	rec := serve(t, srv.ServeMux(), http.MethodGet, "/api/pose")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var got PoseResponse
	testutil.DecodeJSON(t, rec, &got)
	want := PoseResponse{
		Tick: 12, Fresh: true, Ever: true, Frame: 77, Bodies: 2,
		Vector: Vector{X: 100, Y: 200, Z: 300, Roll: 1, Pitch: 2, Yaw: 3},
	}
	if got != want {
		t.Errorf("pose = %+v, want %+v", got, want)
	}
}

func TestStatus(t *testing.T) {
	latest := &output.Latest{}
	latest.Publish(streamingSnapshot())
	stats := monitor.NewTickStats(timeutil.NewMockClock(time.Unix(0, 0)))
	srv := NewServer(Options{Latest: latest, Stats: stats, RunID: "run-1"})

	rec := serve(t, srv.ServeMux(), http.MethodGet, "/api/status")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var got StatusResponse
	testutil.DecodeJSON(t, rec, &got)
	if got.State != bridge.StateConnectedStreaming {
		t.Errorf("state = %v", got.State)
	}
	if !got.Connected || !got.Streaming || got.UDPPort != 6734 {
		t.Errorf("session = %+v", got)
	}
	if got.RunID != "run-1" || got.Version != version.Version {
		t.Errorf("run_id = %q version = %q", got.RunID, got.Version)
	}
	if got.Counters.Ticks != 12 || got.Counters.Frames != 10 {
		t.Errorf("counters = %+v", got.Counters)
	}
	if got.Failures["decode-skip"] != 4 {
		t.Errorf("failures = %v", got.Failures)
	}
}

func TestStatusBeforeFirstTick(t *testing.T) {
	srv := NewServer(Options{})
	rec := serve(t, srv.ServeMux(), http.MethodGet, "/api/status")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var got StatusResponse
	testutil.DecodeJSON(t, rec, &got)
	if got.State != bridge.StateUninitialized || got.Connected {
		t.Errorf("status = %+v", got)
	}
}

func TestStats(t *testing.T) {
	testutil.MuteLogs(t)
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	stats := monitor.NewTickStats(clock)
	srv := NewServer(Options{Stats: stats})

	rec := serve(t, srv.ServeMux(), http.MethodGet, "/api/stats")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	var before StatsResponse
	testutil.DecodeJSON(t, rec, &before)
	if before.Window != nil {
		t.Errorf("window before logging = %+v", before.Window)
	}

	for i := 0; i < 4; i++ {
		stats.AddTick(true)
		clock.Advance(250 * time.Millisecond)
	}
	stats.LogStats()

	rec = serve(t, srv.ServeMux(), http.MethodGet, "/api/stats")
	var after StatsResponse
	testutil.DecodeJSON(t, rec, &after)
	if after.Window == nil || after.Window.TicksPerSec != 4 {
		t.Fatalf("window = %+v", after.Window)
	}
	if after.Uptime != 1 {
		t.Errorf("uptime = %v, want 1", after.Uptime)
	}
}

func TestStatsDisabled(t *testing.T) {
	srv := NewServer(Options{})
	rec := serve(t, srv.ServeMux(), http.MethodGet, "/api/stats")
	testutil.AssertStatusCode(t, rec.Code, http.StatusServiceUnavailable)
}

func TestRuns(t *testing.T) {
	testutil.MuteLogs(t)
	ledger, err := db.NewDB(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	defer ledger.Close()

	for i := 0; i < 3; i++ {
		if _, err := ledger.StartRun(db.RunStart{ServerAddress: "10.0.0.1", UDPPort: 6734, StartedAt: time.Unix(int64(i), 0)}); err != nil {
			t.Fatalf("StartRun: %v", err)
		}
	}
	srv := NewServer(Options{DB: ledger})

	rec := serve(t, srv.ServeMux(), http.MethodGet, "/api/runs?limit=2")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	var runs []db.Run
	testutil.DecodeJSON(t, rec, &runs)
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}

	for _, bad := range []string{"0", "-1", "abc", "5000"} {
		rec := serve(t, srv.ServeMux(), http.MethodGet, "/api/runs?limit="+bad)
		testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
	}
}

func TestRunsDisabled(t *testing.T) {
	srv := NewServer(Options{})
	rec := serve(t, srv.ServeMux(), http.MethodGet, "/api/runs")
	testutil.AssertStatusCode(t, rec.Code, http.StatusServiceUnavailable)
}

func TestMethodNotAllowed(t *testing.T) {
	srv := NewServer(Options{})
	for _, path := range []string{"/api/pose", "/api/status", "/api/stats", "/api/runs"} {
		rec := serve(t, srv.ServeMux(), http.MethodPost, path)
		testutil.AssertStatusCode(t, rec.Code, http.StatusMethodNotAllowed)
	}
}

func TestRenderTrace(t *testing.T) {
	trace := output.NewTrace(8)
	for i := uint64(1); i <= 5; i++ {
		s := streamingSnapshot()
		s.Tick = i
		s.Vector[0] = float64(i) * 10
		s.Fresh = i%2 == 1
		trace.Publish(s)
	}

	buf, err := renderTrace(trace.Points())
	if err != nil {
		t.Fatalf("renderTrace: %v", err)
	}
	html := buf.String()
	for _, want := range []string{"Bridge output", "ticks=5 fresh=3", "pitch", "yaw"} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered chart missing %q", want)
		}
	}
}

func TestTraceRoute(t *testing.T) {
	trace := output.NewTrace(4)
	trace.Publish(streamingSnapshot())
	srv := NewServer(Options{Trace: trace})

	mux := http.NewServeMux()
	srv.AttachAdminRoutes(mux)
	rec := serve(t, mux, http.MethodGet, "/debug/trace")
	if rec.Code == http.StatusNotFound {
		t.Fatal("trace route not registered")
	}
	if rec.Code == http.StatusOK && !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html") {
		t.Errorf("content-type = %q", rec.Header().Get("Content-Type"))
	}
}

func TestLoggingMiddleware(t *testing.T) {
	logs := testutil.CaptureLogs(t)
	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := serve(t, h, http.MethodGet, "/api/pose?x=1")
	testutil.AssertStatusCode(t, rec.Code, http.StatusTeapot)
	if !logs.Contains("/api/pose?x=1") || !logs.Contains("418") {
		t.Errorf("log lines = %q", logs.Lines())
	}
}

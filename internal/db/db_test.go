package db

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewDBAppliesMigrations(t *testing.T) {
	db := newTestDB(t)

	version, dirty, err := db.MigrateVersion(MigrationsFS())
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	// Re-running is a no-op.
	require.NoError(t, db.MigrateUp(MigrationsFS()))

	var name string
	require.NoError(t, db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='runs'`).Scan(&name))
	assert.Equal(t, "runs", name)
}

func TestMigrateDown(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.MigrateDown(MigrationsFS()))

	version, _, err := db.MigrateVersion(MigrationsFS())
	require.NoError(t, err)
	assert.Zero(t, version)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE name='runs'`).Scan(&n))
	assert.Zero(t, n)
}

func TestOpenDBLeavesSchemaAlone(t *testing.T) {
	db, err := OpenDB(filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	defer db.Close()

	version, dirty, err := db.MigrateVersion(MigrationsFS())
	require.NoError(t, err)
	assert.Zero(t, version)
	assert.False(t, dirty)
}

func TestMigrateUpCustomFS(t *testing.T) {
	db, err := OpenDB(filepath.Join(t.TempDir(), "custom.db"))
	require.NoError(t, err)
	defer db.Close()

	migrations := fstest.MapFS{
		"000001_widgets.up.sql":   {Data: []byte(`CREATE TABLE widgets (id INTEGER PRIMARY KEY);`)},
		"000001_widgets.down.sql": {Data: []byte(`DROP TABLE widgets;`)},
	}
	require.NoError(t, db.MigrateUp(migrations))
	_, err = db.Exec(`INSERT INTO widgets (id) VALUES (1)`)
	assert.NoError(t, err)
}

func TestRunLifecycle(t *testing.T) {
	db := newTestDB(t)
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	id, err := db.StartRun(RunStart{Mode: "sim", ServerAddress: "127.0.0.1", UDPPort: 6734, StartedAt: start})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	runs, err := db.RecentRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, id, runs[0].RunID)
	assert.Equal(t, "sim", runs[0].Mode)
	assert.Equal(t, start, runs[0].StartedAt)
	assert.Nil(t, runs[0].EndedAt)
	assert.Empty(t, runs[0].FinalState)

	end := start.Add(90 * time.Second)
	require.NoError(t, db.FinishRun(id, RunSummary{
		EndedAt:         end,
		FinalState:      "closed",
		Connected:       true,
		Streaming:       true,
		UDPPort:         7000,
		Ticks:           9000,
		Frames:          8990,
		Bodies:          26970,
		DecodeSkips:     3,
		ReceiveFailures: 1,
	}))

	runs, err = db.RecentRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	r := runs[0]
	require.NotNil(t, r.EndedAt)
	assert.Equal(t, end, *r.EndedAt)
	assert.Equal(t, "closed", r.FinalState)
	assert.True(t, r.Connected)
	assert.True(t, r.Streaming)
	assert.Equal(t, uint16(7000), r.UDPPort)
	assert.Equal(t, uint64(9000), r.Ticks)
	assert.Equal(t, uint64(8990), r.Frames)
	assert.Equal(t, uint64(26970), r.Bodies)
	assert.Equal(t, uint64(3), r.DecodeSkips)
	assert.Equal(t, uint64(1), r.ReceiveFailures)
}

func TestFinishUnknownRun(t *testing.T) {
	db := newTestDB(t)
	err := db.FinishRun("no-such-run", RunSummary{FinalState: "closed"})
	assert.Error(t, err)
}

func TestRecentRunsOrderAndLimit(t *testing.T) {
	db := newTestDB(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 5; i++ {
		id, err := db.StartRun(RunStart{ServerAddress: "10.0.0.1", UDPPort: 6734, StartedAt: base.Add(time.Duration(i) * time.Minute)})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	runs, err := db.RecentRuns(3)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, ids[4], runs[0].RunID)
	assert.Equal(t, ids[3], runs[1].RunID)
	assert.Equal(t, ids[2], runs[2].RunID)
	assert.Equal(t, "live", runs[0].Mode)

	all, err := db.RecentRuns(0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestAttachAdminRoutes(t *testing.T) {
	db := newTestDB(t)
	mux := http.NewServeMux()
	require.NoError(t, db.AttachAdminRoutes(mux))

	req := httptest.NewRequest(http.MethodGet, "/debug/backup", nil)
	req.RemoteAddr = "127.0.0.1:12345"
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	// tsweb may refuse the request depending on how it classifies the
	// caller; the route must exist either way.
	require.NotEqual(t, http.StatusNotFound, rec.Code)
	if rec.Code == http.StatusOK {
		assert.Equal(t, "application/gzip", rec.Header().Get("Content-Type"))
		assert.NotZero(t, rec.Body.Len())
	}

	req = httptest.NewRequest(http.MethodGet, "/debug/tailsql/", nil)
	req.RemoteAddr = "127.0.0.1:12345"
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.NotEqual(t, http.StatusNotFound, rec.Code)
}

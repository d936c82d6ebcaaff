// Package testutil provides shared test helpers.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/banshee-data/mocap.bridge/internal/monitoring"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// DecodeJSON decodes the recorded response body into v.
func DecodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("content-type = %q, want application/json", ct)
	}
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

// LogCapture records lines written through monitoring.Logf.
type LogCapture struct {
	mu    sync.Mutex
	lines []string
}

func (c *LogCapture) logf(format string, v ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, fmt.Sprintf(format, v...))
}

// Lines returns a copy of the captured lines.
func (c *LogCapture) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

// Contains reports whether any captured line contains sub.
func (c *LogCapture) Contains(sub string) bool {
	for _, l := range c.Lines() {
		if strings.Contains(l, sub) {
			return true
		}
	}
	return false
}

// CaptureLogs redirects monitoring.Logf into a LogCapture for the rest of
// the test. Tests using it must not run in parallel.
func CaptureLogs(t *testing.T) *LogCapture {
	t.Helper()
	prev := monitoring.Logf
	c := &LogCapture{}
	monitoring.SetLogger(c.logf)
	t.Cleanup(func() { monitoring.SetLogger(prev) })
	return c
}

// MuteLogs silences monitoring.Logf for the rest of the test.
func MuteLogs(t *testing.T) {
	t.Helper()
	prev := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.SetLogger(prev) })
}

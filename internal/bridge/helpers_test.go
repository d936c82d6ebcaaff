package bridge

import (
	"fmt"
	"strings"
	"testing"

	"github.com/banshee-data/mocap.bridge/internal/mocap"
)

// logRecorder collects diagnostic lines.
type logRecorder struct {
	lines []string
}

func (r *logRecorder) Logf(format string, v ...interface{}) {
	r.lines = append(r.lines, fmt.Sprintf(format, v...))
}

func (r *logRecorder) contains(sub string) bool {
	for _, l := range r.lines {
		if strings.Contains(l, sub) {
			return true
		}
	}
	return false
}

func newTestBridge(t *testing.T, m *mocap.MockCapability, mutate ...func(*Options)) (*Bridge, *logRecorder) {
	t.Helper()
	rec := &logRecorder{}
	opts := DefaultOptions()
	opts.Logf = rec.Logf
	for _, f := range mutate {
		f(&opts)
	}
	b, err := New(m, opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return b, rec
}

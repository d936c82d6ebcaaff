package bridge

import (
	"errors"
	"fmt"
)

// FailureKind classifies everything that can go wrong during a run.
type FailureKind int

const (
	ConnectFailure FailureKind = iota
	SettingsReadFailure
	StreamStartFailure
	ReceiveFailure
	DecodeSkip
	StopCaptureFailure
	DisconnectFailure
	ReleaseFailure
	numFailureKinds
)

var failureNames = [...]string{
	ConnectFailure:      "connect",
	SettingsReadFailure: "settings-read",
	StreamStartFailure:  "stream-start",
	ReceiveFailure:      "receive",
	DecodeSkip:          "decode-skip",
	StopCaptureFailure:  "stop-capture",
	DisconnectFailure:   "disconnect",
	ReleaseFailure:      "release",
}

func (k FailureKind) String() string {
	if k < 0 || k >= numFailureKinds {
		return fmt.Sprintf("failure(%d)", int(k))
	}
	return failureNames[k]
}

// Failure is a capability operation that did not succeed. It never leaves
// the bridge; it exists so failures can be counted and described
// uniformly.
type Failure struct {
	Kind FailureKind
	Op   string
	Err  error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Op, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// errPanic wraps a recovered panic from a capability call.
var errPanic = errors.New("capability panicked")

// Counters accumulate per-run activity. The zero value is ready to use.
type Counters struct {
	Ticks          uint64 `json:"ticks"`
	Frames         uint64 `json:"frames"`
	Bodies         uint64 `json:"bodies"`
	StaleTicks     uint64 `json:"stale_ticks"`
	NoData         uint64 `json:"no_data"`
	NonDataPackets uint64 `json:"non_data_packets"`

	Failures [numFailureKinds]uint64 `json:"-"`
}

// Failed returns how many failures of kind k were seen.
func (c Counters) Failed(k FailureKind) uint64 {
	if k < 0 || k >= numFailureKinds {
		return 0
	}
	return c.Failures[k]
}

// FailureMap returns the non-zero failure counts keyed by kind name.
func (c Counters) FailureMap() map[string]uint64 {
	m := make(map[string]uint64)
	for k, n := range c.Failures {
		if n > 0 {
			m[FailureKind(k).String()] = n
		}
	}
	return m
}

// diagnostics is the single place failures are turned into log lines and
// counts.
type diagnostics struct {
	logf     func(format string, v ...interface{})
	counters *Counters
	// last reason logged per kind, for kinds that repeat every tick
	lastReason [numFailureKinds]string
}

// check reports whether err is nil. A non-nil err is counted and logged,
// and execution continues.
func (d *diagnostics) check(kind FailureKind, op string, err error) bool {
	if err == nil {
		return true
	}
	f := &Failure{Kind: kind, Op: op, Err: err}
	d.counters.Failures[kind]++
	d.logf("%v", f)
	return false
}

// checkQuiet is check for per-tick operations: a failure is always counted
// but only logged when its reason differs from the previous one. A success
// re-arms logging.
func (d *diagnostics) checkQuiet(kind FailureKind, op string, err error) bool {
	if err == nil {
		d.lastReason[kind] = ""
		return true
	}
	d.counters.Failures[kind]++
	reason := err.Error()
	if reason != d.lastReason[kind] {
		d.lastReason[kind] = reason
		d.logf("%v", &Failure{Kind: kind, Op: op, Err: err})
	}
	return false
}

// safely runs fn and turns a panic into an error so a misbehaving
// capability cannot take down the control loop.
func safely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errPanic, r)
		}
	}()
	return fn()
}

// Package bridge is the acquisition bridge between a tick-driven control
// loop and a motion-capture server.
//
// A run goes through three phases, all on the caller's goroutine:
//
//	Initialize  once, before the first tick: connect, read 6DOF settings,
//	            start streaming. Each step is attempted even if the one
//	            before it failed.
//	Step        once per tick: one non-blocking receive, decode every 6DOF
//	            body, reduce to the output vector (last body wins). Ticks
//	            that decode nothing keep the previous vector.
//	Shutdown    once, at the end: disconnect and release the capability,
//	            even if Initialize never succeeded.
//
// No failure is ever returned to the caller. Every failure becomes a
// diagnostic line and a counter, and the output simply stops updating.
package bridge

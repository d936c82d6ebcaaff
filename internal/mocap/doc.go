// Package mocap defines the motion-capture data model shared by the bridge:
// body poses, frames, the fixed-width output vector, and the Capability
// interface through which a motion-capture server is reached.
//
// The Capability is deliberately opaque. It owns the socket and the vendor
// wire decoding; this package only describes the operations the bridge
// needs from it.
package mocap

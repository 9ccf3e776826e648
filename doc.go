// Package vcam implements a frame-synchronous virtual-camera export
// pipeline: it pulls decoded samples from a source, applies a deterministic
// pan/zoom/crop/mask camera transform per frame, re-encodes the composited
// result, and writes an ordered output container.
//
// # Architecture
//
//	SampleSource -> ComputeCameraState -> Compositor -> EncodeStage -> MuxLane
//
// The ExportPipeline drives the loop on a single goroutine. Encoding and
// container writes run asynchronously so the next frame's decode and
// composite overlap with them; a weighted semaphore bounds the number of
// submitted-but-not-emitted frames, and the mux lane re-sequences chunks by
// sequence number before writing.
//
// # Encoders
//
// Encoders are created through a registry keyed by codec and acceleration
// mode. Configuration prefers hardware and falls back to software once; a
// pure-Go MJPEG provider is always registered. Hardware availability is
// probed at runtime by dlopen'ing well-known system libraries (no cgo).
//
// # Cancellation
//
// Cancellation is cooperative: Cancel (or the caller's context) stops the
// loop at the next frame boundary or backpressure wait. Teardown of encoder,
// source and compositor runs on every terminal path.
package vcam

package vcam

import (
	"context"
	"errors"
	"image"
	"time"
)

// Source errors.
var (
	ErrSourceNotLoaded = errors.New("source not loaded")
	ErrSeekTimeout     = errors.New("timed out waiting for sample")
	ErrPastEnd         = errors.New("requested time past end of source")
)

// DefaultSeekTimeout bounds how long SampleAt may wait for a fresh sample
// after a seek before failing with ErrSeekTimeout.
const DefaultSeekTimeout = 5 * time.Second

// DefaultSeekTolerance is the maximum distance, in seconds, between the
// source's current position and the requested time before a seek is issued.
const DefaultSeekTolerance = 0.01

// SourceInfo describes a loaded source.
type SourceInfo struct {
	Width           int
	Height          int
	DurationSeconds float64
}

// SampleSource provides decoded video samples addressed by presentation
// time. SampleAt is the pipeline's primary suspension point: decode and seek
// latency is unbounded, so frame cadence tracks sample readiness rather than
// a wall-clock timer. Implementations must honor ctx cancellation and bound
// seek waits with a timeout.
type SampleSource interface {
	// Load opens the source identified by locator and probes its duration
	// and native resolution.
	Load(locator string) (SourceInfo, error)

	// SampleAt returns a decoded sample at or near the given presentation
	// time, seeking first when the current position is off by more than the
	// seek tolerance. The returned image is valid until the next SampleAt
	// call.
	SampleAt(ctx context.Context, seconds float64) (*image.RGBA, error)

	// Close releases decoder resources.
	Close() error
}

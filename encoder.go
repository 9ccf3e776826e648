package vcam

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Common encoder errors.
var (
	ErrEncoderNotFound = errors.New("no encoder available")
	ErrEncoderClosed   = errors.New("encoder closed")
)

// AccelerationMode selects hardware or software encoding.
type AccelerationMode int

const (
	AccelerationAuto     AccelerationMode = iota // Library chooses
	AccelerationHardware                         // Hardware only
	AccelerationSoftware                         // Software only
)

func (m AccelerationMode) String() string {
	switch m {
	case AccelerationAuto:
		return "auto"
	case AccelerationHardware:
		return "hardware"
	case AccelerationSoftware:
		return "software"
	default:
		return "unknown"
	}
}

// EncoderConfig configures a video encoder.
//
// The emission contract: for every accepted Submit, the encoder invokes
// exactly one of OnChunk or OnError, asynchronously, in submission order.
type EncoderConfig struct {
	Codec        string           // Codec string, e.g. "avc1.64001f" or CodecMJPEG
	Width        int              // Coded width
	Height       int              // Coded height
	FrameRate    int              // Target frame rate
	BitrateBps   int              // Target bitrate in bits per second
	Threads      int              // Encoder threads (0 = auto)
	Acceleration AccelerationMode // Resolved by the encode stage

	// OnChunk receives encoded chunks. Required.
	OnChunk ChunkHandler

	// OnError reports a per-frame encode failure for the given submission
	// sequence number. The frame's chunk will never arrive.
	OnError func(sequence int64, err error)
}

// SubmitOptions tags one raster submission.
type SubmitOptions struct {
	TimestampMicros int64
	Keyframe        bool // Force a keyframe for this raster
}

// VideoEncoder encodes rasters asynchronously. Submit is fire-and-forget;
// completion is observed through the configured ChunkHandler.
type VideoEncoder interface {
	// Submit queues one raster for encoding.
	Submit(raster *Raster, opts SubmitOptions) error

	// Flush blocks until every accepted submission has emitted.
	Flush(ctx context.Context) error

	// Close stops the encoder and releases its resources.
	Close() error
}

// EncoderFactory creates a VideoEncoder from a configuration.
type EncoderFactory func(EncoderConfig) (VideoEncoder, error)

// EncoderConfigError is the fatal failure returned when neither the hardware
// nor the software path could be configured.
type EncoderConfigError struct {
	Codec       string
	HardwareErr error
	SoftwareErr error
}

func (e *EncoderConfigError) Error() string {
	return fmt.Sprintf("cannot configure encoder for %s: hardware: %v; software: %v",
		e.Codec, e.HardwareErr, e.SoftwareErr)
}

// --- Registry ---

type encoderRegistry struct {
	mu        sync.RWMutex
	factories map[string]map[AccelerationMode]EncoderFactory
}

var globalEncoderRegistry = &encoderRegistry{
	factories: make(map[string]map[AccelerationMode]EncoderFactory),
}

// codecFamily normalizes codec strings so "avc1.64001f" and "avc1.42001e"
// share a registration.
func codecFamily(codec string) string {
	if i := strings.IndexByte(codec, '.'); i > 0 {
		return strings.ToLower(codec[:i])
	}
	return strings.ToLower(codec)
}

// RegisterVideoEncoder registers a factory for a codec family and
// acceleration mode. Later registrations replace earlier ones.
func RegisterVideoEncoder(codec string, mode AccelerationMode, factory EncoderFactory) {
	globalEncoderRegistry.mu.Lock()
	defer globalEncoderRegistry.mu.Unlock()

	family := codecFamily(codec)
	if globalEncoderRegistry.factories[family] == nil {
		globalEncoderRegistry.factories[family] = make(map[AccelerationMode]EncoderFactory)
	}
	globalEncoderRegistry.factories[family][mode] = factory
}

// NewVideoEncoder creates an encoder for the configured codec and mode.
// AccelerationAuto prefers hardware when one is registered.
func NewVideoEncoder(config EncoderConfig) (VideoEncoder, error) {
	globalEncoderRegistry.mu.RLock()
	defer globalEncoderRegistry.mu.RUnlock()

	modes := globalEncoderRegistry.factories[codecFamily(config.Codec)]
	if modes == nil {
		return nil, fmt.Errorf("%w: %s", ErrEncoderNotFound, config.Codec)
	}

	mode := config.Acceleration
	if mode == AccelerationAuto {
		if _, ok := modes[AccelerationHardware]; ok && HardwareEncodingAvailable() {
			mode = AccelerationHardware
		} else {
			mode = AccelerationSoftware
		}
	}

	factory, ok := modes[mode]
	if !ok {
		return nil, fmt.Errorf("%w: %s (%s)", ErrEncoderNotFound, config.Codec, mode)
	}
	config.Acceleration = mode
	return factory(config)
}

// VideoEncoderModes returns the registered acceleration modes for a codec.
func VideoEncoderModes(codec string) []AccelerationMode {
	globalEncoderRegistry.mu.RLock()
	defer globalEncoderRegistry.mu.RUnlock()

	modes := globalEncoderRegistry.factories[codecFamily(codec)]
	result := make([]AccelerationMode, 0, len(modes))
	for m := range modes {
		result = append(result, m)
	}
	return result
}

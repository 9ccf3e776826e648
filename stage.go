package vcam

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// MaxQueueDepth bounds the number of submitted-but-not-yet-emitted encode
// requests. The bound trades throughput against the memory held by
// undrained rasters.
const MaxQueueDepth = 8

// ErrStageNotConfigured is returned by Submit before Configure succeeds.
var ErrStageNotConfigured = errors.New("encode stage not configured")

// EncodeStageStats provides encode stage metrics.
type EncodeStageStats struct {
	FramesSubmitted uint64
	ChunksEmitted   uint64
	EncodeErrors    uint64
}

// EncodeStage wraps a hardware-preferring encoder with software fallback and
// enforces the submission queue bound. Chunk emissions run on the encoder's
// goroutine and are forwarded to the mux lane; the weighted semaphore is the
// backpressure gate the orchestrator blocks on.
type EncodeStage struct {
	lane    *MuxLane
	preview *PreviewTap

	// newEncoder is swappable for tests; defaults to the registry.
	newEncoder EncoderFactory

	encoder VideoEncoder
	config  EncoderConfig
	mode    AccelerationMode

	sem      *semaphore.Weighted
	inFlight atomic.Int64

	decoderConfig   *DecoderConfig
	configMu        sync.Mutex
	configForwarded bool

	framesSubmitted atomic.Uint64
	chunksEmitted   atomic.Uint64
	encodeErrors    atomic.Uint64

	log *logrus.Entry
}

// NewEncodeStage creates an unconfigured encode stage feeding the given mux
// lane.
func NewEncodeStage(lane *MuxLane, log *logrus.Entry) *EncodeStage {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &EncodeStage{
		lane:       lane,
		newEncoder: NewVideoEncoder,
		sem:        semaphore.NewWeighted(MaxQueueDepth),
		log:        log,
	}
}

// SetPreview attaches an optional live-preview tap. Must be called before
// the first Submit.
func (s *EncodeStage) SetPreview(tap *PreviewTap) {
	s.preview = tap
}

// Configure creates the encoder, attempting hardware first and retrying
// once in software mode. If both fail the export cannot proceed and an
// *EncoderConfigError is returned.
func (s *EncodeStage) Configure(config EncoderConfig) error {
	config.OnChunk = s.handleChunk
	config.OnError = s.handleEncodeError

	hw := config
	hw.Acceleration = AccelerationHardware
	encoder, hwErr := s.newEncoder(hw)
	if hwErr == nil {
		s.encoder = encoder
		s.config = hw
		s.mode = AccelerationHardware
	} else {
		sw := config
		sw.Acceleration = AccelerationSoftware
		encoder, swErr := s.newEncoder(sw)
		if swErr != nil {
			return &EncoderConfigError{Codec: config.Codec, HardwareErr: hwErr, SoftwareErr: swErr}
		}
		s.encoder = encoder
		s.config = sw
		s.mode = AccelerationSoftware
	}

	s.log.WithFields(logrus.Fields{
		"codec":        s.config.Codec,
		"mode":         s.mode,
		"accelerators": len(HardwareAccelerators()),
	}).Info("encoder configured")
	return nil
}

// Submit queues one raster, blocking while the queue bound is reached. The
// wait is cancellation-aware: ctx aborting releases the caller without
// submitting.
func (s *EncodeStage) Submit(ctx context.Context, raster *Raster, opts SubmitOptions) error {
	if s.encoder == nil {
		return ErrStageNotConfigured
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	s.inFlight.Add(1)

	if err := s.encoder.Submit(raster, opts); err != nil {
		s.inFlight.Add(-1)
		s.sem.Release(1)
		return err
	}
	s.framesSubmitted.Add(1)
	return nil
}

// Flush drains remaining in-flight encodes to completion.
func (s *EncodeStage) Flush(ctx context.Context) error {
	if s.encoder == nil {
		return nil
	}
	return s.encoder.Flush(ctx)
}

// Close stops the encoder. Safe to call unconfigured or twice.
func (s *EncodeStage) Close() error {
	if s.encoder == nil {
		return nil
	}
	err := s.encoder.Close()
	s.encoder = nil
	return err
}

// Mode returns the acceleration mode selected by Configure.
func (s *EncodeStage) Mode() AccelerationMode {
	return s.mode
}

// InFlight returns the current submitted-not-emitted count.
func (s *EncodeStage) InFlight() int64 {
	return s.inFlight.Load()
}

// DecoderConfig returns the captured container-level decoder configuration,
// or nil before the first emission.
func (s *EncodeStage) DecoderConfig() *DecoderConfig {
	s.configMu.Lock()
	defer s.configMu.Unlock()
	return s.decoderConfig
}

// Stats returns encode stage metrics.
func (s *EncodeStage) Stats() EncodeStageStats {
	return EncodeStageStats{
		FramesSubmitted: s.framesSubmitted.Load(),
		ChunksEmitted:   s.chunksEmitted.Load(),
		EncodeErrors:    s.encodeErrors.Load(),
	}
}

// handleChunk runs on the encoder's emission goroutine. It captures the
// decoder configuration once, hands it to the mux lane before the lane can
// write anything, forwards the chunk, and frees one queue slot.
func (s *EncodeStage) handleChunk(chunk *EncodedChunk, meta *ChunkMetadata) {
	s.configMu.Lock()
	if meta != nil && meta.DecoderConfig != nil && s.decoderConfig == nil {
		s.decoderConfig = meta.DecoderConfig
	}
	if !s.configForwarded {
		s.configForwarded = true
		if s.decoderConfig == nil {
			// Encoder never reported metadata; synthesize from configuration
			// so the container header is still complete.
			s.decoderConfig = &DecoderConfig{
				Codec:       s.config.Codec,
				CodedWidth:  s.config.Width,
				CodedHeight: s.config.Height,
				ColorSpace:  DefaultColorSpace(),
			}
		}
		s.lane.SetDecoderConfig(s.decoderConfig)
	}
	s.configMu.Unlock()

	s.lane.Add(&ChunkRecord{Chunk: chunk})

	if s.preview != nil {
		if err := s.preview.WriteChunk(chunk); err != nil {
			s.log.WithError(err).Debug("preview tap write failed")
		}
	}

	s.chunksEmitted.Add(1)
	s.inFlight.Add(-1)
	s.sem.Release(1)
}

// handleEncodeError runs on the encoder's emission goroutine for frames
// that failed inside the encoder. The failure is logged, the queue slot
// freed exactly once, and the mux lane told to skip the sequence slot so
// the chunk's absence cannot stall re-sequencing. The frame's output is
// simply absent from the container.
func (s *EncodeStage) handleEncodeError(sequence int64, err error) {
	s.log.WithFields(logrus.Fields{
		"sequence": sequence,
	}).WithError(err).Warn("transient encode error, frame dropped")

	s.lane.Skip(sequence)
	s.encodeErrors.Add(1)
	s.inFlight.Add(-1)
	s.sem.Release(1)
}

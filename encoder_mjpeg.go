package vcam

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"sync"
)

// CodecMJPEG identifies the built-in pure-Go Motion JPEG provider. Every
// MJPEG frame is intra-coded, so keyframe hints are always satisfiable.
const CodecMJPEG = "mjpeg"

func init() {
	RegisterVideoEncoder(CodecMJPEG, AccelerationSoftware, newMJPEGEncoder)
}

type mjpegJob struct {
	raster *Raster
	opts   SubmitOptions
	seq    int64
}

// mjpegEncoder encodes rasters to JPEG on a single worker goroutine, which
// guarantees emission in submission order.
type mjpegEncoder struct {
	config  EncoderConfig
	quality int

	jobs    chan mjpegJob
	pending sync.WaitGroup
	done    chan struct{}

	seq        int64
	configSent bool
	closed     bool
	mu         sync.Mutex
}

func newMJPEGEncoder(config EncoderConfig) (VideoEncoder, error) {
	if config.Width <= 0 || config.Height <= 0 {
		return nil, fmt.Errorf("invalid dimensions %dx%d", config.Width, config.Height)
	}
	if config.OnChunk == nil {
		return nil, fmt.Errorf("OnChunk handler is required")
	}

	e := &mjpegEncoder{
		config:  config,
		quality: jpegQualityForBitrate(config.BitrateBps, config.Width, config.Height, config.FrameRate),
		jobs:    make(chan mjpegJob, 2*MaxQueueDepth),
		done:    make(chan struct{}),
	}
	go e.encodeLoop()
	return e, nil
}

// jpegQualityForBitrate maps a target bitrate to a JPEG quality level using
// a rough bits-per-pixel heuristic.
func jpegQualityForBitrate(bitrateBps, width, height, fps int) int {
	if bitrateBps <= 0 || width <= 0 || height <= 0 {
		return 85
	}
	if fps <= 0 {
		fps = 30
	}
	bpp := float64(bitrateBps) / float64(fps) / float64(width*height)
	switch {
	case bpp >= 2.0:
		return 95
	case bpp >= 1.0:
		return 90
	case bpp >= 0.5:
		return 85
	case bpp >= 0.25:
		return 75
	default:
		return 60
	}
}

func (e *mjpegEncoder) Submit(raster *Raster, opts SubmitOptions) error {
	if raster == nil || raster.Image == nil {
		return fmt.Errorf("nil raster")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEncoderClosed
	}

	// The job channel is sized above the stage's queue bound, so this send
	// never blocks while the lock is held.
	e.pending.Add(1)
	e.jobs <- mjpegJob{raster: raster, opts: opts, seq: e.seq}
	e.seq++
	return nil
}

func (e *mjpegEncoder) Flush(ctx context.Context) error {
	drained := make(chan struct{})
	go func() {
		e.pending.Wait()
		close(drained)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-drained:
		return nil
	}
}

func (e *mjpegEncoder) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	close(e.jobs)
	e.mu.Unlock()

	<-e.done
	return nil
}

func (e *mjpegEncoder) encodeLoop() {
	defer close(e.done)

	var buf bytes.Buffer
	for job := range e.jobs {
		buf.Reset()
		err := jpeg.Encode(&buf, job.raster.Image, &jpeg.Options{Quality: e.quality})
		if err != nil {
			if e.config.OnError != nil {
				e.config.OnError(job.seq, fmt.Errorf("encode jpeg: %w", err))
			}
			e.pending.Done()
			continue
		}

		data := make([]byte, buf.Len())
		copy(data, buf.Bytes())

		chunk := &EncodedChunk{
			Sequence:        job.seq,
			Data:            data,
			TimestampMicros: job.opts.TimestampMicros,
			Type:            FrameTypeKey, // MJPEG frames are always intra
		}

		meta := &ChunkMetadata{}
		if !e.configSent {
			e.configSent = true
			meta.DecoderConfig = &DecoderConfig{
				Codec:       e.config.Codec,
				CodedWidth:  e.config.Width,
				CodedHeight: e.config.Height,
				ColorSpace:  DefaultColorSpace(),
			}
		}

		e.config.OnChunk(chunk, meta)
		e.pending.Done()
	}
}

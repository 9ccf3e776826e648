package vcam

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// KeyframeInterval is the forced keyframe cadence in frames.
const KeyframeInterval = 150

// CancelledMessage is the exact error string reported for a cancelled
// export.
const CancelledMessage = "export cancelled"

// ErrExportStarted is returned by Run when the pipeline already ran.
var ErrExportStarted = errors.New("export already started")

// ExportState tracks the pipeline through its lifecycle.
type ExportState int32

const (
	StateIdle ExportState = iota
	StateInitializing
	StateRunning
	StateFinalizing
	StateCancelled
	StateFailed
	StateDone
)

func (s ExportState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StateFinalizing:
		return "finalizing"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Progress reports per-frame export advancement.
type Progress struct {
	CurrentFrame       int
	TotalFrames        int
	Percentage         float64
	EstimatedRemaining time.Duration
}

// ExportStats aggregates pipeline metrics across stages.
type ExportStats struct {
	FramesRendered uint64
	EncodeStageStats
	ChunksWritten uint64
}

// ExportResult is the terminal outcome of one export.
type ExportResult struct {
	Success bool
	Output  []byte // Container bytes when Success
	Err     string // Failure description when !Success
}

// ExportPipeline runs one export end to end: sample, transform, composite,
// encode, mux. A pipeline instance is single-use.
type ExportPipeline struct {
	config     ExportConfig
	source     SampleSource
	compositor Compositor

	stage *EncodeStage
	lane  *MuxLane

	preview *PreviewTap

	state atomic.Int32

	cancelMu sync.Mutex
	cancel   context.CancelFunc

	framesRendered atomic.Uint64

	log *logrus.Entry
}

// NewExportPipeline creates a pipeline over the given sample source. The
// configuration is validated on Run.
func NewExportPipeline(config ExportConfig, source SampleSource) *ExportPipeline {
	logger := config.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ExportPipeline{
		config:     config,
		source:     source,
		compositor: NewSoftwareCompositor(),
		log:        logger.WithField("component", "export"),
	}
}

// SetPreview attaches a live-preview tap. Must be called before Run.
func (p *ExportPipeline) SetPreview(tap *PreviewTap) {
	p.preview = tap
}

// State returns the pipeline's current lifecycle state.
func (p *ExportPipeline) State() ExportState {
	return ExportState(p.state.Load())
}

// Cancel aborts a running export. The in-progress Run returns a result with
// Success false and the cancellation message; teardown still runs.
func (p *ExportPipeline) Cancel() {
	p.cancelMu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.cancelMu.Unlock()
}

// FramesRendered returns the number of frames submitted for encoding.
func (p *ExportPipeline) FramesRendered() uint64 {
	return p.framesRendered.Load()
}

// Stats returns pipeline metrics; stage and lane fields are zero before
// configuration.
func (p *ExportPipeline) Stats() ExportStats {
	stats := ExportStats{FramesRendered: p.framesRendered.Load()}
	if p.stage != nil {
		stats.EncodeStageStats = p.stage.Stats()
	}
	if p.lane != nil {
		stats.ChunksWritten = p.lane.ChunksWritten()
	}
	return stats
}

// Run executes the export to completion, cancellation or failure. It blocks
// until every stage has settled and all resources are released.
func (p *ExportPipeline) Run(ctx context.Context) ExportResult {
	if !p.state.CompareAndSwap(int32(StateIdle), int32(StateInitializing)) {
		return ExportResult{Err: ErrExportStarted.Error()}
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancelMu.Lock()
	p.cancel = cancel
	p.cancelMu.Unlock()
	defer cancel()

	output, err := p.run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			p.state.Store(int32(StateCancelled))
			p.log.Info("export cancelled")
			return ExportResult{Err: CancelledMessage}
		}
		p.state.Store(int32(StateFailed))
		p.log.WithError(err).Error("export failed")
		return ExportResult{Err: err.Error()}
	}

	p.state.Store(int32(StateDone))
	return ExportResult{Success: true, Output: output}
}

func (p *ExportPipeline) run(ctx context.Context) ([]byte, error) {
	if err := p.config.Validate(); err != nil {
		return nil, err
	}

	host := ProbeHost()
	p.log.WithFields(logrus.Fields{
		"cores":        host.LogicalCores,
		"memory":       host.TotalMemory,
		"accelerators": len(host.Accelerators),
	}).Info("starting export")

	info, err := p.source.Load(p.config.Source)
	if err != nil {
		return nil, fmt.Errorf("load source: %w", err)
	}

	// Release order matters: the encoder drains first so no emission can
	// touch a closed source or compositor.
	defer func() {
		if err := p.closeStage(); err != nil {
			p.log.WithError(err).Warn("encoder close failed")
		}
		if err := p.source.Close(); err != nil {
			p.log.WithError(err).Warn("source close failed")
		}
		if err := p.compositor.Close(); err != nil {
			p.log.WithError(err).Warn("compositor close failed")
		}
	}()

	geometry := p.config.Geometry
	if !geometry.Valid() {
		geometry = deriveGeometry(p.config, info)
	}

	if err := p.compositor.Initialize(CompositorConfig{
		Width:        p.config.Width,
		Height:       p.config.Height,
		Background:   p.config.Background.RGBA(),
		SourceWidth:  info.Width,
		SourceHeight: info.Height,
		CropX:        p.config.Crop.X,
		CropY:        p.config.Crop.Y,
		CropWidth:    p.config.Crop.Width,
		CropHeight:   p.config.Crop.Height,
	}); err != nil {
		return nil, fmt.Errorf("initialize compositor: %w", err)
	}

	threads := p.config.Threads
	if threads <= 0 {
		threads = host.EncoderThreads()
	}

	p.lane = NewMuxLane(NewIVFWriter(), p.log)
	p.stage = NewEncodeStage(p.lane, p.log)
	if p.preview != nil {
		p.stage.SetPreview(p.preview)
	}
	if err := p.stage.Configure(EncoderConfig{
		Codec:      p.config.Codec,
		Width:      p.config.Width,
		Height:     p.config.Height,
		FrameRate:  p.config.FrameRate,
		BitrateBps: p.config.BitrateBps,
		Threads:    threads,
	}); err != nil {
		return nil, err
	}

	p.state.Store(int32(StateRunning))

	track := p.config.ZoomTrack
	if track == nil {
		track = NewZoomTimeline(p.config.Keyframes).Track()
	}

	totalFrames := int(math.Ceil(info.DurationSeconds * float64(p.config.FrameRate)))
	started := time.Now()

	var lastCam CameraState
	haveCam := false

	for i := 0; i < totalFrames; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		seconds := float64(i) / float64(p.config.FrameRate)
		timestamp := int64(i) * 1_000_000 / int64(p.config.FrameRate)

		sample, err := p.source.SampleAt(ctx, seconds)
		if err != nil {
			return nil, fmt.Errorf("sample frame %d: %w", i, err)
		}

		cam, ok := ComputeCameraState(geometry, track(i, seconds))
		if ok {
			lastCam = cam
			haveCam = true
		} else if !haveCam {
			return nil, fmt.Errorf("frame %d: degenerate stage geometry", i)
		}

		raster, err := p.compositor.RenderFrame(sample, timestamp, lastCam)
		if err != nil {
			return nil, fmt.Errorf("render frame %d: %w", i, err)
		}

		if err := p.stage.Submit(ctx, raster, SubmitOptions{
			TimestampMicros: timestamp,
			Keyframe:        i%KeyframeInterval == 0,
		}); err != nil {
			return nil, fmt.Errorf("submit frame %d: %w", i, err)
		}
		p.framesRendered.Add(1)

		if p.config.OnProgress != nil {
			p.config.OnProgress(progressAt(i+1, totalFrames, started))
		}
	}

	p.state.Store(int32(StateFinalizing))

	if err := p.stage.Flush(ctx); err != nil {
		return nil, fmt.Errorf("flush encoder: %w", err)
	}
	if err := p.lane.Wait(); err != nil {
		return nil, fmt.Errorf("mux: %w", err)
	}

	output, err := p.lane.Finalize()
	if err != nil {
		return nil, fmt.Errorf("finalize container: %w", err)
	}

	p.log.WithFields(logrus.Fields{
		"frames":  totalFrames,
		"bytes":   len(output),
		"elapsed": time.Since(started).Round(time.Millisecond),
	}).Info("export complete")
	return output, nil
}

func (p *ExportPipeline) closeStage() error {
	if p.stage == nil {
		return nil
	}
	return p.stage.Close()
}

// deriveGeometry builds a full-frame stage layout: the mask covers the
// whole output canvas and the source is fitted and centered at zoom 1.
func deriveGeometry(config ExportConfig, info SourceInfo) StageGeometry {
	videoW := float64(info.Width)
	videoH := float64(info.Height)
	if config.Crop.Width > 0 && config.Crop.Height > 0 {
		videoW = float64(config.Crop.Width)
		videoH = float64(config.Crop.Height)
	}

	stageW := float64(config.Width)
	stageH := float64(config.Height)

	baseScale := math.Min(stageW/videoW, stageH/videoH)

	return StageGeometry{
		StageWidth:  stageW,
		StageHeight: stageH,
		VideoWidth:  videoW,
		VideoHeight: videoH,
		BaseScale:   baseScale,
		BaseOffsetX: (stageW - videoW*baseScale) / 2,
		BaseOffsetY: (stageH - videoH*baseScale) / 2,
		MaskX:       0,
		MaskY:       0,
		MaskWidth:   stageW,
		MaskHeight:  stageH,
	}
}

func progressAt(current, total int, started time.Time) Progress {
	p := Progress{CurrentFrame: current, TotalFrames: total}
	if total > 0 {
		p.Percentage = float64(current) / float64(total) * 100
	}
	if current > 0 && current < total {
		elapsed := time.Since(started)
		p.EstimatedRemaining = time.Duration(float64(elapsed) / float64(current) * float64(total-current))
	}
	return p
}

package vcam

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"
)

func testExportConfig() ExportConfig {
	config := DefaultExportConfig()
	config.Width = 320
	config.Height = 180
	config.FrameRate = 30
	config.BitrateBps = 2_000_000
	config.Codec = CodecMJPEG
	return config
}

func TestExportPipelineEndToEnd(t *testing.T) {
	config := testExportConfig()

	var lastProgress Progress
	config.OnProgress = func(p Progress) { lastProgress = p }
	config.Keyframes = []ZoomKeyframe{
		{Time: 0, Zoom: 1, FocusX: 0.5, FocusY: 0.5},
		{Time: 1, Zoom: 1.5, FocusX: 0.3, FocusY: 0.7},
		{Time: 2, Zoom: 1, FocusX: 0.5, FocusY: 0.5},
	}

	source := NewPatternSource(PatternConfig{
		Width:           640,
		Height:          360,
		FPS:             30,
		DurationSeconds: 2,
		Pattern:         PatternMovingBox,
	})

	pipeline := NewExportPipeline(config, source)
	result := pipeline.Run(context.Background())
	if !result.Success {
		t.Fatalf("export failed: %s", result.Err)
	}
	if pipeline.State() != StateDone {
		t.Errorf("state = %s, want done", pipeline.State())
	}

	// 2 seconds at 30 fps.
	const wantFrames = 60
	if pipeline.FramesRendered() != wantFrames {
		t.Errorf("frames rendered = %d, want %d", pipeline.FramesRendered(), wantFrames)
	}
	if lastProgress.CurrentFrame != wantFrames || lastProgress.Percentage != 100 {
		t.Errorf("final progress = %+v", lastProgress)
	}

	out := result.Output
	if len(out) < ivfHeaderSize {
		t.Fatalf("output too short: %d bytes", len(out))
	}
	if string(out[0:4]) != "DKIF" {
		t.Fatalf("bad container signature %q", out[0:4])
	}
	if string(out[8:12]) != "MJPG" {
		t.Errorf("fourcc = %q, want MJPG", out[8:12])
	}
	if w := binary.LittleEndian.Uint16(out[12:14]); w != 320 {
		t.Errorf("coded width = %d, want 320", w)
	}
	if h := binary.LittleEndian.Uint16(out[14:16]); h != 180 {
		t.Errorf("coded height = %d, want 180", h)
	}
	if n := binary.LittleEndian.Uint32(out[24:28]); n != wantFrames {
		t.Errorf("frame count = %d, want %d", n, wantFrames)
	}

	// Walk the frames: monotonically increasing timestamps, every frame
	// present.
	offset := ivfHeaderSize
	var frames int
	var lastTS int64 = -1
	for offset+ivfFrameHeaderSize <= len(out) {
		size := int(binary.LittleEndian.Uint32(out[offset : offset+4]))
		ts := int64(binary.LittleEndian.Uint64(out[offset+4 : offset+12]))
		if ts <= lastTS {
			t.Fatalf("frame %d: timestamp %d not increasing past %d", frames, ts, lastTS)
		}
		lastTS = ts
		offset += ivfFrameHeaderSize + size
		frames++
	}
	if frames != wantFrames {
		t.Errorf("container frames = %d, want %d", frames, wantFrames)
	}
	if offset != len(out) {
		t.Errorf("trailing bytes: %d", len(out)-offset)
	}

	stats := pipeline.Stats()
	if stats.ChunksEmitted != wantFrames || stats.ChunksWritten != wantFrames || stats.EncodeErrors != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestExportPipelineCancellation(t *testing.T) {
	config := testExportConfig()

	source := NewPatternSource(PatternConfig{
		Width:           640,
		Height:          360,
		FPS:             30,
		DurationSeconds: 30,
		Pattern:         PatternGradient,
	})
	pipeline := NewExportPipeline(config, source)

	done := make(chan ExportResult, 1)
	go func() { done <- pipeline.Run(context.Background()) }()

	// Let a few frames through, then abort.
	if err := waitFor(func() bool { return pipeline.FramesRendered() > 3 }); err != nil {
		t.Fatal("pipeline never started rendering")
	}
	pipeline.Cancel()

	var result ExportResult
	select {
	case result = <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("cancelled run did not return")
	}

	if result.Success {
		t.Fatal("cancelled export reported success")
	}
	if result.Err != CancelledMessage {
		t.Errorf("err = %q, want %q", result.Err, CancelledMessage)
	}
	if pipeline.State() != StateCancelled {
		t.Errorf("state = %s, want cancelled", pipeline.State())
	}

	// Teardown ran: the source has been released.
	if _, err := source.SampleAt(context.Background(), 0); !errors.Is(err, ErrSourceNotLoaded) {
		t.Errorf("source sample after cancel = %v, want ErrSourceNotLoaded", err)
	}
}

func TestExportPipelineSingleUse(t *testing.T) {
	config := testExportConfig()
	source := NewPatternSource(PatternConfig{
		Width: 64, Height: 64, FPS: 10, DurationSeconds: 0.3,
	})

	pipeline := NewExportPipeline(config, source)
	if result := pipeline.Run(context.Background()); !result.Success {
		t.Fatalf("first run failed: %s", result.Err)
	}

	result := pipeline.Run(context.Background())
	if result.Success || result.Err != ErrExportStarted.Error() {
		t.Fatalf("second run = %+v, want already-started error", result)
	}
}

func TestExportPipelineInvalidConfig(t *testing.T) {
	config := testExportConfig()
	config.FrameRate = 0

	pipeline := NewExportPipeline(config, NewPatternSource(PatternConfig{}))
	result := pipeline.Run(context.Background())
	if result.Success {
		t.Fatal("expected failure for invalid config")
	}
	if pipeline.State() != StateFailed {
		t.Errorf("state = %s, want failed", pipeline.State())
	}
}

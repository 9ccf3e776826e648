package vcam

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"
	"time"
)

// PatternType defines the type of synthetic pattern a PatternSource renders.
type PatternType int

const (
	PatternColorBars    PatternType = iota // SMPTE-style color bars
	PatternGradient                        // Horizontal gradient
	PatternCheckerboard                    // Checkerboard pattern
	PatternMovingBox                       // Moving box (animated)
)

func (p PatternType) String() string {
	switch p {
	case PatternColorBars:
		return "ColorBars"
	case PatternGradient:
		return "Gradient"
	case PatternCheckerboard:
		return "Checkerboard"
	case PatternMovingBox:
		return "MovingBox"
	default:
		return "Unknown"
	}
}

// PatternConfig configures a synthetic sample source.
type PatternConfig struct {
	Width           int
	Height          int
	FPS             int
	DurationSeconds float64
	Pattern         PatternType
	CheckerSize     int

	// SeekLatency simulates decoder seek cost: SampleAt waits this long
	// whenever the requested time is outside the seek tolerance.
	SeekLatency time.Duration

	// SeekTimeout bounds the simulated seek wait (default: DefaultSeekTimeout).
	SeekTimeout time.Duration
}

// PatternSource is a deterministic, time-addressable SampleSource that
// renders synthetic frames. It stands in for a real decoder in tests,
// examples and benchmarks.
type PatternSource struct {
	config PatternConfig

	frame    *image.RGBA
	position float64
	loaded   bool

	mu sync.Mutex
}

// NewPatternSource creates a synthetic sample source.
func NewPatternSource(config PatternConfig) *PatternSource {
	if config.Width <= 0 {
		config.Width = 1280
	}
	if config.Height <= 0 {
		config.Height = 720
	}
	if config.FPS <= 0 {
		config.FPS = 30
	}
	if config.CheckerSize <= 0 {
		config.CheckerSize = 32
	}
	if config.DurationSeconds <= 0 {
		config.DurationSeconds = 5
	}
	if config.SeekTimeout <= 0 {
		config.SeekTimeout = DefaultSeekTimeout
	}
	return &PatternSource{config: config}
}

// Load probes the synthetic source. The locator is ignored.
func (s *PatternSource) Load(locator string) (SourceInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.frame = image.NewRGBA(image.Rect(0, 0, s.config.Width, s.config.Height))
	s.position = -1 // force an initial seek
	s.loaded = true

	return SourceInfo{
		Width:           s.config.Width,
		Height:          s.config.Height,
		DurationSeconds: s.config.DurationSeconds,
	}, nil
}

// SampleAt renders the frame covering the given presentation time. Requests
// outside the seek tolerance pay the configured seek latency first.
func (s *PatternSource) SampleAt(ctx context.Context, seconds float64) (*image.RGBA, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return nil, ErrSourceNotLoaded
	}
	if seconds < 0 || seconds > s.config.DurationSeconds {
		return nil, fmt.Errorf("%w: %.3fs of %.3fs", ErrPastEnd, seconds, s.config.DurationSeconds)
	}

	if math.Abs(seconds-s.position) > DefaultSeekTolerance && s.config.SeekLatency > 0 {
		if err := s.waitSeek(ctx); err != nil {
			return nil, err
		}
	}

	frameIndex := int(seconds * float64(s.config.FPS))
	s.renderPattern(frameIndex)
	s.position = seconds

	return s.frame, nil
}

// Close releases the frame buffer.
func (s *PatternSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frame = nil
	s.loaded = false
	return nil
}

func (s *PatternSource) waitSeek(ctx context.Context) error {
	timer := time.NewTimer(s.config.SeekLatency)
	defer timer.Stop()

	deadline := time.NewTimer(s.config.SeekTimeout)
	defer deadline.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-deadline.C:
		return ErrSeekTimeout
	case <-timer.C:
		return nil
	}
}

func (s *PatternSource) renderPattern(frameIndex int) {
	switch s.config.Pattern {
	case PatternGradient:
		s.renderGradient()
	case PatternCheckerboard:
		s.renderCheckerboard(frameIndex)
	case PatternMovingBox:
		s.renderMovingBox(frameIndex)
	default:
		s.renderColorBars()
	}
}

// barColors are the classic 75% color bars, left to right.
var barColors = [7]color.RGBA{
	{192, 192, 192, 255}, // white
	{192, 192, 0, 255},   // yellow
	{0, 192, 192, 255},   // cyan
	{0, 192, 0, 255},     // green
	{192, 0, 192, 255},   // magenta
	{192, 0, 0, 255},     // red
	{0, 0, 192, 255},     // blue
}

func (s *PatternSource) renderColorBars() {
	w, h := s.config.Width, s.config.Height
	barWidth := w / len(barColors)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			bar := x / barWidth
			if bar >= len(barColors) {
				bar = len(barColors) - 1
			}
			s.frame.SetRGBA(x, y, barColors[bar])
		}
	}
}

func (s *PatternSource) renderGradient() {
	w, h := s.config.Width, s.config.Height
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(x * 255 / w)
			s.frame.SetRGBA(x, y, color.RGBA{v, v, v, 255})
		}
	}
}

func (s *PatternSource) renderCheckerboard(frameIndex int) {
	w, h := s.config.Width, s.config.Height
	size := s.config.CheckerSize
	phase := frameIndex / s.config.FPS // invert once per second
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			on := ((x/size)+(y/size)+phase)%2 == 0
			if on {
				s.frame.SetRGBA(x, y, color.RGBA{235, 235, 235, 255})
			} else {
				s.frame.SetRGBA(x, y, color.RGBA{20, 20, 20, 255})
			}
		}
	}
}

func (s *PatternSource) renderMovingBox(frameIndex int) {
	w, h := s.config.Width, s.config.Height
	boxSize := w / 8
	// Bounce the box across the frame.
	t := float64(frameIndex) / float64(s.config.FPS)
	bx := int((0.5 + 0.4*math.Sin(t*2)) * float64(w-boxSize))
	by := int((0.5 + 0.4*math.Cos(t*3)) * float64(h-boxSize))

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			inBox := x >= bx && x < bx+boxSize && y >= by && y < by+boxSize
			if inBox {
				s.frame.SetRGBA(x, y, color.RGBA{255, 64, 64, 255})
			} else {
				s.frame.SetRGBA(x, y, color.RGBA{32, 32, 48, 255})
			}
		}
	}
}

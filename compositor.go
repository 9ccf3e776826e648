package vcam

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	stddraw "image/draw"
	"math"

	"golang.org/x/image/draw"
)

// Compositor errors.
var (
	ErrCompositorNotInitialized = errors.New("compositor not initialized")
)

// CompositorConfig configures a compositor for one export.
type CompositorConfig struct {
	Width      int        // Output canvas width
	Height     int        // Output canvas height
	Background color.RGBA // Canvas background color

	SourceWidth  int // Native sample width
	SourceHeight int // Native sample height

	// Optional source crop, in source pixels. Zero width/height disables it.
	CropX      int
	CropY      int
	CropWidth  int
	CropHeight int
}

// Compositor renders one decoded sample into one output raster given a
// camera state. Implementations own their raster resources.
type Compositor interface {
	Initialize(config CompositorConfig) error
	RenderFrame(sample *image.RGBA, timestampMicros int64, cam CameraState) (*Raster, error)
	Close() error
}

// SoftwareCompositor is a pure-Go Compositor built on golang.org/x/image.
// Each RenderFrame allocates a fresh canvas so rasters stay valid while the
// encoder drains them asynchronously.
type SoftwareCompositor struct {
	config      CompositorConfig
	scaler      draw.Scaler
	mask        *image.Alpha
	maskClip    CameraState // clip+radius the cached mask was built for
	initialized bool
}

// NewSoftwareCompositor creates an uninitialized software compositor.
func NewSoftwareCompositor() *SoftwareCompositor {
	return &SoftwareCompositor{scaler: draw.ApproxBiLinear}
}

// Initialize validates and stores the configuration.
func (c *SoftwareCompositor) Initialize(config CompositorConfig) error {
	if config.Width <= 0 || config.Height <= 0 {
		return fmt.Errorf("invalid canvas size %dx%d", config.Width, config.Height)
	}
	// Even dimensions keep downstream codecs happy.
	config.Width = (config.Width + 1) &^ 1
	config.Height = (config.Height + 1) &^ 1

	c.config = config
	c.mask = nil
	c.initialized = true
	return nil
}

// RenderFrame composites one sample onto a new canvas using the camera
// state: scale, position, rounded-rectangle clip, then motion blur.
func (c *SoftwareCompositor) RenderFrame(sample *image.RGBA, timestampMicros int64, cam CameraState) (*Raster, error) {
	if !c.initialized {
		return nil, ErrCompositorNotInitialized
	}
	if sample == nil {
		return nil, errors.New("nil sample")
	}
	if cam.Scale <= 0 {
		return nil, fmt.Errorf("non-positive camera scale %f", cam.Scale)
	}

	canvas := image.NewRGBA(image.Rect(0, 0, c.config.Width, c.config.Height))
	stddraw.Draw(canvas, canvas.Bounds(), &image.Uniform{c.config.Background}, image.Point{}, stddraw.Src)

	sr := c.sourceRect(sample)
	dr := image.Rect(
		int(math.Round(cam.PositionX)),
		int(math.Round(cam.PositionY)),
		int(math.Round(cam.PositionX+float64(sr.Dx())*cam.Scale)),
		int(math.Round(cam.PositionY+float64(sr.Dy())*cam.Scale)),
	)

	c.ensureMask(cam)
	c.scaler.Scale(canvas, dr, sample, sr, draw.Over, &draw.Options{
		DstMask:  c.mask,
		DstMaskP: image.Point{},
	})

	if radius := int(math.Round(cam.BlurAmount)); radius >= 1 {
		clip := image.Rect(
			int(cam.ClipX), int(cam.ClipY),
			int(cam.ClipX+cam.ClipWidth), int(cam.ClipY+cam.ClipHeight),
		).Intersect(canvas.Bounds())
		boxBlurRGBA(canvas, clip, radius)
	}

	return &Raster{Image: canvas, TimestampMicros: timestampMicros}, nil
}

// Close releases the cached mask.
func (c *SoftwareCompositor) Close() error {
	c.mask = nil
	c.initialized = false
	return nil
}

func (c *SoftwareCompositor) sourceRect(sample *image.RGBA) image.Rectangle {
	if c.config.CropWidth > 0 && c.config.CropHeight > 0 {
		crop := image.Rect(
			c.config.CropX, c.config.CropY,
			c.config.CropX+c.config.CropWidth, c.config.CropY+c.config.CropHeight,
		)
		if r := crop.Intersect(sample.Bounds()); !r.Empty() {
			return r
		}
	}
	return sample.Bounds()
}

// ensureMask rebuilds the canvas-sized rounded-rectangle alpha mask when the
// clip geometry changes. The clip is constant for a whole export, so this
// normally runs once.
func (c *SoftwareCompositor) ensureMask(cam CameraState) {
	if c.mask != nil &&
		c.maskClip.ClipX == cam.ClipX && c.maskClip.ClipY == cam.ClipY &&
		c.maskClip.ClipWidth == cam.ClipWidth && c.maskClip.ClipHeight == cam.ClipHeight &&
		c.maskClip.CornerRadius == cam.CornerRadius {
		return
	}
	c.mask = roundedRectMask(c.config.Width, c.config.Height,
		cam.ClipX, cam.ClipY, cam.ClipWidth, cam.ClipHeight, cam.CornerRadius)
	c.maskClip = cam
}

// roundedRectMask returns a w x h alpha mask that is opaque inside the
// rounded rectangle and transparent outside.
func roundedRectMask(w, h int, rx, ry, rw, rh, radius float64) *image.Alpha {
	mask := image.NewAlpha(image.Rect(0, 0, w, h))

	x0, y0 := rx, ry
	x1, y1 := rx+rw, ry+rh
	if radius > rw/2 {
		radius = rw / 2
	}
	if radius > rh/2 {
		radius = rh / 2
	}

	for y := 0; y < h; y++ {
		fy := float64(y) + 0.5
		if fy < y0 || fy > y1 {
			continue
		}
		for x := 0; x < w; x++ {
			fx := float64(x) + 0.5
			if fx < x0 || fx > x1 {
				continue
			}
			if radius > 0 {
				// Corner test: distance from the nearest corner circle center.
				cx := math.Max(x0+radius, math.Min(fx, x1-radius))
				cy := math.Max(y0+radius, math.Min(fy, y1-radius))
				dx, dy := fx-cx, fy-cy
				if dx*dx+dy*dy > radius*radius {
					continue
				}
			}
			mask.SetAlpha(x, y, color.Alpha{A: 255})
		}
	}
	return mask
}

// boxBlurRGBA applies a separable box blur of the given radius to a region
// of img. Two passes (horizontal then vertical) approximate the softening
// the encode path wants for motion blur.
func boxBlurRGBA(img *image.RGBA, rect image.Rectangle, radius int) {
	if rect.Empty() || radius < 1 {
		return
	}

	scratch := image.NewRGBA(rect)

	// Horizontal pass into scratch.
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			var r, g, b, a, n int
			for k := -radius; k <= radius; k++ {
				sx := x + k
				if sx < rect.Min.X || sx >= rect.Max.X {
					continue
				}
				px := img.RGBAAt(sx, y)
				r += int(px.R)
				g += int(px.G)
				b += int(px.B)
				a += int(px.A)
				n++
			}
			scratch.SetRGBA(x, y, color.RGBA{
				R: uint8(r / n), G: uint8(g / n), B: uint8(b / n), A: uint8(a / n),
			})
		}
	}

	// Vertical pass back into img.
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			var r, g, b, a, n int
			for k := -radius; k <= radius; k++ {
				sy := y + k
				if sy < rect.Min.Y || sy >= rect.Max.Y {
					continue
				}
				px := scratch.RGBAAt(x, sy)
				r += int(px.R)
				g += int(px.G)
				b += int(px.B)
				a += int(px.A)
				n++
			}
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(r / n), G: uint8(g / n), B: uint8(b / n), A: uint8(a / n),
			})
		}
	}
}

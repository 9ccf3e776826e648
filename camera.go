package vcam

import "math"

// Motion blur thresholds. Blur only engages during playback with measurable
// focus motion, and is capped so extreme velocities don't smear the frame.
const (
	motionBlurFloor = 0.0005
	motionBlurGain  = 120.0
	motionBlurMax   = 6.0
)

// maskCornerRatio sets the rounded-corner radius relative to the smaller
// mask dimension.
const maskCornerRatio = 0.02

// StageGeometry describes the fixed stage/video layout for one export.
// All coordinates are stage pixels. BaseOffsetX/Y is the video's top-left at
// zoom 1.0; BaseScale is already baked into that baseline.
type StageGeometry struct {
	StageWidth  float64 `yaml:"stageWidth"`
	StageHeight float64 `yaml:"stageHeight"`
	VideoWidth  float64 `yaml:"videoWidth"`
	VideoHeight float64 `yaml:"videoHeight"`
	BaseScale   float64 `yaml:"baseScale"`
	BaseOffsetX float64 `yaml:"baseOffsetX"`
	BaseOffsetY float64 `yaml:"baseOffsetY"`
	MaskX       float64 `yaml:"maskX"`
	MaskY       float64 `yaml:"maskY"`
	MaskWidth   float64 `yaml:"maskWidth"`
	MaskHeight  float64 `yaml:"maskHeight"`
	CropOffsetX float64 `yaml:"cropOffsetX"`
	CropOffsetY float64 `yaml:"cropOffsetY"`
}

// Valid reports whether the geometry can produce a camera state.
func (g StageGeometry) Valid() bool {
	return g.StageWidth > 0 && g.StageHeight > 0 &&
		g.VideoWidth > 0 && g.VideoHeight > 0 &&
		g.BaseScale > 0 &&
		g.MaskWidth > 0 && g.MaskHeight > 0
}

// ZoomInputs are the externally driven per-frame camera inputs.
// FocusX/FocusY are normalized to [0,1] within the stage.
type ZoomInputs struct {
	ZoomScale       float64
	FocusX          float64
	FocusY          float64
	MotionIntensity float64
	Playing         bool
}

// CameraState is the renderable camera for one frame. It is derived once by
// ComputeCameraState, never mutated, and consumed once by the compositor.
type CameraState struct {
	Scale        float64
	PositionX    float64
	PositionY    float64
	ClipX        float64
	ClipY        float64
	ClipWidth    float64
	ClipHeight   float64
	CornerRadius float64
	BlurAmount   float64
}

// ComputeCameraState maps stage geometry and per-frame zoom inputs to a
// camera state. The second return value is false when the geometry is
// degenerate; callers must handle "no update this frame" by reusing the
// previous state.
//
// The anchoring law: the focus point's offset from the unscaled video origin
// is rescaled by the zoom factor only (the base scale is already part of the
// position baseline), which keeps the focus pixel visually pinned while
// zooming.
func ComputeCameraState(g StageGeometry, in ZoomInputs) (CameraState, bool) {
	if !g.Valid() {
		return CameraState{}, false
	}

	zoom := in.ZoomScale
	if zoom <= 0 {
		// Accepted input; treated as no zoom so the compositor never sees a
		// non-positive scale.
		zoom = 1
	}

	focusX := g.MaskX + in.FocusX*g.StageWidth
	focusY := g.MaskY + in.FocusY*g.StageHeight
	centerX := g.MaskX + g.StageWidth/2
	centerY := g.MaskY + g.StageHeight/2

	scale := g.BaseScale * zoom

	posX := centerX - (focusX-g.BaseOffsetX)*zoom
	posY := centerY - (focusY-g.BaseOffsetY)*zoom

	posX = clampOrigin(posX, g.MaskX, g.MaskWidth, g.CropOffsetX, g.CropOffsetX+g.VideoWidth, scale)
	posY = clampOrigin(posY, g.MaskY, g.MaskHeight, g.CropOffsetY, g.CropOffsetY+g.VideoHeight, scale)

	blur := 0.0
	if in.Playing && in.MotionIntensity > motionBlurFloor {
		blur = math.Min(motionBlurMax, in.MotionIntensity*motionBlurGain)
	}

	return CameraState{
		Scale:        scale,
		PositionX:    posX,
		PositionY:    posY,
		ClipX:        g.MaskX,
		ClipY:        g.MaskY,
		ClipWidth:    g.MaskWidth,
		ClipHeight:   g.MaskHeight,
		CornerRadius: maskCornerRatio * math.Min(g.MaskWidth, g.MaskHeight),
		BlurAmount:   blur,
	}, true
}

// clampOrigin keeps the scaled video covering the mask on one axis. When the
// video is smaller than the mask at this scale (min > max) the candidate is
// returned unclamped.
func clampOrigin(pos, maskOrigin, maskSize, cropStart, cropEnd, scale float64) float64 {
	min := maskOrigin + maskSize - cropEnd*scale
	max := maskOrigin - cropStart*scale
	if min > max {
		return pos
	}
	if pos < min {
		return min
	}
	if pos > max {
		return max
	}
	return pos
}

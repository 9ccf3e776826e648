// Core frame and chunk types used across the vcam package.
package vcam

import "image"

// FrameType indicates whether an encoded chunk is a keyframe or delta frame.
type FrameType int

const (
	FrameTypeUnknown FrameType = iota
	FrameTypeKey               // I-frame, can be decoded independently
	FrameTypeDelta             // P-frame, requires previous frames
)

func (f FrameType) String() string {
	switch f {
	case FrameTypeKey:
		return "Key"
	case FrameTypeDelta:
		return "Delta"
	default:
		return "Unknown"
	}
}

// Raster is one composited output frame, ready for encoding.
// The pixel data is owned by the raster; the compositor never reuses it.
type Raster struct {
	Image           *image.RGBA
	TimestampMicros int64
}

// EncodedChunk holds one encoded frame emitted by a VideoEncoder.
// Sequence strictly increases by submission order and is the key the mux
// lane re-sequences on.
type EncodedChunk struct {
	Sequence        int64
	Data            []byte
	TimestampMicros int64
	Type            FrameType
}

// IsKeyframe returns true if this chunk is a keyframe.
func (c *EncodedChunk) IsKeyframe() bool {
	return c.Type == FrameTypeKey
}

// ColorSpace carries the container-level color tags written with the
// decoder configuration. The default values are a fixed contract of the
// output format and must not be altered if container compatibility matters.
type ColorSpace struct {
	Primaries string `yaml:"primaries"`
	Transfer  string `yaml:"transfer"`
	Matrix    string `yaml:"matrix"`
	FullRange bool   `yaml:"fullRange"`
}

// DefaultColorSpace returns the color tags attached to every export.
func DefaultColorSpace() ColorSpace {
	return ColorSpace{
		Primaries: "bt709",
		Transfer:  "iec61966-2-1",
		Matrix:    "rgb",
		FullRange: true,
	}
}

// DecoderConfig is the container-level decoder configuration attached to the
// first chunk of an export.
type DecoderConfig struct {
	Codec       string
	CodedWidth  int
	CodedHeight int
	Description []byte // codec-specific initialization bytes, may be nil
	ColorSpace  ColorSpace
}

// ChunkMetadata accompanies a chunk emission. DecoderConfig is non-nil at
// most once per encoder instance, on the first emission.
type ChunkMetadata struct {
	DecoderConfig *DecoderConfig
}

// ChunkHandler receives encoded chunks from an encoder. Handlers run on the
// encoder's emission goroutine and must not block for long.
type ChunkHandler func(chunk *EncodedChunk, meta *ChunkMetadata)

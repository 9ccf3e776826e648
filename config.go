package vcam

import (
	"fmt"
	"image/color"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// DefaultCodec is the codec string used when ExportConfig.Codec is empty.
const DefaultCodec = "avc1.64001f"

// BackgroundColor is a yaml-friendly RGBA color.
type BackgroundColor struct {
	R uint8 `yaml:"r"`
	G uint8 `yaml:"g"`
	B uint8 `yaml:"b"`
	A uint8 `yaml:"a"`
}

// RGBA converts to the image/color representation.
func (c BackgroundColor) RGBA() color.RGBA {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: c.A}
}

// CropRect selects a region of the source in source pixels. Zero
// width/height disables cropping.
type CropRect struct {
	X      int `yaml:"x"`
	Y      int `yaml:"y"`
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// ExportConfig configures one export job. The yaml-tagged fields round-trip
// through preset files; callbacks and the zoom track are wired in code.
type ExportConfig struct {
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
	FrameRate  int    `yaml:"frameRate"`
	BitrateBps int    `yaml:"bitrateBps"`
	Codec      string `yaml:"codec"`
	Threads    int    `yaml:"threads"`

	Source     string          `yaml:"source"`
	Background BackgroundColor `yaml:"background"`
	Crop       CropRect        `yaml:"crop"`

	// Geometry overrides the derived stage layout when Valid. Left zero, the
	// pipeline derives a full-frame layout from the source dimensions.
	Geometry StageGeometry `yaml:"geometry"`

	Keyframes []ZoomKeyframe `yaml:"keyframes"`

	// ZoomTrack supplies per-frame camera inputs. When nil, Keyframes drive
	// a ZoomTimeline; with neither, the camera is static.
	ZoomTrack func(frame int, seconds float64) ZoomInputs `yaml:"-"`

	// OnProgress, when set, is invoked after each frame is submitted.
	OnProgress func(Progress) `yaml:"-"`

	Logger *logrus.Logger `yaml:"-"`
}

// DefaultExportConfig returns a 1080p30 configuration with the default
// codec and a dark background.
func DefaultExportConfig() ExportConfig {
	return ExportConfig{
		Width:      1920,
		Height:     1080,
		FrameRate:  30,
		BitrateBps: 8_000_000,
		Codec:      DefaultCodec,
		Background: BackgroundColor{R: 16, G: 16, B: 20, A: 255},
	}
}

// Validate checks the configuration, filling defaulted fields in place.
func (c *ExportConfig) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("invalid output size %dx%d", c.Width, c.Height)
	}
	if c.FrameRate <= 0 {
		return fmt.Errorf("invalid frame rate %d", c.FrameRate)
	}
	if c.Codec == "" {
		c.Codec = DefaultCodec
	}
	if c.BitrateBps < 0 {
		return fmt.Errorf("invalid bitrate %d", c.BitrateBps)
	}
	return nil
}

// LoadExportPreset reads an ExportConfig from a yaml preset file.
func LoadExportPreset(path string) (ExportConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ExportConfig{}, fmt.Errorf("read preset: %w", err)
	}

	config := DefaultExportConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return ExportConfig{}, fmt.Errorf("parse preset: %w", err)
	}
	if err := config.Validate(); err != nil {
		return ExportConfig{}, fmt.Errorf("preset %s: %w", path, err)
	}
	return config, nil
}

// SaveExportPreset writes the yaml-serializable part of the configuration.
func SaveExportPreset(path string, config ExportConfig) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshal preset: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write preset: %w", err)
	}
	return nil
}

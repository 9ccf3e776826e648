package vcam

import (
	"image/color"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportConfigValidateDefaults(t *testing.T) {
	config := ExportConfig{Width: 640, Height: 360, FrameRate: 30}
	require.NoError(t, config.Validate())
	assert.Equal(t, DefaultCodec, config.Codec)
}

func TestExportConfigValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*ExportConfig)
	}{
		{"zero width", func(c *ExportConfig) { c.Width = 0 }},
		{"negative height", func(c *ExportConfig) { c.Height = -1 }},
		{"zero frame rate", func(c *ExportConfig) { c.FrameRate = 0 }},
		{"negative bitrate", func(c *ExportConfig) { c.BitrateBps = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			config := DefaultExportConfig()
			tc.mutate(&config)
			assert.Error(t, config.Validate())
		})
	}
}

func TestExportPresetRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preset.yaml")

	config := DefaultExportConfig()
	config.Width = 1280
	config.Height = 720
	config.Codec = CodecMJPEG
	config.Background = BackgroundColor{R: 1, G: 2, B: 3, A: 255}
	config.Crop = CropRect{X: 10, Y: 20, Width: 300, Height: 200}
	config.Keyframes = []ZoomKeyframe{
		{Time: 0, Zoom: 1, FocusX: 0.5, FocusY: 0.5},
		{Time: 2, Zoom: 2, FocusX: 0.25, FocusY: 0.75},
	}

	require.NoError(t, SaveExportPreset(path, config))

	loaded, err := LoadExportPreset(path)
	require.NoError(t, err)

	assert.Equal(t, config.Width, loaded.Width)
	assert.Equal(t, config.Height, loaded.Height)
	assert.Equal(t, config.Codec, loaded.Codec)
	assert.Equal(t, config.Background, loaded.Background)
	assert.Equal(t, config.Crop, loaded.Crop)
	assert.Equal(t, config.Keyframes, loaded.Keyframes)
}

func TestLoadExportPresetMissingFile(t *testing.T) {
	_, err := LoadExportPreset(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadExportPresetInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, SaveExportPreset(path, ExportConfig{Width: 100, Height: 100, FrameRate: -1}))

	_, err := LoadExportPreset(path)
	assert.Error(t, err)
}

func TestBackgroundColorRGBA(t *testing.T) {
	c := BackgroundColor{R: 5, G: 6, B: 7, A: 8}
	assert.Equal(t, color.RGBA{R: 5, G: 6, B: 7, A: 8}, c.RGBA())
}

package cmd

import (
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/elastic-io/mediagate/internal/transcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeImage(t *testing.T, path string, alpha bool) {
	img := image.NewNRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			a := uint8(255)
			if alpha && x < 8 {
				a = 0
			}
			img.Set(x, y, color.NRGBA{R: uint8(x * 4), G: uint8(y * 5), B: 90, A: a})
		}
	}

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	if filepath.Ext(path) == ".png" {
		require.NoError(t, png.Encode(f, img))
		return
	}
	require.NoError(t, jpeg.Encode(f, img, nil))
}

func TestTranscodeFile(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name        string
		input       string
		alpha       bool
		contentType string
		wantFormat  string
	}{
		{"jpeg sniffed", "photo.jpg", false, "", transcode.FormatWebP},
		{"transparent png", "logo.png", true, "", transcode.FormatPNG},
		{"opaque png", "flat.png", false, "image/png", transcode.FormatWebP},
		{"transparent png declared jpeg", "odd.png", true, "image/jpeg", transcode.FormatWebP},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := filepath.Join(dir, tt.input)
			writeImage(t, in, tt.alpha)

			path, format, err := transcodeFile(transcode.DefaultOptions(), in, filepath.Join(dir, "out-"+tt.input), tt.contentType)
			if !assert.NoError(t, err) {
				return
			}
			assert.Equal(t, tt.wantFormat, format)
			assert.Equal(t, "."+tt.wantFormat, filepath.Ext(path))
			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.Greater(t, info.Size(), int64(0))
		})
	}
}

func TestTranscodeFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, _, err := transcodeFile(transcode.DefaultOptions(), filepath.Join(dir, "missing.jpg"), filepath.Join(dir, "o"), "")
	assert.ErrorContains(t, err, "read input")

	junk := filepath.Join(dir, "junk.jpg")
	require.NoError(t, os.WriteFile(junk, []byte("not an image"), 0o644))
	_, _, err = transcodeFile(transcode.DefaultOptions(), junk, filepath.Join(dir, "o"), "image/jpeg")
	assert.Error(t, err)
}

package enrichmodule

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDownscale_LandscapeConstrainedByWidth(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 800, 600))

	out := downscale(img, 400)

	assert.Equal(t, 400, out.Bounds().Dx())
	assert.Equal(t, 300, out.Bounds().Dy())
}

func TestDownscale_PortraitConstrainedByHeight(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 300, 900))

	out := downscale(img, 450)

	assert.Equal(t, 150, out.Bounds().Dx())
	assert.Equal(t, 450, out.Bounds().Dy())
}

func TestDownscale_SmallImageUntouched(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 80))

	out := downscale(img, 400)

	assert.Same(t, img, out)
}

func TestPrepareForVision_SmallPNGPassesThrough(t *testing.T) {
	src := testPNG(t, 100, 80)

	out, mime, err := prepareForVision(src, "image/png", 400)

	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)
	assert.Equal(t, src, out)
}

func TestPrepareForVision_LargeImageReencoded(t *testing.T) {
	src := testPNG(t, 800, 600)

	out, mime, err := prepareForVision(src, "image/png", 400)

	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)

	cfg, _, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 400, cfg.Width)
	assert.Equal(t, 300, cfg.Height)
}

func TestPrepareForVision_GarbageBytes(t *testing.T) {
	_, _, err := prepareForVision([]byte("not an image"), "image/png", 400)

	assert.ErrorIs(t, err, ErrUnsupportedMediaType)
}

func TestPrepareForOCR_AlwaysPNG(t *testing.T) {
	src := testPNG(t, 1200, 400)

	out, err := prepareForOCR(src, "image/png", 550)

	require.NoError(t, err)
	cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 550, cfg.Width)
}

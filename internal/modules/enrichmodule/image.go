package enrichmodule

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/chai2010/webp"
	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// prepareForVision normalizes an image for submission to a vision
// backend: WebP is transcoded to PNG (the backend rejects it), and
// anything larger than maxDim on its longest side is downscaled to cut
// payload size. Returns the bytes and the mime type actually sent.
func prepareForVision(imageBytes []byte, mimeType string, maxDim int) ([]byte, string, error) {
	img, err := decodeImage(imageBytes, mimeType)
	if err != nil {
		return nil, "", err
	}
	needsTranscode := mimeType == "image/webp"
	scaled := downscale(img, maxDim)
	if scaled == img && !needsTranscode {
		return imageBytes, mimeType, nil
	}
	out, err := encodePNG(scaled)
	if err != nil {
		return nil, "", err
	}
	return out, "image/png", nil
}

// prepareForOCR downscales for the OCR engine and always re-encodes as
// PNG, which every tesseract build accepts.
func prepareForOCR(imageBytes []byte, mimeType string, maxDim int) ([]byte, error) {
	img, err := decodeImage(imageBytes, mimeType)
	if err != nil {
		return nil, err
	}
	return encodePNG(downscale(img, maxDim))
}

func decodeImage(imageBytes []byte, mimeType string) (image.Image, error) {
	if mimeType == "image/webp" {
		img, err := webp.Decode(bytes.NewReader(imageBytes))
		if err != nil {
			return nil, fmt.Errorf("decode webp: %w", err)
		}
		return img, nil
	}
	img, _, err := image.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedMediaType, err)
	}
	return img, nil
}

// downscale returns img resized so its longest side is at most maxDim,
// or img itself when already within bounds.
func downscale(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return img
	}
	var nw, nh int
	if w >= h {
		nw = maxDim
		nh = h * maxDim / w
	} else {
		nh = maxDim
		nw = w * maxDim / h
	}
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

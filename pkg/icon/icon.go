// Package icon prepares local icon content for upload.
//
// Uploads always carry PNG bytes. Source files may be PNG or JPEG; they are
// decoded, optionally alpha-bled, and re-encoded. Content fingerprints are
// computed on the raw source bytes, never on the processed output, so the
// fingerprint stays stable across changes to the processing pipeline.
package icon

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
)

// Process decodes icon bytes, optionally applies alpha bleed, and returns the
// PNG bytes to upload.
func Process(data []byte, bleed bool) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode icon: %w", err)
	}

	img := toNRGBA(src)
	if bleed {
		Bleed(img)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode icon: %w", err)
	}
	return buf.Bytes(), nil
}

func toNRGBA(src image.Image) *image.NRGBA {
	if img, ok := src.(*image.NRGBA); ok {
		return img
	}
	bounds := src.Bounds()
	img := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			img.Set(x-bounds.Min.X, y-bounds.Min.Y, src.At(x, y))
		}
	}
	return img
}

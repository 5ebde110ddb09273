package embedding

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // Enrollment photos are not always JPEG.

	xdraw "golang.org/x/image/draw"
)

// downscaleQuality keeps re-encoded frames small without hurting detection.
const downscaleQuality = 85

// DownscaleFrame re-encodes a JPEG frame so its width does not exceed
// maxWidth. Frames already small enough are returned untouched. Smaller
// frames keep the embedding service latency predictable on kiosk hardware.
func DownscaleFrame(frame []byte, maxWidth int) ([]byte, error) {
	if maxWidth <= 0 {
		return frame, nil
	}

	src, _, err := image.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	bounds := src.Bounds()
	if bounds.Dx() <= maxWidth {
		return frame, nil
	}

	height := bounds.Dy() * maxWidth / bounds.Dx()
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, height))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: downscaleQuality}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

package preview

import (
	"bytes"
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
)

const (
	// DefaultMaxWidth bounds the watermark-grade preview size.
	DefaultMaxWidth = 512
	webpQuality     = 75
)

// ContentType of rendered previews.
const ContentType = "image/webp"

// Renderer produces a downscaled WebP preview from a final generated asset.
// Rendering is best-effort everywhere it is used: a failed preview never
// blocks or reverts job completion.
type Renderer struct {
	maxWidth int
}

// NewRenderer creates a preview renderer.
func NewRenderer(maxWidth int) *Renderer {
	if maxWidth <= 0 {
		maxWidth = DefaultMaxWidth
	}
	return &Renderer{maxWidth: maxWidth}
}

// Render decodes the source asset, downscales it and encodes a WebP preview.
func (r *Renderer) Render(ctx context.Context, source []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := imaging.Decode(bytes.NewReader(source), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("error decoding source asset: %w", err)
	}

	resized := resizeToWidth(img, r.maxWidth)

	options, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, webpQuality)
	if err != nil {
		return nil, fmt.Errorf("error creating encoder options: %w", err)
	}

	var buf bytes.Buffer
	if err := webp.Encode(&buf, resized, options); err != nil {
		return nil, fmt.Errorf("error encoding WebP preview: %w", err)
	}
	return buf.Bytes(), nil
}

func resizeToWidth(img image.Image, maxWidth int) image.Image {
	if img.Bounds().Dx() <= maxWidth {
		return img
	}
	// Height 0 preserves aspect ratio
	return imaging.Resize(img, maxWidth, 0, imaging.Lanczos)
}

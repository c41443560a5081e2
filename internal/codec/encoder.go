// Package codec decodes source images and encodes export buffers.
package codec

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"math"

	"github.com/dunamismax/pixelgrade/internal/domain"
)

// Encoder turns a pixel buffer into compressed bytes. Quality is in 0.1..1
// and is ignored for png. Failures wrap domain.ErrEncodeFailure.
type Encoder interface {
	Encode(ctx context.Context, img image.Image, format domain.Format, quality float64) ([]byte, error)
}

const defaultQuality = 90

// NewEncoder returns the encoder selected at build time.
func NewEncoder() (Encoder, error) {
	return newEncoder()
}

// qualityPercent maps 0.1..1 onto the 1..100 scale codecs expect.
func qualityPercent(q float64) int {
	if q <= 0 || math.IsNaN(q) {
		return defaultQuality
	}
	p := int(math.Round(q * 100))
	if p < 1 {
		return 1
	}
	if p > 100 {
		return 100
	}
	return p
}

type stdlibEncoder struct{}

func (stdlibEncoder) Encode(ctx context.Context, img image.Image, format domain.Format, quality float64) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", domain.ErrEncodeFailure, ctx.Err())
	default:
	}

	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty image", domain.ErrEncodeFailure)
	}

	var buf bytes.Buffer
	switch format {
	case domain.FormatJPEG:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: qualityPercent(quality)}); err != nil {
			return nil, fmt.Errorf("%w: jpeg: %v", domain.ErrEncodeFailure, err)
		}
	case domain.FormatPNG:
		if err := encodePNG(&buf, img, png.DefaultCompression); err != nil {
			return nil, err
		}
	case domain.FormatWEBP, domain.FormatAVIF:
		return nil, fmt.Errorf("%w: %s export requires govips build tag", domain.ErrEncodeFailure, format)
	default:
		return nil, fmt.Errorf("%w: unsupported output format %q", domain.ErrEncodeFailure, format)
	}

	return buf.Bytes(), nil
}

func encodePNG(buf *bytes.Buffer, img image.Image, level png.CompressionLevel) error {
	encoder := png.Encoder{CompressionLevel: level}
	if err := encoder.Encode(buf, img); err != nil {
		return fmt.Errorf("%w: png: %v", domain.ErrEncodeFailure, err)
	}
	return nil
}

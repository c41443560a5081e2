//go:build govips && cgo

package codec

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/dunamismax/pixelgrade/internal/domain"
)

type govipsEncoder struct{}

func (govipsEncoder) Encode(ctx context.Context, img image.Image, format domain.Format, quality float64) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", domain.ErrEncodeFailure, ctx.Err())
	default:
	}

	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty image", domain.ErrEncodeFailure)
	}

	// libvips loads the adjusted buffer from a lossless intermediate.
	var lossless bytes.Buffer
	if err := encodePNG(&lossless, img, png.NoCompression); err != nil {
		return nil, err
	}

	ref, err := vips.NewImageFromBuffer(lossless.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%w: load buffer: %v", domain.ErrEncodeFailure, err)
	}
	defer ref.Close()

	var data []byte
	switch format {
	case domain.FormatJPEG:
		params := vips.NewJpegExportParams()
		params.Quality = qualityPercent(quality)
		data, _, err = ref.ExportJpeg(params)
	case domain.FormatPNG:
		data, _, err = ref.ExportPng(vips.NewPngExportParams())
	case domain.FormatWEBP:
		params := vips.NewWebpExportParams()
		params.Quality = qualityPercent(quality)
		data, _, err = ref.ExportWebp(params)
	case domain.FormatAVIF:
		params := vips.NewAvifExportParams()
		params.Quality = qualityPercent(quality)
		data, _, err = ref.ExportAvif(params)
	default:
		return nil, fmt.Errorf("%w: unsupported output format %q", domain.ErrEncodeFailure, format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrEncodeFailure, format, err)
	}
	return data, nil
}

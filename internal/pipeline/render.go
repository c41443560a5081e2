package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/disintegration/imaging"
	"github.com/dunamismax/pixelgrade/internal/adjust"
	"github.com/dunamismax/pixelgrade/internal/codec"
	"github.com/dunamismax/pixelgrade/internal/domain"
	"github.com/dunamismax/pixelgrade/internal/geometry"
)

// Output is one encoded export of an asset.
type Output struct {
	AssetID     string
	Name        string
	Format      domain.Format
	ContentType string
	Data        []byte
	Width       int
	Height      int
}

// Renderer turns an asset snapshot into an encoded file: fetch, geometry,
// resample, adjust, encode, name.
type Renderer struct {
	fetcher SourceFetcher
	encoder codec.Encoder
}

func NewRenderer(fetcher SourceFetcher, encoder codec.Encoder) (*Renderer, error) {
	if fetcher == nil {
		return nil, errors.New("source fetcher is required")
	}
	if encoder == nil {
		return nil, errors.New("encoder is required")
	}
	return &Renderer{fetcher: fetcher, encoder: encoder}, nil
}

// NewLocalRenderer renders assets whose bytes are held in memory.
func NewLocalRenderer() (*Renderer, error) {
	encoder, err := codec.NewEncoder()
	if err != nil {
		return nil, fmt.Errorf("build encoder: %w", err)
	}
	return NewRenderer(InlineSource{}, encoder)
}

func (r *Renderer) Render(ctx context.Context, asset domain.Asset, settings domain.ExportSettings) (Output, error) {
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}

	data, err := r.fetcher.Fetch(ctx, asset)
	if err != nil {
		return Output{}, fmt.Errorf("fetch stage asset=%s: %w", asset.ID, err)
	}

	src, err := codec.Decode(data)
	if err != nil {
		return Output{}, fmt.Errorf("decode stage asset=%s: %w", asset.ID, err)
	}

	bounds := src.Bounds()
	geo, err := geometry.Compute(bounds.Dx(), bounds.Dy(), asset.Crop, settings.Size)
	if err != nil {
		return Output{}, fmt.Errorf("geometry stage asset=%s: %w", asset.ID, err)
	}

	width, height := geo.Size()
	img := imaging.Crop(src, geo.Crop.Add(bounds.Min))
	if img.Bounds().Dx() != width || img.Bounds().Dy() != height {
		img = imaging.Resize(img, width, height, imaging.Lanczos)
	}

	if !asset.Adjustments.IsIdentity() {
		img = adjust.Apply(img, asset.Adjustments)
	}

	if err := ctx.Err(); err != nil {
		return Output{}, err
	}

	encoded, err := r.encoder.Encode(ctx, img, settings.Format, settings.Quality)
	if err != nil {
		return Output{}, fmt.Errorf("encode stage asset=%s format=%s: %w", asset.ID, settings.Format, err)
	}

	return Output{
		AssetID:     asset.ID,
		Name:        OutputName(asset.Name, settings.Format),
		Format:      settings.Format,
		ContentType: settings.Format.ContentType(),
		Data:        encoded,
		Width:       width,
		Height:      height,
	}, nil
}

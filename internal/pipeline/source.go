package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dunamismax/pixelgrade/internal/domain"
	"github.com/dunamismax/pixelgrade/internal/storage"
)

var ErrMissingSource = errors.New("asset has no source")

// SourceFetcher resolves the encoded bytes of an asset.
type SourceFetcher interface {
	Fetch(ctx context.Context, asset domain.Asset) ([]byte, error)
}

// InlineSource serves the bytes already carried by the asset.
type InlineSource struct{}

func (InlineSource) Fetch(ctx context.Context, asset domain.Asset) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(asset.Source) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingSource, asset.ID)
	}
	return asset.Source, nil
}

type ObjectReader interface {
	ReadObject(ctx context.Context, objectKey string) ([]byte, error)
}

// ObjectStoreSource reads the mirrored source from object storage. Assets
// that still carry their bytes are served inline.
type ObjectStoreSource struct {
	Storage ObjectReader
}

func (s ObjectStoreSource) Fetch(ctx context.Context, asset domain.Asset) ([]byte, error) {
	if len(asset.Source) > 0 {
		return InlineSource{}.Fetch(ctx, asset)
	}
	if s.Storage == nil {
		return nil, errors.New("storage client is required")
	}
	if strings.TrimSpace(asset.ObjectKey) == "" {
		return nil, fmt.Errorf("%w: %s has no object key", ErrMissingSource, asset.ID)
	}
	data, err := s.Storage.ReadObject(ctx, asset.ObjectKey)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, fmt.Errorf("%w: %s: %w", ErrMissingSource, asset.ID, err)
	}
	return data, err
}

// Package preview renders the live, adjusted thumbnail shown while an asset
// is being edited.
package preview

import (
	"bytes"
	"errors"
	"fmt"
	"image/png"
	"sync"

	"github.com/dunamismax/pixelgrade/internal/adjust"
	"github.com/dunamismax/pixelgrade/internal/codec"
	"github.com/dunamismax/pixelgrade/internal/domain"
	"github.com/nfnt/resize"
)

const DefaultMaxEdge = 1024

// Handle owns an encoded image. Its bytes are dropped on Release; Release is
// idempotent.
type Handle struct {
	mu          sync.Mutex
	data        []byte
	contentType string
	width       int
	height      int
	released    bool
}

func NewHandle(data []byte, contentType string, width, height int) *Handle {
	return &Handle{
		data:        data,
		contentType: contentType,
		width:       width,
		height:      height,
	}
}

// Bytes returns the encoded image, or nil once released.
func (h *Handle) Bytes() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.data
}

func (h *Handle) ContentType() string { return h.contentType }

func (h *Handle) Size() (int, int) { return h.width, h.height }

func (h *Handle) Release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.data = nil
	h.released = true
}

func (h *Handle) Released() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}

// Render draws the whole (uncropped) source scaled to fit a maxEdge square,
// graded with the asset's adjustments, as PNG. Small sources are not
// upscaled.
func Render(asset domain.Asset, maxEdge int) (*Handle, error) {
	if maxEdge <= 0 {
		maxEdge = DefaultMaxEdge
	}
	if len(asset.Source) == 0 {
		return nil, errors.New("asset has no source bytes")
	}

	src, err := codec.Decode(asset.Source)
	if err != nil {
		return nil, fmt.Errorf("decode preview source: %w", err)
	}

	scaled := resize.Thumbnail(uint(maxEdge), uint(maxEdge), src, resize.Lanczos3)
	graded := adjust.Apply(scaled, asset.Adjustments)

	var buf bytes.Buffer
	encoder := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := encoder.Encode(&buf, graded); err != nil {
		return nil, fmt.Errorf("encode preview: %w", err)
	}

	bounds := graded.Bounds()
	return NewHandle(buf.Bytes(), "image/png", bounds.Dx(), bounds.Dy()), nil
}

package preview

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/dunamismax/pixelgrade/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidPNG(t *testing.T, w, h int, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestRenderScalesAndAdjusts(t *testing.T) {
	asset := domain.Asset{
		ID:          "a1",
		Source:      solidPNG(t, 400, 200, color.NRGBA{R: 100, G: 100, B: 100, A: 255}),
		Adjustments: domain.Adjustments{Exposure: 50},
	}

	h, err := Render(asset, 100)
	require.NoError(t, err)

	w, hgt := h.Size()
	assert.Equal(t, 100, w)
	assert.Equal(t, 50, hgt)
	assert.Equal(t, "image/png", h.ContentType())

	img, err := png.Decode(bytes.NewReader(h.Bytes()))
	require.NoError(t, err)
	r, g, b, _ := img.At(50, 25).RGBA()
	assert.InDelta(t, 150, int(r>>8), 1)
	assert.InDelta(t, 150, int(g>>8), 1)
	assert.InDelta(t, 150, int(b>>8), 1)
}

func TestRenderDoesNotUpscale(t *testing.T) {
	asset := domain.Asset{Source: solidPNG(t, 40, 30, color.NRGBA{A: 255})}

	h, err := Render(asset, 0)
	require.NoError(t, err)

	w, hgt := h.Size()
	assert.Equal(t, 40, w)
	assert.Equal(t, 30, hgt)
}

func TestRenderFailures(t *testing.T) {
	_, err := Render(domain.Asset{}, 100)
	assert.Error(t, err)

	_, err = Render(domain.Asset{Source: []byte("nope")}, 100)
	assert.ErrorIs(t, err, domain.ErrDecodeFailure)
}

func TestHandleRelease(t *testing.T) {
	h := NewHandle([]byte{1, 2, 3}, "image/png", 1, 1)
	require.False(t, h.Released())

	h.Release()
	h.Release()

	assert.True(t, h.Released())
	assert.Nil(t, h.Bytes())
}

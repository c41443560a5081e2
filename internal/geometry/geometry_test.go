package geometry

import (
	"image"
	"math"
	"testing"

	"github.com/dunamismax/pixelgrade/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeDefaultsToFullSource(t *testing.T) {
	g, err := Compute(640, 480, nil, domain.OriginalSize())
	require.NoError(t, err)

	assert.Equal(t, image.Rect(0, 0, 640, 480), g.Crop)
	w, h := g.Size()
	assert.Equal(t, 640, w)
	assert.Equal(t, 480, h)
}

func TestComputeOriginalKeepsCropDimensions(t *testing.T) {
	g, err := Compute(1000, 800, &domain.CropRegion{X: 10, Y: 20, Width: 333, Height: 211}, domain.OriginalSize())
	require.NoError(t, err)

	w, h := g.Size()
	assert.Equal(t, 333, w)
	assert.Equal(t, 211, h)
}

func TestComputePresetLandscape(t *testing.T) {
	g, err := Compute(400, 400, &domain.CropRegion{X: 0, Y: 0, Width: 200, Height: 100}, domain.PresetSize(100))
	require.NoError(t, err)

	w, h := g.Size()
	assert.Equal(t, 100, w)
	assert.Equal(t, 50, h)
}

func TestComputeCustomPortrait(t *testing.T) {
	g, err := Compute(300, 900, nil, domain.CustomSize(1920))
	require.NoError(t, err)

	assert.InDelta(t, 640, g.Width, 1e-9)
	assert.InDelta(t, 1920, g.Height, 1e-9)
}

func TestComputeKeepsFractionalDimensions(t *testing.T) {
	g, err := Compute(300, 200, nil, domain.PresetSize(250))
	require.NoError(t, err)

	assert.InDelta(t, 166.6666, g.Height, 1e-3)
	_, h := g.Size()
	assert.Equal(t, 167, h)
}

func TestComputePreservesAspectRatio(t *testing.T) {
	crops := []domain.CropRegion{
		{Width: 200, Height: 100},
		{Width: 100, Height: 200},
		{Width: 1, Height: 1},
		{Width: 1234, Height: 567},
		{Width: 17, Height: 1999},
		{X: 5, Y: 9, Width: 1919, Height: 1080},
	}
	policies := []domain.SizePolicy{
		domain.PresetSize(250), domain.PresetSize(500), domain.PresetSize(800),
		domain.PresetSize(1080), domain.CustomSize(1920), domain.CustomSize(37),
	}

	for _, crop := range crops {
		for _, policy := range policies {
			crop := crop
			g, err := Compute(4000, 4000, &crop, policy)
			require.NoError(t, err)

			want := float64(crop.Width) / float64(crop.Height)
			assert.InDelta(t, want, g.AspectRatio(), 0.01, "crop %+v policy %+v", crop, policy)
		}
	}
}

func TestComputeRejectsInvalidInput(t *testing.T) {
	_, err := Compute(0, 10, nil, domain.OriginalSize())
	assert.ErrorIs(t, err, domain.ErrInvalidCrop)

	_, err = Compute(10, 10, nil, domain.SizePolicy{Type: domain.SizePreset})
	assert.ErrorIs(t, err, domain.ErrInvalidGeometry)

	_, err = Compute(10, 10, nil, domain.SizePolicy{Type: "stretch", Pixels: 5})
	assert.ErrorIs(t, err, domain.ErrInvalidGeometry)
}

func TestClampCrop(t *testing.T) {
	tests := []struct {
		name string
		crop domain.CropRegion
		want image.Rectangle
	}{
		{"inside", domain.CropRegion{X: 10, Y: 10, Width: 20, Height: 30}, image.Rect(10, 10, 30, 40)},
		{"overflow right and bottom", domain.CropRegion{X: 90, Y: 50, Width: 50, Height: 100}, image.Rect(90, 50, 100, 80)},
		{"negative origin", domain.CropRegion{X: -10, Y: -5, Width: 30, Height: 20}, image.Rect(0, 0, 20, 15)},
		{"entirely outside", domain.CropRegion{X: 500, Y: 500, Width: 10, Height: 10}, image.Rect(99, 79, 100, 80)},
		{"zero size", domain.CropRegion{X: 5, Y: 5}, image.Rect(5, 5, 6, 6)},
		{"huge size", domain.CropRegion{X: 10, Y: 5, Width: math.MaxInt, Height: math.MaxInt}, image.Rect(10, 5, 100, 80)},
		{"huge origin and size", domain.CropRegion{X: math.MaxInt, Y: math.MaxInt, Width: math.MaxInt, Height: math.MaxInt}, image.Rect(99, 79, 100, 80)},
		{"most negative origin", domain.CropRegion{X: math.MinInt, Y: math.MinInt, Width: -1, Height: -1}, image.Rect(0, 0, 1, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			crop := tt.crop
			got, err := ClampCrop(100, 80, &crop)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClampRegion(t *testing.T) {
	got, err := ClampRegion(100, 80, domain.CropRegion{X: 90, Y: -4, Width: 50, Height: 20})
	require.NoError(t, err)

	assert.Equal(t, domain.CropRegion{X: 90, Y: 0, Width: 10, Height: 16}, got)
}

func TestScaleToFit(t *testing.T) {
	w, h := ScaleToFit(4000, 2000, 800, 600)
	assert.Equal(t, 800, w)
	assert.Equal(t, 400, h)

	w, h = ScaleToFit(1000, 3000, 800, 600)
	assert.Equal(t, 200, w)
	assert.Equal(t, 600, h)

	w, h = ScaleToFit(300, 200, 800, 600)
	assert.Equal(t, 300, w)
	assert.Equal(t, 200, h)

	w, h = ScaleToFit(0, 200, 800, 600)
	assert.Zero(t, w)
	assert.Zero(t, h)
}

package adjust

import (
	"image"
	"image/color"
	"testing"

	"github.com/dunamismax/pixelgrade/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gradientImage covers a wide spread of channel values and alphas.
func gradientImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8((x * 255) / max(1, w-1)),
				G: uint8((y * 255) / max(1, h-1)),
				B: uint8(((x + y) * 37) % 256),
				A: uint8(255 - (x*7)%128),
			})
		}
	}
	return img
}

func TestApplyIdentity(t *testing.T) {
	src := gradientImage(64, 48)

	out := Apply(src, domain.Adjustments{})

	require.Equal(t, src.Bounds().Size(), out.Bounds().Size())
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			assert.Equal(t, src.NRGBAAt(x, y), out.NRGBAAt(x, y), "pixel (%d,%d)", x, y)
		}
	}
}

func TestApplyClampsExtremeParameters(t *testing.T) {
	src := gradientImage(32, 32)
	params := []domain.Adjustments{
		{Exposure: 500},
		{Exposure: -500},
		{Contrast: 1000, Saturation: 1000},
		{Temperature: 400, Tint: -400},
		{Highlights: 300, Shadows: 300},
		{Highlights: -300, Shadows: -300},
		{Exposure: 100, Contrast: 100, Saturation: 100, Temperature: 100, Tint: 100, Highlights: 100, Shadows: 100},
		{Exposure: -100, Contrast: -100, Saturation: -100, Temperature: -100, Tint: -100, Highlights: -100, Shadows: -100},
	}

	for _, p := range params {
		out := Apply(src, p)
		// uint8 channels cannot leave 0..255; verify alpha survived and no pixel
		// wrapped around by checking monotone extremes.
		for i := 0; i < len(out.Pix); i += 4 {
			assert.Equal(t, src.Pix[i+3], out.Pix[i+3], "alpha changed for %+v", p)
		}
	}

	bright := Pixel(color.NRGBA{R: 200, G: 200, B: 200, A: 255}, domain.Adjustments{Exposure: 500})
	assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, bright)

	dark := Pixel(color.NRGBA{R: 200, G: 10, B: 90, A: 255}, domain.Adjustments{Exposure: -500})
	assert.Equal(t, color.NRGBA{R: 0, G: 0, B: 0, A: 255}, dark)
}

func TestPixelExposureScenario(t *testing.T) {
	out := Pixel(color.NRGBA{R: 100, G: 100, B: 100, A: 255}, domain.Adjustments{Exposure: 50})

	assert.Equal(t, color.NRGBA{R: 150, G: 150, B: 150, A: 255}, out)
}

func TestPixelTemperatureAndTint(t *testing.T) {
	out := Pixel(color.NRGBA{R: 100, G: 100, B: 100, A: 10}, domain.Adjustments{Temperature: 20, Tint: -30})

	assert.Equal(t, color.NRGBA{R: 120, G: 70, B: 80, A: 10}, out)
}

func TestPixelSaturationZeroDesaturates(t *testing.T) {
	out := Pixel(color.NRGBA{R: 200, G: 100, B: 50, A: 255}, domain.Adjustments{Saturation: -100})

	// luma = 0.299*200 + 0.587*100 + 0.114*50 = 124.2
	assert.Equal(t, color.NRGBA{R: 124, G: 124, B: 124, A: 255}, out)
}

func TestPixelContrastPivotsAroundMidGray(t *testing.T) {
	p := domain.Adjustments{Contrast: 100}

	assert.Equal(t, uint8(0), Pixel(color.NRGBA{R: 50, A: 255}, p).R)
	assert.Equal(t, uint8(255), Pixel(color.NRGBA{R: 200, A: 255}, p).R)
	mid := Pixel(color.NRGBA{R: 128, G: 128, B: 128, A: 255}, p)
	assert.InDelta(t, 128, int(mid.R), 1)
}

func TestPixelToneUsesOriginalLuminance(t *testing.T) {
	// Exposure -100 turns the pixel black before step 5, but the highlight lift
	// is still weighted by the ungraded luminance of white (1.0).
	out := Pixel(color.NRGBA{R: 255, G: 255, B: 255, A: 255}, domain.Adjustments{Exposure: -100, Highlights: 50})

	// 0 + 0.5*(255-0)*1.0 = 127.5
	assert.Equal(t, uint8(128), out.R)
	assert.Equal(t, out.R, out.G)
	assert.Equal(t, out.R, out.B)

	// Shadows weight by 1-luminance, so a white pixel is untouched.
	white := Pixel(color.NRGBA{R: 255, G: 255, B: 255, A: 255}, domain.Adjustments{Shadows: -80})
	assert.Equal(t, uint8(255), white.R)

	// Black is untouched by highlights but lifted by shadows.
	black := color.NRGBA{A: 255}
	assert.Equal(t, uint8(0), Pixel(black, domain.Adjustments{Highlights: 100}).R)
	assert.Equal(t, uint8(255), Pixel(black, domain.Adjustments{Shadows: 100}).R)
}

func TestApplyLeavesSourceUntouched(t *testing.T) {
	src := gradientImage(16, 16)
	before := append([]uint8(nil), src.Pix...)

	_ = Apply(src, domain.Adjustments{Exposure: 40, Contrast: -20, Shadows: 30})

	assert.Equal(t, before, src.Pix)
}

func TestApplyIsDeterministic(t *testing.T) {
	src := gradientImage(40, 30)
	p := domain.Adjustments{Exposure: 13, Contrast: -27, Saturation: 45, Temperature: -8, Tint: 5, Highlights: -33, Shadows: 61}

	a := Apply(src, p)
	b := Apply(src, p)

	assert.Equal(t, a.Pix, b.Pix)
}

func TestApplyEmptyImage(t *testing.T) {
	out := Apply(image.NewNRGBA(image.Rect(0, 0, 0, 0)), domain.Adjustments{Exposure: 20})

	assert.True(t, out.Bounds().Empty())
}

func BenchmarkApply(b *testing.B) {
	src := gradientImage(1920, 1080)
	p := domain.Adjustments{Exposure: 10, Contrast: 15, Saturation: -20, Highlights: 25, Shadows: -10}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Apply(src, p)
	}
}

// Package adjust implements the per-pixel color grading applied to previews
// and exports.
package adjust

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/dunamismax/pixelgrade/internal/domain"
)

// BT.601 luma weights.
const (
	lumaR = 0.299
	lumaG = 0.587
	lumaB = 0.114
)

// factors holds the per-run constants derived from the parameters.
type factors struct {
	exposure    float64
	contrast    float64
	saturation  float64
	temperature float64
	tint        float64
	highlights  float64
	shadows     float64
}

func newFactors(p domain.Adjustments) factors {
	return factors{
		exposure:    1 + float64(p.Exposure)/100,
		contrast:    1 + float64(p.Contrast)/100,
		saturation:  1 + float64(p.Saturation)/100,
		temperature: float64(p.Temperature),
		tint:        float64(p.Tint),
		highlights:  float64(p.Highlights) / 100,
		shadows:     float64(p.Shadows) / 100,
	}
}

// Apply returns a new non-premultiplied buffer holding src graded by p. The
// source is never written to. An empty source yields an empty buffer.
func Apply(src image.Image, p domain.Adjustments) *image.NRGBA {
	f := newFactors(p)
	return imaging.AdjustFunc(src, f.pixel)
}

// Pixel grades a single pixel.
func Pixel(c color.NRGBA, p domain.Adjustments) color.NRGBA {
	return newFactors(p).pixel(c)
}

func (f factors) pixel(c color.NRGBA) color.NRGBA {
	r0, g0, b0 := float64(c.R), float64(c.G), float64(c.B)

	r := r0 * f.exposure
	g := g0 * f.exposure
	b := b0 * f.exposure

	r = ((r/255-0.5)*f.contrast + 0.5) * 255
	g = ((g/255-0.5)*f.contrast + 0.5) * 255
	b = ((b/255-0.5)*f.contrast + 0.5) * 255

	r += f.temperature
	b -= f.temperature
	g += f.tint

	luma := r*lumaR + g*lumaG + b*lumaB
	r = luma + (r-luma)*f.saturation
	g = luma + (g-luma)*f.saturation
	b = luma + (b-luma)*f.saturation

	// Tonal weighting uses the ungraded pixel.
	lum := (r0*lumaR + g0*lumaG + b0*lumaB) / 255
	r, g, b = tone(r, g, b, f.highlights, lum)
	r, g, b = tone(r, g, b, f.shadows, 1-lum)

	return color.NRGBA{R: clamp(r), G: clamp(g), B: clamp(b), A: c.A}
}

// tone lifts channels toward white when amount is positive and pulls them
// toward black otherwise, scaled by weight.
func tone(r, g, b, amount, weight float64) (float64, float64, float64) {
	if amount > 0 {
		return r + amount*(255-r)*weight,
			g + amount*(255-g)*weight,
			b + amount*(255-b)*weight
	}
	return r + amount*r*weight,
		g + amount*g*weight,
		b + amount*b*weight
}

func clamp(v float64) uint8 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(math.Round(v))
}

// Package geometry resolves the crop rectangle and output dimensions of an
// export.
package geometry

import (
	"fmt"
	"image"
	"math"

	"github.com/dunamismax/pixelgrade/internal/domain"
)

// Geometry is the resolved crop and the unrounded output size. Width and
// Height stay fractional until Size is called at allocation time.
type Geometry struct {
	Crop   image.Rectangle
	Width  float64
	Height float64
}

// Size rounds the output dimensions to whole pixels, never below one.
func (g Geometry) Size() (int, int) {
	return roundPixels(g.Width), roundPixels(g.Height)
}

func (g Geometry) AspectRatio() float64 {
	if g.Height == 0 {
		return 0
	}
	return g.Width / g.Height
}

// Compute resolves the crop (clamped to the source) and the output size for
// the given size policy. Preset and custom policies scale the longer crop
// edge to policy.Pixels; a square crop scales its width.
func Compute(srcW, srcH int, crop *domain.CropRegion, policy domain.SizePolicy) (Geometry, error) {
	rect, err := ClampCrop(srcW, srcH, crop)
	if err != nil {
		return Geometry{}, err
	}

	cropW := float64(rect.Dx())
	cropH := float64(rect.Dy())
	g := Geometry{Crop: rect, Width: cropW, Height: cropH}

	switch policy.Type {
	case domain.SizeOriginal, "":
		return g, nil
	case domain.SizePreset, domain.SizeCustom:
	default:
		return Geometry{}, fmt.Errorf("%w: unknown size policy %q", domain.ErrInvalidGeometry, policy.Type)
	}

	if policy.Pixels <= 0 {
		return Geometry{}, fmt.Errorf("%w: target size must be positive, got %d", domain.ErrInvalidGeometry, policy.Pixels)
	}

	target := float64(policy.Pixels)
	aspect := cropW / cropH
	if cropW >= cropH {
		g.Width = target
		g.Height = target / aspect
	} else {
		g.Height = target
		g.Width = target * aspect
	}
	return g, nil
}

// ClampCrop returns the crop rectangle intersected with the source bounds. A
// nil crop selects the whole source. Crops that fall entirely outside the
// source collapse to a one pixel wide strip along the nearest edge instead of
// failing.
func ClampCrop(srcW, srcH int, crop *domain.CropRegion) (image.Rectangle, error) {
	if srcW <= 0 || srcH <= 0 {
		return image.Rectangle{}, fmt.Errorf("%w: source has invalid dimensions %dx%d", domain.ErrInvalidCrop, srcW, srcH)
	}

	bounds := image.Rect(0, 0, srcW, srcH)
	if crop == nil {
		return bounds, nil
	}

	x0 := clamp(crop.X, 0, srcW-1)
	y0 := clamp(crop.Y, 0, srcH-1)
	x1 := clamp(saturatingAdd(crop.X, crop.Width), x0+1, srcW)
	y1 := clamp(saturatingAdd(crop.Y, crop.Height), y0+1, srcH)
	return image.Rect(x0, y0, x1, y1), nil
}

// ClampRegion is ClampCrop expressed as a crop region.
func ClampRegion(srcW, srcH int, crop domain.CropRegion) (domain.CropRegion, error) {
	rect, err := ClampCrop(srcW, srcH, &crop)
	if err != nil {
		return domain.CropRegion{}, err
	}
	return domain.CropRegion{X: rect.Min.X, Y: rect.Min.Y, Width: rect.Dx(), Height: rect.Dy()}, nil
}

// ScaleToFit returns the largest size with the source aspect ratio that fits
// inside the box. Sources already inside the box are returned unchanged.
func ScaleToFit(srcW, srcH, boxW, boxH int) (int, int) {
	if srcW <= 0 || srcH <= 0 || boxW <= 0 || boxH <= 0 {
		return 0, 0
	}
	if srcW <= boxW && srcH <= boxH {
		return srcW, srcH
	}

	ratio := float64(srcW) / float64(srcH)
	w := float64(boxW)
	h := w / ratio
	if h > float64(boxH) {
		h = float64(boxH)
		w = h * ratio
	}
	return roundPixels(w), roundPixels(h)
}

func roundPixels(v float64) int {
	px := int(math.Round(v))
	if px < 1 {
		return 1
	}
	return px
}

// saturatingAdd returns a+b pinned to the int range instead of wrapping.
func saturatingAdd(a, b int) int {
	sum := a + b
	switch {
	case b > 0 && sum < a:
		return math.MaxInt
	case b < 0 && sum > a:
		return math.MinInt
	}
	return sum
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

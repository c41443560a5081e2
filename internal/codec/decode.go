package codec

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/dunamismax/pixelgrade/internal/domain"
	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Config is the header-level description of a source image. Width and Height
// are the dimensions as displayed, i.e. after EXIF orientation.
type Config struct {
	Width       int
	Height      int
	Format      string
	Orientation int
}

// DecodeConfig reads the image header without decoding pixel data.
func DecodeConfig(data []byte) (Config, error) {
	if len(data) == 0 {
		return Config{}, fmt.Errorf("%w: empty source", domain.ErrDecodeFailure)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Config{}, fmt.Errorf("%w: %v", domain.ErrDecodeFailure, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return Config{}, fmt.Errorf("%w: invalid dimensions %dx%d", domain.ErrDecodeFailure, cfg.Width, cfg.Height)
	}

	out := Config{
		Width:       cfg.Width,
		Height:      cfg.Height,
		Format:      format,
		Orientation: orientation(data),
	}
	// Orientations 5-8 rotate by 90 degrees.
	if out.Orientation >= 5 && out.Orientation <= 8 {
		out.Width, out.Height = out.Height, out.Width
	}
	return out, nil
}

// Decode fully decodes the source, applying its EXIF orientation.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty source", domain.ErrDecodeFailure)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDecodeFailure, err)
	}
	return orient(img, orientation(data)), nil
}

// orient applies an EXIF orientation. It runs for every container goexif can
// read, so TIFF sources turn the same way DecodeConfig reports them.
func orient(img image.Image, o int) image.Image {
	switch o {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	}
	return img
}

func orientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	v, err := tag.Int(0)
	if err != nil || v < 1 || v > 8 {
		return 1
	}
	return v
}

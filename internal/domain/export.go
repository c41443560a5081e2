package domain

import (
	"fmt"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatWEBP Format = "webp"
	FormatAVIF Format = "avif"
)

// ParseFormat accepts the canonical names plus the common "jpg" alias.
func ParseFormat(in string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(in))); f {
	case "jpg":
		return FormatJPEG, nil
	case FormatJPEG, FormatPNG, FormatWEBP, FormatAVIF:
		return f, nil
	default:
		return "", fmt.Errorf("%w: unsupported format %q", ErrInvalidSettings, in)
	}
}

// Extension is the file extension written for this format, without the dot.
func (f Format) Extension() string {
	return string(f)
}

func (f Format) ContentType() string {
	return "image/" + string(f)
}

type SizeType string

const (
	SizeOriginal SizeType = "original"
	SizePreset   SizeType = "preset"
	SizeCustom   SizeType = "custom"
)

// PresetSizes are the longest-edge targets offered next to "original".
var PresetSizes = []int{250, 500, 800, 1080}

const DefaultCustomSize = 1920

// SizePolicy picks the output dimensions. Pixels is the target length of the
// longest output edge and is ignored for SizeOriginal.
type SizePolicy struct {
	Type   SizeType `json:"type" default:"original" validate:"oneof=original preset custom"`
	Pixels int      `json:"pixels,omitempty" validate:"gte=0"`
}

func OriginalSize() SizePolicy {
	return SizePolicy{Type: SizeOriginal}
}

func PresetSize(pixels int) SizePolicy {
	return SizePolicy{Type: SizePreset, Pixels: pixels}
}

func CustomSize(pixels int) SizePolicy {
	return SizePolicy{Type: SizeCustom, Pixels: pixels}
}

type ExportSettings struct {
	Format  Format     `json:"format" default:"jpeg" validate:"oneof=jpeg png webp avif"`
	Quality float64    `json:"quality" default:"0.9" validate:"gte=0.1,lte=1"`
	Size    SizePolicy `json:"size"`
}

func DefaultExportSettings() ExportSettings {
	var s ExportSettings
	_ = defaults.Set(&s)
	return s
}

// ApplyDefaults fills zero-valued fields with the default settings.
func (s *ExportSettings) ApplyDefaults() error {
	if err := defaults.Set(s); err != nil {
		return fmt.Errorf("apply export defaults: %w", err)
	}
	return nil
}

func (s ExportSettings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	if s.Size.Type != SizeOriginal && s.Size.Pixels <= 0 {
		return fmt.Errorf("%w: size.pixels must be positive for %s sizing", ErrInvalidSettings, s.Size.Type)
	}
	return nil
}

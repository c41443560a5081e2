package domain

import (
	"errors"
	"strings"
	"time"
)

// CropRegion is a pixel rectangle inside the source image.
type CropRegion struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Asset is one registered image. Values handed out by the asset store are
// copies; Source is shared and must be treated as read-only.
type Asset struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Width        int         `json:"width"`
	Height       int         `json:"height"`
	SourceFormat string      `json:"source_format"`
	ObjectKey    string      `json:"object_key,omitempty"`
	Adjustments  Adjustments `json:"adjustments"`
	Crop         *CropRegion `json:"crop,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	Source       []byte      `json:"-"`
}

// Clone returns a snapshot that does not alias the mutable crop pointer.
func (a Asset) Clone() Asset {
	if a.Crop != nil {
		crop := *a.Crop
		a.Crop = &crop
	}
	return a
}

func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyRename
	}
	return nil
}

func (c CropRegion) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return errors.New("crop width and height must be positive")
	}
	return nil
}

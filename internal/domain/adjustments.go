package domain

import "fmt"

// Adjustments is the seven-channel color grading applied to an asset. Each
// channel is documented for -100..100; values outside that range are not
// clamped and extrapolate the same formulas.
type Adjustments struct {
	Exposure    int `json:"exposure" validate:"min=-100,max=100"`
	Contrast    int `json:"contrast" validate:"min=-100,max=100"`
	Saturation  int `json:"saturation" validate:"min=-100,max=100"`
	Temperature int `json:"temperature" validate:"min=-100,max=100"`
	Tint        int `json:"tint" validate:"min=-100,max=100"`
	Highlights  int `json:"highlights" validate:"min=-100,max=100"`
	Shadows     int `json:"shadows" validate:"min=-100,max=100"`
}

func (a Adjustments) IsIdentity() bool {
	return a == Adjustments{}
}

// Validate enforces the documented slider range. The adjustment engine itself
// accepts any value; this is for request boundaries only.
func (a Adjustments) Validate() error {
	if err := validate.Struct(a); err != nil {
		return fmt.Errorf("adjustments: %w", err)
	}
	return nil
}

package domain

import "errors"

var (
	ErrDecodeFailure   = errors.New("decode failure")
	ErrEncodeFailure   = errors.New("encode failure")
	ErrInvalidCrop     = errors.New("invalid crop")
	ErrEmptyRename     = errors.New("name must not be empty")
	ErrInvalidGeometry = errors.New("invalid geometry")
	ErrInvalidSettings = errors.New("invalid export settings")
	ErrEmptyBatch      = errors.New("batch contains no assets")
)

package id

import "github.com/google/uuid"

// New returns a random (v4) identifier for assets and exports.
func New() string {
	return uuid.NewString()
}

// Valid reports whether s parses as an identifier produced by New.
func Valid(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

package id

import "testing"

func TestNewIsValidAndUnique(t *testing.T) {
	a, b := New(), New()
	if !Valid(a) || !Valid(b) {
		t.Fatalf("expected valid ids, got %q and %q", a, b)
	}
	if a == b {
		t.Fatal("expected distinct ids")
	}
	if Valid("../etc/passwd") || Valid("") {
		t.Fatal("expected malformed ids to be rejected")
	}
}

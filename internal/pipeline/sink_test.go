package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dunamismax/pixelgrade/internal/domain"
	"github.com/dunamismax/pixelgrade/internal/storage"
)

type memoryObjects struct {
	objects map[string][]byte
	types   map[string]string
	readErr error
}

func newMemoryObjects() *memoryObjects {
	return &memoryObjects{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memoryObjects) ReadObject(_ context.Context, key string) ([]byte, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrObjectNotFound, key)
	}
	return data, nil
}

func (m *memoryObjects) WriteObject(_ context.Context, key string, data []byte, contentType string) error {
	m.objects[key] = data
	m.types[key] = contentType
	return nil
}

func (m *memoryObjects) PresignedGetURL(_ context.Context, key, _ string, _ time.Duration) (string, error) {
	return "https://objects.local/" + key, nil
}

func TestLocalFileSink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	sink := LocalFileSink{Dir: dir}

	delivery, err := sink.Deliver(context.Background(), "photo.jpeg", "image/jpeg", []byte("abc"))
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "photo.jpeg"))
	if err != nil {
		t.Fatalf("read delivered file: %v", err)
	}
	if string(data) != "abc" || delivery.Bytes != 3 {
		t.Fatalf("unexpected delivery %+v with contents %q", delivery, data)
	}

	if _, err := (LocalFileSink{}).Deliver(context.Background(), "x", "", nil); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestObjectStoreSink(t *testing.T) {
	objects := newMemoryObjects()
	sink := ObjectStoreSink{Storage: objects, ExportID: "exp-1"}

	delivery, err := sink.Deliver(context.Background(), "Pixelgrade_Images.zip", "application/zip", []byte("zip"))
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}

	const key = "exports/exp-1/Pixelgrade_Images.zip"
	if delivery.Location != key {
		t.Fatalf("expected key %s, got %s", key, delivery.Location)
	}
	if objects.types[key] != "application/zip" {
		t.Fatalf("unexpected content type %q", objects.types[key])
	}
	if delivery.URL == "" {
		t.Fatal("expected presigned url")
	}
}

func TestObjectStoreSource(t *testing.T) {
	objects := newMemoryObjects()
	objects.objects["sources/a1"] = []byte("remote")
	source := ObjectStoreSource{Storage: objects}

	data, err := source.Fetch(context.Background(), domain.Asset{ID: "a1", ObjectKey: "sources/a1"})
	if err != nil || string(data) != "remote" {
		t.Fatalf("expected remote bytes, got %q (%v)", data, err)
	}

	data, err = source.Fetch(context.Background(), domain.Asset{ID: "a1", Source: []byte("inline")})
	if err != nil || string(data) != "inline" {
		t.Fatalf("expected inline bytes, got %q (%v)", data, err)
	}

	_, err = source.Fetch(context.Background(), domain.Asset{ID: "a2"})
	if !errors.Is(err, ErrMissingSource) {
		t.Fatalf("expected ErrMissingSource, got %v", err)
	}

	_, err = source.Fetch(context.Background(), domain.Asset{ID: "a3", ObjectKey: "sources/a3"})
	if !errors.Is(err, ErrMissingSource) || !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("expected a missing source for a deleted object, got %v", err)
	}

	objects.readErr = errors.New("connection refused")
	_, err = source.Fetch(context.Background(), domain.Asset{ID: "a1", ObjectKey: "sources/a1"})
	if err == nil || errors.Is(err, ErrMissingSource) {
		t.Fatalf("expected a transport error, got %v", err)
	}
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dunamismax/pixelgrade/internal/storage"
)

// Delivery records where a file ended up.
type Delivery struct {
	Name     string
	Location string
	URL      string
	Bytes    int
}

// Sink delivers a finished file or archive.
type Sink interface {
	Deliver(ctx context.Context, name, contentType string, data []byte) (Delivery, error)
}

// LocalFileSink writes into a directory, creating it when needed.
type LocalFileSink struct {
	Dir string
}

func (s LocalFileSink) Deliver(ctx context.Context, name, _ string, data []byte) (Delivery, error) {
	if strings.TrimSpace(s.Dir) == "" {
		return Delivery{}, errors.New("output directory is required")
	}
	if err := ctx.Err(); err != nil {
		return Delivery{}, err
	}

	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return Delivery{}, fmt.Errorf("create output dir: %w", err)
	}

	filename := sanitizeFileName(name)
	fullPath := filepath.Join(s.Dir, filename)
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return Delivery{}, fmt.Errorf("write output file: %w", err)
	}

	return Delivery{Name: filename, Location: fullPath, Bytes: len(data)}, nil
}

type ObjectWriter interface {
	WriteObject(ctx context.Context, objectKey string, data []byte, contentType string) error
	PresignedGetURL(ctx context.Context, objectKey, filename string, expiry time.Duration) (string, error)
}

// ObjectStoreSink uploads under exports/<ExportID>/ and returns a presigned
// download link.
type ObjectStoreSink struct {
	Storage   ObjectWriter
	ExportID  string
	URLExpiry time.Duration
}

func (s ObjectStoreSink) Deliver(ctx context.Context, name, contentType string, data []byte) (Delivery, error) {
	if s.Storage == nil {
		return Delivery{}, errors.New("storage client is required")
	}
	if strings.TrimSpace(s.ExportID) == "" {
		return Delivery{}, errors.New("export id is required")
	}

	filename := sanitizeFileName(name)
	objectKey := storage.ExportKey(s.ExportID, filename)
	if err := s.Storage.WriteObject(ctx, objectKey, data, contentType); err != nil {
		return Delivery{}, err
	}

	expiry := s.URLExpiry
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	url, err := s.Storage.PresignedGetURL(ctx, objectKey, filename, expiry)
	if err != nil {
		return Delivery{}, err
	}

	return Delivery{Name: filename, Location: objectKey, URL: url, Bytes: len(data)}, nil
}

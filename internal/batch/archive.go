package batch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dunamismax/pixelgrade/internal/pipeline"
	"github.com/klauspost/compress/zip"
)

const (
	DefaultArchiveName = "Pixelgrade_Images.zip"
	ArchiveContentType = "application/zip"
)

var ErrNothingToArchive = errors.New("no successful outputs to archive")

// ArchiveName turns a user label into an archive file name.
func ArchiveName(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return DefaultArchiveName
	}
	if !strings.HasSuffix(strings.ToLower(label), ".zip") {
		label += ".zip"
	}
	return label
}

// BuildArchive zips every successful output of the job in batch order.
// Duplicate names get a " (n)" suffix before the extension.
func BuildArchive(job *Job) ([]byte, error) {
	outputs := job.Outputs()
	if len(outputs) == 0 {
		return nil, ErrNothingToArchive
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	names := pipeline.NewNameSet()
	modified := time.Now()

	for _, out := range outputs {
		header := &zip.FileHeader{
			Name:     names.Unique(out.Name),
			Method:   zip.Deflate,
			Modified: modified,
		}
		w, err := zw.CreateHeader(header)
		if err != nil {
			return nil, fmt.Errorf("create archive entry %s: %w", header.Name, err)
		}
		if _, err := w.Write(out.Data); err != nil {
			return nil, fmt.Errorf("write archive entry %s: %w", header.Name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}

// DeliverArchive builds the archive and hands it to the sink as one file.
func DeliverArchive(ctx context.Context, job *Job, sink pipeline.Sink, label string) (pipeline.Delivery, error) {
	data, err := BuildArchive(job)
	if err != nil {
		return pipeline.Delivery{}, err
	}
	delivery, err := sink.Deliver(ctx, ArchiveName(label), ArchiveContentType, data)
	if err != nil {
		return pipeline.Delivery{}, fmt.Errorf("deliver archive: %w", err)
	}
	return delivery, nil
}

// DeliverFiles hands each successful output to the sink individually, with
// the same collision handling as the archive.
func DeliverFiles(ctx context.Context, job *Job, sink pipeline.Sink) ([]pipeline.Delivery, error) {
	names := pipeline.NewNameSet()
	var deliveries []pipeline.Delivery
	for _, out := range job.Outputs() {
		delivery, err := sink.Deliver(ctx, names.Unique(out.Name), out.ContentType, out.Data)
		if err != nil {
			return deliveries, fmt.Errorf("deliver %s: %w", out.Name, err)
		}
		deliveries = append(deliveries, delivery)
	}
	return deliveries, nil
}

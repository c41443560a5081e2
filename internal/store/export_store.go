// Package store persists the status of queued batch exports so the API can
// report progress made by the worker.
package store

import (
	"context"
	"errors"

	"github.com/dunamismax/pixelgrade/internal/domain"
	jsoniter "github.com/json-iterator/go"
)

var ErrExportNotFound = errors.New("export not found")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type ExportStore interface {
	Create(ctx context.Context, rec domain.ExportRecord) error
	Get(ctx context.Context, id string) (domain.ExportRecord, bool, error)
	UpdateStatus(ctx context.Context, id, status string) (domain.ExportRecord, error)
	// UpdateProgress records that completed of the record's items have been
	// attempted.
	UpdateProgress(ctx context.Context, id string, completed, progress int) error
	Finish(ctx context.Context, id, status string, summary domain.ExportSummary) (domain.ExportRecord, error)
}

package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	ExportStatusCreated   = "created"
	ExportStatusQueued    = "queued"
	ExportStatusRunning   = "running"
	ExportStatusCompleted = "completed"
	ExportStatusFailed    = "failed"
)

type CreateExportRequest struct {
	AssetIDs   []string       `json:"asset_ids"`
	Settings   ExportSettings `json:"settings"`
	WebhookURL string         `json:"webhook_url,omitempty"`
}

// ExportRecord is the persisted status of a queued batch export. It never
// carries encoded bytes; those live only in the worker for the duration of
// the batch and in the uploaded archive.
type ExportRecord struct {
	ID          string            `json:"id"`
	Status      string            `json:"status"`
	Settings    ExportSettings    `json:"settings"`
	AssetIDs    []string          `json:"asset_ids"`
	WebhookURL  string            `json:"webhook_url,omitempty"`
	Total       int               `json:"total"`
	Completed   int               `json:"completed"`
	Progress    int               `json:"progress"`
	Succeeded   int               `json:"succeeded"`
	Failed      int               `json:"failed"`
	Failures    map[string]string `json:"failures,omitempty"`
	ArchiveKey  string            `json:"archive_key,omitempty"`
	ArchiveURL  string            `json:"archive_url,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

// ExportSummary is the post-batch outcome written back onto a record.
type ExportSummary struct {
	Succeeded  int
	Failed     int
	Failures   map[string]string
	ArchiveKey string
	ArchiveURL string
}

func (r *CreateExportRequest) Normalize() error {
	if err := r.Settings.ApplyDefaults(); err != nil {
		return err
	}
	ids := make([]string, 0, len(r.AssetIDs))
	seen := make(map[string]struct{}, len(r.AssetIDs))
	for _, id := range r.AssetIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	r.AssetIDs = ids
	return nil
}

func (r CreateExportRequest) Validate() error {
	if err := r.Settings.Validate(); err != nil {
		return err
	}
	if r.WebhookURL != "" && !strings.HasPrefix(r.WebhookURL, "http://") && !strings.HasPrefix(r.WebhookURL, "https://") {
		return errors.New("webhook_url must be an http(s) URL")
	}
	for i, id := range r.AssetIDs {
		if strings.ContainsAny(id, "/\\") {
			return fmt.Errorf("asset_ids[%d] is not a valid id", i)
		}
	}
	return nil
}

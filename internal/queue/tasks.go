package queue

import (
	"errors"
	"fmt"
	"time"

	"github.com/dunamismax/pixelgrade/internal/domain"
	"github.com/hibiken/asynq"
	jsoniter "github.com/json-iterator/go"
)

const TypeExportBatch = "export:batch"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ExportBatchPayload carries asset snapshots taken when the export was
// requested. Source bytes are not included; the worker reads each asset from
// its object key.
type ExportBatchPayload struct {
	ExportID     string                `json:"export_id"`
	Assets       []domain.Asset        `json:"assets"`
	Settings     domain.ExportSettings `json:"settings"`
	ArchiveLabel string                `json:"archive_label,omitempty"`
	WebhookURL   string                `json:"webhook_url,omitempty"`
	RequestedAt  time.Time             `json:"requested_at"`
}

func NewExportBatchTask(payload ExportBatchPayload) (*asynq.Task, error) {
	if payload.ExportID == "" {
		return nil, errors.New("export_id is required")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal export payload: %w", err)
	}
	return asynq.NewTask(TypeExportBatch, body), nil
}

func ParseExportBatchPayload(task *asynq.Task) (ExportBatchPayload, error) {
	var payload ExportBatchPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ExportBatchPayload{}, fmt.Errorf("unmarshal export payload: %w", err)
	}
	return payload, nil
}

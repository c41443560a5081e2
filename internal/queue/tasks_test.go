package queue

import (
	"testing"
	"time"

	"github.com/dunamismax/pixelgrade/internal/domain"
)

func TestExportBatchTaskCarriesSnapshots(t *testing.T) {
	payload := ExportBatchPayload{
		ExportID: "exp-123",
		Assets: []domain.Asset{
			{
				ID:          "a1",
				Name:        "photo.jpg",
				ObjectKey:   "sources/a1",
				Adjustments: domain.Adjustments{Exposure: 20, Shadows: -10},
				Crop:        &domain.CropRegion{X: 1, Y: 2, Width: 30, Height: 40},
				Source:      []byte("never serialized"),
			},
		},
		Settings:    domain.ExportSettings{Format: domain.FormatWEBP, Quality: 0.8, Size: domain.PresetSize(800)},
		RequestedAt: time.Now().UTC(),
	}

	task, err := NewExportBatchTask(payload)
	if err != nil {
		t.Fatalf("NewExportBatchTask returned error: %v", err)
	}
	if task.Type() != TypeExportBatch {
		t.Fatalf("expected task type %q, got %q", TypeExportBatch, task.Type())
	}

	parsed, err := ParseExportBatchPayload(task)
	if err != nil {
		t.Fatalf("ParseExportBatchPayload returned error: %v", err)
	}

	if parsed.ExportID != payload.ExportID {
		t.Fatalf("expected export_id %q, got %q", payload.ExportID, parsed.ExportID)
	}
	if len(parsed.Assets) != 1 {
		t.Fatalf("expected one asset, got %d", len(parsed.Assets))
	}
	asset := parsed.Assets[0]
	if asset.Source != nil {
		t.Fatal("expected source bytes to stay out of the payload")
	}
	if asset.Crop == nil || asset.Crop.Width != 30 || asset.Adjustments.Shadows != -10 {
		t.Fatalf("asset edits not preserved: %+v", asset)
	}
	if parsed.Settings.Size.Pixels != 800 {
		t.Fatalf("expected preset 800, got %d", parsed.Settings.Size.Pixels)
	}
}

func TestNewExportBatchTaskRequiresID(t *testing.T) {
	if _, err := NewExportBatchTask(ExportBatchPayload{}); err == nil {
		t.Fatal("expected error for missing export id")
	}
}

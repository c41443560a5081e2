package store

import (
	"context"
	"testing"
	"time"

	"github.com/dunamismax/pixelgrade/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecord(id string) domain.ExportRecord {
	now := time.Now().UTC()
	return domain.ExportRecord{
		ID:        id,
		Status:    domain.ExportStatusQueued,
		Settings:  domain.DefaultExportSettings(),
		AssetIDs:  []string{"a", "b", "c"},
		Total:     3,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestMemoryExportStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryExportStore()
	require.NoError(t, s.Create(ctx, newRecord("exp-1")))

	rec, err := s.UpdateStatus(ctx, "exp-1", domain.ExportStatusRunning)
	require.NoError(t, err)
	assert.Equal(t, domain.ExportStatusRunning, rec.Status)

	require.NoError(t, s.UpdateProgress(ctx, "exp-1", 2, 67))
	rec, ok, err := s.Get(ctx, "exp-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, rec.Completed)
	assert.Equal(t, 67, rec.Progress)

	rec, err = s.Finish(ctx, "exp-1", domain.ExportStatusCompleted, domain.ExportSummary{
		Succeeded:  2,
		Failed:     1,
		Failures:   map[string]string{"b": "decode failure"},
		ArchiveKey: "exports/exp-1/Pixelgrade_Images.zip",
		ArchiveURL: "https://example.test/archive",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ExportStatusCompleted, rec.Status)
	assert.Equal(t, 2, rec.Succeeded)
	assert.Equal(t, "decode failure", rec.Failures["b"])
	require.NotNil(t, rec.CompletedAt)
}

func TestMemoryExportStoreUnknownID(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryExportStore()

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.UpdateStatus(ctx, "missing", domain.ExportStatusRunning)
	assert.ErrorIs(t, err, ErrExportNotFound)
	assert.ErrorIs(t, s.UpdateProgress(ctx, "missing", 1, 1), ErrExportNotFound)
}

func TestMemoryExportStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryExportStore()
	require.NoError(t, s.Create(ctx, newRecord("exp-1")))

	rec, _, _ := s.Get(ctx, "exp-1")
	rec.AssetIDs[0] = "mutated"

	again, _, _ := s.Get(ctx, "exp-1")
	assert.Equal(t, "a", again.AssetIDs[0])
}

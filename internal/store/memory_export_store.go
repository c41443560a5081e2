package store

import (
	"context"
	"sync"
	"time"

	"github.com/dunamismax/pixelgrade/internal/domain"
)

type MemoryExportStore struct {
	mu      sync.RWMutex
	exports map[string]domain.ExportRecord
}

func NewMemoryExportStore() *MemoryExportStore {
	return &MemoryExportStore{
		exports: make(map[string]domain.ExportRecord),
	}
}

func (s *MemoryExportStore) Create(_ context.Context, rec domain.ExportRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exports[rec.ID] = copyRecord(rec)
	return nil
}

func (s *MemoryExportStore) Get(_ context.Context, id string) (domain.ExportRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.exports[id]
	if !ok {
		return domain.ExportRecord{}, false, nil
	}
	return copyRecord(rec), true, nil
}

func (s *MemoryExportStore) UpdateStatus(_ context.Context, id, status string) (domain.ExportRecord, error) {
	return s.update(id, func(rec *domain.ExportRecord) {
		rec.Status = status
	})
}

func (s *MemoryExportStore) UpdateProgress(_ context.Context, id string, completed, progress int) error {
	_, err := s.update(id, func(rec *domain.ExportRecord) {
		rec.Completed = completed
		rec.Progress = progress
	})
	return err
}

func (s *MemoryExportStore) Finish(_ context.Context, id, status string, summary domain.ExportSummary) (domain.ExportRecord, error) {
	return s.update(id, func(rec *domain.ExportRecord) {
		now := time.Now().UTC()
		rec.Status = status
		rec.Succeeded = summary.Succeeded
		rec.Failed = summary.Failed
		rec.Failures = summary.Failures
		rec.ArchiveKey = summary.ArchiveKey
		rec.ArchiveURL = summary.ArchiveURL
		rec.CompletedAt = &now
	})
}

func (s *MemoryExportStore) update(id string, fn func(*domain.ExportRecord)) (domain.ExportRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.exports[id]
	if !ok {
		return domain.ExportRecord{}, ErrExportNotFound
	}

	fn(&rec)
	rec.UpdatedAt = time.Now().UTC()
	s.exports[id] = copyRecord(rec)
	return copyRecord(rec), nil
}

func copyRecord(rec domain.ExportRecord) domain.ExportRecord {
	rec.AssetIDs = append([]string(nil), rec.AssetIDs...)
	if rec.Failures != nil {
		failures := make(map[string]string, len(rec.Failures))
		for k, v := range rec.Failures {
			failures[k] = v
		}
		rec.Failures = failures
	}
	if rec.CompletedAt != nil {
		at := *rec.CompletedAt
		rec.CompletedAt = &at
	}
	return rec
}

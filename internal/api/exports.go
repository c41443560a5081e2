package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dunamismax/pixelgrade/internal/domain"
	"github.com/dunamismax/pixelgrade/internal/id"
	"github.com/dunamismax/pixelgrade/internal/queue"
	"github.com/dunamismax/pixelgrade/internal/store"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// handleCreateExport snapshots the requested assets and queues a batch
// export. An empty asset_ids list exports every registered asset.
func (s *Server) handleCreateExport(w http.ResponseWriter, r *http.Request) {
	if s.queueClient == nil || s.storage == nil {
		writeError(w, http.StatusServiceUnavailable, "batch exports require queue and object storage")
		return
	}

	var req domain.CreateExportRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Normalize(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snapshot := s.assets.Snapshot(req.AssetIDs...)
	if len(snapshot) < len(req.AssetIDs) {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error":   "unknown asset ids",
			"missing": missingIDs(req.AssetIDs, snapshot),
		})
		return
	}
	if len(snapshot) == 0 {
		writeError(w, http.StatusBadRequest, domain.ErrEmptyBatch.Error())
		return
	}
	for _, asset := range snapshot {
		if asset.ObjectKey == "" {
			writeError(w, http.StatusConflict, "asset "+asset.ID+" has no stored source")
			return
		}
	}

	if !s.allowExport(w, r, len(snapshot)) {
		return
	}

	now := nowUTC()
	assetIDs := make([]string, len(snapshot))
	for i, asset := range snapshot {
		assetIDs[i] = asset.ID
	}
	record := domain.ExportRecord{
		ID:         id.New(),
		Status:     domain.ExportStatusCreated,
		Settings:   req.Settings,
		AssetIDs:   assetIDs,
		WebhookURL: req.WebhookURL,
		Total:      len(snapshot),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.exports.Create(r.Context(), record); err != nil {
		s.logger.Error("create export record failed", zap.String("export_id", record.ID), zap.Error(err))
		s.refundExport(r, len(snapshot))
		writeError(w, http.StatusInternalServerError, "failed to create export")
		return
	}

	info, err := s.queueClient.EnqueueExportBatch(r.Context(), queue.ExportBatchPayload{
		ExportID:     record.ID,
		Assets:       snapshot,
		Settings:     req.Settings,
		ArchiveLabel: s.archiveLabel,
		WebhookURL:   req.WebhookURL,
		RequestedAt:  now,
	})
	if err != nil {
		s.logger.Error("enqueue export failed", zap.String("export_id", record.ID), zap.Error(err))
		s.refundExport(r, len(snapshot))
		if _, statusErr := s.exports.UpdateStatus(r.Context(), record.ID, domain.ExportStatusFailed); statusErr != nil {
			s.logger.Warn("mark export failed", zap.String("export_id", record.ID), zap.Error(statusErr))
		}
		writeError(w, http.StatusServiceUnavailable, "failed to queue export")
		return
	}
	s.metrics.queueEnqueued.WithLabelValues(info.Queue).Inc()

	if updated, err := s.exports.UpdateStatus(r.Context(), record.ID, domain.ExportStatusQueued); err != nil {
		s.logger.Warn("mark export queued", zap.String("export_id", record.ID), zap.Error(err))
		record.Status = domain.ExportStatusQueued
	} else {
		record = updated
	}

	s.logger.Info("export queued",
		zap.String("export_id", record.ID),
		zap.String("task_id", info.ID),
		zap.Int("assets", record.Total),
		zap.String("format", string(req.Settings.Format)),
	)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"export": record,
		"task": map[string]string{
			"id":    info.ID,
			"queue": info.Queue,
		},
	})
}

func (s *Server) handleGetExport(w http.ResponseWriter, r *http.Request) {
	exportID := strings.TrimSpace(chi.URLParam(r, "id"))
	if !id.Valid(exportID) {
		writeError(w, http.StatusNotFound, "export not found")
		return
	}
	record, ok, err := s.exports.Get(r.Context(), exportID)
	if err != nil && !errors.Is(err, store.ErrExportNotFound) {
		s.logger.Error("get export failed", zap.String("export_id", exportID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load export")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "export not found")
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func missingIDs(requested []string, found []domain.Asset) []string {
	present := make(map[string]struct{}, len(found))
	for _, asset := range found {
		present[asset.ID] = struct{}{}
	}
	var missing []string
	for _, assetID := range requested {
		if _, ok := present[assetID]; !ok {
			missing = append(missing, assetID)
		}
	}
	return missing
}

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/dunamismax/pixelgrade/internal/domain"
	"github.com/dunamismax/pixelgrade/internal/id"
	"github.com/dunamismax/pixelgrade/internal/preview"
	"github.com/dunamismax/pixelgrade/internal/storage"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type uploadFailure struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

func (s *Server) handleUploadAssets(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid multipart body: %v", err))
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, `at least one "file" part is required`)
		return
	}

	registered := make([]domain.Asset, 0, len(files))
	var failures []uploadFailure
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			failures = append(failures, uploadFailure{Filename: fh.Filename, Error: err.Error()})
			continue
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			failures = append(failures, uploadFailure{Filename: fh.Filename, Error: err.Error()})
			continue
		}

		asset, err := s.assets.Register(fh.Filename, data)
		if err != nil {
			failures = append(failures, uploadFailure{Filename: fh.Filename, Error: err.Error()})
			continue
		}

		if s.storage != nil {
			key := storage.SourceKey(asset.ID)
			if err := s.storage.WriteObject(r.Context(), key, data, "image/"+asset.SourceFormat); err != nil {
				s.logger.Error("mirror source failed", zap.String("asset_id", asset.ID), zap.Error(err))
				s.assets.Delete(asset.ID)
				failures = append(failures, uploadFailure{Filename: fh.Filename, Error: "failed to store source"})
				continue
			}
			s.assets.SetObjectKey(asset.ID, key)
			asset.ObjectKey = key
		}
		registered = append(registered, asset)
	}

	status := http.StatusCreated
	if len(registered) == 0 {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, map[string]any{
		"assets": registered,
		"errors": failures,
	})
}

func (s *Server) handleListAssets(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"assets": s.assets.List()})
}

func (s *Server) handleGetAsset(w http.ResponseWriter, r *http.Request) {
	asset, ok := s.lookupAsset(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

func (s *Server) handleDeleteAsset(w http.ResponseWriter, r *http.Request) {
	asset, ok := s.lookupAsset(w, r)
	if !ok {
		return
	}

	s.assets.Delete(asset.ID)
	if s.storage != nil && asset.ObjectKey != "" {
		if err := s.storage.RemoveObject(r.Context(), asset.ObjectKey); err != nil {
			s.logger.Warn("remove source failed", zap.String("asset_id", asset.ID), zap.Error(err))
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRenameAsset(w http.ResponseWriter, r *http.Request) {
	asset, ok := s.lookupAsset(w, r)
	if !ok {
		return
	}

	var body struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.assets.Rename(asset.ID, body.Name); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeAsset(w, asset.ID)
}

func (s *Server) handleUpdateAdjustments(w http.ResponseWriter, r *http.Request) {
	asset, ok := s.lookupAsset(w, r)
	if !ok {
		return
	}

	var adjustments domain.Adjustments
	if err := decodeJSON(r, &adjustments); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := adjustments.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.assets.UpdateAdjustments(asset.ID, adjustments)
	s.writeAsset(w, asset.ID)
}

func (s *Server) handleUpdateCrop(w http.ResponseWriter, r *http.Request) {
	asset, ok := s.lookupAsset(w, r)
	if !ok {
		return
	}

	var crop *domain.CropRegion
	if err := decodeJSON(r, &crop); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if crop != nil {
		if err := crop.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if err := s.assets.UpdateCrop(asset.ID, crop); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeAsset(w, asset.ID)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	asset, ok := s.lookupAsset(w, r)
	if !ok {
		return
	}

	handle, err := preview.Render(asset, s.previewMaxEdge)
	if err != nil {
		s.logger.Warn("render preview failed", zap.String("asset_id", asset.ID), zap.Error(err))
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	data := handle.Bytes()
	if !s.assets.AttachPreview(asset.ID, handle) {
		writeError(w, http.StatusNotFound, "asset not found")
		return
	}

	w.Header().Set("Content-Type", handle.ContentType())
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleExportOne renders one asset and returns it as a download.
func (s *Server) handleExportOne(w http.ResponseWriter, r *http.Request) {
	asset, ok := s.lookupAsset(w, r)
	if !ok {
		return
	}

	settings := domain.DefaultExportSettings()
	if err := decodeOptionalJSON(r, &settings); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := settings.ApplyDefaults(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := settings.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	out, err := s.exporter.ExportOne(r.Context(), asset, settings)
	if err != nil {
		s.logger.Warn("single export failed", zap.String("asset_id", asset.ID), zap.Error(err))
		status := http.StatusUnprocessableEntity
		if !errors.Is(err, domain.ErrDecodeFailure) && !errors.Is(err, domain.ErrEncodeFailure) {
			status = http.StatusInternalServerError
		}
		writeError(w, status, err.Error())
		return
	}

	s.assets.AttachResult(asset.ID, preview.NewHandle(out.Data, out.ContentType, out.Width, out.Height))

	w.Header().Set("Content-Type", out.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(out.Data)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", out.Name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out.Data)
}

func (s *Server) lookupAsset(w http.ResponseWriter, r *http.Request) (domain.Asset, bool) {
	assetID := chi.URLParam(r, "id")
	if !id.Valid(assetID) {
		writeError(w, http.StatusNotFound, "asset not found")
		return domain.Asset{}, false
	}
	asset, ok := s.assets.Get(assetID)
	if !ok {
		writeError(w, http.StatusNotFound, "asset not found")
		return domain.Asset{}, false
	}
	return asset, true
}

func (s *Server) writeAsset(w http.ResponseWriter, assetID string) {
	asset, ok := s.assets.Get(assetID)
	if !ok {
		writeError(w, http.StatusNotFound, "asset not found")
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dunamismax/pixelgrade/internal/assets"
	"github.com/dunamismax/pixelgrade/internal/batch"
	"github.com/dunamismax/pixelgrade/internal/logging"
	"github.com/dunamismax/pixelgrade/internal/preview"
	"github.com/dunamismax/pixelgrade/internal/queue"
	"github.com/dunamismax/pixelgrade/internal/store"
	"github.com/dunamismax/pixelgrade/internal/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type queueEnqueuer interface {
	EnqueueExportBatch(ctx context.Context, payload queue.ExportBatchPayload) (*asynq.TaskInfo, error)
}

type objectStorage interface {
	WriteObject(ctx context.Context, objectKey string, data []byte, contentType string) error
	RemoveObject(ctx context.Context, objectKey string) error
}

// Options wires the API to its collaborators. Queue and Storage may be nil,
// in which case queued batch exports are unavailable.
type Options struct {
	Logger         *zap.Logger
	Assets         *assets.Store
	Exporter       *batch.Exporter
	Exports        store.ExportStore
	Queue          queueEnqueuer
	QueueName      string
	Storage        objectStorage
	RateLimiter    RateLimiter
	SubjectHeader  string
	ArchiveLabel   string
	MaxUploadBytes int64
	PreviewMaxEdge int
}

type Server struct {
	logger         *zap.Logger
	assets         *assets.Store
	exporter       *batch.Exporter
	exports        store.ExportStore
	queueClient    queueEnqueuer
	queueName      string
	storage        objectStorage
	rateLimiter    RateLimiter
	subjectHeader  string
	archiveLabel   string
	maxUploadBytes int64
	previewMaxEdge int
	metrics        *metrics
	tracer         trace.Tracer
	router         chi.Router
}

func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 64 << 20
	}
	if opts.PreviewMaxEdge <= 0 {
		opts.PreviewMaxEdge = preview.DefaultMaxEdge
	}
	if strings.TrimSpace(opts.SubjectHeader) == "" {
		opts.SubjectHeader = "X-User-ID"
	}

	s := &Server{
		logger:         opts.Logger,
		assets:         opts.Assets,
		exporter:       opts.Exporter,
		exports:        opts.Exports,
		queueClient:    opts.Queue,
		queueName:      opts.QueueName,
		storage:        opts.Storage,
		rateLimiter:    opts.RateLimiter,
		subjectHeader:  opts.SubjectHeader,
		archiveLabel:   opts.ArchiveLabel,
		maxUploadBytes: opts.MaxUploadBytes,
		previewMaxEdge: opts.PreviewMaxEdge,
		metrics:        newMetrics(),
		tracer:         telemetry.Tracer("api"),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		s.withTracing,
		s.metrics.withHTTPMetrics,
		logging.HTTPMiddleware(s.logger),
		middleware.Recoverer,
	)

	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", s.metrics.metricsHandler())

	r.Route("/v1/assets", func(r chi.Router) {
		r.Post("/", s.handleUploadAssets)
		r.Get("/", s.handleListAssets)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetAsset)
			r.Delete("/", s.handleDeleteAsset)
			r.Patch("/name", s.handleRenameAsset)
			r.Put("/adjustments", s.handleUpdateAdjustments)
			r.Put("/crop", s.handleUpdateCrop)
			r.Get("/preview", s.handlePreview)
			r.Post("/export", s.handleExportOne)
		})
	})

	r.Route("/v1/exports", func(r chi.Router) {
		r.Post("/", s.handleCreateExport)
		r.Get("/{id}", s.handleGetExport)
	})

	s.router = r
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeJSON(r *http.Request, into any) error {
	const maxBodyBytes = 1 << 20
	limited := io.LimitReader(r.Body, maxBodyBytes)
	decoder := json.NewDecoder(limited)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(into); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return errors.New("invalid JSON body: multiple JSON values are not allowed")
	}
	return nil
}

// decodeOptionalJSON is decodeJSON that leaves into untouched for an empty
// body.
func decodeOptionalJSON(r *http.Request, into any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	err := decodeJSON(r, into)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dunamismax/pixelgrade/internal/batch"
	"github.com/dunamismax/pixelgrade/internal/codec"
	"github.com/dunamismax/pixelgrade/internal/config"
	"github.com/dunamismax/pixelgrade/internal/domain"
	"github.com/dunamismax/pixelgrade/internal/pipeline"
	"github.com/dunamismax/pixelgrade/internal/queue"
	"github.com/dunamismax/pixelgrade/internal/store"
	"github.com/dunamismax/pixelgrade/internal/telemetry"
	"github.com/dunamismax/pixelgrade/internal/webhook"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type objectStore interface {
	pipeline.ObjectReader
	pipeline.ObjectWriter
}

type webhookSender interface {
	Send(ctx context.Context, endpoint, event string, payload any) error
}

type Server struct {
	logger        *zap.Logger
	server        *asynq.Server
	exporter      *batch.Exporter
	storage       objectStore
	webhookClient webhookSender
	exports       store.ExportStore
	exportCfg     config.ExportConfig
	metrics       *metrics
	tracer        trace.Tracer
}

func NewServer(
	logger *zap.Logger,
	queueCfg config.QueueConfig,
	exportCfg config.ExportConfig,
	storageClient objectStore,
	webhookClient webhookSender,
	exports store.ExportStore,
) (*Server, error) {
	encoder, err := codec.NewEncoder()
	if err != nil {
		return nil, fmt.Errorf("initialize encoder: %w", err)
	}

	s, err := newServer(logger, encoder, exportCfg, storageClient, webhookClient, exports)
	if err != nil {
		return nil, err
	}

	// Batches run one at a time; the exporter itself is sequential.
	s.server = asynq.NewServer(
		queueCfg.RedisClientOpt(),
		asynq.Config{
			Concurrency: 1,
			Queues: map[string]int{
				queueCfg.Name: 1,
			},
			LogLevel: asynq.WarnLevel,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retried, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				logger.Error("task failed",
					zap.String("type", task.Type()),
					zap.Int("retry", retried),
					zap.Int("max_retry", maxRetry),
					zap.Error(err),
				)
			}),
		},
	)
	return s, nil
}

func newServer(
	logger *zap.Logger,
	encoder codec.Encoder,
	exportCfg config.ExportConfig,
	storageClient objectStore,
	webhookClient webhookSender,
	exports store.ExportStore,
) (*Server, error) {
	if storageClient == nil {
		return nil, errors.New("storage client is required")
	}
	if exports == nil {
		return nil, errors.New("export store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	renderer, err := pipeline.NewRenderer(pipeline.ObjectStoreSource{Storage: storageClient}, encoder)
	if err != nil {
		return nil, fmt.Errorf("initialize renderer: %w", err)
	}

	s := &Server{
		logger:        logger,
		storage:       storageClient,
		webhookClient: webhookClient,
		exports:       exports,
		exportCfg:     exportCfg,
		metrics:       newMetrics(),
		tracer:        telemetry.Tracer("worker"),
	}
	s.exporter = batch.NewExporter(&tracedRenderer{next: renderer, server: s}, logger)
	return s, nil
}

// Start begins consuming export tasks without blocking. Call Shutdown to
// stop.
func (s *Server) Start() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypeExportBatch, s.handleExportBatch)
	return s.server.Start(mux)
}

func (s *Server) Shutdown() {
	if s.server != nil {
		s.server.Shutdown()
	}
}

func (s *Server) MetricsHandler() http.Handler {
	return s.metrics.Handler()
}

func (s *Server) handleExportBatch(ctx context.Context, task *asynq.Task) error {
	startedAt := time.Now()
	outcome := domain.ExportStatusFailed

	payload, err := queue.ParseExportBatchPayload(task)
	if err != nil {
		return fmt.Errorf("parse payload: %v: %w", err, asynq.SkipRetry)
	}
	logger := s.logger.With(zap.String("export_id", payload.ExportID))

	ctx, span := s.tracer.Start(ctx, "worker.export_batch", trace.WithSpanKind(trace.SpanKindConsumer))
	span.SetAttributes(
		attribute.String("export.id", payload.ExportID),
		attribute.String("export.format", string(payload.Settings.Format)),
		attribute.Int("export.assets", len(payload.Assets)),
	)
	defer span.End()
	defer func() {
		s.metrics.exportDuration.WithLabelValues(outcome).Observe(time.Since(startedAt).Seconds())
		s.metrics.exportsTotal.WithLabelValues(outcome).Inc()
	}()

	s.metrics.activeExports.Inc()
	defer s.metrics.activeExports.Dec()

	logger.Info("export started",
		zap.Int("assets", len(payload.Assets)),
		zap.String("format", string(payload.Settings.Format)),
	)
	s.updateStatus(ctx, logger, payload.ExportID, domain.ExportStatusRunning)

	job, err := s.exporter.RunWithUpdates(ctx, payload.Assets, payload.Settings, func(u batch.Update) {
		s.metrics.itemsTotal.WithLabelValues(string(payload.Settings.Format), string(u.Item.Status)).Inc()
		if err := s.exports.UpdateProgress(ctx, payload.ExportID, u.Completed, u.Percent); err != nil {
			logger.Warn("progress update failed", zap.Int("completed", u.Completed), zap.Error(err))
		}
	})
	if err != nil {
		// Invalid settings or an empty batch will not improve on retry.
		s.fail(ctx, logger, payload, domain.ExportSummary{}, err, true)
		span.RecordError(err)
		span.SetStatus(codes.Error, "export rejected")
		return fmt.Errorf("run export: %w: %w", err, asynq.SkipRetry)
	}

	summary := job.Summary()
	result := domain.ExportSummary{
		Succeeded: summary.Succeeded,
		Failed:    summary.Failed,
		Failures:  summary.Failures,
	}

	sink := pipeline.ObjectStoreSink{
		Storage:   s.storage,
		ExportID:  payload.ExportID,
		URLExpiry: s.exportCfg.URLExpiry,
	}
	label := payload.ArchiveLabel
	if label == "" {
		label = s.exportCfg.ArchiveLabel
	}
	delivery, err := batch.DeliverArchive(ctx, job, sink, label)
	if errors.Is(err, batch.ErrNothingToArchive) {
		s.fail(ctx, logger, payload, result, err, true)
		span.SetStatus(codes.Error, "every item failed")
		return nil
	}
	if err != nil {
		final := isFinalAttempt(ctx)
		s.fail(ctx, logger, payload, result, err, final)
		span.RecordError(err)
		span.SetStatus(codes.Error, "archive delivery failed")
		return err
	}

	s.metrics.archiveBytes.Observe(float64(delivery.Bytes))
	result.ArchiveKey = delivery.Location
	result.ArchiveURL = delivery.URL

	rec, err := s.exports.Finish(ctx, payload.ExportID, domain.ExportStatusCompleted, result)
	if err != nil {
		logger.Error("finish export record failed", zap.Error(err))
		rec = domain.ExportRecord{
			ID:         payload.ExportID,
			Status:     domain.ExportStatusCompleted,
			Total:      job.Total,
			Succeeded:  result.Succeeded,
			Failed:     result.Failed,
			Failures:   result.Failures,
			ArchiveURL: result.ArchiveURL,
		}
	}

	outcome = domain.ExportStatusCompleted
	logger.Info("export completed",
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
		zap.String("archive_key", result.ArchiveKey),
		zap.Int("archive_bytes", delivery.Bytes),
		zap.Duration("elapsed", time.Since(startedAt)),
	)

	s.dispatchWebhook(ctx, logger, payload, webhook.EventExportCompleted, webhook.NewExportEvent(rec, payload.RequestedAt, nil))
	span.SetStatus(codes.Ok, "exported")
	return nil
}

// fail records the failure. The webhook only fires when no retry follows.
func (s *Server) fail(ctx context.Context, logger *zap.Logger, payload queue.ExportBatchPayload, summary domain.ExportSummary, cause error, final bool) {
	logger.Warn("export failed", zap.Bool("final", final), zap.Error(cause))

	rec, err := s.exports.Finish(ctx, payload.ExportID, domain.ExportStatusFailed, summary)
	if err != nil {
		logger.Error("finish export record failed", zap.Error(err))
		rec = domain.ExportRecord{ID: payload.ExportID, Status: domain.ExportStatusFailed, Total: len(payload.Assets)}
	}
	if final {
		s.dispatchWebhook(ctx, logger, payload, webhook.EventExportFailed, webhook.NewExportEvent(rec, payload.RequestedAt, cause))
	}
}

func (s *Server) updateStatus(ctx context.Context, logger *zap.Logger, exportID, status string) {
	if _, err := s.exports.UpdateStatus(ctx, exportID, status); err != nil {
		logger.Warn("export status update failed", zap.String("status", status), zap.Error(err))
	}
}

// dispatchWebhook never fails the task; the archive is already delivered.
func (s *Server) dispatchWebhook(ctx context.Context, logger *zap.Logger, payload queue.ExportBatchPayload, event string, body webhook.ExportEvent) {
	if payload.WebhookURL == "" || s.webhookClient == nil {
		return
	}
	if err := s.webhookClient.Send(ctx, payload.WebhookURL, event, body); err != nil {
		logger.Warn("webhook delivery failed", zap.String("event", event), zap.Error(err))
	}
}

func isFinalAttempt(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return true
	}
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	if !ok {
		return true
	}
	return retried >= maxRetry
}

// tracedRenderer wraps each asset render in a span and records its timing.
type tracedRenderer struct {
	next   batch.Renderer
	server *Server
}

func (r *tracedRenderer) Render(ctx context.Context, asset domain.Asset, settings domain.ExportSettings) (pipeline.Output, error) {
	ctx, span := r.server.tracer.Start(ctx, "worker.render_asset")
	span.SetAttributes(
		attribute.String("asset.id", asset.ID),
		attribute.String("asset.object_key", asset.ObjectKey),
	)
	defer span.End()

	started := time.Now()
	out, err := r.next.Render(ctx, asset, settings)
	r.server.metrics.itemDuration.WithLabelValues(string(settings.Format)).Observe(time.Since(started).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "render failed")
		return out, err
	}
	span.SetAttributes(attribute.Int("output.bytes", len(out.Data)))
	return out, nil
}

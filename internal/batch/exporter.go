// Package batch runs exports of many assets one at a time, isolating
// per-asset failures, and packages the results.
package batch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dunamismax/pixelgrade/internal/domain"
	"github.com/dunamismax/pixelgrade/internal/pipeline"
	"go.uber.org/zap"
)

type Renderer interface {
	Render(ctx context.Context, asset domain.Asset, settings domain.ExportSettings) (pipeline.Output, error)
}

// Update is emitted once after every attempted item.
type Update struct {
	Index     int
	Item      Item
	Completed int
	Total     int
	Percent   int
}

type Exporter struct {
	renderer Renderer
	logger   *zap.Logger

	runMu    sync.Mutex
	progress atomic.Int64
}

func NewExporter(renderer Renderer, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{renderer: renderer, logger: logger}
}

// Progress is the percentage of the current or last run. It resets to 0 when
// a run starts.
func (e *Exporter) Progress() int {
	return int(e.progress.Load())
}

// Run exports assets in order. onProgress, when set, receives the rounded
// percentage once per item.
func (e *Exporter) Run(ctx context.Context, assets []domain.Asset, settings domain.ExportSettings, onProgress func(percent int)) (*Job, error) {
	var onUpdate func(Update)
	if onProgress != nil {
		onUpdate = func(u Update) { onProgress(u.Percent) }
	}
	return e.RunWithUpdates(ctx, assets, settings, onUpdate)
}

// RunWithUpdates is Run with the full per-item update. A failed item never
// stops the batch; once ctx is done the remaining items fail with its error.
func (e *Exporter) RunWithUpdates(ctx context.Context, assets []domain.Asset, settings domain.ExportSettings, onUpdate func(Update)) (*Job, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if len(assets) == 0 {
		return nil, domain.ErrEmptyBatch
	}

	e.runMu.Lock()
	defer e.runMu.Unlock()

	snapshots := make([]domain.Asset, len(assets))
	for i, asset := range assets {
		snapshots[i] = asset.Clone()
	}

	job := &Job{
		Items: make([]Item, len(snapshots)),
		Total: len(snapshots),
		State: StateIdle,
	}
	for i, asset := range snapshots {
		job.Items[i] = Item{AssetID: asset.ID, Name: asset.Name, Status: ItemPending}
	}

	e.progress.Store(0)
	job.State = StateRunning
	started := time.Now()

	tasks := make(chan domain.Asset, 1)
	results := make(chan renderResult)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for asset := range tasks {
			results <- e.render(ctx, asset, settings)
		}
	}()
	defer func() {
		close(tasks)
		wg.Wait()
	}()

	for i, asset := range snapshots {
		tasks <- asset
		res := <-results

		item := &job.Items[i]
		if res.err != nil {
			item.Status = ItemFailed
			item.Err = res.err
			e.logger.Warn("export item failed",
				zap.String("asset_id", asset.ID),
				zap.String("name", asset.Name),
				zap.Error(res.err),
			)
		} else {
			output := res.output
			item.Status = ItemSucceeded
			item.Output = &output
		}

		job.Completed++
		pct := percent(job.Completed, job.Total)
		e.progress.Store(int64(pct))
		if onUpdate != nil {
			onUpdate(Update{
				Index:     i,
				Item:      *item,
				Completed: job.Completed,
				Total:     job.Total,
				Percent:   pct,
			})
		}
	}

	job.State = StateCompleted
	summary := job.Summary()
	e.logger.Info("batch export finished",
		zap.Int("total", job.Total),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.String("format", string(settings.Format)),
		zap.Duration("elapsed", time.Since(started)),
	)
	return job, nil
}

// ExportOne renders a single asset and returns its failure directly.
func (e *Exporter) ExportOne(ctx context.Context, asset domain.Asset, settings domain.ExportSettings) (pipeline.Output, error) {
	if err := settings.Validate(); err != nil {
		return pipeline.Output{}, err
	}
	res := e.render(ctx, asset.Clone(), settings)
	return res.output, res.err
}

type renderResult struct {
	output pipeline.Output
	err    error
}

func (e *Exporter) render(ctx context.Context, asset domain.Asset, settings domain.ExportSettings) (res renderResult) {
	defer func() {
		if r := recover(); r != nil {
			res = renderResult{err: fmt.Errorf("render asset %s panicked: %v", asset.ID, r)}
		}
	}()

	if err := ctx.Err(); err != nil {
		return renderResult{err: err}
	}
	output, err := e.renderer.Render(ctx, asset, settings)
	return renderResult{output: output, err: err}
}

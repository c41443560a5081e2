// Command pixelgrade applies adjustments to local images and exports them in
// one batch.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dunamismax/pixelgrade/internal/assets"
	"github.com/dunamismax/pixelgrade/internal/batch"
	"github.com/dunamismax/pixelgrade/internal/codec"
	"github.com/dunamismax/pixelgrade/internal/logging"
	"github.com/dunamismax/pixelgrade/internal/pipeline"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run returns 0 when every file exported, 1 when any failed and 2 on usage
// errors.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseOptions(args)
	if errors.Is(err, pflag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "pixelgrade: %v\n", err)
		return 2
	}

	logger, err := logging.New(logging.Config{Level: opts.LogLevel, Format: "console"})
	if err != nil {
		fmt.Fprintf(stderr, "pixelgrade: %v\n", err)
		return 2
	}
	defer func() { _ = logger.Sync() }()

	if err := codec.Startup(); err != nil {
		fmt.Fprintf(stderr, "pixelgrade: start codec runtime: %v\n", err)
		return 1
	}
	defer codec.Shutdown()

	failed, err := export(ctx, opts, logger, stdout, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "pixelgrade: %v\n", err)
		return 1
	}
	if failed > 0 {
		return 1
	}
	return 0
}

// export runs the batch and reports how many inputs failed, including files
// that could not be registered.
func export(ctx context.Context, opts options, logger *zap.Logger, stdout, stderr io.Writer) (int, error) {
	library := assets.NewStore()
	defer library.Close()

	rejected := 0
	for _, path := range opts.Files {
		data, err := os.ReadFile(path)
		if err == nil {
			_, err = library.Register(filepath.Base(path), data)
		}
		if err != nil {
			rejected++
			fmt.Fprintf(stderr, "skip %s: %v\n", path, err)
		}
	}

	for _, asset := range library.List() {
		library.UpdateAdjustments(asset.ID, opts.Adjustments)
		if opts.Crop != nil {
			if err := library.UpdateCrop(asset.ID, opts.Crop); err != nil {
				return rejected, fmt.Errorf("crop %s: %w", asset.Name, err)
			}
		}
	}

	renderer, err := pipeline.NewLocalRenderer()
	if err != nil {
		return rejected, err
	}
	exporter := batch.NewExporter(renderer, logger)

	snapshot := library.Snapshot()
	if len(snapshot) == 0 {
		fmt.Fprintf(stdout, "exported 0 of %d\n", len(opts.Files))
		return rejected, nil
	}

	job, err := exporter.Run(ctx, snapshot, opts.Settings, func(percent int) {
		fmt.Fprintf(stderr, "\rexporting %3d%%", percent)
	})
	fmt.Fprintln(stderr)
	if err != nil {
		return rejected, err
	}

	sink := pipeline.LocalFileSink{Dir: opts.OutDir}
	summary := job.Summary()
	if summary.Succeeded > 0 {
		if opts.Zip {
			delivery, err := batch.DeliverArchive(ctx, job, sink, opts.ArchiveLabel)
			if err != nil {
				return rejected + summary.Failed, err
			}
			fmt.Fprintf(stdout, "wrote %s\n", delivery.Location)
		} else {
			deliveries, err := batch.DeliverFiles(ctx, job, sink)
			for _, d := range deliveries {
				fmt.Fprintf(stdout, "wrote %s\n", d.Location)
			}
			if err != nil {
				return rejected + summary.Failed, err
			}
		}
	}

	for _, item := range job.Items {
		if item.Status == batch.ItemFailed {
			fmt.Fprintf(stderr, "failed %s: %v\n", item.Name, item.Err)
		}
	}
	fmt.Fprintf(stdout, "exported %d of %d, %d failed\n", summary.Succeeded, len(opts.Files), summary.Failed+rejected)
	return rejected + summary.Failed, nil
}

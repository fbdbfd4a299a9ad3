package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/desertthunder/grimwaves/internal/aggregator"
	"github.com/desertthunder/grimwaves/internal/formatter"
	"github.com/desertthunder/grimwaves/internal/models"
	"github.com/desertthunder/grimwaves/internal/shared"
	"github.com/desertthunder/grimwaves/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Fetch runs a single metadata task inline and writes the verdict.
func (r *Runner) Fetch(ctx context.Context, cmd *cli.Command) error {
	r.loadConfig(cmd.String("config"))

	req := models.TaskRequest{
		BandName:    cmd.String("artist"),
		ReleaseName: cmd.String("release"),
		CountryCode: cmd.String("market"),
	}

	if prefetchPath := cmd.String("prefetch"); prefetchPath != "" {
		prefetched, err := readPrefetched(prefetchPath)
		if err != nil {
			return err
		}
		req.Prefetched = prefetched
	}

	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	c, store, err := r.openCache()
	if err != nil {
		return err
	}
	defer store.Close()

	agg := aggregator.New(r.gateways, c, r.logger)
	timeout := time.Duration(r.config.Worker.RequestTimeout * float64(time.Second))
	orchestrator := tasks.NewOrchestrator(agg, c, r.logger, r.config.Worker.MaxRetries, timeout)

	// The command owns the context, so the executor must not tear it down.
	exec := tasks.NewExecutorWithContext(ctx, r.logger)
	job := tasks.Job{ID: shared.GenerateID(), Request: req}

	result, err := r.runInline(ctx, orchestrator, exec, job)
	if err != nil {
		return err
	}

	if cmd.Bool("stats") {
		for source, count := range agg.Stats() {
			r.logger.Warn("provider errors", "source", source, "count", count)
		}
	}

	if result.Status != models.StatusSuccess {
		r.logger.Error("fetch failed", "status", result.Status, "error", result.Error)
		if result.ErrorType == "not_found" {
			return fmt.Errorf("%s: %w", result.Error, shared.ErrNoDataFound)
		}
		return fmt.Errorf("fetch failed (%s): %s", result.ErrorType, result.Error)
	}

	return r.writeRelease(result.Result, cmd.String("format"), cmd.String("out"))
}

// runInline processes one job, sleeping through retry verdicts instead of
// re-enqueueing them.
func (r *Runner) runInline(ctx context.Context, o *tasks.Orchestrator, exec *tasks.Executor, job tasks.Job) (*models.TaskResult, error) {
	for {
		result, err := o.Process(ctx, exec, job)
		if err == nil {
			return result, nil
		}

		var retryErr *tasks.RetryError
		if !errors.As(err, &retryErr) {
			return nil, err
		}

		r.logger.Warn("retrying", "category", retryErr.Category, "after", retryErr.After, "attempt", retryErr.Attempt)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryErr.After):
		}
		job.Attempt = retryErr.Attempt
	}
}

// writeRelease renders the canonical release in the requested format.
func (r *Runner) writeRelease(release *models.CanonicalRelease, format, outDir string) error {
	switch format {
	case "", "json":
		return r.writeJSON(release, true)
	case "text":
		data, err := formatter.ExportToText(release)
		if err != nil {
			return err
		}
		return r.writePlain("%s", data)
	case "csv":
		data, err := formatter.ExportToCSV(release)
		if err != nil {
			return err
		}
		return r.writePlain("%s", data)
	case "markdown":
		result, err := formatter.WriteMarkdownExport(release, outDir)
		if err != nil {
			return err
		}
		r.writePlainln("✓ Exported to %s", result.Directory)
		for _, f := range result.Files {
			r.writePlainln("  %s", f)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, format)
	}
}

// readPrefetched loads provider payloads from a JSON file keyed by source.
func readPrefetched(path string) ([]models.PrefetchedData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prefetch file: %w", err)
	}

	var prefetched []models.PrefetchedData
	if err := json.Unmarshal(data, &prefetched); err != nil {
		return nil, fmt.Errorf("failed to parse prefetch file: %w", err)
	}
	return prefetched, nil
}

func fetchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "fetch",
		Usage: "Fetch metadata for one release",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "artist",
				Aliases:  []string{"a"},
				Usage:    "Artist or band name",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "release",
				Aliases:  []string{"r"},
				Usage:    "Release title",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "market",
				Aliases: []string{"m"},
				Usage:   "2-letter country code filter",
			},
			&cli.StringFlag{
				Name:  "prefetch",
				Usage: "Path to a JSON file of prefetched provider payloads",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: json, text, csv, markdown",
				Value:   "json",
			},
			&cli.StringFlag{
				Name:  "out",
				Usage: "Output directory for markdown export",
			},
			&cli.BoolFlag{
				Name:  "stats",
				Usage: "Log per-provider error counts after the run",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
		},
		Action: r.Fetch,
	}
}

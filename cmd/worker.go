package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/desertthunder/grimwaves/internal/aggregator"
	"github.com/desertthunder/grimwaves/internal/models"
	"github.com/desertthunder/grimwaves/internal/shared"
	"github.com/desertthunder/grimwaves/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Worker reads task requests as JSON lines from a file or stdin, runs them
// through the pool and writes one verdict per line.
func (r *Runner) Worker(ctx context.Context, cmd *cli.Command) error {
	r.loadConfig(cmd.String("config"))

	input := os.Stdin
	if path := cmd.Args().First(); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open job file: %w", err)
		}
		defer f.Close()
		input = f
	}

	requests, err := readRequests(input)
	if err != nil {
		return err
	}
	if len(requests) == 0 {
		r.logger.Warn("no task requests supplied")
		return nil
	}

	c, store, err := r.openCache()
	if err != nil {
		return err
	}
	defer store.Close()

	agg := aggregator.New(r.gateways, c, r.logger)
	timeout := time.Duration(r.config.Worker.RequestTimeout * float64(time.Second))
	orchestrator := tasks.NewOrchestrator(agg, c, r.logger, r.config.Worker.MaxRetries, timeout)

	pool := tasks.NewPool(r.config.Worker.Count, orchestrator, r.logger)
	pool.Start(ctx)
	defer pool.Stop()

	submitted := 0
	for _, req := range requests {
		id, err := pool.Submit(req)
		if err != nil {
			r.logger.Error("rejected task", "band", req.BandName, "release", req.ReleaseName, "error", err)
			continue
		}
		r.logger.Debug("submitted task", "task_id", id)
		submitted++
	}

	failed := 0
	for i := 0; i < submitted; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case result := <-pool.Results():
			if result.Failed() {
				failed++
			}
			if err := r.writeJSON(result, false); err != nil {
				return err
			}
		}
	}

	r.logger.Info("worker run complete", "submitted", submitted, "failed", failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d tasks failed", failed, submitted)
	}
	return nil
}

// readRequests parses newline-delimited JSON task requests, skipping blank
// lines.
func readRequests(r io.Reader) ([]models.TaskRequest, error) {
	var requests []models.TaskRequest
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}

		var req models.TaskRequest
		if err := json.Unmarshal(text, &req); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", shared.ErrInvalidInput, line, err)
		}
		requests = append(requests, req)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read job input: %w", err)
	}
	return requests, nil
}

func workerCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "worker",
		Usage:     "Process a batch of task requests with the worker pool",
		ArgsUsage: "[jobs.jsonl]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
		},
		Action: r.Worker,
	}
}

package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/desertthunder/grimwaves/internal/cache"
	"github.com/desertthunder/grimwaves/internal/shared"
	"github.com/urfave/cli/v3"
)

// CacheKey prints the request key a fetch would use, for inspection.
func (r *Runner) CacheKey(ctx context.Context, cmd *cli.Command) error {
	key := cache.RequestKey(cmd.String("artist"), cmd.String("release"), cmd.String("market"))
	return r.writePlainln("%s", key)
}

// CacheGet prints the raw cached entry for a key.
func (r *Runner) CacheGet(ctx context.Context, cmd *cli.Command) error {
	r.loadConfig(cmd.String("config"))

	key := cmd.String("key")
	if key == "" {
		return fmt.Errorf("%w: --key is required", shared.ErrMissingArgument)
	}

	_, store, err := r.openCache()
	if err != nil {
		return err
	}
	defer store.Close()

	data, found, err := store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("cache lookup failed: %w", err)
	}
	if !found {
		return fmt.Errorf("%w: no entry for key %q", shared.ErrNoDataFound, key)
	}

	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return r.writePlain("%s", data)
	}
	return r.writeJSON(value, true)
}

// CacheDelete removes a single entry.
func (r *Runner) CacheDelete(ctx context.Context, cmd *cli.Command) error {
	r.loadConfig(cmd.String("config"))

	key := cmd.String("key")
	if key == "" {
		return fmt.Errorf("%w: --key is required", shared.ErrMissingArgument)
	}

	_, store, err := r.openCache()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Delete(ctx, key); err != nil {
		return fmt.Errorf("cache delete failed: %w", err)
	}
	return r.writePlainln("✓ Deleted %s", key)
}

// CachePurge evicts every expired entry.
func (r *Runner) CachePurge(ctx context.Context, cmd *cli.Command) error {
	r.loadConfig(cmd.String("config"))

	_, store, err := r.openCache()
	if err != nil {
		return err
	}
	defer store.Close()

	purged, err := store.Purge(ctx)
	if err != nil {
		return fmt.Errorf("cache purge failed: %w", err)
	}
	return r.writePlainln("✓ Purged %d expired entries", purged)
}

// CacheStats prints the live entry count.
func (r *Runner) CacheStats(ctx context.Context, cmd *cli.Command) error {
	r.loadConfig(cmd.String("config"))

	_, store, err := r.openCache()
	if err != nil {
		return err
	}
	defer store.Close()

	count, err := store.Count(ctx)
	if err != nil {
		return fmt.Errorf("cache count failed: %w", err)
	}
	return r.writePlainln("%d entries", count)
}

func cacheCommand(r *Runner) *cli.Command {
	configFlag := &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
	keyFlag := &cli.StringFlag{
		Name:     "key",
		Aliases:  []string{"k"},
		Usage:    "Cache key",
		Required: true,
	}

	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect and manage the metadata cache",
		Commands: []*cli.Command{
			{
				Name:  "key",
				Usage: "Print the request key for an artist and release",
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
				},
				Action: r.CacheKey,
			},
			{
				Name:   "get",
				Usage:  "Print the cached entry for a key",
				Flags:  []cli.Flag{keyFlag, configFlag},
				Action: r.CacheGet,
			},
			{
				Name:   "delete",
				Usage:  "Remove a cached entry",
				Flags:  []cli.Flag{keyFlag, configFlag},
				Action: r.CacheDelete,
			},
			{
				Name:   "purge",
				Usage:  "Evict expired cache entries",
				Flags:  []cli.Flag{configFlag},
				Action: r.CachePurge,
			},
			{
				Name:   "stats",
				Usage:  "Print cache entry counts",
				Flags:  []cli.Flag{configFlag},
				Action: r.CacheStats,
			},
		},
	}
}

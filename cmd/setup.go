package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/grimwaves/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup creates the config file if missing and initializes the cache
// database.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if _, err := os.Stat(configPath); err == nil {
		r.logger.Info("config file already exists", "path", configPath)
	} else {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
		r.logger.Info("config file created", "path", configPath)
	}
	r.loadConfig(configPath)

	r.logger.Info("initializing cache database", "path", r.config.Cache.Path)
	_, store, err := r.openCache()
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	defer store.Close()

	count, err := store.Count(ctx)
	if err != nil {
		return err
	}

	r.logger.Info("setup complete", "cache_path", r.config.Cache.Path, "entries", count)
	r.writePlainln("✓ Config: %s", configPath)
	r.writePlainln("✓ Cache database: %s (%d entries)", r.config.Cache.Path, count)
	return nil
}

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize configuration and cache database",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
		},
		Action: r.Setup,
	}
}

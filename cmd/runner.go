package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/grimwaves/internal/aggregator"
	"github.com/desertthunder/grimwaves/internal/cache"
	"github.com/desertthunder/grimwaves/internal/services"
	"github.com/desertthunder/grimwaves/internal/shared"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config *shared.Config
	logger *log.Logger
	output io.Writer

	// gateways overrides the provider set, used by tests.
	gateways aggregator.GatewayFactory
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config   *shared.Config
	Logger   *log.Logger
	Output   io.Writer
	Gateways aggregator.GatewayFactory
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	r := &Runner{
		config:   opts.Config,
		logger:   opts.Logger,
		output:   opts.Output,
		gateways: opts.Gateways,
	}
	if r.gateways == nil {
		r.gateways = r.defaultGateways
	}
	return r
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, fetchCommand, workerCommand, cacheCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// defaultGateways builds one fresh gateway per provider from the loaded
// credentials.
func (r *Runner) defaultGateways() []services.Gateway {
	creds := r.config.Credentials
	return []services.Gateway{
		services.NewSpotifyGateway(creds.Spotify),
		services.NewMusicBrainzGateway(creds.MusicBrainz),
		services.NewDeezerGateway(creds.Deezer),
	}
}

// openCache opens the sqlite-backed cache from the configured path.
func (r *Runner) openCache() (*cache.Cache, *cache.SQLiteStore, error) {
	db, err := shared.NewDatabase(r.config.Cache.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Cache.MaxOpenConns, r.config.Cache.MaxIdleConns)

	store, err := cache.NewSQLiteStore(db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	return cache.New(store, r.logger), store, nil
}

// loadConfig replaces the runner's config from the given path when the file
// exists, keeping defaults otherwise.
func (r *Runner) loadConfig(path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	config, err := shared.LoadConfig(path)
	if err != nil {
		r.logger.Warn("failed to load config, using defaults", "path", path, "error", err)
		return
	}
	r.config = config
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

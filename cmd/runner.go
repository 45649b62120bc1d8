package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/crate/internal/enrich"
	"github.com/desertthunder/crate/internal/repositories"
	"github.com/desertthunder/crate/internal/services"
	"github.com/desertthunder/crate/internal/shared"
	"github.com/desertthunder/crate/internal/tasks"
	"github.com/desertthunder/crate/internal/transform"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The database and provider clients are opened on first use so commands that need neither stay cheap.
type Runner struct {
	config      *shared.Config
	configPath  string
	configFixed bool
	httpClient  *http.Client
	logger      *log.Logger
	output      io.Writer

	db     *sql.DB
	ownsDB bool
	writer *repositories.CatalogWriter
	runs   *repositories.RunRepository

	catalog       services.CatalogSource
	releaseGroups services.ReleaseGroupSource
	covers        services.CoverArtSource
}

// RunnerOpts contains configuration options for creating a Runner.
//
// DB and the provider sources override what the runner would otherwise build from Config.
type RunnerOpts struct {
	Config        *shared.Config
	ConfigPath    string
	HTTPClient    *http.Client
	Logger        *log.Logger
	Output        io.Writer
	DB            *sql.DB
	Catalog       services.CatalogSource
	ReleaseGroups services.ReleaseGroupSource
	CoverArt      services.CoverArtSource
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	configFixed := opts.Config != nil
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:        opts.Config,
		configPath:    opts.ConfigPath,
		configFixed:   configFixed,
		httpClient:    opts.HTTPClient,
		logger:        opts.Logger,
		output:        opts.Output,
		db:            opts.DB,
		catalog:       opts.Catalog,
		releaseGroups: opts.ReleaseGroups,
		covers:        opts.CoverArt,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, ingestCommand, catalogCommand, serveCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// before loads the configuration named by --config unless one was injected.
func (r *Runner) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if path := cmd.String("config"); path != "" {
		r.configPath = path
	}

	if !r.configFixed {
		if _, err := os.Stat(r.configPath); err == nil {
			config, err := shared.LoadConfig(r.configPath)
			if err != nil {
				return ctx, err
			}
			r.config = config
		} else {
			r.logger.Debug("config file not found, using defaults", "path", r.configPath)
		}
	}

	level := r.config.Log.Level
	if cmd.Bool("verbose") {
		level = "debug"
	}
	shared.SetLogLevelString(r.logger, level)
	return ctx, nil
}

// Close releases the database if the runner opened it.
func (r *Runner) Close() error {
	if r.db != nil && r.ownsDB {
		return r.db.Close()
	}
	return nil
}

// store opens the catalog database, migrating it on first use.
func (r *Runner) store(ctx context.Context) (*repositories.CatalogWriter, error) {
	if r.writer != nil {
		return r.writer, nil
	}

	if r.db == nil {
		db, err := shared.NewDatabase(r.config.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		shared.ConfigureDatabase(db, r.config.Database.Path, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
		if err := shared.RunMigrations(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		r.db = db
		r.ownsDB = true
	}

	r.writer = repositories.NewCatalogWriter(r.db, repositories.WithLogger(r.logger))
	r.runs = repositories.NewRunRepository(r.db)
	return r.writer, nil
}

// sources builds the provider clients that were not injected. A client that cannot be built is
// left nil; the engine rejects strategies that need it.
func (r *Runner) sources() {
	cfg := r.config
	retry := services.WithRetry(services.RetryPolicyFromConfig(cfg.Retry))
	common := []services.Option{services.WithHTTPClient(r.httpClient), services.WithLogger(r.logger), retry}

	if r.catalog == nil {
		tokens, err := services.NewTokenCache("spotify", cfg.Credentials.Spotify.Map(), services.WithTokenHTTPClient(r.httpClient))
		if err != nil {
			r.logger.Debug("spotify client unavailable", "error", err)
		} else if svc, err := services.NewSpotifyService(cfg.Providers.Spotify, tokens, common...); err != nil {
			r.logger.Debug("spotify client unavailable", "error", err)
		} else {
			r.catalog = svc
		}
	}

	if r.releaseGroups == nil {
		if svc, err := services.NewMusicBrainzService(cfg.Providers.MusicBrainz, common...); err != nil {
			r.logger.Debug("musicbrainz client unavailable", "error", err)
		} else {
			r.releaseGroups = svc
		}
	}

	if r.covers == nil {
		if svc, err := services.NewCoverArtService(cfg.Providers.CoverArt, common...); err != nil {
			r.logger.Debug("cover art client unavailable", "error", err)
		} else {
			r.covers = svc
		}
	}
}

// enricher builds the cover art pass, or nil when no cover art client is available.
func (r *Runner) enricher(progress enrich.ProgressFunc) *enrich.Service {
	if r.covers == nil {
		return nil
	}
	opts := []enrich.Option{
		enrich.WithDelay(r.config.Enrichment.Delay.Duration),
		enrich.WithLogger(r.logger),
	}
	if r.config.Enrichment.ProgressEvery > 0 {
		opts = append(opts, enrich.WithProgressEvery(r.config.Enrichment.ProgressEvery))
	}
	if progress != nil {
		opts = append(opts, enrich.WithProgress(progress))
	}
	return enrich.NewService(r.covers, opts...)
}

// pipeline wires the ingest engine from config, applying command-line overrides.
func (r *Runner) pipeline(ctx context.Context, strategies []string, noEnrich bool) (*tasks.PipelineEngine, error) {
	writer, err := r.store(ctx)
	if err != nil {
		return nil, err
	}
	r.sources()

	opts := tasks.PipelineOptsFromConfig(r.config)
	if len(strategies) > 0 {
		opts.Strategies = strategies
	}
	if noEnrich {
		opts.Enrich = false
	}

	deps := tasks.Dependencies{
		Catalog:       r.catalog,
		ReleaseGroups: r.releaseGroups,
		Transform:     transform.NewEngine(transform.PolicyFromConfig(r.config.Policy), r.logger),
		Store:         writer,
		Runs:          r.runs,
		Guard:         tasks.NewRunGuard(r.config.Pipeline.LockPath),
		Logger:        r.logger,
	}
	if opts.Enrich {
		deps.Enricher = r.enricher(nil)
	}
	return tasks.NewPipelineEngine(deps, opts)
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

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

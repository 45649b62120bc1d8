package tasks

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/crate/internal/enrich"
	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/services"
	"github.com/desertthunder/crate/internal/shared"
	"github.com/desertthunder/crate/internal/transform"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Run triggers
const (
	TriggerCLI      = "cli"
	TriggerSchedule = "schedule"
	TriggerHTTP     = "http"
)

// CatalogStore is the catalog writer the pipeline persists through.
type CatalogStore interface {
	UpsertArtists(ctx context.Context, artists []models.Artist) (models.WriteResult, error)
	UpsertAlbums(ctx context.Context, albums []models.Album) (models.WriteResult, error)
	UpsertTracks(ctx context.Context, tracks []models.Track) (models.WriteResult, error)
	UpsertAlbumArtists(ctx context.Context, relations []models.AlbumArtist) (models.WriteResult, error)
	UpsertAlbumTracks(ctx context.Context, relations []models.AlbumTrack) (models.WriteResult, error)
	enrich.Store
}

// RunRecorder stores run history.
type RunRecorder interface {
	Start(ctx context.Context, run *models.RunSummary) error
	Finish(ctx context.Context, run *models.RunSummary) error
	Latest(ctx context.Context) (*models.RunSummary, error)
}

// PipelineOpts controls which strategies run and how much each fetches.
type PipelineOpts struct {
	Strategies       []string
	NewReleasesLimit int
	TopTracksLimit   int
	FeaturedLimit    int
	MusicBrainzLimit int
	MusicBrainzQuery string
	WithRecordings   bool
	FetchConcurrency int           // strategies fetched at once; 1 or less is strictly sequential
	Enrich           bool          // run the cover art pass after writes
	EnrichTimeout    time.Duration // bound on the cover art pass; zero means none
}

// PipelineOptsFromConfig builds options from the pipeline and enrichment sections.
func PipelineOptsFromConfig(cfg *shared.Config) PipelineOpts {
	return PipelineOpts{
		Strategies:       cfg.Pipeline.Strategies,
		NewReleasesLimit: cfg.Pipeline.NewReleasesLimit,
		TopTracksLimit:   cfg.Pipeline.TopTracksLimit,
		FeaturedLimit:    cfg.Pipeline.FeaturedLimit,
		MusicBrainzLimit: cfg.Pipeline.MusicBrainzLimit,
		MusicBrainzQuery: cfg.Providers.MusicBrainz.Query,
		WithRecordings:   cfg.Pipeline.WithRecordings,
		FetchConcurrency: cfg.Pipeline.FetchConcurrency,
		Enrich:           cfg.Enrichment.Enabled,
		EnrichTimeout:    cfg.Enrichment.Timeout.Duration,
	}
}

// Dependencies are the collaborators of a [PipelineEngine]. Catalog and ReleaseGroups are
// only required by the strategies that use them; Runs and Enricher are optional.
type Dependencies struct {
	Catalog       services.CatalogSource
	ReleaseGroups services.ReleaseGroupSource
	Transform     *transform.Engine
	Store         CatalogStore
	Runs          RunRecorder
	Enricher      *enrich.Service
	Guard         *RunGuard
	Logger        *log.Logger
}

// strategy fetches one raw batch.
type strategy struct {
	name  string
	fetch func(ctx context.Context) (models.RawBatch, error)
}

// fetchResult is the outcome of one strategy's fetch.
type fetchResult struct {
	batch    models.RawBatch
	err      error
	duration time.Duration
}

// PipelineEngine sequences fetch, transform, write and enrich across source strategies.
type PipelineEngine struct {
	deps       Dependencies
	opts       PipelineOpts
	strategies []strategy
	logger     *log.Logger
	now        func() time.Time

	wg   sync.WaitGroup
	last atomic.Pointer[models.RunSummary]
}

// NewPipelineEngine validates the dependencies against the configured strategies.
func NewPipelineEngine(deps Dependencies, opts PipelineOpts) (*PipelineEngine, error) {
	if deps.Transform == nil {
		return nil, fmt.Errorf("%w: transform engine not initialized", shared.ErrServiceUnavailable)
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("%w: catalog store not initialized", shared.ErrServiceUnavailable)
	}
	if deps.Guard == nil {
		deps.Guard = NewRunGuard("")
	}
	if deps.Logger == nil {
		deps.Logger = shared.DiscardLogger()
	}

	e := &PipelineEngine{deps: deps, opts: opts, logger: deps.Logger, now: time.Now}
	strategies, err := e.buildStrategies(opts.Strategies)
	if err != nil {
		return nil, err
	}
	e.strategies = strategies
	return e, nil
}

// buildStrategies resolves names into fetchers, always in the canonical order.
func (e *PipelineEngine) buildStrategies(names []string) ([]strategy, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no strategies configured", shared.ErrInvalidConfig)
	}
	for _, name := range names {
		if !shared.IsKnownStrategy(name) {
			return nil, fmt.Errorf("%w: unknown strategy %q", shared.ErrInvalidConfig, name)
		}
	}

	var out []strategy
	for _, name := range shared.StrategyOrder {
		if !slices.Contains(names, name) {
			continue
		}

		var s strategy
		switch name {
		case shared.StrategyNewReleases:
			s = strategy{name: name, fetch: e.fetchNewReleases}
		case shared.StrategyTopTracks:
			s = strategy{name: name, fetch: e.fetchTopTracks}
		case shared.StrategyFeaturedCollections:
			s = strategy{name: name, fetch: e.fetchFeatured}
		case shared.StrategyMusicBrainz:
			s = strategy{name: name, fetch: e.fetchMusicBrainz}
		}

		if name == shared.StrategyMusicBrainz {
			if e.deps.ReleaseGroups == nil {
				return nil, fmt.Errorf("%w: %s requires the MusicBrainz client", shared.ErrServiceUnavailable, name)
			}
		} else if e.deps.Catalog == nil {
			return nil, fmt.Errorf("%w: %s requires the Spotify client", shared.ErrServiceUnavailable, name)
		}
		out = append(out, s)
	}
	return out, nil
}

// Strategies returns the strategy names in execution order.
func (e *PipelineEngine) Strategies() []string {
	names := make([]string, len(e.strategies))
	for i, s := range e.strategies {
		names[i] = s.name
	}
	return names
}

// sendProgress sends a progress update through the channel without blocking.
func (e *PipelineEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Run executes one ingest run and blocks until it finishes.
//
// Returns [shared.ErrRunActive] when another run holds the guard and [shared.ErrRunFailed]
// (with the summary) when every strategy failed.
func (e *PipelineEngine) Run(ctx context.Context, trigger string, progress chan<- ProgressUpdate) (*models.RunSummary, error) {
	release, err := e.deps.Guard.Acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	return e.run(ctx, uuid.NewString(), trigger, progress)
}

// Trigger starts a run in the background and returns its ID immediately.
// The run is detached from ctx cancellation.
func (e *PipelineEngine) Trigger(ctx context.Context, trigger string) (string, error) {
	release, err := e.deps.Guard.Acquire()
	if err != nil {
		return "", err
	}

	runID := uuid.NewString()
	runCtx := context.WithoutCancel(ctx)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer release()
		if _, err := e.run(runCtx, runID, trigger, nil); err != nil {
			e.logger.Error("ingest run failed", "run", runID, "error", err)
		}
	}()
	return runID, nil
}

// Wait blocks until background runs started by [PipelineEngine.Trigger] finish.
func (e *PipelineEngine) Wait() {
	e.wg.Wait()
}

// Active reports whether a run is in progress in this process.
func (e *PipelineEngine) Active() bool {
	return e.deps.Guard.Active()
}

// LastSummary returns the most recent run summary, from memory or run history.
func (e *PipelineEngine) LastSummary(ctx context.Context) (*models.RunSummary, error) {
	if s := e.last.Load(); s != nil {
		return s, nil
	}
	if e.deps.Runs == nil {
		return nil, fmt.Errorf("%w: no ingest runs recorded", shared.ErrNotFound)
	}
	return e.deps.Runs.Latest(ctx)
}

func (e *PipelineEngine) run(ctx context.Context, runID, trigger string, progress chan<- ProgressUpdate) (*models.RunSummary, error) {
	logger := e.logger.With("run", runID)
	summary := &models.RunSummary{
		RunID:     runID,
		Trigger:   trigger,
		Status:    models.RunStatusRunning,
		StartedAt: e.now(),
	}

	if e.deps.Runs != nil {
		if err := e.deps.Runs.Start(ctx, summary); err != nil {
			logger.Warn("failed to record run start", "error", err)
		}
	}
	logger.Info("ingest run started", "trigger", trigger, "strategies", strings.Join(e.Strategies(), ","))

	prefetched := e.prefetch(ctx)

	var albumKeys []string
	failures := 0
	total := len(e.strategies)
	for i, s := range e.strategies {
		step := i + 1

		var res fetchResult
		if prefetched != nil {
			res = prefetched[i]
		} else {
			e.sendProgress(progress, fetchUpdate(step, total, s.name))
			res = e.fetch(ctx, s)
		}

		result, keys := e.process(ctx, s.name, res, step, total, progress, logger)
		summary.Strategies = append(summary.Strategies, result)
		summary.Totals.Add(result.Counts)
		summary.Skipped += result.Skipped
		albumKeys = append(albumKeys, keys...)
		if result.Failed() {
			failures++
		}
	}

	var runErr error
	switch {
	case failures == total:
		summary.Status = models.RunStatusFailed
		runErr = shared.ErrRunFailed
		summary.Error = runErr.Error()
	case failures > 0:
		summary.Status = models.RunStatusPartial
	default:
		summary.Status = models.RunStatusSucceeded
	}

	if runErr == nil && e.opts.Enrich && e.deps.Enricher != nil {
		summary.Enriched = e.enrich(ctx, albumKeys, progress, logger)
	}

	summary.FinishedAt = e.now()
	if e.deps.Runs != nil {
		if err := e.deps.Runs.Finish(context.WithoutCancel(ctx), summary); err != nil {
			logger.Warn("failed to record run summary", "error", err)
		}
	}
	e.last.Store(summary)
	e.sendProgress(progress, summaryUpdate(summary))

	logger.Info("ingest run finished",
		"status", summary.Status,
		"duration", summary.FinishedAt.Sub(summary.StartedAt).Round(time.Millisecond),
		"albums_inserted", summary.Totals.Albums.Inserted,
		"albums_updated", summary.Totals.Albums.Updated,
		"artists_inserted", summary.Totals.Artists.Inserted,
		"artists_updated", summary.Totals.Artists.Updated,
		"tracks_inserted", summary.Totals.Tracks.Inserted,
		"tracks_updated", summary.Totals.Tracks.Updated,
		"skipped", summary.Skipped,
		"enriched", summary.Enriched,
	)
	return summary, runErr
}

// prefetch fetches every strategy up front when concurrency is enabled, returning nil otherwise.
// Results keep strategy order so the write phase stays sequential.
func (e *PipelineEngine) prefetch(ctx context.Context) []fetchResult {
	if e.opts.FetchConcurrency <= 1 || len(e.strategies) < 2 {
		return nil
	}

	results := make([]fetchResult, len(e.strategies))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.FetchConcurrency)
	for i, s := range e.strategies {
		g.Go(func() error {
			results[i] = e.fetch(gctx, s)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (e *PipelineEngine) fetch(ctx context.Context, s strategy) fetchResult {
	start := time.Now()
	batch, err := s.fetch(ctx)
	return fetchResult{batch: batch, err: err, duration: time.Since(start)}
}

// process transforms and writes one strategy's batch. Partial batches from a failed fetch are still written.
func (e *PipelineEngine) process(
	ctx context.Context,
	name string,
	res fetchResult,
	step, total int,
	progress chan<- ProgressUpdate,
	logger *log.Logger,
) (models.StrategySummary, []string) {
	start := time.Now()
	result := models.StrategySummary{Name: name, Fetched: res.batch.Len()}

	if res.err != nil {
		result.Error = res.err.Error()
		logger.Error("strategy fetch failed", "strategy", name, "fetched", result.Fetched, "error", res.err)
		e.sendProgress(progress, fetchFailedUpdate(step, total, name, res.err))
	}

	batch := e.deps.Transform.Transform(res.batch)
	result.Skipped = batch.SkippedTotal()
	e.sendProgress(progress, transformUpdate(step, total, name, result.Fetched, result.Skipped))

	counts, err := e.write(ctx, batch)
	result.Counts = counts
	if err != nil && result.Error == "" {
		result.Error = err.Error()
		logger.Error("strategy write failed", "strategy", name, "error", err)
	}

	result.Duration = res.duration + time.Since(start)
	logger.Info("strategy complete",
		"strategy", name,
		"fetched", result.Fetched,
		"skipped", result.Skipped,
		"albums", result.Counts.Albums.Written(),
		"artists", result.Counts.Artists.Written(),
		"tracks", result.Counts.Tracks.Written(),
		"failed_records", result.Counts.Albums.Failed+result.Counts.Artists.Failed+result.Counts.Tracks.Failed,
	)
	e.sendProgress(progress, writeUpdate(step, total, result))

	// The cover art archive only resolves MusicBrainz identifiers.
	keys := make([]string, 0, len(batch.Albums))
	for _, a := range batch.Albums {
		if a.Source == models.SourceMusicBrainz {
			keys = append(keys, a.Key)
		}
	}
	return result, keys
}

// write persists entities before the relations that reference them.
func (e *PipelineEngine) write(ctx context.Context, batch transform.Batch) (models.EntityCounts, error) {
	var (
		counts models.EntityCounts
		err    error
	)

	steps := []func() error{
		func() error { counts.Artists, err = e.deps.Store.UpsertArtists(ctx, batch.Artists); return err },
		func() error { counts.Albums, err = e.deps.Store.UpsertAlbums(ctx, batch.Albums); return err },
		func() error { counts.Tracks, err = e.deps.Store.UpsertTracks(ctx, batch.Tracks); return err },
		func() error { counts.AlbumArtists, err = e.deps.Store.UpsertAlbumArtists(ctx, batch.AlbumArtists); return err },
		func() error { counts.AlbumTracks, err = e.deps.Store.UpsertAlbumTracks(ctx, batch.AlbumTracks); return err },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return counts, fmt.Errorf("%w: %w", shared.ErrWrite, err)
		}
	}
	return counts, nil
}

func (e *PipelineEngine) enrich(ctx context.Context, albumKeys []string, progress chan<- ProgressUpdate, logger *log.Logger) int {
	if len(albumKeys) == 0 {
		return 0
	}

	if e.opts.EnrichTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.EnrichTimeout)
		defer cancel()
	}

	e.sendProgress(progress, enrichUpdate(0, len(albumKeys)))
	report, err := e.deps.Enricher.EnrichKeys(ctx, e.deps.Store, albumKeys)
	if err != nil {
		logger.Warn("enrichment pass failed", "error", err)
		return report.Persisted
	}

	if report.Remaining > 0 {
		logger.Warn("enrichment pass cut short", "remaining", report.Remaining)
	}
	logger.Info("enrichment pass finished", "requested", report.Requested, "found", report.Found, "missed", report.Missed, "failed", report.Failed, "persisted", report.Persisted)
	e.sendProgress(progress, enrichUpdate(report.Requested-report.Remaining, report.Requested))
	return report.Persisted
}

func (e *PipelineEngine) fetchNewReleases(ctx context.Context) (models.RawBatch, error) {
	groups, err := e.deps.Catalog.NewReleases(ctx, e.opts.NewReleasesLimit)
	return models.RawBatch{ReleaseGroups: groups}, err
}

func (e *PipelineEngine) fetchTopTracks(ctx context.Context) (models.RawBatch, error) {
	tracks, err := e.deps.Catalog.TopTracks(ctx, e.opts.TopTracksLimit)
	return models.RawBatch{Tracks: tracks}, err
}

func (e *PipelineEngine) fetchFeatured(ctx context.Context) (models.RawBatch, error) {
	tracks, err := e.deps.Catalog.FeaturedCollectionTracks(ctx, e.opts.FeaturedLimit)
	return models.RawBatch{Tracks: tracks}, err
}

// fetchMusicBrainz browses release groups and, when enabled, their track listings.
// A listing that cannot be read is logged and the group is kept without tracks.
func (e *PipelineEngine) fetchMusicBrainz(ctx context.Context) (models.RawBatch, error) {
	groups, err := e.deps.ReleaseGroups.BrowseReleaseGroups(ctx, e.opts.MusicBrainzQuery, e.opts.MusicBrainzLimit)
	batch := models.RawBatch{ReleaseGroups: groups}
	if err != nil || !e.opts.WithRecordings {
		return batch, err
	}

	for i, rg := range groups {
		if !e.deps.Transform.Allowed(rg) {
			continue
		}

		listing, err := e.deps.ReleaseGroups.ReleaseRecordings(ctx, rg.Key)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return batch, ctxErr
			}
			if !errors.Is(err, shared.ErrNotFound) {
				e.logger.Warn("skipping release listing", "release_group", rg.Key, "error", err)
			}
			continue
		}

		if listing.Status != "" {
			rg.Status = listing.Status
			batch.ReleaseGroups[i].Status = listing.Status
		}
		for _, rec := range listing.Recordings {
			batch.Tracks = append(batch.Tracks, models.RawTrackItem{Album: rg, Recording: rec})
		}
	}
	return batch, nil
}

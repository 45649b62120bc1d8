package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/crate/internal/formatter"
	"github.com/desertthunder/crate/internal/shared"
	"github.com/desertthunder/crate/internal/tasks"
	"github.com/urfave/cli/v3"
)

// IngestRun executes one ingest run in the foreground, printing progress as it goes.
func (r *Runner) IngestRun(ctx context.Context, cmd *cli.Command) error {
	engine, err := r.pipeline(ctx, cmd.StringSlice("strategy"), cmd.Bool("no-enrich"))
	if err != nil {
		return err
	}

	quiet := cmd.Bool("json") || cmd.Bool("markdown")
	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			if quiet {
				continue
			}
			switch update.Phase {
			case tasks.FetchStrategy:
				r.writePlain("📥 %s\n", update.Message)
			case tasks.TransformBatch:
				r.writePlain("   %s\n", update.Message)
			case tasks.WriteCatalog:
				r.writePlain("💾 %s\n", update.Message)
			case tasks.EnrichAlbums:
				r.writePlain("🖼  %s\n", update.Message)
			}
		}
	}()

	summary, runErr := engine.Run(ctx, tasks.TriggerCLI, progressCh)
	close(progressCh)
	<-done

	if summary == nil {
		return runErr
	}

	switch {
	case cmd.Bool("json"):
		if err := r.writeJSON(summary, true); err != nil {
			return err
		}
	case cmd.Bool("markdown"):
		if err := r.writePlain("%s", formatter.RenderSummaryMarkdown(summary)); err != nil {
			return err
		}
	default:
		if err := r.writePlain("\n%s", formatter.RenderSummary(summary)); err != nil {
			return err
		}
	}
	return runErr
}

// IngestEnrich runs the cover art pass over stored albums.
func (r *Runner) IngestEnrich(ctx context.Context, cmd *cli.Command) error {
	writer, err := r.store(ctx)
	if err != nil {
		return err
	}
	r.sources()

	limit := cmd.Int("limit")
	if limit <= 0 {
		limit = r.config.Enrichment.BatchLimit
	}

	every := max(r.config.Enrichment.ProgressEvery, 1)
	svc := r.enricher(func(processed, total int) {
		if processed%every == 0 || processed == total {
			r.writePlain("🖼  [%d/%d] cover art lookups\n", processed, total)
		}
	})
	if svc == nil {
		return fmt.Errorf("%w: cover art client not initialized", shared.ErrServiceUnavailable)
	}

	if timeout := r.config.Enrichment.Timeout.Duration; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	report, err := svc.EnrichPersisted(ctx, writer, cmd.String("source"), limit)
	if err != nil {
		return err
	}

	r.writePlain("\n✓ Requested: %d\n", report.Requested)
	r.writePlain("  Found: %d (saved %d)\n", report.Found, report.Persisted)
	r.writePlain("  No cover: %d\n", report.Missed)
	r.writePlain("  Failed: %d\n", report.Failed)
	if report.Remaining > 0 {
		r.writePlain("  Not reached: %d\n", report.Remaining)
	}
	return nil
}

// IngestRuns lists recent runs.
func (r *Runner) IngestRuns(ctx context.Context, cmd *cli.Command) error {
	if _, err := r.store(ctx); err != nil {
		return err
	}

	runs, err := r.runs.List(ctx, cmd.Int("limit"))
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(runs, true)
	}
	if len(runs) == 0 {
		return r.writePlain("No ingest runs recorded\n")
	}
	return r.writePlain("%s\n", formatter.RenderRuns(runs))
}

// IngestLast shows the latest run summary.
func (r *Runner) IngestLast(ctx context.Context, cmd *cli.Command) error {
	if _, err := r.store(ctx); err != nil {
		return err
	}

	summary, err := r.runs.Latest(ctx)
	if errors.Is(err, shared.ErrNotFound) {
		return r.writePlain("No ingest runs recorded\n")
	}
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(summary, true)
	}
	return r.writePlain("%s", formatter.RenderSummary(summary))
}

// Package enrich attaches cover art to albums already in the catalog.
//
// Lookups are paced with a fixed inter-call delay. A missing cover is not an error and
// is never logged as a failure; a timeout or server error on one key logs a warning and
// the pass moves to the next key. When the context ends the pass stops and the remaining
// keys are left for a later run.
package enrich

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/crate/internal/services"
	"github.com/desertthunder/crate/internal/shared"
	"golang.org/x/time/rate"
)

const (
	DefaultDelay         = time.Second
	DefaultProgressEvery = 100
)

// Store is the part of the catalog the enrichment pass reads and writes.
type Store interface {
	AlbumsMissingCoverArt(ctx context.Context, source string, limit int) ([]string, error)
	FilterMissingCoverArt(ctx context.Context, keys []string) ([]string, error)
	SetCoverArt(ctx context.Context, albumKey, url string) error
}

// Report counts the outcome of one pass.
type Report struct {
	Requested int `json:"requested"`
	Found     int `json:"found"`
	Missed    int `json:"missed"`
	Failed    int `json:"failed"`
	Remaining int `json:"remaining"` // not attempted before the context ended
	Persisted int `json:"persisted"`
}

// ProgressFunc is called after each key with the processed and total counts.
type ProgressFunc func(processed, total int)

// Service looks up cover art for album keys.
type Service struct {
	source        services.CoverArtSource
	limiter       *rate.Limiter
	progressEvery int
	progress      ProgressFunc
	logger        *log.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithDelay sets the minimum time between lookups. Zero disables pacing.
func WithDelay(d time.Duration) Option {
	return func(s *Service) {
		if d <= 0 {
			s.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		s.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithProgressEvery sets how many keys are processed between progress log lines.
func WithProgressEvery(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.progressEvery = n
		}
	}
}

// WithProgress registers a per-key progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(s *Service) {
		s.progress = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates an enrichment service over a cover art source.
func NewService(source services.CoverArtSource, opts ...Option) *Service {
	s := &Service{
		source:        source,
		limiter:       rate.NewLimiter(rate.Every(DefaultDelay), 1),
		progressEvery: DefaultProgressEvery,
		logger:        shared.DiscardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enrich returns the front cover URL of every key that has one. Keys without art are absent.
func (s *Service) Enrich(ctx context.Context, keys []string) map[string]string {
	urls, _ := s.EnrichReport(ctx, keys)
	return urls
}

// EnrichReport is [Service.Enrich] with outcome counts.
func (s *Service) EnrichReport(ctx context.Context, keys []string) (map[string]string, Report) {
	urls := make(map[string]string)
	report := Report{Requested: len(keys)}
	total := len(keys)

	for i, key := range keys {
		if err := s.limiter.Wait(ctx); err != nil {
			report.Remaining = total - i
			s.logger.Warn("enrichment stopped", "processed", i, "remaining", report.Remaining, "error", err)
			break
		}

		url, err := s.source.FrontCover(ctx, key)
		switch {
		case err == nil:
			urls[key] = url
			report.Found++
		case errors.Is(err, shared.ErrNotFound):
			report.Missed++
			s.logger.Debug("no cover art", "key", key)
		case ctx.Err() != nil:
			report.Remaining = total - i
			s.logger.Warn("enrichment stopped", "processed", i, "remaining", report.Remaining, "error", ctx.Err())
			return urls, report
		default:
			report.Failed++
			s.logger.Warn("cover art lookup failed", "key", key, "error", err)
		}

		processed := i + 1
		if s.progress != nil {
			s.progress(processed, total)
		}
		if processed%s.progressEvery == 0 || processed == total {
			s.logger.Info("enrichment progress", "processed", processed, "total", total, "found", report.Found, "missed", report.Missed, "failed", report.Failed)
		}
	}
	return urls, report
}

// EnrichKeys enriches the given albums that still lack cover art and stores the results.
func (s *Service) EnrichKeys(ctx context.Context, store Store, keys []string) (Report, error) {
	pending, err := store.FilterMissingCoverArt(ctx, keys)
	if err != nil {
		return Report{}, err
	}
	return s.persist(ctx, store, pending), nil
}

// EnrichPersisted enriches up to limit stored albums without cover art. An empty source matches every provider.
func (s *Service) EnrichPersisted(ctx context.Context, store Store, source string, limit int) (Report, error) {
	pending, err := store.AlbumsMissingCoverArt(ctx, source, limit)
	if err != nil {
		return Report{}, err
	}
	return s.persist(ctx, store, pending), nil
}

func (s *Service) persist(ctx context.Context, store Store, keys []string) Report {
	urls, report := s.EnrichReport(ctx, keys)

	// Results already fetched are written even when the pass was cut short.
	writeCtx := context.WithoutCancel(ctx)
	for _, key := range keys {
		url, ok := urls[key]
		if !ok {
			continue
		}
		if err := store.SetCoverArt(writeCtx, key, url); err != nil {
			s.logger.Warn("failed to store cover art", "key", key, "error", err)
			continue
		}
		report.Persisted++
	}
	return report
}

package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/shared"
)

// scanner is satisfied by both [sql.Row] and [sql.Rows].
type scanner interface {
	Scan(dest ...any) error
}

// CatalogWriter persists canonical entities and relations.
type CatalogWriter struct {
	db     *sql.DB
	logger *log.Logger
	now    func() time.Time
}

// WriterOption configures a CatalogWriter.
type WriterOption func(*CatalogWriter)

// WithLogger sets the logger used for per-record failures.
func WithLogger(logger *log.Logger) WriterOption {
	return func(w *CatalogWriter) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithClock overrides time.Now for timestamps.
func WithClock(now func() time.Time) WriterOption {
	return func(w *CatalogWriter) {
		if now != nil {
			w.now = now
		}
	}
}

// NewCatalogWriter creates a new CatalogWriter with the given database connection
func NewCatalogWriter(db *sql.DB, opts ...WriterOption) *CatalogWriter {
	w := &CatalogWriter{db: db, logger: shared.DiscardLogger(), now: time.Now}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// DB returns the underlying connection.
func (w *CatalogWriter) DB() *sql.DB {
	return w.db
}

func (w *CatalogWriter) timestamp() string {
	return formatTime(w.now())
}

type outcome int

const (
	inserted outcome = iota
	updated
	unchanged
)

// upsertFunc writes one record and reports what happened to its row.
type upsertFunc[T models.Entity] func(ctx context.Context, record T, now string) (outcome, error)

// upsertRow runs an insert-or-update statement for an entity keyed by key.
// The existence check and the upsert are separate statements, so the inserted/updated
// outcome is a count hint and is not atomic with the write.
func (w *CatalogWriter) upsertRow(ctx context.Context, table, key, query string, args ...any) (outcome, error) {
	found, err := w.exists(ctx, table, key)
	if err != nil {
		return 0, err
	}

	if _, err := w.db.ExecContext(ctx, query, args...); err != nil {
		return 0, fmt.Errorf("failed to upsert into %s: %w", table, err)
	}

	if found {
		return updated, nil
	}
	return inserted, nil
}

// upsertEach writes records one at a time. Failed records are logged and counted; only a
// done context stops the batch early.
func upsertEach[T models.Entity](ctx context.Context, w *CatalogWriter, entity string, records []T, fn upsertFunc[T]) (models.WriteResult, error) {
	var result models.WriteResult
	now := w.timestamp()

	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		err := record.Validate()
		var out outcome
		if err == nil {
			out, err = fn(ctx, record, now)
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return result, ctxErr
			}
			werr := &shared.WriteError{Entity: entity, Key: record.NaturalKey(), Err: err}
			w.logger.Warn("skipping record", "entity", entity, "key", record.NaturalKey(), "error", werr)
			result.Failed++
			continue
		}

		switch out {
		case inserted:
			result.Inserted++
		case updated:
			result.Updated++
		case unchanged:
			result.Unchanged++
		}
	}
	return result, nil
}

// exists reports whether table holds a row with the given natural key.
func (w *CatalogWriter) exists(ctx context.Context, table, key string) (bool, error) {
	var found bool
	query := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE key = ?)", table)
	if err := w.db.QueryRowContext(ctx, query, key).Scan(&found); err != nil {
		return false, fmt.Errorf("failed to check %s: %w", table, err)
	}
	return found, nil
}

func (w *CatalogWriter) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := w.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count: %w", err)
	}
	return n, nil
}

// CatalogStats holds table row counts.
type CatalogStats struct {
	Artists         int `json:"artists"`
	Albums          int `json:"albums"`
	Tracks          int `json:"tracks"`
	AlbumArtists    int `json:"album_artists"`
	AlbumTracks     int `json:"album_tracks"`
	MissingCoverArt int `json:"missing_cover_art"`
}

// Stats counts the rows of every catalog table.
func (w *CatalogWriter) Stats(ctx context.Context) (*CatalogStats, error) {
	var stats CatalogStats
	targets := []struct {
		dest  *int
		query string
	}{
		{&stats.Artists, "SELECT COUNT(*) FROM artists"},
		{&stats.Albums, "SELECT COUNT(*) FROM albums"},
		{&stats.Tracks, "SELECT COUNT(*) FROM tracks"},
		{&stats.AlbumArtists, "SELECT COUNT(*) FROM album_artists"},
		{&stats.AlbumTracks, "SELECT COUNT(*) FROM album_tracks"},
		{&stats.MissingCoverArt, "SELECT COUNT(*) FROM albums WHERE cover_art_url IS NULL"},
	}

	for _, target := range targets {
		n, err := w.count(ctx, target.query)
		if err != nil {
			return nil, err
		}
		*target.dest = n
	}
	return &stats, nil
}

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseTimestamps(created, updated string) (models.Timestamps, error) {
	c, err := parseTime(created)
	if err != nil {
		return models.Timestamps{}, err
	}
	u, err := parseTime(updated)
	if err != nil {
		return models.Timestamps{}, err
	}
	return models.Timestamps{CreatedAt: c, UpdatedAt: u}, nil
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullInt(i *int) any {
	if i == nil {
		return nil
	}
	return *i
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

func notFound(entity, key string) error {
	return fmt.Errorf("%w: %s %s", shared.ErrNotFound, entity, key)
}

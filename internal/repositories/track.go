package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/crate/internal/models"
)

const trackColumns = `key, title, length_ms, disambiguation, created_at, updated_at`

// UpsertTracks inserts new tracks and overwrites existing ones by key.
func (w *CatalogWriter) UpsertTracks(ctx context.Context, tracks []models.Track) (models.WriteResult, error) {
	query := `
		INSERT INTO tracks (key, title, length_ms, disambiguation, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			title = excluded.title,
			length_ms = excluded.length_ms,
			disambiguation = excluded.disambiguation,
			updated_at = excluded.updated_at
	`

	return upsertEach(ctx, w, "track", tracks, func(ctx context.Context, t models.Track, now string) (outcome, error) {
		return w.upsertRow(ctx, "tracks", t.Key, query,
			t.Key, t.Title, nullInt(t.LengthMS), nullString(t.Disambiguation), now, now,
		)
	})
}

// GetTrack retrieves a track by natural key
func (w *CatalogWriter) GetTrack(ctx context.Context, key string) (*models.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE key = ?`

	track, err := scanTrack(w.db.QueryRowContext(ctx, query, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("track", key)
	}
	return track, err
}

// ListTracks returns tracks ordered by key. A limit of zero returns all of them.
func (w *CatalogWriter) ListTracks(ctx context.Context, limit int) ([]models.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks ORDER BY key`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := w.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	var tracks []models.Track
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, *track)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return tracks, nil
}

func scanTrack(s scanner) (*models.Track, error) {
	var (
		track                models.Track
		length               sql.NullInt64
		disambiguation       sql.NullString
		createdAt, updatedAt string
	)

	err := s.Scan(&track.Key, &track.Title, &length, &disambiguation, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan track: %w", err)
	}

	if length.Valid {
		n := int(length.Int64)
		track.LengthMS = &n
	}
	track.Disambiguation = stringPtr(disambiguation)
	if track.Timestamps, err = parseTimestamps(createdAt, updatedAt); err != nil {
		return nil, err
	}
	return &track, nil
}

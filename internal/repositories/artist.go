package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/crate/internal/models"
)

const artistColumns = `key, name, sort_name, type, area, disambiguation, created_at, updated_at`

// UpsertArtists inserts new artists and overwrites existing ones by key.
func (w *CatalogWriter) UpsertArtists(ctx context.Context, artists []models.Artist) (models.WriteResult, error) {
	query := `
		INSERT INTO artists (key, name, sort_name, type, area, disambiguation, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			name = excluded.name,
			sort_name = excluded.sort_name,
			type = excluded.type,
			area = excluded.area,
			disambiguation = excluded.disambiguation,
			updated_at = excluded.updated_at
	`

	return upsertEach(ctx, w, "artist", artists, func(ctx context.Context, a models.Artist, now string) (outcome, error) {
		return w.upsertRow(ctx, "artists", a.Key, query,
			a.Key, a.Name, nullString(a.SortName), nullString(a.Type), nullString(a.Area), nullString(a.Disambiguation), now, now,
		)
	})
}

// GetArtist retrieves an artist by natural key
func (w *CatalogWriter) GetArtist(ctx context.Context, key string) (*models.Artist, error) {
	query := `SELECT ` + artistColumns + ` FROM artists WHERE key = ?`

	artist, err := scanArtist(w.db.QueryRowContext(ctx, query, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("artist", key)
	}
	return artist, err
}

// ListArtists returns artists ordered by key. A limit of zero returns all of them.
func (w *CatalogWriter) ListArtists(ctx context.Context, limit int) ([]models.Artist, error) {
	query := `SELECT ` + artistColumns + ` FROM artists ORDER BY key`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := w.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query artists: %w", err)
	}
	defer rows.Close()

	var artists []models.Artist
	for rows.Next() {
		artist, err := scanArtist(rows)
		if err != nil {
			return nil, err
		}
		artists = append(artists, *artist)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return artists, nil
}

func scanArtist(s scanner) (*models.Artist, error) {
	var (
		artist                                models.Artist
		sortName, kind, area, disambiguation sql.NullString
		createdAt, updatedAt                  string
	)

	err := s.Scan(&artist.Key, &artist.Name, &sortName, &kind, &area, &disambiguation, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan artist: %w", err)
	}

	artist.SortName = stringPtr(sortName)
	artist.Type = stringPtr(kind)
	artist.Area = stringPtr(area)
	artist.Disambiguation = stringPtr(disambiguation)
	if artist.Timestamps, err = parseTimestamps(createdAt, updatedAt); err != nil {
		return nil, err
	}
	return &artist, nil
}

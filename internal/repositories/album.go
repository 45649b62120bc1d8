package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/shared"
)

const albumColumns = `key, title, release_date, status, primary_type, secondary_types, cover_art_url, source, created_at, updated_at`

// UpsertAlbums inserts new albums and overwrites existing ones by key.
//
// A nil cover art URL keeps the stored one, since covers come from enrichment rather than ingest.
func (w *CatalogWriter) UpsertAlbums(ctx context.Context, albums []models.Album) (models.WriteResult, error) {
	query := `
		INSERT INTO albums (key, title, release_date, status, primary_type, secondary_types, cover_art_url, source, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			title = excluded.title,
			release_date = excluded.release_date,
			status = excluded.status,
			primary_type = excluded.primary_type,
			secondary_types = excluded.secondary_types,
			cover_art_url = COALESCE(excluded.cover_art_url, albums.cover_art_url),
			source = excluded.source,
			updated_at = excluded.updated_at
	`

	return upsertEach(ctx, w, "album", albums, func(ctx context.Context, a models.Album, now string) (outcome, error) {
		secondary, err := encodeTypes(a.SecondaryTypes)
		if err != nil {
			return 0, err
		}
		return w.upsertRow(ctx, "albums", a.Key, query,
			a.Key, a.Title, nullString(a.ReleaseDate), nullString(a.Status), a.PrimaryType,
			secondary, nullString(a.CoverArtURL), a.Source, now, now,
		)
	})
}

// SetCoverArt records an enrichment result on an album.
func (w *CatalogWriter) SetCoverArt(ctx context.Context, albumKey, url string) error {
	if strings.TrimSpace(url) == "" {
		return fmt.Errorf("%w: cover art url", shared.ErrMissingArgument)
	}

	result, err := w.db.ExecContext(ctx,
		`UPDATE albums SET cover_art_url = ?, updated_at = ? WHERE key = ?`,
		url, w.timestamp(), albumKey,
	)
	if err != nil {
		return &shared.WriteError{Entity: "album", Key: albumKey, Err: err}
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return notFound("album", albumKey)
	}
	return nil
}

// AlbumsMissingCoverArt returns keys of albums without cover art, newest first.
// An empty source matches every provider; a limit of zero returns all of them.
func (w *CatalogWriter) AlbumsMissingCoverArt(ctx context.Context, source string, limit int) ([]string, error) {
	query := `SELECT key FROM albums WHERE cover_art_url IS NULL`
	args := []any{}
	if source != "" {
		query += " AND source = ?"
		args = append(args, source)
	}
	query += " ORDER BY updated_at DESC, key"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	return w.queryKeys(ctx, query, args...)
}

// FilterMissingCoverArt narrows keys to the albums that exist and have no cover art, preserving order.
func (w *CatalogWriter) FilterMissingCoverArt(ctx context.Context, keys []string) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	query := `SELECT key FROM albums WHERE cover_art_url IS NULL AND key IN (?` + strings.Repeat(", ?", len(keys)-1) + `)`
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}

	found, err := w.queryKeys(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	missing := make(map[string]struct{}, len(found))
	for _, k := range found {
		missing[k] = struct{}{}
	}

	var out []string
	for _, k := range keys {
		if _, ok := missing[k]; ok {
			out = append(out, k)
			delete(missing, k)
		}
	}
	return out, nil
}

// GetAlbum retrieves an album by natural key
func (w *CatalogWriter) GetAlbum(ctx context.Context, key string) (*models.Album, error) {
	query := `SELECT ` + albumColumns + ` FROM albums WHERE key = ?`

	album, err := scanAlbum(w.db.QueryRowContext(ctx, query, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("album", key)
	}
	return album, err
}

// ListAlbums returns albums ordered by key, optionally filtered by source. A limit of zero returns all of them.
func (w *CatalogWriter) ListAlbums(ctx context.Context, source string, limit int) ([]models.Album, error) {
	query := `SELECT ` + albumColumns + ` FROM albums`
	args := []any{}
	if source != "" {
		query += " WHERE source = ?"
		args = append(args, source)
	}
	query += " ORDER BY key"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := w.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query albums: %w", err)
	}
	defer rows.Close()

	var albums []models.Album
	for rows.Next() {
		album, err := scanAlbum(rows)
		if err != nil {
			return nil, err
		}
		albums = append(albums, *album)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return albums, nil
}

func (w *CatalogWriter) queryKeys(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := w.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		keys = append(keys, key)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return keys, nil
}

func scanAlbum(s scanner) (*models.Album, error) {
	var (
		album                                models.Album
		releaseDate, status, secondary, cover sql.NullString
		createdAt, updatedAt                 string
	)

	err := s.Scan(&album.Key, &album.Title, &releaseDate, &status, &album.PrimaryType, &secondary, &cover, &album.Source, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan album: %w", err)
	}

	album.ReleaseDate = stringPtr(releaseDate)
	album.Status = stringPtr(status)
	album.CoverArtURL = stringPtr(cover)
	if album.SecondaryTypes, err = decodeTypes(secondary); err != nil {
		return nil, err
	}
	if album.Timestamps, err = parseTimestamps(createdAt, updatedAt); err != nil {
		return nil, err
	}
	return &album, nil
}

// encodeTypes stores secondary types as a JSON array, or NULL when there are none.
func encodeTypes(types []string) (any, error) {
	if len(types) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(types)
	if err != nil {
		return nil, fmt.Errorf("failed to encode secondary types: %w", err)
	}
	return string(data), nil
}

func decodeTypes(ns sql.NullString) ([]string, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	var types []string
	if err := json.Unmarshal([]byte(ns.String), &types); err != nil {
		return nil, fmt.Errorf("failed to decode secondary types: %w", err)
	}
	return types, nil
}

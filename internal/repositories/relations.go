package repositories

import (
	"context"
	"fmt"

	"github.com/desertthunder/crate/internal/models"
)

// UpsertAlbumArtists records album credits. Tuples already present are left alone.
func (w *CatalogWriter) UpsertAlbumArtists(ctx context.Context, relations []models.AlbumArtist) (models.WriteResult, error) {
	query := `
		INSERT INTO album_artists (album_key, artist_key, role, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(album_key, artist_key, role) DO NOTHING
	`

	return upsertEach(ctx, w, "album_artist", relations, func(ctx context.Context, r models.AlbumArtist, now string) (outcome, error) {
		return w.insertRelation(ctx, query, r.AlbumKey, r.ArtistKey, r.Role, now)
	})
}

// UpsertAlbumTracks records track listings. Tuples already present are left alone.
func (w *CatalogWriter) UpsertAlbumTracks(ctx context.Context, relations []models.AlbumTrack) (models.WriteResult, error) {
	query := `
		INSERT INTO album_tracks (album_key, track_key, position, disc_number, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(album_key, track_key, position, disc_number) DO NOTHING
	`

	return upsertEach(ctx, w, "album_track", relations, func(ctx context.Context, r models.AlbumTrack, now string) (outcome, error) {
		return w.insertRelation(ctx, query, r.AlbumKey, r.TrackKey, r.Position, r.DiscNumber, now)
	})
}

func (w *CatalogWriter) insertRelation(ctx context.Context, query string, args ...any) (outcome, error) {
	result, err := w.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert relation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return unchanged, nil
	}
	return inserted, nil
}

// AlbumArtists lists the credits of an album.
func (w *CatalogWriter) AlbumArtists(ctx context.Context, albumKey string) ([]models.AlbumArtist, error) {
	rows, err := w.db.QueryContext(ctx,
		`SELECT album_key, artist_key, role FROM album_artists WHERE album_key = ? ORDER BY artist_key, role`,
		albumKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query album artists: %w", err)
	}
	defer rows.Close()

	var relations []models.AlbumArtist
	for rows.Next() {
		var r models.AlbumArtist
		if err := rows.Scan(&r.AlbumKey, &r.ArtistKey, &r.Role); err != nil {
			return nil, fmt.Errorf("failed to scan album artist: %w", err)
		}
		relations = append(relations, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return relations, nil
}

// AlbumTracks lists an album's tracks in disc and position order.
func (w *CatalogWriter) AlbumTracks(ctx context.Context, albumKey string) ([]models.AlbumTrack, error) {
	rows, err := w.db.QueryContext(ctx,
		`SELECT album_key, track_key, position, disc_number FROM album_tracks WHERE album_key = ? ORDER BY disc_number, position, track_key`,
		albumKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query album tracks: %w", err)
	}
	defer rows.Close()

	var relations []models.AlbumTrack
	for rows.Next() {
		var r models.AlbumTrack
		if err := rows.Scan(&r.AlbumKey, &r.TrackKey, &r.Position, &r.DiscNumber); err != nil {
			return nil, fmt.Errorf("failed to scan album track: %w", err)
		}
		relations = append(relations, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return relations, nil
}

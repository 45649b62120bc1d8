package main

import (
	"context"

	"github.com/desertthunder/crate/internal/formatter"
	"github.com/urfave/cli/v3"
)

// CatalogStats prints catalog row counts.
func (r *Runner) CatalogStats(ctx context.Context, cmd *cli.Command) error {
	writer, err := r.store(ctx)
	if err != nil {
		return err
	}

	stats, err := writer.Stats(ctx)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(stats, true)
	}
	return r.writePlain("%s\n", formatter.RenderStats(stats))
}

// CatalogExport writes albums and their credited artists to a file.
func (r *Runner) CatalogExport(ctx context.Context, cmd *cli.Command) error {
	writer, err := r.store(ctx)
	if err != nil {
		return err
	}

	albums, err := writer.ListAlbums(ctx, cmd.String("source"), cmd.Int("limit"))
	if err != nil {
		return err
	}

	export := &formatter.AlbumExport{Albums: albums, Artists: map[string][]string{}}
	names := map[string]string{}
	for _, album := range albums {
		relations, err := writer.AlbumArtists(ctx, album.Key)
		if err != nil {
			return err
		}
		for _, rel := range relations {
			name, ok := names[rel.ArtistKey]
			if !ok {
				artist, err := writer.GetArtist(ctx, rel.ArtistKey)
				if err != nil {
					return err
				}
				name = artist.Name
				names[rel.ArtistKey] = name
			}
			export.Artists[album.Key] = append(export.Artists[album.Key], name)
		}
	}

	path, err := formatter.WriteExport(export, cmd.String("format"), cmd.String("output"))
	if err != nil {
		return err
	}

	r.logger.Info("catalog exported", "albums", len(albums), "path", path)
	return r.writePlain("✓ Exported %d albums to %s\n", len(albums), path)
}

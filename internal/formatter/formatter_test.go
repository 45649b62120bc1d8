package formatter

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/repositories"
	"github.com/desertthunder/crate/internal/shared"
	th "github.com/desertthunder/crate/internal/testing"
)

func testExport() *AlbumExport {
	return &AlbumExport{
		Albums: []models.Album{
			{
				Key:            "rg-1",
				Title:          "First Light",
				ReleaseDate:    shared.StringPtr("2001-05-01"),
				Status:         shared.StringPtr("Official"),
				PrimaryType:    "Album",
				SecondaryTypes: []string{"Compilation"},
				CoverArtURL:    shared.StringPtr("https://covers.test/rg-1.jpg"),
				Source:         models.SourceMusicBrainz,
			},
			{
				Key:         "rg-2",
				Title:       "Second Wind",
				PrimaryType: "EP",
				Source:      models.SourceSpotify,
			},
		},
		Artists: map[string][]string{
			"rg-1": {"Artist One", "Artist Two"},
			"rg-2": {"Artist One"},
		},
	}
}

func testSummary() *models.RunSummary {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &models.RunSummary{
		RunID:      "run-1",
		Trigger:    "cli",
		Status:     models.RunStatusPartial,
		StartedAt:  start,
		FinishedAt: start.Add(3 * time.Second),
		Strategies: []models.StrategySummary{
			{Name: "new-releases", Error: "API request failed: status 503"},
			{
				Name:    "musicbrainz",
				Fetched: 4,
				Skipped: 1,
				Counts: models.EntityCounts{
					Albums:  models.WriteResult{Inserted: 2, Updated: 1},
					Artists: models.WriteResult{Inserted: 1},
				},
				Duration: 2 * time.Second,
			},
		},
		Totals: models.EntityCounts{
			Albums:  models.WriteResult{Inserted: 2, Updated: 1},
			Artists: models.WriteResult{Inserted: 1},
		},
		Skipped:  1,
		Enriched: 2,
	}
}

func TestExporters(t *testing.T) {
	export := testExport()

	t.Run("ExportToCSV", func(t *testing.T) {
		data, err := ExportToCSV(export)
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "Key,Title,Artists,Release Date,Type,Secondary Types,Status,Source,Cover Art") {
			t.Errorf("CSV missing headers, got: %s", output)
		}
		if !strings.Contains(output, `rg-1,First Light,"Artist One, Artist Two",2001-05-01,Album,Compilation,Official,musicbrainz,https://covers.test/rg-1.jpg`) {
			t.Errorf("CSV missing rg-1 row, got: %s", output)
		}
		if !strings.Contains(output, "rg-2,Second Wind,Artist One,,EP,,,spotify,") {
			t.Errorf("CSV missing rg-2 row with empty optionals, got: %s", output)
		}
	})

	t.Run("ExportToMarkdown", func(t *testing.T) {
		data, err := ExportToMarkdown(export, "New Releases")
		if err != nil {
			t.Fatalf("ExportToMarkdown failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "# New Releases") {
			t.Errorf("Markdown missing title")
		}
		if !strings.Contains(output, "**Albums**: 2") {
			t.Errorf("Markdown missing album count")
		}
		if !strings.Contains(output, "1. Artist One, Artist Two - First Light (2001-05-01) [Album + Compilation] [cover](https://covers.test/rg-1.jpg)") {
			t.Errorf("Markdown missing rg-1, got: %s", output)
		}
		if !strings.Contains(output, "2. Artist One - Second Wind [EP]\n") {
			t.Errorf("Markdown missing rg-2 without date or cover, got: %s", output)
		}
	})

	t.Run("ExportToText", func(t *testing.T) {
		data, err := ExportToText(export)
		if err != nil {
			t.Fatalf("ExportToText failed: %v", err)
		}

		output := string(data)
		if !strings.HasPrefix(output, "Albums: 2\n\n") {
			t.Errorf("Text missing header, got: %s", output)
		}
		if !strings.Contains(output, "2. Artist One - Second Wind\n") {
			t.Errorf("Text missing rg-2, got: %s", output)
		}
	})

	t.Run("ExportToJSON", func(t *testing.T) {
		data, err := ExportToJSON(export)
		if err != nil {
			t.Fatalf("ExportToJSON failed: %v", err)
		}

		var rows []map[string]any
		if err := json.Unmarshal(data, &rows); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(rows) != 2 {
			t.Fatalf("expected 2 rows, got %d", len(rows))
		}
		if rows[0]["key"] != "rg-1" || rows[1]["cover_art_url"] != nil {
			t.Errorf("unexpected rows: %v", rows)
		}
		if _, ok := rows[1]["secondary_types"]; ok {
			t.Errorf("expected secondary_types omitted for rg-2")
		}
	})
}

func TestWriteExport(t *testing.T) {
	export := testExport()

	t.Run("csv", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "albums.csv")
		written, err := WriteExport(export, FormatCSV, path)
		if err != nil {
			t.Fatalf("WriteExport failed: %v", err)
		}
		th.AssertFileExists(t, written)
		if content := th.MustReadFile(t, written); !strings.Contains(content, "First Light") {
			t.Errorf("CSV file missing content")
		}
	})

	t.Run("markdown into a directory", func(t *testing.T) {
		dir := t.TempDir()
		written, err := WriteExport(export, FormatMarkdown, dir)
		if err != nil {
			t.Fatalf("WriteExport failed: %v", err)
		}
		if written != filepath.Join(dir, "README.md") {
			t.Errorf("expected README.md in %s, got %s", dir, written)
		}
		th.AssertFileExists(t, written)
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := WriteExport(export, "xml", filepath.Join(t.TempDir(), "albums.xml"))
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("missing path", func(t *testing.T) {
		if _, err := WriteExport(export, FormatText, ""); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})
}

func TestSummaries(t *testing.T) {
	summary := testSummary()

	t.Run("RenderSummary", func(t *testing.T) {
		output := RenderSummary(summary)
		for _, want := range []string{"run-1", "partial", "new-releases", "musicbrainz", "+2 ~1", "API request failed", "Cover art added to 2 albums"} {
			if !strings.Contains(output, want) {
				t.Errorf("summary missing %q, got:\n%s", want, output)
			}
		}
	})

	t.Run("RenderSummaryMarkdown", func(t *testing.T) {
		output := RenderSummaryMarkdown(summary)
		if !strings.Contains(output, "**Status**: partial") {
			t.Errorf("markdown missing status, got:\n%s", output)
		}
		if !strings.Contains(output, "| musicbrainz |") {
			t.Errorf("markdown missing strategy row, got:\n%s", output)
		}
	})

	t.Run("SummaryToJSON", func(t *testing.T) {
		data, err := SummaryToJSON(summary)
		if err != nil {
			t.Fatalf("SummaryToJSON failed: %v", err)
		}

		var decoded models.RunSummary
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if decoded.RunID != "run-1" || decoded.Totals.Albums.Updated != 1 || len(decoded.Strategies) != 2 {
			t.Errorf("unexpected decoded summary: %+v", decoded)
		}
	})

	t.Run("RenderRuns", func(t *testing.T) {
		output := RenderRuns([]models.RunSummary{*summary})
		if !strings.Contains(output, "run-1") || !strings.Contains(output, "cli") {
			t.Errorf("runs table missing row, got:\n%s", output)
		}
	})

	t.Run("RenderStats", func(t *testing.T) {
		output := RenderStats(&repositories.CatalogStats{Artists: 3, Albums: 5, MissingCoverArt: 2})
		if !strings.Contains(output, "albums without cover art") {
			t.Errorf("stats table missing cover art row, got:\n%s", output)
		}
	})
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("expected unchanged, got %q", got)
	}
	if got := truncate("abcdefghij", 5); got != "abcd…" {
		t.Errorf("expected abcd…, got %q", got)
	}
}

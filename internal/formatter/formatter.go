// package formatter renders run summaries and exports catalog albums to various formats (CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/shared"
)

// Export formats
const (
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
	FormatText     = "text"
	FormatJSON     = "json"
)

// AlbumExport is a page of catalog albums with their credited artist names.
type AlbumExport struct {
	Albums  []models.Album
	Artists map[string][]string // album key -> artist names in credit order
}

func (e *AlbumExport) artists(albumKey string) string {
	return strings.Join(e.Artists[albumKey], ", ")
}

// ExportToCSV converts an AlbumExport to CSV format with columns: Key, Title, Artists, Release Date, Type, Secondary Types, Status, Source, Cover Art
func ExportToCSV(export *AlbumExport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Key", "Title", "Artists", "Release Date", "Type", "Secondary Types", "Status", "Source", "Cover Art"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, album := range export.Albums {
		record := []string{
			album.Key,
			album.Title,
			export.artists(album.Key),
			shared.Deref(album.ReleaseDate),
			album.PrimaryType,
			strings.Join(album.SecondaryTypes, ";"),
			shared.Deref(album.Status),
			album.Source,
			shared.Deref(album.CoverArtURL),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts an AlbumExport to a Markdown list, linking cover art where known
func ExportToMarkdown(export *AlbumExport, title string) ([]byte, error) {
	var buf bytes.Buffer

	if title == "" {
		title = "Catalog"
	}
	fmt.Fprintf(&buf, "# %s\n\n", title)
	fmt.Fprintf(&buf, "**Albums**: %d\n\n", len(export.Albums))

	for i, album := range export.Albums {
		line := fmt.Sprintf("%d. %s - %s", i+1, export.artists(album.Key), album.Title)
		if date := shared.Deref(album.ReleaseDate); date != "" {
			line += fmt.Sprintf(" (%s)", date)
		}
		line += fmt.Sprintf(" [%s]", albumType(album))
		if cover := shared.Deref(album.CoverArtURL); cover != "" {
			line += fmt.Sprintf(" [cover](%s)", cover)
		}
		buf.WriteString(line + "\n")
	}

	return buf.Bytes(), nil
}

// ExportToText converts an AlbumExport to plain text format
func ExportToText(export *AlbumExport) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Albums: %d\n\n", len(export.Albums))
	for i, album := range export.Albums {
		fmt.Fprintf(&buf, "%d. %s - %s\n", i+1, export.artists(album.Key), album.Title)
	}

	return buf.Bytes(), nil
}

// ExportToJSON renders the albums as indented JSON.
func ExportToJSON(export *AlbumExport) ([]byte, error) {
	type row struct {
		Key            string   `json:"key"`
		Title          string   `json:"title"`
		Artists        []string `json:"artists"`
		ReleaseDate    *string  `json:"release_date"`
		Status         *string  `json:"status"`
		PrimaryType    string   `json:"primary_type"`
		SecondaryTypes []string `json:"secondary_types,omitempty"`
		CoverArtURL    *string  `json:"cover_art_url"`
		Source         string   `json:"source"`
	}

	rows := make([]row, len(export.Albums))
	for i, a := range export.Albums {
		rows[i] = row{
			Key:            a.Key,
			Title:          a.Title,
			Artists:        export.Artists[a.Key],
			ReleaseDate:    a.ReleaseDate,
			Status:         a.Status,
			PrimaryType:    a.PrimaryType,
			SecondaryTypes: a.SecondaryTypes,
			CoverArtURL:    a.CoverArtURL,
			Source:         a.Source,
		}
	}
	return marshalIndent(rows)
}

// WriteExport renders export in format and writes it to path.
//
// Markdown exports default to {dir}/README.md when path is a directory.
func WriteExport(export *AlbumExport, format, path string) (string, error) {
	var (
		data []byte
		err  error
	)

	switch format {
	case FormatCSV:
		data, err = ExportToCSV(export)
	case FormatMarkdown:
		if info, statErr := os.Stat(path); statErr == nil && info.IsDir() {
			path = filepath.Join(path, "README.md")
		}
		data, err = ExportToMarkdown(export, "")
	case FormatText:
		data, err = ExportToText(export)
	case FormatJSON:
		data, err = ExportToJSON(export)
	default:
		return "", fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, format)
	}
	if err != nil {
		return "", fmt.Errorf("failed to generate %s: %w", format, err)
	}

	if path == "" {
		return "", fmt.Errorf("%w: output path", shared.ErrMissingArgument)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s file: %w", format, err)
	}
	return path, nil
}

func albumType(a models.Album) string {
	if len(a.SecondaryTypes) == 0 {
		return a.PrimaryType
	}
	return a.PrimaryType + " + " + strings.Join(a.SecondaryTypes, " + ")
}

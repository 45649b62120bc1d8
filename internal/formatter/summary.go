package formatter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/repositories"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

func marshalIndent(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return append(data, '\n'), nil
}

// SummaryToJSON renders a run summary as indented JSON.
func SummaryToJSON(summary *models.RunSummary) ([]byte, error) {
	return marshalIndent(summary)
}

// RenderSummary renders a run summary as a header line and a per-strategy table.
func RenderSummary(summary *models.RunSummary) string {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "%s %s %s\n", styles.Title("Run"), summary.RunID, styles.Status(summary.Status))
	fmt.Fprintf(&buf, "%s\n", styles.Muted(fmt.Sprintf("trigger=%s started=%s duration=%s",
		summary.Trigger,
		summary.StartedAt.Format(time.RFC3339),
		summary.FinishedAt.Sub(summary.StartedAt).Round(time.Millisecond),
	)))

	headers := []string{"Strategy", "Fetched", "Skipped", "Albums", "Artists", "Tracks", "Failed", "Duration", "Error"}
	rows := make([][]string, 0, len(summary.Strategies)+1)
	for _, s := range summary.Strategies {
		rows = append(rows, countsRow(s.Name, s.Fetched, s.Skipped, s.Counts, s.Duration, s.Error))
	}

	fetched := 0
	for _, s := range summary.Strategies {
		fetched += s.Fetched
	}
	footer := countsRow("total", fetched, summary.Skipped, summary.Totals, summary.FinishedAt.Sub(summary.StartedAt), summary.Error)

	buf.WriteString(renderTable(headers, rows, footer, []columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight}))
	buf.WriteString("\n")

	if summary.Enriched > 0 {
		fmt.Fprintf(&buf, "Cover art added to %d albums\n", summary.Enriched)
	}
	return buf.String()
}

// RenderSummaryMarkdown renders a run summary as a Markdown table.
func RenderSummaryMarkdown(summary *models.RunSummary) string {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# Run %s\n\n", summary.RunID)
	fmt.Fprintf(&buf, "**Status**: %s\n", summary.Status)
	fmt.Fprintf(&buf, "**Trigger**: %s\n", summary.Trigger)
	fmt.Fprintf(&buf, "**Started**: %s\n", summary.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&buf, "**Enriched**: %d\n\n", summary.Enriched)

	tw := newTable([]string{"Strategy", "Fetched", "Skipped", "Albums", "Artists", "Tracks", "Failed", "Duration", "Error"})
	for _, s := range summary.Strategies {
		tw.AppendRow(toRow(countsRow(s.Name, s.Fetched, s.Skipped, s.Counts, s.Duration, s.Error)))
	}
	buf.WriteString(tw.RenderMarkdown())
	buf.WriteString("\n")
	return buf.String()
}

// RenderRuns renders run history, newest first.
func RenderRuns(runs []models.RunSummary) string {
	headers := []string{"Run", "Trigger", "Status", "Started", "Albums", "Artists", "Tracks", "Skipped", "Enriched"}
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			r.RunID,
			r.Trigger,
			styles.Status(r.Status),
			r.StartedAt.Format(time.RFC3339),
			strconv.Itoa(r.Totals.Albums.Written()),
			strconv.Itoa(r.Totals.Artists.Written()),
			strconv.Itoa(r.Totals.Tracks.Written()),
			strconv.Itoa(r.Skipped),
			strconv.Itoa(r.Enriched),
		})
	}
	return renderTable(headers, rows, nil, []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight})
}

// RenderStats renders catalog row counts.
func RenderStats(stats *repositories.CatalogStats) string {
	rows := [][]string{
		{"artists", strconv.Itoa(stats.Artists)},
		{"albums", strconv.Itoa(stats.Albums)},
		{"tracks", strconv.Itoa(stats.Tracks)},
		{"album_artists", strconv.Itoa(stats.AlbumArtists)},
		{"album_tracks", strconv.Itoa(stats.AlbumTracks)},
		{"albums without cover art", strconv.Itoa(stats.MissingCoverArt)},
	}
	return renderTable([]string{"Table", "Rows"}, rows, nil, []columnAlignment{alignLeft, alignRight})
}

func countsRow(name string, fetched, skipped int, c models.EntityCounts, d time.Duration, errText string) []string {
	failed := c.Artists.Failed + c.Albums.Failed + c.Tracks.Failed + c.AlbumArtists.Failed + c.AlbumTracks.Failed
	return []string{
		name,
		strconv.Itoa(fetched),
		strconv.Itoa(skipped),
		writeCell(c.Albums),
		writeCell(c.Artists),
		writeCell(c.Tracks),
		strconv.Itoa(failed),
		d.Round(time.Millisecond).String(),
		truncate(errText, 60),
	}
}

// writeCell shows "+inserted ~updated".
func writeCell(r models.WriteResult) string {
	return fmt.Sprintf("+%d ~%d", r.Inserted, r.Updated)
}

func truncate(s string, n int) string {
	if len([]rune(s)) <= n {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:n-1])) + "…"
}

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func newTable(headers []string) table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(toRow(headers))
	return tw
}

func toRow(cells []string) table.Row {
	row := make(table.Row, len(cells))
	for i, c := range cells {
		row[i] = c
	}
	return row
}

func renderTable(headers []string, rows [][]string, footer []string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := newTable(headers)
	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}
	if footer != nil {
		tw.AppendFooter(toRow(footer))
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignFooter: align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

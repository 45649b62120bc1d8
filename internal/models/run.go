package models

import "time"

// Run statuses recorded in ingest_runs.
const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusPartial   = "partial"
	RunStatusFailed    = "failed"
)

// WriteResult counts the outcome of one upsert batch.
type WriteResult struct {
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"` // relation tuples already present
	Failed    int `json:"failed"`
}

// Written is the number of rows inserted or updated.
func (r WriteResult) Written() int {
	return r.Inserted + r.Updated
}

// Add accumulates other into r.
func (r *WriteResult) Add(other WriteResult) {
	r.Inserted += other.Inserted
	r.Updated += other.Updated
	r.Unchanged += other.Unchanged
	r.Failed += other.Failed
}

// EntityCounts holds one WriteResult per catalog table.
type EntityCounts struct {
	Artists      WriteResult `json:"artists"`
	Albums       WriteResult `json:"albums"`
	Tracks       WriteResult `json:"tracks"`
	AlbumArtists WriteResult `json:"album_artists"`
	AlbumTracks  WriteResult `json:"album_tracks"`
}

// Add accumulates other into c.
func (c *EntityCounts) Add(other EntityCounts) {
	c.Artists.Add(other.Artists)
	c.Albums.Add(other.Albums)
	c.Tracks.Add(other.Tracks)
	c.AlbumArtists.Add(other.AlbumArtists)
	c.AlbumTracks.Add(other.AlbumTracks)
}

// StrategySummary reports one source strategy within a run.
type StrategySummary struct {
	Name     string        `json:"name"`
	Fetched  int           `json:"fetched"`
	Skipped  int           `json:"skipped"`
	Counts   EntityCounts  `json:"counts"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Failed reports whether the strategy's fetch failed.
func (s StrategySummary) Failed() bool {
	return s.Error != ""
}

// RunSummary is the end-of-run report.
type RunSummary struct {
	RunID      string            `json:"run_id"`
	Trigger    string            `json:"trigger"`
	Status     string            `json:"status"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Strategies []StrategySummary `json:"strategies"`
	Totals     EntityCounts      `json:"totals"`
	Skipped    int               `json:"skipped"`
	Enriched   int               `json:"enriched"`
	Error      string            `json:"error,omitempty"`
}

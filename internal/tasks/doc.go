// Package tasks orchestrates ingest runs with real-time progress reporting.
//
// # Runs
//
// A run executes the configured source strategies in a fixed order:
//
//  1. new-releases : streaming catalog new releases
//  2. top-tracks : tracks of the top tracks playlist
//  3. featured-collections : tracks of featured playlists
//  4. musicbrainz : browsed release groups, optionally with their recordings
//
// Each strategy is fetched, transformed and written before the next one starts.
// Writes go artists, albums, tracks, then the relations that reference them.
// When fetch concurrency is above one the fetches are issued up front through an
// errgroup, but transform and write still happen one strategy at a time.
//
// A failing strategy is recorded in the summary and the run moves on. The run is
// partial when some strategies failed and failed when all of them did.
// After a non-failed run the albums it touched get a cover art pass.
//
// # Exclusivity
//
// [RunGuard] admits one run at a time. Overlapping triggers get [shared.ErrRunActive].
// Given a lock file path it also excludes other processes through a file lock.
//
// # Progress Reporting
//
// [PipelineEngine.Run] takes an optional channel of [ProgressUpdate]. Sends use select
// with default so a slow reader never stalls a run.
//
// # Scheduling
//
// [Scheduler] calls [PipelineEngine.Trigger] on an interval and skips ticks while a run is active.
package tasks

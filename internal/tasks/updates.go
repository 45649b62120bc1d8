package tasks

import (
	"fmt"

	"github.com/desertthunder/crate/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or server layer for display.
type ProgressUpdate struct {
	Phase    Phase  // Operation phase
	Strategy string // Source strategy, empty for run-level phases
	Step     int    // Current step number within phase
	Total    int    // Total steps in this phase
	Message  string // Human-readable message for display
	Data     any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	FetchStrategy Phase = iota
	TransformBatch
	WriteCatalog
	EnrichAlbums
	Summarize
)

func (p Phase) String() string {
	switch p {
	case FetchStrategy:
		return "fetch"
	case TransformBatch:
		return "transform"
	case WriteCatalog:
		return "write"
	case EnrichAlbums:
		return "enrich"
	case Summarize:
		return "summary"
	default:
		return ""
	}
}

func fetchUpdate(step, total int, strategy string) ProgressUpdate {
	return ProgressUpdate{
		Phase:    FetchStrategy,
		Strategy: strategy,
		Step:     step,
		Total:    total,
		Message:  fmt.Sprintf("[%d/%d] Fetching %s...", step, total, strategy),
	}
}

func fetchFailedUpdate(step, total int, strategy string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:    FetchStrategy,
		Strategy: strategy,
		Step:     step,
		Total:    total,
		Message:  fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, strategy, err),
	}
}

func transformUpdate(step, total int, strategy string, fetched, skipped int) ProgressUpdate {
	return ProgressUpdate{
		Phase:    TransformBatch,
		Strategy: strategy,
		Step:     step,
		Total:    total,
		Message:  fmt.Sprintf("[%d/%d] Transformed %d raw records (%d skipped)", step, total, fetched, skipped),
	}
}

func writeUpdate(step, total int, s models.StrategySummary) ProgressUpdate {
	return ProgressUpdate{
		Phase:    WriteCatalog,
		Strategy: s.Name,
		Step:     step,
		Total:    total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s: %d albums, %d artists, %d tracks written",
			step, total, s.Name, s.Counts.Albums.Written(), s.Counts.Artists.Written(), s.Counts.Tracks.Written()),
		Data: s,
	}
}

func enrichUpdate(step, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   EnrichAlbums,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Looking up cover art...", step, total),
	}
}

func summaryUpdate(summary *models.RunSummary) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Summarize,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Run %s %s", summary.RunID, summary.Status),
		Data:    summary,
	}
}
